// Command schema writes schema.txt, schema.json and er_diagram.dot describing
// the MongoDB documents. Render the diagram with `dot -Tpng`.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/phishers-marketplace/marketplace-api/internal/models"
	"github.com/phishers-marketplace/marketplace-api/internal/schema"
	"github.com/phishers-marketplace/marketplace-api/pkg/logger"
	"github.com/spf13/pflag"
)

func generate(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	ms := schema.Describe(models.Documents)
	js, err := schema.JSON(ms)
	if err != nil {
		return nil, err
	}
	files := []struct {
		name string
		data []byte
	}{
		{"schema.txt", []byte(schema.Text(ms))},
		{"schema.json", js},
		{"er_diagram.dot", []byte(schema.Dot(ms))},
	}
	var written []string
	for _, f := range files {
		p := filepath.Join(dir, f.name)
		if err := os.WriteFile(p, f.data, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", p, err)
		}
		written = append(written, p)
	}
	return written, nil
}

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))
	out := pflag.StringP("out", "o", "diagrams", "output directory")
	pflag.Parse()

	written, err := generate(*out)
	if err != nil {
		logger.Fatalf("schema: %v", err)
	}
	for _, p := range written {
		fmt.Printf("saved %s\n", p)
	}
}
