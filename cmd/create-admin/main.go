// Command create-admin creates an administrator or promotes an existing
// account.
//
//	create-admin --email admin@example.com --password secret --name "Admin User"
//	create-admin --email existing@example.com
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/phishers-marketplace/marketplace-api/internal/config"
	"github.com/phishers-marketplace/marketplace-api/internal/database"
	"github.com/phishers-marketplace/marketplace-api/internal/models"
	"github.com/phishers-marketplace/marketplace-api/internal/users"
	"github.com/phishers-marketplace/marketplace-api/pkg/logger"
	"github.com/spf13/pflag"
)

type options struct {
	email    string
	password string
	name     string
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := pflag.NewFlagSet("create-admin", pflag.ContinueOnError)
	fs.StringVar(&o.email, "email", "", "email address of the user (required)")
	fs.StringVar(&o.password, "password", "", "password for a new admin user")
	fs.StringVar(&o.name, "name", "", "name for a new admin user")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.email == "" {
		return o, errors.New("--email is required")
	}
	return o, nil
}

func run(ctx context.Context, svc *users.Service, o options, out io.Writer) error {
	_, outcome, err := svc.EnsureAdmin(ctx, o.email, o.password, o.name)
	if errors.Is(err, users.ErrMissingAdminDetails) {
		return fmt.Errorf("user %s does not exist; provide --password and --name to create a new admin user", o.email)
	}
	if err != nil {
		return err
	}
	switch outcome {
	case users.AdminExists:
		fmt.Fprintf(out, "Admin user %s already exists.\n", o.email)
	case users.AdminPromoted:
		fmt.Fprintf(out, "User %s has been updated to have admin privileges.\n", o.email)
	case users.AdminCreated:
		fmt.Fprintf(out, "Created admin user: %s\n", o.email)
	}
	return nil
}

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.SetOutput(os.Stderr)

	o, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	dbCfg, err := config.LoadDatabase()
	if err != nil {
		logger.Fatalf("create-admin: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, db, err := database.Open(ctx, *dbCfg)
	if err != nil {
		logger.Fatalf("create-admin: %v", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	svc := users.NewService(users.NewMongoUserRepository(db.Collection(models.CollectionUsers)))
	if err := run(ctx, svc, o, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
