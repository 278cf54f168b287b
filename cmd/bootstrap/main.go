package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/phishers-marketplace/marketplace-api/internal/bootstrap"
	"github.com/phishers-marketplace/marketplace-api/internal/config"
	"github.com/phishers-marketplace/marketplace-api/internal/database"
	"github.com/phishers-marketplace/marketplace-api/pkg/logger"
)

// run provisions the root account and the application database through admin
// and prints the completion line to out.
func run(ctx context.Context, admin bootstrap.Admin, cfg *config.Bootstrap, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	rep, err := bootstrap.NewProvisioner(admin).Run(ctx, bootstrap.NewPlan(cfg.RootUsername, cfg.RootPassword, cfg.Database))
	if err != nil {
		return err
	}
	logger.Infof("bootstrap: user_created=%v collections_created=%v collections_existing=%v",
		rep.UserCreated, rep.CreatedCollections, rep.ExistingCollections)
	fmt.Fprintf(out, "%s initialized\n", cfg.Database)
	return nil
}

// realMain runs once when the database container starts. Deferred cleanup
// completes before the exit code reaches os.Exit.
func realMain() int {
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadBootstrap()
	if err != nil {
		logger.Errorf("bootstrap: %v", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := database.ConnectMongo(ctx, cfg.URI, database.Options{Timeout: cfg.Timeout})
	if err != nil {
		logger.Errorf("bootstrap: %v", err)
		return 1
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	if err := run(ctx, bootstrap.NewMongoAdmin(client), cfg, os.Stdout); err != nil {
		logger.Errorf("bootstrap failed: %v", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(realMain())
}
