// Command add-friendship records an accepted friendship between two users.
//
//	add-friendship <user1_id> <user2_id>
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
	"github.com/phishers-marketplace/marketplace-api/internal/friends"
	"github.com/phishers-marketplace/marketplace-api/internal/models"
	"github.com/phishers-marketplace/marketplace-api/internal/users"
	"github.com/phishers-marketplace/marketplace-api/pkg/logger"
	"github.com/spf13/pflag"
)

func parseArgs(args []string) (string, string, error) {
	fs := pflag.NewFlagSet("add-friendship", pflag.ContinueOnError)
	fs.Usage = func() { fmt.Fprintln(os.Stderr, "usage: add-friendship <user1_id> <user2_id>") }
	if err := fs.Parse(args); err != nil {
		return "", "", err
	}
	if fs.NArg() != 2 {
		return "", "", errors.New("usage: add-friendship <user1_id> <user2_id>")
	}
	return fs.Arg(0), fs.Arg(1), nil
}

// run reports an existing friendship without failing.
func run(ctx context.Context, svc *friends.Service, a, b string, out io.Writer) error {
	f, err := svc.AddFriend(ctx, a, b)
	if errors.Is(err, friends.ErrAlreadyFriends) {
		fmt.Fprintf(out, "Friendship already exists between users %s and %s\n", a, b)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Successfully created friendship between users %s and %s\n", a, b)
	fmt.Fprintf(out, "Friendship created with ID: %s\n", f.ID)
	return nil
}

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.SetOutput(os.Stderr)

	a, b, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	dbCfg, err := config.LoadDatabase()
	if err != nil {
		logger.Fatalf("add-friendship: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, db, err := database.Open(ctx, *dbCfg)
	if err != nil {
		logger.Fatalf("add-friendship: %v", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	userSvc := users.NewService(users.NewMongoUserRepository(db.Collection(models.CollectionUsers)))
	svc := friends.NewService(friends.NewMongoRepository(db.Collection(models.CollectionFriendships)), userSvc)
	if err := run(ctx, svc, a, b, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
