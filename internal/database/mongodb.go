package database

import (
	"context"
	"fmt"
	"time"

	"github.com/phishers-marketplace/marketplace-api/internal/config"
	"github.com/phishers-marketplace/marketplace-api/internal/models"
	"github.com/phishers-marketplace/marketplace-api/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Options tunes the client created by ConnectMongo.
type Options struct {
	Timeout  time.Duration
	PoolSize int
}

// ConnectMongo opens a connection and returns the client. Caller should call client.Disconnect(ctx).
func ConnectMongo(ctx context.Context, uri string, o Options) (*mongo.Client, error) {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()
	clientOpts := options.Client().ApplyURI(uri).SetServerSelectionTimeout(o.Timeout)
	if o.PoolSize > 0 {
		clientOpts.SetMaxPoolSize(uint64(o.PoolSize))
	}
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// ConnectWithRetry retries ConnectMongo with exponential backoff to tolerate
// startup races with the database container.
func ConnectWithRetry(ctx context.Context, uri string, o Options, attempts int, backoff time.Duration) (*mongo.Client, error) {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		client, err := ConnectMongo(ctx, uri, o)
		if err == nil {
			return client, nil
		}
		lastErr = err
		logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, attempts, err)
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("could not connect to MongoDB after %d attempts: %w", attempts, lastErr)
}

// IndexModels converts a registry entry into driver index models.
func IndexModels(doc models.DocumentSpec) []mongo.IndexModel {
	out := make([]mongo.IndexModel, 0, len(doc.Indexes))
	for _, idx := range doc.Indexes {
		keys := bson.D{}
		for _, k := range idx.Keys {
			keys = append(keys, bson.E{Key: k, Value: 1})
		}
		m := mongo.IndexModel{Keys: keys}
		if idx.Unique {
			m.Options = options.Index().SetUnique(true)
		}
		out = append(out, m)
	}
	return out
}

// EnsureIndexes creates the indexes of every registered document. Existing
// indexes with the same definition are left alone by the server.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for _, doc := range models.Documents {
		ims := IndexModels(doc)
		if len(ims) == 0 {
			continue
		}
		if _, err := db.Collection(doc.Collection).Indexes().CreateMany(ctx, ims); err != nil {
			return fmt.Errorf("create indexes for %s: %w", doc.Collection, err)
		}
	}
	return nil
}

// Open connects with the application settings and returns the client with
// its database handle.
func Open(ctx context.Context, cfg config.DBConfig) (*mongo.Client, *mongo.Database, error) {
	client, err := ConnectMongo(ctx, cfg.URI(), Options{Timeout: cfg.Timeout, PoolSize: cfg.PoolSize})
	if err != nil {
		return nil, nil, err
	}
	return client, client.Database(cfg.Name), nil
}
