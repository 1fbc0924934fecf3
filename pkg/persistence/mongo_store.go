// pkg/persistence/mongo_store.go
package persistence

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/aleka07/onchain-agent/internal/logger"
)

// --- Ensure MongoStore implements Store ---
var _ Store = (*MongoStore)(nil)

// MongoStore wraps a connected MongoDB client.
type MongoStore struct {
	client *mongo.Client
	closed atomic.Bool
}

// NewMongoStore connects to MongoDB and confirms the connection with a ping
// against the primary. The client is disconnected again if the ping fails.
func NewMongoStore(ctx context.Context, uri string, opts Options) (*MongoStore, error) {
	clientOpts := options.Client().ApplyURI(uri)
	if opts.StrictQuery {
		clientOpts.SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1).SetStrict(true))
	}
	if opts.AppName != "" {
		clientOpts.SetAppName(opts.AppName)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("unable to create mongodb client: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		// Use a fresh context: ctx may be the one that just expired.
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("unable to ping mongodb: %w", err)
	}

	logger.Debug("MongoDB client connected", "strict_api", opts.StrictQuery)
	return &MongoStore{client: client}, nil
}

// Backend implements Store.
func (s *MongoStore) Backend() string { return BackendMongo }

// Ping implements Store.
func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongodb ping failed: %w", err)
	}
	return nil
}

// Close disconnects the client once.
func (s *MongoStore) Close(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	logger.Debug("Disconnecting MongoDB client")
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect mongodb: %w", err)
	}
	return nil
}
