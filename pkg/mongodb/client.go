// Package mongodb owns the stock-count database connection. Writes are
// acknowledged by a majority of the replica set and multi-document work runs
// in snapshot transactions.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const pingTimeout = 5 * time.Second

// Config holds MongoDB connection configuration
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
	MinPoolSize    uint64

	// TransactionTimeout bounds one transaction including driver retries.
	// Zero leaves it to the caller's context.
	TransactionTimeout time.Duration

	Username string
	Password string
	AuthDB   string

	ReplicaSet string
}

// DefaultConfig returns the settings used when nothing is configured
func DefaultConfig() *Config {
	return &Config{
		URI:                "mongodb://localhost:27017",
		Database:           "stockcount_db",
		ConnectTimeout:     10 * time.Second,
		MaxPoolSize:        100,
		MinPoolSize:        5,
		TransactionTimeout: 10 * time.Second,
	}
}

func (c *Config) clientOptions() *options.ClientOptions {
	opts := options.Client().
		ApplyURI(c.URI).
		SetConnectTimeout(c.ConnectTimeout).
		SetMaxPoolSize(c.MaxPoolSize).
		SetMinPoolSize(c.MinPoolSize).
		SetRetryWrites(true).
		SetReadConcern(readconcern.Majority()).
		SetWriteConcern(writeconcern.Majority())

	if c.Username != "" && c.Password != "" {
		opts.SetAuth(options.Credential{
			Username:   c.Username,
			Password:   c.Password,
			AuthSource: c.AuthDB,
		})
	}
	if c.ReplicaSet != "" {
		opts.SetReplicaSet(c.ReplicaSet)
	}
	return opts
}

// transactionOptions reads a consistent snapshot of the ledger and commits
// on the primary
func transactionOptions() *options.TransactionOptions {
	return options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority()).
		SetReadPreference(readpref.Primary())
}

// Client is created once in main and handed to the repositories
type Client struct {
	client    *mongo.Client
	database  *mongo.Database
	txTimeout time.Duration
}

// NewClient connects and waits for the primary to answer
func NewClient(ctx context.Context, config *Config) (*Client, error) {
	if config.Database == "" {
		return nil, errors.New("mongodb: database name is required")
	}

	client, err := mongo.Connect(ctx, config.clientOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := ping(ctx, client); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{
		client:    client,
		database:  client.Database(config.Database),
		txTimeout: config.TransactionTimeout,
	}, nil
}

func ping(ctx context.Context, client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return client.Ping(ctx, readpref.Primary())
}

// Database returns the stock-count database handle
func (c *Client) Database() *mongo.Database {
	return c.database
}

// Collection returns a collection of the stock-count database
func (c *Client) Collection(name string) *mongo.Collection {
	return c.database.Collection(name)
}

// Close disconnects the client
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// HealthCheck pings the primary
func (c *Client) HealthCheck(ctx context.Context) error {
	return ping(ctx, c.client)
}

// WithTransaction runs fn inside a multi-document transaction. fn receives
// the session context and may be invoked more than once on transient errors.
func (c *Client) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := c.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(context.WithoutCancel(ctx))

	if c.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.txTimeout)
		defer cancel()
	}

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	}, transactionOptions())
	return err
}

// EnsureIndexes creates the indexes of every collection, in collection name
// order. Existing identical indexes are left untouched.
func (c *Client) EnsureIndexes(ctx context.Context, indexes map[string][]mongo.IndexModel) error {
	names := make([]string, 0, len(indexes))
	for name := range indexes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		models := indexes[name]
		if len(models) == 0 {
			continue
		}
		if _, err := c.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}
