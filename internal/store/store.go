// Package store encapsulates MongoDB client management and collection helpers.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"tg_moderation_panel/internal/config"
)

// Collection names used across the panel.
const (
	CollectionBots     = "bots"
	CollectionBotChats = "bot_chats"
	CollectionAccounts = "accounts"
)

// mongoClient captures the subset of mongo.Client behavior we rely on to allow
// lightweight stubbing in tests without a live Mongo deployment.
type mongoClient interface {
	Ping(context.Context, *readpref.ReadPref) error
	Database(string, ...*options.DatabaseOptions) *mongo.Database
	Disconnect(context.Context) error
}

// connectMongo is overridable for tests.
var connectMongo = func(ctx context.Context, opts *options.ClientOptions) (mongoClient, error) {
	return mongo.Connect(ctx, opts)
}

// createIndexes is overridable for tests.
var createIndexes = func(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) ([]string, error) {
	return coll.Indexes().CreateMany(ctx, models)
}

// Manager owns a MongoDB client and the configured database handle.
type Manager struct {
	client mongoClient
	db     *mongo.Database
}

// NewManager initializes the Mongo client using the supplied configuration and
// verifies connectivity with a ping.
func NewManager(ctx context.Context, cfg config.Config) (*Manager, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	client, err := connectMongo(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &Manager{
		client: client,
		db:     client.Database(cfg.MongoDB),
	}, nil
}

// Database returns the configured database handle.
func (m *Manager) Database() *mongo.Database {
	return m.db
}

// Collection returns a collection handle for the given name.
func (m *Manager) Collection(name string) *mongo.Collection {
	return m.db.Collection(name)
}

// Bots returns the bot credentials collection handle.
func (m *Manager) Bots() *mongo.Collection {
	return m.Collection(CollectionBots)
}

// BotChats returns the per-bot chat membership collection handle.
func (m *Manager) BotChats() *mongo.Collection {
	return m.Collection(CollectionBotChats)
}

// Accounts returns the user-session accounts collection handle.
func (m *Manager) Accounts() *mongo.Collection {
	return m.Collection(CollectionAccounts)
}

// Ping checks connectivity against the primary.
func (m *Manager) Ping(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if m == nil || m.client == nil {
		return errors.New("store manager is not initialized")
	}

	if err := m.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping mongo: %w", err)
	}

	return nil
}

// indexSpec describes one index the panel relies on.
type indexSpec struct {
	collection string
	keys       bson.D
	name       string
	unique     bool
}

// baseIndexes lists, in creation order, the indexes backing bot lookup,
// per-bot chat listing, and account lookup.
func baseIndexes() []indexSpec {
	return []indexSpec{
		{collection: CollectionBots, keys: bson.D{{Key: "bot_id", Value: 1}}, name: "bot_id_unique", unique: true},
		{collection: CollectionBots, keys: bson.D{{Key: "is_active", Value: 1}, {Key: "bot_id", Value: 1}}, name: "is_active_bot_id"},
		{collection: CollectionBotChats, keys: bson.D{{Key: "bot_id", Value: 1}, {Key: "telegram_id", Value: 1}}, name: "bot_id_telegram_id_unique", unique: true},
		{collection: CollectionAccounts, keys: bson.D{{Key: "account_id", Value: 1}}, name: "account_id_unique", unique: true},
	}
}

// EnsureBaseIndexes creates the indexes from baseIndexes, grouped per
// collection. Collections are created implicitly if they do not already exist.
// The first failing collection aborts the remaining ones.
func (m *Manager) EnsureBaseIndexes(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if m == nil || m.db == nil {
		return errors.New("store manager is not initialized")
	}

	order := make([]string, 0, 3)
	grouped := make(map[string][]mongo.IndexModel)
	for _, idx := range baseIndexes() {
		opts := options.Index().SetName(idx.name)
		if idx.unique {
			opts.SetUnique(true)
		}
		if _, seen := grouped[idx.collection]; !seen {
			order = append(order, idx.collection)
		}
		grouped[idx.collection] = append(grouped[idx.collection], mongo.IndexModel{Keys: idx.keys, Options: opts})
	}

	for _, name := range order {
		if _, err := createIndexes(ctx, m.Collection(name), grouped[name]); err != nil {
			return fmt.Errorf("create %s indexes: %w", name, err)
		}
	}

	return nil
}

// Close disconnects the Mongo client.
func (m *Manager) Close(ctx context.Context) error {
	if m == nil || m.client == nil {
		return nil
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	return m.client.Disconnect(ctx)
}
