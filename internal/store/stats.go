package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type countCollection interface {
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

// Stats is a point-in-time view of the stored records.
type Stats struct {
	Bots       int64
	ActiveBots int64
	Chats      int64
	Accounts   int64
}

// StatsProvider exposes helper methods to retrieve collection counts for basic
// diagnostics without leaking MongoDB internals to callers.
type StatsProvider struct {
	bots     countCollection
	chats    countCollection
	accounts countCollection
}

// NewStatsProvider constructs a StatsProvider backed by the provided collections.
func NewStatsProvider(bots, chats, accounts countCollection) *StatsProvider {
	return &StatsProvider{
		bots:     bots,
		chats:    chats,
		accounts: accounts,
	}
}

// Collect counts bots, active bots, chats, and accounts.
func (p *StatsProvider) Collect(ctx context.Context) (Stats, error) {
	if ctx == nil {
		return Stats{}, errors.New("context is required")
	}
	if p == nil || p.bots == nil || p.chats == nil || p.accounts == nil {
		return Stats{}, errors.New("stats provider is not initialized")
	}

	var (
		stats Stats
		err   error
	)

	if stats.Bots, err = p.bots.CountDocuments(ctx, bson.D{}); err != nil {
		return Stats{}, fmt.Errorf("count bots: %w", err)
	}
	if stats.ActiveBots, err = p.bots.CountDocuments(ctx, bson.D{{Key: "is_active", Value: true}}); err != nil {
		return Stats{}, fmt.Errorf("count active bots: %w", err)
	}
	if stats.Chats, err = p.chats.CountDocuments(ctx, bson.D{}); err != nil {
		return Stats{}, fmt.Errorf("count chats: %w", err)
	}
	if stats.Accounts, err = p.accounts.CountDocuments(ctx, bson.D{}); err != nil {
		return Stats{}, fmt.Errorf("count accounts: %w", err)
	}

	return stats, nil
}
