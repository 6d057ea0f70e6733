// Package bot provides helpers for registering bot credentials and toggling
// whether they take part in moderation fan-outs.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tg_moderation_panel/internal/domain"
	"tg_moderation_panel/internal/logging"
)

type botCollection interface {
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// Registrar bootstraps and updates bot credential records.
type Registrar struct {
	bots   botCollection
	logger *logrus.Entry
}

// NewRegistrar constructs a Registrar for the provided bots collection.
func NewRegistrar(bots botCollection, logger *logrus.Entry) *Registrar {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Registrar{
		bots:   bots,
		logger: logger,
	}
}

// EnsureBot upserts the bot identified by BotID, overwriting its name, token,
// and active flag.
func (r *Registrar) EnsureBot(ctx context.Context, bot domain.Bot) (bool, error) {
	if r == nil || r.bots == nil {
		return false, errors.New("bot registrar is not initialized")
	}
	if ctx == nil {
		return false, errors.New("context is required")
	}
	if bot.BotID <= 0 {
		return false, errors.New("bot id must be positive")
	}
	token := strings.TrimSpace(bot.Token)
	if token == "" {
		return false, errors.New("bot token is required")
	}

	now := time.Now().UTC().Truncate(time.Millisecond)

	result, err := r.bots.UpdateOne(ctx,
		bson.M{"bot_id": bot.BotID},
		bson.M{
			"$set": bson.M{
				"name":       strings.TrimSpace(bot.Name),
				"token":      token,
				"is_active":  bot.IsActive,
				"updated_at": now,
			},
			"$setOnInsert": bson.M{
				"bot_id":     bot.BotID,
				"created_at": now,
			},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("ensure bot: %w", err)
	}

	created := result != nil && result.UpsertedCount > 0
	r.logger.WithFields(logging.Fields{
		"event":     "bot_registered",
		"bot_id":    bot.BotID,
		"is_active": bot.IsActive,
		"created":   created,
	}).Info("ensured bot credential")

	return created, nil
}

// SetActive flips the active flag of an existing bot.
func (r *Registrar) SetActive(ctx context.Context, botID int64, active bool) error {
	if r == nil || r.bots == nil {
		return errors.New("bot registrar is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if botID <= 0 {
		return errors.New("bot id must be positive")
	}

	result, err := r.bots.UpdateOne(ctx,
		bson.M{"bot_id": botID},
		bson.M{"$set": bson.M{
			"is_active":  active,
			"updated_at": time.Now().UTC().Truncate(time.Millisecond),
		}},
	)
	if err != nil {
		return fmt.Errorf("set bot active: %w", err)
	}
	if result == nil || result.MatchedCount == 0 {
		return fmt.Errorf("bot %d: %w", botID, domain.ErrBotNotFound)
	}

	r.logger.WithFields(logging.Fields{
		"event":     "bot_toggled",
		"bot_id":    botID,
		"is_active": active,
	}).Info("updated bot active flag")

	return nil
}
