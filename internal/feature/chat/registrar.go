// Package chat keeps the per-bot chat membership records in sync with what
// each bot observes.
package chat

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

	"tg_moderation_panel/internal/logging"
)

type chatCollection interface {
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
}

// Registrar ensures chats are persisted when a bot joins them and removed when
// the bot leaves.
type Registrar struct {
	chats  chatCollection
	logger *logrus.Entry
}

// NewRegistrar constructs a Registrar for the provided bot chats collection.
func NewRegistrar(chats chatCollection, logger *logrus.Entry) *Registrar {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Registrar{
		chats:  chats,
		logger: logger,
	}
}

// EnsureChat upserts the (bot, chat) record and refreshes synced_at on every
// call. The title and chat type are only overwritten when provided.
func (r *Registrar) EnsureChat(ctx context.Context, botID, chatID int64, title, chatType string) (bool, error) {
	if r == nil || r.chats == nil {
		return false, errors.New("chat registrar is not initialized")
	}
	if ctx == nil {
		return false, errors.New("context is required")
	}
	if botID == 0 {
		return false, errors.New("bot id is required")
	}
	if chatID == 0 {
		return false, errors.New("chat id is required")
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	updateTitle := strings.TrimSpace(title)

	setFields := bson.M{"synced_at": now}
	if updateTitle != "" {
		setFields["title"] = updateTitle
	}
	if chatType = strings.TrimSpace(chatType); chatType != "" {
		setFields["chat_type"] = chatType
	}

	update := bson.M{
		"$set": setFields,
		"$setOnInsert": bson.M{
			"bot_id":      botID,
			"telegram_id": chatID,
		},
	}

	result, err := r.chats.UpdateOne(ctx,
		bson.M{"bot_id": botID, "telegram_id": chatID},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("ensure chat: %w", err)
	}

	created := result != nil && result.UpsertedCount > 0
	entry := r.logger.WithFields(logging.Fields{
		"bot_id":  botID,
		"chat_id": chatID,
		"title":   updateTitle,
	})
	if created {
		entry.WithField("event", "chat_registered").Info("registered new bot chat")
		return true, nil
	}

	entry.WithField("event", "chat_seen").Debug("updated bot chat sync time")

	return false, nil
}

// RemoveChat deletes the (bot, chat) record. It reports whether a record existed.
func (r *Registrar) RemoveChat(ctx context.Context, botID, chatID int64) (bool, error) {
	if r == nil || r.chats == nil {
		return false, errors.New("chat registrar is not initialized")
	}
	if ctx == nil {
		return false, errors.New("context is required")
	}
	if botID == 0 || chatID == 0 {
		return false, errors.New("bot id and chat id are required")
	}

	result, err := r.chats.DeleteOne(ctx, bson.M{"bot_id": botID, "telegram_id": chatID})
	if err != nil {
		return false, fmt.Errorf("remove chat: %w", err)
	}

	removed := result != nil && result.DeletedCount > 0
	r.logger.WithFields(logging.Fields{
		"event":   "chat_removed",
		"bot_id":  botID,
		"chat_id": chatID,
		"existed": removed,
	}).Info("removed bot chat")

	return removed, nil
}
