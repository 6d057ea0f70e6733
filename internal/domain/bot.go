// Package domain defines shared domain records and their MongoDB repositories.
package domain

import "time"

// Bot is a Bot API credential used to perform moderation actions.
type Bot struct {
	BotID     int64     `bson:"bot_id" json:"bot_id"`
	Name      string    `bson:"name" json:"name"`
	Token     string    `bson:"token" json:"-"`
	IsActive  bool      `bson:"is_active" json:"is_active"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// BotChat is a group or channel reachable by a given bot.
type BotChat struct {
	BotID      int64     `bson:"bot_id" json:"bot_id"`
	TelegramID int64     `bson:"telegram_id" json:"telegram_id"`
	Title      string    `bson:"title" json:"title"`
	ChatType   string    `bson:"chat_type,omitempty" json:"chat_type,omitempty"`
	SyncedAt   time.Time `bson:"synced_at" json:"synced_at"`
}
