package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"tg_moderation_panel/internal/domain"
	"tg_moderation_panel/internal/logging"
)

var allowedUpdates = bot.AllowedUpdates{
	"message",
	"my_chat_member",
}

// ChatRegistrar persists the chats a bot belongs to.
type ChatRegistrar interface {
	EnsureChat(ctx context.Context, botID, chatID int64, title, chatType string) (bool, error)
	RemoveChat(ctx context.Context, botID, chatID int64) (bool, error)
}

// Listen long-polls every bot until ctx is canceled, keeping the chat store in
// sync with membership changes. Bots whose client cannot be created are
// skipped and reported in the returned error.
func (p *Pool) Listen(ctx context.Context, bots []domain.Bot) error {
	if p == nil {
		return errors.New("telegram pool is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	var (
		wg      sync.WaitGroup
		initErr []error
	)

	for _, record := range bots {
		p.mu.Lock()
		c, ok := p.clients[record.BotID]
		var err error
		if !ok {
			c, err = p.newClientLocked(record)
		}
		p.mu.Unlock()
		if err != nil {
			initErr = append(initErr, err)
			p.logger.WithError(err).WithField("bot_id", record.BotID).Error("skipping bot listener")
			continue
		}

		wg.Add(1)
		go func(botID int64, c botAPI) {
			defer wg.Done()

			entry := p.logger.WithFields(logging.Fields{"bot_id": botID})
			entry.WithFields(logging.Fields{
				"event":           "telegram_listen",
				"allowed_updates": allowedUpdates,
			}).Info("starting telegram long polling")

			c.Start(ctx)

			entry.WithField("event", "telegram_stopped").Info("telegram polling stopped")
		}(record.BotID, c)
	}

	wg.Wait()

	return errors.Join(initErr...)
}

type updateMeta struct {
	userID     int64
	chatID     int64
	text       string
	updateType string
}

func (p *Pool) updateHandler(botID int64, logger *logrus.Entry) bot.HandlerFunc {
	return func(ctx context.Context, _ *bot.Bot, update *models.Update) {
		if update == nil {
			return
		}

		meta := extractUpdateMeta(update)
		fields := logging.Fields{
			"event":       "telegram_update",
			"update_type": meta.updateType,
		}
		if meta.userID != 0 {
			fields["user_id"] = meta.userID
		}
		if meta.chatID != 0 {
			fields["chat_id"] = meta.chatID
		}
		logger.WithFields(fields).Debug("telegram update received")

		if update.MyChatMember != nil {
			if err := p.applyMembership(ctx, botID, update.MyChatMember); err != nil {
				logger.WithError(err).WithField("chat_id", meta.chatID).Error("failed to record chat membership")
			}
		}
	}
}

// applyMembership records the bot joining or leaving a chat.
func (p *Pool) applyMembership(ctx context.Context, botID int64, change *models.ChatMemberUpdated) error {
	if p.registrar == nil || change == nil {
		return nil
	}

	chat := change.Chat
	switch change.NewChatMember.Type {
	case models.ChatMemberTypeOwner, models.ChatMemberTypeAdministrator, models.ChatMemberTypeMember:
		_, err := p.registrar.EnsureChat(ctx, botID, chat.ID, chatTitle(chat), string(chat.Type))
		return err
	case models.ChatMemberTypeLeft, models.ChatMemberTypeBanned:
		_, err := p.registrar.RemoveChat(ctx, botID, chat.ID)
		return err
	default:
		return nil
	}
}

func chatTitle(chat models.Chat) string {
	if title := strings.TrimSpace(chat.Title); title != "" {
		return title
	}
	if chat.Username != "" {
		return "@" + chat.Username
	}
	return strings.TrimSpace(chat.FirstName + " " + chat.LastName)
}

func extractUpdateMeta(update *models.Update) updateMeta {
	switch {
	case update.Message != nil:
		meta := updateMeta{
			chatID:     update.Message.Chat.ID,
			text:       strings.TrimSpace(update.Message.Text),
			updateType: "message",
		}
		if update.Message.From != nil {
			meta.userID = update.Message.From.ID
		}
		return meta
	case update.MyChatMember != nil:
		return updateMeta{
			userID:     update.MyChatMember.From.ID,
			chatID:     update.MyChatMember.Chat.ID,
			updateType: "my_chat_member",
		}
	default:
		return updateMeta{updateType: "unknown"}
	}
}

func errorHandler(logger *logrus.Entry) bot.ErrorsHandler {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(err error) {
		if err == nil {
			return
		}

		logger.WithField("event", "telegram_error").WithError(err).Error("telegram polling error")
	}
}
