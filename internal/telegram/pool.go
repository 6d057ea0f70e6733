// Package telegram drives the Bot API on behalf of every stored bot: bulk
// bans, invite link export, and chat membership tracking.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/sirupsen/logrus"

	"tg_moderation_panel/internal/domain"
	"tg_moderation_panel/internal/logging"
)

const defaultCallTimeout = 15 * time.Second

type botAPI interface {
	Start(ctx context.Context)
	BanChatMember(ctx context.Context, params *bot.BanChatMemberParams) (bool, error)
	UnbanChatMember(ctx context.Context, params *bot.UnbanChatMemberParams) (bool, error)
	ExportChatInviteLink(ctx context.Context, params *bot.ExportChatInviteLinkParams) (string, error)
}

// createBot is overridable for tests.
var createBot = func(token string, options ...bot.Option) (botAPI, error) {
	return bot.New(token, options...)
}

// TokenSource looks up a stored bot credential.
type TokenSource interface {
	GetByID(ctx context.Context, botID int64) (domain.Bot, error)
}

// Pool lazily creates one Bot API client per bot and reuses it.
type Pool struct {
	tokens    TokenSource
	registrar ChatRegistrar
	timeout   time.Duration
	logger    *logrus.Entry

	mu      sync.Mutex
	clients map[int64]botAPI
}

// NewPool constructs a Pool. registrar may be nil when membership updates are
// not consumed. timeout bounds every remote call.
func NewPool(tokens TokenSource, registrar ChatRegistrar, timeout time.Duration, logger *logrus.Entry) *Pool {
	if logger == nil {
		logger = logging.Logger()
	}
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}

	return &Pool{
		tokens:    tokens,
		registrar: registrar,
		timeout:   timeout,
		logger:    logger,
		clients:   make(map[int64]botAPI),
	}
}

func (p *Pool) client(ctx context.Context, botID int64) (botAPI, error) {
	if p == nil || p.tokens == nil {
		return nil, errors.New("telegram pool is not initialized")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[botID]; ok {
		return c, nil
	}

	record, err := p.tokens.GetByID(ctx, botID)
	if err != nil {
		return nil, fmt.Errorf("load bot %d: %w", botID, err)
	}
	return p.newClientLocked(record)
}

func (p *Pool) newClientLocked(record domain.Bot) (botAPI, error) {
	token := strings.TrimSpace(record.Token)
	if token == "" {
		return nil, fmt.Errorf("bot %d has no token", record.BotID)
	}

	logger := p.logger.WithField("bot_id", record.BotID)
	c, err := createBot(token,
		bot.WithSkipGetMe(),
		bot.WithAllowedUpdates(allowedUpdates),
		bot.WithDefaultHandler(p.updateHandler(record.BotID, logger)),
		bot.WithErrorsHandler(errorHandler(logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("init telegram client for bot %d: %w", record.BotID, err)
	}

	p.clients[record.BotID] = c
	return c, nil
}

// BanChatMembers removes userID from every chat through botID. A permanent
// ban keeps the user banned; otherwise the user is unbanned right away so they
// may rejoin later. The returned map holds the error text for each failed chat.
// Calls are detached from ctx cancellation so a started batch finishes; each
// call is bounded by the pool timeout.
func (p *Pool) BanChatMembers(ctx context.Context, botID int64, chatIDs []int64, userID int64, permanent bool) (map[int64]string, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	c, err := p.client(ctx, botID)
	if err != nil {
		return nil, err
	}

	detached := context.WithoutCancel(ctx)
	failures := make(map[int64]string)
	for _, chatID := range chatIDs {
		if err := p.banOne(detached, c, chatID, userID, permanent); err != nil {
			failures[chatID] = err.Error()
		}
	}

	p.logger.WithFields(logging.Fields{
		"event":     "telegram_bulk_ban",
		"bot_id":    botID,
		"user_id":   userID,
		"permanent": permanent,
		"chats":     len(chatIDs),
		"failed":    len(failures),
	}).Info("bulk ban finished")

	return failures, nil
}

func (p *Pool) banOne(ctx context.Context, c botAPI, chatID, userID int64, permanent bool) error {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ok, err := c.BanChatMember(callCtx, &bot.BanChatMemberParams{
		ChatID:         chatID,
		UserID:         userID,
		RevokeMessages: permanent,
	})
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("ban was not applied")
	}
	if permanent {
		return nil
	}

	unbanCtx, cancelUnban := context.WithTimeout(ctx, p.timeout)
	defer cancelUnban()

	if _, err := c.UnbanChatMember(unbanCtx, &bot.UnbanChatMemberParams{
		ChatID:       chatID,
		UserID:       userID,
		OnlyIfBanned: true,
	}); err != nil {
		return fmt.Errorf("unban after kick: %w", err)
	}

	return nil
}

// ExportInviteLink creates a fresh primary invite link for chatID through botID.
func (p *Pool) ExportInviteLink(ctx context.Context, botID, chatID int64) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}

	c, err := p.client(ctx, botID)
	if err != nil {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	link, err := c.ExportChatInviteLink(callCtx, &bot.ExportChatInviteLinkParams{ChatID: chatID})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(link) == "" {
		return "", errors.New("empty invite link")
	}

	return link, nil
}
