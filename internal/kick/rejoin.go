package kick

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"tg_moderation_panel/internal/domain"
	"tg_moderation_panel/internal/logging"
)

// LooksLikeChatNotFound reports whether a remote failure message carries the
// "chat not found" signature. Both a chat noun ("chat" or "channel") and
// "not found" must appear, in any case.
func LooksLikeChatNotFound(message string) bool {
	lower := strings.ToLower(strings.TrimSpace(message))
	if lower == "" {
		return false
	}

	hasNoun := strings.Contains(lower, "channel") || strings.Contains(lower, "chat")
	return hasNoun && strings.Contains(lower, "not found")
}

// InviteExporter exports a fresh invite link through a bot.
type InviteExporter interface {
	ExportInviteLink(ctx context.Context, botID, chatID int64) (string, error)
}

// JoinResult is what the account client reports after a join attempt.
type JoinResult struct {
	Success   bool
	Error     string
	ChatID    int64
	ChatTitle string
}

// ChatJoiner joins a chat through a user-session account.
type ChatJoiner interface {
	JoinChat(ctx context.Context, accountID int64, link string) (JoinResult, error)
}

// RejoinResult is the outcome of one recovery attempt. Failure is set
// whenever Joined is false.
type RejoinResult struct {
	Joined  bool
	Failure string
}

// Rejoiner re-establishes chat membership so a failed action can be retried.
type Rejoiner struct {
	invites InviteExporter
	joiner  ChatJoiner
	logger  *logrus.Entry
}

// NewRejoiner constructs a Rejoiner.
func NewRejoiner(invites InviteExporter, joiner ChatJoiner, logger *logrus.Entry) *Rejoiner {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Rejoiner{invites: invites, joiner: joiner, logger: logger}
}

// TryRejoin exports an invite link for chat through botID and has accountID
// join through it. It never retries the original action.
func (r *Rejoiner) TryRejoin(ctx context.Context, botID, accountID int64, chat domain.BotChat) RejoinResult {
	fail := func(err error) RejoinResult {
		r.logWith(botID, accountID, chat).WithError(err).Warn("account rejoin failed")
		return RejoinResult{Failure: fmt.Sprintf("%s: account failed to join chat: %s", chat.Title, err.Error())}
	}

	if r == nil || r.invites == nil || r.joiner == nil {
		return RejoinResult{Failure: fmt.Sprintf("%s: account failed to join chat: rejoin is not configured", chat.Title)}
	}
	if ctx == nil {
		return fail(errors.New("context is required"))
	}

	link, err := r.invites.ExportInviteLink(ctx, botID, chat.TelegramID)
	if err != nil {
		return fail(fmt.Errorf("export invite link: %w", err))
	}

	joined, err := r.joiner.JoinChat(ctx, accountID, link)
	if err != nil {
		return fail(err)
	}
	if !joined.Success {
		reason := strings.TrimSpace(joined.Error)
		if reason == "" {
			reason = "unknown error"
		}
		return fail(errors.New(reason))
	}

	r.logWith(botID, accountID, chat).Info("account rejoined chat")

	return RejoinResult{Joined: true}
}

func (r *Rejoiner) logWith(botID, accountID int64, chat domain.BotChat) *logrus.Entry {
	logger := logging.Logger()
	if r != nil && r.logger != nil {
		logger = r.logger
	}

	return logger.WithFields(logging.Fields{
		"event":      "kick_rejoin",
		"bot_id":     botID,
		"account_id": accountID,
		"chat_id":    chat.TelegramID,
	})
}
