package kick

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"tg_moderation_panel/internal/externalapi"
	"tg_moderation_panel/internal/logging"
)

var (
	// ErrInvalidUserID is returned for non-positive target user IDs.
	ErrInvalidUserID = errors.New("user_id is invalid")
	// ErrEmptyScope is returned when the configured scope resolves to no chats.
	ErrEmptyScope = errors.New("no chats are configured for this operation; select bots and chats first")
)

// Request is one kick call.
type Request struct {
	UserID int64
	// PermanentBan overrides the definition default when set.
	PermanentBan *bool
}

// Service resolves, executes, and optionally recovers a kick request.
type Service struct {
	resolver *Resolver
	executor *Executor
	banner   Banner
	rejoiner *Rejoiner
	logger   *logrus.Entry
}

// NewService constructs a Service. rejoiner may be nil to disable recovery.
func NewService(resolver *Resolver, executor *Executor, banner Banner, rejoiner *Rejoiner, logger *logrus.Entry) *Service {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Service{
		resolver: resolver,
		executor: executor,
		banner:   banner,
		rejoiner: rejoiner,
		logger:   logger,
	}
}

// ResolvePermanent applies the caller value when present and the definition
// default otherwise.
func ResolvePermanent(def externalapi.KickDefinition, requested *bool) bool {
	if requested != nil {
		return *requested
	}
	return def.PermanentBanDefault
}

// Kick bans or kicks req.UserID from every chat in def's scope.
func (s *Service) Kick(ctx context.Context, def externalapi.KickDefinition, req Request) (Report, error) {
	if s == nil || s.resolver == nil || s.executor == nil {
		return Report{}, errors.New("kick service is not initialized")
	}
	if ctx == nil {
		return Report{}, errors.New("context is required")
	}
	if req.UserID <= 0 {
		return Report{}, ErrInvalidUserID
	}

	permanent := ResolvePermanent(def, req.PermanentBan)
	scope := NewScope(def.BotID, def.AllChats(), def.ChatIDs)

	resolution, err := s.resolver.Resolve(ctx, scope)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Report{}, fmt.Errorf("%w: %w", ErrCancelled, ctxErr)
		}
		return Report{}, fmt.Errorf("resolve targets: %w", err)
	}
	if resolution.TotalChats == 0 {
		return Report{}, ErrEmptyScope
	}

	report, err := s.executor.Execute(ctx, resolution.Groups, req.UserID, permanent)
	if err != nil {
		return Report{}, err
	}

	if s.rejoiner != nil && s.banner != nil && def.RejoinAccountID > 0 {
		if err := s.recover(ctx, resolution, &report, def.RejoinAccountID, req.UserID, permanent); err != nil {
			return Report{}, err
		}
	}

	report.Message = summaryMessage(permanent, req.UserID, report)

	s.logger.WithFields(logging.Fields{
		"event":     "kick_completed",
		"user_id":   req.UserID,
		"permanent": permanent,
		"total":     report.Total,
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
	}).Info("kick request finished")

	return report, nil
}

// recover retries each "chat not found" failure once after the configured
// account rejoins the chat.
func (s *Service) recover(ctx context.Context, resolution Resolution, report *Report, accountID, userID int64, permanent bool) error {
	index := 0
	for _, group := range resolution.Groups {
		for _, chat := range group.Chats {
			i := index
			index++

			item := report.Items[i]
			if item.Success || !LooksLikeChatNotFound(item.Error) {
				continue
			}
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%w: %w", ErrCancelled, err)
			}

			result := s.rejoiner.TryRejoin(ctx, group.Bot.BotID, accountID, chat)
			if !result.Joined {
				report.Notes = append(report.Notes, result.Failure)
				continue
			}

			retried := item
			failures, err := s.banner.BanChatMembers(ctx, group.Bot.BotID, []int64{chat.TelegramID}, userID, permanent)
			if err != nil && (ctx.Err() != nil || errors.Is(err, context.Canceled)) {
				return fmt.Errorf("%w: %w", ErrCancelled, context.Canceled)
			}
			msg, failed := failures[chat.TelegramID]
			switch {
			case err != nil:
				retried.Success, retried.Error = false, err.Error()
			case failed:
				if msg == "" {
					msg = "unknown error"
				}
				retried.Success, retried.Error = false, msg
			default:
				retried.Success, retried.Error = true, ""
			}
			report.Items[i] = retried

			s.logger.WithFields(logging.Fields{
				"event":   "kick_retried",
				"bot_id":  group.Bot.BotID,
				"chat_id": chat.TelegramID,
				"success": retried.Success,
			}).Info("retried ban after rejoin")
		}
	}

	report.recount()
	return nil
}

func summaryMessage(permanent bool, userID int64, report Report) string {
	action := "Kicked"
	if permanent {
		action = "Banned"
	}
	return fmt.Sprintf("%s user %d from %d/%d chats", action, userID, report.Succeeded, report.Total)
}
