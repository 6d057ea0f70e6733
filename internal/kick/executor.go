package kick

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"tg_moderation_panel/internal/logging"
)

// ErrCancelled is returned when the request was cancelled before the fan-out
// completed. No report accompanies it.
var ErrCancelled = errors.New("kick cancelled")

// Banner performs the remote bulk ban for one bot. The returned map holds an
// error message for every chat that failed; absent chats succeeded.
type Banner interface {
	BanChatMembers(ctx context.Context, botID int64, chatIDs []int64, userID int64, permanent bool) (map[int64]string, error)
}

// OutcomeItem is the result for one chat. An empty Error means none.
type OutcomeItem struct {
	BotID   int64
	ChatID  int64
	Title   string
	Success bool
	Error   string
}

// Report aggregates every chat outcome of one request.
type Report struct {
	Total     int
	Succeeded int
	Failed    int
	Items     []OutcomeItem
	// Notes collects rejoin failures.
	Notes   []string
	Message string
}

func newReport(items []OutcomeItem) Report {
	report := Report{Items: items, Notes: make([]string, 0)}
	report.recount()
	return report
}

func (r *Report) recount() {
	r.Total = len(r.Items)
	r.Succeeded = 0
	for _, item := range r.Items {
		if item.Success {
			r.Succeeded++
		}
	}
	r.Failed = r.Total - r.Succeeded
}

// Executor runs one bulk ban per target group and merges the outcomes in
// resolution order.
type Executor struct {
	banner  Banner
	workers int
	logger  *logrus.Entry
}

// NewExecutor constructs an Executor. workers bounds how many groups run at
// once; values below 2 run groups sequentially.
func NewExecutor(banner Banner, workers int, logger *logrus.Entry) *Executor {
	if logger == nil {
		logger = logging.Logger()
	}
	if workers < 1 {
		workers = 1
	}

	return &Executor{banner: banner, workers: workers, logger: logger}
}

// Execute bans userID from every chat in groups. Group failures are recorded
// per chat and never stop sibling groups. Cancellation, whether seen before a
// group starts or reported by its bulk call, discards the partial report.
func (e *Executor) Execute(ctx context.Context, groups []TargetGroup, userID int64, permanent bool) (Report, error) {
	if e == nil || e.banner == nil {
		return Report{}, errors.New("fan-out executor is not initialized")
	}
	if ctx == nil {
		return Report{}, errors.New("context is required")
	}

	slots := make([][]OutcomeItem, len(groups))

	if e.workers <= 1 || len(groups) <= 1 {
		for i, group := range groups {
			if err := ctx.Err(); err != nil {
				return Report{}, fmt.Errorf("%w: %w", ErrCancelled, err)
			}
			items, err := e.runGroup(ctx, group, userID, permanent)
			if err != nil {
				return Report{}, err
			}
			slots[i] = items
		}
	} else {
		var g errgroup.Group
		g.SetLimit(e.workers)
		for i, group := range groups {
			i, group := i, group
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return fmt.Errorf("%w: %w", ErrCancelled, err)
				}
				items, err := e.runGroup(ctx, group, userID, permanent)
				if err != nil {
					return err
				}
				slots[i] = items
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return Report{}, err
		}
	}

	total := 0
	for _, slot := range slots {
		total += len(slot)
	}
	items := make([]OutcomeItem, 0, total)
	for _, slot := range slots {
		items = append(items, slot...)
	}

	return newReport(items), nil
}

// runGroup returns a non-nil error only for cancellation.
func (e *Executor) runGroup(ctx context.Context, group TargetGroup, userID int64, permanent bool) (items []OutcomeItem, err error) {
	entry := e.logger.WithFields(logging.Fields{
		"event":   "kick_group",
		"bot_id":  group.Bot.BotID,
		"user_id": userID,
		"chats":   len(group.Chats),
	})

	defer func() {
		if recovered := recover(); recovered != nil {
			entry.WithField("panic", recovered).Error("bulk ban panicked")
			items, err = failAll(group, fmt.Sprintf("bulk ban panicked: %v", recovered)), nil
		}
	}()

	failures, err := e.banner.BanChatMembers(ctx, group.Bot.BotID, group.ChatIDs(), userID, permanent)
	if err != nil {
		if cause := ctx.Err(); cause != nil || errors.Is(err, context.Canceled) {
			if cause == nil {
				cause = context.Canceled
			}
			entry.WithError(err).Info("bulk ban cancelled")
			return nil, fmt.Errorf("%w: %w", ErrCancelled, cause)
		}
		entry.WithError(err).Warn("bulk ban failed for bot")
		return failAll(group, err.Error()), nil
	}

	items = make([]OutcomeItem, 0, len(group.Chats))
	for _, chat := range group.Chats {
		msg, failed := failures[chat.TelegramID]
		if failed && msg == "" {
			msg = "unknown error"
		}
		items = append(items, OutcomeItem{
			BotID:   group.Bot.BotID,
			ChatID:  chat.TelegramID,
			Title:   chat.Title,
			Success: !failed,
			Error:   msg,
		})
	}

	entry.WithField("failed", len(failures)).Debug("bulk ban finished for bot")

	return items, nil
}

func failAll(group TargetGroup, msg string) []OutcomeItem {
	items := make([]OutcomeItem, 0, len(group.Chats))
	for _, chat := range group.Chats {
		items = append(items, OutcomeItem{
			BotID:  group.Bot.BotID,
			ChatID: chat.TelegramID,
			Title:  chat.Title,
			Error:  msg,
		})
	}
	return items
}
