// Package kick turns one "remove user X" request into per-bot, per-chat ban
// calls and aggregates their outcomes into a single report.
package kick

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"tg_moderation_panel/internal/domain"
	"tg_moderation_panel/internal/logging"
)

// Scope selects which bots and chats a request acts on.
type Scope struct {
	BotID       int64
	UseAllChats bool
	ChatIDs     []int64
}

// NewScope builds a Scope. A zero botID selects every active bot and forces
// UseAllChats; zero chat IDs are dropped.
func NewScope(botID int64, useAllChats bool, chatIDs []int64) Scope {
	if botID == 0 {
		useAllChats = true
	}

	ids := make([]int64, 0, len(chatIDs))
	for _, id := range chatIDs {
		if id != 0 {
			ids = append(ids, id)
		}
	}

	return Scope{BotID: botID, UseAllChats: useAllChats, ChatIDs: ids}
}

// TargetGroup binds one bot to the chats it will act on. It is the unit of
// fan-out: one remote bulk call per group.
type TargetGroup struct {
	Bot   domain.Bot
	Chats []domain.BotChat
}

// ChatIDs returns the group's chat IDs in order.
func (g TargetGroup) ChatIDs() []int64 {
	ids := make([]int64, 0, len(g.Chats))
	for _, chat := range g.Chats {
		ids = append(ids, chat.TelegramID)
	}
	return ids
}

// Resolution is the concrete work list for a Scope.
type Resolution struct {
	Groups     []TargetGroup
	TotalChats int
}

// BotLister lists active bots.
type BotLister interface {
	ListActiveBots(ctx context.Context) ([]domain.Bot, error)
}

// ChatLister lists the chats known for a bot.
type ChatLister interface {
	ListChatsForBot(ctx context.Context, botID int64) ([]domain.BotChat, error)
}

// Resolver expands a Scope against the bot and chat store.
type Resolver struct {
	bots   BotLister
	chats  ChatLister
	logger *logrus.Entry
}

// NewResolver constructs a Resolver.
func NewResolver(bots BotLister, chats ChatLister, logger *logrus.Entry) *Resolver {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Resolver{bots: bots, chats: chats, logger: logger}
}

// Resolve returns one group per bot that has at least one chat in scope,
// ordered by bot ID. Bots without matching chats are omitted.
func (r *Resolver) Resolve(ctx context.Context, scope Scope) (Resolution, error) {
	if r == nil || r.bots == nil || r.chats == nil {
		return Resolution{}, errors.New("target resolver is not initialized")
	}
	if ctx == nil {
		return Resolution{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Resolution{}, err
	}

	bots, err := r.bots.ListActiveBots(ctx)
	if err != nil {
		return Resolution{}, fmt.Errorf("list active bots: %w", err)
	}

	candidates := make([]domain.Bot, 0, len(bots))
	for _, bot := range bots {
		if !bot.IsActive {
			continue
		}
		if scope.BotID > 0 && bot.BotID != scope.BotID {
			continue
		}
		candidates = append(candidates, bot)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].BotID < candidates[j].BotID
	})

	var wanted map[int64]struct{}
	if !scope.UseAllChats && len(scope.ChatIDs) > 0 {
		wanted = make(map[int64]struct{}, len(scope.ChatIDs))
		for _, id := range scope.ChatIDs {
			wanted[id] = struct{}{}
		}
	}

	resolution := Resolution{Groups: make([]TargetGroup, 0, len(candidates))}
	for _, bot := range candidates {
		if err := ctx.Err(); err != nil {
			return Resolution{}, err
		}

		chats, err := r.chats.ListChatsForBot(ctx, bot.BotID)
		if err != nil {
			return Resolution{}, fmt.Errorf("list chats for bot %d: %w", bot.BotID, err)
		}

		if wanted != nil {
			filtered := make([]domain.BotChat, 0, len(chats))
			for _, chat := range chats {
				if _, ok := wanted[chat.TelegramID]; ok {
					filtered = append(filtered, chat)
				}
			}
			chats = filtered
		}

		if len(chats) == 0 {
			continue
		}

		resolution.Groups = append(resolution.Groups, TargetGroup{Bot: bot, Chats: chats})
		resolution.TotalChats += len(chats)
	}

	r.logger.WithFields(logging.Fields{
		"event":       "kick_targets_resolved",
		"scope_bot":   scope.BotID,
		"all_chats":   scope.UseAllChats,
		"groups":      len(resolution.Groups),
		"total_chats": resolution.TotalChats,
	}).Debug("resolved kick targets")

	return resolution, nil
}
