package kick

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"tg_moderation_panel/internal/domain"
)

func nullLogger() *logrus.Entry {
	logger, _ := logtest.NewNullLogger()
	return logrus.NewEntry(logger)
}

type fakeStore struct {
	bots     []domain.Bot
	chats    map[int64][]domain.BotChat
	botsErr  error
	chatsErr error

	mu        sync.Mutex
	chatCalls []int64
	onList    func(botID int64)
}

func (f *fakeStore) ListActiveBots(context.Context) ([]domain.Bot, error) {
	if f.botsErr != nil {
		return nil, f.botsErr
	}
	out := make([]domain.Bot, 0, len(f.bots))
	for _, bot := range f.bots {
		if bot.IsActive {
			out = append(out, bot)
		}
	}
	return out, nil
}

func (f *fakeStore) ListChatsForBot(_ context.Context, botID int64) ([]domain.BotChat, error) {
	f.mu.Lock()
	f.chatCalls = append(f.chatCalls, botID)
	f.mu.Unlock()

	if f.onList != nil {
		f.onList(botID)
	}
	if f.chatsErr != nil {
		return nil, f.chatsErr
	}
	return append([]domain.BotChat(nil), f.chats[botID]...), nil
}

type banCall struct {
	botID     int64
	chatIDs   []int64
	userID    int64
	permanent bool
}

type fakeBanner struct {
	mu       sync.Mutex
	calls    []banCall
	failures map[int64]string
	groupErr map[int64]error
	panicFor map[int64]bool
	// retryFailures replaces failures after the first call for a chat.
	retryFailures map[int64]string
	seen          map[int64]int
	onBan         func(botID int64)
}

func (f *fakeBanner) BanChatMembers(_ context.Context, botID int64, chatIDs []int64, userID int64, permanent bool) (map[int64]string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, banCall{botID: botID, chatIDs: append([]int64(nil), chatIDs...), userID: userID, permanent: permanent})
	if f.seen == nil {
		f.seen = make(map[int64]int)
	}
	attempts := make(map[int64]int, len(chatIDs))
	for _, id := range chatIDs {
		f.seen[id]++
		attempts[id] = f.seen[id]
	}
	f.mu.Unlock()

	if f.onBan != nil {
		f.onBan(botID)
	}
	if f.panicFor[botID] {
		panic("boom")
	}
	if err := f.groupErr[botID]; err != nil {
		return nil, err
	}

	out := make(map[int64]string)
	for _, id := range chatIDs {
		source := f.failures
		if attempts[id] > 1 && f.retryFailures != nil {
			source = f.retryFailures
		}
		if msg, ok := source[id]; ok {
			out[id] = msg
		}
	}
	return out, nil
}

func (f *fakeBanner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeInvites struct {
	link  string
	err   error
	calls int
}

func (f *fakeInvites) ExportInviteLink(context.Context, int64, int64) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.link, nil
}

type fakeJoiner struct {
	result   JoinResult
	err      error
	accounts []int64
	links    []string
}

func (f *fakeJoiner) JoinChat(_ context.Context, accountID int64, link string) (JoinResult, error) {
	f.accounts = append(f.accounts, accountID)
	f.links = append(f.links, link)
	if f.err != nil {
		return JoinResult{}, f.err
	}
	return f.result, nil
}

var errStore = errors.New("store offline")

// twoBotStore is bot A (1) with chats 100, 101 and bot B (2) with chat 200.
func twoBotStore() *fakeStore {
	return &fakeStore{
		bots: []domain.Bot{
			{BotID: 2, Name: "B", IsActive: true},
			{BotID: 1, Name: "A", IsActive: true},
			{BotID: 3, Name: "inactive", IsActive: false},
		},
		chats: map[int64][]domain.BotChat{
			1: {{BotID: 1, TelegramID: 100, Title: "A-100"}, {BotID: 1, TelegramID: 101, Title: "A-101"}},
			2: {{BotID: 2, TelegramID: 200, Title: "B-200"}},
			3: {{BotID: 3, TelegramID: 300, Title: "never"}},
		},
	}
}
