package telegram

import (
	"context"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"tg_moderation_panel/internal/domain"
)

type registrarCall struct {
	op       string
	botID    int64
	chatID   int64
	title    string
	chatType string
}

type fakeRegistrar struct {
	calls []registrarCall
}

func (f *fakeRegistrar) EnsureChat(_ context.Context, botID, chatID int64, title, chatType string) (bool, error) {
	f.calls = append(f.calls, registrarCall{op: "ensure", botID: botID, chatID: chatID, title: title, chatType: chatType})
	return true, nil
}

func (f *fakeRegistrar) RemoveChat(_ context.Context, botID, chatID int64) (bool, error) {
	f.calls = append(f.calls, registrarCall{op: "remove", botID: botID, chatID: chatID})
	return true, nil
}

func membershipUpdate(chat models.Chat, status models.ChatMemberType) *models.Update {
	return &models.Update{
		MyChatMember: &models.ChatMemberUpdated{
			Chat:          chat,
			From:          models.User{ID: 500},
			NewChatMember: models.ChatMember{Type: status},
		},
	}
}

func TestUpdateHandlerRoutesMembership(t *testing.T) {
	registrar := &fakeRegistrar{}
	pool := newTestPool(&fakeTokens{}, registrar)
	logger, _ := logtest.NewNullLogger()
	handler := pool.updateHandler(9, logrus.NewEntry(logger))

	handler(context.Background(), nil, membershipUpdate(models.Chat{ID: -1, Title: "Ops", Type: models.ChatTypeSupergroup}, models.ChatMemberTypeAdministrator))
	handler(context.Background(), nil, membershipUpdate(models.Chat{ID: -2, Username: "news", Type: models.ChatTypeChannel}, models.ChatMemberTypeMember))
	handler(context.Background(), nil, membershipUpdate(models.Chat{ID: -1}, models.ChatMemberTypeBanned))
	handler(context.Background(), nil, membershipUpdate(models.Chat{ID: -3}, models.ChatMemberTypeLeft))
	handler(context.Background(), nil, membershipUpdate(models.Chat{ID: -4}, models.ChatMemberTypeRestricted))
	handler(context.Background(), nil, &models.Update{Message: &models.Message{Chat: models.Chat{ID: -5}, Text: "hi"}})
	handler(context.Background(), nil, nil)

	want := []registrarCall{
		{op: "ensure", botID: 9, chatID: -1, title: "Ops", chatType: "supergroup"},
		{op: "ensure", botID: 9, chatID: -2, title: "@news", chatType: "channel"},
		{op: "remove", botID: 9, chatID: -1},
		{op: "remove", botID: 9, chatID: -3},
	}
	if len(registrar.calls) != len(want) {
		t.Fatalf("expected %d registrar calls, got %+v", len(want), registrar.calls)
	}
	for i := range want {
		if registrar.calls[i] != want[i] {
			t.Fatalf("call %d: expected %+v, got %+v", i, want[i], registrar.calls[i])
		}
	}
}

func TestExtractUpdateMeta(t *testing.T) {
	tests := []struct {
		name   string
		update *models.Update
		want   updateMeta
	}{
		{
			name: "message",
			update: &models.Update{
				Message: &models.Message{
					From: &models.User{ID: 10},
					Chat: models.Chat{ID: 20},
					Text: " hello ",
				},
			},
			want: updateMeta{userID: 10, chatID: 20, text: "hello", updateType: "message"},
		},
		{
			name:   "my chat member",
			update: membershipUpdate(models.Chat{ID: 23}, models.ChatMemberTypeMember),
			want:   updateMeta{userID: 500, chatID: 23, updateType: "my_chat_member"},
		},
		{
			name:   "unknown",
			update: &models.Update{},
			want:   updateMeta{updateType: "unknown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractUpdateMeta(tt.update); got != tt.want {
				t.Fatalf("extractUpdateMeta() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestListenStartsEveryBotUntilCanceled(t *testing.T) {
	a := &fakeBot{started: make(chan struct{})}
	b := &fakeBot{started: make(chan struct{})}
	withFakeBots(t, map[string]*fakeBot{"a": a, "b": b})

	hookLogger, hook := logtest.NewNullLogger()
	pool := NewPool(&fakeTokens{}, &fakeRegistrar{}, time.Second, logrus.NewEntry(hookLogger))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- pool.Listen(ctx, []domain.Bot{
			{BotID: 1, Token: "a"},
			{BotID: 2, Token: "b"},
			{BotID: 3, Token: "unknown"},
		})
	}()

	for _, fb := range []*fakeBot{a, b} {
		select {
		case <-fb.started:
		case <-time.After(2 * time.Second):
			t.Fatalf("bot did not start polling")
		}
	}
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected init error for bot with invalid token")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Listen did not return after cancellation")
	}

	stopped := 0
	for _, entry := range hook.AllEntries() {
		if entry.Data["event"] == "telegram_stopped" {
			stopped++
		}
	}
	if stopped != 2 {
		t.Fatalf("expected 2 stop log entries, got %d", stopped)
	}
}
