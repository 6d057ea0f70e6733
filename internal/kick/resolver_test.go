package kick

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tg_moderation_panel/internal/domain"
)

func chatIDsOf(res Resolution) [][]int64 {
	out := make([][]int64, 0, len(res.Groups))
	for _, g := range res.Groups {
		out = append(out, g.ChatIDs())
	}
	return out
}

func TestNewScopeForcesAllChatsForAllBots(t *testing.T) {
	scope := NewScope(0, false, []int64{100, 0, 200})

	assert.True(t, scope.UseAllChats)
	assert.Equal(t, []int64{100, 200}, scope.ChatIDs)

	scope = NewScope(5, false, []int64{0})
	assert.False(t, scope.UseAllChats)
	assert.Empty(t, scope.ChatIDs)
}

func TestResolveAllBotsAllChats(t *testing.T) {
	resolver := NewResolver(twoBotStore(), twoBotStore(), nullLogger())

	res, err := resolver.Resolve(context.Background(), NewScope(0, true, nil))
	require.NoError(t, err)

	require.Len(t, res.Groups, 2)
	assert.Equal(t, int64(1), res.Groups[0].Bot.BotID)
	assert.Equal(t, int64(2), res.Groups[1].Bot.BotID)
	assert.Equal(t, [][]int64{{100, 101}, {200}}, chatIDsOf(res))
	assert.Equal(t, 3, res.TotalChats)
}

func TestResolveBotZeroIgnoresChatFilter(t *testing.T) {
	store := twoBotStore()
	resolver := NewResolver(store, store, nullLogger())

	res, err := resolver.Resolve(context.Background(), NewScope(0, false, []int64{101}))
	require.NoError(t, err)

	assert.Equal(t, [][]int64{{100, 101}, {200}}, chatIDsOf(res))
	assert.Equal(t, 3, res.TotalChats)
}

func TestResolveSpecificBotWithChatFilter(t *testing.T) {
	store := twoBotStore()
	resolver := NewResolver(store, store, nullLogger())

	res, err := resolver.Resolve(context.Background(), NewScope(1, false, []int64{101, 999}))
	require.NoError(t, err)

	assert.Equal(t, [][]int64{{101}}, chatIDsOf(res))
	assert.Equal(t, 1, res.TotalChats)
	assert.Equal(t, []int64{1}, store.chatCalls)
}

func TestResolveDropsBotsWithoutMatchingChats(t *testing.T) {
	store := twoBotStore()
	store.chats[4] = nil
	store.bots = append(store.bots, domain.Bot{BotID: 4, IsActive: true})
	resolver := NewResolver(store, store, nullLogger())

	res, err := resolver.Resolve(context.Background(), NewScope(0, true, nil))
	require.NoError(t, err)
	assert.Len(t, res.Groups, 2)
	assert.Equal(t, 3, res.TotalChats)

	res, err = resolver.Resolve(context.Background(), NewScope(2, false, []int64{100}))
	require.NoError(t, err)
	assert.Empty(t, res.Groups)
	assert.Zero(t, res.TotalChats)
}

func TestResolveUnknownOrInactiveBotIsEmpty(t *testing.T) {
	store := twoBotStore()
	resolver := NewResolver(store, store, nullLogger())

	for _, botID := range []int64{3, 42} {
		res, err := resolver.Resolve(context.Background(), NewScope(botID, true, nil))
		require.NoError(t, err)
		assert.Empty(t, res.Groups)
		assert.Zero(t, res.TotalChats)
	}
}

func TestResolvePropagatesStoreErrors(t *testing.T) {
	store := twoBotStore()
	store.botsErr = errStore
	resolver := NewResolver(store, store, nullLogger())

	_, err := resolver.Resolve(context.Background(), NewScope(0, true, nil))
	assert.ErrorIs(t, err, errStore)

	store = twoBotStore()
	store.chatsErr = errStore
	resolver = NewResolver(store, store, nullLogger())

	_, err = resolver.Resolve(context.Background(), NewScope(0, true, nil))
	assert.ErrorIs(t, err, errStore)
}

func TestResolveHonorsCancellationBetweenBots(t *testing.T) {
	store := twoBotStore()
	ctx, cancel := context.WithCancel(context.Background())
	store.onList = func(int64) { cancel() }
	resolver := NewResolver(store, store, nullLogger())

	_, err := resolver.Resolve(ctx, NewScope(0, true, nil))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int64{1}, store.chatCalls)
}
