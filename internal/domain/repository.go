package domain

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrBotNotFound is returned when no bot matches the requested id.
var ErrBotNotFound = errors.New("bot not found")

type findCollection interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
}

// BotRepository reads bot credentials from MongoDB.
type BotRepository struct {
	collection findCollection
}

// NewBotRepository constructs a BotRepository.
func NewBotRepository(collection findCollection) *BotRepository {
	return &BotRepository{collection: collection}
}

// ListActiveBots returns every active bot ordered by bot_id ascending.
func (r *BotRepository) ListActiveBots(ctx context.Context) ([]Bot, error) {
	return r.list(ctx, bson.M{"is_active": true})
}

// ListBots returns every stored bot, active or not, ordered by bot_id.
func (r *BotRepository) ListBots(ctx context.Context) ([]Bot, error) {
	return r.list(ctx, bson.M{})
}

func (r *BotRepository) list(ctx context.Context, filter bson.M) ([]Bot, error) {
	if r == nil || r.collection == nil {
		return nil, errors.New("bot repository is not initialized")
	}
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	cursor, err := r.collection.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "bot_id", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find bots: %w", err)
	}

	bots := make([]Bot, 0)
	if err := cursor.All(ctx, &bots); err != nil {
		return nil, fmt.Errorf("decode bots: %w", err)
	}

	return bots, nil
}

// GetByID fetches a bot by bot_id regardless of its active flag.
func (r *BotRepository) GetByID(ctx context.Context, botID int64) (Bot, error) {
	if r == nil || r.collection == nil {
		return Bot{}, errors.New("bot repository is not initialized")
	}
	if ctx == nil {
		return Bot{}, errors.New("context is required")
	}
	if botID == 0 {
		return Bot{}, errors.New("bot_id is required")
	}

	result := r.collection.FindOne(ctx, bson.M{"bot_id": botID})
	if result == nil {
		return Bot{}, errors.New("find bot returned no result")
	}
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Bot{}, fmt.Errorf("bot %d: %w", botID, ErrBotNotFound)
		}
		return Bot{}, fmt.Errorf("find bot: %w", err)
	}

	var bot Bot
	if err := result.Decode(&bot); err != nil {
		return Bot{}, fmt.Errorf("decode bot: %w", err)
	}

	return bot, nil
}

// ChatRepository reads the chats known for each bot.
type ChatRepository struct {
	collection findCollection
}

// NewChatRepository constructs a ChatRepository.
func NewChatRepository(collection findCollection) *ChatRepository {
	return &ChatRepository{collection: collection}
}

// ListChatsForBot returns the chats recorded for botID ordered by telegram_id.
func (r *ChatRepository) ListChatsForBot(ctx context.Context, botID int64) ([]BotChat, error) {
	if r == nil || r.collection == nil {
		return nil, errors.New("chat repository is not initialized")
	}
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if botID == 0 {
		return nil, errors.New("bot_id is required")
	}

	cursor, err := r.collection.Find(ctx,
		bson.M{"bot_id": botID},
		options.Find().SetSort(bson.D{{Key: "telegram_id", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find chats: %w", err)
	}

	chats := make([]BotChat, 0)
	if err := cursor.All(ctx, &chats); err != nil {
		return nil, fmt.Errorf("decode chats: %w", err)
	}

	return chats, nil
}

// AccountRepository reads user-session accounts.
type AccountRepository struct {
	collection findCollection
}

// NewAccountRepository constructs an AccountRepository.
func NewAccountRepository(collection findCollection) *AccountRepository {
	return &AccountRepository{collection: collection}
}

// ListAccounts returns the accounts with the given ids ordered by account_id.
// An empty id list returns every account.
func (r *AccountRepository) ListAccounts(ctx context.Context, accountIDs []int64) ([]Account, error) {
	if r == nil || r.collection == nil {
		return nil, errors.New("account repository is not initialized")
	}
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	filter := bson.M{}
	if len(accountIDs) > 0 {
		filter["account_id"] = bson.M{"$in": accountIDs}
	}

	cursor, err := r.collection.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "account_id", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find accounts: %w", err)
	}

	accounts := make([]Account, 0)
	if err := cursor.All(ctx, &accounts); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}

	return accounts, nil
}
