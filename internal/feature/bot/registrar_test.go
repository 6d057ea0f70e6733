package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tg_moderation_panel/internal/domain"
)

func TestEnsureBotInsertsAndUpdates(t *testing.T) {
	hookLogger, hook := logtest.NewNullLogger()
	coll := &fakeBots{docs: map[int64]bson.M{}}
	registrar := NewRegistrar(coll, logrus.NewEntry(hookLogger))

	created, err := registrar.EnsureBot(context.Background(), domain.Bot{BotID: 11, Name: " alpha ", Token: " 11:tok ", IsActive: true})
	require.NoError(t, err)
	assert.True(t, created)

	doc := coll.docs[11]
	require.NotNil(t, doc)
	assert.Equal(t, "alpha", doc["name"])
	assert.Equal(t, "11:tok", doc["token"])
	assert.Equal(t, true, doc["is_active"])
	createdAt, ok := doc["created_at"].(time.Time)
	require.True(t, ok)

	created, err = registrar.EnsureBot(context.Background(), domain.Bot{BotID: 11, Name: "alpha-2", Token: "11:new", IsActive: false})
	require.NoError(t, err)
	assert.False(t, created)

	doc = coll.docs[11]
	assert.Equal(t, "alpha-2", doc["name"])
	assert.Equal(t, "11:new", doc["token"])
	assert.Equal(t, false, doc["is_active"])
	assert.Equal(t, createdAt, doc["created_at"])

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "bot_registered", entry.Data["event"])
	_, leaked := entry.Data["token"]
	assert.False(t, leaked, "token must not be logged")
}

func TestEnsureBotValidates(t *testing.T) {
	hookLogger, _ := logtest.NewNullLogger()
	registrar := NewRegistrar(&fakeBots{docs: map[int64]bson.M{}}, logrus.NewEntry(hookLogger))

	_, err := registrar.EnsureBot(context.Background(), domain.Bot{BotID: 0, Token: "x"})
	assert.Error(t, err)
	_, err = registrar.EnsureBot(context.Background(), domain.Bot{BotID: 1, Token: "  "})
	assert.Error(t, err)
	_, err = registrar.EnsureBot(nil, domain.Bot{BotID: 1, Token: "x"})
	assert.Error(t, err)

	var nilRegistrar *Registrar
	_, err = nilRegistrar.EnsureBot(context.Background(), domain.Bot{BotID: 1, Token: "x"})
	assert.Error(t, err)
}

func TestSetActive(t *testing.T) {
	hookLogger, _ := logtest.NewNullLogger()
	coll := &fakeBots{docs: map[int64]bson.M{5: {"bot_id": int64(5), "is_active": true}}}
	registrar := NewRegistrar(coll, logrus.NewEntry(hookLogger))

	require.NoError(t, registrar.SetActive(context.Background(), 5, false))
	assert.Equal(t, false, coll.docs[5]["is_active"])

	err := registrar.SetActive(context.Background(), 6, true)
	assert.ErrorIs(t, err, domain.ErrBotNotFound)
	assert.NotContains(t, coll.docs, int64(6))
}

func TestEnsureBotPropagatesErrors(t *testing.T) {
	hookLogger, _ := logtest.NewNullLogger()
	expected := errors.New("write failed")
	registrar := NewRegistrar(&fakeBots{err: expected}, logrus.NewEntry(hookLogger))

	_, err := registrar.EnsureBot(context.Background(), domain.Bot{BotID: 1, Token: "x"})
	assert.ErrorIs(t, err, expected)
}

type fakeBots struct {
	docs map[int64]bson.M
	err  error
}

func (f *fakeBots) UpdateOne(_ context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	if f.err != nil {
		return nil, f.err
	}

	botID := filter.(bson.M)["bot_id"].(int64)
	updateDoc := update.(bson.M)
	setDoc, _ := updateDoc["$set"].(bson.M)
	setOnInsertDoc, _ := updateDoc["$setOnInsert"].(bson.M)
	upsert := len(opts) > 0 && opts[0] != nil && opts[0].Upsert != nil && *opts[0].Upsert

	doc, found := f.docs[botID]
	if !found && !upsert {
		return &mongo.UpdateResult{}, nil
	}
	if !found {
		doc = bson.M{}
		for k, v := range setOnInsertDoc {
			doc[k] = v
		}
	}
	for k, v := range setDoc {
		doc[k] = v
	}
	f.docs[botID] = doc

	if !found {
		return &mongo.UpdateResult{UpsertedCount: 1, UpsertedID: botID}, nil
	}
	return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}
