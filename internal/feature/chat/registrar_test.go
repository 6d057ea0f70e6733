package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestEnsureChatCreatesNewRecord(t *testing.T) {
	hookLogger, hook := logtest.NewNullLogger()
	coll := newFakeChatCollection(t)
	registrar := NewRegistrar(coll, logrus.NewEntry(hookLogger))

	created, err := registrar.EnsureChat(context.Background(), 7, -100200, " Ops Room ", "supergroup")
	if err != nil {
		t.Fatalf("EnsureChat returned error: %v", err)
	}
	if !created {
		t.Fatalf("expected created to be true for new chat")
	}

	doc := coll.docFor(t, 7, -100200)
	assertFieldEquals(t, doc, "bot_id", int64(7))
	assertFieldEquals(t, doc, "telegram_id", int64(-100200))
	assertFieldEquals(t, doc, "title", "Ops Room")
	assertFieldEquals(t, doc, "chat_type", "supergroup")
	assertTimeField(t, doc, "synced_at")

	entry := hook.LastEntry()
	if entry == nil || entry.Data["event"] != "chat_registered" {
		t.Fatalf("expected chat_registered log entry, got %+v", entry)
	}
}

func TestEnsureChatKeepsTitleWhenBlankAndAdvancesSync(t *testing.T) {
	hookLogger, _ := logtest.NewNullLogger()
	coll := newFakeChatCollection(t)

	initialSync := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	coll.seed(bson.M{
		"bot_id":      int64(7),
		"telegram_id": int64(-200300),
		"title":       "Old Title",
		"synced_at":   initialSync,
	})

	registrar := NewRegistrar(coll, logrus.NewEntry(hookLogger))

	created, err := registrar.EnsureChat(context.Background(), 7, -200300, "  ", "")
	if err != nil {
		t.Fatalf("EnsureChat returned error: %v", err)
	}
	if created {
		t.Fatalf("expected created=false for existing chat")
	}

	doc := coll.docFor(t, 7, -200300)
	assertFieldEquals(t, doc, "title", "Old Title")
	if _, ok := doc["chat_type"]; ok {
		t.Fatalf("expected chat_type to stay unset")
	}

	synced := assertTimeField(t, doc, "synced_at")
	if !synced.After(initialSync) {
		t.Fatalf("expected synced_at to advance beyond %v, got %v", initialSync, synced)
	}
}

func TestEnsureChatSameChatDifferentBots(t *testing.T) {
	hookLogger, _ := logtest.NewNullLogger()
	coll := newFakeChatCollection(t)
	registrar := NewRegistrar(coll, logrus.NewEntry(hookLogger))

	for _, botID := range []int64{1, 2} {
		created, err := registrar.EnsureChat(context.Background(), botID, -500, "Shared", "group")
		if err != nil {
			t.Fatalf("EnsureChat returned error: %v", err)
		}
		if !created {
			t.Fatalf("expected a separate record for bot %d", botID)
		}
	}

	if len(coll.docs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(coll.docs))
	}
}

func TestRemoveChat(t *testing.T) {
	hookLogger, _ := logtest.NewNullLogger()
	coll := newFakeChatCollection(t)
	coll.seed(bson.M{"bot_id": int64(3), "telegram_id": int64(-42), "title": "Gone"})
	registrar := NewRegistrar(coll, logrus.NewEntry(hookLogger))

	removed, err := registrar.RemoveChat(context.Background(), 3, -42)
	if err != nil {
		t.Fatalf("RemoveChat returned error: %v", err)
	}
	if !removed {
		t.Fatalf("expected removed=true for existing chat")
	}
	if len(coll.docs) != 0 {
		t.Fatalf("expected chat to be deleted, still have %d docs", len(coll.docs))
	}

	removed, err = registrar.RemoveChat(context.Background(), 3, -42)
	if err != nil {
		t.Fatalf("RemoveChat returned error: %v", err)
	}
	if removed {
		t.Fatalf("expected removed=false for missing chat")
	}
}

func TestRegistrarValidatesInputs(t *testing.T) {
	hookLogger, _ := logtest.NewNullLogger()
	registrar := NewRegistrar(newFakeChatCollection(t), logrus.NewEntry(hookLogger))

	if _, err := registrar.EnsureChat(nil, 1, 1, "", ""); err == nil {
		t.Fatalf("expected error for nil context")
	}
	if _, err := registrar.EnsureChat(context.Background(), 0, 1, "", ""); err == nil {
		t.Fatalf("expected error for zero bot id")
	}
	if _, err := registrar.EnsureChat(context.Background(), 1, 0, "", ""); err == nil {
		t.Fatalf("expected error for zero chat id")
	}
	if _, err := registrar.RemoveChat(context.Background(), 0, 1); err == nil {
		t.Fatalf("expected error for zero bot id on remove")
	}

	var nilRegistrar *Registrar
	if _, err := nilRegistrar.EnsureChat(context.Background(), 1, 1, "", ""); err == nil {
		t.Fatalf("expected error for nil registrar")
	}
}

func TestEnsureChatPropagatesErrors(t *testing.T) {
	hookLogger, _ := logtest.NewNullLogger()
	coll := newFakeChatCollection(t)
	coll.updateErr = errors.New("write failed")
	registrar := NewRegistrar(coll, logrus.NewEntry(hookLogger))

	if _, err := registrar.EnsureChat(context.Background(), 1, 2, "x", ""); !errors.Is(err, coll.updateErr) {
		t.Fatalf("expected wrapped update error, got %v", err)
	}
}

type chatKey struct {
	botID  int64
	chatID int64
}

type fakeChatCollection struct {
	t         *testing.T
	docs      map[chatKey]bson.M
	updateErr error
}

func newFakeChatCollection(t *testing.T) *fakeChatCollection {
	t.Helper()
	return &fakeChatCollection{
		t:    t,
		docs: make(map[chatKey]bson.M),
	}
}

func (f *fakeChatCollection) keyFor(filter interface{}) chatKey {
	f.t.Helper()

	filterDoc, ok := filter.(bson.M)
	if !ok {
		f.t.Fatalf("unexpected filter type %T", filter)
	}

	return chatKey{
		botID:  readInt64(f.t, filterDoc["bot_id"]),
		chatID: readInt64(f.t, filterDoc["telegram_id"]),
	}
}

func (f *fakeChatCollection) UpdateOne(_ context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}

	key := f.keyFor(filter)

	updateDoc, ok := update.(bson.M)
	if !ok {
		f.t.Fatalf("unexpected update type %T", update)
	}

	setDoc, _ := updateDoc["$set"].(bson.M)
	setOnInsertDoc, _ := updateDoc["$setOnInsert"].(bson.M)

	upsert := len(opts) > 0 && opts[0] != nil && opts[0].Upsert != nil && *opts[0].Upsert

	doc, found := f.docs[key]
	if !found && !upsert {
		return &mongo.UpdateResult{}, nil
	}
	if !found {
		doc = bson.M{}
		merge(doc, setOnInsertDoc)
	}

	merge(doc, setDoc)
	f.docs[key] = doc

	if !found {
		return &mongo.UpdateResult{UpsertedCount: 1, UpsertedID: key.chatID}, nil
	}

	return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

func (f *fakeChatCollection) DeleteOne(_ context.Context, filter interface{}, _ ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	key := f.keyFor(filter)
	if _, ok := f.docs[key]; !ok {
		return &mongo.DeleteResult{}, nil
	}

	delete(f.docs, key)
	return &mongo.DeleteResult{DeletedCount: 1}, nil
}

func (f *fakeChatCollection) docFor(t *testing.T, botID, chatID int64) bson.M {
	t.Helper()

	doc, ok := f.docs[chatKey{botID: botID, chatID: chatID}]
	if !ok {
		t.Fatalf("no document stored for bot_id=%d telegram_id=%d", botID, chatID)
	}

	return doc
}

func (f *fakeChatCollection) seed(doc bson.M) {
	f.docs[f.keyFor(doc)] = doc
}

func merge(dst bson.M, updates bson.M) {
	for k, v := range updates {
		dst[k] = v
	}
}

func readInt64(t *testing.T, value interface{}) int64 {
	t.Helper()

	switch v := value.(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	default:
		t.Fatalf("expected int64-compatible value, got %T", value)
		return 0
	}
}

func assertFieldEquals(t *testing.T, doc bson.M, field string, expected interface{}) {
	t.Helper()

	val, ok := doc[field]
	if !ok {
		t.Fatalf("expected field %s to be set", field)
	}

	if val != expected {
		t.Fatalf("expected %s=%v, got %v", field, expected, val)
	}
}

func assertTimeField(t *testing.T, doc bson.M, field string) time.Time {
	t.Helper()

	val, ok := doc[field]
	if !ok {
		t.Fatalf("expected field %s to be set", field)
	}

	ts, ok := val.(time.Time)
	if !ok {
		t.Fatalf("expected field %s to be time.Time, got %T", field, val)
	}

	if ts.IsZero() {
		t.Fatalf("expected field %s to be non-zero", field)
	}

	return ts
}
