// Package account provides helpers for importing user-session accounts and
// recording their login times.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tg_moderation_panel/internal/logging"
)

// ErrAccountNotFound is returned when updating an account that was never imported.
var ErrAccountNotFound = errors.New("account not found")

type accountCollection interface {
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// Registrar ensures accounts are present in the database and keeps their sync
// and login timestamps current.
type Registrar struct {
	accounts accountCollection
	logger   *logrus.Entry
	now      func() time.Time
}

// NewRegistrar constructs a Registrar for the provided accounts collection.
func NewRegistrar(accounts accountCollection, logger *logrus.Entry) *Registrar {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Registrar{
		accounts: accounts,
		logger:   logger,
		now:      time.Now,
	}
}

// EnsureAccount upserts the account, setting created_at on first import and
// refreshing last_sync_at on every call.
func (r *Registrar) EnsureAccount(ctx context.Context, accountID int64, phone string) (bool, error) {
	if r == nil || r.accounts == nil {
		return false, errors.New("account registrar is not initialized")
	}
	if ctx == nil {
		return false, errors.New("context is required")
	}
	if accountID <= 0 {
		return false, errors.New("account id must be positive")
	}

	now := r.now().UTC().Truncate(time.Millisecond)
	setFields := bson.M{"last_sync_at": now}
	if phone = strings.TrimSpace(phone); phone != "" {
		setFields["phone"] = phone
	}

	result, err := r.accounts.UpdateOne(ctx,
		bson.M{"account_id": accountID},
		bson.M{
			"$set": setFields,
			"$setOnInsert": bson.M{
				"account_id": accountID,
				"created_at": now,
			},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("ensure account: %w", err)
	}

	created := result != nil && result.UpsertedCount > 0
	if created {
		r.logger.WithFields(logging.Fields{
			"event":      "account_imported",
			"account_id": accountID,
		}).Info("imported new account")
		return true, nil
	}

	r.logger.WithFields(logging.Fields{
		"event":      "account_synced",
		"account_id": accountID,
	}).Debug("refreshed account sync time")

	return false, nil
}

// RecordLogin stores the time the account last completed a login.
func (r *Registrar) RecordLogin(ctx context.Context, accountID int64, at time.Time) error {
	if r == nil || r.accounts == nil {
		return errors.New("account registrar is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if accountID <= 0 {
		return errors.New("account id must be positive")
	}
	if at.IsZero() {
		at = r.now()
	}

	result, err := r.accounts.UpdateOne(ctx,
		bson.M{"account_id": accountID},
		bson.M{"$set": bson.M{"last_login_at": at.UTC().Truncate(time.Millisecond)}},
	)
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	if result == nil || result.MatchedCount == 0 {
		return fmt.Errorf("account %d: %w", accountID, ErrAccountNotFound)
	}

	r.logger.WithFields(logging.Fields{
		"event":      "account_login",
		"account_id": accountID,
	}).Info("recorded account login")

	return nil
}
