package domain

import "time"

// Account is an actor credential driven through a user session rather than the
// Bot API. Nil timestamps were never recorded.
type Account struct {
	AccountID   int64      `bson:"account_id" json:"account_id"`
	Phone       string     `bson:"phone" json:"phone"`
	LastLoginAt *time.Time `bson:"last_login_at,omitempty" json:"last_login_at,omitempty"`
	CreatedAt   *time.Time `bson:"created_at,omitempty" json:"created_at,omitempty"`
	LastSyncAt  *time.Time `bson:"last_sync_at,omitempty" json:"last_sync_at,omitempty"`
}
