// Package risk decides whether a user-session account has been warmed up long
// enough to be used for sensitive operations.
package risk

import (
	"fmt"
	"strings"
	"time"

	"tg_moderation_panel/internal/domain"
)

// ThresholdHours is how long an account must have been logged in before it is
// considered safe.
const ThresholdHours = 24.0

const allSafeSummary = "All accounts satisfy the 24 hour login requirement"

// Assessment is the derived risk verdict for one account. It is recomputed on
// every call against the classifier clock.
type Assessment struct {
	IsRisky bool `json:"is_risky"`
	// ReferenceHours is nil when the account has no usable timestamp.
	ReferenceHours *float64 `json:"reference_hours,omitempty"`
	// IsEstimated is set when the reference came from import or sync time
	// instead of a recorded login.
	IsEstimated bool   `json:"is_estimated"`
	Message     string `json:"message"`
	Detail      string `json:"detail"`
}

// Classifier evaluates accounts against ThresholdHours.
type Classifier struct {
	now func() time.Time
}

// NewClassifier constructs a Classifier. A nil clock falls back to time.Now.
func NewClassifier(now func() time.Time) *Classifier {
	if now == nil {
		now = time.Now
	}

	return &Classifier{now: now}
}

// referenceTime resolves lastLoginAt, then createdAt, then lastSyncAt. Nil and
// zero timestamps are both treated as unset.
func referenceTime(account domain.Account) (time.Time, bool, bool) {
	if isSet(account.LastLoginAt) {
		return account.LastLoginAt.UTC(), false, true
	}
	if isSet(account.CreatedAt) {
		return account.CreatedAt.UTC(), true, true
	}
	if isSet(account.LastSyncAt) {
		return account.LastSyncAt.UTC(), true, true
	}

	return time.Time{}, false, false
}

func isSet(ts *time.Time) bool {
	return ts != nil && !ts.IsZero()
}

// Assess classifies a single account.
func (c *Classifier) Assess(account domain.Account) Assessment {
	reference, estimated, ok := referenceTime(account)
	if !ok {
		return Assessment{
			IsRisky: true,
			Message: "No recorded login time",
			Detail:  "The account has no recorded login time (it may have just been imported). Wait 24 hours before sensitive operations.",
		}
	}

	hours := c.clock().UTC().Sub(reference).Hours()
	assessment := Assessment{
		ReferenceHours: &hours,
		IsEstimated:    estimated,
	}

	switch {
	case estimated && hours >= ThresholdHours:
		assessment.Message = "Login time requirement met (estimated from import time)"
		assessment.Detail = fmt.Sprintf("No login was recorded; %.1f hours have passed since the account was imported or synced.", hours)
	case hours < ThresholdHours:
		remaining := ThresholdHours - hours
		assessment.IsRisky = true
		if estimated {
			assessment.Message = fmt.Sprintf("No recorded login time, estimated from import: %.1f hours", hours)
		} else {
			assessment.Message = fmt.Sprintf("Login time is under 24 hours (current: %.1f hours)", hours)
		}
		assessment.Detail = fmt.Sprintf("Wait another %.1f hours before sensitive operations to reduce the chance of platform restrictions.", remaining)
	default:
		assessment.Message = "Login time requirement met"
		assessment.Detail = fmt.Sprintf("Current login duration: %.1f hours", hours)
	}

	return assessment
}

func (c *Classifier) clock() time.Time {
	if c == nil || c.now == nil {
		return time.Now()
	}
	return c.now()
}

// AccountAssessment pairs an account with its verdict.
type AccountAssessment struct {
	Account    domain.Account
	Assessment Assessment
}

// BatchResult partitions a list of accounts into risky and safe sets.
type BatchResult struct {
	Total      int
	RiskyCount int
	SafeCount  int
	Risky      []AccountAssessment
	Safe       []AccountAssessment
	HasRisky   bool
	// All holds every verdict in input order.
	All []AccountAssessment
}

// AssessBatch evaluates every account independently.
func (c *Classifier) AssessBatch(accounts []domain.Account) BatchResult {
	result := BatchResult{
		Total: len(accounts),
		Risky: make([]AccountAssessment, 0),
		Safe:  make([]AccountAssessment, 0),
		All:   make([]AccountAssessment, 0, len(accounts)),
	}

	for _, account := range accounts {
		entry := AccountAssessment{Account: account, Assessment: c.Assess(account)}
		result.All = append(result.All, entry)
		if entry.Assessment.IsRisky {
			result.Risky = append(result.Risky, entry)
		} else {
			result.Safe = append(result.Safe, entry)
		}
	}

	result.RiskyCount = len(result.Risky)
	result.SafeCount = len(result.Safe)
	result.HasRisky = result.RiskyCount > 0

	return result
}

// Summary renders the risky accounts as "phone(tag hours)" entries, or a fixed
// sentence when nothing is risky.
func (r BatchResult) Summary() string {
	if r.RiskyCount == 0 {
		return allSafeSummary
	}

	parts := make([]string, 0, len(r.Risky))
	for _, entry := range r.Risky {
		hours := entry.Assessment.ReferenceHours
		if hours == nil {
			parts = append(parts, entry.Account.Phone)
			continue
		}

		tag := "logged-in"
		if entry.Assessment.IsEstimated {
			tag = "imported"
		}
		parts = append(parts, fmt.Sprintf("%s(%s %.1fh)", entry.Account.Phone, tag, *hours))
	}

	return "Accounts under the 24 hour login requirement: " + strings.Join(parts, ", ")
}

// WarningAction is the operator's answer to a risk warning.
type WarningAction int

const (
	// ActionContinue proceeds with every account, risky ones included.
	ActionContinue WarningAction = iota
	// ActionExcludeRisky proceeds with the safe accounts only.
	ActionExcludeRisky
)

// ParseWarningAction maps "continue" and "exclude-risky" to their actions.
func ParseWarningAction(value string) (WarningAction, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "continue":
		return ActionContinue, nil
	case "exclude-risky", "exclude_risky", "exclude":
		return ActionExcludeRisky, nil
	default:
		return ActionContinue, fmt.Errorf("unknown warning action %q", value)
	}
}

func (a WarningAction) String() string {
	if a == ActionExcludeRisky {
		return "exclude-risky"
	}
	return "continue"
}

// Apply returns the accounts to proceed with for the chosen action, in input
// order.
func (r BatchResult) Apply(action WarningAction) []domain.Account {
	selected := make([]domain.Account, 0, len(r.All))
	for _, entry := range r.All {
		if action == ActionExcludeRisky && entry.Assessment.IsRisky {
			continue
		}
		selected = append(selected, entry.Account)
	}
	return selected
}
