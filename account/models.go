// Package account defines the per-user billing root record: balance,
// lifetime counters, the embedded subscription, and auto-refill settings.
package account

import (
	"time"

	"github.com/xraph/zcredit-ledger/id"
	"github.com/xraph/zcredit-ledger/plan"
	"github.com/xraph/zcredit-ledger/types"
)

// SubscriptionStatus is the state of an embedded Subscription.
type SubscriptionStatus string

// Recognized subscription states.
const (
	StatusActive    SubscriptionStatus = "active"
	StatusCancelled SubscriptionStatus = "cancelled"
	StatusPastDue   SubscriptionStatus = "past_due"
)

// Subscription is embedded in Account. A nil *Subscription on an Account
// means the user has no subscription (the "absent" state in the state
// machine).
type Subscription struct {
	Plan                   plan.Plan
	Status                 SubscriptionStatus
	CurrentPeriodStart     time.Time
	CurrentPeriodEnd       time.Time
	ExternalSubscriptionID string
}

// AutoRefill describes the account's automatic top-up configuration.
type AutoRefill struct {
	Enabled           bool
	TriggerBelowCents types.Cents // >= 100
	RefillAmountCents types.Cents // >= 500
}

// Valid reports whether the AutoRefill configuration satisfies the
// documented minimums.
func (a AutoRefill) Valid() bool {
	return a.TriggerBelowCents >= 100 && a.RefillAmountCents >= 500
}

// Account is the per-user billing root record. Balance and the lifetime
// counters hold the invariant: balance = purchased + granted + bonus
// adjustments - used, verifiable from the transaction log.
type Account struct {
	types.Entity

	UserID                 id.UserID
	BalanceCents           types.Cents
	LifetimePurchasedCents types.Cents
	LifetimeGrantedCents   types.Cents
	LifetimeUsedCents      types.Cents
	Subscription           *Subscription
	AutoRefill             *AutoRefill
	Email                  string
	ExternalCustomerID     string
}

// New creates a fresh account for user with a zero balance and no
// subscription or auto-refill.
func New(user id.UserID, email string) *Account {
	return &Account{
		Entity: types.NewEntity(),
		UserID: user,
		Email:  email,
	}
}

// Clone returns a deep-enough copy safe to mutate without affecting the
// original; accounts are returned by value from store reads specifically
// so callers never hold a pointer into durable state.
func (a *Account) Clone() *Account {
	cp := *a
	if a.Subscription != nil {
		sub := *a.Subscription
		cp.Subscription = &sub
	}
	if a.AutoRefill != nil {
		ar := *a.AutoRefill
		cp.AutoRefill = &ar
	}
	return &cp
}

// HasSufficientBalance reports whether the account can absorb a debit of
// requiredCents (a positive magnitude) without going negative.
func (a *Account) HasSufficientBalance(requiredCents types.Cents) bool {
	return a.BalanceCents >= requiredCents
}

// NeedsAutoRefill reports whether the account's auto-refill should fire
// given the current balance: enabled and balance below the configured
// trigger.
func (a *Account) NeedsAutoRefill() bool {
	return a.AutoRefill != nil && a.AutoRefill.Enabled && a.BalanceCents < a.AutoRefill.TriggerBelowCents
}
