// Package plugin provides an extensible plugin system for the ledger.
// Plugins hook into lifecycle events without the core engine depending
// on any particular integration.
package plugin

import (
	"context"

	"github.com/xraph/zcredit-ledger/account"
	"github.com/xraph/zcredit-ledger/txn"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Engine lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Usage hooks
// ──────────────────────────────────────────────────

// OnUsageDebited is called after a usage event successfully debits an
// account.
type OnUsageDebited interface {
	Plugin
	OnUsageDebited(ctx context.Context, a *account.Account, t *txn.CreditTransaction) error
}

// OnDuplicateEventRejected is called when a usage event is rejected
// because its EventID was already recorded.
type OnDuplicateEventRejected interface {
	Plugin
	OnDuplicateEventRejected(ctx context.Context, eventID string) error
}

// OnInsufficientCredits is called when a usage event is rejected
// because the account's balance could not absorb the debit.
type OnInsufficientCredits interface {
	Plugin
	OnInsufficientCredits(ctx context.Context, a *account.Account, requiredCents int64) error
}

// ──────────────────────────────────────────────────
// Credit hooks
// ──────────────────────────────────────────────────

// OnCreditsAdded is called after credits are successfully added to an
// account, regardless of the reason (purchase, grant, refund, bonus,
// auto-refill).
type OnCreditsAdded interface {
	Plugin
	OnCreditsAdded(ctx context.Context, a *account.Account, t *txn.CreditTransaction) error
}

// OnAutoRefillTriggered is called when a debit drops an account's
// balance below its configured auto-refill trigger and a refill is
// issued.
type OnAutoRefillTriggered interface {
	Plugin
	OnAutoRefillTriggered(ctx context.Context, a *account.Account, amountCents int64) error
}

// ──────────────────────────────────────────────────
// Subscription hooks
// ──────────────────────────────────────────────────

// OnSubscriptionTransitioned is called after a subscription event moves
// a subscription between states. Lazy expiry of a lapsed subscription on
// read, and period renewals, do not call it.
type OnSubscriptionTransitioned interface {
	Plugin
	OnSubscriptionTransitioned(ctx context.Context, a *account.Account, event account.SubscriptionEvent) error
}

// ──────────────────────────────────────────────────
// Account hooks
// ──────────────────────────────────────────────────

// OnAccountCreated is called when a new account is created.
type OnAccountCreated interface {
	Plugin
	OnAccountCreated(ctx context.Context, a *account.Account) error
}

// OnAccountDeleted is called when an account is deleted.
type OnAccountDeleted interface {
	Plugin
	OnAccountDeleted(ctx context.Context, userID string) error
}
