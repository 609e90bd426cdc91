// Package store defines the persistence boundary for the ledger: the
// primitive column-family operations and the compound atomic operations
// built on top of them.
package store

import (
	"context"

	"github.com/xraph/zcredit-ledger/account"
	"github.com/xraph/zcredit-ledger/id"
	"github.com/xraph/zcredit-ledger/txn"
	"github.com/xraph/zcredit-ledger/usage"
)

// ListTransactionsOpts controls pagination for ListTransactionsByUser.
// Results are always newest-first; Offset skips that many entries from
// the newest end.
type ListTransactionsOpts struct {
	Limit  int
	Offset int
}

// TransactionPage is one page of a ListTransactionsByUser result.
type TransactionPage struct {
	Transactions []*txn.CreditTransaction
	HasMore      bool
}

// Store is the unified storage interface for the ledger. Instead of
// embedding sub-interfaces, every method is declared explicitly to
// avoid naming conflicts.
//
// Implementations must serialize mutating operations per user: at most
// one of ProcessUsage, AddCredits, AddCreditsIdempotent, CreateAccount,
// UpdateAccount, or DeleteAccountAtomic executes at a time for a given
// user, and each commits all of its writes as a single durable unit.
// Readers of unrelated users proceed in parallel and never take the
// per-user serialization point.
type Store interface {
	// Account column family.
	PutAccount(ctx context.Context, a *account.Account) error
	GetAccount(ctx context.Context, user id.UserID) (*account.Account, error)
	DeleteAccountRecord(ctx context.Context, user id.UserID) error

	// Transaction column family, with its by-user secondary index
	// co-written atomically.
	PutTransaction(ctx context.Context, t *txn.CreditTransaction) error
	GetTransaction(ctx context.Context, txID id.TransactionID) (*txn.CreditTransaction, error)
	ListTransactionsByUser(ctx context.Context, user id.UserID, opts ListTransactionsOpts) (*TransactionPage, error)

	// Usage-event column family, keyed by EventID for idempotency.
	HasUsageEvent(ctx context.Context, eventID string) (bool, error)
	PutUsageEvent(ctx context.Context, evt *usage.Event) error
	GetUsageEvent(ctx context.Context, eventID string) (*usage.Event, error)

	// ProcessUsage atomically: checks the event is unseen, debits the
	// account balance, appends a CreditTransaction, and records the usage
	// event, all under the per-user serialization point. If the event was
	// already recorded it returns *ledger.DuplicateEventError without
	// debiting again. If the debit would take the balance negative it
	// returns *ledger.InsufficientCreditsError without any side effect.
	ProcessUsage(ctx context.Context, evt *usage.Event, costCents int64, description string) (*account.Account, *txn.CreditTransaction, error)

	// AddCredits atomically credits an account's balance and appends the
	// corresponding CreditTransaction, serialized per-user.
	AddCredits(ctx context.Context, user id.UserID, amountCents int64, typ txn.Type, description string, metadata map[string]any) (*account.Account, *txn.CreditTransaction, error)

	// AddCreditsIdempotent is AddCredits guarded by a marker written to
	// the usage-event column family under idempotencyKey. When the marker
	// already exists the call is a no-op: the current account is returned
	// with duplicate=true and a nil transaction. The marker check and the
	// credit commit happen inside the same per-user serialization point,
	// so two concurrent deliveries of the same key produce exactly one
	// credit.
	AddCreditsIdempotent(ctx context.Context, user id.UserID, amountCents int64, typ txn.Type, description string, metadata map[string]any, idempotencyKey string) (a *account.Account, t *txn.CreditTransaction, duplicate bool, err error)

	// CreateAccount atomically creates a new account, failing with
	// ledger.ErrAlreadyExists if one already exists for the user.
	CreateAccount(ctx context.Context, user id.UserID, email string) (*account.Account, error)

	// DeleteAccountAtomic atomically removes the account record together
	// with the user's transactions_by_user index range. The transaction
	// and usage-event rows themselves are retained for audit and stay
	// reachable by id.
	DeleteAccountAtomic(ctx context.Context, user id.UserID) error

	// UpdateAccount applies fn to the current account under the per-user
	// serialization point and persists the result. It is the building
	// block for subscription-state and auto-refill-config updates that
	// don't fit the ProcessUsage/AddCredits shapes.
	UpdateAccount(ctx context.Context, user id.UserID, fn func(*account.Account) error) (*account.Account, error)

	// Core lifecycle.
	Ping(ctx context.Context) error
	Close() error
}
