// Package txn defines the immutable, append-only CreditTransaction ledger
// entry.
package txn

import (
	"time"

	"github.com/xraph/zcredit-ledger/id"
	"github.com/xraph/zcredit-ledger/types"
)

// Type is the closed set of reasons a CreditTransaction was written.
type Type string

// Recognized transaction types.
const (
	Purchase          Type = "purchase"
	Usage             Type = "usage"
	SubscriptionGrant Type = "subscription_grant"
	Refund            Type = "refund"
	Bonus             Type = "bonus"
	AutoRefill        Type = "auto_refill"
)

// CreditTransaction is an immutable ledger entry. Once written it is never
// updated or deleted by normal operation.
type CreditTransaction struct {
	TransactionID     id.TransactionID
	UserID            id.UserID
	AmountCents       types.Cents // signed: positive = credit, negative = debit
	Type              Type
	BalanceAfterCents types.Cents
	Description       string
	Metadata          map[string]any
	CreatedAt         time.Time
}

// New constructs a CreditTransaction with a freshly generated,
// monotonic-per-call TransactionID.
func New(user id.UserID, amount types.Cents, typ Type, balanceAfter types.Cents, description string, metadata map[string]any) *CreditTransaction {
	return &CreditTransaction{
		TransactionID:     id.NewTransactionID(),
		UserID:            user,
		AmountCents:       amount,
		Type:              typ,
		BalanceAfterCents: balanceAfter,
		Description:       description,
		Metadata:          metadata,
		CreatedAt:         time.Now().UTC(),
	}
}

// IsDebit reports whether this transaction reduced the balance.
func (t *CreditTransaction) IsDebit() bool { return t.AmountCents < 0 }

// IsCredit reports whether this transaction increased the balance.
func (t *CreditTransaction) IsCredit() bool { return t.AmountCents > 0 }
