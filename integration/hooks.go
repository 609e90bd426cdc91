// Package integration holds the ledger's boundary with remote services:
// the outbound best-effort hooks (analytics forwarding, payment charges)
// and the inbound webhook adapters that translate provider payloads into
// normalized ledger calls. The ledger core never talks to a remote
// service directly; everything crosses this package.
package integration

import (
	"context"

	"github.com/xraph/zcredit-ledger/id"
	"github.com/xraph/zcredit-ledger/types"
	"github.com/xraph/zcredit-ledger/usage"
)

// AnalyticsSink receives usage events after they have been durably
// committed. Delivery is best-effort: a failed or slow sink never
// affects ledger state or the caller's response.
type AnalyticsSink interface {
	Forward(ctx context.Context, evt *usage.Event) error
}

// AnalyticsSinkFunc adapts a plain function to AnalyticsSink.
type AnalyticsSinkFunc func(ctx context.Context, evt *usage.Event) error

// Forward implements AnalyticsSink.
func (f AnalyticsSinkFunc) Forward(ctx context.Context, evt *usage.Event) error {
	return f(ctx, evt)
}

// PaymentProvider charges a user out-of-band, for auto-refill. The
// returned reference identifies the charge at the provider and becomes
// the idempotency key for the resulting credit.
type PaymentProvider interface {
	Charge(ctx context.Context, user id.UserID, amountCents types.Cents) (providerRef string, err error)
}

// PaymentProviderFunc adapts a plain function to PaymentProvider.
type PaymentProviderFunc func(ctx context.Context, user id.UserID, amountCents types.Cents) (string, error)

// Charge implements PaymentProvider.
func (f PaymentProviderFunc) Charge(ctx context.Context, user id.UserID, amountCents types.Cents) (string, error) {
	return f(ctx, user, amountCents)
}
