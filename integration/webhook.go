package integration

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xraph/zcredit-ledger/account"
	"github.com/xraph/zcredit-ledger/id"
	"github.com/xraph/zcredit-ledger/plan"
	"github.com/xraph/zcredit-ledger/types"
)

// CreditLedger is the slice of the ledger the payment webhook adapter
// needs. Signature verification of the raw webhook is the transport's
// responsibility; by the time a payload reaches this package it is
// trusted.
type CreditLedger interface {
	PurchaseCompleted(ctx context.Context, user id.UserID, amountCents types.Cents, providerRef string) (*account.Account, error)
}

// SubscriptionLedger is the slice of the ledger the subscription webhook
// adapter needs.
type SubscriptionLedger interface {
	ApplySubscriptionEvent(ctx context.Context, user id.UserID, event account.SubscriptionEvent, p plan.Plan) (*account.Account, error)
	RenewSubscription(ctx context.Context, user id.UserID) (*account.Account, error)
}

// paymentPayload is the normalized shape payment providers are adapted
// to before reaching this package.
type paymentPayload struct {
	Type        string `json:"type"`
	UserID      string `json:"user_id"`
	AmountCents int64  `json:"amount_cents"`
	Reference   string `json:"reference"`
}

// HandlePaymentWebhook translates a normalized payment event into a
// ledger call. Only payment.succeeded credits the account; other event
// types are acknowledged and ignored. Redelivery of the same reference
// is harmless: the ledger deduplicates on it.
func HandlePaymentWebhook(ctx context.Context, l CreditLedger, payload []byte) (*account.Account, error) {
	var p paymentPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("integration: decode payment payload: %w", err)
	}

	if p.Type != "payment.succeeded" {
		return nil, nil
	}

	user, err := id.ParseUserID(p.UserID)
	if err != nil {
		return nil, fmt.Errorf("integration: payment payload user_id: %w", err)
	}
	if p.AmountCents <= 0 {
		return nil, fmt.Errorf("integration: payment payload amount_cents must be positive, got %d", p.AmountCents)
	}
	if p.Reference == "" {
		return nil, fmt.Errorf("integration: payment payload missing reference")
	}

	return l.PurchaseCompleted(ctx, user, types.Cents(p.AmountCents), p.Reference)
}

// subscriptionPayload is the normalized shape subscription providers are
// adapted to before reaching this package.
type subscriptionPayload struct {
	Type           string `json:"type"`
	UserID         string `json:"user_id"`
	Plan           string `json:"plan"`
	SubscriptionID string `json:"subscription_id"`
}

// subscriptionEventTypes maps normalized payload types onto state
// machine events. subscription.renewed is absent: renewals roll the
// billing period instead of transitioning state.
var subscriptionEventTypes = map[string]account.SubscriptionEvent{
	"subscription.started":           account.EventSubscribed,
	"subscription.cancelled":         account.EventCancelled,
	"subscription.payment_failed":    account.EventPaymentFailed,
	"subscription.payment_succeeded": account.EventPaymentSucceeded,
	"subscription.resubscribed":      account.EventResubscribed,
}

// HandleSubscriptionWebhook translates a normalized subscription event
// into the matching ledger call: a state transition, or a period renewal
// with its per-period credit grant.
func HandleSubscriptionWebhook(ctx context.Context, l SubscriptionLedger, payload []byte) (*account.Account, error) {
	var p subscriptionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("integration: decode subscription payload: %w", err)
	}

	user, err := id.ParseUserID(p.UserID)
	if err != nil {
		return nil, fmt.Errorf("integration: subscription payload user_id: %w", err)
	}

	if p.Type == "subscription.renewed" {
		return l.RenewSubscription(ctx, user)
	}

	event, ok := subscriptionEventTypes[p.Type]
	if !ok {
		return nil, fmt.Errorf("integration: unrecognized subscription event type %q", p.Type)
	}

	pl := plan.Plan(p.Plan)
	if needsPlan(event) && !pl.Valid() {
		return nil, fmt.Errorf("integration: unrecognized plan %q", p.Plan)
	}

	return l.ApplySubscriptionEvent(ctx, user, event, pl)
}

// needsPlan reports whether the event creates or re-creates a
// subscription and therefore must name a valid plan.
func needsPlan(event account.SubscriptionEvent) bool {
	return event == account.EventSubscribed || event == account.EventResubscribed
}
