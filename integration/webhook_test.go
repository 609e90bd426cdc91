package integration

import (
	"context"
	"testing"

	"github.com/xraph/zcredit-ledger/account"
	"github.com/xraph/zcredit-ledger/id"
	"github.com/xraph/zcredit-ledger/plan"
	"github.com/xraph/zcredit-ledger/types"
)

type fakeLedger struct {
	purchases []struct {
		user   id.UserID
		amount types.Cents
		ref    string
	}
	events   []account.SubscriptionEvent
	plans    []plan.Plan
	renewals int
}

func (f *fakeLedger) PurchaseCompleted(_ context.Context, user id.UserID, amount types.Cents, ref string) (*account.Account, error) {
	f.purchases = append(f.purchases, struct {
		user   id.UserID
		amount types.Cents
		ref    string
	}{user, amount, ref})
	return account.New(user, ""), nil
}

func (f *fakeLedger) ApplySubscriptionEvent(_ context.Context, user id.UserID, event account.SubscriptionEvent, p plan.Plan) (*account.Account, error) {
	f.events = append(f.events, event)
	f.plans = append(f.plans, p)
	return account.New(user, ""), nil
}

func (f *fakeLedger) RenewSubscription(_ context.Context, user id.UserID) (*account.Account, error) {
	f.renewals++
	return account.New(user, ""), nil
}

func TestHandlePaymentWebhookSucceeded(t *testing.T) {
	f := &fakeLedger{}
	payload := []byte(`{"type":"payment.succeeded","user_id":"550e8400-e29b-41d4-a716-446655440000","amount_cents":5000,"reference":"pi_123"}`)

	a, err := HandlePaymentWebhook(context.Background(), f, payload)
	if err != nil {
		t.Fatal(err)
	}
	if a == nil {
		t.Fatal("expected account")
	}
	if len(f.purchases) != 1 {
		t.Fatalf("purchases = %d, want 1", len(f.purchases))
	}
	p := f.purchases[0]
	if p.amount != 5000 || p.ref != "pi_123" {
		t.Errorf("purchase = %+v", p)
	}
}

func TestHandlePaymentWebhookIgnoresOtherTypes(t *testing.T) {
	f := &fakeLedger{}
	payload := []byte(`{"type":"payment.created","user_id":"550e8400-e29b-41d4-a716-446655440000","amount_cents":5000,"reference":"pi_123"}`)

	a, err := HandlePaymentWebhook(context.Background(), f, payload)
	if err != nil {
		t.Fatal(err)
	}
	if a != nil || len(f.purchases) != 0 {
		t.Error("non-success event must be ignored")
	}
}

func TestHandlePaymentWebhookRejectsBadPayloads(t *testing.T) {
	f := &fakeLedger{}
	ctx := context.Background()

	cases := []string{
		`not json`,
		`{"type":"payment.succeeded","user_id":"nope","amount_cents":5000,"reference":"r"}`,
		`{"type":"payment.succeeded","user_id":"550e8400-e29b-41d4-a716-446655440000","amount_cents":0,"reference":"r"}`,
		`{"type":"payment.succeeded","user_id":"550e8400-e29b-41d4-a716-446655440000","amount_cents":-5,"reference":"r"}`,
		`{"type":"payment.succeeded","user_id":"550e8400-e29b-41d4-a716-446655440000","amount_cents":5000,"reference":""}`,
	}
	for _, payload := range cases {
		if _, err := HandlePaymentWebhook(ctx, f, []byte(payload)); err == nil {
			t.Errorf("payload %q should be rejected", payload)
		}
	}
	if len(f.purchases) != 0 {
		t.Error("rejected payloads must not reach the ledger")
	}
}

func TestHandleSubscriptionWebhookEventMapping(t *testing.T) {
	tests := []struct {
		payloadType string
		want        account.SubscriptionEvent
	}{
		{"subscription.started", account.EventSubscribed},
		{"subscription.cancelled", account.EventCancelled},
		{"subscription.payment_failed", account.EventPaymentFailed},
		{"subscription.payment_succeeded", account.EventPaymentSucceeded},
		{"subscription.resubscribed", account.EventResubscribed},
	}
	for _, tt := range tests {
		t.Run(tt.payloadType, func(t *testing.T) {
			f := &fakeLedger{}
			payload := []byte(`{"type":"` + tt.payloadType + `","user_id":"550e8400-e29b-41d4-a716-446655440000","plan":"pro"}`)
			if _, err := HandleSubscriptionWebhook(context.Background(), f, payload); err != nil {
				t.Fatal(err)
			}
			if len(f.events) != 1 || f.events[0] != tt.want {
				t.Errorf("events = %v, want %s", f.events, tt.want)
			}
		})
	}
}

func TestHandleSubscriptionWebhookRenewal(t *testing.T) {
	f := &fakeLedger{}
	payload := []byte(`{"type":"subscription.renewed","user_id":"550e8400-e29b-41d4-a716-446655440000"}`)

	if _, err := HandleSubscriptionWebhook(context.Background(), f, payload); err != nil {
		t.Fatal(err)
	}
	if f.renewals != 1 || len(f.events) != 0 {
		t.Errorf("renewals=%d events=%v", f.renewals, f.events)
	}
}

func TestHandleSubscriptionWebhookValidation(t *testing.T) {
	f := &fakeLedger{}
	ctx := context.Background()

	// Starting a subscription requires a recognized plan.
	payload := []byte(`{"type":"subscription.started","user_id":"550e8400-e29b-41d4-a716-446655440000","plan":"platinum"}`)
	if _, err := HandleSubscriptionWebhook(ctx, f, payload); err == nil {
		t.Error("unknown plan should be rejected")
	}

	// Cancellation needs no plan.
	payload = []byte(`{"type":"subscription.cancelled","user_id":"550e8400-e29b-41d4-a716-446655440000"}`)
	if _, err := HandleSubscriptionWebhook(ctx, f, payload); err != nil {
		t.Errorf("cancel without plan: %v", err)
	}

	payload = []byte(`{"type":"subscription.paused","user_id":"550e8400-e29b-41d4-a716-446655440000"}`)
	if _, err := HandleSubscriptionWebhook(ctx, f, payload); err == nil {
		t.Error("unrecognized event type should be rejected")
	}
}
