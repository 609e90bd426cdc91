package account

import (
	"testing"
	"time"

	"github.com/xraph/zcredit-ledger/plan"
)

func TestTransitionSubscribedFromAbsent(t *testing.T) {
	now := time.Now().UTC()

	next, grant, err := TransitionSubscription(nil, EventSubscribed, plan.Standard, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !grant {
		t.Error("subscribing should trigger a credit grant")
	}
	if next.Status != StatusActive {
		t.Errorf("status = %s, want active", next.Status)
	}
	if !next.CurrentPeriodStart.Equal(now) {
		t.Errorf("period start = %v, want %v", next.CurrentPeriodStart, now)
	}
	if !next.CurrentPeriodEnd.Equal(now.AddDate(0, 1, 0)) {
		t.Errorf("period end = %v, want one month out", next.CurrentPeriodEnd)
	}
}

func TestTransitionTable(t *testing.T) {
	now := time.Now().UTC()
	active := &Subscription{Plan: plan.Pro, Status: StatusActive, CurrentPeriodStart: now, CurrentPeriodEnd: now.AddDate(0, 1, 0)}
	cancelled := &Subscription{Plan: plan.Pro, Status: StatusCancelled, CurrentPeriodStart: now, CurrentPeriodEnd: now.AddDate(0, 1, 0)}
	pastDue := &Subscription{Plan: plan.Pro, Status: StatusPastDue, CurrentPeriodStart: now, CurrentPeriodEnd: now.AddDate(0, 1, 0)}

	tests := []struct {
		name       string
		current    *Subscription
		event      SubscriptionEvent
		wantStatus SubscriptionStatus
		wantGrant  bool
		wantErr    bool
	}{
		{"active cancels", active, EventCancelled, StatusCancelled, false, false},
		{"active payment fails", active, EventPaymentFailed, StatusPastDue, false, false},
		{"active cannot resubscribe", active, EventResubscribed, "", false, true},
		{"cancelled resubscribes", cancelled, EventResubscribed, StatusActive, true, false},
		{"cancelled cannot cancel again", cancelled, EventCancelled, "", false, true},
		{"past due recovers", pastDue, EventPaymentSucceeded, StatusActive, false, false},
		{"past due cannot resubscribe", pastDue, EventResubscribed, "", false, true},
		{"absent rejects cancel", nil, EventCancelled, "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, grant, err := TransitionSubscription(tt.current, tt.event, plan.Pro, now)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if next.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", next.Status, tt.wantStatus)
			}
			if grant != tt.wantGrant {
				t.Errorf("grant = %v, want %v", grant, tt.wantGrant)
			}
		})
	}
}

func TestTransitionDoesNotMutateInput(t *testing.T) {
	now := time.Now().UTC()
	current := &Subscription{Plan: plan.Pro, Status: StatusActive, CurrentPeriodEnd: now}

	if _, _, err := TransitionSubscription(current, EventCancelled, plan.Pro, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if current.Status != StatusActive {
		t.Error("transition mutated its input")
	}
}

func TestResubscribeResetsPeriod(t *testing.T) {
	old := time.Now().UTC().AddDate(0, -2, 0)
	cancelled := &Subscription{Plan: plan.Standard, Status: StatusCancelled, CurrentPeriodStart: old, CurrentPeriodEnd: old.AddDate(0, 1, 0)}

	now := time.Now().UTC()
	next, _, err := TransitionSubscription(cancelled, EventResubscribed, plan.Standard, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.CurrentPeriodStart.Equal(now) {
		t.Errorf("period start = %v, want fresh period at %v", next.CurrentPeriodStart, now)
	}
}

func TestExpireCancelled(t *testing.T) {
	now := time.Now().UTC()
	sub := &Subscription{Status: StatusCancelled, CurrentPeriodEnd: now.Add(time.Hour)}

	if ExpireCancelled(sub, now) {
		t.Error("should not expire before period end")
	}
	if !ExpireCancelled(sub, now.Add(2*time.Hour)) {
		t.Error("should expire after period end")
	}
	if ExpireCancelled(nil, now) {
		t.Error("absent subscription never expires")
	}
	active := &Subscription{Status: StatusActive, CurrentPeriodEnd: now.Add(-time.Hour)}
	if ExpireCancelled(active, now) {
		t.Error("active subscription must not expire as cancelled")
	}
}

func TestExpirePastDue(t *testing.T) {
	now := time.Now().UTC()
	sub := &Subscription{Status: StatusPastDue, CurrentPeriodEnd: now.Add(-PastDueGracePeriod / 2)}

	if ExpirePastDue(sub, now) {
		t.Error("should not expire inside the grace period")
	}
	sub.CurrentPeriodEnd = now.Add(-PastDueGracePeriod - time.Hour)
	if !ExpirePastDue(sub, now) {
		t.Error("should expire after the grace period")
	}
}

func TestAutoRefillValidation(t *testing.T) {
	if (AutoRefill{TriggerBelowCents: 99, RefillAmountCents: 500}).Valid() {
		t.Error("trigger below 100 must be invalid")
	}
	if (AutoRefill{TriggerBelowCents: 100, RefillAmountCents: 499}).Valid() {
		t.Error("refill below 500 must be invalid")
	}
	if !(AutoRefill{TriggerBelowCents: 100, RefillAmountCents: 500}).Valid() {
		t.Error("minimum configuration must be valid")
	}
}

func TestNeedsAutoRefill(t *testing.T) {
	a := New(testUserID(t), "")
	if a.NeedsAutoRefill() {
		t.Error("no config means no refill")
	}

	a.AutoRefill = &AutoRefill{Enabled: true, TriggerBelowCents: 1000, RefillAmountCents: 2000}
	a.BalanceCents = 999
	if !a.NeedsAutoRefill() {
		t.Error("balance below trigger should need refill")
	}
	a.BalanceCents = 1000
	if a.NeedsAutoRefill() {
		t.Error("balance at trigger should not need refill")
	}
	a.AutoRefill.Enabled = false
	a.BalanceCents = 0
	if a.NeedsAutoRefill() {
		t.Error("disabled config should not need refill")
	}
}
