package account

import (
	"testing"

	"github.com/xraph/zcredit-ledger/id"
	"github.com/xraph/zcredit-ledger/plan"
)

func testUserID(t *testing.T) id.UserID {
	t.Helper()
	return id.MustParseUserID("550e8400-e29b-41d4-a716-446655440000")
}

func TestNewAccountInitialState(t *testing.T) {
	a := New(testUserID(t), "dev@example.com")

	if a.BalanceCents != 0 || a.LifetimePurchasedCents != 0 || a.LifetimeGrantedCents != 0 || a.LifetimeUsedCents != 0 {
		t.Error("new account must start with zero balance and counters")
	}
	if a.Subscription != nil {
		t.Error("new account must have no subscription")
	}
	if a.AutoRefill != nil {
		t.Error("new account must have no auto-refill")
	}
	if a.CreatedAt.IsZero() || a.UpdatedAt.IsZero() {
		t.Error("timestamps must be set")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	a := New(testUserID(t), "")
	a.Subscription = &Subscription{Plan: plan.Pro, Status: StatusActive}
	a.AutoRefill = &AutoRefill{Enabled: true, TriggerBelowCents: 100, RefillAmountCents: 500}

	cp := a.Clone()
	cp.BalanceCents = 42
	cp.Subscription.Status = StatusCancelled
	cp.AutoRefill.Enabled = false

	if a.BalanceCents != 0 {
		t.Error("clone mutation leaked into original balance")
	}
	if a.Subscription.Status != StatusActive {
		t.Error("clone mutation leaked into original subscription")
	}
	if !a.AutoRefill.Enabled {
		t.Error("clone mutation leaked into original auto-refill")
	}
}

func TestHasSufficientBalance(t *testing.T) {
	a := New(testUserID(t), "")
	a.BalanceCents = 100

	if !a.HasSufficientBalance(100) {
		t.Error("exact balance must be sufficient")
	}
	if a.HasSufficientBalance(101) {
		t.Error("one cent short must be insufficient")
	}
	if !a.HasSufficientBalance(0) {
		t.Error("zero cost is always covered")
	}
}
