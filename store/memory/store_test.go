package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	ledger "github.com/xraph/zcredit-ledger"
	"github.com/xraph/zcredit-ledger/account"
	"github.com/xraph/zcredit-ledger/id"
	"github.com/xraph/zcredit-ledger/store"
	"github.com/xraph/zcredit-ledger/txn"
	"github.com/xraph/zcredit-ledger/usage"
)

func testEvent(user id.UserID, eventID string) *usage.Event {
	return &usage.Event{
		EventID:   eventID,
		UserID:    user,
		Source:    "test",
		Metric:    usage.LLMTokensMetric("anthropic", "claude-3-5-sonnet", 500, 1000),
		Timestamp: time.Now().UTC(),
	}
}

func TestCreateAccountTwiceFails(t *testing.T) {
	s := New()
	ctx := context.Background()
	user := id.NewUserID()

	if _, err := s.CreateAccount(ctx, user, ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateAccount(ctx, user, ""); !errors.Is(err, ledger.ErrAlreadyExists) {
		t.Fatalf("second create: got %v, want ErrAlreadyExists", err)
	}
}

func TestProcessUsageDebitsAndRecords(t *testing.T) {
	s := New()
	ctx := context.Background()
	user := id.NewUserID()

	if _, err := s.CreateAccount(ctx, user, ""); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.AddCredits(ctx, user, 5000, txn.Purchase, "purchase", nil); err != nil {
		t.Fatal(err)
	}

	a, tr, err := s.ProcessUsage(ctx, testEvent(user, "e1"), 1, "llm usage")
	if err != nil {
		t.Fatalf("process usage: %v", err)
	}
	if a.BalanceCents != 4999 {
		t.Errorf("balance = %d, want 4999", a.BalanceCents)
	}
	if a.LifetimeUsedCents != 1 {
		t.Errorf("lifetime used = %d, want 1", a.LifetimeUsedCents)
	}
	if tr.AmountCents != -1 || tr.BalanceAfterCents != 4999 || tr.Type != txn.Usage {
		t.Errorf("unexpected transaction: %+v", tr)
	}

	got, err := s.GetUsageEvent(ctx, "e1")
	if err != nil {
		t.Fatalf("get usage event: %v", err)
	}
	if !got.UserID.Equal(user) {
		t.Error("usage event user mismatch")
	}
}

func TestProcessUsageDuplicateEvent(t *testing.T) {
	s := New()
	ctx := context.Background()
	user := id.NewUserID()

	s.CreateAccount(ctx, user, "")
	s.AddCredits(ctx, user, 100, txn.Purchase, "", nil)

	if _, _, err := s.ProcessUsage(ctx, testEvent(user, "e1"), 10, ""); err != nil {
		t.Fatal(err)
	}
	_, _, err := s.ProcessUsage(ctx, testEvent(user, "e1"), 10, "")
	if !ledger.IsDuplicateEvent(err) {
		t.Fatalf("got %v, want DuplicateEventError", err)
	}

	a, _ := s.GetAccount(ctx, user)
	if a.BalanceCents != 90 {
		t.Errorf("duplicate must not change balance: got %d, want 90", a.BalanceCents)
	}
}

func TestProcessUsageInsufficientCredits(t *testing.T) {
	s := New()
	ctx := context.Background()
	user := id.NewUserID()

	s.CreateAccount(ctx, user, "")
	s.AddCredits(ctx, user, 10, txn.Purchase, "", nil)

	_, _, err := s.ProcessUsage(ctx, testEvent(user, "e1"), 100, "")
	var insufficient *ledger.InsufficientCreditsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("got %v, want InsufficientCreditsError", err)
	}
	if insufficient.BalanceCents != 10 || insufficient.RequiredCents != 100 {
		t.Errorf("error fields = %+v", insufficient)
	}

	// No state change, not even the usage event.
	if ok, _ := s.HasUsageEvent(ctx, "e1"); ok {
		t.Error("rejected event must not be recorded")
	}
	a, _ := s.GetAccount(ctx, user)
	if a.BalanceCents != 10 {
		t.Errorf("balance changed on rejection: %d", a.BalanceCents)
	}
}

func TestProcessUsageUnknownUser(t *testing.T) {
	s := New()
	_, _, err := s.ProcessUsage(context.Background(), testEvent(id.NewUserID(), "e1"), 1, "")
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestLifetimeCounters(t *testing.T) {
	s := New()
	ctx := context.Background()
	user := id.NewUserID()
	s.CreateAccount(ctx, user, "")

	s.AddCredits(ctx, user, 1000, txn.Purchase, "", nil)
	s.AddCredits(ctx, user, 500, txn.SubscriptionGrant, "", nil)
	s.AddCredits(ctx, user, 200, txn.Bonus, "", nil)

	a, _ := s.GetAccount(ctx, user)
	if a.BalanceCents != 1700 {
		t.Errorf("balance = %d, want 1700", a.BalanceCents)
	}
	if a.LifetimePurchasedCents != 1000 {
		t.Errorf("purchased = %d, want 1000", a.LifetimePurchasedCents)
	}
	if a.LifetimeGrantedCents != 500 {
		t.Errorf("granted = %d, want 500", a.LifetimeGrantedCents)
	}
}

func TestAddCreditsIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()
	user := id.NewUserID()
	s.CreateAccount(ctx, user, "")

	a, tr, dup, err := s.AddCreditsIdempotent(ctx, user, 5000, txn.Purchase, "", nil, "purchase_ref/pi_1")
	if err != nil || dup {
		t.Fatalf("first call: err=%v dup=%v", err, dup)
	}
	if tr == nil || a.BalanceCents != 5000 {
		t.Fatalf("first call did not credit: %+v", a)
	}

	a, tr, dup, err = s.AddCreditsIdempotent(ctx, user, 5000, txn.Purchase, "", nil, "purchase_ref/pi_1")
	if err != nil {
		t.Fatal(err)
	}
	if !dup || tr != nil {
		t.Error("second call must be reported as duplicate with no transaction")
	}
	if a.BalanceCents != 5000 {
		t.Errorf("duplicate changed balance: %d", a.BalanceCents)
	}

	page, _ := s.ListTransactionsByUser(ctx, user, store.ListTransactionsOpts{Limit: 10})
	if len(page.Transactions) != 1 {
		t.Errorf("expected one committed transaction, got %d", len(page.Transactions))
	}
}

func TestListNewestFirstWithOffset(t *testing.T) {
	s := New()
	ctx := context.Background()
	user := id.NewUserID()
	s.CreateAccount(ctx, user, "")

	for i := 0; i < 3; i++ {
		if _, _, err := s.AddCredits(ctx, user, int64(100*(i+1)), txn.Purchase, "", nil); err != nil {
			t.Fatal(err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	page, err := s.ListTransactionsByUser(ctx, user, store.ListTransactionsOpts{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Transactions) != 2 || !page.HasMore {
		t.Fatalf("page = %d entries, has_more=%v", len(page.Transactions), page.HasMore)
	}
	if page.Transactions[0].AmountCents != 300 || page.Transactions[1].AmountCents != 200 {
		t.Errorf("expected newest first: %d, %d", page.Transactions[0].AmountCents, page.Transactions[1].AmountCents)
	}

	page, _ = s.ListTransactionsByUser(ctx, user, store.ListTransactionsOpts{Limit: 2, Offset: 2})
	if len(page.Transactions) != 1 || page.HasMore {
		t.Fatalf("offset page = %d entries, has_more=%v", len(page.Transactions), page.HasMore)
	}
	if page.Transactions[0].AmountCents != 100 {
		t.Errorf("expected oldest entry last, got %d", page.Transactions[0].AmountCents)
	}
}

func TestDeleteAccountRemovesIndexRetainsHistory(t *testing.T) {
	s := New()
	ctx := context.Background()
	user := id.NewUserID()
	s.CreateAccount(ctx, user, "")
	_, credit, err := s.AddCredits(ctx, user, 100, txn.Purchase, "", nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteAccountAtomic(ctx, user); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetAccount(ctx, user); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatal("account should be gone")
	}

	// The by-user index goes with the account; the row itself survives.
	page, _ := s.ListTransactionsByUser(ctx, user, store.ListTransactionsOpts{Limit: 10})
	if len(page.Transactions) != 0 {
		t.Errorf("index entries survived deletion: %d", len(page.Transactions))
	}
	if _, err := s.GetTransaction(ctx, credit.TransactionID); err != nil {
		t.Errorf("transaction lost on deletion: %v", err)
	}

	if err := s.DeleteAccountAtomic(ctx, user); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("second delete: got %v, want ErrNotFound", err)
	}
}

func TestUpdateAccountRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	user := id.NewUserID()
	s.CreateAccount(ctx, user, "")

	boom := errors.New("boom")
	_, err := s.UpdateAccount(ctx, user, func(a *account.Account) error {
		a.BalanceCents = 999
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want boom", err)
	}

	a, _ := s.GetAccount(ctx, user)
	if a.BalanceCents != 0 {
		t.Error("failed update must not persist")
	}
}
