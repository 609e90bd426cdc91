package observability

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xraph/zcredit-ledger/account"
	"github.com/xraph/zcredit-ledger/id"
	"github.com/xraph/zcredit-ledger/txn"
	"github.com/xraph/zcredit-ledger/types"
)

type fakeCounter struct{ value float64 }

func (c *fakeCounter) Inc()          { c.value++ }
func (c *fakeCounter) Add(v float64) { c.value += v }

type fakeHistogram struct{ observed []float64 }

func (h *fakeHistogram) Observe(v float64) { h.observed = append(h.observed, v) }

type fakeFactory struct{}

func (fakeFactory) Counter(string) Counter     { return &fakeCounter{} }
func (fakeFactory) Histogram(string) Histogram { return &fakeHistogram{} }

func TestMetricsExtensionHooks(t *testing.T) {
	m := NewMetricsExtension(fakeFactory{})
	ctx := context.Background()
	user := id.NewUserID()
	a := account.New(user, "")

	debit := txn.New(user, types.Cents(-25), txn.Usage, 75, "", nil)
	m.OnUsageDebited(ctx, a, debit)
	m.OnUsageDebited(ctx, a, debit)
	if got := m.UsageDebited.(*fakeCounter).value; got != 2 {
		t.Errorf("usage debited = %v, want 2", got)
	}
	if got := m.UsageCostCents.(*fakeHistogram).observed; len(got) != 2 || got[0] != 25 {
		t.Errorf("cost observations = %v", got)
	}

	credit := txn.New(user, 5000, txn.Purchase, 5000, "", nil)
	m.OnCreditsAdded(ctx, a, credit)
	if got := m.CreditedCents.(*fakeHistogram).observed; len(got) != 1 || got[0] != 5000 {
		t.Errorf("credit observations = %v", got)
	}

	m.OnDuplicateEventRejected(ctx, "e1")
	m.OnInsufficientCredits(ctx, a, 100)
	m.OnAutoRefillTriggered(ctx, a, 2000)
	m.OnSubscriptionTransitioned(ctx, a, account.EventSubscribed)
	m.OnAccountCreated(ctx, a)
	m.OnAccountDeleted(ctx, user.String())

	for name, c := range map[string]Counter{
		"duplicates":  m.DuplicatesRejected,
		"denied":      m.InsufficientDenied,
		"refills":     m.AutoRefillsIssued,
		"transitions": m.SubscriptionTransitions,
		"created":     m.AccountsCreated,
		"deleted":     m.AccountsDeleted,
	} {
		if got := c.(*fakeCounter).value; got != 1 {
			t.Errorf("%s = %v, want 1", name, got)
		}
	}
}

func TestPrometheusFactoryRegistersSanitizedNames(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := NewPrometheusFactory(reg)

	c := f.Counter("ledger.usage.debited")
	c.Inc()
	h := f.Histogram("ledger.usage.cost_cents")
	h.Observe(25)

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	names := make(map[string]bool, len(families))
	for _, fam := range families {
		names[fam.GetName()] = true
	}
	if !names["ledger_usage_debited_total"] {
		t.Errorf("counter not registered under sanitized name: %v", names)
	}
	if !names["ledger_usage_cost_cents"] {
		t.Errorf("histogram not registered under sanitized name: %v", names)
	}
}
