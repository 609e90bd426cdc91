// Package observability provides a metrics extension for the ledger
// that records lifecycle event counts and amounts. Metrics are created
// through a small MetricFactory interface; a Prometheus-backed factory
// is included.
package observability

import (
	"context"

	"github.com/xraph/zcredit-ledger/account"
	"github.com/xraph/zcredit-ledger/plugin"
	"github.com/xraph/zcredit-ledger/txn"
)

// Ensure MetricsExtension implements the hook interfaces.
var (
	_ plugin.Plugin                     = (*MetricsExtension)(nil)
	_ plugin.OnUsageDebited             = (*MetricsExtension)(nil)
	_ plugin.OnDuplicateEventRejected   = (*MetricsExtension)(nil)
	_ plugin.OnInsufficientCredits      = (*MetricsExtension)(nil)
	_ plugin.OnCreditsAdded             = (*MetricsExtension)(nil)
	_ plugin.OnAutoRefillTriggered      = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionTransitioned = (*MetricsExtension)(nil)
	_ plugin.OnAccountCreated           = (*MetricsExtension)(nil)
	_ plugin.OnAccountDeleted           = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a ledger plugin to automatically track billing metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Account metrics
	AccountsCreated Counter
	AccountsDeleted Counter

	// Usage metrics
	UsageDebited       Counter
	UsageCostCents     Histogram
	DuplicatesRejected Counter
	InsufficientDenied Counter

	// Credit metrics
	CreditsAdded      Counter
	CreditedCents     Histogram
	AutoRefillsIssued Counter

	// Subscription metrics
	SubscriptionTransitions Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided
// MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		AccountsCreated: factory.Counter("ledger.account.created"),
		AccountsDeleted: factory.Counter("ledger.account.deleted"),

		UsageDebited:       factory.Counter("ledger.usage.debited"),
		UsageCostCents:     factory.Histogram("ledger.usage.cost_cents"),
		DuplicatesRejected: factory.Counter("ledger.usage.duplicates_rejected"),
		InsufficientDenied: factory.Counter("ledger.usage.insufficient_credits"),

		CreditsAdded:      factory.Counter("ledger.credits.added"),
		CreditedCents:     factory.Histogram("ledger.credits.amount_cents"),
		AutoRefillsIssued: factory.Counter("ledger.credits.auto_refills"),

		SubscriptionTransitions: factory.Counter("ledger.subscription.transitions"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnUsageDebited implements plugin.OnUsageDebited.
func (m *MetricsExtension) OnUsageDebited(_ context.Context, _ *account.Account, t *txn.CreditTransaction) error {
	m.UsageDebited.Inc()
	m.UsageCostCents.Observe(float64(t.AmountCents.Abs()))
	return nil
}

// OnDuplicateEventRejected implements plugin.OnDuplicateEventRejected.
func (m *MetricsExtension) OnDuplicateEventRejected(_ context.Context, _ string) error {
	m.DuplicatesRejected.Inc()
	return nil
}

// OnInsufficientCredits implements plugin.OnInsufficientCredits.
func (m *MetricsExtension) OnInsufficientCredits(_ context.Context, _ *account.Account, _ int64) error {
	m.InsufficientDenied.Inc()
	return nil
}

// OnCreditsAdded implements plugin.OnCreditsAdded.
func (m *MetricsExtension) OnCreditsAdded(_ context.Context, _ *account.Account, t *txn.CreditTransaction) error {
	m.CreditsAdded.Inc()
	m.CreditedCents.Observe(float64(t.AmountCents))
	return nil
}

// OnAutoRefillTriggered implements plugin.OnAutoRefillTriggered.
func (m *MetricsExtension) OnAutoRefillTriggered(_ context.Context, _ *account.Account, _ int64) error {
	m.AutoRefillsIssued.Inc()
	return nil
}

// OnSubscriptionTransitioned implements plugin.OnSubscriptionTransitioned.
func (m *MetricsExtension) OnSubscriptionTransitioned(_ context.Context, _ *account.Account, _ account.SubscriptionEvent) error {
	m.SubscriptionTransitions.Inc()
	return nil
}

// OnAccountCreated implements plugin.OnAccountCreated.
func (m *MetricsExtension) OnAccountCreated(_ context.Context, _ *account.Account) error {
	m.AccountsCreated.Inc()
	return nil
}

// OnAccountDeleted implements plugin.OnAccountDeleted.
func (m *MetricsExtension) OnAccountDeleted(_ context.Context, _ string) error {
	m.AccountsDeleted.Inc()
	return nil
}
