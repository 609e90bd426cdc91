package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/zcredit-ledger/account"
	"github.com/xraph/zcredit-ledger/id"
	"github.com/xraph/zcredit-ledger/integration"
	"github.com/xraph/zcredit-ledger/plan"
	"github.com/xraph/zcredit-ledger/plugin"
	"github.com/xraph/zcredit-ledger/pricing"
	"github.com/xraph/zcredit-ledger/store"
	"github.com/xraph/zcredit-ledger/txn"
	"github.com/xraph/zcredit-ledger/types"
	"github.com/xraph/zcredit-ledger/usage"
)

// Idempotency-marker key prefixes in the usage-event column family.
// Purchase references and per-period grants share the family with real
// usage events; the prefixes keep the namespaces disjoint.
const (
	purchaseRefPrefix = "purchase_ref/"
	subGrantPrefix    = "subscription_grant/"
)

// Interface checks against the inbound adapter contracts.
var (
	_ integration.CreditLedger       = (*Ledger)(nil)
	_ integration.SubscriptionLedger = (*Ledger)(nil)
)

// Ledger is the credit billing engine. All mutations flow through the
// store's compound atomic operations; the engine layers pricing,
// idempotency keys, subscription bookkeeping, auto-refill, plugin
// dispatch, and best-effort analytics forwarding on top.
type Ledger struct {
	store   store.Store
	pricing *pricing.Engine
	plugins *plugin.Registry
	logger  *slog.Logger

	analyticsSink integration.AnalyticsSink
	forwarderOpts []integration.ForwarderOption
	analytics     *integration.Forwarder

	payments    integration.PaymentProvider
	hookTimeout time.Duration

	refillCooldown time.Duration
	refillMu       sync.Mutex
	lastRefill     map[string]time.Time

	wg sync.WaitGroup
}

// New creates a Ledger over s. Without options it prices with the
// default rate table, logs through slog.Default, and has no analytics
// sink or payment provider wired.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:          s,
		pricing:        pricing.NewEngine(pricing.DefaultConfig()),
		plugins:        plugin.NewRegistry(),
		logger:         slog.Default(),
		hookTimeout:    10 * time.Second,
		refillCooldown: time.Hour,
		lastRefill:     make(map[string]time.Time),
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.analyticsSink != nil {
		fopts := append([]integration.ForwarderOption{integration.WithForwarderLogger(l.logger)}, l.forwarderOpts...)
		l.analytics = integration.NewForwarder(l.analyticsSink, fopts...)
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithPricing replaces the default pricing engine.
func WithPricing(e *pricing.Engine) Option {
	return func(l *Ledger) { l.pricing = e }
}

// WithAnalyticsSink wires the best-effort analytics forward issued after
// each committed usage event. Forwarder options tune the queue size,
// delivery timeout, and retry cap.
func WithAnalyticsSink(sink integration.AnalyticsSink, opts ...integration.ForwarderOption) Option {
	return func(l *Ledger) {
		l.analyticsSink = sink
		l.forwarderOpts = opts
	}
}

// WithPaymentProvider wires the charge hook used by auto-refill.
func WithPaymentProvider(p integration.PaymentProvider) Option {
	return func(l *Ledger) { l.payments = p }
}

// WithHookTimeout bounds each outbound hook call (payment charges).
func WithHookTimeout(d time.Duration) Option {
	return func(l *Ledger) { l.hookTimeout = d }
}

// WithAutoRefillCooldown sets the minimum interval between auto-refill
// charges for a single account. The cooldown prevents a refill → debit →
// refill storm when a user's burn rate outpaces their refill amount.
func WithAutoRefillCooldown(d time.Duration) Option {
	return func(l *Ledger) { l.refillCooldown = d }
}

// Start verifies the store and launches background workers.
func (l *Ledger) Start(ctx context.Context) error {
	if err := l.store.Ping(ctx); err != nil {
		return fmt.Errorf("ledger: store ping: %w", err)
	}

	l.plugins.EmitInit(ctx, l)

	if l.analytics != nil {
		l.analytics.Start()
	}

	l.logger.Info("ledger started",
		"analytics", l.analytics != nil,
		"payments", l.payments != nil,
	)
	return nil
}

// Stop waits for in-flight auto-refills, drains the analytics queue, and
// closes the store.
func (l *Ledger) Stop() error {
	l.wg.Wait()

	if l.analytics != nil {
		l.analytics.Stop()
	}

	l.plugins.EmitShutdown(context.Background())

	return l.store.Close()
}

// ──────────────────────────────────────────────────
// Accounts
// ──────────────────────────────────────────────────

// CreateAccount creates a fresh zero-balance account for user. It fails
// with ErrAlreadyExists if the user already has one.
func (l *Ledger) CreateAccount(ctx context.Context, user id.UserID, email string) (*account.Account, error) {
	if user.IsNil() {
		return nil, &InvalidRequestError{Field: "user_id", Reason: "must not be empty"}
	}

	a, err := l.store.CreateAccount(ctx, user, email)
	if err != nil {
		return nil, err
	}

	l.plugins.EmitAccountCreated(ctx, a)
	l.logger.Info("account created", "user_id", user)
	return a, nil
}

// GetAccount returns a snapshot of the user's account. Lapsed
// subscriptions (cancelled past period end, or past-due past the grace
// period) are cleared lazily on read.
func (l *Ledger) GetAccount(ctx context.Context, user id.UserID) (*account.Account, error) {
	a, err := l.store.GetAccount(ctx, user)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if account.ExpireCancelled(a.Subscription, now) || account.ExpirePastDue(a.Subscription, now) {
		return l.store.UpdateAccount(ctx, user, func(a *account.Account) error {
			if account.ExpireCancelled(a.Subscription, now) || account.ExpirePastDue(a.Subscription, now) {
				l.logger.Info("subscription lapsed", "user_id", user, "status", a.Subscription.Status)
				a.Subscription = nil
			}
			return nil
		})
	}
	return a, nil
}

// DeleteAccount removes the account record and its by-user transaction
// index. Transactions and usage events are retained for audit,
// reachable by id.
func (l *Ledger) DeleteAccount(ctx context.Context, user id.UserID) error {
	if err := l.store.DeleteAccountAtomic(ctx, user); err != nil {
		return err
	}
	l.plugins.EmitAccountDeleted(ctx, user.String())
	l.logger.Info("account deleted", "user_id", user)
	return nil
}

// BalanceCheck is the result of CheckBalance.
type BalanceCheck struct {
	Sufficient    bool
	BalanceCents  types.Cents
	RequiredCents types.Cents
}

// CheckBalance reports whether the user's balance covers requiredCents.
// Read-only; it never takes the per-user serialization point.
func (l *Ledger) CheckBalance(ctx context.Context, user id.UserID, requiredCents types.Cents) (*BalanceCheck, error) {
	a, err := l.store.GetAccount(ctx, user)
	if err != nil {
		return nil, err
	}
	return &BalanceCheck{
		Sufficient:    a.HasSufficientBalance(requiredCents),
		BalanceCents:  a.BalanceCents,
		RequiredCents: requiredCents,
	}, nil
}

// ListTransactions returns a page of the user's ledger entries, newest
// first.
func (l *Ledger) ListTransactions(ctx context.Context, user id.UserID, limit, offset int) (*store.TransactionPage, error) {
	return l.store.ListTransactionsByUser(ctx, user, store.ListTransactionsOpts{Limit: limit, Offset: offset})
}

// GetTransaction fetches a single ledger entry.
func (l *Ledger) GetTransaction(ctx context.Context, txID id.TransactionID) (*txn.CreditTransaction, error) {
	return l.store.GetTransaction(ctx, txID)
}

// GetUsageEvent fetches a recorded usage event by its caller-supplied
// event id.
func (l *Ledger) GetUsageEvent(ctx context.Context, eventID string) (*usage.Event, error) {
	return l.store.GetUsageEvent(ctx, eventID)
}

// ──────────────────────────────────────────────────
// Usage reporting
// ──────────────────────────────────────────────────

// UsageResult is the outcome of a successful ReportUsage call.
type UsageResult struct {
	BalanceCents  types.Cents
	CostCents     types.Cents
	TransactionID id.TransactionID
}

// ReportUsage prices evt (unless the caller precomputed CostCents),
// atomically debits the account, and appends the matching Usage
// transaction. A duplicate EventID fails with *DuplicateEventError and
// changes nothing. After commit the event is queued to the analytics
// sink and auto-refill is evaluated; neither affects the returned
// result.
func (l *Ledger) ReportUsage(ctx context.Context, evt *usage.Event) (*UsageResult, error) {
	if evt == nil || evt.EventID == "" {
		return nil, &InvalidRequestError{Field: "event_id", Reason: "must not be empty"}
	}
	if evt.UserID.IsNil() {
		return nil, &InvalidRequestError{Field: "user_id", Reason: "must not be empty"}
	}

	var cost types.Cents
	if evt.CostCents != nil {
		cost = *evt.CostCents
		if cost < 0 {
			return nil, &InvalidRequestError{Field: "cost_cents", Reason: "must not be negative"}
		}
	} else {
		priced, err := l.pricing.Price(evt.Metric)
		if err != nil {
			return nil, &InvalidRequestError{Field: "metric", Reason: err.Error()}
		}
		cost = priced
		evt.CostCents = &cost
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	a, t, err := l.store.ProcessUsage(ctx, evt, int64(cost), evt.Metric.Description())
	if err != nil {
		var dup *DuplicateEventError
		if errors.As(err, &dup) {
			l.plugins.EmitDuplicateEventRejected(ctx, dup.EventID)
			return nil, err
		}
		var insufficient *InsufficientCreditsError
		if errors.As(err, &insufficient) {
			if cur, readErr := l.store.GetAccount(ctx, evt.UserID); readErr == nil {
				l.plugins.EmitInsufficientCredits(ctx, cur, int64(insufficient.RequiredCents))
			}
		}
		return nil, err
	}

	l.plugins.EmitUsageDebited(ctx, a, t)
	l.logger.Debug("usage debited",
		"event_id", evt.EventID,
		"user_id", evt.UserID,
		"cost_cents", cost,
		"balance_cents", a.BalanceCents,
	)

	if l.analytics != nil {
		l.analytics.Enqueue(evt)
	}
	l.maybeAutoRefill(a)

	return &UsageResult{
		BalanceCents:  a.BalanceCents,
		CostCents:     cost,
		TransactionID: t.TransactionID,
	}, nil
}

// BatchResult is one entry of a ReportUsageBatch response.
type BatchResult struct {
	EventID   string
	Success   bool
	CostCents types.Cents
	Err       error
}

// ReportUsageBatch processes events sequentially in the order supplied.
// A failure on one event does not abort the batch; each result carries
// its own error.
func (l *Ledger) ReportUsageBatch(ctx context.Context, events []*usage.Event) []BatchResult {
	results := make([]BatchResult, 0, len(events))
	for _, evt := range events {
		r := BatchResult{}
		if evt != nil {
			r.EventID = evt.EventID
		}
		res, err := l.ReportUsage(ctx, evt)
		if err != nil {
			r.Err = err
		} else {
			r.Success = true
			r.CostCents = res.CostCents
		}
		results = append(results, r)
	}
	return results
}

// ──────────────────────────────────────────────────
// Credits
// ──────────────────────────────────────────────────

// AddCredits credits the account and appends a transaction of the given
// type. Purchase and SubscriptionGrant credits normally arrive through
// PurchaseCompleted and GrantSubscriptionCredits, which add idempotency;
// this direct entry point serves refunds and bonuses issued by an
// operator.
func (l *Ledger) AddCredits(ctx context.Context, user id.UserID, amountCents types.Cents, typ txn.Type, description string, metadata map[string]any) (*account.Account, error) {
	if amountCents <= 0 {
		return nil, &InvalidRequestError{Field: "amount_cents", Reason: "must be positive"}
	}

	a, t, err := l.store.AddCredits(ctx, user, int64(amountCents), typ, description, metadata)
	if err != nil {
		return nil, err
	}

	l.plugins.EmitCreditsAdded(ctx, a, t)
	l.logger.Info("credits added",
		"user_id", user,
		"type", typ,
		"amount_cents", amountCents,
		"balance_cents", a.BalanceCents,
	)
	return a, nil
}

// PurchaseCompleted records a completed credit purchase reported by the
// payment webhook. Duplicate deliveries of the same providerRef silently
// succeed with the original balance.
func (l *Ledger) PurchaseCompleted(ctx context.Context, user id.UserID, amountCents types.Cents, providerRef string) (*account.Account, error) {
	return l.creditIdempotent(ctx, user, amountCents, txn.Purchase, "Credit purchase", providerRef)
}

func (l *Ledger) creditIdempotent(ctx context.Context, user id.UserID, amountCents types.Cents, typ txn.Type, description, providerRef string) (*account.Account, error) {
	if amountCents <= 0 {
		return nil, &InvalidRequestError{Field: "amount_cents", Reason: "must be positive"}
	}
	if providerRef == "" {
		return nil, &InvalidRequestError{Field: "provider_reference", Reason: "must not be empty"}
	}

	a, t, duplicate, err := l.store.AddCreditsIdempotent(ctx, user, int64(amountCents), typ, description,
		map[string]any{"provider_reference": providerRef}, purchaseRefPrefix+providerRef)
	if err != nil {
		return nil, err
	}
	if duplicate {
		l.logger.Debug("duplicate purchase reference, credit skipped",
			"user_id", user, "provider_reference", providerRef)
		return a, nil
	}

	l.plugins.EmitCreditsAdded(ctx, a, t)
	l.logger.Info("purchase completed",
		"user_id", user,
		"type", typ,
		"amount_cents", amountCents,
		"provider_reference", providerRef,
	)
	return a, nil
}

// GrantSubscriptionCredits issues the plan's monthly credit grant for
// the account's current billing period. Repeated deliveries for the same
// (user, period start) produce exactly one grant.
func (l *Ledger) GrantSubscriptionCredits(ctx context.Context, user id.UserID, p plan.Plan) (*account.Account, error) {
	if !p.Valid() {
		return nil, &InvalidRequestError{Field: "plan", Reason: fmt.Sprintf("unrecognized plan %q", p)}
	}

	a, err := l.store.GetAccount(ctx, user)
	if err != nil {
		return nil, err
	}
	if a.Subscription == nil {
		return nil, &InvalidRequestError{Field: "subscription", Reason: "account has no subscription"}
	}

	key := fmt.Sprintf("%s%s/%d", subGrantPrefix, user, a.Subscription.CurrentPeriodStart.UTC().UnixNano())
	amount := p.MonthlyCredits()

	a, t, duplicate, err := l.store.AddCreditsIdempotent(ctx, user, int64(amount), txn.SubscriptionGrant,
		fmt.Sprintf("Monthly credits (%s plan)", p),
		map[string]any{"plan": string(p)}, key)
	if err != nil {
		return nil, err
	}
	if duplicate {
		l.logger.Debug("duplicate subscription grant, credit skipped", "user_id", user, "key", key)
		return a, nil
	}

	l.plugins.EmitCreditsAdded(ctx, a, t)
	l.logger.Info("subscription credits granted",
		"user_id", user,
		"plan", p,
		"amount_cents", amount,
	)
	return a, nil
}

// ──────────────────────────────────────────────────
// Subscriptions
// ──────────────────────────────────────────────────

// ApplySubscriptionEvent drives the subscription state machine with a
// normalized event and issues the per-period credit grant when the
// transition calls for one.
func (l *Ledger) ApplySubscriptionEvent(ctx context.Context, user id.UserID, event account.SubscriptionEvent, p plan.Plan) (*account.Account, error) {
	var grant bool
	var grantPlan plan.Plan

	a, err := l.store.UpdateAccount(ctx, user, func(a *account.Account) error {
		next, g, err := account.TransitionSubscription(a.Subscription, event, p, time.Now().UTC())
		if err != nil {
			return &InvalidRequestError{Field: "event", Reason: err.Error()}
		}
		a.Subscription = next
		grant = g
		if next != nil {
			grantPlan = next.Plan
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.plugins.EmitSubscriptionTransitioned(ctx, a, event)
	l.logger.Info("subscription transitioned", "user_id", user, "event", event)

	if grant {
		return l.GrantSubscriptionCredits(ctx, user, grantPlan)
	}
	return a, nil
}

// StartSubscription handles the subscribed event: absent → Active plus
// the first monthly grant.
func (l *Ledger) StartSubscription(ctx context.Context, user id.UserID, p plan.Plan) (*account.Account, error) {
	return l.ApplySubscriptionEvent(ctx, user, account.EventSubscribed, p)
}

// CancelSubscription marks the subscription cancelled; it remains in
// effect until the current period ends.
func (l *Ledger) CancelSubscription(ctx context.Context, user id.UserID) (*account.Account, error) {
	return l.ApplySubscriptionEvent(ctx, user, account.EventCancelled, "")
}

// MarkPaymentFailed moves an active subscription to PastDue.
func (l *Ledger) MarkPaymentFailed(ctx context.Context, user id.UserID) (*account.Account, error) {
	return l.ApplySubscriptionEvent(ctx, user, account.EventPaymentFailed, "")
}

// MarkPaymentSucceeded recovers a PastDue subscription to Active.
func (l *Ledger) MarkPaymentSucceeded(ctx context.Context, user id.UserID) (*account.Account, error) {
	return l.ApplySubscriptionEvent(ctx, user, account.EventPaymentSucceeded, "")
}

// Resubscribe reactivates a cancelled subscription on a fresh billing
// period, granting that period's credits.
func (l *Ledger) Resubscribe(ctx context.Context, user id.UserID, p plan.Plan) (*account.Account, error) {
	return l.ApplySubscriptionEvent(ctx, user, account.EventResubscribed, p)
}

// RenewSubscription rolls an active subscription into its next billing
// period and issues that period's grant. Driven by the subscription
// provider's renewal webhook.
func (l *Ledger) RenewSubscription(ctx context.Context, user id.UserID) (*account.Account, error) {
	var p plan.Plan

	a, err := l.store.UpdateAccount(ctx, user, func(a *account.Account) error {
		if a.Subscription == nil {
			return &InvalidRequestError{Field: "subscription", Reason: "account has no subscription"}
		}
		if a.Subscription.Status != account.StatusActive {
			return &InvalidRequestError{Field: "subscription", Reason: fmt.Sprintf("cannot renew %s subscription", a.Subscription.Status)}
		}
		a.Subscription.CurrentPeriodStart = a.Subscription.CurrentPeriodEnd
		a.Subscription.CurrentPeriodEnd = a.Subscription.CurrentPeriodEnd.AddDate(0, 1, 0)
		p = a.Subscription.Plan
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("subscription renewed", "user_id", user, "plan", p,
		"period_start", a.Subscription.CurrentPeriodStart)

	return l.GrantSubscriptionCredits(ctx, user, p)
}

// SweepExpiredSubscriptions runs the lazy expiry check over the given
// users, clearing subscriptions that lapsed. Listing the candidate set
// is the caller's concern; the store intentionally exposes no full
// account scan. Unknown users are skipped.
func (l *Ledger) SweepExpiredSubscriptions(ctx context.Context, users []id.UserID) error {
	var errs []error
	for _, user := range users {
		if _, err := l.GetAccount(ctx, user); err != nil && !IsNotFound(err) {
			errs = append(errs, fmt.Errorf("sweep %s: %w", user, err))
		}
	}
	return errors.Join(errs...)
}

// ──────────────────────────────────────────────────
// Auto-refill
// ──────────────────────────────────────────────────

// ConfigureAutoRefill updates the account's automatic top-up settings.
func (l *Ledger) ConfigureAutoRefill(ctx context.Context, user id.UserID, cfg account.AutoRefill) (*account.Account, error) {
	if cfg.Enabled && !cfg.Valid() {
		return nil, &InvalidRequestError{Field: "auto_refill", Reason: "trigger must be >= 100 cents and refill amount >= 500 cents"}
	}

	return l.store.UpdateAccount(ctx, user, func(a *account.Account) error {
		a.AutoRefill = &cfg
		return nil
	})
}

// maybeAutoRefill fires an asynchronous top-up when a debit has dropped
// the balance below the configured trigger. The charge runs off the
// request path: its outcome never affects the debit that triggered it.
func (l *Ledger) maybeAutoRefill(a *account.Account) {
	if l.payments == nil || !a.NeedsAutoRefill() {
		return
	}

	user := a.UserID
	amount := a.AutoRefill.RefillAmountCents

	l.refillMu.Lock()
	if last, ok := l.lastRefill[user.String()]; ok && time.Since(last) < l.refillCooldown {
		l.refillMu.Unlock()
		return
	}
	l.lastRefill[user.String()] = time.Now()
	l.refillMu.Unlock()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), l.hookTimeout)
		defer cancel()

		ref, err := l.payments.Charge(ctx, user, amount)
		if err != nil {
			l.logger.Warn("auto-refill charge failed",
				"user_id", user,
				"amount_cents", amount,
				"error", err,
			)
			return
		}

		acct, err := l.creditIdempotent(ctx, user, amount, txn.AutoRefill, "Automatic refill", ref)
		if err != nil {
			l.logger.Error("auto-refill credit failed after successful charge",
				"user_id", user,
				"provider_reference", ref,
				"error", err,
			)
			return
		}

		l.plugins.EmitAutoRefillTriggered(ctx, acct, int64(amount))
		l.logger.Info("auto-refill completed",
			"user_id", user,
			"amount_cents", amount,
			"balance_cents", acct.BalanceCents,
		)
	}()
}
