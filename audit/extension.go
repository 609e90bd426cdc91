// Package audit bridges ledger lifecycle events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not depend
// on any particular backend. Callers inject a RecorderFunc adapter that
// bridges to their audit system at wiring time.
package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/zcredit-ledger/account"
	"github.com/xraph/zcredit-ledger/plugin"
	"github.com/xraph/zcredit-ledger/txn"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                     = (*Extension)(nil)
	_ plugin.OnAccountCreated           = (*Extension)(nil)
	_ plugin.OnAccountDeleted           = (*Extension)(nil)
	_ plugin.OnUsageDebited             = (*Extension)(nil)
	_ plugin.OnDuplicateEventRejected   = (*Extension)(nil)
	_ plugin.OnInsufficientCredits      = (*Extension)(nil)
	_ plugin.OnCreditsAdded             = (*Extension)(nil)
	_ plugin.OnAutoRefillTriggered      = (*Extension)(nil)
	_ plugin.OnSubscriptionTransitioned = (*Extension)(nil)
)

// Recorder is the interface audit backends must implement. It is
// defined locally so this package does not import any backend; callers
// inject the concrete recorder at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *Event) error
}

// Event is the audit record emitted for each ledger lifecycle event.
type Event struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *Event) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// Extension bridges ledger lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided
// Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit" }

// ──────────────────────────────────────────────────
// Account lifecycle hooks
// ──────────────────────────────────────────────────

// OnAccountCreated implements plugin.OnAccountCreated.
func (e *Extension) OnAccountCreated(ctx context.Context, a *account.Account) error {
	return e.record(ctx, ActionAccountCreated, SeverityInfo, OutcomeSuccess,
		ResourceAccount, a.UserID.String(), CategoryBilling, nil,
		"email", a.Email,
	)
}

// OnAccountDeleted implements plugin.OnAccountDeleted.
func (e *Extension) OnAccountDeleted(ctx context.Context, userID string) error {
	return e.record(ctx, ActionAccountDeleted, SeverityWarning, OutcomeSuccess,
		ResourceAccount, userID, CategoryBilling, nil,
	)
}

// ──────────────────────────────────────────────────
// Usage hooks
// ──────────────────────────────────────────────────

// OnUsageDebited implements plugin.OnUsageDebited.
func (e *Extension) OnUsageDebited(ctx context.Context, a *account.Account, t *txn.CreditTransaction) error {
	return e.record(ctx, ActionUsageDebited, SeverityInfo, OutcomeSuccess,
		ResourceUsage, t.TransactionID.String(), CategoryUsage, nil,
		"user_id", a.UserID.String(),
		"amount_cents", int64(t.AmountCents),
		"balance_after_cents", int64(t.BalanceAfterCents),
	)
}

// OnDuplicateEventRejected implements plugin.OnDuplicateEventRejected.
func (e *Extension) OnDuplicateEventRejected(ctx context.Context, eventID string) error {
	return e.record(ctx, ActionDuplicateRejected, SeverityWarning, OutcomeFailure,
		ResourceUsage, eventID, CategoryUsage, nil,
		"event_id", eventID,
	)
}

// OnInsufficientCredits implements plugin.OnInsufficientCredits.
func (e *Extension) OnInsufficientCredits(ctx context.Context, a *account.Account, requiredCents int64) error {
	return e.record(ctx, ActionInsufficientCredit, SeverityWarning, OutcomeFailure,
		ResourceUsage, a.UserID.String(), CategoryUsage, nil,
		"balance_cents", int64(a.BalanceCents),
		"required_cents", requiredCents,
	)
}

// ──────────────────────────────────────────────────
// Credit hooks
// ──────────────────────────────────────────────────

// OnCreditsAdded implements plugin.OnCreditsAdded.
func (e *Extension) OnCreditsAdded(ctx context.Context, a *account.Account, t *txn.CreditTransaction) error {
	return e.record(ctx, ActionCreditsAdded, SeverityInfo, OutcomeSuccess,
		ResourceCredits, t.TransactionID.String(), CategoryBilling, nil,
		"user_id", a.UserID.String(),
		"type", string(t.Type),
		"amount_cents", int64(t.AmountCents),
		"balance_after_cents", int64(t.BalanceAfterCents),
	)
}

// OnAutoRefillTriggered implements plugin.OnAutoRefillTriggered.
func (e *Extension) OnAutoRefillTriggered(ctx context.Context, a *account.Account, amountCents int64) error {
	return e.record(ctx, ActionAutoRefillTriggered, SeverityInfo, OutcomeSuccess,
		ResourceCredits, a.UserID.String(), CategoryBilling, nil,
		"amount_cents", amountCents,
	)
}

// ──────────────────────────────────────────────────
// Subscription hooks
// ──────────────────────────────────────────────────

// OnSubscriptionTransitioned implements plugin.OnSubscriptionTransitioned.
func (e *Extension) OnSubscriptionTransitioned(ctx context.Context, a *account.Account, event account.SubscriptionEvent) error {
	status := "absent"
	if a.Subscription != nil {
		status = string(a.Subscription.Status)
	}
	return e.record(ctx, ActionSubscriptionTransitioned, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, a.UserID.String(), CategorySubscription, nil,
		"event", string(event),
		"status", status,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &Event{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
