package account

import (
	"fmt"
	"time"

	"github.com/xraph/zcredit-ledger/plan"
)

// SubscriptionEvent is a normalized inbound signal driving the
// subscription state machine.
type SubscriptionEvent string

// Recognized subscription events.
const (
	EventSubscribed       SubscriptionEvent = "subscribed"
	EventCancelled        SubscriptionEvent = "cancelled"
	EventPaymentFailed    SubscriptionEvent = "payment_failed"
	EventResubscribed     SubscriptionEvent = "resubscribed"
	EventPaymentSucceeded SubscriptionEvent = "payment_succeeded"
)

// TransitionSubscription computes the next Subscription state for the
// given event without touching a store; it is a pure function so the
// state machine can be unit tested independently of any ledger wiring.
// A nil current subscription models the "absent" state. The returned bool
// reports whether a credit grant should be issued as a result of the
// transition (absent → Active and Cancelled → Active are the only
// grant-triggering transitions handled here; per-period renewal grants
// are issued by Ledger.RenewSubscription, not this function).
func TransitionSubscription(current *Subscription, event SubscriptionEvent, p plan.Plan, now time.Time) (*Subscription, bool, error) {
	switch {
	case current == nil:
		if event != EventSubscribed {
			return nil, false, fmt.Errorf("account: event %q invalid with no subscription", event)
		}
		return &Subscription{
			Plan:               p,
			Status:             StatusActive,
			CurrentPeriodStart: now,
			CurrentPeriodEnd:   now.AddDate(0, 1, 0),
		}, true, nil

	case current.Status == StatusActive:
		switch event {
		case EventCancelled:
			next := *current
			next.Status = StatusCancelled
			return &next, false, nil
		case EventPaymentFailed:
			next := *current
			next.Status = StatusPastDue
			return &next, false, nil
		default:
			return nil, false, fmt.Errorf("account: event %q invalid from active", event)
		}

	case current.Status == StatusCancelled:
		switch event {
		case EventResubscribed:
			next := *current
			next.Status = StatusActive
			next.CurrentPeriodStart = now
			next.CurrentPeriodEnd = now.AddDate(0, 1, 0)
			return &next, true, nil
		default:
			return nil, false, fmt.Errorf("account: event %q invalid from cancelled", event)
		}

	case current.Status == StatusPastDue:
		switch event {
		case EventPaymentSucceeded:
			next := *current
			next.Status = StatusActive
			return &next, false, nil
		default:
			return nil, false, fmt.Errorf("account: event %q invalid from past_due", event)
		}
	}

	return nil, false, fmt.Errorf("account: unreachable subscription state")
}

// ExpireCancelled implements the Cancelled → absent transition at the
// current period's end. Returns true if the subscription should be
// removed.
func ExpireCancelled(current *Subscription, now time.Time) (removed bool) {
	return current != nil && current.Status == StatusCancelled && !now.Before(current.CurrentPeriodEnd)
}

// PastDueGracePeriod is how long a PastDue subscription is retained
// before it lapses to absent.
const PastDueGracePeriod = 14 * 24 * time.Hour

// ExpirePastDue implements the PastDue → absent transition after the
// grace period lapses.
func ExpirePastDue(current *Subscription, now time.Time) (removed bool) {
	if current == nil || current.Status != StatusPastDue {
		return false
	}
	return now.Sub(current.CurrentPeriodEnd) >= PastDueGracePeriod
}
