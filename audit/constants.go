package audit

// Action constants for audit events.
const (
	// Account actions
	ActionAccountCreated = "account.created"
	ActionAccountDeleted = "account.deleted"

	// Usage actions
	ActionUsageDebited       = "usage.debited"
	ActionDuplicateRejected  = "usage.duplicate_rejected"
	ActionInsufficientCredit = "usage.insufficient_credits"

	// Credit actions
	ActionCreditsAdded        = "credits.added"
	ActionAutoRefillTriggered = "credits.auto_refill"

	// Subscription actions
	ActionSubscriptionTransitioned = "subscription.transitioned"
)

// Resource constants for audit events.
const (
	ResourceAccount      = "account"
	ResourceUsage        = "usage"
	ResourceCredits      = "credits"
	ResourceSubscription = "subscription"
)

// Category constants for audit events.
const (
	CategoryBilling      = "billing"
	CategoryUsage        = "usage"
	CategorySubscription = "subscription"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
