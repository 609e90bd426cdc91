package ledger

import (
	"errors"
	"fmt"

	"github.com/xraph/zcredit-ledger/types"
)

// Sentinel errors for conditions with no associated data.
var (
	ErrNotFound      = errors.New("ledger: not found")
	ErrAlreadyExists = errors.New("ledger: already exists")
	ErrInvalidInput  = errors.New("ledger: invalid input")
	ErrDatabase      = errors.New("ledger: database error")
	ErrSerialization = errors.New("ledger: serialization error")

	// ErrExternalServiceUnavailable is returned by outbound hook
	// implementations (analytics sinks, payment providers); it never
	// surfaces from a ledger commit.
	ErrExternalServiceUnavailable = errors.New("ledger: external service unavailable")
)

// InsufficientCreditsError is returned when a debit would take an
// account's balance negative. It carries the numbers a caller needs to
// render a useful message without a second lookup.
type InsufficientCreditsError struct {
	UserID        string
	BalanceCents  types.Cents
	RequiredCents types.Cents
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("ledger: insufficient credits for user %s: balance %s, required %s",
		e.UserID, e.BalanceCents, e.RequiredCents)
}

// DuplicateEventError is returned when a usage event's EventID has
// already been recorded. The caller's original request succeeded and
// this is not a failure condition to retry.
type DuplicateEventError struct {
	EventID string
}

func (e *DuplicateEventError) Error() string {
	return fmt.Sprintf("ledger: duplicate usage event %q", e.EventID)
}

// InvalidRequestError reports a single malformed request field. It
// unwraps to ErrInvalidInput so errors.Is works against the sentinel.
type InvalidRequestError struct {
	Field  string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("ledger: invalid request: field %q: %s", e.Field, e.Reason)
}

func (e *InvalidRequestError) Unwrap() error { return ErrInvalidInput }

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists reports whether err is (or wraps) ErrAlreadyExists.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsInsufficientCredits reports whether err is an *InsufficientCreditsError.
func IsInsufficientCredits(err error) bool {
	var target *InsufficientCreditsError
	return errors.As(err, &target)
}

// IsDuplicateEvent reports whether err is a *DuplicateEventError.
func IsDuplicateEvent(err error) bool {
	var target *DuplicateEventError
	return errors.As(err, &target)
}

// IsInvalidRequest reports whether err is an *InvalidRequestError or
// wraps ErrInvalidInput.
func IsInvalidRequest(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsRetryable reports whether the operation that produced err can be
// safely retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrDatabase) ||
		errors.Is(err, ErrExternalServiceUnavailable)
}
