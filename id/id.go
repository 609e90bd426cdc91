// Package id defines the identifier types used across the ledger.
//
// Three distinct types exist so they cannot be confused at call sites:
// UserID and AgentID are 128-bit random identifiers (UUID v4), and
// TransactionID is a 128-bit, lexicographically time-sortable identifier
// (ULID) whose high 48 bits encode a millisecond Unix timestamp.
package id

import (
	"crypto/rand"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// UserID identifies an account holder. Canonical text form is the
// hex-with-dashes UUID representation; canonical binary form is 16 bytes.
type UserID struct {
	inner uuid.UUID
	valid bool
}

// AgentID identifies the automated agent that triggered a usage event, if
// any. Same shape as UserID but kept as a distinct type so the two can
// never be swapped at a call site.
type AgentID struct {
	inner uuid.UUID
	valid bool
}

// NilUserID is the zero-value UserID.
var NilUserID UserID

// NilAgentID is the zero-value AgentID.
var NilAgentID AgentID

// NewUserID generates a new random UserID.
func NewUserID() UserID { return UserID{inner: uuid.New(), valid: true} }

// NewAgentID generates a new random AgentID.
func NewAgentID() AgentID { return AgentID{inner: uuid.New(), valid: true} }

// ParseUserID parses the canonical UUID text form into a UserID.
func ParseUserID(s string) (UserID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NilUserID, fmt.Errorf("id: parse user id %q: %w", s, err)
	}
	return UserID{inner: u, valid: true}, nil
}

// ParseAgentID parses the canonical UUID text form into an AgentID.
func ParseAgentID(s string) (AgentID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NilAgentID, fmt.Errorf("id: parse agent id %q: %w", s, err)
	}
	return AgentID{inner: u, valid: true}, nil
}

// UserIDFromBytes decodes the 16-byte binary form.
func UserIDFromBytes(b []byte) (UserID, error) {
	u, err := uuid.FromBytes(b)
	if err != nil {
		return NilUserID, fmt.Errorf("id: user id from bytes: %w", err)
	}
	return UserID{inner: u, valid: true}, nil
}

// AgentIDFromBytes decodes the 16-byte binary form.
func AgentIDFromBytes(b []byte) (AgentID, error) {
	u, err := uuid.FromBytes(b)
	if err != nil {
		return NilAgentID, fmt.Errorf("id: agent id from bytes: %w", err)
	}
	return AgentID{inner: u, valid: true}, nil
}

// MustParseUserID is like ParseUserID but panics on error. Use for
// hardcoded values (tests, fixtures).
func MustParseUserID(s string) UserID {
	u, err := ParseUserID(s)
	if err != nil {
		panic(err)
	}
	return u
}

// String returns the canonical UUID text form, or "" for the nil value.
func (u UserID) String() string {
	if !u.valid {
		return ""
	}
	return u.inner.String()
}

// Bytes returns the 16-byte binary form.
func (u UserID) Bytes() []byte {
	b := make([]byte, 16)
	copy(b, u.inner[:])
	return b
}

// IsNil reports whether this is the zero-value UserID.
func (u UserID) IsNil() bool { return !u.valid }

// Equal reports whether two UserIDs are the same.
func (u UserID) Equal(other UserID) bool { return u.inner == other.inner && u.valid == other.valid }

// MarshalText implements encoding.TextMarshaler.
func (u UserID) MarshalText() ([]byte, error) {
	if !u.valid {
		return []byte{}, nil
	}
	return []byte(u.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *UserID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*u = NilUserID
		return nil
	}
	parsed, err := ParseUserID(string(data))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler, emitting the
// canonical 16-byte form. The nil value marshals to an empty slice.
// Binary codecs such as CBOR use this, so stored records round-trip the
// id exactly.
func (u UserID) MarshalBinary() ([]byte, error) {
	if !u.valid {
		return []byte{}, nil
	}
	return u.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (u *UserID) UnmarshalBinary(data []byte) error {
	if len(data) == 0 {
		*u = NilUserID
		return nil
	}
	parsed, err := UserIDFromBytes(data)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// Value implements driver.Valuer.
func (u UserID) Value() (driver.Value, error) {
	if !u.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}
	return u.inner.String(), nil
}

// Scan implements sql.Scanner.
func (u *UserID) Scan(src any) error {
	if src == nil {
		*u = NilUserID
		return nil
	}
	switch v := src.(type) {
	case string:
		return u.UnmarshalText([]byte(v))
	case []byte:
		return u.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into UserID", src)
	}
}

// String returns the canonical UUID text form, or "" for the nil value.
func (a AgentID) String() string {
	if !a.valid {
		return ""
	}
	return a.inner.String()
}

// Bytes returns the 16-byte binary form.
func (a AgentID) Bytes() []byte {
	b := make([]byte, 16)
	copy(b, a.inner[:])
	return b
}

// IsNil reports whether this is the zero-value AgentID.
func (a AgentID) IsNil() bool { return !a.valid }

// Equal reports whether two AgentIDs are the same.
func (a AgentID) Equal(other AgentID) bool {
	return a.inner == other.inner && a.valid == other.valid
}

// MarshalText implements encoding.TextMarshaler.
func (a AgentID) MarshalText() ([]byte, error) {
	if !a.valid {
		return []byte{}, nil
	}
	return []byte(a.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AgentID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*a = NilAgentID
		return nil
	}
	parsed, err := ParseAgentID(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler, emitting the
// canonical 16-byte form. The nil value marshals to an empty slice.
func (a AgentID) MarshalBinary() ([]byte, error) {
	if !a.valid {
		return []byte{}, nil
	}
	return a.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (a *AgentID) UnmarshalBinary(data []byte) error {
	if len(data) == 0 {
		*a = NilAgentID
		return nil
	}
	parsed, err := AgentIDFromBytes(data)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ──────────────────────────────────────────────────
// TransactionID
// ──────────────────────────────────────────────────

// TransactionID identifies a CreditTransaction. Its high 48 bits encode a
// millisecond Unix timestamp, its low 80 bits are random; byte order equals
// chronological order. Canonical text is 26-character Crockford base-32.
type TransactionID struct {
	inner ulid.ULID
	valid bool
}

// NilTransactionID is the zero-value TransactionID.
var NilTransactionID TransactionID

// txnEntropy is monotonic within a millisecond so TransactionIDs sort in
// issue order even when several are generated in the same tick.
var txnEntropy = &ulid.LockedMonotonicReader{
	MonotonicReader: ulid.Monotonic(rand.Reader, 0),
}

// NewTransactionID generates a new TransactionID stamped with the current
// time. IDs issued within the same millisecond still sort in issue order.
func NewTransactionID() TransactionID {
	return TransactionID{inner: ulid.MustNew(ulid.Now(), txnEntropy), valid: true}
}

// ParseTransactionID parses the 26-character Crockford base-32 text form.
func ParseTransactionID(s string) (TransactionID, error) {
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return NilTransactionID, fmt.Errorf("id: parse transaction id %q: %w", s, err)
	}
	return TransactionID{inner: u, valid: true}, nil
}

// TransactionIDFromBytes decodes the 16-byte binary form (6-byte ms
// timestamp followed by a 10-byte random tail).
func TransactionIDFromBytes(b []byte) (TransactionID, error) {
	var u ulid.ULID
	if err := u.UnmarshalBinary(b); err != nil {
		return NilTransactionID, fmt.Errorf("id: transaction id from bytes: %w", err)
	}
	return TransactionID{inner: u, valid: true}, nil
}

// MustParseTransactionID is like ParseTransactionID but panics on error.
func MustParseTransactionID(s string) TransactionID {
	t, err := ParseTransactionID(s)
	if err != nil {
		panic(err)
	}
	return t
}

// String returns the 26-character Crockford base-32 text form.
func (t TransactionID) String() string {
	if !t.valid {
		return ""
	}
	return t.inner.String()
}

// Bytes returns the 16-byte binary form; byte order equals chronological
// order.
func (t TransactionID) Bytes() []byte {
	b := make([]byte, 16)
	copy(b, t.inner[:])
	return b
}

// Time returns the millisecond timestamp encoded in the high 48 bits.
func (t TransactionID) Time() time.Time { return ulid.Time(t.inner.Time()) }

// IsNil reports whether this is the zero-value TransactionID.
func (t TransactionID) IsNil() bool { return !t.valid }

// Compare orders two TransactionIDs by their byte representation, which
// equals chronological order modulo intra-millisecond randomness.
func (t TransactionID) Compare(other TransactionID) int { return t.inner.Compare(other.inner) }

// MarshalText implements encoding.TextMarshaler.
func (t TransactionID) MarshalText() ([]byte, error) {
	if !t.valid {
		return []byte{}, nil
	}
	return []byte(t.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TransactionID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*t = NilTransactionID
		return nil
	}
	parsed, err := ParseTransactionID(string(data))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler, emitting the
// canonical 16-byte form. The nil value marshals to an empty slice.
func (t TransactionID) MarshalBinary() ([]byte, error) {
	if !t.valid {
		return []byte{}, nil
	}
	return t.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (t *TransactionID) UnmarshalBinary(data []byte) error {
	if len(data) == 0 {
		*t = NilTransactionID
		return nil
	}
	parsed, err := TransactionIDFromBytes(data)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
