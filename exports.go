package ledger

import "github.com/xraph/zcredit-ledger/types"

// Re-export common types for convenience so users don't have to import
// the types package.

// Cents is re-exported from the types package.
type Cents = types.Cents

// Entity is re-exported from the types package.
type Entity = types.Entity

// Re-export constructors.
var (
	FromUSD   = types.FromUSD
	NewEntity = types.NewEntity
)
