// Package plan defines the closed set of subscription plans a user can be
// on, and the monthly credit grant each plan carries.
package plan

import "github.com/xraph/zcredit-ledger/types"

// Plan is a closed set of subscription tiers. New tiers are a code change,
// not configuration, because each one maps to a fixed monthly credit grant
// and purchase discount negotiated outside the ledger.
type Plan string

// The four recognized plans.
const (
	Free       Plan = "free"
	Standard   Plan = "standard"
	Pro        Plan = "pro"
	Enterprise Plan = "enterprise"
)

// Metadata describes the commercial terms of a Plan: what it costs per
// month, how many credits it grants on each billing period, and the
// discount applied to manual credit purchases made while subscribed.
type Metadata struct {
	MonthlyPriceCents       types.Cents
	MonthlyCredits          types.Cents
	PurchaseDiscountPercent int
}

// catalog is the fixed plan → terms mapping. Values mirror the pricing
// table carried over from the source documentation (see DESIGN.md's Open
// Questions section for the purchase-discount application decision).
var catalog = map[Plan]Metadata{
	Free: {
		MonthlyPriceCents:       0,
		MonthlyCredits:          500,
		PurchaseDiscountPercent: 0,
	},
	Standard: {
		MonthlyPriceCents:       1900,
		MonthlyCredits:          2500,
		PurchaseDiscountPercent: 5,
	},
	Pro: {
		MonthlyPriceCents:       4900,
		MonthlyCredits:          7500,
		PurchaseDiscountPercent: 10,
	},
	Enterprise: {
		MonthlyPriceCents:       19900,
		MonthlyCredits:          35000,
		PurchaseDiscountPercent: 15,
	},
}

// Metadata returns the commercial terms for p. The zero value is returned,
// along with false, for an unrecognized plan.
func (p Plan) Metadata() (Metadata, bool) {
	m, ok := catalog[p]
	return m, ok
}

// Valid reports whether p is one of the four recognized plans.
func (p Plan) Valid() bool {
	_, ok := catalog[p]
	return ok
}

// MonthlyCredits is a convenience accessor returning 0 for an unrecognized
// plan.
func (p Plan) MonthlyCredits() types.Cents {
	return catalog[p].MonthlyCredits
}
