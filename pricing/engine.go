// Package pricing turns resource quantities into integer credit costs.
// LLM token pricing is integer-only. Compute and storage quantities are
// fractional hours multiplied by float rates and rounded half away from
// zero, as are USD/credits conversions; every cost returned is an integer
// number of credits.
package pricing

import (
	"fmt"
	"math"

	"github.com/xraph/zcredit-ledger/types"
	"github.com/xraph/zcredit-ledger/usage"
)

// ModelRate is the per-million-token credit cost for one (provider,
// model) pair.
type ModelRate struct {
	InputCreditsPerMillion  int64
	OutputCreditsPerMillion int64
}

// modelKey identifies a (provider, model) pair in the rate table.
type modelKey struct {
	provider string
	model    string
}

// Config is the process-wide, read-only pricing configuration. It is
// loaded once at startup and shared by reference; no handler mutates it
// afterward.
type Config struct {
	CreditRateUSD       float64 // fixed at 0.01: one credit = one cent
	CPUHourCredits      float64
	MemoryGBHourCredits float64
	// StorageGBHourCredits is nil until an operator configures storage
	// pricing; the engine rejects Storage metrics until it is set.
	StorageGBHourCredits *float64

	rates    map[modelKey]ModelRate
	fallback ModelRate
}

// NewConfig builds a Config with the standard credit rate and the
// compute rates carried over from the source documentation. Call
// SetModelRate to populate the LLM rate table before use.
func NewConfig(cpuHourCredits, memoryGBHourCredits float64, defaultRate ModelRate) *Config {
	return &Config{
		CreditRateUSD:       0.01,
		CPUHourCredits:      cpuHourCredits,
		MemoryGBHourCredits: memoryGBHourCredits,
		rates:               make(map[modelKey]ModelRate),
		fallback:            defaultRate,
	}
}

// SetModelRate registers (or overwrites) the credit rate for a
// (provider, model) pair.
func (c *Config) SetModelRate(provider, model string, rate ModelRate) {
	c.rates[modelKey{provider, model}] = rate
}

// SetStorageRate configures the credits-per-gb-hour rate for the Storage
// metric.
func (c *Config) SetStorageRate(creditsPerGBHour float64) {
	c.StorageGBHourCredits = &creditsPerGBHour
}

func (c *Config) rateFor(provider, model string) ModelRate {
	if r, ok := c.rates[modelKey{provider, model}]; ok {
		return r
	}
	return c.fallback
}

// InvalidMetricError is returned when a metric cannot be priced, such as
// a Storage metric with no configured rate.
type InvalidMetricError struct {
	Field  string
	Reason string
}

func (e *InvalidMetricError) Error() string {
	return fmt.Sprintf("pricing: invalid metric %s: %s", e.Field, e.Reason)
}

// Engine computes integer credit costs from usage quantities.
type Engine struct {
	cfg *Config
}

// NewEngine constructs an Engine over cfg.
func NewEngine(cfg *Config) *Engine { return &Engine{cfg: cfg} }

// applyMinimumCharge implements the minimum-charge rule common to the LLM
// and compute cost functions: any strictly positive quantity that would
// otherwise round to zero credits is charged a minimum of 1.
func applyMinimumCharge(total int64, hadPositiveQuantity bool) int64 {
	if total == 0 && hadPositiveQuantity {
		return 1
	}
	return total
}

// CalculateLLMCost computes the cost of an LLM call:
// floor(tokens * credits_per_million / 1_000_000) per direction, summed,
// with the minimum-charge rule applied to the total.
func (e *Engine) CalculateLLMCost(provider, model string, inputTokens, outputTokens int64) int64 {
	rate := e.cfg.rateFor(provider, model)
	inputCost := (inputTokens * rate.InputCreditsPerMillion) / 1_000_000
	outputCost := (outputTokens * rate.OutputCreditsPerMillion) / 1_000_000
	total := inputCost + outputCost
	return applyMinimumCharge(total, inputTokens > 0 || outputTokens > 0)
}

// CalculateComputeCost computes the cost of compute usage. Rounding
// mode: half-away-from-zero.
func (e *Engine) CalculateComputeCost(cpuHours, memoryGBHours float64) int64 {
	cpuCost := roundHalfAwayFromZero(cpuHours * e.cfg.CPUHourCredits)
	memoryCost := roundHalfAwayFromZero(memoryGBHours * e.cfg.MemoryGBHourCredits)
	total := cpuCost + memoryCost
	return applyMinimumCharge(total, cpuHours > 0 || memoryGBHours > 0)
}

// CalculateStorageCost prices a Storage metric, returning an
// *InvalidMetricError until SetStorageRate has been called.
func (e *Engine) CalculateStorageCost(gbHours float64) (int64, error) {
	if e.cfg.StorageGBHourCredits == nil {
		return 0, &InvalidMetricError{Field: "storage", Reason: "no storage rate configured"}
	}
	total := roundHalfAwayFromZero(gbHours * *e.cfg.StorageGBHourCredits)
	return applyMinimumCharge(total, gbHours > 0), nil
}

// roundHalfAwayFromZero rounds a float64 to the nearest integer, with
// ties rounding away from zero.
func roundHalfAwayFromZero(v float64) int64 {
	if v >= 0 {
		return int64(math.Floor(v + 0.5))
	}
	return int64(math.Ceil(v - 0.5))
}

// USDToCredits converts a USD amount to credits: round(usd / 0.01).
func (e *Engine) USDToCredits(usd float64) int64 {
	return roundHalfAwayFromZero(usd / e.cfg.CreditRateUSD)
}

// CreditsToUSD converts credits to a USD amount: credits * 0.01.
func (e *Engine) CreditsToUSD(credits int64) float64 {
	return float64(credits) * e.cfg.CreditRateUSD
}

// Price computes the integer credit cost of a usage.Metric, dispatching
// on its Type. It is the single entry point ledger operations use to
// price an event whose cost was not precomputed by the caller.
func (e *Engine) Price(m usage.Metric) (types.Cents, error) {
	if err := m.Validate(); err != nil {
		return 0, err
	}
	switch m.Type {
	case usage.MetricLLMTokens:
		return types.Cents(e.CalculateLLMCost(m.Provider, m.Model, m.InputTokens, m.OutputTokens)), nil
	case usage.MetricCompute:
		return types.Cents(e.CalculateComputeCost(m.CPUHours, m.MemoryGBHours)), nil
	case usage.MetricAPICalls:
		// API calls are charged the one-credit minimum per event when
		// Count is positive, whatever the Count; there is no per-call or
		// per-endpoint rate.
		return types.Cents(applyMinimumCharge(0, m.Count > 0)), nil
	case usage.MetricStorage:
		cost, err := e.CalculateStorageCost(m.GBHours)
		if err != nil {
			return 0, err
		}
		return types.Cents(cost), nil
	default:
		return 0, &InvalidMetricError{Field: "type", Reason: "unrecognized metric type"}
	}
}
