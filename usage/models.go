// Package usage defines the caller-submitted UsageEvent and its tagged
// Metric variants.
package usage

import (
	"fmt"
	"time"

	"github.com/xraph/zcredit-ledger/id"
	"github.com/xraph/zcredit-ledger/types"
)

// MetricType discriminates the Metric tagged union.
type MetricType string

// Recognized metric types.
const (
	MetricLLMTokens MetricType = "llm_tokens"
	MetricCompute   MetricType = "compute"
	MetricAPICalls  MetricType = "api_calls"
	MetricStorage   MetricType = "storage"
)

// TokenDirection labels which side of an LLM call a token count belongs
// to, when the caller reports a single (direction, tokens) pair instead
// of separate input/output counts.
type TokenDirection string

// Recognized token directions.
const (
	DirectionInput  TokenDirection = "input"
	DirectionOutput TokenDirection = "output"
)

// Metric is a tagged variant describing one billable unit of consumption.
// Exactly one of the typed payload fields is meaningful, selected by Type.
type Metric struct {
	Type MetricType

	// LLMTokens fields.
	Provider     string
	Model        string
	InputTokens  int64
	OutputTokens int64

	// Compute fields.
	CPUHours      float64
	MemoryGBHours float64

	// APICalls fields.
	Endpoint string
	Count    int64

	// Storage fields.
	GBHours float64
}

// LLMTokensMetric builds a Metric for an LLM token-usage event from
// separate input/output counts.
func LLMTokensMetric(provider, model string, inputTokens, outputTokens int64) Metric {
	return Metric{Type: MetricLLMTokens, Provider: provider, Model: model, InputTokens: inputTokens, OutputTokens: outputTokens}
}

// LLMTokensMetricDirectional builds a Metric from a single
// (direction, tokens) pair, as the wire format allows.
func LLMTokensMetricDirectional(provider, model string, direction TokenDirection, tokens int64) Metric {
	m := Metric{Type: MetricLLMTokens, Provider: provider, Model: model}
	switch direction {
	case DirectionInput:
		m.InputTokens = tokens
	case DirectionOutput:
		m.OutputTokens = tokens
	}
	return m
}

// ComputeMetric builds a Metric for compute usage.
func ComputeMetric(cpuHours, memoryGBHours float64) Metric {
	return Metric{Type: MetricCompute, CPUHours: cpuHours, MemoryGBHours: memoryGBHours}
}

// APICallsMetric builds a Metric for API-call usage.
func APICallsMetric(endpoint string, count int64) Metric {
	return Metric{Type: MetricAPICalls, Endpoint: endpoint, Count: count}
}

// StorageMetric builds a Metric for storage usage.
func StorageMetric(gbHours float64) Metric {
	return Metric{Type: MetricStorage, GBHours: gbHours}
}

// Validate reports whether m carries a recognized, internally consistent
// payload.
func (m Metric) Validate() error {
	switch m.Type {
	case MetricLLMTokens:
		if m.Provider == "" || m.Model == "" {
			return fmt.Errorf("usage: llm_tokens metric requires provider and model")
		}
		if m.InputTokens < 0 || m.OutputTokens < 0 {
			return fmt.Errorf("usage: llm_tokens metric requires non-negative token counts")
		}
	case MetricCompute:
		if m.CPUHours < 0 || m.MemoryGBHours < 0 {
			return fmt.Errorf("usage: compute metric requires non-negative hours")
		}
	case MetricAPICalls:
		if m.Endpoint == "" {
			return fmt.Errorf("usage: api_calls metric requires an endpoint")
		}
		if m.Count < 0 {
			return fmt.Errorf("usage: api_calls metric requires a non-negative count")
		}
	case MetricStorage:
		if m.GBHours < 0 {
			return fmt.Errorf("usage: storage metric requires non-negative gb-hours")
		}
	default:
		return fmt.Errorf("usage: unrecognized metric type %q", m.Type)
	}
	return nil
}

// Description renders a short human-readable label for the metric, used
// as the description of the Usage ledger entry.
func (m Metric) Description() string {
	switch m.Type {
	case MetricLLMTokens:
		return fmt.Sprintf("LLM usage: %s/%s (%d in, %d out)", m.Provider, m.Model, m.InputTokens, m.OutputTokens)
	case MetricCompute:
		return fmt.Sprintf("Compute usage: %.2f CPU-hours, %.2f GB-hours", m.CPUHours, m.MemoryGBHours)
	case MetricAPICalls:
		return fmt.Sprintf("API usage: %d calls to %s", m.Count, m.Endpoint)
	case MetricStorage:
		return fmt.Sprintf("Storage usage: %.2f GB-hours", m.GBHours)
	default:
		return "Usage"
	}
}

// Event is a caller-submitted, uniquely identified record describing
// consumption. EventID is unique across all time; this is enforced by the
// store, not by this type.
type Event struct {
	EventID   string
	UserID    id.UserID
	AgentID   id.AgentID // optional; zero value means absent
	Source    string
	Metric    Metric
	Quantity  float64
	CostCents *types.Cents // nil means "compute it from the pricing engine"
	Timestamp time.Time
	Metadata  map[string]any
}
