package usage

import (
	"strings"
	"testing"
)

func TestMetricValidate(t *testing.T) {
	tests := []struct {
		name    string
		metric  Metric
		wantErr bool
	}{
		{"valid llm", LLMTokensMetric("anthropic", "claude-3-5-sonnet", 500, 1000), false},
		{"llm missing model", Metric{Type: MetricLLMTokens, Provider: "anthropic"}, true},
		{"llm negative tokens", Metric{Type: MetricLLMTokens, Provider: "p", Model: "m", InputTokens: -1}, true},
		{"valid compute", ComputeMetric(1.5, 3), false},
		{"compute negative hours", Metric{Type: MetricCompute, CPUHours: -1}, true},
		{"valid api calls", APICallsMetric("/v1/search", 10), false},
		{"api calls missing endpoint", Metric{Type: MetricAPICalls, Count: 1}, true},
		{"valid storage", StorageMetric(2.5), false},
		{"storage negative", Metric{Type: MetricStorage, GBHours: -0.5}, true},
		{"unknown type", Metric{Type: "bogus"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.metric.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDirectionalConstructor(t *testing.T) {
	m := LLMTokensMetricDirectional("openai", "gpt-4o", DirectionInput, 500)
	if m.InputTokens != 500 || m.OutputTokens != 0 {
		t.Errorf("input direction: %+v", m)
	}
	m = LLMTokensMetricDirectional("openai", "gpt-4o", DirectionOutput, 700)
	if m.InputTokens != 0 || m.OutputTokens != 700 {
		t.Errorf("output direction: %+v", m)
	}
}

func TestMetricDescription(t *testing.T) {
	d := LLMTokensMetric("anthropic", "claude-3-5-sonnet", 500, 1000).Description()
	if !strings.Contains(d, "anthropic/claude-3-5-sonnet") {
		t.Errorf("description = %q", d)
	}
	if (Metric{Type: "bogus"}).Description() == "" {
		t.Error("unknown metric still needs a description")
	}
}
