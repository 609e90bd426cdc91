package pricing

// Default compute rates, in credits.
const (
	DefaultCPUHourCredits      = 50.0
	DefaultMemoryGBHourCredits = 5.0
)

// DefaultModelRate is applied to any (provider, model) pair not present
// in the rate table.
var DefaultModelRate = ModelRate{
	InputCreditsPerMillion:  500,
	OutputCreditsPerMillion: 1500,
}

// DefaultConfig builds a Config carrying the standard rate table. The
// per-million-token figures are credits (cents), derived from list
// prices at the standard credit rate.
func DefaultConfig() *Config {
	c := NewConfig(DefaultCPUHourCredits, DefaultMemoryGBHourCredits, DefaultModelRate)

	c.SetModelRate("anthropic", "claude-3-5-sonnet", ModelRate{InputCreditsPerMillion: 300, OutputCreditsPerMillion: 1500})
	c.SetModelRate("anthropic", "claude-3-5-haiku", ModelRate{InputCreditsPerMillion: 80, OutputCreditsPerMillion: 400})
	c.SetModelRate("anthropic", "claude-3-opus", ModelRate{InputCreditsPerMillion: 1500, OutputCreditsPerMillion: 7500})
	c.SetModelRate("openai", "gpt-4o", ModelRate{InputCreditsPerMillion: 250, OutputCreditsPerMillion: 1000})
	c.SetModelRate("openai", "gpt-4o-mini", ModelRate{InputCreditsPerMillion: 15, OutputCreditsPerMillion: 60})
	c.SetModelRate("google", "gemini-1.5-pro", ModelRate{InputCreditsPerMillion: 125, OutputCreditsPerMillion: 500})
	c.SetModelRate("google", "gemini-1.5-flash", ModelRate{InputCreditsPerMillion: 8, OutputCreditsPerMillion: 30})

	return c
}
