package ledger

import (
	"path/filepath"
)

// PaymentConfig carries payment-provider settings consumed by the
// payment collaborator, not by the ledger core.
type PaymentConfig struct {
	WebhookSecret string `json:"webhook_secret"`
	APIKey        string `json:"api_key"`
}

// AnalyticsConfig carries analytics-service settings consumed by the
// analytics collaborator.
type AnalyticsConfig struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
}

// IdentityConfig carries identity-provider settings consumed by the
// auth collaborator.
type IdentityConfig struct {
	JWKSURL  string `json:"jwks_url"`
	Issuer   string `json:"issuer"`
	Audience string `json:"audience"`
}

// Config is the full set of recognized service options. The ledger core
// consumes only DataDir and ServiceAPIKey; the rest belong to the HTTP
// transport, auth, and integration collaborators and are carried here so
// one file configures the whole deployment.
type Config struct {
	ListenAddr            string `json:"listen_addr"`
	DataDir               string `json:"data_dir"`
	AuthBaseURL           string `json:"auth_base_url"`
	AuthAudience          string `json:"auth_audience"`
	ServiceAPIKey         string `json:"service_api_key"`
	FrontendURL           string `json:"frontend_url"`
	MaxBodyBytes          int64  `json:"max_body_bytes"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`

	Payment   PaymentConfig   `json:"payment"`
	Analytics AnalyticsConfig `json:"analytics"`
	Identity  IdentityConfig  `json:"identity"`
}

// Validate checks the fields the core depends on.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return &InvalidRequestError{Field: "data_dir", Reason: "must not be empty"}
	}
	return nil
}

// DBPath returns the database file location under DataDir. Pass it to
// the kv store's Open.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "zcredit.db")
}
