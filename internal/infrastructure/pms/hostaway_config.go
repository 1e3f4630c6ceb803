package pms

import "errors"

// HostawayConfig holds configuration for the Hostaway API integration.
type HostawayConfig struct {
	// AccountID is the Hostaway account identifier, used as the OAuth2 client id.
	AccountID string
	// Secret is the API secret, used as the OAuth2 client secret.
	Secret string
	// APIBaseURL is the base URL for the Hostaway API.
	APIBaseURL string
	// DefaultCurrency is applied when a payload omits currency.
	DefaultCurrency string
	// TimeoutSeconds is the HTTP request timeout.
	TimeoutSeconds int
	// RequestsPerMinute bounds the outbound request rate.
	RequestsPerMinute int
}

// HostawayProductionAPIURL is the production API endpoint.
const HostawayProductionAPIURL = "https://api.hostaway.com/v1"

// Errors for Hostaway configuration
var (
	ErrHostawayConfigMissingAccount = errors.New("hostaway: account id is required")
	ErrHostawayConfigMissingSecret  = errors.New("hostaway: api secret is required")
)

// NewHostawayConfig creates a Hostaway configuration with defaults.
func NewHostawayConfig(accountID, secret string) *HostawayConfig {
	return &HostawayConfig{
		AccountID:         accountID,
		Secret:            secret,
		APIBaseURL:        HostawayProductionAPIURL,
		DefaultCurrency:   "EUR",
		TimeoutSeconds:    30,
		RequestsPerMinute: 60,
	}
}

// Validate validates the configuration and fills defaults.
func (c *HostawayConfig) Validate() error {
	if c.AccountID == "" {
		return ErrHostawayConfigMissingAccount
	}
	if c.Secret == "" {
		return ErrHostawayConfigMissingSecret
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = HostawayProductionAPIURL
	}
	if c.DefaultCurrency == "" {
		c.DefaultCurrency = "EUR"
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = 60
	}
	return nil
}
