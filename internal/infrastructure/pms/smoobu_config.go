package pms

import "errors"

// SmoobuConfig holds configuration for the Smoobu API integration.
type SmoobuConfig struct {
	// APIKey is the static key sent on every request.
	APIKey string
	// ChannelID optionally scopes pushed updates to one Smoobu channel.
	ChannelID string
	// APIBaseURL is the base URL for the Smoobu API.
	APIBaseURL string
	// DefaultCurrency is applied when a payload omits currency.
	DefaultCurrency string
	// TimeoutSeconds is the HTTP request timeout.
	TimeoutSeconds int
	// RequestsPerMinute bounds the outbound request rate.
	RequestsPerMinute int
}

// SmoobuProductionAPIURL is the production API endpoint.
const SmoobuProductionAPIURL = "https://login.smoobu.com/api"

// Errors for Smoobu configuration
var (
	ErrSmoobuConfigMissingAPIKey = errors.New("smoobu: api key is required")
)

// NewSmoobuConfig creates a Smoobu configuration with defaults.
func NewSmoobuConfig(apiKey string) *SmoobuConfig {
	return &SmoobuConfig{
		APIKey:            apiKey,
		APIBaseURL:        SmoobuProductionAPIURL,
		DefaultCurrency:   "EUR",
		TimeoutSeconds:    30,
		RequestsPerMinute: 60,
	}
}

// Validate validates the configuration and fills defaults.
func (c *SmoobuConfig) Validate() error {
	if c.APIKey == "" {
		return ErrSmoobuConfigMissingAPIKey
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = SmoobuProductionAPIURL
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
