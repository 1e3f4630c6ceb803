package pms

import "errors"

// LodgifyConfig holds configuration for the Lodgify API integration.
type LodgifyConfig struct {
	// APIKey is the static key sent on every request.
	APIKey string
	// APIBaseURL is the base URL for the Lodgify API.
	APIBaseURL string
	// DefaultCurrency is applied when a payload omits currency.
	DefaultCurrency string
	// TimeoutSeconds is the HTTP request timeout.
	TimeoutSeconds int
	// RequestsPerMinute bounds the outbound request rate.
	RequestsPerMinute int
}

// LodgifyProductionAPIURL is the production API endpoint.
const LodgifyProductionAPIURL = "https://api.lodgify.com"

// Errors for Lodgify configuration
var (
	ErrLodgifyConfigMissingAPIKey = errors.New("lodgify: api key is required")
)

// NewLodgifyConfig creates a Lodgify configuration with defaults.
func NewLodgifyConfig(apiKey string) *LodgifyConfig {
	return &LodgifyConfig{
		APIKey:            apiKey,
		APIBaseURL:        LodgifyProductionAPIURL,
		DefaultCurrency:   "EUR",
		TimeoutSeconds:    30,
		RequestsPerMinute: 60,
	}
}

// Validate validates the configuration and fills defaults.
func (c *LodgifyConfig) Validate() error {
	if c.APIKey == "" {
		return ErrLodgifyConfigMissingAPIKey
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = LodgifyProductionAPIURL
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
