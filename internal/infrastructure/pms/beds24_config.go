package pms

import "errors"

// Beds24Config holds configuration for the Beds24 v2 API integration.
type Beds24Config struct {
	// Token is the long-lived access token issued by Beds24.
	Token string
	// RefreshToken is exchanged for a new access token when the current one
	// expires or is rejected.
	RefreshToken string
	// APIBaseURL is the base URL for the Beds24 API.
	APIBaseURL string
	// DefaultCurrency is applied when a payload omits currency.
	DefaultCurrency string
	// TimeoutSeconds is the HTTP request timeout.
	TimeoutSeconds int
	// RequestsPerMinute bounds the outbound request rate.
	RequestsPerMinute int
}

// Beds24ProductionAPIURL is the production API endpoint.
const Beds24ProductionAPIURL = "https://api.beds24.com/v2"

// Errors for Beds24 configuration
var (
	ErrBeds24ConfigMissingToken = errors.New("beds24: access token is required")
)

// NewBeds24Config creates a Beds24 configuration with defaults.
func NewBeds24Config(token, refreshToken string) *Beds24Config {
	return &Beds24Config{
		Token:             token,
		RefreshToken:      refreshToken,
		APIBaseURL:        Beds24ProductionAPIURL,
		DefaultCurrency:   "EUR",
		TimeoutSeconds:    30,
		RequestsPerMinute: 60,
	}
}

// Validate validates the configuration and fills defaults.
func (c *Beds24Config) Validate() error {
	if c.Token == "" {
		return ErrBeds24ConfigMissingToken
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = Beds24ProductionAPIURL
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
