package pms

import "errors"

// ChannexConfig holds configuration for the Channex meta-integration broker.
// One Channex account fronts many downstream PMSs; PMSType selects which one
// this adapter instance speaks for.
type ChannexConfig struct {
	// Token is the workspace-scoped API token.
	Token string
	// RefreshToken is exchanged for a new token when the current one expires.
	RefreshToken string
	// WorkspaceID scopes every request to one Channex workspace.
	WorkspaceID string
	// PMSType is the downstream PMS code this instance is bound to.
	PMSType string
	// WebhookSecret signs inbound webhook deliveries.
	WebhookSecret string
	// APIBaseURL is the base URL for the Channex API.
	APIBaseURL string
	// DefaultCurrency is applied when a payload omits currency.
	DefaultCurrency string
	// TimeoutSeconds is the HTTP request timeout.
	TimeoutSeconds int
	// RequestsPerMinute bounds the outbound request rate.
	RequestsPerMinute int
}

// ChannexProductionAPIURL is the production API endpoint.
const ChannexProductionAPIURL = "https://app.channex.io/api/v1"

// Errors for Channex configuration
var (
	ErrChannexConfigMissingToken     = errors.New("channex: api token is required")
	ErrChannexConfigMissingWorkspace = errors.New("channex: workspace id is required")
)

// NewChannexConfig creates a Channex configuration with defaults.
func NewChannexConfig(token, workspaceID, pmsType string) *ChannexConfig {
	return &ChannexConfig{
		Token:             token,
		WorkspaceID:       workspaceID,
		PMSType:           pmsType,
		APIBaseURL:        ChannexProductionAPIURL,
		DefaultCurrency:   "EUR",
		TimeoutSeconds:    30,
		RequestsPerMinute: 60,
	}
}

// Validate validates the configuration and fills defaults.
func (c *ChannexConfig) Validate() error {
	if c.Token == "" {
		return ErrChannexConfigMissingToken
	}
	if c.WorkspaceID == "" {
		return ErrChannexConfigMissingWorkspace
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = ChannexProductionAPIURL
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
