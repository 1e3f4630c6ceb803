package pms

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/domain/channel"
)

// Registry resolves a connection's integration code to a configured adapter.
// Direct integrations resolve to their own adapter; codes on the broker's
// supported-PMS list resolve to a ChannexAdapter bound to that code. The
// translation from the generic credential bag to adapter-specific config
// fields happens here and nowhere else.
//
// Adapter instances are cached per connection id so rate limiters and token
// state survive across sync passes.
type Registry struct {
	logger *zap.Logger

	mu    sync.Mutex
	cache map[string]cachedAdapter
}

type cachedAdapter struct {
	adapter channel.Adapter
	// fingerprint invalidates the cached instance when credentials rotate.
	fingerprint string
}

// NewRegistry creates an adapter registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger: logger,
		cache:  make(map[string]cachedAdapter),
	}
}

// GetAdapter returns an adapter for the connection.
func (r *Registry) GetAdapter(conn *channel.Connection) (channel.Adapter, error) {
	fp := credentialFingerprint(conn.Credentials)
	key := conn.ID.String()

	r.mu.Lock()
	if cached, ok := r.cache[key]; ok && cached.fingerprint == fp {
		r.mu.Unlock()
		return cached.adapter, nil
	}
	r.mu.Unlock()

	adapter, err := r.build(conn)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[key] = cachedAdapter{adapter: adapter, fingerprint: fp}
	r.mu.Unlock()
	return adapter, nil
}

// Evict drops the cached adapter for a connection, forcing the next
// GetAdapter call to rebuild it.
func (r *Registry) Evict(connectionID string) {
	r.mu.Lock()
	delete(r.cache, connectionID)
	r.mu.Unlock()
}

// build constructs a fresh adapter for the connection's integration code.
func (r *Registry) build(conn *channel.Connection) (channel.Adapter, error) {
	creds := conn.Credentials
	switch conn.IntegrationCode {
	case channel.IntegrationBeds24:
		token, err := creds.Require("token")
		if err != nil {
			return nil, err
		}
		config := NewBeds24Config(token, creds.Get("refresh_token"))
		applyConnectionDefaults(&config.DefaultCurrency, conn)
		return NewBeds24Adapter(config, r.logger)

	case channel.IntegrationHostaway:
		accountID, err := creds.Require("account_id")
		if err != nil {
			return nil, err
		}
		secret, err := creds.Require("secret")
		if err != nil {
			return nil, err
		}
		config := NewHostawayConfig(accountID, secret)
		applyConnectionDefaults(&config.DefaultCurrency, conn)
		return NewHostawayAdapter(config, r.logger)

	case channel.IntegrationLodgify:
		apiKey, err := creds.Require("api_key")
		if err != nil {
			return nil, err
		}
		config := NewLodgifyConfig(apiKey)
		applyConnectionDefaults(&config.DefaultCurrency, conn)
		return NewLodgifyAdapter(config, r.logger)

	case channel.IntegrationSmoobu:
		apiKey, err := creds.Require("api_key")
		if err != nil {
			return nil, err
		}
		config := NewSmoobuConfig(apiKey)
		config.ChannelID = creds.Get("channel_id")
		applyConnectionDefaults(&config.DefaultCurrency, conn)
		return NewSmoobuAdapter(config, r.logger)

	case channel.IntegrationChannex:
		return r.buildChannex(conn, "")
	}

	// Codes beyond the direct set route through the broker when it fronts
	// that PMS.
	if channexSupportsPMS(conn.IntegrationCode) {
		return r.buildChannex(conn, string(conn.IntegrationCode))
	}

	return nil, fmt.Errorf("%w: %q (available: %s)",
		channel.ErrUnknownIntegration, conn.IntegrationCode, supportedCodeList())
}

func (r *Registry) buildChannex(conn *channel.Connection, pmsType string) (channel.Adapter, error) {
	token, err := conn.Credentials.Require("token")
	if err != nil {
		return nil, err
	}
	workspaceID, err := conn.Credentials.Require("workspace_id")
	if err != nil {
		return nil, err
	}
	config := NewChannexConfig(token, workspaceID, pmsType)
	config.RefreshToken = conn.Credentials.Get("refresh_token")
	config.WebhookSecret = conn.Credentials.Get("webhook_secret")
	applyConnectionDefaults(&config.DefaultCurrency, conn)
	if pmsType != "" {
		r.logger.Debug("routing integration through broker",
			zap.String("pms_type", pmsType),
			zap.String("connection_id", conn.ID.String()))
	}
	return NewChannexAdapter(config, r.logger)
}

// SupportedCodes lists every integration code this registry can resolve:
// the direct adapters plus everything the broker fronts.
func (r *Registry) SupportedCodes() []channel.IntegrationCode {
	codes := []channel.IntegrationCode{
		channel.IntegrationBeds24,
		channel.IntegrationHostaway,
		channel.IntegrationLodgify,
		channel.IntegrationSmoobu,
		channel.IntegrationChannex,
	}
	codes = append(codes, ChannexSupportedPMS()...)
	return codes
}

// channexSupportsPMS reports whether the broker fronts the given code.
func channexSupportsPMS(code channel.IntegrationCode) bool {
	for _, supported := range channexSupportedPMS {
		if supported == code {
			return true
		}
	}
	return false
}

// supportedCodeList renders the resolvable codes for error messages.
func supportedCodeList() string {
	direct := []string{
		string(channel.IntegrationBeds24),
		string(channel.IntegrationHostaway),
		string(channel.IntegrationLodgify),
		string(channel.IntegrationSmoobu),
		string(channel.IntegrationChannex),
	}
	brokered := make([]string, 0, len(channexSupportedPMS))
	for _, code := range channexSupportedPMS {
		brokered = append(brokered, string(code))
	}
	sort.Strings(brokered)
	return strings.Join(direct, ", ") + ", " + strings.Join(brokered, ", ")
}

// credentialFingerprint derives a cache-invalidation key from the bag.
func credentialFingerprint(creds channel.Credentials) string {
	keys := make([]string, 0, len(creds))
	for k := range creds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(creds[k])
		b.WriteByte(';')
	}
	return payloadDigest([]byte(b.String()))
}

// applyConnectionDefaults copies connection-level overrides into an adapter
// config.
func applyConnectionDefaults(currency *string, conn *channel.Connection) {
	if conn.DefaultCurrency != "" {
		*currency = conn.DefaultCurrency
	}
}

var _ channel.AdapterRegistry = (*Registry)(nil)
