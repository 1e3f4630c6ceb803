package pms

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/domain/channel"
)

// authStrategy is the single axis the adapters vary on for authentication.
// apply attaches credentials to an outbound request; handleUnauthorized is
// invoked after a 401/403 response and reports whether the request should be
// retried once with refreshed credentials.
type authStrategy interface {
	apply(ctx context.Context, req *http.Request) error
	handleUnauthorized(ctx context.Context) (retry bool, err error)
}

// ---------------------------------------------------------------------------
// Static API key
// ---------------------------------------------------------------------------

// apiKeyAuth sends one or two static keys as headers. There is nothing to
// refresh: an auth failure is terminal until the credentials are rotated.
type apiKeyAuth struct {
	header string
	key    string
	// secondaryHeader/secondaryKey carry an optional second key some PMSs
	// require alongside the primary.
	secondaryHeader string
	secondaryKey    string
}

func (a *apiKeyAuth) apply(_ context.Context, req *http.Request) error {
	if a.key == "" {
		return channel.ErrMissingCredential
	}
	req.Header.Set(a.header, a.key)
	if a.secondaryHeader != "" && a.secondaryKey != "" {
		req.Header.Set(a.secondaryHeader, a.secondaryKey)
	}
	return nil
}

func (a *apiKeyAuth) handleUnauthorized(_ context.Context) (bool, error) {
	return false, nil
}

// ---------------------------------------------------------------------------
// Bearer token with refresh token
// ---------------------------------------------------------------------------

// refreshFunc exchanges a refresh token for a new access token.
type refreshFunc func(ctx context.Context, refreshToken string) (*channel.TokenInfo, error)

// bearerRefreshAuth sends a long-lived access token and holds a paired
// refresh token. On 401 it refreshes once; a second failure surfaces as
// AUTH_FAILED. When the access token is a JWT its exp claim is read
// (unverified; the PMS signed it, we only need the expiry) so refresh
// happens proactively instead of waiting for the 401.
type bearerRefreshAuth struct {
	mu           sync.Mutex
	header       string // header carrying the token, e.g. "token" or "Authorization"
	prefix       string // value prefix, e.g. "Bearer " or ""
	token        string
	refreshToken string
	expiresAt    time.Time
	refresh      refreshFunc
}

func (a *bearerRefreshAuth) apply(ctx context.Context, req *http.Request) error {
	a.mu.Lock()
	if a.token == "" {
		a.mu.Unlock()
		return channel.ErrMissingCredential
	}
	if a.expired(time.Now()) && a.refresh != nil {
		if err := a.refreshLocked(ctx); err != nil {
			a.mu.Unlock()
			return err
		}
	}
	token := a.token
	a.mu.Unlock()
	req.Header.Set(a.header, a.prefix+token)
	return nil
}

func (a *bearerRefreshAuth) handleUnauthorized(ctx context.Context) (bool, error) {
	if a.refresh == nil {
		return false, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.refreshLocked(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// refreshLocked exchanges the refresh token. Caller must hold a.mu.
func (a *bearerRefreshAuth) refreshLocked(ctx context.Context) error {
	info, err := a.refresh(ctx, a.refreshToken)
	if err != nil {
		return err
	}
	a.token = info.AccessToken
	if info.RefreshToken != "" {
		a.refreshToken = info.RefreshToken
	}
	a.expiresAt = info.ExpiresAt
	return nil
}

// expired reports whether the access token is past (or within a minute of)
// its known expiry. Caller must hold a.mu.
func (a *bearerRefreshAuth) expired(now time.Time) bool {
	exp := a.expiresAt
	if exp.IsZero() {
		exp = jwtExpiry(a.token)
	}
	return !exp.IsZero() && now.After(exp.Add(-time.Minute))
}

// jwtExpiry reads the exp claim of a JWT access token without verifying the
// signature. Returns the zero time for opaque tokens.
func jwtExpiry(token string) time.Time {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// ---------------------------------------------------------------------------
// OAuth2 client credentials
// ---------------------------------------------------------------------------

// oauthClientCredentialsAuth exchanges an account id and secret for a
// short-lived bearer token, lazily on the first request. A 401 clears the
// token so the next attempt re-authenticates.
type oauthClientCredentialsAuth struct {
	mu         sync.Mutex
	accountID  string
	secret     string
	tokenURL   string
	scope      string
	httpClient *http.Client
	token      string
	expiresAt  time.Time
}

func (a *oauthClientCredentialsAuth) apply(ctx context.Context, req *http.Request) error {
	a.mu.Lock()
	if a.token == "" || (!a.expiresAt.IsZero() && time.Now().After(a.expiresAt.Add(-time.Minute))) {
		if err := a.fetchTokenLocked(ctx); err != nil {
			a.mu.Unlock()
			return err
		}
	}
	token := a.token
	a.mu.Unlock()
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func (a *oauthClientCredentialsAuth) handleUnauthorized(_ context.Context) (bool, error) {
	// Clear the token; re-authentication happens lazily via apply on retry.
	a.mu.Lock()
	a.token = ""
	a.expiresAt = time.Time{}
	a.mu.Unlock()
	return true, nil
}

// fetchTokenLocked performs the client-credentials exchange. Caller must
// hold a.mu.
func (a *oauthClientCredentialsAuth) fetchTokenLocked(ctx context.Context) error {
	if a.accountID == "" || a.secret == "" {
		return channel.ErrMissingCredential
	}
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", a.accountID)
	form.Set("client_secret", a.secret)
	if a.scope != "" {
		form.Set("scope", a.scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return channel.NewAPIError(channel.ErrorCodeUnknown, 0, err.Error())
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return channel.NewAPIError(channel.ErrorCodeNetwork, 0, err.Error())
	}
	if resp.StatusCode >= 400 {
		// Token endpoint rejections are auth failures regardless of status.
		return channel.NewAPIError(channel.ErrorCodeAuthFailed, resp.StatusCode, truncateBody(body))
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.AccessToken == "" {
		return channel.NewAPIError(channel.ErrorCodeUnknown, resp.StatusCode, "token endpoint returned no access_token")
	}
	a.token = parsed.AccessToken
	if parsed.ExpiresIn > 0 {
		a.expiresAt = time.Now().Add(time.Duration(parsed.ExpiresIn) * time.Second)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Workspace-scoped broker token
// ---------------------------------------------------------------------------

// brokerTokenAuth authenticates against the meta-integration broker: a
// bearer token plus workspace and integration-account headers selecting the
// downstream PMS. Refresh behaves like the bearer variant when a refresh
// token is present.
type brokerTokenAuth struct {
	bearerRefreshAuth
	workspaceID string
	pmsType     channel.IntegrationCode
}

func (a *brokerTokenAuth) apply(ctx context.Context, req *http.Request) error {
	if err := a.bearerRefreshAuth.apply(ctx, req); err != nil {
		return err
	}
	req.Header.Set("X-Workspace-Id", a.workspaceID)
	req.Header.Set("X-Integration-Account", a.pmsType.String())
	return nil
}

// ---------------------------------------------------------------------------
// Shared helpers
// ---------------------------------------------------------------------------

// classifyTransportError maps a transport failure onto the error taxonomy.
func classifyTransportError(err error) *channel.APIError {
	if isTimeout(err) {
		return channel.NewAPIError(channel.ErrorCodeTimeout, 0, err.Error())
	}
	return channel.NewAPIError(channel.ErrorCodeNetwork, 0, err.Error())
}

// postJSONToken is a helper for refresh endpoints that take a JSON body and
// return {token, expiresIn}.
func postJSONToken(ctx context.Context, client *http.Client, endpoint string, headers map[string]string, body any) (*channel.TokenInfo, error) {
	method := http.MethodGet
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, channel.NewAPIError(channel.ErrorCodeUnknown, 0, err.Error())
		}
		reader = bytes.NewReader(encoded)
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, channel.NewAPIError(channel.ErrorCodeUnknown, 0, err.Error())
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, channel.NewAPIError(channel.ErrorCodeNetwork, 0, err.Error())
	}
	if resp.StatusCode >= 400 {
		return nil, channel.NewAPIError(channel.ErrorCodeAuthFailed, resp.StatusCode, truncateBody(respBody))
	}

	var parsed struct {
		Token        string `json:"token"`
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expiresIn"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, channel.NewAPIError(channel.ErrorCodeUnknown, resp.StatusCode, "unparseable token response")
	}
	token := parsed.Token
	if token == "" {
		token = parsed.AccessToken
	}
	if token == "" {
		return nil, channel.NewAPIError(channel.ErrorCodeAuthFailed, resp.StatusCode, "token response carried no token")
	}
	info := &channel.TokenInfo{AccessToken: token, RefreshToken: parsed.RefreshToken}
	if parsed.ExpiresIn > 0 {
		info.ExpiresAt = time.Now().Add(time.Duration(parsed.ExpiresIn) * time.Second)
	}
	return info, nil
}

// truncateBody bounds remote error bodies included in messages.
func truncateBody(body []byte) string {
	const max = 512
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
