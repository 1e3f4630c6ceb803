package pms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/domain/channel"
)

// maxResponseSize caps response bodies read from external APIs (10MB).
const maxResponseSize = 10 * 1024 * 1024

// defaultTimeoutSeconds is applied when an adapter config carries none.
const defaultTimeoutSeconds = 30

// apiClient is the single funnel every adapter's network calls go through:
// it throttles via the adapter's private rate limiter, attaches auth headers
// per the adapter's strategy, issues the call, and classifies failures into
// *channel.APIError. Expected failure modes never surface as raw transport
// errors or panics.
type apiClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *Limiter
	auth       authStrategy
	logger     *zap.Logger
}

func newAPIClient(baseURL string, timeoutSeconds, requestsPerMinute int, auth authStrategy, logger *zap.Logger) *apiClient {
	if timeoutSeconds <= 0 {
		timeoutSeconds = defaultTimeoutSeconds
	}
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
		limiter: NewLimiter(requestsPerMinute),
		auth:    auth,
		logger:  logger,
	}
}

// get issues a throttled GET and returns the response body.
func (c *apiClient) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, query, nil)
}

// postJSON issues a throttled POST with a JSON body.
func (c *apiClient) postJSON(ctx context.Context, path string, body any) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, nil, body)
}

// putJSON issues a throttled PUT with a JSON body.
func (c *apiClient) putJSON(ctx context.Context, path string, body any) ([]byte, error) {
	return c.do(ctx, http.MethodPut, path, nil, body)
}

// do performs one call: throttle, auth, request, classify. A 401 triggers
// the auth strategy's refresh hook at most once; the retried call throttles
// again like any other request.
func (c *apiClient) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	respBody, retryAuth, err := c.attempt(ctx, method, path, query, body)
	if err == nil || !retryAuth {
		return respBody, err
	}

	retry, refreshErr := c.auth.handleUnauthorized(ctx)
	if refreshErr != nil {
		return nil, refreshErr
	}
	if !retry {
		return nil, err
	}
	c.logger.Debug("retrying request after credential refresh",
		zap.String("method", method),
		zap.String("path", path))
	respBody, _, err = c.attempt(ctx, method, path, query, body)
	return respBody, err
}

// attempt performs a single throttled call. retryAuth reports whether the
// failure was an auth rejection eligible for one refresh-and-retry pass.
func (c *apiClient) attempt(ctx context.Context, method, path string, query url.Values, body any) (respBody []byte, retryAuth bool, err error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, false, channel.NewAPIError(channel.ErrorCodeTimeout, 0, "cancelled while waiting for a request slot: "+err.Error())
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, false, channel.NewAPIError(channel.ErrorCodeUnknown, 0, "encode request body: "+err.Error())
		}
		reader = bytes.NewReader(encoded)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, false, channel.NewAPIError(channel.ErrorCodeUnknown, 0, "build request: "+err.Error())
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.auth.apply(ctx, req); err != nil {
		if apiErr, ok := channel.AsAPIError(err); ok {
			return nil, false, apiErr
		}
		return nil, false, channel.NewAPIError(channel.ErrorCodeAuthFailed, 0, err.Error())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, classifyTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, false, channel.NewAPIError(channel.ErrorCodeNetwork, 0, "read response: "+err.Error())
	}

	if resp.StatusCode >= 400 {
		code := channel.ClassifyHTTPStatus(resp.StatusCode)
		apiErr := channel.NewAPIError(code, resp.StatusCode, truncateBody(respBody))
		c.logger.Warn("external API call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("code", code.String()),
			zap.Bool("retryable", code.Retryable()))
		return nil, code == channel.ErrorCodeAuthFailed, apiErr
	}

	return respBody, false, nil
}

// isTimeout reports whether a transport error is a deadline failure.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
