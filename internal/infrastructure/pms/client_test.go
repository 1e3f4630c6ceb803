package pms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/domain/channel"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func newTestClient(t *testing.T, handler http.Handler, auth authStrategy) *apiClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	if auth == nil {
		auth = &apiKeyAuth{header: "X-ApiKey", key: "test-key"}
	}
	return newAPIClient(server.URL, 5, 600, auth, testLogger())
}

func TestClientClassifiesHTTPStatuses(t *testing.T) {
	tests := []struct {
		status    int
		wantCode  channel.ErrorCode
		retryable bool
	}{
		{http.StatusUnauthorized, channel.ErrorCodeAuthFailed, false},
		{http.StatusForbidden, channel.ErrorCodeAuthFailed, false},
		{http.StatusTooManyRequests, channel.ErrorCodeRateLimit, true},
		{http.StatusNotFound, channel.ErrorCodeNotFound, false},
		{http.StatusGatewayTimeout, channel.ErrorCodeTimeout, true},
		{http.StatusInternalServerError, channel.ErrorCodeUnknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.wantCode.String(), func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}), nil)

			_, err := client.get(context.Background(), "/anything", nil)
			require.Error(t, err)
			apiErr, ok := channel.AsAPIError(err)
			require.True(t, ok, "every failure must classify into APIError")
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, tt.status, apiErr.HTTPStatus)
			assert.Equal(t, tt.retryable, channel.IsRetryable(err))
		})
	}
}

func TestClientAppliesAuthHeaders(t *testing.T) {
	var gotKey atomic.Value
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey.Store(r.Header.Get("X-ApiKey"))
		w.Write([]byte(`{}`))
	}), nil)

	_, err := client.get(context.Background(), "/me", nil)
	require.NoError(t, err)
	assert.Equal(t, "test-key", gotKey.Load())
}

func TestClientRetriesOnceAfterTokenRefresh(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("token") != "fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"data": []}`))
	})

	auth := &bearerRefreshAuth{
		header:       "token",
		token:        "stale",
		refreshToken: "refresh",
		refresh: func(_ context.Context, refreshToken string) (*channel.TokenInfo, error) {
			calls.Add(1)
			require.Equal(t, "refresh", refreshToken)
			return &channel.TokenInfo{AccessToken: "fresh"}, nil
		},
	}
	client := newTestClient(t, handler, auth)

	body, err := client.get(context.Background(), "/bookings", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data": []}`, string(body))
	assert.Equal(t, int32(1), calls.Load(), "refresh must run exactly once")
}

func TestClientDoesNotLoopWhenRefreshKeepsFailing(t *testing.T) {
	var requests atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	auth := &bearerRefreshAuth{
		header:       "token",
		token:        "stale",
		refreshToken: "refresh",
		refresh: func(_ context.Context, _ string) (*channel.TokenInfo, error) {
			return &channel.TokenInfo{AccessToken: "still-stale"}, nil
		},
	}
	client := newTestClient(t, handler, auth)

	_, err := client.get(context.Background(), "/bookings", nil)
	require.Error(t, err)
	apiErr, ok := channel.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, channel.ErrorCodeAuthFailed, apiErr.Code)
	assert.Equal(t, int32(2), requests.Load(), "one retry after refresh, then give up")
}

func TestStaticKeyAuthFailureIsTerminal(t *testing.T) {
	var requests atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}), nil)

	_, err := client.get(context.Background(), "/me", nil)
	require.Error(t, err)
	assert.False(t, channel.IsRetryable(err))
	assert.Equal(t, int32(1), requests.Load(), "static keys have nothing to refresh")
}

func TestClientMissingCredentialSurfacesBeforeNetwork(t *testing.T) {
	var requests atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
	}), &apiKeyAuth{header: "X-ApiKey"})

	_, err := client.get(context.Background(), "/me", nil)
	require.Error(t, err)
	apiErr, ok := channel.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, channel.ErrorCodeAuthFailed, apiErr.Code)
	assert.Equal(t, int32(0), requests.Load())
}
