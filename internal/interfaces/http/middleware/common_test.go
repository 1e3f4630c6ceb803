package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// serveWith runs one request through a single middleware and a trivial
// handler, returning the recorder.
func serveWith(mw gin.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	router := gin.New()
	router.Use(mw)
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func corsRequest(method, origin string) *http.Request {
	req := httptest.NewRequest(method, "/test", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	return req
}

func TestCORSDefaultDeniesCrossOrigin(t *testing.T) {
	t.Run("cross-origin request gets no CORS headers", func(t *testing.T) {
		w := serveWith(CORS(), corsRequest("GET", "http://elsewhere.test"))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("same-origin request passes", func(t *testing.T) {
		w := serveWith(CORS(), corsRequest("GET", ""))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("preflight answers 204 without CORS headers", func(t *testing.T) {
		w := serveWith(CORS(), corsRequest("OPTIONS", "http://elsewhere.test"))
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestCORSWithConfig(t *testing.T) {
	whitelisted := CORSConfig{
		AllowOrigins:     []string{"http://app.example.com", "http://staging.example.com"},
		AllowMethods:     []string{"GET", "POST", "PATCH"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	t.Run("whitelisted origin is echoed with credentials", func(t *testing.T) {
		w := serveWith(CORSWithConfig(whitelisted), corsRequest("GET", "http://app.example.com"))
		assert.Equal(t, "http://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
		assert.Equal(t, "X-Request-ID", w.Header().Get("Access-Control-Expose-Headers"))
		assert.Equal(t, "43200", w.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("every whitelisted origin resolves", func(t *testing.T) {
		w := serveWith(CORSWithConfig(whitelisted), corsRequest("GET", "http://staging.example.com"))
		assert.Equal(t, "http://staging.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unlisted origin gets nothing", func(t *testing.T) {
		w := serveWith(CORSWithConfig(whitelisted), corsRequest("GET", "http://evil.test"))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("preflight for whitelisted origin carries the policy", func(t *testing.T) {
		w := serveWith(CORSWithConfig(whitelisted), corsRequest("OPTIONS", "http://app.example.com"))
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "GET, POST, PATCH", w.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Content-Type, Authorization", w.Header().Get("Access-Control-Allow-Headers"))
	})

	t.Run("wildcard allows any origin but never credentials", func(t *testing.T) {
		cfg := CORSConfig{
			AllowOrigins:     []string{"*"},
			AllowMethods:     []string{"GET"},
			AllowHeaders:     []string{"Content-Type"},
			AllowCredentials: true,
		}
		w := serveWith(CORSWithConfig(cfg), corsRequest("GET", "http://anywhere.test"))
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("max-age renders as decimal seconds", func(t *testing.T) {
		cfg := whitelisted
		cfg.MaxAge = time.Hour
		w := serveWith(CORSWithConfig(cfg), corsRequest("GET", "http://app.example.com"))
		assert.Equal(t, "3600", w.Header().Get("Access-Control-Max-Age"))
	})
}

func TestDefaultCORSConfig(t *testing.T) {
	cfg := DefaultCORSConfig()

	assert.Empty(t, cfg.AllowOrigins, "origins must be whitelisted explicitly")
	assert.Contains(t, cfg.AllowMethods, "PATCH")
	assert.Contains(t, cfg.AllowHeaders, "Content-Type")
	assert.Contains(t, cfg.AllowHeaders, "X-Request-ID")
	assert.True(t, cfg.AllowCredentials)
	assert.Equal(t, 12*time.Hour, cfg.MaxAge)
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("request_id"))
	})

	t.Run("generates an id when the caller sends none", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

		assert.Len(t, w.Header().Get("X-Request-ID"), 32)
		assert.Equal(t, w.Header().Get("X-Request-ID"), w.Body.String())
	})

	t.Run("keeps a caller-supplied id", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("X-Request-ID", "delivery-42")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "delivery-42", w.Header().Get("X-Request-ID"))
		assert.Equal(t, "delivery-42", w.Body.String())
	})
}

func TestGenerateRequestID(t *testing.T) {
	assert.NotEqual(t, generateRequestID(), generateRequestID())
}

func TestSecureDefaults(t *testing.T) {
	w := serveWith(Secure(), httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "frame-ancestors 'none'")
	assert.Contains(t, w.Header().Get("Permissions-Policy"), "camera=()")
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"), "HSTS stays off until TLS is configured")
}

func TestSecureWithConfig(t *testing.T) {
	t.Run("full HSTS value", func(t *testing.T) {
		cfg := SecurityConfig{
			HSTSEnabled:           true,
			HSTSMaxAge:            63072000,
			HSTSIncludeSubdomains: true,
			HSTSPreload:           true,
		}
		w := serveWith(SecureWithConfig(cfg), httptest.NewRequest("GET", "/test", nil))
		assert.Equal(t, "max-age=63072000; includeSubDomains; preload", w.Header().Get("Strict-Transport-Security"))
	})

	t.Run("minimal HSTS value", func(t *testing.T) {
		cfg := SecurityConfig{HSTSEnabled: true, HSTSMaxAge: 31536000}
		w := serveWith(SecureWithConfig(cfg), httptest.NewRequest("GET", "/test", nil))
		assert.Equal(t, "max-age=31536000", w.Header().Get("Strict-Transport-Security"))
	})

	t.Run("optional headers can be disabled", func(t *testing.T) {
		w := serveWith(SecureWithConfig(SecurityConfig{}), httptest.NewRequest("GET", "/test", nil))

		// The always-on headers survive.
		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		assert.Empty(t, w.Header().Get("Content-Security-Policy"))
		assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
		assert.Empty(t, w.Header().Get("Permissions-Policy"))
	})
}

func TestTimeoutSetsRequestDeadline(t *testing.T) {
	router := gin.New()
	router.Use(Timeout(250 * time.Millisecond))
	router.GET("/test", func(c *gin.Context) {
		deadline, ok := c.Request.Context().Deadline()
		assert.True(t, ok, "handler context must carry a deadline")
		assert.WithinDuration(t, time.Now().Add(250*time.Millisecond), deadline, 100*time.Millisecond)
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
