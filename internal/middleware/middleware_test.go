package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/config"
)

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	ok := func(c *gin.Context) { c.String(http.StatusOK, "ok") }
	r.GET("/api/health", ok)
	r.GET("/api/aliexpress/products", ok)
	r.OPTIONS("/api/aliexpress/products", ok)
	return r
}

func do(r http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "203.0.113.7:5000"
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiterThrottlesPerClient(t *testing.T) {
	limiter := NewRateLimiter(10, "/api/health")
	r := newEngine(limiter.Handler())

	require.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/aliexpress/products", nil).Code)

	w := do(r, http.MethodGet, "/api/aliexpress/products", nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "6", w.Header().Get("Retry-After"))
	require.Contains(t, w.Body.String(), "rate_limited")

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/health", nil).Code)
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	limiter := NewRateLimiter(0)
	require.Nil(t, limiter)

	r := newEngine(limiter.Handler())
	for i := 0; i < 20; i++ {
		require.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/aliexpress/products", nil).Code)
	}
}

func TestCORS(t *testing.T) {
	cfg := config.Config{
		CORSAllowedOrigins: []string{"https://shop.example/"},
		CORSAllowedMethods: []string{"GET", "POST"},
		CORSAllowedHeaders: []string{"Content-Type"},
	}
	r := newEngine(CORS(cfg))

	w := do(r, http.MethodGet, "/api/aliexpress/products", map[string]string{"Origin": "https://shop.example"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "https://shop.example", w.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "GET, POST", w.Header().Get("Access-Control-Allow-Methods"))

	w = do(r, http.MethodOptions, "/api/aliexpress/products", map[string]string{"Origin": "https://shop.example"})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(r, http.MethodGet, "/api/aliexpress/products", map[string]string{"Origin": "https://evil.example"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSWildcard(t *testing.T) {
	r := newEngine(CORS(config.Config{CORSAllowedOrigins: []string{"*"}}))
	w := do(r, http.MethodGet, "/api/aliexpress/products", map[string]string{"Origin": "https://any.example"})
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
