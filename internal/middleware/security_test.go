package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func serveWithSecurityHeaders(req *http.Request) http.Header {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/notifications", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Header()
}

func TestSecurityHeadersPlainHTTP(t *testing.T) {
	h := serveWithSecurityHeaders(httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, "DENY", h.Get("X-Frame-Options"))
	require.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
	require.Equal(t, DefaultContentSecurityPolicy, h.Get("Content-Security-Policy"))
	require.Equal(t, "no-referrer", h.Get("Referrer-Policy"))
	require.NotEmpty(t, h.Get("Permissions-Policy"))
	require.Empty(t, h.Get("Strict-Transport-Security"))
	require.Empty(t, h.Get("Cache-Control"))
}

func TestSecurityHeadersBehindTLSProxy(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	h := serveWithSecurityHeaders(req)

	require.Equal(t, "max-age=31536000; includeSubDomains", h.Get("Strict-Transport-Security"))
	require.Equal(t, "no-store", h.Get("Cache-Control"))
}
