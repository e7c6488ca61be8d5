package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/tuntasinaja/tuntasinaja/pkg/response"
)

func newRecoveryRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery())
	r.NoRoute(NotFoundHandler)
	r.GET("/panic", func(c *gin.Context) {
		c.Set(CtxUserIDKey, "budi")
		panic("boom")
	})
	r.GET("/partial", func(c *gin.Context) {
		c.String(http.StatusAccepted, "started")
		panic("late failure")
	})
	r.GET("/abort", func(c *gin.Context) {
		panic(http.ErrAbortHandler)
	})
	return r
}

func TestRecoveryReturnsEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	newRecoveryRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var payload response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.False(t, payload.Success)
	require.Equal(t, "INTERNAL_SERVER_ERROR", payload.Error.Code)
}

func TestRecoveryKeepsWrittenResponse(t *testing.T) {
	w := httptest.NewRecorder()
	newRecoveryRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/partial", nil))

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, "started", w.Body.String())
}

func TestRecoveryRethrowsAbortHandler(t *testing.T) {
	require.PanicsWithValue(t, http.ErrAbortHandler, func() {
		newRecoveryRouter().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/abort", nil))
	})
}

func TestNotFoundHandler(t *testing.T) {
	w := httptest.NewRecorder()
	newRecoveryRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/kelas", nil))

	require.Equal(t, http.StatusNotFound, w.Code)
	var payload response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Equal(t, "NOT_FOUND", payload.Error.Code)
	require.Contains(t, payload.Error.Message, "route /api/kelas not found")
}
