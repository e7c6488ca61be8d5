package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	iauth "github.com/tuntasinaja/tuntasinaja/internal/auth"
	"github.com/tuntasinaja/tuntasinaja/internal/database/testutil"
	"github.com/tuntasinaja/tuntasinaja/internal/models"
)

func newAuthFixture(t *testing.T) (*iauth.JWTService, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "secret",
		Issuer:         "test-suite",
		AccessTokenTTL: time.Minute,
	})
	require.NoError(t, err)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	kelas := "X RPL 1"
	users := []models.User{
		{BaseModel: models.BaseModel{ID: "user-123"}, Name: "Budi", Email: "budi@example.com", Kelas: &kelas},
		{BaseModel: models.BaseModel{ID: "danton-1"}, Name: "Dewi", Email: "dewi@example.com", Kelas: &kelas, IsDanton: true},
		{BaseModel: models.BaseModel{ID: "admin-1"}, Name: "Admin", Email: "admin@example.com", IsAdmin: true},
	}
	require.NoError(t, db.Create(&users).Error)
	return jwtSvc, db
}

func bearer(t *testing.T, jwtSvc *iauth.JWTService, userID string) string {
	t.Helper()
	token, err := jwtSvc.GenerateAccessToken(userID)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestAuthMiddleware(t *testing.T) {
	jwtSvc, db := newAuthFixture(t)

	r := gin.New()
	r.GET("/secure", Auth(jwtSvc, db), func(c *gin.Context) {
		user, ok := CurrentUser(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{
			"user_id": c.GetString(CtxUserIDKey),
			"kelas":   user.ClassLabel(),
		})
	})

	// Missing Authorization header -> 401
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Tampered token -> 401 with challenge
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", bearer(t, jwtSvc, "user-123")+"x")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))

	// Valid token for an unknown user -> 401
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", bearer(t, jwtSvc, "ghost"))
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Valid token -> downstream handler executes
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", bearer(t, jwtSvc, "user-123"))
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Equal(t, "user-123", payload["user_id"])
	require.Equal(t, "X RPL 1", payload["kelas"])
}

func TestRoleGuards(t *testing.T) {
	jwtSvc, db := newAuthFixture(t)

	r := gin.New()
	ok := func(c *gin.Context) { c.Status(http.StatusNoContent) }
	r.GET("/admin", Auth(jwtSvc, db), RequireAdmin(), ok)
	r.GET("/leader", Auth(jwtSvc, db), RequireClassLeader(), ok)

	cases := []struct {
		path   string
		user   string
		status int
	}{
		{"/admin", "user-123", http.StatusForbidden},
		{"/admin", "danton-1", http.StatusForbidden},
		{"/admin", "admin-1", http.StatusNoContent},
		{"/leader", "user-123", http.StatusForbidden},
		{"/leader", "danton-1", http.StatusNoContent},
		{"/leader", "admin-1", http.StatusNoContent},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		req.Header.Set("Authorization", bearer(t, jwtSvc, tc.user))
		r.ServeHTTP(w, req)
		require.Equal(t, tc.status, w.Code, "%s as %s", tc.path, tc.user)
	}

	// Guards without Auth in front of them reject the request.
	bare := gin.New()
	bare.GET("/admin", RequireAdmin(), ok)
	w := httptest.NewRecorder()
	bare.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCronSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/cron", CronSecret("cron-secret"), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	closed := gin.New()
	closed.POST("/cron", CronSecret(""), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, tc := range []struct {
		engine *gin.Engine
		header string
		status int
	}{
		{r, "", http.StatusUnauthorized},
		{r, "Bearer wrong", http.StatusUnauthorized},
		{r, "Bearer cron-secret", http.StatusNoContent},
		{r, "bearer cron-secret", http.StatusNoContent},
		{closed, "Bearer ", http.StatusUnauthorized},
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/cron", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		tc.engine.ServeHTTP(w, req)
		require.Equal(t, tc.status, w.Code, tc.header)
	}
}
