package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tuntasinaja/tuntasinaja/internal/api"
	"github.com/tuntasinaja/tuntasinaja/internal/app"
	iauth "github.com/tuntasinaja/tuntasinaja/internal/auth"
	sharedtestutil "github.com/tuntasinaja/tuntasinaja/internal/database/testutil"
	"github.com/tuntasinaja/tuntasinaja/internal/middleware"
	"github.com/tuntasinaja/tuntasinaja/internal/models"
	"github.com/tuntasinaja/tuntasinaja/internal/push"
	"github.com/tuntasinaja/tuntasinaja/pkg/response"
)

// CronSecret is the shared secret the test router accepts on /api/cron.
const CronSecret = "test-cron-secret"

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T        *testing.T
	DB       *gorm.DB
	Router   *gin.Engine
	JWT      *iauth.JWTService
	Config   *app.Config
	Services *api.Services
	Native   *RecordingNativeSender
	Web      *RecordingWebSender
}

// EnvOption adjusts the configuration before the router is built.
type EnvOption func(*app.Config)

// WithRateLimit enables the request limiter with the given per-window maxima.
func WithRateLimit(queryMax, mutationMax int) EnvOption {
	return func(cfg *app.Config) {
		cfg.RateLimit = app.RateLimitConfig{
			Enabled:  true,
			Store:    "memory",
			Query:    app.LimitConfig{Max: queryMax, Window: time.Minute},
			Mutation: app.LimitConfig{Max: mutationMax, Window: time.Minute},
		}
	}
}

// WithPushDisabled switches delivery off globally.
func WithPushDisabled() EnvOption {
	return func(cfg *app.Config) {
		cfg.Push.Enabled = false
	}
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	jwtSecret := "test-suite-super-secret-key-32-bytes!!"
	cfg := &app.Config{
		Server: app.ServerConfig{ShutdownTimeout: 5 * time.Second},
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: jwtSecret,
				Issuer: "test-suite",
				TTL:    time.Hour,
			},
		},
		Push: app.PushConfig{
			Enabled:     true,
			Native:      "fcm",
			DefaultLink: "/",
		},
		Reminders: app.ReminderConfig{
			Timezone:          "Asia/Jakarta",
			DeadlineWindow:    30 * time.Minute,
			DeadlineLookahead: 24 * time.Hour,
			CronSecret:        CronSecret,
		},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)

	native := &RecordingNativeSender{}
	web := &RecordingWebSender{Key: "test-vapid-public-key"}
	svc, err := api.NewServices(db, cfg, push.Senders{Native: native, Web: web})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		shutdown, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = svc.Tasks.Shutdown(shutdown)
	})

	router, err := api.NewRouter(db, jwtSvc, cfg, svc, middleware.NewMemoryRateStore(ctx))
	require.NoError(t, err)

	return &Env{
		T:        t,
		DB:       db,
		Router:   router,
		JWT:      jwtSvc,
		Config:   cfg,
		Services: svc,
		Native:   native,
		Web:      web,
	}
}

// UserOption customises a user created by CreateUser.
type UserOption func(*models.User)

// AsAdmin marks the user as an administrator.
func AsAdmin() UserOption {
	return func(u *models.User) { u.IsAdmin = true }
}

// AsDanton marks the user as the leader of their class.
func AsDanton() UserOption {
	return func(u *models.User) { u.IsDanton = true }
}

// CreateUser inserts a user in kelas (empty for none) and returns the record.
func (e *Env) CreateUser(kelas string, opts ...UserOption) *models.User {
	e.T.Helper()

	name := "user-" + uuid.NewString()[:8]
	user := &models.User{Name: name, Email: name + "@example.com"}
	if kelas != "" {
		user.Kelas = &kelas
	}
	for _, opt := range opts {
		opt(user)
	}
	require.NoError(e.T, e.DB.Create(user).Error)
	return user
}

// Token issues an access token for user.
func (e *Env) Token(user *models.User) string {
	e.T.Helper()
	token, err := e.JWT.GenerateAccessToken(user.ID)
	require.NoError(e.T, err)
	return token
}

// Wait blocks until background fan-out started by requests has finished.
func (e *Env) Wait() {
	e.Services.Tasks.Wait()
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(v)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		payload, err := json.Marshal(v)
		require.NoError(e.T, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// RecordingNativeSender accepts every token and remembers what was sent.
// Tokens listed in Invalid are reported back as unregistered.
type RecordingNativeSender struct {
	mu      sync.Mutex
	Invalid map[string]bool
	batches [][]string
	msgs    []push.Message
}

func (s *RecordingNativeSender) Name() string { return "recording" }

func (s *RecordingNativeSender) SendMulticast(_ context.Context, tokens []string, msg push.Message) (push.BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batches = append(s.batches, append([]string(nil), tokens...))
	s.msgs = append(s.msgs, msg)

	var result push.BatchResult
	for _, token := range tokens {
		if s.Invalid[token] {
			result.FailureCount++
			result.InvalidTokens = append(result.InvalidTokens, token)
			continue
		}
		result.SuccessCount++
	}
	return result, nil
}

// Batches returns the token batches received so far.
func (s *RecordingNativeSender) Batches() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.batches...)
}

// Messages returns the messages received so far.
func (s *RecordingNativeSender) Messages() []push.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]push.Message(nil), s.msgs...)
}

// RecordingWebSender accepts every subscription and remembers the endpoints.
type RecordingWebSender struct {
	mu        sync.Mutex
	Key       string
	endpoints []string
}

func (s *RecordingWebSender) PublicKey() string { return s.Key }

func (s *RecordingWebSender) Send(_ context.Context, subs []push.Subscription, _ push.Message) (push.WebBatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range subs {
		s.endpoints = append(s.endpoints, sub.Endpoint)
	}
	return push.WebBatchResult{SuccessCount: len(subs)}, nil
}

// Endpoints returns every endpoint delivered to so far.
func (s *RecordingWebSender) Endpoints() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.endpoints...)
}
