package services

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tuntasinaja/tuntasinaja/internal/models"
	"github.com/tuntasinaja/tuntasinaja/internal/push"
	"github.com/tuntasinaja/tuntasinaja/internal/realtime"
)

type fakeNativeSender struct {
	mu     sync.Mutex
	calls  [][]string
	result func(tokens []string) push.BatchResult
	err    error
}

func (f *fakeNativeSender) Name() string { return "fake" }

func (f *fakeNativeSender) SendMulticast(_ context.Context, tokens []string, _ push.Message) (push.BatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), tokens...))
	if f.err != nil {
		return push.BatchResult{}, f.err
	}
	if f.result != nil {
		return f.result(tokens), nil
	}
	return push.BatchResult{SuccessCount: len(tokens)}, nil
}

func (f *fakeNativeSender) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, call := range f.calls {
		out = append(out, call...)
	}
	sort.Strings(out)
	return out
}

func (f *fakeNativeSender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeWebSender struct {
	mu       sync.Mutex
	calls    [][]push.Subscription
	messages []push.Message
	result   func(subs []push.Subscription) push.WebBatchResult
	err      error
}

func (f *fakeWebSender) Send(_ context.Context, subs []push.Subscription, msg push.Message) (push.WebBatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]push.Subscription(nil), subs...))
	f.messages = append(f.messages, msg)
	if f.err != nil {
		return push.WebBatchResult{}, f.err
	}
	if f.result != nil {
		return f.result(subs), nil
	}
	return push.WebBatchResult{SuccessCount: len(subs)}, nil
}

func (f *fakeWebSender) PublicKey() string { return "test-public-key" }

func (f *fakeWebSender) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, call := range f.calls {
		for _, sub := range call {
			out = append(out, sub.Endpoint)
		}
	}
	sort.Strings(out)
	return out
}

func (f *fakeWebSender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recordingNotifier struct {
	mu     sync.Mutex
	inputs []ClassPushInput
	err    error
}

func (r *recordingNotifier) SendToClass(_ context.Context, input ClassPushInput) (PushResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputs = append(r.inputs, input)
	if r.err != nil {
		return PushResult{}, r.err
	}
	return PushResult{SuccessCount: 1}, nil
}

func (r *recordingNotifier) sent() []ClassPushInput {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ClassPushInput(nil), r.inputs...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events map[string][]realtime.Event
}

func (p *recordingPublisher) PublishToUser(userID string, event realtime.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.events == nil {
		p.events = make(map[string][]realtime.Event)
	}
	p.events[userID] = append(p.events[userID], event)
}

func (p *recordingPublisher) typesFor(userID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, event := range p.events[userID] {
		out = append(out, event.Type)
	}
	return out
}

func strPtr(value string) *string {
	return &value
}

func boolPtr(value bool) *bool {
	return &value
}

func createUser(t *testing.T, db *gorm.DB, id, kelas string, admin bool) models.User {
	t.Helper()
	user := models.User{
		BaseModel: models.BaseModel{ID: id},
		Name:      id,
		Email:     id + "@example.com",
		IsAdmin:   admin,
	}
	if kelas != "" {
		user.Kelas = strPtr(kelas)
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func createToken(t *testing.T, db *gorm.DB, userID, token string) {
	t.Helper()
	require.NoError(t, db.Create(&models.DeviceToken{Token: token, UserID: userID}).Error)
}

func createSubscription(t *testing.T, db *gorm.DB, userID, endpoint string) {
	t.Helper()
	require.NoError(t, db.Create(&models.WebPushSubscription{
		Endpoint: endpoint,
		P256dh:   "p256dh-" + userID,
		Auth:     "auth-" + userID,
		UserID:   userID,
	}).Error)
}

func saveSettings(t *testing.T, db *gorm.DB, userID string, mutate func(*models.UserSettings)) {
	t.Helper()
	settings := models.DefaultUserSettings(userID)
	if mutate != nil {
		mutate(&settings)
	}
	require.NoError(t, db.Create(&settings).Error)
}
