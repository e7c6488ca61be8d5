package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tuntasinaja/tuntasinaja/internal/push"
	"github.com/tuntasinaja/tuntasinaja/pkg/logger"
	"github.com/tuntasinaja/tuntasinaja/pkg/metrics"
)

// Reasons reported when a fan-out delivers nothing.
const (
	ReasonNoRecipients          = "no_recipients"
	ReasonFilteredByPreferences = "filtered_by_preferences"
	ReasonPushDisabled          = "push_disabled"
)

const (
	channelNative = "native"
	channelWeb    = "web"

	logIdentifierLen = 16
)

// ClassPushInput describes a notification for every member of a class.
type ClassPushInput struct {
	Kelas string
	Title string
	Body  string
	Data  map[string]string
	Type  NotificationType
	// Force skips the preference filter.
	Force bool
}

// UserPushInput describes a notification for a single user.
type UserPushInput struct {
	UserID string
	Title  string
	Body   string
	Data   map[string]string
	Type   NotificationType
	Force  bool
}

// ChannelResult reports one delivery channel.
type ChannelResult struct {
	Resolved     int `json:"resolved"`
	Attempted    int `json:"attempted"`
	SuccessCount int `json:"success_count"`
	FailureCount int `json:"failure_count"`
	Pruned       int `json:"pruned"`
}

// PushResult aggregates both channels of a fan-out.
type PushResult struct {
	SuccessCount int           `json:"success_count"`
	FailureCount int           `json:"failure_count"`
	Reason       string        `json:"reason,omitempty"`
	Native       ChannelResult `json:"native"`
	Web          ChannelResult `json:"web"`
}

// PreferenceFilter narrows a set of users to those accepting a category.
type PreferenceFilter interface {
	EligibleUsers(ctx context.Context, userIDs []string, t NotificationType) map[string]struct{}
}

// ClassNotifier is the part of PushService other services depend on.
type ClassNotifier interface {
	SendToClass(ctx context.Context, input ClassPushInput) (PushResult, error)
}

// PushService fans notifications out to native devices and browsers.
type PushService struct {
	source      RecipientSource
	prefs       PreferenceFilter
	native      push.NativeSender
	web         push.WebSender
	enabled     bool
	defaultLink string
	log         *zap.Logger
}

// PushOption customises a PushService.
type PushOption func(*PushService)

// WithPushEnabled turns delivery on or off. Disabled services resolve nothing
// and report ReasonPushDisabled.
func WithPushEnabled(enabled bool) PushOption {
	return func(s *PushService) {
		s.enabled = enabled
	}
}

// WithDefaultLink sets the URL opened by web notifications without one.
func WithDefaultLink(link string) PushOption {
	return func(s *PushService) {
		s.defaultLink = strings.TrimSpace(link)
	}
}

// NewPushService wires the fan-out. prefs may be nil, in which case every
// resolved recipient is eligible.
func NewPushService(source RecipientSource, prefs PreferenceFilter, senders push.Senders, opts ...PushOption) (*PushService, error) {
	if source == nil {
		return nil, errors.New("push service: recipient source is required")
	}
	svc := &PushService{
		source:      source,
		prefs:       prefs,
		native:      senders.Native,
		web:         senders.Web,
		enabled:     true,
		defaultLink: "/",
		log:         logger.WithModule("push"),
	}
	if svc.native == nil {
		svc.native = push.NoopNativeSender{}
	}
	if svc.web == nil {
		svc.web = push.NoopWebSender{}
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// VAPIDPublicKey returns the key browsers subscribe with, or "" when web
// push is not configured.
func (s *PushService) VAPIDPublicKey() string {
	return s.web.PublicKey()
}

// SendToClass delivers to every non-admin member of input.Kelas.
func (s *PushService) SendToClass(ctx context.Context, input ClassPushInput) (PushResult, error) {
	ctx = ensureContext(ctx)
	started := time.Now()

	kelas := strings.TrimSpace(input.Kelas)
	if kelas == "" {
		return PushResult{}, ErrInvalidClass
	}
	if !s.enabled {
		return PushResult{Reason: ReasonPushDisabled}, nil
	}

	log := s.log.With(
		zap.String("kelas", kelas),
		zap.String("type", input.Type.String()),
		zap.Bool("force", input.Force),
	)

	tokens, err := s.source.ClassDeviceTokens(ctx, kelas)
	if err != nil {
		log.Error("resolve device tokens failed", zap.Duration("duration", time.Since(started)), zap.Error(err))
		return PushResult{}, fmt.Errorf("push service: resolve device tokens: %w", err)
	}
	subs, err := s.source.ClassWebSubscriptions(ctx, kelas)
	if err != nil {
		log.Error("resolve web subscriptions failed",
			zap.Int("tokens", len(tokens)),
			zap.Duration("duration", time.Since(started)),
			zap.Error(err),
		)
		return PushResult{}, fmt.Errorf("push service: resolve web subscriptions: %w", err)
	}

	tokens = keepClassMembers(log, tokens, kelas, channelNative)
	subs = keepClassMembers(log, subs, kelas, channelWeb)

	data := cloneStrings(input.Data)
	if _, ok := data["kelas"]; !ok {
		data["kelas"] = kelas
	}

	result := s.fanout(ctx, log, fanoutPlan{
		tokens: tokens,
		subs:   subs,
		force:  input.Force,
		typ:    input.Type,
		msg:    s.message(input.Title, input.Body, input.Type, data),
	})
	metrics.FanoutDuration.WithLabelValues(input.Type.String()).Observe(time.Since(started).Seconds())
	log.Info("class fan-out finished",
		zap.Int("success", result.SuccessCount),
		zap.Int("failure", result.FailureCount),
		zap.String("reason", result.Reason),
		zap.Duration("duration", time.Since(started)),
	)
	return result, nil
}

// SendToUser delivers to every device of a single user.
func (s *PushService) SendToUser(ctx context.Context, input UserPushInput) (PushResult, error) {
	ctx = ensureContext(ctx)
	started := time.Now()

	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return PushResult{}, errors.New("push service: user id is required")
	}
	if !s.enabled {
		return PushResult{Reason: ReasonPushDisabled}, nil
	}

	log := s.log.With(
		zap.String("user_id", userID),
		zap.String("type", input.Type.String()),
		zap.Bool("force", input.Force),
	)

	tokens, err := s.source.UserDeviceTokens(ctx, userID)
	if err != nil {
		log.Error("resolve device tokens failed", zap.Duration("duration", time.Since(started)), zap.Error(err))
		return PushResult{}, fmt.Errorf("push service: resolve device tokens: %w", err)
	}
	subs, err := s.source.UserWebSubscriptions(ctx, userID)
	if err != nil {
		log.Error("resolve web subscriptions failed", zap.Duration("duration", time.Since(started)), zap.Error(err))
		return PushResult{}, fmt.Errorf("push service: resolve web subscriptions: %w", err)
	}

	result := s.fanout(ctx, log, fanoutPlan{
		tokens: tokens,
		subs:   subs,
		force:  input.Force,
		typ:    input.Type,
		msg:    s.message(input.Title, input.Body, input.Type, cloneStrings(input.Data)),
	})
	metrics.FanoutDuration.WithLabelValues(input.Type.String()).Observe(time.Since(started).Seconds())
	log.Info("user push finished",
		zap.Int("success", result.SuccessCount),
		zap.Int("failure", result.FailureCount),
		zap.String("reason", result.Reason),
		zap.Duration("duration", time.Since(started)),
	)
	return result, nil
}

type fanoutPlan struct {
	tokens []DeviceRecipient
	subs   []WebRecipient
	force  bool
	typ    NotificationType
	msg    push.Message
}

func (s *PushService) fanout(ctx context.Context, log *zap.Logger, plan fanoutPlan) PushResult {
	var result PushResult
	result.Native.Resolved = len(plan.tokens)
	result.Web.Resolved = len(plan.subs)

	if len(plan.tokens) == 0 && len(plan.subs) == 0 {
		result.Reason = ReasonNoRecipients
		return result
	}

	tokens, subs := plan.tokens, plan.subs
	if !plan.force && s.prefs != nil {
		eligible := s.prefs.EligibleUsers(ctx, ownerIDs(tokens, subs), plan.typ)
		tokens = keepEligible(tokens, eligible)
		subs = keepEligible(subs, eligible)
		if filtered := len(plan.tokens) - len(tokens) + len(plan.subs) - len(subs); filtered > 0 {
			log.Info("recipients filtered by preferences",
				zap.Int("native_filtered", len(plan.tokens)-len(tokens)),
				zap.Int("web_filtered", len(plan.subs)-len(subs)),
			)
		}
	}

	if len(tokens) == 0 && len(subs) == 0 {
		result.Reason = ReasonFilteredByPreferences
		return result
	}

	var wg sync.WaitGroup
	if len(tokens) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result.Native = s.deliverNative(ctx, log, tokens, plan.msg, result.Native)
		}()
	}
	if len(subs) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result.Web = s.deliverWeb(ctx, log, subs, plan.msg, result.Web)
		}()
	}
	wg.Wait()

	result.SuccessCount = result.Native.SuccessCount + result.Web.SuccessCount
	result.FailureCount = result.Native.FailureCount + result.Web.FailureCount
	return result
}

func (s *PushService) deliverNative(ctx context.Context, log *zap.Logger, recipients []DeviceRecipient, msg push.Message, out ChannelResult) ChannelResult {
	tokens := make([]string, len(recipients))
	for i, r := range recipients {
		tokens[i] = r.Token
	}
	out.Attempted = len(tokens)

	batch, err := s.native.SendMulticast(ctx, tokens, msg)
	if err != nil {
		log.Warn("native push failed",
			zap.String("provider", s.native.Name()),
			zap.Int("tokens", len(tokens)),
			zap.Error(err),
		)
		batch = push.BatchResult{FailureCount: len(tokens)}
	}
	out.SuccessCount = batch.SuccessCount
	out.FailureCount = batch.FailureCount
	metrics.PushDeliveries.WithLabelValues(channelNative, "success").Add(float64(batch.SuccessCount))
	metrics.PushDeliveries.WithLabelValues(channelNative, "failure").Add(float64(batch.FailureCount))

	if len(batch.InvalidTokens) > 0 {
		pruned, err := s.source.DeleteDeviceTokens(ctx, batch.InvalidTokens)
		if err != nil {
			log.Warn("prune invalid tokens failed", zap.Int("tokens", len(batch.InvalidTokens)), zap.Error(err))
		}
		out.Pruned = int(pruned)
		metrics.PushPruned.WithLabelValues(channelNative).Add(float64(pruned))
		for _, token := range batch.InvalidTokens {
			log.Info("pruned invalid device token", zap.String("token", logger.Truncate(token, logIdentifierLen)))
		}
	}
	return out
}

func (s *PushService) deliverWeb(ctx context.Context, log *zap.Logger, recipients []WebRecipient, msg push.Message, out ChannelResult) ChannelResult {
	subs := make([]push.Subscription, len(recipients))
	for i, r := range recipients {
		subs[i] = push.Subscription{Endpoint: r.Endpoint, P256dh: r.P256dh, Auth: r.Auth}
	}
	out.Attempted = len(subs)

	batch, err := s.web.Send(ctx, subs, msg)
	if err != nil {
		log.Warn("web push failed", zap.Int("subscriptions", len(subs)), zap.Error(err))
		batch = push.WebBatchResult{FailureCount: len(subs)}
	}
	out.SuccessCount = batch.SuccessCount
	out.FailureCount = batch.FailureCount
	metrics.PushDeliveries.WithLabelValues(channelWeb, "success").Add(float64(batch.SuccessCount))
	metrics.PushDeliveries.WithLabelValues(channelWeb, "failure").Add(float64(batch.FailureCount))

	if len(batch.Expired) > 0 {
		pruned, err := s.source.DeleteWebSubscriptions(ctx, batch.Expired)
		if err != nil {
			log.Warn("prune expired endpoints failed", zap.Int("endpoints", len(batch.Expired)), zap.Error(err))
		}
		out.Pruned = int(pruned)
		metrics.PushPruned.WithLabelValues(channelWeb).Add(float64(pruned))
		for _, endpoint := range batch.Expired {
			log.Info("pruned expired web endpoint", zap.String("endpoint", logger.Truncate(endpoint, logIdentifierLen*3)))
		}
	}
	return out
}

func (s *PushService) message(title, body string, t NotificationType, data map[string]string) push.Message {
	if _, ok := data["type"]; !ok && t != "" {
		data["type"] = t.String()
	}
	link := s.defaultLink
	if url := strings.TrimSpace(data["url"]); url != "" {
		link = url
	}
	return push.Message{Title: title, Body: body, Data: data, Link: link}
}

type recipient interface {
	ownerID() string
	ownerClass() string
	identifier() string
}

// keepClassMembers drops rows whose owner is not in kelas. The queries
// already filter on class, so anything dropped here points at data drift.
func keepClassMembers[T recipient](log *zap.Logger, rows []T, kelas, channel string) []T {
	out := rows[:0:0]
	for _, row := range rows {
		if row.ownerClass() != kelas {
			log.Warn("dropping recipient outside target class",
				zap.String("channel", channel),
				zap.String("user_id", row.ownerID()),
				zap.String("user_kelas", row.ownerClass()),
				zap.String("identifier", logger.Truncate(row.identifier(), logIdentifierLen)),
			)
			continue
		}
		out = append(out, row)
	}
	return out
}

func keepEligible[T recipient](rows []T, eligible map[string]struct{}) []T {
	out := rows[:0:0]
	for _, row := range rows {
		if _, ok := eligible[row.ownerID()]; ok {
			out = append(out, row)
		}
	}
	return out
}

func ownerIDs(tokens []DeviceRecipient, subs []WebRecipient) []string {
	ids := make([]string, 0, len(tokens)+len(subs))
	for _, t := range tokens {
		ids = append(ids, t.UserID)
	}
	for _, s := range subs {
		ids = append(ids, s.UserID)
	}
	return normaliseIDs(ids)
}

func cloneStrings(in map[string]string) map[string]string {
	out := make(map[string]string, len(in)+2)
	for k, v := range in {
		out[k] = v
	}
	return out
}
