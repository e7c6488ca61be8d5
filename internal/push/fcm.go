package push

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/tuntasinaja/tuntasinaja/pkg/logger"
)

// fcmMulticastLimit is the maximum number of tokens per SendEachForMulticast call.
const fcmMulticastLimit = 500

// FCMOptions configures the Firebase Admin SDK.
type FCMOptions struct {
	ProjectID       string
	CredentialsFile string
	// CredentialsJSON holds a service account key, raw or base64 encoded.
	CredentialsJSON string
	Icon            string
	Badge           string
}

type multicastClient interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMSender delivers through Firebase Cloud Messaging.
type FCMSender struct {
	client multicastClient
	icon   string
	badge  string
	log    *zap.Logger
}

// NewFCMSender initialises a Firebase app and its messaging client.
func NewFCMSender(ctx context.Context, opts FCMOptions) (*FCMSender, error) {
	var clientOpts []option.ClientOption
	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		raw, err := decodeCredentials(opts.CredentialsJSON)
		if err != nil {
			return nil, err
		}
		clientOpts = append(clientOpts, option.WithCredentialsJSON(raw))
	case strings.TrimSpace(opts.CredentialsFile) != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	default:
		return nil, fmt.Errorf("fcm: %w: credentials_file or credentials_json required", ErrNotConfigured)
	}

	var cfg *firebase.Config
	if opts.ProjectID != "" {
		cfg = &firebase.Config{ProjectID: opts.ProjectID}
	}

	app, err := firebase.NewApp(ctx, cfg, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("fcm: initialise app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("fcm: messaging client: %w", err)
	}

	return newFCMSender(client, opts), nil
}

func newFCMSender(client multicastClient, opts FCMOptions) *FCMSender {
	icon := opts.Icon
	if icon == "" {
		icon = "/icon-192x192.png"
	}
	badge := opts.Badge
	if badge == "" {
		badge = "/icon-96x96.png"
	}
	return &FCMSender{client: client, icon: icon, badge: badge, log: logger.WithModule("push.fcm")}
}

func (s *FCMSender) Name() string { return "fcm" }

// SendMulticast sends msg to tokens in chunks of 500. A chunk the API rejects
// as a whole counts all of its tokens as failed; remaining chunks still go out.
func (s *FCMSender) SendMulticast(ctx context.Context, tokens []string, msg Message) (BatchResult, error) {
	var result BatchResult
	for _, batch := range chunk(tokens, fcmMulticastLimit) {
		result.Add(s.sendChunk(ctx, batch, msg))
	}
	return result, nil
}

func (s *FCMSender) sendChunk(ctx context.Context, batch []string, msg Message) BatchResult {
	if ctx.Err() != nil {
		return BatchResult{FailureCount: len(batch)}
	}

	resp, err := s.client.SendEachForMulticast(ctx, s.buildMessage(batch, msg))
	if err != nil {
		s.log.Warn("multicast rejected", zap.Int("tokens", len(batch)), zap.Error(err))
		return BatchResult{FailureCount: len(batch)}
	}

	out := BatchResult{SuccessCount: resp.SuccessCount, FailureCount: resp.FailureCount}
	for i, r := range resp.Responses {
		if r == nil || r.Success || i >= len(batch) {
			continue
		}
		if isInvalidToken(r.Error) {
			out.InvalidTokens = append(out.InvalidTokens, batch[i])
			continue
		}
		s.log.Debug("token delivery failed", zap.String("token", logger.Truncate(batch[i], 20)), zap.Error(r.Error))
	}
	return out
}

func (s *FCMSender) buildMessage(tokens []string, msg Message) *messaging.MulticastMessage {
	link := msg.Link
	if link == "" {
		link = "/"
	}
	return &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: cloneData(msg.Data),
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: msg.Title,
				Body:  msg.Body,
				Icon:  s.icon,
				Badge: s.badge,
			},
			FCMOptions: &messaging.WebpushFCMOptions{Link: link},
		},
	}
}

func isInvalidToken(err error) bool {
	if err == nil {
		return false
	}
	if messaging.IsUnregistered(err) || messaging.IsSenderIDMismatch(err) {
		return true
	}
	return errorutils.IsInvalidArgument(err) && strings.Contains(strings.ToLower(err.Error()), "registration token")
}

func decodeCredentials(value string) ([]byte, error) {
	trimmed := strings.TrimSpace(value)
	if json.Valid([]byte(trimmed)) {
		return []byte(trimmed), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil || !json.Valid(decoded) {
		return nil, fmt.Errorf("fcm: credentials_json is neither JSON nor base64 encoded JSON")
	}
	return decoded, nil
}
