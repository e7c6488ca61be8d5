package push

import (
	"context"
	"net/http"
	"strings"
	"time"

	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"go.uber.org/zap"

	"github.com/tuntasinaja/tuntasinaja/pkg/logger"
)

// expoBatchLimit is the maximum number of messages per Expo push request.
const expoBatchLimit = 100

// ExpoOptions configures the Expo push client.
type ExpoOptions struct {
	AccessToken string
	// Host overrides https://exp.host, mainly for tests.
	Host       string
	HTTPClient *http.Client
}

// ExpoSender delivers to Expo push tokens (ExponentPushToken[...]).
type ExpoSender struct {
	client *expo.PushClient
	log    *zap.Logger
}

// NewExpoSender builds a sender around the Expo push client.
func NewExpoSender(opts ExpoOptions) *ExpoSender {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &ExpoSender{
		client: expo.NewPushClient(&expo.ClientConfig{
			Host:        strings.TrimRight(opts.Host, "/"),
			AccessToken: opts.AccessToken,
			HTTPClient:  httpClient,
		}),
		log: logger.WithModule("push.expo"),
	}
}

func (s *ExpoSender) Name() string { return "expo" }

// SendMulticast publishes one message per token so every receipt maps back to
// exactly one token. Malformed tokens are reported invalid without a request.
func (s *ExpoSender) SendMulticast(ctx context.Context, tokens []string, msg Message) (BatchResult, error) {
	var result BatchResult

	messages := make([]expo.PushMessage, 0, len(tokens))
	for _, token := range tokens {
		pushToken, err := expo.NewExponentPushToken(token)
		if err != nil {
			result.FailureCount++
			result.InvalidTokens = append(result.InvalidTokens, token)
			continue
		}
		messages = append(messages, expo.PushMessage{
			To:       []expo.ExponentPushToken{pushToken},
			Title:    msg.Title,
			Body:     msg.Body,
			Data:     cloneData(msg.Data),
			Sound:    "default",
			Priority: expo.HighPriority,
		})
	}

	for _, batch := range chunk(messages, expoBatchLimit) {
		if ctx.Err() != nil {
			result.FailureCount += len(batch)
			continue
		}

		responses, err := s.client.PublishMultiple(batch)
		if err != nil {
			s.log.Warn("publish rejected", zap.Int("tokens", len(batch)), zap.Error(err))
			result.FailureCount += len(batch)
			continue
		}

		for i, resp := range responses {
			if resp.Status == expo.SuccessStatus {
				result.SuccessCount++
				continue
			}
			result.FailureCount++
			if i < len(batch) && resp.Details["error"] == expo.ErrorDeviceNotRegistered {
				result.InvalidTokens = append(result.InvalidTokens, string(batch[i].To[0]))
			}
		}
	}

	return result, nil
}
