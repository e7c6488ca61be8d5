package push

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"github.com/tuntasinaja/tuntasinaja/pkg/logger"
)

const defaultWebPushWorkers = 8

// WebPushOptions configures VAPID delivery.
type WebPushOptions struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	// Subscriber is the contact address sent in the VAPID claims.
	Subscriber string
	TTL        time.Duration
	Icon       string
	Badge      string
	Workers    int
	HTTPClient webpush.HTTPClient
}

// WebPushSender delivers encrypted payloads to browser push services.
type WebPushSender struct {
	opts WebPushOptions
	log  *zap.Logger
}

type webPayload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Icon  string            `json:"icon,omitempty"`
	Badge string            `json:"badge,omitempty"`
	URL   string            `json:"url"`
	Data  map[string]string `json:"data"`
}

// NewWebPushSender validates the VAPID configuration.
func NewWebPushSender(opts WebPushOptions) (*WebPushSender, error) {
	if strings.TrimSpace(opts.VAPIDPublicKey) == "" || strings.TrimSpace(opts.VAPIDPrivateKey) == "" {
		return nil, fmt.Errorf("webpush: %w: vapid key pair required", ErrNotConfigured)
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWebPushWorkers
	}
	if opts.Icon == "" {
		opts.Icon = "/icon-192x192.png"
	}
	if opts.Badge == "" {
		opts.Badge = "/icon-96x96.png"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &WebPushSender{opts: opts, log: logger.WithModule("push.webpush")}, nil
}

// PublicKey is handed to browsers so they can subscribe.
func (s *WebPushSender) PublicKey() string { return s.opts.VAPIDPublicKey }

// Send delivers msg to every subscription using a small worker pool.
func (s *WebPushSender) Send(ctx context.Context, subs []Subscription, msg Message) (WebBatchResult, error) {
	var result WebBatchResult
	if len(subs) == 0 {
		return result, nil
	}

	link := msg.Link
	if link == "" {
		link = "/"
	}
	payload, err := json.Marshal(webPayload{
		Title: msg.Title,
		Body:  msg.Body,
		Icon:  s.opts.Icon,
		Badge: s.opts.Badge,
		URL:   link,
		Data:  cloneData(msg.Data),
	})
	if err != nil {
		return result, fmt.Errorf("webpush: encode payload: %w", err)
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		jobs = make(chan Subscription)
	)

	workers := s.opts.Workers
	if workers > len(subs) {
		workers = len(subs)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sub := range jobs {
				outcome := s.deliver(ctx, payload, sub)

				mu.Lock()
				switch outcome {
				case outcomeDelivered:
					result.SuccessCount++
				case outcomeExpired:
					result.FailureCount++
					result.Expired = append(result.Expired, sub.Endpoint)
				default:
					result.FailureCount++
				}
				mu.Unlock()
			}
		}()
	}

	for _, sub := range subs {
		jobs <- sub
	}
	close(jobs)
	wg.Wait()

	return result, nil
}

type deliveryOutcome int

const (
	outcomeFailed deliveryOutcome = iota
	outcomeDelivered
	outcomeExpired
)

func (s *WebPushSender) deliver(ctx context.Context, payload []byte, sub Subscription) deliveryOutcome {
	if ctx.Err() != nil {
		return outcomeFailed
	}

	// webpush-go pads into the buffer it is given, so each delivery needs its own copy.
	resp, err := webpush.SendNotificationWithContext(ctx, append([]byte(nil), payload...), &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      s.opts.HTTPClient,
		Subscriber:      s.opts.Subscriber,
		VAPIDPublicKey:  s.opts.VAPIDPublicKey,
		VAPIDPrivateKey: s.opts.VAPIDPrivateKey,
		TTL:             int(s.opts.TTL.Seconds()),
		Urgency:         webpush.UrgencyHigh,
	})
	if err != nil {
		s.log.Debug("send failed", zap.String("endpoint", logger.Truncate(sub.Endpoint, 50)), zap.Error(err))
		return outcomeFailed
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return outcomeExpired
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return outcomeDelivered
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		s.log.Debug("unexpected push service status",
			zap.Int("status", resp.StatusCode),
			zap.String("endpoint", logger.Truncate(sub.Endpoint, 50)),
			zap.ByteString("body", body),
		)
		return outcomeFailed
	}
}
