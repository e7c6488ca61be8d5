// Package push adapts the external delivery providers (Firebase Cloud
// Messaging, Expo and VAPID web push) to two small batch interfaces.
//
// Senders never fail a batch because individual recipients were rejected:
// per-recipient failures are counted, and identifiers the provider reports as
// permanently gone are returned so the caller can delete them.
package push

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by constructors when a provider lacks credentials.
var ErrNotConfigured = errors.New("push: provider not configured")

// Message is the provider independent notification content.
type Message struct {
	Title string
	Body  string
	// Data is delivered as the provider's string keyed payload.
	Data map[string]string
	// Link is opened when a web notification is clicked.
	Link string
}

// BatchResult summarises a native multicast.
type BatchResult struct {
	SuccessCount int
	FailureCount int
	// InvalidTokens were rejected as unregistered or malformed and should be deleted.
	InvalidTokens []string
}

// Add folds another result into r.
func (r *BatchResult) Add(other BatchResult) {
	r.SuccessCount += other.SuccessCount
	r.FailureCount += other.FailureCount
	r.InvalidTokens = append(r.InvalidTokens, other.InvalidTokens...)
}

// NativeSender delivers to native app installations by device token.
type NativeSender interface {
	Name() string
	SendMulticast(ctx context.Context, tokens []string, msg Message) (BatchResult, error)
}

// Subscription is a browser push subscription.
type Subscription struct {
	Endpoint string
	P256dh   string
	Auth     string
}

// WebBatchResult summarises a web-push batch.
type WebBatchResult struct {
	SuccessCount int
	FailureCount int
	// Expired endpoints answered 404 or 410 and should be deleted.
	Expired []string
}

// WebSender delivers to browser push subscriptions.
type WebSender interface {
	Send(ctx context.Context, subs []Subscription, msg Message) (WebBatchResult, error)
	PublicKey() string
}

// NoopNativeSender counts every token as failed without contacting anyone.
// It stands in when native push is disabled so fan-out results stay honest.
type NoopNativeSender struct{}

func (NoopNativeSender) Name() string { return "none" }

func (NoopNativeSender) SendMulticast(_ context.Context, tokens []string, _ Message) (BatchResult, error) {
	return BatchResult{FailureCount: len(tokens)}, nil
}

// NoopWebSender is the web-push counterpart of NoopNativeSender.
type NoopWebSender struct{}

func (NoopWebSender) Send(_ context.Context, subs []Subscription, _ Message) (WebBatchResult, error) {
	return WebBatchResult{FailureCount: len(subs)}, nil
}

func (NoopWebSender) PublicKey() string { return "" }

func chunk[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) <= size {
		if len(items) == 0 {
			return nil
		}
		return [][]T{items}
	}

	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}

func cloneData(data map[string]string) map[string]string {
	if len(data) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
