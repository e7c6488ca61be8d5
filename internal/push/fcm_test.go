package push

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/require"
)

type fakeMulticast struct {
	calls   []*messaging.MulticastMessage
	respond func(msg *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

func (f *fakeMulticast) SendEachForMulticast(_ context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	f.calls = append(f.calls, msg)
	return f.respond(msg)
}

func allSucceed(msg *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	resp := &messaging.BatchResponse{SuccessCount: len(msg.Tokens)}
	for range msg.Tokens {
		resp.Responses = append(resp.Responses, &messaging.SendResponse{Success: true, MessageID: "id"})
	}
	return resp, nil
}

func TestFCMSenderCountsPerTokenResults(t *testing.T) {
	client := &fakeMulticast{respond: func(msg *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
		return &messaging.BatchResponse{
			SuccessCount: 2,
			FailureCount: 1,
			Responses: []*messaging.SendResponse{
				{Success: true},
				{Success: false, Error: errors.New("unavailable")},
				{Success: true},
			},
		}, nil
	}}
	sender := newFCMSender(client, FCMOptions{})

	result, err := sender.SendMulticast(context.Background(), []string{"a", "b", "c"}, Message{
		Title: "Tugas Baru",
		Body:  "Matematika",
		Data:  map[string]string{"type": "task"},
		Link:  "/threads/1",
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.SuccessCount)
	require.Equal(t, 1, result.FailureCount)
	require.Empty(t, result.InvalidTokens)

	require.Len(t, client.calls, 1)
	sent := client.calls[0]
	require.Equal(t, []string{"a", "b", "c"}, sent.Tokens)
	require.Equal(t, "Tugas Baru", sent.Notification.Title)
	require.Equal(t, "task", sent.Data["type"])
	require.Equal(t, "/threads/1", sent.Webpush.FCMOptions.Link)
	require.Equal(t, "/icon-192x192.png", sent.Webpush.Notification.Icon)
}

func TestFCMSenderChunksLargeBatches(t *testing.T) {
	client := &fakeMulticast{respond: allSucceed}
	sender := newFCMSender(client, FCMOptions{})

	tokens := make([]string, fcmMulticastLimit+1)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("token-%d", i)
	}

	result, err := sender.SendMulticast(context.Background(), tokens, Message{Title: "t"})
	require.NoError(t, err)
	require.Equal(t, len(tokens), result.SuccessCount)
	require.Len(t, client.calls, 2)
	require.Len(t, client.calls[0].Tokens, fcmMulticastLimit)
	require.Len(t, client.calls[1].Tokens, 1)
}

func TestFCMSenderRejectedBatchCountsAsFailures(t *testing.T) {
	calls := 0
	client := &fakeMulticast{respond: func(msg *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("quota exceeded")
		}
		return allSucceed(msg)
	}}
	sender := newFCMSender(client, FCMOptions{})

	tokens := make([]string, fcmMulticastLimit+3)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("token-%d", i)
	}

	result, err := sender.SendMulticast(context.Background(), tokens, Message{})
	require.NoError(t, err)
	require.Equal(t, fcmMulticastLimit, result.FailureCount)
	require.Equal(t, 3, result.SuccessCount)
}

func TestFCMSenderCancelledContext(t *testing.T) {
	client := &fakeMulticast{respond: allSucceed}
	sender := newFCMSender(client, FCMOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := sender.SendMulticast(ctx, []string{"a", "b"}, Message{})
	require.NoError(t, err)
	require.Equal(t, 2, result.FailureCount)
	require.Empty(t, client.calls)
}

func TestIsInvalidTokenIgnoresGenericErrors(t *testing.T) {
	require.False(t, isInvalidToken(nil))
	require.False(t, isInvalidToken(errors.New("registration token is weird")))
}

func TestDecodeCredentials(t *testing.T) {
	raw := `{"type":"service_account","project_id":"tuntasinaja"}`

	out, err := decodeCredentials(raw)
	require.NoError(t, err)
	require.JSONEq(t, raw, string(out))

	out, err = decodeCredentials(base64.StdEncoding.EncodeToString([]byte(raw)))
	require.NoError(t, err)
	require.JSONEq(t, raw, string(out))

	_, err = decodeCredentials("definitely not json")
	require.Error(t, err)
}

func TestNewFCMSenderRequiresCredentials(t *testing.T) {
	_, err := NewFCMSender(context.Background(), FCMOptions{})
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestBatchResultAdd(t *testing.T) {
	var total BatchResult
	total.Add(BatchResult{SuccessCount: 2, FailureCount: 1, InvalidTokens: []string{"a"}})
	total.Add(BatchResult{FailureCount: 3, InvalidTokens: []string{"b", "c"}})

	require.Equal(t, BatchResult{SuccessCount: 2, FailureCount: 4, InvalidTokens: []string{"a", "b", "c"}}, total)
}
