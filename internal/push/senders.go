package push

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tuntasinaja/tuntasinaja/pkg/logger"
)

// Options selects and configures the delivery providers.
type Options struct {
	// Native is fcm, expo or none.
	Native         string
	FCM            FCMOptions
	Expo           ExpoOptions
	WebPushEnabled bool
	WebPush        WebPushOptions
}

// Senders is the pair of providers used by the fan-out.
type Senders struct {
	Native NativeSender
	Web    WebSender
}

// NewSenders builds the configured providers. A provider without credentials
// is replaced by its no-op counterpart and a warning is logged; any other
// construction error is returned.
func NewSenders(ctx context.Context, opts Options) (Senders, error) {
	log := logger.WithModule("push")
	senders := Senders{Native: NoopNativeSender{}, Web: NoopWebSender{}}

	switch strings.ToLower(strings.TrimSpace(opts.Native)) {
	case "", "none", "disabled":
	case "fcm", "firebase":
		sender, err := NewFCMSender(ctx, opts.FCM)
		switch {
		case errors.Is(err, ErrNotConfigured):
			log.Warn("firebase credentials missing, native push disabled", zap.Error(err))
		case err != nil:
			return Senders{}, err
		default:
			senders.Native = sender
		}
	case "expo":
		senders.Native = NewExpoSender(opts.Expo)
	default:
		return Senders{}, fmt.Errorf("push: unknown native provider %q", opts.Native)
	}

	if opts.WebPushEnabled {
		sender, err := NewWebPushSender(opts.WebPush)
		switch {
		case errors.Is(err, ErrNotConfigured):
			log.Warn("vapid keys missing, web push disabled", zap.Error(err))
		case err != nil:
			return Senders{}, err
		default:
			senders.Web = sender
		}
	}

	log.Info("push providers ready",
		zap.String("native", senders.Native.Name()),
		zap.Bool("web_push", senders.Web.PublicKey() != ""),
	)
	return senders, nil
}
