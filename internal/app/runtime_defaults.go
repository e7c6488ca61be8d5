package app

import (
	"fmt"
	"strings"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/tuntasinaja/tuntasinaja/pkg/crypto"
)

const (
	jwtSecretBytes  = 48
	cronSecretBytes = 32
)

// ApplyRuntimeDefaults ensures critical secrets are populated even when no configuration file is supplied.
// It returns a map describing which keys were generated so callers can log the event without exposing values.
//
// A generated JWT secret only suits local development: tokens issued by the
// auth service will not validate against it. Generated VAPID keys invalidate
// existing browser subscriptions on every restart, so production deployments
// must configure them.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	generated := make(map[string]bool)

	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		secret, err := crypto.GenerateToken(jwtSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.Auth.JWT.Secret = secret
		generated["auth.jwt.secret"] = true
	}

	if strings.TrimSpace(cfg.Reminders.CronSecret) == "" {
		secret, err := crypto.GenerateToken(cronSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate cron secret: %w", err)
		}
		cfg.Reminders.CronSecret = secret
		generated["reminders.cron_secret"] = true
	}

	webCfg := &cfg.Push.WebPush
	if webCfg.Enabled && (strings.TrimSpace(webCfg.VAPIDPublicKey) == "" || strings.TrimSpace(webCfg.VAPIDPrivateKey) == "") {
		privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
		if err != nil {
			return nil, fmt.Errorf("generate vapid keys: %w", err)
		}
		webCfg.VAPIDPrivateKey = privateKey
		webCfg.VAPIDPublicKey = publicKey
		generated["push.webpush.vapid_keys"] = true
	}

	return generated, nil
}
