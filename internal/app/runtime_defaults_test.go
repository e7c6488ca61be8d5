package app

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyRuntimeDefaultsGeneratesMissingSecrets(t *testing.T) {
	cfg := &Config{}
	cfg.Push.WebPush.Enabled = true

	generated, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)

	require.NotEmpty(t, cfg.Auth.JWT.Secret)
	require.NotEmpty(t, cfg.Reminders.CronSecret)
	require.NotEmpty(t, cfg.Push.WebPush.VAPIDPublicKey)
	require.NotEmpty(t, cfg.Push.WebPush.VAPIDPrivateKey)
	require.True(t, generated["auth.jwt.secret"])
	require.True(t, generated["reminders.cron_secret"])
	require.True(t, generated["push.webpush.vapid_keys"])
}

func TestApplyRuntimeDefaultsPreservesExistingSecrets(t *testing.T) {
	cfg := &Config{}
	cfg.Auth.JWT.Secret = strings.Repeat("a", 10)
	cfg.Reminders.CronSecret = strings.Repeat("b", 10)
	cfg.Push.WebPush.Enabled = true
	cfg.Push.WebPush.VAPIDPublicKey = "public"
	cfg.Push.WebPush.VAPIDPrivateKey = "private"

	generated, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	require.Empty(t, generated)
	require.Equal(t, "public", cfg.Push.WebPush.VAPIDPublicKey)
}

func TestApplyRuntimeDefaultsSkipsVAPIDWhenWebPushDisabled(t *testing.T) {
	cfg := &Config{}

	generated, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	require.False(t, generated["push.webpush.vapid_keys"])
	require.Empty(t, cfg.Push.WebPush.VAPIDPublicKey)
}

func TestApplyRuntimeDefaultsNilConfig(t *testing.T) {
	_, err := ApplyRuntimeDefaults(nil)
	require.Error(t, err)
}
