package app

import (
	"strings"

	"github.com/tuntasinaja/tuntasinaja/internal/auth"
	"github.com/tuntasinaja/tuntasinaja/internal/database"
	"github.com/tuntasinaja/tuntasinaja/internal/push"
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: ttl,
	}
}

// ConnectionConfig converts DatabaseConfig into the database package representation,
// picking the host parameters that match the selected driver.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	driver := strings.ToLower(strings.TrimSpace(c.Driver))
	cfg := database.Config{
		Driver:          driver,
		Path:            c.Path,
		DSN:             c.DSN,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}

	var params DBAuthConfig
	switch driver {
	case "postgres", "postgresql":
		params = c.Postgres
	case "mysql", "mariadb":
		params = c.MySQL
	default:
		return cfg
	}

	cfg.Host = params.Host
	cfg.Port = params.Port
	cfg.Name = params.Database
	cfg.User = params.Username
	cfg.Password = params.Password
	cfg.Options = params.Options
	return cfg
}

// SenderOptions converts PushConfig into provider options. Web push is only
// requested when both push and web push are enabled.
func (c PushConfig) SenderOptions() push.Options {
	return push.Options{
		Native: c.Native,
		FCM: push.FCMOptions{
			ProjectID:       c.FCM.ProjectID,
			CredentialsFile: c.FCM.CredentialsFile,
			CredentialsJSON: c.FCM.CredentialsJSON,
		},
		Expo: push.ExpoOptions{
			AccessToken: c.Expo.AccessToken,
			Host:        c.Expo.Host,
		},
		WebPushEnabled: c.Enabled && c.WebPush.Enabled,
		WebPush: push.WebPushOptions{
			VAPIDPublicKey:  c.WebPush.VAPIDPublicKey,
			VAPIDPrivateKey: c.WebPush.VAPIDPrivateKey,
			Subscriber:      c.WebPush.Subscriber,
			TTL:             c.WebPush.TTL,
		},
	}
}
