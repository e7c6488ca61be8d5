package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the tuntasinaja backend.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Push       PushConfig       `mapstructure:"push"`
	Reminders  ReminderConfig   `mapstructure:"reminders"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	Postgres        DBAuthConfig  `mapstructure:"postgres"`
	MySQL           DBAuthConfig  `mapstructure:"mysql"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string            `mapstructure:"host"`
	Port     int               `mapstructure:"port"`
	Database string            `mapstructure:"database"`
	Username string            `mapstructure:"username"`
	Password string            `mapstructure:"password"`
	Options  map[string]string `mapstructure:"options"`
}

// AuthConfig captures authentication settings.
type AuthConfig struct {
	JWT JWTSettings `mapstructure:"jwt"`
}

// JWTSettings configures validation of access tokens issued by the auth service.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"access_token_ttl"`
}

// PushConfig configures outbound push delivery.
type PushConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Native selects the native push provider: fcm, expo or none.
	Native  string        `mapstructure:"native"`
	FCM     FCMConfig     `mapstructure:"fcm"`
	Expo    ExpoConfig    `mapstructure:"expo"`
	WebPush WebPushConfig `mapstructure:"webpush"`
	// DefaultLink is the click-through URL attached to web notifications.
	DefaultLink string `mapstructure:"default_link"`
}

// FCMConfig holds Firebase service account credentials. CredentialsJSON may be
// raw JSON or base64 encoded JSON.
type FCMConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
	CredentialsJSON string `mapstructure:"credentials_json"`
}

// ExpoConfig configures the Expo push service.
type ExpoConfig struct {
	AccessToken string `mapstructure:"access_token"`
	Host        string `mapstructure:"host"`
}

// WebPushConfig holds VAPID credentials for browser push.
type WebPushConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	VAPIDPublicKey  string        `mapstructure:"vapid_public_key"`
	VAPIDPrivateKey string        `mapstructure:"vapid_private_key"`
	Subscriber      string        `mapstructure:"subscriber"`
	TTL             time.Duration `mapstructure:"ttl"`
}

// ReminderConfig configures scheduled reminders.
type ReminderConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Timezone          string        `mapstructure:"timezone"`
	DeadlineSchedule  string        `mapstructure:"deadline_schedule"`
	DeadlineWindow    time.Duration `mapstructure:"deadline_window"`
	DeadlineLookahead time.Duration `mapstructure:"deadline_lookahead"`
	ScheduleSchedule  string        `mapstructure:"schedule_schedule"`
	CacheCleanup      string        `mapstructure:"cache_cleanup_schedule"`
	// CronSecret authorises external schedulers calling the /api/cron endpoints.
	CronSecret string `mapstructure:"cron_secret"`
}

// RateLimitConfig configures the fixed-window limits applied to API routes.
type RateLimitConfig struct {
	Enabled  bool        `mapstructure:"enabled"`
	Store    string      `mapstructure:"store"`
	Mutation LimitConfig `mapstructure:"mutation"`
	Query    LimitConfig `mapstructure:"query"`
}

// LimitConfig is one fixed window.
type LimitConfig struct {
	Max    int           `mapstructure:"max"`
	Window time.Duration `mapstructure:"window"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// Location resolves the reminder timezone, falling back to UTC.
func (c ReminderConfig) Location() *time.Location {
	name := strings.TrimSpace(c.Timezone)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
// A path may name a directory containing config.yaml or a config file directly.
// A .env file in the working directory is loaded first so that its TUNTAS_*
// variables take part in the environment overrides.
func LoadConfig(paths ...string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			v.SetConfigFile(path)
			continue
		}
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("TUNTAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(filepath.Clean(path)); err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/tuntasinaja.sqlite")
	v.SetDefault("database.max_open_conns", 0)
	v.SetDefault("database.max_idle_conns", 0)
	v.SetDefault("database.conn_max_lifetime", "0s")
	// Nested keys need a default so AutomaticEnv can override them.
	for _, driver := range []string{"postgres", "mysql"} {
		v.SetDefault("database."+driver+".host", "")
		v.SetDefault("database."+driver+".port", 0)
		v.SetDefault("database."+driver+".database", "")
		v.SetDefault("database."+driver+".username", "")
		v.SetDefault("database."+driver+".password", "")
	}

	v.SetDefault("auth.jwt.secret", "")
	v.SetDefault("auth.jwt.issuer", "")
	v.SetDefault("auth.jwt.access_token_ttl", "15m")

	v.SetDefault("push.enabled", true)
	v.SetDefault("push.native", "fcm")
	v.SetDefault("push.default_link", "/")
	v.SetDefault("push.fcm.project_id", "")
	v.SetDefault("push.fcm.credentials_file", "")
	v.SetDefault("push.fcm.credentials_json", "")
	v.SetDefault("push.expo.access_token", "")
	v.SetDefault("push.expo.host", "")
	v.SetDefault("push.webpush.enabled", true)
	v.SetDefault("push.webpush.vapid_public_key", "")
	v.SetDefault("push.webpush.vapid_private_key", "")
	v.SetDefault("push.webpush.subscriber", "admin@tuntasinaja.local")
	v.SetDefault("push.webpush.ttl", "24h")

	v.SetDefault("reminders.enabled", true)
	v.SetDefault("reminders.timezone", "Asia/Jakarta")
	v.SetDefault("reminders.deadline_schedule", "*/30 * * * *")
	v.SetDefault("reminders.deadline_window", "30m")
	v.SetDefault("reminders.deadline_lookahead", "24h")
	v.SetDefault("reminders.schedule_schedule", "0 18,21 * * *")
	v.SetDefault("reminders.cache_cleanup_schedule", "@hourly")
	v.SetDefault("reminders.cron_secret", "")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.store", "database")
	v.SetDefault("rate_limit.mutation.max", 10)
	v.SetDefault("rate_limit.mutation.window", "10s")
	v.SetDefault("rate_limit.query.max", 30)
	v.SetDefault("rate_limit.query.window", "10s")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
