package config

import (
	"errors"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	defaultJWTSecret     = "dev_secret"
	defaultExportsSecret = "dev_exports_secret"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Overview    OverviewConfig
	Realtime    RealtimeConfig
	Notifier    NotifierConfig
	Exports     ExportsConfig
	Assignments AssignmentsConfig
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// IsProduction reports whether the service runs with the production profile.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// DatabaseConfig carries the postgres pool and migration settings.
type DatabaseConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	Name          string
	SSLMode       string
	MaxOpenConns  int
	MaxIdleConns  int
	MigrationsDir string
}

// RedisConfig points at the cache and version-counter store.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds the signing secret and token lifetimes. SingleSession
// revokes all previous refresh tokens on every login.
type JWTConfig struct {
	Secret            string
	Issuer            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
	SingleSession     bool
}

// CORSConfig lists origins allowed by the CORS middleware; empty means all.
type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// OverviewConfig governs the operations overview exposure and cache tuning.
type OverviewConfig struct {
	Enabled  bool
	CacheTTL time.Duration
}

// RealtimeConfig tunes the change-feed websocket endpoint.
type RealtimeConfig struct {
	Enabled        bool
	DebounceWindow time.Duration
	SendBuffer     int
	PingInterval   time.Duration
	WriteTimeout   time.Duration
}

// NotifierConfig configures the best-effort assignment notification webhook.
type NotifierConfig struct {
	Enabled    bool
	WebhookURL string
	Timeout    time.Duration
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// ExportsConfig configures roster export rendering and signed downloads.
type ExportsConfig struct {
	Enabled         bool
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupInterval time.Duration
}

// AssignmentsConfig carries the defaults applied when a reassignment has to
// create the assignment row itself.
type AssignmentsConfig struct {
	DefaultTourName string
	DefaultSpanDays int
}

// defaults holds the development value for every key. Production must
// override at least the secrets, validate enforces that.
var defaults = map[string]interface{}{
	"ENV":        EnvDevelopment,
	"PORT":       8080,
	"API_PREFIX": "/api/v1",

	"DB_HOST":           "localhost",
	"DB_PORT":           5432,
	"DB_USER":           "postgres",
	"DB_PASSWORD":       "postgres",
	"DB_NAME":           "tourops",
	"DB_SSL_MODE":       "disable",
	"DB_MAX_OPEN_CONNS": 10,
	"DB_MAX_IDLE_CONNS": 5,
	"DB_MIGRATIONS_DIR": "",

	"REDIS_HOST":     "localhost",
	"REDIS_PORT":     6379,
	"REDIS_PASSWORD": "",
	"REDIS_DB":       0,

	"JWT_SECRET":               defaultJWTSecret,
	"JWT_ISSUER":               "tourops-api",
	"JWT_EXPIRATION":           "24h",
	"JWT_SINGLE_SESSION":       false,
	"REFRESH_TOKEN_EXPIRATION": "168h",

	"ALLOWED_ORIGINS": "",
	"LOG_LEVEL":       "info",
	"LOG_FORMAT":      "json",

	"ENABLE_OVERVIEW":    false,
	"OVERVIEW_CACHE_TTL": "5m",

	"ENABLE_REALTIME":          false,
	"REALTIME_DEBOUNCE_WINDOW": "250ms",
	"REALTIME_SEND_BUFFER":     8,
	"REALTIME_PING_INTERVAL":   "30s",
	"REALTIME_WRITE_TIMEOUT":   "10s",

	"ENABLE_NOTIFICATIONS": false,
	"NOTIFY_WEBHOOK_URL":   "",
	"NOTIFY_TIMEOUT":       "5s",
	"NOTIFY_WORKERS":       1,
	"NOTIFY_MAX_RETRIES":   3,
	"NOTIFY_RETRY_DELAY":   "30s",

	"ENABLE_EXPORTS":            false,
	"EXPORTS_STORAGE_DIR":       "./exports",
	"EXPORTS_SIGNED_URL_SECRET": defaultExportsSecret,
	"EXPORTS_SIGNED_URL_TTL":    "30m",
	"EXPORTS_CLEANUP_INTERVAL":  "1h",

	"ASSIGN_DEFAULT_TOUR_NAME": "Standard Tour",
	"ASSIGN_DEFAULT_SPAN_DAYS": 7,
}

// Load reads configuration from the environment, with an optional .env file
// layered underneath.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// The .env file is optional. With an explicit config file viper surfaces
	// a plain fs error rather than ConfigFileNotFoundError, so both are
	// tolerated here.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{
		Env:       v.GetString("ENV"),
		Port:      v.GetInt("PORT"),
		APIPrefix: v.GetString("API_PREFIX"),
		Database: DatabaseConfig{
			Host:          v.GetString("DB_HOST"),
			Port:          v.GetInt("DB_PORT"),
			User:          v.GetString("DB_USER"),
			Password:      v.GetString("DB_PASSWORD"),
			Name:          v.GetString("DB_NAME"),
			SSLMode:       v.GetString("DB_SSL_MODE"),
			MaxOpenConns:  v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:  v.GetInt("DB_MAX_IDLE_CONNS"),
			MigrationsDir: v.GetString("DB_MIGRATIONS_DIR"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:            v.GetString("JWT_SECRET"),
			Issuer:            v.GetString("JWT_ISSUER"),
			Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
			RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
			SingleSession:     v.GetBool("JWT_SINGLE_SESSION"),
		},
		CORS: CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Overview: OverviewConfig{
			Enabled:  v.GetBool("ENABLE_OVERVIEW"),
			CacheTTL: parseDuration(v.GetString("OVERVIEW_CACHE_TTL"), 5*time.Minute),
		},
		Realtime: RealtimeConfig{
			Enabled:        v.GetBool("ENABLE_REALTIME"),
			DebounceWindow: parseDuration(v.GetString("REALTIME_DEBOUNCE_WINDOW"), 250*time.Millisecond),
			SendBuffer:     v.GetInt("REALTIME_SEND_BUFFER"),
			PingInterval:   parseDuration(v.GetString("REALTIME_PING_INTERVAL"), 30*time.Second),
			WriteTimeout:   parseDuration(v.GetString("REALTIME_WRITE_TIMEOUT"), 10*time.Second),
		},
		Notifier: NotifierConfig{
			Enabled:    v.GetBool("ENABLE_NOTIFICATIONS"),
			WebhookURL: v.GetString("NOTIFY_WEBHOOK_URL"),
			Timeout:    parseDuration(v.GetString("NOTIFY_TIMEOUT"), 5*time.Second),
			Workers:    v.GetInt("NOTIFY_WORKERS"),
			MaxRetries: v.GetInt("NOTIFY_MAX_RETRIES"),
			RetryDelay: parseDuration(v.GetString("NOTIFY_RETRY_DELAY"), 30*time.Second),
		},
		Exports: ExportsConfig{
			Enabled:         v.GetBool("ENABLE_EXPORTS"),
			StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
			SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
			SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 30*time.Minute),
			CleanupInterval: parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), time.Hour),
		},
		Assignments: AssignmentsConfig{
			DefaultTourName: v.GetString("ASSIGN_DEFAULT_TOUR_NAME"),
			DefaultSpanDays: v.GetInt("ASSIGN_DEFAULT_SPAN_DAYS"),
		},
	}
	if cfg.Assignments.DefaultSpanDays <= 0 {
		cfg.Assignments.DefaultSpanDays = 7
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate rejects configurations that must never reach production, namely
// the development placeholder secrets.
func (c *Config) validate() error {
	if !c.IsProduction() {
		return nil
	}
	if c.JWT.Secret == "" || c.JWT.Secret == defaultJWTSecret {
		return errors.New("JWT_SECRET must be set to a non-default value in production")
	}
	if c.Exports.Enabled && c.Exports.SignedURLSecret == defaultExportsSecret {
		return errors.New("EXPORTS_SIGNED_URL_SECRET must be set to a non-default value in production")
	}
	return nil
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func splitAndTrim(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
