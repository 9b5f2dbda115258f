package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix           = "SWIRL"
	defaultHTTPAddress  = "0.0.0.0:8080"
	defaultDriver       = DriverSQLite
	defaultDatabasePath = "swirl.db"
	defaultLogLevel     = "info"
	defaultLogFormat    = "json"
	defaultIssuer       = "swirl-auth"
	defaultCookieName   = "access_token"
	defaultPageSize     = 20
	defaultMaxPageSize  = 100
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress       string
	AllowedOrigins    []string
	DatabaseDriver    string
	DatabasePath      string
	DatabaseDSN       string
	LogLevel          string
	LogFormat         string
	SessionSecret     string
	SessionIssuer     string
	SessionCookieName string
	RedisAddress      string
	RateLimitEnabled  bool
	FeedPageSize      int
	FeedMaxPageSize   int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.allowed_origins", []string{})
	configViper.SetDefault("database.driver", defaultDriver)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("database.dsn", "")
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("session.issuer", defaultIssuer)
	configViper.SetDefault("session.cookie_name", defaultCookieName)
	configViper.SetDefault("redis.address", "")
	configViper.SetDefault("ratelimit.enabled", true)
	configViper.SetDefault("feeds.page_size", defaultPageSize)
	configViper.SetDefault("feeds.max_page_size", defaultMaxPageSize)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       configViper.GetString("http.address"),
		AllowedOrigins:    splitOrigins(configViper.GetStringSlice("http.allowed_origins")),
		DatabaseDriver:    strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabasePath:      configViper.GetString("database.path"),
		DatabaseDSN:       configViper.GetString("database.dsn"),
		LogLevel:          configViper.GetString("log.level"),
		LogFormat:         configViper.GetString("log.format"),
		SessionSecret:     configViper.GetString("session.signing_secret"),
		SessionIssuer:     configViper.GetString("session.issuer"),
		SessionCookieName: configViper.GetString("session.cookie_name"),
		RedisAddress:      configViper.GetString("redis.address"),
		RateLimitEnabled:  configViper.GetBool("ratelimit.enabled"),
		FeedPageSize:      configViper.GetInt("feeds.page_size"),
		FeedMaxPageSize:   configViper.GetInt("feeds.max_page_size"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// RateLimitingActive reports whether requests should pass through the redis limiter.
func (c AppConfig) RateLimitingActive() bool {
	return c.RateLimitEnabled && strings.TrimSpace(c.RedisAddress) != ""
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SessionSecret) == "" {
		return fmt.Errorf("session.signing_secret is required")
	}
	if strings.TrimSpace(c.SessionIssuer) == "" {
		return fmt.Errorf("session.issuer is required")
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	switch c.DatabaseDriver {
	case DriverSQLite:
		if strings.TrimSpace(c.DatabasePath) == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.DatabaseDSN) == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported", c.DatabaseDriver)
	}
	if c.FeedPageSize <= 0 {
		return fmt.Errorf("feeds.page_size must be positive")
	}
	if c.FeedMaxPageSize < c.FeedPageSize {
		return fmt.Errorf("feeds.max_page_size must be at least feeds.page_size")
	}
	return nil
}

// splitOrigins flattens comma separated entries, as supplied through the
// environment, and drops blanks.
func splitOrigins(values []string) []string {
	origins := make([]string, 0, len(values))
	for _, value := range values {
		for _, origin := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}
	return origins
}
