package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                = "COOKBOOK"
	defaultHTTPAddress       = "0.0.0.0:8080"
	defaultDatabasePath      = "cookbook.db"
	defaultSearchPath        = ""
	defaultLogLevel          = "info"
	defaultCookieName        = "cookbook_session"
	defaultSessionTTLMinutes = 24 * 60
	defaultAdminUsername     = "Admin"
	defaultRatePerMinute     = 120
	defaultRateBurst         = 20
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress          string
	DatabasePath         string
	SearchPath           string
	LogLevel             string
	SessionSigningSecret string
	SessionCookieName    string
	SessionTTL           time.Duration
	SessionSecureCookie  bool
	AdminUsername        string
	RatePerMinute        int
	RateBurst            int
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
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("search.path", defaultSearchPath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("session.cookie_name", defaultCookieName)
	configViper.SetDefault("session.ttl_minutes", defaultSessionTTLMinutes)
	configViper.SetDefault("session.secure_cookie", false)
	configViper.SetDefault("admin.username", defaultAdminUsername)
	configViper.SetDefault("ratelimit.per_minute", defaultRatePerMinute)
	configViper.SetDefault("ratelimit.burst", defaultRateBurst)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:          configViper.GetString("http.address"),
		DatabasePath:         configViper.GetString("database.path"),
		SearchPath:           configViper.GetString("search.path"),
		LogLevel:             configViper.GetString("log.level"),
		SessionSigningSecret: configViper.GetString("session.signing_secret"),
		SessionCookieName:    configViper.GetString("session.cookie_name"),
		SessionTTL:           time.Duration(configViper.GetInt("session.ttl_minutes")) * time.Minute,
		SessionSecureCookie:  configViper.GetBool("session.secure_cookie"),
		AdminUsername:        configViper.GetString("admin.username"),
		RatePerMinute:        configViper.GetInt("ratelimit.per_minute"),
		RateBurst:            configViper.GetInt("ratelimit.burst"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SessionSigningSecret) == "" {
		return fmt.Errorf("session.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session.ttl_minutes must be positive")
	}
	if strings.TrimSpace(c.AdminUsername) == "" {
		return fmt.Errorf("admin.username is required")
	}
	if c.RatePerMinute <= 0 || c.RateBurst <= 0 {
		return fmt.Errorf("ratelimit.per_minute and ratelimit.burst must be positive")
	}
	return nil
}
