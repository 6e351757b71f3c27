package config

import (
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string   `mapstructure:"PORT"`
	Env           string   `mapstructure:"ENV"`
	DatabaseURL   string   `mapstructure:"DATABASE_URL"`
	DBMaxConns    int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32    `mapstructure:"DB_MIN_CONNS"`
	DefaultTenant string   `mapstructure:"DEFAULT_TENANT"`
	CORSOrigins   []string `mapstructure:"CORS_ORIGINS"`

	AuthIssuer     string `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string `mapstructure:"AUTH_AUDIENCE"`
	AuthJWKSURL    string `mapstructure:"AUTH_JWKS_URL"`
	AuthSigningKey string `mapstructure:"AUTH_SIGNING_KEY"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	ReviewLease time.Duration `mapstructure:"REVIEW_LEASE"`

	IssuePollInterval   time.Duration `mapstructure:"ISSUE_POLL_INTERVAL"`
	IssueErrorThreshold int           `mapstructure:"ISSUE_ERROR_THRESHOLD"`
	IssueStuckAfter     time.Duration `mapstructure:"ISSUE_STUCK_AFTER"`
	IssueHistoryStore   string        `mapstructure:"ISSUE_HISTORY_STORE"`

	PaymentsAPIURL    string `mapstructure:"PAYMENTS_API_URL"`
	PaymentsSecretKey string `mapstructure:"PAYMENTS_SECRET_KEY"`

	WearablesAPIURL string `mapstructure:"WEARABLES_API_URL"`
	WearablesAPIKey string `mapstructure:"WEARABLES_API_KEY"`
	WearablesDevID  string `mapstructure:"WEARABLES_DEV_ID"`

	HTTPClientTimeout time.Duration `mapstructure:"HTTP_CLIENT_TIMEOUT"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"DEFAULT_TENANT", "CORS_ORIGINS",
	"AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_JWKS_URL", "AUTH_SIGNING_KEY",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"REVIEW_LEASE",
	"ISSUE_POLL_INTERVAL", "ISSUE_ERROR_THRESHOLD", "ISSUE_STUCK_AFTER", "ISSUE_HISTORY_STORE",
	"PAYMENTS_API_URL", "PAYMENTS_SECRET_KEY",
	"WEARABLES_API_URL", "WEARABLES_API_KEY", "WEARABLES_DEV_ID",
	"HTTP_CLIENT_TIMEOUT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DEFAULT_TENANT", "default")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("REVIEW_LEASE", "30m")
	v.SetDefault("ISSUE_POLL_INTERVAL", "30s")
	v.SetDefault("ISSUE_ERROR_THRESHOLD", 5)
	v.SetDefault("ISSUE_STUCK_AFTER", "24h")
	v.SetDefault("ISSUE_HISTORY_STORE", "postgres")
	v.SetDefault("PAYMENTS_API_URL", "https://api.stripe.com")
	v.SetDefault("HTTP_CLIENT_TIMEOUT", "10s")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: unauthenticated requests are treated as an admin user.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// SigningKey decodes AUTH_SIGNING_KEY. A nil slice means JWKS validation is used.
func (c *Config) SigningKey() ([]byte, error) {
	if c.AuthSigningKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.AuthSigningKey)
	if err != nil {
		return nil, fmt.Errorf("AUTH_SIGNING_KEY is not valid hex: %w", err)
	}
	return key, nil
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.IsProduction() && c.AuthIssuer == "" && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_ISSUER or AUTH_SIGNING_KEY must be set in production")
	}
	if _, err := c.SigningKey(); err != nil {
		return err
	}
	if c.ReviewLease < 0 {
		return fmt.Errorf("REVIEW_LEASE must not be negative, got %s", c.ReviewLease)
	}
	if c.IssuePollInterval < time.Second {
		return fmt.Errorf("ISSUE_POLL_INTERVAL must be at least 1s, got %s", c.IssuePollInterval)
	}
	if c.IssueErrorThreshold < 0 {
		return fmt.Errorf("ISSUE_ERROR_THRESHOLD must not be negative, got %d", c.IssueErrorThreshold)
	}
	switch c.IssueHistoryStore {
	case "postgres", "memory":
	default:
		return fmt.Errorf("ISSUE_HISTORY_STORE must be \"postgres\" or \"memory\", got %q", c.IssueHistoryStore)
	}
	return nil
}
