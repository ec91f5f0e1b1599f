package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	log "github.com/sirupsen/logrus"
)

// devEncryptionKey is only accepted outside production.
const devEncryptionKey = "default-key-change-in-production-123456"

// Server timeouts. A handler must finish before ServerWriteTimeout or its
// response is lost.
const (
	ServerReadTimeout  = 15 * time.Second
	ServerWriteTimeout = 15 * time.Second
	ServerIdleTimeout  = 60 * time.Second
)

// Config holds application configuration
type Config struct {
	Port          int           `env:"PORT" envDefault:"8080"`
	Environment   string        `env:"ENVIRONMENT" envDefault:"production"`
	AppURL        string        `env:"APP_URL"`
	JWTSecret     string        `env:"JWT_SECRET"`
	EncryptionKey string        `env:"ENCRYPTION_KEY"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
	CORSOrigins   []string      `env:"CORS_ORIGINS" envSeparator:","`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"12h"`
	StateTTL      time.Duration `env:"OAUTH_STATE_TTL" envDefault:"10m"`
	InviteCodeTTL time.Duration `env:"INVITE_CODE_TTL" envDefault:"168h"`
	OAuth         OAuthConfig
	Database      DatabaseConfig
	Integrations  IntegrationsConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Type         string `env:"DATABASE_TYPE" envDefault:"postgres"` // postgres or sqlite
	DSN          string `env:"DATABASE_DSN"`
	MaxOpenConns int    `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int    `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
}

// OAuthConfig bounds outbound provider calls.
type OAuthConfig struct {
	// RequestTimeout applies to each provider call.
	RequestTimeout time.Duration `env:"OAUTH_REQUEST_TIMEOUT" envDefault:"5s"`
	// CallbackTimeout covers a whole callback: exchange, lookups and storage.
	CallbackTimeout time.Duration `env:"OAUTH_CALLBACK_TIMEOUT" envDefault:"12s"`
}

// ProviderCredentials is the client id/secret/redirect URI triple registered
// with a third-party OAuth provider.
type ProviderCredentials struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURI  string `env:"REDIRECT_URI"`
}

// IntegrationsConfig holds the credentials of every supported provider.
type IntegrationsConfig struct {
	Slack   ProviderCredentials `envPrefix:"SLACK_"`
	Jira    ProviderCredentials `envPrefix:"JIRA_"`
	GitHub  ProviderCredentials `envPrefix:"GITHUB_"`
	Notion  ProviderCredentials `envPrefix:"NOTION_"`
	ClickUp ProviderCredentials `envPrefix:"CLICKUP_"`
}

// For returns the credentials for a provider name. Unknown names yield an
// empty triple, which callers treat as "not configured".
func (c IntegrationsConfig) For(provider string) ProviderCredentials {
	switch provider {
	case "slack":
		return c.Slack
	case "jira":
		return c.Jira
	case "github":
		return c.GitHub
	case "notion":
		return c.Notion
	case "clickup":
		return c.ClickUp
	}
	return ProviderCredentials{}
}

// Load loads configuration from environment variables and exits on failure
func Load() *Config {
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	return cfg
}

// Parse reads the environment, fills development defaults and validates
// the result.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.AppURL = strings.TrimRight(cfg.AppURL, "/")
	if cfg.AppURL == "" {
		log.Warn("APP_URL not set. Using http://localhost:3000")
		cfg.AppURL = "http://localhost:3000"
	}

	if cfg.Database.DSN == "" && cfg.Database.Type == "postgres" {
		dsn, err := buildPostgresDSN()
		if err != nil {
			return nil, err
		}
		cfg.Database.DSN = dsn
	}

	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{cfg.AppURL}
	}

	if err := cfg.applySecretDefaults(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) applySecretDefaults() error {
	if c.JWTSecret == "" {
		if c.IsProduction() {
			return fmt.Errorf("JWT_SECRET environment variable is required in production")
		}
		log.Warn("JWT_SECRET not set. Generating random secret for development.")
		log.Warn("This secret will change on restart. Set JWT_SECRET in production!")
		secret, err := generateRandomSecret()
		if err != nil {
			return err
		}
		c.JWTSecret = secret
	}

	if c.EncryptionKey == "" {
		if c.IsProduction() {
			return fmt.Errorf("ENCRYPTION_KEY environment variable is required in production")
		}
		log.Warn("ENCRYPTION_KEY not set. Using the development key; stored tokens are not protected.")
		c.EncryptionKey = devEncryptionKey
	}
	return nil
}

// postgresEnv holds the discrete connection settings used when
// DATABASE_DSN is not given.
type postgresEnv struct {
	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     string `env:"POSTGRES_PORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER" envDefault:"aerius"`
	Password string `env:"POSTGRES_PASSWORD" envDefault:"secret"`
	DBName   string `env:"POSTGRES_DB" envDefault:"aerius"`
	SSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`
}

func buildPostgresDSN() (string, error) {
	var pg postgresEnv
	if err := env.Parse(&pg); err != nil {
		return "", fmt.Errorf("parse postgres env: %w", err)
	}

	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(pg.User, pg.Password),
		Host:   fmt.Sprintf("%s:%s", pg.Host, pg.Port),
		Path:   pg.DBName,
	}

	query := u.Query()
	query.Set("sslmode", pg.SSLMode)
	u.RawQuery = query.Encode()

	return u.String(), nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Environment != "production" && c.Environment != "development" {
		return fmt.Errorf("unsupported environment: %s", c.Environment)
	}

	if c.IsProduction() {
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
		}

		// Check for insecure default secrets
		insecureSecrets := []string{
			"change-this-secret-in-production",
			"change-me-in-production",
			"secret",
			"password",
			"changeme",
		}
		for _, insecure := range insecureSecrets {
			if c.JWTSecret == insecure {
				return fmt.Errorf("JWT_SECRET is set to an insecure default value. Please set a strong random secret")
			}
		}

		if c.EncryptionKey == devEncryptionKey {
			return fmt.Errorf("ENCRYPTION_KEY must not use the development default in production")
		}
	} else if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters long")
	}

	if len(c.CORSOrigins) == 0 {
		return fmt.Errorf("at least one CORS origin must be configured")
	}

	if c.Database.Type != "postgres" && c.Database.Type != "sqlite" {
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	if c.StateTTL <= 0 || c.InviteCodeTTL <= 0 || c.SessionTTL <= 0 {
		return fmt.Errorf("OAUTH_STATE_TTL, INVITE_CODE_TTL and SESSION_TTL must be positive")
	}

	if c.OAuth.RequestTimeout <= 0 || c.OAuth.CallbackTimeout <= 0 {
		return fmt.Errorf("OAUTH_REQUEST_TIMEOUT and OAUTH_CALLBACK_TIMEOUT must be positive")
	}
	if c.OAuth.CallbackTimeout >= ServerWriteTimeout {
		return fmt.Errorf("OAUTH_CALLBACK_TIMEOUT must be shorter than the %s server write timeout", ServerWriteTimeout)
	}
	if c.OAuth.RequestTimeout > c.OAuth.CallbackTimeout {
		return fmt.Errorf("OAUTH_REQUEST_TIMEOUT must not exceed OAUTH_CALLBACK_TIMEOUT")
	}

	return nil
}

func generateRandomSecret() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random secret: %w", err)
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}
