package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const minSessionSecretLen = 32

type Config struct {
	AppPort       string `env:"APP_PORT"        envDefault:"8080" yaml:"app_port"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080" yaml:"public_base_url"`

	AuthDomain       string   `env:"AUTH_DOMAIN" yaml:"auth_domain"`
	AuthIssuerURL    string   `env:"AUTH_ISSUER_URL" yaml:"auth_issuer_url"`
	AuthClientID     string   `env:"AUTH_CLIENT_ID" yaml:"auth_client_id"`
	AuthClientSecret string   `env:"AUTH_CLIENT_SECRET" yaml:"auth_client_secret"`
	AuthAudience     string   `env:"AUTH_AUDIENCE" yaml:"auth_audience"`
	AuthScopes       []string `env:"AUTH_SCOPES"     envSeparator:"," envDefault:"openid,profile,email" yaml:"auth_scopes"`

	RedisAddr     string `env:"REDIS_ADDR"     envDefault:"localhost:6379" yaml:"redis_addr"`
	RedisPassword string `env:"REDIS_PASSWORD" yaml:"redis_password"`

	SessionSecret string        `env:"SESSION_SECRET" yaml:"session_secret"`
	SessionTTL    time.Duration `env:"SESSION_TTL"    envDefault:"24h" yaml:"session_ttl"`
	CookieSecure  bool          `env:"COOKIE_SECURE"  envDefault:"true" yaml:"cookie_secure"`

	LoginRatePerMinute int `env:"RATELIMIT_LOGIN_PER_MINUTE" envDefault:"10" yaml:"ratelimit_login_per_minute"`

	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info" yaml:"log_level"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json" yaml:"log_format"`
}

// Load parses the environment and validates the result. A config that
// fails validation is never returned.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.AuthScopes = trimCSV(cfg.AuthScopes)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.AuthDomain) == "" && strings.TrimSpace(c.AuthIssuerURL) == "" {
		errs = append(errs, errors.New("AUTH_DOMAIN is required"))
	}
	if strings.TrimSpace(c.AuthClientID) == "" {
		errs = append(errs, errors.New("AUTH_CLIENT_ID is required"))
	}
	if len(c.SessionSecret) < minSessionSecretLen {
		errs = append(errs, fmt.Errorf("SESSION_SECRET must be at least %d bytes", minSessionSecretLen))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.LoginRatePerMinute <= 0 {
		errs = append(errs, errors.New("RATELIMIT_LOGIN_PER_MINUTE must be positive"))
	}

	u, err := url.Parse(c.PublicBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("PUBLIC_BASE_URL must be an absolute URL, got %q", c.PublicBaseURL))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// RedirectURL is where the identity provider sends the browser back to:
// the application origin.
func (c Config) RedirectURL() string {
	u, err := url.Parse(c.PublicBaseURL)
	if err != nil {
		return c.PublicBaseURL
	}
	return u.Scheme + "://" + u.Host + "/"
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	out := c
	out.AuthClientSecret = redact(c.AuthClientSecret)
	out.RedisPassword = redact(c.RedisPassword)
	out.SessionSecret = redact(c.SessionSecret)
	return out
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

func trimCSV(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
