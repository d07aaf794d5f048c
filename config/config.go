// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
)

const callbackPath = "/api/auth/google/callback"

// Config contains every runtime setting
type Config struct {
	Port string `env:"PORT,default=3001"`

	SuiNetwork string `env:"SUI_NETWORK,default=testnet"`
	SuiRPCURL  string `env:"SUI_RPC_URL"`

	SponsorPrivateKey  string `env:"SPONSOR_PRIVATE_KEY"`
	SponsorGasBudget   uint64 `env:"SPONSOR_GAS_BUDGET,default=2000000"`
	SponsorMaxLifetime int64  `env:"SPONSOR_MAX_TX_LIFETIME_MS,default=60000"`

	EnokiAPIKey  string `env:"ENOKI_PRIVATE_KEY"`
	EnokiAPIURL  string `env:"ENOKI_API_URL,default=https://api.enoki.mystenlabs.com"`
	EnokiNetwork string `env:"ENOKI_ENV,default=testnet"`

	GoogleClientID      string `env:"GOOGLE_CLIENT_ID"`
	GoogleRedirectURI   string `env:"GOOGLE_REDIRECT_URI"`
	GoogleVerifyIDToken bool   `env:"GOOGLE_VERIFY_ID_TOKEN,default=false"`
	GoogleIssuer        string `env:"GOOGLE_ISSUER,default=https://accounts.google.com"`

	PublicBaseURL string `env:"PUBLIC_BASE_URL"`
	CORSOrigin    string `env:"CORS_ORIGIN"`

	// Store is "memory" or "redis"
	Store         string        `env:"STORE_BACKEND,default=memory"`
	RedisURL      string        `env:"REDIS_URL,default=redis://localhost:6379/0"`
	KeyPrefix     string        `env:"STORE_KEY_PREFIX,default=zksponsor:"`
	SweepInterval time.Duration `env:"STORE_SWEEP_INTERVAL,default=1m"`

	SessionTTL time.Duration `env:"SESSION_TTL,default=6h"`
	LogLevel   string        `env:"LOG_LEVEL,default=info"`
}

// Load reads the configuration from the environment and fills derived values
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}
	cfg.applyDerived()
	return &cfg, nil
}

func (c *Config) applyDerived() {
	if c.PublicBaseURL == "" && c.GoogleRedirectURI != "" {
		c.PublicBaseURL = strings.TrimSuffix(c.GoogleRedirectURI, callbackPath)
	}
	if c.GoogleRedirectURI == "" && c.PublicBaseURL != "" {
		c.GoogleRedirectURI = strings.TrimRight(c.PublicBaseURL, "/") + callbackPath
	}
}

// SponsorTTL is how long a prepared transaction stays executable
func (c *Config) SponsorTTL() time.Duration {
	return time.Duration(c.SponsorMaxLifetime) * time.Millisecond
}

// SecureCookies reports whether the service is served over https
func (c *Config) SecureCookies() bool {
	u, err := url.Parse(c.PublicBaseURL)
	return err == nil && u.Scheme == "https"
}

// Validate checks required settings and value ranges
func (c *Config) Validate() error {
	var problems []string

	switch c.SuiNetwork {
	case "mainnet", "testnet", "devnet", "localnet":
	default:
		problems = append(problems, fmt.Sprintf("SUI_NETWORK %q is not one of mainnet, testnet, devnet, localnet", c.SuiNetwork))
	}
	switch c.EnokiNetwork {
	case "mainnet", "testnet":
	default:
		problems = append(problems, fmt.Sprintf("ENOKI_ENV %q is not one of mainnet, testnet", c.EnokiNetwork))
	}
	if c.SponsorPrivateKey == "" {
		problems = append(problems, "SPONSOR_PRIVATE_KEY is required")
	}
	if c.SponsorGasBudget == 0 {
		problems = append(problems, "SPONSOR_GAS_BUDGET must be positive")
	}
	if c.SponsorMaxLifetime <= 0 {
		problems = append(problems, "SPONSOR_MAX_TX_LIFETIME_MS must be positive")
	}
	if c.EnokiAPIKey == "" {
		problems = append(problems, "ENOKI_PRIVATE_KEY is required")
	}
	if c.GoogleClientID == "" {
		problems = append(problems, "GOOGLE_CLIENT_ID is required")
	}
	if u, err := url.Parse(c.GoogleRedirectURI); err != nil || u.Scheme == "" || u.Host == "" {
		problems = append(problems, "GOOGLE_REDIRECT_URI must be a valid URL")
	}
	if c.SessionTTL <= 0 {
		problems = append(problems, "SESSION_TTL must be positive")
	}
	switch c.Store {
	case "memory":
	case "redis":
		if c.RedisURL == "" {
			problems = append(problems, "REDIS_URL is required for the redis store")
		}
	default:
		problems = append(problems, fmt.Sprintf("STORE_BACKEND %q is not one of memory, redis", c.Store))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
