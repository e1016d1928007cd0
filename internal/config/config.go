package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the legal assistant client and its
// companion server.
type Config struct {
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	Backend   BackendConfig
	Case      CaseConfig
	Server    ServerConfig
	Redis     RedisConfig
	Database  DatabaseConfig
}

// BackendConfig points at the remote chat and judge services.
type BackendConfig struct {
	ChatURL  string        `envconfig:"CHAT_API_URL" default:"http://localhost:5001"`
	JudgeURL string        `envconfig:"JUDGE_API_URL" default:"http://localhost:8000"`
	Timeout  time.Duration `envconfig:"BACKEND_TIMEOUT" default:"120s"`
}

// CaseConfig holds case session settings.
type CaseConfig struct {
	PollInterval time.Duration `envconfig:"VERDICT_POLL_INTERVAL" default:"3s"`
	DownloadDir  string        `envconfig:"VERDICT_DOWNLOAD_DIR" default:"verdicts"`
}

// ServerConfig holds HTTP server configuration for cmd/server.
type ServerConfig struct {
	Host      string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port      string        `envconfig:"SERVER_PORT" default:"8080"`
	JWTSecret string        `envconfig:"JWT_SECRET"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
}

// RedisConfig enables the shared history cache when URI is set.
type RedisConfig struct {
	URI string        `envconfig:"REDIS_URI"`
	TTL time.Duration `envconfig:"HISTORY_CACHE_TTL" default:"10m"`
}

// DatabaseConfig enables the verdict archive when DSN is set.
type DatabaseConfig struct {
	DSN string `envconfig:"DATABASE_DSN"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks configuration for logical errors beyond required fields.
func (c *Config) Validate() error {
	for name, raw := range map[string]string{
		"CHAT_API_URL":  c.Backend.ChatURL,
		"JUDGE_API_URL": c.Backend.JudgeURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s: invalid url %q", name, raw)
		}
	}
	c.Backend.ChatURL = strings.TrimRight(c.Backend.ChatURL, "/")
	c.Backend.JudgeURL = strings.TrimRight(c.Backend.JudgeURL, "/")

	if c.Case.PollInterval <= 0 {
		return errors.New("VERDICT_POLL_INTERVAL must be positive")
	}
	if c.Backend.Timeout <= 0 {
		return errors.New("BACKEND_TIMEOUT must be positive")
	}
	return nil
}

// ValidateServer checks the settings only cmd/server needs.
func (c *Config) ValidateServer() error {
	if c.Server.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	return nil
}
