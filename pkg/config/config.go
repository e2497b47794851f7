package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all bot configuration. It is built once at startup and
// passed by reference into the components that need it.
type Config struct {
	// Telegram bot token (required for `run`)
	TelegramToken string `env:"TELEGRAM_BOT_TOKEN"`

	// Helius DAS endpoint, authenticated with an API key in the query string
	HeliusRPCURL  string        `env:"HELIUS_RPC_URL" envDefault:"https://mainnet.helius-rpc.com"`
	HeliusAPIKey  string        `env:"HELIUS_API_KEY"`
	HeliusTimeout time.Duration `env:"HELIUS_TIMEOUT" envDefault:"15s"`

	// Collection whose membership is checked (grouping value with group_key "collection")
	CollectionID string `env:"COLLECTION_ID"`

	// Directory holding wallets.db, created on first run
	DataDir string `env:"DATA_DIR" envDefault:".data"`

	// Optional read-only status server, e.g. ":8080". Empty disables it.
	StatusListenAddr string `env:"STATUS_LISTEN_ADDR"`

	// Upper bound on verifications running at once
	MaxConcurrentChecks int `env:"MAX_CONCURRENT_CHECKS" envDefault:"16"`
}

// DefaultConfig returns a config holding only the envDefault values. The
// process environment is not read.
func DefaultConfig() *Config {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: map[string]string{}}); err != nil {
		panic(fmt.Sprintf("config: bad envDefault tag: %v", err))
	}
	return cfg
}

// Load reads the config from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks that the fields needed for ownership checks are set.
func (c *Config) Validate() error {
	if c.HeliusAPIKey == "" {
		return errors.New("HELIUS_API_KEY is required")
	}
	if c.CollectionID == "" {
		return errors.New("COLLECTION_ID is required")
	}
	if c.HeliusRPCURL == "" {
		return errors.New("HELIUS_RPC_URL must not be empty")
	}
	if c.DataDir == "" {
		return errors.New("DATA_DIR must not be empty")
	}
	if c.MaxConcurrentChecks < 1 {
		return errors.New("MAX_CONCURRENT_CHECKS must be >= 1")
	}
	return nil
}

// ValidateBot additionally requires the Telegram token.
func (c *Config) ValidateBot() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.TelegramToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	return nil
}
