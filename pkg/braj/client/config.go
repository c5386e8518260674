package client

import (
	"fmt"
	"net"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReplyTimeout = 5 * time.Second
	DefaultMaxRetries   = 3
)

// Config holds client configuration.
type Config struct {
	ServerAddr   string        `validate:"required"`
	DialTimeout  time.Duration `validate:"required,min=1ms"`
	ReplyTimeout time.Duration `validate:"required,min=1ms"`
	MaxRetries   int           `validate:"min=0"`
}

var validate = validator.New()

// DefaultConfig returns a configuration for the server at addr.
func DefaultConfig(addr string) *Config {
	return &Config{
		ServerAddr:   addr,
		DialTimeout:  DefaultDialTimeout,
		ReplyTimeout: DefaultReplyTimeout,
		MaxRetries:   DefaultMaxRetries,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	if _, _, err := net.SplitHostPort(c.ServerAddr); err != nil {
		return fmt.Errorf("invalid server address %q: %w", c.ServerAddr, err)
	}

	return nil
}
