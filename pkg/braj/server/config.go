package server

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPoolSize     = 10
	DefaultDrainTimeout = 5 * time.Second
)

// Config holds server configuration.
type Config struct {
	ListenAddr   string        `yaml:"listen" validate:"required"`
	PoolSize     int           `yaml:"pool_size" validate:"required,min=1"`
	Admission    AdmissionMode `yaml:"admission" validate:"required,oneof=strict literal"`
	PollInterval time.Duration `yaml:"poll_interval" validate:"min=0"`
	DrainTimeout time.Duration `yaml:"drain_timeout" validate:"min=0"`
	ResolvePeers bool          `yaml:"resolve_peers"`
}

var validate = validator.New()

// DefaultConfig returns a configuration listening on all interfaces at port.
func DefaultConfig(port int) *Config {
	return &Config{
		ListenAddr:   ListenAddr(port),
		PoolSize:     DefaultPoolSize,
		Admission:    AdmissionStrict,
		DrainTimeout: DefaultDrainTimeout,
		ResolvePeers: true,
	}
}

// ListenAddr returns the IPv4 wildcard address for port.
func ListenAddr(port int) string {
	return net.JoinHostPort("0.0.0.0", strconv.Itoa(port))
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.ListenAddr, err)
	}

	return nil
}

// LoadConfig overlays the YAML file at path onto cfg. Keys missing from the
// file keep their current values.
func LoadConfig(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	return nil
}
