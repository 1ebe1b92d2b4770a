// Package config handles runtime settings for the bizstore binary:
// defaults, an optional YAML file, then environment variables. Command-line
// flags are applied last by the cli package.
package config

import (
	"fmt"
	"net"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/stevemurr/bizstore/logging"
	"github.com/stevemurr/bizstore/store"
)

// Config holds runtime settings.
//
// Fields:
//   - Backend / DataDir: which store backend to open and where its files live.
//   - Host / Port: bind address of the local API. Loopback by default.
//   - AllowedOrigins: CORS origins for the UI, "*" for any.
//   - JWTSecret: HS256 key shared with the sign-in flow. Empty disables bearer tokens.
//   - MasterPoll: default refresh interval of master data watchers.
//   - LogLevel / LogFormat: slog level and "text" or "json".
type Config struct {
	Backend        string
	DataDir        string
	Host           string
	Port           int
	AllowedOrigins []string
	JWTSecret      string
	MasterPoll     time.Duration
	LogLevel       string
	LogFormat      string
}

// LoadDefaults populates Config with local, single-operator defaults.
func (c *Config) LoadDefaults() {
	c.Backend = "json"
	c.DataDir = "./data"
	c.Host = "127.0.0.1"
	c.Port = 8080
	c.AllowedOrigins = []string{"*"}
	c.JWTSecret = ""
	c.MasterPoll = 30 * time.Second
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// Addr is the listen address.
func (c *Config) Addr() string { return net.JoinHostPort(c.Host, strconv.Itoa(c.Port)) }

// Validate rejects settings the binary cannot start with.
func (c *Config) Validate() error {
	if !slices.Contains(store.Backends, c.Backend) {
		return fmt.Errorf("unknown store backend %q (supported: %v)", c.Backend, store.Backends)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.MasterPoll <= 0 {
		return fmt.Errorf("master poll interval must be positive, got %s", c.MasterPoll)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// Load builds a Config from defaults, then the YAML file at path (skipped
// when path is empty), then the process environment.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}
