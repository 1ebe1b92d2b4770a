package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Environment variables read by ApplyEnv.
const (
	EnvHost           = "HOST"
	EnvPort           = "PORT"
	EnvDataDir        = "DATA_DIR"
	EnvBackend        = "STORE_BACKEND"
	EnvAllowedOrigins = "ALLOWED_ORIGINS"
	EnvJWTSecret      = "BIZSTORE_JWT_SECRET"
	EnvLogLevel       = "BIZSTORE_LOG_LEVEL"
	EnvLogFormat      = "BIZSTORE_LOG_FORMAT"
	EnvMasterPoll     = "BIZSTORE_MASTER_POLL"
)

// ApplyEnv overlays variables found by lookup. Empty values are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return "", false
		}
		return strings.TrimSpace(v), true
	}

	if v, ok := get(EnvHost); ok {
		c.Host = v
	}
	if v, ok := get(EnvPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		c.Port = port
	}
	if v, ok := get(EnvDataDir); ok {
		c.DataDir = v
	}
	if v, ok := get(EnvBackend); ok {
		c.Backend = v
	}
	if v, ok := get(EnvAllowedOrigins); ok {
		c.AllowedOrigins = SplitOrigins(v)
	}
	if v, ok := get(EnvJWTSecret); ok {
		c.JWTSecret = v
	}
	if v, ok := get(EnvLogLevel); ok {
		c.LogLevel = v
	}
	if v, ok := get(EnvLogFormat); ok {
		c.LogFormat = v
	}
	if v, ok := get(EnvMasterPoll); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMasterPoll, err)
		}
		c.MasterPoll = d
	}
	return nil
}

// SplitOrigins parses a comma separated origin list.
func SplitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
