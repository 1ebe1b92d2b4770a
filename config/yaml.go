package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the YAML config file. Pointer fields
// distinguish "absent" from zero so a file only overrides what it names.
type FileConfig struct {
	Backend        *string  `yaml:"backend"`
	DataDir        *string  `yaml:"data_dir"`
	Host           *string  `yaml:"host"`
	Port           *int     `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	JWTSecret      *string  `yaml:"jwt_secret"`
	MasterPoll     *string  `yaml:"master_poll"`
	Log            struct {
		Level  *string `yaml:"level"`
		Format *string `yaml:"format"`
	} `yaml:"log"`
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var f FileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return c.applyFileConfig(&f)
}

func (c *Config) applyFileConfig(f *FileConfig) error {
	set(&c.Backend, f.Backend)
	set(&c.DataDir, f.DataDir)
	set(&c.Host, f.Host)
	set(&c.Port, f.Port)
	set(&c.JWTSecret, f.JWTSecret)
	set(&c.LogLevel, f.Log.Level)
	set(&c.LogFormat, f.Log.Format)
	if f.AllowedOrigins != nil {
		c.AllowedOrigins = f.AllowedOrigins
	}
	if f.MasterPoll != nil {
		d, err := time.ParseDuration(*f.MasterPoll)
		if err != nil {
			return fmt.Errorf("master_poll: %w", err)
		}
		c.MasterPoll = d
	}
	return nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
