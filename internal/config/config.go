// SPDX-License-Identifier: Apache-2.0
// Package config loads instance configuration via viper, mirroring the
// teacher's pkg/config/config.go: a single struct with mapstructure/json
// tags, environment-profile selection, and AutomaticEnv overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"onestore/pkg/utils"
)

func SetConfigLogger(l *log.Logger) { configLog = l }

var configLog = log.New()

// EnvVar selects which config profile LoadFromEnv reads, mirroring the
// teacher's SYNN_ENV variable.
const EnvVar = "ONE_ENV"

// Config is the instance-wide configuration (§A.3).
type Config struct {
	BaseDir            string        `mapstructure:"base_dir" json:"base_dir"`
	ListenAddr         string        `mapstructure:"listen_addr" json:"listen_addr"`
	CommServerURL      string        `mapstructure:"comm_server_url" json:"comm_server_url"`
	DefaultGroupNames  []string      `mapstructure:"default_group_names" json:"default_group_names"`
	LogLevel           string        `mapstructure:"log_level" json:"log_level"`
	ScryptCostOverride int           `mapstructure:"scrypt_cost_override" json:"scrypt_cost_override"`
	HandshakeTimeout   time.Duration `mapstructure:"handshake_timeout" json:"handshake_timeout"`
	PingInterval       time.Duration `mapstructure:"ping_interval" json:"ping_interval"`
	PingTimeout        time.Duration `mapstructure:"ping_timeout" json:"ping_timeout"`
}

func defaults() Config {
	return Config{
		BaseDir:           filepath.Join(os.Getenv("HOME"), ".onestore"),
		ListenAddr:        ":8765",
		DefaultGroupNames: []string{"chum"},
		LogLevel:          "info",
		HandshakeTimeout:  30 * time.Second,
		PingInterval:      20 * time.Second,
		PingTimeout:       60 * time.Second,
	}
}

func newViper(profile string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	if profile != "" {
		v.SetConfigName("config." + profile)
	}
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvPrefix("ONESTORE")
	return v
}

// Load reads <baseDir>/config.yaml (or config.<profile>.yaml) if present,
// falling back to defaults for anything unset, with environment variables
// prefixed ONESTORE_ taking precedence via AutomaticEnv.
func Load(baseDir, profile string) (*Config, error) {
	cfg := defaults()
	if baseDir != "" {
		cfg.BaseDir = baseDir
	}

	v := newViper(profile)
	v.AddConfigPath(baseDir)
	v.SetDefault("base_dir", cfg.BaseDir)
	v.SetDefault("listen_addr", cfg.ListenAddr)
	v.SetDefault("default_group_names", cfg.DefaultGroupNames)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("handshake_timeout", cfg.HandshakeTimeout)
	v.SetDefault("ping_interval", cfg.PingInterval)
	v.SetDefault("ping_timeout", cfg.PingTimeout)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, utils.Wrap(err, "config: read config.yaml")
		}
		configLog.WithField("base_dir", baseDir).Debug("config: no config.yaml found, using defaults and env")
	}

	var out Config
	if err := v.Unmarshal(&out); err != nil {
		return nil, utils.Wrap(err, "config: unmarshal")
	}
	return &out, nil
}

// LoadFromEnv reads the ONE_ENV variable to select a config profile (e.g.
// ONE_ENV=staging loads config.staging.yaml) and, if a .env file exists in
// baseDir, loads it first via godotenv before binding viper's environment
// overrides — mirroring the teacher's walletserver/config profile
// selection.
func LoadFromEnv(baseDir string) (*Config, error) {
	dotenv := filepath.Join(baseDir, ".env")
	if _, err := os.Stat(dotenv); err == nil {
		if err := godotenv.Load(dotenv); err != nil {
			configLog.WithError(err).Warn("config: failed to load .env")
		}
	}
	profile := os.Getenv(EnvVar)
	return Load(baseDir, profile)
}

// Validate checks required fields are non-empty once a Config is meant to
// back a running instance.
func (c *Config) Validate() error {
	if c.BaseDir == "" {
		return fmt.Errorf("config: base_dir must not be empty")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen_addr must not be empty")
	}
	return nil
}
