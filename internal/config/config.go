// Package config loads application configuration from file and environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"backoffice/internal/domain/alerts"
	"backoffice/internal/domain/auth"
)

// Config holds all application configuration.
type Config struct {
	App      AppConfig
	HTTP     HTTPConfig
	Database DatabaseConfig
	Log      LogConfig
	Auth     AuthConfig
	Alerts   AlertsConfig
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name string
	Env  string // dev, staging, prod
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	DSN      string
	MaxConns int32
	MinConns int32
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	JWTSecret      string
	AccessTokenTTL time.Duration
	Accounts       []auth.Account
}

// AlertsConfig holds balance alert rules. When Rules is empty the built-in
// defaults apply.
type AlertsConfig struct {
	Rules []alerts.Rule
}

// Load reads configuration from config.yaml and BACKOFFICE_* environment
// variables. Environment wins over file; file wins over defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/backoffice")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("BACKOFFICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		HTTP: HTTPConfig{
			Port:            v.GetString("http.port"),
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
		},
		Database: DatabaseConfig{
			DSN:      v.GetString("database.dsn"),
			MaxConns: v.GetInt32("database.max_conns"),
			MinConns: v.GetInt32("database.min_conns"),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
		},
		Auth: AuthConfig{
			JWTSecret:      v.GetString("auth.jwt_secret"),
			AccessTokenTTL: v.GetDuration("auth.access_token_ttl"),
		},
	}

	if err := v.UnmarshalKey("auth.accounts", &cfg.Auth.Accounts); err != nil {
		return nil, fmt.Errorf("parse auth accounts: %w", err)
	}
	if err := v.UnmarshalKey("alerts.rules", &cfg.Alerts.Rules); err != nil {
		return nil, fmt.Errorf("parse alert rules: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "backoffice")
	v.SetDefault("app.env", "dev")
	v.SetDefault("http.port", "8080")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 4)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("auth.access_token_ttl", 8*time.Hour)
}

func (c *Config) validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	return nil
}

// AlertRules returns the configured rules, falling back to defaults.
func (c *Config) AlertRules() []alerts.Rule {
	if len(c.Alerts.Rules) > 0 {
		return c.Alerts.Rules
	}
	return alerts.DefaultRules()
}
