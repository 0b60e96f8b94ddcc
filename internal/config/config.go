// Package config loads and exposes application configuration (TOML).
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath       = "config.toml"
	DefaultHTTPAddr         = ":8080"
	DefaultJWTExpiresIn     = "24h"
	DefaultPGHost           = "127.0.0.1"
	DefaultPGPort           = 5432
	DefaultPGUser           = "postgres"
	DefaultPGDatabase       = "deskbridge"
	DefaultPGSSLMode        = "disable"
	DefaultOpenAIBaseURL    = "https://api.openai.com/v1"
	DefaultFallbackModel    = "gpt-4o-mini"
	DefaultPollInterval     = 1
	DefaultRunTimeout       = 30
	DefaultGraphBaseURL     = "https://graph.facebook.com/v19.0"
	DefaultThrottleSeconds  = 10
	DefaultRecencySeconds   = 5
	DefaultProcessedCap     = 100
	DefaultProcessedKeep    = 50
	DefaultThreadTTLDays    = 30
	DefaultSweepSchedule    = "0 3 * * *"
	DefaultForwarderTimeout = 10
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log       LogConfig       `toml:"log"`
	Server    ServerConfig    `toml:"server"`
	Auth      AuthConfig      `toml:"auth"`
	Postgres  PostgresConfig  `toml:"postgres"`
	OpenAI    OpenAIConfig    `toml:"openai"`
	Jira      JiraConfig      `toml:"jira"`
	WhatsApp  WhatsAppConfig  `toml:"whatsapp"`
	Intake    IntakeConfig    `toml:"intake"`
	Retention RetentionConfig `toml:"retention"`
	Forwarder ForwarderConfig `toml:"forwarder"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the HTTP server listen address.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// AuthConfig holds JWT secret, token expiry (e.g. 24h), and the operator
// login credentials for the admin API.
type AuthConfig struct {
	JWTSecret     string `toml:"jwt_secret"`
	JWTExpiresIn  string `toml:"jwt_expires_in"`
	AdminUser     string `toml:"admin_user"`
	AdminPassword string `toml:"admin_password"`
}

// JWTExpiry parses the configured token expiry, falling back to the default.
func (c AuthConfig) JWTExpiry() time.Duration {
	d, err := time.ParseDuration(c.JWTExpiresIn)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultJWTExpiresIn)
	}
	return d
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// OpenAIConfig holds the Assistants API endpoint, key, and run polling bounds.
type OpenAIConfig struct {
	BaseURL             string `toml:"base_url"`
	APIKey              string `toml:"api_key"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	RunTimeoutSeconds   int    `toml:"run_timeout_seconds"`
	FallbackModel       string `toml:"fallback_model"`
}

// PollInterval returns the run-status poll interval as a duration.
func (c OpenAIConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// RunTimeout returns the run wall-clock timeout as a duration.
func (c OpenAIConfig) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutSeconds) * time.Second
}

// JiraConfig holds tracker credentials and the known bot account ids
// consulted by the comment classifier.
type JiraConfig struct {
	BaseURL        string   `toml:"base_url"`
	Email          string   `toml:"email"`
	APIToken       string   `toml:"api_token"`
	BotAccountIDs  []string `toml:"bot_account_ids"`
	DefaultProject string   `toml:"default_project"`
}

// WhatsAppConfig holds Cloud API webhook verification and send credentials.
type WhatsAppConfig struct {
	VerifyToken      string `toml:"verify_token"`
	AccessToken      string `toml:"access_token"`
	PhoneNumberID    string `toml:"phone_number_id"`
	GraphBaseURL     string `toml:"graph_base_url"`
	DefaultServiceID string `toml:"default_service_id"`
}

// IntakeConfig bounds the Jira comment dedup set and response throttle.
type IntakeConfig struct {
	ThrottleSeconds      int `toml:"throttle_seconds"`
	RecentWarningSeconds int `toml:"recent_warning_seconds"`
	ProcessedCap         int `toml:"processed_cap"`
	ProcessedKeep        int `toml:"processed_keep"`
}

// Throttle returns the per-issue response throttle window as a duration.
func (c IntakeConfig) Throttle() time.Duration {
	return time.Duration(c.ThrottleSeconds) * time.Second
}

// RecencyWarning returns the loop-risk recency threshold as a duration.
func (c IntakeConfig) RecencyWarning() time.Duration {
	return time.Duration(c.RecentWarningSeconds) * time.Second
}

// RetentionConfig controls the inactive-thread sweep.
type RetentionConfig struct {
	ThreadTTLDays int    `toml:"thread_ttl_days"`
	SweepSchedule string `toml:"sweep_schedule"`
}

// ForwarderConfig bounds outbound webhook deliveries.
type ForwarderConfig struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Timeout returns the forwarder request timeout as a duration.
func (c ForwarderConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Load reads and parses the TOML config file at path, applies default values
// for missing fields, and overlays secret env vars (OPENAI_API_KEY,
// JIRA_API_TOKEN, WHATSAPP_ACCESS_TOKEN, JWT_SECRET).
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		OpenAI: OpenAIConfig{
			BaseURL:             DefaultOpenAIBaseURL,
			PollIntervalSeconds: DefaultPollInterval,
			RunTimeoutSeconds:   DefaultRunTimeout,
			FallbackModel:       DefaultFallbackModel,
		},
		WhatsApp: WhatsAppConfig{
			GraphBaseURL: DefaultGraphBaseURL,
		},
		Intake: IntakeConfig{
			ThrottleSeconds:      DefaultThrottleSeconds,
			RecentWarningSeconds: DefaultRecencySeconds,
			ProcessedCap:         DefaultProcessedCap,
			ProcessedKeep:        DefaultProcessedKeep,
		},
		Retention: RetentionConfig{
			ThreadTTLDays: DefaultThreadTTLDays,
			SweepSchedule: DefaultSweepSchedule,
		},
		Forwarder: ForwarderConfig{
			TimeoutSeconds: DefaultForwarderTimeout,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			applyEnv(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("JIRA_API_TOKEN"); v != "" {
		cfg.Jira.APIToken = v
	}
	if v := os.Getenv("WHATSAPP_ACCESS_TOKEN"); v != "" {
		cfg.WhatsApp.AccessToken = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("ADMIN_PASSWORD"); v != "" {
		cfg.Auth.AdminPassword = v
	}
}
