// Package config handles configuration for the bot server, including
// defaults, JSON overlay, command-line flags, and environment variables.
package config

import (
	"errors"
	"time"
)

// Config holds runtime settings for the keychat server.
//
// Fields:
//   - EndpointAddr: bind address for the HTTP endpoint.
//   - DatabaseDSN: SQLite path or postgres:// DSN.
//   - EncryptKey: passphrase deriving the content encryption key.
//   - WeComCorpID / WeComAgentID / WeComCorpSecret: enterprise app identity.
//   - WeComToken / WeComAESKey: callback verification token and the 43-char
//     EncodingAESKey of the callback channel.
//   - AdminUser / AdminPasswordHash: credentials for the management API;
//     leaving the hash empty disables the API.
//   - AdminJWTSecret: HMAC secret for signing admin JWTs (HS256).
//   - AdminTokenValidity: admin JWT lifetime.
//   - ReminderUser: chat user receiving the expiry digest; empty disables it.
//   - ReminderInterval: how often the digest job runs.
//   - S3Bucket / S3Region / S3BaseEndpoint / S3AccessKey / S3SecretKey:
//     object storage for encrypted backups.
//   - BackupInterval: how often a backup is uploaded; zero disables it.
type Config struct {
	EndpointAddr       string
	DatabaseDSN        string
	EncryptKey         string
	WeComCorpID        string
	WeComAgentID       int64
	WeComCorpSecret    string
	WeComToken         string
	WeComAESKey        string
	AdminUser          string
	AdminPasswordHash  string
	AdminJWTSecret     string
	AdminTokenValidity time.Duration
	ReminderUser       string
	ReminderInterval   time.Duration
	S3Bucket           string
	S3Region           string
	S3BaseEndpoint     string
	S3AccessKey        string
	S3SecretKey        string
	BackupInterval     time.Duration
}

// LoadDefaults populates Config with sensible development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.EndpointAddr = ":3000"
	c.DatabaseDSN = "keychat.db"
	c.AdminUser = "admin"
	c.AdminTokenValidity = 24 * time.Hour
	c.ReminderInterval = 24 * time.Hour
	c.S3Region = "us-east-1"
	c.BackupInterval = 0
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, command-line flags, and finally environment
// variables.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	parseEnv(cfg)
	return cfg
}

// Validate reports the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.EncryptKey == "" {
		return errors.New("encrypt key is required")
	}
	if c.WeComToken == "" {
		return errors.New("callback token is required")
	}
	if c.WeComAESKey == "" {
		return errors.New("callback aes key is required")
	}
	if c.WeComCorpID == "" {
		return errors.New("corp id is required")
	}
	return nil
}

// AdminEnabled reports whether the management API should be mounted.
func (c *Config) AdminEnabled() bool {
	return c.AdminPasswordHash != "" && c.AdminJWTSecret != ""
}
