package config

import (
	"os"
	"strconv"
	"time"
)

// parseEnv overlays environment variables onto the Config. Variables win
// over flags so containerized deployments need no command line at all.
func parseEnv(config *Config) {
	setString := func(key string, target *string) {
		if v, ok := os.LookupEnv(key); ok {
			*target = v
		}
	}
	setInt64 := func(key string, target *int64) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				*target = n
			}
		}
	}
	setDuration := func(key string, target *time.Duration) {
		if v, ok := os.LookupEnv(key); ok {
			if d, err := time.ParseDuration(v); err == nil {
				*target = d
			}
		}
	}

	setString("ENDPOINT_ADDR", &config.EndpointAddr)
	setString("DATABASE_DSN", &config.DatabaseDSN)
	setString("ENCRYPT_KEY", &config.EncryptKey)
	setString("WECOM_CORP_ID", &config.WeComCorpID)
	setInt64("WECOM_AGENT_ID", &config.WeComAgentID)
	setString("WECOM_CORP_SECRET", &config.WeComCorpSecret)
	setString("WECOM_TOKEN", &config.WeComToken)
	setString("WECOM_AES_KEY", &config.WeComAESKey)
	setString("ADMIN_USER", &config.AdminUser)
	setString("ADMIN_PASSWORD_HASH", &config.AdminPasswordHash)
	setString("ADMIN_JWT_SECRET", &config.AdminJWTSecret)
	setDuration("ADMIN_TOKEN_VALIDITY", &config.AdminTokenValidity)
	setString("REMINDER_USER", &config.ReminderUser)
	setDuration("REMINDER_INTERVAL", &config.ReminderInterval)
	setString("S3_BUCKET", &config.S3Bucket)
	setString("S3_REGION", &config.S3Region)
	setString("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
	setString("S3_ACCESS_KEY", &config.S3AccessKey)
	setString("S3_SECRET_KEY", &config.S3SecretKey)
	setDuration("BACKUP_INTERVAL", &config.BackupInterval)
}
