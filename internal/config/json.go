package config

import (
	"encoding/json"
	"os"

	"github.com/dkravets/keychat/internal/flagx"
	"github.com/dkravets/keychat/internal/timex"
)

// JsonConfig is the intermediate DTO for reading JSON configuration files.
// Interval fields use timex.Duration so both "24h" strings and integer
// nanoseconds parse. After unmarshalling, its fields are copied into the
// runtime Config struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddr       string         `json:"endpoint_addr"`
	DatabaseDSN        string         `json:"database_dsn"`
	EncryptKey         string         `json:"encrypt_key"`
	WeComCorpID        string         `json:"wecom_corp_id"`
	WeComAgentID       int64          `json:"wecom_agent_id"`
	WeComCorpSecret    string         `json:"wecom_corp_secret"`
	WeComToken         string         `json:"wecom_token"`
	WeComAESKey        string         `json:"wecom_aes_key"`
	AdminUser          string         `json:"admin_user"`
	AdminPasswordHash  string         `json:"admin_password_hash"`
	AdminJWTSecret     string         `json:"admin_jwt_secret"`
	AdminTokenValidity timex.Duration `json:"admin_token_validity"`
	ReminderUser       string         `json:"reminder_user"`
	ReminderInterval   timex.Duration `json:"reminder_interval"`
	S3Bucket           string         `json:"s3_bucket"`
	S3Region           string         `json:"s3_region"`
	S3BaseEndpoint     string         `json:"s3_base_endpoint"`
	S3AccessKey        string         `json:"s3_access_key"`
	S3SecretKey        string         `json:"s3_secret_key"`
	BackupInterval     timex.Duration `json:"backup_interval"`
}

// parseJson loads configuration values from the JSON file named by the -c
// or -config flags. Unset flags mean no file is loaded; an unreadable or
// invalid file panics, since running with half a config is worse than not
// starting.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.EndpointAddr = c.EndpointAddr
	config.DatabaseDSN = c.DatabaseDSN
	config.EncryptKey = c.EncryptKey
	config.WeComCorpID = c.WeComCorpID
	config.WeComAgentID = c.WeComAgentID
	config.WeComCorpSecret = c.WeComCorpSecret
	config.WeComToken = c.WeComToken
	config.WeComAESKey = c.WeComAESKey
	config.AdminUser = c.AdminUser
	config.AdminPasswordHash = c.AdminPasswordHash
	config.AdminJWTSecret = c.AdminJWTSecret
	config.AdminTokenValidity = c.AdminTokenValidity.Duration
	config.ReminderUser = c.ReminderUser
	config.ReminderInterval = c.ReminderInterval.Duration
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.S3AccessKey = c.S3AccessKey
	config.S3SecretKey = c.S3SecretKey
	config.BackupInterval = c.BackupInterval.Duration
}
