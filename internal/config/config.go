package config

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// DefaultMaxUploadBytes is the largest accepted upload payload (16 MiB).
const DefaultMaxUploadBytes int64 = 16 << 20

// Config holds application level configuration loaded from environment variables
// and an optional config.yaml.
type Config struct {
	ServerPort string

	DBDriver    string
	DatabaseDSN string
	ResetDB     bool

	RedisAddr string
	RedisDB   int
	RedisPass string

	SessionSecret string
	SessionTTL    time.Duration
	CookieSecure  bool

	StorageProvider string
	UploadFolder    string
	MaxUploadBytes  int64
	S3Bucket        string
	S3Prefix        string
	S3Region        string
	S3Endpoint      string
	S3AccessKeyID   string
	S3SecretKey     string

	LogLevel    string
	LogFormat   string
	SwaggerHost string
}

// Load builds Config from environment with sensible defaults.
func Load() *Config {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn().Err(err).Msg("ignoring config.yaml")
		}
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server_port", "8080")
	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("database_dsn", "file_portal.db")
	v.SetDefault("reset_db", false)
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_password", "")
	v.SetDefault("session_secret", "dev-secret-key-change-in-production")
	v.SetDefault("session_ttl", "12h")
	v.SetDefault("cookie_secure", false)
	v.SetDefault("storage_provider", "local")
	v.SetDefault("upload_folder", "uploads")
	v.SetDefault("max_upload_bytes", DefaultMaxUploadBytes)
	v.SetDefault("s3_bucket", "")
	v.SetDefault("s3_prefix", "uploads")
	v.SetDefault("s3_region", "us-east-1")
	v.SetDefault("s3_endpoint", "")
	v.SetDefault("s3_access_key_id", "")
	v.SetDefault("s3_secret_access_key", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("swagger_host", "")
}

func fromViper(v *viper.Viper) *Config {
	ttl := v.GetDuration("session_ttl")
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	maxUpload := v.GetInt64("max_upload_bytes")
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}

	return &Config{
		ServerPort:      v.GetString("server_port"),
		DBDriver:        strings.ToLower(v.GetString("db_driver")),
		DatabaseDSN:     v.GetString("database_dsn"),
		ResetDB:         v.GetBool("reset_db"),
		RedisAddr:       v.GetString("redis_addr"),
		RedisDB:         v.GetInt("redis_db"),
		RedisPass:       v.GetString("redis_password"),
		SessionSecret:   v.GetString("session_secret"),
		SessionTTL:      ttl,
		CookieSecure:    v.GetBool("cookie_secure"),
		StorageProvider: strings.ToLower(v.GetString("storage_provider")),
		UploadFolder:    v.GetString("upload_folder"),
		MaxUploadBytes:  maxUpload,
		S3Bucket:        v.GetString("s3_bucket"),
		S3Prefix:        v.GetString("s3_prefix"),
		S3Region:        v.GetString("s3_region"),
		S3Endpoint:      v.GetString("s3_endpoint"),
		S3AccessKeyID:   v.GetString("s3_access_key_id"),
		S3SecretKey:     v.GetString("s3_secret_access_key"),
		LogLevel:        v.GetString("log_level"),
		LogFormat:       v.GetString("log_format"),
		SwaggerHost:     v.GetString("swagger_host"),
	}
}
