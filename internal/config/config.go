package config

import (
	"fmt"
	"os"
)

// DatabaseConfig holds the target-store connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN builds the lib/pq connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig holds the run-lock store settings. An empty Addr disables
// the lock entirely.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// FTPConfig holds the DEMI extract source credentials.
type FTPConfig struct {
	Host     string
	User     string
	Password string
}

// Config is the full process configuration, passed explicitly into the
// engine constructor rather than read from ambient globals.
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	FTP      FTPConfig

	// GCS bucket holding the CSS extracts.
	Bucket string

	Log struct {
		Level  string
		Format string
	}
}

// Load reads the configuration from environment variables with
// development defaults.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "core")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 4)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 2)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.FTP.Host = getEnv("FTP_HOST", "")
	cfg.FTP.User = getEnv("FTP_USER", "")
	cfg.FTP.Password = getEnv("FTP_PASSWORD", "")

	cfg.Bucket = getEnv("GCLOUD_BUCKET", "")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var n int
		if _, err := fmt.Sscanf(value, "%d", &n); err == nil {
			return n
		}
	}
	return defaultValue
}
