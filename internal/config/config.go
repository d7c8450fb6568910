package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string `env:"DB_HOST"`
	Port               string `env:"DB_PORT" envDefault:"5432"`
	User               string `env:"DB_USER"`
	Password           string `env:"DB_PASSWORD"`
	Name               string `env:"DB_NAME"`
	SSLMode            string `env:"DB_SSLMODE" envDefault:"disable"`
	MaxOpenConns       int    `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns       int    `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetimeSec int    `env:"DB_CONN_MAX_LIFETIME_SEC" envDefault:"300"`
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string `env:"MINIO_ENDPOINT"`
	AccessKey string `env:"MINIO_ACCESS_KEY"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	Bucket    string `env:"MINIO_BUCKET"`
	UseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
}

// RedisConfig holds connection settings for the delivery job stream.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// DispatchConfig holds settings for the outbound document sender.
// APIKey is fixed for the lifetime of the process; per-delivery values
// (customer, document) are never configured here.
type DispatchConfig struct {
	APIKey         string        `env:"DISPATCH_API_KEY,required"`
	UserAgent      string        `env:"DISPATCH_USER_AGENT" envDefault:"Docsend/1.0"`
	RequestTimeout time.Duration `env:"DISPATCH_REQUEST_TIMEOUT" envDefault:"30s"`
	MaxAttempts    int           `env:"DISPATCH_MAX_ATTEMPTS" envDefault:"3"`
}

// WorkerConfig holds settings for the delivery worker pool.
type WorkerConfig struct {
	Consumers    int           `env:"WORKER_CONSUMERS" envDefault:"4"`
	BlockTimeout time.Duration `env:"WORKER_BLOCK_TIMEOUT" envDefault:"5s"`
	ClaimIdle    time.Duration `env:"WORKER_CLAIM_IDLE" envDefault:"30s"`
	MaxReceives  int64         `env:"WORKER_MAX_RECEIVES" envDefault:"5"`
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost   string `env:"APP_HOST" envDefault:"localhost:8080"`
	Port      string `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	Database DatabaseConfig
	MinIO    MinIOConfig
	Redis    RedisConfig
	Dispatch DispatchConfig
	Worker   WorkerConfig
}

// Load parses environment variables into an AppConfig.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
