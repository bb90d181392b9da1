package configs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	AppEnv               string        `mapstructure:"APP_ENV"`
	LogLevel             string        `mapstructure:"LOG_LEVEL"`
	DataDir              string        `mapstructure:"DATA_DIR"`
	ClassroomFile        string        `mapstructure:"CLASSROOM_FILE"`
	OfflineStoreDriver   string        `mapstructure:"OFFLINE_STORE_DRIVER"`
	RedisAddr            string        `mapstructure:"REDIS_ADDR"`
	RedisPassword        string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB              int           `mapstructure:"REDIS_DB"`
	RetentionHorizon     time.Duration `mapstructure:"RETENTION_HORIZON"`
	SweepInterval        time.Duration `mapstructure:"SWEEP_INTERVAL"`
	SessionListenAddress string        `mapstructure:"SESSION_LISTEN_ADDRESS"`
	SessionWriteTimeout  time.Duration `mapstructure:"SESSION_WRITE_TIMEOUT"`
	HTTPListenAddress    string        `mapstructure:"HTTP_LISTEN_ADDRESS"`
	MaxRetries           int           `mapstructure:"MAX_RETRIES"`
	WorkerPoolSize       int           `mapstructure:"WORKER_POOL_SIZE"`
	BackoffBaseDelay     int           `mapstructure:"BACKOFF_BASE_DELAY_MS"`
	BackoffMaxDelay      int           `mapstructure:"BACKOFF_MAX_DELAY_MS"`
	KafkaBrokers         []string      `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic           string        `mapstructure:"KAFKA_TOPIC"`
	KafkaGroupID         string        `mapstructure:"KAFKA_GROUP_ID"`
	KafkaDLQTopic        string        `mapstructure:"KAFKA_DLQ_TOPIC"`
	OtelEndpoint         string        `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelInsecure         bool          `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	OtelServiceName      string        `mapstructure:"OTEL_SERVICE_NAME"`
}

type QueueConsumerConfig struct {
	MaxRetries       int
	WorkerPoolSize   int
	BackoffBaseDelay time.Duration
	BackoffMaxDelay  time.Duration
}

var defaults = map[string]any{
	"APP_ENV":                     "production",
	"LOG_LEVEL":                   "",
	"DATA_DIR":                    "data",
	"CLASSROOM_FILE":              "",
	"OFFLINE_STORE_DRIVER":        "file",
	"REDIS_ADDR":                  "localhost:6379",
	"REDIS_PASSWORD":              "",
	"REDIS_DB":                    0,
	"RETENTION_HORIZON":           7 * 24 * time.Hour,
	"SWEEP_INTERVAL":              time.Hour,
	"SESSION_LISTEN_ADDRESS":      ":5000",
	"SESSION_WRITE_TIMEOUT":       5 * time.Second,
	"HTTP_LISTEN_ADDRESS":         ":8080",
	"MAX_RETRIES":                 3,
	"WORKER_POOL_SIZE":            10,
	"BACKOFF_BASE_DELAY_MS":       200,
	"BACKOFF_MAX_DELAY_MS":        10000,
	"KAFKA_BROKERS":               []string{},
	"KAFKA_TOPIC":                 "reservation-decisions",
	"KAFKA_GROUP_ID":              "reservation-notifier",
	"KAFKA_DLQ_TOPIC":             "reservation-decisions-dlq",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "",
	"OTEL_EXPORTER_OTLP_INSECURE": false,
	"OTEL_SERVICE_NAME":           "reservation-notifier",
}

// NewConfig loads .env from path (relative to the module root) and overlays
// the process environment on top of it.
func NewConfig(path string) (*Config, error) {
	relativeUrl, err := GetBasePath(path)
	if err != nil {
		return nil, fmt.Errorf("error getting base path: %v", err)
	}

	vip := viper.New()
	vip.SetConfigType("env")
	vip.SetConfigName(".env")
	vip.AddConfigPath(relativeUrl)
	vip.AutomaticEnv()

	for key, value := range defaults {
		vip.SetDefault(key, value)
		vip.BindEnv(key)
	}

	if err := vip.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %v", err)
	}

	cfg.KafkaBrokers = compact(cfg.KafkaBrokers)
	if cfg.ClassroomFile == "" {
		cfg.ClassroomFile = filepath.Join(cfg.DataDir, "Classrooms.txt")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch {
	case c.DataDir == "":
		return errors.New("DATA_DIR must be set")
	case c.RetentionHorizon <= 0:
		return errors.New("RETENTION_HORIZON must be positive")
	case c.SweepInterval <= 0:
		return errors.New("SWEEP_INTERVAL must be positive")
	case c.SessionWriteTimeout <= 0:
		return errors.New("SESSION_WRITE_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

// KafkaEnabled reports whether the reservation decision intake should run.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func (c *Config) QueueConsumer() *QueueConsumerConfig {
	return &QueueConsumerConfig{
		MaxRetries:       c.MaxRetries,
		WorkerPoolSize:   c.WorkerPoolSize,
		BackoffBaseDelay: time.Duration(c.BackoffBaseDelay) * time.Millisecond,
		BackoffMaxDelay:  time.Duration(c.BackoffMaxDelay) * time.Millisecond,
	}
}

func GetBasePath(path string) (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(cwd, "go.mod")); err == nil {
			return filepath.Join(cwd, path), nil
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			return "", errors.New("go.mod not found")
		}
		cwd = parent
	}
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
