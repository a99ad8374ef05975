package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	QueueModeRedis  = "redis"
	QueueModeInProc = "inproc"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Mail      MailConfig
	Queue     QueueConfig
	Sweep     SweepConfig
	Scheduler SchedulerConfig
}

type ServerConfig struct {
	Address string
}

type DatabaseConfig struct {
	PostgresURL string
}

type RedisConfig struct {
	Enabled    bool
	Address    string
	Password   string
	DB         int
	ReceiptTTL time.Duration
}

type MailConfig struct {
	ProviderURL string
	FromAddress string
}

type QueueConfig struct {
	// Mode selects the queue backend once at startup: "redis" or "inproc".
	Mode         string
	Key          string
	PollInterval time.Duration
	BatchSize    int
	Concurrency  int
}

type SweepConfig struct {
	RetryWindow time.Duration
	CleanupAge  time.Duration
}

type SchedulerConfig struct {
	SweepInterval time.Duration
}

func LoadAll() (*Config, error) {
	postgresURL, err := mustEnv("POSTGRES_URL")
	if err != nil {
		return nil, err
	}
	providerURL, err := mustEnv("MAIL_PROVIDER_URL")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Database: DatabaseConfig{
			PostgresURL: postgresURL,
		},
		Mail: MailConfig{
			ProviderURL: providerURL,
			FromAddress: getEnv("MAIL_FROM", "no-reply@afteryou.io"),
		},
		Queue: QueueConfig{
			Mode:         getEnv("QUEUE_MODE", QueueModeInProc),
			Key:          getEnv("QUEUE_KEY", "delivery:jobs"),
			PollInterval: time.Duration(getEnvInt("QUEUE_POLL_SECONDS", 5)) * time.Second,
			BatchSize:    getEnvInt("QUEUE_BATCH_SIZE", 50),
			Concurrency:  getEnvInt("QUEUE_CONCURRENCY", 4),
		},
		Sweep: SweepConfig{
			RetryWindow: time.Duration(getEnvInt("RETRY_WINDOW_HOURS", 24)) * time.Hour,
			CleanupAge:  time.Duration(getEnvInt("CLEANUP_AGE_DAYS", 365)) * 24 * time.Hour,
		},
		Scheduler: SchedulerConfig{
			SweepInterval: time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", 300)) * time.Second,
		},
		Redis: loadRedisConfig(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadRedisConfig() RedisConfig {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}
	}

	return RedisConfig{
		Enabled:    true,
		Address:    addr,
		Password:   os.Getenv("REDIS_PASSWORD"),
		DB:         getEnvInt("REDIS_DB", 0),
		ReceiptTTL: time.Duration(getEnvInt("RECEIPT_TTL_SECONDS", 86400)) * time.Second,
	}
}

func validate(cfg *Config) error {
	switch cfg.Queue.Mode {
	case QueueModeRedis:
		if !cfg.Redis.Enabled {
			return fmt.Errorf("QUEUE_MODE=redis requires REDIS_ADDR")
		}
	case QueueModeInProc:
	default:
		return fmt.Errorf("invalid QUEUE_MODE: %q", cfg.Queue.Mode)
	}

	if cfg.Queue.BatchSize <= 0 {
		return fmt.Errorf("QUEUE_BATCH_SIZE must be > 0")
	}
	if cfg.Queue.Concurrency <= 0 {
		return fmt.Errorf("QUEUE_CONCURRENCY must be > 0")
	}
	if cfg.Queue.PollInterval <= 0 {
		return fmt.Errorf("QUEUE_POLL_SECONDS must be > 0")
	}
	if cfg.Scheduler.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL_SECONDS must be > 0")
	}
	if cfg.Sweep.RetryWindow <= 0 {
		return fmt.Errorf("RETRY_WINDOW_HOURS must be > 0")
	}
	return nil
}

func mustEnv(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("missing required env var: %s", key)
	}
	return val, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
