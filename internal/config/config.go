package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"chore-tracker/internal/codec"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config keeps runtime settings for the chore tracker.
type Config struct {
	EncryptionKey          []byte
	DataFile               string
	StorageBackend         string
	DatabaseURL            string
	TelegramToken          string
	BackupDir              string
	BackupInterval         time.Duration
	DigestTime             string
	MetricsAddr            string
	LogLevel               slog.Level
	FreshStartOnCorruption bool
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	env := func(key string) string { return strings.TrimSpace(getenv(key)) }

	cfg := Config{
		DataFile:       env("DATA_FILE"),
		StorageBackend: strings.ToLower(env("STORAGE_BACKEND")),
		DatabaseURL:    env("DATABASE_URL"),
		TelegramToken:  env("TELEGRAM_TOKEN"),
		BackupDir:      env("BACKUP_DIR"),
		BackupInterval: parseHours(env("BACKUP_INTERVAL_HOURS")),
		DigestTime:     env("DIGEST_TIME"),
		MetricsAddr:    env("METRICS_ADDR"),
	}

	if cfg.DataFile == "" {
		cfg.DataFile = "data.enc"
	}
	if cfg.StorageBackend == "" {
		cfg.StorageBackend = BackendFile
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "chores.db"
	}
	if cfg.BackupInterval == 0 {
		cfg.BackupInterval = 24 * time.Hour
	}

	if cfg.StorageBackend != BackendFile && cfg.StorageBackend != BackendSQLite {
		return cfg, fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", BackendFile, BackendSQLite, cfg.StorageBackend)
	}

	level := env("LOG_LEVEL")
	if level != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
			return cfg, fmt.Errorf("LOG_LEVEL: %w", err)
		}
	}

	if raw := env("FRESH_START_ON_CORRUPTION"); raw != "" {
		fresh, err := strconv.ParseBool(raw)
		if err != nil {
			return cfg, fmt.Errorf("FRESH_START_ON_CORRUPTION: %w", err)
		}
		cfg.FreshStartOnCorruption = fresh
	}

	rawKey := env("ENCRYPTION_KEY")
	if rawKey == "" {
		return cfg, fmt.Errorf("ENCRYPTION_KEY is required")
	}
	key, err := codec.ParseKey(rawKey)
	if err != nil {
		return cfg, fmt.Errorf("ENCRYPTION_KEY: %w", err)
	}
	cfg.EncryptionKey = key

	return cfg, nil
}

func parseHours(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}
