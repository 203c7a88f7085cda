package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config with MATHNOTES_* environment variables. A .env
// file in the working directory is loaded first when present; real
// environment variables win over .env entries (godotenv never overrides).
func parseEnv(cfg *Config) {
	_ = godotenv.Load()

	if v, ok := os.LookupEnv("MATHNOTES_DATA_DIR"); ok && v != "" {
		cfg.DataDir = v
	}
	if v, ok := os.LookupEnv("MATHNOTES_AUTOSAVE_DEBOUNCE"); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.AutosaveDebounce = d
		}
	}
	if v, ok := os.LookupEnv("MATHNOTES_SYNC_INTERVAL"); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SyncInterval = d
		}
	}
	if v, ok := os.LookupEnv("MATHNOTES_USE_KEYRING"); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.UseKeyring = b
		}
	}
	if v, ok := os.LookupEnv("MATHNOTES_LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = v
	}
}
