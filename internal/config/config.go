// Package config holds the service's settings: the handful of values that
// legitimately vary by environment (secrets, data directory, listen address)
// plus the compiled-in domain constants spec.md §6 says never need a
// runtime config-file reader.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds environment-derived settings.
type Config struct {
	Addr            string
	DataDir         string
	DBPath          string
	KeyCRMAPIKey    string
	KeyCRMBaseURL   string
	DashboardSecret string
	LogLevel        string
	GracefulTimeout time.Duration
}

// Default returns settings appropriate for local development; Load()
// overrides fields present in the environment.
func Default() *Config {
	wd, _ := os.Getwd()
	dataDir := filepath.Join(wd, "data")
	return &Config{
		Addr:            ":8080",
		DataDir:         dataDir,
		DBPath:          filepath.Join(dataDir, "analytics.duckdb"),
		KeyCRMBaseURL:   "https://openapi.keycrm.app/v1",
		LogLevel:        "info",
		GracefulTimeout: 15 * time.Second,
	}
}

// loadDotEnv loads KEY=VALUE pairs from a local .env file, same lookup
// order as the teacher's main.go: cwd first, then the executable's
// directory. Existing OS env vars are never overridden.
func loadDotEnv() {
	paths := []string{".env"}
	if exePath, err := os.Executable(); err == nil {
		if dir := filepath.Dir(exePath); dir != "" {
			paths = append(paths, filepath.Join(dir, ".env"))
		}
	}
	seen := make(map[string]bool)
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		for _, l := range strings.Split(string(data), "\n") {
			l = strings.TrimSpace(l)
			if l == "" || strings.HasPrefix(l, "#") {
				continue
			}
			parts := strings.SplitN(l, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			val := strings.TrimSpace(parts[1])
			if key != "" && os.Getenv(key) == "" {
				os.Setenv(key, val)
			}
		}
	}
}

// Load builds a Config from environment variables (loading a local .env
// first), falling back to Default()'s values.
func Load() *Config {
	loadDotEnv()
	cfg := Default()

	cfg.Addr = envOrDefault("GATEWAY_ADDR", cfg.Addr)
	if dir := os.Getenv("DATA_DIR"); dir != "" {
		cfg.DataDir = dir
		cfg.DBPath = filepath.Join(dir, "analytics.duckdb")
	}
	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	cfg.KeyCRMAPIKey = os.Getenv("KEYCRM_API_KEY")
	cfg.KeyCRMBaseURL = envOrDefault("KEYCRM_BASE_URL", cfg.KeyCRMBaseURL)
	cfg.DashboardSecret = os.Getenv("DASHBOARD_SECRET_KEY")
	cfg.LogLevel = envOrDefault("LOG_LEVEL", cfg.LogLevel)
	if sec := os.Getenv("GRACEFUL_TIMEOUT_SEC"); sec != "" {
		if n, err := strconv.Atoi(sec); err == nil {
			cfg.GracefulTimeout = time.Duration(n) * time.Second
		}
	}
	return cfg
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
