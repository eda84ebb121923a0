// Package config loads service configuration from the environment.
// A .env file in the working directory is loaded first if present, so local
// development matches deployed behavior without exporting variables by hand.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the intake service needs to start.
type Config struct {
	// Port is the HTTP listen port for the intake API.
	Port string

	// DBPath is the sqlite database file path.
	DBPath string

	// SharedSecret authenticates server-to-server intake calls. It is
	// injected here and compared in constant time at the middleware layer;
	// rotation is a config change, never a code change.
	SharedSecret string

	// RefreshWorkers is the number of concurrent rollup refresh workers.
	RefreshWorkers int

	// RefreshQueueSize is the refresh queue buffer size.
	RefreshQueueSize int

	// IntakeTimeout bounds a single intake call end to end.
	IntakeTimeout time.Duration
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	// Missing .env is fine: deployed environments set real env vars.
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		DBPath:           getEnv("DB_PATH", "clearscrub.db"),
		SharedSecret:     os.Getenv("INTAKE_SHARED_SECRET"),
		RefreshWorkers:   4,
		RefreshQueueSize: 100,
		IntakeTimeout:    10 * time.Second,
	}

	if cfg.SharedSecret == "" {
		return nil, fmt.Errorf("config: INTAKE_SHARED_SECRET is required")
	}

	if v := os.Getenv("REFRESH_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("config: invalid REFRESH_WORKERS %q", v)
		}
		cfg.RefreshWorkers = n
	}

	if v := os.Getenv("REFRESH_QUEUE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("config: invalid REFRESH_QUEUE_SIZE %q", v)
		}
		cfg.RefreshQueueSize = n
	}

	if v := os.Getenv("INTAKE_TIMEOUT_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("config: invalid INTAKE_TIMEOUT_SECONDS %q", v)
		}
		cfg.IntakeTimeout = time.Duration(n) * time.Second
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
