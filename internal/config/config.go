// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	DataDir      string // Base directory for the runs database (always absolute)
	LogLevel     string
	Port         int
	DevMode      bool
	Engine       EngineConfig
	RunRetention time.Duration // How long stored runs are kept
}

// EngineConfig holds the defaults applied to factorization requests that do
// not pin their own values.
type EngineConfig struct {
	Shots       int    // Shots per sampler invocation
	MaxAttempts int    // Attempt budget per run
	MaxQubits   int    // Simulator state vector ceiling
	Seed        uint64 // Sampling seed; runs are replayable per seed
	Workers     int    // Parallel shot-drawing workers (0 = GOMAXPROCS)
}

// Load reads configuration from environment variables, with .env support.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("SHORLAB_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("SHORLAB_PORT", 8010),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Engine: EngineConfig{
			Shots:       getEnvAsInt("SHORLAB_SHOTS", 1024),
			MaxAttempts: getEnvAsInt("SHORLAB_MAX_ATTEMPTS", 16),
			MaxQubits:   getEnvAsInt("SHORLAB_MAX_QUBITS", 26),
			Seed:        uint64(getEnvAsInt("SHORLAB_SEED", 0)),
			Workers:     getEnvAsInt("SHORLAB_WORKERS", 0),
		},
		RunRetention: time.Duration(getEnvAsInt("SHORLAB_RUN_RETENTION_DAYS", 30)) * 24 * time.Hour,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Engine.Shots <= 0 {
		return fmt.Errorf("shots must be positive, got %d", c.Engine.Shots)
	}
	if c.Engine.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive, got %d", c.Engine.MaxAttempts)
	}
	if c.Engine.MaxQubits < 2 {
		return fmt.Errorf("max qubits must be at least 2, got %d", c.Engine.MaxQubits)
	}
	return nil
}

// RunsDBPath returns the path of the runs database inside the data dir.
func (c *Config) RunsDBPath() string {
	return filepath.Join(c.DataDir, "runs.db")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
