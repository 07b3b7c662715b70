// Package config centralizes the inference server's runtime configuration,
// layered as environment variables with defaults and overridable by cobra
// flags in cmd/server.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the inference server process.
type Config struct {
	// Identity / logging
	ServerID string
	LogLevel string // "debug", "info", "warn", "error"

	// Transports
	HTTPPort    int
	GRPCPort    int
	WSPort      int
	MetricsPort int

	// Repository
	ModelRepository string
	PollInterval    time.Duration

	// Worker plumbing
	PluginDir    string
	DefaultBatch int
	MaxWaitTime  time.Duration
	UseNVML      string // "auto", "true", "false"

	// Size limits
	CPUBlockSizeBytes int
	MaxAllocateBytes  int
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		ServerID:          envStr("SERVER_ID", "amdinfer-0"),
		LogLevel:          envStr("LOG_LEVEL", "info"),
		HTTPPort:          envInt("HTTP_PORT", 8998),
		GRPCPort:          envInt("GRPC_PORT", 50051),
		WSPort:            envInt("WS_PORT", 8999),
		MetricsPort:       envInt("METRICS_PORT", 9090),
		ModelRepository:   envStr("MODEL_REPOSITORY", "./repository"),
		PollInterval:      time.Duration(envInt("POLL_INTERVAL_MS", 1000)) * time.Millisecond,
		PluginDir:         envStr("PLUGIN_DIR", "./plugins"),
		DefaultBatch:      envInt("DEFAULT_BATCH_SIZE", 1),
		MaxWaitTime:       time.Duration(envInt("MAX_WAIT_MS", 100)) * time.Millisecond,
		UseNVML:           envStr("USE_NVML", "auto"),
		CPUBlockSizeBytes: envInt("CPU_BLOCK_SIZE_BYTES", 1<<20),
		MaxAllocateBytes:  envInt("MAX_ALLOCATE_BYTES", 0),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envStringSlice(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		return strings.Split(v, ",")
	}
	return fallback
}
