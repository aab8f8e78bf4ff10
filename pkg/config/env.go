package config

import (
	"os"
	"strconv"
	"time"
)

// Environment variable prefix for all tunnelhunt settings
const envPrefix = "TUNNELHUNT"

// TuningConfig contains low-level knobs that are not worth a CLI flag
type TuningConfig struct {
	// Verdict sink: flush the buffered writer every N records
	SinkFlushEvery int

	// Sink buffer size (bytes)
	SinkBufferSize int

	// Minimum interval between per-file progress log lines
	ProgressInterval time.Duration
}

// DefaultTuningConfig returns default tuning configuration
func DefaultTuningConfig() TuningConfig {
	return TuningConfig{
		SinkFlushEvery:   getEnvInt("SINK_FLUSH_EVERY", 100),                 // 100 records
		SinkBufferSize:   getEnvInt("SINK_BUFFER_SIZE", 64*1024),             // 64KB
		ProgressInterval: getEnvDuration("PROGRESS_INTERVAL", 5*time.Second), // 5s
	}
}

// getEnvInt retrieves an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(envPrefix + "_" + key); val != "" {
		if i, err := strconv.Atoi(val); err == nil && i > 0 {
			return i
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable with a default value
// Accepts values like "5s", "10m", "1h"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if val := os.Getenv(envPrefix + "_" + key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultValue
}

// Tuning is the global tuning instance (initialized once at startup)
var Tuning = DefaultTuningConfig()

// Init re-reads tuning configuration from environment variables
// Call this at application startup
func Init() {
	Tuning = DefaultTuningConfig()
}
