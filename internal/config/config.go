package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"docpipe/internal/logger"
)

// Defaults and valid ranges for the pipeline configuration surface.
// Invalid values fail at Load time, never mid-run.
const (
	DefaultWindowSize = 31
	MinWindowSize     = 3
	MaxWindowSize     = 255

	DefaultK = 0.34
	MinK     = 0.05
	MaxK     = 1.0

	DefaultMaxConcurrency = 4
	MinMaxConcurrency     = 1
	MaxMaxConcurrency     = 64

	DefaultDispatchTimeout   = 120 * time.Second
	DefaultCancelGracePeriod = 2 * time.Second

	DefaultMinConfidence = 0.5
)

// Config holds the full configuration for the document pipeline.
type Config struct {
	// Binarizer configuration
	WindowSize int     // local neighborhood extent in pixels, odd
	K          float64 // Sauvola sensitivity
	Invert     bool    // true when foreground is light-on-dark
	Denoise    bool    // median denoise + closing before segmentation

	// Dispatcher configuration
	MaxConcurrency    int
	DispatchTimeout   time.Duration
	CancelGracePeriod time.Duration

	// Recognition engine selection: vision, documentai, tesseract
	Engine string

	// Regions below this recognition confidence get a diagnostic
	MinConfidence float64

	// Logging configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		WindowSize:        getEnvInt("DOCPIPE_WINDOW_SIZE", DefaultWindowSize),
		K:                 getEnvFloat("DOCPIPE_K", DefaultK),
		Invert:            getEnvBool("DOCPIPE_INVERT", false),
		Denoise:           getEnvBool("DOCPIPE_DENOISE", true),
		MaxConcurrency:    getEnvInt("DOCPIPE_MAX_CONCURRENCY", DefaultMaxConcurrency),
		DispatchTimeout:   getEnvDuration("DOCPIPE_DISPATCH_TIMEOUT", DefaultDispatchTimeout),
		CancelGracePeriod: getEnvDuration("DOCPIPE_CANCEL_GRACE", DefaultCancelGracePeriod),
		Engine:            getEnv("DOCPIPE_ENGINE", "tesseract"),
		MinConfidence:     getEnvFloat("DOCPIPE_MIN_CONFIDENCE", DefaultMinConfidence),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:     getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:         getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Default returns the documented default configuration.
func Default() *Config {
	cfg := &Config{
		WindowSize:        DefaultWindowSize,
		K:                 DefaultK,
		Denoise:           true,
		MaxConcurrency:    DefaultMaxConcurrency,
		DispatchTimeout:   DefaultDispatchTimeout,
		CancelGracePeriod: DefaultCancelGracePeriod,
		Engine:            "tesseract",
		MinConfidence:     DefaultMinConfidence,
		LogLevel:          "info",
		LogFormat:         "console",
		LogTimeFormat:     "2006-01-02T15:04:05Z07:00",
		LogOutput:         "stderr",
	}
	return cfg
}

// Validate checks every option against its documented range.
func (c *Config) Validate() error {
	if c.WindowSize < MinWindowSize || c.WindowSize > MaxWindowSize {
		return fmt.Errorf("DOCPIPE_WINDOW_SIZE must be in [%d, %d], got %d", MinWindowSize, MaxWindowSize, c.WindowSize)
	}
	if c.WindowSize%2 == 0 {
		return fmt.Errorf("DOCPIPE_WINDOW_SIZE must be odd, got %d", c.WindowSize)
	}
	if c.K < MinK || c.K > MaxK {
		return fmt.Errorf("DOCPIPE_K must be in [%.2f, %.2f], got %.2f", MinK, MaxK, c.K)
	}
	if c.MaxConcurrency < MinMaxConcurrency || c.MaxConcurrency > MaxMaxConcurrency {
		return fmt.Errorf("DOCPIPE_MAX_CONCURRENCY must be in [%d, %d], got %d", MinMaxConcurrency, MaxMaxConcurrency, c.MaxConcurrency)
	}
	if c.DispatchTimeout <= 0 {
		return fmt.Errorf("DOCPIPE_DISPATCH_TIMEOUT must be positive, got %v", c.DispatchTimeout)
	}
	if c.CancelGracePeriod < 0 {
		return fmt.Errorf("DOCPIPE_CANCEL_GRACE must not be negative, got %v", c.CancelGracePeriod)
	}
	switch c.Engine {
	case "vision", "documentai", "tesseract":
	default:
		return fmt.Errorf("DOCPIPE_ENGINE must be one of vision, documentai, tesseract, got %q", c.Engine)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("DOCPIPE_MIN_CONFIDENCE must be in [0, 1], got %.2f", c.MinConfidence)
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
