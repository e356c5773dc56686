package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultWindowSize, cfg.WindowSize)
	assert.Equal(t, DefaultK, cfg.K)
	assert.True(t, cfg.Denoise)
	assert.Equal(t, DefaultMaxConcurrency, cfg.MaxConcurrency)
	assert.Equal(t, DefaultDispatchTimeout, cfg.DispatchTimeout)
	assert.Equal(t, "tesseract", cfg.Engine)
	assert.Equal(t, DefaultMinConfidence, cfg.MinConfidence)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DOCPIPE_WINDOW_SIZE", "15")
	t.Setenv("DOCPIPE_K", "0.2")
	t.Setenv("DOCPIPE_INVERT", "true")
	t.Setenv("DOCPIPE_MAX_CONCURRENCY", "8")
	t.Setenv("DOCPIPE_DISPATCH_TIMEOUT", "30s")
	t.Setenv("DOCPIPE_ENGINE", "vision")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15, cfg.WindowSize)
	assert.Equal(t, 0.2, cfg.K)
	assert.True(t, cfg.Invert)
	assert.Equal(t, 8, cfg.MaxConcurrency)
	assert.Equal(t, 30*time.Second, cfg.DispatchTimeout)
	assert.Equal(t, "vision", cfg.Engine)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"even window", "DOCPIPE_WINDOW_SIZE", "30"},
		{"window too small", "DOCPIPE_WINDOW_SIZE", "1"},
		{"window too large", "DOCPIPE_WINDOW_SIZE", "301"},
		{"k out of range", "DOCPIPE_K", "1.5"},
		{"zero concurrency", "DOCPIPE_MAX_CONCURRENCY", "0"},
		{"negative timeout", "DOCPIPE_DISPATCH_TIMEOUT", "-5s"},
		{"unknown engine", "DOCPIPE_ENGINE", "clippy"},
		{"confidence out of range", "DOCPIPE_MIN_CONFIDENCE", "1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestGetLoggerConfig(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "debug"
	cfg.LogFormat = "json"

	lc := cfg.GetLoggerConfig()
	assert.Equal(t, "debug", lc.Level)
	assert.Equal(t, "json", lc.Format)
}
