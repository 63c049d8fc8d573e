package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "http://localhost:11434/v1", cfg.Host)
	assert.Equal(t, "text-embedding-3-small", cfg.Model)
	assert.Equal(t, 1024, cfg.Dimension)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Empty(t, cfg.APIKey)
}

func TestNewConfigOptions(t *testing.T) {
	cfg := NewConfig(
		WithHost("http://embed.internal:9100"),
		WithAPIKey("sk-test"),
		WithModel("embeddinggemma"),
		WithDimension(768),
		WithTimeout(5*time.Second),
	)

	assert.Equal(t, "http://embed.internal:9100", cfg.Host)
	assert.Equal(t, "sk-test", cfg.APIKey)
	assert.Equal(t, "embeddinggemma", cfg.Model)
	assert.Equal(t, 768, cfg.Dimension)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name string
		host string
		want string
	}{
		{"adds v1 suffix", "http://localhost:11434", "http://localhost:11434/v1"},
		{"strips trailing slash first", "http://localhost:11434/", "http://localhost:11434/v1"},
		{"keeps existing v1", "http://localhost:11434/v1", "http://localhost:11434/v1"},
		{"empty host untouched", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Host: tt.host}
			cfg.Normalize()
			assert.Equal(t, tt.want, cfg.Host)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	valid := NewConfig()
	require.NoError(t, valid.Validate())

	// Missing credential is not a validation error; it selects disabled mode.
	require.NoError(t, NewConfig(WithAPIKey("")).Validate())

	assert.Error(t, NewConfig(WithHost("")).Validate())
	assert.Error(t, NewConfig(WithModel("")).Validate())
	assert.Error(t, NewConfig(WithDimension(0)).Validate())
	assert.Error(t, NewConfig(WithTimeout(0)).Validate())
}
