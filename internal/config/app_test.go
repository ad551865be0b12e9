package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/gastos-must-flow/internal/common"
	"github.com/Veraticus/gastos-must-flow/internal/twilio"
	"github.com/Veraticus/gastos-must-flow/internal/worker"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestDefaults(t *testing.T) {
	v := newViper()

	loc, err := Location(v)
	require.NoError(t, err)
	assert.Equal(t, DefaultTimezone, loc.String())

	assert.Equal(t, worker.DefaultConfig(), WorkerConfig(v))

	tw := TwilioConfig(v)
	assert.Equal(t, twilio.DefaultWhatsAppNumber, tw.WhatsAppNumber)
	assert.EqualValues(t, twilio.DefaultMaxMediaBytes, tw.MaxMediaBytes)

	features := Features(v)
	assert.True(t, features.TextParsing)
	assert.True(t, features.ImageParsing)
	assert.True(t, features.CategoryInference)
	assert.True(t, features.UserValidation)
}

func TestLocation_Invalid(t *testing.T) {
	v := newViper()
	v.Set("locale.timezone", "Mars/Olympus")

	_, err := Location(v)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestLLMConfig(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-anthropic")
	t.Setenv("OPENAI_API_KEY", "env-openai")

	tests := []struct {
		name     string
		set      map[string]any
		provider string
		apiKey   string
	}{
		{name: "anthropic from env", provider: "anthropic", apiKey: "env-anthropic"},
		{
			name:     "anthropic from config",
			set:      map[string]any{"llm.anthropic_api_key": "cfg-key"},
			provider: "anthropic",
			apiKey:   "cfg-key",
		},
		{
			name:     "openai from env",
			set:      map[string]any{"llm.provider": "OpenAI"},
			provider: "openai",
			apiKey:   "env-openai",
		},
		{
			name:     "openai from config",
			set:      map[string]any{"llm.provider": "openai", "llm.openai_api_key": "cfg-openai"},
			provider: "openai",
			apiKey:   "cfg-openai",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper()
			for k, val := range tt.set {
				v.Set(k, val)
			}

			cfg := LLMConfig(v)
			assert.Equal(t, tt.provider, cfg.Provider)
			assert.Equal(t, tt.apiKey, cfg.APIKey)
			assert.Equal(t, 3, cfg.MaxRetries)
			assert.Equal(t, 2*time.Second, cfg.RetryDelay)
		})
	}
}

func TestDatabasePath_Expands(t *testing.T) {
	t.Setenv("GASTOS_TEST_DIR", "/data")
	v := newViper()
	v.Set("database.path", "$GASTOS_TEST_DIR/gastos.db")

	assert.Equal(t, "/data/gastos.db", DatabasePath(v))
}
