package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/gastos-must-flow/internal/common"
	"github.com/Veraticus/gastos-must-flow/internal/llm"
	"github.com/Veraticus/gastos-must-flow/internal/twilio"
	"github.com/Veraticus/gastos-must-flow/internal/webhook"
	"github.com/Veraticus/gastos-must-flow/internal/worker"
)

// DefaultTimezone is where dates without a zone are interpreted.
const DefaultTimezone = "America/Lima"

// SetDefaults registers default values for every key the binary reads.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "$HOME/.local/share/gastos/gastos.db")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("locale.timezone", DefaultTimezone)

	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay", 2*time.Second)
	v.SetDefault("llm.timeout", 60*time.Second)

	v.SetDefault("twilio.whatsapp_number", twilio.DefaultWhatsAppNumber)
	v.SetDefault("twilio.validate_signature", true)
	v.SetDefault("twilio.max_media_bytes", twilio.DefaultMaxMediaBytes)

	v.SetDefault("server.addr", ":8080")

	defaults := worker.DefaultConfig()
	v.SetDefault("worker.poll_interval", defaults.PollInterval)
	v.SetDefault("worker.stale_after", defaults.StaleAfter)
	v.SetDefault("worker.concurrency", defaults.Concurrency)
	v.SetDefault("worker.batch_size", defaults.BatchSize)
	v.SetDefault("worker.embedded", true)

	v.SetDefault("features.text_parsing", true)
	v.SetDefault("features.image_parsing", true)
	v.SetDefault("features.category_inference", true)
	v.SetDefault("features.user_validation", true)
}

// DatabasePath returns the expanded SQLite path.
func DatabasePath(v *viper.Viper) string {
	return ExpandPath(v.GetString("database.path"))
}

// Location loads the configured time zone.
func Location(v *viper.Viper) (*time.Location, error) {
	name := v.GetString("locale.timezone")
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: locale.timezone %q: %v", common.ErrInvalidConfig, name, err)
	}
	return loc, nil
}

// LLMConfig builds the provider settings. The API key falls back to the
// provider's conventional environment variable.
func LLMConfig(v *viper.Viper) llm.Config {
	provider := strings.ToLower(v.GetString("llm.provider"))

	apiKey := v.GetString("llm.anthropic_api_key")
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if provider == "openai" {
		apiKey = v.GetString("llm.openai_api_key")
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	return llm.Config{
		Provider:    provider,
		APIKey:      apiKey,
		Model:       v.GetString("llm.model"),
		BaseURL:     v.GetString("llm.base_url"),
		MaxRetries:  v.GetInt("llm.max_retries"),
		RetryDelay:  v.GetDuration("llm.retry_delay"),
		Timeout:     v.GetDuration("llm.timeout"),
		Temperature: v.GetFloat64("llm.temperature"),
		MaxTokens:   v.GetInt("llm.max_tokens"),
	}
}

// TwilioConfig builds the gateway settings.
func TwilioConfig(v *viper.Viper) twilio.Config {
	return twilio.Config{
		AccountSID:     v.GetString("twilio.account_sid"),
		AuthToken:      v.GetString("twilio.auth_token"),
		WhatsAppNumber: v.GetString("twilio.whatsapp_number"),
		BaseURL:        v.GetString("twilio.base_url"),
		MaxMediaBytes:  v.GetInt64("twilio.max_media_bytes"),
	}
}

// WorkerConfig builds the poller settings.
func WorkerConfig(v *viper.Viper) worker.Config {
	return worker.Config{
		PollInterval: v.GetDuration("worker.poll_interval"),
		StaleAfter:   v.GetDuration("worker.stale_after"),
		Concurrency:  v.GetInt("worker.concurrency"),
		BatchSize:    v.GetInt("worker.batch_size"),
	}
}

// Features reports which pipeline capabilities are switched on.
func Features(v *viper.Viper) webhook.Features {
	return webhook.Features{
		TextParsing:       v.GetBool("features.text_parsing"),
		ImageParsing:      v.GetBool("features.image_parsing"),
		CategoryInference: v.GetBool("features.category_inference"),
		UserValidation:    v.GetBool("features.user_validation"),
	}
}
