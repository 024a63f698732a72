package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and, when present, a
// config.yaml in the working directory. Environment variables take precedence
// over file values and use the DIGESTLY_ prefix with underscores for nesting
// (e.g. DIGESTLY_AUTH_JWT_SECRET maps to auth.jwt_secret).
// Returns a populated, validated Config or an error.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("DIGESTLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A missing config file is fine; env vars alone can carry the config.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind nested keys explicitly so AutomaticEnv resolves them even when
	// they are absent from the config file.
	for _, key := range []string{
		"server.port", "server.log_level",
		"database.url",
		"auth.jwt_secret", "auth.token_lifetime_minutes", "auth.token_issuer",
		"auth.token_audience", "auth.bcrypt_cost",
		"redis.url",
		"worker.count", "worker.queue_size", "worker.stuck_task_age_minutes",
		"worker.stuck_check_interval_minutes",
		"summarizer.backend", "summarizer.gemini_api_key", "summarizer.model_name",
		"summarizer.max_attempts", "summarizer.retry_min_wait_seconds",
		"summarizer.retry_max_wait_seconds",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers default values for settings that are safe to default.
// Secrets and connection URLs have no defaults and must be provided.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("auth.token_lifetime_minutes", 60)
	v.SetDefault("auth.token_issuer", "digestly-api")
	v.SetDefault("auth.token_audience", "digestly-api")
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("worker.count", 2)
	v.SetDefault("worker.queue_size", 100)
	v.SetDefault("worker.stuck_task_age_minutes", 30)
	v.SetDefault("worker.stuck_check_interval_minutes", 5)

	v.SetDefault("summarizer.backend", "rule")
	v.SetDefault("summarizer.max_attempts", 3)
	v.SetDefault("summarizer.retry_min_wait_seconds", 1)
	v.SetDefault("summarizer.retry_max_wait_seconds", 10)
}
