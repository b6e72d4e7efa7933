package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// envPrefix is the prefix for all environment variables read by Load,
// e.g. SUPERMODEL_SERVER_PORT or SUPERMODEL_DATABASE_URL.
const envPrefix = "SUPERMODEL"

// Load reads configuration from environment variables and optionally from a
// config.yaml file in the working directory. Environment variables take
// precedence over values from the config file; built-in defaults fill any
// remaining gaps. Returns a populated Config struct or an error if loading
// or validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config file; absence is not an error.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about, so bind the
	// required keys that have no default explicitly.
	for _, key := range []string{
		"database.url",
		"auth.jwt_secret",
		"llm.gemini_api_key",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers the default value for every optional setting.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("auth.token_lifetime_minutes", 60)

	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.max_output_tokens", 1000)

	v.SetDefault("queue.kind", "memory")
	v.SetDefault("queue.size", 100)
	v.SetDefault("queue.nats_url", "")

	v.SetDefault("worker.count", 2)
	v.SetDefault("worker.max_retries", 3)
	v.SetDefault("worker.retry_delay_seconds", 2)
	v.SetDefault("worker.stuck_task_age_minutes", 30)
	v.SetDefault("worker.stuck_task_check_minutes", 5)
}
