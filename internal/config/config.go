package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"      validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue"    validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker"   validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains authentication settings. The JWT secret is used to
// verify subscribe tokens presented on the notification channel.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"gt=0"`
}

// LLMConfig contains all generation-service integration settings.
type LLMConfig struct {
	GeminiAPIKey    string `mapstructure:"gemini_api_key"    validate:"required"`
	ModelName       string `mapstructure:"model_name"        validate:"required"`
	MaxOutputTokens int32  `mapstructure:"max_output_tokens" validate:"gt=0"`
}

// QueueConfig selects and sizes the job queue backing the worker pool.
// Kind "memory" uses the in-process buffered queue; "nats" uses a NATS
// JetStream stream shared across processes.
type QueueConfig struct {
	Kind    string `mapstructure:"kind"     validate:"required,oneof=memory nats"`
	Size    int    `mapstructure:"size"     validate:"gt=0"`
	NATSURL string `mapstructure:"nats_url" validate:"omitempty,uri"`
}

// WorkerConfig governs the worker pool, its retry policy for transient
// failures, and the stuck-task monitor.
type WorkerConfig struct {
	Count                 int `mapstructure:"count"                    validate:"gt=0"`
	MaxRetries            int `mapstructure:"max_retries"              validate:"gte=0"`
	RetryDelaySeconds     int `mapstructure:"retry_delay_seconds"      validate:"gte=1"`
	StuckTaskAgeMinutes   int `mapstructure:"stuck_task_age_minutes"   validate:"gt=0"`
	StuckTaskCheckMinutes int `mapstructure:"stuck_task_check_minutes" validate:"gt=0"`
}
