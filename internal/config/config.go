package config

// Config holds all application configuration.
// It is constructed once at startup by Load and passed explicitly to the
// components that need it; nothing reads configuration from ambient globals
// during request handling.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"     validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database"   validate:"required"`
	Auth       AuthConfig       `mapstructure:"auth"       validate:"required"`
	Redis      RedisConfig      `mapstructure:"redis"      validate:"required"`
	Worker     WorkerConfig     `mapstructure:"worker"     validate:"required"`
	Summarizer SummarizerConfig `mapstructure:"summarizer" validate:"required"`
}

// ServerConfig contains all HTTP-server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// AuthConfig contains token signing and lifetime settings.
// The signing algorithm is fixed to HS256; only the secret, lifetime, and
// issuer/audience identity are configurable.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
	TokenIssuer          string `mapstructure:"token_issuer"           validate:"required"`
	TokenAudience        string `mapstructure:"token_audience"         validate:"required"`
	BcryptCost           int    `mapstructure:"bcrypt_cost"            validate:"omitempty,gte=4,lte=31"`
}

// RedisConfig contains connection settings for the token revocation store.
type RedisConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// WorkerConfig contains settings for the background task runner.
type WorkerConfig struct {
	Count                       int `mapstructure:"count"                        validate:"required,gt=0"`
	QueueSize                   int `mapstructure:"queue_size"                   validate:"required,gt=0"`
	StuckTaskAgeMinutes         int `mapstructure:"stuck_task_age_minutes"       validate:"required,gt=0"`
	StuckCheckIntervalMinutes   int `mapstructure:"stuck_check_interval_minutes" validate:"required,gt=0"`
}

// SummarizerConfig selects and configures the summarization backend.
// Backend "rule" needs no further settings; backend "gemini" requires an API
// key and a model name. The retry settings bound the backoff applied around
// the summarization call in the worker.
type SummarizerConfig struct {
	Backend             string  `mapstructure:"backend"                validate:"required,oneof=rule gemini"`
	GeminiAPIKey        string  `mapstructure:"gemini_api_key"         validate:"required_if=Backend gemini"`
	ModelName           string  `mapstructure:"model_name"             validate:"required_if=Backend gemini"`
	MaxAttempts         int     `mapstructure:"max_attempts"           validate:"required,gt=0"`
	RetryMinWaitSeconds float64 `mapstructure:"retry_min_wait_seconds" validate:"required,gt=0"`
	RetryMaxWaitSeconds float64 `mapstructure:"retry_max_wait_seconds" validate:"required,gt=0"`
}
