package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"      validate:"required"`
	Database    DatabaseConfig    `mapstructure:"database"    validate:"required"`
	Redis       RedisConfig       `mapstructure:"redis"`
	LLM         LLMConfig         `mapstructure:"llm"         validate:"required"`
	Credentials CredentialConfig  `mapstructure:"credentials" validate:"required"`
	Task        TaskConfig        `mapstructure:"task"        validate:"required"`
	MQTT        MQTTConfig        `mapstructure:"mqtt"`
	Transcript  TranscriptConfig  `mapstructure:"transcript"  validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"             validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level"        validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"               validate:"required,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"    validate:"gte=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig configures the completion cache and the notification guard.
// An empty Addr disables the cache and the guard falls back to process memory.
type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"         validate:"gte=0"`
	KeyPrefix string        `mapstructure:"key_prefix" validate:"required"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"  validate:"gt=0"`
	GuardTTL  time.Duration `mapstructure:"guard_ttl"  validate:"gt=0"`
}

// Enabled reports whether a Redis server has been configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	// APIKeys is the credential pool. A comma separated list is accepted
	// from the environment.
	APIKeys     []string      `mapstructure:"api_keys"     validate:"required,min=1,dive,required"`
	ModelName   string        `mapstructure:"model_name"   validate:"required"`
	CallTimeout time.Duration `mapstructure:"call_timeout" validate:"gt=0"`
}

// CredentialConfig tunes the credential pool and its health checker.
type CredentialConfig struct {
	ErrorThreshold      int           `mapstructure:"error_threshold"       validate:"gte=1"`
	QuotaLimit          int           `mapstructure:"quota_limit"           validate:"gte=0"`
	QuotaPeriod         time.Duration `mapstructure:"quota_period"          validate:"gt=0"`
	RateLimitCooldown   time.Duration `mapstructure:"rate_limit_cooldown"   validate:"gt=0"`
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval" validate:"gt=0"`
	ProbeTimeout        time.Duration `mapstructure:"probe_timeout"         validate:"gt=0"`
}

// TaskConfig configures the job queue and worker pool.
type TaskConfig struct {
	WorkerCount        int           `mapstructure:"worker_count"         validate:"gte=1"`
	QueueSize          int           `mapstructure:"queue_size"           validate:"gte=1"`
	MaxAttempts        int           `mapstructure:"max_attempts"         validate:"gte=1"`
	BaseBackoff        time.Duration `mapstructure:"base_backoff"         validate:"gt=0"`
	MaxBackoff         time.Duration `mapstructure:"max_backoff"          validate:"gtefield=BaseBackoff"`
	JobTimeout         time.Duration `mapstructure:"job_timeout"          validate:"gt=0"`
	StuckTaskAge       time.Duration `mapstructure:"stuck_task_age"       validate:"gt=0"`
	StuckCheckInterval time.Duration `mapstructure:"stuck_check_interval" validate:"gt=0"`
}

// MQTTConfig configures the notification publisher. An empty BrokerURL
// routes notifications to the in-process event emitter instead.
type MQTTConfig struct {
	BrokerURL   string `mapstructure:"broker_url"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	TopicPrefix string `mapstructure:"topic_prefix" validate:"required"`
	QoS         int    `mapstructure:"qos"          validate:"gte=0,lte=2"`
}

// Enabled reports whether an MQTT broker has been configured.
func (c MQTTConfig) Enabled() bool {
	return c.BrokerURL != ""
}

// TranscriptConfig configures the caption track source.
type TranscriptConfig struct {
	BaseURL           string        `mapstructure:"base_url"            validate:"required,url"`
	Timeout           time.Duration `mapstructure:"timeout"             validate:"gt=0"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`
}
