package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. VIDSCRIBE_SERVER_PORT.
const EnvPrefix = "VIDSCRIBE"

// defaults holds every known key. Viper only resolves environment variables
// for keys it already knows about, so required keys are listed here too.
var defaults = map[string]any{
	"server.port":             8080,
	"server.log_level":        "info",
	"server.shutdown_timeout": "10s",

	"database.url":               "",
	"database.max_open_conns":    25,
	"database.max_idle_conns":    25,
	"database.conn_max_lifetime": "5m",

	"redis.addr":       "",
	"redis.password":   "",
	"redis.db":         0,
	"redis.key_prefix": "vidscribe",
	"redis.cache_ttl":  "24h",
	"redis.guard_ttl":  "15s",

	"llm.api_keys":     []string{},
	"llm.model_name":   "gemini-2.0-flash",
	"llm.call_timeout": "60s",

	"credentials.error_threshold":       3,
	"credentials.quota_limit":           0,
	"credentials.quota_period":          "24h",
	"credentials.rate_limit_cooldown":   "60s",
	"credentials.health_check_interval": "5m",
	"credentials.probe_timeout":         "10s",

	"task.worker_count":         2,
	"task.queue_size":           100,
	"task.max_attempts":         3,
	"task.base_backoff":         "2s",
	"task.max_backoff":          "1m",
	"task.job_timeout":          "5m",
	"task.stuck_task_age":       "30m",
	"task.stuck_check_interval": "5m",

	"mqtt.broker_url":   "",
	"mqtt.client_id":    "vidscribe",
	"mqtt.username":     "",
	"mqtt.password":     "",
	"mqtt.topic_prefix": "vidscribe/resources",
	"mqtt.qos":          1,

	"transcript.base_url":            "https://www.youtube.com",
	"transcript.timeout":             "15s",
	"transcript.requests_per_second": 5.0,
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.LLM.APIKeys = normalizeKeys(cfg.LLM.APIKeys)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// normalizeKeys trims whitespace and drops empty entries, which a trailing
// comma in VIDSCRIBE_LLM_API_KEYS would otherwise produce.
func normalizeKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		for _, part := range strings.Split(k, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
