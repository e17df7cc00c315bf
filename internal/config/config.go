package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port                   string `yaml:"port"`
	Environment            string `yaml:"environment"`
	LogLevel               string `yaml:"log_level"`
	CORSOrigins            string `yaml:"cors_origins"`
	RedisURL               string `yaml:"redis_url"`
	RateLimitPerMinute     int    `yaml:"rate_limit_per_minute"`
	MessageMaxSize         int    `yaml:"message_max_size"`
	MailboxLimit           int    `yaml:"mailbox_limit"`
	UnknownRecipientPolicy string `yaml:"unknown_recipient_policy"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
}

func defaults() *Config {
	return &Config{
		Port:                   "8080",
		Environment:            "development",
		LogLevel:               "info",
		CORSOrigins:            "http://localhost:3000",
		RateLimitPerMinute:     120,
		MessageMaxSize:         10240,
		UnknownRecipientPolicy: "reject",
		ShutdownTimeoutSeconds: 10,
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then environment variables.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.CORSOrigins = getEnv("CORS_ORIGINS", cfg.CORSOrigins)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", cfg.RateLimitPerMinute)
	cfg.MessageMaxSize = getEnvInt("MESSAGE_MAX_SIZE", cfg.MessageMaxSize)
	cfg.MailboxLimit = getEnvInt("MAILBOX_LIMIT", cfg.MailboxLimit)
	cfg.UnknownRecipientPolicy = getEnv("UNKNOWN_RECIPIENT_POLICY", cfg.UnknownRecipientPolicy)
	cfg.ShutdownTimeoutSeconds = getEnvInt("SHUTDOWN_TIMEOUT_SECONDS", cfg.ShutdownTimeoutSeconds)

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}
