package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// HTTPConfig holds the HTTP server configuration
type HTTPConfig struct {
	Port string
}

// DatabaseConfig holds the PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// KafkaConfig holds the hardware message-bus configuration
type KafkaConfig struct {
	Brokers []string
	GroupID string
}

// RedisConfig holds the hardware liveness store configuration
type RedisConfig struct {
	Addr     string
	Password string
}

// SMTPConfig holds the alert mail transport configuration
type SMTPConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	From       string
	AlertEmail string
}

// Config is the full server configuration, loaded from the environment
type Config struct {
	ServiceName   string
	Environment   string
	LogLevel      string
	HTTP          HTTPConfig
	Database      DatabaseConfig
	Kafka         KafkaConfig
	Redis         RedisConfig
	SMTP          SMTPConfig
	DispenseTimeout time.Duration
	ThrottleWindow  time.Duration
}

// Load builds the configuration from environment variables with defaults
// suitable for local development.
func Load() *Config {
	return &Config{
		ServiceName: getEnv("OTEL_SERVICE_NAME", "dispenser-server"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		HTTP: HTTPConfig{
			Port: getEnv("HTTP_PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "dispenserdb"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Kafka: KafkaConfig{
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			GroupID: getEnv("KAFKA_GROUP_ID", "dispenser-server"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:       getEnvInt("SMTP_PORT", 587),
			User:       getEnv("SMTP_USER", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			From:       getEnv("SMTP_FROM", "dispenser@localhost"),
			AlertEmail: getEnv("ALERT_EMAIL", ""),
		},
		DispenseTimeout: getEnvDuration("DISPENSE_TIMEOUT", 60*time.Second),
		ThrottleWindow:  getEnvDuration("NOTIFICATION_THROTTLE_WINDOW", time.Hour),
	}
}

// IsDevelopment reports whether the server runs in a development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
