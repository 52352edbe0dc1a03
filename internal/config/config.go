package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	AuditDatabase DatabaseConfig `mapstructure:"audit_database"`
	Redis         RedisConfig
	JWT           JWTConfig
	Security      SecurityConfig
	Email         EmailConfig
	RateLimit     RateLimitConfig `mapstructure:"rate_limit"`
	Audit         AuditConfig
	Log           LogConfig
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

// SecurityConfig carries the field-encryption key list: comma-separated
// base64url keys, newest first. Startup fails hard when it is absent;
// running unencrypted is never a fallback.
type SecurityConfig struct {
	FieldEncryptionKeys string `mapstructure:"field_encryption_keys"`
	BcryptCost          int    `mapstructure:"bcrypt_cost"`
}

type EmailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	BaseURL  string `mapstructure:"base_url"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type AuditConfig struct {
	RetentionDays   int `mapstructure:"retention_days"`
	OutboxBatchSize int `mapstructure:"outbox_batch_size"`
	OutboxSeconds   int `mapstructure:"outbox_seconds"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.timeoutSeconds", 30)
	viper.SetDefault("jwt.expiry_hours", 8)
	viper.SetDefault("security.bcrypt_cost", 12)
	viper.SetDefault("rate_limit.requests_per_second", 20)
	viper.SetDefault("rate_limit.burst", 40)
	viper.SetDefault("audit.retention_days", 2555) // seven years
	viper.SetDefault("audit.outbox_batch_size", 100)
	viper.SetDefault("audit.outbox_seconds", 5)
	viper.SetDefault("log.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Security.FieldEncryptionKeys == "" {
		return nil, fmt.Errorf("security.field_encryption_keys is required")
	}
	return &config, nil
}
