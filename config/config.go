package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/praxisdev/identity-api/internal/breach"
	"github.com/praxisdev/identity-api/internal/email"
	"github.com/praxisdev/identity-api/pkg/logger"
	"github.com/praxisdev/identity-api/pkg/messaging/redis"
	"github.com/praxisdev/identity-api/pkg/worker"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Email       EmailConfig       `mapstructure:"email"`
	Logger      logger.Config     `mapstructure:"logger"`
	BreachCheck BreachCheckConfig `mapstructure:"breach_check" split_words:"true"`
	Worker      WorkerConfig      `mapstructure:"worker"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit" split_words:"true"`

	// TokenStore selects where one-time tokens live: "postgres" (durable,
	// default) or "memory" for single-instance deployments.
	TokenStore string `mapstructure:"token_store" split_words:"true"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" split_words:"true"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" split_words:"true"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" split_words:"true"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes" split_words:"true"`
}

type DatabaseConfig struct {
	Host                   string `mapstructure:"host"`
	Port                   int    `mapstructure:"port"`
	User                   string `mapstructure:"user"`
	Password               string `mapstructure:"password"`
	Name                   string `mapstructure:"name"`
	SSLMode                string `mapstructure:"sslmode" envconfig:"SSLMODE"`
	MaxOpenConns           int    `mapstructure:"max_open_conns" split_words:"true"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns" split_words:"true"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes" split_words:"true"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries" split_words:"true"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" split_words:"true"`
	PoolSize     int           `mapstructure:"pool_size" split_words:"true"`
	MinIdleConns int           `mapstructure:"min_idle_conns" split_words:"true"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	BaseURL  string `mapstructure:"base_url" split_words:"true"`
}

// BreachCheckConfig tunes the compromised-password screening. Timeouts are
// fractional seconds so operators can set sub-second values without learning
// duration syntax.
type BreachCheckConfig struct {
	Enabled            bool    `mapstructure:"enabled"`
	CheckOnSignIn      bool    `mapstructure:"check_on_sign_in" split_words:"true"`
	MinMatches         int     `mapstructure:"min_matches" split_words:"true"`
	MinMatchesWarn     int     `mapstructure:"min_matches_warn" split_words:"true"`
	OpenTimeoutSeconds float64 `mapstructure:"open_timeout_seconds" split_words:"true"`
	ReadTimeoutSeconds float64 `mapstructure:"read_timeout_seconds" split_words:"true"`
	Endpoint           string  `mapstructure:"endpoint"`
	UserAgent          string  `mapstructure:"user_agent" split_words:"true"`
	Padding            bool    `mapstructure:"padding"`
}

type WorkerConfig struct {
	BatchSize         int           `mapstructure:"batch_size" split_words:"true"`
	PollInterval      time.Duration `mapstructure:"poll_interval" split_words:"true"`
	MaxRetries        int           `mapstructure:"max_retries" split_words:"true"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff" split_words:"true"`
	RetentionDays     int           `mapstructure:"retention_days" split_words:"true"`
	RetentionInterval time.Duration `mapstructure:"retention_interval" split_words:"true"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" split_words:"true"`
	Burst             int     `mapstructure:"burst"`
}

// LoadConfig reads config.yaml (or $CONFIG_FILE) and then applies
// IDENTITY_* environment overrides, so containers can run without a file.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("identity", &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt.secret is required")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("server.max_header_bytes", 1<<20)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "identity")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime_minutes", 5)

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", "100ms")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("jwt.issuer", "identity-api")

	v.SetDefault("email.enabled", false)
	v.SetDefault("email.port", 587)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")

	v.SetDefault("breach_check.enabled", true)
	v.SetDefault("breach_check.check_on_sign_in", false)
	v.SetDefault("breach_check.min_matches", 1)
	v.SetDefault("breach_check.min_matches_warn", 0)
	v.SetDefault("breach_check.open_timeout_seconds", 5.0)
	v.SetDefault("breach_check.read_timeout_seconds", 5.0)
	v.SetDefault("breach_check.padding", false)

	v.SetDefault("worker.batch_size", 100)
	v.SetDefault("worker.poll_interval", "5s")
	v.SetDefault("worker.max_retries", 3)
	v.SetDefault("worker.retry_backoff", "1m")
	v.SetDefault("worker.retention_days", 90)
	v.SetDefault("worker.retention_interval", "24h")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)

	v.SetDefault("token_store", "postgres")
}

func (c *RedisConfig) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.URL,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}

func (c *WorkerConfig) ToProcessorConfig() worker.OutboxProcessorConfig {
	return worker.OutboxProcessorConfig{
		BatchSize:    c.BatchSize,
		PollInterval: c.PollInterval,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
	}
}

func (c *EmailConfig) ToSMTPConfig() email.SMTPConfig {
	return email.SMTPConfig{
		Host:     c.Host,
		Port:     c.Port,
		Username: c.Username,
		Password: c.Password,
		From:     c.From,
		BaseURL:  c.BaseURL,
	}
}

func (c *BreachCheckConfig) ToCheckerConfig() breach.Config {
	return breach.Config{
		Enabled:       c.Enabled,
		CheckOnSignIn: c.CheckOnSignIn,
		Thresholds: breach.Thresholds{
			Reject: c.MinMatches,
			Warn:   c.MinMatchesWarn,
		},
	}
}

func (c *BreachCheckConfig) OpenTimeout() time.Duration {
	return time.Duration(c.OpenTimeoutSeconds * float64(time.Second))
}

func (c *BreachCheckConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds * float64(time.Second))
}
