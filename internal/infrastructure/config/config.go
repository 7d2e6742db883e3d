package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Pricing modes.
const (
	PricingModeRules = "rules"
	PricingModeHTTP  = "http"
	PricingModeNone  = "none"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Merchant      MerchantConfig      `mapstructure:"merchant"`
	Pricing       PricingConfig       `mapstructure:"pricing"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	InstanceID    string              `mapstructure:"instance_id"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
	CouponRateLimit int           `mapstructure:"coupon_rate_limit"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type MerchantConfig struct {
	Identifier       string   `mapstructure:"identifier"`
	DisplayName      string   `mapstructure:"display_name"`
	CountryCode      string   `mapstructure:"country_code"`
	Currency         string   `mapstructure:"currency"`
	PaymentsEnabled  bool     `mapstructure:"payments_enabled"`
	EnrolledNetworks []string `mapstructure:"enrolled_networks"`
}

type PricingConfig struct {
	Mode                    string        `mapstructure:"mode"`
	BaseURL                 string        `mapstructure:"base_url"`
	Timeout                 time.Duration `mapstructure:"timeout"`
	MaxRetries              int           `mapstructure:"max_retries"`
	RetryDelay              time.Duration `mapstructure:"retry_delay"`
	CircuitBreakerThreshold int           `mapstructure:"circuit_breaker_threshold"`
	CircuitBreakerTimeout   time.Duration `mapstructure:"circuit_breaker_timeout"`
	CacheTTL                time.Duration `mapstructure:"cache_ttl"`
	Rules                   []CouponRule  `mapstructure:"rules"`
}

// CouponRule is the configured text form of one rule-book entry.
type CouponRule struct {
	Code        string `mapstructure:"code"`
	Type        string `mapstructure:"type"`
	Value       string `mapstructure:"value"`
	Description string `mapstructure:"description"`
}

type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SSLMode         string        `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	EnableMetrics  bool   `mapstructure:"enable_metrics"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables, e.g. PAYSHEET_SERVER_PORT
	v.SetEnvPrefix("PAYSHEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read from config file if exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/paysheet")

	// Config file is optional
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

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout must be positive"))
	}
	if c.Server.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("server.session_ttl must be positive"))
	}
	if c.Server.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("server.sweep_interval must be positive"))
	}

	if c.Merchant.Identifier == "" {
		errs = append(errs, fmt.Errorf("merchant.identifier is required"))
	}
	if len(c.Merchant.CountryCode) != 2 {
		errs = append(errs, fmt.Errorf("merchant.country_code must be a 2-letter ISO code"))
	}
	if len(c.Merchant.Currency) != 3 {
		errs = append(errs, fmt.Errorf("merchant.currency must be a 3-letter ISO code"))
	}

	switch c.Pricing.Mode {
	case PricingModeRules, PricingModeNone:
	case PricingModeHTTP:
		if c.Pricing.BaseURL == "" {
			errs = append(errs, fmt.Errorf("pricing.base_url is required in http mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("pricing.mode must be one of rules, http, none, got %q", c.Pricing.Mode))
	}
	if c.Pricing.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("pricing.timeout must be positive"))
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			errs = append(errs, fmt.Errorf("database.host is required"))
		}
		if c.Database.Port <= 0 {
			errs = append(errs, fmt.Errorf("database.port must be positive"))
		}
	}
	if c.Redis.Enabled && c.Redis.Port <= 0 {
		errs = append(errs, fmt.Errorf("redis.port must be positive"))
	}

	// Production environment checks
	env := os.Getenv("ENV")
	if env == "production" || env == "prod" {
		if c.Database.Enabled && c.Database.Password == "" {
			errs = append(errs, fmt.Errorf("database.password required in production"))
		}
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.session_ttl", "30m")
	v.SetDefault("server.sweep_interval", "1m")
	v.SetDefault("server.coupon_rate_limit", 30)
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allow_credentials", false)

	// Merchant defaults
	v.SetDefault("merchant.identifier", "merchant.com.example.paysheet")
	v.SetDefault("merchant.display_name", "Paysheet Store")
	v.SetDefault("merchant.country_code", "US")
	v.SetDefault("merchant.currency", "USD")
	v.SetDefault("merchant.payments_enabled", true)
	v.SetDefault("merchant.enrolled_networks", []string{"amex", "discover", "masterCard", "visa"})

	// Pricing defaults
	v.SetDefault("pricing.mode", PricingModeRules)
	v.SetDefault("pricing.timeout", "5s")
	v.SetDefault("pricing.max_retries", 2)
	v.SetDefault("pricing.retry_delay", "200ms")
	v.SetDefault("pricing.circuit_breaker_threshold", 5)
	v.SetDefault("pricing.circuit_breaker_timeout", "30s")
	v.SetDefault("pricing.cache_ttl", "10m")
	v.SetDefault("pricing.rules", []map[string]string{
		{"code": "10", "type": "percentage", "value": "10", "description": "10% off"},
		{"code": "5", "type": "fixed", "value": "5.00", "description": "$5 off"},
	})

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "paysheet")
	v.SetDefault("database.database", "paysheet")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.min_connections", 2)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.ssl_mode", "disable")

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.connect_retries", 5)
	v.SetDefault("redis.connect_retry_delay", "1s")

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "json")
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", false)

	// Instance ID
	v.SetDefault("instance_id", "paysheet-1")
}

func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func (c *DatabaseConfig) MigrateURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
