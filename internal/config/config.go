package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Push     PushConfig     `mapstructure:"push"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Cleanup  CleanupConfig  `mapstructure:"cleanup"`
	LogLevel string         `mapstructure:"log_level" envconfig:"LOG_LEVEL"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port" envconfig:"SERVER_PORT" validate:"min=1,max=65535"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host" envconfig:"DB_HOST" validate:"required"`
	Port         int    `mapstructure:"port" envconfig:"DB_PORT" validate:"min=1,max=65535"`
	User         string `mapstructure:"user" envconfig:"DB_USER" validate:"required"`
	Password     string `mapstructure:"password" envconfig:"DB_PASSWORD"`
	Name         string `mapstructure:"name" envconfig:"DB_NAME" validate:"required"`
	SSLMode      string `mapstructure:"sslmode" envconfig:"DB_SSLMODE"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url" envconfig:"REDIS_URL" validate:"required"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type EngineConfig struct {
	// Interval between cycle runs; the lookback window is twice this so
	// scheduling jitter never drops a posting.
	Interval         time.Duration `mapstructure:"interval" validate:"required"`
	BatchSize        int           `mapstructure:"batch_size" validate:"min=1"`
	Workers          int           `mapstructure:"workers" validate:"min=1"`
	ActiveHoursStart int           `mapstructure:"active_hours_start" validate:"min=0,max=23"`
	ActiveHoursEnd   int           `mapstructure:"active_hours_end" validate:"min=0,max=24"`
	RunOnStartup     bool          `mapstructure:"run_on_startup"`
	DispatchTimeout  time.Duration `mapstructure:"dispatch_timeout"`
	LockTTL          time.Duration `mapstructure:"lock_ttl"`
}

type PushConfig struct {
	VAPIDPublicKey  string        `mapstructure:"vapid_public_key" envconfig:"VAPID_PUBLIC_KEY" validate:"required"`
	VAPIDPrivateKey string        `mapstructure:"vapid_private_key" envconfig:"VAPID_PRIVATE_KEY" validate:"required"`
	Subscriber      string        `mapstructure:"subscriber"`
	TTL             int           `mapstructure:"ttl"`
	RatePerSecond   float64       `mapstructure:"rate_per_second"`
	RateBurst       int           `mapstructure:"rate_burst"`
	MaxRetries      int           `mapstructure:"max_retries"`
	TokenCacheTTL   time.Duration `mapstructure:"token_cache_ttl"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" envconfig:"JWT_SECRET" validate:"required"`
}

type CleanupConfig struct {
	RetentionDays int           `mapstructure:"retention_days" validate:"min=1"`
	Interval      time.Duration `mapstructure:"interval"`
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 10*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.min_idle_conns", 2)
	viper.SetDefault("engine.interval", 15*time.Minute)
	viper.SetDefault("engine.batch_size", 500)
	viper.SetDefault("engine.workers", 8)
	viper.SetDefault("engine.active_hours_start", 8)
	viper.SetDefault("engine.active_hours_end", 22)
	viper.SetDefault("engine.dispatch_timeout", 15*time.Second)
	viper.SetDefault("engine.lock_ttl", 10*time.Minute)
	viper.SetDefault("push.subscriber", "mailto:alerts@jobpulse.app")
	viper.SetDefault("push.ttl", 86400)
	viper.SetDefault("push.rate_per_second", 50)
	viper.SetDefault("push.rate_burst", 100)
	viper.SetDefault("push.max_retries", 3)
	viper.SetDefault("push.token_cache_ttl", 5*time.Minute)
	viper.SetDefault("cleanup.retention_days", 180)
	viper.SetDefault("cleanup.interval", 12*time.Hour)
	viper.SetDefault("log_level", "info")
}

// LoadConfig reads config.yaml (working dir or ./config), then applies
// environment overrides, then validates.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("notifier", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env overrides: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// DSN builds the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}
