package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/jwalitptl/camera-relay/internal/model"
)

type Config struct {
	Server        ServerConfig       `mapstructure:"server"`
	Webhook       WebhookConfig      `mapstructure:"webhook"`
	SMS           SMSConfig          `mapstructure:"sms"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Cameras       CameraConfig       `mapstructure:"cameras"`
	Recipients    []model.Recipient  `mapstructure:"recipients" validate:"dive"`
	Store         StoreConfig        `mapstructure:"store"`
	Redis         RedisConfig        `mapstructure:"redis"`
	Monitoring    MonitoringConfig   `mapstructure:"monitoring"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type WebhookConfig struct {
	AuthEnabled       bool     `mapstructure:"auth_enabled"`
	AuthToken         string   `mapstructure:"auth_token"`
	AllowedIPs        []string `mapstructure:"allowed_ips"`
	RequestsPerSecond float64  `mapstructure:"requests_per_second"`
	Burst             int      `mapstructure:"burst"`
}

type SMSConfig struct {
	Primary      ChannelConfig      `mapstructure:"primary"`
	Fallback     ChannelConfig      `mapstructure:"fallback"`
	CarrierEmail CarrierEmailConfig `mapstructure:"carrier_email"`
}

// ChannelConfig configures one direct delivery channel. Type selects the
// transport: "twilio", "gsm_modem", or empty to disable the slot.
type ChannelConfig struct {
	Type string `mapstructure:"type" validate:"omitempty,oneof=twilio gsm_modem"`

	// twilio
	AccountSID    string        `mapstructure:"account_sid"`
	AuthToken     string        `mapstructure:"auth_token"`
	FromNumber    string        `mapstructure:"from_number"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`

	// gsm_modem
	Device string `mapstructure:"device"`
	Baud   int    `mapstructure:"baud"`
	PIN    string `mapstructure:"pin"`
}

type CarrierEmailConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	SMTPHost string            `mapstructure:"smtp_host"`
	SMTPPort int               `mapstructure:"smtp_port"`
	Username string            `mapstructure:"username"`
	Password string            `mapstructure:"password"`
	From     string            `mapstructure:"from"`
	Carriers map[string]string `mapstructure:"carriers"`
}

type NotificationConfig struct {
	RateLimiting RateLimitConfig  `mapstructure:"rate_limiting"`
	Batching     BatchingConfig   `mapstructure:"batching"`
	QuietHours   QuietHoursConfig `mapstructure:"quiet_hours"`
	// MessageFormat is the single-event template; supports {camera_name},
	// {event_type} and {time} placeholders.
	MessageFormat string `mapstructure:"message_format"`
}

type RateLimitConfig struct {
	Enabled             bool `mapstructure:"enabled"`
	MaxPerHour          int  `mapstructure:"max_per_hour" validate:"min=0"`
	MaxPerCameraPerHour int  `mapstructure:"max_per_camera_per_hour" validate:"min=0"`
}

type BatchingConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Window        time.Duration `mapstructure:"window"`
	MaxBatchSize  int           `mapstructure:"max_batch_size" validate:"min=0"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

type QuietHoursConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Start   string `mapstructure:"start"`
	End     string `mapstructure:"end"`
}

type CameraConfig struct {
	// Names maps vendor camera identifiers to display names for messages.
	Names map[string]string `mapstructure:"names"`
}

type StoreConfig struct {
	// Driver is "postgres" or "memory".
	Driver    string         `mapstructure:"driver" validate:"omitempty,oneof=postgres memory"`
	Retention time.Duration  `mapstructure:"retention"`
	Postgres  DatabaseConfig `mapstructure:"postgres"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool   `mapstructure:"prometheus_enabled"`
	MetricsPath       string `mapstructure:"metrics_path"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8888)
	viper.SetDefault("server.read_timeout", "10s")
	viper.SetDefault("server.write_timeout", "10s")
	viper.SetDefault("webhook.requests_per_second", 25.0)
	viper.SetDefault("webhook.burst", 50)
	viper.SetDefault("notifications.rate_limiting.enabled", true)
	viper.SetDefault("notifications.rate_limiting.max_per_hour", 30)
	viper.SetDefault("notifications.rate_limiting.max_per_camera_per_hour", 10)
	viper.SetDefault("notifications.batching.enabled", true)
	viper.SetDefault("notifications.batching.window", "5m")
	viper.SetDefault("notifications.batching.max_batch_size", 5)
	viper.SetDefault("notifications.batching.flush_interval", "10s")
	viper.SetDefault("notifications.quiet_hours.start", "22:00")
	viper.SetDefault("notifications.quiet_hours.end", "07:00")
	viper.SetDefault("notifications.message_format", "{camera_name}: {event_type} at {time}")
	viper.SetDefault("sms.primary.retry_attempts", 3)
	viper.SetDefault("sms.primary.retry_delay", "5s")
	viper.SetDefault("sms.fallback.retry_attempts", 3)
	viper.SetDefault("sms.fallback.retry_delay", "5s")
	viper.SetDefault("store.driver", "memory")
	viper.SetDefault("store.retention", "24h")
	viper.SetDefault("monitoring.prometheus_enabled", true)
	viper.SetDefault("monitoring.metrics_path", "/metrics")
}

// Validate checks structural constraints on the loaded configuration.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Webhook.AuthEnabled && c.Webhook.AuthToken == "" {
		return fmt.Errorf("invalid configuration: webhook.auth_token required when auth is enabled")
	}
	if c.Notifications.Batching.Enabled {
		if c.Notifications.Batching.Window <= 0 {
			return fmt.Errorf("invalid configuration: notifications.batching.window must be positive")
		}
		if c.Notifications.Batching.MaxBatchSize <= 0 {
			return fmt.Errorf("invalid configuration: notifications.batching.max_batch_size must be positive")
		}
	}
	return nil
}
