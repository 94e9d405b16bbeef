package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`

	// MaxUploadBytes caps a single attachment.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`
	// MaxMessageBytes caps a single inbound WebSocket frame.
	MaxMessageBytes int64 `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`

	SilenceWindow  time.Duration `mapstructure:"silence_window" yaml:"silence_window"`
	WelcomeMessage bool          `mapstructure:"welcome_message" yaml:"welcome_message"`

	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`

	WSRatePerSecond float64 `mapstructure:"ws_rate_per_second" yaml:"ws_rate_per_second"`
	WSBurst         int     `mapstructure:"ws_burst" yaml:"ws_burst"`

	// RedisAddr switches the silence store to Redis when set.
	RedisAddr   string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPrefix string `mapstructure:"redis_prefix" yaml:"redis_prefix"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":5000",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		DatabasePath:      "supportchat.db",
		MaxUploadBytes:    5 << 20,
		MaxMessageBytes:   8 << 20,
		SilenceWindow:     30 * time.Minute,
		WelcomeMessage:    true,
		AllowedOrigins: []string{
			"http://localhost:4200",
			"http://localhost:5173",
			"http://localhost:8000",
			"http://127.0.0.1:8000",
		},
		WSRatePerSecond: 5,
		WSBurst:         20,
		RedisPrefix:     "supportchat:silence:",
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.MaxUploadBytes != 0 {
		c.MaxUploadBytes = other.MaxUploadBytes
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if other.SilenceWindow != 0 {
		c.SilenceWindow = other.SilenceWindow
	}
	if len(other.AllowedOrigins) > 0 {
		c.AllowedOrigins = other.AllowedOrigins
	}
	if other.WSRatePerSecond != 0 {
		c.WSRatePerSecond = other.WSRatePerSecond
	}
	if other.WSBurst != 0 {
		c.WSBurst = other.WSBurst
	}
	if other.RedisAddr != "" {
		c.RedisAddr = other.RedisAddr
	}
	if other.RedisPrefix != "" {
		c.RedisPrefix = other.RedisPrefix
	}
}
