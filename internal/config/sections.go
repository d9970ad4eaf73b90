package config

import (
	"log/slog"
	"strings"
	"time"
)

type ServerConfig struct {
	ListenPort int    `yaml:"port"`
	Static     string `yaml:"static_path"`
}

func (c *ServerConfig) Port() int {
	return c.ListenPort
}

func (c *ServerConfig) StaticPath() string {
	return c.Static
}

type DatabaseConfig struct {
	DriverName string `yaml:"driver"`
	Source     string `yaml:"dsn"`
}

func (c *DatabaseConfig) Driver() string {
	return c.DriverName
}

func (c *DatabaseConfig) DSN() string {
	return c.Source
}

type AuthConfig struct {
	Secret string `yaml:"jwt_secret"`
	TTL    string `yaml:"token_ttl"`

	ttl time.Duration
}

func (c *AuthConfig) JWTSecret() string {
	return c.Secret
}

func (c *AuthConfig) TokenTTL() time.Duration {
	return c.ttl
}

type LogConfig struct {
	LevelName  string `yaml:"level"`
	FormatName string `yaml:"format"`
}

// Level maps the configured name to a slog level. Unknown names mean INFO.
func (c *LogConfig) Level() slog.Level {
	switch strings.ToLower(c.LevelName) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// JSON reports whether logs should be emitted as JSON instead of colored text.
func (c *LogConfig) JSON() bool {
	return strings.EqualFold(c.FormatName, "json")
}

type KafkaConfig struct {
	BrokerList []string `yaml:"brokers"`
	TopicName  string   `yaml:"topic"`
	Timeout    string   `yaml:"send_timeout"`

	timeout time.Duration
}

func (c *KafkaConfig) Brokers() []string {
	return c.BrokerList
}

func (c *KafkaConfig) Topic() string {
	return c.TopicName
}

// SendTimeout bounds each network step of a publish: dial, write, read and broker acks.
func (c *KafkaConfig) SendTimeout() time.Duration {
	return c.timeout
}

// Enabled reports whether notifications should go to Kafka.
func (c *KafkaConfig) Enabled() bool {
	return len(c.BrokerList) > 0
}

type AppConfig struct {
	CurrencyCode string `yaml:"currency"`
}

// Currency is the currency label used for dashboard summaries.
func (c *AppConfig) Currency() string {
	return c.CurrencyCode
}
