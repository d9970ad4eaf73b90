// Package config loads service configuration from an optional .env file, an optional
// YAML file and the environment, in that order of increasing precedence.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort        = 8080
	defaultDBPath      = "./data/settleup.db"
	defaultStaticPath  = "../frontend/static"
	defaultTokenTTL    = 24 * time.Hour
	defaultTopic       = "settleup.notifications"
	defaultSendTimeout = 10 * time.Second
	defaultCurrency    = "USD"
)

type config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	App      AppConfig      `yaml:"app"`
}

// Service holds the loaded configuration and hands out its sections.
type Service struct {
	config config
}

// Load reads .env (if present), then the YAML file at path (if path is non-empty and the
// file exists), then applies environment overrides and validates the result.
func Load(path string) (*Service, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "loading .env")
	}

	s := &Service{config: defaults()}

	if path != "" {
		rawYAML, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, errors.Wrap(err, "reading config file")
		default:
			if err := yaml.Unmarshal(rawYAML, &s.config); err != nil {
				return nil, errors.Wrap(err, "parsing yaml")
			}
		}
	}

	if err := s.applyEnv(); err != nil {
		return nil, err
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func defaults() config {
	return config{
		Server: ServerConfig{
			ListenPort: defaultPort,
			Static:     defaultStaticPath,
		},
		Database: DatabaseConfig{
			DriverName: "sqlite",
			Source:     defaultDBPath,
		},
		Auth: AuthConfig{
			TTL: defaultTokenTTL.String(),
		},
		Log: LogConfig{
			LevelName:  "info",
			FormatName: "text",
		},
		Kafka: KafkaConfig{
			TopicName: defaultTopic,
			Timeout:   defaultSendTimeout.String(),
		},
		App: AppConfig{
			CurrencyCode: defaultCurrency,
		},
	}
}

func (s *Service) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "parsing PORT %q", v)
		}
		s.config.Server.ListenPort = port
	}
	setString(&s.config.Server.Static, "STATIC_PATH")
	setString(&s.config.Database.DriverName, "DB_DRIVER")
	setString(&s.config.Database.Source, "DB_PATH")
	if v := os.Getenv("DATABASE_URL"); v != "" {
		s.config.Database.Source = v
		if os.Getenv("DB_DRIVER") == "" {
			s.config.Database.DriverName = "postgres"
		}
	}
	setString(&s.config.Auth.Secret, "JWT_SECRET")
	setString(&s.config.Auth.TTL, "TOKEN_TTL")
	setString(&s.config.Log.LevelName, "LOG_LEVEL")
	setString(&s.config.Log.FormatName, "LOG_FORMAT")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		s.config.Kafka.BrokerList = splitList(v)
	}
	setString(&s.config.Kafka.TopicName, "KAFKA_TOPIC")
	setString(&s.config.Kafka.Timeout, "KAFKA_SEND_TIMEOUT")
	setString(&s.config.App.CurrencyCode, "APP_CURRENCY")
	return nil
}

func (s *Service) validate() error {
	switch s.config.Database.DriverName {
	case "sqlite", "postgres":
	default:
		return errors.Errorf("database.driver must be sqlite or postgres, got %q", s.config.Database.DriverName)
	}
	if s.config.Database.Source == "" {
		return errors.New("database.dsn is required")
	}
	if s.config.Auth.Secret == "" {
		return errors.New("auth.jwt_secret is required (set JWT_SECRET)")
	}
	ttl, err := time.ParseDuration(s.config.Auth.TTL)
	if err != nil {
		return errors.Wrapf(err, "parsing auth.token_ttl %q", s.config.Auth.TTL)
	}
	if ttl <= 0 {
		return errors.Errorf("auth.token_ttl must be positive, got %s", ttl)
	}
	s.config.Auth.ttl = ttl
	timeout, err := time.ParseDuration(s.config.Kafka.Timeout)
	if err != nil {
		return errors.Wrapf(err, "parsing kafka.send_timeout %q", s.config.Kafka.Timeout)
	}
	if timeout <= 0 {
		return errors.Errorf("kafka.send_timeout must be positive, got %s", timeout)
	}
	s.config.Kafka.timeout = timeout
	switch strings.ToLower(s.config.Log.FormatName) {
	case "text", "json":
	default:
		return errors.Errorf("log.format must be text or json, got %q", s.config.Log.FormatName)
	}
	return nil
}

func (s *Service) Server() *ServerConfig {
	return &s.config.Server
}

func (s *Service) Database() *DatabaseConfig {
	return &s.config.Database
}

func (s *Service) Auth() *AuthConfig {
	return &s.config.Auth
}

func (s *Service) Log() *LogConfig {
	return &s.config.Log
}

func (s *Service) Kafka() *KafkaConfig {
	return &s.config.Kafka
}

func (s *Service) App() *AppConfig {
	return &s.config.App
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
