package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Engine  EngineConfig  `yaml:"engine"`
}

// ServerConfig represents the dashboard-facing server configuration
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	CORS         CORSConfig    `yaml:"cors"`
}

// CORSConfig represents CORS configuration
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// EngineConfig represents the conversation-engine connection configuration
type EngineConfig struct {
	BaseURL         string        `yaml:"base_url"`
	WSURL           string        `yaml:"ws_url"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	MaxWatchedCalls int           `yaml:"max_watched_calls"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8002,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			CORS: CORSConfig{
				AllowedOrigins: []string{"http://localhost:3000"},
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"*"},
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Engine: EngineConfig{
			BaseURL:         "http://localhost:8000/api",
			WSURL:           "ws://localhost:8000/ws",
			RequestTimeout:  15 * time.Second,
			MaxWatchedCalls: 20,
		},
	}
}

// LoadConfig loads configuration from an optional YAML file, .env files and
// environment variables, in increasing priority
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	// Optional YAML config file
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		logrus.Infof("Loaded configuration from %s", path)
	}

	// Local .env file
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			logrus.Warnf("Failed to load .env file: %v", err)
		} else {
			logrus.Info("Loaded environment variables from .env")
		}
	}

	// Environment variable overrides
	if host := os.Getenv("SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}

	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	if url := os.Getenv("ENGINE_BASE_URL"); url != "" {
		cfg.Engine.BaseURL = url
	}

	if url := os.Getenv("ENGINE_WS_URL"); url != "" {
		cfg.Engine.WSURL = url
	}

	if maxCalls := os.Getenv("MAX_WATCHED_CALLS"); maxCalls != "" {
		if mc, err := strconv.Atoi(maxCalls); err == nil {
			cfg.Engine.MaxWatchedCalls = mc
		}
	}

	return cfg, nil
}

// SetupLogging configures the logging system
func SetupLogging(cfg *LoggingConfig) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)

	switch cfg.Format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	return nil
}
