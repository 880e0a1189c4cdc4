package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	Auth           AuthConfig
	CORS           CORSConfig
	RateLimit      RateLimitConfig
	Ingest         IngestConfig
	AdminBootstrap AdminBootstrapConfig
	Features       FeatureConfig
	Logging        LoggingConfig
	Environment    string
}

type ServerConfig struct {
	Host    string
	Port    int
	BaseURL string
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int
}

// RedisConfig is optional; with an empty Addr the server runs without the
// read cache.
type RedisConfig struct {
	Addr     string
	DB       int
	CacheTTL time.Duration
}

type AuthConfig struct {
	JWTSecret string
	JWTExpiry time.Duration
	Issuer    string
}

type CORSConfig struct {
	AllowedOrigins  []string
	AllowAllOrigins bool
}

type RateLimitConfig struct {
	PublicPerMinute int
	AuthedPerMinute int
}

type IngestConfig struct {
	Interval          time.Duration
	EventbriteBaseURL string
	EventbriteToken   string
	CanadaGovBaseURL  string
	HTTPTimeout       time.Duration
}

type AdminBootstrapConfig struct {
	Username string
	Password string
	Email    string
}

type FeatureConfig struct {
	EnforceEventOwnership bool
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load builds the configuration from environment variables, optionally
// overlaid by a YAML file. File values win over the environment.
func Load(path string) (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:    getEnv("SERVER_HOST", "0.0.0.0"),
			Port:    getEnvInt("SERVER_PORT", 8080),
			BaseURL: getEnv("SERVER_BASE_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConnections: getEnvInt("DATABASE_MAX_CONNECTIONS", 25),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			CacheTTL: time.Duration(getEnvInt("CACHE_TTL_SECONDS", 60)) * time.Second,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			JWTExpiry: time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 24)) * time.Hour,
			Issuer:    getEnv("JWT_ISSUER", "cultureradar"),
		},
		CORS: CORSConfig{
			AllowedOrigins:  splitAndTrim(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
			AllowAllOrigins: getEnvBool("CORS_ALLOW_ALL", false),
		},
		RateLimit: RateLimitConfig{
			PublicPerMinute: getEnvInt("RATE_LIMIT_PUBLIC", 120),
			AuthedPerMinute: getEnvInt("RATE_LIMIT_AUTHED", 300),
		},
		Ingest: IngestConfig{
			Interval:          time.Duration(getEnvInt("INGEST_INTERVAL_HOURS", 6)) * time.Hour,
			EventbriteBaseURL: getEnv("EVENTBRITE_BASE_URL", "https://www.eventbriteapi.com/v3"),
			EventbriteToken:   getEnv("EVENTBRITE_TOKEN", ""),
			CanadaGovBaseURL:  getEnv("CANADA_GOV_BASE_URL", "https://open.canada.ca/data/api"),
			HTTPTimeout:       time.Duration(getEnvInt("INGEST_HTTP_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		AdminBootstrap: AdminBootstrapConfig{
			Username: getEnv("ADMIN_USERNAME", ""),
			Password: getEnv("ADMIN_PASSWORD", ""),
			Email:    getEnv("ADMIN_EMAIL", ""),
		},
		Features: FeatureConfig{
			EnforceEventOwnership: getEnvBool("FEATURE_ENFORCE_EVENT_OWNERSHIP", false),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Environment: getEnv("ENVIRONMENT", "development"),
	}

	if path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if cfg.Database.URL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	return cfg, nil
}

// fileConfig mirrors the subset of Config that may be set from a YAML file.
type fileConfig struct {
	Server *struct {
		Host    string `yaml:"host"`
		Port    int    `yaml:"port"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"server"`
	Database *struct {
		URL            string `yaml:"url"`
		MaxConnections int    `yaml:"max_connections"`
	} `yaml:"database"`
	Logging *struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
	Ingest *struct {
		IntervalHours int `yaml:"interval_hours"`
	} `yaml:"ingest"`
}

func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var overlay fileConfig
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if overlay.Server != nil {
		if overlay.Server.Host != "" {
			cfg.Server.Host = overlay.Server.Host
		}
		if overlay.Server.Port != 0 {
			cfg.Server.Port = overlay.Server.Port
		}
		if overlay.Server.BaseURL != "" {
			cfg.Server.BaseURL = overlay.Server.BaseURL
		}
	}
	if overlay.Database != nil {
		if overlay.Database.URL != "" {
			cfg.Database.URL = overlay.Database.URL
		}
		if overlay.Database.MaxConnections != 0 {
			cfg.Database.MaxConnections = overlay.Database.MaxConnections
		}
	}
	if overlay.Logging != nil {
		if overlay.Logging.Level != "" {
			cfg.Logging.Level = overlay.Logging.Level
		}
		if overlay.Logging.Format != "" {
			cfg.Logging.Format = overlay.Logging.Format
		}
	}
	if overlay.Ingest != nil && overlay.Ingest.IntervalHours != 0 {
		cfg.Ingest.Interval = time.Duration(overlay.Ingest.IntervalHours) * time.Hour
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
