package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// App holds the runtime configuration loaded from an optional YAML file and
// environment variables. Environment variables take precedence.
type App struct {
	Env             string        `yaml:"env"`
	HTTPPort        string        `yaml:"http_port"`
	LogLevel        string        `yaml:"log_level"`
	APIBaseURL      string        `yaml:"api_base_url"`
	APITimeout      time.Duration `yaml:"api_timeout"`
	SessionBackend  string        `yaml:"session_backend"`
	SessionPrefix   string        `yaml:"session_key_prefix"`
	SessionTTL      time.Duration `yaml:"session_ttl"`
	RedisAddr       string        `yaml:"redis_addr"`
	QueueBackend    string        `yaml:"queue_backend"`
	QueueKey        string        `yaml:"queue_key"`
	RateLimitPerMin int           `yaml:"rate_limit_per_min"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	MetricsEnabled  bool          `yaml:"metrics_enabled"`

	Stub Stub `yaml:"stub"`
}

// Stub configures the local development API.
type Stub struct {
	Port          string        `yaml:"port"`
	DatabaseURL   string        `yaml:"database_url"`
	JWTIssuer     string        `yaml:"jwt_issuer"`
	JWTSigningKey string        `yaml:"jwt_signing_key"`
	AccessTTL     time.Duration `yaml:"access_ttl"`
	AdminUser     string        `yaml:"admin_user"`
	AdminPassword string        `yaml:"admin_password"`
}

func defaults() App {
	return App{
		Env:             "dev",
		HTTPPort:        "8081",
		LogLevel:        "info",
		APIBaseURL:      "http://localhost:8090",
		APITimeout:      30 * time.Second,
		SessionBackend:  "memory",
		SessionPrefix:   "studiodesk:",
		SessionTTL:      12 * time.Hour,
		RedisAddr:       "localhost:6379",
		QueueBackend:    "memory",
		QueueKey:        "studiodesk:outbound",
		RateLimitPerMin: 120,
		CORSOrigins:     []string{"http://localhost:5173"},
		MetricsEnabled:  true,
		Stub: Stub{
			Port:          "8090",
			JWTIssuer:     "studiodesk-stub",
			JWTSigningKey: "dev-signing-secret-change",
			AccessTTL:     8 * time.Hour,
			AdminUser:     "admin",
			AdminPassword: "admin123",
		},
	}
}

// Load returns configuration from CONFIG_FILE (if set) overlaid with
// environment variables.
func Load() (App, error) {
	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return App{}, err
		}
	}
	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return App{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *App) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *App) {
	cfg.Env = getEnv("APP_ENV", cfg.Env)
	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.APIBaseURL = strings.TrimRight(getEnv("API_BASE_URL", cfg.APIBaseURL), "/")
	cfg.APITimeout = durationEnv("API_TIMEOUT", cfg.APITimeout)
	cfg.SessionBackend = getEnv("SESSION_BACKEND", cfg.SessionBackend)
	cfg.SessionPrefix = getEnv("SESSION_KEY_PREFIX", cfg.SessionPrefix)
	cfg.SessionTTL = durationEnv("SESSION_TTL", cfg.SessionTTL)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.QueueBackend = getEnv("QUEUE_BACKEND", cfg.QueueBackend)
	cfg.QueueKey = getEnv("QUEUE_KEY", cfg.QueueKey)
	cfg.RateLimitPerMin = intEnv("RATE_LIMIT_PER_MIN", cfg.RateLimitPerMin)
	cfg.CORSOrigins = listEnv("CORS_ORIGINS", cfg.CORSOrigins)
	cfg.MetricsEnabled = boolEnv("METRICS_ENABLED", cfg.MetricsEnabled)

	cfg.Stub.Port = getEnv("STUB_PORT", cfg.Stub.Port)
	cfg.Stub.DatabaseURL = getEnv("STUB_DATABASE_URL", cfg.Stub.DatabaseURL)
	cfg.Stub.JWTIssuer = getEnv("JWT_ISSUER", cfg.Stub.JWTIssuer)
	cfg.Stub.JWTSigningKey = getEnv("JWT_SIGNING_KEY", cfg.Stub.JWTSigningKey)
	cfg.Stub.AccessTTL = durationEnv("ACCESS_TTL", cfg.Stub.AccessTTL)
	cfg.Stub.AdminUser = getEnv("STUB_ADMIN_USER", cfg.Stub.AdminUser)
	cfg.Stub.AdminPassword = getEnv("STUB_ADMIN_PASSWORD", cfg.Stub.AdminPassword)
}

func (c App) validate() error {
	switch c.SessionBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("SESSION_BACKEND must be memory or redis, got %q", c.SessionBackend)
	}
	switch c.QueueBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("QUEUE_BACKEND must be memory or redis, got %q", c.QueueBackend)
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("API_TIMEOUT must be positive")
	}
	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}
	return nil
}

// Production reports whether the app runs in a production environment.
func (c App) Production() bool {
	return c.Env == "production" || c.Env == "prod"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if val == "1" || val == "true" || val == "TRUE" {
			return true
		}
		if val == "0" || val == "false" || val == "FALSE" {
			return false
		}
		log.Printf("invalid bool for %s, using fallback %v", key, fallback)
	}
	return fallback
}

func listEnv(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
