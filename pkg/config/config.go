package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/miamirp/cityrecords/pkg/observability"
	"github.com/miamirp/cityrecords/pkg/storage"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "CITYRECORDS_"

// RegistrationMode controls self-service account creation.
type RegistrationMode string

const (
	// RegistrationApproval creates accounts inactive until IT or a Director activates them.
	RegistrationApproval RegistrationMode = "approval"
	// RegistrationOpen creates active accounts and signs the new user in.
	RegistrationOpen RegistrationMode = "open"
	// RegistrationDisabled rejects every registration.
	RegistrationDisabled RegistrationMode = "disabled"
)

// Valid reports whether m is a known mode.
func (m RegistrationMode) Valid() bool {
	switch m {
	case RegistrationApproval, RegistrationOpen, RegistrationDisabled:
		return true
	}
	return false
}

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Database configuration
	Database storage.Config `yaml:"database"`

	// Session store configuration
	Session SessionConfig `yaml:"session"`

	// Authentication configuration
	Auth AuthConfig `yaml:"auth"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`

	// File is the YAML file the configuration was read from, if any.
	File string `yaml:"-"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RequestTimeout bounds every API request, store calls included
	RequestTimeout time.Duration `yaml:"request_timeout"`

	CORSOrigins  []string `yaml:"cors_origins"`
	MaxBodyBytes int64    `yaml:"max_body_bytes"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// SessionConfig holds session store settings. Backend is "memory" or "redis".
type SessionConfig struct {
	Backend         string        `yaml:"backend"`
	TTL             time.Duration `yaml:"ttl"`
	CookieSecure    bool          `yaml:"cookie_secure"`
	PurgeSchedule   string        `yaml:"purge_schedule"`
	RedisURL        string        `yaml:"redis_url"`
	RedisPassword   string        `yaml:"redis_password"`
	RedisDB         int           `yaml:"redis_db"`
	RedisMaxRetries int           `yaml:"redis_max_retries"`
	RedisPoolSize   int           `yaml:"redis_pool_size"`
}

// AuthConfig holds password, registration and login throttling settings
type AuthConfig struct {
	BcryptCost   int              `yaml:"bcrypt_cost"`
	Registration RegistrationMode `yaml:"registration"`

	// Login attempts allowed per client IP per window, plus burst
	LoginRateLimit  int           `yaml:"login_rate_limit"`
	LoginRateWindow time.Duration `yaml:"login_rate_window"`
	LoginRateBurst  int           `yaml:"login_rate_burst"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel string `yaml:"log_level"`

	// Metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"` // Use insecure gRPC connection
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Level returns the parsed log level, falling back to info.
func (o ObservabilityConfig) Level() observability.LogLevel {
	level, _ := observability.ParseLogLevel(o.LogLevel)
	return level
}

// OTel converts the tracing settings for observability.InitTracing.
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
	}
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  15 * time.Second,
			CORSOrigins:     []string{"http://localhost:3000"},
			MaxBodyBytes:    1 << 20,
			HealthPort:      "9090",
		},
		Database: storage.DefaultConfig(),
		Session: SessionConfig{
			Backend:       "memory",
			TTL:           12 * time.Hour,
			PurgeSchedule: "*/10 * * * *",
			RedisURL:      "redis://localhost:6379/0",
			RedisDB:       -1,
		},
		Auth: AuthConfig{
			BcryptCost:      12,
			Registration:    RegistrationApproval,
			LoginRateLimit:  10,
			LoginRateWindow: time.Minute,
			LoginRateBurst:  5,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "cityrecords",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1,
		},
	}
}

// LoadConfig builds the configuration from defaults, the YAML file named by
// CITYRECORDS_CONFIG_FILE (when set) and then environment variables.
func LoadConfig() (*Config, error) {
	return Load(os.Getenv(EnvPrefix + "CONFIG_FILE"))
}

// Load is LoadConfig with an explicit file path. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.File = path
	return nil
}

// applyEnv overlays environment variables on the current values
func (c *Config) applyEnv() {
	c.Server = loadServerConfig(c.Server)
	c.Database = loadDatabaseConfig(c.Database)
	c.Session = loadSessionConfig(c.Session)
	c.Auth = loadAuthConfig(c.Auth)
	c.Observability = loadObservabilityConfig(c.Observability)
}

// loadServerConfig loads server configuration from environment
func loadServerConfig(cfg ServerConfig) ServerConfig {
	cfg.Host = getEnv("HOST", cfg.Host)
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.ReadTimeout = getEnvDuration("READ_TIMEOUT", cfg.ReadTimeout)
	cfg.WriteTimeout = getEnvDuration("WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.IdleTimeout = getEnvDuration("IDLE_TIMEOUT", cfg.IdleTimeout)
	cfg.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.CORSOrigins = getEnvList("CORS_ORIGINS", cfg.CORSOrigins)
	cfg.MaxBodyBytes = getEnvInt64("MAX_BODY_BYTES", cfg.MaxBodyBytes)
	cfg.HealthPort = getEnv("HEALTH_PORT", cfg.HealthPort)
	return cfg
}

// loadDatabaseConfig loads database configuration from environment
func loadDatabaseConfig(cfg storage.Config) storage.Config {
	cfg.Driver = getEnv("DB_DRIVER", cfg.Driver)
	cfg.URL = getEnv("DATABASE_URL", cfg.URL)
	cfg.MaxConns = getEnvInt("DB_MAX_CONNS", cfg.MaxConns)
	cfg.MinConns = getEnvInt("DB_MIN_CONNS", cfg.MinConns)
	cfg.Timeout = getEnvDuration("DB_TIMEOUT", cfg.Timeout)
	cfg.MaxLifetime = getEnvDuration("DB_MAX_LIFETIME", cfg.MaxLifetime)
	cfg.MaxIdleTime = getEnvDuration("DB_MAX_IDLE_TIME", cfg.MaxIdleTime)
	return cfg
}

// loadSessionConfig loads session configuration from environment
func loadSessionConfig(cfg SessionConfig) SessionConfig {
	cfg.Backend = getEnv("SESSION_BACKEND", cfg.Backend)
	cfg.TTL = getEnvDuration("SESSION_TTL", cfg.TTL)
	cfg.CookieSecure = getEnvBool("SESSION_COOKIE_SECURE", cfg.CookieSecure)
	cfg.PurgeSchedule = getEnv("SESSION_PURGE_SCHEDULE", cfg.PurgeSchedule)

	// A Redis URL alone selects the Redis backend
	if redisURL := getEnv("REDIS_URL", ""); redisURL != "" {
		cfg.RedisURL = redisURL
		if os.Getenv(EnvPrefix+"SESSION_BACKEND") == "" {
			cfg.Backend = "redis"
		}
	}
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getEnvInt("REDIS_DB", cfg.RedisDB)
	cfg.RedisMaxRetries = getEnvInt("REDIS_MAX_RETRIES", cfg.RedisMaxRetries)
	cfg.RedisPoolSize = getEnvInt("REDIS_POOL_SIZE", cfg.RedisPoolSize)
	return cfg
}

// loadAuthConfig loads authentication configuration from environment
func loadAuthConfig(cfg AuthConfig) AuthConfig {
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", cfg.BcryptCost)
	cfg.Registration = RegistrationMode(strings.ToLower(getEnv("REGISTRATION", string(cfg.Registration))))
	cfg.LoginRateLimit = getEnvInt("LOGIN_RATE_LIMIT", cfg.LoginRateLimit)
	cfg.LoginRateWindow = getEnvDuration("LOGIN_RATE_WINDOW", cfg.LoginRateWindow)
	cfg.LoginRateBurst = getEnvInt("LOGIN_RATE_BURST", cfg.LoginRateBurst)
	return cfg
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig(cfg ObservabilityConfig) ObservabilityConfig {
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.MetricsEnabled = getEnvBool("METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.OTelEnabled = getEnvBool("OTEL_ENABLED", cfg.OTelEnabled)
	cfg.OTelEndpoint = getEnv("OTEL_ENDPOINT", cfg.OTelEndpoint)
	cfg.OTelServiceName = getEnv("OTEL_SERVICE_NAME", cfg.OTelServiceName)
	cfg.OTelServiceVersion = getEnv("OTEL_SERVICE_VERSION", cfg.OTelServiceVersion)
	cfg.OTelInsecure = getEnvBool("OTEL_INSECURE", cfg.OTelInsecure)
	cfg.OTelSampleRatio = getEnvFloat("OTEL_SAMPLE_RATIO", cfg.OTelSampleRatio)
	return cfg
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate database config
	switch c.Database.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("invalid database driver: %s (must be postgres or sqlite3)", c.Database.Driver)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database URL is required")
	}

	// Validate session config
	switch c.Session.Backend {
	case "memory":
	case "redis":
		if c.Session.RedisURL == "" {
			return fmt.Errorf("redis URL is required for the redis session backend")
		}
	default:
		return fmt.Errorf("invalid session backend: %s (must be memory or redis)", c.Session.Backend)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}

	// Validate auth config
	if !c.Auth.Registration.Valid() {
		return fmt.Errorf("invalid registration mode: %s (must be approval, open, or disabled)", c.Auth.Registration)
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("bcrypt cost must be between 4 and 31")
	}
	if c.Auth.LoginRateLimit <= 0 || c.Auth.LoginRateWindow <= 0 {
		return fmt.Errorf("login rate limit and window must be positive")
	}

	if _, err := observability.ParseLogLevel(c.Observability.LogLevel); err != nil {
		return err
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated environment variable
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(EnvPrefix + key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
