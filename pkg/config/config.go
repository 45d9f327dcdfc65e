package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/platinummonkey/softwarehub/pkg/observability"
	"github.com/platinummonkey/softwarehub/pkg/storage"
	"github.com/robfig/cron/v3"
)

// envPrefix is prepended to every variable name read by this package
const envPrefix = "SOFTWAREHUB_"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Storage       storage.Config
	Auth          AuthConfig
	Audit         AuditConfig
	Observability ObservabilityConfig
	CORS          CORSConfig
	RateLimit     RateLimitConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// AuthConfig holds token and password settings
type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	Issuer     string
	BcryptCost int
}

// AuditConfig holds audit writer and query engine settings
type AuditConfig struct {
	WriteTimeout     time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration

	Async        bool
	AsyncWorkers int

	// FileDir enables the JSON-lines mirror when set
	FileDir      string
	FileMaxBytes int64
	FileMaxFiles int

	MaxPageSize   int
	Timezone      string
	StatsCacheTTL time.Duration
	ExportMaxRows int
	GaugeSchedule string

	ActorCacheSize int
	ActorCacheTTL  time.Duration
}

// StatsCacheEnabled reports whether stats should be cached in Redis.
// A zero TTL disables the cache.
func (a AuditConfig) StatsCacheEnabled() bool {
	return a.StatsCacheTTL > 0
}

// Location resolves Timezone, time.Local when unset
func (a AuditConfig) Location() (*time.Location, error) {
	if a.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(a.Timezone)
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel observability.LogLevel

	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
	OTelSampleRatio    float64
}

// CORSConfig holds cross-origin settings
type CORSConfig struct {
	AllowedOrigins   []string
	AllowCredentials bool
}

// RateLimitConfig holds request throttling settings
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerWindow int
	Window            time.Duration
	Burst             int
	// Distributed uses Redis when it is configured
	Distributed bool
}

// LoadConfig loads configuration from environment variables, after
// applying an optional .env file (SOFTWAREHUB_ENV_FILE overrides the path)
func LoadConfig() (*Config, error) {
	if err := loadDotEnv(os.Getenv(envPrefix + "ENV_FILE")); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Auth:          loadAuthConfig(),
		Audit:         loadAuditConfig(),
		Observability: loadObservabilityConfig(),
		CORS:          loadCORSConfig(),
		RateLimit:     loadRateLimitConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadStorageConfig loads only the storage section, for tools that do not
// serve HTTP
func LoadStorageConfig() (storage.Config, error) {
	if err := loadDotEnv(os.Getenv(envPrefix + "ENV_FILE")); err != nil {
		return storage.Config{}, err
	}
	cfg := loadStorageConfig()
	if _, err := storage.DialectFor(cfg.Driver); err != nil {
		return storage.Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// loadDotEnv never overrides variables that are already set
func loadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("HOST", "0.0.0.0"),
		Port:            getEnv("PORT", "3001"),
		ReadTimeout:     getEnvDuration("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:     getEnvDuration("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		MaxBodyBytes:    getEnvInt64("MAX_BODY_BYTES", 10<<20),
	}
}

func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	cfg.Driver = getEnv("DB_DRIVER", cfg.Driver)
	cfg.DSN = getEnv("DB_DSN", cfg.DSN)
	cfg.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", cfg.MaxOpenConns)
	cfg.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", cfg.MaxIdleConns)
	cfg.ConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", cfg.ConnMaxLifetime)
	cfg.ConnectTimeout = getEnvDuration("DB_CONNECT_TIMEOUT", cfg.ConnectTimeout)
	cfg.AutoMigrate = getEnvBool("DB_AUTO_MIGRATE", cfg.AutoMigrate)

	cfg.RedisURL = getEnv("REDIS_URL", "")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB = getEnvInt("REDIS_DB", cfg.RedisDB)
	cfg.RedisMaxRetries = getEnvInt("REDIS_MAX_RETRIES", cfg.RedisMaxRetries)
	cfg.RedisPoolSize = getEnvInt("REDIS_POOL_SIZE", cfg.RedisPoolSize)

	return cfg
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecret:  getEnv("JWT_SECRET", ""),
		TokenTTL:   getEnvDuration("AUTH_TOKEN_TTL", 24*time.Hour),
		Issuer:     getEnv("AUTH_ISSUER", "softwarehub"),
		BcryptCost: getEnvInt("BCRYPT_COST", 12),
	}
}

func loadAuditConfig() AuditConfig {
	return AuditConfig{
		WriteTimeout:     getEnvDuration("AUDIT_WRITE_TIMEOUT", 5*time.Second),
		BreakerThreshold: getEnvInt("AUDIT_BREAKER_THRESHOLD", 5),
		BreakerCooldown:  getEnvDuration("AUDIT_BREAKER_COOLDOWN", 30*time.Second),
		Async:            getEnvBool("AUDIT_ASYNC", false),
		AsyncWorkers:     getEnvInt("AUDIT_ASYNC_WORKERS", 4),
		FileDir:          getEnv("AUDIT_FILE_DIR", ""),
		FileMaxBytes:     getEnvInt64("AUDIT_FILE_MAX_BYTES", 100<<20),
		FileMaxFiles:     getEnvInt("AUDIT_FILE_MAX_FILES", 10),
		MaxPageSize:      getEnvInt("AUDIT_MAX_PAGE_SIZE", 200),
		Timezone:         getEnv("AUDIT_TIMEZONE", ""),
		StatsCacheTTL:    getEnvDuration("AUDIT_STATS_CACHE_TTL", 30*time.Second),
		ExportMaxRows:    getEnvInt("AUDIT_EXPORT_MAX_ROWS", 10000),
		GaugeSchedule:    getEnv("AUDIT_GAUGE_SCHEDULE", "@every 1m"),
		ActorCacheSize:   getEnvInt("AUDIT_ACTOR_CACHE_SIZE", 1024),
		ActorCacheTTL:    getEnvDuration("AUDIT_ACTOR_CACHE_TTL", time.Minute),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("OTEL_SERVICE_NAME", "softwarehub"),
		OTelServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("OTEL_SAMPLE_RATIO", 1.0),
	}
}

func loadCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins:   getEnvList("CORS_ORIGINS", []string{"http://localhost:5173"}),
		AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", true),
	}
}

func loadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:           getEnvBool("RATE_LIMIT_ENABLED", true),
		RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 100),
		Window:            getEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
		Burst:             getEnvInt("RATE_LIMIT_BURST", 20),
		Distributed:       getEnvBool("RATE_LIMIT_DISTRIBUTED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch c.Storage.Driver {
	case storage.DriverPostgres, storage.DriverSQLite:
		if c.Storage.DSN == "" {
			return fmt.Errorf("database DSN is required for %s", c.Storage.Driver)
		}
	case storage.DriverMemory:
	default:
		return fmt.Errorf("invalid database driver: %s (must be postgres, sqlite, or memory)", c.Storage.Driver)
	}

	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("JWT secret must be at least 16 characters")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("bcrypt cost must be between 4 and 31")
	}

	if c.Audit.MaxPageSize < 1 {
		return fmt.Errorf("audit max page size must be at least 1")
	}
	if c.Audit.BreakerThreshold < 1 {
		return fmt.Errorf("audit breaker threshold must be at least 1")
	}
	if c.Audit.Async && c.Audit.AsyncWorkers < 1 {
		return fmt.Errorf("audit async workers must be at least 1")
	}
	if _, err := c.Audit.Location(); err != nil {
		return fmt.Errorf("invalid audit timezone %q: %w", c.Audit.Timezone, err)
	}
	if _, err := cron.ParseStandard(c.Audit.GaugeSchedule); err != nil {
		return fmt.Errorf("invalid audit gauge schedule %q: %w", c.Audit.GaugeSchedule, err)
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerWindow < 1 || c.RateLimit.Window <= 0) {
		return fmt.Errorf("rate limit needs a positive request count and window")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(envPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(envPrefix + key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(envPrefix + key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(envPrefix + key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(envPrefix + key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(envPrefix + key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty entries
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(envPrefix + key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
