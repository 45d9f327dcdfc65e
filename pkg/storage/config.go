package storage

import "time"

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config for storage backends
type Config struct {
	Driver string // "postgres", "sqlite" or "memory"
	DSN    string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration
	AutoMigrate     bool

	// Redis config, optional
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Driver:          DriverSQLite,
		DSN:             "file:softwarehub.db?_busy_timeout=5000",
		MaxOpenConns:    20,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		ConnectTimeout:  10 * time.Second,
		AutoMigrate:     true,
		RedisDB:         -1,
		RedisMaxRetries: 3,
		RedisPoolSize:   10,
	}
}

// RedisEnabled reports whether a Redis URL was configured
func (c Config) RedisEnabled() bool {
	return c.RedisURL != ""
}
