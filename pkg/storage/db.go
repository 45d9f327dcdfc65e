package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/mattn/go-sqlite3"
)

// sqliteDriverName is go-sqlite3 with go_lower registered on every connection.
// SQLite's own LOWER only folds ASCII.
const sqliteDriverName = "sqlite3_softwarehub"

func init() {
	sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("go_lower", strings.ToLower, true)
		},
	})
}

// DB is a database handle paired with its dialect
type DB struct {
	*sql.DB
	Dialect Dialect
}

// NewDB wraps an existing handle, mostly for tests with sqlmock
func NewDB(db *sql.DB, dialect Dialect) *DB {
	return &DB{DB: db, Dialect: dialect}
}

// Open connects to the configured SQL database, pings it and, when
// AutoMigrate is set, applies pending migrations
func Open(ctx context.Context, cfg Config) (*DB, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(dialect.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", cfg.Driver, err)
	}

	if dialect == SQLite {
		// single writer; also keeps :memory: databases on one connection
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if dialect == SQLite && InMemoryDSN(cfg.DSN) {
		// an in-memory database dies with its last connection
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
		sqlDB.SetConnMaxIdleTime(0)
	} else {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().ConnectTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", cfg.Driver, err)
	}

	db := NewDB(sqlDB, dialect)

	if cfg.AutoMigrate {
		if _, err := Migrate(ctx, db); err != nil {
			sqlDB.Close()
			return nil, err
		}
	}

	return db, nil
}

// InMemoryDSN reports whether a sqlite DSN names an in-memory database
func InMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.HasPrefix(dsn, "file::memory:") || strings.Contains(dsn, "mode=memory")
}

// Rebind is shorthand for db.Dialect.Rebind
func (db *DB) Rebind(query string) string {
	return db.Dialect.Rebind(query)
}

// ValidID reports whether id is a well-formed row ID. Rows are keyed by
// UUIDs in every dialect, and postgres rejects anything else at the type level.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
