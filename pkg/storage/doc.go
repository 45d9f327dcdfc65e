// Package storage opens the SQL and Redis backends used by softwarehub.
//
// # Drivers
//
// Two SQL databases are supported through database/sql:
//
//   - postgres (github.com/lib/pq), placeholders $1..$n, ILIKE for case-insensitive matching
//   - sqlite (github.com/mattn/go-sqlite3), placeholders ?, go_lower() LIKE go_lower()
//     where go_lower is a Unicode-aware strings.ToLower registered per connection
//
// Stores write their queries with ? placeholders and call DB.Rebind. The
// Dialect also formats timestamps (always UTC) and builds LIKE predicates.
//
//	db, err := storage.Open(ctx, cfg)
//	rows, err := db.QueryContext(ctx, db.Rebind("SELECT ... WHERE id = ?"), id)
//
// # Migrations
//
// Versioned SQL files are embedded per dialect under migrations/ and applied
// in order by Migrate. Applied versions are tracked in schema_migrations.
//
// # Redis
//
// NewRedisClient parses SOFTWAREHUB_REDIS_URL, applies pool overrides and
// pings the server. Redis is optional: it backs the audit stats cache and the
// distributed rate limiter.
package storage
