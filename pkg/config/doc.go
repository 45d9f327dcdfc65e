// Package config loads softwarehub configuration from environment variables.
//
// Every variable carries the SOFTWAREHUB_ prefix. A .env file in the working
// directory (or the file named by SOFTWAREHUB_ENV_FILE) is applied first
// without overriding variables that are already set.
//
// Server:
//
//	SOFTWAREHUB_HOST="0.0.0.0"
//	SOFTWAREHUB_PORT="3001"
//	SOFTWAREHUB_MAX_BODY_BYTES="10485760"
//
// Storage:
//
//	SOFTWAREHUB_DB_DRIVER="postgres"   # postgres, sqlite, memory
//	SOFTWAREHUB_DB_DSN="postgres://localhost/softwarehub?sslmode=disable"
//	SOFTWAREHUB_REDIS_URL="redis://localhost:6379/0"
//
// Auth:
//
//	SOFTWAREHUB_JWT_SECRET="..."       # required, 16+ characters
//	SOFTWAREHUB_AUTH_TOKEN_TTL="24h"
//	SOFTWAREHUB_BCRYPT_COST="12"
//
// Audit:
//
//	SOFTWAREHUB_AUDIT_WRITE_TIMEOUT="5s"
//	SOFTWAREHUB_AUDIT_BREAKER_THRESHOLD="5"
//	SOFTWAREHUB_AUDIT_BREAKER_COOLDOWN="30s"
//	SOFTWAREHUB_AUDIT_ASYNC="false"
//	SOFTWAREHUB_AUDIT_FILE_DIR=""      # JSON-lines mirror, off when empty
//	SOFTWAREHUB_AUDIT_MAX_PAGE_SIZE="200"
//	SOFTWAREHUB_AUDIT_TIMEZONE=""      # IANA name, time.Local when empty
//	SOFTWAREHUB_AUDIT_STATS_CACHE_TTL="30s"
//	SOFTWAREHUB_AUDIT_EXPORT_MAX_ROWS="10000"
//	SOFTWAREHUB_AUDIT_GAUGE_SCHEDULE="@every 1m"
//
// Observability:
//
//	SOFTWAREHUB_LOG_LEVEL="info"
//	SOFTWAREHUB_OTEL_ENABLED="false"
//	SOFTWAREHUB_OTEL_ENDPOINT="localhost:4317"
//
// Usage:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatalf("config: %v", err)
//	}
package config
