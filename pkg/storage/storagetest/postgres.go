//go:build integration

package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/platinummonkey/softwarehub/pkg/storage"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// NewPostgres starts a disposable PostgreSQL container and returns a
// migrated handle. The test is skipped when no container runtime is available.
func NewPostgres(t *testing.T) *storage.DB {
	t.Helper()

	ctx := context.Background()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("Docker/Podman not available, skipping integration tests")
	}
	provider.Close()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("softwarehub_test"),
		postgres.WithUsername("softwarehub"),
		postgres.WithPassword("softwarehub_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("Failed to start PostgreSQL container: %v", err)
	}

	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Errorf("Failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := storage.DefaultConfig()
	cfg.Driver = storage.DriverPostgres
	cfg.DSN = dsn

	db, err := storage.Open(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}
