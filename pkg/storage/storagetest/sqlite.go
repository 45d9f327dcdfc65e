// Package storagetest provides database fixtures for package tests.
package storagetest

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/platinummonkey/softwarehub/pkg/storage"
	"github.com/stretchr/testify/require"
)

var sqliteSeq atomic.Int64

// NewSQLite opens a private in-memory sqlite database with all migrations applied
func NewSQLite(t *testing.T) *storage.DB {
	t.Helper()

	cfg := storage.DefaultConfig()
	cfg.Driver = storage.DriverSQLite
	cfg.DSN = fmt.Sprintf("file:softwarehub_test_%d?mode=memory&cache=shared", sqliteSeq.Add(1))

	db, err := storage.Open(context.Background(), cfg)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return db
}
