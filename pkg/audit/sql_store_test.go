package audit

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/platinummonkey/softwarehub/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockSQLStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewSQLStore(storage.NewDB(db, storage.Postgres), nil)
	require.NoError(t, err)
	return store, mock
}

func TestNewSQLStore_NilDB(t *testing.T) {
	_, err := NewSQLStore(nil, nil)
	assert.EqualError(t, err, "database connection is required")
}

func TestSQLStore_PostgresAppend(t *testing.T) {
	store, mock := newMockSQLStore(t)

	mock.ExpectExec(regexp.QuoteMeta(
		`INSERT INTO audit_logs (id, actor_id, actor_name, action, details, type, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`)).
		WithArgs("e-1", nil, "ghost@example.com", "Falha de login", "", "login", baseTime).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Append(context.Background(), &Event{
		ID:        "e-1",
		ActorName: "ghost@example.com",
		Action:    "Falha de login",
		Type:      TypeLogin,
		CreatedAt: baseTime,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_PostgresFind(t *testing.T) {
	store, mock := newMockSQLStore(t)
	start := baseTime.Add(-time.Hour)

	rows := sqlmock.NewRows([]string{"id", "actor_id", "actor_name", "action", "details", "type", "created_at"}).
		AddRow("e-2", "u-1", "Alice", "Atualizou software", "", "update", baseTime).
		AddRow("e-1", nil, "alice@example.com", "Falha de login", "", "login", start)

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT id, actor_id, actor_name, action, details, type, created_at FROM audit_logs` +
			` WHERE actor_name ILIKE $1 ESCAPE '\' AND created_at >= $2` +
			` ORDER BY created_at DESC, seq DESC LIMIT $3 OFFSET $4`)).
		WithArgs("%ali%", start, 10, 20).
		WillReturnRows(rows)

	events, err := store.Find(context.Background(), Filter{ActorName: "ali", StartDate: &start}, 20, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "u-1", *events[0].ActorID)
	assert.Equal(t, TypeUpdate, events[0].Type)
	assert.Nil(t, events[1].ActorID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_PostgresCount(t *testing.T) {
	store, mock := newMockSQLStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM audit_logs WHERE actor_id = $1 AND type = $2`)).
		WithArgs("u-1", "delete").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := store.Count(context.Background(), Filter{ActorID: "u-1", Type: TypeDelete})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_Errors(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockSQLStore(t)

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnError(errStoreDown)
	mock.ExpectQuery("SELECT id").WillReturnError(errStoreDown)
	mock.ExpectQuery("SELECT COUNT").WillReturnError(errStoreDown)
	mock.ExpectQuery("SELECT actor_name").WillReturnError(errStoreDown)
	mock.ExpectQuery("SELECT type").WillReturnError(errStoreDown)

	err := store.Append(ctx, &Event{ID: "e", ActorName: "a", Action: "x", Type: TypeLogin, CreatedAt: baseTime})
	assert.ErrorIs(t, err, errStoreDown)
	assert.Contains(t, err.Error(), "failed to insert audit log")

	_, err = store.Find(ctx, Filter{}, 0, 10)
	assert.ErrorIs(t, err, errStoreDown)

	_, err = store.Count(ctx, Filter{})
	assert.ErrorIs(t, err, errStoreDown)

	_, err = store.CountByActorName(ctx, TopActors)
	assert.ErrorIs(t, err, errStoreDown)

	_, err = store.CountByType(ctx)
	assert.ErrorIs(t, err, errStoreDown)

	require.NoError(t, mock.ExpectationsWereMet())
}
