package users

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/platinummonkey/softwarehub/pkg/audit"
	"github.com/platinummonkey/softwarehub/pkg/auth"
	"github.com/platinummonkey/softwarehub/pkg/storage/storagetest"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var baseTime = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

var admin = auth.Principal{ID: "7f9c2a1e-0000-4000-8000-000000000001", Name: "Ana Admin", Email: "ana@softwarehub.com", Role: auth.RoleAdmin}

type recordingWriter struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (w *recordingWriter) Record(_ context.Context, e audit.Entry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, e)
}

func (w *recordingWriter) last(t *testing.T) audit.Entry {
	t.Helper()
	w.mu.Lock()
	defer w.mu.Unlock()
	require.NotEmpty(t, w.entries)
	return w.entries[len(w.entries)-1]
}

func (w *recordingWriter) len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

// stepClock advances a second on every read so created_at ordering is stable
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type forgetRecorder struct {
	ids []string
}

func (f *forgetRecorder) Forget(id string) { f.ids = append(f.ids, id) }

type fixture struct {
	store   *Store
	service *Service
	auth    *AuthService
	writer  *recordingWriter
	forgets *forgetRecorder
	tokens  *auth.TokenManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := NewStore(storagetest.NewSQLite(t), nil)
	writer := &recordingWriter{}
	forgets := &forgetRecorder{}
	clock := &stepClock{t: baseTime}

	service := NewService(store, auth.NewPasswordHasher(bcrypt.MinCost), writer,
		WithActorCache(forgets),
		WithClock(clock.now),
	)
	tokens := auth.NewTokenManager("test-secret", "softwarehub", time.Hour)
	return &fixture{
		store:   store,
		service: service,
		auth:    NewAuthService(service, tokens),
		writer:  writer,
		forgets: forgets,
		tokens:  tokens,
	}
}

func (f *fixture) createUser(t *testing.T, name, email, password string, role auth.Role) *User {
	t.Helper()
	u, err := f.service.Create(context.Background(), admin, CreateInput{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     role,
		Status:   StatusActive,
	})
	require.NoError(t, err)
	return u
}

func strPtr(s string) *string { return &s }
