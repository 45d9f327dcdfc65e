package main

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/platinummonkey/softwarehub/pkg/audit"
	"github.com/platinummonkey/softwarehub/pkg/auth"
	"github.com/platinummonkey/softwarehub/pkg/software"
	"github.com/platinummonkey/softwarehub/pkg/storage/storagetest"
	"github.com/platinummonkey/softwarehub/pkg/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestSeeder(t *testing.T) *Seeder {
	t.Helper()
	s, err := NewSeeder(storagetest.NewSQLite(t), auth.NewPasswordHasher(bcrypt.MinCost), nil)
	require.NoError(t, err)
	s.rand = rand.New(rand.NewPCG(1, 2))
	return s
}

func TestSeeder_DefaultsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestSeeder(t)

	report, err := s.Apply(ctx, DefaultFixture(), 0)
	require.NoError(t, err)
	assert.Equal(t, &Report{UsersCreated: 3, SoftwaresCreated: 1}, report)

	admin, err := s.userStore.GetByEmail(ctx, "admin@softwarehub.com")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, admin.Role)
	assert.Equal(t, users.StatusActive, admin.Status)
	assert.Equal(t, "A", admin.Avatar)

	items, total, err := s.softwareStore.List(ctx, software.Filters{}, 0, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, []string{"TI", "RH", "Financeiro"}, items[0].AffectedTeams)
	require.NotNil(t, items[0].CreatedBy)
	assert.Equal(t, admin.ID, *items[0].CreatedBy)

	report, err = s.Apply(ctx, DefaultFixture(), 0)
	require.NoError(t, err)
	assert.Equal(t, &Report{UsersSkipped: 3, SoftwaresSkipped: 1}, report)
}

func TestSeeder_GeneratesEvents(t *testing.T) {
	ctx := context.Background()
	s := newTestSeeder(t)
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_, err := s.Apply(ctx, DefaultFixture(), 0)
	require.NoError(t, err)
	seeded, err := s.auditStore.Count(ctx, audit.Filter{})
	require.NoError(t, err)

	report, err := s.Apply(ctx, Fixture{}, 25)
	require.NoError(t, err)
	assert.Equal(t, 25, report.EventsCreated)

	start := now.Add(-eventWindow)
	generated := audit.Filter{ActorName: "Administrador", StartDate: &start, EndDate: &now}
	n, err := s.auditStore.Count(ctx, generated)
	require.NoError(t, err)
	assert.EqualValues(t, 25, n)

	total, err := s.auditStore.Count(ctx, audit.Filter{})
	require.NoError(t, err)
	assert.Equal(t, seeded+25, total)
}

func TestLoadFixture(t *testing.T) {
	f, err := LoadFixture("testdata/fixture.yaml")
	require.NoError(t, err)
	require.Len(t, f.Users, 2)
	assert.Equal(t, "Inativo", f.Users[1].Status)
	require.Len(t, f.Softwares, 2)

	ctx := context.Background()
	s := newTestSeeder(t)
	report, err := s.Apply(ctx, f, 0)
	require.NoError(t, err)
	assert.Equal(t, &Report{UsersCreated: 2, SoftwaresCreated: 2}, report)

	items, _, err := s.softwareStore.List(ctx, software.Filters{Search: "slack"}, 0, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, []string{"Engenharia", "Marketing"}, items[0].AffectedTeams)
	// no admin in the fixture, so the records belong to nobody
	assert.Nil(t, items[0].CreatedBy)

	_, err = LoadFixture("testdata/missing.yaml")
	assert.Error(t, err)
}

func TestSeeder_InvalidFixture(t *testing.T) {
	s := newTestSeeder(t)
	_, err := s.Apply(context.Background(), Fixture{Users: []FixtureUser{{Name: "x", Email: "bad", Password: "123456", Role: "Admin"}}}, 0)
	assert.Error(t, err)
}
