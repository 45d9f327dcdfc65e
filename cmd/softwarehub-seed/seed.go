package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/platinummonkey/softwarehub/pkg/audit"
	"github.com/platinummonkey/softwarehub/pkg/auth"
	"github.com/platinummonkey/softwarehub/pkg/observability"
	"github.com/platinummonkey/softwarehub/pkg/software"
	"github.com/platinummonkey/softwarehub/pkg/storage"
	"github.com/platinummonkey/softwarehub/pkg/users"
	"gopkg.in/yaml.v3"
)

// eventWindow is how far back generated test events are spread
const eventWindow = 72 * time.Hour

// Fixture is the YAML document read with -fixture
type Fixture struct {
	Users []FixtureUser `yaml:"users"`
	// Softwares use the API field names (servico, affectedTeams, ...)
	Softwares []map[string]interface{} `yaml:"softwares"`
}

// FixtureUser is one account to create
type FixtureUser struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
	Status   string `yaml:"status"`
}

// DefaultFixture holds the accounts and sample record every fresh install gets
func DefaultFixture() Fixture {
	return Fixture{
		Users: []FixtureUser{
			{Name: "Administrador", Email: "admin@softwarehub.com", Password: "admin123", Role: string(auth.RoleAdmin)},
			{Name: "Editor", Email: "editor@softwarehub.com", Password: "editor123", Role: string(auth.RoleEditor)},
			{Name: "Visualizador", Email: "viewer@softwarehub.com", Password: "viewer123", Role: string(auth.RoleViewer)},
		},
		Softwares: []map[string]interface{}{{
			"servico":         "Microsoft Office 365",
			"description":     "Suite de produtividade Microsoft",
			"url":             "https://office.com",
			"hosting":         "Cloud",
			"acesso":          "Externo",
			"responsible":     "TI - Infraestrutura",
			"namedUser":       "Sim",
			"integratedUser":  "Sim",
			"sso":             "Integrado",
			"onboarding":      "Automático via AD",
			"offboarding":     "RemocaoAutomatica",
			"offboardingType": "Alta",
			"affectedTeams":   []interface{}{"TI", "RH", "Financeiro"},
			"logsInfo":        "Ambos",
			"logsRetention":   "Mensal",
			"mfaPolicy":       "Sim",
			"mfa":             "Habilitado",
			"mfaSMS":          "Sim",
			"regionBlock":     "Sim",
			"passwordPolicy":  "Sim",
			"sensitiveData":   "Sim",
			"criticidade":     "Alta",
		}},
	}
}

// LoadFixture reads a YAML fixture file
func LoadFixture(path string) (Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("failed to read fixture: %w", err)
	}
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Fixture{}, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}
	return f, nil
}

// Report counts what a run created
type Report struct {
	UsersCreated     int
	UsersSkipped     int
	SoftwaresCreated int
	SoftwaresSkipped int
	EventsCreated    int
}

// Seeder populates a database. Runs are idempotent for users (matched by
// email) and softwares (matched by servico).
type Seeder struct {
	userStore       *users.Store
	userService     *users.Service
	softwareStore   *software.Store
	softwareService *software.Service
	auditStore      audit.Store
	logger          *observability.Logger

	now  func() time.Time
	rand *rand.Rand
}

// NewSeeder creates a seeder over db. Seeding itself is audited as "Sistema".
func NewSeeder(db *storage.DB, hasher *auth.PasswordHasher, logger *observability.Logger) (*Seeder, error) {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	auditStore, err := audit.NewSQLStore(db, nil)
	if err != nil {
		return nil, err
	}
	writer := audit.NewStoreWriter(auditStore, audit.WithLogger(logger))

	userStore := users.NewStore(db, nil)
	softwareStore := software.NewStore(db, nil)
	return &Seeder{
		userStore:       userStore,
		userService:     users.NewService(userStore, hasher, writer, users.WithLogger(logger)),
		softwareStore:   softwareStore,
		softwareService: software.NewService(softwareStore, writer),
		auditStore:      auditStore,
		logger:          logger,
		now:             time.Now,
		rand:            rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	}, nil
}

var system = auth.Principal{Name: "Sistema", Role: auth.RoleAdmin}

// Apply creates the fixture's users, then its softwares owned by the first
// admin, and finally the requested number of generated test audit events
func (s *Seeder) Apply(ctx context.Context, f Fixture, events int) (*Report, error) {
	report := &Report{}

	for _, fu := range f.Users {
		created, err := s.ensureUser(ctx, fu)
		if err != nil {
			return report, err
		}
		if created {
			report.UsersCreated++
		} else {
			report.UsersSkipped++
		}
	}

	owner, err := s.firstAdmin(ctx)
	if err != nil {
		return report, err
	}

	for _, raw := range f.Softwares {
		created, err := s.ensureSoftware(ctx, owner, raw)
		if err != nil {
			return report, err
		}
		if created {
			report.SoftwaresCreated++
		} else {
			report.SoftwaresSkipped++
		}
	}

	if events > 0 {
		n, err := s.generateEvents(ctx, owner, events)
		report.EventsCreated = n
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

func (s *Seeder) ensureUser(ctx context.Context, fu FixtureUser) (bool, error) {
	if _, err := s.userStore.GetByEmail(ctx, fu.Email); err == nil {
		s.logger.WithField("email", fu.Email).Info("user exists, skipping")
		return false, nil
	} else if !errors.Is(err, users.ErrNotFound) {
		return false, err
	}

	status := users.Status(fu.Status)
	if status == "" {
		status = users.StatusActive
	}
	u, err := s.userService.Create(ctx, system, users.CreateInput{
		Name:     fu.Name,
		Email:    fu.Email,
		Password: fu.Password,
		Role:     auth.Role(fu.Role),
		Status:   status,
	})
	if err != nil {
		return false, fmt.Errorf("failed to create user %s: %w", fu.Email, err)
	}
	s.logger.WithField("email", u.Email).Info("user created")
	return true, nil
}

func (s *Seeder) firstAdmin(ctx context.Context) (auth.Principal, error) {
	res, _, err := s.userStore.List(ctx, users.ListParams{Role: auth.RoleAdmin}, 0, 1)
	if err != nil {
		return auth.Principal{}, err
	}
	if len(res) == 0 {
		return system, nil
	}
	return res[0].Principal(), nil
}

func (s *Seeder) ensureSoftware(ctx context.Context, owner auth.Principal, raw map[string]interface{}) (bool, error) {
	// YAML maps go through JSON so the API field names apply
	data, err := json.Marshal(raw)
	if err != nil {
		return false, fmt.Errorf("failed to encode software fixture: %w", err)
	}
	var attrs software.Attributes
	if err := json.Unmarshal(data, &attrs); err != nil {
		return false, fmt.Errorf("failed to decode software fixture: %w", err)
	}

	existing, _, err := s.softwareStore.List(ctx, software.Filters{Search: attrs.Servico}, 0, 0)
	if err != nil {
		return false, err
	}
	for _, sw := range existing {
		if sw.Servico == attrs.Servico {
			s.logger.WithField("servico", attrs.Servico).Info("software exists, skipping")
			return false, nil
		}
	}

	if _, err := s.softwareService.Create(ctx, owner, attrs); err != nil {
		return false, fmt.Errorf("failed to create software %q: %w", attrs.Servico, err)
	}
	s.logger.WithField("servico", attrs.Servico).Info("software created")
	return true, nil
}

var sampleEvents = []audit.Entry{
	{Type: audit.TypeLogin, Action: "Login no sistema", Details: "Login bem-sucedido via formulário web"},
	{Type: audit.TypeCreate, Action: "Cadastro de software", Details: "Software 'Microsoft Office 365' foi cadastrado"},
	{Type: audit.TypeUpdate, Action: "Atualização de software", Details: "Software 'Slack' foi atualizado"},
	{Type: audit.TypeDelete, Action: "Exclusão de software", Details: "Software 'Legado' foi removido"},
	{Type: audit.TypeExport, Action: "Exportação de dados", Details: "12 softwares exportados em CSV"},
	{Type: audit.TypeFilter, Action: "Aplicou filtro", Details: "Filtros aplicados: criticidade=Alta (3 resultados)"},
}

// generateEvents appends n sample events by actor at random whole hours
// within eventWindow
func (s *Seeder) generateEvents(ctx context.Context, actor auth.Principal, n int) (int, error) {
	before, err := s.auditStore.Count(ctx, audit.Filter{})
	if err != nil {
		return 0, err
	}

	now := s.now()
	hours := int(eventWindow / time.Hour)
	for i := 0; i < n; i++ {
		at := now.Add(-time.Duration(s.rand.IntN(hours)) * time.Hour)
		entry := sampleEvents[s.rand.IntN(len(sampleEvents))]
		entry.ActorID = actor.ActorID()
		entry.ActorName = actor.Name

		audit.NewStoreWriter(s.auditStore,
			audit.WithLogger(s.logger),
			audit.WithClock(func() time.Time { return at }),
		).Record(ctx, entry)
	}

	after, err := s.auditStore.Count(ctx, audit.Filter{})
	if err != nil {
		return 0, err
	}
	created := int(after - before)
	if created < n {
		return created, fmt.Errorf("only %d of %d test events were written", created, n)
	}
	return created, nil
}
