package users

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/platinummonkey/softwarehub/pkg/audit"
	"github.com/platinummonkey/softwarehub/pkg/auth"
	"github.com/platinummonkey/softwarehub/pkg/observability"
	"golang.org/x/sync/errgroup"
)

// ActorCache is told when a user's display data changes so enriched audit
// reads stop serving the old name
type ActorCache interface {
	Forget(id string)
}

// Service implements user administration on top of Store
type Service struct {
	store  *Store
	hasher *auth.PasswordHasher
	writer audit.Writer
	actors ActorCache
	logger *observability.Logger
	now    func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithActorCache registers the audit actor cache to invalidate
func WithActorCache(c ActorCache) Option {
	return func(s *Service) { s.actors = c }
}

// WithLogger sets the service logger
func WithLogger(logger *observability.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock overrides time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a user service. writer may be nil.
func NewService(store *Store, hasher *auth.PasswordHasher, writer audit.Writer, opts ...Option) *Service {
	if writer == nil {
		writer = audit.NopWriter{}
	}
	s := &Service{
		store:  store,
		hasher: hasher,
		writer: writer,
		logger: observability.NewNopLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns one page of users
func (s *Service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	page, limit := clampPage(params.Page, params.Limit)
	users, total, err := s.store.List(ctx, params, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	return &ListResult{
		Users: users,
		Pagination: audit.Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: (total + int64(limit) - 1) / int64(limit),
		},
	}, nil
}

// Get returns one user
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.store.Get(ctx, id)
}

// Create registers a new account on behalf of actor
func (s *Service) Create(ctx context.Context, actor auth.Principal, in CreateInput) (*User, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	email := NormalizeEmail(in.Email)
	taken, err := s.store.EmailTaken(ctx, email, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailTaken
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	u := &User{
		Name:         in.Name,
		Email:        email,
		Role:         in.Role,
		Status:       in.Status,
		Avatar:       Avatar(in.Name),
		CreatedAt:    now,
		UpdatedAt:    now,
		PasswordHash: hash,
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}

	s.record(ctx, actor, audit.TypeCreate, "Criação de usuário",
		fmt.Sprintf("Usuário '%s' foi criado com perfil %s", u.Name, u.Role))
	return u, nil
}

// Update applies a partial update to id
func (s *Service) Update(ctx context.Context, actor auth.Principal, id string, in UpdateInput) (*User, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	u, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Email != nil {
		email := NormalizeEmail(*in.Email)
		if email != u.Email {
			taken, err := s.store.EmailTaken(ctx, email, u.ID)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, ErrEmailTaken
			}
		}
		u.Email = email
	}
	if in.Name != nil && *in.Name != u.Name {
		u.Name = *in.Name
		u.Avatar = Avatar(u.Name)
	}
	if in.Role != nil {
		u.Role = *in.Role
	}
	if in.Status != nil {
		u.Status = *in.Status
	}
	u.UpdatedAt = s.now().UTC()

	if err := s.store.Update(ctx, u); err != nil {
		return nil, err
	}
	s.forget(u.ID)

	s.record(ctx, actor, audit.TypeUpdate, "Atualização de usuário",
		fmt.Sprintf("Usuário '%s' foi atualizado", u.Name))
	return u, nil
}

// ResetPassword sets a new password for id without knowing the old one
func (s *Service) ResetPassword(ctx context.Context, actor auth.Principal, id, newPassword string) error {
	if err := validatePassword("newPassword", newPassword); err != nil {
		return err
	}

	u, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.SetPassword(ctx, u.ID, hash, s.now().UTC()); err != nil {
		return err
	}

	s.record(ctx, actor, audit.TypeUpdate, "Reset de senha",
		fmt.Sprintf("Senha do usuário '%s' foi resetada", u.Name))
	return nil
}

// Delete removes id. Actors cannot remove themselves.
func (s *Service) Delete(ctx context.Context, actor auth.Principal, id string) error {
	u, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if u.ID == actor.ID {
		return ErrSelfDelete
	}

	if err := s.store.Delete(ctx, u.ID); err != nil {
		return err
	}
	s.forget(u.ID)

	s.record(ctx, actor, audit.TypeDelete, "Exclusão de usuário",
		fmt.Sprintf("Usuário '%s' foi removido do sistema", u.Name))
	return nil
}

// Stats counts users by status and role
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	var byRole, byStatus map[string]int64

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		byRole, err = s.store.CountBy(gctx, "role")
		return err
	})
	g.Go(func() (err error) {
		byStatus, err = s.store.CountBy(gctx, "status")
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := &Stats{
		ActiveUsers:   byStatus[string(StatusActive)],
		InactiveUsers: byStatus[string(StatusInactive)],
		AdminUsers:    byRole[string(auth.RoleAdmin)],
		EditorUsers:   byRole[string(auth.RoleEditor)],
		ViewerUsers:   byRole[string(auth.RoleViewer)],
	}
	for _, n := range byStatus {
		stats.TotalUsers += n
	}
	if stats.TotalUsers > 0 {
		stats.ActivePercentage = int64(math.Round(float64(stats.ActiveUsers) * 100 / float64(stats.TotalUsers)))
	}
	return stats, nil
}

// LookupActors implements audit.ActorDirectory
func (s *Service) LookupActors(ctx context.Context, ids []string) (map[string]audit.Actor, error) {
	return s.store.LookupActors(ctx, ids)
}

func (s *Service) record(ctx context.Context, actor auth.Principal, typ audit.Type, action, details string) {
	s.writer.Record(ctx, audit.Entry{
		ActorID:   actor.ActorID(),
		ActorName: actor.Name,
		Action:    action,
		Details:   details,
		Type:      typ,
	})
}

func (s *Service) forget(id string) {
	if s.actors != nil {
		s.actors.Forget(id)
	}
}

func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

// IsValidation reports whether err carries field details for a 400 response
func IsValidation(err error) (*ValidationError, bool) {
	var verr *ValidationError
	ok := errors.As(err, &verr)
	return verr, ok
}
