package software

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/softwarehub/pkg/audit"
	"github.com/platinummonkey/softwarehub/pkg/auth"
	"golang.org/x/sync/errgroup"
)

// Service implements the inventory operations and records them for audit
type Service struct {
	store  *Store
	writer audit.Writer
	now    func() time.Time
}

// NewService creates a software service. writer may be nil.
func NewService(store *Store, writer audit.Writer) *Service {
	if writer == nil {
		writer = audit.NopWriter{}
	}
	return &Service{store: store, writer: writer, now: time.Now}
}

// List returns one page of the inventory. Applying any search or attribute
// filter is itself an audited action.
func (s *Service) List(ctx context.Context, actor auth.Principal, f Filters) (*ListResult, error) {
	page, limit := clampPage(f.Page, f.Limit)
	items, total, err := s.store.List(ctx, f, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}

	if f.Active() {
		s.record(ctx, actor, audit.TypeFilter, "Aplicou filtro",
			fmt.Sprintf("Filtros aplicados: %s (%d resultados)", f.Describe(), total))
	}

	return &ListResult{
		Softwares: items,
		Pagination: audit.Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: (total + int64(limit) - 1) / int64(limit),
		},
	}, nil
}

// Get returns one record
func (s *Service) Get(ctx context.Context, id string) (*Software, error) {
	return s.store.Get(ctx, id)
}

// Create adds a record owned by actor
func (s *Service) Create(ctx context.Context, actor auth.Principal, attrs Attributes) (*Software, error) {
	attrs.normalize()
	if err := attrs.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sw := &Software{
		Attributes: attrs,
		CreatedBy:  actor.ActorID(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Create(ctx, sw); err != nil {
		return nil, err
	}

	s.record(ctx, actor, audit.TypeCreate, "Cadastro de software",
		fmt.Sprintf("Software '%s' foi cadastrado", sw.Servico))
	return sw, nil
}

// Update replaces the attributes of id
func (s *Service) Update(ctx context.Context, actor auth.Principal, id string, attrs Attributes) (*Software, error) {
	attrs.normalize()
	if err := attrs.Validate(); err != nil {
		return nil, err
	}

	sw, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sw.Attributes = attrs
	sw.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, sw); err != nil {
		return nil, err
	}

	s.record(ctx, actor, audit.TypeUpdate, "Atualização de software",
		fmt.Sprintf("Software '%s' foi atualizado", sw.Servico))
	return sw, nil
}

// Delete removes id
func (s *Service) Delete(ctx context.Context, actor auth.Principal, id string) error {
	sw, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, sw.ID); err != nil {
		return err
	}

	s.record(ctx, actor, audit.TypeDelete, "Exclusão de software",
		fmt.Sprintf("Software '%s' foi removido", sw.Servico))
	return nil
}

// Stats summarizes the inventory
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	var bySSO, byMFA map[string]int64

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.Total, err = s.store.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.ByHosting, err = s.store.CountBy(gctx, "hosting")
		return err
	})
	g.Go(func() (err error) {
		stats.ByCriticidade, err = s.store.CountBy(gctx, "criticidade")
		return err
	})
	g.Go(func() (err error) {
		stats.ByAcesso, err = s.store.CountBy(gctx, "acesso")
		return err
	})
	g.Go(func() (err error) {
		bySSO, err = s.store.CountBy(gctx, "sso")
		return err
	})
	g.Go(func() (err error) {
		byMFA, err = s.store.CountBy(gctx, "mfa")
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.SSOIntegrated = bySSO[SSOIntegrated]
	stats.MFAEnabled = byMFA[MFAEnabled]
	return stats, nil
}

// Export returns the records req selects and records the export
func (s *Service) Export(ctx context.Context, actor auth.Principal, req ExportRequest) ([]Software, error) {
	var (
		items []Software
		err   error
	)
	if len(req.IDs) > 0 {
		items, err = s.store.GetMany(ctx, req.IDs)
	} else {
		items, _, err = s.store.List(ctx, req.Filters, 0, 0)
	}
	if err != nil {
		return nil, err
	}

	details := fmt.Sprintf("%d softwares exportados em CSV", len(items))
	if len(req.IDs) == 0 && req.Filters.Active() {
		details += fmt.Sprintf(" (filtros: %s)", req.Filters.Describe())
	}
	s.record(ctx, actor, audit.TypeExport, "Exportação de dados", details)
	return items, nil
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
