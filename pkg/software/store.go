package software

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/softwarehub/pkg/observability"
	"github.com/platinummonkey/softwarehub/pkg/storage"
)

const softwareColumns = "id, servico, description, url, hosting, acesso, responsible, named_user, " +
	"integrated_user, sso, onboarding, offboarding, offboarding_type, affected_teams, logs_info, " +
	"logs_retention, mfa_policy, mfa, mfa_sms, region_block, password_policy, sensitive_data, " +
	"criticidade, created_by, created_at, updated_at"

// Store persists the inventory in the softwares table
type Store struct {
	db      *storage.DB
	metrics *observability.Metrics
}

// NewStore creates a software store. metrics may be nil.
func NewStore(db *storage.DB, metrics *observability.Metrics) *Store {
	return &Store{db: db, metrics: metrics}
}

// Create inserts sw, assigning its ID when empty
func (s *Store) Create(ctx context.Context, sw *Software) (err error) {
	defer s.observe("create", time.Now(), &err)

	if sw.ID == "" {
		sw.ID = uuid.NewString()
	}
	teams, err := json.Marshal(sw.AffectedTeams)
	if err != nil {
		return fmt.Errorf("failed to encode affected teams: %w", err)
	}

	var createdBy interface{}
	if sw.CreatedBy != nil && storage.ValidID(*sw.CreatedBy) {
		createdBy = *sw.CreatedBy
	}

	a := sw.Attributes
	query := s.db.Rebind(`INSERT INTO softwares (` + softwareColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = s.db.ExecContext(ctx, query,
		sw.ID, a.Servico, a.Description, a.URL, a.Hosting, a.Acesso, a.Responsible, a.NamedUser,
		a.IntegratedUser, a.SSO, a.Onboarding, a.Offboarding, a.OffboardingType, string(teams), a.LogsInfo,
		a.LogsRetention, a.MFAPolicy, a.MFA, a.MFASMS, a.RegionBlock, a.PasswordPolicy, a.SensitiveData,
		a.Criticidade, createdBy, s.db.Dialect.Time(sw.CreatedAt), s.db.Dialect.Time(sw.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create software: %w", err)
	}
	return nil
}

// Get returns the record with id or ErrNotFound
func (s *Store) Get(ctx context.Context, id string) (sw *Software, err error) {
	defer s.observe("get", time.Now(), &err)

	if !storage.ValidID(id) {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, s.db.Rebind("SELECT "+softwareColumns+" FROM softwares WHERE id = ?"), id)
	return scanSoftware(row)
}

// Update overwrites the attributes of sw
func (s *Store) Update(ctx context.Context, sw *Software) (err error) {
	defer s.observe("update", time.Now(), &err)

	if !storage.ValidID(sw.ID) {
		return ErrNotFound
	}
	teams, err := json.Marshal(sw.AffectedTeams)
	if err != nil {
		return fmt.Errorf("failed to encode affected teams: %w", err)
	}

	a := sw.Attributes
	query := s.db.Rebind(`UPDATE softwares SET servico = ?, description = ?, url = ?, hosting = ?,
		acesso = ?, responsible = ?, named_user = ?, integrated_user = ?, sso = ?, onboarding = ?,
		offboarding = ?, offboarding_type = ?, affected_teams = ?, logs_info = ?, logs_retention = ?,
		mfa_policy = ?, mfa = ?, mfa_sms = ?, region_block = ?, password_policy = ?, sensitive_data = ?,
		criticidade = ?, updated_at = ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query,
		a.Servico, a.Description, a.URL, a.Hosting, a.Acesso, a.Responsible, a.NamedUser, a.IntegratedUser,
		a.SSO, a.Onboarding, a.Offboarding, a.OffboardingType, string(teams), a.LogsInfo, a.LogsRetention,
		a.MFAPolicy, a.MFA, a.MFASMS, a.RegionBlock, a.PasswordPolicy, a.SensitiveData, a.Criticidade,
		s.db.Dialect.Time(sw.UpdatedAt), sw.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update software: %w", err)
	}
	return affectedOne(res)
}

// Delete removes id
func (s *Store) Delete(ctx context.Context, id string) (err error) {
	defer s.observe("delete", time.Now(), &err)

	if !storage.ValidID(id) {
		return ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM softwares WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete software: %w", err)
	}
	return affectedOne(res)
}

// List returns one window of records matching f, newest first, and the
// total. A non-positive limit returns every match.
func (s *Store) List(ctx context.Context, f Filters, offset, limit int) (out []Software, total int64, err error) {
	defer s.observe("list", time.Now(), &err)

	where, args := s.whereClause(f)
	if err = s.db.QueryRowContext(ctx, s.db.Rebind("SELECT COUNT(*) FROM softwares"+where), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count softwares: %w", err)
	}

	query := "SELECT " + softwareColumns + " FROM softwares" + where + " ORDER BY created_at DESC, id ASC"
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}
	out, err = s.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// GetMany returns the records among ids that exist, newest first
func (s *Store) GetMany(ctx context.Context, ids []string) (out []Software, err error) {
	defer s.observe("get_many", time.Now(), &err)

	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		if storage.ValidID(id) {
			args = append(args, id)
		}
	}
	if len(args) == 0 {
		return []Software{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
	return s.query(ctx, "SELECT "+softwareColumns+" FROM softwares WHERE id IN ("+placeholders+") ORDER BY created_at DESC, id ASC", args...)
}

// CountBy groups record counts by column. Empty values are omitted.
func (s *Store) CountBy(ctx context.Context, column string) (counts map[string]int64, err error) {
	defer s.observe("count_by_"+column, time.Now(), &err)

	switch column {
	case "hosting", "criticidade", "acesso", "sso", "mfa":
	default:
		return nil, fmt.Errorf("cannot group softwares by %q", column)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT "+column+", COUNT(*) FROM softwares WHERE "+column+" <> '' GROUP BY "+column)
	if err != nil {
		return nil, fmt.Errorf("failed to count softwares by %s: %w", column, err)
	}
	defer rows.Close()

	counts = make(map[string]int64)
	for rows.Next() {
		var (
			key string
			n   int64
		)
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("failed to scan software count: %w", err)
		}
		counts[key] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating software counts: %w", err)
	}
	return counts, nil
}

// Count returns the number of records
func (s *Store) Count(ctx context.Context) (n int64, err error) {
	defer s.observe("count", time.Now(), &err)

	if err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM softwares").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count softwares: %w", err)
	}
	return n, nil
}

func (s *Store) query(ctx context.Context, query string, args ...interface{}) ([]Software, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list softwares: %w", err)
	}
	defer rows.Close()

	out := []Software{}
	for rows.Next() {
		sw, err := scanSoftware(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating softwares: %w", err)
	}
	return out, nil
}

func (s *Store) whereClause(f Filters) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if f.Search != "" {
		like := storage.LikeContains(f.Search)
		d := s.db.Dialect
		conds = append(conds, "("+d.ContainsFold("servico")+" OR "+d.ContainsFold("description")+" OR "+d.ContainsFold("responsible")+")")
		args = append(args, like, like, like)
	}
	eq := func(column, value string) {
		if value != "" {
			conds = append(conds, column+" = ?")
			args = append(args, value)
		}
	}
	eq("hosting", f.Hosting)
	eq("acesso", f.Acesso)
	eq("sso", f.SSO)
	eq("mfa", f.MFA)
	eq("criticidade", f.Criticidade)

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *Store) observe(operation string, start time.Time, errp *error) {
	if s.metrics == nil {
		return
	}
	err := *errp
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	s.metrics.ObserveStorage("softwares", operation, start, err)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSoftware(row rowScanner) (*Software, error) {
	var (
		sw        Software
		teams     string
		createdBy sql.NullString
	)
	a := &sw.Attributes
	err := row.Scan(&sw.ID, &a.Servico, &a.Description, &a.URL, &a.Hosting, &a.Acesso, &a.Responsible,
		&a.NamedUser, &a.IntegratedUser, &a.SSO, &a.Onboarding, &a.Offboarding, &a.OffboardingType, &teams,
		&a.LogsInfo, &a.LogsRetention, &a.MFAPolicy, &a.MFA, &a.MFASMS, &a.RegionBlock, &a.PasswordPolicy,
		&a.SensitiveData, &a.Criticidade, &createdBy, &sw.CreatedAt, &sw.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan software: %w", err)
	}

	if err := json.Unmarshal([]byte(teams), &a.AffectedTeams); err != nil {
		return nil, fmt.Errorf("failed to decode affected teams of %s: %w", sw.ID, err)
	}
	if a.AffectedTeams == nil {
		a.AffectedTeams = []string{}
	}
	if createdBy.Valid {
		id := createdBy.String
		sw.CreatedBy = &id
	}
	sw.CreatedAt = sw.CreatedAt.UTC()
	sw.UpdatedAt = sw.UpdatedAt.UTC()
	return &sw, nil
}

func affectedOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
