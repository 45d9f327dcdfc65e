package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/softwarehub/pkg/audit"
	"github.com/platinummonkey/softwarehub/pkg/auth"
	"github.com/platinummonkey/softwarehub/pkg/observability"
	"github.com/platinummonkey/softwarehub/pkg/storage"
)

const userColumns = "id, name, email, password_hash, role, status, avatar, last_access, created_at, updated_at"

// Store persists users in the users table
type Store struct {
	db      *storage.DB
	metrics *observability.Metrics
}

// NewStore creates a user store. metrics may be nil.
func NewStore(db *storage.DB, metrics *observability.Metrics) *Store {
	return &Store{db: db, metrics: metrics}
}

// Create inserts u, assigning its ID when empty
func (s *Store) Create(ctx context.Context, u *User) (err error) {
	defer s.observe("create", time.Now(), &err)

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	query := s.db.Rebind(`INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = s.db.ExecContext(ctx, query,
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), string(u.Status), u.Avatar,
		s.nullTime(u.LastAccess), s.db.Dialect.Time(u.CreatedAt), s.db.Dialect.Time(u.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// Get returns the user with id or ErrNotFound
func (s *Store) Get(ctx context.Context, id string) (u *User, err error) {
	defer s.observe("get", time.Now(), &err)

	if !storage.ValidID(id) {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, s.db.Rebind("SELECT "+userColumns+" FROM users WHERE id = ?"), id)
	return scanUser(row)
}

// GetByEmail returns the user with the normalized email or ErrNotFound
func (s *Store) GetByEmail(ctx context.Context, email string) (u *User, err error) {
	defer s.observe("get_by_email", time.Now(), &err)

	row := s.db.QueryRowContext(ctx, s.db.Rebind("SELECT "+userColumns+" FROM users WHERE email = ?"), NormalizeEmail(email))
	return scanUser(row)
}

// EmailTaken reports whether another user than excludeID holds email
func (s *Store) EmailTaken(ctx context.Context, email, excludeID string) (taken bool, err error) {
	defer s.observe("email_taken", time.Now(), &err)

	query := "SELECT COUNT(*) FROM users WHERE email = ?"
	args := []interface{}{NormalizeEmail(email)}
	if storage.ValidID(excludeID) {
		query += " AND id <> ?"
		args = append(args, excludeID)
	}

	var n int
	if err = s.db.QueryRowContext(ctx, s.db.Rebind(query), args...).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return n > 0, nil
}

// List returns one page of users matching params, newest first, and the total
func (s *Store) List(ctx context.Context, params ListParams, offset, limit int) (users []User, total int64, err error) {
	defer s.observe("list", time.Now(), &err)

	var (
		conds []string
		args  []interface{}
	)
	if params.Search != "" {
		like := storage.LikeContains(params.Search)
		conds = append(conds, "("+s.db.Dialect.ContainsFold("name")+" OR "+s.db.Dialect.ContainsFold("email")+")")
		args = append(args, like, like)
	}
	if params.Role != "" {
		conds = append(conds, "role = ?")
		args = append(args, string(params.Role))
	}
	if params.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(params.Status))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	if err = s.db.QueryRowContext(ctx, s.db.Rebind("SELECT COUNT(*) FROM users"+where), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	query := "SELECT " + userColumns + " FROM users" + where + " ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(query), append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users = make([]User, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating users: %w", err)
	}
	return users, total, nil
}

// Update writes every mutable column of u
func (s *Store) Update(ctx context.Context, u *User) (err error) {
	defer s.observe("update", time.Now(), &err)

	if !storage.ValidID(u.ID) {
		return ErrNotFound
	}
	query := s.db.Rebind(`UPDATE users SET name = ?, email = ?, role = ?, status = ?, avatar = ?, updated_at = ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query,
		u.Name, u.Email, string(u.Role), string(u.Status), u.Avatar, s.db.Dialect.Time(u.UpdatedAt), u.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return affectedOne(res)
}

// SetPassword replaces the password hash of id
func (s *Store) SetPassword(ctx context.Context, id, hash string, at time.Time) (err error) {
	defer s.observe("set_password", time.Now(), &err)

	if !storage.ValidID(id) {
		return ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`),
		hash, s.db.Dialect.Time(at), id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return affectedOne(res)
}

// TouchLastAccess records a successful sign-in
func (s *Store) TouchLastAccess(ctx context.Context, id string, at time.Time) (err error) {
	defer s.observe("touch_last_access", time.Now(), &err)

	if !storage.ValidID(id) {
		return ErrNotFound
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(`UPDATE users SET last_access = ? WHERE id = ?`), s.db.Dialect.Time(at), id)
	if err != nil {
		return fmt.Errorf("failed to update last access: %w", err)
	}
	return nil
}

// Delete removes id
func (s *Store) Delete(ctx context.Context, id string) (err error) {
	defer s.observe("delete", time.Now(), &err)

	if !storage.ValidID(id) {
		return ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return affectedOne(res)
}

// CountBy returns user counts grouped by column, which must be role or status
func (s *Store) CountBy(ctx context.Context, column string) (counts map[string]int64, err error) {
	defer s.observe("count_by_"+column, time.Now(), &err)

	if column != "role" && column != "status" {
		return nil, fmt.Errorf("cannot group users by %q", column)
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+column+", COUNT(*) FROM users GROUP BY "+column)
	if err != nil {
		return nil, fmt.Errorf("failed to count users by %s: %w", column, err)
	}
	defer rows.Close()

	counts = make(map[string]int64)
	for rows.Next() {
		var (
			key string
			n   int64
		)
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("failed to scan user count: %w", err)
		}
		counts[key] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user counts: %w", err)
	}
	return counts, nil
}

// LookupActors resolves audit actor IDs to users. Unknown IDs are omitted.
func (s *Store) LookupActors(ctx context.Context, ids []string) (actors map[string]audit.Actor, err error) {
	defer s.observe("lookup_actors", time.Now(), &err)

	actors = make(map[string]audit.Actor, len(ids))
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		if storage.ValidID(id) {
			args = append(args, id)
		}
	}
	if len(args) == 0 {
		return actors, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
	query := s.db.Rebind("SELECT id, name, email FROM users WHERE id IN (" + placeholders + ")")
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to look up actors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a audit.Actor
		if err := rows.Scan(&a.ID, &a.Name, &a.Email); err != nil {
			return nil, fmt.Errorf("failed to scan actor: %w", err)
		}
		actors[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating actors: %w", err)
	}
	return actors, nil
}

func (s *Store) nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return s.db.Dialect.Time(*t)
}

func (s *Store) observe(operation string, start time.Time, errp *error) {
	if s.metrics == nil {
		return
	}
	err := *errp
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	s.metrics.ObserveStorage("users", operation, start, err)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*User, error) {
	var (
		u          User
		role       string
		status     string
		lastAccess sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &status, &u.Avatar,
		&lastAccess, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	u.Role = auth.Role(role)
	u.Status = Status(status)
	if lastAccess.Valid {
		t := lastAccess.Time.UTC()
		u.LastAccess = &t
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
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
