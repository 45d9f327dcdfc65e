package audit

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/platinummonkey/softwarehub/pkg/observability"
	"github.com/platinummonkey/softwarehub/pkg/storage"
)

const eventColumns = "id, actor_id, actor_name, action, details, type, created_at"

// SQLStore persists audit events in the audit_logs table of a postgres or
// sqlite database
type SQLStore struct {
	db      *storage.DB
	metrics *observability.Metrics
}

// NewSQLStore creates a SQL-backed audit store. metrics may be nil.
func NewSQLStore(db *storage.DB, metrics *observability.Metrics) (*SQLStore, error) {
	if db == nil || db.DB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &SQLStore{db: db, metrics: metrics}, nil
}

// Append inserts one event
func (s *SQLStore) Append(ctx context.Context, event *Event) (err error) {
	defer s.observe("append", time.Now(), &err)

	var actorID interface{}
	if event.ActorID != nil {
		actorID = *event.ActorID
	}

	query := s.db.Rebind(`INSERT INTO audit_logs (` + eventColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err = s.db.ExecContext(ctx, query,
		event.ID, actorID, event.ActorName, event.Action, event.Details,
		string(event.Type), s.db.Dialect.Time(event.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// Find returns one window of matching events, newest first. A non-positive
// limit returns everything past offset.
func (s *SQLStore) Find(ctx context.Context, filter Filter, offset, limit int) (events []Event, err error) {
	defer s.observe("find", time.Now(), &err)

	capacity := limit
	if limit <= 0 {
		limit = math.MaxInt32
		capacity = 0
	}

	where, args := s.whereClause(filter)
	query := "SELECT " + eventColumns + " FROM audit_logs" + where +
		" ORDER BY created_at DESC, seq DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit logs: %w", err)
	}
	defer rows.Close()

	events = make([]Event, 0, capacity)
	for rows.Next() {
		var (
			e       Event
			actorID sql.NullString
			typ     string
		)
		if err := rows.Scan(&e.ID, &actorID, &e.ActorName, &e.Action, &e.Details, &typ, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		if actorID.Valid {
			id := actorID.String
			e.ActorID = &id
		}
		e.Type = Type(typ)
		e.CreatedAt = e.CreatedAt.UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit logs: %w", err)
	}

	return events, nil
}

// Count returns the number of matching events
func (s *SQLStore) Count(ctx context.Context, filter Filter) (n int64, err error) {
	defer s.observe("count", time.Now(), &err)

	where, args := s.whereClause(filter)
	query := s.db.Rebind("SELECT COUNT(*) FROM audit_logs" + where)
	if err = s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count audit logs: %w", err)
	}
	return n, nil
}

// CountByActorName returns the busiest actors
func (s *SQLStore) CountByActorName(ctx context.Context, limit int) (out []ActorCount, err error) {
	defer s.observe("count_by_actor", time.Now(), &err)

	query := s.db.Rebind(`SELECT actor_name, COUNT(*) AS n FROM audit_logs
		GROUP BY actor_name ORDER BY n DESC, actor_name ASC LIMIT ?`)
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to count audit logs by actor: %w", err)
	}
	defer rows.Close()

	out = make([]ActorCount, 0, limit)
	for rows.Next() {
		var c ActorCount
		if err := rows.Scan(&c.ActorName, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan actor count: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating actor counts: %w", err)
	}
	return out, nil
}

// CountByType returns the per-type histogram
func (s *SQLStore) CountByType(ctx context.Context) (out []TypeCount, err error) {
	defer s.observe("count_by_type", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx, "SELECT type, COUNT(*) FROM audit_logs GROUP BY type ORDER BY type ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to count audit logs by type: %w", err)
	}
	defer rows.Close()

	out = make([]TypeCount, 0, len(Types))
	for rows.Next() {
		var (
			typ string
			c   TypeCount
		)
		if err := rows.Scan(&typ, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan type count: %w", err)
		}
		c.Type = Type(typ)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating type counts: %w", err)
	}
	return out, nil
}

// whereClause renders filter with ? placeholders, leading space included
func (s *SQLStore) whereClause(filter Filter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)

	if filter.ActorID != "" {
		conds = append(conds, "actor_id = ?")
		args = append(args, filter.ActorID)
	}
	if filter.ActorName != "" {
		conds = append(conds, s.db.Dialect.ContainsFold("actor_name"))
		args = append(args, storage.LikeContains(filter.ActorName))
	}
	if filter.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.StartDate != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, s.db.Dialect.Time(*filter.StartDate))
	}
	if filter.EndDate != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, s.db.Dialect.Time(*filter.EndDate))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *SQLStore) observe(operation string, start time.Time, errp *error) {
	s.metrics.ObserveStorage("audit", operation, start, *errp)
}
