package audit

import (
	"fmt"
	"time"
)

// Type is the category of an audit event
type Type string

const (
	TypeLogin  Type = "login"
	TypeCreate Type = "create"
	TypeUpdate Type = "update"
	TypeDelete Type = "delete"
	TypeExport Type = "export"
	TypeFilter Type = "filter"
)

// Types lists every valid event type in display order
var Types = []Type{TypeLogin, TypeCreate, TypeUpdate, TypeDelete, TypeExport, TypeFilter}

// Valid reports whether t is one of the known event types
func (t Type) Valid() bool {
	switch t {
	case TypeLogin, TypeCreate, TypeUpdate, TypeDelete, TypeExport, TypeFilter:
		return true
	}
	return false
}

// Event is a single persisted audit log entry. Events are append-only.
type Event struct {
	ID        string    `json:"id"`
	ActorID   *string   `json:"actorId"`
	ActorName string    `json:"actorName"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	Type      Type      `json:"type"`
	CreatedAt time.Time `json:"createdAt"`

	// Actor is the live user behind ActorID, filled in on read when it still resolves
	Actor *Actor `json:"actor,omitempty"`
}

// Actor is the display projection of a user attached to events on read
type Actor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Entry is what callers hand to a Writer. ID and CreatedAt are assigned on write.
type Entry struct {
	ActorID   *string
	ActorName string
	Action    string
	Details   string
	Type      Type
}

// Validate checks the fields every persisted event must carry
func (e Entry) Validate() error {
	if e.ActorName == "" {
		return fmt.Errorf("audit entry: actor name is required")
	}
	if e.Action == "" {
		return fmt.Errorf("audit entry: action is required")
	}
	if !e.Type.Valid() {
		return fmt.Errorf("audit entry: unknown type %q", e.Type)
	}
	return nil
}

// Filter narrows a query. Zero-valued fields do not filter.
type Filter struct {
	ActorID   string
	ActorName string
	Type      Type
	StartDate *time.Time
	EndDate   *time.Time
}

// Matches applies the filter to a single event in memory
func (f Filter) Matches(e *Event) bool {
	if f.ActorID != "" && (e.ActorID == nil || *e.ActorID != f.ActorID) {
		return false
	}
	if f.ActorName != "" && !containsFold(e.ActorName, f.ActorName) {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.StartDate != nil && e.CreatedAt.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && e.CreatedAt.After(*f.EndDate) {
		return false
	}
	return true
}

// Query is a filtered page request. Page and Limit are clamped by the engine.
type Query struct {
	Filter
	Page  int
	Limit int
}

// NewQuery returns the first default-sized page of filter
func NewQuery(filter Filter) Query {
	return Query{Filter: filter, Page: DefaultPage, Limit: DefaultLimit}
}

// Pagination echoes the effective window and the filter's total
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

// Result is one page of events
type Result struct {
	Data       []Event    `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// ActorCount is one row of the per-actor histogram
type ActorCount struct {
	ActorName string `json:"actorName"`
	Count     int64  `json:"count"`
}

// TypeCount is one row of the per-type histogram
type TypeCount struct {
	Type  Type  `json:"type"`
	Count int64 `json:"count"`
}

// Stats is the dashboard summary of the audit log
type Stats struct {
	TotalLogs   int64        `json:"totalLogs"`
	TodayLogs   int64        `json:"todayLogs"`
	UserStats   []ActorCount `json:"userStats"`
	ActionStats []TypeCount  `json:"actionStats"`
}

// ExportFormat is the serialization used by Export
type ExportFormat string

const (
	ExportFormatJSON   ExportFormat = "json"
	ExportFormatCSV    ExportFormat = "csv"
	ExportFormatNDJSON ExportFormat = "ndjson"
)

// ParseExportFormat maps a query value to a format, defaulting to JSON
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(s) {
	case "", ExportFormatJSON:
		return ExportFormatJSON, nil
	case ExportFormatCSV:
		return ExportFormatCSV, nil
	case ExportFormatNDJSON:
		return ExportFormatNDJSON, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}
