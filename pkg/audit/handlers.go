package audit

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/softwarehub/pkg/auth"
	"github.com/platinummonkey/softwarehub/pkg/httputil"
	"github.com/platinummonkey/softwarehub/pkg/observability"
)

// Handlers serves the audit log API
type Handlers struct {
	engine *QueryEngine
	writer Writer
	logger *observability.Logger
}

// NewHandlers creates audit handlers. writer records exports and may be nil.
func NewHandlers(engine *QueryEngine, writer Writer, logger *observability.Logger) *Handlers {
	if writer == nil {
		writer = NopWriter{}
	}
	return &Handlers{engine: engine, writer: writer, logger: logger}
}

// RegisterRoutes mounts the audit routes on router, normally a /api/audit
// subrouter already guarded for admins
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("", h.list).Methods(http.MethodGet)
	router.HandleFunc("/", h.list).Methods(http.MethodGet)
	router.HandleFunc("/stats", h.stats).Methods(http.MethodGet)
	router.HandleFunc("/export", h.export).Methods(http.MethodGet)
}

// list handles GET /api/audit
func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	q := Query{
		Filter: h.parseFilter(r),
		Page:   httputil.QueryIntOrDefault(r, "page", DefaultPage),
		Limit:  httputil.QueryIntOrDefault(r, "limit", DefaultLimit),
	}

	result, err := h.engine.Query(r.Context(), q)
	if err != nil {
		observability.FromContext(r.Context(), h.logger).WithError(err).Error("failed to fetch audit logs")
		httputil.WriteFailure(w, "Failed to fetch audit logs", err)
		return
	}

	_ = httputil.WriteSuccess(w, result)
}

// stats handles GET /api/audit/stats
func (h *Handlers) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		observability.FromContext(r.Context(), h.logger).WithError(err).Error("failed to fetch audit stats")
		httputil.WriteFailure(w, "Failed to fetch audit statistics", err)
		return
	}

	_ = httputil.WriteSuccess(w, stats)
}

// export handles GET /api/audit/export?format=json|csv|ndjson
func (h *Handlers) export(w http.ResponseWriter, r *http.Request) {
	format, err := ParseExportFormat(httputil.ParseQueryString(r, "format", ""))
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	filter := h.parseFilter(r)
	events, err := h.engine.Export(r.Context(), filter)
	if err != nil {
		observability.FromContext(r.Context(), h.logger).WithError(err).Error("failed to export audit logs")
		httputil.WriteFailure(w, "Failed to export audit logs", err)
		return
	}

	if p, ok := auth.PrincipalFromContext(r.Context()); ok {
		h.writer.Record(r.Context(), Entry{
			ActorID:   p.ActorID(),
			ActorName: p.Name,
			Action:    "Exportação de logs",
			Details:   fmt.Sprintf("%d registros de auditoria exportados em %s", len(events), format),
			Type:      TypeExport,
		})
	}

	contentType, ext := format.ContentType()
	filename := fmt.Sprintf("audit-logs-%s.%s", time.Now().In(h.engine.Location()).Format("2006-01-02"), ext)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)

	if err := Encode(w, format, events); err != nil {
		observability.FromContext(r.Context(), h.logger).WithError(err).Error("failed to write audit export")
	}
}

// parseFilter reads the filter query parameters. Unparseable dates are
// ignored. userId and userName are accepted as aliases.
func (h *Handlers) parseFilter(r *http.Request) Filter {
	loc := h.engine.Location()
	return Filter{
		ActorID:   firstParam(r, "actorId", "userId"),
		ActorName: firstParam(r, "actorName", "userName"),
		Type:      Type(httputil.ParseQueryString(r, "type", "")),
		StartDate: ParseDateBound(httputil.ParseQueryString(r, "startDate", ""), loc, false),
		EndDate:   ParseDateBound(httputil.ParseQueryString(r, "endDate", ""), loc, true),
	}
}

func firstParam(r *http.Request, keys ...string) string {
	for _, key := range keys {
		if v := httputil.ParseQueryString(r, key, ""); v != "" {
			return v
		}
	}
	return ""
}
