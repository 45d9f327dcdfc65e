package software

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/softwarehub/pkg/auth"
	"github.com/platinummonkey/softwarehub/pkg/httputil"
	"github.com/platinummonkey/softwarehub/pkg/middleware"
	"github.com/platinummonkey/softwarehub/pkg/observability"
)

// Handlers serves the inventory API
type Handlers struct {
	service *Service
	logger  *observability.Logger
}

// NewHandlers creates software handlers
func NewHandlers(service *Service, logger *observability.Logger) *Handlers {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Handlers{service: service, logger: logger}
}

// RegisterRoutes mounts the inventory on router, normally an authenticated
// /api/softwares subrouter. Mutations additionally require an editor.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	editor := func(fn http.HandlerFunc) http.Handler { return middleware.RequireEditor(fn) }

	router.HandleFunc("", h.list).Methods(http.MethodGet)
	router.HandleFunc("/", h.list).Methods(http.MethodGet)
	router.HandleFunc("/stats", h.stats).Methods(http.MethodGet)
	router.HandleFunc("/export", h.export).Methods(http.MethodPost)
	router.HandleFunc("/{id}", h.get).Methods(http.MethodGet)
	router.Handle("", editor(h.create)).Methods(http.MethodPost)
	router.Handle("/", editor(h.create)).Methods(http.MethodPost)
	router.Handle("/{id}", editor(h.update)).Methods(http.MethodPut)
	router.Handle("/{id}", editor(h.delete)).Methods(http.MethodDelete)
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	filters := Filters{
		Search:      httputil.ParseQueryString(r, "search", ""),
		Hosting:     httputil.ParseQueryString(r, "hosting", ""),
		Acesso:      httputil.ParseQueryString(r, "acesso", ""),
		SSO:         httputil.ParseQueryString(r, "sso", ""),
		MFA:         httputil.ParseQueryString(r, "mfa", ""),
		Criticidade: httputil.ParseQueryString(r, "criticidade", ""),
		Page:        httputil.QueryIntOrDefault(r, "page", 1),
		Limit:       httputil.QueryIntOrDefault(r, "limit", DefaultLimit),
	}

	result, err := h.service.List(r.Context(), principal(r), filters)
	if err != nil {
		h.writeError(w, r, "Failed to list softwares", err)
		return
	}
	_ = httputil.WriteSuccess(w, result)
}

func (h *Handlers) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.writeError(w, r, "Failed to get software statistics", err)
		return
	}
	_ = httputil.WriteSuccess(w, stats)
}

func (h *Handlers) get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	sw, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "Failed to get software", err)
		return
	}
	_ = httputil.WriteSuccess(w, sw)
}

func (h *Handlers) create(w http.ResponseWriter, r *http.Request) {
	var attrs Attributes
	if !httputil.ParseJSONOrError(w, r, &attrs) {
		return
	}
	sw, err := h.service.Create(r.Context(), principal(r), attrs)
	if err != nil {
		h.writeError(w, r, "Failed to create software", err)
		return
	}
	_ = httputil.WriteCreated(w, sw)
}

func (h *Handlers) update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var attrs Attributes
	if !httputil.ParseJSONOrError(w, r, &attrs) {
		return
	}
	sw, err := h.service.Update(r.Context(), principal(r), id, attrs)
	if err != nil {
		h.writeError(w, r, "Failed to update software", err)
		return
	}
	_ = httputil.WriteSuccess(w, sw)
}

func (h *Handlers) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), principal(r), id); err != nil {
		h.writeError(w, r, "Failed to delete software", err)
		return
	}
	_ = httputil.WriteMessage(w, "Software deleted successfully")
}

// export handles POST /api/softwares/export with an optional
// {"ids":[...],"filters":{...}} body
func (h *Handlers) export(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteBadRequest(w, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	items, err := h.service.Export(r.Context(), principal(r), req)
	if err != nil {
		h.writeError(w, r, "Failed to export softwares", err)
		return
	}

	filename := fmt.Sprintf("softwares-%s.csv", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)

	if err := WriteCSV(w, items); err != nil {
		observability.FromContext(r.Context(), h.logger).WithError(err).Error("failed to write software export")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, label string, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		httputil.WriteValidationError(w, verr.Details)
	case errors.Is(err, ErrNotFound):
		httputil.WriteNotFoundError(w, "Software not found")
	default:
		observability.FromContext(r.Context(), h.logger).WithError(err).Error(strings.ToLower(label))
		httputil.WriteFailure(w, label, err)
	}
}

func principal(r *http.Request) auth.Principal {
	p, _ := auth.PrincipalFromContext(r.Context())
	return p
}
