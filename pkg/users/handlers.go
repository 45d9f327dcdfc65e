package users

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/softwarehub/pkg/auth"
	"github.com/platinummonkey/softwarehub/pkg/httputil"
	"github.com/platinummonkey/softwarehub/pkg/observability"
)

// Handlers serves the user administration and auth APIs
type Handlers struct {
	users  *Service
	auth   *AuthService
	logger *observability.Logger
}

// NewHandlers creates user handlers
func NewHandlers(users *Service, authService *AuthService, logger *observability.Logger) *Handlers {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Handlers{users: users, auth: authService, logger: logger}
}

// RegisterUserRoutes mounts user administration on router, normally a
// /api/users subrouter already guarded for admins
func (h *Handlers) RegisterUserRoutes(router *mux.Router) {
	router.HandleFunc("", h.list).Methods(http.MethodGet)
	router.HandleFunc("/", h.list).Methods(http.MethodGet)
	router.HandleFunc("/stats", h.stats).Methods(http.MethodGet)
	router.HandleFunc("/{id}", h.get).Methods(http.MethodGet)
	router.HandleFunc("", h.create).Methods(http.MethodPost)
	router.HandleFunc("/", h.create).Methods(http.MethodPost)
	router.HandleFunc("/{id}", h.update).Methods(http.MethodPut)
	router.HandleFunc("/{id}/reset-password", h.resetPassword).Methods(http.MethodPut)
	router.HandleFunc("/{id}", h.delete).Methods(http.MethodDelete)
}

// RegisterAuthRoutes mounts the auth API on router, normally /api/auth.
// Every route except login runs behind authenticate.
func (h *Handlers) RegisterAuthRoutes(router *mux.Router, authenticate func(http.Handler) http.Handler) {
	router.HandleFunc("/login", h.login).Methods(http.MethodPost)

	protected := func(fn http.HandlerFunc) http.Handler { return authenticate(fn) }
	router.Handle("/logout", protected(h.logout)).Methods(http.MethodPost)
	router.Handle("/me", protected(h.me)).Methods(http.MethodGet)
	router.Handle("/profile", protected(h.updateProfile)).Methods(http.MethodPut)
	router.Handle("/password", protected(h.changePassword)).Methods(http.MethodPut)
	router.Handle("/refresh", protected(h.refresh)).Methods(http.MethodPost)
	router.Handle("/validate", protected(h.validate)).Methods(http.MethodPost)
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	params := ListParams{
		Search: httputil.ParseQueryString(r, "search", ""),
		Role:   auth.Role(httputil.ParseQueryString(r, "role", "")),
		Status: Status(httputil.ParseQueryString(r, "status", "")),
		Page:   httputil.QueryIntOrDefault(r, "page", 1),
		Limit:  httputil.QueryIntOrDefault(r, "limit", DefaultLimit),
	}

	result, err := h.users.List(r.Context(), params)
	if err != nil {
		h.writeError(w, r, "Failed to list users", err)
		return
	}
	_ = httputil.WriteSuccess(w, result)
}

func (h *Handlers) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.users.Stats(r.Context())
	if err != nil {
		h.writeError(w, r, "Failed to get user statistics", err)
		return
	}
	_ = httputil.WriteSuccess(w, stats)
}

func (h *Handlers) get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	u, err := h.users.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "Failed to get user", err)
		return
	}
	_ = httputil.WriteSuccess(w, u)
}

func (h *Handlers) create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}
	u, err := h.users.Create(r.Context(), principal(r), in)
	if err != nil {
		h.writeError(w, r, "Failed to create user", err)
		return
	}
	_ = httputil.WriteCreated(w, u)
}

func (h *Handlers) update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var in UpdateInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}
	u, err := h.users.Update(r.Context(), principal(r), id, in)
	if err != nil {
		h.writeError(w, r, "Failed to update user", err)
		return
	}
	_ = httputil.WriteSuccess(w, u)
}

func (h *Handlers) resetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		NewPassword string `json:"newPassword"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := h.users.ResetPassword(r.Context(), principal(r), id, req.NewPassword); err != nil {
		h.writeError(w, r, "Failed to reset password", err)
		return
	}
	_ = httputil.WriteMessage(w, "Password reset successfully")
}

func (h *Handlers) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	if err := h.users.Delete(r.Context(), principal(r), id); err != nil {
		h.writeError(w, r, "Failed to delete user", err)
		return
	}
	_ = httputil.WriteMessage(w, "User deleted successfully")
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	details := map[string]string{}
	if !validEmail(strings.TrimSpace(req.Email)) {
		details["email"] = "Email inválido"
	}
	if req.Password == "" {
		details["password"] = "Senha é obrigatória"
	}
	if len(details) > 0 {
		httputil.WriteValidationError(w, details)
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, "Login failed", err)
		return
	}
	_ = httputil.WriteSuccess(w, result)
}

func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	h.auth.Logout(r.Context(), principal(r))
	_ = httputil.WriteMessage(w, "Logged out successfully")
}

func (h *Handlers) me(w http.ResponseWriter, r *http.Request) {
	u, err := h.auth.Me(r.Context(), principal(r))
	if err != nil {
		h.writeError(w, r, "Failed to get profile", err)
		return
	}
	_ = httputil.WriteSuccess(w, u)
}

func (h *Handlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	var in ProfileInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}
	u, err := h.auth.UpdateProfile(r.Context(), principal(r), in)
	if err != nil {
		h.writeError(w, r, "Failed to update profile", err)
		return
	}
	_ = httputil.WriteSuccess(w, u)
}

func (h *Handlers) changePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.CurrentPassword == "" {
		httputil.WriteValidationError(w, map[string]string{"currentPassword": "Senha atual é obrigatória"})
		return
	}
	if err := h.auth.ChangePassword(r.Context(), principal(r), req.CurrentPassword, req.NewPassword); err != nil {
		h.writeError(w, r, "Failed to change password", err)
		return
	}
	_ = httputil.WriteMessage(w, "Password changed successfully")
}

func (h *Handlers) refresh(w http.ResponseWriter, r *http.Request) {
	issued, err := h.auth.Refresh(r.Context(), principal(r))
	if err != nil {
		h.writeError(w, r, "Failed to refresh token", err)
		return
	}
	_ = httputil.WriteSuccess(w, issued)
}

func (h *Handlers) validate(w http.ResponseWriter, r *http.Request) {
	u, err := h.auth.Validate(r.Context(), principal(r))
	if err != nil {
		h.writeError(w, r, "Failed to validate token", err)
		return
	}
	_ = httputil.WriteSuccess(w, map[string]interface{}{"valid": true, "user": u})
}

// writeError maps service errors to responses. Anything unrecognized is a
// 500 under label.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, label string, err error) {
	if verr, ok := IsValidation(err); ok {
		httputil.WriteValidationError(w, verr.Details)
		return
	}

	switch {
	case errors.Is(err, ErrNotFound):
		httputil.WriteNotFoundError(w, "User not found")
	case errors.Is(err, ErrEmailTaken):
		httputil.WriteBadRequest(w, "Email already in use")
	case errors.Is(err, ErrSelfDelete):
		httputil.WriteBadRequest(w, "Cannot delete your own account")
	case errors.Is(err, ErrWrongPassword):
		httputil.WriteBadRequest(w, "Current password is incorrect")
	case errors.Is(err, ErrInvalidCredentials):
		httputil.WriteUnauthorized(w, "Invalid credentials", "Email ou senha incorretos")
	case errors.Is(err, ErrInactive):
		httputil.WriteUnauthorized(w, "Account is inactive", "Usuário inativo")
	default:
		observability.FromContext(r.Context(), h.logger).WithError(err).Error(strings.ToLower(label))
		httputil.WriteFailure(w, label, err)
	}
}

func principal(r *http.Request) auth.Principal {
	p, _ := auth.PrincipalFromContext(r.Context())
	return p
}
