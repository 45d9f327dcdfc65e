package middleware

import (
	"net/http"
	"strings"

	"github.com/platinummonkey/softwarehub/pkg/auth"
	"github.com/platinummonkey/softwarehub/pkg/httputil"
	"github.com/platinummonkey/softwarehub/pkg/observability"
)

// AuthMiddleware authenticates requests by their Bearer JWT
type AuthMiddleware struct {
	tokens *auth.TokenManager
	logger *observability.Logger
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokens *auth.TokenManager, logger *observability.Logger) *AuthMiddleware {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &AuthMiddleware{tokens: tokens, logger: logger}
}

// Handler rejects requests without a valid token and stores the caller's
// AuthContext for downstream handlers
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			httputil.WriteUnauthorized(w, "Access token required", "Token de acesso é obrigatório")
			return
		}

		claims, err := m.tokens.Validate(token)
		if err != nil {
			observability.FromContext(r.Context(), m.logger).WithError(err).Debug("rejected bearer token")
			httputil.WriteForbidden(w, "Invalid or expired token", "Token inválido ou expirado")
			return
		}

		authCtx := &auth.AuthContext{
			Principal: claims.Principal(),
			TokenID:   claims.RegisteredClaims.ID,
		}
		if claims.ExpiresAt != nil {
			authCtx.ExpiresAt = claims.ExpiresAt.Time
		}

		next.ServeHTTP(w, r.WithContext(auth.WithAuthContext(r.Context(), authCtx)))
	})
}

// bearerToken extracts the token of an "Authorization: Bearer <token>" header
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// GetAuthContext extracts auth context from request
func GetAuthContext(r *http.Request) *auth.AuthContext {
	return auth.FromContext(r.Context())
}

// RequireRole creates middleware that admits only the given roles
func RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r)
			if authCtx == nil {
				httputil.WriteUnauthorized(w, "Authentication required", "Autenticação necessária")
				return
			}

			if !authCtx.HasRole(roles...) {
				httputil.WriteForbidden(w, "Insufficient permissions", "Permissões insuficientes")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin admits administrators only
func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(auth.RoleAdmin)(next)
}

// RequireEditor admits editors and administrators
func RequireEditor(next http.Handler) http.Handler {
	return RequireRole(auth.RoleAdmin, auth.RoleEditor)(next)
}
