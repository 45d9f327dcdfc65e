package auth

import (
	"context"
	"time"

	"github.com/platinummonkey/softwarehub/pkg/contextkeys"
)

// Role is a user's access level
type Role string

const (
	RoleAdmin  Role = "Admin"        // Full access, including users and audit
	RoleEditor Role = "Editor"       // Can create, update and delete software
	RoleViewer Role = "Visualizador" // Read-only access
)

// Roles lists every role from most to least privileged
var Roles = []Role{RoleAdmin, RoleEditor, RoleViewer}

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r.rank() > 0
}

func (r Role) rank() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleEditor:
		return 2
	case RoleViewer:
		return 1
	}
	return 0
}

// AtLeast reports whether r is as privileged as min
func (r Role) AtLeast(min Role) bool {
	return r.Valid() && r.rank() >= min.rank()
}

// Principal is the authenticated user behind a request
type Principal struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// ActorID returns the principal's ID for audit attribution, nil when anonymous
func (p Principal) ActorID() *string {
	if p.ID == "" {
		return nil
	}
	id := p.ID
	return &id
}

// AuthContext holds authenticated request information
type AuthContext struct {
	Principal Principal
	TokenID   string
	ExpiresAt time.Time
}

// HasRole reports whether the principal holds any of roles
func (ac *AuthContext) HasRole(roles ...Role) bool {
	if ac == nil {
		return false
	}
	for _, role := range roles {
		if ac.Principal.Role == role {
			return true
		}
	}
	return false
}

// WithAuthContext stores ac in ctx, along with the user ID for log correlation
func WithAuthContext(ctx context.Context, ac *AuthContext) context.Context {
	ctx = contextkeys.WithAuth(ctx, ac)
	return contextkeys.WithUserID(ctx, ac.Principal.ID)
}

// FromContext returns the request's auth context, nil when unauthenticated
func FromContext(ctx context.Context) *AuthContext {
	ac, _ := ctx.Value(contextkeys.AuthKey).(*AuthContext)
	return ac
}

// PrincipalFromContext returns the authenticated principal, if any
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	ac := FromContext(ctx)
	if ac == nil {
		return Principal{}, false
	}
	return ac.Principal, true
}
