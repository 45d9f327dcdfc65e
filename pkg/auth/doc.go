// Package auth provides authentication primitives for SoftwareHub.
//
// # Roles
//
// Three roles exist, ordered by privilege:
//
//	Admin        - users, audit log and everything below
//	Editor       - create, update and delete software records
//	Visualizador - read-only access
//
// # Tokens
//
// TokenManager issues HS256 JWTs carrying the user's id, name, email and
// role. Validation pins the signing method and issuer and requires an
// expiry. Every validation failure wraps ErrInvalidToken.
//
//	tm := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
//	issued, err := tm.Issue(principal)
//	claims, err := tm.Validate(issued.Token)
//
// # Passwords
//
// PasswordHasher wraps bcrypt with a configurable cost.
//
// # Request context
//
// The authentication middleware stores an *AuthContext with WithAuthContext;
// handlers and services read it back with FromContext or PrincipalFromContext.
package auth
