package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken covers malformed, badly signed and expired tokens
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrExpiredToken is wrapped by ErrInvalidToken for expired tokens
	ErrExpiredToken = errors.New("token has expired")
)

// Claims is the JWT payload of an access token
type Claims struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
	jwt.RegisteredClaims
}

// Principal returns the user the claims were issued for
func (c *Claims) Principal() Principal {
	return Principal{ID: c.ID, Name: c.Name, Email: c.Email, Role: c.Role}
}

// IssuedToken is a signed token with its expiry
type IssuedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// TokenManager issues and validates HS256 access tokens
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a token manager. A non-positive ttl means 24h.
func NewTokenManager(secret, issuer string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL returns the lifetime of issued tokens
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// Issue signs a new token for p
func (tm *TokenManager) Issue(p Principal) (*IssuedToken, error) {
	now := tm.now()
	expiresAt := now.Add(tm.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ID:    p.ID,
		Name:  p.Name,
		Email: p.Email,
		Role:  p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			Issuer:    tm.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	})

	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &IssuedToken{Token: signed, ExpiresAt: expiresAt}, nil
}

// Validate parses and verifies a token. Every failure wraps ErrInvalidToken.
func (tm *TokenManager) Validate(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(tm.now),
		jwt.WithExpirationRequired(),
	}
	if tm.issuer != "" {
		opts = append(opts, jwt.WithIssuer(tm.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return tm.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrExpiredToken)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.ID == "" || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
