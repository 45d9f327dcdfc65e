package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/softwarehub/pkg/audit"
	"github.com/platinummonkey/softwarehub/pkg/auth"
)

// LoginResult is returned by a successful sign-in
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      *User     `json:"user"`
}

// AuthService handles sign-in and self-service account operations
type AuthService struct {
	users  *Service
	tokens *auth.TokenManager
}

// NewAuthService layers token issuing over a user service
func NewAuthService(users *Service, tokens *auth.TokenManager) *AuthService {
	return &AuthService{users: users, tokens: tokens}
}

// Login checks credentials and issues a token. Every failure is audited
// under the submitted email with no actor ID.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = NormalizeEmail(email)

	u, err := s.users.store.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		s.loginFailed(ctx, email, "Usuário não encontrado")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := s.users.hasher.Verify(u.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, err
		}
		s.loginFailed(ctx, email, "Senha incorreta")
		return nil, ErrInvalidCredentials
	}

	if u.Status != StatusActive {
		s.loginFailed(ctx, email, "Conta inativa")
		return nil, ErrInactive
	}

	now := s.users.now().UTC()
	if err := s.users.store.TouchLastAccess(ctx, u.ID, now); err != nil {
		s.users.logger.WithError(err).WithField("user_id", u.ID).Warn("failed to record last access")
	} else {
		u.LastAccess = &now
	}

	issued, err := s.tokens.Issue(u.Principal())
	if err != nil {
		return nil, err
	}

	s.users.record(ctx, u.Principal(), audit.TypeLogin, "Login no sistema",
		fmt.Sprintf("Usuário '%s' entrou no sistema", u.Name))
	return &LoginResult{
		Token:     issued.Token,
		ExpiresAt: issued.ExpiresAt.UTC(),
		User:      u,
	}, nil
}

// Logout records the end of a session. Tokens are stateless and stay valid until expiry.
func (s *AuthService) Logout(ctx context.Context, p auth.Principal) {
	s.users.record(ctx, p, audit.TypeLogin, "Logout do sistema",
		fmt.Sprintf("Usuário '%s' saiu do sistema", p.Name))
}

// Me returns the signed-in user's current record
func (s *AuthService) Me(ctx context.Context, p auth.Principal) (*User, error) {
	return s.users.store.Get(ctx, p.ID)
}

// UpdateProfile changes the signed-in user's name or email
func (s *AuthService) UpdateProfile(ctx context.Context, p auth.Principal, in ProfileInput) (*User, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	u, err := s.users.store.Get(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	if in.Email != nil {
		email := NormalizeEmail(*in.Email)
		if email != u.Email {
			taken, err := s.users.store.EmailTaken(ctx, email, u.ID)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, ErrEmailTaken
			}
		}
		u.Email = email
	}
	if in.Name != nil && *in.Name != u.Name {
		u.Name = *in.Name
		u.Avatar = Avatar(u.Name)
	}
	u.UpdatedAt = s.users.now().UTC()

	if err := s.users.store.Update(ctx, u); err != nil {
		return nil, err
	}
	s.users.forget(u.ID)

	s.users.record(ctx, u.Principal(), audit.TypeUpdate, "Atualização de perfil",
		fmt.Sprintf("Usuário '%s' atualizou o próprio perfil", u.Name))
	return u, nil
}

// ChangePassword replaces the signed-in user's password after checking the current one
func (s *AuthService) ChangePassword(ctx context.Context, p auth.Principal, current, next string) error {
	if err := validatePassword("newPassword", next); err != nil {
		return err
	}

	u, err := s.users.store.Get(ctx, p.ID)
	if err != nil {
		return err
	}
	if err := s.users.hasher.Verify(u.PasswordHash, current); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return ErrWrongPassword
		}
		return err
	}

	hash, err := s.users.hasher.Hash(next)
	if err != nil {
		return err
	}
	if err := s.users.store.SetPassword(ctx, u.ID, hash, s.users.now().UTC()); err != nil {
		return err
	}

	s.users.record(ctx, u.Principal(), audit.TypeUpdate, "Alteração de senha",
		fmt.Sprintf("Usuário '%s' alterou a própria senha", u.Name))
	return nil
}

// Refresh issues a new token from the user's current record, so role and
// name changes take effect
func (s *AuthService) Refresh(ctx context.Context, p auth.Principal) (*auth.IssuedToken, error) {
	u, err := s.users.store.Get(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if u.Status != StatusActive {
		return nil, ErrInactive
	}
	return s.tokens.Issue(u.Principal())
}

// Validate confirms the token's user still exists and is active
func (s *AuthService) Validate(ctx context.Context, p auth.Principal) (*User, error) {
	u, err := s.users.store.Get(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if u.Status != StatusActive {
		return nil, ErrInactive
	}
	return u, nil
}

func (s *AuthService) loginFailed(ctx context.Context, email, reason string) {
	s.users.writer.Record(ctx, audit.Entry{
		ActorName: email,
		Action:    "Falha de login",
		Details:   fmt.Sprintf("Tentativa de login para '%s': %s", email, reason),
		Type:      audit.TypeLogin,
	})
}
