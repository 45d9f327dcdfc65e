package users

import (
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/platinummonkey/softwarehub/pkg/audit"
	"github.com/platinummonkey/softwarehub/pkg/auth"
)

// Status is whether an account may sign in
type Status string

const (
	StatusActive   Status = "Ativo"
	StatusInactive Status = "Inativo"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

const (
	DefaultLimit      = 10
	MaxLimit          = 100
	MinPasswordLength = 6
	MaxNameLength     = 255
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already in use")
	ErrSelfDelete         = errors.New("cannot delete your own account")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactive           = errors.New("account is inactive")
	ErrWrongPassword      = errors.New("current password is incorrect")
)

// User is an account of the inventory application
type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Role         auth.Role  `json:"role"`
	Status       Status     `json:"status"`
	Avatar       string     `json:"avatar"`
	LastAccess   *time.Time `json:"lastAccess"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	PasswordHash string     `json:"-"`
}

// Principal returns the identity tokens are issued for
func (u *User) Principal() auth.Principal {
	return auth.Principal{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// Actor returns the projection attached to audit events
func (u *User) Actor() audit.Actor {
	return audit.Actor{ID: u.ID, Name: u.Name, Email: u.Email}
}

// CreateInput is the body of POST /api/users
type CreateInput struct {
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Password string    `json:"password"`
	Role     auth.Role `json:"role"`
	Status   Status    `json:"status"`
}

// UpdateInput is a partial update. Nil fields are left unchanged.
type UpdateInput struct {
	Name   *string    `json:"name,omitempty"`
	Email  *string    `json:"email,omitempty"`
	Role   *auth.Role `json:"role,omitempty"`
	Status *Status    `json:"status,omitempty"`
}

// ProfileInput is what users may change about themselves
type ProfileInput struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}

// ListParams filters the user list. Zero values do not filter.
type ListParams struct {
	Search string
	Role   auth.Role
	Status Status
	Page   int
	Limit  int
}

// ListResult is one page of users
type ListResult struct {
	Users      []User           `json:"users"`
	Pagination audit.Pagination `json:"pagination"`
}

// Stats summarizes the user base
type Stats struct {
	TotalUsers       int64 `json:"totalUsers"`
	ActiveUsers      int64 `json:"activeUsers"`
	InactiveUsers    int64 `json:"inactiveUsers"`
	AdminUsers       int64 `json:"adminUsers"`
	EditorUsers      int64 `json:"editorUsers"`
	ViewerUsers      int64 `json:"viewerUsers"`
	ActivePercentage int64 `json:"activePercentage"`
}

// ValidationError carries per-field messages for a 400 response
type ValidationError struct {
	Details map[string]string
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Details))
	for field := range e.Details {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fmt.Sprintf("validation failed: %s", strings.Join(fields, ", "))
}

type validator map[string]string

func (v validator) check(ok bool, field, message string) {
	if !ok {
		if _, exists := v[field]; !exists {
			v[field] = message
		}
	}
}

func (v validator) err() error {
	if len(v) == 0 {
		return nil
	}
	return &ValidationError{Details: v}
}

// Validate checks a create request
func (in CreateInput) Validate() error {
	v := validator{}
	v.check(strings.TrimSpace(in.Name) != "", "name", "Nome é obrigatório")
	v.check(validEmail(in.Email), "email", "Email inválido")
	v.check(in.Role.Valid(), "role", "Perfil inválido")
	v.check(in.Status.Valid(), "status", "Status inválido")
	v.check(utf8.RuneCountInString(in.Password) >= MinPasswordLength, "password", "Senha deve ter pelo menos 6 caracteres")
	return v.err()
}

// Validate checks the fields present in an update
func (in UpdateInput) Validate() error {
	v := validator{}
	if in.Name != nil {
		v.check(strings.TrimSpace(*in.Name) != "", "name", "Nome é obrigatório")
	}
	if in.Email != nil {
		v.check(validEmail(*in.Email), "email", "Email inválido")
	}
	if in.Role != nil {
		v.check(in.Role.Valid(), "role", "Perfil inválido")
	}
	if in.Status != nil {
		v.check(in.Status.Valid(), "status", "Status inválido")
	}
	return v.err()
}

// Validate checks a profile update
func (in ProfileInput) Validate() error {
	v := validator{}
	if in.Name != nil {
		n := utf8.RuneCountInString(strings.TrimSpace(*in.Name))
		v.check(n >= 2 && n <= MaxNameLength, "name", "Nome deve ter entre 2 e 255 caracteres")
	}
	if in.Email != nil {
		v.check(validEmail(*in.Email), "email", "Email inválido")
	}
	return v.err()
}

func validatePassword(field, password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return &ValidationError{Details: map[string]string{field: "Nova senha deve ter pelo menos 6 caracteres"}}
	}
	return nil
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == strings.TrimSpace(s) && strings.Contains(addr.Address, "@")
}

// NormalizeEmail lowercases and trims an address before storage or lookup
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Avatar returns the initials of up to the first two words of name
func Avatar(name string) string {
	var b strings.Builder
	n := 0
	for _, word := range strings.Fields(name) {
		r, _ := utf8.DecodeRuneInString(word)
		b.WriteRune(unicode.ToUpper(r))
		n++
		if n == 2 {
			break
		}
	}
	return b.String()
}
