package software

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/platinummonkey/softwarehub/pkg/audit"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100

	maxServicoLength     = 255
	maxDescriptionLength = 1000
	maxURLLength         = 500
	maxResponsibleLength = 500
	maxOnboardingLength  = 1000

	SSOIntegrated = "Integrado"
	MFAEnabled    = "Habilitado"
)

var ErrNotFound = errors.New("software not found")

// Allowed values of the enumerated inventory attributes
var (
	HostingValues        = []string{"OnPremises", "Cloud", "Cloudstack", "SaaSPublico"}
	AcessoValues         = []string{"Interno", "Externo"}
	NamedUserValues      = []string{"Sim", "SemAutenticacao", "Nao"}
	IntegratedUserValues = []string{"Sim", "Nao", "Integrador", "Ambos"}
	SSOValues            = []string{"Aplicavel", "Integrado", "PossivelUpgrade", "SemPossibilidade", "Desenvolver"}
	OffboardingValues    = []string{"RemoverManual", "RemocaoAutomatica", "NA"}
	LevelValues          = []string{"Alta", "Media", "Baixa"}
	LogsInfoValues       = []string{"LogsAcesso", "LogsSistema", "Ambos", "NenhumLog"}
	LogsRetentionValues  = []string{"Nenhum", "Semanal", "Mensal", "Diario"}
	MFAPolicyValues      = []string{"Sim", "Nao", "NaoAplicavel"}
	MFAValues            = []string{"NaoTemPossibilidade", "Habilitado", "NaoAplicavel"}
	YesNoValues          = []string{"Sim", "Nao"}
	RegionBlockValues    = []string{"Sim", "Nao", "NaoAplicavel", "NaoPossuiFuncionalidade"}
)

// Attributes are the user-editable fields of an inventory record
type Attributes struct {
	Servico         string   `json:"servico"`
	Description     string   `json:"description"`
	URL             string   `json:"url"`
	Hosting         string   `json:"hosting"`
	Acesso          string   `json:"acesso"`
	Responsible     string   `json:"responsible"`
	NamedUser       string   `json:"namedUser"`
	IntegratedUser  string   `json:"integratedUser"`
	SSO             string   `json:"sso"`
	Onboarding      string   `json:"onboarding"`
	Offboarding     string   `json:"offboarding"`
	OffboardingType string   `json:"offboardingType"`
	AffectedTeams   []string `json:"affectedTeams"`
	LogsInfo        string   `json:"logsInfo"`
	LogsRetention   string   `json:"logsRetention"`
	MFAPolicy       string   `json:"mfaPolicy"`
	MFA             string   `json:"mfa"`
	MFASMS          string   `json:"mfaSMS"`
	RegionBlock     string   `json:"regionBlock"`
	PasswordPolicy  string   `json:"passwordPolicy"`
	SensitiveData   string   `json:"sensitiveData"`
	Criticidade     string   `json:"criticidade"`
}

// Software is one application in the inventory
type Software struct {
	ID string `json:"id"`
	Attributes
	CreatedBy *string   `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Filters narrow the inventory list. Empty fields do not filter.
type Filters struct {
	Search      string `json:"search,omitempty"`
	Hosting     string `json:"hosting,omitempty"`
	Acesso      string `json:"acesso,omitempty"`
	SSO         string `json:"sso,omitempty"`
	MFA         string `json:"mfa,omitempty"`
	Criticidade string `json:"criticidade,omitempty"`
	Page        int    `json:"page,omitempty"`
	Limit       int    `json:"limit,omitempty"`
}

// Active reports whether any search or attribute filter is set
func (f Filters) Active() bool {
	return f.Search != "" || f.Hosting != "" || f.Acesso != "" || f.SSO != "" || f.MFA != "" || f.Criticidade != ""
}

// Describe renders the active filters for audit details, in a stable order
func (f Filters) Describe() string {
	var parts []string
	add := func(name, value string) {
		if value != "" {
			parts = append(parts, name+"="+value)
		}
	}
	add("busca", f.Search)
	add("hosting", f.Hosting)
	add("acesso", f.Acesso)
	add("sso", f.SSO)
	add("mfa", f.MFA)
	add("criticidade", f.Criticidade)
	return strings.Join(parts, ", ")
}

// ListResult is one page of the inventory
type ListResult struct {
	Softwares  []Software       `json:"softwares"`
	Pagination audit.Pagination `json:"pagination"`
}

// Stats summarizes the inventory for the dashboard
type Stats struct {
	Total         int64            `json:"total"`
	ByHosting     map[string]int64 `json:"byHosting"`
	ByCriticidade map[string]int64 `json:"byCriticidade"`
	ByAcesso      map[string]int64 `json:"byAcesso"`
	SSOIntegrated int64            `json:"ssoIntegrated"`
	MFAEnabled    int64            `json:"mfaEnabled"`
}

// ExportRequest selects records for a CSV export: the listed IDs when
// present, otherwise everything matching Filters
type ExportRequest struct {
	IDs     []string `json:"ids"`
	Filters Filters  `json:"filters"`
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

// Validate checks required fields, lengths and enumerations. Optional
// enumerations may be left empty.
func (a Attributes) Validate() error {
	details := map[string]string{}

	servico := strings.TrimSpace(a.Servico)
	switch {
	case servico == "":
		details["servico"] = "Serviço/Plataforma é obrigatório"
	case utf8.RuneCountInString(servico) > maxServicoLength:
		details["servico"] = fmt.Sprintf("Serviço/Plataforma deve ter no máximo %d caracteres", maxServicoLength)
	}
	if a.Hosting == "" {
		details["hosting"] = "Hosting é obrigatório"
	} else if !slices.Contains(HostingValues, a.Hosting) {
		details["hosting"] = "Hosting inválido"
	}

	maxLen := func(field, value string, n int) {
		if utf8.RuneCountInString(value) > n {
			details[field] = fmt.Sprintf("Deve ter no máximo %d caracteres", n)
		}
	}
	maxLen("description", a.Description, maxDescriptionLength)
	maxLen("url", a.URL, maxURLLength)
	maxLen("responsible", a.Responsible, maxResponsibleLength)
	maxLen("onboarding", a.Onboarding, maxOnboardingLength)

	enum := func(field, value string, allowed []string) {
		if value != "" && !slices.Contains(allowed, value) {
			details[field] = "Valor inválido"
		}
	}
	enum("acesso", a.Acesso, AcessoValues)
	enum("namedUser", a.NamedUser, NamedUserValues)
	enum("integratedUser", a.IntegratedUser, IntegratedUserValues)
	enum("sso", a.SSO, SSOValues)
	enum("offboarding", a.Offboarding, OffboardingValues)
	enum("offboardingType", a.OffboardingType, LevelValues)
	enum("logsInfo", a.LogsInfo, LogsInfoValues)
	enum("logsRetention", a.LogsRetention, LogsRetentionValues)
	enum("mfaPolicy", a.MFAPolicy, MFAPolicyValues)
	enum("mfa", a.MFA, MFAValues)
	enum("mfaSMS", a.MFASMS, YesNoValues)
	enum("regionBlock", a.RegionBlock, RegionBlockValues)
	enum("passwordPolicy", a.PasswordPolicy, YesNoValues)
	enum("sensitiveData", a.SensitiveData, YesNoValues)
	enum("criticidade", a.Criticidade, LevelValues)

	if len(details) > 0 {
		return &ValidationError{Details: details}
	}
	return nil
}

// normalize trims free text and replaces a nil team list
func (a *Attributes) normalize() {
	a.Servico = strings.TrimSpace(a.Servico)
	a.Description = strings.TrimSpace(a.Description)
	a.URL = strings.TrimSpace(a.URL)
	a.Responsible = strings.TrimSpace(a.Responsible)
	if a.AffectedTeams == nil {
		a.AffectedTeams = []string{}
	}
}
