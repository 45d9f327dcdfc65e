package software

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"
)

var csvHeader = []string{
	"ID", "Serviço", "Descrição", "URL", "Hosting", "Acesso", "Responsável", "Usuário Nominal",
	"Usuário Integrado", "SSO", "Onboarding", "Offboarding", "Tipo de Offboarding", "Times Afetados",
	"Logs", "Retenção de Logs", "Política MFA", "MFA", "MFA SMS", "Bloqueio Regional",
	"Política de Senha", "Dados Sensíveis", "Criticidade", "Criado em", "Atualizado em",
}

// WriteCSV encodes items as a CSV document with a header row. Affected
// teams are joined with "; ".
func WriteCSV(w io.Writer, items []Software) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, sw := range items {
		a := sw.Attributes
		row := []string{
			sw.ID, a.Servico, a.Description, a.URL, a.Hosting, a.Acesso, a.Responsible, a.NamedUser,
			a.IntegratedUser, a.SSO, a.Onboarding, a.Offboarding, a.OffboardingType,
			strings.Join(a.AffectedTeams, "; "),
			a.LogsInfo, a.LogsRetention, a.MFAPolicy, a.MFA, a.MFASMS, a.RegionBlock,
			a.PasswordPolicy, a.SensitiveData, a.Criticidade,
			sw.CreatedAt.UTC().Format(time.RFC3339),
			sw.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	return nil
}
