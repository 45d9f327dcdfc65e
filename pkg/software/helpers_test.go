package software

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/platinummonkey/softwarehub/pkg/audit"
	"github.com/platinummonkey/softwarehub/pkg/auth"
	"github.com/platinummonkey/softwarehub/pkg/storage/storagetest"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

var (
	editor = auth.Principal{ID: "5d1f5a2c-1111-4000-8000-000000000002", Name: "Edu Editor", Email: "edu@softwarehub.com", Role: auth.RoleEditor}
	viewer = auth.Principal{ID: "5d1f5a2c-1111-4000-8000-000000000003", Name: "Vera Viewer", Email: "vera@softwarehub.com", Role: auth.RoleViewer}
)

type recordingWriter struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (w *recordingWriter) Record(_ context.Context, e audit.Entry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, e)
}

func (w *recordingWriter) last(t *testing.T) audit.Entry {
	t.Helper()
	w.mu.Lock()
	defer w.mu.Unlock()
	require.NotEmpty(t, w.entries)
	return w.entries[len(w.entries)-1]
}

func (w *recordingWriter) len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

func newTestService(t *testing.T) (*Service, *recordingWriter) {
	t.Helper()
	writer := &recordingWriter{}
	svc := NewService(NewStore(storagetest.NewSQLite(t), nil), writer)

	clock := baseTime
	svc.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return svc, writer
}

func office() Attributes {
	return Attributes{
		Servico:       "Microsoft Office 365",
		Description:   "Suite de produtividade",
		URL:           "https://office.com",
		Hosting:       "SaaSPublico",
		Acesso:        "Externo",
		Responsible:   "TI Corporativa",
		SSO:           "Integrado",
		AffectedTeams: []string{"Financeiro", "RH"},
		MFA:           "Habilitado",
		Criticidade:   "Alta",
	}
}

func seed(t *testing.T, svc *Service, attrs ...Attributes) []*Software {
	t.Helper()
	out := make([]*Software, 0, len(attrs))
	for _, a := range attrs {
		sw, err := svc.Create(context.Background(), editor, a)
		require.NoError(t, err)
		out = append(out, sw)
	}
	return out
}
