package software

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/softwarehub/pkg/audit"
	"github.com/platinummonkey/softwarehub/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(svc *Service) *mux.Router {
	router := mux.NewRouter()
	NewHandlers(svc, nil).RegisterRoutes(router.PathPrefix("/api/softwares").Subrouter())
	return router
}

func do(router http.Handler, p *auth.Principal, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if p != nil {
		req = req.WithContext(auth.WithAuthContext(req.Context(), &auth.AuthContext{Principal: *p}))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlers_CRUD(t *testing.T) {
	svc, _ := newTestService(t)
	router := newRouter(svc)

	body, err := json.Marshal(office())
	require.NoError(t, err)

	rec := do(router, &editor, http.MethodPost, "/api/softwares", string(body))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created Software
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Microsoft Office 365", created.Servico)

	rec = do(router, &viewer, http.MethodGet, "/api/softwares/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"affectedTeams":["Financeiro","RH"]`)

	rec = do(router, &editor, http.MethodPut, "/api/softwares/"+created.ID, `{"servico":"Office","hosting":"Cloud"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"servico":"Office"`)

	rec = do(router, &editor, http.MethodPut, "/api/softwares/"+created.ID, `{"servico":"","hosting":"Nuvem"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"Validation failed"`)
	assert.Contains(t, rec.Body.String(), "Hosting inválido")

	rec = do(router, &editor, http.MethodDelete, "/api/softwares/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Software deleted successfully"}`, rec.Body.String())

	rec = do(router, &viewer, http.MethodGet, "/api/softwares/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Software not found"}`, rec.Body.String())
}

func TestHandlers_MutationsRequireEditor(t *testing.T) {
	svc, _ := newTestService(t)
	router := newRouter(svc)
	sw := seed(t, svc, office())[0]

	for _, tc := range []struct{ method, target string }{
		{http.MethodPost, "/api/softwares"},
		{http.MethodPut, "/api/softwares/" + sw.ID},
		{http.MethodDelete, "/api/softwares/" + sw.ID},
	} {
		rec := do(router, &viewer, tc.method, tc.target, `{"servico":"x","hosting":"Cloud"}`)
		assert.Equal(t, http.StatusForbidden, rec.Code, tc.method)
	}

	admin := auth.Principal{ID: editor.ID, Name: "Ana", Role: auth.RoleAdmin}
	rec := do(router, &admin, http.MethodDelete, "/api/softwares/"+sw.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlers_ListAndStats(t *testing.T) {
	svc, writer := newTestService(t)
	router := newRouter(svc)
	seed(t, svc, office(), Attributes{Servico: "Jira", Hosting: "Cloud"})

	rec := do(router, &viewer, http.MethodGet, "/api/softwares?hosting=Cloud&page=x", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res ListResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Softwares, 1)
	assert.Equal(t, audit.Pagination{Page: 1, Limit: DefaultLimit, Total: 1, Pages: 1}, res.Pagination)
	assert.Equal(t, audit.TypeFilter, writer.last(t).Type)

	rec = do(router, &viewer, http.MethodGet, "/api/softwares/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.EqualValues(t, 2, stats.Total)
}

func TestHandlers_Export(t *testing.T) {
	svc, writer := newTestService(t)
	router := newRouter(svc)
	items := seed(t, svc, office(), Attributes{Servico: "Jira", Hosting: "Cloud"})

	rec := do(router, &viewer, http.MethodPost, "/api/softwares/export", `{"ids":["`+items[1].ID+`"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Regexp(t, `^attachment; filename=softwares-\d{4}-\d{2}-\d{2}\.csv$`, rec.Header().Get("Content-Disposition"))

	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Jira", records[1][1])

	entry := writer.last(t)
	assert.Equal(t, audit.TypeExport, entry.Type)
	assert.Equal(t, viewer.ID, *entry.ActorID)

	rec = do(router, &viewer, http.MethodPost, "/api/softwares/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	records, err = csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 3)

	rec = do(router, &viewer, http.MethodPost, "/api/softwares/export", `{"ids":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
