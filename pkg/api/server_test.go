package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/platinummonkey/softwarehub/pkg/audit"
	"github.com/platinummonkey/softwarehub/pkg/auth"
	"github.com/platinummonkey/softwarehub/pkg/httputil"
	"github.com/platinummonkey/softwarehub/pkg/middleware"
	"github.com/platinummonkey/softwarehub/pkg/observability"
	"github.com/platinummonkey/softwarehub/pkg/software"
	"github.com/platinummonkey/softwarehub/pkg/storage/storagetest"
	"github.com/platinummonkey/softwarehub/pkg/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	server *Server
	engine *audit.QueryEngine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := storagetest.NewSQLite(t)

	auditStore, err := audit.NewSQLStore(db, nil)
	require.NoError(t, err)
	writer := audit.NewStoreWriter(auditStore)

	userStore := users.NewStore(db, nil)
	userService := users.NewService(userStore, auth.NewPasswordHasher(bcrypt.MinCost), writer)
	tokens := auth.NewTokenManager("test-secret-test-secret", "softwarehub", time.Hour)

	engine := audit.NewQueryEngine(auditStore, audit.EngineConfig{Location: time.UTC, Directory: userStore})

	registry := prometheus.NewRegistry()
	limiter := middleware.NewRateLimiter(&middleware.RateLimitConfig{
		RequestsPerWindow: 1000,
		WindowDuration:    time.Minute,
	})

	server := NewServer(Dependencies{
		Users:     users.NewHandlers(userService, users.NewAuthService(userService, tokens), nil),
		Softwares: software.NewHandlers(software.NewService(software.NewStore(db, nil), writer), nil),
		Audit:     audit.NewHandlers(engine, writer, nil),
		Tokens:    tokens,
		Health:    observability.NewHealthChecker(db.DB, nil, "test"),
		Metrics:   observability.NewMetrics(registry),
		Registry:  registry,
		Limiter:   limiter,
	}, Options{
		CORS:         httputil.CORSOptions{AllowedOrigins: []string{"http://localhost:5173"}},
		MaxBodyBytes: 1 << 20,
	})

	system := auth.Principal{Name: "Sistema", Role: auth.RoleAdmin}
	for _, in := range []users.CreateInput{
		{Name: "Ana Admin", Email: "admin@softwarehub.com", Password: "admin123", Role: auth.RoleAdmin, Status: users.StatusActive},
		{Name: "Vera Viewer", Email: "viewer@softwarehub.com", Password: "viewer123", Role: auth.RoleViewer, Status: users.StatusActive},
	} {
		_, err := userService.Create(context.Background(), system, in)
		require.NoError(t, err)
	}

	return &testServer{server: server, engine: engine}
}

func (ts *testServer) do(method, target, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.server.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	rec := ts.do(http.MethodPost, "/api/auth/login", "",
		`{"email":"`+email+`","password":"`+password+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.NotEmpty(t, res.Token)
	return res.Token
}

func TestServer_NotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Route not found","path":"/api/nope","method":"GET"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_OperationalRoutes(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/health", "/health/live", "/health/ready", "/version"} {
		rec := ts.do(http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	ts.do(http.MethodGet, "/health", "", "")
	rec := ts.do(http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/health"`)
}

func TestServer_CORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/softwares", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	ts.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_RoleGuards(t *testing.T) {
	ts := newTestServer(t)
	adminToken := ts.login(t, "admin@softwarehub.com", "admin123")
	viewerToken := ts.login(t, "viewer@softwarehub.com", "viewer123")

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"audit without token", http.MethodGet, "/api/audit", "", http.StatusUnauthorized},
		{"audit with garbage token", http.MethodGet, "/api/audit", "garbage", http.StatusForbidden},
		{"audit as viewer", http.MethodGet, "/api/audit", viewerToken, http.StatusForbidden},
		{"audit as admin", http.MethodGet, "/api/audit", adminToken, http.StatusOK},
		{"audit stats as admin", http.MethodGet, "/api/audit/stats", adminToken, http.StatusOK},
		{"users as viewer", http.MethodGet, "/api/users", viewerToken, http.StatusForbidden},
		{"users as admin", http.MethodGet, "/api/users", adminToken, http.StatusOK},
		{"softwares as viewer", http.MethodGet, "/api/softwares", viewerToken, http.StatusOK},
		{"software create as viewer", http.MethodPost, "/api/softwares", viewerToken, http.StatusForbidden},
		{"me as viewer", http.MethodGet, "/api/auth/me", viewerToken, http.StatusOK},
		{"me without token", http.MethodGet, "/api/auth/me", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(tt.method, tt.path, tt.token, `{"servico":"x","hosting":"Cloud"}`)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestServer_AuditTrail(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/auth/login", "", `{"email":"admin@softwarehub.com","password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	token := ts.login(t, "admin@softwarehub.com", "admin123")

	rec = ts.do(http.MethodPost, "/api/softwares", token, `{"servico":"Microsoft Office 365","hosting":"SaaSPublico"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodGet, "/api/audit?type=login&limit=10", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var logins audit.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logins))
	require.Len(t, logins.Data, 2)
	assert.Equal(t, "Login no sistema", logins.Data[0].Action)
	require.NotNil(t, logins.Data[0].Actor)
	assert.Equal(t, "admin@softwarehub.com", logins.Data[0].Actor.Email)
	assert.Equal(t, "Falha de login", logins.Data[1].Action)
	assert.Nil(t, logins.Data[1].ActorID)
	assert.Equal(t, "admin@softwarehub.com", logins.Data[1].ActorName)
	assert.Equal(t, audit.Pagination{Page: 1, Limit: 10, Total: 2, Pages: 1}, logins.Pagination)

	rec = ts.do(http.MethodGet, "/api/audit?actorName=ana&type=create", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var creates audit.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &creates))
	require.Len(t, creates.Data, 1)
	assert.Equal(t, "Cadastro de software", creates.Data[0].Action)

	stats, err := ts.engine.Stats(context.Background())
	require.NoError(t, err)
	// user seeding, the failed and successful login and the software
	assert.EqualValues(t, 5, stats.TotalLogs)
}

func TestServer_RateLimited(t *testing.T) {
	ts := &testServer{server: NewServer(Dependencies{
		Limiter: middleware.NewRateLimiter(&middleware.RateLimitConfig{
			RequestsPerWindow: 1,
			WindowDuration:    time.Hour,
		}),
		Health: observability.NewHealthChecker(nil, nil, "test"),
	}, Options{})}

	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/health/live", "", "").Code)
	rec := ts.do(http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
