package app

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/panaderia/internal/observability"
	"github.com/odyssey-erp/panaderia/internal/rbac"
	"github.com/odyssey-erp/panaderia/internal/shared"
	"github.com/odyssey-erp/panaderia/jobs"
)

type routerFixture struct {
	server *httptest.Server
	tokens *shared.TokenManager
}

func newRouterFixture(t *testing.T) routerFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := shared.NewTokenManager(nil, "router-secret", "panaderia", time.Hour)
	mw := rbac.Middleware{Service: rbac.NewService(), Tokens: tokens, Logger: logger}
	router := NewRouter(RouterParams{
		Logger:             logger,
		Config:             &Config{AppEnv: "test", RateLimitPerMinute: 1000},
		RBACMiddleware:     mw,
		PermissionsHandler: rbac.NewPermissionsHandler(mw.Service, mw),
		JobHandler:         jobs.NewHandler(nil, logger),
		Metrics:            observability.NewMetrics(),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return routerFixture{server: srv, tokens: tokens}
}

func (f routerFixture) get(t *testing.T, path string, role shared.Role) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, f.server.URL+path, nil)
	require.NoError(t, err)
	if role != "" {
		token, _, err := f.tokens.Issue(shared.Actor{ID: uuid.New(), Name: "Rosa", Role: role})
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestRouterHealthAndMetrics(t *testing.T) {
	f := newRouterFixture(t)

	resp := f.get(t, "/healthz", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))

	resp = f.get(t, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), "panaderia_http_requests_total"))
}

func TestRouterUnknownRouteIsProblem(t *testing.T) {
	f := newRouterFixture(t)

	resp := f.get(t, "/nowhere", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "json")
}

func TestRouterRequiresToken(t *testing.T) {
	f := newRouterFixture(t)

	resp := f.get(t, "/permissions", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.get(t, "/permissions", shared.RoleSeller)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var grant rbac.Grant
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&grant))
	require.Equal(t, shared.RoleSeller, grant.Role)
	require.Contains(t, grant.Permissions, shared.PermShiftsOperate)
	require.NotContains(t, grant.Permissions, shared.PermUsersManage)
}

func TestRouterJobsHealthIsAdminOnly(t *testing.T) {
	f := newRouterFixture(t)

	resp := f.get(t, "/jobs/health", shared.RoleSeller)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.get(t, "/jobs/health", shared.RoleAdmin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
