package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/panaderia/internal/auth"
	"github.com/odyssey-erp/panaderia/internal/rbac"
	"github.com/odyssey-erp/panaderia/internal/shared"
	"github.com/odyssey-erp/panaderia/internal/users"
	_ "github.com/odyssey-erp/panaderia/testing"
)

type stubStore struct {
	user    *users.User
	touched int
}

func (s *stubStore) GetByUsername(ctx context.Context, username string) (users.User, error) {
	if s.user == nil || s.user.Username != username {
		return users.User{}, users.ErrUserNotFound
	}
	return *s.user, nil
}

func (s *stubStore) TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.touched++
	return nil
}

func newRouter(t *testing.T, store *stubStore) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	tokens := shared.NewTokenManager(client, "test-secret", "panaderia", time.Hour)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mw := rbac.Middleware{Service: rbac.NewService(), Tokens: tokens, Logger: logger}
	handler := auth.NewHandler(logger, auth.NewService(store, tokens, logger), mw)
	r := chi.NewRouter()
	r.Route("/auth", handler.MountRoutes)
	return r
}

func seededStore(t *testing.T, active bool) *stubStore {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)
	require.NoError(t, err)
	return &stubStore{user: &users.User{
		ID:           uuid.New(),
		Username:     "rosa",
		Name:         "Rosa",
		Role:         shared.RoleSeller,
		IsActive:     active,
		PasswordHash: string(hashed),
	}}
}

func login(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestLoginInvalidCredentials(t *testing.T) {
	router := newRouter(t, seededStore(t, true))

	rr := login(t, router, `{"username":"rosa","password":"wrongpass"}`)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = login(t, router, `{"username":"nadie","password":"correctpass"}`)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = login(t, router, `{"username":"rosa"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestLoginInactiveUser(t *testing.T) {
	router := newRouter(t, seededStore(t, false))
	rr := login(t, router, `{"username":"rosa","password":"correctpass"}`)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLoginMeLogout(t *testing.T) {
	store := seededStore(t, true)
	router := newRouter(t, store)

	rr := login(t, router, `{"username":" Rosa ","password":"correctpass"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 1, store.touched)
	var session struct {
		Token string `json:"token"`
		User  struct {
			Username string `json:"username"`
			Role     string `json:"role"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &session))
	require.NotEmpty(t, session.Token)
	require.Equal(t, "seller", session.User.Role)
	require.NotContains(t, rr.Body.String(), "passwordHash")

	authed := func(method, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("Authorization", "Bearer "+session.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	rr = authed(http.MethodGet, "/auth/me")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"name":"Rosa"`)

	rr = authed(http.MethodPost, "/auth/logout")
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = authed(http.MethodGet, "/auth/me")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMeRequiresToken(t *testing.T) {
	router := newRouter(t, seededStore(t, true))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}
