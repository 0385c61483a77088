package httpapi

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimathteacher/backend/internal/common"
	"github.com/aimathteacher/backend/internal/logging"
	"github.com/aimathteacher/backend/internal/server/auth"
	"github.com/aimathteacher/backend/internal/server/config"
	"github.com/aimathteacher/backend/internal/server/repositories/repomanager"
	"github.com/aimathteacher/backend/internal/server/services"
	"github.com/aimathteacher/backend/internal/server/sessioncache"
)

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	cfg := &config.Config{
		SecretKey:                    "k",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
	}

	rm := repomanager.NewPostgresRepositoryManager()
	cache := sessioncache.New()
	authSvc := services.NewAuthService(db, rm, cfg, log)
	guard := services.NewGuard(db, rm, cache, log)
	chatSvc := services.NewChatService(db, rm, cache, guard, nil, log)

	return NewServer(authSvc, chatSvc, log).Router()
}

func TestHealth(t *testing.T) {
	r := testRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestBadRequestBodies(t *testing.T) {
	r := testRouter(t)

	for _, tc := range []struct {
		method, path, body string
	}{
		{http.MethodPost, "/chat", `{}`},
		{http.MethodPost, "/api/auth/register", `{"email":"a@b.c"}`},
		{http.MethodPost, "/api/auth/login", `not json`},
		{http.MethodPost, "/api/auth/refresh", `{}`},
		{http.MethodPost, "/sessions/s1/rename", `{}`},
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, "%s %s", tc.method, tc.path)
	}
}

func TestProtectedEndpointsRequireRegisteredCaller(t *testing.T) {
	r := testRouter(t)

	for _, tc := range []struct {
		method, path, body string
	}{
		{http.MethodGet, "/api/user/profile", ""},
		{http.MethodPut, "/api/user/profile", `{}`},
		{http.MethodDelete, "/api/user/account", ""},
		{http.MethodPost, "/api/auth/change-password", `{"current_password":"a","new_password":"b"}`},
	} {
		w := httptest.NewRecorder()
		var req *http.Request
		if tc.body != "" {
			req = httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
		} else {
			req = httptest.NewRequest(tc.method, tc.path, nil)
		}
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", tc.method, tc.path)
	}
}

func TestRespondErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err  error
		code int
	}{
		{common.ErrorDuplicateEmail, http.StatusBadRequest},
		{auth.ErrPasswordLength, http.StatusBadRequest},
		{common.ErrResetTokenInvalid, http.StatusBadRequest},
		{common.ErrorInvalidCredentials, http.StatusUnauthorized},
		{common.ErrInvalidToken, http.StatusUnauthorized},
		{common.ErrRefreshTokenExpired, http.StatusUnauthorized},
		{common.ErrorAccessDenied, http.StatusForbidden},
		{common.ErrorAccountInactive, http.StatusForbidden},
		{common.ErrorNotFound, http.StatusNotFound},
		{common.ErrStorageUnavailable, http.StatusServiceUnavailable},
		{common.ErrUpstreamUnavailable, http.StatusBadGateway},
		{common.ErrorInternal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		respondError(c, tc.err)
		assert.Equal(t, tc.code, w.Code, "%v", tc.err)
	}
}
