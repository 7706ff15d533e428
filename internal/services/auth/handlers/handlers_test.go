package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/ohdear-panel/internal/domain/permission"
	"github.com/ohdear-panel/internal/services/auth/jwt"
	"github.com/ohdear-panel/internal/services/auth/rbac"
	"github.com/ohdear-panel/pkg/config"
	"github.com/ohdear-panel/pkg/database"
	"github.com/ohdear-panel/pkg/logger"
	"github.com/ohdear-panel/pkg/middleware/auth"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	router *gin.Engine
	tokens *jwt.Manager
}

func setup(t *testing.T, withRedis bool) *fixture {
	gin.SetMode(gin.TestMode)

	tokens, err := jwt.NewManager(config.AuthConfig{JWTSecret: "secret", JWTExpiry: 3600})
	require.NoError(t, err)

	db, err := database.New(database.Config{Driver: "sqlite", Path: fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	enforcer, err := rbac.NewEnforcer(db, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, enforcer.SeedRoles(map[string][]string{
		rbac.RoleAdmin:  {rbac.Wildcard},
		rbac.RoleViewer: {string(permission.ViewOverview)},
	}))

	var rdb *redis.Client
	if withRedis {
		mr := miniredis.RunT(t)
		rdb = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { rdb.Close() })
	}
	mw := auth.NewJWTMiddleware(tokens, enforcer, rdb, logger.NewNop())

	r := gin.New()
	h := NewAuthHandlers(tokens, mw, enforcer, logger.NewNop())
	h.RegisterRoutes(r.Group("/admin"), mw.Handle())

	return &fixture{router: r, tokens: tokens}
}

func (f *fixture) token(t *testing.T, userID string, roles ...string) string {
	token, err := f.tokens.GenerateToken(userID, "Test User", roles)
	require.NoError(t, err)
	return token
}

func (f *fixture) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func sessionPermissions(t *testing.T, w *httptest.ResponseRecorder) []string {
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Permissions []string `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Permissions
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionCookie {
			return c
		}
	}
	return nil
}

func TestSession(t *testing.T) {
	f := setup(t, true)

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/admin/session", "", "").Code)

	w := f.do(http.MethodGet, "/admin/session", f.token(t, "user-1", rbac.RoleViewer), "")
	assert.Equal(t, []string{string(permission.ViewOverview)}, sessionPermissions(t, w))
	assert.Contains(t, w.Body.String(), `"id":"user-1"`)
}

func TestRefresh(t *testing.T) {
	f := setup(t, true)
	old := f.token(t, "user-1", rbac.RoleViewer)

	w := f.do(http.MethodPost, "/admin/session/refresh", old, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token     string `json:"token"`
		ExpiresIn int    `json:"expiresIn"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEqual(t, old, resp.Token)
	assert.Equal(t, 3600, resp.ExpiresIn)

	cookie := sessionCookie(w)
	require.NotNil(t, cookie)
	assert.Equal(t, resp.Token, cookie.Value)
	assert.True(t, cookie.HttpOnly)

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/admin/session", old, "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/admin/session", resp.Token, "").Code)
}

func TestLogout(t *testing.T) {
	f := setup(t, true)
	token := f.token(t, "user-1", rbac.RoleViewer)

	req := httptest.NewRequest(http.MethodPost, "/admin/session/logout", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: token})
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"revoked":true}`, w.Body.String())
	cookie := sessionCookie(w)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Negative(t, cookie.MaxAge)

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/admin/session", token, "").Code)
}

func TestLogout_WithoutRedis(t *testing.T) {
	f := setup(t, false)
	token := f.token(t, "user-1", rbac.RoleViewer)

	w := f.do(http.MethodPost, "/admin/session/logout", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"revoked":false}`, w.Body.String())

	w = f.do(http.MethodPost, "/admin/session/refresh", token, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGrants(t *testing.T) {
	f := setup(t, true)
	admin := f.token(t, "admin-1", rbac.RoleAdmin)
	viewer := f.token(t, "user-1", rbac.RoleViewer)
	grant := `{"subject":"user-9","permission":"` + string(permission.ViewUptime) + `"}`

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/admin/permissions/grants", viewer, grant).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/admin/permissions/grants", admin,
		`{"subject":"user-9","permission":"ohdear:view-dns"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/admin/permissions/grants", admin, `{"subject":"user-9"}`).Code)

	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/admin/permissions/grants", admin, grant).Code)
	user := f.token(t, "user-9")
	assert.Equal(t, []string{string(permission.ViewUptime)},
		sessionPermissions(t, f.do(http.MethodGet, "/admin/session", user, "")))

	require.Equal(t, http.StatusOK, f.do(http.MethodDelete, "/admin/permissions/grants", admin, grant).Code)
	assert.Empty(t, sessionPermissions(t, f.do(http.MethodGet, "/admin/session", user, "")))
}

func TestWildcardGrant(t *testing.T) {
	f := setup(t, true)
	admin := f.token(t, "admin-1", rbac.RoleAdmin)

	w := f.do(http.MethodPost, "/admin/permissions/grants", admin, `{"subject":"user-9","permission":"*"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	perms := sessionPermissions(t, f.do(http.MethodGet, "/admin/session", f.token(t, "user-9"), ""))
	everything := permission.Everything()
	assert.Len(t, perms, everything.Len())
}

func TestUserRoles(t *testing.T) {
	f := setup(t, true)
	admin := f.token(t, "admin-1", rbac.RoleAdmin)
	user := f.token(t, "user-9")

	w := f.do(http.MethodGet, "/admin/users/user-9/roles", admin, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userId":"user-9","roles":[]}`, w.Body.String())

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/admin/users/user-9/roles", admin, `{}`).Code)
	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/admin/users/user-9/roles", admin, `{"role":"viewer"}`).Code)

	w = f.do(http.MethodGet, "/admin/users/user-9/roles", admin, "")
	assert.JSONEq(t, `{"userId":"user-9","roles":["viewer"]}`, w.Body.String())
	assert.Equal(t, []string{string(permission.ViewOverview)},
		sessionPermissions(t, f.do(http.MethodGet, "/admin/session", user, "")))

	require.Equal(t, http.StatusOK, f.do(http.MethodDelete, "/admin/users/user-9/roles/viewer", admin, "").Code)
	assert.Empty(t, sessionPermissions(t, f.do(http.MethodGet, "/admin/session", user, "")))

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodDelete, "/admin/users/user-9/roles/viewer", user, "").Code)
}
