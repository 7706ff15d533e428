package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/ohdear-panel/internal/domain/permission"
	"github.com/ohdear-panel/internal/services/auth/jwt"
	"github.com/ohdear-panel/internal/services/auth/rbac"
	"github.com/ohdear-panel/pkg/config"
	"github.com/ohdear-panel/pkg/database"
	"github.com/ohdear-panel/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	router     *gin.Engine
	jwt        *jwt.Manager
	middleware *JWTMiddleware
}

func setup(t *testing.T) *fixture {
	gin.SetMode(gin.TestMode)

	manager, err := jwt.NewManager(config.AuthConfig{JWTSecret: "secret", JWTExpiry: 3600})
	require.NoError(t, err)

	db, err := database.New(database.Config{Driver: "sqlite", Path: fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	enforcer, err := rbac.NewEnforcer(db, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, enforcer.SeedRoles(map[string][]string{
		"viewer": {string(permission.ViewOverview)},
	}))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	mw := NewJWTMiddleware(manager, enforcer, rdb, logger.NewNop())

	r := gin.New()
	r.GET("/overview", mw.Handle(), RequirePermission(permission.ViewOverview), func(c *gin.Context) {
		c.String(http.StatusOK, GetActor(c).ID)
	})
	r.GET("/uptime", mw.Handle(), RequirePermission(permission.ViewUptime), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/optional", mw.Optional(), func(c *gin.Context) {
		if GetActor(c) == nil {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, GetActor(c).ID)
	})

	return &fixture{router: r, jwt: manager, middleware: mw}
}

func (f *fixture) do(path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestJWTMiddleware(t *testing.T) {
	f := setup(t)
	token, err := f.jwt.GenerateToken("user-1", "Jane", []string{"viewer"})
	require.NoError(t, err)

	t.Run("missing token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, f.do("/overview", "").Code)
	})

	t.Run("bad token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, f.do("/overview", "garbage").Code)
	})

	t.Run("granted", func(t *testing.T) {
		w := f.do("/overview", token)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "user-1", w.Body.String())
	})

	t.Run("forbidden", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, f.do("/uptime", token).Code)
	})

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/overview", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("optional", func(t *testing.T) {
		assert.Equal(t, "anonymous", f.do("/optional", "").Body.String())
		assert.Equal(t, "user-1", f.do("/optional", token).Body.String())
	})
}

func TestJWTMiddleware_Revoke(t *testing.T) {
	f := setup(t)
	token, err := f.jwt.GenerateToken("user-1", "Jane", []string{"viewer"})
	require.NoError(t, err)

	require.NoError(t, f.middleware.Revoke(context.Background(), token, time.Hour))
	assert.Equal(t, http.StatusUnauthorized, f.do("/overview", token).Code)
}

func TestJWTMiddleware_RevokeWithoutRedis(t *testing.T) {
	manager, err := jwt.NewManager(config.AuthConfig{JWTSecret: "secret", JWTExpiry: 3600})
	require.NoError(t, err)
	mw := NewJWTMiddleware(manager, nil, nil, logger.NewNop())

	err = mw.Revoke(context.Background(), "token", time.Hour)
	assert.ErrorIs(t, err, ErrRevocationUnavailable)
}

func TestTokenFromRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, TokenFromRequest(c))

	c.Request.AddCookie(&http.Cookie{Name: SessionCookie, Value: "from-cookie"})
	assert.Equal(t, "from-cookie", TokenFromRequest(c))

	c.Request.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", TokenFromRequest(c))
}
