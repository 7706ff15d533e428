package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ohdear-panel/internal/domain/actor"
	"github.com/ohdear-panel/internal/services/auth/jwt"
	"github.com/ohdear-panel/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	actorKey = "actor"

	// SessionCookie carries the session token for browser requests.
	SessionCookie = "ohdear_session"
)

// ErrRevocationUnavailable is returned by Revoke when no Redis is configured.
var ErrRevocationUnavailable = errors.New("token revocation requires redis")

// JWTMiddleware validates session tokens and attaches the actor to the request.
type JWTMiddleware struct {
	jwtManager *jwt.Manager
	resolver   PermissionResolver
	redis      *redis.Client
	logger     logger.Logger
}

// NewJWTMiddleware creates a new JWT middleware. redis may be nil, which
// disables token revocation.
func NewJWTMiddleware(jwtManager *jwt.Manager, resolver PermissionResolver, redis *redis.Client, log logger.Logger) *JWTMiddleware {
	return &JWTMiddleware{
		jwtManager: jwtManager,
		resolver:   resolver,
		redis:      redis,
		logger:     log,
	}
}

// Handle rejects requests without a valid session.
func (m *JWTMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		a, status, msg := m.authenticate(c)
		if a == nil {
			c.JSON(status, gin.H{"error": msg})
			c.Abort()
			return
		}
		SetActor(c, a)
		c.Next()
	}
}

// Optional attaches the actor when a valid session is present and lets
// every request through.
func (m *JWTMiddleware) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a, _, _ := m.authenticate(c); a != nil {
			SetActor(c, a)
		}
		c.Next()
	}
}

func (m *JWTMiddleware) authenticate(c *gin.Context) (*actor.Actor, int, string) {
	token := TokenFromRequest(c)
	if token == "" {
		return nil, http.StatusUnauthorized, "authorization required"
	}

	if m.redis != nil {
		revoked, err := m.redis.Exists(c.Request.Context(), revokedKey(token)).Result()
		if err != nil {
			m.logger.Warn("Token revocation lookup failed", "error", err)
		} else if revoked > 0 {
			return nil, http.StatusUnauthorized, "token has been revoked"
		}
	}

	claims, err := m.jwtManager.ValidateToken(token)
	if err != nil {
		return nil, http.StatusUnauthorized, "invalid or expired token"
	}

	perms, err := m.resolver.Resolve(claims.UserID, claims.Roles)
	if err != nil {
		m.logger.Error("Failed to resolve permissions", "user", claims.UserID, "error", err)
		return nil, http.StatusInternalServerError, "failed to resolve permissions"
	}

	return &actor.Actor{
		ID:          claims.UserID,
		Name:        claims.Name,
		Roles:       claims.Roles,
		Permissions: perms,
	}, 0, ""
}

// Revoke blocks token until ttl elapses.
func (m *JWTMiddleware) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if m.redis == nil {
		return ErrRevocationUnavailable
	}
	return m.redis.Set(ctx, revokedKey(token), 1, ttl).Err()
}

func revokedKey(token string) string {
	return "ohdear:revoked:" + token
}

// TokenFromRequest returns the bearer token, falling back to the session
// cookie.
func TokenFromRequest(c *gin.Context) string {
	const bearerScheme = "Bearer "
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, bearerScheme) {
		return strings.TrimSpace(h[len(bearerScheme):])
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		return cookie
	}
	return ""
}

// SetActor attaches a to the gin context and the request context.
func SetActor(c *gin.Context, a *actor.Actor) {
	c.Set(actorKey, a)
	c.Request = c.Request.WithContext(actor.WithActor(c.Request.Context(), a))
}

// GetActor returns the actor attached to the request, or nil.
func GetActor(c *gin.Context) *actor.Actor {
	v, exists := c.Get(actorKey)
	if !exists {
		return nil
	}
	a, _ := v.(*actor.Actor)
	return a
}
