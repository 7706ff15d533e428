// Package handlers serves the panel session endpoints and the permission
// administration actions.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ohdear-panel/internal/domain/permission"
	"github.com/ohdear-panel/internal/services/auth/jwt"
	"github.com/ohdear-panel/internal/services/auth/rbac"
	"github.com/ohdear-panel/pkg/logger"
	"github.com/ohdear-panel/pkg/middleware/auth"
)

// Revoker blocks session tokens.
type Revoker interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
}

// PolicyStore holds direct grants and role assignments.
type PolicyStore interface {
	Grant(subject string, key permission.Key) error
	Revoke(subject string, key permission.Key) error
	AddRole(userID, role string) error
	RemoveRole(userID, role string) error
	GetRoles(userID string) ([]string, error)
}

type AuthHandlers struct {
	tokens  *jwt.Manager
	revoker Revoker
	policy  PolicyStore
	logger  logger.Logger
}

func NewAuthHandlers(tokens *jwt.Manager, revoker Revoker, policy PolicyStore, log logger.Logger) *AuthHandlers {
	return &AuthHandlers{
		tokens:  tokens,
		revoker: revoker,
		policy:  policy,
		logger:  log,
	}
}

type GrantRequest struct {
	Subject    string `json:"subject" binding:"required"`
	Permission string `json:"permission" binding:"required"`
}

type RoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// RegisterRoutes mounts the endpoints on the panel group. authn must reject
// requests without a session.
func (h *AuthHandlers) RegisterRoutes(cp *gin.RouterGroup, authn gin.HandlerFunc) {
	session := cp.Group("/session", authn)
	{
		session.GET("", h.Session)
		session.POST("/refresh", h.Refresh)
		session.POST("/logout", h.Logout)
	}

	admin := cp.Group("", authn, auth.RequirePermission(permission.PluginSettings))
	{
		admin.POST("/permissions/grants", h.Grant)
		admin.DELETE("/permissions/grants", h.RevokeGrant)
		admin.GET("/users/:id/roles", h.UserRoles)
		admin.POST("/users/:id/roles", h.AssignRole)
		admin.DELETE("/users/:id/roles/:role", h.RemoveRole)
	}
}

func (h *AuthHandlers) Session(c *gin.Context) {
	a := auth.GetActor(c)
	c.JSON(http.StatusOK, gin.H{
		"id":          a.ID,
		"name":        a.Name,
		"roles":       a.Roles,
		"permissions": a.Permissions.Keys(),
	})
}

// Refresh issues a new token for the current session and revokes the old one.
func (h *AuthHandlers) Refresh(c *gin.Context) {
	token := auth.TokenFromRequest(c)
	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	refreshed, err := h.tokens.RefreshToken(token)
	if err != nil {
		h.logger.Error("Failed to refresh token", "user", claims.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to refresh session"})
		return
	}

	if _, err := h.revoke(c.Request.Context(), token, claims); err != nil {
		h.logger.Error("Failed to revoke refreshed token", "user", claims.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to refresh session"})
		return
	}

	h.setCookie(c, refreshed, h.tokens.Expiry())
	c.JSON(http.StatusOK, gin.H{
		"token":     refreshed,
		"expiresIn": int(h.tokens.Expiry().Seconds()),
	})
}

// Logout revokes the current token and clears the session cookie.
func (h *AuthHandlers) Logout(c *gin.Context) {
	token := auth.TokenFromRequest(c)
	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	revoked, err := h.revoke(c.Request.Context(), token, claims)
	if err != nil {
		h.logger.Error("Failed to logout", "user", claims.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
		return
	}

	h.setCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"revoked": revoked})
}

// revoke blocks token for the rest of its lifetime. It reports false when
// revocation is not available.
func (h *AuthHandlers) revoke(ctx context.Context, token string, claims *jwt.Claims) (bool, error) {
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl <= 0 {
		return true, nil
	}

	err := h.revoker.Revoke(ctx, token, ttl)
	if errors.Is(err, auth.ErrRevocationUnavailable) {
		h.logger.Warn("Token stays valid until expiry", "user", claims.UserID)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (h *AuthHandlers) setCookie(c *gin.Context, token string, maxAge time.Duration) {
	seconds := int(maxAge.Seconds())
	if maxAge < 0 {
		seconds = -1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.SessionCookie, token, seconds, "/", "", c.Request.TLS != nil, true)
}

func (h *AuthHandlers) Grant(c *gin.Context) {
	req, key, ok := bindGrant(c)
	if !ok {
		return
	}

	if err := h.policy.Grant(req.Subject, key); err != nil {
		h.logger.Error("Failed to grant permission", "subject", req.Subject, "permission", key, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to grant permission"})
		return
	}

	h.logger.Info("Permission granted", "subject", req.Subject, "permission", key, "by", auth.GetActor(c).ID)
	c.JSON(http.StatusCreated, gin.H{"subject": req.Subject, "permission": key})
}

func (h *AuthHandlers) RevokeGrant(c *gin.Context) {
	req, key, ok := bindGrant(c)
	if !ok {
		return
	}

	if err := h.policy.Revoke(req.Subject, key); err != nil {
		h.logger.Error("Failed to revoke permission", "subject", req.Subject, "permission", key, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revoke permission"})
		return
	}

	h.logger.Info("Permission revoked", "subject", req.Subject, "permission", key, "by", auth.GetActor(c).ID)
	c.JSON(http.StatusOK, gin.H{"subject": req.Subject, "permission": key})
}

// bindGrant reads a grant body. The permission must be a declared key or the
// wildcard.
func bindGrant(c *gin.Context) (GrantRequest, permission.Key, bool) {
	var req GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return req, "", false
	}

	if req.Permission == rbac.Wildcard {
		return req, permission.Key(rbac.Wildcard), true
	}
	key, ok := permission.Parse(req.Permission)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown permission", "permission": req.Permission})
		return req, "", false
	}
	return req, key, true
}

func (h *AuthHandlers) UserRoles(c *gin.Context) {
	userID := c.Param("id")
	roles, err := h.policy.GetRoles(userID)
	if err != nil {
		h.logger.Error("Failed to get roles", "user", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get roles"})
		return
	}
	if roles == nil {
		roles = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"userId": userID, "roles": roles})
}

func (h *AuthHandlers) AssignRole(c *gin.Context) {
	userID := c.Param("id")
	var req RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.policy.AddRole(userID, req.Role); err != nil {
		h.logger.Error("Failed to assign role", "user", userID, "role", req.Role, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to assign role"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"userId": userID, "role": req.Role})
}

func (h *AuthHandlers) RemoveRole(c *gin.Context) {
	userID, role := c.Param("id"), c.Param("role")
	if err := h.policy.RemoveRole(userID, role); err != nil {
		h.logger.Error("Failed to remove role", "user", userID, "role", role, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove role"})
		return
	}

	h.logger.Info("Role removed", "user", userID, "role", role, "by", auth.GetActor(c).ID)
	c.JSON(http.StatusOK, gin.H{"userId": userID, "role": role})
}
