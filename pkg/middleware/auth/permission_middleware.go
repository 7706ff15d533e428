package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ohdear-panel/internal/domain/permission"
)

// RequirePermission aborts with 403 unless the actor holds key.
func RequirePermission(key permission.Key) gin.HandlerFunc {
	return func(c *gin.Context) {
		a := GetActor(c)
		if a == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			c.Abort()
			return
		}
		if !a.Can(key) {
			c.JSON(http.StatusForbidden, gin.H{"error": "permission denied", "permission": key})
			c.Abort()
			return
		}
		c.Next()
	}
}
