package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthSecretHeader carries the secret Oh Dear sends with every poll.
const HealthSecretHeader = "oh-dear-health-check-secret"

// HealthCheckResults serves the application health report. Without a
// configured secret the report is never exposed.
func (h *Handlers) HealthCheckResults(c *gin.Context) {
	ctx := c.Request.Context()
	st := h.currentSettings(ctx)

	secret := st.ResolvedHealthCheckSecret()
	if secret == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "Health check secret is not configured"})
		return
	}

	given := c.GetHeader(HealthSecretHeader)
	if subtle.ConstantTimeCompare([]byte(given), []byte(secret)) != 1 {
		h.logger.Warn("Rejected health report request", "ip", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid health check secret"})
		return
	}

	c.JSON(http.StatusOK, h.health.Results(ctx, st))
}
