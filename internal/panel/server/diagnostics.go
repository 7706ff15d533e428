package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ohdear-panel/internal/domain/permission"
	"github.com/ohdear-panel/internal/panel"
	"github.com/ohdear-panel/pkg/database"
)

const (
	// SlowQueriesPath lists recent slow database statements.
	SlowQueriesPath = "ohdear/diagnostics/slow-queries"

	defaultSlowQueryLimit = 20
)

// registerDiagnostics mounts the diagnostics routes for plugin administrators.
func registerDiagnostics(host *Host, monitor *database.QueryMonitor) {
	host.RegisterCPRoute(panel.Rule{
		Method:     http.MethodGet,
		Path:       SlowQueriesPath,
		Permission: permission.PluginSettings,
		Handler:    slowQueries(monitor),
	})
}

func slowQueries(monitor *database.QueryMonitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := defaultSlowQueryLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = n
		}
		c.JSON(http.StatusOK, gin.H{"queries": monitor.SlowQueries(limit)})
	}
}
