package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ohdear-panel/internal/domain/actor"
	"github.com/ohdear-panel/internal/domain/ohdear"
	"github.com/ohdear-panel/internal/domain/permission"
	"github.com/ohdear-panel/internal/domain/settings"
	ohdearservice "github.com/ohdear-panel/internal/ohdear/app/service"
	"github.com/ohdear-panel/internal/panel"
	"github.com/ohdear-panel/pkg/middleware/auth"
)

type ToggleCheckRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// SaveSettingsRequest is the settings form. An empty apiToken and a missing
// healthCheckSecret keep the stored values so the form never echoes them.
type SaveSettingsRequest struct {
	APIToken          string          `json:"apiToken"`
	SelectedSiteID    string          `json:"selectedSiteId"`
	HealthCheckSecret *string         `json:"healthCheckSecret"`
	HealthChecks      map[string]bool `json:"healthChecks"`
	ShowNavBadges     bool            `json:"showNavBadges"`
	ClearAPIToken     bool            `json:"clearApiToken"`
}

func (h *Handlers) SaveSettings(c *gin.Context) {
	var req SaveSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()
	current := h.currentSettings(ctx)

	st := &settings.Settings{
		APIToken:          req.APIToken,
		SelectedSiteID:    req.SelectedSiteID,
		HealthCheckSecret: req.HealthCheckSecret,
		HealthChecks:      req.HealthChecks,
		ShowNavBadges:     req.ShowNavBadges,
	}
	if st.APIToken == "" && !req.ClearAPIToken {
		st.APIToken = current.APIToken
	}
	if st.HealthCheckSecret == nil {
		st.HealthCheckSecret = current.HealthCheckSecret
	}

	errs, err := h.settings.Save(ctx, st, actorID(auth.GetActor(c)))
	if err != nil {
		h.logger.Error("Failed to save settings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save settings"})
		return
	}
	if errs.HasErrors() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Couldn't save settings.", "errors": errs})
		return
	}

	resp := gin.H{"message": "Settings saved."}
	if u, ok := h.settings.ReportURL(ctx, st, panel.SettingsReportPath); ok {
		resp["healthReportUrl"] = u
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) ToggleCheck(c *gin.Context) {
	var req ToggleCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	h.checkAction(c, permission.Feature.ToggleKey, func(st *settings.Settings, id int, by string) (*ohdear.Check, error) {
		return h.monitor.ToggleCheck(c.Request.Context(), st, id, *req.Enabled, by)
	})
}

func (h *Handlers) RequestRun(c *gin.Context) {
	h.checkAction(c, permission.Feature.RequestKey, func(st *settings.Settings, id int, by string) (*ohdear.Check, error) {
		return h.monitor.RequestRun(c.Request.Context(), st, id, by)
	})
}

// checkAction resolves the check, requires the feature permission chosen by
// key and runs action.
func (h *Handlers) checkAction(
	c *gin.Context,
	key func(permission.Feature) permission.Key,
	action func(st *settings.Settings, checkID int, actorID string) (*ohdear.Check, error),
) {
	checkID, err := strconv.Atoi(c.Param("id"))
	if err != nil || checkID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid check id"})
		return
	}

	ctx := c.Request.Context()
	st := h.currentSettings(ctx)

	check, err := h.monitor.FindCheck(ctx, st, checkID)
	if err != nil {
		h.writeAPIError(c, err)
		return
	}

	feature, ok := ohdearservice.CheckFeature(check.Type)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unsupported check type", "type": check.Type})
		return
	}

	a := auth.GetActor(c)
	required := key(feature)
	if !a.Can(required) {
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied", "permission": required})
		return
	}

	updated, err := action(st, checkID, a.ID)
	if err != nil {
		h.writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"check": updated})
}

func (h *Handlers) Extensions(c *gin.Context) {
	c.JSON(http.StatusOK, h.extensions.Extensions(c.Request.Context(), auth.GetActor(c), true))
}

func actorID(a *actor.Actor) string {
	if a == nil {
		return ""
	}
	return a.ID
}
