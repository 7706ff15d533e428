package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ohdear-panel/internal/domain/ohdear"
	"github.com/ohdear-panel/internal/domain/settings"
	"github.com/ohdear-panel/internal/panel"
)

const (
	defaultUptimeDays = 30
	maxUptimeDays     = 90
)

// now is replaced in tests.
var now = time.Now

func (h *Handlers) Overview(c *gin.Context) (map[string]interface{}, error) {
	vars, st := h.base(c)
	if !st.IsValid() {
		return vars, nil
	}

	site, err := h.monitor.Site(c.Request.Context(), st)
	if err != nil {
		vars["error"] = apiErrorMessage(err)
		return vars, nil
	}
	vars["site"] = site
	vars["checks"] = site.Checks
	return vars, nil
}

func (h *Handlers) Uptime(c *gin.Context) (map[string]interface{}, error) {
	vars, st := h.base(c)
	days := uptimeDays(c.Query("days"))
	vars["days"] = days
	if !st.IsValid() {
		return vars, nil
	}

	ctx := c.Request.Context()
	r := ohdear.LastDays(now(), days)
	uptime, err := h.monitor.Uptime(ctx, st, r, "day")
	if err != nil {
		vars["error"] = apiErrorMessage(err)
		return vars, nil
	}
	downtime, err := h.monitor.Downtime(ctx, st, r)
	if err != nil {
		vars["error"] = apiErrorMessage(err)
		return vars, nil
	}
	vars["uptime"] = uptime
	vars["downtime"] = downtime
	return vars, nil
}

// uptimeDays parses the days query, falling back to the default for
// anything outside 1..maxUptimeDays.
func uptimeDays(raw string) int {
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 || days > maxUptimeDays {
		return defaultUptimeDays
	}
	return days
}

func (h *Handlers) BrokenLinks(c *gin.Context) (map[string]interface{}, error) {
	vars, st := h.base(c)
	if !st.IsValid() {
		return vars, nil
	}
	links, err := h.monitor.BrokenLinks(c.Request.Context(), st)
	if err != nil {
		vars["error"] = apiErrorMessage(err)
		return vars, nil
	}
	vars["brokenLinks"] = links
	return vars, nil
}

func (h *Handlers) MixedContent(c *gin.Context) (map[string]interface{}, error) {
	vars, st := h.base(c)
	if !st.IsValid() {
		return vars, nil
	}
	items, err := h.monitor.MixedContent(c.Request.Context(), st)
	if err != nil {
		vars["error"] = apiErrorMessage(err)
		return vars, nil
	}
	vars["mixedContent"] = items
	return vars, nil
}

func (h *Handlers) CertificateHealth(c *gin.Context) (map[string]interface{}, error) {
	vars, st := h.base(c)
	if !st.IsValid() {
		return vars, nil
	}
	health, err := h.monitor.CertificateHealth(c.Request.Context(), st)
	if err != nil {
		vars["error"] = apiErrorMessage(err)
		return vars, nil
	}
	vars["certificate"] = health
	return vars, nil
}

func (h *Handlers) ApplicationHealth(c *gin.Context) (map[string]interface{}, error) {
	vars, st := h.base(c)
	if !st.IsValid() {
		return vars, nil
	}
	results, err := h.monitor.ApplicationHealthChecks(c.Request.Context(), st)
	if err != nil {
		vars["error"] = apiErrorMessage(err)
		return vars, nil
	}
	vars["healthChecks"] = results
	return vars, nil
}

func (h *Handlers) Performance(c *gin.Context) (map[string]interface{}, error) {
	vars, st := h.base(c)
	if !st.IsValid() {
		return vars, nil
	}
	records, err := h.monitor.PerformanceRecords(c.Request.Context(), st, ohdear.LastDays(now(), 1))
	if err != nil {
		vars["error"] = apiErrorMessage(err)
		return vars, nil
	}
	vars["performance"] = records
	return vars, nil
}

// Utility runs the local checks so editors can preview what Oh Dear receives.
func (h *Handlers) Utility(c *gin.Context) (map[string]interface{}, error) {
	vars, st := h.base(c)
	vars["available"] = h.healthCheckOptions(st)
	vars["report"] = h.health.Results(c.Request.Context(), st)
	return vars, nil
}

func (h *Handlers) healthCheckOptions(st *settings.Settings) []map[string]interface{} {
	available := make([]map[string]interface{}, 0, len(h.health.Available()))
	for _, check := range h.health.Available() {
		available = append(available, map[string]interface{}{
			"name":    check.Name(),
			"label":   check.Label(),
			"enabled": st.IsHealthCheckEnabled(check.Name()),
		})
	}
	return available
}

func (h *Handlers) Widget(c *gin.Context) (map[string]interface{}, error) {
	vars, st := h.base(c)
	if !st.IsValid() {
		return vars, nil
	}
	site, err := h.monitor.Site(c.Request.Context(), st)
	if err != nil {
		vars["error"] = apiErrorMessage(err)
		return vars, nil
	}
	vars["site"] = site
	return vars, nil
}

// SettingsPage renders the form. Stored secrets are never sent back.
func (h *Handlers) SettingsPage(c *gin.Context) (map[string]interface{}, error) {
	vars, st := h.base(c)
	vars["selectedSiteId"] = st.SelectedSiteID
	vars["showNavBadges"] = st.ShowNavBadges
	vars["hasToken"] = st.APIToken != ""
	vars["hasSecret"] = st.HealthCheckSecret != nil && *st.HealthCheckSecret != ""
	vars["available"] = h.healthCheckOptions(st)

	if u, ok := h.settings.ReportURL(c.Request.Context(), st, panel.SettingsReportPath); ok {
		vars["healthReportUrl"] = u
	}
	return vars, nil
}
