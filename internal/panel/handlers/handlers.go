// Package handlers serves the plugin's control panel pages, its JSON actions
// and the public application health report.
package handlers

import (
	"context"
	"errors"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ohdear-panel/internal/domain/actor"
	"github.com/ohdear-panel/internal/domain/ohdear"
	"github.com/ohdear-panel/internal/domain/permission"
	"github.com/ohdear-panel/internal/domain/settings"
	"github.com/ohdear-panel/internal/healthcheck/app/checks"
	healthservice "github.com/ohdear-panel/internal/healthcheck/app/service"
	ohdearservice "github.com/ohdear-panel/internal/ohdear/app/service"
	"github.com/ohdear-panel/internal/panel"
	settingsservice "github.com/ohdear-panel/internal/settings/app/service"
	"github.com/ohdear-panel/pkg/logger"
	"github.com/ohdear-panel/pkg/middleware/auth"
	"github.com/ohdear-panel/pkg/middleware/lockout"
	"github.com/ohdear-panel/pkg/ratelimit"
	"github.com/ohdear-panel/pkg/resilience"
)

// Monitor is the site-bound API surface the pages and actions use.
type Monitor interface {
	Site(ctx context.Context, st *settings.Settings) (*ohdear.Site, error)
	FindCheck(ctx context.Context, st *settings.Settings, checkID int) (ohdear.Check, error)
	ToggleCheck(ctx context.Context, st *settings.Settings, checkID int, enabled bool, actorID string) (*ohdear.Check, error)
	RequestRun(ctx context.Context, st *settings.Settings, checkID int, actorID string) (*ohdear.Check, error)

	BrokenLinks(ctx context.Context, st *settings.Settings) ([]ohdear.BrokenLink, error)
	MixedContent(ctx context.Context, st *settings.Settings) ([]ohdear.MixedContent, error)
	Uptime(ctx context.Context, st *settings.Settings, r ohdear.TimeRange, split string) ([]ohdear.UptimeRecord, error)
	Downtime(ctx context.Context, st *settings.Settings, r ohdear.TimeRange) ([]ohdear.DowntimePeriod, error)
	CertificateHealth(ctx context.Context, st *settings.Settings) (*ohdear.CertificateHealth, error)
	ApplicationHealthChecks(ctx context.Context, st *settings.Settings) ([]ohdear.ApplicationHealthCheck, error)
	PerformanceRecords(ctx context.Context, st *settings.Settings, r ohdear.TimeRange) ([]ohdear.PerformanceRecord, error)
}

// SettingsManager loads, saves and describes the plugin settings.
type SettingsManager interface {
	Current(ctx context.Context) (*settings.Settings, error)
	Save(ctx context.Context, st *settings.Settings, actorID string) (settings.FieldErrors, error)
	ReportURL(ctx context.Context, st *settings.Settings, path string) (string, bool)
}

// HealthReporter runs the local application health checks.
type HealthReporter interface {
	Results(ctx context.Context, st *settings.Settings) healthservice.Report
	Available() []checks.Check
}

// ExtensionSource supplies the per-request navigation and frontend script.
type ExtensionSource interface {
	Extensions(ctx context.Context, a *actor.Actor, panelRequest bool) panel.Extensions
}

type Options struct {
	CPTrigger string
	// HealthRouteRPS limits health report requests per client IP.
	HealthRouteRPS int
	// HealthLimiter replaces the in-process per-IP limiter, e.g. with one
	// shared through Redis.
	HealthLimiter ratelimit.RateLimiter
	// Lockout counts wrong health secrets per client IP. Defaults to an
	// in-memory limiter.
	Lockout lockout.Limiter
}

type Handlers struct {
	monitor    Monitor
	settings   SettingsManager
	health     HealthReporter
	extensions ExtensionSource
	limiter    ratelimit.RateLimiter
	lockout    lockout.Limiter
	cpTrigger  string
	logger     logger.Logger
}

func NewHandlers(
	monitor Monitor,
	settingsManager SettingsManager,
	health HealthReporter,
	extensions ExtensionSource,
	opts Options,
	log logger.Logger,
) *Handlers {
	rps := opts.HealthRouteRPS
	if rps <= 0 {
		rps = 5
	}
	limiter := opts.HealthLimiter
	if limiter == nil {
		limiter = ratelimit.NewKeyedLimiter(rps, rps*2)
	}
	lock := opts.Lockout
	if lock == nil {
		lock = lockout.NewInMemoryLimiter(lockout.DefaultConfig())
	}
	return &Handlers{
		monitor:    monitor,
		settings:   settingsManager,
		health:     health,
		extensions: extensions,
		limiter:    limiter,
		lockout:    lock,
		cpTrigger:  opts.CPTrigger,
		logger:     log,
	}
}

// SiteRoutes returns the public routes. The health report answers under its
// own URI and under the action path shown on the settings page.
func (h *Handlers) SiteRoutes() []panel.Rule {
	guard := []gin.HandlerFunc{
		ratelimit.Middleware(h.limiter, ratelimit.IPKeyFunc),
		lockout.Middleware(h.lockout, http.StatusUnauthorized, h.logger),
	}
	return []panel.Rule{
		{Method: http.MethodGet, Path: panel.HealthReportURI, Handler: h.HealthCheckResults, Middleware: guard},
		{Method: http.MethodGet, Path: panel.SettingsReportPath, Handler: h.HealthCheckResults, Middleware: guard},
	}
}

// CPRoutes returns the panel pages and actions, each gated by its permission.
func (h *Handlers) CPRoutes() []panel.Rule {
	page := func(path, tmpl string, key permission.Key, data panel.DataFunc) panel.Rule {
		return panel.Rule{Method: http.MethodGet, Path: path, Template: tmpl, Data: data, Permission: key}
	}

	return []panel.Rule{
		page("ohdear", "ohdear/overview", permission.ViewOverview, h.Overview),
		page("ohdear/overview", "ohdear/overview", permission.ViewOverview, h.Overview),
		page("ohdear/uptime", "ohdear/uptime", permission.ViewUptime, h.Uptime),
		page("ohdear/broken-links", "ohdear/broken-links", permission.ViewBrokenLinks, h.BrokenLinks),
		page("ohdear/mixed-content", "ohdear/mixed-content", permission.ViewMixedContent, h.MixedContent),
		page("ohdear/certificate-health", "ohdear/certificate-health", permission.ViewCertificateHealth, h.CertificateHealth),
		page("ohdear/application-health", "ohdear/application-health", permission.ViewApplicationHealth, h.ApplicationHealth),
		page("ohdear/performance", "ohdear/performance", permission.ViewPerformance, h.Performance),
		page("ohdear/utility", "ohdear/utility", permission.ViewUtility, h.Utility),
		page("ohdear/widget", "ohdear/widget", permission.ViewOverview, h.Widget),
		page("ohdear/settings", "ohdear/settings", permission.PluginSettings, h.SettingsPage),

		{Method: http.MethodPost, Path: "ohdear/settings", Handler: h.SaveSettings, Permission: permission.PluginSettings},
		{Method: http.MethodPost, Path: "ohdear/checks/:id/toggle", Handler: h.ToggleCheck},
		{Method: http.MethodPost, Path: "ohdear/checks/:id/request-run", Handler: h.RequestRun},
		{Method: http.MethodGet, Path: "ohdear/extensions", Handler: h.Extensions},
	}
}

func (h *Handlers) currentSettings(ctx context.Context) *settings.Settings {
	st, err := h.settings.Current(ctx)
	if err != nil {
		h.logger.Error("Failed to load settings", "error", err)
		return settings.New()
	}
	return st
}

// base returns the variables every plugin page renders with.
func (h *Handlers) base(c *gin.Context) (map[string]interface{}, *settings.Settings) {
	ctx := c.Request.Context()
	a := auth.GetActor(c)
	st := h.currentSettings(ctx)
	ext := h.extensions.Extensions(ctx, a, true)

	return map[string]interface{}{
		"cpTrigger":   h.cpTrigger,
		"handle":      panel.Handle,
		"title":       panel.Name,
		"actor":       a,
		"nav":         ext.Nav,
		"script":      template.JS(ext.Script),
		"permissions": panel.FrontendPermissions(a),
		"configured":  st.IsValid(),
	}, st
}

// apiErrorMessage turns a remote failure into the text shown to the user.
func apiErrorMessage(err error) string {
	var apiErr *ohdear.APIError
	switch {
	case errors.Is(err, ohdearservice.ErrNotConfigured):
		return "Oh Dear is not configured yet."
	case errors.Is(err, ohdear.ErrUnauthorized):
		return settingsservice.MsgAuthenticationFailed
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "Oh Dear is temporarily unavailable."
	case errors.As(err, &apiErr):
		return apiErr.Error()
	default:
		return err.Error()
	}
}

// writeAPIError maps a remote failure to a JSON response.
func (h *Handlers) writeAPIError(c *gin.Context, err error) {
	var apiErr *ohdear.APIError
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, ohdearservice.ErrNotConfigured):
		status = http.StatusConflict
	case errors.Is(err, ohdearservice.ErrUnknownCheck):
		status = http.StatusNotFound
	case errors.Is(err, resilience.ErrCircuitOpen):
		status = http.StatusServiceUnavailable
	case errors.Is(err, ohdear.ErrUnauthorized), errors.Is(err, ohdear.ErrInvalidResponse), errors.As(err, &apiErr):
	default:
		h.logger.Error("Oh Dear request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Oh Dear request failed"})
		return
	}
	c.JSON(status, gin.H{"error": apiErrorMessage(err)})
}
