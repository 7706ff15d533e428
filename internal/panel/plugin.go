// Package panel wires the Oh Dear plugin into its host: permissions, routes,
// navigation, render hooks and the per-request extension points.
package panel

import (
	"context"
	"sync"

	"github.com/ohdear-panel/internal/domain/actor"
	"github.com/ohdear-panel/internal/domain/permission"
	"github.com/ohdear-panel/internal/domain/settings"
	"github.com/ohdear-panel/internal/navigation"
	"github.com/ohdear-panel/pkg/logger"
)

const (
	// Handle is the plugin's URL segment and navigation key.
	Handle = "ohdear"
	// Name is the plugin's display name.
	Name = "Oh Dear"

	// HealthReportURI is the site route Oh Dear polls for application health.
	HealthReportURI = "ohdear/api/health-check-results"
	// SettingsReportPath is the report endpoint shown on the settings page.
	SettingsReportPath = "actions/ohdear/health-check/results"

	WidgetType  = "OhDearWidget"
	UtilityType = "HealthCheckUtility"
)

// SettingsSource loads the current plugin settings.
type SettingsSource interface {
	Current(ctx context.Context) (*settings.Settings, error)
}

// Routes supplies the plugin's route rules.
type Routes interface {
	SiteRoutes() []Rule
	CPRoutes() []Rule
}

// Extensions are the host extension points contributed for one request.
type Extensions struct {
	Nav       *navigation.Item `json:"nav"`
	Widgets   []string         `json:"widgets"`
	Utilities []string         `json:"utilities"`
	Script    string           `json:"script,omitempty"`
}

// Plugin is the installed plugin. One value is created at startup and
// shared by every request.
type Plugin struct {
	settings SettingsSource
	nav      *navigation.Builder
	logger   logger.Logger

	permissionsOnce sync.Once
}

func New(src SettingsSource, nav *navigation.Builder, log logger.Logger) *Plugin {
	return &Plugin{
		settings: src,
		nav:      nav,
		logger:   log,
	}
}

// Install registers permissions, routes and render hooks with the host.
// Permissions are registered once per process even if Install is repeated.
func (p *Plugin) Install(h Host, routes Routes) {
	p.permissionsOnce.Do(func() {
		h.RegisterPermissions(permission.Tree())
	})

	for _, r := range routes.SiteRoutes() {
		h.RegisterSiteRoute(r)
	}
	for _, r := range routes.CPRoutes() {
		h.RegisterCPRoute(r)
	}

	cpTrigger := h.CPTrigger()
	h.OnBeforeRenderPageTemplate(func(e *TemplateEvent) {
		if !e.Panel || e.Request == nil {
			return
		}
		if target, ok := RedirectTarget(cpTrigger, e.Template, e.Request.Referer()); ok {
			e.Variables[RedirectTargetVar] = target
		}
	})
	h.OnAfterRenderPageTemplate(func(e *TemplateEvent) {
		if !e.Panel || e.Request == nil {
			return
		}
		if target, ok := RedirectTarget(cpTrigger, e.Template, e.Request.Referer()); ok {
			e.Output = PatchRedirectInput(e.Output, target)
		}
	})

	p.logger.Info("Plugin installed", "handle", Handle, "cpTrigger", cpTrigger)
}

// CurrentSettings returns the persisted settings, or empty settings when
// they cannot be loaded.
func (p *Plugin) CurrentSettings(ctx context.Context) *settings.Settings {
	st, err := p.settings.Current(ctx)
	if err != nil {
		p.logger.Error("Failed to load settings", "error", err)
		return settings.New()
	}
	return st
}

// Extensions returns what the plugin contributes to a request. Outside the
// panel nothing is contributed; without an actor only the base navigation
// entry is.
func (p *Plugin) Extensions(ctx context.Context, a *actor.Actor, panelRequest bool) Extensions {
	ext := Extensions{Widgets: []string{}, Utilities: []string{}}
	if !panelRequest {
		return ext
	}

	st := p.CurrentSettings(ctx)
	ext.Nav = p.nav.Build(ctx, a.PermissionSet(), st)
	if a == nil {
		return ext
	}

	if st.IsValid() {
		ext.Widgets = append(ext.Widgets, WidgetType)
	}
	if a.Can(permission.ViewUtility) {
		ext.Utilities = append(ext.Utilities, UtilityType)
	}

	script, err := PermissionsScript(a)
	if err != nil {
		p.logger.Error("Failed to render frontend permissions", "error", err)
	} else {
		ext.Script = script
	}
	return ext
}
