package panel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ohdear-panel/internal/domain/actor"
	"github.com/ohdear-panel/internal/domain/permission"
	"github.com/ohdear-panel/internal/domain/settings"
	"github.com/ohdear-panel/internal/navigation"
	"github.com/ohdear-panel/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHost struct {
	groups     []permission.Group
	siteRoutes []Rule
	cpRoutes   []Rule
	before     []TemplateHook
	after      []TemplateHook
}

func (h *fakeHost) CPTrigger() string                      { return "admin" }
func (h *fakeHost) RegisterPermissions(g permission.Group) { h.groups = append(h.groups, g) }
func (h *fakeHost) RegisterSiteRoute(r Rule)               { h.siteRoutes = append(h.siteRoutes, r) }
func (h *fakeHost) RegisterCPRoute(r Rule)                 { h.cpRoutes = append(h.cpRoutes, r) }
func (h *fakeHost) OnBeforeRenderPageTemplate(f TemplateHook) {
	h.before = append(h.before, f)
}
func (h *fakeHost) OnAfterRenderPageTemplate(f TemplateHook) {
	h.after = append(h.after, f)
}

func (h *fakeHost) render(r *http.Request, panel bool, template, output string) *TemplateEvent {
	e := &TemplateEvent{Request: r, Panel: panel, Template: template, Variables: map[string]interface{}{}}
	for _, f := range h.before {
		f(e)
	}
	e.Output = output
	for _, f := range h.after {
		f(e)
	}
	return e
}

type staticRoutes struct{}

func (staticRoutes) SiteRoutes() []Rule {
	return []Rule{{Path: HealthReportURI}}
}

func (staticRoutes) CPRoutes() []Rule {
	return []Rule{{Path: "ohdear", Template: "ohdear/overview", Permission: permission.ViewOverview}}
}

type staticSettings struct {
	st  *settings.Settings
	err error
}

func (s staticSettings) Current(ctx context.Context) (*settings.Settings, error) {
	return s.st, s.err
}

type zeroBadges struct{}

func (zeroBadges) BrokenLinksCount(ctx context.Context, st *settings.Settings) int  { return 0 }
func (zeroBadges) MixedContentCount(ctx context.Context, st *settings.Settings) int { return 0 }

func newPlugin(st *settings.Settings, err error) *Plugin {
	nav := navigation.NewBuilder(Handle, Name, zeroBadges{})
	return New(staticSettings{st: st, err: err}, nav, logger.NewNop())
}

func validSettings() *settings.Settings {
	return &settings.Settings{APIToken: "tok", SelectedSiteID: "42"}
}

func TestInstall_RegistersPermissionsOnce(t *testing.T) {
	p := newPlugin(validSettings(), nil)
	h := &fakeHost{}

	p.Install(h, staticRoutes{})
	p.Install(h, staticRoutes{})

	require.Len(t, h.groups, 1)
	assert.Equal(t, permission.Heading, h.groups[0].Heading)
	assert.Len(t, h.siteRoutes, 2)
	assert.Equal(t, HealthReportURI, h.siteRoutes[0].Path)
	assert.Len(t, h.cpRoutes, 2)
}

func TestInstall_RedirectHooks(t *testing.T) {
	p := newPlugin(validSettings(), nil)
	h := &fakeHost{}
	p.Install(h, staticRoutes{})

	page := `<form><input type="hidden" name="redirect" value="entries">`

	req := httptest.NewRequest(http.MethodGet, "/admin/entries/blog/1", nil)
	req.Header.Set("Referer", "https://cms.test/admin/ohdear/mixed-content")

	e := h.render(req, true, EntryEditTemplate, page)
	assert.Equal(t, "/admin/ohdear/mixed-content", e.Variables[RedirectTargetVar])
	assert.Equal(t, `<form><input type="hidden" name="redirect" value="/admin/ohdear/mixed-content">`, e.Output)

	e = h.render(req, false, EntryEditTemplate, page)
	assert.Equal(t, page, e.Output)
	assert.NotContains(t, e.Variables, RedirectTargetVar)

	e = h.render(req, true, "ohdear/overview", page)
	assert.Equal(t, page, e.Output)
}

func TestExtensions(t *testing.T) {
	all := &actor.Actor{ID: "1", Permissions: permission.Everything()}

	t.Run("site request", func(t *testing.T) {
		ext := newPlugin(validSettings(), nil).Extensions(context.Background(), all, false)
		assert.Nil(t, ext.Nav)
		assert.Empty(t, ext.Widgets)
		assert.Empty(t, ext.Script)
	})

	t.Run("no actor", func(t *testing.T) {
		ext := newPlugin(validSettings(), nil).Extensions(context.Background(), nil, true)
		require.NotNil(t, ext.Nav)
		assert.Empty(t, ext.Nav.Subnav)
		assert.Empty(t, ext.Widgets)
		assert.Empty(t, ext.Utilities)
		assert.Empty(t, ext.Script)
	})

	t.Run("full access", func(t *testing.T) {
		ext := newPlugin(validSettings(), nil).Extensions(context.Background(), all, true)
		require.NotNil(t, ext.Nav)
		assert.Len(t, ext.Nav.Subnav, 7)
		assert.Equal(t, []string{WidgetType}, ext.Widgets)
		assert.Equal(t, []string{UtilityType}, ext.Utilities)
		assert.Contains(t, ext.Script, "window.OhDear.permissions = {")
	})

	t.Run("invalid settings hide the widget", func(t *testing.T) {
		ext := newPlugin(settings.New(), nil).Extensions(context.Background(), all, true)
		assert.Empty(t, ext.Widgets)
		assert.Empty(t, ext.Nav.Subnav)
	})

	t.Run("settings failure", func(t *testing.T) {
		ext := newPlugin(nil, errors.New("db down")).Extensions(context.Background(), all, true)
		require.NotNil(t, ext.Nav)
		assert.Empty(t, ext.Widgets)
	})

	t.Run("no overview permission", func(t *testing.T) {
		a := &actor.Actor{ID: "2", Permissions: permission.NewSet(permission.ViewUtility)}
		ext := newPlugin(validSettings(), nil).Extensions(context.Background(), a, true)
		assert.Nil(t, ext.Nav)
		assert.Equal(t, []string{UtilityType}, ext.Utilities)
	})
}
