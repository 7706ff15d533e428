package panel

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ohdear-panel/internal/domain/permission"
)

// DataFunc produces the variables a template route renders with.
type DataFunc func(c *gin.Context) (map[string]interface{}, error)

// Rule maps a path to either a template or a handler. Paths are relative to
// the panel root (CP routes) or the site root (site routes).
type Rule struct {
	Method     string
	Path       string
	Template   string
	Data       DataFunc
	Handler    gin.HandlerFunc
	Permission permission.Key
	// Middleware runs after authentication and before the handler.
	Middleware []gin.HandlerFunc
}

// TemplateEvent is passed to render hooks. Before-render hooks may change
// Variables; after-render hooks may change Output.
type TemplateEvent struct {
	Request   *http.Request
	Panel     bool
	Template  string
	Variables map[string]interface{}
	Output    string
}

type TemplateHook func(e *TemplateEvent)

// Host is what the plugin needs from the application embedding it.
type Host interface {
	// CPTrigger is the first path segment of every panel URL.
	CPTrigger() string
	RegisterPermissions(g permission.Group)
	RegisterSiteRoute(r Rule)
	RegisterCPRoute(r Rule)
	OnBeforeRenderPageTemplate(h TemplateHook)
	OnAfterRenderPageTemplate(h TemplateHook)
}
