package server

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/ohdear-panel/internal/domain/permission"
	"github.com/ohdear-panel/internal/panel"
	"github.com/ohdear-panel/pkg/logger"
	"github.com/ohdear-panel/pkg/middleware/auth"
)

// Authenticator attaches the signed-in actor to panel and site requests.
type Authenticator interface {
	// Handle rejects requests without a session.
	Handle() gin.HandlerFunc
	// Optional attaches the actor when present.
	Optional() gin.HandlerFunc
}

// Host is the gin implementation of panel.Host. Panel routes live under
// /{cpTrigger}, site routes under /.
type Host struct {
	engine    *gin.Engine
	cp        *gin.RouterGroup
	cpTrigger string
	auth      Authenticator
	templates *template.Template
	logger    logger.Logger

	mu          sync.RWMutex
	before      []panel.TemplateHook
	after       []panel.TemplateHook
	permissions []permission.Group
}

var _ panel.Host = (*Host)(nil)

// NewHost parses every .html file in templates, naming each by its path
// without the suffix.
func NewHost(engine *gin.Engine, cpTrigger string, authn Authenticator, templates fs.FS, log logger.Logger) (*Host, error) {
	tmpl, err := parseTemplates(templates)
	if err != nil {
		return nil, err
	}
	cpTrigger = strings.Trim(cpTrigger, "/")

	return &Host{
		engine:    engine,
		cp:        engine.Group("/" + cpTrigger),
		cpTrigger: cpTrigger,
		auth:      authn,
		templates: tmpl,
		logger:    log,
	}, nil
}

func parseTemplates(fsys fs.FS) (*template.Template, error) {
	root := template.New("")
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".html" {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(p, ".html")
		if _, err := root.New(name).Parse(string(data)); err != nil {
			return fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}
	return root, nil
}

func (h *Host) CPTrigger() string {
	return h.cpTrigger
}

func (h *Host) RegisterPermissions(g permission.Group) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.permissions = append(h.permissions, g)
}

// Permissions returns the registered permission groups.
func (h *Host) Permissions() []permission.Group {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]permission.Group(nil), h.permissions...)
}

func (h *Host) RegisterSiteRoute(r panel.Rule) {
	chain := []gin.HandlerFunc{h.auth.Optional()}
	chain = append(chain, r.Middleware...)
	chain = append(chain, h.endpoint(r, false))
	h.engine.Handle(method(r), "/"+strings.TrimLeft(r.Path, "/"), chain...)
}

// RegisterCPRoute mounts r under the panel. Every panel route needs a
// session; rules with a permission also need that permission.
func (h *Host) RegisterCPRoute(r panel.Rule) {
	chain := []gin.HandlerFunc{h.auth.Handle()}
	if r.Permission != "" {
		chain = append(chain, auth.RequirePermission(r.Permission))
	}
	chain = append(chain, r.Middleware...)
	chain = append(chain, h.endpoint(r, true))
	h.cp.Handle(method(r), "/"+strings.TrimLeft(r.Path, "/"), chain...)
}

func (h *Host) OnBeforeRenderPageTemplate(hook panel.TemplateHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.before = append(h.before, hook)
}

func (h *Host) OnAfterRenderPageTemplate(hook panel.TemplateHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.after = append(h.after, hook)
}

func method(r panel.Rule) string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}

func (h *Host) endpoint(r panel.Rule, panelRequest bool) gin.HandlerFunc {
	if r.Handler != nil {
		return r.Handler
	}
	return func(c *gin.Context) {
		vars := map[string]interface{}{}
		if r.Data != nil {
			data, err := r.Data(c)
			if err != nil {
				h.logger.Error("Failed to load page data", "template", r.Template, "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load page"})
				return
			}
			if data != nil {
				vars = data
			}
		}
		h.Render(c, http.StatusOK, r.Template, vars, panelRequest)
	}
}

// Render executes the named template between the before and after render
// hooks and writes the result.
func (h *Host) Render(c *gin.Context, status int, name string, vars map[string]interface{}, panelRequest bool) {
	h.mu.RLock()
	before := append([]panel.TemplateHook(nil), h.before...)
	after := append([]panel.TemplateHook(nil), h.after...)
	h.mu.RUnlock()

	if vars == nil {
		vars = map[string]interface{}{}
	}
	e := &panel.TemplateEvent{
		Request:   c.Request,
		Panel:     panelRequest,
		Template:  name,
		Variables: vars,
	}
	for _, hook := range before {
		hook(e)
	}

	var buf bytes.Buffer
	if err := h.templates.ExecuteTemplate(&buf, name, e.Variables); err != nil {
		h.logger.Error("Failed to render template", "template", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render page"})
		return
	}
	e.Output = buf.String()

	for _, hook := range after {
		hook(e)
	}
	c.Data(status, "text/html; charset=utf-8", []byte(e.Output))
}
