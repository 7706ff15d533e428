package rbac

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/ohdear-panel/internal/domain/permission"
	"github.com/ohdear-panel/pkg/database"
	"github.com/ohdear-panel/pkg/logger"
)

// Wildcard grants every permission key.
const Wildcard = "*"

// Subjects are users or roles, objects are permission keys.
const modelText = `
[request_definition]
r = sub, obj

[policy_definition]
p = sub, obj

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && (r.obj == p.obj || p.obj == "*")
`

// Enforcer resolves which panel permissions an actor holds.
type Enforcer struct {
	enforcer *casbin.Enforcer
	logger   logger.Logger
}

// NewEnforcer creates an enforcer whose policy is stored in db.
func NewEnforcer(db *database.DB, log logger.Logger) (*Enforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to create adapter: %w", err)
	}

	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rbac model: %w", err)
	}

	e, err := casbin.NewEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcer: %w", err)
	}
	e.EnableAutoSave(true)
	e.EnableLog(false)

	return &Enforcer{enforcer: e, logger: log}, nil
}

// SeedRoles grants each role its listed permission keys. Unknown keys are
// skipped with a warning; existing grants are left alone.
func (e *Enforcer) SeedRoles(roles map[string][]string) error {
	for role, keys := range roles {
		for _, raw := range keys {
			if raw != Wildcard && raw != string(permission.AccessPlugin) {
				if _, ok := permission.Parse(raw); !ok {
					e.logger.Warn("Skipping unknown permission", "role", role, "permission", raw)
					continue
				}
			}
			if _, err := e.enforcer.AddPolicy(role, raw); err != nil {
				return fmt.Errorf("failed to grant %s to %s: %w", raw, role, err)
			}
		}
	}
	return nil
}

// Grant gives subject (user or role) a permission key.
func (e *Enforcer) Grant(subject string, key permission.Key) error {
	if _, err := e.enforcer.AddPolicy(subject, string(key)); err != nil {
		return fmt.Errorf("failed to add permission: %w", err)
	}
	return nil
}

// Revoke removes a permission key from subject.
func (e *Enforcer) Revoke(subject string, key permission.Key) error {
	if _, err := e.enforcer.RemovePolicy(subject, string(key)); err != nil {
		return fmt.Errorf("failed to remove permission: %w", err)
	}
	return nil
}

// AddRole assigns a role to a user.
func (e *Enforcer) AddRole(userID, role string) error {
	added, err := e.enforcer.AddGroupingPolicy(userID, role)
	if err != nil {
		return fmt.Errorf("failed to add role: %w", err)
	}
	if added {
		e.logger.Info("Role assigned", "user", userID, "role", role)
	}
	return nil
}

// RemoveRole removes a role from a user.
func (e *Enforcer) RemoveRole(userID, role string) error {
	if _, err := e.enforcer.RemoveGroupingPolicy(userID, role); err != nil {
		return fmt.Errorf("failed to remove role: %w", err)
	}
	return nil
}

// GetRoles returns all roles assigned to a user
func (e *Enforcer) GetRoles(userID string) ([]string, error) {
	roles, err := e.enforcer.GetRolesForUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get roles: %w", err)
	}
	return roles, nil
}

// Resolve returns every permission held by userID directly, through stored
// role assignments, or through the roles carried by the session.
func (e *Enforcer) Resolve(userID string, sessionRoles []string) (permission.Set, error) {
	subjects := append([]string{userID}, sessionRoles...)
	var granted []permission.Key
	for _, key := range permission.Everything().Keys() {
		for _, sub := range subjects {
			ok, err := e.enforcer.Enforce(sub, string(key))
			if err != nil {
				e.logger.Error("Failed to check permission", "subject", sub, "permission", key, "error", err)
				return permission.Set{}, err
			}
			if ok {
				granted = append(granted, key)
				break
			}
		}
	}

	perms := permission.NewSet(granted...)
	e.logger.Debug("Permissions resolved", "user", userID, "count", perms.Len())
	return perms, nil
}

// Predefined roles
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)
