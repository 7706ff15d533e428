package auth

import "github.com/ohdear-panel/internal/domain/permission"

// PermissionResolver turns a session identity into the permissions it holds.
type PermissionResolver interface {
	Resolve(userID string, roles []string) (permission.Set, error)
}
