package ports

import (
	"context"

	"github.com/ohdear-panel/internal/domain/settings"
)

// SettingsRepository persists the plugin settings. Get returns defaults
// when nothing has been saved yet.
type SettingsRepository interface {
	Get(ctx context.Context) (*settings.Settings, error)
	Save(ctx context.Context, s *settings.Settings, actorID string) error
}
