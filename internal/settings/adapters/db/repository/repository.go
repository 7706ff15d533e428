package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ohdear-panel/internal/domain/settings"
	"github.com/ohdear-panel/pkg/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// The plugin has exactly one settings row.
const settingsRowID = 1

// Record is the persisted form of the plugin settings.
type Record struct {
	ID                uint            `gorm:"primaryKey"`
	APIToken          string          `gorm:"column:api_token"`
	SelectedSiteID    string          `gorm:"column:selected_site_id"`
	HealthCheckSecret *string         `gorm:"column:health_check_secret"`
	HealthChecks      map[string]bool `gorm:"column:health_checks;serializer:json"`
	ShowNavBadges     bool            `gorm:"column:show_nav_badges"`
	UpdatedBy         string          `gorm:"column:updated_by"`
	UpdatedAt         time.Time
}

func (Record) TableName() string {
	return "ohdear_settings"
}

type SettingsRepository struct {
	db *database.DB
}

func NewSettingsRepository(db *database.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Migrate creates the settings table.
func (r *SettingsRepository) Migrate() error {
	return r.db.Migrate(&Record{})
}

func (r *SettingsRepository) Get(ctx context.Context) (*settings.Settings, error) {
	var rec Record
	err := r.db.WithContext(ctx).Where("id = ?", settingsRowID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return settings.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	s := &settings.Settings{
		APIToken:          rec.APIToken,
		SelectedSiteID:    rec.SelectedSiteID,
		HealthCheckSecret: rec.HealthCheckSecret,
		HealthChecks:      rec.HealthChecks,
		ShowNavBadges:     rec.ShowNavBadges,
	}
	s.Normalize()
	return s, nil
}

func (r *SettingsRepository) Save(ctx context.Context, s *settings.Settings, actorID string) error {
	rec := Record{
		ID:                settingsRowID,
		APIToken:          s.APIToken,
		SelectedSiteID:    s.SelectedSiteID,
		HealthCheckSecret: s.HealthCheckSecret,
		HealthChecks:      s.HealthChecks,
		ShowNavBadges:     s.ShowNavBadges,
		UpdatedBy:         actorID,
	}
	if rec.HealthChecks == nil {
		rec.HealthChecks = map[string]bool{}
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
