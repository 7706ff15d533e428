package service

import (
	"context"
	"errors"
	"strings"

	"github.com/ohdear-panel/internal/domain/ohdear"
	"github.com/ohdear-panel/internal/domain/settings"
	ohdearports "github.com/ohdear-panel/internal/ohdear/ports"
	"github.com/ohdear-panel/internal/settings/ports"
	"github.com/ohdear-panel/pkg/events"
	"github.com/ohdear-panel/pkg/logger"
	"github.com/ohdear-panel/pkg/metrics"
)

// Validation messages shown next to the settings form fields.
const (
	MsgAuthenticationFailed = "API authentication failed."
	MsgSiteIDRequired       = "Selected Site ID cannot be blank."
)

// SiteLookup fetches the site selected in the given settings.
type SiteLookup interface {
	Site(ctx context.Context, s *settings.Settings) (*ohdear.Site, error)
	InvalidateSite(ctx context.Context, siteID string) error
}

type SettingsService struct {
	repo     ports.SettingsRepository
	clients  ohdearports.ClientFactory
	sites    SiteLookup
	eventBus events.EventBus
	logger   logger.Logger
}

func NewSettingsService(
	repo ports.SettingsRepository,
	clients ohdearports.ClientFactory,
	sites SiteLookup,
	eventBus events.EventBus,
	log logger.Logger,
) *SettingsService {
	return &SettingsService{
		repo:     repo,
		clients:  clients,
		sites:    sites,
		eventBus: eventBus,
		logger:   log,
	}
}

// Current returns the persisted settings.
func (s *SettingsService) Current(ctx context.Context) (*settings.Settings, error) {
	return s.repo.Get(ctx)
}

// Validate checks the credentials against the live API. It normalizes st in
// place and runs every field rule even when an earlier one failed.
func (s *SettingsService) Validate(ctx context.Context, st *settings.Settings) settings.FieldErrors {
	errs := settings.FieldErrors{}
	st.Normalize()

	if st.APIToken != "" && st.SelectedSiteID == "" {
		errs.Add(settings.FieldSelectedSiteID, MsgSiteIDRequired)
	}

	if st.APIToken != "" {
		s.validateAPIToken(ctx, st, errs)
	}
	s.validateSelectedSiteID(ctx, st, errs)

	return errs
}

func (s *SettingsService) validateAPIToken(ctx context.Context, st *settings.Settings, errs settings.FieldErrors) {
	_, err := s.clients(st.ResolvedAPIToken()).Me(ctx)
	s.record(settings.FieldAPIToken, err, errs)
}

func (s *SettingsService) validateSelectedSiteID(ctx context.Context, st *settings.Settings, errs settings.FieldErrors) {
	if !st.IsValid() {
		return
	}
	_, err := s.clients(st.ResolvedAPIToken()).Site(ctx, st.ResolvedSelectedSiteID())
	s.record(settings.FieldSelectedSiteID, err, errs)
}

func (s *SettingsService) record(field string, err error, errs settings.FieldErrors) {
	switch {
	case err == nil:
		metrics.SettingsValidations.WithLabelValues(field, "ok").Inc()
		return
	case errors.Is(err, ohdear.ErrUnauthorized):
		metrics.SettingsValidations.WithLabelValues(field, "unauthorized").Inc()
		errs.Add(field, MsgAuthenticationFailed)
	default:
		metrics.SettingsValidations.WithLabelValues(field, "error").Inc()
		errs.Add(field, err.Error())
	}
	s.logger.Debug("Settings field rejected", "field", field, "error", err)
}

// Save validates st and persists it when every field passes. Field errors
// are returned without an error; the error result is for storage failures.
func (s *SettingsService) Save(ctx context.Context, st *settings.Settings, actorID string) (settings.FieldErrors, error) {
	errs := s.Validate(ctx, st)
	if errs.HasErrors() {
		return errs, nil
	}

	if err := s.repo.Save(ctx, st, actorID); err != nil {
		return nil, err
	}

	siteID := st.ResolvedSelectedSiteID()
	if s.sites != nil {
		if err := s.sites.InvalidateSite(ctx, siteID); err != nil {
			s.logger.Warn("Site cache invalidation failed", "siteId", siteID, "error", err)
		}
	}

	if s.eventBus != nil {
		event := events.NewEventBuilder(events.SettingsSaved).
			WithAggregateID(siteID).
			WithUserID(actorID).
			WithPayload("siteId", siteID).
			WithPayload("showNavBadges", st.ShowNavBadges).
			Build()
		if err := s.eventBus.Publish(ctx, event); err != nil {
			s.logger.Error("Failed to publish event", "type", event.Type, "error", err)
		}
	}

	s.logger.Info("Settings saved", "siteId", siteID, "actor", actorID)
	return errs, nil
}

// HealthReportURL returns the public URL of path on the selected site.
func (s *SettingsService) HealthReportURL(ctx context.Context, path string) (string, bool) {
	st, err := s.Current(ctx)
	if err != nil {
		s.logger.Warn("Could not load settings for report URL", "error", err)
		return "", false
	}
	return s.ReportURL(ctx, st, path)
}

// ReportURL joins the selected site's URL and path with a single "/".
// Invalid settings or a failed site lookup yield false; nothing is raised.
func (s *SettingsService) ReportURL(ctx context.Context, st *settings.Settings, path string) (string, bool) {
	if st == nil || !st.IsValid() {
		return "", false
	}

	site, err := s.sites.Site(ctx, st)
	if err != nil {
		s.logger.Warn("Could not resolve health report URL", "siteId", st.ResolvedSelectedSiteID(), "error", err)
		return "", false
	}

	return strings.TrimRight(site.URL, "/") + "/" + strings.TrimLeft(path, "/"), true
}
