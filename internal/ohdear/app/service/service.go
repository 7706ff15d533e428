package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/ohdear-panel/internal/domain/ohdear"
	"github.com/ohdear-panel/internal/domain/permission"
	"github.com/ohdear-panel/internal/domain/settings"
	"github.com/ohdear-panel/internal/ohdear/ports"
	"github.com/ohdear-panel/pkg/cache"
	"github.com/ohdear-panel/pkg/events"
	"github.com/ohdear-panel/pkg/logger"
)

var (
	// ErrNotConfigured is returned when the settings lack a token or a site.
	ErrNotConfigured = errors.New("Oh Dear is not configured")
	// ErrUnknownCheck is returned for a check id that does not belong to the selected site.
	ErrUnknownCheck = errors.New("check does not belong to the selected site")
)

// OhDearService calls the API on behalf of the selected site.
type OhDearService struct {
	clients  ports.ClientFactory
	cache    cache.Cache
	eventBus events.EventBus
	logger   logger.Logger
	siteTTL  time.Duration
	keys     *cache.KeyBuilder
}

func NewOhDearService(
	clients ports.ClientFactory,
	c cache.Cache,
	eventBus events.EventBus,
	log logger.Logger,
	siteTTL time.Duration,
) *OhDearService {
	if c == nil {
		c = cache.NewNopCache()
	}
	return &OhDearService{
		clients:  clients,
		cache:    c,
		eventBus: eventBus,
		logger:   log,
		siteTTL:  siteTTL,
		keys:     cache.NewKeyBuilder(),
	}
}

func (s *OhDearService) bind(st *settings.Settings) (ports.Client, string, error) {
	if st == nil || !st.IsValid() {
		return nil, "", ErrNotConfigured
	}
	return s.clients(st.ResolvedAPIToken()), st.ResolvedSelectedSiteID(), nil
}

// Site returns the selected site, served from cache when possible.
func (s *OhDearService) Site(ctx context.Context, st *settings.Settings) (*ohdear.Site, error) {
	client, siteID, err := s.bind(st)
	if err != nil {
		return nil, err
	}

	key := s.keys.Build("site", siteID)
	var site ohdear.Site
	if err := s.cache.Get(ctx, key, &site); err == nil {
		return &site, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("Site cache read failed", "siteId", siteID, "error", err)
	}

	fetched, err := client.Site(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, fetched, s.siteTTL); err != nil {
		s.logger.Warn("Site cache write failed", "siteId", siteID, "error", err)
	}
	return fetched, nil
}

// InvalidateSite drops the cached copy of a site.
func (s *OhDearService) InvalidateSite(ctx context.Context, siteID string) error {
	if siteID == "" {
		return nil
	}
	return s.cache.Delete(ctx, s.keys.Build("site", siteID))
}

// FindCheck returns the selected site's check with the given id.
func (s *OhDearService) FindCheck(ctx context.Context, st *settings.Settings, checkID int) (ohdear.Check, error) {
	site, err := s.Site(ctx, st)
	if err != nil {
		return ohdear.Check{}, err
	}
	check, ok := site.CheckByID(checkID)
	if !ok {
		return ohdear.Check{}, ErrUnknownCheck
	}
	return check, nil
}

// ToggleCheck enables or disables one of the selected site's checks.
func (s *OhDearService) ToggleCheck(ctx context.Context, st *settings.Settings, checkID int, enabled bool, actorID string) (*ohdear.Check, error) {
	client, siteID, err := s.bind(st)
	if err != nil {
		return nil, err
	}
	if _, err := s.FindCheck(ctx, st, checkID); err != nil {
		return nil, err
	}

	var check *ohdear.Check
	if enabled {
		check, err = client.EnableCheck(ctx, checkID)
	} else {
		check, err = client.DisableCheck(ctx, checkID)
	}
	if err != nil {
		return nil, err
	}

	s.afterCheckChange(ctx, siteID)
	s.publish(ctx, events.NewEventBuilder(events.CheckToggled).
		WithAggregateID(strconv.Itoa(checkID)).
		WithUserID(actorID).
		WithPayload("siteId", siteID).
		WithPayload("checkType", check.Type).
		WithPayload("enabled", check.Enabled).
		Build())

	s.logger.Info("Check toggled", "siteId", siteID, "checkId", checkID, "enabled", check.Enabled)
	return check, nil
}

// RequestRun asks the API to run one of the selected site's checks now.
func (s *OhDearService) RequestRun(ctx context.Context, st *settings.Settings, checkID int, actorID string) (*ohdear.Check, error) {
	client, siteID, err := s.bind(st)
	if err != nil {
		return nil, err
	}
	if _, err := s.FindCheck(ctx, st, checkID); err != nil {
		return nil, err
	}

	check, err := client.RequestCheckRun(ctx, checkID)
	if err != nil {
		return nil, err
	}

	s.afterCheckChange(ctx, siteID)
	s.publish(ctx, events.NewEventBuilder(events.CheckRunRequested).
		WithAggregateID(strconv.Itoa(checkID)).
		WithUserID(actorID).
		WithPayload("siteId", siteID).
		WithPayload("checkType", check.Type).
		Build())

	s.logger.Info("Check run requested", "siteId", siteID, "checkId", checkID)
	return check, nil
}

func (s *OhDearService) afterCheckChange(ctx context.Context, siteID string) {
	if err := s.InvalidateSite(ctx, siteID); err != nil {
		s.logger.Warn("Site cache invalidation failed", "siteId", siteID, "error", err)
	}
}

func (s *OhDearService) publish(ctx context.Context, event events.Event) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish event", "type", event.Type, "error", err)
	}
}

// CheckFeature maps an API check type to the feature whose permissions guard it.
func CheckFeature(checkType string) (permission.Feature, bool) {
	for _, f := range permission.Features() {
		if f.JSName() == checkType {
			return f, true
		}
	}
	return 0, false
}

func (s *OhDearService) BrokenLinks(ctx context.Context, st *settings.Settings) ([]ohdear.BrokenLink, error) {
	client, siteID, err := s.bind(st)
	if err != nil {
		return nil, err
	}
	return client.BrokenLinks(ctx, siteID)
}

func (s *OhDearService) MixedContent(ctx context.Context, st *settings.Settings) ([]ohdear.MixedContent, error) {
	client, siteID, err := s.bind(st)
	if err != nil {
		return nil, err
	}
	return client.MixedContent(ctx, siteID)
}

func (s *OhDearService) Uptime(ctx context.Context, st *settings.Settings, r ohdear.TimeRange, split string) ([]ohdear.UptimeRecord, error) {
	client, siteID, err := s.bind(st)
	if err != nil {
		return nil, err
	}
	return client.Uptime(ctx, siteID, r, split)
}

func (s *OhDearService) Downtime(ctx context.Context, st *settings.Settings, r ohdear.TimeRange) ([]ohdear.DowntimePeriod, error) {
	client, siteID, err := s.bind(st)
	if err != nil {
		return nil, err
	}
	return client.Downtime(ctx, siteID, r)
}

func (s *OhDearService) CertificateHealth(ctx context.Context, st *settings.Settings) (*ohdear.CertificateHealth, error) {
	client, siteID, err := s.bind(st)
	if err != nil {
		return nil, err
	}
	return client.CertificateHealth(ctx, siteID)
}

func (s *OhDearService) ApplicationHealthChecks(ctx context.Context, st *settings.Settings) ([]ohdear.ApplicationHealthCheck, error) {
	client, siteID, err := s.bind(st)
	if err != nil {
		return nil, err
	}
	return client.ApplicationHealthChecks(ctx, siteID)
}

func (s *OhDearService) PerformanceRecords(ctx context.Context, st *settings.Settings, r ohdear.TimeRange) ([]ohdear.PerformanceRecord, error) {
	client, siteID, err := s.bind(st)
	if err != nil {
		return nil, err
	}
	return client.PerformanceRecords(ctx, siteID, r)
}

