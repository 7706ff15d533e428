package service

import (
	"context"
	"errors"
	"time"

	"github.com/ohdear-panel/internal/domain/ohdear"
	"github.com/ohdear-panel/internal/domain/settings"
	"github.com/ohdear-panel/pkg/cache"
	"github.com/ohdear-panel/pkg/events"
	"github.com/ohdear-panel/pkg/logger"
	"github.com/ohdear-panel/pkg/metrics"
)

const (
	kindBrokenLinks  = "broken_links"
	kindMixedContent = "mixed_content"
)

// Source lists the findings that badges count.
type Source interface {
	BrokenLinks(ctx context.Context, st *settings.Settings) ([]ohdear.BrokenLink, error)
	MixedContent(ctx context.Context, st *settings.Settings) ([]ohdear.MixedContent, error)
}

// BadgeService counts open findings for the navigation badges. It never
// returns an error: anything that goes wrong counts as zero.
type BadgeService struct {
	source Source
	cache  cache.Cache
	logger logger.Logger
	ttl    time.Duration
	keys   *cache.KeyBuilder
}

func NewBadgeService(source Source, c cache.Cache, log logger.Logger, ttl time.Duration) *BadgeService {
	if c == nil {
		c = cache.NewNopCache()
	}
	return &BadgeService{
		source: source,
		cache:  c,
		logger: log,
		ttl:    ttl,
		keys:   cache.NewKeyBuilder(),
	}
}

func (s *BadgeService) BrokenLinksCount(ctx context.Context, st *settings.Settings) int {
	return s.count(ctx, st, kindBrokenLinks, func() (int, error) {
		links, err := s.source.BrokenLinks(ctx, st)
		return len(links), err
	})
}

func (s *BadgeService) MixedContentCount(ctx context.Context, st *settings.Settings) int {
	return s.count(ctx, st, kindMixedContent, func() (int, error) {
		items, err := s.source.MixedContent(ctx, st)
		return len(items), err
	})
}

func (s *BadgeService) count(ctx context.Context, st *settings.Settings, kind string, fetch func() (int, error)) int {
	if st == nil || !st.IsValid() {
		return 0
	}

	key := s.keys.Build("badge", kind, st.ResolvedSelectedSiteID())
	var n int
	if err := s.cache.Get(ctx, key, &n); err == nil {
		return n
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("Badge cache read failed", "kind", kind, "error", err)
	}

	n, err := fetch()
	if err != nil {
		metrics.BadgeFetchFailures.WithLabelValues(kind).Inc()
		s.logger.Warn("Badge count unavailable", "kind", kind, "error", err)
		return 0
	}

	if err := s.cache.Set(ctx, key, n, s.ttl); err != nil {
		s.logger.Warn("Badge cache write failed", "kind", kind, "error", err)
	}
	return n
}

// Invalidate drops every cached count.
func (s *BadgeService) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx, s.keys.Pattern("badge"))
}

// HandlePluginEvent clears the counts after settings or checks change.
func (s *BadgeService) HandlePluginEvent(ctx context.Context, event events.Event) error {
	if err := s.Invalidate(ctx); err != nil {
		s.logger.Warn("Badge cache invalidation failed", "event", event.Type, "error", err)
		return err
	}
	return nil
}
