// Package navigation builds the panel navigation entry for the current actor.
package navigation

import (
	"context"

	"github.com/ohdear-panel/internal/domain/permission"
	"github.com/ohdear-panel/internal/domain/settings"
	"github.com/ohdear-panel/pkg/metrics"
)

// Item is the plugin's top-level navigation entry.
type Item struct {
	Key        string    `json:"key"`
	URL        string    `json:"url"`
	Label      string    `json:"label"`
	BadgeCount int       `json:"badgeCount,omitempty"`
	Subnav     []SubItem `json:"subnav,omitempty"`
}

type SubItem struct {
	Key        string `json:"key"`
	URL        string `json:"url"`
	Label      string `json:"label"`
	BadgeCount int    `json:"badgeCount,omitempty"`
}

// BadgeCounter supplies badge numbers. Implementations report failures as 0.
type BadgeCounter interface {
	BrokenLinksCount(ctx context.Context, st *settings.Settings) int
	MixedContentCount(ctx context.Context, st *settings.Settings) int
}

type entry struct {
	key   string
	label string
	view  permission.Key
	badge func(BadgeCounter, context.Context, *settings.Settings) int
}

// Sub-items in display order.
var entries = []entry{
	{key: "overview", label: "Overview", view: permission.ViewOverview},
	{key: "uptime", label: "Uptime", view: permission.ViewUptime},
	{key: "broken-links", label: "Broken Links", view: permission.ViewBrokenLinks, badge: BadgeCounter.BrokenLinksCount},
	{key: "mixed-content", label: "Mixed Content", view: permission.ViewMixedContent, badge: BadgeCounter.MixedContentCount},
	{key: "certificate-health", label: "Certificate Health", view: permission.ViewCertificateHealth},
	{key: "application-health", label: "Application Health", view: permission.ViewApplicationHealth},
	{key: "performance", label: "Performance", view: permission.ViewPerformance},
}

type Builder struct {
	handle string
	label  string
	badges BadgeCounter
}

// NewBuilder creates a builder for the plugin registered under handle.
func NewBuilder(handle, label string, badges BadgeCounter) *Builder {
	return &Builder{handle: handle, label: label, badges: badges}
}

// Build returns the navigation entry for an actor holding perms, or nil when
// the entry must be hidden. A nil perms means there is no signed-in actor.
// Each badge is fetched at most once, and only for a visible entry.
func (b *Builder) Build(ctx context.Context, perms *permission.Set, st *settings.Settings) *Item {
	if perms != nil && !perms.Has(permission.ViewOverview) {
		metrics.NavigationBuilds.WithLabelValues("hidden").Inc()
		return nil
	}

	counts := make([]int, len(entries))
	item := &Item{Key: b.handle, URL: b.handle, Label: b.label}
	if st != nil && st.ShowNavBadges && b.badges != nil {
		for i, e := range entries {
			if e.badge != nil {
				counts[i] = e.badge(b.badges, ctx, st)
				item.BadgeCount += counts[i]
			}
		}
	}

	switch {
	case perms == nil:
		return b.done(item, "anonymous")
	case st == nil || !st.IsValid():
		return b.done(item, "unconfigured")
	case !perms.Has(permission.AccessPlugin):
		return b.done(item, "no_access")
	}

	for i, e := range entries {
		if !perms.Has(e.view) {
			continue
		}
		item.Subnav = append(item.Subnav, SubItem{
			Key:        e.key,
			URL:        b.handle + "/" + e.key,
			Label:      e.label,
			BadgeCount: counts[i],
		})
	}
	return b.done(item, "full")
}

func (b *Builder) done(item *Item, result string) *Item {
	metrics.NavigationBuilds.WithLabelValues(result).Inc()
	return item
}
