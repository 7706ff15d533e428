package navigation

import (
	"context"
	"testing"

	"github.com/ohdear-panel/internal/domain/permission"
	"github.com/ohdear-panel/internal/domain/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedBadges struct {
	broken, mixed int
	calls         int
}

func (f *fixedBadges) BrokenLinksCount(ctx context.Context, st *settings.Settings) int {
	f.calls++
	return f.broken
}

func (f *fixedBadges) MixedContentCount(ctx context.Context, st *settings.Settings) int {
	f.calls++
	return f.mixed
}

func validSettings() *settings.Settings {
	return &settings.Settings{APIToken: "tok", SelectedSiteID: "42"}
}

func setOf(keys ...permission.Key) *permission.Set {
	s := permission.NewSet(keys...)
	return &s
}

func subKeys(item *Item) []string {
	var keys []string
	for _, s := range item.Subnav {
		keys = append(keys, s.Key)
	}
	return keys
}

func TestBuild_NoViewOverviewHidesEntry(t *testing.T) {
	b := NewBuilder("ohdear", "Oh Dear", &fixedBadges{})

	all := permission.Everything()
	var keys []permission.Key
	for _, k := range all.Keys() {
		if k != permission.ViewOverview {
			keys = append(keys, k)
		}
	}

	assert.Nil(t, b.Build(context.Background(), setOf(keys...), validSettings()))
	assert.Nil(t, b.Build(context.Background(), setOf(permission.AccessPlugin), settings.New()))
}

func TestBuild_NoActorGetsBaseEntry(t *testing.T) {
	b := NewBuilder("ohdear", "Oh Dear", &fixedBadges{})

	item := b.Build(context.Background(), nil, validSettings())
	require.NotNil(t, item)
	assert.Equal(t, "ohdear", item.URL)
	assert.Equal(t, "Oh Dear", item.Label)
	assert.Empty(t, item.Subnav)
}

func TestBuild_InvalidSettingsSkipAccessGate(t *testing.T) {
	b := NewBuilder("ohdear", "Oh Dear", &fixedBadges{})

	item := b.Build(context.Background(), setOf(permission.ViewOverview), settings.New())
	require.NotNil(t, item)
	assert.Empty(t, item.Subnav)
}

func TestBuild_NoPluginAccess(t *testing.T) {
	b := NewBuilder("ohdear", "Oh Dear", &fixedBadges{})

	item := b.Build(context.Background(), setOf(permission.ViewOverview, permission.ViewUptime), validSettings())
	require.NotNil(t, item)
	assert.Empty(t, item.Subnav)
}

func TestBuild_SubnavOrderAndFiltering(t *testing.T) {
	b := NewBuilder("ohdear", "Oh Dear", &fixedBadges{})

	all := permission.Everything()
	item := b.Build(context.Background(), &all, validSettings())
	require.NotNil(t, item)
	assert.Equal(t, []string{
		"overview", "uptime", "broken-links", "mixed-content",
		"certificate-health", "application-health", "performance",
	}, subKeys(item))
	assert.Equal(t, "ohdear/broken-links", item.Subnav[2].URL)
	assert.Equal(t, "Certificate Health", item.Subnav[4].Label)

	item = b.Build(context.Background(), setOf(
		permission.AccessPlugin, permission.ViewOverview, permission.ViewPerformance, permission.ViewMixedContent,
	), validSettings())
	assert.Equal(t, []string{"overview", "mixed-content", "performance"}, subKeys(item))
}

func TestBuild_Badges(t *testing.T) {
	badges := &fixedBadges{broken: 4, mixed: 1}
	b := NewBuilder("ohdear", "Oh Dear", badges)
	all := permission.Everything()

	st := validSettings()
	item := b.Build(context.Background(), &all, st)
	assert.Zero(t, item.BadgeCount)
	assert.Zero(t, badges.calls)

	st.ShowNavBadges = true
	item = b.Build(context.Background(), &all, st)
	assert.Equal(t, 5, item.BadgeCount)
	assert.Equal(t, 4, item.Subnav[2].BadgeCount)
	assert.Equal(t, 1, item.Subnav[3].BadgeCount)
	assert.Zero(t, item.Subnav[0].BadgeCount)
}

func TestBuild_BadgesFetchedOncePerVisibleEntry(t *testing.T) {
	st := validSettings()
	st.ShowNavBadges = true

	badges := &fixedBadges{broken: 4, mixed: 3}
	b := NewBuilder("ohdear", "Oh Dear", badges)
	assert.Nil(t, b.Build(context.Background(), setOf(permission.AccessPlugin), st))
	assert.Zero(t, badges.calls)

	all := permission.Everything()
	item := b.Build(context.Background(), &all, st)
	require.NotNil(t, item)
	assert.Equal(t, 7, item.BadgeCount)
	assert.Equal(t, 2, badges.calls)

	badges.calls = 0
	item = b.Build(context.Background(), nil, st)
	require.NotNil(t, item)
	assert.Equal(t, 7, item.BadgeCount)
	assert.Empty(t, item.Subnav)
	assert.Equal(t, 2, badges.calls)
}
