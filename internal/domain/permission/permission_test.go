package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTree_Shape(t *testing.T) {
	g := Tree()
	assert.Equal(t, "Oh Dear", g.Heading)
	require.Len(t, g.Permissions, 9)

	assert.Equal(t, PluginSettings, g.Permissions[0].Key)
	assert.Equal(t, "Manage plugin settings", g.Permissions[0].Label)
	assert.Equal(t, ViewOverview, g.Permissions[1].Key)
	assert.Equal(t, ViewUtility, g.Permissions[8].Key)
	assert.Equal(t, "View application health utility", g.Permissions[8].Label)

	nestedParents := 0
	for _, d := range g.Permissions {
		if len(d.Nested) > 0 {
			nestedParents++
			require.Len(t, d.Nested, 2)
		}
	}
	assert.Equal(t, 6, nestedParents)
}

func TestTree_Labels(t *testing.T) {
	uptime := Tree().Permissions[2]
	assert.Equal(t, ViewUptime, uptime.Key)
	assert.Equal(t, "View uptime", uptime.Label)
	assert.Equal(t, "Toggle uptime check", uptime.Nested[0].Label)
	assert.Equal(t, "Request uptime check", uptime.Nested[1].Label)

	broken := Tree().Permissions[3]
	assert.Equal(t, "View broken links", broken.Label)
	assert.Equal(t, ToggleBrokenLinks, broken.Nested[0].Key)
	assert.Equal(t, "Request broken links check", broken.Nested[1].Label)
}

func TestAll_Order(t *testing.T) {
	keys := All()
	require.Len(t, keys, 21)
	assert.Equal(t, []Key{PluginSettings, ViewOverview, ViewUptime, ToggleUptime, RequestUptime}, keys[:5])
	assert.Equal(t, ViewUtility, keys[len(keys)-1])
	assert.NotContains(t, keys, AccessPlugin)
}

func TestParse(t *testing.T) {
	k, ok := Parse("ohdear:view-performance")
	assert.True(t, ok)
	assert.Equal(t, ViewPerformance, k)

	_, ok = Parse("ohdear:view-everything")
	assert.False(t, ok)

	_, ok = Parse("accessPlugin-ohdear")
	assert.True(t, ok)
}

func TestFeatureKeys(t *testing.T) {
	assert.Equal(t, "broken-links", BrokenLinks.Slug())
	assert.Equal(t, "broken_links", BrokenLinks.JSName())
	assert.Equal(t, ToggleCertificateHealth, CertificateHealth.ToggleKey())
	assert.Equal(t, RequestApplicationHealth, ApplicationHealth.RequestKey())
}

func TestSet(t *testing.T) {
	s := NewSet(ViewOverview, ViewUptime)
	assert.True(t, s.Has(ViewOverview))
	assert.False(t, s.Has(ViewPerformance))
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []Key{ViewOverview, ViewUptime}, s.Keys())

	var empty Set
	assert.False(t, empty.Has(ViewOverview))

	all := Everything()
	assert.True(t, all.Has(AccessPlugin))
	assert.True(t, all.Has(RequestPerformance))
}
