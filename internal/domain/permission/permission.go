// Package permission declares the closed set of capabilities the Oh Dear
// panel registers with its host and checks against the current actor.
package permission

import "sort"

// Key is a registered permission key. Values outside the declared constants
// are never produced by this package; use Parse to convert untrusted strings.
type Key string

const (
	PluginSettings Key = "ohdear:plugin-settings"
	ViewOverview   Key = "ohdear:view-overview"
	ViewUtility    Key = "ohdear:view-utility"

	ViewUptime    Key = "ohdear:view-uptime"
	ToggleUptime  Key = "ohdear:toggle-uptime-check"
	RequestUptime Key = "ohdear:request-uptime-check"

	ViewBrokenLinks    Key = "ohdear:view-broken-links"
	ToggleBrokenLinks  Key = "ohdear:toggle-broken-links-check"
	RequestBrokenLinks Key = "ohdear:request-broken-links-check"

	ViewMixedContent    Key = "ohdear:view-mixed-content"
	ToggleMixedContent  Key = "ohdear:toggle-mixed-content-check"
	RequestMixedContent Key = "ohdear:request-mixed-content-check"

	ViewCertificateHealth    Key = "ohdear:view-certificate-health"
	ToggleCertificateHealth  Key = "ohdear:toggle-certificate-health-check"
	RequestCertificateHealth Key = "ohdear:request-certificate-health-check"

	ViewApplicationHealth    Key = "ohdear:view-application-health"
	ToggleApplicationHealth  Key = "ohdear:toggle-application-health-check"
	RequestApplicationHealth Key = "ohdear:request-application-health-check"

	ViewPerformance    Key = "ohdear:view-performance"
	TogglePerformance  Key = "ohdear:toggle-performance-check"
	RequestPerformance Key = "ohdear:request-performance-check"

	// AccessPlugin is granted by the host, not registered by the plugin.
	AccessPlugin Key = "accessPlugin-ohdear"
)

// Heading is the group heading shown by the host's permission editor.
const Heading = "Oh Dear"

// Feature is one monitored dimension that has its own page and check.
type Feature int

const (
	Uptime Feature = iota
	BrokenLinks
	MixedContent
	CertificateHealth
	ApplicationHealth
	Performance
)

type featureInfo struct {
	slug    string
	jsName  string
	label   string
	view    Key
	toggle  Key
	request Key
}

var features = [...]featureInfo{
	Uptime:            {"uptime", "uptime", "uptime", ViewUptime, ToggleUptime, RequestUptime},
	BrokenLinks:       {"broken-links", "broken_links", "broken links", ViewBrokenLinks, ToggleBrokenLinks, RequestBrokenLinks},
	MixedContent:      {"mixed-content", "mixed_content", "mixed content", ViewMixedContent, ToggleMixedContent, RequestMixedContent},
	CertificateHealth: {"certificate-health", "certificate_health", "certificate health", ViewCertificateHealth, ToggleCertificateHealth, RequestCertificateHealth},
	ApplicationHealth: {"application-health", "application_health", "application health", ViewApplicationHealth, ToggleApplicationHealth, RequestApplicationHealth},
	Performance:       {"performance", "performance", "performance", ViewPerformance, TogglePerformance, RequestPerformance},
}

// Features returns every feature in display order.
func Features() []Feature {
	return []Feature{Uptime, BrokenLinks, MixedContent, CertificateHealth, ApplicationHealth, Performance}
}

// Slug is the URL segment, e.g. "broken-links".
func (f Feature) Slug() string { return features[f].slug }

// JSName is the key used in the frontend permission matrix, e.g. "broken_links".
func (f Feature) JSName() string { return features[f].jsName }

func (f Feature) ViewKey() Key    { return features[f].view }
func (f Feature) ToggleKey() Key  { return features[f].toggle }
func (f Feature) RequestKey() Key { return features[f].request }

func (f Feature) String() string { return features[f].slug }

// Definition is one registered permission with its label and nested children.
type Definition struct {
	Key    Key
	Label  string
	Nested []Definition
}

// Group is the heading plus its permissions, as handed to the host.
type Group struct {
	Heading     string
	Permissions []Definition
}

// Tree returns the permission group registered with the host.
func Tree() Group {
	defs := []Definition{
		{Key: PluginSettings, Label: "Manage plugin settings"},
		{Key: ViewOverview, Label: "View overview page"},
	}
	for _, f := range Features() {
		info := features[f]
		defs = append(defs, Definition{
			Key:   info.view,
			Label: "View " + info.label,
			Nested: []Definition{
				{Key: info.toggle, Label: "Toggle " + info.label + " check"},
				{Key: info.request, Label: "Request " + info.label + " check"},
			},
		})
	}
	defs = append(defs, Definition{Key: ViewUtility, Label: "View application health utility"})

	return Group{Heading: Heading, Permissions: defs}
}

// All lists every registered key in tree order.
func All() []Key {
	var keys []Key
	var walk func([]Definition)
	walk = func(defs []Definition) {
		for _, d := range defs {
			keys = append(keys, d.Key)
			walk(d.Nested)
		}
	}
	walk(Tree().Permissions)
	return keys
}

var known = func() map[Key]struct{} {
	m := make(map[Key]struct{})
	for _, k := range All() {
		m[k] = struct{}{}
	}
	m[AccessPlugin] = struct{}{}
	return m
}()

// Parse converts a string to a Key, rejecting anything that is not declared.
func Parse(s string) (Key, bool) {
	k := Key(s)
	_, ok := known[k]
	return k, ok
}

// Set is an immutable set of keys held by an actor.
type Set struct {
	keys map[Key]struct{}
}

func NewSet(keys ...Key) Set {
	m := make(map[Key]struct{}, len(keys))
	for _, k := range keys {
		m[k] = struct{}{}
	}
	return Set{keys: m}
}

// Everything returns a set holding every known key, including AccessPlugin.
func Everything() Set {
	return NewSet(append(All(), AccessPlugin)...)
}

func (s Set) Has(k Key) bool {
	_, ok := s.keys[k]
	return ok
}

func (s Set) Len() int {
	return len(s.keys)
}

// Keys returns the members sorted, for logging and serialization.
func (s Set) Keys() []Key {
	out := make([]Key, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
