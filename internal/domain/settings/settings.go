package settings

import (
	"os"
	"regexp"
	"strings"
)

// Field names used in validation errors; they match the settings form inputs.
const (
	FieldAPIToken       = "apiToken"
	FieldSelectedSiteID = "selectedSiteId"
)

// Settings is the plugin configuration persisted by the host.
type Settings struct {
	APIToken          string          `json:"apiToken"`
	SelectedSiteID    string          `json:"selectedSiteId"`
	HealthCheckSecret *string         `json:"healthCheckSecret"`
	HealthChecks      map[string]bool `json:"healthChecks"`
	ShowNavBadges     bool            `json:"showNavBadges"`

	// Lookup resolves environment references; nil means os.LookupEnv.
	Lookup LookupFunc `json:"-"`
}

// LookupFunc returns the value of an environment variable and whether it is set.
type LookupFunc func(name string) (string, bool)

// New returns empty settings.
func New() *Settings {
	return &Settings{HealthChecks: map[string]bool{}}
}

// IsValid reports whether an API token and a site are configured.
// It looks at the raw values and never calls the remote API.
func (s *Settings) IsValid() bool {
	return s.APIToken != "" && s.SelectedSiteID != ""
}

// ResolvedAPIToken returns the API token with environment references expanded.
func (s *Settings) ResolvedAPIToken() string {
	return ParseEnv(s.APIToken, s.lookup())
}

// ResolvedSelectedSiteID returns the site id with environment references expanded.
func (s *Settings) ResolvedSelectedSiteID() string {
	return ParseEnv(s.SelectedSiteID, s.lookup())
}

// ResolvedHealthCheckSecret returns the secret, or "" when none is set.
func (s *Settings) ResolvedHealthCheckSecret() string {
	if s.HealthCheckSecret == nil {
		return ""
	}
	return ParseEnv(*s.HealthCheckSecret, s.lookup())
}

// IsHealthCheckEnabled reports whether the named application health check is on.
func (s *Settings) IsHealthCheckEnabled(name string) bool {
	return s.HealthChecks[name]
}

// Normalize trims the credentials and makes sure the map is usable.
func (s *Settings) Normalize() {
	s.APIToken = strings.TrimSpace(s.APIToken)
	s.SelectedSiteID = strings.TrimSpace(s.SelectedSiteID)
	if s.HealthChecks == nil {
		s.HealthChecks = map[string]bool{}
	}
}

func (s *Settings) lookup() LookupFunc {
	if s.Lookup != nil {
		return s.Lookup
	}
	return os.LookupEnv
}

var envRef = regexp.MustCompile(`^\$(\w+)$`)

// ParseEnv expands a value of the exact form "$NAME" to the variable's value.
// Unset variables and every other value are returned unchanged.
func ParseEnv(raw string, lookup LookupFunc) string {
	m := envRef.FindStringSubmatch(raw)
	if m == nil {
		return raw
	}
	if v, ok := lookup(m[1]); ok {
		return v
	}
	return raw
}

// FieldErrors maps a settings field to its validation messages.
type FieldErrors map[string][]string

func (e FieldErrors) Add(field, message string) {
	e[field] = append(e[field], message)
}

func (e FieldErrors) HasErrors() bool {
	return len(e) > 0
}

// First returns the first message for field, or "".
func (e FieldErrors) First(field string) string {
	if msgs := e[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}
