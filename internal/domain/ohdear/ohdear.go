// Package ohdear holds the resources returned by the Oh Dear REST API and the
// error taxonomy shared by every caller of it.
package ohdear

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnauthorized means the API rejected the token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidResponse means the API answered with something that is not the expected resource.
	ErrInvalidResponse = errors.New("Invalid API response. Please contact support.")
)

// APIError is any other non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("Oh Dear API returned status %d", e.StatusCode)
}

// Check types as reported by the API.
const (
	CheckUptime            = "uptime"
	CheckBrokenLinks       = "broken_links"
	CheckMixedContent      = "mixed_content"
	CheckCertificateHealth = "certificate_health"
	CheckApplicationHealth = "application_health"
	CheckPerformance       = "performance"
)

type User struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Teams []Team `json:"teams"`
}

type Team struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Site struct {
	ID                    int     `json:"id"`
	URL                   string  `json:"url"`
	SortURL               string  `json:"sort_url"`
	Label                 string  `json:"label"`
	TeamID                int     `json:"team_id"`
	LatestRunDate         string  `json:"latest_run_date"`
	SummarizedCheckResult string  `json:"summarized_check_result"`
	Checks                []Check `json:"checks"`
}

// Check returns the site's check of the given type.
func (s *Site) Check(checkType string) (Check, bool) {
	for _, c := range s.Checks {
		if c.Type == checkType {
			return c, true
		}
	}
	return Check{}, false
}

// CheckByID returns the site's check with the given id.
func (s *Site) CheckByID(id int) (Check, bool) {
	for _, c := range s.Checks {
		if c.ID == id {
			return c, true
		}
	}
	return Check{}, false
}

type Check struct {
	ID               int    `json:"id"`
	Type             string `json:"type"`
	Label            string `json:"label"`
	Enabled          bool   `json:"enabled"`
	LatestRunEndedAt string `json:"latest_run_ended_at"`
	LatestRunResult  string `json:"latest_run_result"`
	Summary          string `json:"summary"`
}

type BrokenLink struct {
	CrawledURL string `json:"crawled_url"`
	StatusCode int    `json:"status_code"`
	FoundOnURL string `json:"found_on_url"`
	LinkText   string `json:"link_text"`
}

type MixedContent struct {
	ElementName     string `json:"element_name"`
	MixedContentURL string `json:"mixed_content_url"`
	FoundOnURL      string `json:"found_on_url"`
}

type UptimeRecord struct {
	Datetime         string  `json:"datetime"`
	UptimePercentage float64 `json:"uptime_percentage"`
}

type DowntimePeriod struct {
	StartedAt string `json:"started_at"`
	EndedAt   string `json:"ended_at"`
}

type CertificateHealth struct {
	CertificateDetails struct {
		Issuer     string `json:"issuer"`
		ValidFrom  string `json:"valid_from"`
		ValidUntil string `json:"valid_until"`
	} `json:"certificate_details"`
	CertificateChecks []struct {
		Type   string `json:"type"`
		Label  string `json:"label"`
		Passed bool   `json:"passed"`
	} `json:"certificate_checks"`
	CertificateChainIssuers []string `json:"certificate_chain_issuers"`
}

type ApplicationHealthCheck struct {
	ID                  int                    `json:"id"`
	Name                string                 `json:"name"`
	Label               string                 `json:"label"`
	Status              string                 `json:"status"`
	NotificationMessage string                 `json:"notification_message"`
	ShortSummary        string                 `json:"short_summary"`
	Meta                map[string]interface{} `json:"meta"`
	DetectedAt          string                 `json:"detected_at"`
	UpdatedAt           string                 `json:"updated_at"`
}

type PerformanceRecord struct {
	ID                  int     `json:"id"`
	SiteID              int     `json:"site_id"`
	CreatedAt           string  `json:"created_at"`
	TotalTimeInSeconds  float64 `json:"total_time_in_seconds"`
	DNSTimeInSeconds    float64 `json:"dns_time_in_seconds"`
	TLSTimeInSeconds    float64 `json:"tls_time_in_seconds"`
	TransferTimeSeconds float64 `json:"transfer_time_in_seconds"`
}

// TimeRange bounds history queries (uptime, downtime, performance).
type TimeRange struct {
	From time.Time
	To   time.Time
}

// LastDays returns the range ending now and starting days ago.
func LastDays(now time.Time, days int) TimeRange {
	return TimeRange{From: now.AddDate(0, 0, -days), To: now}
}
