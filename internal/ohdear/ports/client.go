package ports

import (
	"context"

	"github.com/ohdear-panel/internal/domain/ohdear"
)

// Client is the subset of the Oh Dear REST API the panel uses.
// Every method returns ohdear.ErrUnauthorized when the token is rejected.
type Client interface {
	Me(ctx context.Context) (*ohdear.User, error)
	Site(ctx context.Context, siteID string) (*ohdear.Site, error)

	EnableCheck(ctx context.Context, checkID int) (*ohdear.Check, error)
	DisableCheck(ctx context.Context, checkID int) (*ohdear.Check, error)
	RequestCheckRun(ctx context.Context, checkID int) (*ohdear.Check, error)

	BrokenLinks(ctx context.Context, siteID string) ([]ohdear.BrokenLink, error)
	MixedContent(ctx context.Context, siteID string) ([]ohdear.MixedContent, error)
	Uptime(ctx context.Context, siteID string, r ohdear.TimeRange, split string) ([]ohdear.UptimeRecord, error)
	Downtime(ctx context.Context, siteID string, r ohdear.TimeRange) ([]ohdear.DowntimePeriod, error)
	CertificateHealth(ctx context.Context, siteID string) (*ohdear.CertificateHealth, error)
	ApplicationHealthChecks(ctx context.Context, siteID string) ([]ohdear.ApplicationHealthCheck, error)
	PerformanceRecords(ctx context.Context, siteID string, r ohdear.TimeRange) ([]ohdear.PerformanceRecord, error)
}

// ClientFactory builds a client bound to an API token.
type ClientFactory func(token string) Client
