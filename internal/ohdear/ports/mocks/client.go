// Package mocks provides testify mocks for the Oh Dear ports.
package mocks

import (
	"context"

	"github.com/ohdear-panel/internal/domain/ohdear"
	"github.com/ohdear-panel/internal/ohdear/ports"
	"github.com/stretchr/testify/mock"
)

// Client is a mock implementation of ports.Client.
type Client struct {
	mock.Mock

	// Tokens lists the tokens passed to the factory, in call order.
	Tokens []string
}

var _ ports.Client = (*Client)(nil)

// Factory returns a ClientFactory that hands out m for every token and
// records the token it was asked for.
func (m *Client) Factory() ports.ClientFactory {
	return func(token string) ports.Client {
		m.Tokens = append(m.Tokens, token)
		return m
	}
}

func (m *Client) Me(ctx context.Context) (*ohdear.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ohdear.User), args.Error(1)
}

func (m *Client) Site(ctx context.Context, siteID string) (*ohdear.Site, error) {
	args := m.Called(ctx, siteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ohdear.Site), args.Error(1)
}

func (m *Client) EnableCheck(ctx context.Context, checkID int) (*ohdear.Check, error) {
	args := m.Called(ctx, checkID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ohdear.Check), args.Error(1)
}

func (m *Client) DisableCheck(ctx context.Context, checkID int) (*ohdear.Check, error) {
	args := m.Called(ctx, checkID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ohdear.Check), args.Error(1)
}

func (m *Client) RequestCheckRun(ctx context.Context, checkID int) (*ohdear.Check, error) {
	args := m.Called(ctx, checkID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ohdear.Check), args.Error(1)
}

func (m *Client) BrokenLinks(ctx context.Context, siteID string) ([]ohdear.BrokenLink, error) {
	args := m.Called(ctx, siteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ohdear.BrokenLink), args.Error(1)
}

func (m *Client) MixedContent(ctx context.Context, siteID string) ([]ohdear.MixedContent, error) {
	args := m.Called(ctx, siteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ohdear.MixedContent), args.Error(1)
}

func (m *Client) Uptime(ctx context.Context, siteID string, r ohdear.TimeRange, split string) ([]ohdear.UptimeRecord, error) {
	args := m.Called(ctx, siteID, r, split)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ohdear.UptimeRecord), args.Error(1)
}

func (m *Client) Downtime(ctx context.Context, siteID string, r ohdear.TimeRange) ([]ohdear.DowntimePeriod, error) {
	args := m.Called(ctx, siteID, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ohdear.DowntimePeriod), args.Error(1)
}

func (m *Client) CertificateHealth(ctx context.Context, siteID string) (*ohdear.CertificateHealth, error) {
	args := m.Called(ctx, siteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ohdear.CertificateHealth), args.Error(1)
}

func (m *Client) ApplicationHealthChecks(ctx context.Context, siteID string) ([]ohdear.ApplicationHealthCheck, error) {
	args := m.Called(ctx, siteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ohdear.ApplicationHealthCheck), args.Error(1)
}

func (m *Client) PerformanceRecords(ctx context.Context, siteID string, r ohdear.TimeRange) ([]ohdear.PerformanceRecord, error) {
	args := m.Called(ctx, siteID, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ohdear.PerformanceRecord), args.Error(1)
}
