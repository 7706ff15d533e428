package checks

import (
	"context"
	"errors"
	"testing"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/assert"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestPingChecks(t *testing.T) {
	ok := NewDatabaseCheck(pingFunc(func(ctx context.Context) error { return nil }))
	r := ok.Run(context.Background())
	assert.Equal(t, StatusOK, r.Status)
	assert.Equal(t, NameDatabase, r.Name)

	down := NewCacheCheck(pingFunc(func(ctx context.Context) error { return errors.New("connection refused") }))
	r = down.Run(context.Background())
	assert.Equal(t, StatusFailed, r.Status)
	assert.Contains(t, r.NotificationMessage, "connection refused")

	r = NewCacheCheck(nil).Run(context.Background())
	assert.Equal(t, StatusSkipped, r.Status)
}

func TestDiskSpaceCheck(t *testing.T) {
	cases := []struct {
		used float64
		want Status
	}{
		{42, StatusOK},
		{70, StatusWarning},
		{95.5, StatusFailed},
	}
	for _, tc := range cases {
		c := NewDiskSpaceCheck("/")
		c.Usage = func(ctx context.Context, path string) (*disk.UsageStat, error) {
			return &disk.UsageStat{Path: path, UsedPercent: tc.used}, nil
		}
		r := c.Run(context.Background())
		assert.Equal(t, tc.want, r.Status, "used %.1f", tc.used)
		assert.Equal(t, tc.used, r.Meta["disk_space_used_percentage"])
	}

	c := NewDiskSpaceCheck("/missing")
	c.Usage = func(ctx context.Context, path string) (*disk.UsageStat, error) {
		return nil, errors.New("no such file or directory")
	}
	assert.Equal(t, StatusCrashed, c.Run(context.Background()).Status)
}

func TestMemoryCheck(t *testing.T) {
	c := NewMemoryCheck()
	c.Memory = func(ctx context.Context) (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{UsedPercent: 85}, nil
	}
	r := c.Run(context.Background())
	assert.Equal(t, StatusWarning, r.Status)
	assert.Equal(t, "85%", r.ShortSummary)
}

func TestCPULoadCheck(t *testing.T) {
	c := NewCPULoadCheck()
	c.Cores = func(ctx context.Context) (int, error) { return 4, nil }

	for load1, want := range map[float64]Status{1.5: StatusOK, 4.5: StatusWarning, 9: StatusFailed} {
		l := load1
		c.Load = func(ctx context.Context) (*load.AvgStat, error) {
			return &load.AvgStat{Load1: l, Load5: 1, Load15: 1}, nil
		}
		assert.Equal(t, want, c.Run(context.Background()).Status, "load %.1f", l)
	}
}
