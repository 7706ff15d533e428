// Package checks implements the local application health checks reported to
// Oh Dear's application health monitor.
package checks

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusFailed  Status = "failed"
	StatusCrashed Status = "crashed"
	StatusSkipped Status = "skipped"
)

// Check names, also the keys of the healthChecks setting.
const (
	NameDatabase      = "database"
	NameCache         = "cache"
	NameUsedDiskSpace = "used_disk_space"
	NameMemoryUsage   = "memory_usage"
	NameCPULoad       = "cpu_load"
)

// Result is one entry of the health report, in the format Oh Dear expects.
type Result struct {
	Name                string                 `json:"name"`
	Label               string                 `json:"label"`
	Status              Status                 `json:"status"`
	NotificationMessage string                 `json:"notificationMessage"`
	ShortSummary        string                 `json:"shortSummary"`
	Meta                map[string]interface{} `json:"meta"`
}

type Check interface {
	Name() string
	Label() string
	Run(ctx context.Context) Result
}

func newResult(c Check) Result {
	return Result{Name: c.Name(), Label: c.Label(), Status: StatusOK, Meta: map[string]interface{}{}}
}

// Pinger is anything with a liveness check (database, cache).
type Pinger interface {
	Ping(ctx context.Context) error
}

type pingCheck struct {
	name, label string
	target      Pinger
}

// NewDatabaseCheck reports whether the settings database answers.
func NewDatabaseCheck(db Pinger) Check {
	return &pingCheck{name: NameDatabase, label: "Database", target: db}
}

// NewCacheCheck reports whether the cache answers.
func NewCacheCheck(c Pinger) Check {
	return &pingCheck{name: NameCache, label: "Cache", target: c}
}

func (c *pingCheck) Name() string  { return c.name }
func (c *pingCheck) Label() string { return c.label }

func (c *pingCheck) Run(ctx context.Context) Result {
	r := newResult(c)
	if c.target == nil {
		r.Status = StatusSkipped
		r.ShortSummary = "Not configured"
		return r
	}
	if err := c.target.Ping(ctx); err != nil {
		r.Status = StatusFailed
		r.ShortSummary = "Unreachable"
		r.NotificationMessage = fmt.Sprintf("Could not connect to the %s: %s", c.name, err)
		return r
	}
	r.ShortSummary = "Connected"
	return r
}

// Thresholds are percentages at which a usage check warns or fails.
type Thresholds struct {
	Warn float64
	Fail float64
}

func (t Thresholds) status(v float64) Status {
	switch {
	case v >= t.Fail:
		return StatusFailed
	case v >= t.Warn:
		return StatusWarning
	default:
		return StatusOK
	}
}

// DiskSpaceCheck reports the used percentage of the filesystem holding Path.
type DiskSpaceCheck struct {
	Path       string
	Thresholds Thresholds
	Usage      func(ctx context.Context, path string) (*disk.UsageStat, error)
}

func NewDiskSpaceCheck(path string) *DiskSpaceCheck {
	return &DiskSpaceCheck{
		Path:       path,
		Thresholds: Thresholds{Warn: 70, Fail: 90},
		Usage:      disk.UsageWithContext,
	}
}

func (c *DiskSpaceCheck) Name() string  { return NameUsedDiskSpace }
func (c *DiskSpaceCheck) Label() string { return "Used Disk Space" }

func (c *DiskSpaceCheck) Run(ctx context.Context) Result {
	r := newResult(c)
	usage, err := c.Usage(ctx, c.Path)
	if err != nil {
		r.Status = StatusCrashed
		r.NotificationMessage = fmt.Sprintf("Could not read disk usage: %s", err)
		return r
	}

	r.Status = c.Thresholds.status(usage.UsedPercent)
	r.ShortSummary = fmt.Sprintf("%.0f%%", usage.UsedPercent)
	r.Meta["disk_space_used_percentage"] = usage.UsedPercent
	r.Meta["path"] = c.Path
	if r.Status != StatusOK {
		r.NotificationMessage = fmt.Sprintf("The disk is almost full (%.0f%% used).", usage.UsedPercent)
	}
	return r
}

// MemoryCheck reports the used percentage of virtual memory.
type MemoryCheck struct {
	Thresholds Thresholds
	Memory     func(ctx context.Context) (*mem.VirtualMemoryStat, error)
}

func NewMemoryCheck() *MemoryCheck {
	return &MemoryCheck{
		Thresholds: Thresholds{Warn: 80, Fail: 90},
		Memory:     mem.VirtualMemoryWithContext,
	}
}

func (c *MemoryCheck) Name() string  { return NameMemoryUsage }
func (c *MemoryCheck) Label() string { return "Memory Usage" }

func (c *MemoryCheck) Run(ctx context.Context) Result {
	r := newResult(c)
	vm, err := c.Memory(ctx)
	if err != nil {
		r.Status = StatusCrashed
		r.NotificationMessage = fmt.Sprintf("Could not read memory usage: %s", err)
		return r
	}

	r.Status = c.Thresholds.status(vm.UsedPercent)
	r.ShortSummary = fmt.Sprintf("%.0f%%", vm.UsedPercent)
	r.Meta["memory_used_percentage"] = vm.UsedPercent
	if r.Status != StatusOK {
		r.NotificationMessage = fmt.Sprintf("Memory usage is high (%.0f%% used).", vm.UsedPercent)
	}
	return r
}

// CPULoadCheck compares the one minute load average to the number of cores:
// above the core count warns, above twice the core count fails.
type CPULoadCheck struct {
	Load  func(ctx context.Context) (*load.AvgStat, error)
	Cores func(ctx context.Context) (int, error)
}

func NewCPULoadCheck() *CPULoadCheck {
	return &CPULoadCheck{
		Load: load.AvgWithContext,
		Cores: func(ctx context.Context) (int, error) {
			n, err := cpu.CountsWithContext(ctx, true)
			if err != nil || n == 0 {
				return runtime.NumCPU(), nil
			}
			return n, nil
		},
	}
}

func (c *CPULoadCheck) Name() string  { return NameCPULoad }
func (c *CPULoadCheck) Label() string { return "CPU Load" }

func (c *CPULoadCheck) Run(ctx context.Context) Result {
	r := newResult(c)
	avg, err := c.Load(ctx)
	if err != nil {
		r.Status = StatusCrashed
		r.NotificationMessage = fmt.Sprintf("Could not read the load average: %s", err)
		return r
	}
	cores, err := c.Cores(ctx)
	if err != nil {
		r.Status = StatusCrashed
		r.NotificationMessage = fmt.Sprintf("Could not count CPU cores: %s", err)
		return r
	}

	r.ShortSummary = fmt.Sprintf("%.2f %.2f %.2f", avg.Load1, avg.Load5, avg.Load15)
	r.Meta["last_minute"] = avg.Load1
	r.Meta["last_5_minutes"] = avg.Load5
	r.Meta["last_15_minutes"] = avg.Load15
	r.Meta["cores"] = cores

	switch {
	case avg.Load1 > 2*float64(cores):
		r.Status = StatusFailed
	case avg.Load1 > float64(cores):
		r.Status = StatusWarning
	}
	if r.Status != StatusOK {
		r.NotificationMessage = fmt.Sprintf("The CPU load is high (%.2f on %d cores).", avg.Load1, cores)
	}
	return r
}
