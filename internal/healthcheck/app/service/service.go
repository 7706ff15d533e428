package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ohdear-panel/internal/domain/settings"
	"github.com/ohdear-panel/internal/healthcheck/app/checks"
	"github.com/ohdear-panel/pkg/logger"
	"github.com/ohdear-panel/pkg/metrics"
)

// Report is the body served to Oh Dear's application health monitor.
type Report struct {
	FinishedAt   int64           `json:"finishedAt"`
	CheckResults []checks.Result `json:"checkResults"`
}

type HealthCheckService struct {
	checks  []checks.Check
	logger  logger.Logger
	timeout time.Duration
	now     func() time.Time
}

func NewHealthCheckService(log logger.Logger, timeout time.Duration, all ...checks.Check) *HealthCheckService {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthCheckService{
		checks:  all,
		logger:  log,
		timeout: timeout,
		now:     time.Now,
	}
}

// Available lists the registered checks in report order.
func (s *HealthCheckService) Available() []checks.Check {
	return s.checks
}

// Results runs the checks enabled in st, in registration order.
func (s *HealthCheckService) Results(ctx context.Context, st *settings.Settings) Report {
	results := make([]checks.Result, 0, len(s.checks))
	for _, c := range s.checks {
		if st == nil || !st.IsHealthCheckEnabled(c.Name()) {
			continue
		}
		r := s.run(ctx, c)
		metrics.HealthCheckResults.WithLabelValues(r.Name, string(r.Status)).Inc()
		results = append(results, r)
	}

	return Report{
		FinishedAt:   s.now().Unix(),
		CheckResults: results,
	}
}

func (s *HealthCheckService) run(ctx context.Context, c checks.Check) (r checks.Result) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("Health check panicked", "check", c.Name(), "panic", p)
			r = checks.Result{
				Name:                c.Name(),
				Label:               c.Label(),
				Status:              checks.StatusCrashed,
				NotificationMessage: fmt.Sprintf("%v", p),
				Meta:                map[string]interface{}{},
			}
		}
	}()

	return c.Run(ctx)
}
