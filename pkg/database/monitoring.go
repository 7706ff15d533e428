package database

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ohdear-panel/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

// SlowQueryThreshold is the default duration above which a query is logged.
const SlowQueryThreshold = 100 * time.Millisecond

const queryStartKey = "monitor:query_start"

var (
	queriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ohdear_panel_database_queries_total",
			Help: "Total number of database statements",
		},
		[]string{"operation", "table"},
	)

	queryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ohdear_panel_database_query_duration_seconds",
			Help:    "Database statement duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)

	slowQueries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ohdear_panel_database_slow_queries_total",
		Help: "Total number of slow database statements",
	})

	queryErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ohdear_panel_database_errors_total",
		Help: "Total number of failed database statements",
	})
)

// SlowQueryInfo describes one statement that exceeded the threshold.
type SlowQueryInfo struct {
	Query     string        `json:"query"`
	Table     string        `json:"table"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// QueryMonitor times every gorm statement, records it in Prometheus and keeps
// the most recent slow ones.
type QueryMonitor struct {
	logger     logger.Logger
	threshold  time.Duration
	maxQueries int

	mu      sync.RWMutex
	queries []SlowQueryInfo
}

// NewQueryMonitor registers the monitoring callbacks on db. A zero threshold
// uses SlowQueryThreshold.
func NewQueryMonitor(db *DB, log logger.Logger, threshold time.Duration) (*QueryMonitor, error) {
	if threshold <= 0 {
		threshold = SlowQueryThreshold
	}
	m := &QueryMonitor{
		logger:     log,
		threshold:  threshold,
		maxQueries: 100,
		queries:    make([]SlowQueryInfo, 0, 100),
	}
	if err := m.registerCallbacks(db.DB); err != nil {
		return nil, fmt.Errorf("failed to register query monitor: %w", err)
	}
	return m, nil
}

func (m *QueryMonitor) registerCallbacks(db *gorm.DB) error {
	cb := db.Callback()
	return errors.Join(
		cb.Query().Before("gorm:query").Register("monitor:before_query", start),
		cb.Query().After("gorm:query").Register("monitor:after_query", m.record("query")),
		cb.Create().Before("gorm:create").Register("monitor:before_create", start),
		cb.Create().After("gorm:create").Register("monitor:after_create", m.record("create")),
		cb.Update().Before("gorm:update").Register("monitor:before_update", start),
		cb.Update().After("gorm:update").Register("monitor:after_update", m.record("update")),
		cb.Delete().Before("gorm:delete").Register("monitor:before_delete", start),
		cb.Delete().After("gorm:delete").Register("monitor:after_delete", m.record("delete")),
	)
}

func start(db *gorm.DB) {
	db.InstanceSet(queryStartKey, time.Now())
}

func (m *QueryMonitor) record(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		started, ok := db.InstanceGet(queryStartKey)
		if !ok {
			return
		}
		duration := time.Since(started.(time.Time))
		table := db.Statement.Table

		queriesTotal.WithLabelValues(operation, table).Inc()
		queryDuration.WithLabelValues(operation).Observe(duration.Seconds())

		if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
			queryErrors.Inc()
			m.logger.Error("Database error", "operation", operation, "table", table, "error", db.Error)
		}

		if duration >= m.threshold {
			m.logSlow(db.Statement.SQL.String(), table, duration)
		}
	}
}

func (m *QueryMonitor) logSlow(query, table string, duration time.Duration) {
	slowQueries.Inc()
	m.logger.Warn("Slow query detected",
		"query", query,
		"table", table,
		"duration", duration,
		"threshold", m.threshold.String(),
	)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, SlowQueryInfo{
		Query:     query,
		Table:     table,
		Duration:  duration,
		Timestamp: time.Now(),
	})
	if len(m.queries) > m.maxQueries {
		m.queries = m.queries[len(m.queries)-m.maxQueries:]
	}
}

// SlowQueries returns up to limit of the most recent slow statements, newest
// last.
func (m *QueryMonitor) SlowQueries(limit int) []SlowQueryInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.queries) {
		limit = len(m.queries)
	}
	out := make([]SlowQueryInfo, limit)
	copy(out, m.queries[len(m.queries)-limit:])
	return out
}
