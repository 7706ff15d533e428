package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ohdear-panel/internal/domain/ohdear"
	"github.com/ohdear-panel/internal/ohdear/ports"
	"github.com/ohdear-panel/pkg/metrics"
	"github.com/ohdear-panel/pkg/ratelimit"
	"github.com/ohdear-panel/pkg/resilience"
	"github.com/ohdear-panel/pkg/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultBaseURL = "https://ohdear.app/api"
	// DefaultMaxResponseBytes bounds how much of a response body is read.
	DefaultMaxResponseBytes = 10 << 20
	filterTime     = "20060102150405"
)

// Options configures clients produced by NewFactory.
type Options struct {
	BaseURL        string
	Timeout        time.Duration
	RequestsPerMin int
	RetryAttempts  int
	HTTPClient     *http.Client
	// MaxResponseBytes caps response bodies; larger ones are invalid.
	MaxResponseBytes int64
}

// Client talks to the Oh Dear REST API with a single token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	breaker *resilience.CircuitBreaker
	limiter *ratelimit.TokenBucketLimiter
	retry   resilience.RetryConfig
	tracer  trace.Tracer
	maxBody int64
}

var _ ports.Client = (*Client)(nil)

// NewFactory returns a factory whose clients share one circuit breaker and
// one outbound rate limit, whatever token they carry.
func NewFactory(opts Options) ports.ClientFactory {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxResponseBytes <= 0 {
		opts.MaxResponseBytes = DefaultMaxResponseBytes
	}
	if opts.RequestsPerMin <= 0 {
		opts.RequestsPerMin = 250
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	breakerCfg := resilience.DefaultCircuitBreakerConfig("ohdear-api")
	breakerCfg.IsSuccessful = isBreakerSuccess
	breaker := resilience.NewCircuitBreaker(breakerCfg)
	limiter := ratelimit.NewPerMinuteLimiter(opts.RequestsPerMin, 10)

	retry := resilience.DefaultRetryConfig()
	if opts.RetryAttempts > 0 {
		retry.MaxAttempts = opts.RetryAttempts
	}
	retry.ShouldRetry = isRetryable

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	tracer := otel.Tracer("ohdear-api")

	return func(token string) ports.Client {
		return &Client{
			baseURL: baseURL,
			token:   token,
			http:    httpClient,
			breaker: breaker,
			limiter: limiter,
			retry:   retry,
			tracer:  tracer,
			maxBody: opts.MaxResponseBytes,
		}
	}
}

// Me identifies the account that owns the token.
func (c *Client) Me(ctx context.Context) (*ohdear.User, error) {
	var u ohdear.User
	if err := c.get(ctx, "me", "/me", nil, &u); err != nil {
		return nil, err
	}
	if u.ID == 0 {
		return nil, ohdear.ErrInvalidResponse
	}
	return &u, nil
}

func (c *Client) Site(ctx context.Context, siteID string) (*ohdear.Site, error) {
	var s ohdear.Site
	if err := c.get(ctx, "site", "/sites/"+url.PathEscape(siteID), nil, &s); err != nil {
		return nil, err
	}
	if s.ID == 0 {
		return nil, ohdear.ErrInvalidResponse
	}
	return &s, nil
}

func (c *Client) EnableCheck(ctx context.Context, checkID int) (*ohdear.Check, error) {
	return c.checkAction(ctx, "check_enable", checkID, "enable")
}

func (c *Client) DisableCheck(ctx context.Context, checkID int) (*ohdear.Check, error) {
	return c.checkAction(ctx, "check_disable", checkID, "disable")
}

func (c *Client) RequestCheckRun(ctx context.Context, checkID int) (*ohdear.Check, error) {
	return c.checkAction(ctx, "check_request_run", checkID, "request-run")
}

func (c *Client) checkAction(ctx context.Context, endpoint string, checkID int, action string) (*ohdear.Check, error) {
	var check ohdear.Check
	path := fmt.Sprintf("/checks/%d/%s", checkID, action)
	if err := c.send(ctx, http.MethodPost, endpoint, path, nil, &check); err != nil {
		return nil, err
	}
	if check.ID == 0 {
		return nil, ohdear.ErrInvalidResponse
	}
	return &check, nil
}

type dataEnvelope[T any] struct {
	Data []T `json:"data"`
}

func (c *Client) BrokenLinks(ctx context.Context, siteID string) ([]ohdear.BrokenLink, error) {
	var out dataEnvelope[ohdear.BrokenLink]
	if err := c.get(ctx, "broken_links", "/broken-links/"+url.PathEscape(siteID), nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) MixedContent(ctx context.Context, siteID string) ([]ohdear.MixedContent, error) {
	var out dataEnvelope[ohdear.MixedContent]
	if err := c.get(ctx, "mixed_content", "/mixed-content/"+url.PathEscape(siteID), nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) Uptime(ctx context.Context, siteID string, r ohdear.TimeRange, split string) ([]ohdear.UptimeRecord, error) {
	q := url.Values{}
	q.Set("filter[started_at]", r.From.UTC().Format(filterTime))
	q.Set("filter[ended_at]", r.To.UTC().Format(filterTime))
	if split == "" {
		split = "day"
	}
	q.Set("split", split)

	var out []ohdear.UptimeRecord
	if err := c.get(ctx, "uptime", "/sites/"+url.PathEscape(siteID)+"/uptime", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Downtime(ctx context.Context, siteID string, r ohdear.TimeRange) ([]ohdear.DowntimePeriod, error) {
	q := url.Values{}
	q.Set("filter[started_at]", r.From.UTC().Format(filterTime))
	q.Set("filter[ended_at]", r.To.UTC().Format(filterTime))

	var out dataEnvelope[ohdear.DowntimePeriod]
	if err := c.get(ctx, "downtime", "/sites/"+url.PathEscape(siteID)+"/downtime", q, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) CertificateHealth(ctx context.Context, siteID string) (*ohdear.CertificateHealth, error) {
	var out ohdear.CertificateHealth
	if err := c.get(ctx, "certificate_health", "/certificate-health/"+url.PathEscape(siteID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ApplicationHealthChecks(ctx context.Context, siteID string) ([]ohdear.ApplicationHealthCheck, error) {
	var out dataEnvelope[ohdear.ApplicationHealthCheck]
	if err := c.get(ctx, "application_health", "/sites/"+url.PathEscape(siteID)+"/application-health-checks", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) PerformanceRecords(ctx context.Context, siteID string, r ohdear.TimeRange) ([]ohdear.PerformanceRecord, error) {
	q := url.Values{}
	q.Set("filter[start]", r.From.UTC().Format(filterTime))
	q.Set("filter[end]", r.To.UTC().Format(filterTime))
	q.Set("filter[group_by]", "hour")

	var out dataEnvelope[ohdear.PerformanceRecord]
	if err := c.get(ctx, "performance", "/sites/"+url.PathEscape(siteID)+"/performance-records", q, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// get retries transient failures; writes are never retried.
func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values, out interface{}) error {
	_, err := resilience.Retry(ctx, c.retry, func() (struct{}, error) {
		return struct{}{}, c.send(ctx, http.MethodGet, endpoint, path, query, out)
	})
	return err
}

func (c *Client) send(ctx context.Context, method, endpoint, path string, query url.Values, out interface{}) error {
	ctx, span := telemetry.StartAPISpan(ctx, c.tracer, endpoint, method)

	start := time.Now()
	err := c.limiter.Wait(ctx)
	if err == nil {
		_, err = resilience.Execute(ctx, c.breaker, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.do(ctx, method, path, query, out)
		})
	}

	metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	metrics.APIRequestsTotal.WithLabelValues(endpoint, outcome(err)).Inc()
	telemetry.EndSpan(span, err)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		return ohdear.ErrInvalidResponse
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ohdear.ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return &ohdear.APIError{StatusCode: resp.StatusCode, Message: "Not found."}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &ohdear.APIError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return ohdear.ErrInvalidResponse
	}
	return nil
}

func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		return payload.Message
	}
	return ""
}

func isRetryable(err error) bool {
	var apiErr *ohdear.APIError
	if errors.As(err, &apiErr) {
		return resilience.IsRetryableHTTPStatus(apiErr.StatusCode)
	}
	return false
}

// Rejected tokens and unknown sites are answers, not outages.
func isBreakerSuccess(err error) bool {
	if err == nil || errors.Is(err, ohdear.ErrUnauthorized) || errors.Is(err, ohdear.ErrInvalidResponse) {
		return true
	}
	var apiErr *ohdear.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests
	}
	return false
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	if errors.Is(err, ohdear.ErrUnauthorized) {
		return "unauthorized"
	}
	var apiErr *ohdear.APIError
	if errors.As(err, &apiErr) {
		return strconv.Itoa(apiErr.StatusCode)
	}
	return "error"
}
