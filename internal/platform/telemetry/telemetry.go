// Package telemetry exposes the service's Prometheus metrics: HTTP server
// traffic, review lock transitions, active operational issues, outbound calls
// to the payments and wearables providers, and database pool occupancy.
//
// A nil *Provider is valid and records nothing, so components can be built in
// tests without a registry.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rxadmin"

// Config controls which collectors are registered.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// RuntimeCollectors adds the Go runtime and process collectors.
	RuntimeCollectors bool
}

// Provider owns the metrics registry and every collector the service writes to.
type Provider struct {
	registry *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	activeRequests prometheus.Gauge

	reviewTransitions *prometheus.CounterVec
	activeIssues      *prometheus.GaugeVec
	issueScans        *prometheus.CounterVec

	externalCalls    *prometheus.CounterVec
	externalDuration *prometheus.HistogramVec

	dbPool *prometheus.GaugeVec
}

// New creates a provider with its own registry.
func New(cfg Config) (*Provider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "rxadmin-server"
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	constLabels := prometheus.Labels{"service": cfg.ServiceName, "env": cfg.Environment}

	p := &Provider{registry: prometheus.NewRegistry()}

	p.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "http_requests_total",
		Help:        "Total number of HTTP requests by method, route and status code.",
		ConstLabels: constLabels,
	}, []string{"method", "route", "status_code"})

	p.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   namespace,
		Name:        "http_request_duration_seconds",
		Help:        "Duration of HTTP requests in seconds.",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: constLabels,
	}, []string{"method", "route"})

	p.activeRequests = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "http_active_requests",
		Help:        "Number of in-flight HTTP requests.",
		ConstLabels: constLabels,
	})

	p.reviewTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "review_transitions_total",
		Help:        "Order review transitions by kind and outcome.",
		ConstLabels: constLabels,
	}, []string{"transition", "result"})

	p.activeIssues = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "active_issues",
		Help:        "Currently detected operational issues by tenant and severity.",
		ConstLabels: constLabels,
	}, []string{"tenant", "severity"})

	p.issueScans = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "issue_scans_total",
		Help:        "Issue detection runs by trigger and outcome.",
		ConstLabels: constLabels,
	}, []string{"trigger", "result"})

	p.externalCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "external_requests_total",
		Help:        "Outbound provider API calls by service, operation and outcome.",
		ConstLabels: constLabels,
	}, []string{"service", "operation", "result"})

	p.externalDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "external_request_duration_seconds",
		Help:      "Duration of outbound provider API calls.",
		// 10ms to ~10s
		Buckets:     prometheus.ExponentialBuckets(0.01, 2, 10),
		ConstLabels: constLabels,
	}, []string{"service", "operation"})

	p.dbPool = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "db_pool_connections",
		Help:        "Database pool connections by state.",
		ConstLabels: constLabels,
	}, []string{"state"})

	cs := []prometheus.Collector{
		p.httpRequests, p.httpDuration, p.activeRequests,
		p.reviewTransitions, p.activeIssues, p.issueScans,
		p.externalCalls, p.externalDuration, p.dbPool,
	}
	if cfg.RuntimeCollectors {
		cs = append(cs,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	for _, c := range cs {
		if err := p.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Registry returns the underlying registry.
func (p *Provider) Registry() *prometheus.Registry {
	if p == nil {
		return nil
	}
	return p.registry
}

// Middleware records request counts and latency keyed by the matched route
// template rather than the raw path, keeping label cardinality bounded.
func (p *Provider) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if p == nil {
				return next(c)
			}
			p.activeRequests.Inc()
			start := time.Now()

			err := next(c)

			p.activeRequests.Dec()
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if !c.Response().Committed {
					status = http.StatusInternalServerError
				}
			}
			method := c.Request().Method
			p.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			p.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Provider) Handler() echo.HandlerFunc {
	if p == nil {
		return func(c echo.Context) error { return c.NoContent(http.StatusNotFound) }
	}
	return echo.WrapHandler(promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))
}

// ReviewTransition counts one attempted review transition.
func (p *Provider) ReviewTransition(transition string, err error) {
	if p == nil {
		return
	}
	p.reviewTransitions.WithLabelValues(transition, resultLabel(err)).Inc()
}

// SetActiveIssues replaces a tenant's active issue series with counts per
// severity. Severities absent from counts are dropped; other tenants are kept.
func (p *Provider) SetActiveIssues(tenant string, counts map[string]int) {
	if p == nil {
		return
	}
	p.activeIssues.DeletePartialMatch(prometheus.Labels{"tenant": tenant})
	for sev, n := range counts {
		p.activeIssues.WithLabelValues(tenant, sev).Set(float64(n))
	}
}

// IssueScan counts one detection run.
func (p *Provider) IssueScan(trigger string, err error) {
	if p == nil {
		return
	}
	p.issueScans.WithLabelValues(trigger, resultLabel(err)).Inc()
}

// ExternalCall records an outbound provider API call.
func (p *Provider) ExternalCall(service, operation string, start time.Time, err error) {
	if p == nil {
		return
	}
	p.externalCalls.WithLabelValues(service, operation, resultLabel(err)).Inc()
	p.externalDuration.WithLabelValues(service, operation).Observe(time.Since(start).Seconds())
}

// SetDBPool records pool occupancy.
func (p *Provider) SetDBPool(total, idle, acquired int32) {
	if p == nil {
		return
	}
	p.dbPool.WithLabelValues("total").Set(float64(total))
	p.dbPool.WithLabelValues("idle").Set(float64(idle))
	p.dbPool.WithLabelValues("acquired").Set(float64(acquired))
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
