// Package metrics exposes Prometheus collectors for the HTTP front end and
// GraphQL execution.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/graphql-go/graphql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cf_graphql_server"

// Result outcomes
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	gatherer        prometheus.Gatherer
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	results         *prometheus.CounterVec
	resultErrors    prometheus.Counter
}

// New registers the collectors with a fresh registry. Go runtime and
// process collectors are included.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return MustNewMetrics(reg, reg)
}

// MustNewMetrics registers the collectors with reg and panics when any of
// them is already registered.
func MustNewMetrics(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		gatherer: gatherer,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests by route, method and status.",
			},
			[]string{"route", "method", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests by route and method.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		results: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "graphql",
				Name:      "results_total",
				Help:      "Executed GraphQL operations by outcome.",
			},
			[]string{"outcome"},
		),
		resultErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "graphql",
				Name:      "errors_total",
				Help:      "Errors returned in executed GraphQL results.",
			},
		),
	}

	reg.MustRegister(m.requests, m.requestDuration, m.results, m.resultErrors)
	return m
}

// Middleware records the count and duration of each request under its
// route template. Unmatched routes are recorded as "unmatched".
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		m.requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// ObserveResult records an executed GraphQL result. It has the signature of
// a server result callback.
func (m *Metrics) ObserveResult(ctx context.Context, params *graphql.Params, result *graphql.Result, responseBody []byte) {
	if m == nil || result == nil {
		return
	}

	m.results.WithLabelValues(Outcome(result)).Inc()
	m.resultErrors.Add(float64(len(result.Errors)))
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Outcome classifies a result. A result without data failed, one with data
// and errors is partial.
func Outcome(result *graphql.Result) string {
	switch {
	case result.Data == nil:
		return OutcomeFailed
	case len(result.Errors) > 0:
		return OutcomePartial
	}
	return OutcomeSuccess
}
