package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PlatformCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "distribution_platform_calls_total",
		Help: "Platform adapter calls by operation and outcome",
	}, []string{"platform", "operation", "outcome"})

	PlatformCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "distribution_platform_call_duration_seconds",
		Help:    "Duration of platform adapter calls",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"platform", "operation"})

	TokenRefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "distribution_token_refresh_total",
		Help: "Access token refreshes triggered by a 401",
	}, []string{"platform", "outcome"})

	ScheduledPostsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "distribution_scheduled_posts_total",
		Help: "Scheduled posts handled by the worker",
	}, []string{"platform", "outcome"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of API requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// MustRegister registers the collectors.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		PlatformCallsTotal,
		PlatformCallDuration,
		TokenRefreshTotal,
		ScheduledPostsTotal,
		HTTPRequestDuration,
	)
}

// ObservePlatformCall records one adapter call started at start.
func ObservePlatformCall(platform, operation string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	PlatformCallsTotal.WithLabelValues(platform, operation, outcome).Inc()
	PlatformCallDuration.WithLabelValues(platform, operation).Observe(time.Since(start).Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// GinMiddleware times every request by its route template.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Observe(time.Since(start).Seconds())
	}
}
