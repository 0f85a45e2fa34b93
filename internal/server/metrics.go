package server

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	results   *prometheus.CounterVec
	cacheHits prometheus.Counter
	shared    prometheus.Counter
}

// newMetrics registers the service collectors on reg. promauto panics on a
// duplicate registration; that is returned as an error.
func newMetrics(reg prometheus.Registerer) (m *metrics, err error) {
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, fmt.Errorf("%v", r)
		}
	}()

	factory := promauto.With(reg)
	return &metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "redos_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "redos_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		results: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "redos_http_results_total",
			Help: "Analysis results served, by result kind",
		}, []string{"result"}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "redos_http_cache_hits_total",
			Help: "Reports served from the verdict cache",
		}),
		shared: factory.NewCounter(prometheus.CounterOpts{
			Name: "redos_http_shared_analyses_total",
			Help: "Requests answered by an analysis already in flight",
		}),
	}, nil
}

// instrument records the request counter and latency for every route.
func (s *Server) instrument(c *gin.Context) {
	start := time.Now()
	c.Next()
	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	s.metrics.requests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
	s.metrics.latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
}
