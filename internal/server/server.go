// Package server exposes the analyzer over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/KromDaniel/redos/internal/cache"
	"github.com/KromDaniel/redos/pkg/redos"
)

// Defaults for Config fields left zero.
const (
	DefaultAddr         = ":8080"
	DefaultMaxBodyBytes    = 64 << 10
	DefaultAnalysisTimeout = 30 * time.Second
	shutdownTimeout        = 5 * time.Second
)

// Config configures the service.
type Config struct {
	Addr string
	// RateLimit is requests per second across all clients; 0 disables it
	RateLimit    float64
	Burst        int
	MaxBodyBytes int64
	// AnalysisTimeout bounds one shared analysis, whatever the analyzer's
	// own timeout is
	AnalysisTimeout time.Duration

	// Cache, when set, serves repeated patterns without analysis
	Cache *cache.Cache
	// Registerer receives the service collectors; nil means the default registry
	Registerer prometheus.Registerer
	// MetricsHandler is mounted at /metrics when set
	MetricsHandler http.Handler
	Logger         *slog.Logger
}

// AnalyzeRequest is the body of POST /v1/analyze.
type AnalyzeRequest struct {
	Pattern string `json:"pattern" binding:"required"`
}

// ErrorResponse is returned for requests that produce no report.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Server is the HTTP front end of one Analyzer.
type Server struct {
	analyzer    *redos.Analyzer
	fingerprint string
	cfg         Config
	limiter     *rate.Limiter
	group       singleflight.Group
	metrics     *metrics
	log         *slog.Logger
	engine      *gin.Engine
}

// New builds the router.
func New(analyzer *redos.Analyzer, cfg Config) (*Server, error) {
	if analyzer == nil {
		return nil, errors.New("server: nil analyzer")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.AnalysisTimeout <= 0 {
		cfg.AnalysisTimeout = DefaultAnalysisTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}

	m, err := newMetrics(cfg.Registerer)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	s := &Server{
		analyzer:    analyzer,
		fingerprint: analyzer.Config().Fingerprint(),
		cfg:         cfg,
		metrics:     m,
		log:         cfg.Logger,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("redos"))
	router.Use(s.instrument)

	router.GET("/healthz", s.handleHealth)
	if cfg.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}
	v1 := router.Group("/v1")
	v1.POST("/analyze", s.limit, s.handleAnalyze)

	s.engine = router
	return s, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleAnalyze handles POST /v1/analyze.
//
//	200 OK: a definitive report
//	400 Bad Request: malformed body or a pattern that does not compile
//	422 Unprocessable Entity: timed out or failed; the body is still the report
//	429 Too Many Requests: rate limited
func (s *Server) handleAnalyze(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := s.log.With("request_id", requestID, "handler", "handleAnalyze")

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes)
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	report, err := s.analyze(c.Request.Context(), req.Pattern)
	if err != nil {
		status, code := http.StatusInternalServerError, "ANALYSIS_FAILED"
		if errors.Is(err, redos.ErrCompile) || errors.Is(err, redos.ErrPreprocess) {
			status, code = http.StatusBadRequest, "INVALID_PATTERN"
		}
		logger.Warn("Pattern rejected", "pattern", req.Pattern, "error", err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	s.metrics.results.WithLabelValues(report.Kind.String()).Inc()
	if report.Inconclusive() {
		logger.Warn("Analysis inconclusive", "pattern", req.Pattern, "result", report.Kind.String())
		c.JSON(http.StatusUnprocessableEntity, report)
		return
	}

	logger.Info("Analyzed", "pattern", req.Pattern, "result", report.Kind.String(), "duration", report.Duration)
	c.JSON(http.StatusOK, report)
}

// analyze consults the cache, then collapses concurrent requests for the
// same pattern into one analysis. The shared analysis is detached from the
// request so one client disconnecting does not cancel it for the others,
// and is bounded by AnalysisTimeout instead. Every caller gets its own copy
// of the report under a fresh ID.
func (s *Server) analyze(ctx context.Context, pattern string) (*redos.Report, error) {
	if s.cfg.Cache != nil {
		report, ok, err := s.cfg.Cache.Get(s.fingerprint, pattern)
		if err != nil {
			s.log.Warn("Cache read failed", "error", err)
		} else if ok {
			s.metrics.cacheHits.Inc()
			return report, nil
		}
	}

	v, err, shared := s.group.Do(pattern, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.AnalysisTimeout)
		defer cancel()
		report, err := s.analyzer.Analyze(ctx, pattern)
		if err != nil {
			return nil, err
		}
		if s.cfg.Cache != nil {
			if err := s.cfg.Cache.Put(s.fingerprint, report); err != nil {
				s.log.Warn("Cache write failed", "error", err)
			}
		}
		return report, nil
	})
	if shared {
		s.metrics.shared.Inc()
	}
	if err != nil {
		return nil, err
	}
	if !shared {
		return v.(*redos.Report), nil
	}
	report := *v.(*redos.Report)
	report.ID = uuid.New()
	return &report, nil
}

// limit rejects requests beyond the configured rate.
func (s *Server) limit(c *gin.Context) {
	if s.limiter != nil && !s.limiter.Allow() {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
			Error: "rate limit exceeded",
			Code:  "RATE_LIMITED",
		})
		return
	}
	c.Next()
}

func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
