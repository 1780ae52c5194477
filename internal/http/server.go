package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"ausencias/internal/cache"
	"ausencias/internal/core"
	applog "ausencias/internal/log"
	"ausencias/internal/middleware/ratelimit"
	"ausencias/internal/middleware/security"
	"ausencias/internal/middleware/trace"
	"ausencias/internal/records"
)

// RecordRegister is the in-memory record list the handlers work on.
type RecordRegister interface {
	Len() int
	Create(ctx context.Context, d core.RecordDraft) (core.AbsenceRecord, error)
	Delete(ctx context.Context, id string) error
	Filter(f core.Filters) ([]core.AbsenceRecord, error)
	Consolidate(month, year int) (core.MonthlyConsolidatedData, error)
}

// StatsReporter exposes cache statistics for /metrics.
type StatsReporter interface {
	Stats() cache.Stats
}

// Options configures NewServer. Register is required.
type Options struct {
	Addr               string
	Register           RecordRegister
	Reports            records.ReportWriter
	Ready              func(context.Context) error
	ReportCache        StatsReporter
	Logger             *applog.Logger
	RateLimitPerMinute int
}

// appMetrics tracks application-level counters
type appMetrics struct {
	uptime         time.Time
	recordsCreated int64
	recordsDeleted int64
	reportsExport  int64
}

type Server struct {
	http.Server
	register    RecordRegister
	reports     records.ReportWriter
	ready       func(context.Context) error
	reportCache StatsReporter
	logger      *applog.Logger
	validate    *validator.Validate
	now         func() time.Time

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	appMetrics   *appMetrics
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}

	s := &Server{
		register:    opts.Register,
		reports:     opts.Reports,
		ready:       opts.Ready,
		reportCache: opts.ReportCache,
		logger:      logger.WithComponent(applog.ComponentHTTP),
		validate:    newValidator(),
		now:         time.Now,
		appMetrics:  &appMetrics{uptime: time.Now()},
	}

	s.securityDetector = security.NewDetector(logger)
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP)
	s.rateLimiter = ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: opts.RateLimitPerMinute,
		Methods:           []string{http.MethodPost, http.MethodDelete},
	}, logger)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /api/subjects", s.handleSubjects)
	mux.HandleFunc("GET /api/records", s.handleListRecords)
	mux.HandleFunc("POST /api/records", s.handleCreateRecord)
	mux.HandleFunc("DELETE /api/records/{id}", s.handleDeleteRecord)
	mux.HandleFunc("GET /api/consolidated", s.handleConsolidated)
	mux.HandleFunc("POST /api/consolidated/export", s.handleExportConsolidated)

	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").Write(w)
	})(mux)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.traceMiddleware.Middleware(s.securityDetector.Middleware(headers.Middleware(limited))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// newValidator reports field errors under their JSON names and knows the
// subject catalogue.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("subject", func(fl validator.FieldLevel) bool {
		return core.Subject(fl.Field().String()).IsValid()
	})
	return v
}

// Shutdown gracefully shuts down the server and its background routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
