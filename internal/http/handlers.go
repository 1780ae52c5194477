package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"ausencias/internal/core"
	applog "ausencias/internal/log"
)

const (
	readyTimeout  = 5 * time.Second
	exportTimeout = 15 * time.Second
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().Data(map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	}).Write(w)
}

// handleReady checks the record backend and reports the loaded register size
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.ready == nil {
		checks["backend"] = "ok"
	} else if err := s.ready(ctx); err != nil {
		checks["backend"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
		s.logger.WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
	} else {
		checks["backend"] = "ok"
	}

	checks["records"] = s.register.Len()
	if s.reports != nil {
		checks["report_export"] = "configured"
	} else {
		checks["report_export"] = "not_configured"
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
	}

	NewResponse().Status(httpStatus).Message(status).Data(map[string]any{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()

	w.WriteHeader(http.StatusOK)

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_response_time_avg_microseconds", "gauge", "Average response time", traceMetrics.AverageResponseTime)
	metric("records_loaded", "gauge", "Absence records in the register", s.register.Len())
	metric("records_created_total", "counter", "Absence records created", atomic.LoadInt64(&s.appMetrics.recordsCreated))
	metric("records_deleted_total", "counter", "Absence records deleted", atomic.LoadInt64(&s.appMetrics.recordsDeleted))
	metric("reports_exported_total", "counter", "Consolidated reports exported", atomic.LoadInt64(&s.appMetrics.reportsExport))
	if s.reportCache != nil {
		stats := s.reportCache.Stats()
		metric("report_cache_entries", "gauge", "Cached consolidated reports", stats.Size)
		metric("report_cache_hits_total", "counter", "Report cache hits", stats.Hits)
		metric("report_cache_misses_total", "counter", "Report cache misses", stats.Misses)
		metric("report_cache_evictions_total", "counter", "Reports evicted to respect the cache size", stats.Evictions)
		metric("report_cache_expired_total", "counter", "Reports dropped after their TTL", stats.Expired)
	}
	metric("rate_limit_rejected_total", "counter", "Requests rejected by the rate limiter", rateLimitMetrics.Rejected)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Suspicious requests detected", securityMetrics.SuspiciousRequests)
	metric("blocked_requests_total", "counter", "Requests rejected by method", securityMetrics.BlockedRequests)
	metric("uptime_seconds", "gauge", "Application uptime in seconds", fmt.Sprintf("%.0f", time.Since(s.appMetrics.uptime).Seconds()))
}

func (s *Server) handleSubjects(w http.ResponseWriter, r *http.Request) {
	NewResponse().Data(core.AllSubjects()).Write(w)
}

// handleListRecords returns the records matching the query filters, newest first.
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	filters := ParseFilters(r.URL.Query())
	list, err := s.register.Filter(filters)
	if err != nil {
		ValidationErrorResponse(err).Write(w)
		return
	}
	NewResponse().Data(map[string]any{
		"records": list,
		"count":   len(list),
		"total":   s.register.Len(),
	}).Write(w)
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ErrorResponse(http.StatusRequestEntityTooLarge, "Request body too large").Write(w)
			return
		}
		logger.WarnContext(ctx, "Invalid request body", applog.FieldError, err)
		BadRequestError("Invalid request body").Write(w)
		return
	}

	req := ParseCreateRecordRequest(p)
	if err := s.validate.Struct(req); err != nil {
		ValidationErrorResponse(err).Write(w)
		return
	}
	draft, err := req.Draft()
	if err != nil {
		ValidationErrorResponse(err).Write(w)
		return
	}

	rec, err := s.register.Create(ctx, draft)
	if err != nil {
		applog.NewStructuredLogger(logger).LogError(ctx, "Create record failed", err,
			applog.ComponentRecords, applog.OpCreate, applog.NewFields())
		FromError(err).Write(w)
		return
	}
	atomic.AddInt64(&s.appMetrics.recordsCreated, 1)
	applog.NewStructuredLogger(logger).LogRecordCreated(ctx, rec.ID, rec.AbsentTeacher,
		rec.AbsentTeacherSubject.String(), rec.HoursCovered, rec.Coverage.String())

	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/records/"+rec.ID).
		Message("Record created").
		Data(rec).
		Write(w)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		BadRequestError("Missing record id").Write(w)
		return
	}

	if err := s.register.Delete(ctx, id); err != nil {
		resp := FromError(err)
		if resp.Envelope().Code >= http.StatusInternalServerError {
			applog.NewStructuredLogger(applog.FromContext(ctx)).LogError(ctx, "Delete record failed", err,
				applog.ComponentRecords, applog.OpDelete, applog.NewFields())
		}
		resp.Write(w)
		return
	}
	atomic.AddInt64(&s.appMetrics.recordsDeleted, 1)
	applog.NewStructuredLogger(applog.FromContext(ctx)).LogRecordDeleted(ctx, id)
	NewResponse().NoContent().Write(w)
}

// handleConsolidated returns the report for ?month=0..11&year=YYYY,
// defaulting to the current month.
func (s *Server) handleConsolidated(w http.ResponseWriter, r *http.Request) {
	params, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		ValidationErrorResponse(err).Write(w)
		return
	}
	report, err := s.register.Consolidate(params.Month, params.Year)
	if err != nil {
		FromError(err).Write(w)
		return
	}
	NewResponse().Message(report.Label()).Data(report).Write(w)
}

// handleExportConsolidated writes the requested month's report to the
// configured report sheet.
func (s *Server) handleExportConsolidated(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		ErrorResponse(http.StatusServiceUnavailable, "Report export not configured").Write(w)
		return
	}
	params, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		ValidationErrorResponse(err).Write(w)
		return
	}
	report, err := s.register.Consolidate(params.Month, params.Year)
	if err != nil {
		FromError(err).Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), exportTimeout)
	defer cancel()
	ref, err := s.reports.WriteMonthlyReport(ctx, report)
	if err != nil {
		applog.NewStructuredLogger(applog.FromContext(ctx)).LogError(ctx, "Report export failed", err,
			applog.ComponentReport, applog.OpExport, applog.NewFields().WithPeriod(params.Month, params.Year))
		ErrorResponse(http.StatusBadGateway, "Report export failed").Write(w)
		return
	}
	atomic.AddInt64(&s.appMetrics.reportsExport, 1)
	applog.NewStructuredLogger(applog.FromContext(ctx)).LogReportExported(ctx, params.Month, params.Year, ref)
	NewResponse().Message(report.Label()).Data(map[string]any{
		"ref":   ref,
		"month": params.Month,
		"year":  params.Year,
	}).Write(w)
}
