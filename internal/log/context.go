package log

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey struct{}

// WithContext returns a copy of ctx carrying logger
func WithContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored by WithContext, or one over
// slog.Default when none is set.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: ComponentApp,
	}
}

// StructuredLogger emits the recurring log lines of the service with a
// fixed set of fields each.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		logger: logger,
	}
}

// LogHTTPStart logs the start of an HTTP request
func (sl *StructuredLogger) LogHTTPStart(ctx context.Context, r *http.Request, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"), r.Header.Get("Referer")).
		WithClientIP(clientIP)

	sl.logger.DebugContext(ctx, "HTTP request started", fields.ToSlice()...)
}

// LogHTTPEnd logs a finished request at a level derived from its status
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	switch {
	case statusCode >= 500:
		level = slog.LevelError
	case statusCode >= 400:
		level = slog.LevelWarn
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", "").
		WithHTTPResponse(statusCode, durationMs).
		WithClientIP(clientIP)

	sl.logger.Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

// LogRecordCreated logs a successfully stored absence record
func (sl *StructuredLogger) LogRecordCreated(ctx context.Context, id, absentTeacher, subject string, hours int, coverage string) {
	fields := NewFields().
		WithRecord(id, absentTeacher, subject, hours, coverage).
		WithOperation(OpCreate)

	sl.logger.WithComponent(ComponentRecords).InfoContext(ctx, "Absence record created", fields.ToSlice()...)
}

func (sl *StructuredLogger) LogRecordDeleted(ctx context.Context, id string) {
	sl.logger.WithComponent(ComponentRecords).InfoContext(ctx, "Absence record deleted",
		FieldRecordID, id,
		FieldOperation, OpDelete)
}

// LogReportExported logs where a consolidated month was written
func (sl *StructuredLogger) LogReportExported(ctx context.Context, month, year int, ref string) {
	fields := NewFields().
		WithPeriod(month, year).
		WithOperation(OpExport)
	fields[FieldReportRef] = ref

	sl.logger.WithComponent(ComponentReport).InfoContext(ctx, "Consolidated report exported", fields.ToSlice()...)
}

// LogSyncBatch logs one pass over pending records. Nothing is logged when
// the pass found no work.
func (sl *StructuredLogger) LogSyncBatch(ctx context.Context, synced, failed int) {
	if synced == 0 && failed == 0 {
		return
	}
	level := slog.LevelInfo
	if failed > 0 {
		level = slog.LevelWarn
	}
	sl.logger.WithComponent(ComponentWorker).Log(ctx, level, "Pending records synced",
		FieldOperation, OpSync,
		FieldCount, synced,
		FieldFailed, failed)
}

// LogError logs err under component with the given extra fields
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	fields.WithError(err).WithOperation(operation)

	sl.logger.WithComponent(component).ErrorContext(ctx, msg, fields.ToSlice()...)
}
