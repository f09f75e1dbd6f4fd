// Package logging provides structured logging with trace ID and
// algorithm-execution context propagation for the execution server.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// AlgorithmKey is the context key for the algorithm name a request is
	// executing against.
	AlgorithmKey ContextKey = "algorithm"
	// AlgorithmVersionKey is the context key for the algorithm version.
	AlgorithmVersionKey ContextKey = "algorithm_version"
	// RequestIDKey is the context key for the envelope's requestId.
	RequestIDKey ContextKey = "request_id"
	// WorkerPIDKey is the context key for the worker process handling a
	// request, once one has been assigned.
	WorkerPIDKey ContextKey = "worker_pid"
)

// Logger wraps logrus.Logger with additional functionality
type Logger struct {
	*logrus.Logger
	service string
}

// New creates a new Logger instance
func New(service, level, format string) *Logger {
	logger := logrus.New()

	// Set log level
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set formatter
	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	}

	logger.SetOutput(os.Stdout)

	return &Logger{
		Logger:  logger,
		service: service,
	}
}

// NewFromEnv constructs a logger using LOG_LEVEL and LOG_FORMAT environment variables.
// Defaults to "info" and "json" when unset.
func NewFromEnv(service string) *Logger {
	level := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	format := strings.TrimSpace(os.Getenv("LOG_FORMAT"))
	if format == "" {
		format = "json"
	}
	return New(service, level, format)
}

// WithContext creates a new logger entry carrying whatever trace id,
// algorithm name/version, requestId, and worker pid the context accumulated
// as a request moved through the dispatcher (C7), executor (C5), and
// supervised worker pool (C6).
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithField("service", l.service)

	if traceID := ctx.Value(TraceIDKey); traceID != nil {
		entry = entry.WithField("trace_id", traceID)
	}
	if name := ctx.Value(AlgorithmKey); name != nil {
		entry = entry.WithField("algorithm", name)
	}
	if version := ctx.Value(AlgorithmVersionKey); version != nil {
		entry = entry.WithField("algorithm_version", version)
	}
	if requestID := ctx.Value(RequestIDKey); requestID != nil {
		entry = entry.WithField("request_id", requestID)
	}
	if pid := ctx.Value(WorkerPIDKey); pid != nil {
		entry = entry.WithField("worker_pid", pid)
	}

	return entry
}

// WithTraceID creates a new logger entry with trace ID
func (l *Logger) WithTraceID(traceID string) *logrus.Entry {
	return l.Logger.WithFields(logrus.Fields{
		"service":  l.service,
		"trace_id": traceID,
	})
}

// WithAlgorithm creates a new logger entry scoped to one (name, version)
// registration, for log lines emitted outside a per-request context (e.g.
// registry load warnings, pool supervisor events).
func (l *Logger) WithAlgorithm(name, version string) *logrus.Entry {
	return l.Logger.WithFields(logrus.Fields{
		"service":           l.service,
		"algorithm":         name,
		"algorithm_version": version,
	})
}

// WithFields creates a new logger entry with custom fields
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["service"] = l.service
	return l.Logger.WithFields(fields)
}

// WithError creates a new logger entry with error
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithFields(logrus.Fields{
		"service": l.service,
		"error":   err.Error(),
	})
}

// SetOutput sets the logger output
func (l *Logger) SetOutput(output io.Writer) {
	l.Logger.SetOutput(output)
}

// Context helper functions

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID retrieves the trace ID from context
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// WithAlgorithmContext records the (name, version) being executed on ctx,
// so every log line derived from it (via Logger.WithContext) is attributable
// to the algorithm that produced it.
func WithAlgorithmContext(ctx context.Context, name, version string) context.Context {
	ctx = context.WithValue(ctx, AlgorithmKey, name)
	return context.WithValue(ctx, AlgorithmVersionKey, version)
}

// GetAlgorithmContext retrieves the (name, version) stashed by
// WithAlgorithmContext.
func GetAlgorithmContext(ctx context.Context) (name, version string) {
	if v, ok := ctx.Value(AlgorithmKey).(string); ok {
		name = v
	}
	if v, ok := ctx.Value(AlgorithmVersionKey).(string); ok {
		version = v
	}
	return name, version
}

// WithRequestID records the envelope's requestId on ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the requestId stashed by WithRequestID.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithWorkerPID records which worker process is handling the request on ctx,
// once the executor backend has assigned one.
func WithWorkerPID(ctx context.Context, pid int) context.Context {
	return context.WithValue(ctx, WorkerPIDKey, pid)
}

// GetWorkerPID retrieves the worker pid stashed by WithWorkerPID.
func GetWorkerPID(ctx context.Context) int {
	if pid, ok := ctx.Value(WorkerPIDKey).(int); ok {
		return pid
	}
	return 0
}

// Structured logging helpers

// LogRequest logs an HTTP request
func (l *Logger) LogRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}).Info("HTTP request")
}

// LogAlgorithmExecution logs the terminal outcome of one algorithm
// invocation: the C5/C7 boundary's equivalent of the teacher's
// LogBlockchainTx/LogCryptoOperation domain-event loggers.
func (l *Logger) LogAlgorithmExecution(ctx context.Context, name, version string, duration time.Duration, success bool, err error) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"algorithm":         name,
		"algorithm_version": version,
		"duration_ms":       duration.Milliseconds(),
		"success":           success,
	})

	if err != nil {
		entry.WithError(err).Error("algorithm execution failed")
	} else {
		entry.Info("algorithm execution completed")
	}
}

// LogWorkerLifecycle logs a supervised worker process's spawn, crash, or
// kill event, carrying its pid and the pool slot index it occupies.
func (l *Logger) LogWorkerLifecycle(ctx context.Context, workerPID, slot int, event string, err error) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"worker_pid":  workerPID,
		"worker_slot": slot,
		"event":       event,
	})

	if err != nil {
		entry.WithError(err).Warn("worker lifecycle event")
	} else {
		entry.Info("worker lifecycle event")
	}
}

// LogAuditWrite logs an attempt to persist a terminal execution record to
// the C9 audit sink (the only durable-storage touch this service makes).
func (l *Logger) LogAuditWrite(ctx context.Context, sink string, duration time.Duration, err error) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"sink":        sink,
		"duration_ms": duration.Milliseconds(),
	})

	if err != nil {
		entry.WithError(err).Error("audit write failed")
	} else {
		entry.Debug("audit write succeeded")
	}
}

// LogSecurityEvent logs a security-related event
func (l *Logger) LogSecurityEvent(ctx context.Context, eventType string, details map[string]interface{}) {
	fields := logrus.Fields{
		"event_type": eventType,
		"severity":   "security",
	}
	for k, v := range details {
		fields[k] = v
	}

	l.WithContext(ctx).WithFields(fields).Warn("Security event")
}

// LogAudit logs an audit event
func (l *Logger) LogAudit(ctx context.Context, action, resource, resourceID, result string) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"action":      action,
		"resource":    resource,
		"resource_id": resourceID,
		"result":      result,
		"audit":       true,
	}).Info("Audit log")
}

// Performance logging

// LogPerformance logs performance metrics
func (l *Logger) LogPerformance(ctx context.Context, operation string, metrics map[string]interface{}) {
	fields := logrus.Fields{
		"operation": operation,
		"type":      "performance",
	}
	for k, v := range metrics {
		fields[k] = v
	}

	l.WithContext(ctx).WithFields(fields).Info("Performance metrics")
}

// Error logging with stack trace

// LogErrorWithStack logs an error with additional context
func (l *Logger) LogErrorWithStack(ctx context.Context, err error, message string, fields map[string]interface{}) {
	logFields := logrus.Fields{
		"error": err.Error(),
	}
	for k, v := range fields {
		logFields[k] = v
	}

	l.WithContext(ctx).WithFields(logFields).Error(message)
}

// Fatal logs a fatal error and exits
func (l *Logger) Fatal(ctx context.Context, message string, err error) {
	l.WithContext(ctx).WithError(err).Fatal(message)
}

// Panic logs a panic and panics
func (l *Logger) Panic(ctx context.Context, message string, err error) {
	l.WithContext(ctx).WithError(err).Panic(message)
}

// Development helpers

// Debug logs a debug message (only in development)
func (l *Logger) Debug(ctx context.Context, message string, fields map[string]interface{}) {
	if l.Logger.Level >= logrus.DebugLevel {
		l.WithContext(ctx).WithFields(fields).Debug(message)
	}
}

// Info logs an info message
func (l *Logger) Info(ctx context.Context, message string, fields map[string]interface{}) {
	l.WithContext(ctx).WithFields(fields).Info(message)
}

// Warn logs a warning message
func (l *Logger) Warn(ctx context.Context, message string, fields map[string]interface{}) {
	l.WithContext(ctx).WithFields(fields).Warn(message)
}

// Error logs an error message
func (l *Logger) Error(ctx context.Context, message string, err error, fields map[string]interface{}) {
	entry := l.WithContext(ctx)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.WithFields(fields).Error(message)
}

// Global logger instance (can be initialized once at startup)
var defaultLogger *Logger

// InitDefault initializes the default logger
func InitDefault(service, level, format string) {
	defaultLogger = New(service, level, format)
}

// Default returns the default logger
func Default() *Logger {
	if defaultLogger == nil {
		// Fallback to a basic logger if not initialized
		defaultLogger = New("unknown", "info", "json")
	}
	return defaultLogger
}

// Convenience functions using default logger

// InfoDefault logs an info message using the default logger
func InfoDefault(ctx context.Context, message string) {
	Default().WithContext(ctx).Info(message)
}

// ErrorDefault logs an error message using the default logger
func ErrorDefault(ctx context.Context, message string, err error) {
	Default().WithContext(ctx).WithError(err).Error(message)
}

// WarnDefault logs a warning message using the default logger
func WarnDefault(ctx context.Context, message string) {
	Default().WithContext(ctx).Warn(message)
}

// DebugDefault logs a debug message using the default logger
func DebugDefault(ctx context.Context, message string) {
	Default().WithContext(ctx).Debug(message)
}

// Helper to format duration in milliseconds
func FormatDuration(d time.Duration) string {
	return fmt.Sprintf("%.2fms", float64(d.Nanoseconds())/1e6)
}
