// Package logging provides a structured (log/slog-based) logger shared by
// the admin API and the scheduler pipeline.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// LogLevel represents a logging level.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// LoggerConfig holds logger configuration.
type LoggerConfig struct {
	Level      LogLevel
	Format     string // "json" or "text"
	Output     io.Writer
	AddSource  bool
	TimeFormat string
}

// DefaultLoggerConfig returns default logger configuration.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:      LevelInfo,
		Format:     "json",
		Output:     os.Stdout,
		AddSource:  true,
		TimeFormat: time.RFC3339,
	}
}

// Logger wraps slog.Logger with a few domain-specific helpers.
type Logger struct {
	*slog.Logger
	config *LoggerConfig
}

// NewLogger creates a new structured logger.
func NewLogger(config *LoggerConfig) *Logger {
	if config == nil {
		config = DefaultLoggerConfig()
	}

	var level slog.Level
	switch config.Level {
	case LevelDebug:
		level = slog.LevelDebug
	case LevelInfo:
		level = slog.LevelInfo
	case LevelWarn:
		level = slog.LevelWarn
	case LevelError:
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	if config.Format == "json" {
		handler = slog.NewJSONHandler(config.Output, opts)
	} else {
		handler = slog.NewTextHandler(config.Output, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
		config: config,
	}
}

// WithContext returns a logger enriched with request-scoped fields.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	return &Logger{
		Logger: l.Logger.With(contextFields(ctx)...),
		config: l.config,
	}
}

// WithFields returns a logger with additional fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{
		Logger: l.Logger.With(args...),
		config: l.config,
	}
}

// WithField returns a logger with one additional field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{
		Logger: l.Logger.With(key, value),
		config: l.config,
	}
}

// LogHTTPRequest logs an admin API HTTP request.
func (l *Logger) LogHTTPRequest(method, path string, statusCode int, duration time.Duration, fields map[string]interface{}) {
	attrs := []slog.Attr{
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", statusCode),
		slog.Duration("duration", duration),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	l.LogAttrs(context.Background(), slog.LevelInfo, "http request", attrs...)
}

// LogError logs an error with additional fields.
func (l *Logger) LogError(err error, message string, fields map[string]interface{}) {
	args := []interface{}{"error", err}
	for k, v := range fields {
		args = append(args, k, v)
	}
	l.Error(message, args...)
}

// LogSlowQuery logs a slow database query, flagged by SlowQueryLogger.
func (l *Logger) LogSlowQuery(query string, duration time.Duration, fields map[string]interface{}) {
	args := []interface{}{
		"query", query,
		"duration", duration,
		"slow_query", true,
	}
	for k, v := range fields {
		args = append(args, k, v)
	}
	l.Warn("slow query detected", args...)
}

// LogSecurityEvent logs a rejected admin-auth attempt against the Admin API.
func (l *Logger) LogSecurityEvent(eventType, actor, ipAddress string, fields map[string]interface{}) {
	args := []interface{}{
		"security_event", eventType,
		"actor", actor,
		"ip_address", ipAddress,
	}
	for k, v := range fields {
		args = append(args, k, v)
	}
	l.Warn("security event", args...)
}

// LogJobExecution logs the start-to-finish execution of a background job —
// the scheduler's pipeline run, in this codebase.
func (l *Logger) LogJobExecution(jobID, jobType, status string, duration time.Duration, err error) {
	args := []interface{}{
		"job_id", jobID,
		"job_type", jobType,
		"status", status,
		"duration", duration,
	}
	if err != nil {
		args = append(args, "error", err)
	}

	if status == "failed" {
		l.Error("job execution failed", args...)
	} else {
		l.Info("job execution completed", args...)
	}
}

// LogCacheOperation logs a directions-cache lookup.
func (l *Logger) LogCacheOperation(level string, key string, hit bool, duration time.Duration) {
	l.Debug("cache operation",
		"level", level,
		"key", key,
		"hit", hit,
		"duration", duration,
	)
}

// LogRun logs the outcome of a scheduler pipeline run.
func (l *Logger) LogRun(status string, routesGenerated, passengersAssigned int, duration time.Duration, err error) {
	args := []interface{}{
		"status", status,
		"routes_generated", routesGenerated,
		"passengers_assigned", passengersAssigned,
		"duration", duration,
	}
	if err != nil {
		args = append(args, "error", err)
	}
	if status == "Error" || status == "Failed" {
		l.Error("scheduling run completed", args...)
	} else {
		l.Info("scheduling run completed", args...)
	}
}

// LogAudit logs a state-changing operator action (spec §4.7 Admin API).
func (l *Logger) LogAudit(action, resource, resourceID, actor string, fields map[string]interface{}) {
	args := []interface{}{"action", action, "resource", resource, "resource_id", resourceID, "actor", actor}
	for k, v := range fields {
		args = append(args, k, v)
	}
	l.Info("audit", args...)
}

func contextFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0)
	if requestID := ctx.Value(ctxKeyRequestID); requestID != nil {
		fields = append(fields, "request_id", requestID)
	}
	return fields
}

type ctxKey string

const ctxKeyRequestID ctxKey = "request_id"

// WithRequestID stashes a request id on the context for WithContext to pick up.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// OpenLogFile opens (creating if necessary) the append-only, line-delimited
// log file colocated with the executable, per spec §6.
func OpenLogFile(path string) (*os.File, error) {
	if !filepath.IsAbs(path) {
		if exe, err := os.Executable(); err == nil {
			path = filepath.Join(filepath.Dir(exe), path)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return f, nil
}

// Global logger instance, mirroring the package-level convenience functions
// used throughout the codebase before a request-scoped logger is available.
var defaultLogger *Logger

// InitDefaultLogger initializes the global logger.
func InitDefaultLogger(config *LoggerConfig) {
	defaultLogger = NewLogger(config)
}

// GetLogger returns the global logger, creating a default one on first use.
func GetLogger() *Logger {
	if defaultLogger == nil {
		defaultLogger = NewLogger(DefaultLoggerConfig())
	}
	return defaultLogger
}

func Debug(msg string, args ...interface{}) { GetLogger().Debug(msg, args...) }
func Info(msg string, args ...interface{})  { GetLogger().Info(msg, args...) }
func Warn(msg string, args ...interface{})  { GetLogger().Warn(msg, args...) }
func Error(msg string, args ...interface{}) { GetLogger().Error(msg, args...) }
