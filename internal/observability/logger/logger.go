package logger

import (
	"context"
	"fmt"
	"strings"

	"forms-api/internal/observability/requestid"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Context keys for extracting values from context
type contextKey string

const (
	loggerContextKey    contextKey = "logger"
	actorIDContextKey   contextKey = "actor_id"
	groupIDContextKey   contextKey = "group_id"
	rootErrorContextKey contextKey = "root_err"
)

type rootErrorContainer struct {
	err error
}

// Logger wraps zap.Logger to enforce structured logging standards
type Logger struct {
	zap         *zap.Logger
	serviceName string
}

// Field represents a structured log field
type Field = zapcore.Field

// New creates a new Logger instance with required base fields
// level: "debug", "info", "warn", "error"
func New(serviceName string, level string) (*Logger, error) {
	if serviceName == "" {
		return nil, fmt.Errorf("serviceName is required")
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(parseLevel(level)),
		Encoding:         "json",
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
	}

	z, err := config.Build(zap.AddCallerSkip(2))
	if err != nil {
		return nil, fmt.Errorf("failed to build zap logger: %w", err)
	}

	return NewFromZap(serviceName, z), nil
}

// NewFromZap wraps an existing zap logger. Used by tests with an observer core.
func NewFromZap(serviceName string, z *zap.Logger) *Logger {
	return &Logger{
		zap:         z.With(zap.String("service", serviceName)),
		serviceName: serviceName,
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return NewFromZap("nop", zap.NewNop())
}

// WithContext returns a logger that includes context values (request_id, actor_id, group_id)
func (l *Logger) WithContext(ctx context.Context) *Logger {
	fields := contextFields(ctx)
	if len(fields) == 0 {
		return l
	}

	return &Logger{
		zap:         l.zap.With(fields...),
		serviceName: l.serviceName,
	}
}

// With returns a child logger carrying fields on every entry.
func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{
		zap:         l.zap.With(sanitizeFields(fields)...),
		serviceName: l.serviceName,
	}
}

// Module returns a field for the module/component
func Module(name string) Field {
	return zap.String("module", name)
}

// Action returns a field for the action/operation
func Action(name string) Field {
	return zap.String("action", name)
}

// Info logs an info message. module and action default to "unknown" when absent.
func (l *Logger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.InfoLevel, msg, fields...)
}

// Warn logs a warning message with mandatory module and action
func (l *Logger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.WarnLevel, msg, fields...)
}

// Error logs an error message with mandatory module and action
func (l *Logger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.ErrorLevel, msg, fields...)
}

// Debug logs a debug message with mandatory module and action
func (l *Logger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.DebugLevel, msg, fields...)
}

func contextFields(ctx context.Context) []Field {
	fields := []Field{}

	if requestID := GetRequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if actorID := GetActorIDFromContext(ctx); actorID != "" {
		fields = append(fields, zap.String("actor_id", actorID))
	}
	if groupID := GetGroupIDFromContext(ctx); groupID != "" {
		fields = append(fields, zap.String("group_id", groupID))
	}
	return fields
}

func (l *Logger) log(ctx context.Context, level zapcore.Level, msg string, fields ...Field) {
	if ce := l.zap.Check(level, msg); ce == nil {
		return
	}

	sanitizedFields := sanitizeFields(fields)

	hasModule := false
	hasAction := false
	for _, f := range sanitizedFields {
		if f.Key == "module" {
			hasModule = true
		}
		if f.Key == "action" {
			hasAction = true
		}
	}

	if !hasModule {
		sanitizedFields = append(sanitizedFields, zap.String("module", "unknown"))
	}
	if !hasAction {
		sanitizedFields = append(sanitizedFields, zap.String("action", "unknown"))
	}

	allFields := append(contextFields(ctx), sanitizedFields...)

	switch level {
	case zapcore.DebugLevel:
		l.zap.Debug(msg, allFields...)
	case zapcore.InfoLevel:
		l.zap.Info(msg, allFields...)
	case zapcore.WarnLevel:
		l.zap.Warn(msg, allFields...)
	case zapcore.ErrorLevel:
		l.zap.Error(msg, allFields...)
	}
}

// Sync flushes any buffered log entries
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// forbiddenKeys are replaced with [REDACTED]: secrets and respondent PII.
var forbiddenKeys = map[string]bool{
	"authorization": true,
	"token":         true,
	"password":      true,
	"secret":        true,
	"api_key":       true,
	"database_url":  true,
	"redis_url":     true,
	"jwt":           true,
	"bearer":        true,
	"credential":    true,
	"email":         true,
	"phone":         true,
	"national_id":   true,
	"cpf":           true,
	"cnpj":          true,
	"full_name":     true,
	"address":       true,
}

func sanitizeFields(fields []Field) []Field {
	sanitized := make([]Field, 0, len(fields))
	for _, field := range fields {
		if forbiddenKeys[strings.ToLower(field.Key)] {
			sanitized = append(sanitized, zap.String(field.Key, "[REDACTED]"))
		} else {
			sanitized = append(sanitized, field)
		}
	}
	return sanitized
}

// parseLevel converts string level to zapcore.Level
func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Context value getters

func GetRequestIDFromContext(ctx context.Context) string {
	return requestid.GetRequestID(ctx)
}

func GetActorIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(actorIDContextKey).(string); ok {
		return id
	}
	return ""
}

func GetGroupIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(groupIDContextKey).(string); ok {
		return id
	}
	return ""
}

// Context value setters

func SetRequestIDInContext(ctx context.Context, requestID string) context.Context {
	return requestid.SetRequestID(ctx, requestID)
}

func SetActorIDInContext(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorIDContextKey, actorID)
}

func SetGroupIDInContext(ctx context.Context, groupID string) context.Context {
	return context.WithValue(ctx, groupIDContextKey, groupID)
}

// GetLogger retrieves logger from context or returns a new one
func GetLogger(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerContextKey).(*Logger); ok {
		return l
	}
	// Fallback: should not happen behind RequestLoggingMiddleware
	l, err := New("forms-api", "info")
	if err != nil {
		return Nop()
	}
	return l
}

// SetLoggerInContext stores logger in context
func SetLoggerInContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// InitRootErrorContext initializes context with a pointer to hold the root error
func InitRootErrorContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, rootErrorContextKey, &rootErrorContainer{})
}

// SetRootError sets the root cause error in the context container
func SetRootError(ctx context.Context, err error) {
	if container, ok := ctx.Value(rootErrorContextKey).(*rootErrorContainer); ok {
		container.err = err
	}
}

// GetRootError retrieves the root cause error from the context container
func GetRootError(ctx context.Context) error {
	if container, ok := ctx.Value(rootErrorContextKey).(*rootErrorContainer); ok {
		return container.err
	}
	return nil
}
