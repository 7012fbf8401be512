package telemetry

import "go.uber.org/zap"

/*
Logger is the structured-logging port every worker package depends on
instead of importing go.uber.org/zap directly, generalizing the
teacher's own instinct for metadata.MetadataSink (an injected
observability port) to the rest of the ambient stack. Field() values are
passed straight through to zap, so call sites still get zap's typed
field constructors (zap.String, zap.Duration, ...).
*/
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	With(fields ...zap.Field) Logger
}

// ZapLogger is the production Logger, backed by *zap.Logger.
type ZapLogger struct {
	inner *zap.Logger
}

// NewProductionLogger builds a ZapLogger with zap's production defaults
// (JSON encoding, info level).
func NewProductionLogger() (*ZapLogger, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return &ZapLogger{inner: logger}, nil
}

// NewLogger wraps an already-configured *zap.Logger, for tests and for
// processes that build their own zap config.
func NewLogger(inner *zap.Logger) *ZapLogger {
	return &ZapLogger{inner: inner}
}

func (l *ZapLogger) Debug(msg string, fields ...zap.Field) { l.inner.Debug(msg, fields...) }
func (l *ZapLogger) Info(msg string, fields ...zap.Field)  { l.inner.Info(msg, fields...) }
func (l *ZapLogger) Warn(msg string, fields ...zap.Field)  { l.inner.Warn(msg, fields...) }
func (l *ZapLogger) Error(msg string, fields ...zap.Field) { l.inner.Error(msg, fields...) }

func (l *ZapLogger) With(fields ...zap.Field) Logger {
	return &ZapLogger{inner: l.inner.With(fields...)}
}

// Sync flushes any buffered log entries; callers defer it right after
// construction, matching zap's own usage convention.
func (l *ZapLogger) Sync() error {
	return l.inner.Sync()
}
