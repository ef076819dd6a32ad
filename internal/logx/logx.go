// Package logx provides the leveled logging shim used across the SIFEN
// client. It replaces the teacher's ad hoc fmt.Printf debug helper
// (soap.logDebug) with a structured slog-backed logger so subsystems can
// tag entries with fields (fingerprint, CDC, attempt) instead of
// interpolating them into a format string.
package logx

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
)

var defaultLogger atomic.Pointer[slog.Logger]

func init() {
	SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
}

// SetDefault replaces the package-level logger used by Debugf/Infof/Warnf/Errorf.
func SetDefault(l *slog.Logger) {
	defaultLogger.Store(l)
}

// Default returns the current package-level logger.
func Default() *slog.Logger {
	return defaultLogger.Load()
}

// Debugf logs a debug-level message, mirroring the teacher's logDebug call
// sites but through structured levels instead of a permanent stdout print.
func Debugf(format string, args ...interface{}) {
	Default().Debug(sprintf(format, args...))
}

// Infof logs an info-level message.
func Infof(format string, args ...interface{}) {
	Default().Info(sprintf(format, args...))
}

// Warnf logs a warn-level message.
func Warnf(format string, args ...interface{}) {
	Default().Warn(sprintf(format, args...))
}

// Errorf logs an error-level message.
func Errorf(format string, args ...interface{}) {
	Default().Error(sprintf(format, args...))
}

// With returns a logger annotated with the given key/value pairs — used to
// attach correlation fields (fingerprint, cdc, attempt) to a submission's
// log lines.
func With(args ...interface{}) *slog.Logger {
	return Default().With(args...)
}

// ctxKey is the context key WithContext stores a logger under, so downstream
// calls can retrieve it with FromContext without threading a logger
// parameter through every call.
type ctxKey struct{}

// WithContext returns a copy of ctx carrying l as its logger.
func WithContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger attached to ctx, or the package default.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return Default()
}

func sprintf(format string, args ...interface{}) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
