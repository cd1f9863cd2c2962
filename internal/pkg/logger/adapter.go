package logger

import (
	"log/slog"

	"sift_client/internal/app/port"
)

// slogAdapter implements port.Logger on top of an *slog.Logger.
type slogAdapter struct {
	l *slog.Logger
}

// NewSlogAdapter wraps l as a port.Logger. A nil l discards all output.
func NewSlogAdapter(l *slog.Logger) port.Logger {
	if l == nil {
		l = NewNop()
	}
	return &slogAdapter{l: l}
}

// Named returns a port.Logger that tags every record with component.
func Named(l *slog.Logger, component string) port.Logger {
	if l == nil {
		l = NewNop()
	}
	return &slogAdapter{l: l.With("component", component)}
}

func (a *slogAdapter) Info(msg string, args ...any) {
	a.l.Info(msg, args...)
}

func (a *slogAdapter) Debug(msg string, args ...any) {
	a.l.Debug(msg, args...)
}

func (a *slogAdapter) Warn(msg string, args ...any) {
	a.l.Warn(msg, args...)
}

func (a *slogAdapter) Error(msg string, args ...any) {
	a.l.Error(msg, args...)
}
