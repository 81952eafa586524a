// Package logging adapts log/slog to the types.Logger interface used by the
// notifier's components.
package logging

import (
	"io"
	"log/slog"
	"os"

	"ordernotify/internal/types"
)

// SlogAdapter wraps *slog.Logger to implement types.Logger.
// slog.Logger satisfies Info, Error and Warn directly but its With returns
// *slog.Logger, so the adapter re-wraps on With.
type SlogAdapter struct {
	logger *slog.Logger
}

// Compile-time assertion that SlogAdapter implements types.Logger.
var _ types.Logger = (*SlogAdapter)(nil)

// NewSlogAdapter wraps an existing slog logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

func (a *SlogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *SlogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *SlogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *SlogAdapter) With(args ...any) types.Logger {
	return &SlogAdapter{logger: a.logger.With(args...)}
}

// Slog returns the underlying slog logger for libraries that want one.
func (a *SlogAdapter) Slog() *slog.Logger {
	return a.logger
}

// ParseLevel maps a LOG_LEVEL value to a slog level. Unknown values map to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a JSON slog logger writing to stdout at the given level.
func New(level string) *SlogAdapter {
	return NewWithWriter(os.Stdout, level)
}

// NewWithWriter builds a JSON slog logger writing to w.
func NewWithWriter(w io.Writer, level string) *SlogAdapter {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	return &SlogAdapter{logger: slog.New(handler)}
}

// Nop returns a logger that discards everything.
func Nop() *SlogAdapter {
	return &SlogAdapter{logger: slog.New(slog.NewJSONHandler(io.Discard, nil))}
}
