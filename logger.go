package depthmesh

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/depthmesh/internal/readback"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	l := newNopLogger()
	loggerPtr.Store(l)
}

// SetLogger configures the logger for depthmesh and its internal packages.
// By default, depthmesh produces no log output. Pass nil to restore the
// silent default.
//
// Log levels used by depthmesh:
//   - [slog.LevelDebug]: per-frame decisions (topology rebuilds, readback traffic)
//   - [slog.LevelInfo]: lifecycle events (mesher created, closed)
//   - [slog.LevelWarn]: skipped frames and resource release errors
//
// Example:
//
//	depthmesh.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	readback.SetLogger(l)
}

// Logger returns the current logger used by depthmesh.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
