package prims

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for prims and its sub-packages.
// By default prims produces no log output.
//
// SetLogger is safe for concurrent use. Pass nil to restore the silent
// default.
//
// Log levels used by prims:
//   - [slog.LevelDebug]: programs built, buffers uploaded, draws issued
//   - [slog.LevelInfo]: context acquired, adapter selected
//   - [slog.LevelWarn]: line width or point size clamped by the rasterizer
//   - [slog.LevelError]: the single failure report of a scene run
//
// Example:
//
//	prims.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger used by prims.
// Sub-packages (scene, cmd/primdemo) call this to share the same
// configuration.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
