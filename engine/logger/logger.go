// Package logger holds the process-wide structured logger shared by every engine package.
package logger

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// discard drops every record; Enabled reports false so callers skip formatting.
type discard struct{}

func (discard) Enabled(context.Context, slog.Level) bool  { return false }
func (discard) Handle(context.Context, slog.Record) error { return nil }
func (discard) WithAttrs([]slog.Attr) slog.Handler        { return discard{} }
func (discard) WithGroup(string) slog.Handler             { return discard{} }

var current atomic.Pointer[slog.Logger]

func init() {
	current.Store(slog.New(discard{}))
}

// SetLogger installs the logger used by all engine packages. Nil restores silent output.
//
// Levels used by the engine:
//   - Debug: per-frame diagnostics (draw counts, buffer sizes)
//   - Info: lifecycle (device created, kernels compiled, model uploaded)
//   - Warn: degradations (CPU skinning fallback, texture upload failure, kernel compiler log)
//   - Error: a frame that could not complete
//
// Parameters:
//   - l: the logger to install
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(discard{})
	}
	current.Store(l)
}

// Logger returns the active logger.
func Logger() *slog.Logger {
	return current.Load()
}

// For returns the active logger tagged with a component attribute.
//
// Parameters:
//   - component: the component name, e.g. "accelerator"
//
// Returns:
//   - *slog.Logger: the tagged logger
func For(component string) *slog.Logger {
	return current.Load().With("component", component)
}

// ParseLevel maps a config level name to a slog level. Unknown names map to Info.
func ParseLevel(name string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
