package envfx

import (
	"log/slog"

	"github.com/gogpu/envfx/internal/applog"
)

// SetLogger configures the logger for envfx and all its sub-packages.
// By default, envfx produces no log output.
//
// SetLogger is safe for concurrent use. Pass nil to disable logging.
//
// Log levels used by envfx:
//   - [slog.LevelDebug]: scan statistics, steam bursts
//   - [slog.LevelInfo]: phase commits, pipeline ready, device selected
//   - [slog.LevelWarn]: dropped lights, decode fallbacks, context loss
//   - [slog.LevelError]: pipeline setup failures, abandoned pipelines
//
// Example:
//
//	envfx.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	applog.Set(l)
}

// Logger returns the current logger used by envfx.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return applog.Logger()
}
