package hook

import (
	"log/slog"
	"os"
)

// logger is the package-level sink for the debug trace the original C core
// gated behind its INLINE_HOOK_DEBUG macro. It defaults to a text handler on
// stderr at Warn level, so the Debug/Info trace stays silent and only
// warnings are printed unless a caller replaces it with SetLogger.
var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
	Level: slog.LevelWarn,
}))

// SetLogger replaces the package-level logger. Pass a logger configured
// with slog.LevelDebug to trace every allocate/relocate/patch/flush step,
// matching the granularity of the original inline_hook.c LOG() macro.
func SetLogger(l *slog.Logger) {
	if l == nil {
		return
	}
	logger = l
}
