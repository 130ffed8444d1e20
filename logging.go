package lmstudio

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/nugget/lmstudio-go/internal/wire"
)

// LevelTrace is a custom log level below Debug, used to log every
// frame sent and received without flooding Debug output — the same
// role a trace level plays in the teacher's logging setup, applied
// here to wire envelopes instead of LLM request/response bodies.
// internal/pump logs at this level directly (it can't import this
// package), so the value lives in internal/wire and is re-exported
// here for callers configuring their own *slog.Logger.
const LevelTrace = wire.LevelTrace

// ParseLogLevel converts a string to a slog.Level. Supported values:
// trace, debug, info, warn, error (case-insensitive); empty means info.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (valid: trace, debug, info, warn, error)", s)
	}
}

// ReplaceLogLevelNames customizes the level name for Trace in
// handler output; pass as a ReplaceAttr function to slog.HandlerOptions.
func ReplaceLogLevelNames(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if level, ok := a.Value.Any().(slog.Level); ok && level == LevelTrace {
			a.Value = slog.StringValue("TRACE")
		}
	}
	return a
}
