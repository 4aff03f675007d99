// Package debug configures process logging and provides category-gated
// debug output.
//
// Categories select which subsystems emit debug records
// (OPENRESEARCH_DEBUG=engine,providers or "all"). The level selects how much
// detail is kept (OPENRESEARCH_LOG_LEVEL=TRACE|DEBUG|INFO|WARN|ERROR). Full
// prompts and model responses are only written at TRACE.
//
//	debug.Log("search", "query", "provider", "searxng", "q", q)
//	debug.Exchange("engine", taskID, "plan", prompt, response)
//
// Categories: engine, providers, search, archive, mcp, auth, transport, config, all.
package debug

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// LevelTrace sits below slog.LevelDebug.
const LevelTrace = slog.LevelDebug - 4

// categories is replaced wholesale by Init, never mutated.
var categories atomic.Pointer[map[string]bool]

func init() {
	setCategories(os.Getenv("OPENRESEARCH_DEBUG"))
}

// Init installs the default slog logger. Environment values take precedence
// over the configured ones. format is "text" (default) or "json".
func Init(configCategories, configLevel, format string) {
	InitWriter(os.Stderr, configCategories, configLevel, format)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, configCategories, configLevel, format string) {
	cats := os.Getenv("OPENRESEARCH_DEBUG")
	if cats == "" {
		cats = configCategories
	}
	setCategories(cats)

	level := os.Getenv("OPENRESEARCH_LOG_LEVEL")
	if level == "" {
		level = configLevel
	}

	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}

	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
}

// Enabled reports whether the category is switched on.
func Enabled(category string) bool {
	m := *categories.Load()
	return m["all"] || m[category]
}

// Log emits a DEBUG record tagged with the category.
func Log(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a TRACE record tagged with the category.
func Trace(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Log(context.Background(), LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// TraceIsEnabled reports whether TRACE records for the category are kept.
func TraceIsEnabled(category string) bool {
	return Enabled(category) && slog.Default().Enabled(context.Background(), LevelTrace)
}

// Exchange records a prompt sent to a model and the text it answered with.
// At DEBUG only the sizes are logged; at TRACE both texts are logged in full.
func Exchange(category, taskID, stage, prompt, response string) {
	if !Enabled(category) {
		return
	}
	if TraceIsEnabled(category) {
		Trace(category, "model exchange",
			"task_id", taskID, "stage", stage,
			"prompt", prompt, "response", response)
		return
	}
	Log(category, "model exchange",
		"task_id", taskID, "stage", stage,
		"prompt_len", len(prompt), "response_len", len(response),
		"response_head", Truncate(response, 120))
}

// ParseLevel converts a level name to a slog.Level. Unknown names map to INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Categories lists the enabled categories.
func Categories() []string {
	m := *categories.Load()
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// Truncate shortens s to maxLen bytes, appending "..." when cut.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func setCategories(s string) {
	m := parseCategories(s)
	categories.Store(&m)
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	for _, cat := range strings.Split(s, ",") {
		cat = strings.TrimSpace(strings.ToLower(cat))
		if cat != "" {
			m[cat] = true
		}
	}
	return m
}
