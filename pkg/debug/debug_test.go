package debug

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func withCategories(t *testing.T, s string) {
	t.Helper()
	orig := categories.Load()
	t.Cleanup(func() { categories.Store(orig) })
	setCategories(s)
}

func TestParseCategories(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]bool
	}{
		{"empty", "", map[string]bool{}},
		{"single", "providers", map[string]bool{"providers": true}},
		{"multiple", "providers,engine", map[string]bool{"providers": true, "engine": true}},
		{"all", "all", map[string]bool{"all": true}},
		{"with spaces", " search , engine ", map[string]bool{"search": true, "engine": true}},
		{"uppercase normalized", "PROVIDERS,Engine", map[string]bool{"providers": true, "engine": true}},
		{"empty segments", "providers,,engine", map[string]bool{"providers": true, "engine": true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseCategories(tt.input)
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("got[%q] = %v, want %v", k, got[k], v)
				}
			}
			if len(got) != len(tt.want) {
				t.Errorf("len(got) = %d, want %d", len(got), len(tt.want))
			}
		})
	}
}

func TestEnabled(t *testing.T) {
	withCategories(t, "providers,engine")

	if !Enabled("providers") {
		t.Error("providers should be enabled")
	}
	if !Enabled("engine") {
		t.Error("engine should be enabled")
	}
	if Enabled("search") {
		t.Error("search should not be enabled")
	}
}

func TestEnabled_All(t *testing.T) {
	withCategories(t, "all")

	for _, c := range []string{"providers", "engine", "anything"} {
		if !Enabled(c) {
			t.Errorf("%s should be enabled via 'all'", c)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"TRACE", LevelTrace},
		{"trace", LevelTrace},
		{"DEBUG", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"WARNING", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate short = %q, want %q", got, "short")
	}
	if got := Truncate("this is a long string", 10); got != "this is a ..." {
		t.Errorf("Truncate long = %q, want %q", got, "this is a ...")
	}
}

func TestExchange(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	withCategories(t, "")
	t.Setenv("OPENRESEARCH_DEBUG", "")
	t.Setenv("OPENRESEARCH_LOG_LEVEL", "")

	t.Run("debug level logs sizes only", func(t *testing.T) {
		var buf bytes.Buffer
		InitWriter(&buf, "engine", "DEBUG", "text")
		withCategories(t, "engine")

		Exchange("engine", "task-1", "plan", "the full prompt", "the response")
		out := buf.String()
		if !strings.Contains(out, "prompt_len=15") {
			t.Errorf("expected prompt length in output, got %q", out)
		}
		if strings.Contains(out, "the full prompt") {
			t.Errorf("prompt text should not be logged at DEBUG, got %q", out)
		}
	})

	t.Run("trace level logs full text", func(t *testing.T) {
		var buf bytes.Buffer
		InitWriter(&buf, "engine", "TRACE", "json")
		withCategories(t, "engine")

		Exchange("engine", "task-1", "plan", "the full prompt", "the response")
		out := buf.String()
		if !strings.Contains(out, `"prompt":"the full prompt"`) {
			t.Errorf("expected prompt in output, got %q", out)
		}
		if !strings.Contains(out, `"level":"TRACE"`) {
			t.Errorf("expected TRACE level name, got %q", out)
		}
	})

	t.Run("disabled category is silent", func(t *testing.T) {
		var buf bytes.Buffer
		InitWriter(&buf, "", "TRACE", "text")
		withCategories(t, "")

		Exchange("engine", "task-1", "plan", "p", "r")
		Log("engine", "test message", "key", "value")
		if buf.Len() != 0 {
			t.Errorf("expected no output, got %q", buf.String())
		}
	})
}
