package app

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestTreeHandler_Handle(t *testing.T) {
	ts := time.Date(2025, 2, 10, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		runID   string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			runID:   "20250210T143045Z",
			level:   slog.LevelInfo,
			message: "shadow backup created",
			want:    "2025-02-10T14:30:45Z\tINFO\t20250210T143045Z\tshadow backup created\n",
		},
		{
			name:    "debug level",
			runID:   "run-2",
			level:   slog.LevelDebug,
			message: "checking schema",
			want:    "2025-02-10T14:30:45Z\tDEBUG\trun-2\tchecking schema\n",
		},
		{
			name:    "with record attrs",
			runID:   "run-3",
			level:   slog.LevelInfo,
			message: "node moved",
			attrs:   []slog.Attr{slog.String("path", "a/note1.md"), slog.Int("count", 4)},
			want:    "2025-02-10T14:30:45Z\tINFO\trun-3\tnode moved\tpath=a/note1.md\tcount=4\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &treeHandler{w: &buf, runID: tt.runID}

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			for _, a := range tt.attrs {
				r.AddAttrs(a)
			}

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestTreeHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := &treeHandler{w: &buf, runID: "run-1"}

	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "backup")}).(*treeHandler)

	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "restore", 0)
	r.AddAttrs(slog.String("source", "daily"))

	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "component=backup") {
		t.Errorf("expected pre-set attr component=backup, got: %q", got)
	}
	if !strings.Contains(got, "source=daily") {
		t.Errorf("expected record attr source=daily, got: %q", got)
	}
}

func TestTreeHandler_WithAttrs_doesNotMutateOriginal(t *testing.T) {
	var buf bytes.Buffer
	h := &treeHandler{w: &buf, runID: "run-1", attrs: []slog.Attr{slog.String("a", "1")}}

	h2 := h.WithAttrs([]slog.Attr{slog.String("b", "2")}).(*treeHandler)

	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}
	if len(h2.attrs) != 2 {
		t.Errorf("new handler attrs: got %d, want 2", len(h2.attrs))
	}
}

func TestTreeHandler_Enabled(t *testing.T) {
	h := &treeHandler{}
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if !h.Enabled(context.Background(), level) {
			t.Errorf("Enabled(%v) = false, want true", level)
		}
	}
}

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()

	logger, f, err := newLogger(dir, "test-run")
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer f.Close()

	if logger == nil {
		t.Fatal("newLogger() returned nil logger")
	}
	if f == nil {
		t.Fatal("newLogger() returned nil file")
	}
}
