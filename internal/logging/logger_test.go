package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"dvrmanager/internal/services"
)

func TestPrettyHandlerFormatsComponent(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelInfo)
	logger := slog.New(newPrettyHandler(&buf, lvl, false))

	logger.Info("move completed",
		String(FieldComponent, "mover"),
		String("dest", "/library/tv"),
	)

	out := buf.String()
	if !strings.Contains(out, "INFO mover: move completed") {
		t.Fatalf("unexpected output: %q", out)
	}
	if !strings.Contains(out, "dest=/library/tv") {
		t.Fatalf("expected dest attribute, got %q", out)
	}
}

func TestPrettyHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelInfo)
	logger := slog.New(newPrettyHandler(&buf, lvl, false))

	logger.Info("resolved", String("title", "Some Show"))

	if !strings.Contains(buf.String(), `title="Some Show"`) {
		t.Fatalf("expected quoted title, got %q", buf.String())
	}
}

func TestWithContextAddsRecordingFields(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelInfo)
	logger := slog.New(newPrettyHandler(&buf, lvl, false))

	ctx := services.WithRecordingID(context.Background(), 7)
	ctx = services.WithStage(ctx, "resolving")

	WithContext(ctx, logger).Info("stage started")

	out := buf.String()
	if !strings.Contains(out, "recording_id=7") {
		t.Fatalf("expected recording_id, got %q", out)
	}
	if !strings.Contains(out, "stage=resolving") {
		t.Fatalf("expected stage, got %q", out)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestParseLevelDefaults(t *testing.T) {
	if got := parseLevel("verbose"); got != slog.LevelInfo {
		t.Fatalf("parseLevel fallback = %v, want info", got)
	}
	if got := parseLevel("DEBUG"); got != slog.LevelDebug {
		t.Fatalf("parseLevel = %v, want debug", got)
	}
}
