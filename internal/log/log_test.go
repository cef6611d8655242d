package log

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":      zapcore.WarnLevel,
		"DEBUG": zapcore.DebugLevel,
		"info":  zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestContextFieldsAreAttached(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ReplaceLogger(zap.New(core))
	t.Cleanup(func() { ReplaceLogger(zap.NewNop()) })

	ctx := With(context.Background(), "recipe", "stout")
	Warnf(ctx, "no mash water in %s", "stout")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Message != "no mash water in stout" {
		t.Fatalf("unexpected message: %q", entries[0].Message)
	}
	if got := entries[0].ContextMap()["recipe"]; got != "stout" {
		t.Fatalf("expected recipe field, got %v", got)
	}
}

func TestInitWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mashph.log")
	if err := Init(&LogConfig{Path: path, Level: "debug"}); err != nil {
		t.Fatalf("init: %v", err)
	}
	Infof(context.Background(), "hello")
	Close()
	Infof(context.Background(), "after close")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Fatalf("expected entry in log file, got %q", data)
	}
	if strings.Contains(string(data), "after close") {
		t.Fatalf("expected writes after Close to be dropped, got %q", data)
	}

	if err := Init(&LogConfig{Level: "nope"}); err == nil {
		t.Fatalf("expected invalid level error")
	}
}
