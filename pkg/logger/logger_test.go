package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewSetsLevelAndFormat(t *testing.T) {
	cfg := Config{Level: "debug", Format: "json", Output: "stdout"}
	log := New(cfg)
	if log.GetLevel().String() != "debug" {
		t.Fatalf("expected level debug, got %s", log.GetLevel())
	}
}

func TestNewFallsBackToInfoOnBadLevel(t *testing.T) {
	log := New(Config{Level: "not-a-level", Format: "text", Output: "stdout"})
	if log.GetLevel().String() != "info" {
		t.Fatalf("expected fallback level info, got %s", log.GetLevel())
	}
}

func TestNewCreatesLogFile(t *testing.T) {
	originalWD, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(originalWD) })

	temp := t.TempDir()
	if err := os.Chdir(temp); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	log := New(Config{Level: "info", Format: "text", Output: "file", FilePrefix: "test"})
	log.Info("hello")

	path := filepath.Join("logs", "test.log")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected log file to contain data")
	}
}

func TestNewDefaultUsesInfoLevel(t *testing.T) {
	log := NewDefault("test-component")
	if log.GetLevel().String() != "info" {
		t.Fatalf("expected level info, got %s", log.GetLevel())
	}
}

func TestNewDefaultTagsEntriesWithComponent(t *testing.T) {
	var buf bytes.Buffer
	log := NewDefault("round-scheduler")
	log.SetOutput(&buf)

	log.Info("game started")
	if !strings.Contains(buf.String(), "component=round-scheduler") {
		t.Fatalf("expected component field in output, got %q", buf.String())
	}
}

func TestWithComponentSharesUnderlyingLoggerButTagsSeparately(t *testing.T) {
	var buf bytes.Buffer
	root := New(Config{Level: "info", Format: "text", Output: "stdout"})
	root.SetOutput(&buf)

	sched := root.WithComponent("round-scheduler")
	api := root.WithComponent("httpapi")

	sched.Info("game started")
	api.Info("httpapi listening")

	out := buf.String()
	if !strings.Contains(out, "component=round-scheduler") {
		t.Fatalf("expected scheduler component field, got %q", out)
	}
	if !strings.Contains(out, "component=httpapi") {
		t.Fatalf("expected httpapi component field, got %q", out)
	}
}
