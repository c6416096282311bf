package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"none":    LevelNone,
		"off":     LevelNone,
		"":        LevelInfo,
		"bogus":   LevelInfo,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestNewWritesLeveledLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "test.log")
	l, err := New(path, LevelInfo)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer l.Close()

	l.Debug("hidden %d", 1)
	l.Info("visible %d", 2)
	l.WithPrefix("sub").Warn("prefixed")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	text := string(data)
	if strings.Contains(text, "hidden") {
		t.Error("debug line should be filtered at info level")
	}
	if !strings.Contains(text, "[INFO] visible 2") {
		t.Errorf("info line missing:\n%s", text)
	}
	if !strings.Contains(text, "[WARN] [sub] prefixed") {
		t.Errorf("prefixed line missing:\n%s", text)
	}
}

func TestDisabledLogger(t *testing.T) {
	l, err := New("", LevelDebug)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	// Must not panic or write anywhere.
	l.Error("nothing happens")
	if err := l.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestWithPrefixChains(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l, err := New(path, LevelDebug)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer l.Close()

	l.WithPrefix("a").WithPrefix("b").Info("chained")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "[a:b] chained") {
		t.Errorf("chained prefix missing:\n%s", data)
	}
}
