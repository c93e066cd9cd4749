package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestRotatingWriter_RotatesPastMaxSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	w, err := OpenRotating(path, 10)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer w.Close()

	if _, err := w.Write([]byte("0123456789ab")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path + ".1"); err != nil {
		t.Fatalf("expected backup file after rotation: %v", err)
	}
	if _, err := w.Write([]byte("xy")); err != nil {
		t.Fatalf("write after rotate: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "xy" {
		t.Fatalf("expected fresh file to contain %q, got %q", "xy", data)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG") != slog.LevelDebug {
		t.Fatalf("expected debug level")
	}
	if ParseLevel("warning") != slog.LevelWarn {
		t.Fatalf("expected warn level")
	}
	if ParseLevel("bogus") != slog.LevelInfo {
		t.Fatalf("expected info as fallback")
	}
}
