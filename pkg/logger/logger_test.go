package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitLogger_BootLogTruncated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "boot.log")

	if err := os.WriteFile(path, []byte("stale content from last boot\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	InitLogger("info", path)
	Log.Info("controller starting")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "stale content") {
		t.Error("boot log should be truncated on init")
	}
	if !strings.Contains(string(data), "controller starting") {
		t.Error("boot log should contain new entries")
	}
}

func TestInitLogger_LevelFiltering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "boot.log")

	InitLogger("warn", path)
	Log.Info("should be filtered")
	Log.Warn("should appear")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "should be filtered") {
		t.Error("info entry should be filtered at warn level")
	}
	if !strings.Contains(string(data), "should appear") {
		t.Error("warn entry should be written")
	}
}
