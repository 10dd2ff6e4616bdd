package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRotatingWriterKeepsOneBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	w, err := OpenRotating(path, 16)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer w.Close()

	if _, err := w.Write([]byte("0123456789abcdefXYZ\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := w.Write([]byte("after\n")); err != nil {
		t.Fatalf("write after rotate: %v", err)
	}

	backup, err := os.ReadFile(path + ".1")
	if err != nil {
		t.Fatalf("expected backup file: %v", err)
	}
	if !strings.HasPrefix(string(backup), "0123456789") {
		t.Fatalf("unexpected backup contents %q", backup)
	}

	current, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read current: %v", err)
	}
	if string(current) != "after\n" {
		t.Fatalf("expected fresh file after rotation, got %q", current)
	}
}

func TestSetupWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "svc.log")

	logger, rw, err := Setup(path, "debug")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	logger.Infow("sync complete", "created", 2)
	logger.Sync()
	rw.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"created":2`) {
		t.Fatalf("structured field missing from log: %s", data)
	}
}
