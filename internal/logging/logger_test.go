package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewLogger_CreatesDirAndWrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	lg, err := NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	lg.Info("hello")
	_ = lg.Sync()

	if _, err := os.Stat(filepath.Join(dir, "pulsewatch.log")); err != nil {
		t.Fatalf("expected log file: %v", err)
	}
}
