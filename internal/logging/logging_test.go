package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_WritesToFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	log, err := New(dir, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("report written")
	_ = log.Sync()

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"report written"`) {
		t.Errorf("log file = %s", data)
	}
}

func TestNew_NoDir(t *testing.T) {
	log, err := New("", true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if log == nil {
		t.Fatal("logger is nil")
	}
}
