package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesToTerminalAndFile(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	logger, closeLog, err := New(Options{LogDir: dir, Writer: &buf})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("attempt created", "attempt_id", "A1")
	if err := closeLog(); err != nil {
		t.Fatalf("close logger: %v", err)
	}

	if !strings.Contains(buf.String(), "attempt created") {
		t.Fatalf("expected terminal output, got %q", buf.String())
	}
	b, err := os.ReadFile(filepath.Join(dir, "forge.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(b), `"attempt_id":"A1"`) {
		t.Fatalf("expected JSON record in log file, got %q", string(b))
	}
}
