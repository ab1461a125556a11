// Package logging provides the kernel's structured logger. Terminal output
// goes to stderr as text so command results on stdout stay scriptable; an
// optional JSON file handler captures the same records for later inspection.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

var level = new(slog.LevelVar)

func SetLevel(l slog.Level) {
	level.Set(l)
}

type Options struct {
	// LogDir, when set, adds a JSON file handler writing forge.log under it.
	LogDir string
	// Writer overrides the terminal destination. Defaults to stderr.
	Writer io.Writer
}

// New builds the logger and returns it together with a close func for the
// file handler, if any.
func New(opts Options) (*slog.Logger, func() error, error) {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}
	handlers := []slog.Handler{
		slog.NewTextHandler(writer, &slog.HandlerOptions{Level: level}),
	}
	closeFunc := func() error { return nil }

	if dir := strings.TrimSpace(opts.LogDir); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir %s: %w", dir, err)
		}
		path := filepath.Join(dir, "forge.log")
		file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %s: %w", path, err)
		}
		handlers = append(handlers, slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level}))
		closeFunc = file.Close
	}

	return slog.New(slogmulti.Fanout(handlers...)), closeFunc, nil
}

// Default returns a stderr-only logger for callers that do not configure one.
func Default() *slog.Logger {
	logger, _, _ := New(Options{})
	return logger
}
