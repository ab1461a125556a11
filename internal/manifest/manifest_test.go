package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir string, filename string, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, filename), []byte(content), 0o644); err != nil {
		t.Fatalf("write manifest %s: %v", filename, err)
	}
}

func TestLoadAndResolve(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "core.repair.yaml", `
name: core.repair
action: repair
allowed_args:
  - strategy
requires_elevated: true
`)
	writeManifest(t, dir, "core.test.yaml", `
name: core.test
action: validate
allowed_args: []
`)

	store, err := Load(dir)
	if err != nil {
		t.Fatalf("load manifests: %v", err)
	}
	entry, err := store.Resolve("core.repair")
	if err != nil {
		t.Fatalf("resolve core.repair: %v", err)
	}
	if entry.Action != "repair" {
		t.Fatalf("expected action repair, got %q", entry.Action)
	}
	if !entry.RequiresElevated {
		t.Fatalf("expected core.repair to require elevation")
	}
	names := store.Names()
	if len(names) != 2 || names[0] != "core.repair" || names[1] != "core.test" {
		t.Fatalf("expected sorted names, got %v", names)
	}
}

func TestLoadRejectsDuplicateNames(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "a.yaml", "name: core.test\naction: validate\n")
	writeManifest(t, dir, "b.yaml", "name: core.test\naction: validate\n")

	_, err := Load(dir)
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError for duplicate names, got %v", err)
	}
}

func TestLoadRejectsUnknownAction(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "bad.yaml", "name: bad\naction: teleport\n")

	_, err := Load(dir)
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError for unknown action, got %v", err)
	}
}

func TestLoadRejectsNonStringArgs(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "bad.yaml", "name: bad\naction: validate\nallowed_args:\n  - 42\n")

	_, err := Load(dir)
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError for non-string allowed_args, got %v", err)
	}
}

func TestResolveUnknownCommand(t *testing.T) {
	store, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load empty dir: %v", err)
	}
	_, err = store.Resolve("nope")
	var unknownErr *UnknownCommandError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("expected UnknownCommandError, got %v", err)
	}
}
