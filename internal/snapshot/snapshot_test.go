package snapshot

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"ghostforge/internal/store"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	if _, err := exec.LookPath("sqlite3"); err != nil {
		t.Skip("sqlite3 not available")
	}
	root := t.TempDir()
	index := store.NewSQLiteStore(filepath.Join(root, ".forge", "index.sqlite"))
	if err := index.Init(); err != nil {
		t.Fatalf("init index: %v", err)
	}
	return NewStore(root, "", index), root
}

func writeFile(t *testing.T, root string, rel string, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func readFile(t *testing.T, root string, rel string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(root, rel))
	if err != nil {
		t.Fatalf("read %s: %v", rel, err)
	}
	return string(b)
}

func TestCreateAndRestoreRoundTrip(t *testing.T) {
	snapshots, root := newTestStore(t)
	writeFile(t, root, "core/registry.go", "package core\n")
	writeFile(t, root, "commands/core.repair.yaml", "name: core.repair\naction: repair\n")

	created, err := snapshots.Create("boot")
	if err != nil {
		t.Fatalf("create snapshot: %v", err)
	}
	if len(created.Included) != 2 {
		t.Fatalf("expected 2 files captured, got %v", created.Included)
	}

	// Mutate: change one file, add another.
	writeFile(t, root, "core/registry.go", "package core // mutated\n")
	writeFile(t, root, "core/extra.go", "package core\n")

	if _, err := snapshots.Restore("boot", RestoreOptions{SkipSafetySnapshot: true}); err != nil {
		t.Fatalf("restore snapshot: %v", err)
	}

	if got := readFile(t, root, "core/registry.go"); got != "package core\n" {
		t.Fatalf("expected pre-mutation content, got %q", got)
	}
	if _, err := os.Stat(filepath.Join(root, "core/extra.go")); !os.IsNotExist(err) {
		t.Fatalf("expected file added after capture to be pruned")
	}
}

func TestRestoreTakesSafetySnapshot(t *testing.T) {
	snapshots, root := newTestStore(t)
	writeFile(t, root, "core/registry.go", "package core\n")

	if _, err := snapshots.Create("boot"); err != nil {
		t.Fatalf("create snapshot: %v", err)
	}
	writeFile(t, root, "core/registry.go", "package core // dirty\n")
	if _, err := snapshots.Restore("boot", RestoreOptions{}); err != nil {
		t.Fatalf("restore snapshot: %v", err)
	}

	safety, found, err := snapshots.Index.GetSnapshot("pre-restore-boot")
	if err != nil {
		t.Fatalf("lookup safety snapshot: %v", err)
	}
	if !found {
		t.Fatalf("expected implicit pre-restore snapshot")
	}
	if safety.ContentRef == "" {
		t.Fatalf("expected safety snapshot content ref")
	}
}

func TestRestoreWithRelativeRoot(t *testing.T) {
	if _, err := exec.LookPath("sqlite3"); err != nil {
		t.Skip("sqlite3 not available")
	}
	t.Chdir(t.TempDir())

	index := store.NewSQLiteStore(filepath.Join(".forge", "index.sqlite"))
	if err := index.Init(); err != nil {
		t.Fatalf("init index: %v", err)
	}
	snapshots := NewStore(".", "", index)

	writeFile(t, ".", "core/registry.go", "package core\n")
	if _, err := snapshots.Create("boot"); err != nil {
		t.Fatalf("create snapshot: %v", err)
	}
	writeFile(t, ".", "core/registry.go", "package core // mutated\n")

	if _, err := snapshots.Restore("boot", RestoreOptions{SkipSafetySnapshot: true}); err != nil {
		t.Fatalf("restore with relative root: %v", err)
	}
	if got := readFile(t, ".", "core/registry.go"); got != "package core\n" {
		t.Fatalf("expected pre-mutation content, got %q", got)
	}
}

func TestRestoreUnknownLabel(t *testing.T) {
	snapshots, _ := newTestStore(t)
	_, err := snapshots.Restore("nope", RestoreOptions{})
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestCreateExcludesStateAndSnapshotDirs(t *testing.T) {
	snapshots, root := newTestStore(t)
	writeFile(t, root, "core/registry.go", "package core\n")
	writeFile(t, root, ".forge/scratch.txt", "tmp")

	created, err := snapshots.Create("scoped")
	if err != nil {
		t.Fatalf("create snapshot: %v", err)
	}
	for _, rel := range created.Included {
		if rel == ".forge/scratch.txt" {
			t.Fatalf("expected state dir to be excluded, got %v", created.Included)
		}
	}
}
