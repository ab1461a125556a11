package snapshot

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"ghostforge/internal/model"
	"ghostforge/internal/store"
)

const DefaultSnapshotDir = "runs/snapshots"

type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("snapshot %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Label string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("snapshot %q not found", e.Label)
}

// Store captures and restores zip archives of the project root. Archives are
// written to a temp file and renamed into place so a failed capture never
// leaves a partial snapshot visible, and existing snapshots are never touched.
type Store struct {
	Root  string
	Dir   string
	Index *store.SQLiteStore
}

func NewStore(root string, dir string, index *store.SQLiteStore) *Store {
	if strings.TrimSpace(dir) == "" {
		dir = filepath.Join(root, DefaultSnapshotDir)
	}
	return &Store{Root: root, Dir: dir, Index: index}
}

func (s *Store) Create(label string) (model.Snapshot, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		label = "manual"
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return model.Snapshot{}, &IOError{Op: "create dir", Path: s.Dir, Err: err}
	}

	now := time.Now().UTC()
	finalPath := filepath.Join(s.Dir, fmt.Sprintf("%s_%s.zip", now.Format("20060102T150405Z"), sanitizeLabel(label)))
	tmpFile, err := os.CreateTemp(s.Dir, ".capture-*.zip")
	if err != nil {
		return model.Snapshot{}, &IOError{Op: "create temp", Path: s.Dir, Err: err}
	}
	tmpPath := tmpFile.Name()

	included, err := s.writeArchive(tmpFile)
	if closeErr := tmpFile.Close(); err == nil && closeErr != nil {
		err = &IOError{Op: "close", Path: tmpPath, Err: closeErr}
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return model.Snapshot{}, err
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return model.Snapshot{}, &IOError{Op: "rename", Path: finalPath, Err: err}
	}

	snapshot := model.Snapshot{
		Label:      label,
		CreatedAt:  now,
		ContentRef: finalPath,
		Included:   included,
	}
	if s.Index != nil {
		if err := s.Index.InsertSnapshot(snapshot); err != nil {
			return model.Snapshot{}, &IOError{Op: "index", Path: s.Index.DBPath, Err: err}
		}
	}
	return snapshot, nil
}

func (s *Store) writeArchive(w io.Writer) ([]string, error) {
	archive := zip.NewWriter(w)
	var included []string

	walkErr := filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return &IOError{Op: "walk", Path: path, Err: err}
		}
		if d.IsDir() {
			if s.excluded(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(s.Root, path)
		if err != nil {
			return &IOError{Op: "rel", Path: path, Err: err}
		}
		rel = filepath.ToSlash(rel)

		entry, err := archive.Create(rel)
		if err != nil {
			return &IOError{Op: "entry", Path: rel, Err: err}
		}
		file, err := os.Open(path)
		if err != nil {
			return &IOError{Op: "open", Path: path, Err: err}
		}
		_, err = io.Copy(entry, file)
		if closeErr := file.Close(); err == nil && closeErr != nil {
			err = closeErr
		}
		if err != nil {
			return &IOError{Op: "copy", Path: path, Err: err}
		}
		included = append(included, rel)
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	if err := archive.Close(); err != nil {
		return nil, &IOError{Op: "finalize", Path: s.Root, Err: err}
	}
	sort.Strings(included)
	return included, nil
}

type RestoreOptions struct {
	// SkipSafetySnapshot opts out of the implicit pre-restore capture.
	SkipSafetySnapshot bool
}

// Restore replaces the project tree with the labeled snapshot's content.
// Files created after the capture (within the captured scope) are removed so
// the result matches the capture exactly.
func (s *Store) Restore(label string, opts RestoreOptions) (model.Snapshot, error) {
	label = strings.TrimSpace(label)
	if s.Index == nil {
		return model.Snapshot{}, fmt.Errorf("snapshot index is required for restore")
	}
	snapshot, found, err := s.Index.GetSnapshot(label)
	if err != nil {
		return model.Snapshot{}, &IOError{Op: "index lookup", Path: s.Index.DBPath, Err: err}
	}
	if !found {
		return model.Snapshot{}, &NotFoundError{Label: label}
	}

	reader, err := zip.OpenReader(snapshot.ContentRef)
	if err != nil {
		return model.Snapshot{}, &IOError{Op: "open archive", Path: snapshot.ContentRef, Err: err}
	}
	defer reader.Close()

	if !opts.SkipSafetySnapshot {
		if _, err := s.Create("pre-restore-" + label); err != nil {
			return model.Snapshot{}, err
		}
	}

	archived := map[string]bool{}
	for _, file := range reader.File {
		archived[file.Name] = true
	}
	if err := s.pruneExtraFiles(archived); err != nil {
		return model.Snapshot{}, err
	}

	for _, file := range reader.File {
		if err := s.extractFile(file); err != nil {
			return model.Snapshot{}, err
		}
	}
	return snapshot, nil
}

func (s *Store) pruneExtraFiles(archived map[string]bool) error {
	return filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return &IOError{Op: "walk", Path: path, Err: err}
		}
		if d.IsDir() {
			if s.excluded(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(s.Root, path)
		if err != nil {
			return &IOError{Op: "rel", Path: path, Err: err}
		}
		if archived[filepath.ToSlash(rel)] {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return &IOError{Op: "prune", Path: path, Err: err}
		}
		return nil
	})
}

func (s *Store) extractFile(file *zip.File) error {
	// The containment check needs an absolute root: a relative root like "."
	// joins to paths that carry no prefix to compare against.
	rootAbs, err := filepath.Abs(s.Root)
	if err != nil {
		return &IOError{Op: "extract", Path: s.Root, Err: err}
	}
	rel := filepath.FromSlash(file.Name)
	target := filepath.Join(rootAbs, rel)
	if !strings.HasPrefix(target, rootAbs+string(os.PathSeparator)) {
		return &IOError{Op: "extract", Path: file.Name, Err: fmt.Errorf("entry escapes project root")}
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return &IOError{Op: "extract dir", Path: target, Err: err}
	}
	src, err := file.Open()
	if err != nil {
		return &IOError{Op: "extract open", Path: file.Name, Err: err}
	}
	defer src.Close()
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return &IOError{Op: "extract write", Path: target, Err: err}
	}
	_, err = io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return &IOError{Op: "extract copy", Path: target, Err: err}
	}
	return nil
}

// excluded reports whether the directory sits outside the captured scope:
// the snapshot area itself, the kernel state dir, and VCS internals.
func (s *Store) excluded(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	snapAbs, err := filepath.Abs(s.Dir)
	if err == nil && abs == snapAbs {
		return true
	}
	base := filepath.Base(path)
	return base == ".forge" || base == ".git"
}

func sanitizeLabel(label string) string {
	var out strings.Builder
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			out.WriteRune(r)
		default:
			out.WriteRune('_')
		}
	}
	if out.Len() == 0 {
		return "snapshot"
	}
	return out.String()
}
