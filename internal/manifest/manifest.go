package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"ghostforge/internal/model"
)

const DefaultManifestDir = "commands"

// knownActions is the fixed set of runnable primitives a manifest entry may
// bind to. Entries referencing anything else fail load validation.
var knownActions = map[string]bool{
	"validate": true,
	"repair":   true,
	"snapshot": true,
	"scan":     true,
}

type ValidationError struct {
	Source string
	Detail string
}

func (e *ValidationError) Error() string {
	if strings.TrimSpace(e.Source) == "" {
		return fmt.Sprintf("manifest validation failed: %s", e.Detail)
	}
	return fmt.Sprintf("manifest validation failed for %s: %s", e.Source, e.Detail)
}

type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %q", e.Name)
}

// Store holds loaded manifest entries. Immutable after Load; lookups are
// pure reads.
type Store struct {
	entries map[string]model.ManifestEntry
	names   []string
}

type rawEntry struct {
	Name             string `yaml:"name"`
	Action           string `yaml:"action"`
	AllowedArgs      []any  `yaml:"allowed_args"`
	RequiresElevated bool   `yaml:"requires_elevated"`
}

func Load(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		dir = DefaultManifestDir
	}
	store := &Store{entries: map[string]model.ManifestEntry{}}

	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("glob manifests in %s: %w", dir, err)
	}
	sort.Strings(paths)

	for _, path := range paths {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read manifest %s: %w", path, err)
		}
		var raw rawEntry
		if err := yaml.Unmarshal(b, &raw); err != nil {
			return nil, &ValidationError{Source: path, Detail: fmt.Sprintf("parse: %v", err)}
		}
		entry, err := validateEntry(path, raw)
		if err != nil {
			return nil, err
		}
		if _, exists := store.entries[entry.Name]; exists {
			return nil, &ValidationError{Source: path, Detail: fmt.Sprintf("duplicate entry name %q", entry.Name)}
		}
		store.entries[entry.Name] = entry
		store.names = append(store.names, entry.Name)
	}
	sort.Strings(store.names)
	return store, nil
}

func validateEntry(path string, raw rawEntry) (model.ManifestEntry, error) {
	name := strings.TrimSpace(raw.Name)
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	action := strings.TrimSpace(raw.Action)
	if action == "" {
		return model.ManifestEntry{}, &ValidationError{Source: path, Detail: "action is required"}
	}
	if !knownActions[action] {
		return model.ManifestEntry{}, &ValidationError{Source: path, Detail: fmt.Sprintf("unknown action %q", action)}
	}
	args := make([]string, 0, len(raw.AllowedArgs))
	for _, item := range raw.AllowedArgs {
		s, ok := item.(string)
		if !ok {
			return model.ManifestEntry{}, &ValidationError{Source: path, Detail: fmt.Sprintf("allowed_args must be strings, got %T", item)}
		}
		args = append(args, s)
	}
	return model.ManifestEntry{
		Name:             name,
		Action:           action,
		AllowedArgs:      args,
		RequiresElevated: raw.RequiresElevated,
	}, nil
}

func (s *Store) Resolve(name string) (model.ManifestEntry, error) {
	entry, ok := s.entries[strings.TrimSpace(name)]
	if !ok {
		return model.ManifestEntry{}, &UnknownCommandError{Name: name}
	}
	return entry, nil
}

func (s *Store) Names() []string {
	return append([]string(nil), s.names...)
}

func (s *Store) Entries() []model.ManifestEntry {
	out := make([]model.ManifestEntry, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, s.entries[name])
	}
	return out
}
