package registry

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"ghostforge/internal/model"
)

const DefaultAgentDir = "agents"

// Registry discovers agents under a directory at startup. Each candidate is
// a folder with a manifest naming the agent and a runnable entry file.
// Candidates failing the contract are logged and skipped, never fatal.
type Registry struct {
	Dir    string
	Logger *slog.Logger

	agents []model.AgentRecord
}

type agentManifest struct {
	Name         string   `yaml:"name"`
	Kind         string   `yaml:"kind"`
	Version      string   `yaml:"version"`
	Entry        string   `yaml:"entry"`
	Capabilities []string `yaml:"capabilities"`
}

func New(dir string, logger *slog.Logger) *Registry {
	if strings.TrimSpace(dir) == "" {
		dir = DefaultAgentDir
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{Dir: dir, Logger: logger}
}

func (r *Registry) Scan() error {
	r.agents = nil
	entries, err := os.ReadDir(r.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read agent dir %s: %w", r.Dir, err)
	}

	for _, dirEntry := range entries {
		if !dirEntry.IsDir() {
			continue
		}
		agentDir := filepath.Join(r.Dir, dirEntry.Name())
		record, err := r.validateCandidate(agentDir)
		if err != nil {
			r.Logger.Warn("agent rejected", "dir", agentDir, "error", err)
			continue
		}
		r.agents = append(r.agents, record)
	}
	sort.Slice(r.agents, func(i, j int) bool {
		return r.agents[i].Name < r.agents[j].Name
	})
	return nil
}

func (r *Registry) validateCandidate(agentDir string) (model.AgentRecord, error) {
	manifestPath := filepath.Join(agentDir, "manifest.yaml")
	b, err := os.ReadFile(manifestPath)
	if err != nil {
		return model.AgentRecord{}, fmt.Errorf("read manifest: %w", err)
	}
	var manifest agentManifest
	if err := yaml.Unmarshal(b, &manifest); err != nil {
		return model.AgentRecord{}, fmt.Errorf("parse manifest: %w", err)
	}
	name := strings.TrimSpace(manifest.Name)
	if name == "" {
		return model.AgentRecord{}, fmt.Errorf("manifest is missing a name")
	}
	entry := strings.TrimSpace(manifest.Entry)
	if entry == "" {
		entry = "run.sh"
	}
	entryPath := filepath.Join(agentDir, entry)
	if info, err := os.Stat(entryPath); err != nil || info.IsDir() {
		return model.AgentRecord{}, fmt.Errorf("runnable entry %s not found", entry)
	}
	kind := strings.TrimSpace(manifest.Kind)
	if kind == "" {
		kind = "generic"
	}
	return model.AgentRecord{
		Name:    name,
		Kind:    kind,
		Version: strings.TrimSpace(manifest.Version),
		Path:    agentDir,
		Entry:   entry,
	}, nil
}

func (r *Registry) Agents() []model.AgentRecord {
	return append([]model.AgentRecord(nil), r.agents...)
}

func (r *Registry) Lookup(name string) (model.AgentRecord, bool) {
	for _, agent := range r.agents {
		if strings.EqualFold(agent.Name, strings.TrimSpace(name)) {
			return agent, true
		}
	}
	return model.AgentRecord{}, false
}
