package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const agentReadme = "# %s (%s agent)\n\nGenerated scaffold. Offline by default.\n"

const agentManifestTemplate = `name: %s
kind: %s
version: "0.1.0"
entry: run.sh
capabilities:
  - plan
  - run
`

const agentEntryTemplate = `#!/bin/sh
# %s agent entry. Reads a goal from $1 and prints a structured result.
goal="${1:-demo goal}"
printf '{"agent":"%s","kind":"%s","goal":"%%s","result":"processed"}\n' "$goal"
`

const agentGoldenTemplate = `#!/bin/sh
# Golden check for the %s agent: a smoke goal must yield a structured result.
root="$(cd "$(dirname "$0")/.." && pwd)"
out="$(sh "$root/%s/%s/run.sh" "smoke test")" || exit 1
echo "$out" | grep -q '"result"' || exit 1
echo "$out" | grep -q '"agent"' || exit 1
`

var validKinds = map[string]bool{
	"generic": true,
	"game":    true,
	"tv":      true,
	"music":   true,
}

// Scaffold writes a new agent folder satisfying the registry contract
// (manifest, runnable entry, README) plus a golden check in the sibling
// tests directory so the validation suite covers the new agent.
func (r *Registry) Scaffold(name string, kind string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("agent name is required")
	}
	kind = strings.TrimSpace(strings.ToLower(kind))
	if kind == "" {
		kind = "generic"
	}
	if !validKinds[kind] {
		return "", fmt.Errorf("agent kind %q must be generic|game|tv|music", kind)
	}

	agentDir := filepath.Join(r.Dir, name)
	if err := os.MkdirAll(agentDir, 0o755); err != nil {
		return "", fmt.Errorf("create agent dir %s: %w", agentDir, err)
	}
	files := map[string]struct {
		content string
		mode    os.FileMode
	}{
		"README.md":     {fmt.Sprintf(agentReadme, name, kind), 0o644},
		"manifest.yaml": {fmt.Sprintf(agentManifestTemplate, name, kind), 0o644},
		"run.sh":        {fmt.Sprintf(agentEntryTemplate, kind, name, kind), 0o755},
	}
	for filename, file := range files {
		path := filepath.Join(agentDir, filename)
		if err := os.WriteFile(path, []byte(file.content), file.mode); err != nil {
			return "", fmt.Errorf("write %s: %w", path, err)
		}
	}

	testsDir := filepath.Join(filepath.Dir(r.Dir), "tests")
	if err := os.MkdirAll(testsDir, 0o755); err != nil {
		return "", fmt.Errorf("create tests dir %s: %w", testsDir, err)
	}
	goldenPath := filepath.Join(testsDir, fmt.Sprintf("test_agent_%s.sh", strings.ToLower(name)))
	golden := fmt.Sprintf(agentGoldenTemplate, name, filepath.Base(r.Dir), name)
	if err := os.WriteFile(goldenPath, []byte(golden), 0o755); err != nil {
		return "", fmt.Errorf("write %s: %w", goldenPath, err)
	}
	return agentDir, nil
}

// AgentSpec is a scaffold request derived from a free-form prompt.
type AgentSpec struct {
	Name string
	Kind string
}

var promptTokenPattern = regexp.MustCompile(`[A-Za-z0-9]+`)

var kindKeywords = []struct {
	kind  string
	words []string
}{
	{"game", []string{"game", "player", "enemy", "boss", "roguelike"}},
	{"tv", []string{"tv", "show", "episode", "series", "film"}},
	{"music", []string{"music", "song", "band"}},
}

// InferAgentSpec guesses an agent name and kind from a prompt. The kind comes
// from the first keyword group with a hit; the name is the prompt's first
// alphanumeric token, title-cased and capped at 20 characters.
func InferAgentSpec(prompt string) AgentSpec {
	lowered := strings.ToLower(prompt)
	kind := "generic"
scan:
	for _, group := range kindKeywords {
		for _, word := range group.words {
			if strings.Contains(lowered, word) {
				kind = group.kind
				break scan
			}
		}
	}

	name := "Agent"
	if token := promptTokenPattern.FindString(prompt); token != "" {
		name = strings.ToUpper(token[:1]) + strings.ToLower(token[1:])
		if len(name) > 20 {
			name = name[:20]
		}
	}
	return AgentSpec{Name: name, Kind: kind}
}
