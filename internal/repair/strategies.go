package repair

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultRepairTarget is the file bounded strategies operate on.
const DefaultRepairTarget = "core/registry.go"

// StagedChange is a strategy's proposed edit: the full new content of the
// target plus a rough change-size percentage against the current content.
type StagedChange struct {
	TargetPath string
	NewContent string
	ChangePct  int
	NoOp       bool
}

// Strategy is a named, bounded repair action. Stage proposes the change
// without touching the project; Apply writes it. Strategies never run
// concurrently within one attempt.
type Strategy interface {
	Name() string
	Mutating() bool
	NetworkUsing() bool
	Stage(root string, target string) (StagedChange, error)
	Apply(staged StagedChange) error
}

func builtinStrategies() map[string]Strategy {
	all := []Strategy{
		lintStrategy{},
		rewriteStrategy{},
		regenStrategy{},
		fetchStrategy{},
	}
	out := make(map[string]Strategy, len(all))
	for _, s := range all {
		out[s.Name()] = s
	}
	return out
}

func readTarget(root string, target string) (string, string, error) {
	path := filepath.Join(root, target)
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return path, "", nil
		}
		return path, "", fmt.Errorf("read repair target %s: %w", path, err)
	}
	return path, string(b), nil
}

func changePct(original string, proposed string) int {
	originalLines := map[string]bool{}
	for _, line := range strings.Split(original, "\n") {
		originalLines[line] = true
	}
	added := 0
	for _, line := range strings.Split(proposed, "\n") {
		if strings.TrimSpace(line) != "" && !originalLines[line] {
			added++
		}
	}
	base := len(strings.Split(original, "\n"))
	if base < 1 {
		base = 1
	}
	pct := added * 100 / base
	if pct > 100 {
		pct = 100
	}
	return pct
}

func writeStaged(staged StagedChange) error {
	if err := os.MkdirAll(filepath.Dir(staged.TargetPath), 0o755); err != nil {
		return fmt.Errorf("create target dir: %w", err)
	}
	if err := os.WriteFile(staged.TargetPath, []byte(staged.NewContent), 0o644); err != nil {
		return fmt.Errorf("write repair target %s: %w", staged.TargetPath, err)
	}
	return nil
}

// lintStrategy strips trailing whitespace from the target. Non-mutating from
// the snapshot checkpoint's point of view when nothing changes.
type lintStrategy struct{}

func (lintStrategy) Name() string       { return "lint" }
func (lintStrategy) Mutating() bool     { return true }
func (lintStrategy) NetworkUsing() bool { return false }

func (lintStrategy) Stage(root string, target string) (StagedChange, error) {
	path, original, err := readTarget(root, target)
	if err != nil {
		return StagedChange{}, err
	}
	lines := strings.Split(original, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	proposed := strings.Join(lines, "\n")
	return StagedChange{
		TargetPath: path,
		NewContent: proposed,
		ChangePct:  changePct(original, proposed),
		NoOp:       proposed == original,
	}, nil
}

func (lintStrategy) Apply(staged StagedChange) error {
	if staged.NoOp {
		return nil
	}
	return writeStaged(staged)
}

// rewriteStrategy appends a repair marker to the target so the change stays
// tiny and observable. Repeated runs do not stack markers.
type rewriteStrategy struct{}

func (rewriteStrategy) Name() string       { return "rewrite" }
func (rewriteStrategy) Mutating() bool     { return true }
func (rewriteStrategy) NetworkUsing() bool { return false }

const rewriteMarker = "// auto-repair touch"

func (rewriteStrategy) Stage(root string, target string) (StagedChange, error) {
	path, original, err := readTarget(root, target)
	if err != nil {
		return StagedChange{}, err
	}
	proposed := original
	if !strings.Contains(original, rewriteMarker) {
		proposed = original + fmt.Sprintf("\n%s: %s\n", rewriteMarker, time.Now().UTC().Format(time.RFC3339))
	}
	return StagedChange{
		TargetPath: path,
		NewContent: proposed,
		ChangePct:  changePct(original, proposed),
		NoOp:       proposed == original,
	}, nil
}

func (rewriteStrategy) Apply(staged StagedChange) error {
	if staged.NoOp {
		return nil
	}
	return writeStaged(staged)
}

// regenStrategy rewrites the target from its canonical template, discarding
// accumulated drift.
type regenStrategy struct{}

func (regenStrategy) Name() string       { return "regen" }
func (regenStrategy) Mutating() bool     { return true }
func (regenStrategy) NetworkUsing() bool { return false }

const regenTemplate = `package core

// Registry tracks commands, modules, and artifacts.
type Registry struct {
	Root string
}

func (r Registry) Modules() []string {
	return []string{"rewriter", "tester"}
}
`

func (regenStrategy) Stage(root string, target string) (StagedChange, error) {
	path, original, err := readTarget(root, target)
	if err != nil {
		return StagedChange{}, err
	}
	return StagedChange{
		TargetPath: path,
		NewContent: regenTemplate,
		ChangePct:  changePct(original, regenTemplate),
		NoOp:       original == regenTemplate,
	}, nil
}

func (regenStrategy) Apply(staged StagedChange) error {
	if staged.NoOp {
		return nil
	}
	return writeStaged(staged)
}

// fetchStrategy would pull fixes from a remote source. It exists so the
// offline rail has something real to deny; staging it is an error.
type fetchStrategy struct{}

func (fetchStrategy) Name() string       { return "fetch" }
func (fetchStrategy) Mutating() bool     { return true }
func (fetchStrategy) NetworkUsing() bool { return true }

func (fetchStrategy) Stage(root string, target string) (StagedChange, error) {
	return StagedChange{}, fmt.Errorf("fetch strategy requires network access")
}

func (fetchStrategy) Apply(staged StagedChange) error {
	return fmt.Errorf("fetch strategy requires network access")
}
