// Package runtime is the kernel's command boundary. It wires the stores,
// guard, gate, and engine together, dispatches verbs and manifest commands,
// and classifies every component failure into a deterministic exit code.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"ghostforge/internal/escalation"
	"ghostforge/internal/logging"
	"ghostforge/internal/manifest"
	"ghostforge/internal/model"
	"ghostforge/internal/policy"
	"ghostforge/internal/registry"
	"ghostforge/internal/repair"
	"ghostforge/internal/snapshot"
	"ghostforge/internal/store"
)

type Options struct {
	Root        string
	PolicyPath  string
	DBPath      string
	ManifestDir string
	AgentDir    string
	Logger      *slog.Logger
}

type Runtime struct {
	Root       string
	Cfg        policy.Config
	PolicyPath string
	Store      *store.SQLiteStore
	Snapshots  *snapshot.Store
	Gate       *escalation.Gate
	Engine     *repair.Engine
	Manifests  *manifest.Store
	Agents     *registry.Registry
	Logger     *slog.Logger
}

func New(opts Options) (*Runtime, error) {
	root := strings.TrimSpace(opts.Root)
	if root == "" {
		root = "."
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}

	policyPath := strings.TrimSpace(opts.PolicyPath)
	if policyPath == "" {
		policyPath = filepath.Join(root, policy.DefaultPolicyPath)
	}
	cfg, finalPath, err := policy.Load(policyPath)
	if err != nil {
		return nil, err
	}

	dbPath := strings.TrimSpace(opts.DBPath)
	if dbPath == "" {
		dbPath = filepath.Join(root, store.DefaultDBPath)
	}
	st := store.NewSQLiteStore(dbPath)
	if err := st.Init(); err != nil {
		return nil, err
	}

	manifestDir := strings.TrimSpace(opts.ManifestDir)
	if manifestDir == "" {
		manifestDir = filepath.Join(root, manifest.DefaultManifestDir)
	}
	manifests, err := manifest.Load(manifestDir)
	if err != nil {
		return nil, err
	}

	agentDir := strings.TrimSpace(opts.AgentDir)
	if agentDir == "" {
		agentDir = filepath.Join(root, registry.DefaultAgentDir)
	}
	agents := registry.New(agentDir, logger)
	if err := agents.Scan(); err != nil {
		return nil, err
	}

	snapshots := snapshot.NewStore(root, "", st)
	gate := escalation.NewGate(filepath.Join(root, escalation.DefaultAckDir))

	rt := &Runtime{
		Root:       root,
		Cfg:        cfg,
		PolicyPath: finalPath,
		Store:      st,
		Snapshots:  snapshots,
		Gate:       gate,
		Manifests:  manifests,
		Agents:     agents,
		Logger:     logger,
	}
	rt.Engine = repair.NewEngine(repair.Options{
		Root:      root,
		Cfg:       cfg,
		Store:     st,
		Snapshots: snapshots,
		Gate:      gate,
		Logger:    logger,
		Validator: func(ctx context.Context) error {
			report, err := RunGoldens(ctx, root)
			if err != nil {
				return err
			}
			if !report.Green() {
				return fmt.Errorf("%d of %d checks red", report.FailedCount(), len(report.Checks))
			}
			return nil
		},
	})
	return rt, nil
}

type StatusReport struct {
	Root          string
	PolicyPath    string
	Frozen        bool
	Commands      int
	Agents        int
	Snapshots     int
	Events        int
	LatestAttempt *model.RepairAttempt
}

func (r *Runtime) Status() (StatusReport, error) {
	report := StatusReport{
		Root:       r.Root,
		PolicyPath: r.PolicyPath,
		Frozen:     r.Engine.Frozen(),
		Commands:   len(r.Manifests.Names()),
		Agents:     len(r.Agents.Agents()),
	}
	snapshots, err := r.Store.CountSnapshots()
	if err != nil {
		return StatusReport{}, err
	}
	report.Snapshots = snapshots

	events, err := r.Store.CountEvents()
	if err != nil {
		return StatusReport{}, err
	}
	report.Events = events

	latest, found, err := r.Store.LatestAttempt()
	if err != nil {
		return StatusReport{}, err
	}
	if found {
		report.LatestAttempt = &latest
	}
	return report, nil
}

func (r *Runtime) ListCommands() []model.ManifestEntry {
	return r.Manifests.Entries()
}

func (r *Runtime) Test(ctx context.Context) (TestReport, error) {
	return RunGoldens(ctx, r.Root)
}

func (r *Runtime) Repair(ctx context.Context, strategy string, tryAll bool) (repair.Result, error) {
	return r.Engine.Execute(ctx, repair.ExecuteOptions{Strategy: strategy, TryAll: tryAll})
}

// Snapshot captures the project under the shared project lock so a capture
// never races a repair in another process.
func (r *Runtime) Snapshot(label string) (model.Snapshot, error) {
	release, err := repair.AcquireProjectLock(r.Engine.LockDir, "snapshot")
	if err != nil {
		return model.Snapshot{}, err
	}
	defer release()
	return r.Snapshots.Create(label)
}

func (r *Runtime) Restore(label string, skipSafety bool) (model.Snapshot, error) {
	release, err := repair.AcquireProjectLock(r.Engine.LockDir, "restore")
	if err != nil {
		return model.Snapshot{}, err
	}
	defer release()
	return r.Snapshots.Restore(label, snapshot.RestoreOptions{SkipSafetySnapshot: skipSafety})
}

func (r *Runtime) History(limit int) ([]model.RepairAttempt, error) {
	return r.Store.ListAttempts(limit)
}

func (r *Runtime) Freeze() error { return r.Engine.Freeze() }
func (r *Runtime) Thaw() error   { return r.Engine.Thaw() }

func (r *Runtime) AgentList() []model.AgentRecord {
	return r.Agents.Agents()
}

func (r *Runtime) MakeAgent(name string, kind string) (string, error) {
	dir, err := r.Agents.Scaffold(name, kind)
	if err != nil {
		return "", err
	}
	if err := r.Agents.Scan(); err != nil {
		return "", err
	}
	return dir, nil
}

// CreateAgent scaffolds an agent whose name and kind are inferred from a
// free-form prompt.
func (r *Runtime) CreateAgent(prompt string) (registry.AgentSpec, string, error) {
	spec := registry.InferAgentSpec(prompt)
	dir, err := r.MakeAgent(spec.Name, spec.Kind)
	return spec, dir, err
}

// CommandOutcome summarizes a manifest command dispatch for the CLI.
type CommandOutcome struct {
	Entry  model.ManifestEntry
	Detail string
	Repair *repair.Result
}

// RunCommand resolves a manifest entry and dispatches its action. Arguments
// outside the entry's allowed set fail validation before anything runs, and
// elevated entries refuse to run without the explicit flag.
func (r *Runtime) RunCommand(ctx context.Context, name string, args []string, elevated bool) (CommandOutcome, error) {
	entry, err := r.Manifests.Resolve(name)
	if err != nil {
		return CommandOutcome{}, err
	}
	for _, arg := range args {
		if !containsArg(entry.AllowedArgs, arg) {
			return CommandOutcome{}, &manifest.ValidationError{
				Source: entry.Name,
				Detail: fmt.Sprintf("argument %q is not in the allowed set", arg),
			}
		}
	}
	if entry.RequiresElevated && !elevated {
		return CommandOutcome{}, &ExitError{
			Code:    ExitDenied,
			Message: fmt.Sprintf("command %q requires elevated mode", entry.Name),
		}
	}

	outcome := CommandOutcome{Entry: entry}
	switch entry.Action {
	case "validate":
		report, err := RunGoldens(ctx, r.Root)
		if err != nil {
			return outcome, err
		}
		outcome.Detail = fmt.Sprintf("%d checks, %d red", len(report.Checks), report.FailedCount())
		if !report.Green() {
			return outcome, &ExitError{Code: ExitFailure, Message: outcome.Detail}
		}
	case "repair":
		strategy := ""
		if len(args) > 0 {
			strategy = args[0]
		} else if len(r.Cfg.Repair.StrategyOrder) > 0 {
			strategy = r.Cfg.Repair.StrategyOrder[0]
		}
		result, err := r.Repair(ctx, strategy, false)
		if err != nil {
			return outcome, err
		}
		outcome.Repair = &result
		outcome.Detail = fmt.Sprintf("attempt %s status=%s", result.Attempt.ID, result.Attempt.Status)
	case "snapshot":
		label := entry.Name
		if len(args) > 0 {
			label = args[0]
		}
		snap, err := r.Snapshot(label)
		if err != nil {
			return outcome, err
		}
		outcome.Detail = fmt.Sprintf("snapshot %s -> %s", snap.Label, snap.ContentRef)
	case "scan":
		if err := r.Agents.Scan(); err != nil {
			return outcome, err
		}
		outcome.Detail = fmt.Sprintf("%d agents registered", len(r.Agents.Agents()))
	default:
		// Load validation guarantees the action set; reaching here is a bug.
		return outcome, fmt.Errorf("unhandled action %q", entry.Action)
	}
	return outcome, nil
}

func containsArg(allowed []string, arg string) bool {
	for _, candidate := range allowed {
		if candidate == arg {
			return true
		}
	}
	return false
}
