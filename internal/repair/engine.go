package repair

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"ghostforge/internal/escalation"
	"ghostforge/internal/hsm"
	"ghostforge/internal/model"
	"ghostforge/internal/policy"
	"ghostforge/internal/snapshot"
	"ghostforge/internal/store"
)

// Engine orchestrates repair attempts: one strategy per attempt, policy
// decision before anything runs, snapshot checkpoint before anything
// destructive, escalation persisted across process exits.
type Engine struct {
	Root      string
	Cfg       policy.Config
	Guard     *policy.Guard
	Store     *store.SQLiteStore
	Snapshots *snapshot.Store
	Gate      *escalation.Gate
	Logger    *slog.Logger

	// Validator runs the project's golden validation suite. Nil skips the
	// require-green check.
	Validator func(ctx context.Context) error

	// Target is the file bounded strategies operate on.
	Target string

	LockDir    string
	FreezePath string

	strategies map[string]Strategy
}

type Options struct {
	Root      string
	Cfg       policy.Config
	Store     *store.SQLiteStore
	Snapshots *snapshot.Store
	Gate      *escalation.Gate
	Logger    *slog.Logger
	Validator func(ctx context.Context) error
	Target    string
}

func NewEngine(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	target := strings.TrimSpace(opts.Target)
	if target == "" {
		target = DefaultRepairTarget
	}
	stateDir := filepath.Join(opts.Root, ".forge")
	return &Engine{
		Root:       opts.Root,
		Cfg:        opts.Cfg,
		Guard:      policy.NewGuard(opts.Cfg),
		Store:      opts.Store,
		Snapshots:  opts.Snapshots,
		Gate:       opts.Gate,
		Logger:     logger,
		Validator:  opts.Validator,
		Target:     target,
		LockDir:    filepath.Join(stateDir, "locks"),
		FreezePath: filepath.Join(stateDir, "FREEZE"),
		strategies: builtinStrategies(),
	}
}

type ExecuteOptions struct {
	Strategy string
	// TryAll walks the declared strategy order and stops at the first
	// Applied result instead of running a single named strategy.
	TryAll bool
}

type Result struct {
	Attempt    model.RepairAttempt
	Checkpoint string
	WardenHits []string
}

func (e *Engine) Execute(ctx context.Context, opts ExecuteOptions) (Result, error) {
	release, err := AcquireProjectLock(e.LockDir, "repair")
	if err != nil {
		return Result{}, err
	}
	defer release()

	if opts.TryAll {
		var last Result
		for _, name := range e.Cfg.Repair.StrategyOrder {
			last, err = e.executeOne(ctx, name)
			if err != nil {
				return last, err
			}
			if last.Attempt.Status == model.AttemptStatusApplied {
				return last, nil
			}
		}
		return last, nil
	}
	return e.executeOne(ctx, opts.Strategy)
}

func (e *Engine) executeOne(ctx context.Context, strategyName string) (Result, error) {
	strategyName = strings.TrimSpace(strategyName)
	strat, ok := e.strategies[strategyName]
	if !ok {
		return Result{}, &UnknownStrategyError{Strategy: strategyName}
	}

	// A persisted escalation wait resumes here on re-invocation.
	pending, found, err := e.Store.PendingAttemptForStrategy(strategyName)
	if err != nil {
		return Result{}, err
	}
	if found {
		return e.resumeEscalated(ctx, pending, strat)
	}

	attempt := model.RepairAttempt{
		ID:        uuid.NewString(),
		Strategy:  strategyName,
		Status:    model.AttemptStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.Store.CreateAttempt(attempt); err != nil {
		return Result{}, err
	}
	e.Logger.Info("attempt created", "attempt_id", attempt.ID, "strategy", strategyName)

	if e.frozen() {
		return e.deny(attempt, "kernel is frozen; thaw to run repair")
	}

	decision := e.Guard.Authorize(strategyName, policy.AuthorizeContext{NetworkUsing: strat.NetworkUsing()})
	switch decision.Kind {
	case model.DecisionDenied:
		return e.deny(attempt, decision.Reason)
	case model.DecisionRequiresAck:
		return e.escalate(attempt)
	}

	attempt, err = e.transition(attempt, model.AttemptStatusAuthorized, "")
	if err != nil {
		return Result{}, err
	}
	return e.runAuthorized(ctx, attempt, strat)
}

func (e *Engine) resumeEscalated(ctx context.Context, attempt model.RepairAttempt, strat Strategy) (Result, error) {
	result, err := e.Gate.Poll(attempt.ID)
	if err != nil {
		return Result{}, err
	}
	if result != escalation.PollAcknowledged {
		e.Logger.Info("escalation still pending", "attempt_id", attempt.ID)
		return Result{Attempt: attempt}, nil
	}
	if err := e.Gate.Consume(attempt.ID); err != nil {
		return Result{}, err
	}
	e.audit("gate", "ack_consumed", map[string]string{"attempt": attempt.ID})

	attempt, err = e.transition(attempt, model.AttemptStatusAuthorized, "escalation acknowledged")
	if err != nil {
		return Result{}, err
	}
	return e.runAuthorized(ctx, attempt, strat)
}

func (e *Engine) runAuthorized(ctx context.Context, attempt model.RepairAttempt, strat Strategy) (Result, error) {
	staged, err := strat.Stage(e.Root, e.Target)
	if err != nil {
		return e.fail(attempt, &StrategyFailedError{Strategy: strat.Name(), Err: err})
	}

	hits, skipped := e.Guard.ScanText(staged.NewContent)
	for _, pattern := range skipped {
		e.Logger.Warn("skipping invalid regex from policy", "pattern", pattern)
	}
	if len(hits) > 0 {
		e.audit("warden", "block", map[string]any{"attempt": attempt.ID, "patterns": hits})
		result, err := e.deny(attempt, fmt.Sprintf("blocked by policy patterns: %s", strings.Join(hits, ", ")))
		result.WardenHits = hits
		return result, err
	}
	if !staged.NoOp && !e.Guard.WithinChangeBudget(staged.ChangePct) {
		e.audit("warden", "reject_change_budget", map[string]any{"attempt": attempt.ID, "pct": staged.ChangePct})
		return e.deny(attempt, fmt.Sprintf("change size %d%% exceeds budget %d%%", staged.ChangePct, e.Cfg.Repair.ChangeBudgetPct))
	}

	if e.Cfg.Repair.RequireGreenTests && e.Validator != nil {
		if err := e.Validator(ctx); err != nil {
			return e.fail(attempt, &StrategyFailedError{Strategy: strat.Name(), Err: fmt.Errorf("validation suite not green: %w", err)})
		}
	}

	checkpoint := ""
	if strat.Mutating() && !staged.NoOp {
		created, err := e.Snapshots.Create(attempt.ID)
		if err != nil {
			return e.fail(attempt, err)
		}
		checkpoint = created.Label
		e.audit("engine", "checkpoint", map[string]string{"attempt": attempt.ID, "snapshot": created.ContentRef})
	}

	if err := strat.Apply(staged); err != nil {
		return e.fail(attempt, &StrategyFailedError{Strategy: strat.Name(), Err: err})
	}

	attempt, err = e.transition(attempt, model.AttemptStatusApplied, "")
	if err != nil {
		return Result{}, err
	}
	e.audit("engine", "apply", map[string]any{"attempt": attempt.ID, "strategy": strat.Name(), "target": staged.TargetPath, "pct": staged.ChangePct})
	e.Logger.Info("repair applied", "attempt_id", attempt.ID, "strategy", strat.Name(), "checkpoint", checkpoint)
	return Result{Attempt: attempt, Checkpoint: checkpoint}, nil
}

func (e *Engine) escalate(attempt model.RepairAttempt) (Result, error) {
	attempt, err := e.transition(attempt, model.AttemptStatusAwaitingAck, "escalation required")
	if err != nil {
		return Result{}, err
	}
	if _, err := e.Gate.Request(attempt.ID); err != nil {
		return Result{}, err
	}
	e.audit("warden", "escalation_required", map[string]string{"attempt": attempt.ID, "strategy": attempt.Strategy})
	e.Logger.Info("escalation required", "attempt_id", attempt.ID, "ack_path", e.Gate.AckPath(attempt.ID))
	return Result{Attempt: attempt}, nil
}

func (e *Engine) deny(attempt model.RepairAttempt, reason string) (Result, error) {
	attempt, err := e.transition(attempt, model.AttemptStatusDenied, reason)
	if err != nil {
		return Result{}, err
	}
	e.audit("warden", "deny", map[string]string{"attempt": attempt.ID, "reason": reason})
	return Result{Attempt: attempt}, nil
}

// fail marks the attempt Failed with the captured error. The error itself is
// not returned: it is part of the attempt outcome, not a runtime fault.
func (e *Engine) fail(attempt model.RepairAttempt, cause error) (Result, error) {
	attempt, err := e.transition(attempt, model.AttemptStatusFailed, cause.Error())
	if err != nil {
		return Result{}, err
	}
	e.audit("engine", "fail", map[string]string{"attempt": attempt.ID, "error": cause.Error()})
	e.Logger.Warn("repair failed", "attempt_id", attempt.ID, "error", cause)
	return Result{Attempt: attempt}, nil
}

func (e *Engine) transition(attempt model.RepairAttempt, to model.AttemptStatus, reason string) (model.RepairAttempt, error) {
	if !hsm.CanTransitionAttempt(attempt.Status, to) {
		return attempt, fmt.Errorf("attempt %s cannot transition from %s to %s", attempt.ID, attempt.Status, to)
	}
	if err := e.Store.UpdateAttemptStatus(attempt.ID, to, reason, to.Terminal()); err != nil {
		return attempt, err
	}
	attempt.Status = to
	attempt.Reason = reason
	if to.Terminal() {
		now := time.Now().UTC()
		attempt.ResolvedAt = &now
	}
	return attempt, nil
}

func (e *Engine) frozen() bool {
	_, err := os.Stat(e.FreezePath)
	return err == nil
}

// Freeze disables repair execution until Thaw removes the flag.
func (e *Engine) Freeze() error {
	if err := os.MkdirAll(filepath.Dir(e.FreezePath), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := os.WriteFile(e.FreezePath, []byte("1"), 0o644); err != nil {
		return fmt.Errorf("write freeze flag: %w", err)
	}
	e.audit("engine", "freeze", nil)
	return nil
}

func (e *Engine) Thaw() error {
	if err := os.Remove(e.FreezePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove freeze flag: %w", err)
	}
	e.audit("engine", "thaw", nil)
	return nil
}

func (e *Engine) Frozen() bool {
	return e.frozen()
}

func (e *Engine) audit(actor string, action string, detail any) {
	payload := ""
	if detail != nil {
		if b, err := json.Marshal(detail); err == nil {
			payload = string(b)
		}
	}
	if err := e.Store.AddEvent(actor, action, payload); err != nil {
		e.Logger.Warn("audit write failed", "actor", actor, "action", action, "error", err)
	}
}
