package repair

import (
	"fmt"
	"strings"
)

// BusyError reports advisory lock contention. The caller may retry later;
// the kernel never queues.
type BusyError struct {
	Operation string
	LockPath  string
	Holder    string
}

func (e *BusyError) Error() string {
	base := fmt.Sprintf("%s operation is already in progress", strings.TrimSpace(e.Operation))
	if strings.TrimSpace(e.LockPath) != "" {
		base += fmt.Sprintf(" (lock=%s)", strings.TrimSpace(e.LockPath))
	}
	if strings.TrimSpace(e.Holder) != "" {
		base += fmt.Sprintf("; holder=%s", strings.TrimSpace(e.Holder))
	}
	return base
}

// StrategyFailedError captures a strategy's runtime failure at the engine
// boundary; the underlying error never propagates past it.
type StrategyFailedError struct {
	Strategy string
	Err      error
}

func (e *StrategyFailedError) Error() string {
	return fmt.Sprintf("strategy %s failed: %v", e.Strategy, e.Err)
}

func (e *StrategyFailedError) Unwrap() error { return e.Err }

// UnknownStrategyError reports a repair invocation naming a strategy the
// engine does not implement.
type UnknownStrategyError struct {
	Strategy string
}

func (e *UnknownStrategyError) Error() string {
	return fmt.Sprintf("unknown strategy %q", e.Strategy)
}
