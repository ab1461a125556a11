package runtime

import (
	"errors"
	"fmt"

	"ghostforge/internal/manifest"
	"ghostforge/internal/model"
	"ghostforge/internal/repair"
)

const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitDenied      = 3
	ExitAwaitingAck = 4
)

// ExitError carries an explicit exit code through the error chain so the CLI
// entry point can report outcomes that are not process faults.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string { return e.Message }

// AttemptExit maps a finished repair attempt to the caller-visible outcome.
// Applied is success; everything else surfaces as an ExitError so the exit
// code is decided in exactly one place.
func AttemptExit(attempt model.RepairAttempt) error {
	switch attempt.Status {
	case model.AttemptStatusApplied:
		return nil
	case model.AttemptStatusDenied:
		return &ExitError{Code: ExitDenied, Message: fmt.Sprintf("attempt %s denied: %s", attempt.ID, attempt.Reason)}
	case model.AttemptStatusAwaitingAck:
		return &ExitError{Code: ExitAwaitingAck, Message: fmt.Sprintf("attempt %s awaiting ack", attempt.ID)}
	case model.AttemptStatusFailed:
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("attempt %s failed: %s", attempt.ID, attempt.Reason)}
	default:
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("attempt %s in unexpected state %s", attempt.ID, attempt.Status)}
	}
}

// ExitCodeFor classifies any error from the command layer. Unknown commands
// and validation problems are usage errors; lock contention, strategy
// failures, and IO problems share the generic failure code.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	var unknownCommand *manifest.UnknownCommandError
	var validation *manifest.ValidationError
	var unknownStrategy *repair.UnknownStrategyError
	if errors.As(err, &unknownCommand) || errors.As(err, &validation) || errors.As(err, &unknownStrategy) {
		return ExitUsage
	}
	return ExitFailure
}
