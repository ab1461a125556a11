package hsm

import "ghostforge/internal/model"

var attemptTransitions = map[model.AttemptStatus]map[model.AttemptStatus]bool{
	model.AttemptStatusPending: {
		model.AttemptStatusAuthorized:  true,
		model.AttemptStatusDenied:      true,
		model.AttemptStatusAwaitingAck: true,
	},
	model.AttemptStatusAuthorized: {
		model.AttemptStatusApplied: true,
		model.AttemptStatusFailed:  true,
		model.AttemptStatusDenied:  true,
	},
	model.AttemptStatusAwaitingAck: {
		model.AttemptStatusAuthorized: true,
		model.AttemptStatusDenied:     true,
		model.AttemptStatusFailed:     true,
	},
}

func CanTransitionAttempt(from model.AttemptStatus, to model.AttemptStatus) bool {
	if from == to {
		return true
	}
	return attemptTransitions[from][to]
}
