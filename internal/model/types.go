package model

import "time"

type AttemptStatus string

const (
	AttemptStatusPending     AttemptStatus = "pending"
	AttemptStatusAuthorized  AttemptStatus = "authorized"
	AttemptStatusAwaitingAck AttemptStatus = "awaiting_ack"
	AttemptStatusDenied      AttemptStatus = "denied"
	AttemptStatusApplied     AttemptStatus = "applied"
	AttemptStatusFailed      AttemptStatus = "failed"
)

func (s AttemptStatus) Terminal() bool {
	switch s {
	case AttemptStatusDenied, AttemptStatusApplied, AttemptStatusFailed:
		return true
	}
	return false
}

type DecisionKind string

const (
	DecisionAuthorized  DecisionKind = "authorized"
	DecisionDenied      DecisionKind = "denied"
	DecisionRequiresAck DecisionKind = "requires_ack"
)

type Decision struct {
	Kind   DecisionKind `json:"kind"`
	Reason string       `json:"reason,omitempty"`
}

type RepairAttempt struct {
	ID         string        `json:"id"`
	Strategy   string        `json:"strategy"`
	Status     AttemptStatus `json:"status"`
	Reason     string        `json:"reason,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	ResolvedAt *time.Time    `json:"resolved_at,omitempty"`
}

type ManifestEntry struct {
	Name             string   `json:"name" yaml:"name"`
	Action           string   `json:"action" yaml:"action"`
	AllowedArgs      []string `json:"allowed_args" yaml:"allowed_args"`
	RequiresElevated bool     `json:"requires_elevated" yaml:"requires_elevated"`
}

type Snapshot struct {
	Label      string    `json:"label"`
	CreatedAt  time.Time `json:"created_at"`
	ContentRef string    `json:"content_ref"`
	Included   []string  `json:"included,omitempty"`
}

type AgentRecord struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Version string `json:"version"`
	Path    string `json:"path"`
	Entry   string `json:"entry"`
}
