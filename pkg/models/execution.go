package models

import "time"

// ExecutionStatus represents the lifecycle state of one automation run.
// Transitions to completed/failed are one-way.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusPaused    ExecutionStatus = "paused"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed
}

// Execution is one run of an automation for one conversation. It is the
// durable analog of the in-memory ExecutionContext: a paused run is
// reconstructed from this row plus its pending wait.
type Execution struct {
	ID              string          `json:"id"`
	AutomationID    string          `json:"automation_id"   validate:"required"`
	ContactID       string          `json:"contact_id"`
	ConversationID  string          `json:"conversation_id" validate:"required"`
	TriggerPayload  map[string]any  `json:"trigger_payload,omitempty"`
	Status          ExecutionStatus `json:"status"`
	Reason          string          `json:"reason,omitempty"`
	ResumeAt        *time.Time      `json:"resume_at,omitempty"`        // due time for a scheduled time-gap continuation
	ResumeNodeID    string          `json:"resume_node_id,omitempty"`   // node whose successors run when the gap elapses
	ResumeVariables map[string]any  `json:"resume_variables,omitempty"` // variable bag at the moment of pause, replayed on resume
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// LogStatus is the per-attempt state recorded in the execution log.
type LogStatus string

const (
	LogStatusRunning            LogStatus = "running"
	LogStatusCompleted          LogStatus = "completed"
	LogStatusFailed             LogStatus = "failed"
	LogStatusWaitingForResponse LogStatus = "waiting_for_response"
)

// ExecutionLogEntry is one node attempt. Append-only, never mutated.
type ExecutionLogEntry struct {
	ID          string         `json:"id"`
	ExecutionID string         `json:"execution_id"`
	NodeID      string         `json:"node_id"`
	NodeType    string         `json:"node_type"`
	Status      LogStatus      `json:"status"`
	Input       map[string]any `json:"input,omitempty"`
	Output      map[string]any `json:"output,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
