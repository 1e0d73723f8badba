package models

import "time"

// PendingWait is the pause/resume linchpin: it maps a conversation to the
// execution that is blocked on a user_reply node. Written through to the
// pending-wait store on register and deleted on resume, cancel or timeout,
// so a process restart loses at most the in-memory index, not the wait.
type PendingWait struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	ExecutionID    string         `json:"execution_id"`
	AutomationID   string         `json:"automation_id"`
	NodeID         string         `json:"node_id"`             // the user_reply node that is waiting
	SaveAs         string         `json:"save_as,omitempty"`   // variable name the reply is stored under
	Buttons        []Button       `json:"buttons,omitempty"`   // button set offered, if any
	Variables      map[string]any `json:"variables,omitempty"` // variable bag at the moment of pause, replayed on resume
	CreatedAt      time.Time      `json:"created_at"`
}

func (p *PendingWait) OlderThan(timeout time.Duration, now time.Time) bool {
	return now.Sub(p.CreatedAt) > timeout
}
