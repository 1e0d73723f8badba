// Package protocol defines the contracts between the execution engine and
// the node handlers.
package protocol

import (
	"context"
	"time"

	"github.com/zaplane/zaplane/pkg/models"
	"github.com/zaplane/zaplane/pkg/persistence"
)

// Handler executes one flow node against an execution context. Handlers are
// constructed per node from its config payload; a missing required field is
// a construction error, not an execution error.
type Handler interface {
	// Type returns the node type this handler implements.
	Type() string

	// Execute performs the node's side effect and reports how the engine
	// should continue.
	Execute(ctx context.Context, executionCtx *models.ExecutionContext) (*Outcome, error)
}

// Factory builds a handler for one node instance.
type Factory interface {
	// ID returns the node type this factory builds.
	ID() string

	// Create builds a handler from the node's config payload.
	Create(node *models.FlowNode, deps Deps) (Handler, error)

	// Schema returns the JSON schema for the node type's config payload.
	Schema() map[string]any
}

// Deps are the collaborator ports a handler may use.
type Deps struct {
	Sender   Sender
	Assigner Assigner
	Contacts persistence.ContactRepository
}

// Sender is the outbound WhatsApp messaging collaborator. Any returned error
// is treated as the node's failure.
type Sender interface {
	SendText(ctx context.Context, phone, text, channelID string) error
	SendTemplate(ctx context.Context, phone, templateID string, parameters []string, channelID string) error
	SendInteractiveButtons(ctx context.Context, phone, text string, buttons []models.Button, channelID string) (string, error)
}

// Assigner hands a conversation to a human agent.
type Assigner interface {
	AssignConversation(ctx context.Context, conversationID, assigneeID string) error
}

// Outcome actions, recorded verbatim in the execution log.
const (
	ActionMessageSent     = "message_sent"
	ActionTemplateSent    = "template_sent"
	ActionUserAssigned    = "user_assigned"
	ActionDelayStarted    = "delay_started"
	ActionExecutionPaused = "execution_paused"
	ActionConditionResult = "condition_evaluated"
)

// Outcome is the result of one node execution. At most one of Pause, Branch
// and Delay is set; all nil means the engine advances normally.
type Outcome struct {
	Action string
	Output map[string]any

	Pause  *PauseRequest
	Branch *BranchResult
	Delay  *DelayRequest
}

// PauseRequest tells the engine to park the execution until the contact
// replies.
type PauseRequest struct {
	PendingID string // id of the pending wait, minted by the node so its log entry can reference it
	Question  string
	Buttons   []models.Button
	SaveAs    string
}

// BranchResult tells the engine which conditional edge to follow.
type BranchResult struct {
	Met bool
}

// DelayRequest tells the engine to schedule a deferred continuation.
type DelayRequest struct {
	Duration time.Duration
}
