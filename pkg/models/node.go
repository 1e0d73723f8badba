package models

// Node types supported by the flow builder. Each type has a dedicated handler
// package under pkg/nodes.
const (
	NodeTypeCustomReply  = "custom_reply"
	NodeTypeUserReply    = "user_reply"
	NodeTypeTimeGap      = "time_gap"
	NodeTypeSendTemplate = "send_template"
	NodeTypeAssignUser   = "assign_user"
	NodeTypeConditions   = "conditions"
)

// FlowNode is one step in an automation graph. Node IDs are unique only
// within their automation and stay stable across edits. Nodes carry no
// inherent order; order is derived entirely from edges.
type FlowNode struct {
	ID        string         `json:"id"   validate:"required"`
	Type      string         `json:"type" validate:"required,oneof=custom_reply user_reply time_gap send_template assign_user conditions"`
	Config    map[string]any `json:"config"`
	PositionX int            `json:"position_x"` // builder UI only
	PositionY int            `json:"position_y"` // builder UI only
}

// FlowEdge is a directed arc between two nodes of the same automation.
// For a conditions node, edge index 0 is the "condition met" branch and
// edge index 1, when present, the "condition not met" branch.
type FlowEdge struct {
	ID           string `json:"id"`
	SourceNodeID string `json:"source_node_id" validate:"required"`
	TargetNodeID string `json:"target_node_id" validate:"required"`
}

// Button is one interactive reply option offered by a user_reply node.
// WhatsApp caps interactive messages at three buttons with 20-char titles.
type Button struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title" validate:"required"`
}

const (
	MaxButtons        = 3
	MaxButtonTitleLen = 20
)
