// Package models defines the core domain models for conversation automation.
package models

import "time"

// TriggerKind identifies the inbound event that starts an automation.
type TriggerKind string

const (
	TriggerNewConversation TriggerKind = "new_conversation"
	TriggerMessageReceived TriggerKind = "message_received"
)

// AutomationStatus represents the lifecycle state of an automation.
type AutomationStatus string

const (
	AutomationStatusActive   AutomationStatus = "active"
	AutomationStatusInactive AutomationStatus = "inactive"
)

// Automation is a channel-scoped flow definition built in the visual editor.
// The engine treats it as read-only apart from the execution counters.
type Automation struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"            validate:"required,min=1"`
	ChannelID      string           `json:"channel_id"      validate:"required"`
	Trigger        TriggerKind      `json:"trigger"         validate:"required,oneof=new_conversation message_received"`
	Status         AutomationStatus `json:"status"          validate:"required,oneof=active inactive"`
	Nodes          []*FlowNode      `json:"nodes"`
	Edges          []*FlowEdge      `json:"edges"`
	ExecutionCount int              `json:"execution_count"`
	LastExecutedAt *time.Time       `json:"last_executed_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

func (a *Automation) IsActive() bool {
	return a.Status == AutomationStatusActive
}
