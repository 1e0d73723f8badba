// Package events defines event types for execution lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries every engine event; consumers filter on the event_type
// metadata key.
const Topic = "zaplane.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionPausedEvent    EventType = "execution.paused"
	ExecutionResumedEvent   EventType = "execution.resumed"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"

	// MessageSentEvent feeds live inbox updates after an outbound send; no
	// subscriber means no-op.
	MessageSentEvent EventType = "message.sent"
)

type BaseEvent struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
	AutomationID   string    `json:"automation_id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
}

func NewBaseEvent(eventType EventType, automationID, conversationID string) BaseEvent {
	return BaseEvent{
		ID:             uuid.New().String(),
		Type:           eventType,
		Timestamp:      time.Now().UTC(),
		AutomationID:   automationID,
		ConversationID: conversationID,
	}
}

type ExecutionStarted struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	Trigger     string         `json:"trigger"`
	Payload     map[string]any `json:"payload,omitempty"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionPaused struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id"`
	PendingID   string `json:"pending_id"`
}

func (e ExecutionPaused) GetType() EventType {
	return ExecutionPausedEvent
}

type ExecutionResumed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id"`
	Reply       string `json:"reply"`
}

func (e ExecutionResumed) GetType() EventType {
	return ExecutionResumedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	Reason      string `json:"reason"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	Reason      string `json:"reason"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type MessageSent struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id"`
	Kind        string `json:"kind"` // text, template, interactive
}

func (e MessageSent) GetType() EventType {
	return MessageSentEvent
}
