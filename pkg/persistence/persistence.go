// Package persistence provides the storage abstraction layer for
// automations, executions and pending waits.
package persistence

import (
	"context"
	"time"

	"github.com/zaplane/zaplane/pkg/models"
)

// Persistence aggregates the repositories the engine consumes. The engine
// never talks to a concrete store directly.
type Persistence interface {
	AutomationRepository() AutomationRepository
	ExecutionRepository() ExecutionRepository
	PendingWaitRepository() PendingWaitRepository
	ContactRepository() ContactRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// AutomationRepository reads flow definitions and maintains their execution
// counters. Flow editing is owned by the CRUD layer, not the engine.
type AutomationRepository interface {
	GetWithFlow(ctx context.Context, id string) (*models.Automation, error)
	FindActive(ctx context.Context, channelID string, trigger models.TriggerKind) ([]*models.Automation, error)
	IncrementExecutionCount(ctx context.Context, id string, executedAt time.Time) error
	Save(ctx context.Context, automation *models.Automation) error
	List(ctx context.Context) ([]*models.Automation, error)
}

// ExecutionRepository persists execution rows and their append-only log.
type ExecutionRepository interface {
	Create(ctx context.Context, execution *models.Execution) error
	GetByID(ctx context.Context, id string) (*models.Execution, error)
	SetStatus(ctx context.Context, id string, status models.ExecutionStatus, reason string) error
	SetResumeAt(ctx context.Context, id string, resumeAt time.Time, nodeID string, variables map[string]any) error
	ClearResumeAt(ctx context.Context, id string) error
	ListDueResumptions(ctx context.Context, now time.Time) ([]*models.Execution, error)

	AppendLog(ctx context.Context, entry *models.ExecutionLogEntry) error
	ListLogs(ctx context.Context, executionID string) ([]*models.ExecutionLogEntry, error)
}

// PendingWaitRepository is the durable side of the pending-response
// registry: registered waits are written through here so a restart loses at
// most the in-memory index.
type PendingWaitRepository interface {
	Save(ctx context.Context, wait *models.PendingWait) error
	Delete(ctx context.Context, conversationID string) error
	List(ctx context.Context) ([]*models.PendingWait, error)
}

// ContactRepository is the engine's read path into collaborator-owned
// contact and conversation records.
type ContactRepository interface {
	GetByID(ctx context.Context, id string) (*models.Contact, error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	SaveContact(ctx context.Context, contact *models.Contact) error
	SaveConversation(ctx context.Context, conversation *models.Conversation) error
}
