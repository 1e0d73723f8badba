package file

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"time"

	"github.com/zaplane/zaplane/pkg/models"
	"github.com/zaplane/zaplane/pkg/persistence"
)

const (
	executionCollection    = "executions"
	executionLogCollection = "execution_logs"
)

// ExecutionRepository stores one document per execution and one per
// execution log (a JSON array of entries, append-only).
type ExecutionRepository struct {
	store *store
}

func (r *ExecutionRepository) Create(_ context.Context, execution *models.Execution) error {
	return r.store.write(executionCollection, execution.ID, execution)
}

func (r *ExecutionRepository) GetByID(_ context.Context, id string) (*models.Execution, error) {
	var execution models.Execution

	err := r.store.read(executionCollection, id, &execution)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	return &execution, nil
}

func (r *ExecutionRepository) SetStatus(ctx context.Context, id string, status models.ExecutionStatus, reason string) error {
	execution, err := r.GetByID(ctx, id)
	if err != nil {
		return persistence.NewExecutionError("SetStatus", id, err)
	}

	now := time.Now().UTC()

	execution.Status = status
	execution.Reason = reason
	execution.UpdatedAt = now

	if status.Terminal() {
		execution.CompletedAt = &now
		execution.ResumeAt = nil
		execution.ResumeNodeID = ""
		execution.ResumeVariables = nil
	}

	return r.store.write(executionCollection, id, execution)
}

func (r *ExecutionRepository) SetResumeAt(ctx context.Context, id string, resumeAt time.Time, nodeID string, variables map[string]any) error {
	execution, err := r.GetByID(ctx, id)
	if err != nil {
		return persistence.NewExecutionError("SetResumeAt", id, err)
	}

	execution.ResumeAt = &resumeAt
	execution.ResumeNodeID = nodeID
	execution.ResumeVariables = variables
	execution.UpdatedAt = time.Now().UTC()

	return r.store.write(executionCollection, id, execution)
}

func (r *ExecutionRepository) ClearResumeAt(ctx context.Context, id string) error {
	execution, err := r.GetByID(ctx, id)
	if err != nil {
		return persistence.NewExecutionError("ClearResumeAt", id, err)
	}

	execution.ResumeAt = nil
	execution.ResumeNodeID = ""
	execution.ResumeVariables = nil
	execution.UpdatedAt = time.Now().UTC()

	return r.store.write(executionCollection, id, execution)
}

func (r *ExecutionRepository) ListDueResumptions(_ context.Context, now time.Time) ([]*models.Execution, error) {
	var due []*models.Execution

	err := r.store.readAll(executionCollection, func(data []byte) error {
		var execution models.Execution
		if err := json.Unmarshal(data, &execution); err != nil {
			return err
		}

		if execution.Status == models.ExecutionStatusPaused &&
			execution.ResumeAt != nil && !execution.ResumeAt.After(now) {
			due = append(due, &execution)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return due, nil
}

func (r *ExecutionRepository) AppendLog(_ context.Context, entry *models.ExecutionLogEntry) error {
	var entries []*models.ExecutionLogEntry

	err := r.store.read(executionLogCollection, entry.ExecutionID, &entries)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return persistence.NewExecutionError("AppendLog", entry.ExecutionID, err)
	}

	entries = append(entries, entry)

	return r.store.write(executionLogCollection, entry.ExecutionID, entries)
}

func (r *ExecutionRepository) ListLogs(_ context.Context, executionID string) ([]*models.ExecutionLogEntry, error) {
	var entries []*models.ExecutionLogEntry

	err := r.store.read(executionLogCollection, executionID, &entries)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, persistence.NewExecutionError("ListLogs", executionID, err)
	}

	return entries, nil
}
