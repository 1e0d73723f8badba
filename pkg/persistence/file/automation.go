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

const automationCollection = "automations"

// AutomationRepository stores one JSON document per automation, flow
// included.
type AutomationRepository struct {
	store *store
}

func (r *AutomationRepository) GetWithFlow(_ context.Context, id string) (*models.Automation, error) {
	var automation models.Automation

	err := r.store.read(automationCollection, id, &automation)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewAutomationError("GetWithFlow", id, persistence.ErrAutomationNotFound)
		}

		return nil, persistence.NewAutomationError("GetWithFlow", id, err)
	}

	return &automation, nil
}

func (r *AutomationRepository) FindActive(_ context.Context, channelID string, trigger models.TriggerKind) ([]*models.Automation, error) {
	var matches []*models.Automation

	err := r.store.readAll(automationCollection, func(data []byte) error {
		var automation models.Automation
		if err := json.Unmarshal(data, &automation); err != nil {
			return err
		}

		if automation.ChannelID == channelID && automation.Trigger == trigger && automation.IsActive() {
			matches = append(matches, &automation)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return matches, nil
}

func (r *AutomationRepository) IncrementExecutionCount(ctx context.Context, id string, executedAt time.Time) error {
	automation, err := r.GetWithFlow(ctx, id)
	if err != nil {
		return persistence.NewAutomationError("IncrementExecutionCount", id, err)
	}

	automation.ExecutionCount++
	automation.LastExecutedAt = &executedAt
	automation.UpdatedAt = executedAt

	return r.store.write(automationCollection, id, automation)
}

func (r *AutomationRepository) Save(_ context.Context, automation *models.Automation) error {
	return r.store.write(automationCollection, automation.ID, automation)
}

func (r *AutomationRepository) List(_ context.Context) ([]*models.Automation, error) {
	var automations []*models.Automation

	err := r.store.readAll(automationCollection, func(data []byte) error {
		var automation models.Automation
		if err := json.Unmarshal(data, &automation); err != nil {
			return err
		}

		automations = append(automations, &automation)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return automations, nil
}
