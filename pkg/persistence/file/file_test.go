package file

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaplane/zaplane/pkg/models"
	"github.com/zaplane/zaplane/pkg/persistence"
)

func newTestPersistence(t *testing.T) *Persistence {
	t.Helper()

	return NewPersistence(t.TempDir())
}

func TestAutomationRepository(t *testing.T) {
	ctx := context.Background()
	p := newTestPersistence(t)
	repo := p.AutomationRepository()

	automation := &models.Automation{
		ID:        "auto-1",
		Name:      "Welcome flow",
		ChannelID: "channel-1",
		Trigger:   models.TriggerNewConversation,
		Status:    models.AutomationStatusActive,
		Nodes: []*models.FlowNode{
			{ID: "n1", Type: models.NodeTypeCustomReply, Config: map[string]any{"message": "hi"}},
		},
	}

	require.NoError(t, repo.Save(ctx, automation))

	loaded, err := repo.GetWithFlow(ctx, "auto-1")
	require.NoError(t, err)
	assert.Equal(t, "Welcome flow", loaded.Name)
	require.Len(t, loaded.Nodes, 1)
	assert.Equal(t, "hi", loaded.Nodes[0].Config["message"])

	_, err = repo.GetWithFlow(ctx, "ghost")
	assert.True(t, persistence.IsAutomationNotFound(err))
}

func TestAutomationRepositoryFindActive(t *testing.T) {
	ctx := context.Background()
	p := newTestPersistence(t)
	repo := p.AutomationRepository()

	require.NoError(t, repo.Save(ctx, &models.Automation{
		ID: "a1", ChannelID: "ch", Trigger: models.TriggerMessageReceived, Status: models.AutomationStatusActive,
	}))
	require.NoError(t, repo.Save(ctx, &models.Automation{
		ID: "a2", ChannelID: "ch", Trigger: models.TriggerMessageReceived, Status: models.AutomationStatusInactive,
	}))
	require.NoError(t, repo.Save(ctx, &models.Automation{
		ID: "a3", ChannelID: "other", Trigger: models.TriggerMessageReceived, Status: models.AutomationStatusActive,
	}))

	matches, err := repo.FindActive(ctx, "ch", models.TriggerMessageReceived)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a1", matches[0].ID)
}

func TestAutomationRepositoryIncrementExecutionCount(t *testing.T) {
	ctx := context.Background()
	p := newTestPersistence(t)
	repo := p.AutomationRepository()

	require.NoError(t, repo.Save(ctx, &models.Automation{ID: "a1", ChannelID: "ch"}))

	executedAt := time.Now().UTC()
	require.NoError(t, repo.IncrementExecutionCount(ctx, "a1", executedAt))
	require.NoError(t, repo.IncrementExecutionCount(ctx, "a1", executedAt))

	loaded, err := repo.GetWithFlow(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.ExecutionCount)
	require.NotNil(t, loaded.LastExecutedAt)
}

func TestExecutionRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	p := newTestPersistence(t)
	repo := p.ExecutionRepository()

	execution := &models.Execution{
		ID:             "exec-1",
		AutomationID:   "auto-1",
		ConversationID: "conv-1",
		Status:         models.ExecutionStatusRunning,
		CreatedAt:      time.Now().UTC(),
	}

	require.NoError(t, repo.Create(ctx, execution))

	require.NoError(t, repo.SetStatus(ctx, "exec-1", models.ExecutionStatusCompleted, "All nodes executed successfully"))

	loaded, err := repo.GetByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, loaded.Status)
	assert.Equal(t, "All nodes executed successfully", loaded.Reason)
	assert.NotNil(t, loaded.CompletedAt)

	_, err = repo.GetByID(ctx, "ghost")
	assert.True(t, persistence.IsExecutionNotFound(err))
}

func TestExecutionRepositoryResumeAt(t *testing.T) {
	ctx := context.Background()
	p := newTestPersistence(t)
	repo := p.ExecutionRepository()

	require.NoError(t, repo.Create(ctx, &models.Execution{
		ID: "exec-1", Status: models.ExecutionStatusPaused,
	}))
	require.NoError(t, repo.Create(ctx, &models.Execution{
		ID: "exec-2", Status: models.ExecutionStatusPaused,
	}))

	past := time.Now().UTC().Add(-time.Minute)
	future := time.Now().UTC().Add(time.Hour)

	require.NoError(t, repo.SetResumeAt(ctx, "exec-1", past, "n2", map[string]any{"name": "Ada"}))
	require.NoError(t, repo.SetResumeAt(ctx, "exec-2", future, "n5", nil))

	due, err := repo.ListDueResumptions(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "exec-1", due[0].ID)
	assert.Equal(t, "n2", due[0].ResumeNodeID)
	assert.Equal(t, map[string]any{"name": "Ada"}, due[0].ResumeVariables)

	require.NoError(t, repo.ClearResumeAt(ctx, "exec-1"))

	cleared, err := repo.GetByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Nil(t, cleared.ResumeVariables)

	due, err = repo.ListDueResumptions(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestExecutionRepositoryLogs(t *testing.T) {
	ctx := context.Background()
	p := newTestPersistence(t)
	repo := p.ExecutionRepository()

	require.NoError(t, repo.AppendLog(ctx, &models.ExecutionLogEntry{
		ID: "l1", ExecutionID: "exec-1", NodeID: "n1", Status: models.LogStatusRunning,
	}))
	require.NoError(t, repo.AppendLog(ctx, &models.ExecutionLogEntry{
		ID: "l2", ExecutionID: "exec-1", NodeID: "n1", Status: models.LogStatusCompleted,
	}))

	entries, err := repo.ListLogs(ctx, "exec-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.LogStatusRunning, entries[0].Status)
	assert.Equal(t, models.LogStatusCompleted, entries[1].Status)

	entries, err = repo.ListLogs(ctx, "no-logs")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPendingWaitRepository(t *testing.T) {
	ctx := context.Background()
	p := newTestPersistence(t)
	repo := p.PendingWaitRepository()

	wait := &models.PendingWait{
		ID:             "pw-1",
		ConversationID: "conv-1",
		ExecutionID:    "exec-1",
		NodeID:         "n3",
		SaveAs:         "answer",
		CreatedAt:      time.Now().UTC(),
	}

	require.NoError(t, repo.Save(ctx, wait))

	waits, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, waits, 1)
	assert.Equal(t, "exec-1", waits[0].ExecutionID)

	require.NoError(t, repo.Delete(ctx, "conv-1"))
	assert.ErrorIs(t, repo.Delete(ctx, "conv-1"), persistence.ErrPendingWaitNotFound)

	waits, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, waits)
}

func TestContactRepository(t *testing.T) {
	ctx := context.Background()
	p := newTestPersistence(t)
	repo := p.ContactRepository()

	require.NoError(t, repo.SaveContact(ctx, &models.Contact{ID: "c1", Phone: "+5511999990000", ChannelID: "ch"}))
	require.NoError(t, repo.SaveConversation(ctx, &models.Conversation{ID: "conv-1", ContactID: "c1", ChannelID: "ch"}))

	contact, err := repo.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "+5511999990000", contact.Phone)

	conversation, err := repo.GetConversation(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "c1", conversation.ContactID)

	_, err = repo.GetByID(ctx, "ghost")
	assert.ErrorIs(t, err, persistence.ErrContactNotFound)

	_, err = repo.GetConversation(ctx, "ghost")
	assert.True(t, persistence.IsConversationNotFound(err))
}

func TestHealthCheck(t *testing.T) {
	p := newTestPersistence(t)
	assert.NoError(t, p.HealthCheck(context.Background()))

	missing := NewPersistence("/nonexistent/zaplane-test-root")
	assert.Error(t, missing.HealthCheck(context.Background()))
}
