package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaplane/zaplane/pkg/messaging"
	"github.com/zaplane/zaplane/pkg/models"
	"github.com/zaplane/zaplane/pkg/otelhelper"
	"github.com/zaplane/zaplane/pkg/persistence/file"
	"github.com/zaplane/zaplane/pkg/protocol"
	"github.com/zaplane/zaplane/pkg/registry"
)

type harness struct {
	persistence *file.Persistence
	engine      *Engine
	dispatcher  *Dispatcher
	sender      *messaging.FakeSender
	assigner    *messaging.FakeAssigner
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sender := &messaging.FakeSender{}
	assigner := &messaging.FakeAssigner{}

	deps := protocol.Deps{
		Sender:   sender,
		Assigner: assigner,
		Contacts: p.ContactRepository(),
	}

	eng := NewEngine(p, registry.NewDefaultRegistry(logger), deps, nil, otelhelper.NoopTracer(), logger)
	t.Cleanup(eng.Close)

	return &harness{
		persistence: p,
		engine:      eng,
		dispatcher:  NewDispatcher(eng, p.AutomationRepository(), logger),
		sender:      sender,
		assigner:    assigner,
	}
}

func (h *harness) seedConversation(t *testing.T) *models.Conversation {
	t.Helper()

	ctx := context.Background()
	contacts := h.persistence.ContactRepository()

	contact := &models.Contact{
		ID:        "contact-1",
		Name:      "Ada",
		Phone:     "+5511999990000",
		ChannelID: "channel-1",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, contacts.SaveContact(ctx, contact))

	conversation := &models.Conversation{
		ID:        "conversation-1",
		ContactID: contact.ID,
		ChannelID: contact.ChannelID,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, contacts.SaveConversation(ctx, conversation))

	return conversation
}

func (h *harness) saveAutomation(t *testing.T, automation *models.Automation) *models.Automation {
	t.Helper()

	require.NoError(t, h.persistence.AutomationRepository().Save(context.Background(), automation))

	return automation
}

func textNode(id, message string) *models.FlowNode {
	return &models.FlowNode{
		ID:     id,
		Type:   models.NodeTypeCustomReply,
		Config: map[string]any{"message": message},
	}
}

func edge(source, target string) *models.FlowEdge {
	return &models.FlowEdge{
		ID:           source + "->" + target,
		SourceNodeID: source,
		TargetNodeID: target,
	}
}

func newAutomation(trigger models.TriggerKind, nodes []*models.FlowNode, edges []*models.FlowEdge) *models.Automation {
	return &models.Automation{
		ID:        "automation-1",
		Name:      "Welcome flow",
		ChannelID: "channel-1",
		Trigger:   trigger,
		Status:    models.AutomationStatusActive,
		Nodes:     nodes,
		Edges:     edges,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func TestStartExecutionLinearFlowCompletes(t *testing.T) {
	h := newHarness(t)
	conversation := h.seedConversation(t)
	ctx := context.Background()

	automation := h.saveAutomation(t, newAutomation(models.TriggerNewConversation,
		[]*models.FlowNode{
			textNode("greet", "Hello {{name}}!"),
			textNode("follow", "How can we help?"),
		},
		[]*models.FlowEdge{edge("greet", "follow")},
	))

	execution, err := h.engine.StartExecution(ctx, automation, conversation.ID, conversation.ContactID,
		map[string]any{"name": "Ada"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, ReasonAllNodesDone, execution.Reason)

	sent := h.sender.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "Hello Ada!", sent[0].Text)
	assert.Equal(t, "How can we help?", sent[1].Text)

	logs, err := h.persistence.ExecutionRepository().ListLogs(ctx, execution.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 4) // running + completed per node
}

func TestStartExecutionIncrementsCounter(t *testing.T) {
	h := newHarness(t)
	conversation := h.seedConversation(t)
	ctx := context.Background()

	automation := h.saveAutomation(t, newAutomation(models.TriggerNewConversation,
		[]*models.FlowNode{textNode("greet", "Hi")}, nil))

	_, err := h.engine.StartExecution(ctx, automation, conversation.ID, conversation.ContactID, nil)
	require.NoError(t, err)

	stored, err := h.persistence.AutomationRepository().GetWithFlow(ctx, automation.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.ExecutionCount)
	assert.NotNil(t, stored.LastExecutedAt)
}

func TestStartExecutionEmptyFlow(t *testing.T) {
	h := newHarness(t)
	conversation := h.seedConversation(t)

	automation := h.saveAutomation(t, newAutomation(models.TriggerNewConversation, nil, nil))

	execution, err := h.engine.StartExecution(context.Background(), automation, conversation.ID, conversation.ContactID, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, ReasonNoStartNode, execution.Reason)
	assert.Empty(t, h.sender.Sent())
}

func TestStartExecutionAmbiguousEntry(t *testing.T) {
	h := newHarness(t)
	conversation := h.seedConversation(t)

	automation := h.saveAutomation(t, newAutomation(models.TriggerNewConversation,
		[]*models.FlowNode{textNode("a", "A"), textNode("b", "B")},
		nil, // two roots, no edges
	))

	execution, err := h.engine.StartExecution(context.Background(), automation, conversation.ID, conversation.ContactID, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, ReasonAmbiguousEntry, execution.Reason)
}

func TestStartExecutionDanglingEdge(t *testing.T) {
	h := newHarness(t)
	conversation := h.seedConversation(t)

	automation := h.saveAutomation(t, newAutomation(models.TriggerNewConversation,
		[]*models.FlowNode{textNode("greet", "Hi")},
		[]*models.FlowEdge{edge("greet", "ghost")},
	))

	execution, err := h.engine.StartExecution(context.Background(), automation, conversation.ID, conversation.ContactID, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Contains(t, execution.Reason, "ghost")
}

func TestStartExecutionNodeFailure(t *testing.T) {
	h := newHarness(t)
	conversation := h.seedConversation(t)
	h.sender.FailAll = true

	automation := h.saveAutomation(t, newAutomation(models.TriggerNewConversation,
		[]*models.FlowNode{textNode("greet", "Hi")}, nil))

	execution, err := h.engine.StartExecution(context.Background(), automation, conversation.ID, conversation.ContactID, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "greet")

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Contains(t, execution.Reason, "greet")

	logs, err := h.persistence.ExecutionRepository().ListLogs(context.Background(), execution.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, models.LogStatusFailed, logs[1].Status)
	assert.NotEmpty(t, logs[1].Error)
}

func TestUserReplyPausesAndRegistersWait(t *testing.T) {
	h := newHarness(t)
	conversation := h.seedConversation(t)
	ctx := context.Background()

	automation := h.saveAutomation(t, newAutomation(models.TriggerNewConversation,
		[]*models.FlowNode{
			{
				ID:   "ask",
				Type: models.NodeTypeUserReply,
				Config: map[string]any{
					"question": "Need help?",
					"save_as":  "answer",
					"buttons": []any{
						map[string]any{"id": "yes", "text": "Yes"},
						map[string]any{"id": "no", "text": "No"},
					},
				},
			},
		}, nil))

	execution, err := h.engine.StartExecution(ctx, automation, conversation.ID, conversation.ContactID, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusPaused, execution.Status)
	assert.True(t, h.engine.Pending().Has(conversation.ID))

	// The wait is written through to the durable store.
	waits, err := h.persistence.PendingWaitRepository().List(ctx)
	require.NoError(t, err)
	require.Len(t, waits, 1)
	assert.Equal(t, execution.ID, waits[0].ExecutionID)
	assert.Equal(t, "ask", waits[0].NodeID)
	assert.Equal(t, "answer", waits[0].SaveAs)

	logs, err := h.persistence.ExecutionRepository().ListLogs(ctx, execution.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, models.LogStatusWaitingForResponse, logs[1].Status)

	// The waiting entry names the wait so operators can correlate the two.
	assert.Equal(t, waits[0].ID, logs[1].Output["pending_id"])
}

func TestResumeFromReplySavesVariableAndContinues(t *testing.T) {
	h := newHarness(t)
	conversation := h.seedConversation(t)
	ctx := context.Background()

	automation := h.saveAutomation(t, newAutomation(models.TriggerNewConversation,
		[]*models.FlowNode{
			{
				ID:   "ask",
				Type: models.NodeTypeUserReply,
				Config: map[string]any{
					"question": "Sales or support?",
					"save_as":  "topic",
					"buttons": []any{
						map[string]any{"id": "sales", "text": "Sales"},
						map[string]any{"id": "support", "text": "Support"},
					},
				},
			},
			textNode("confirm", "Routing you to {{topic}} ({{topic_button_id}})."),
		},
		[]*models.FlowEdge{edge("ask", "confirm")},
	))

	execution, err := h.engine.StartExecution(ctx, automation, conversation.ID, conversation.ContactID, nil)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusPaused, execution.Status)

	err = h.dispatcher.HandleUserResponse(ctx, conversation.ID, models.InboundMessage{Text: "support"})
	require.NoError(t, err)

	stored, err := h.persistence.ExecutionRepository().GetByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, stored.Status)
	assert.Equal(t, ReasonAllNodesDone, stored.Reason)

	sent := h.sender.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "Routing you to Support (support).", sent[1].Text)

	assert.False(t, h.engine.Pending().Has(conversation.ID))

	// A second reply finds nothing waiting and is a no-op.
	require.NoError(t, h.dispatcher.HandleUserResponse(ctx, conversation.ID,
		models.InboundMessage{Text: "support"}))
	assert.Len(t, h.sender.Sent(), 2)
}

func TestResumeKeepsVariablesFromEarlierPauses(t *testing.T) {
	h := newHarness(t)
	conversation := h.seedConversation(t)
	ctx := context.Background()

	automation := h.saveAutomation(t, newAutomation(models.TriggerNewConversation,
		[]*models.FlowNode{
			{
				ID:   "ask-name",
				Type: models.NodeTypeUserReply,
				Config: map[string]any{
					"question": "What is your name?",
					"save_as":  "name",
				},
			},
			{
				ID:   "ask-city",
				Type: models.NodeTypeUserReply,
				Config: map[string]any{
					"question": "Which city are you in?",
					"save_as":  "city",
				},
			},
			textNode("greet", "Hi {{name}} from {{city}}."),
		},
		[]*models.FlowEdge{edge("ask-name", "ask-city"), edge("ask-city", "greet")},
	))

	execution, err := h.engine.StartExecution(ctx, automation, conversation.ID, conversation.ContactID, nil)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusPaused, execution.Status)

	require.NoError(t, h.dispatcher.HandleUserResponse(ctx, conversation.ID,
		models.InboundMessage{Text: "Ada"}))

	// Parked again on the second question; the wait carries the first answer.
	wait, ok := h.engine.Pending().Get(conversation.ID)
	require.True(t, ok)
	assert.Equal(t, "Ada", wait.Variables["name"])

	require.NoError(t, h.dispatcher.HandleUserResponse(ctx, conversation.ID,
		models.InboundMessage{Text: "Lisbon"}))

	stored, err := h.persistence.ExecutionRepository().GetByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, stored.Status)

	sent := h.sender.Sent()
	require.Len(t, sent, 3)
	assert.Equal(t, "Hi Ada from Lisbon.", sent[2].Text)
}

func TestTimeGapKeepsVariablesAcrossDelay(t *testing.T) {
	h := newHarness(t)
	conversation := h.seedConversation(t)
	ctx := context.Background()

	automation := h.saveAutomation(t, newAutomation(models.TriggerNewConversation,
		[]*models.FlowNode{
			{
				ID:   "ask",
				Type: models.NodeTypeUserReply,
				Config: map[string]any{
					"question": "What is your name?",
					"save_as":  "name",
				},
			},
			{
				ID:     "wait",
				Type:   models.NodeTypeTimeGap,
				Config: map[string]any{"delay": float64(3600)},
			},
			textNode("after", "Welcome back, {{name}}!"),
		},
		[]*models.FlowEdge{edge("ask", "wait"), edge("wait", "after")},
	))

	execution, err := h.engine.StartExecution(ctx, automation, conversation.ID, conversation.ContactID, nil)
	require.NoError(t, err)

	require.NoError(t, h.dispatcher.HandleUserResponse(ctx, conversation.ID,
		models.InboundMessage{Text: "Ada"}))

	repo := h.persistence.ExecutionRepository()

	stored, err := repo.GetByID(ctx, execution.ID)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusPaused, stored.Status)
	assert.Equal(t, "Ada", stored.ResumeVariables["name"])

	require.NoError(t, h.engine.ResumeDue(ctx, execution.ID))

	sent := h.sender.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "Welcome back, Ada!", sent[1].Text)
}

func TestResumeFailsWhenWaitingNodeWasRemoved(t *testing.T) {
	h := newHarness(t)
	conversation := h.seedConversation(t)
	ctx := context.Background()

	automation := h.saveAutomation(t, newAutomation(models.TriggerNewConversation,
		[]*models.FlowNode{
			{
				ID:   "ask",
				Type: models.NodeTypeUserReply,
				Config: map[string]any{
					"question": "Still there?",
					"save_as":  "answer",
				},
			},
			textNode("confirm", "Got it."),
		},
		[]*models.FlowEdge{edge("ask", "confirm")},
	))

	execution, err := h.engine.StartExecution(ctx, automation, conversation.ID, conversation.ContactID, nil)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusPaused, execution.Status)

	// The automation is edited while the run is parked: the waiting node is
	// gone from the saved flow.
	automation.Nodes = []*models.FlowNode{textNode("confirm", "Got it.")}
	automation.Edges = nil
	require.NoError(t, h.persistence.AutomationRepository().Save(ctx, automation))

	require.NoError(t, h.dispatcher.HandleUserResponse(ctx, conversation.ID,
		models.InboundMessage{Text: "yes"}))

	stored, err := h.persistence.ExecutionRepository().GetByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, stored.Status)
	assert.Contains(t, stored.Reason, "ask")

	// Nothing was sent after the question; the run did not silently complete.
	assert.Len(t, h.sender.Sent(), 1)
}

func TestConditionRoutesMetBranch(t *testing.T) {
	h := newHarness(t)
	conversation := h.seedConversation(t)
	ctx := context.Background()

	nodes := []*models.FlowNode{
		{
			ID:   "check",
			Type: models.NodeTypeConditions,
			Config: map[string]any{
				"condition_type": "keyword",
				"match_type":     "any",
				"keywords":       []any{"yes", "sure"},
			},
		},
		textNode("met", "Great!"),
		textNode("not-met", "No problem."),
	}
	edges := []*models.FlowEdge{edge("check", "met"), edge("check", "not-met")}

	automation := h.saveAutomation(t, newAutomation(models.TriggerMessageReceived, nodes, edges))

	execution, err := h.engine.StartExecution(ctx, automation, conversation.ID, conversation.ContactID,
		map[string]any{"message": "Yes please"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)

	sent := h.sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Great!", sent[0].Text)
}

func TestConditionRoutesNotMetBranch(t *testing.T) {
	h := newHarness(t)
	conversation := h.seedConversation(t)
	ctx := context.Background()

	nodes := []*models.FlowNode{
		{
			ID:   "check",
			Type: models.NodeTypeConditions,
			Config: map[string]any{
				"condition_type": "keyword",
				"keywords":       []any{"yes"},
			},
		},
		textNode("met", "Great!"),
		textNode("not-met", "No problem."),
	}
	edges := []*models.FlowEdge{edge("check", "met"), edge("check", "not-met")}

	automation := h.saveAutomation(t, newAutomation(models.TriggerMessageReceived, nodes, edges))

	execution, err := h.engine.StartExecution(ctx, automation, conversation.ID, conversation.ContactID,
		map[string]any{"message": "nope"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)

	sent := h.sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "No problem.", sent[0].Text)
}

func TestConditionNotMetWithoutAlternativePath(t *testing.T) {
	h := newHarness(t)
	conversation := h.seedConversation(t)

	nodes := []*models.FlowNode{
		{
			ID:   "check",
			Type: models.NodeTypeConditions,
			Config: map[string]any{
				"condition_type": "keyword",
				"keywords":       []any{"yes"},
			},
		},
		textNode("met", "Great!"),
	}
	edges := []*models.FlowEdge{edge("check", "met")}

	automation := h.saveAutomation(t, newAutomation(models.TriggerMessageReceived, nodes, edges))

	execution, err := h.engine.StartExecution(context.Background(), automation, conversation.ID, conversation.ContactID,
		map[string]any{"message": "nope"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, ReasonConditionNotMet, execution.Reason)
	assert.Empty(t, h.sender.Sent())
}

func TestPendingConflictFailsSecondExecution(t *testing.T) {
	h := newHarness(t)
	conversation := h.seedConversation(t)
	ctx := context.Background()

	ask := func(id string) *models.Automation {
		a := newAutomation(models.TriggerNewConversation,
			[]*models.FlowNode{
				{
					ID:     "ask",
					Type:   models.NodeTypeUserReply,
					Config: map[string]any{"question": "Still there?"},
				},
			}, nil)
		a.ID = id

		return a
	}

	first := h.saveAutomation(t, ask("automation-1"))
	second := h.saveAutomation(t, ask("automation-2"))

	firstExec, err := h.engine.StartExecution(ctx, first, conversation.ID, conversation.ContactID, nil)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusPaused, firstExec.Status)

	secondExec, err := h.engine.StartExecution(ctx, second, conversation.ID, conversation.ContactID, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, secondExec.Status)
	assert.Equal(t, ReasonPendingConflict, secondExec.Reason)

	// The original wait survives and still points at the first execution.
	waits, err := h.persistence.PendingWaitRepository().List(ctx)
	require.NoError(t, err)
	require.Len(t, waits, 1)
	assert.Equal(t, firstExec.ID, waits[0].ExecutionID)
}

func TestCancelFailsExecutionAndClearsWait(t *testing.T) {
	h := newHarness(t)
	conversation := h.seedConversation(t)
	ctx := context.Background()

	automation := h.saveAutomation(t, newAutomation(models.TriggerNewConversation,
		[]*models.FlowNode{
			{
				ID:     "ask",
				Type:   models.NodeTypeUserReply,
				Config: map[string]any{"question": "Still there?"},
			},
		}, nil))

	execution, err := h.engine.StartExecution(ctx, automation, conversation.ID, conversation.ContactID, nil)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusPaused, execution.Status)

	require.NoError(t, h.dispatcher.CancelExecution(ctx, conversation.ID))

	stored, err := h.persistence.ExecutionRepository().GetByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, stored.Status)
	assert.Equal(t, ReasonCancelled, stored.Reason)
	assert.False(t, h.engine.Pending().Has(conversation.ID))
}

func TestTimeGapPersistsResumePointAndResumes(t *testing.T) {
	h := newHarness(t)
	conversation := h.seedConversation(t)
	ctx := context.Background()

	automation := h.saveAutomation(t, newAutomation(models.TriggerNewConversation,
		[]*models.FlowNode{
			{
				ID:     "wait",
				Type:   models.NodeTypeTimeGap,
				Config: map[string]any{"delay": float64(3600)},
			},
			textNode("after", "Welcome back!"),
		},
		[]*models.FlowEdge{edge("wait", "after")},
	))

	execution, err := h.engine.StartExecution(ctx, automation, conversation.ID, conversation.ContactID, nil)
	require.NoError(t, err)

	require.Equal(t, models.ExecutionStatusPaused, execution.Status)

	stored, err := h.persistence.ExecutionRepository().GetByID(ctx, execution.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ResumeAt)
	assert.Equal(t, "wait", stored.ResumeNodeID)
	assert.Empty(t, h.sender.Sent())

	// Firing the continuation directly stands in for timer expiry.
	require.NoError(t, h.engine.ResumeDue(ctx, execution.ID))

	stored, err = h.persistence.ExecutionRepository().GetByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, stored.Status)
	assert.Nil(t, stored.ResumeAt)

	sent := h.sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Welcome back!", sent[0].Text)
}

func TestResumeDueIsIdempotent(t *testing.T) {
	h := newHarness(t)
	conversation := h.seedConversation(t)
	ctx := context.Background()

	automation := h.saveAutomation(t, newAutomation(models.TriggerNewConversation,
		[]*models.FlowNode{
			{
				ID:     "wait",
				Type:   models.NodeTypeTimeGap,
				Config: map[string]any{"delay": float64(3600)},
			},
			textNode("after", "Welcome back!"),
		},
		[]*models.FlowEdge{edge("wait", "after")},
	))

	execution, err := h.engine.StartExecution(ctx, automation, conversation.ID, conversation.ContactID, nil)
	require.NoError(t, err)

	require.NoError(t, h.engine.ResumeDue(ctx, execution.ID))
	require.NoError(t, h.engine.ResumeDue(ctx, execution.ID))

	// The second call found the execution already resumed and did nothing.
	assert.Len(t, h.sender.Sent(), 1)
}

func TestResolveReply(t *testing.T) {
	buttons := []models.Button{
		{ID: "yes", Title: "Yes please"},
		{ID: "no", Title: "No thanks"},
	}

	t.Run("exact label", func(t *testing.T) {
		button, text := ResolveReply(buttons, models.InboundMessage{Text: "no thanks"})
		require.NotNil(t, button)
		assert.Equal(t, "no", button.ID)
		assert.Equal(t, "No thanks", text)
	})

	t.Run("numeric index", func(t *testing.T) {
		button, text := ResolveReply(buttons, models.InboundMessage{Text: "1"})
		require.NotNil(t, button)
		assert.Equal(t, "yes", button.ID)
		assert.Equal(t, "Yes please", text)
	})

	t.Run("substring", func(t *testing.T) {
		button, _ := ResolveReply(buttons, models.InboundMessage{Text: "ok, yes please!"})
		require.NotNil(t, button)
		assert.Equal(t, "yes", button.ID)
	})

	t.Run("unmatched text passes through", func(t *testing.T) {
		button, text := ResolveReply(buttons, models.InboundMessage{Text: "maybe later"})
		assert.Nil(t, button)
		assert.Equal(t, "maybe later", text)
	})

	t.Run("out of range index passes through", func(t *testing.T) {
		button, text := ResolveReply(buttons, models.InboundMessage{Text: "7"})
		assert.Nil(t, button)
		assert.Equal(t, "7", text)
	})

	t.Run("button click by id", func(t *testing.T) {
		button, text := ResolveReply(buttons, models.InboundMessage{
			ButtonClick: &models.ButtonClick{ID: "no", Title: "No thanks"},
		})
		require.NotNil(t, button)
		assert.Equal(t, "no", button.ID)
		assert.Equal(t, "No thanks", text)
	})

	t.Run("no buttons", func(t *testing.T) {
		button, text := ResolveReply(nil, models.InboundMessage{Text: "hello"})
		assert.Nil(t, button)
		assert.Equal(t, "hello", text)
	})
}

func TestAssignUserNodeAssignsConversation(t *testing.T) {
	h := newHarness(t)
	conversation := h.seedConversation(t)

	automation := h.saveAutomation(t, newAutomation(models.TriggerNewConversation,
		[]*models.FlowNode{
			{
				ID:     "handoff",
				Type:   models.NodeTypeAssignUser,
				Config: map[string]any{"assignee_id": "agent-42"},
			},
		}, nil))

	execution, err := h.engine.StartExecution(context.Background(), automation, conversation.ID, conversation.ContactID, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, "agent-42", h.assigner.Assignments[conversation.ID])
}

// End-to-end: question with buttons, reply routed through a condition, and a
// branch-specific reply.
func TestFullConversationScenario(t *testing.T) {
	h := newHarness(t)
	conversation := h.seedConversation(t)
	ctx := context.Background()

	nodes := []*models.FlowNode{
		textNode("greet", "Hi {{name}}! Welcome."),
		{
			ID:   "ask",
			Type: models.NodeTypeUserReply,
			Config: map[string]any{
				"question": "Are you interested in our premium plan?",
				"save_as":  "interest",
				"buttons": []any{
					map[string]any{"id": "yes", "text": "Yes"},
					map[string]any{"id": "no", "text": "No"},
				},
			},
		},
		{
			ID:   "check",
			Type: models.NodeTypeConditions,
			Config: map[string]any{
				"condition_type": "keyword",
				"match_type":     "any",
				"keywords":       []any{"yes"},
			},
		},
		{
			ID:     "handoff",
			Type:   models.NodeTypeAssignUser,
			Config: map[string]any{"assignee_id": "sales-1"},
		},
		textNode("bye", "No worries, we are here if you change your mind."),
	}
	edges := []*models.FlowEdge{
		edge("greet", "ask"),
		edge("ask", "check"),
		edge("check", "handoff"),
		edge("check", "bye"),
	}

	automation := h.saveAutomation(t, newAutomation(models.TriggerNewConversation, nodes, edges))

	require.NoError(t, h.dispatcher.HandleNewConversation(ctx, conversation,
		models.InboundMessage{Text: "hello"}))

	// Paused on the question, wait registered.
	require.True(t, h.dispatcher.HasPendingExecution(conversation.ID))

	sent := h.sender.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "interactive", sent[1].Kind)

	// The contact taps the Yes button.
	require.NoError(t, h.dispatcher.HandleMessageReceived(ctx, conversation, models.InboundMessage{
		ButtonClick: &models.ButtonClick{ID: "yes", Title: "Yes"},
	}))

	assert.False(t, h.dispatcher.HasPendingExecution(conversation.ID))
	assert.Equal(t, "sales-1", h.assigner.Assignments[conversation.ID])

	waits := h.dispatcher.GetPendingExecutions()
	assert.Empty(t, waits)

	stored, err := h.persistence.AutomationRepository().GetWithFlow(ctx, automation.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.ExecutionCount)
}

func TestFullConversationScenarioDeclined(t *testing.T) {
	h := newHarness(t)
	conversation := h.seedConversation(t)
	ctx := context.Background()

	nodes := []*models.FlowNode{
		{
			ID:   "ask",
			Type: models.NodeTypeUserReply,
			Config: map[string]any{
				"question": "Continue?",
				"buttons": []any{
					map[string]any{"id": "yes", "text": "Yes"},
					map[string]any{"id": "no", "text": "No"},
				},
			},
		},
		{
			ID:   "check",
			Type: models.NodeTypeConditions,
			Config: map[string]any{
				"condition_type": "keyword",
				"match_type":     "any",
				"keywords":       []any{"yes"},
			},
		},
		textNode("proceed", "Great, proceeding!"),
		textNode("stop", "Okay, stopping."),
	}
	edges := []*models.FlowEdge{
		edge("ask", "check"),
		edge("check", "proceed"),
		edge("check", "stop"),
	}

	automation := h.saveAutomation(t, newAutomation(models.TriggerMessageReceived, nodes, edges))

	execution, err := h.engine.StartExecution(ctx, automation, conversation.ID, conversation.ContactID,
		map[string]any{"message": "hi"})
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusPaused, execution.Status)

	require.NoError(t, h.dispatcher.HandleUserResponse(ctx, conversation.ID,
		models.InboundMessage{Text: "nope"}))

	stored, err := h.persistence.ExecutionRepository().GetByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, stored.Status)

	sent := h.sender.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "Okay, stopping.", sent[1].Text)
}

func TestHandleMessageReceivedPrefersPendingWait(t *testing.T) {
	h := newHarness(t)
	conversation := h.seedConversation(t)
	ctx := context.Background()

	ask := newAutomation(models.TriggerNewConversation,
		[]*models.FlowNode{
			{
				ID:     "ask",
				Type:   models.NodeTypeUserReply,
				Config: map[string]any{"question": "Name?", "save_as": "name"},
			},
		}, nil)
	ask.ID = "ask-automation"
	h.saveAutomation(t, ask)

	reactive := newAutomation(models.TriggerMessageReceived,
		[]*models.FlowNode{textNode("auto", "Thanks for your message!")}, nil)
	reactive.ID = "reactive-automation"
	h.saveAutomation(t, reactive)

	require.NoError(t, h.dispatcher.HandleNewConversation(ctx, conversation, models.InboundMessage{}))
	require.True(t, h.dispatcher.HasPendingExecution(conversation.ID))

	require.NoError(t, h.dispatcher.HandleMessageReceived(ctx, conversation,
		models.InboundMessage{Text: "Ada"}))

	// The reply resumed the paused execution; the message_received
	// automation never fired.
	for _, msg := range h.sender.Sent() {
		assert.NotEqual(t, "Thanks for your message!", msg.Text)
	}

	assert.False(t, h.dispatcher.HasPendingExecution(conversation.ID))
}

func TestHandleNewConversationSkipsInactiveAutomations(t *testing.T) {
	h := newHarness(t)
	conversation := h.seedConversation(t)
	ctx := context.Background()

	active := newAutomation(models.TriggerNewConversation,
		[]*models.FlowNode{textNode("greet", "Hello!")}, nil)
	active.ID = "active-automation"
	h.saveAutomation(t, active)

	inactive := newAutomation(models.TriggerNewConversation,
		[]*models.FlowNode{textNode("greet", "Should not send")}, nil)
	inactive.ID = "inactive-automation"
	inactive.Status = models.AutomationStatusInactive
	h.saveAutomation(t, inactive)

	require.NoError(t, h.dispatcher.HandleNewConversation(ctx, conversation,
		models.InboundMessage{Text: "hi"}))

	sent := h.sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Hello!", sent[0].Text)
}

func TestRestoreReloadsWaitsAfterRestart(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	p := file.NewPersistence(dir)
	sender := &messaging.FakeSender{}
	deps := protocol.Deps{Sender: sender, Assigner: &messaging.FakeAssigner{}, Contacts: p.ContactRepository()}

	eng := NewEngine(p, registry.NewDefaultRegistry(logger), deps, nil, otelhelper.NoopTracer(), logger)

	ctx := context.Background()
	wait := &models.PendingWait{
		ID:             "wait-1",
		ConversationID: "conversation-1",
		ExecutionID:    "execution-1",
		AutomationID:   "automation-1",
		NodeID:         "ask",
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, eng.Pending().Register(ctx, wait))
	eng.Close()

	// A fresh engine over the same directory represents the restarted
	// process.
	restarted := NewEngine(file.NewPersistence(dir), registry.NewDefaultRegistry(logger), deps, nil, otelhelper.NoopTracer(), logger)
	t.Cleanup(restarted.Close)

	require.NoError(t, restarted.Restore(ctx))
	assert.True(t, restarted.Pending().Has("conversation-1"))
}
