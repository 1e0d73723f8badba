package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/zaplane/zaplane/pkg/models"
	"github.com/zaplane/zaplane/pkg/persistence"
)

// Dispatcher routes inbound conversation events to the engine: it decides
// whether a message resumes a paused execution or triggers new ones.
type Dispatcher struct {
	logger      *slog.Logger
	engine      *Engine
	automations persistence.AutomationRepository
}

func NewDispatcher(engine *Engine, automations persistence.AutomationRepository, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		logger:      logger.With("module", "dispatcher"),
		engine:      engine,
		automations: automations,
	}
}

// HandleNewConversation starts every active new_conversation automation on
// the conversation's channel. Automations run one after another in the order
// the store returns them; a failed start does not block the rest.
func (d *Dispatcher) HandleNewConversation(ctx context.Context, conversation *models.Conversation, msg models.InboundMessage) error {
	return d.trigger(ctx, conversation, msg, models.TriggerNewConversation)
}

// HandleMessageReceived routes an inbound message on an existing
// conversation. A pending wait always wins: the message resumes the paused
// execution and never triggers new automations.
func (d *Dispatcher) HandleMessageReceived(ctx context.Context, conversation *models.Conversation, msg models.InboundMessage) error {
	if d.engine.Pending().Has(conversation.ID) {
		return d.HandleUserResponse(ctx, conversation.ID, msg)
	}

	return d.trigger(ctx, conversation, msg, models.TriggerMessageReceived)
}

// HandleUserResponse resumes the execution waiting on the conversation. A
// reply with nothing waiting (already resumed, timed out or cancelled) is a
// logged no-op, not an error.
func (d *Dispatcher) HandleUserResponse(ctx context.Context, conversationID string, msg models.InboundMessage) error {
	wait, err := d.engine.Pending().Take(ctx, conversationID)
	if err != nil {
		if errors.Is(err, persistence.ErrPendingWaitNotFound) {
			d.logger.InfoContext(ctx, "No pending execution found",
				"conversation_id", conversationID)

			return nil
		}

		return err
	}

	return d.engine.ResumeFromReply(ctx, wait, msg)
}

// CancelExecution aborts the pending wait for a conversation.
func (d *Dispatcher) CancelExecution(ctx context.Context, conversationID string) error {
	return d.engine.Cancel(ctx, conversationID)
}

// HasPendingExecution reports whether the conversation has a paused
// execution waiting on a reply.
func (d *Dispatcher) HasPendingExecution(conversationID string) bool {
	return d.engine.Pending().Has(conversationID)
}

// GetPendingExecutions returns every registered pending wait.
func (d *Dispatcher) GetPendingExecutions() []*models.PendingWait {
	return d.engine.Pending().List()
}

func (d *Dispatcher) trigger(ctx context.Context, conversation *models.Conversation, msg models.InboundMessage, kind models.TriggerKind) error {
	automations, err := d.automations.FindActive(ctx, conversation.ChannelID, kind)
	if err != nil {
		return err
	}

	if len(automations) == 0 {
		return nil
	}

	payload := triggerPayload(conversation, msg)

	for _, automation := range automations {
		if len(automation.Nodes) == 0 {
			d.logger.WarnContext(ctx, "Skipping automation with no nodes",
				"automation_id", automation.ID)

			continue
		}

		if _, err := d.engine.StartExecution(ctx, automation, conversation.ID, conversation.ContactID, payload); err != nil {
			d.logger.ErrorContext(ctx, "Failed to start execution",
				"automation_id", automation.ID,
				"conversation_id", conversation.ID,
				"error", err)
		}
	}

	return nil
}

func triggerPayload(conversation *models.Conversation, msg models.InboundMessage) map[string]any {
	payload := map[string]any{
		"channel_id": conversation.ChannelID,
	}

	switch {
	case msg.ButtonClick != nil:
		payload["message"] = msg.ButtonClick.Title
		payload["button_id"] = msg.ButtonClick.ID
	case msg.Text != "":
		payload["message"] = msg.Text
	}

	return payload
}
