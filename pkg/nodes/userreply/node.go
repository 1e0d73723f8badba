// Package userreply implements the node that asks the contact a question and
// pauses the execution until a reply arrives.
package userreply

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/zaplane/zaplane/pkg/models"
	"github.com/zaplane/zaplane/pkg/protocol"
	"github.com/zaplane/zaplane/pkg/template"
)

type Node struct {
	id       string
	question string
	buttons  []models.Button
	saveAs   string
	deps     protocol.Deps
}

func NewNode(node *models.FlowNode, deps protocol.Deps) (*Node, error) {
	question, ok := node.Config["question"].(string)
	if !ok || question == "" {
		return nil, errors.New("missing required field 'question'")
	}

	buttons, err := parseButtons(node.Config["buttons"])
	if err != nil {
		return nil, err
	}

	saveAs, _ := node.Config["save_as"].(string)

	return &Node{
		id:       node.ID,
		question: question,
		buttons:  buttons,
		saveAs:   saveAs,
		deps:     deps,
	}, nil
}

func parseButtons(raw any) ([]models.Button, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, nil
	}

	if len(list) > models.MaxButtons {
		return nil, fmt.Errorf("at most %d buttons are supported, got %d", models.MaxButtons, len(list))
	}

	var buttons []models.Button

	for i, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("button %d is not an object", i)
		}

		text, _ := entry["text"].(string)
		if text == "" {
			return nil, fmt.Errorf("button %d has no text", i)
		}

		// WhatsApp rejects titles over 20 characters; clip rather than fail
		// so a long label degrades instead of breaking the flow.
		if len(text) > models.MaxButtonTitleLen {
			text = text[:models.MaxButtonTitleLen]
		}

		id, _ := entry["id"].(string)
		if id == "" {
			id = fmt.Sprintf("btn_%d", i+1)
		}

		buttons = append(buttons, models.Button{ID: id, Title: text})
	}

	return buttons, nil
}

func (n *Node) Type() string {
	return models.NodeTypeUserReply
}

func (n *Node) SaveAs() string {
	return n.saveAs
}

func (n *Node) Buttons() []models.Button {
	return n.buttons
}

// Execute sends the question and asks the engine to pause. When the
// interactive send fails, the question falls back to a numbered plain-text
// list; the fallback never fails the node.
func (n *Node) Execute(ctx context.Context, executionCtx *models.ExecutionContext) (*protocol.Outcome, error) {
	contact, err := n.deps.Contacts.GetByID(ctx, executionCtx.ContactID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve contact %s: %w", executionCtx.ContactID, err)
	}

	if contact.Phone == "" {
		return nil, fmt.Errorf("contact %s has no phone number", contact.ID)
	}

	question := template.InterpolateWithContext(n.question, executionCtx)

	if len(n.buttons) > 0 {
		_, err = n.deps.Sender.SendInteractiveButtons(ctx, contact.Phone, question, n.buttons, contact.ChannelID)
		if err != nil {
			if sendErr := n.deps.Sender.SendText(ctx, contact.Phone, numberedFallback(question, n.buttons), contact.ChannelID); sendErr != nil {
				return nil, fmt.Errorf("failed to send question: %w", sendErr)
			}
		}
	} else {
		if err := n.deps.Sender.SendText(ctx, contact.Phone, question, contact.ChannelID); err != nil {
			return nil, fmt.Errorf("failed to send question: %w", err)
		}
	}

	// The wait id is minted here so the waiting log entry carries it and
	// operators can correlate the log with the pending registry.
	pendingID := uuid.New().String()

	return &protocol.Outcome{
		Action: protocol.ActionExecutionPaused,
		Output: map[string]any{
			"question":        question,
			"buttons":         n.buttons,
			"save_as":         n.saveAs,
			"conversation_id": executionCtx.ConversationID,
			"pending_id":      pendingID,
		},
		Pause: &protocol.PauseRequest{
			PendingID: pendingID,
			Question:  question,
			Buttons:   n.buttons,
			SaveAs:    n.saveAs,
		},
	}, nil
}

func numberedFallback(question string, buttons []models.Button) string {
	var b strings.Builder

	b.WriteString(question)
	b.WriteString("\n")

	for i, button := range buttons {
		fmt.Fprintf(&b, "\n%d. %s", i+1, button.Title)
	}

	return b.String()
}
