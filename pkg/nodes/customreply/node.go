// Package customreply implements the node that sends a plain text reply,
// with variable interpolation, to the conversation's contact.
package customreply

import (
	"context"
	"errors"
	"fmt"

	"github.com/zaplane/zaplane/pkg/models"
	"github.com/zaplane/zaplane/pkg/protocol"
	"github.com/zaplane/zaplane/pkg/template"
)

type Node struct {
	id      string
	message string
	deps    protocol.Deps
}

func NewNode(node *models.FlowNode, deps protocol.Deps) (*Node, error) {
	message, ok := node.Config["message"].(string)
	if !ok || message == "" {
		return nil, errors.New("missing required field 'message'")
	}

	return &Node{
		id:      node.ID,
		message: message,
		deps:    deps,
	}, nil
}

func (n *Node) Type() string {
	return models.NodeTypeCustomReply
}

func (n *Node) Execute(ctx context.Context, executionCtx *models.ExecutionContext) (*protocol.Outcome, error) {
	contact, err := n.deps.Contacts.GetByID(ctx, executionCtx.ContactID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve contact %s: %w", executionCtx.ContactID, err)
	}

	if contact.Phone == "" {
		return nil, fmt.Errorf("contact %s has no phone number", contact.ID)
	}

	message := template.InterpolateWithContext(n.message, executionCtx)

	if err := n.deps.Sender.SendText(ctx, contact.Phone, message, contact.ChannelID); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	return &protocol.Outcome{
		Action: protocol.ActionMessageSent,
		Output: map[string]any{
			"message":         message,
			"conversation_id": executionCtx.ConversationID,
		},
	}, nil
}
