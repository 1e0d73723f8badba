// Package sendtemplate implements the node that sends a pre-approved
// WhatsApp message template with parameters.
package sendtemplate

import (
	"context"
	"errors"
	"fmt"

	"github.com/zaplane/zaplane/pkg/models"
	"github.com/zaplane/zaplane/pkg/protocol"
	"github.com/zaplane/zaplane/pkg/template"
)

type Node struct {
	id         string
	templateID string
	parameters []string
	deps       protocol.Deps
}

func NewNode(node *models.FlowNode, deps protocol.Deps) (*Node, error) {
	templateID, ok := node.Config["template_id"].(string)
	if !ok || templateID == "" {
		return nil, errors.New("missing required field 'template_id'")
	}

	var parameters []string

	switch raw := node.Config["parameters"].(type) {
	case []any:
		for _, p := range raw {
			if s, ok := p.(string); ok {
				parameters = append(parameters, s)
			}
		}
	case []string:
		parameters = append(parameters, raw...)
	}

	return &Node{
		id:         node.ID,
		templateID: templateID,
		parameters: parameters,
		deps:       deps,
	}, nil
}

func (n *Node) Type() string {
	return models.NodeTypeSendTemplate
}

func (n *Node) Execute(ctx context.Context, executionCtx *models.ExecutionContext) (*protocol.Outcome, error) {
	contact, err := n.deps.Contacts.GetByID(ctx, executionCtx.ContactID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve contact %s: %w", executionCtx.ContactID, err)
	}

	if contact.Phone == "" {
		return nil, fmt.Errorf("contact %s has no phone number", contact.ID)
	}

	// Template parameters may reference execution variables too.
	parameters := make([]string, len(n.parameters))
	for i, p := range n.parameters {
		parameters[i] = template.InterpolateWithContext(p, executionCtx)
	}

	if err := n.deps.Sender.SendTemplate(ctx, contact.Phone, n.templateID, parameters, contact.ChannelID); err != nil {
		return nil, fmt.Errorf("failed to send template %s: %w", n.templateID, err)
	}

	return &protocol.Outcome{
		Action: protocol.ActionTemplateSent,
		Output: map[string]any{
			"template_id":     n.templateID,
			"conversation_id": executionCtx.ConversationID,
		},
	}, nil
}
