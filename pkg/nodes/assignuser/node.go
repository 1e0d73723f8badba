// Package assignuser implements the node that hands the conversation to a
// human agent.
package assignuser

import (
	"context"
	"errors"
	"fmt"

	"github.com/zaplane/zaplane/pkg/models"
	"github.com/zaplane/zaplane/pkg/protocol"
)

type Node struct {
	id         string
	assigneeID string
	deps       protocol.Deps
}

func NewNode(node *models.FlowNode, deps protocol.Deps) (*Node, error) {
	assigneeID, ok := node.Config["assignee_id"].(string)
	if !ok || assigneeID == "" {
		return nil, errors.New("missing required field 'assignee_id'")
	}

	return &Node{
		id:         node.ID,
		assigneeID: assigneeID,
		deps:       deps,
	}, nil
}

func (n *Node) Type() string {
	return models.NodeTypeAssignUser
}

func (n *Node) Execute(ctx context.Context, executionCtx *models.ExecutionContext) (*protocol.Outcome, error) {
	if err := n.deps.Assigner.AssignConversation(ctx, executionCtx.ConversationID, n.assigneeID); err != nil {
		return nil, fmt.Errorf("failed to assign conversation to %s: %w", n.assigneeID, err)
	}

	return &protocol.Outcome{
		Action: protocol.ActionUserAssigned,
		Output: map[string]any{
			"assignee_id":     n.assigneeID,
			"conversation_id": executionCtx.ConversationID,
		},
	}, nil
}
