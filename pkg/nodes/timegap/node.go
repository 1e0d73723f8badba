// Package timegap implements the node that delays the flow for a configured
// number of seconds. The node itself only reports the delay; scheduling and
// durable resumption are owned by the engine.
package timegap

import (
	"context"
	"time"

	"github.com/zaplane/zaplane/pkg/models"
	"github.com/zaplane/zaplane/pkg/protocol"
)

const DefaultDelay = 60 * time.Second

type Node struct {
	id    string
	delay time.Duration
}

func NewNode(node *models.FlowNode, _ protocol.Deps) (*Node, error) {
	delay := DefaultDelay

	switch v := node.Config["delay"].(type) {
	case float64:
		if v > 0 {
			delay = time.Duration(v) * time.Second
		}
	case int:
		if v > 0 {
			delay = time.Duration(v) * time.Second
		}
	}

	return &Node{
		id:    node.ID,
		delay: delay,
	}, nil
}

func (n *Node) Type() string {
	return models.NodeTypeTimeGap
}

func (n *Node) Delay() time.Duration {
	return n.delay
}

func (n *Node) Execute(_ context.Context, executionCtx *models.ExecutionContext) (*protocol.Outcome, error) {
	scheduledFor := time.Now().UTC().Add(n.delay)

	return &protocol.Outcome{
		Action: protocol.ActionDelayStarted,
		Output: map[string]any{
			"delay_seconds":   n.delay.Seconds(),
			"scheduled_for":   scheduledFor.Format(time.RFC3339),
			"conversation_id": executionCtx.ConversationID,
		},
		Delay: &protocol.DelayRequest{Duration: n.delay},
	}, nil
}
