// Package conditions implements the branching node: it evaluates a
// declarative predicate against the latest inbound user text and routes the
// flow down the matching edge.
package conditions

import (
	"context"

	"github.com/zaplane/zaplane/pkg/condition"
	"github.com/zaplane/zaplane/pkg/models"
	"github.com/zaplane/zaplane/pkg/protocol"
)

type Node struct {
	id   string
	spec models.ConditionSpec
}

func NewNode(node *models.FlowNode, _ protocol.Deps) (*Node, error) {
	spec, err := models.ConditionSpecFromConfig(node.Config)
	if err != nil {
		return nil, err
	}

	return &Node{
		id:   node.ID,
		spec: spec,
	}, nil
}

func (n *Node) Type() string {
	return models.NodeTypeConditions
}

func (n *Node) Execute(_ context.Context, executionCtx *models.ExecutionContext) (*protocol.Outcome, error) {
	result := condition.Evaluate(n.spec, executionCtx.LastUserMessage, executionCtx.Variables)

	// Later nodes and the audit log both see what was decided and why.
	executionCtx.SetVariable("condition_result", result.Met)
	executionCtx.SetVariable("matched_keyword", result.MatchedKeyword)

	return &protocol.Outcome{
		Action: protocol.ActionConditionResult,
		Output: map[string]any{
			"condition_met":   result.Met,
			"matched_keyword": result.MatchedKeyword,
			"user_input":      executionCtx.LastUserMessage,
			"condition_type":  string(n.spec.Kind),
			"match_type":      string(n.spec.Match),
			"keywords":        n.spec.Keywords,
		},
		Branch: &protocol.BranchResult{Met: result.Met},
	}, nil
}
