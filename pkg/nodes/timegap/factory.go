package timegap

import (
	"github.com/zaplane/zaplane/pkg/models"
	"github.com/zaplane/zaplane/pkg/protocol"
)

type Factory struct{}

func (f *Factory) ID() string {
	return models.NodeTypeTimeGap
}

func (f *Factory) Create(node *models.FlowNode, deps protocol.Deps) (protocol.Handler, error) {
	return NewNode(node, deps)
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"delay": map[string]any{
				"type":        "number",
				"minimum":     1,
				"description": "Delay in seconds before the flow continues (default 60)",
			},
		},
	}
}
