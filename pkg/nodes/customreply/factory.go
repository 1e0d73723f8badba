package customreply

import (
	"github.com/zaplane/zaplane/pkg/models"
	"github.com/zaplane/zaplane/pkg/protocol"
)

type Factory struct{}

func (f *Factory) ID() string {
	return models.NodeTypeCustomReply
}

func (f *Factory) Create(node *models.FlowNode, deps protocol.Deps) (protocol.Handler, error) {
	return NewNode(node, deps)
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Text to send; {{key}} placeholders are interpolated",
			},
		},
		"required": []any{"message"},
	}
}
