package userreply

import (
	"github.com/zaplane/zaplane/pkg/models"
	"github.com/zaplane/zaplane/pkg/protocol"
)

type Factory struct{}

func (f *Factory) ID() string {
	return models.NodeTypeUserReply
}

func (f *Factory) Create(node *models.FlowNode, deps protocol.Deps) (protocol.Handler, error) {
	return NewNode(node, deps)
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question": map[string]any{
				"type":      "string",
				"minLength": 1,
			},
			"buttons": map[string]any{
				"type":     "array",
				"maxItems": models.MaxButtons,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":   map[string]any{"type": "string"},
						"text": map[string]any{"type": "string", "maxLength": models.MaxButtonTitleLen},
					},
					"required": []any{"text"},
				},
			},
			"save_as": map[string]any{
				"type":        "string",
				"description": "Variable name the contact's reply is stored under",
			},
		},
		"required": []any{"question"},
	}
}
