package assignuser

import (
	"github.com/zaplane/zaplane/pkg/models"
	"github.com/zaplane/zaplane/pkg/protocol"
)

type Factory struct{}

func (f *Factory) ID() string {
	return models.NodeTypeAssignUser
}

func (f *Factory) Create(node *models.FlowNode, deps protocol.Deps) (protocol.Handler, error) {
	return NewNode(node, deps)
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"assignee_id": map[string]any{
				"type":      "string",
				"minLength": 1,
			},
		},
		"required": []any{"assignee_id"},
	}
}
