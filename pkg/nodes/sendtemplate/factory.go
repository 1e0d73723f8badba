package sendtemplate

import (
	"github.com/zaplane/zaplane/pkg/models"
	"github.com/zaplane/zaplane/pkg/protocol"
)

type Factory struct{}

func (f *Factory) ID() string {
	return models.NodeTypeSendTemplate
}

func (f *Factory) Create(node *models.FlowNode, deps protocol.Deps) (protocol.Handler, error) {
	return NewNode(node, deps)
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"template_id": map[string]any{
				"type":      "string",
				"minLength": 1,
			},
			"parameters": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []any{"template_id"},
	}
}
