package conditions

import (
	"github.com/zaplane/zaplane/pkg/models"
	"github.com/zaplane/zaplane/pkg/protocol"
)

type Factory struct{}

func (f *Factory) ID() string {
	return models.NodeTypeConditions
}

func (f *Factory) Create(node *models.FlowNode, deps protocol.Deps) (protocol.Handler, error) {
	return NewNode(node, deps)
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"condition_type": map[string]any{
				"type": "string",
				"enum": []any{"keyword", "regex", "variable"},
			},
			"match_type": map[string]any{
				"type": "string",
				"enum": []any{"any", "all", "exact"},
			},
			"keywords": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []any{"condition_type", "keywords"},
	}
}
