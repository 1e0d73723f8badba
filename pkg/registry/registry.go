// Package registry maps node types to their handler factories and validates
// node config payloads against the factories' JSON schemas.
package registry

import (
	"fmt"
	"log/slog"

	"github.com/xeipuuv/gojsonschema"

	"github.com/zaplane/zaplane/pkg/models"
	"github.com/zaplane/zaplane/pkg/protocol"
)

type Registry struct {
	logger    *slog.Logger
	factories map[string]protocol.Factory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger,
		factories: make(map[string]protocol.Factory),
	}
}

func (r *Registry) Register(factory protocol.Factory) {
	r.factories[factory.ID()] = factory
}

// CreateHandler builds the handler for one node instance.
func (r *Registry) CreateHandler(node *models.FlowNode, deps protocol.Deps) (protocol.Handler, error) {
	factory, ok := r.factories[node.Type]
	if !ok {
		return nil, fmt.Errorf("node type '%s' not registered", node.Type)
	}

	return factory.Create(node, deps)
}

// ValidateConfig checks a node's config payload against its type's schema.
func (r *Registry) ValidateConfig(nodeType string, config map[string]any) error {
	factory, ok := r.factories[nodeType]
	if !ok {
		return fmt.Errorf("node type '%s' not registered", nodeType)
	}

	if config == nil {
		config = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(factory.Schema()),
		gojsonschema.NewGoLoader(config),
	)
	if err != nil {
		return fmt.Errorf("failed to validate %s config: %w", nodeType, err)
	}

	if !result.Valid() {
		for _, desc := range result.Errors() {
			return fmt.Errorf("invalid %s config: %s", nodeType, desc.String())
		}
	}

	return nil
}

// Types returns the registered node types.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.factories))
	for nodeType := range r.factories {
		types = append(types, nodeType)
	}

	return types
}
