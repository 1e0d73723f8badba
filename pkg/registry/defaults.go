package registry

import (
	"log/slog"

	"github.com/zaplane/zaplane/pkg/nodes/assignuser"
	"github.com/zaplane/zaplane/pkg/nodes/conditions"
	"github.com/zaplane/zaplane/pkg/nodes/customreply"
	"github.com/zaplane/zaplane/pkg/nodes/sendtemplate"
	"github.com/zaplane/zaplane/pkg/nodes/timegap"
	"github.com/zaplane/zaplane/pkg/nodes/userreply"
)

// NewDefaultRegistry returns a registry with every built-in node type.
func NewDefaultRegistry(logger *slog.Logger) *Registry {
	r := NewRegistry(logger)

	r.Register(&customreply.Factory{})
	r.Register(&userreply.Factory{})
	r.Register(&timegap.Factory{})
	r.Register(&sendtemplate.Factory{})
	r.Register(&assignuser.Factory{})
	r.Register(&conditions.Factory{})

	return r
}
