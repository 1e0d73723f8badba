package registry

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaplane/zaplane/pkg/models"
	"github.com/zaplane/zaplane/pkg/protocol"
)

func testRegistry() *Registry {
	return NewDefaultRegistry(slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

func TestDefaultRegistryTypes(t *testing.T) {
	r := testRegistry()

	assert.ElementsMatch(t, []string{
		models.NodeTypeCustomReply,
		models.NodeTypeUserReply,
		models.NodeTypeTimeGap,
		models.NodeTypeSendTemplate,
		models.NodeTypeAssignUser,
		models.NodeTypeConditions,
	}, r.Types())
}

func TestCreateHandler(t *testing.T) {
	r := testRegistry()

	handler, err := r.CreateHandler(&models.FlowNode{
		ID:     "n1",
		Type:   models.NodeTypeTimeGap,
		Config: map[string]any{"delay": float64(5)},
	}, protocol.Deps{})
	require.NoError(t, err)
	assert.Equal(t, models.NodeTypeTimeGap, handler.Type())
}

func TestCreateHandlerUnknownType(t *testing.T) {
	r := testRegistry()

	_, err := r.CreateHandler(&models.FlowNode{ID: "n1", Type: "teleport"}, protocol.Deps{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestCreateHandlerMissingConfig(t *testing.T) {
	r := testRegistry()

	_, err := r.CreateHandler(&models.FlowNode{
		ID:     "n1",
		Type:   models.NodeTypeCustomReply,
		Config: map[string]any{},
	}, protocol.Deps{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message")
}

func TestValidateConfig(t *testing.T) {
	r := testRegistry()

	err := r.ValidateConfig(models.NodeTypeCustomReply, map[string]any{"message": "hello"})
	assert.NoError(t, err)

	err = r.ValidateConfig(models.NodeTypeCustomReply, map[string]any{})
	assert.Error(t, err)

	err = r.ValidateConfig(models.NodeTypeConditions, map[string]any{
		"condition_type": "keyword",
		"keywords":       []any{"yes"},
	})
	assert.NoError(t, err)

	err = r.ValidateConfig(models.NodeTypeConditions, map[string]any{
		"condition_type": "telepathy",
		"keywords":       []any{"yes"},
	})
	assert.Error(t, err)
}
