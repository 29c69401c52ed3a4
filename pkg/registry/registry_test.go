package registry

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/pkg/protocol"
	"github.com/loomworks/loom/pkg/reasoning"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()

	r := NewRegistry(slog.Default())
	r.RegisterDefaultNodes(Deps{
		Reasoning: reasoning.NewScriptedProvider(reasoning.TextResponse("ok", 1, 1)),
	})

	return r
}

func TestRegistryNodeTypes(t *testing.T) {
	r := testRegistry(t)

	assert.Equal(t, []string{
		"conditional",
		"image_generator",
		"input",
		"llm",
		"loop",
		"output",
		"text_analyzer",
		"video_generator",
	}, r.NodeTypes())
}

func TestRegistryCreateNode(t *testing.T) {
	r := testRegistry(t)

	node, err := r.CreateNode(context.Background(), "llm", "llm-1", map[string]any{"prompt": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "llm-1", node.ID())
}

func TestRegistryUnknownNodeType(t *testing.T) {
	r := testRegistry(t)

	_, err := r.CreateNode(context.Background(), "webhook", "n-1", nil)
	require.ErrorIs(t, err, protocol.ErrUnsupportedNodeType)
}

func TestRegistryValidateNodeConfig(t *testing.T) {
	r := testRegistry(t)

	err := r.ValidateNodeConfig("conditional", map[string]any{
		"condition":    "ready",
		"true_branch":  "a",
		"false_branch": "b",
	})
	require.NoError(t, err)

	err = r.ValidateNodeConfig("conditional", map[string]any{"condition": "ready"})
	require.ErrorIs(t, err, protocol.ErrInvalidNodeConfig)

	err = r.ValidateNodeConfig("webhook", nil)
	require.ErrorIs(t, err, protocol.ErrUnsupportedNodeType)
}
