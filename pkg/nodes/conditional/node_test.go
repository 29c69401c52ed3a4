package conditional

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/protocol"
)

func newNode(t *testing.T) *ConditionalNode {
	t.Helper()

	node, err := NewConditionalNode("cond-1", map[string]any{
		"condition":    "approved",
		"true_branch":  "publish",
		"false_branch": "review",
	})
	require.NoError(t, err)

	return node
}

func TestConditionalNodeSelectsTrueBranch(t *testing.T) {
	execCtx := models.NewExecutionContext("exec-1", "wf-1", "sess-1", "", map[string]any{
		"approved": true,
	})

	result, err := newNode(t).Execute(context.Background(), execCtx)
	require.NoError(t, err)

	assert.Equal(t, "publish", result.Branch)
}

func TestConditionalNodeSelectsFalseBranch(t *testing.T) {
	execCtx := models.NewExecutionContext("exec-1", "wf-1", "sess-1", "", map[string]any{
		"approved": false,
	})

	result, err := newNode(t).Execute(context.Background(), execCtx)
	require.NoError(t, err)

	assert.Equal(t, "review", result.Branch)
}

func TestConditionalNodeAbsentBindingIsFalse(t *testing.T) {
	execCtx := models.NewExecutionContext("exec-1", "wf-1", "sess-1", "", nil)

	result, err := newNode(t).Execute(context.Background(), execCtx)
	require.NoError(t, err)

	assert.Equal(t, "review", result.Branch)
}

func TestNewConditionalNodeRequiresBranches(t *testing.T) {
	_, err := NewConditionalNode("cond-1", map[string]any{"condition": "x", "true_branch": "a"})
	require.ErrorIs(t, err, protocol.ErrInvalidNodeConfig)
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{"nil", nil, false},
		{"true bool", true, true},
		{"false bool", false, false},
		{"parseable true string", "true", true},
		{"parseable false string", "false", false},
		{"empty string", "", false},
		{"non-empty string", "hello", true},
		{"zero int", 0, false},
		{"nonzero int", 7, true},
		{"zero float", 0.0, false},
		{"nonzero float", 0.5, true},
		{"empty slice", []any{}, false},
		{"non-empty slice", []any{1}, true},
		{"empty map", map[string]any{}, false},
		{"non-empty map", map[string]any{"a": 1}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Truthy(tc.value))
		})
	}
}
