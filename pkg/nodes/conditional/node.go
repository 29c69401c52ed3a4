// Package conditional provides the branching node. It evaluates the
// truthiness of a bound value and routes the walk to exactly one of two
// configured targets.
package conditional

import (
	"context"
	"reflect"
	"strconv"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/protocol"
)

// ConditionalNode routes execution to one of two branches.
type ConditionalNode struct {
	id          string
	condition   string
	trueBranch  string
	falseBranch string
}

// NewConditionalNode creates a new conditional node.
func NewConditionalNode(id string, config map[string]any) (*ConditionalNode, error) {
	condition, ok := config["condition"].(string)
	if !ok || condition == "" {
		return nil, protocol.InvalidConfigError("condition")
	}

	trueBranch, ok := config["true_branch"].(string)
	if !ok || trueBranch == "" {
		return nil, protocol.InvalidConfigError("true_branch")
	}

	falseBranch, ok := config["false_branch"].(string)
	if !ok || falseBranch == "" {
		return nil, protocol.InvalidConfigError("false_branch")
	}

	return &ConditionalNode{
		id:          id,
		condition:   condition,
		trueBranch:  trueBranch,
		falseBranch: falseBranch,
	}, nil
}

// ID returns the node ID.
func (n *ConditionalNode) ID() string {
	return n.id
}

// Type returns the node type.
func (n *ConditionalNode) Type() models.NodeType {
	return models.NodeTypeConditional
}

// Execute evaluates the condition binding and selects a branch. An absent
// binding evaluates false, so conditionals over not-yet-produced values fail
// closed instead of erroring.
func (n *ConditionalNode) Execute(_ context.Context, execCtx *models.ExecutionContext) (*models.NodeResult, error) {
	branch := n.falseBranch
	if Truthy(execCtx.Bindings[n.condition]) {
		branch = n.trueBranch
	}

	return &models.NodeResult{
		NodeID: n.id,
		Output: map[string]any{"branch": branch},
		Branch: branch,
	}, nil
}

// Truthy reports whether a bound value counts as true: true booleans,
// parseable-true or non-empty strings, nonzero numbers, and non-empty
// collections. Nil and absent values are false.
func Truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		parsed, err := strconv.ParseBool(v)
		if err == nil {
			return parsed
		}

		return v != ""
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case float32:
		return v != 0
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Ptr, reflect.Interface:
		return !rv.IsNil()
	default:
		return true
	}
}
