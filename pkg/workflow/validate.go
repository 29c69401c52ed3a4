package workflow

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/registry"
)

var structValidator = validator.New()

// Validate checks a workflow definition before it is saved: struct
// constraints, node ID uniqueness, a single input root, connection and
// branch references, and each node config against its type's schema.
// Execution never sees a workflow this did not accept.
func Validate(wf *models.Workflow, reg *registry.Registry) error {
	err := structValidator.Struct(wf)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidWorkflow, err)
	}

	if len(wf.Nodes) == 0 {
		return fmt.Errorf("%w: workflow has no nodes", ErrInvalidWorkflow)
	}

	nodeIDs := make(map[string]bool, len(wf.Nodes))

	for _, node := range wf.Nodes {
		if node.ID == "" {
			return fmt.Errorf("%w: found node with empty ID", ErrInvalidWorkflow)
		}

		if nodeIDs[node.ID] {
			return fmt.Errorf("%w: duplicate node ID: %s", ErrInvalidWorkflow, node.ID)
		}

		nodeIDs[node.ID] = true
	}

	_, err = inputNode(wf)
	if err != nil {
		return err
	}

	for _, conn := range wf.Connections {
		if !nodeIDs[conn.SourceNode] {
			return fmt.Errorf("%w: connection %s references source '%s'", ErrUnknownNode, conn.ID, conn.SourceNode)
		}

		if !nodeIDs[conn.TargetNode] {
			return fmt.Errorf("%w: connection %s references target '%s'", ErrUnknownNode, conn.ID, conn.TargetNode)
		}
	}

	for _, node := range wf.Nodes {
		err := reg.ValidateNodeConfig(string(node.Type), node.Config)
		if err != nil {
			return fmt.Errorf("node '%s': %w", node.ID, err)
		}

		err = validateBranchTargets(node, nodeIDs)
		if err != nil {
			return err
		}
	}

	return nil
}

// validateBranchTargets checks that branch-routing configs point at nodes
// that exist, so a walk can never jump off the graph.
func validateBranchTargets(node *models.WorkflowNode, nodeIDs map[string]bool) error {
	var keys []string

	switch node.Type {
	case models.NodeTypeConditional:
		keys = []string{"true_branch", "false_branch"}
	case models.NodeTypeLoop:
		keys = []string{"body", "exit"}
	default:
		return nil
	}

	for _, key := range keys {
		target, _ := node.Config[key].(string)
		if target == "" {
			continue
		}

		if !nodeIDs[target] {
			return fmt.Errorf("%w: node '%s' %s targets '%s'", ErrUnknownNode, node.ID, key, target)
		}
	}

	return nil
}
