package protocol

import (
	"errors"
	"fmt"

	"github.com/loomworks/loom/pkg/models"
)

var (
	// ErrInvalidNodeConfig indicates a node configuration is missing a
	// required field or carries a malformed value.
	ErrInvalidNodeConfig = errors.New("invalid node configuration")

	// ErrUnsupportedNodeType indicates a node type tag with no registered
	// catalog capability.
	ErrUnsupportedNodeType = errors.New("unsupported node type")
)

// CapabilityError wraps a downstream provider failure. It is propagated
// without retry; retries belong to the capability adapter itself.
type CapabilityError struct {
	NodeID   string
	NodeType models.NodeType
	Err      error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("capability %s failed at node %s: %v", e.NodeType, e.NodeID, e.Err)
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// NewCapabilityError wraps a provider failure with node context.
func NewCapabilityError(nodeID string, nodeType models.NodeType, err error) *CapabilityError {
	return &CapabilityError{NodeID: nodeID, NodeType: nodeType, Err: err}
}

// InvalidConfigError reports the missing or malformed configuration field.
func InvalidConfigError(field string) error {
	return fmt.Errorf("%w: missing or invalid field '%s'", ErrInvalidNodeConfig, field)
}
