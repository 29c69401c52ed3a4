// Package registry implements the node catalog: the mapping from a node type
// tag to the capability that executes it.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/xeipuuv/gojsonschema"

	"github.com/loomworks/loom/pkg/protocol"
)

type Registry struct {
	logger        *slog.Logger
	nodeFactories map[string]protocol.NodeFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:        logger,
		nodeFactories: make(map[string]protocol.NodeFactory),
	}
}

// RegisterNode adds a node factory to the catalog, keyed by its type tag.
func (r *Registry) RegisterNode(factory protocol.NodeFactory) {
	r.nodeFactories[factory.ID()] = factory
}

// CreateNode instantiates a node of the given type with its configuration.
func (r *Registry) CreateNode(ctx context.Context, nodeType, id string, config map[string]any) (protocol.Node, error) {
	factory, ok := r.nodeFactories[nodeType]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", protocol.ErrUnsupportedNodeType, nodeType)
	}

	return factory.Create(ctx, id, config)
}

// Factory returns the factory for a node type.
func (r *Registry) Factory(nodeType string) (protocol.NodeFactory, bool) {
	factory, ok := r.nodeFactories[nodeType]

	return factory, ok
}

// NodeTypes returns the registered type tags, sorted.
func (r *Registry) NodeTypes() []string {
	types := make([]string, 0, len(r.nodeFactories))
	for nodeType := range r.nodeFactories {
		types = append(types, nodeType)
	}

	sort.Strings(types)

	return types
}

// ValidateNodeConfig checks a configuration map against the node type's JSON
// schema. Called at workflow save time so execution never sees a malformed
// config.
func (r *Registry) ValidateNodeConfig(nodeType string, config map[string]any) error {
	factory, ok := r.nodeFactories[nodeType]
	if !ok {
		return fmt.Errorf("%w: '%s'", protocol.ErrUnsupportedNodeType, nodeType)
	}

	schema := factory.Schema()
	if schema == nil {
		return nil
	}

	if config == nil {
		config = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(config),
	)
	if err != nil {
		return fmt.Errorf("failed to validate config for node type '%s': %w", nodeType, err)
	}

	if !result.Valid() {
		for _, desc := range result.Errors() {
			return fmt.Errorf("%w: %s", protocol.ErrInvalidNodeConfig, desc.String())
		}
	}

	return nil
}
