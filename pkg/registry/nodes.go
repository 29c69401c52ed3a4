package registry

import (
	"github.com/loomworks/loom/pkg/ledger"
	"github.com/loomworks/loom/pkg/nodes/conditional"
	"github.com/loomworks/loom/pkg/nodes/imagegen"
	"github.com/loomworks/loom/pkg/nodes/input"
	"github.com/loomworks/loom/pkg/nodes/llm"
	"github.com/loomworks/loom/pkg/nodes/loop"
	"github.com/loomworks/loom/pkg/nodes/output"
	"github.com/loomworks/loom/pkg/nodes/textanalyzer"
	"github.com/loomworks/loom/pkg/nodes/videogen"
	"github.com/loomworks/loom/pkg/protocol"
	"github.com/loomworks/loom/pkg/reasoning"
)

// Deps carries the external capabilities the built-in nodes depend on.
// Everything is injected; the catalog holds no global clients.
type Deps struct {
	Reasoning reasoning.Provider
	Ledger    *ledger.Ledger
	Image     protocol.GenerationProvider
	Video     protocol.GenerationProvider
	Analysis  protocol.AnalysisProvider
}

// RegisterDefaultNodes registers all built-in node factories with the registry.
func (r *Registry) RegisterDefaultNodes(deps Deps) {
	r.RegisterNode(input.NewNodeFactory())
	r.RegisterNode(output.NewNodeFactory())
	r.RegisterNode(llm.NewNodeFactory(deps.Reasoning, deps.Ledger))
	r.RegisterNode(imagegen.NewNodeFactory(deps.Image, deps.Ledger))
	r.RegisterNode(videogen.NewNodeFactory(deps.Video, deps.Ledger))
	r.RegisterNode(textanalyzer.NewNodeFactory(deps.Analysis))
	r.RegisterNode(conditional.NewNodeFactory())
	r.RegisterNode(loop.NewNodeFactory())
}
