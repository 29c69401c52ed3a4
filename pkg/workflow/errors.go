package workflow

import "errors"

var (
	// ErrNoInputNode indicates the workflow has no input node to start the
	// walk from.
	ErrNoInputNode = errors.New("workflow has no input node")

	// ErrMultipleInputNodes indicates the workflow declares more than one
	// input node, leaving the execution root ambiguous.
	ErrMultipleInputNodes = errors.New("workflow has multiple input nodes")

	// ErrStepLimitExceeded indicates the graph walk visited more nodes than
	// the safety ceiling allows.
	ErrStepLimitExceeded = errors.New("execution step limit exceeded")

	// ErrUnknownNode indicates a connection or branch referenced a node ID
	// that does not exist in the workflow.
	ErrUnknownNode = errors.New("unknown node referenced")

	// ErrInvalidWorkflow indicates the workflow definition failed save-time
	// validation.
	ErrInvalidWorkflow = errors.New("invalid workflow")
)
