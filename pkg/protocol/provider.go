package protocol

import "context"

// GenerationProvider produces an asset (image, video) for a prompt and
// returns a reference to it. Implementations own their own retry policy; the
// execution core never retries.
type GenerationProvider interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// AnalysisProvider runs a structured analysis over a piece of text.
type AnalysisProvider interface {
	Analyze(ctx context.Context, text string) (map[string]any, error)
}
