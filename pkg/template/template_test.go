package template

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loomworks/loom/pkg/models"
)

func TestInterpolate_SimpleBinding(t *testing.T) {
	bindings := map[string]any{
		"name": "Ada",
		"age":  36,
	}

	assert.Equal(t, "Hello Ada", Interpolate("Hello {{name}}", bindings))
	assert.Equal(t, "Age: 36", Interpolate("Age: {{ age }}", bindings))
}

func TestInterpolate_UnresolvedLeftVerbatim(t *testing.T) {
	result := Interpolate("Summarize {{text}} for {{audience}}", map[string]any{
		"text": "hello world",
	})

	assert.Equal(t, "Summarize hello world for {{audience}}", result)
}

func TestInterpolate_IdempotentWithoutPlaceholders(t *testing.T) {
	inputs := []string{
		"",
		"plain text",
		"braces { but } no placeholder",
		"{{}}",
		"{{ 1bad }}",
	}

	for _, input := range inputs {
		assert.Equal(t, input, Interpolate(input, map[string]any{"x": "y"}))
	}
}

func TestInterpolate_ValueTypes(t *testing.T) {
	bindings := map[string]any{
		"flag":  true,
		"score": 0.75,
		"count": int64(12),
		"obj":   map[string]any{"a": 1.0},
		"list":  []any{"x", "y"},
		"none":  nil,
	}

	assert.Equal(t, "true", Interpolate("{{flag}}", bindings))
	assert.Equal(t, "0.75", Interpolate("{{score}}", bindings))
	assert.Equal(t, "12", Interpolate("{{count}}", bindings))
	assert.Equal(t, `{"a":1}`, Interpolate("{{obj}}", bindings))
	assert.Equal(t, `["x","y"]`, Interpolate("{{list}}", bindings))
	assert.Equal(t, "", Interpolate("{{none}}", bindings))
}

func TestInterpolate_DottedPath(t *testing.T) {
	bindings := map[string]any{
		"analysis": map[string]any{
			"sentiment": "positive",
		},
	}

	assert.Equal(t, "positive", Interpolate("{{analysis.sentiment}}", bindings))
	assert.Equal(t, "{{analysis.missing}}", Interpolate("{{analysis.missing}}", bindings))
}

func TestInterpolateWithContext(t *testing.T) {
	execCtx := models.NewExecutionContext("e1", "w1", "s1", "acct", map[string]any{
		"text": "hello world",
	})

	assert.Equal(t, "Summarize hello world", InterpolateWithContext("Summarize {{text}}", execCtx))
	assert.Equal(t, "Summarize {{text}}", InterpolateWithContext("Summarize {{text}}", nil))
}

func TestInterpolate_NilBindings(t *testing.T) {
	assert.Equal(t, "{{anything}}", Interpolate("{{anything}}", nil))
}
