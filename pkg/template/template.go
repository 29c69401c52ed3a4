// Package template resolves {{var}} placeholders in node configuration
// against the current execution's variable bindings.
package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/loomworks/loom/pkg/models"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*(?:\.[a-zA-Z0-9_]+)*)\s*\}\}`)

// Interpolate replaces every {{identifier}} occurrence with the stringified
// binding value. Unresolved identifiers are left verbatim so that partially
// bound templates stay diagnosable. Interpolation never fails and is
// idempotent on inputs without placeholders.
func Interpolate(templateStr string, bindings map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(templateStr, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]

		value, ok := lookup(bindings, key)
		if !ok {
			return match
		}

		return stringify(value)
	})
}

// InterpolateWithContext renders a template against an execution's bindings.
func InterpolateWithContext(templateStr string, execCtx *models.ExecutionContext) string {
	if execCtx == nil {
		return templateStr
	}

	return Interpolate(templateStr, execCtx.Bindings)
}

// lookup resolves a binding key, trying the literal key first and then a
// dotted path into nested maps.
func lookup(bindings map[string]any, key string) (any, bool) {
	if value, ok := bindings[key]; ok {
		return value, true
	}

	if !strings.Contains(key, ".") {
		return nil, false
	}

	parts := strings.Split(key, ".")

	var current any = bindings
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case nil:
		return ""
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err == nil {
			return string(encoded)
		}

		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
