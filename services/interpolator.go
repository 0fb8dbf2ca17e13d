package services

import (
	"encoding/json"
	"fmt"
	"regexp"
)

var rePlaceholder = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.-]+)\s*\}\}`)

// InterpolateTemplate parses a JSON payload skeleton and substitutes every
// {{name}} placeholder in its string values with the matching variable.
// Unmatched placeholders stay literally intact: unresolved variables are a
// caller configuration issue, not a runtime fault.
func InterpolateTemplate(template string, vars map[string]string) (string, error) {
	if template == "" {
		return "{}", nil
	}

	var payload interface{}
	if err := json.Unmarshal([]byte(template), &payload); err != nil {
		return "", fmt.Errorf("invalid payload template: %w", err)
	}

	interpolated := interpolateValue(payload, vars)

	out, err := json.Marshal(interpolated)
	if err != nil {
		return "", fmt.Errorf("failed to marshal interpolated payload: %w", err)
	}
	return string(out), nil
}

// interpolateValue recursively walks the JSON skeleton
func interpolateValue(value interface{}, vars map[string]string) interface{} {
	switch v := value.(type) {
	case string:
		return InterpolateString(v, vars)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, inner := range v {
			out[key] = interpolateValue(inner, vars)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, inner := range v {
			out[i] = interpolateValue(inner, vars)
		}
		return out
	default:
		// numbers, booleans, null pass through unchanged
		return v
	}
}

// InterpolateString substitutes {{name}} tokens in a single string
func InterpolateString(s string, vars map[string]string) string {
	return rePlaceholder.ReplaceAllStringFunc(s, func(match string) string {
		name := rePlaceholder.FindStringSubmatch(match)[1]
		if val, ok := vars[name]; ok {
			return val
		}
		return match
	})
}
