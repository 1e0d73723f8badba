// Package template substitutes {{key}} placeholders in message text using an
// execution's variable bag.
package template

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/zaplane/zaplane/pkg/models"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.-]+)\s*\}\}`)

// Interpolate replaces every {{key}} in s with the matching variable value.
// Unresolved keys are left literally in place; interpolation never fails.
func Interpolate(s string, vars map[string]any) string {
	if s == "" || len(vars) == 0 {
		return s
	}

	return placeholderRe.ReplaceAllStringFunc(s, func(match string) string {
		key := placeholderRe.FindStringSubmatch(match)[1]

		value, ok := vars[key]
		if !ok || value == nil {
			return match
		}

		return stringify(value)
	})
}

// InterpolateWithContext renders s against the execution's variable bag.
func InterpolateWithContext(s string, executionCtx *models.ExecutionContext) string {
	if executionCtx == nil {
		return s
	}

	return Interpolate(s, executionCtx.Variables)
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case float64:
		// JSON round-trips put whole numbers here; render 42, not 42.000000.
		s := fmt.Sprintf("%f", v)
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")

		return s
	default:
		return fmt.Sprintf("%v", v)
	}
}
