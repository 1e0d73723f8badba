// Package condition evaluates the declarative predicates carried by
// conditions nodes against the latest inbound user text.
package condition

import (
	"regexp"
	"strings"

	"github.com/zaplane/zaplane/pkg/models"
	"github.com/zaplane/zaplane/pkg/template"
)

// Result is the outcome of one evaluation. MatchedKeyword holds the first
// token that satisfied a keyword or regex condition.
type Result struct {
	Met            bool   `json:"condition_met"`
	MatchedKeyword string `json:"matched_keyword,omitempty"`
}

// Evaluate runs spec against the user input. It is a pure function and never
// fails: an invalid regex or malformed expression evaluates to no-match.
func Evaluate(spec models.ConditionSpec, input string, vars map[string]any) Result {
	switch spec.Kind {
	case models.ConditionKeyword:
		return evaluateKeyword(spec, input)
	case models.ConditionRegex:
		return evaluateRegex(spec, input)
	case models.ConditionVariable:
		return evaluateVariable(spec, vars)
	default:
		return Result{}
	}
}

func evaluateKeyword(spec models.ConditionSpec, input string) Result {
	normalized := strings.ToLower(strings.TrimSpace(input))

	switch spec.Match {
	case models.MatchAll:
		matched := ""

		for _, kw := range spec.Keywords {
			if !strings.Contains(normalized, strings.ToLower(kw)) {
				return Result{}
			}

			if matched == "" {
				matched = kw
			}
		}

		if matched == "" {
			return Result{}
		}

		return Result{Met: true, MatchedKeyword: matched}
	case models.MatchExact:
		for _, kw := range spec.Keywords {
			if normalized == strings.ToLower(strings.TrimSpace(kw)) {
				return Result{Met: true, MatchedKeyword: kw}
			}
		}

		return Result{}
	default: // any
		for _, kw := range spec.Keywords {
			if strings.Contains(normalized, strings.ToLower(kw)) {
				return Result{Met: true, MatchedKeyword: kw}
			}
		}

		return Result{}
	}
}

func evaluateRegex(spec models.ConditionSpec, input string) Result {
	if len(spec.Keywords) == 0 {
		return Result{}
	}

	re, err := regexp.Compile("(?i)" + spec.Keywords[0])
	if err != nil {
		// A broken pattern is a flow-configuration problem, not an engine
		// failure: treated as no-match.
		return Result{}
	}

	if match := re.FindString(input); match != "" {
		return Result{Met: true, MatchedKeyword: match}
	}

	if re.MatchString(input) {
		// Pattern matched the empty string.
		return Result{Met: true}
	}

	return Result{}
}

func evaluateVariable(spec models.ConditionSpec, vars map[string]any) Result {
	if len(spec.Keywords) == 0 {
		return Result{}
	}

	expr := template.Interpolate(spec.Keywords[0], vars)

	met := EvaluateExpression(expr)
	if !met {
		return Result{}
	}

	return Result{Met: true}
}
