package models

import (
	"errors"
	"fmt"
)

// ConditionKind selects how a conditions node evaluates the latest inbound
// user text.
type ConditionKind string

const (
	ConditionKeyword  ConditionKind = "keyword"
	ConditionRegex    ConditionKind = "regex"
	ConditionVariable ConditionKind = "variable"
)

// MatchType refines keyword conditions.
type MatchType string

const (
	MatchAny   MatchType = "any"
	MatchAll   MatchType = "all"
	MatchExact MatchType = "exact"
)

// ConditionSpec is the declarative predicate carried by a conditions node.
type ConditionSpec struct {
	Kind     ConditionKind `json:"condition_type" validate:"required,oneof=keyword regex variable"`
	Match    MatchType     `json:"match_type,omitempty" validate:"omitempty,oneof=any all exact"`
	Keywords []string      `json:"keywords"`
}

// ConditionSpecFromConfig extracts a ConditionSpec from a conditions node's
// config payload.
func ConditionSpecFromConfig(config map[string]any) (ConditionSpec, error) {
	kind, _ := config["condition_type"].(string)
	if kind == "" {
		return ConditionSpec{}, errors.New("missing required field 'condition_type'")
	}

	spec := ConditionSpec{
		Kind: ConditionKind(kind),
	}

	switch spec.Kind {
	case ConditionKeyword, ConditionRegex, ConditionVariable:
	default:
		return ConditionSpec{}, fmt.Errorf("unsupported condition_type %q", kind)
	}

	if match, ok := config["match_type"].(string); ok && match != "" {
		spec.Match = MatchType(match)
	} else {
		spec.Match = MatchAny
	}

	if raw, ok := config["keywords"].([]any); ok {
		for _, kw := range raw {
			if s, ok := kw.(string); ok {
				spec.Keywords = append(spec.Keywords, s)
			}
		}
	} else if list, ok := config["keywords"].([]string); ok {
		spec.Keywords = append(spec.Keywords, list...)
	}

	return spec, nil
}
