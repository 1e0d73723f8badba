package condition

import "strings"

// The variable condition language is deliberately minimal: one comparison of
// two operands with a fixed operator set, nothing more. Operands are the
// already-interpolated text on either side of the operator; quotes around an
// operand are stripped. Any input that does not parse as a comparison falls
// back to a truthiness check of the whole string.

type exprOperator string

const (
	opStrictEqual exprOperator = "==="
	opStrictNotEq exprOperator = "!=="
	opContains    exprOperator = "contains"
)

type comparison struct {
	left  string
	op    exprOperator
	right string
}

// EvaluateExpression evaluates one interpolated variable-condition
// expression. Malformed input never fails; it degrades to truthiness.
func EvaluateExpression(expr string) bool {
	cmp, ok := parseComparison(expr)
	if !ok {
		return truthy(strings.TrimSpace(expr))
	}

	switch cmp.op {
	case opStrictEqual:
		return cmp.left == cmp.right
	case opStrictNotEq:
		return cmp.left != cmp.right
	case opContains:
		return strings.Contains(strings.ToLower(cmp.left), strings.ToLower(cmp.right))
	default:
		return false
	}
}

// parseComparison scans for the first operator token that sits outside both
// operands' quoted regions. Scanning token-by-token instead of splitting on
// substrings keeps operand values containing operator text intact.
func parseComparison(expr string) (comparison, bool) {
	operators := []exprOperator{opStrictEqual, opStrictNotEq, opContains}

	inQuote := byte(0)

	for i := 0; i < len(expr); i++ {
		c := expr[i]

		if inQuote != 0 {
			if c == inQuote {
				inQuote = 0
			}

			continue
		}

		if c == '\'' || c == '"' {
			inQuote = c

			continue
		}

		for _, op := range operators {
			token := string(op)
			if !strings.HasPrefix(expr[i:], token) {
				continue
			}

			// "contains" must be a standalone word, not part of an operand.
			if op == opContains && !isWordBoundary(expr, i, len(token)) {
				continue
			}

			left := unquote(strings.TrimSpace(expr[:i]))
			right := unquote(strings.TrimSpace(expr[i+len(token):]))

			return comparison{left: left, op: op, right: right}, true
		}
	}

	return comparison{}, false
}

func isWordBoundary(expr string, start, length int) bool {
	if start > 0 && isWordChar(expr[start-1]) {
		return false
	}

	end := start + length
	if end < len(expr) && isWordChar(expr[end]) {
		return false
	}

	return true
}

func isWordChar(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}

	return s
}

func truthy(s string) bool {
	switch strings.ToLower(s) {
	case "", "false", "0", "null", "undefined":
		return false
	default:
		return true
	}
}
