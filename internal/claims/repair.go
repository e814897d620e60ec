// Package claims evaluates expense claims from receipt images against a
// reimbursement policy through one multimodal generative call, then recovers
// a strict ClaimResult from the model's text.
package claims

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Repair rules are narrow and enumerated. Each rule has a name, a trigger,
// and a rewrite; new model failure modes get a new named rule, not a wider
// regex on an existing one.

// additionTotalsPattern matches the two allow-listed total fields when their
// value is an arithmetic expression instead of a literal number.
var additionTotalsPattern = regexp.MustCompile(`("(?:totalRequested|totalApproved)":\s*)([0-9+\-*/.\s]+)([,}])`)

// RepairNumericTotals rewrites unevaluated addition expressions in the
// totalRequested/totalApproved fields to their two-decimal sum. Only '+'
// over numeric literals is supported; anything else leaves the original text
// in place so the subsequent parse reports the real failure.
func RepairNumericTotals(jsonText string) string {
	return additionTotalsPattern.ReplaceAllStringFunc(jsonText, func(m string) string {
		parts := additionTotalsPattern.FindStringSubmatch(m)
		if parts == nil {
			return m
		}
		expr := strings.TrimSpace(parts[2])
		if !strings.Contains(expr, "+") {
			return m
		}
		sum, err := evalAddition(expr)
		if err != nil {
			return m
		}
		return parts[1] + strconv.FormatFloat(sum, 'f', 2, 64) + parts[3]
	})
}

func evalAddition(expr string) (float64, error) {
	total := 0.0
	for _, tok := range strings.Split(expr, "+") {
		v, err := strconv.ParseFloat(strings.TrimSpace(tok), 64)
		if err != nil {
			return 0, fmt.Errorf("non-numeric term %q: %w", tok, err)
		}
		total += v
	}
	return total, nil
}

// ExtractJSONObject returns the outer curly-brace span of s, found textually
// rather than by parsing. ok is false when no object-looking span exists.
func ExtractJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
