// Package expression combines named boolean or set-valued sub-results through
// a restricted and/or/not expression language. Tokens c1..cN reference the
// caller's values in declaration order. Input is sanitized to a fixed
// allow-set and length-capped before anything is evaluated, so arbitrary
// injected text is stripped rather than executed.
package expression

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/d5/tengo/v2"
)

type Mode int

const (
	// Boolean short-circuit combination, used for permissions.
	Boolean Mode = iota
	// Arithmetic set combination (and=*, or=+, not=complement), used for
	// conditions.
	Arithmetic
)

// RecordSet is a set of record identifiers produced by a condition plugin.
type RecordSet map[int64]struct{}

var (
	// Characters that may appear in raw logic: digits, the letters of the
	// and/or/not keywords plus c, parens, whitespace. Everything else is
	// stripped before substitution.
	disallowed = regexp.MustCompile(`[^0-9acdnort()\s]`)

	kwAnd = regexp.MustCompile(`\band\b`)
	kwOr  = regexp.MustCompile(`\bor\b`)
	kwNot = regexp.MustCompile(`\bnot\b`)

	// Residual word tokens after substitution; anything that is not a valid
	// cN reference is junk left over from stripped input and is dropped.
	wordToken = regexp.MustCompile(`[a-z][a-z0-9]*`)
)

// prepare sanitizes and rewrites logic into a pure tengo expression over
// variables c1..cN. Returns "" when nothing evaluable remains.
func prepare(logic string, n int, mode Mode) string {
	// Cost/attack-surface cap.
	if max := 10 * n; max > 0 && len(logic) > max {
		logic = logic[:max]
	}
	logic = strings.ToLower(logic)
	logic = disallowed.ReplaceAllString(logic, "")

	switch mode {
	case Boolean:
		logic = kwAnd.ReplaceAllString(logic, "&&")
		logic = kwOr.ReplaceAllString(logic, "||")
		logic = kwNot.ReplaceAllString(logic, "!")
	case Arithmetic:
		logic = kwAnd.ReplaceAllString(logic, "*")
		logic = kwOr.ReplaceAllString(logic, "+")
		logic = rewriteNot(logic)
	}

	logic = wordToken.ReplaceAllStringFunc(logic, func(tok string) string {
		if !strings.HasPrefix(tok, "c") {
			return ""
		}
		idx := 0
		if _, err := fmt.Sscanf(tok, "c%d", &idx); err != nil || idx < 1 || idx > n {
			return ""
		}
		return tok
	})

	return strings.TrimSpace(logic)
}

// rewriteNot turns every "not <term>" into the 0/1 complement "(1-<term>)".
// Memberships are 0 or 1, so unary minus would map an absent record to -0
// and erase it from a product instead of selecting it; the complement keeps
// set difference expressible. A term is the next cN token or balanced
// parenthesized group. Rightmost occurrence first, so "not not c1" resolves
// inside out.
func rewriteNot(s string) string {
	for {
		locs := kwNot.FindAllStringIndex(s, -1)
		if len(locs) == 0 {
			return s
		}
		start, end := locs[len(locs)-1][0], locs[len(locs)-1][1]
		rest := s[end:]

		i := 0
		for i < len(rest) && (rest[i] == ' ' || rest[i] == '\t' || rest[i] == '\n' || rest[i] == '\r') {
			i++
		}
		j := i
		if j < len(rest) && rest[j] == '(' {
			depth := 0
			for ; j < len(rest); j++ {
				if rest[j] == '(' {
					depth++
				} else if rest[j] == ')' {
					depth--
					if depth == 0 {
						j++
						break
					}
				}
			}
		} else {
			for j < len(rest) && (rest[j] >= 'a' && rest[j] <= 'z' || rest[j] >= '0' && rest[j] <= '9') {
				j++
			}
		}

		term := rest[i:j]
		if term == "" {
			// Dangling "not" with nothing to negate; drop it.
			s = s[:start] + rest
			continue
		}
		s = s[:start] + "(1-" + term + ")" + rest[j:]
	}
}

// EvaluateBool combines boolean sub-results. With exactly one value the value
// is returned directly, regardless of logic. With zero values the default is
// allow.
func EvaluateBool(logic string, values []bool) (bool, error) {
	switch len(values) {
	case 0:
		return true, nil
	case 1:
		return values[0], nil
	}

	expr := prepare(logic, len(values), Boolean)
	if expr == "" {
		return false, fmt.Errorf("empty expression after sanitize: %q", logic)
	}

	script := tengo.NewScript([]byte("out := " + expr))
	for i, v := range values {
		if err := script.Add(fmt.Sprintf("c%d", i+1), v); err != nil {
			return false, err
		}
	}
	compiled, err := script.Compile()
	if err != nil {
		return false, fmt.Errorf("compile %q: %w", expr, err)
	}
	if err := compiled.Run(); err != nil {
		return false, fmt.Errorf("evaluate %q: %w", expr, err)
	}
	return compiled.Get("out").Bool(), nil
}

// EvaluateSets combines record-id sets arithmetically: per record, each cN is
// its 0/1 membership and the record is kept when the expression evaluates
// positive. With exactly one set that set is returned unchanged. A nil result
// with nil error means "all records" (zero sets configured).
func EvaluateSets(logic string, sets []RecordSet) (RecordSet, error) {
	switch len(sets) {
	case 0:
		return nil, nil
	case 1:
		return sets[0], nil
	}

	expr := prepare(logic, len(sets), Arithmetic)
	if expr == "" {
		return nil, fmt.Errorf("empty expression after sanitize: %q", logic)
	}

	script := tengo.NewScript([]byte("out := " + expr))
	for i := range sets {
		if err := script.Add(fmt.Sprintf("c%d", i+1), 0); err != nil {
			return nil, err
		}
	}
	compiled, err := script.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, err)
	}

	universe := RecordSet{}
	for _, s := range sets {
		for id := range s {
			universe[id] = struct{}{}
		}
	}

	result := RecordSet{}
	for id := range universe {
		for i, s := range sets {
			member := 0
			if _, ok := s[id]; ok {
				member = 1
			}
			if err := compiled.Set(fmt.Sprintf("c%d", i+1), member); err != nil {
				return nil, err
			}
		}
		if err := compiled.Run(); err != nil {
			return nil, fmt.Errorf("evaluate %q: %w", expr, err)
		}
		if compiled.Get("out").Int() > 0 {
			result[id] = struct{}{}
		}
	}
	return result, nil
}

// Conjunction builds the explicit default expression "c1 and c2 and ... cN"
// used when a component has elements but no configured expression.
func Conjunction(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("c%d", i+1)
	}
	return strings.Join(parts, " and ")
}
