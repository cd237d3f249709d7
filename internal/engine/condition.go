package engine

import (
	"strings"
)

// Condition grammar, low to high precedence: OR > AND > parenthesized group >
// atomic predicate. An atomic predicate is "<field-path> <operator> <literal>"
// or "<field-path> <operator> <literal-list>".
//
// Conditions compile once into a tree of OR-lists of AND-lists of predicates;
// evaluation against an event is pure and deterministic.
//
// Known limitation: AND/OR keywords and parentheses inside quoted literal
// values are read as structure, not text. Rule authors must not embed them.

// GrammarError reports a condition string the compiler rejected.
type GrammarError struct {
	Message string
}

func (e *GrammarError) Error() string { return e.Message }

// Expr is a compiled condition, evaluated per event.
type Expr interface {
	Eval(ev Event) bool
}

type orExpr []Expr

func (o orExpr) Eval(ev Event) bool {
	for _, e := range o {
		if e.Eval(ev) {
			return true
		}
	}
	return false
}

type andExpr []Expr

func (a andExpr) Eval(ev Event) bool {
	for _, e := range a {
		if !e.Eval(ev) {
			return false
		}
	}
	return true
}

type predicate struct {
	raw string
}

func (p predicate) Eval(ev Event) bool { return evalPredicate(ev, p.raw) }

// ParseCondition compiles a condition string.
//
// A condition containing an IN or NOT IN literal list is treated as one
// atomic predicate: its parentheses wrap a value list, not logic grouping.
func ParseCondition(condition string) (Expr, error) {
	c := strings.TrimSpace(condition)
	if c == "" {
		return nil, &GrammarError{Message: "empty condition"}
	}

	upper := strings.ToUpper(c)
	if strings.Contains(upper, " IN (") || strings.Contains(upper, " NOT IN (") {
		return predicate{raw: c}, nil
	}

	return parseOr(c)
}

// Evaluate compiles and evaluates in one call. Convenience for one-shot use;
// scans should compile once per rule instead.
func Evaluate(ev Event, condition string) (bool, error) {
	expr, err := ParseCondition(condition)
	if err != nil {
		return false, err
	}
	return expr.Eval(ev), nil
}

func parseOr(s string) (Expr, error) {
	parts := splitKeyword(s, "OR")
	if len(parts) == 1 {
		return parseAnd(parts[0])
	}

	out := make(orExpr, 0, len(parts))
	for _, part := range parts {
		expr, err := parseAnd(part)
		if err != nil {
			return nil, err
		}
		out = append(out, expr)
	}
	return out, nil
}

func parseAnd(s string) (Expr, error) {
	parts := splitKeyword(s, "AND")
	if len(parts) == 1 {
		return parseTerm(parts[0])
	}

	out := make(andExpr, 0, len(parts))
	for _, part := range parts {
		expr, err := parseTerm(part)
		if err != nil {
			return nil, err
		}
		out = append(out, expr)
	}
	return out, nil
}

func parseTerm(s string) (Expr, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return nil, &GrammarError{Message: "empty segment around AND/OR"}
	}

	if strings.HasPrefix(t, "(") && matchingParen(t) == len(t)-1 {
		return parseOr(t[1 : len(t)-1])
	}

	return predicate{raw: t}, nil
}

// matchingParen returns the index of the parenthesis closing t[0], or -1.
func matchingParen(t string) int {
	depth := 0
	for i := 0; i < len(t); i++ {
		switch t[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitKeyword splits on a space-delimited keyword, case-insensitive, outside
// any parentheses.
func splitKeyword(s, keyword string) []string {
	upper := strings.ToUpper(s)
	kw := " " + keyword + " "

	var parts []string
	depth := 0
	last := 0

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		default:
			if depth == 0 && i+len(kw) <= len(s) && upper[i:i+len(kw)] == kw {
				parts = append(parts, s[last:i])
				last = i + len(kw)
				i = last - 1
			}
		}
	}

	return append(parts, s[last:])
}

// Operators in fixed priority order, so no operator's text is mistaken for a
// prefix of another (NOT IN before IN, != before =, and so on).
var operatorTable = []struct {
	token string
	word  bool // match against the uppercased condition, space-delimited
	eval  func(ev Event, field, literal string) bool
}{
	{" NOT IN ", true, evalNotIn},
	{" IN ", true, evalIn},
	{" NOT CONTAINS ", true, evalNotContains},
	{" CONTAINS ", true, evalContains},
	{"!=", false, evalNotEqual},
	{"<>", false, evalNotEqual},
	{"=", false, evalEqual},
	{" NOT STARTSWITH ", true, evalNotStartsWith},
	{" STARTSWITH ", true, evalStartsWith},
	{" NOT ENDSWITH ", true, evalNotEndsWith},
	{" ENDSWITH ", true, evalEndsWith},
	{" MATCH ", true, evalMatch},
}

// evalPredicate evaluates one atomic predicate. A predicate with no
// recognized operator is false. For every operator, an absent field makes the
// predicate false, so a rule written for one log schema cannot match events
// of an unrelated schema.
func evalPredicate(ev Event, cond string) bool {
	cond = strings.TrimSpace(cond)
	upper := strings.ToUpper(cond)

	for _, op := range operatorTable {
		var idx int
		if op.word {
			idx = strings.Index(upper, op.token)
		} else {
			idx = strings.Index(cond, op.token)
		}
		if idx < 0 {
			continue
		}

		field := strings.TrimSpace(cond[:idx])
		literal := strings.TrimSpace(cond[idx+len(op.token):])
		return op.eval(ev, field, literal)
	}

	return false
}

func evalEqual(ev Event, field, literal string) bool {
	actual, ok := ev.FieldValue(field)
	return ok && actual == unquote(literal)
}

func evalNotEqual(ev Event, field, literal string) bool {
	actual, ok := ev.FieldValue(field)
	return ok && actual != unquote(literal)
}

func evalIn(ev Event, field, literal string) bool {
	values, ok := parseListLiteral(literal)
	if !ok {
		return false
	}
	actual, ok := ev.FieldValue(field)
	if !ok {
		return false
	}
	for _, v := range values {
		if v == actual {
			return true
		}
	}
	return false
}

func evalNotIn(ev Event, field, literal string) bool {
	values, ok := parseListLiteral(literal)
	if !ok {
		return false
	}
	actual, ok := ev.FieldValue(field)
	if !ok {
		return false
	}
	for _, v := range values {
		if v == actual {
			return false
		}
	}
	return true
}

func evalContains(ev Event, field, literal string) bool {
	actual, ok := ev.FieldValue(field)
	return ok && strings.Contains(strings.ToLower(actual), strings.ToLower(unquote(literal)))
}

func evalNotContains(ev Event, field, literal string) bool {
	actual, ok := ev.FieldValue(field)
	return ok && !strings.Contains(strings.ToLower(actual), strings.ToLower(unquote(literal)))
}

func evalStartsWith(ev Event, field, literal string) bool {
	actual, ok := ev.FieldValue(field)
	return ok && strings.HasPrefix(strings.ToLower(actual), strings.ToLower(unquote(literal)))
}

func evalNotStartsWith(ev Event, field, literal string) bool {
	actual, ok := ev.FieldValue(field)
	return ok && !strings.HasPrefix(strings.ToLower(actual), strings.ToLower(unquote(literal)))
}

func evalEndsWith(ev Event, field, literal string) bool {
	actual, ok := ev.FieldValue(field)
	return ok && strings.HasSuffix(strings.ToLower(actual), strings.ToLower(unquote(literal)))
}

func evalNotEndsWith(ev Event, field, literal string) bool {
	actual, ok := ev.FieldValue(field)
	return ok && !strings.HasSuffix(strings.ToLower(actual), strings.ToLower(unquote(literal)))
}

// evalMatch delegates to the wildcard matcher. The literal is either one
// quoted pattern, or a bracketed list ['p1','p2'] where any pattern matching
// is enough.
func evalMatch(ev Event, field, literal string) bool {
	actual, ok := ev.FieldValue(field)
	if !ok {
		return false
	}

	if strings.HasPrefix(literal, "[") && strings.HasSuffix(literal, "]") {
		inner := literal[1 : len(literal)-1]
		for _, item := range strings.Split(inner, ",") {
			pattern := unquote(strings.TrimSpace(item))
			if WildcardMatch(actual, pattern) {
				return true
			}
		}
		return false
	}

	return WildcardMatch(actual, unquote(literal))
}

// unquote trims one layer of matching single or double quotes.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '\'' && last == '\'') || (first == '"' && last == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// parseListLiteral parses an IN list: ('value1', 'value2'). The text must be
// wrapped in parentheses; items are comma-separated and individually
// unquoted; items empty after trimming are dropped. Malformed or empty lists
// report false.
func parseListLiteral(s string) ([]string, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return nil, false
	}

	inner := s[1 : len(s)-1]
	var values []string
	for _, item := range strings.Split(inner, ",") {
		v := unquote(strings.TrimSpace(item))
		if v == "" {
			continue
		}
		values = append(values, v)
	}

	if len(values) == 0 {
		return nil, false
	}
	return values, true
}
