package queryengine

import (
	"fmt"
	"strconv"
	"strings"
)

// FilterExpr is the parsed OData-subset filter AST:
// comparisons (eq|ne|gt|lt|ge|le), search.in(field,'a,b,c'), boolean
// combinators (and/or/not), and parenthesized grouping.
type FilterExpr interface {
	Eval(doc map[string]interface{}) bool
}

type compareExpr struct {
	field string
	op    string
	value interface{}
}

type searchInExpr struct {
	field  string
	values map[string]struct{}
}

type andExpr struct{ left, right FilterExpr }
type orExpr struct{ left, right FilterExpr }
type notExpr struct{ inner FilterExpr }

func (e *compareExpr) Eval(doc map[string]interface{}) bool {
	actual, ok := doc[e.field]
	if !ok {
		return false
	}
	cmp, comparable := compareValues(actual, e.value)
	if !comparable {
		return false
	}
	switch e.op {
	case "eq":
		return cmp == 0
	case "ne":
		return cmp != 0
	case "gt":
		return cmp > 0
	case "lt":
		return cmp < 0
	case "ge":
		return cmp >= 0
	case "le":
		return cmp <= 0
	default:
		return false
	}
}

func (e *searchInExpr) Eval(doc map[string]interface{}) bool {
	actual, ok := doc[e.field]
	if !ok {
		return false
	}
	s, ok := actual.(string)
	if !ok {
		return false
	}
	_, found := e.values[strings.ToLower(s)]
	return found
}

func (e *andExpr) Eval(doc map[string]interface{}) bool { return e.left.Eval(doc) && e.right.Eval(doc) }
func (e *orExpr) Eval(doc map[string]interface{}) bool  { return e.left.Eval(doc) || e.right.Eval(doc) }
func (e *notExpr) Eval(doc map[string]interface{}) bool { return !e.inner.Eval(doc) }

// compareValues returns (cmp, true) when a and b are mutually
// comparable, normalizing numeric types and applying case-sensitive
// exact-match comparison for strings. No field normalizer is applied to
// either side, so equality on analyzed fields is exact.
func compareValues(a, b interface{}) (int, bool) {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if av == bv {
			return 0, true
		}
		if av {
			return 1, true
		}
		return -1, true
	default:
		af, aok := toFloat(a)
		bf, bok := toFloat(b)
		if !aok || !bok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// filterParser is a small recursive-descent parser over the filter
// grammar's token stream.
type filterParser struct {
	tokens []string
	pos    int
}

// ParseFilter parses a filter expression string into a FilterExpr.
// Returns a nil, nil pair for an empty filter (meaning "match all").
func ParseFilter(filter string) (FilterExpr, error) {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return nil, nil
	}
	tokens, err := tokenizeFilter(filter)
	if err != nil {
		return nil, err
	}
	p := &filterParser{tokens: tokens}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.tokens) {
		return nil, fmt.Errorf("unexpected token %q at position %d", p.tokens[p.pos], p.pos)
	}
	return expr, nil
}

func (p *filterParser) peek() string {
	if p.pos >= len(p.tokens) {
		return ""
	}
	return p.tokens[p.pos]
}

func (p *filterParser) next() string {
	t := p.peek()
	p.pos++
	return t
}

func (p *filterParser) parseOr() (FilterExpr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for strings.EqualFold(p.peek(), "or") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &orExpr{left: left, right: right}
	}
	return left, nil
}

func (p *filterParser) parseAnd() (FilterExpr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for strings.EqualFold(p.peek(), "and") {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &andExpr{left: left, right: right}
	}
	return left, nil
}

func (p *filterParser) parseUnary() (FilterExpr, error) {
	if strings.EqualFold(p.peek(), "not") {
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &notExpr{inner: inner}, nil
	}
	return p.parsePrimary()
}

func (p *filterParser) parsePrimary() (FilterExpr, error) {
	tok := p.peek()
	if tok == "(" {
		p.next()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek() != ")" {
			return nil, fmt.Errorf("expected ')', got %q", p.peek())
		}
		p.next()
		return expr, nil
	}
	if strings.HasPrefix(tok, "search.in(") {
		return p.parseSearchIn()
	}
	return p.parseComparison()
}

func (p *filterParser) parseSearchIn() (FilterExpr, error) {
	tok := p.next()
	inner := strings.TrimSuffix(strings.TrimPrefix(tok, "search.in("), ")")
	parts := splitTopLevelComma(inner)
	if len(parts) < 2 {
		return nil, fmt.Errorf("malformed search.in(...) call: %q", tok)
	}
	field := strings.TrimSpace(parts[0])
	valuesLiteral := strings.TrimSpace(parts[1])
	valuesLiteral = strings.Trim(valuesLiteral, "'")
	values := make(map[string]struct{})
	for _, v := range strings.Split(valuesLiteral, ",") {
		values[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}
	return &searchInExpr{field: field, values: values}, nil
}

func (p *filterParser) parseComparison() (FilterExpr, error) {
	field := p.next()
	op := p.next()
	valueTok := p.next()
	switch op {
	case "eq", "ne", "gt", "lt", "ge", "le":
	default:
		return nil, fmt.Errorf("unsupported filter operator %q", op)
	}
	value, err := parseLiteral(valueTok)
	if err != nil {
		return nil, err
	}
	return &compareExpr{field: field, op: op, value: value}, nil
}

func parseLiteral(tok string) (interface{}, error) {
	if strings.HasPrefix(tok, "'") && strings.HasSuffix(tok, "'") && len(tok) >= 2 {
		return strings.Trim(tok, "'"), nil
	}
	if tok == "true" {
		return true, nil
	}
	if tok == "false" {
		return false, nil
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return f, nil
	}
	return nil, fmt.Errorf("invalid literal %q", tok)
}

// tokenizeFilter splits a filter string into whitespace-delimited tokens,
// keeping quoted string literals intact and treating parens as their own
// tokens. A `search.in(...)` call is emitted as one token so its inner
// comma-separated list doesn't get split by the top-level tokenizer.
func tokenizeFilter(filter string) ([]string, error) {
	var tokens []string
	i := 0
	n := len(filter)
	for i < n {
		c := filter[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '(' || c == ')':
			tokens = append(tokens, string(c))
			i++
		case c == '\'':
			j := i + 1
			for j < n && filter[j] != '\'' {
				j++
			}
			if j >= n {
				return nil, fmt.Errorf("unterminated string literal in filter")
			}
			tokens = append(tokens, filter[i:j+1])
			i = j + 1
		case strings.HasPrefix(filter[i:], "search.in("):
			depth := 0
			j := i
			for j < n {
				if filter[j] == '(' {
					depth++
				} else if filter[j] == ')' {
					depth--
					if depth == 0 {
						j++
						break
					}
				}
				j++
			}
			if depth != 0 {
				return nil, fmt.Errorf("unterminated search.in(...) call in filter")
			}
			tokens = append(tokens, filter[i:j])
			i = j
		default:
			j := i
			for j < n && filter[j] != ' ' && filter[j] != '\t' && filter[j] != '(' && filter[j] != ')' {
				j++
			}
			tokens = append(tokens, filter[i:j])
			i = j
		}
	}
	return tokens, nil
}

func splitTopLevelComma(s string) []string {
	var parts []string
	depth := 0
	last := 0
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'':
			inQuote = !inQuote
		case '(':
			if !inQuote {
				depth++
			}
		case ')':
			if !inQuote {
				depth--
			}
		case ',':
			if depth == 0 && !inQuote {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, s[last:])
	return parts
}
