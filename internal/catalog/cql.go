package catalog

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ParseCQL turns the comparison/logical subset of CQL into a Filter.
//
// Supported: =, <>, !=, <, <=, >, >=, LIKE, ILIKE, IS [NOT] NULL, AND, OR,
// NOT and parentheses. LIKE patterns use % and _ as wildcards and \ as escape.
// Spatial and temporal predicates and function calls wrap ErrUnsupportedQuery.
func ParseCQL(text string) (Filter, error) {
	toks, err := lexCQL(text)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, fmt.Errorf("%w: empty cql", ErrUnsupportedQuery)
	}

	p := &cqlParser{toks: toks}
	f, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, fmt.Errorf("%w: unexpected %q", ErrUnsupportedQuery, p.peek().text)
	}
	return f, nil
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokNumber
	tokSymbol
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) keyword(kw string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

var unsupportedKeywords = map[string]bool{
	"INTERSECTS": true, "CONTAINS": true, "WITHIN": true, "DWITHIN": true, "BEYOND": true,
	"CROSSES": true, "OVERLAPS": true, "TOUCHES": true, "DISJOINT": true, "BBOX": true,
	"BEFORE": true, "AFTER": true, "DURING": true, "TEQUALS": true,
	"BETWEEN": true, "IN": true, "EXISTS": true,
}

func lexCQL(s string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(s) {
		c := rune(s[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '\'':
			start := i
			var b strings.Builder
			i++
			closed := false
			for i < len(s) {
				if s[i] == '\'' {
					if i+1 < len(s) && s[i+1] == '\'' {
						b.WriteByte('\'')
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				b.WriteByte(s[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("%w: unterminated string at %d", ErrUnsupportedQuery, start)
			}
			toks = append(toks, token{kind: tokString, text: b.String(), pos: start})
		case c == '"':
			end := strings.IndexByte(s[i+1:], '"')
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated identifier at %d", ErrUnsupportedQuery, i)
			}
			toks = append(toks, token{kind: tokIdent, text: s[i+1 : i+1+end], pos: i})
			i += end + 2
		case c == '-' || unicode.IsDigit(c):
			start := i
			i++
			for i < len(s) && (unicode.IsDigit(rune(s[i])) || s[i] == '.' || s[i] == 'e' || s[i] == 'E') {
				i++
			}
			toks = append(toks, token{kind: tokNumber, text: s[start:i], pos: start})
		case unicode.IsLetter(c) || c == '_':
			start := i
			for i < len(s) && isIdentRune(rune(s[i])) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: s[start:i], pos: start})
		default:
			sym := matchSymbol(s[i:])
			if sym == "" {
				return nil, fmt.Errorf("%w: unexpected character %q at %d", ErrUnsupportedQuery, c, i)
			}
			toks = append(toks, token{kind: tokSymbol, text: sym, pos: i})
			i += len(sym)
		}
	}
	return toks, nil
}

func matchSymbol(s string) string {
	for _, sym := range []string{"<>", "!=", "<=", ">=", "=", "<", ">", "(", ")"} {
		if strings.HasPrefix(s, sym) {
			return sym
		}
	}
	return ""
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == ':' || r == '-'
}

type cqlParser struct {
	toks []token
	pos  int
}

func (p *cqlParser) done() bool { return p.pos >= len(p.toks) }

func (p *cqlParser) peek() token {
	if p.done() {
		return token{kind: tokSymbol, text: "<eof>"}
	}
	return p.toks[p.pos]
}

func (p *cqlParser) next() token {
	t := p.peek()
	p.pos++
	return t
}

func (p *cqlParser) parseOr() (Filter, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	filters := []Filter{left}
	for p.peek().keyword("OR") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		filters = append(filters, right)
	}
	return Or(filters...), nil
}

func (p *cqlParser) parseAnd() (Filter, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	filters := []Filter{left}
	for p.peek().keyword("AND") {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		filters = append(filters, right)
	}
	return And(filters...), nil
}

func (p *cqlParser) parseNot() (Filter, error) {
	if p.peek().keyword("NOT") {
		p.next()
		f, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return Not(f), nil
	}
	return p.parsePrimary()
}

func (p *cqlParser) parsePrimary() (Filter, error) {
	t := p.next()
	if t.kind == tokSymbol && t.text == "(" {
		f, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.text != ")" {
			return nil, fmt.Errorf("%w: expected ) at %d", ErrUnsupportedQuery, closing.pos)
		}
		return f, nil
	}
	if t.kind != tokIdent {
		return nil, fmt.Errorf("%w: expected attribute, got %q", ErrUnsupportedQuery, t.text)
	}
	if unsupportedKeywords[strings.ToUpper(t.text)] || p.peek().text == "(" {
		return nil, fmt.Errorf("%w: %s is not supported", ErrUnsupportedQuery, t.text)
	}
	return p.parsePredicate(t.text)
}

func (p *cqlParser) parsePredicate(attr string) (Filter, error) {
	op := p.next()
	switch {
	case op.keyword("LIKE"), op.keyword("ILIKE"):
		v := p.next()
		if v.kind != tokString {
			return nil, fmt.Errorf("%w: %s needs a string pattern", ErrUnsupportedQuery, op.text)
		}
		pattern := cqlLikeToWildcard(v.text)
		if op.keyword("ILIKE") {
			return AttributeILike(attr, pattern), nil
		}
		return AttributeLike(attr, pattern), nil
	case op.keyword("IS"):
		negate := false
		if p.peek().keyword("NOT") {
			p.next()
			negate = true
		}
		if !p.next().keyword("NULL") {
			return nil, fmt.Errorf("%w: expected NULL after IS", ErrUnsupportedQuery)
		}
		if negate {
			return AttributeExists(attr), nil
		}
		return Not(AttributeExists(attr)), nil
	case op.kind == tokSymbol:
		value, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		switch op.text {
		case "=":
			return AttributeEquals(attr, value), nil
		case "<>", "!=":
			return Not(AttributeEquals(attr, value)), nil
		case "<":
			return AttributeCompare(attr, OpLess, value), nil
		case "<=":
			return AttributeCompare(attr, OpLessEqual, value), nil
		case ">":
			return AttributeCompare(attr, OpGreater, value), nil
		case ">=":
			return AttributeCompare(attr, OpGreaterEqual, value), nil
		}
	}
	return nil, fmt.Errorf("%w: operator %q is not supported", ErrUnsupportedQuery, op.text)
}

func (p *cqlParser) parseLiteral() (interface{}, error) {
	t := p.next()
	switch {
	case t.kind == tokString:
		return t.text, nil
	case t.kind == tokNumber:
		if n, err := strconv.ParseInt(t.text, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad number %q", ErrUnsupportedQuery, t.text)
		}
		return f, nil
	case t.keyword("TRUE"):
		return true, nil
	case t.keyword("FALSE"):
		return false, nil
	}
	return nil, fmt.Errorf("%w: expected literal, got %q", ErrUnsupportedQuery, t.text)
}

// cqlLikeToWildcard maps % and _ to * and ?, quoting literal * and ?.
func cqlLikeToWildcard(pattern string) string {
	var b strings.Builder
	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			escaped = false
			b.WriteString(EscapeLike(string(r)))
		case r == '\\':
			escaped = true
		case r == '%':
			b.WriteByte('*')
		case r == '_':
			b.WriteByte('?')
		default:
			b.WriteString(EscapeLike(string(r)))
		}
	}
	return b.String()
}
