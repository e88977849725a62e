package catalog

import (
	"strings"
)

// AnyText addresses every indexed text field of a record.
const AnyText = "anyText"

// Filter is a node of the catalog filter tree. Build filters with the
// functions in this file; the engine translates them to Elasticsearch DSL.
type Filter interface {
	query() map[string]interface{}
}

type matchAllFilter struct{}

func (matchAllFilter) query() map[string]interface{} {
	return map[string]interface{}{"match_all": map[string]interface{}{}}
}

// MatchAll selects every record.
func MatchAll() Filter { return matchAllFilter{} }

type equalsFilter struct {
	attr  string
	value interface{}
}

func (f equalsFilter) query() map[string]interface{} {
	if f.attr == AnyText {
		s, _ := f.value.(string)
		return textFilter{text: "\"" + escapeQueryString(s) + "\""}.query()
	}
	return map[string]interface{}{
		"term": map[string]interface{}{f.attr: f.value},
	}
}

// AttributeEquals matches records whose attribute equals value exactly.
// For multi-valued attributes any element may match.
func AttributeEquals(attr string, value interface{}) Filter {
	return equalsFilter{attr: attr, value: value}
}

type likeFilter struct {
	attr            string
	pattern         string
	caseInsensitive bool
}

func (f likeFilter) query() map[string]interface{} {
	if f.attr == AnyText {
		return textFilter{text: likeToQueryString(f.pattern)}.query()
	}
	return map[string]interface{}{
		"wildcard": map[string]interface{}{
			f.attr: map[string]interface{}{
				"value":            f.pattern,
				"case_insensitive": f.caseInsensitive,
			},
		},
	}
}

// AttributeLike matches attribute against pattern, where * matches any run of
// characters and ? a single character. Use EscapeLike for literal values.
func AttributeLike(attr, pattern string) Filter {
	return likeFilter{attr: attr, pattern: pattern}
}

// AttributeILike is the case-insensitive form of AttributeLike.
func AttributeILike(attr, pattern string) Filter {
	return likeFilter{attr: attr, pattern: pattern, caseInsensitive: true}
}

// EscapeLike quotes the wildcard characters of s so that AttributeLike treats it literally.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)
	return r.Replace(s)
}

type compareFilter struct {
	attr  string
	op    string
	value interface{}
}

func (f compareFilter) query() map[string]interface{} {
	return map[string]interface{}{
		"range": map[string]interface{}{
			f.attr: map[string]interface{}{f.op: f.value},
		},
	}
}

// Comparison operators for AttributeCompare.
const (
	OpLess         = "lt"
	OpLessEqual    = "lte"
	OpGreater      = "gt"
	OpGreaterEqual = "gte"
)

func AttributeCompare(attr, op string, value interface{}) Filter {
	return compareFilter{attr: attr, op: op, value: value}
}

type existsFilter struct{ attr string }

func (f existsFilter) query() map[string]interface{} {
	return map[string]interface{}{
		"exists": map[string]interface{}{"field": f.attr},
	}
}

func AttributeExists(attr string) Filter { return existsFilter{attr: attr} }

type textFilter struct{ text string }

func (f textFilter) query() map[string]interface{} { return queryString(f.text) }

// QueryText matches text across every indexed field using query string
// syntax. The text is passed through unescaped.
func QueryText(text string) Filter { return textFilter{text: text} }

type boolFilter struct {
	clause  string
	filters []Filter
}

func (f boolFilter) query() map[string]interface{} {
	clauses := make([]interface{}, 0, len(f.filters))
	for _, child := range f.filters {
		clauses = append(clauses, child.query())
	}
	b := map[string]interface{}{f.clause: clauses}
	if f.clause == "should" {
		b["minimum_should_match"] = 1
	}
	return map[string]interface{}{"bool": b}
}

// And matches records matching every filter.
func And(filters ...Filter) Filter {
	if len(filters) == 1 {
		return filters[0]
	}
	return boolFilter{clause: "filter", filters: filters}
}

// Or matches records matching at least one filter.
func Or(filters ...Filter) Filter {
	if len(filters) == 1 {
		return filters[0]
	}
	return boolFilter{clause: "should", filters: filters}
}

func Not(f Filter) Filter {
	return boolFilter{clause: "must_not", filters: []Filter{f}}
}

// QuerySource renders f as an Elasticsearch query clause. A nil filter matches everything.
func QuerySource(f Filter) map[string]interface{} {
	if f == nil {
		return MatchAll().query()
	}
	return f.query()
}

func queryString(q string) map[string]interface{} {
	return map[string]interface{}{
		"query_string": map[string]interface{}{
			"query":            q,
			"default_field":    "*",
			"analyze_wildcard": true,
		},
	}
}

const queryStringReserved = `+-=&|><!(){}[]^"~*?:\/ `

func escapeQueryString(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(queryStringReserved, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// likeToQueryString keeps unescaped * and ? as wildcards and escapes everything else.
func likeToQueryString(pattern string) string {
	var b strings.Builder
	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			escaped = false
			b.WriteString(escapeQueryString(string(r)))
		case r == '\\':
			escaped = true
		case r == '*' || r == '?':
			b.WriteRune(r)
		default:
			b.WriteString(escapeQueryString(string(r)))
		}
	}
	return b.String()
}
