package realtime

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// Filter operators understood by ParseFilter.
const (
	OpEq  = "eq"
	OpNeq = "neq"
	OpIn  = "in"
	OpGt  = "gt"
	OpLt  = "lt"
	OpGte = "gte"
	OpLte = "lte"
)

// Filter is a parsed row predicate of the form column=op.value.
type Filter struct {
	Column string
	Op     string
	Values []string
}

// ParseFilter parses a predicate such as "status=in.(paid,failed)". An empty string yields a nil
// filter, which matches every row.
func ParseFilter(expr string) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	column, rest, ok := strings.Cut(expr, "=")
	if !ok || strings.TrimSpace(column) == "" {
		return nil, fmt.Errorf("invalid filter %q: expected column=op.value", expr)
	}
	op, value, ok := strings.Cut(rest, ".")
	if !ok {
		return nil, fmt.Errorf("invalid filter %q: expected op.value", expr)
	}

	f := &Filter{Column: strings.TrimSpace(column), Op: op}
	switch op {
	case OpEq, OpNeq, OpGt, OpLt, OpGte, OpLte:
		f.Values = []string{value}
	case OpIn:
		if !strings.HasPrefix(value, "(") || !strings.HasSuffix(value, ")") {
			return nil, fmt.Errorf("invalid filter %q: in expects (a,b,...)", expr)
		}
		for _, v := range strings.Split(value[1:len(value)-1], ",") {
			if v = strings.TrimSpace(v); v != "" {
				f.Values = append(f.Values, v)
			}
		}
		if len(f.Values) == 0 {
			return nil, fmt.Errorf("invalid filter %q: empty in list", expr)
		}
	default:
		return nil, fmt.Errorf("invalid filter %q: unknown operator %q", expr, op)
	}
	return f, nil
}

// Match reports whether record satisfies the filter. A missing column never matches.
func (f *Filter) Match(record map[string]any) bool {
	if f == nil {
		return true
	}
	raw, ok := record[f.Column]
	if !ok || raw == nil {
		return false
	}
	actual, err := cast.ToStringE(raw)
	if err != nil {
		return false
	}

	switch f.Op {
	case OpEq:
		return actual == f.Values[0]
	case OpNeq:
		return actual != f.Values[0]
	case OpIn:
		for _, v := range f.Values {
			if actual == v {
				return true
			}
		}
		return false
	}

	c := compare(actual, f.Values[0])
	switch f.Op {
	case OpGt:
		return c > 0
	case OpLt:
		return c < 0
	case OpGte:
		return c >= 0
	case OpLte:
		return c <= 0
	}
	return false
}

func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	if f.Op == OpIn {
		return fmt.Sprintf("%s=in.(%s)", f.Column, strings.Join(f.Values, ","))
	}
	return fmt.Sprintf("%s=%s.%s", f.Column, f.Op, f.Values[0])
}

// compare orders numerically when both sides are numbers, lexically otherwise.
func compare(a, b string) int {
	af, aerr := cast.ToFloat64E(a)
	bf, berr := cast.ToFloat64E(b)
	if aerr == nil && berr == nil {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	return strings.Compare(a, b)
}

// matcher evaluates a compiled set of interests against changes.
type matcher struct {
	interests []Interest
	filters   []*Filter
}

func compileInterests(interests []Interest) (*matcher, error) {
	if len(interests) == 0 {
		return nil, ErrEmptyInterest
	}
	m := &matcher{interests: interests, filters: make([]*Filter, len(interests))}
	for i, in := range interests {
		if in.Table == "" {
			return nil, ErrEmptyInterest
		}
		f, err := ParseFilter(in.Filter)
		if err != nil {
			return nil, err
		}
		m.filters[i] = f
	}
	return m, nil
}

func (m *matcher) match(c Change) bool {
	for i, in := range m.interests {
		if in.matchesTable(c.Table) && in.matchesEvent(c.Event) && m.filters[i].Match(c.Record) {
			return true
		}
	}
	return false
}

func (m *matcher) tables() []string {
	seen := make(map[string]struct{}, len(m.interests))
	var out []string
	for _, in := range m.interests {
		if _, ok := seen[in.Table]; ok {
			continue
		}
		seen[in.Table] = struct{}{}
		out = append(out, in.Table)
	}
	return out
}
