// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package adql builds ADQL queries for TAP services and translates the
// keyword filter conventions used on the command line ("Vmag=<10",
// "otype=G*", "plx=5..10") into ADQL predicates.
package adql

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/astroquery/pkg/types"
)

var (
	bareIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
	decimal   = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)
)

// Quote returns s as an ADQL string literal.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// QuoteIdent returns name unchanged when it is a plain (optionally
// schema-qualified) identifier, and double-quoted otherwise. VizieR table
// names such as I/239/hip_main need the quotes.
func QuoteIdent(name string) string {
	if bareIdent.MatchString(name) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Select is a single-table ADQL SELECT statement.
type Select struct {
	Table   string
	Columns []string
	Where   []string
	OrderBy string
	Top     int
}

// String renders the statement.
func (s Select) String() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if s.Top > 0 {
		fmt.Fprintf(&b, "TOP %d ", s.Top)
	}
	if len(s.Columns) == 0 {
		b.WriteString("*")
	} else {
		cols := make([]string, len(s.Columns))
		for i, c := range s.Columns {
			cols[i] = QuoteIdent(c)
		}
		b.WriteString(strings.Join(cols, ", "))
	}
	b.WriteString(" FROM ")
	b.WriteString(QuoteIdent(s.Table))
	if len(s.Where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(s.Where, " AND "))
	}
	if s.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(s.OrderBy)
	}
	return b.String()
}

// Cone returns the ADQL predicate selecting rows within radius degrees of c.
func Cone(raCol, decCol string, c types.Coordinate, radius float64) string {
	return fmt.Sprintf("1=CONTAINS(POINT('ICRS', %s, %s), CIRCLE('ICRS', %s, %s, %s))",
		QuoteIdent(raCol), QuoteIdent(decCol), num(c.RA), num(c.Dec), num(radius))
}

// Distance returns the ADQL expression for the angular distance in degrees
// between the row position and c.
func Distance(raCol, decCol string, c types.Coordinate) string {
	return fmt.Sprintf("DISTANCE(POINT('ICRS', %s, %s), POINT('ICRS', %s, %s))",
		QuoteIdent(raCol), QuoteIdent(decCol), num(c.RA), num(c.Dec))
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Op is a filter comparison operator.
type Op string

const (
	OpEq      Op = "="
	OpNe      Op = "!="
	OpLt      Op = "<"
	OpLe      Op = "<="
	OpGt      Op = ">"
	OpGe      Op = ">="
	OpBetween Op = "BETWEEN"
	OpIn      Op = "IN"
	OpLike    Op = "LIKE"
)

// Filter is a parsed keyword constraint on one column.
type Filter struct {
	Column string
	Op     Op
	Values []string
	Negate bool
}

// comparisons are checked longest first so "<=" is not read as "<".
var comparisons = []Op{OpLe, OpGe, OpNe, OpLt, OpGt, OpEq}

// ParseFilter translates a keyword constraint into a Filter:
//
//	"<10", ">=5", "!=3", "=7"  comparisons
//	"5..10"                    inclusive range
//	"a,b,c"                    list membership
//	"M*", "NGC?24"             wildcards (* any run, ? one character)
//	"!expr"                    negation of any of the above
//	"12.5", "Star"             equality
func ParseFilter(column, expr string) (Filter, error) {
	if strings.TrimSpace(column) == "" {
		return Filter{}, fmt.Errorf("filter has no column")
	}
	f := Filter{Column: column}
	text := strings.TrimSpace(expr)
	if text == "" {
		return f, fmt.Errorf("filter for %s is empty", column)
	}

	if strings.HasPrefix(text, "!") && !strings.HasPrefix(text, "!=") {
		f.Negate = true
		text = strings.TrimSpace(text[1:])
		if text == "" {
			return f, fmt.Errorf("filter for %s negates nothing", column)
		}
	}

	for _, op := range comparisons {
		if strings.HasPrefix(text, string(op)) {
			v := strings.TrimSpace(strings.TrimPrefix(text, string(op)))
			if v == "" {
				return f, fmt.Errorf("filter for %s: %s needs a value", column, op)
			}
			f.Op, f.Values = op, []string{v}
			return f, nil
		}
	}

	if lo, hi, ok := strings.Cut(text, ".."); ok {
		lo, hi = strings.TrimSpace(lo), strings.TrimSpace(hi)
		if lo == "" || hi == "" {
			return f, fmt.Errorf("filter for %s: range %q needs both bounds", column, text)
		}
		f.Op, f.Values = OpBetween, []string{lo, hi}
		return f, nil
	}

	if strings.Contains(text, ",") {
		var values []string
		for _, v := range strings.Split(text, ",") {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
		f.Op, f.Values = OpIn, values
		return f, nil
	}

	if strings.ContainsAny(text, "*?") {
		f.Op, f.Values = OpLike, []string{text}
		return f, nil
	}

	f.Op, f.Values = OpEq, []string{text}
	return f, nil
}

// SQL renders the filter as an ADQL predicate. Decimal numbers are emitted
// bare; everything else is quoted, and so are column names such as "B-V".
func (f Filter) SQL() string {
	col := QuoteIdent(strings.TrimSpace(f.Column))
	var pred string
	switch f.Op {
	case OpBetween:
		pred = fmt.Sprintf("%s BETWEEN %s AND %s", col, literal(f.Values[0]), literal(f.Values[1]))
	case OpIn:
		lits := make([]string, len(f.Values))
		for i, v := range f.Values {
			lits[i] = literal(v)
		}
		pred = fmt.Sprintf("%s IN (%s)", col, strings.Join(lits, ", "))
	case OpLike:
		pattern := strings.NewReplacer("*", "%", "?", "_").Replace(f.Values[0])
		pred = fmt.Sprintf("%s LIKE %s", col, Quote(pattern))
	case OpNe:
		pred = fmt.Sprintf("%s <> %s", col, literal(f.Values[0]))
	default:
		pred = fmt.Sprintf("%s %s %s", col, f.Op, literal(f.Values[0]))
	}
	if f.Negate {
		return "NOT (" + pred + ")"
	}
	return pred
}

func literal(v string) string {
	if decimal.MatchString(v) {
		return v
	}
	return Quote(v)
}

// Where parses every column=expr constraint and returns the predicates in
// column order so the generated query is stable.
func Where(filters map[string]string) ([]string, error) {
	cols := make([]string, 0, len(filters))
	for c := range filters {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	preds := make([]string, 0, len(cols))
	for _, c := range cols {
		f, err := ParseFilter(c, filters[c])
		if err != nil {
			return nil, err
		}
		preds = append(preds, f.SQL())
	}
	return preds, nil
}

// ParseAssignment splits a command-line constraint into column and
// expression. "Vmag=<10" and "Vmag<10" both yield ("Vmag", "<10");
// "mag!=5" yields ("mag", "!=5"); a single '=' after the column is the
// assignment itself, so "mag==5" yields ("mag", "=5").
func ParseAssignment(s string) (string, string, error) {
	idx := strings.IndexAny(s, "=<>!")
	if idx <= 0 || strings.TrimSpace(s[:idx]) == "" {
		return "", "", fmt.Errorf("filter %q must look like column=expression", s)
	}
	col := strings.TrimSpace(s[:idx])
	expr := s[idx:]
	if strings.HasPrefix(expr, "=") {
		expr = expr[1:]
	}
	return col, expr, nil
}
