// Package searchquery implements the catalog Search Query Parser (§4.J): a
// small Lucene-subset expression language (`field:value`, `-field:value`,
// quoted exact phrases, bare terms) that compiles down to a parameterized
// SQL WHERE fragment plus its bound arguments. It never builds SQL by string
// concatenation of user input - every value crosses the boundary as a
// placeholder argument.
package searchquery

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/arimura/mangawatch/internal/parseerr"
)

// Field is one token out of a parsed query: an optional field name, its
// value, whether it was negated with a leading '-', and whether it was
// written as a quoted exact phrase.
type Field struct {
	Name    string
	HasName bool
	Value   string
	Exclude bool
	Exact   bool
}

// Parse tokenizes a query string into Fields. It walks the string one
// rune at a time, tracking whether it is inside a quoted phrase, exactly
// the way the catalog's original query grammar is defined:
//
//	word            -> unqualified term
//	-word           -> excluded unqualified term
//	name:word       -> qualified term
//	-name:word      -> excluded qualified term
//	"word word"     -> exact phrase (quotes may follow a name: too)
func Parse(query string) []Field {
	var (
		inside  bool
		name    string
		hasName bool
		value   strings.Builder
		exclude bool
		exact   bool
		fields  []Field
	)

	flush := func() {
		fields = append(fields, Field{
			Name:    name,
			HasName: hasName,
			Value:   value.String(),
			Exclude: exclude,
			Exact:   exact,
		})
		name = ""
		hasName = false
		value.Reset()
		exclude = false
		exact = false
	}

	for _, r := range query {
		switch r {
		case ' ':
			if !inside {
				flush()
			} else {
				value.WriteByte(' ')
			}
		case ':':
			if !inside {
				name = value.String()
				hasName = true
				value.Reset()
			} else {
				value.WriteByte(':')
			}
		case '-':
			if !inside && value.Len() == 0 {
				exclude = true
			} else {
				value.WriteByte('-')
			}
		case '"':
			inside = !inside
			if inside {
				exact = true
			}
		default:
			value.WriteRune(r)
		}
	}

	if value.Len() > 0 {
		flush()
	}

	return fields
}

// Kind distinguishes how a whitelisted field's value is turned into SQL.
type Kind int

const (
	// Array matches a value against a JSON-array-valued TEXT column by
	// substring, since this catalog stores genres/authors/alt-titles as
	// JSON text rather than a native array column.
	Array Kind = iota
	// Text matches a value against a free-text column by substring.
	Text
	// Date compares a column against a relative time offset (1h, 2d, 3w,
	// 1m, 1y), optionally prefixed with a comparator.
	Date
	// Equals compares a column for exact equality.
	Equals
	// Number compares a numeric column, optionally prefixed with a
	// comparator, against an unsigned 16-bit value.
	Number
)

// SearchField is one entry of the field whitelist: the column it maps to,
// and how its value should be compiled into SQL.
type SearchField struct {
	Kind   Kind
	Column string
	// Future controls the sign of a Date field's relative offset: false
	// resolves "2d" to two days in the past, true to two days ahead.
	Future bool
}

// Fields is the whitelist of queryable field names. Any field name not in
// this map is rejected with parseerr.ErrInvalidArgument - the parser never
// lets an arbitrary caller-supplied identifier reach SQL.
var Fields = map[string]SearchField{
	"title":       {Kind: Text, Column: "title"},
	"description": {Kind: Text, Column: "description"},
	"genres":      {Kind: Array, Column: "genres"},
	"authors":     {Kind: Array, Column: "authors"},
	"alt_titles":  {Kind: Array, Column: "alt_titles"},
	"ongoing":     {Kind: Equals, Column: "ongoing"},
	"created_at":  {Kind: Date, Column: "created_at", Future: false},
	"updated_at":  {Kind: Date, Column: "updated_at", Future: false},
}

// unqualifiedColumns is what a bare, nameless term searches across.
var unqualifiedColumns = []string{"title", "description", "genres", "authors", "alt_titles"}

var comparatorPattern = regexp.MustCompile(`^([<>]=?)?(.+)$`)
var offsetPattern = regexp.MustCompile(`^(\d+)([hdwmy])?$`)

// Clause is one compiled field: a SQL boolean fragment and its bound
// argument(s), ready to be AND-joined into a WHERE clause.
type Clause struct {
	SQL  string
	Args []any
}

// Compile turns parsed Fields into Clauses, rejecting any field name not in
// Fields with parseerr.ErrInvalidArgument.
func Compile(fields []Field) ([]Clause, error) {
	clauses := make([]Clause, 0, len(fields))
	for _, field := range fields {
		clause, err := compileField(field)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}
	return clauses, nil
}

func compileField(field Field) (Clause, error) {
	if !field.HasName {
		return compileUnqualified(field)
	}

	sf, ok := Fields[field.Name]
	if !ok {
		return Clause{}, parseerr.InvalidArgument(fmt.Sprintf("unknown search field %q", field.Name))
	}
	return sf.intoClause(field.Value, field.Exclude)
}

func compileUnqualified(field Field) (Clause, error) {
	parts := make([]string, 0, len(unqualifiedColumns))
	args := make([]any, 0, len(unqualifiedColumns))
	wildcard := "%" + field.Value + "%"
	for _, column := range unqualifiedColumns {
		parts = append(parts, column+" LIKE ?")
		args = append(args, wildcard)
	}
	sql := "(" + strings.Join(parts, " OR ") + ")"
	if field.Exclude {
		sql = "NOT " + sql
	}
	return Clause{SQL: sql, Args: args}, nil
}

func (sf SearchField) intoClause(value string, exclude bool) (Clause, error) {
	prefix := ""
	if exclude {
		prefix = "NOT "
	}

	switch sf.Kind {
	case Array, Text:
		return Clause{SQL: prefix + sf.Column + " LIKE ?", Args: []any{"%" + value + "%"}}, nil
	case Equals:
		return Clause{SQL: prefix + sf.Column + " = ?", Args: []any{value}}, nil
	case Date:
		compare, rest := splitComparator(value, ">=")
		at, err := parseRelativeOffset(rest, sf.Future)
		if err != nil {
			return Clause{}, err
		}
		return Clause{SQL: prefix + sf.Column + " " + compare + " ?", Args: []any{at}}, nil
	case Number:
		compare, rest := splitComparator(value, "=")
		n, err := strconv.ParseUint(rest, 10, 16)
		if err != nil {
			return Clause{}, parseerr.InvalidArgument(fmt.Sprintf("expected number but got %s", value))
		}
		return Clause{SQL: prefix + sf.Column + " " + compare + " ?", Args: []any{n}}, nil
	default:
		return Clause{}, fmt.Errorf("searchquery: unhandled field kind %v", sf.Kind)
	}
}

// splitComparator pulls an optional leading <, >, <=, or >= off value,
// normalizing a bare < or > to its inclusive form, and falling back to
// defaultCompare when none is present.
func splitComparator(value, defaultCompare string) (compare, rest string) {
	m := comparatorPattern.FindStringSubmatch(value)
	if m == nil || m[1] == "" {
		return defaultCompare, value
	}
	cmp := m[1]
	if !strings.HasSuffix(cmp, "=") {
		cmp += "="
	}
	return cmp, m[2]
}

// parseRelativeOffset parses values like "1h", "2d", "3w", "1m", "1y" (a
// bare number defaults to days) into an absolute time, offset from now
// either into the past (future=false) or the future (future=true).
func parseRelativeOffset(value string, future bool) (time.Time, error) {
	m := offsetPattern.FindStringSubmatch(value)
	if m == nil {
		return time.Time{}, parseerr.InvalidArgument(fmt.Sprintf("expected date format but got %s", value))
	}

	amount, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return time.Time{}, parseerr.InvalidArgument(fmt.Sprintf("expected number but got %s", m[1]))
	}

	unit := m[2]
	if unit == "" {
		unit = "d"
	}

	var change time.Duration
	switch unit {
	case "h":
		change = time.Duration(amount) * time.Hour
	case "d":
		change = time.Duration(amount) * 24 * time.Hour
	case "w":
		change = time.Duration(amount) * 7 * 24 * time.Hour
	case "m":
		change = time.Duration(amount) * 2629800 * time.Second
	case "y":
		change = time.Duration(amount) * 31536000 * time.Second
	}

	now := time.Now().UTC()
	if future {
		return now.Add(change), nil
	}
	return now.Add(-change), nil
}

// Where joins clauses with AND into a single WHERE fragment (without the
// WHERE keyword) plus the flattened, ordered argument list. An empty
// clause list returns ("1=1", nil) so callers can splice it in unconditionally.
func Where(clauses []Clause) (string, []any) {
	if len(clauses) == 0 {
		return "1=1", nil
	}
	parts := make([]string, 0, len(clauses))
	var args []any
	for _, c := range clauses {
		parts = append(parts, c.SQL)
		args = append(args, c.Args...)
	}
	return strings.Join(parts, " AND "), args
}
