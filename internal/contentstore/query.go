package contentstore

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

const tableClause = `sections s
	LEFT JOIN documents d ON d.id = s.id
	LEFT JOIN objects o ON o.id = s.id
	LEFT JOIN scores sc ON sc.indexid = s.indexid`

var (
	jsonPath = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

	sectionColumns = map[string]bool{
		"indexid": true, "id": true, "tags": true, "entry": true,
		"app_name": true, "window_name": true, "captured_at": true,
		"path": true, "is_transcription": true,
	}

	// Unambiguous across the joined tables.
	plainColumns = map[string]bool{"data": true, "object": true, "score": true, "text": true}

	functions = map[string]bool{
		"count": true, "max": true, "min": true, "sum": true, "avg": true,
		"json_group_array": true, "group_concat": true,
		"lower": true, "upper": true, "length": true, "date": true,
	}

	operators = map[string]bool{
		"=": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
		"LIKE": true, "IN": true, "NOT IN": true, "IS NULL": true, "IS NOT NULL": true,
	}
)

// Column selects a logical column, optionally wrapped in an allowed
// function, under an optional output label.
type Column struct {
	Name string
	Func string
	As   string
}

// Cond is a predicate comparing a logical column against a bound value.
type Cond struct {
	Column string
	Func   string
	Op     string
	Value  any
}

// Order is one ORDER BY term.
type Order struct {
	Column string
	Func   string
	Desc   bool
}

// Query describes a statement over sections joined with documents,
// objects and scores. Similar holds one ranked hit list per similarity
// sub-clause; each sub-clause is ANDed into the filter.
type Query struct {
	Select   []Column
	Distinct bool
	Where    []Cond
	GroupBy  []string
	Having   []Cond
	OrderBy  []Order
	Limit    int
	Offset   int
	Similar  [][]Scored
}

var defaultSelect = []Column{{Name: "id"}, {Name: "text"}, {Name: "score"}}

// Resolve maps a logical column name to its SQL expression. Section
// columns are qualified with the sections alias, data/object/score/text
// pass through, and any other dotted name is read from the document JSON.
// Configured aliases override all of these. A non-empty alias labels the
// expression.
func (s *Store) Resolve(name, alias string) (string, error) {
	expr, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	if alias != "" {
		expr += " AS " + quoteLabel(alias)
	}
	return expr, nil
}

func (s *Store) resolve(name string) (string, error) {
	if expr, ok := s.aliases[name]; ok {
		return expr, nil
	}
	switch {
	case sectionColumns[name]:
		return "s." + name, nil
	case plainColumns[name]:
		return name, nil
	case jsonPath.MatchString(name):
		return fmt.Sprintf("json_extract(d.data, '$.%s')", name), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrColumn, name)
	}
}

func (s *Store) expression(name, fn string) (string, error) {
	fn = strings.ToLower(fn)
	if name == "*" {
		if fn != "count" {
			return "", fmt.Errorf("%w: * outside count", ErrColumn)
		}
		return "count(*)", nil
	}
	expr, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	if fn == "" {
		return expr, nil
	}
	if !functions[fn] {
		return "", fmt.Errorf("%w: function %q", ErrColumn, fn)
	}
	return fn + "(" + expr + ")", nil
}

func quoteLabel(label string) string {
	return `"` + strings.ReplaceAll(label, `"`, `""`) + `"`
}

func label(c Column) string {
	switch {
	case c.As != "":
		return c.As
	case c.Func != "":
		return strings.ToLower(c.Func) + "(" + c.Name + ")"
	default:
		return c.Name
	}
}

func (s *Store) predicates(conds []Cond) ([]string, []any, error) {
	var (
		clauses []string
		args    []any
	)
	for _, c := range conds {
		expr, err := s.expression(c.Column, c.Func)
		if err != nil {
			return nil, nil, err
		}
		op := strings.ToUpper(strings.TrimSpace(c.Op))
		if !operators[op] {
			return nil, nil, fmt.Errorf("%w: operator %q", ErrColumn, c.Op)
		}
		switch op {
		case "IS NULL", "IS NOT NULL":
			clauses = append(clauses, expr+" "+op)
		case "IN", "NOT IN":
			vals := expand(c.Value)
			if len(vals) == 0 {
				if op == "IN" {
					clauses = append(clauses, "0")
				}
				continue
			}
			marks := strings.TrimSuffix(strings.Repeat("?, ", len(vals)), ", ")
			clauses = append(clauses, fmt.Sprintf("%s %s (%s)", expr, op, marks))
			args = append(args, vals...)
		default:
			clauses = append(clauses, expr+" "+op+" ?")
			args = append(args, c.Value)
		}
	}
	return clauses, args, nil
}

// expand flattens a slice value into bind arguments. Scalars become a
// single argument.
func expand(v any) []any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return []any{v}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// build renders q. Similarity filters are produced by embedClause on ex, so
// build must run on the connection that executes the statement.
func (s *Store) build(ctx context.Context, ex execer, q Query) (string, []any, []bool, error) {
	cols := q.Select
	if len(cols) == 0 {
		cols = defaultSelect
	}

	var (
		sb      strings.Builder
		args    []any
		objects = make([]bool, len(cols))
		exprs   = make([]string, len(cols))
	)
	for i, c := range cols {
		expr, err := s.expression(c.Name, c.Func)
		if err != nil {
			return "", nil, nil, err
		}
		exprs[i] = expr + " AS " + quoteLabel(label(c))
		objects[i] = c.Name == "object" && c.Func == ""
	}

	sb.WriteString("SELECT ")
	if q.Distinct {
		sb.WriteString("DISTINCT ")
	}
	sb.WriteString(strings.Join(exprs, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(tableClause)

	where, wargs, err := s.predicates(q.Where)
	if err != nil {
		return "", nil, nil, err
	}
	args = append(args, wargs...)

	if len(q.Similar) > 0 {
		for n := range q.Similar {
			filter, err := embedClause(ctx, ex, q.Similar, n)
			if err != nil {
				return "", nil, nil, err
			}
			where = append(where, filter)
		}
	} else if err := clearScores(ctx, ex); err != nil {
		return "", nil, nil, err
	}
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}

	if len(q.GroupBy) > 0 {
		groups := make([]string, len(q.GroupBy))
		for i, g := range q.GroupBy {
			if groups[i], err = s.resolve(g); err != nil {
				return "", nil, nil, err
			}
		}
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(groups, ", "))
	}

	having, hargs, err := s.predicates(q.Having)
	if err != nil {
		return "", nil, nil, err
	}
	if len(having) > 0 {
		sb.WriteString(" HAVING ")
		sb.WriteString(strings.Join(having, " AND "))
		args = append(args, hargs...)
	}

	orders := q.OrderBy
	if len(orders) == 0 && len(q.Similar) > 0 {
		orders = []Order{{Column: "score", Desc: true}}
	}
	if len(orders) > 0 {
		terms := make([]string, len(orders))
		for i, o := range orders {
			expr, err := s.expression(o.Column, o.Func)
			if err != nil {
				return "", nil, nil, err
			}
			if o.Desc {
				expr += " DESC"
			}
			terms[i] = expr
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(terms, ", "))
	}

	if q.Limit > 0 || q.Offset > 0 {
		limit := q.Limit
		if limit <= 0 {
			limit = -1
		}
		sb.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, limit, q.Offset)
	}
	return sb.String(), args, objects, nil
}

// Query runs q and returns one map per result row keyed by column label.
// When several selected columns share a label the first non-null value
// wins. Object columns are decoded with the store's Encoder.
func (s *Store) Query(ctx context.Context, q Query) ([]map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []map[string]any
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, args, objects, err := s.build(ctx, tx, q)
		if err != nil {
			return err
		}
		rows, err := tx.QueryContext(ctx, stmt, args...)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()

		names, err := rows.Columns()
		if err != nil {
			return err
		}
		for rows.Next() {
			vals := make([]any, len(names))
			ptrs := make([]any, len(names))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			row := make(map[string]any, len(names))
			for i, name := range names {
				v := vals[i]
				if b, ok := v.([]byte); ok && objects[i] {
					if v, err = s.encoder.Decode(b); err != nil {
						return err
					}
				}
				if prev, ok := row[name]; ok && prev != nil {
					continue
				}
				row[name] = v
			}
			out = append(out, row)
		}
		return rows.Err()
	})
	return out, err
}
