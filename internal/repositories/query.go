package repositories

import (
	"strconv"
	"strings"
)

// Page is the _start/_limit/_sort/_order part of a list request.
type Page struct {
	Start int
	Limit int
	Sort  string
	Desc  bool
}

// query accumulates WHERE clauses with numbered placeholders.
type query struct {
	where []string
	args  []any
}

func (q *query) arg(v any) string {
	q.args = append(q.args, v)
	return "$" + strconv.Itoa(len(q.args))
}

func (q *query) and(clause string) {
	q.where = append(q.where, clause)
}

// order renders "col1 DIR, col2 DIR" for the given columns.
func order(desc bool, columns ...string) string {
	dir := " ASC"
	if desc {
		dir = " DESC"
	}
	return strings.Join(columns, dir+", ") + dir
}

func (q *query) build(base, orderBy string, p Page) string {
	var b strings.Builder
	b.WriteString(base)
	if len(q.where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(q.where, " AND "))
	}
	if orderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(orderBy)
	}
	if p.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(q.arg(p.Limit))
	}
	if p.Start > 0 {
		b.WriteString(" OFFSET ")
		b.WriteString(q.arg(p.Start))
	}
	return b.String()
}

func joinSet(set []string) string {
	return strings.Join(set, ", ")
}
