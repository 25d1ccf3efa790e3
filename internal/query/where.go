// Package query carries parameter-bound WHERE fragments between the document
// store and the continuous integration layer.
package query

import (
	"strings"

	"github.com/uptrace/bun"
)

// Where is a bun WHERE fragment. Query uses bun placeholders ("?",
// "?TableAlias"); every caller value travels in Args, including subqueries.
type Where struct {
	Query string
	Args  []any
}

// New builds a fragment from a query and its arguments.
func New(query string, args ...any) Where {
	return Where{Query: strings.TrimSpace(query), Args: args}
}

// Eq matches column = value.
func Eq(column string, value any) Where {
	return Where{Query: "? = ?", Args: []any{bun.Ident(column), value}}
}

// In matches column against a list of values or a *bun.SelectQuery.
func In(column string, values any) Where {
	if sub, ok := values.(*bun.SelectQuery); ok {
		return Where{Query: "? IN (?)", Args: []any{bun.Ident(column), sub}}
	}
	return Where{Query: "? IN (?)", Args: []any{bun.Ident(column), bun.In(values)}}
}

// IsEmpty reports whether the fragment matches everything.
func (w Where) IsEmpty() bool {
	return strings.TrimSpace(w.Query) == ""
}

// And joins fragments with AND, skipping empty ones.
func And(parts ...Where) Where {
	return join(" AND ", parts)
}

// Or joins fragments with OR, skipping empty ones.
func Or(parts ...Where) Where {
	return join(" OR ", parts)
}

func join(op string, parts []Where) Where {
	var (
		kept  []Where
		texts []string
		args  []any
	)
	for _, part := range parts {
		if part.IsEmpty() {
			continue
		}
		kept = append(kept, part)
		texts = append(texts, "("+part.Query+")")
		args = append(args, part.Args...)
	}
	switch len(kept) {
	case 0:
		return Where{}
	case 1:
		return kept[0]
	}
	return Where{Query: strings.Join(texts, op), Args: args}
}

// Apply adds the fragment to a select query. Empty fragments are ignored.
func (w Where) Apply(q *bun.SelectQuery) *bun.SelectQuery {
	if w.IsEmpty() {
		return q
	}
	return q.Where(w.Query, w.Args...)
}

// ApplyUpdate adds the fragment to an update query.
func (w Where) ApplyUpdate(q *bun.UpdateQuery) *bun.UpdateQuery {
	if w.IsEmpty() {
		return q
	}
	return q.Where(w.Query, w.Args...)
}

// ApplyDelete adds the fragment to a delete query.
func (w Where) ApplyDelete(q *bun.DeleteQuery) *bun.DeleteQuery {
	if w.IsEmpty() {
		return q
	}
	return q.Where(w.Query, w.Args...)
}

// EscapeLike escapes LIKE wildcards so value matches literally with
// ESCAPE '\'.
func EscapeLike(value string) string {
	return likeEscaper.Replace(value)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
