package orm

import (
	"context"
	"strings"

	"github.com/mickamy/ormfind/scope"
)

// Query represents a pending load of T.
// All builder methods return a new Query; the receiver is never modified.
type Query[T any] struct {
	f        *Finder
	db       Querier
	criteria []Criterion
}

// Find starts a Query for T.
//
//	orders, err := orm.Find[Order](finder, db).Where("customerId", 3).All(ctx)
func Find[T any](f *Finder, db Querier) *Query[T] {
	return &Query[T]{f: f, db: db}
}

// clone returns a shallow copy with criteria copied to avoid aliasing.
func (q *Query[T]) clone() *Query[T] {
	q2 := *q
	q2.criteria = append([]Criterion(nil), q.criteria...)
	return &q2
}

// --- Builder methods ---

// Where adds the criterion column=value.
func (q *Query[T]) Where(column string, value any) *Query[T] {
	q2 := q.clone()
	q2.criteria = append(q2.criteria, Eq(column, value))
	return q2
}

// Scopes applies the given scope.Scope values to the query.
func (q *Query[T]) Scopes(scopes ...scope.Scope) *Query[T] {
	q2 := q.clone()
	for _, s := range scopes {
		s.Apply(q2)
	}
	return q2
}

// Criteria returns a copy of the accumulated criteria.
func (q *Query[T]) Criteria() []Criterion {
	return append([]Criterion(nil), q.criteria...)
}

// --- scope.Applier implementation ---

func (q *Query[T]) ApplyCriterion(column string, value any) {
	q.criteria = append(q.criteria, Eq(column, value))
}

var _ scope.Applier = (*Query[any])(nil)

// --- Terminal methods ---

// All loads every matching T.
func (q *Query[T]) All(ctx context.Context) ([]T, error) {
	return Load[T](ctx, q.f, q.db, q.criteria...)
}

// First loads the first matching T. Returns ErrNotFound if no rows match.
func (q *Query[T]) First(ctx context.Context) (T, error) {
	return First[T](ctx, q.f, q.db, q.criteria...)
}

// SQL returns the statement and bound arguments All would run for T itself,
// without executing anything.
func (q *Query[T]) SQL() (string, []any, error) {
	m, err := ModelFor[T](q.f.registry)
	if err != nil {
		return "", nil, err
	}
	query, args := BuildSelect(q.db.dialect(), m.Table, q.criteria)
	return query, args, nil
}

// --- SQL building ---

// BuildSelect renders
//
//	SELECT * FROM <table>[ WHERE <col1>=? AND <col2>=? ...]
//
// with placeholders and identifier quoting taken from d, and returns the
// criteria values in bind order.
func BuildSelect(d Dialect, table string, criteria []Criterion) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(d.QuoteIdent(table))

	if len(criteria) > 0 {
		b.WriteString(" WHERE ")
		for i, c := range criteria {
			if i > 0 {
				b.WriteString(" AND ")
			}
			b.WriteString(d.QuoteIdent(c.Column))
			b.WriteByte('=')
			b.WriteString(d.Placeholder(i + 1))
		}
	}

	return b.String(), criteriaArgs(criteria)
}
