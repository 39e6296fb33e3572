package orm

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultMaxDepth bounds relationship recursion when no WithMaxDepth is given.
const DefaultMaxDepth = 32

// Finder loads records by criteria and eagerly follows their relations.
// A Finder holds no per-call state and may be shared; the Querier handed to
// each call is only as concurrency-safe as the connection behind it.
type Finder struct {
	registry *Registry
	logger   logrus.FieldLogger
	maxDepth int
}

// Option configures a Finder.
type Option func(*Finder)

// WithRegistry sets the Registry models are taken from. A nil Registry is
// ignored.
func WithRegistry(r *Registry) Option {
	return func(f *Finder) {
		if r != nil {
			f.registry = r
		}
	}
}

// WithLogger sets the logger used for statements and release failures.
// A nil logger is ignored.
func WithLogger(l logrus.FieldLogger) Option {
	return func(f *Finder) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithMaxDepth bounds how many relationship levels a single load may follow.
// There is no unlimited setting: n <= 0 keeps DefaultMaxDepth.
func WithMaxDepth(n int) Option {
	return func(f *Finder) {
		if n > 0 {
			f.maxDepth = n
		}
	}
}

// NewFinder returns a Finder with a fresh Registry and the standard logrus
// logger unless overridden.
func NewFinder(opts ...Option) *Finder {
	f := &Finder{
		registry: NewRegistry(),
		logger:   logrus.StandardLogger(),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Registry returns the Registry the finder builds models with.
func (f *Finder) Registry() *Registry { return f.registry }

// Load selects every row of T's table matching criteria and returns one
// populated T per row, relations included. T may be a struct or a pointer
// to one. Any failure aborts the whole load and no records are returned.
func Load[T any](ctx context.Context, f *Finder, db Querier, criteria ...Criterion) ([]T, error) {
	rt := reflect.TypeFor[T]()
	m, err := f.registry.ModelOf(rt)
	if err != nil {
		return nil, err
	}
	if rt.Kind() == reflect.Pointer && rt.Elem() != m.Type {
		return nil, newError(KindSchema, m.Table, errors.Wrapf(ErrInvalidModel, "%s: use T or *T", rt))
	}

	recs, err := f.load(ctx, db, m, criteria, newTrail())
	if err != nil {
		return nil, err
	}

	result := make([]T, len(recs))
	for i, rec := range recs {
		if rt.Kind() == reflect.Pointer {
			result[i] = rec.Interface().(T)
		} else {
			result[i] = rec.Elem().Interface().(T)
		}
	}
	return result, nil
}

// First is Load returning only the first record, or ErrNotFound.
func First[T any](ctx context.Context, f *Finder, db Querier, criteria ...Criterion) (T, error) {
	var zero T
	items, err := Load[T](ctx, f, db, criteria...)
	if err != nil {
		return zero, err
	}
	if len(items) == 0 {
		return zero, ErrNotFound
	}
	return items[0], nil
}

// FindByQuery runs a caller-written query and returns the first column of
// every row. Criteria values are bound positionally; their column names are
// ignored. The query text itself is not validated or escaped.
//
// Under dialects with numbered placeholders every ? is rewritten, including
// one inside a string literal or an operator such as jsonb ?. Bind such
// values as arguments instead.
func (f *Finder) FindByQuery(ctx context.Context, db Querier, query string, criteria ...Criterion) ([]any, error) {
	return pluck[any](ctx, f, db, query, criteria)
}

// Pluck is FindByQuery with the first column scanned into V.
func Pluck[V any](ctx context.Context, f *Finder, db Querier, query string, criteria ...Criterion) ([]V, error) {
	return pluck[V](ctx, f, db, query, criteria)
}

func pluck[V any](ctx context.Context, f *Finder, db Querier, query string, criteria []Criterion) ([]V, error) {
	query = rewritePlaceholders(db.dialect(), query)
	args := criteriaArgs(criteria)

	stmt, rows, err := f.open(ctx, db, "", query, args)
	defer f.release("", stmt, rows)
	if err != nil {
		return nil, err
	}

	cols, err := rows.Columns()
	if err != nil {
		return nil, newError(KindMaterialize, "", errors.Wrap(err, "read columns"))
	}
	if len(cols) == 0 {
		return nil, newError(KindMaterialize, "", errors.New("query returned zero columns"))
	}

	var (
		result []V
		sink   sql.RawBytes
	)
	dests := make([]any, len(cols))
	for i := 1; i < len(dests); i++ {
		dests[i] = &sink
	}
	for rows.Next() {
		var v V
		dests[0] = &v
		if err := rows.Scan(dests...); err != nil {
			return nil, newError(KindMaterialize, "", errors.Wrap(err, "scan"))
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, newError(KindQuery, "", errors.Wrap(err, "iterate"))
	}
	return result, nil
}

// load returns one *T (as reflect.Value) per matching row of m's table.
// Rows are fully read and the cursor released before relations are
// resolved, so nested statements never run while a cursor is open on the
// same connection.
func (f *Finder) load(ctx context.Context, db Querier, m *Model, criteria []Criterion, tr *trail) ([]reflect.Value, error) {
	recs, err := f.selectRecords(ctx, db, m, criteria)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		if err := f.resolveRelations(ctx, db, m, rec, tr); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

func (f *Finder) selectRecords(ctx context.Context, db Querier, m *Model, criteria []Criterion) ([]reflect.Value, error) {
	query, args := BuildSelect(db.dialect(), m.Table, criteria)

	stmt, rows, err := f.open(ctx, db, m.Table, query, args)
	defer f.release(m.Table, stmt, rows)
	if err != nil {
		return nil, err
	}

	cols, err := rows.Columns()
	if err != nil {
		return nil, newError(KindMaterialize, m.Table, errors.Wrap(err, "read columns"))
	}
	plan, err := planColumns(m, cols)
	if err != nil {
		return nil, newError(KindMaterialize, m.Table, err)
	}

	var (
		recs []reflect.Value
		sink sql.RawBytes
	)
	dests := make([]any, len(cols))
	for rows.Next() {
		rec := reflect.New(m.Type)
		for i, ci := range plan {
			if ci < 0 {
				dests[i] = &sink
				continue
			}
			dests[i] = m.Columns[ci].addr(rec.Elem())
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, newError(KindMaterialize, m.Table, errors.Wrap(err, "scan"))
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, newError(KindQuery, m.Table, errors.Wrap(err, "iterate"))
	}
	return recs, nil
}

// open prepares query and executes it with args. On failure the returned
// statement may still be non-nil and must be released by the caller.
func (f *Finder) open(ctx context.Context, db Querier, table, query string, args []any) (*sql.Stmt, *sql.Rows, error) {
	f.logger.WithFields(logrus.Fields{
		"table": table,
		"query": query,
		"args":  args,
	}).Debug("orm: select")

	stmt, err := db.PrepareContext(ctx, query)
	if err != nil {
		return nil, nil, newError(KindQuery, table, errors.Wrap(err, "prepare"))
	}
	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return stmt, nil, newError(KindQuery, table, errors.Wrap(err, "execute"))
	}
	return stmt, rows, nil
}

// release closes rows then stmt. Failures are logged, never returned.
func (f *Finder) release(table string, stmt *sql.Stmt, rows *sql.Rows) {
	if rows != nil {
		if err := rows.Close(); err != nil {
			f.logger.WithError(err).WithField("table", table).Error("orm: failed to close rows")
		}
	}
	if stmt != nil {
		if err := stmt.Close(); err != nil {
			f.logger.WithError(err).WithField("table", table).Error("orm: failed to close statement")
		}
	}
}

// planColumns maps each result column to an index into m.Columns, or -1 for
// columns the model does not declare. Names match exactly first, then
// ignoring ASCII case. Every model column must be present.
func planColumns(m *Model, cols []string) ([]int, error) {
	plan := make([]int, len(cols))
	for i := range plan {
		plan[i] = -1
	}
	for ci, c := range m.Columns {
		i := columnIndex(cols, c.Name)
		if i < 0 {
			return nil, errors.Wrapf(ErrMissingColumn, "%s (field %s)", c.Name, c.Field)
		}
		plan[i] = ci
	}
	return plan, nil
}

func columnIndex(cols []string, name string) int {
	for i, c := range cols {
		if c == name {
			return i
		}
	}
	for i, c := range cols {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}

func (f *Finder) resolveRelations(ctx context.Context, db Querier, m *Model, rec reflect.Value, tr *trail) error {
	if len(m.Relations) == 0 {
		return nil
	}

	key := m.PrimaryKey.value(rec.Elem())
	leave, err := tr.enter(m, key, f.maxDepth)
	if err != nil {
		return newError(KindRelation, m.Table, err)
	}
	defer leave()

	for _, rel := range m.Relations {
		target, err := f.registry.ModelOf(rel.Target)
		if err != nil {
			return err
		}

		children, err := f.load(ctx, db, target, []Criterion{Eq(rel.ForeignKey, key)}, tr)
		if err != nil {
			return errors.WithMessagef(err, "%s.%s", m.Type.Name(), rel.Field)
		}

		field := rec.Elem().Field(rel.index)
		switch rel.Cardinality {
		case HasOne:
			if len(children) == 0 {
				if rel.Optional {
					continue
				}
				return newError(KindRelation, m.Table, errors.Wrapf(ErrNotFound, "%s.%s: no %s with %s=%v",
					m.Type.Name(), rel.Field, target.Table, rel.ForeignKey, key))
			}
			if rel.pointer {
				field.Set(children[0])
			} else {
				field.Set(children[0].Elem())
			}
		case HasMany:
			list := reflect.MakeSlice(field.Type(), 0, len(children))
			for _, c := range children {
				if rel.pointer {
					list = reflect.Append(list, c)
				} else {
					list = reflect.Append(list, c.Elem())
				}
			}
			field.Set(list)
		}
	}
	return nil
}

// trail tracks the (type, key) pairs whose relations are being resolved on
// the current recursion path. Two types may share a table via TableNamer.
type trail struct {
	active map[visit]struct{}
	depth  int
}

type visit struct {
	typ reflect.Type
	key string
}

func newTrail() *trail {
	return &trail{active: make(map[visit]struct{})}
}

func (t *trail) enter(m *Model, key any, maxDepth int) (func(), error) {
	v := visit{typ: m.Type, key: keyString(key)}
	if _, ok := t.active[v]; ok {
		return nil, errors.Wrapf(ErrCycle, "%s with key %v is already being resolved", m.Type.Name(), key)
	}
	if t.depth >= maxDepth {
		return nil, errors.Wrapf(ErrMaxDepth, "%d levels", maxDepth)
	}
	t.active[v] = struct{}{}
	t.depth++
	return func() {
		delete(t.active, v)
		t.depth--
	}, nil
}

// keyString renders a key for map lookup; pointers are followed so two
// records holding equal *int keys compare equal.
func keyString(key any) string {
	rv := reflect.ValueOf(key)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	if !rv.IsValid() || (rv.Kind() == reflect.Pointer && rv.IsNil()) {
		return "<nil>"
	}
	return fmt.Sprintf("%s:%v", rv.Type(), rv.Interface())
}
