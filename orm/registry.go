package orm

import (
	"reflect"
	"sync"

	"github.com/pkg/errors"

	"github.com/mickamy/ormfind/internal/naming"
)

// Registry builds and caches one Model per record type.
// It is safe for concurrent use.
type Registry struct {
	tableName  func(typeName string) string
	columnName func(fieldName string) string
	models     sync.Map // reflect.Type -> *Model
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithTableNaming derives table names from type names with fn.
// The default keeps the bare type name.
func WithTableNaming(fn func(typeName string) string) RegistryOption {
	return func(r *Registry) { r.tableName = fn }
}

// WithColumnNaming derives column names from field names with fn.
// The default keeps the field name. A `db:"name"` tag always wins.
func WithColumnNaming(fn func(fieldName string) string) RegistryOption {
	return func(r *Registry) { r.columnName = fn }
}

// PluralSnake maps "OrderItem" to "order_items".
func PluralSnake(name string) string { return naming.PluralSnake(name) }

// SnakeCase maps "OrderID" to "order_id".
func SnakeCase(name string) string { return naming.CamelToSnake(name) }

// NewRegistry returns an empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tableName:  naming.Bare,
		columnName: naming.Bare,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ModelOf returns the Model for rt, building it on first use.
// Pointer types resolve to their element type.
func (r *Registry) ModelOf(rt reflect.Type) (*Model, error) {
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if v, ok := r.models.Load(rt); ok {
		return v.(*Model), nil
	}

	m, err := buildModel(rt, tableNameOf(rt, r.tableName(rt.Name())), r.columnName)
	if err != nil {
		return nil, newError(KindSchema, rt.Name(), err)
	}
	v, _ := r.models.LoadOrStore(rt, m)
	return v.(*Model), nil
}

// ModelFor returns the Model for T.
func ModelFor[T any](r *Registry) (*Model, error) {
	return r.ModelOf(reflect.TypeFor[T]())
}

// Register builds the models for the given sample values and every type
// reachable through their relations, so mapping errors surface at startup
// rather than on the first query.
//
//	registry.Register(Order{}, Customer{})
func (r *Registry) Register(samples ...any) error {
	seen := make(map[reflect.Type]struct{})
	var walk func(rt reflect.Type) error
	walk = func(rt reflect.Type) error {
		m, err := r.ModelOf(rt)
		if err != nil {
			return err
		}
		if _, ok := seen[m.Type]; ok {
			return nil
		}
		seen[m.Type] = struct{}{}
		for _, rel := range m.Relations {
			if err := walk(rel.Target); err != nil {
				return errors.WithMessagef(err, "%s.%s", m.Type.Name(), rel.Field)
			}
		}
		return nil
	}

	for _, s := range samples {
		if s == nil {
			return newError(KindSchema, "", errors.Wrap(ErrInvalidModel, "nil sample"))
		}
		if err := walk(reflect.TypeOf(s)); err != nil {
			return err
		}
	}
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(samples ...any) {
	if err := r.Register(samples...); err != nil {
		panic(err)
	}
}
