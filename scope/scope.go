package scope

import "sort"

// Applier is implemented by query builders to receive scope fragments.
// This interface lives in the scope package so that orm can import scope
// without creating circular dependencies.
type Applier interface {
	ApplyCriterion(column string, value any)
}

type criterion struct {
	column string
	value  any
}

// Scope is a reusable set of equality criteria.
// Scopes are immutable and safe to reuse across queries.
type Scope struct {
	criteria []criterion
}

// Apply dispatches every criterion of this Scope to the given Applier,
// in order.
func (s Scope) Apply(a Applier) {
	for _, c := range s.criteria {
		a.ApplyCriterion(c.column, c.value)
	}
}

// Len returns the number of criteria in the Scope.
func (s Scope) Len() int { return len(s.criteria) }

// Eq returns a Scope holding the single criterion column=value.
//
//	scope.Eq("status", "open")
func Eq(column string, value any) Scope {
	return Scope{criteria: []criterion{{column, value}}}
}

// Match returns a Scope with one criterion per map entry, ordered by column
// name so the generated statement is stable.
//
//	scope.Match(map[string]any{"status": "open", "customerId": 3})
func Match(fields map[string]any) Scope {
	cols := make([]string, 0, len(fields))
	for c := range fields {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	s := Scope{criteria: make([]criterion, len(cols))}
	for i, c := range cols {
		s.criteria[i] = criterion{c, fields[c]}
	}
	return s
}

// Scopes is a named slice of Scope, useful for conditionally building
// up a set of scopes.
//
//	var s scope.Scopes
//	if onlyOpen {
//	    s = s.Append(Open)
//	}
//	orm.Find[Order](finder, db).Scopes(s...).All(ctx)
type Scopes []Scope

// Append adds scopes and returns a new Scopes. The receiver is not modified.
func (ss Scopes) Append(scopes ...Scope) Scopes {
	return append(append(Scopes(nil), ss...), scopes...)
}

// Merge concatenates two Scopes and returns a new Scopes.
// Neither receiver nor argument is modified.
func (ss Scopes) Merge(other Scopes) Scopes {
	return append(append(Scopes(nil), ss...), other...)
}

// Combine creates a Scopes from the given scopes.
//
//	scope.Combine(scope.Eq("status", "open"), scope.Eq("customerId", 3))
func Combine(scopes ...Scope) Scopes {
	return Scopes(scopes)
}
