package orm

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when a query expects at least one row but finds none.
var ErrNotFound = errors.New("orm: not found")

var (
	ErrInvalidModel        = errors.New("orm: invalid model")
	ErrNoPrimaryKey        = errors.New("orm: no primary key")
	ErrMultiplePrimaryKeys = errors.New("orm: multiple primary keys")
	ErrMissingColumn       = errors.New("orm: missing column")
	ErrCycle               = errors.New("orm: relationship cycle detected")
	ErrMaxDepth            = errors.New("orm: relationship depth limit exceeded")
)

// Kind classifies a failure so callers can tell a broken mapping from a
// broken connection or a bad row.
type Kind int

const (
	KindUnknown Kind = iota
	// KindSchema covers mapping descriptor errors found while building a Model.
	KindSchema
	// KindQuery covers statement preparation and execution, including
	// connectivity loss.
	KindQuery
	// KindMaterialize covers row scanning: type mismatch or missing column.
	KindMaterialize
	// KindRelation covers relationship resolution.
	KindRelation
)

func (k Kind) String() string {
	switch k {
	case KindSchema:
		return "schema"
	case KindQuery:
		return "query"
	case KindMaterialize:
		return "materialize"
	case KindRelation:
		return "relation"
	default:
		return "unknown"
	}
}

// Error is the typed failure returned by Load, FindByQuery and model building.
type Error struct {
	Kind  Kind
	Table string
	Err   error
}

func (e *Error) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("orm: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("orm: %s %s: %v", e.Kind, e.Table, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind Kind, table string, err error) *Error {
	return &Error{Kind: kind, Table: table, Err: err}
}
