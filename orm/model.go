package orm

import (
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

// Cardinality says whether a relationship holds one record or a collection.
type Cardinality int

const (
	HasOne Cardinality = iota + 1
	HasMany
)

func (c Cardinality) String() string {
	switch c {
	case HasOne:
		return "has_one"
	case HasMany:
		return "has_many"
	default:
		return "unknown"
	}
}

// Column maps one result column onto one struct field.
type Column struct {
	Name  string // column name in the result set
	Field string // Go field name
	index int
}

// addr returns a pointer to the column's field on rec, suitable for Scan.
func (c Column) addr(rec reflect.Value) any {
	return rec.Field(c.index).Addr().Interface()
}

// value reads the column's field from rec.
func (c Column) value(rec reflect.Value) any {
	return rec.Field(c.index).Interface()
}

// Relation is a field resolved through a secondary query against Target,
// matching ForeignKey on the target table to the owner's primary key.
type Relation struct {
	Field       string
	ForeignKey  string
	Reference   string
	Cardinality Cardinality
	// Lazy is carried from the declaration; relations are always loaded eagerly.
	Lazy bool
	// Optional lets a has_one relation resolve to no row.
	Optional bool
	Target   reflect.Type

	index   int
	pointer bool // *T for has_one, []*T for has_many
}

// Model is the mapping descriptor for one record type. It is built once per
// type by a Registry and is read-only afterwards.
type Model struct {
	Type       reflect.Type
	Table      string
	Columns    []Column
	PrimaryKey *Column
	Relations  []Relation
}

// buildModel reads rt's struct tags:
//
//	ID    int     `db:"id,primaryKey"`
//	Note  string  `db:"-"`
//	Items []Item  `rel:"has_many,foreign_key:orderId,reference:order"`
func buildModel(rt reflect.Type, table string, column func(string) string) (*Model, error) {
	if rt.Kind() != reflect.Struct {
		return nil, errors.Wrapf(ErrInvalidModel, "%s is not a struct", rt)
	}

	m := &Model{Type: rt, Table: table}
	pk, implicitPK := -1, -1
	seen := make(map[string]string) // lower-cased column name -> field
	for i := range rt.NumField() {
		sf := rt.Field(i)
		if sf.Anonymous || !sf.IsExported() {
			continue
		}

		if relTag, ok := sf.Tag.Lookup("rel"); ok {
			rel, err := parseRelation(sf, relTag)
			if err != nil {
				return nil, err
			}
			rel.index = i
			m.Relations = append(m.Relations, rel)
			continue
		}

		col := Column{Name: column(sf.Name), Field: sf.Name, index: i}
		primaryKey := false
		if dbTag, ok := sf.Tag.Lookup("db"); ok {
			if dbTag == "-" {
				continue
			}
			parts := strings.Split(dbTag, ",")
			if parts[0] != "" {
				col.Name = parts[0]
			}
			for _, opt := range parts[1:] {
				if opt == "primaryKey" {
					primaryKey = true
				}
			}
		}
		// Result columns match case-insensitively, so names differing only in
		// case would claim the same column.
		folded := strings.ToLower(col.Name)
		if other, ok := seen[folded]; ok {
			return nil, errors.Wrapf(ErrInvalidModel, "%s: column %q mapped by %s and %s", rt.Name(), col.Name, other, sf.Name)
		}
		seen[folded] = sf.Name
		m.Columns = append(m.Columns, col)

		pos := len(m.Columns) - 1
		switch {
		case primaryKey && pk >= 0:
			return nil, errors.Wrapf(ErrMultiplePrimaryKeys, "%s: %s and %s", rt.Name(), m.Columns[pk].Field, sf.Name)
		case primaryKey:
			pk = pos
		case sf.Name == "ID" || sf.Name == "Id":
			if implicitPK >= 0 {
				return nil, errors.Wrapf(ErrMultiplePrimaryKeys, "%s: %s and %s", rt.Name(), m.Columns[implicitPK].Field, sf.Name)
			}
			implicitPK = pos
		}
	}

	// An explicit primaryKey tag wins over a field named ID.
	if pk < 0 {
		pk = implicitPK
	}
	if pk >= 0 {
		m.PrimaryKey = &m.Columns[pk]
	}

	if len(m.Relations) > 0 && m.PrimaryKey == nil {
		return nil, errors.Wrapf(ErrNoPrimaryKey, "%s declares relations", rt.Name())
	}
	return m, nil
}

// ColumnNames returns the mapped column names in declaration order.
func (m *Model) ColumnNames() []string {
	names := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		names[i] = c.Name
	}
	return names
}

// parseRelation reads `rel:"has_one|has_many,foreign_key:col[,reference:x][,lazy][,optional]"`.
func parseRelation(sf reflect.StructField, tag string) (Relation, error) {
	rel := Relation{Field: sf.Name}
	parts := strings.Split(tag, ",")
	switch strings.TrimSpace(parts[0]) {
	case "has_one":
		rel.Cardinality = HasOne
	case "has_many":
		rel.Cardinality = HasMany
	default:
		return Relation{}, errors.Wrapf(ErrInvalidModel, "field %s: unknown relation %q", sf.Name, parts[0])
	}

	for _, opt := range parts[1:] {
		key, val, _ := strings.Cut(strings.TrimSpace(opt), ":")
		switch key {
		case "foreign_key":
			rel.ForeignKey = val
		case "reference":
			rel.Reference = val
		case "lazy":
			rel.Lazy = true
		case "optional":
			rel.Optional = true
		default:
			return Relation{}, errors.Wrapf(ErrInvalidModel, "field %s: unknown relation option %q", sf.Name, key)
		}
	}
	if rel.ForeignKey == "" {
		return Relation{}, errors.Wrapf(ErrInvalidModel, "field %s: foreign_key is required", sf.Name)
	}
	if rel.Optional && rel.Cardinality != HasOne {
		return Relation{}, errors.Wrapf(ErrInvalidModel, "field %s: optional applies to has_one only", sf.Name)
	}

	ft := sf.Type
	switch rel.Cardinality {
	case HasOne:
		if ft.Kind() == reflect.Pointer {
			rel.pointer = true
			ft = ft.Elem()
		}
	case HasMany:
		if ft.Kind() != reflect.Slice {
			return Relation{}, errors.Wrapf(ErrInvalidModel, "field %s: has_many needs a slice, got %s", sf.Name, sf.Type)
		}
		ft = ft.Elem()
		if ft.Kind() == reflect.Pointer {
			rel.pointer = true
			ft = ft.Elem()
		}
	}
	if ft.Kind() != reflect.Struct {
		return Relation{}, errors.Wrapf(ErrInvalidModel, "field %s: %s cannot hold %s", sf.Name, rel.Cardinality, sf.Type)
	}
	rel.Target = ft
	return rel, nil
}
