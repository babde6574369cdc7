package records

import (
	"fmt"

	"github.com/miamirp/cityrecords/pkg/rbac"
)

// FieldType is the wire and storage type of a record field
type FieldType int

const (
	TypeString FieldType = iota
	TypeInt
	TypeBool
)

// String returns a string representation of the field type
func (t FieldType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "integer"
	case TypeBool:
		return "boolean"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// Field describes one client-writable column of a record kind
type Field struct {
	Name     string // JSON name
	Column   string // database column
	Type     FieldType
	Required bool
	// Default applies on create when the field is absent. A nil Default on an
	// optional field stores NULL.
	Default interface{}
	// Ref names the kind this integer field points at.
	Ref rbac.Kind
	// Unique columns surface duplicate values as conflicts.
	Unique bool
}

// Schema describes a record kind: its table, writable fields, and the
// columns searched by substring queries.
type Schema struct {
	Kind   rbac.Kind
	Table  string
	Fields []Field
	// Search lists JSON field names matched by Search, OR-combined.
	Search []string
	// Generated lists server-assigned text columns, filled on create only.
	Generated []Field
	// IssuedAt marks kinds carrying a server-stamped issued_at timestamp.
	IssuedAt bool
}

// Field returns the named field, including generated fields.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	for _, f := range s.Generated {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Columns returns every data column in declaration order, generated fields
// first. System columns (id, stamps) are not included.
func (s *Schema) Columns() []Field {
	out := make([]Field, 0, len(s.Generated)+len(s.Fields))
	out = append(out, s.Generated...)
	out = append(out, s.Fields...)
	return out
}

// SearchColumns maps the Search field names to their columns.
func (s *Schema) SearchColumns() []string {
	cols := make([]string, 0, len(s.Search))
	for _, name := range s.Search {
		if f, ok := s.Field(name); ok {
			cols = append(cols, f.Column)
		}
	}
	return cols
}

// RefField returns the field referencing kind, used for nested reads such as
// the vehicles owned by a citizen.
func (s *Schema) RefField(kind rbac.Kind) (Field, bool) {
	for _, f := range s.Fields {
		if f.Ref == kind {
			return f, true
		}
	}
	return Field{}, false
}

// Record is one stored row rendered with JSON field names
type Record map[string]interface{}

// ID returns the record's primary key
func (r Record) ID() int64 {
	id, _ := r["id"].(int64)
	return id
}

// Values holds validated, coerced field values keyed by JSON field name
type Values map[string]interface{}
