// Package schema provides the immutable field schema the query front end
// validates and compiles against. The schema is loaded once at startup;
// changing it requires a restart.
package schema

import "fmt"

// FieldType is the declared type of an indexed field.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInt     FieldType = "int"
	TypeFloat   FieldType = "float"
	TypeDate    FieldType = "date"
	TypeBoolean FieldType = "boolean"
	TypeVector  FieldType = "vector"
)

// Field describes one indexed field. Dimension and Similarity are only
// meaningful for vector fields.
type Field struct {
	Name        string    `yaml:"name"`
	Type        FieldType `yaml:"type"`
	Indexed     bool      `yaml:"indexed"`
	Stored      bool      `yaml:"stored"`
	MultiValued bool      `yaml:"multi_valued"`
	Dimension   int       `yaml:"dimension,omitempty"`
	Similarity  string    `yaml:"similarity,omitempty"`
}

// Orderable reports whether the field can appear in ORDER BY. Vector fields
// are never orderable; neither are multi-valued fields (no single sort key).
func (f Field) Orderable() bool {
	return f.Type != TypeVector && !f.MultiValued
}

// Comparable reports whether the field supports range operators
// (<, <=, >, >=, BETWEEN).
func (f Field) Comparable() bool {
	switch f.Type {
	case TypeString, TypeInt, TypeFloat, TypeDate:
		return true
	}
	return false
}

// Schema is an immutable snapshot of one collection's fields.
type Schema struct {
	collection string
	fields     map[string]Field
	ordered    []Field
}

// New builds a schema for collection from fields. Vector fields must declare
// a positive dimension and a similarity metric; duplicate names are rejected.
func New(collection string, fields []Field) (*Schema, error) {
	if collection == "" {
		return nil, fmt.Errorf("schema requires a collection name")
	}
	byName := make(map[string]Field, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("schema field without a name")
		}
		if _, dup := byName[f.Name]; dup {
			return nil, fmt.Errorf("duplicate schema field %q", f.Name)
		}
		switch f.Type {
		case TypeString, TypeInt, TypeFloat, TypeDate, TypeBoolean:
		case TypeVector:
			if f.Dimension <= 0 {
				return nil, fmt.Errorf("vector field %q requires a positive dimension", f.Name)
			}
			if f.Similarity == "" {
				return nil, fmt.Errorf("vector field %q requires a similarity metric", f.Name)
			}
		default:
			return nil, fmt.Errorf("field %q has unknown type %q", f.Name, f.Type)
		}
		byName[f.Name] = f
	}
	return &Schema{collection: collection, fields: byName, ordered: append([]Field(nil), fields...)}, nil
}

// Collection returns the collection this schema describes.
func (s *Schema) Collection() string { return s.collection }

// Field returns the named field and whether it exists.
func (s *Schema) Field(name string) (Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// Fields returns the fields in declaration order.
func (s *Schema) Fields() []Field {
	return append([]Field(nil), s.ordered...)
}

// VectorField returns the named field if it is a vector field.
func (s *Schema) VectorField(name string) (Field, error) {
	f, ok := s.fields[name]
	if !ok {
		return Field{}, fmt.Errorf("unknown field %q", name)
	}
	if f.Type != TypeVector {
		return Field{}, fmt.Errorf("field %q is not a vector field", name)
	}
	return f, nil
}
