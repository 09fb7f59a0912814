// Package entity describes the fixed relational surface of the document
// store: each entity kind lives in one table with a set of mapped top-level
// columns and a single JSONB data container holding its schema-flexible
// properties.
package entity

import "sort"

// Type describes one entity kind and its relational mapping.
// Values are immutable after construction; the predefined entities below
// are shared and must never be modified.
type Type struct {
	Name           string   // Logical entity name ("document", "type", "attachment")
	Table          string   // Relational table name
	Columns        []string // Mapped top-level columns, in table order
	DataContainer  string   // JSONB payload column, empty if none
	Discriminator  string   // Type discriminator column, empty if none
	IDColumn       string   // Primary identity column
	NameColumn     string   // Alternative identity column, empty if none
	CreatedColumn  string   // Creation timestamp column
	ModifiedColumn string   // Modification timestamp column
}

// HasColumn reports whether name is a mapped top-level column of the entity.
func (t *Type) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// ColumnNames returns a copy of the mapped column list.
func (t *Type) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	copy(out, t.Columns)
	return out
}

// Predefined entities. The table layout is fixed; schema-flexible data goes
// into the content column.
var (
	// Document is the primary entity: one row per stored document.
	Document = &Type{
		Name:           "document",
		Table:          "documents",
		Columns:        []string{"id", "type", "type_id", "content", "creator", "created", "modified"},
		DataContainer:  "content",
		Discriminator:  "type",
		IDColumn:       "id",
		CreatedColumn:  "created",
		ModifiedColumn: "modified",
	}

	// TypeDef holds declared document types and their field schemas.
	// Rows are identified by id or by unique name.
	TypeDef = &Type{
		Name:           "type",
		Table:          "types",
		Columns:        []string{"id", "name", "schema", "content", "created", "modified"},
		DataContainer:  "content",
		IDColumn:       "id",
		NameColumn:     "name",
		CreatedColumn:  "created",
		ModifiedColumn: "modified",
	}

	// Attachment holds binary payloads owned by a document.
	Attachment = &Type{
		Name:           "attachment",
		Table:          "attachments",
		Columns:        []string{"id", "documents_id", "content", "created", "modified"},
		DataContainer:  "content",
		IDColumn:       "id",
		CreatedColumn:  "created",
		ModifiedColumn: "modified",
	}
)

// ByName returns the predefined entity with the given logical name.
func ByName(name string) (*Type, bool) {
	switch name {
	case Document.Name:
		return Document, true
	case TypeDef.Name:
		return TypeDef, true
	case Attachment.Name:
		return Attachment, true
	default:
		return nil, false
	}
}

// Schema is the declared field schema of one document type, as stored in the
// types table. It is read-only input to cast resolution; ownership belongs
// to the type-management subsystem.
type Schema struct {
	Properties map[string]Property
}

// Property declares the value kind of one schema-flexible field.
type Property struct {
	Type string // "number", "boolean", "string", ...; empty means undeclared
}

// FieldKind returns the declared kind for a field, or empty when the field
// is absent from the schema.
func (s *Schema) FieldKind(name string) string {
	if s == nil || s.Properties == nil {
		return ""
	}
	return s.Properties[name].Type
}

// FieldNames returns the declared field names in sorted order.
func (s *Schema) FieldNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
