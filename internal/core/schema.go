package core

// schema.go defines the Schema Descriptor used to shape imported tables.
//
// A schema is either supplied by the caller, inferred from a header line, or
// derived from an existing table's columns. Engines copy the schema at the
// start of a run so the caller's value is never mutated mid-run.

import (
	"fmt"
	"strings"
)

// Field is a declarative column definition.
type Field struct {
	Name     string    `json:"name"`
	Nullable bool      `json:"nullable"`
	Type     FieldType `json:"type"`
	Length   int       `json:"length,omitempty"` // Fixed-width slice length and bounded string length
}

// Schema is a named, ordered list of fields.
type Schema struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// NewSchema creates a schema from the given fields.
func NewSchema(name string, fields ...Field) *Schema {
	return &Schema{Name: name, Fields: fields}
}

// Clone returns a deep copy of the schema.
func (s *Schema) Clone() *Schema {
	if s == nil {
		return nil
	}
	fields := make([]Field, len(s.Fields))
	copy(fields, s.Fields)
	return &Schema{Name: s.Name, Fields: fields}
}

// Validate reports empty or duplicate field names and negative lengths.
func (s *Schema) Validate() error {
	if s == nil || len(s.Fields) == 0 {
		return fmt.Errorf("schema has no fields")
	}
	seen := make(map[string]bool, len(s.Fields))
	var errs []string
	for i, f := range s.Fields {
		key := strings.ToLower(f.Name)
		switch {
		case key == "":
			errs = append(errs, fmt.Sprintf("field %d has no name", i+1))
		case seen[key]:
			errs = append(errs, fmt.Sprintf("duplicate field %q", f.Name))
		}
		seen[key] = true
		if f.Length < 0 {
			errs = append(errs, fmt.Sprintf("field %q has negative length", f.Name))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid schema: %s", strings.Join(errs, "; "))
	}
	return nil
}

// TotalLength returns the sum of all field lengths (the fixed-width line width).
func (s *Schema) TotalLength() int {
	n := 0
	for _, f := range s.Fields {
		n += f.Length
	}
	return n
}

// NewTable builds an empty table with one column per field. Length becomes
// the column's MaxLength; it only bounds values for String fields.
func (s *Schema) NewTable() *Table {
	cols := make([]Column, len(s.Fields))
	for i, f := range s.Fields {
		cols[i] = Column{
			Name:      f.Name,
			Type:      f.Type,
			Nullable:  f.Nullable,
			MaxLength: f.Length,
		}
	}
	return NewTable(s.Name, cols...)
}

// SchemaFromColumns derives a schema from an existing table's columns.
func SchemaFromColumns(name string, cols []Column) *Schema {
	fields := make([]Field, len(cols))
	for i, c := range cols {
		fields[i] = Field{Name: c.Name, Nullable: c.Nullable, Type: c.Type, Length: c.MaxLength}
	}
	return NewSchema(name, fields...)
}

// SchemaFromHeader infers a schema from a delimited header line: one nullable
// String field per token.
func SchemaFromHeader(name, line, separator string) *Schema {
	return SchemaFromNames(name, SplitDelimited(line, separator))
}

// SchemaFromNames builds a schema of nullable String fields. Blank names are
// replaced by positional names and repeated names get a numeric suffix.
func SchemaFromNames(name string, names []string) *Schema {
	fields := make([]Field, len(names))
	seen := make(map[string]int, len(names))
	for i, n := range names {
		n = CleanCell(n)
		if n == "" {
			n = positionalName(i)
		}
		key := strings.ToLower(n)
		if c := seen[key]; c > 0 {
			n = fmt.Sprintf("%s_%d", n, c+1)
		}
		seen[key]++
		fields[i] = Field{Name: n, Nullable: true, Type: FieldString}
	}
	return NewSchema(name, fields...)
}

// PositionalSchema builds a schema of n nullable String fields named Column1..n.
func PositionalSchema(name string, n int) *Schema {
	fields := make([]Field, n)
	for i := range fields {
		fields[i] = Field{Name: positionalName(i), Nullable: true, Type: FieldString}
	}
	return NewSchema(name, fields...)
}

func positionalName(i int) string {
	return fmt.Sprintf("Column%d", i+1)
}

// SplitDelimited splits a line on a separator string without quote handling.
// An empty separator splits on tab.
func SplitDelimited(line, separator string) []string {
	if separator == "" {
		separator = "\t"
	}
	return strings.Split(line, separator)
}

// RowSource is implemented by types that can render themselves as a row.
type RowSource interface {
	ToRow() []Value
}

// TableFromRows builds a table from items that implement RowSource.
// Rows rejected by AddRow are reported with their 1-based position.
func TableFromRows[T RowSource](schema *Schema, items []T) (*Table, []ImportError) {
	return TableFrom(schema, items, func(item T) []Value { return item.ToRow() })
}

// TableFrom builds a table from arbitrary items using a caller-supplied mapping.
func TableFrom[T any](schema *Schema, items []T, toRow func(T) []Value) (*Table, []ImportError) {
	table := schema.NewTable()
	var errs []ImportError
	for i, item := range items {
		if err := table.AddRow(toRow(item)...); err != nil {
			errs = append(errs, ImportError{Description: err.Error(), Location: i + 1})
		}
	}
	return table, errs
}
