package core

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// FieldType represents the semantic type of a column or schema field.
type FieldType int

const (
	FieldInteger FieldType = iota
	FieldFloat
	FieldChar
	FieldString
	FieldDate
	FieldBit
)

// String returns the lower-case name used in config, JSON and CLI output.
func (t FieldType) String() string {
	switch t {
	case FieldInteger:
		return "integer"
	case FieldFloat:
		return "float"
	case FieldChar:
		return "char"
	case FieldString:
		return "string"
	case FieldDate:
		return "date"
	case FieldBit:
		return "bit"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// ParseFieldType converts a type name back to a FieldType.
func ParseFieldType(s string) (FieldType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "integer", "int":
		return FieldInteger, nil
	case "float", "floatingpoint", "decimal", "number":
		return FieldFloat, nil
	case "char", "character":
		return FieldChar, nil
	case "string", "text", "":
		return FieldString, nil
	case "date", "datetime":
		return FieldDate, nil
	case "bit", "bool", "boolean":
		return FieldBit, nil
	}
	return FieldString, fmt.Errorf("unknown field type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t FieldType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *FieldType) UnmarshalText(b []byte) error {
	ft, err := ParseFieldType(string(b))
	if err != nil {
		return err
	}
	*t = ft
	return nil
}

// Char is a single character value stored in a FieldChar column.
type Char rune

func (c Char) String() string { return string(rune(c)) }

// MarshalText renders the character as a one-character string in JSON.
func (c Char) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// Value is a single cell. nil means absent. Non-nil values are one of
// int64, float64, Char, string, time.Time or bool.
type Value = any

// Row is a fixed-arity sequence of values, one per column.
type Row []Value

// Column describes one column of a Table.
type Column struct {
	Name      string    `json:"name"`
	Caption   string    `json:"caption,omitempty"`
	Type      FieldType `json:"type"`
	Nullable  bool      `json:"nullable"`
	MaxLength int       `json:"maxLength,omitempty"` // Bounded string length and fixed-width column width
}

// Label returns the caption if set, otherwise the column name.
func (c Column) Label() string {
	if c.Caption != "" {
		return c.Caption
	}
	return c.Name
}

// Table is a named, ordered list of columns and rows.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// NewTable creates an empty table with the given columns.
func NewTable(name string, columns ...Column) *Table {
	return &Table{Name: name, Columns: columns}
}

// ColumnIndex returns the index of the named column (case-insensitive), or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// NewRow returns a row sized to the table's column count with every value absent.
func (t *Table) NewRow() Row {
	return make(Row, len(t.Columns))
}

// AddRow appends a row after padding or truncating it to the column count.
// The row is rejected if a non-nullable column is absent or a bounded string
// column is exceeded.
func (t *Table) AddRow(values ...Value) error {
	return t.addRow(values, false)
}

// AddPartialRow is AddRow for a row whose absent cells were already reported
// as import errors: absent values are accepted in every column.
func (t *Table) AddPartialRow(values ...Value) error {
	return t.addRow(values, true)
}

func (t *Table) addRow(values []Value, allowAbsent bool) error {
	row := make(Row, len(t.Columns))
	copy(row, values)

	for i, col := range t.Columns {
		v := row[i]
		if v == nil {
			if !col.Nullable && !allowAbsent {
				return fmt.Errorf("column %q does not allow nulls", col.Name)
			}
			continue
		}
		if s, ok := v.(string); ok && col.Type == FieldString && col.MaxLength > 0 {
			if n := utf8.RuneCountInString(s); n > col.MaxLength {
				return fmt.Errorf("column %q: value length %d exceeds max length %d", col.Name, n, col.MaxLength)
			}
		}
	}

	t.Rows = append(t.Rows, row)
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Dataset is an ordered collection of tables. Duplicate names are allowed.
type Dataset struct {
	Name   string   `json:"name,omitempty"`
	Tables []*Table `json:"tables"`
}

// NewDataset creates a dataset holding the given tables.
func NewDataset(name string, tables ...*Table) *Dataset {
	return &Dataset{Name: name, Tables: tables}
}

// Table returns the first table with the given name (case-insensitive).
func (d *Dataset) Table(name string) (*Table, bool) {
	for _, t := range d.Tables {
		if t != nil && strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return nil, false
}

// RecordCount returns the total number of rows across all tables.
func (d *Dataset) RecordCount() int {
	n := 0
	for _, t := range d.Tables {
		n += t.Len()
	}
	return n
}

// CellStyle is the semantic style of an annotated spreadsheet cell.
type CellStyle int

const (
	StyleBad CellStyle = iota
	StyleGood
	StyleNeutral
	StyleCalculation
	StyleCheck
	StyleAlert
	StyleNone
)

// CellAnnotation overrides the style of a single exported cell and attaches a
// comment. Row is the 1-based data row (header excluded) and Col the 1-based
// output column after ignored columns are removed. An empty Table matches
// every table.
type CellAnnotation struct {
	Table   string    `json:"table,omitempty"`
	Row     int       `json:"row"`
	Col     int       `json:"col"`
	Comment string    `json:"comment,omitempty"`
	Style   CellStyle `json:"style"`
}

// NewCellAnnotation creates an annotation with the default Bad style.
func NewCellAnnotation(row, col int, comment string) CellAnnotation {
	return CellAnnotation{Row: row, Col: col, Comment: comment, Style: StyleBad}
}

// ImportError describes a recoverable problem found while importing a row.
// Location is the 1-based source row number, or -1 if unknown.
type ImportError struct {
	Description string `json:"description"`
	Location    int    `json:"location"`
}

func (e ImportError) Error() string {
	if e.Location < 0 {
		return e.Description
	}
	return fmt.Sprintf("row %d: %s", e.Location, e.Description)
}

// Format selects a codec.
type Format int

const (
	FormatSpreadsheet Format = iota
	FormatLegacySpreadsheet
	FormatDelimited
	FormatFixedWidth
	FormatCSV
	FormatHTML
)

var formatNames = map[Format]string{
	FormatSpreadsheet:       "xlsx",
	FormatLegacySpreadsheet: "xls",
	FormatDelimited:         "delimited",
	FormatFixedWidth:        "fixed",
	FormatCSV:               "csv",
	FormatHTML:              "html",
}

func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat converts a format name or common file extension to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") {
	case "xlsx", "spreadsheet", "excel":
		return FormatSpreadsheet, nil
	case "xls", "legacy":
		return FormatLegacySpreadsheet, nil
	case "delimited", "txt", "tsv", "tab":
		return FormatDelimited, nil
	case "fixed", "fixedwidth", "fixed-width", "dat":
		return FormatFixedWidth, nil
	case "csv":
		return FormatCSV, nil
	case "html", "htm":
		return FormatHTML, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Extension returns the conventional file extension including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatSpreadsheet:
		return ".xlsx"
	case FormatLegacySpreadsheet:
		return ".xls"
	case FormatCSV:
		return ".csv"
	case FormatHTML:
		return ".html"
	case FormatFixedWidth:
		return ".dat"
	default:
		return ".txt"
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatSpreadsheet:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatLegacySpreadsheet:
		return "application/vnd.ms-excel"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// RunPhase indicates the current stage of an engine run.
type RunPhase string

const (
	PhaseQueued    RunPhase = "queued"
	PhaseCounting  RunPhase = "counting"
	PhaseRunning   RunPhase = "running"
	PhaseComplete  RunPhase = "complete"
	PhaseFailed    RunPhase = "failed"
	PhaseCancelled RunPhase = "cancelled"
)

// RunProgress is a snapshot of an engine run, used by background tasks.
type RunProgress struct {
	Format  string    `json:"format"`
	Phase   RunPhase  `json:"phase"`
	Total   int       `json:"total"`
	Current int       `json:"current"`
	Error   string    `json:"error,omitempty"`
	Updated time.Time `json:"updated"`
}

// Percent returns the progress as a percentage (0-100).
func (p RunProgress) Percent() int {
	if p.Total <= 0 {
		if p.Phase == PhaseComplete {
			return 100
		}
		return 0
	}
	return (p.Current * 100) / p.Total
}
