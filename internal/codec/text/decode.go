package text

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/tabx/internal/core"
)

// Decoder reads delimited, CSV or fixed-width text into a table.
type Decoder struct {
	Mode Mode
}

// CountRows returns the number of lines (CSV: records), header included.
func (d Decoder) CountRows(src core.Source) (int, error) {
	if d.Mode != CSV {
		return countLines(src.Path)
	}

	f, r, err := core.OpenText(src.Path, src.Options.Encoding)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	cr := newCSVReader(r)
	n := 0
	for {
		_, _, err := cr.Read()
		switch {
		case err == io.EOF:
			return n, nil
		case errors.Is(err, errUnterminatedQuote):
			return n + 1, nil
		case err != nil:
			return n, err
		}
		n++
	}
}

func (d Decoder) Decode(run *core.Run, src core.Source, schema *core.Schema) (*core.Table, error) {
	switch d.Mode {
	case CSV:
		return decodeCSV(run, src, schema)
	case FixedWidth:
		return decodeFixed(run, src, schema)
	default:
		return decodeDelimited(run, src, schema)
	}
}

// decodeDelimited splits each line on the separator without quote handling.
func decodeDelimited(run *core.Run, src core.Source, schema *core.Schema) (*core.Table, error) {
	f, r, err := core.OpenText(src.Path, src.Options.Encoding)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sep := src.Options.Separator
	name := tableName(src, schema)
	var table *core.Table
	if schema != nil {
		table = schema.NewTable()
		table.Name = name
	}

	sc := newLineScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()

		switch {
		case lineNo == 1 && src.HasHeader:
			if schema == nil {
				schema = core.SchemaFromHeader(name, line, sep)
				table = schema.NewTable()
			}
		case isBlank(line, sep):
		default:
			fields := core.SplitDelimited(line, sep)
			if schema == nil {
				schema = core.PositionalSchema(name, len(fields))
				table = schema.NewTable()
			}
			if err := table.AddRow(buildRow(fields, schema)...); err != nil {
				run.AddError(lineNo, err.Error())
			}
		}

		if err := run.Step(); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read line %d: %w", lineNo+1, err)
	}

	if table == nil {
		table = core.NewTable(name)
	}
	return table, nil
}

// decodeCSV uses the quote-aware CSV reader: separators and line breaks
// inside quotes belong to the field byte for byte, and "" inside quotes
// yields ". An unterminated quote becomes an import error at the line the
// record starts on.
func decodeCSV(run *core.Run, src core.Source, schema *core.Schema) (*core.Table, error) {
	f, r, err := core.OpenText(src.Path, src.Options.Encoding)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	name := tableName(src, schema)
	var table *core.Table
	if schema != nil {
		table = schema.NewTable()
		table.Name = name
	}

	cr := newCSVReader(r)
	first := true
	for {
		record, line, err := cr.Read()
		if err == io.EOF {
			break
		}

		switch {
		case errors.Is(err, errUnterminatedQuote):
			run.AddError(line, err.Error())
		case err != nil:
			return nil, fmt.Errorf("read record at line %d: %w", line, err)
		case first && src.HasHeader:
			if schema == nil {
				schema = core.SchemaFromNames(name, record)
				table = schema.NewTable()
			}
		default:
			if schema == nil {
				schema = core.PositionalSchema(name, len(record))
				table = schema.NewTable()
			}
			if err := table.AddRow(buildRow(record, schema)...); err != nil {
				run.AddError(line, err.Error())
			}
		}
		first = false

		if err := run.Step(); err != nil {
			return nil, err
		}
	}

	if table == nil {
		table = core.NewTable(name)
	}
	return table, nil
}

// decodeFixed slices each line by the schema's field lengths and trims the
// filler from both ends of every slice. A line too short for a field records
// an import error for that field and leaves it unset; the row is kept even
// when the field is not nullable.
func decodeFixed(run *core.Run, src core.Source, schema *core.Schema) (*core.Table, error) {
	if schema == nil {
		return nil, ErrNoFieldLengths
	}
	for _, fld := range schema.Fields {
		if fld.Length <= 0 {
			return nil, fmt.Errorf("%w: field %q has no length", ErrNoFieldLengths, fld.Name)
		}
	}

	f, r, err := core.OpenText(src.Path, src.Options.Encoding)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	table := schema.NewTable()
	table.Name = tableName(src, schema)
	filler := string(src.Options.Filler)

	sc := newLineScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()

		if !(lineNo == 1 && src.HasHeader) && strings.TrimSpace(line) != "" {
			row, short := sliceFixed(run, lineNo, []rune(line), schema, filler)
			add := table.AddRow
			if short {
				add = table.AddPartialRow
			}
			if err := add(row...); err != nil {
				run.AddError(lineNo, err.Error())
			}
		}

		if err := run.Step(); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read line %d: %w", lineNo+1, err)
	}
	return table, nil
}

func sliceFixed(run *core.Run, lineNo int, line []rune, schema *core.Schema, filler string) (row []core.Value, short bool) {
	row = make([]core.Value, len(schema.Fields))
	off := 0
	for i, fld := range schema.Fields {
		end := off + fld.Length
		if end > len(line) {
			run.AddError(lineNo, fmt.Sprintf("field %q: line has %d characters, need %d", fld.Name, len(line), end))
			short = true
		} else {
			row[i] = core.Coerce(strings.Trim(string(line[off:end]), filler), fld)
		}
		off = end
	}
	return row, short
}
