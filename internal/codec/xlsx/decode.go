package xlsx

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/tabx/internal/core"
)

// Decoder reads one worksheet of an xlsx workbook.
type Decoder struct{}

// CountRows returns the row count of the selected sheet. A missing sheet
// counts as one row so that Decode runs and reports it.
func (Decoder) CountRows(src core.Source) (int, error) {
	sheet, found, err := readSheet(src, false)
	if err != nil {
		return 0, err
	}
	if !found {
		return 1, nil
	}
	return len(sheet.Rows), nil
}

func (Decoder) Decode(run *core.Run, src core.Source, schema *core.Schema) (*core.Table, error) {
	sheet, found, err := readSheet(src, true)
	if err != nil {
		return nil, err
	}
	if !found {
		run.AddError(-1, fmt.Sprintf("sheet not found: %q", src.Options.Sheet))
		return nil, nil
	}
	return BuildTable(run, src, sheet, schema)
}

// Sheet is a worksheet read into memory. Types, when set, holds the native
// type of every non-empty cell of Rows; without it column types are inferred
// from the text.
type Sheet struct {
	Rows  [][]string
	Types [][]core.FieldType
}

// readSheet opens the workbook and reads the named sheet (or the first).
// found is false when the named sheet does not exist. With typed set, every
// cell is classified by its stored type: numbers keep their unformatted
// value and date-formatted numbers become date text.
func readSheet(src core.Source, typed bool) (sheet Sheet, found bool, err error) {
	f, err := excelize.OpenFile(src.Path)
	if err != nil {
		return Sheet{}, false, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	name, ok := pickSheet(f.GetSheetList(), src.Options.Sheet)
	if !ok {
		return Sheet{}, false, nil
	}
	if !typed {
		rows, err := f.GetRows(name)
		if err != nil {
			return Sheet{}, false, fmt.Errorf("read sheet %q: %w", name, err)
		}
		return Sheet{Rows: rows}, true, nil
	}

	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return Sheet{}, false, fmt.Errorf("read sheet %q: %w", name, err)
	}
	c, err := newClassifier(f, name)
	if err != nil {
		return Sheet{}, false, fmt.Errorf("read sheet %q: %w", name, err)
	}
	types := make([][]core.FieldType, len(rows))
	for i, row := range rows {
		types[i] = make([]core.FieldType, len(row))
		for j := range row {
			if row[j] == "" {
				types[i][j] = core.FieldString
				continue
			}
			if row[j], types[i][j], err = c.cell(j+1, i+1, row[j]); err != nil {
				return Sheet{}, false, fmt.Errorf("read sheet %q: %w", name, err)
			}
		}
	}
	return Sheet{Rows: rows, Types: types}, true, nil
}

// classifier maps stored cells to field types.
type classifier struct {
	f         *excelize.File
	sheet     string
	date1904  bool
	dateStyle map[int]bool
}

func newClassifier(f *excelize.File, sheet string) (*classifier, error) {
	props, err := f.GetWorkbookProps()
	if err != nil {
		return nil, err
	}
	return &classifier{
		f:         f,
		sheet:     sheet,
		date1904:  props.Date1904 != nil && *props.Date1904,
		dateStyle: make(map[int]bool),
	}, nil
}

// cell returns the text to coerce and the native type of the cell at col,
// row (1-based) whose raw value is raw.
func (c *classifier) cell(col, row int, raw string) (string, core.FieldType, error) {
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", 0, err
	}
	kind, err := c.f.GetCellType(c.sheet, ref)
	if err != nil {
		return "", 0, err
	}

	switch kind {
	case excelize.CellTypeBool:
		return raw, core.FieldBit, nil
	case excelize.CellTypeDate:
		return raw, core.FieldDate, nil
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
	default:
		return raw, core.FieldString, nil
	}

	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw, core.FieldString, nil
	}
	isDate, err := c.isDateCell(ref)
	if err != nil {
		return "", 0, err
	}
	if isDate {
		if t, err := excelize.ExcelDateToTime(n, c.date1904); err == nil {
			return core.FormatValue(t.Round(time.Second), ""), core.FieldDate, nil
		}
	}
	if _, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return raw, core.FieldInteger, nil
	}
	return raw, core.FieldFloat, nil
}

// isDateCell reports whether the cell's number format displays a date.
func (c *classifier) isDateCell(ref string) (bool, error) {
	idx, err := c.f.GetCellStyle(c.sheet, ref)
	if err != nil || idx == 0 {
		return false, err
	}
	if v, ok := c.dateStyle[idx]; ok {
		return v, nil
	}
	style, err := c.f.GetStyle(idx)
	if err != nil {
		return false, err
	}
	v := isDateFormat(style)
	c.dateStyle[idx] = v
	return v, nil
}

// isDateFormat recognises the built-in date and time formats and custom
// formats with a day or year token outside quoted literals.
func isDateFormat(style *excelize.Style) bool {
	if style.CustomNumFmt != nil {
		code := strings.ToLower(*style.CustomNumFmt)
		inQuote := false
		for _, r := range code {
			switch {
			case r == '"':
				inQuote = !inQuote
			case !inQuote && (r == 'y' || r == 'd'):
				return true
			}
		}
		return false
	}
	n := style.NumFmt
	return (n >= 14 && n <= 22) || (n >= 27 && n <= 36) || (n >= 45 && n <= 47) || (n >= 50 && n <= 58)
}

func pickSheet(sheets []string, want string) (string, bool) {
	if want == "" {
		if len(sheets) == 0 {
			return "", false
		}
		return sheets[0], true
	}
	for _, s := range sheets {
		if strings.EqualFold(s, want) {
			return s, true
		}
	}
	return "", false
}

// BuildTable turns a sheet into a table. Without a schema, column names
// come from the header row (or Column1..N) and types from the native cell
// types, or from the text when the sheet has none. Row errors are recorded
// at their 1-based sheet row. It is shared by the legacy spreadsheet reader.
func BuildTable(run *core.Run, src core.Source, sheet Sheet, schema *core.Schema) (*core.Table, error) {
	rows := sheet.Rows
	data, types := rows, sheet.Types
	var header []string
	if src.HasHeader && len(rows) > 0 {
		header, data = rows[0], rows[1:]
		if types != nil {
			types = types[1:]
		}
	}

	if schema == nil {
		schema = inferSchema(sheetName(src), header, data, types)
	}
	table := schema.NewTable()
	if src.Options.TableName != "" {
		table.Name = src.Options.TableName
	}

	if header != nil {
		if err := run.Step(); err != nil {
			return nil, err
		}
	}

	offset := len(rows) - len(data)
	for i, raw := range data {
		rowNum := offset + i + 1
		if !blankRow(raw) {
			values := make([]core.Value, len(schema.Fields))
			for j, fld := range schema.Fields {
				cell := ""
				if j < len(raw) {
					cell = raw[j]
				}
				values[j] = core.Coerce(cell, fld)
			}
			if err := table.AddRow(values...); err != nil {
				run.AddError(rowNum, err.Error())
			}
		}
		if err := run.Step(); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// inferSchema names fields from the header and types each column. With
// native types a column keeps the one type all its cells share, Integer and
// FloatingPoint mix to FloatingPoint, and anything else is String.
func inferSchema(name string, header []string, data [][]string, types [][]core.FieldType) *core.Schema {
	width := len(header)
	for _, r := range data {
		if len(r) > width {
			width = len(r)
		}
	}

	var schema *core.Schema
	if header != nil {
		names := make([]string, width)
		copy(names, header)
		schema = core.SchemaFromNames(name, names)
	} else {
		schema = core.PositionalSchema(name, width)
	}

	samples := make([]string, 0, len(data))
	for j := range schema.Fields {
		if types != nil {
			schema.Fields[j].Type = columnType(data, types, j)
			continue
		}
		samples = samples[:0]
		for _, r := range data {
			if j < len(r) {
				samples = append(samples, r[j])
			}
		}
		schema.Fields[j].Type = core.InferFieldType(samples)
	}
	return schema
}

func columnType(data [][]string, types [][]core.FieldType, col int) core.FieldType {
	seen := false
	var result core.FieldType
	for i, r := range data {
		if col >= len(r) || strings.TrimSpace(r[col]) == "" {
			continue
		}
		t := types[i][col]
		switch {
		case !seen:
			result, seen = t, true
		case t == result:
		case isNumber(t) && isNumber(result):
			result = core.FieldFloat
		default:
			return core.FieldString
		}
	}
	if !seen {
		return core.FieldString
	}
	return result
}

func isNumber(t core.FieldType) bool {
	return t == core.FieldInteger || t == core.FieldFloat
}

func sheetName(src core.Source) string {
	if src.Options.Sheet != "" {
		return src.Options.Sheet
	}
	base := src.Path
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
