package xlsx

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/tabx/internal/core"
)

// Column width bounds for auto-sizing, in characters.
const (
	minColumnWidth = 8
	maxColumnWidth = 80
)

// Encoder writes a dataset as an xlsx workbook.
type Encoder struct{}

func (Encoder) Encode(run *core.Run, ds *core.Dataset, opts core.ExportOptions, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	tables := make([]*core.Table, 0, len(ds.Tables))
	for _, t := range ds.Tables {
		if t != nil {
			tables = append(tables, t)
		}
	}

	styles, err := newStyleSet(f, opts)
	if err != nil {
		return fmt.Errorf("create styles: %w", err)
	}

	names := SheetNames(tables, opts.UseTableNames)
	if len(names) == 0 {
		names = []string{defaultSheetBase}
	}

	// The new workbook comes with one default sheet; it becomes the first.
	if err := f.SetSheetName(f.GetSheetName(0), names[0]); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range names[1:] {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %q: %w", name, err)
		}
	}
	f.SetActiveSheet(0)

	for i, t := range tables {
		sw := &sheetWriter{f: f, sheet: names[i], table: t, opts: opts, styles: styles}
		if err := sw.write(run); err != nil {
			return fmt.Errorf("sheet %q: %w", names[i], err)
		}
	}

	return f.Write(w)
}

// styleSet holds the style ids shared by every sheet of a workbook.
type styleSet struct {
	header int
	row    int
	altRow int
	cell   map[core.CellStyle]int
	dates  map[dateStyleKey]int
}

// dateStyleKey identifies a row style with a date number format added.
type dateStyleKey struct {
	base int
	code string
}

// dateStyle returns base with the number format code, creating it once.
func (s *styleSet) dateStyle(f *excelize.File, base int, code string) (int, error) {
	key := dateStyleKey{base, code}
	if id, ok := s.dates[key]; ok {
		return id, nil
	}
	style, err := f.GetStyle(base)
	if err != nil {
		return 0, err
	}
	style.NumFmt = 0
	style.CustomNumFmt = &code
	id, err := f.NewStyle(style)
	if err != nil {
		return 0, err
	}
	s.dates[key] = id
	return id, nil
}

func newStyleSet(f *excelize.File, opts core.ExportOptions) (*styleSet, error) {
	p := core.PaletteFor(opts.Theme)
	border := []excelize.Border{
		{Type: "left", Color: p.Border, Style: 1},
		{Type: "top", Color: p.Border, Style: 1},
		{Type: "right", Color: p.Border, Style: 1},
		{Type: "bottom", Color: p.Border, Style: 1},
	}
	fill := func(color string) excelize.Fill {
		return excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}}
	}

	s := &styleSet{cell: make(map[core.CellStyle]int), dates: make(map[dateStyleKey]int)}
	var err error

	if s.header, err = f.NewStyle(&excelize.Style{
		Border: border,
		Fill:   fill(p.Header),
		Font:   &excelize.Font{Bold: true, Color: p.HeaderText},
	}); err != nil {
		return nil, err
	}
	if s.row, err = f.NewStyle(&excelize.Style{
		Border: border,
		Fill:   fill(p.Row),
		Font:   &excelize.Font{Color: p.Text},
	}); err != nil {
		return nil, err
	}
	if s.altRow, err = f.NewStyle(&excelize.Style{
		Border: border,
		Fill:   fill(p.AltRow),
		Font:   &excelize.Font{Color: p.Text},
	}); err != nil {
		return nil, err
	}

	for _, cs := range []core.CellStyle{core.StyleBad, core.StyleGood, core.StyleNeutral, core.StyleCalculation, core.StyleCheck, core.StyleAlert} {
		colors, _ := core.ColorsFor(cs)
		id, err := f.NewStyle(&excelize.Style{
			Border: border,
			Fill:   fill(colors.Fill),
			Font:   &excelize.Font{Color: colors.Font, Bold: cs == core.StyleCheck || cs == core.StyleCalculation},
		})
		if err != nil {
			return nil, err
		}
		s.cell[cs] = id
	}
	return s, nil
}

// sheetWriter writes one table to one worksheet.
type sheetWriter struct {
	f      *excelize.File
	sheet  string
	table  *core.Table
	opts   core.ExportOptions
	styles *styleSet

	cols   []int
	widths []int
}

func (sw *sheetWriter) write(run *core.Run) error {
	sw.cols = sw.opts.VisibleColumns(sw.table)
	sw.widths = make([]int, len(sw.cols))
	if len(sw.cols) == 0 {
		for range sw.table.Rows {
			if err := run.Step(); err != nil {
				return err
			}
		}
		return nil
	}

	rowNum := 1
	if !sw.opts.OmitHeader {
		if err := sw.writeHeader(); err != nil {
			return err
		}
		rowNum++
	}
	if sw.opts.AutoFit == core.AutoFitHeader {
		if err := sw.applyWidths(); err != nil {
			return err
		}
	}

	sample := sw.opts.AutoFit.SampleRows()
	for i, row := range sw.table.Rows {
		if err := sw.writeRow(rowNum, i+1, row, sample); err != nil {
			return err
		}
		rowNum++

		if sample > 0 && i+1 == sample {
			if err := sw.applyWidths(); err != nil {
				return err
			}
		}
		if err := run.Step(); err != nil {
			return err
		}
	}

	// All rows, or a sample larger than the table.
	if sample < 0 || sample > len(sw.table.Rows) {
		if err := sw.applyWidths(); err != nil {
			return err
		}
	}
	return nil
}

func (sw *sheetWriter) writeHeader() error {
	for i, c := range sw.cols {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		label := sw.table.Columns[c].Label()
		if err := sw.f.SetCellValue(sw.sheet, cell, label); err != nil {
			return err
		}
		sw.measure(i, label)
	}
	return sw.styleRange(1, sw.styles.header)
}

// writeRow writes data row n (1-based, header excluded) at sheet row rowNum.
func (sw *sheetWriter) writeRow(rowNum, n int, row core.Row, sample int) error {
	base := sw.styles.row
	if sw.opts.AlternateRows && n%2 == 0 {
		base = sw.styles.altRow
	}
	if err := sw.styleRange(rowNum, base); err != nil {
		return err
	}

	for i, c := range sw.cols {
		cell, err := excelize.CoordinatesToCellName(i+1, rowNum)
		if err != nil {
			return err
		}
		var v core.Value
		if c < len(row) {
			v = row[c]
		}
		text, err := sw.setValue(cell, v, base)
		if err != nil {
			return err
		}
		if sample < 0 || n <= sample {
			sw.measure(i, text)
		}
	}

	return sw.annotate(rowNum, n)
}

// setValue writes one cell and returns its rendered text. Absent and empty
// values leave the cell empty; dates become date cells styled like base;
// text starting with '=' becomes a formula. Text and formulas are cut to
// the cell limit.
func (sw *sheetWriter) setValue(cell string, v core.Value, base int) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case int64, int, int32, float64, float32, bool:
		return core.FormatValue(val, ""), sw.f.SetCellValue(sw.sheet, cell, val)
	case time.Time:
		return sw.setDate(cell, val, base)
	}

	text := core.FormatValue(v, sw.opts.DateLayout)
	if text == "" {
		return "", nil
	}
	if utf8.RuneCountInString(text) > core.MaxCellText {
		text = string([]rune(text)[:core.MaxCellText])
	}
	if len(text) > 1 && strings.HasPrefix(text, "=") {
		return text, sw.f.SetCellFormula(sw.sheet, cell, strings.TrimPrefix(text, "="))
	}
	return text, sw.f.SetCellValue(sw.sheet, cell, text)
}

// setDate writes t as a date serial number with a date format derived from
// the export date layout, so that readers see a date rather than text.
func (sw *sheetWriter) setDate(cell string, t time.Time, base int) (string, error) {
	text := core.FormatValue(t, sw.opts.DateLayout)
	if text == "" {
		return "", nil
	}
	if err := sw.f.SetCellValue(sw.sheet, cell, t); err != nil {
		return "", err
	}
	layout := sw.opts.DateLayout
	if layout == "" {
		layout = core.DefaultDateLayout
		if t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0 {
			layout = "2006-01-02 15:04:05"
		}
	}
	id, err := sw.styles.dateStyle(sw.f, base, excelDateFormat(layout))
	if err != nil {
		return "", err
	}
	return text, sw.f.SetCellStyle(sw.sheet, cell, cell, id)
}

// layoutTokens translates Go reference-time tokens to spreadsheet number
// format tokens. Longer tokens come first so "2006" wins over "06".
var layoutTokens = strings.NewReplacer(
	"2006", "yyyy", "January", "mmmm", "Jan", "mmm", "Monday", "dddd", "Mon", "ddd",
	"01", "mm", "02", "dd", "06", "yy", "15", "hh", "03", "hh", "04", "mm", "05", "ss",
	"PM", "AM/PM", "1", "m", "2", "d", "3", "h",
)

// excelDateFormat converts a Go time layout into a number format code.
func excelDateFormat(layout string) string {
	return layoutTokens.Replace(layout)
}

// annotate applies the annotations addressed to data row n.
func (sw *sheetWriter) annotate(rowNum, n int) error {
	for _, a := range sw.opts.Annotations {
		if a.Row != n || a.Col < 1 || a.Col > len(sw.cols) {
			continue
		}
		if a.Table != "" && !strings.EqualFold(a.Table, sw.table.Name) {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(a.Col, rowNum)
		if err != nil {
			return err
		}
		if id, ok := sw.styles.cell[a.Style]; ok {
			if err := sw.f.SetCellStyle(sw.sheet, cell, cell, id); err != nil {
				return err
			}
		}
		if a.Comment != "" {
			if err := sw.f.AddComment(sw.sheet, excelize.Comment{
				Cell:   cell,
				Author: commentAuthor,
				Text:   a.Comment,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (sw *sheetWriter) styleRange(rowNum, style int) error {
	first, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(sw.cols), rowNum)
	if err != nil {
		return err
	}
	return sw.f.SetCellStyle(sw.sheet, first, last, style)
}

func (sw *sheetWriter) measure(i int, text string) {
	if n := utf8.RuneCountInString(text); n > sw.widths[i] {
		sw.widths[i] = n
	}
}

// applyWidths sizes every column to its widest measured text.
func (sw *sheetWriter) applyWidths() error {
	if sw.opts.AutoFit == core.AutoFitNone {
		return nil
	}
	for i, n := range sw.widths {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		width := n + 2
		if width < minColumnWidth {
			width = minColumnWidth
		}
		if width > maxColumnWidth {
			width = maxColumnWidth
		}
		if err := sw.f.SetColWidth(sw.sheet, name, name, float64(width)); err != nil {
			return err
		}
	}
	return nil
}
