package text

import (
	"bufio"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/tabx/internal/core"
)

// Encoder writes a dataset as delimited, CSV or fixed-width text.
// Tables are written one after another, separated by an empty line.
type Encoder struct {
	Mode Mode
}

func (e Encoder) Encode(run *core.Run, ds *core.Dataset, opts core.ExportOptions, w io.Writer) error {
	bw := bufio.NewWriter(w)

	first := true
	for _, t := range ds.Tables {
		if t == nil {
			continue
		}
		if !first {
			if _, err := bw.WriteString(opts.LineEnding); err != nil {
				return err
			}
		}
		first = false

		var err error
		switch e.Mode {
		case CSV:
			err = writeCSV(run, t, opts, bw)
		case FixedWidth:
			err = writeFixed(run, t, opts, bw)
		default:
			err = writeDelimited(run, t, opts, bw)
		}
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}

// writeDelimited joins header and values with the separator. Joining never
// produces a trailing separator.
func writeDelimited(run *core.Run, t *core.Table, opts core.ExportOptions, w *bufio.Writer) error {
	cols := opts.VisibleColumns(t)
	fields := make([]string, len(cols))

	writeLine := func() error {
		if _, err := w.WriteString(strings.Join(fields, opts.Separator)); err != nil {
			return err
		}
		_, err := w.WriteString(opts.LineEnding)
		return err
	}

	if !opts.OmitHeader {
		for i, c := range cols {
			fields[i] = t.Columns[c].Label()
		}
		if err := writeLine(); err != nil {
			return err
		}
	}

	for _, row := range t.Rows {
		for i, c := range cols {
			fields[i] = cellText(row, c, opts)
		}
		if err := writeLine(); err != nil {
			return err
		}
		if err := run.Step(); err != nil {
			return err
		}
	}
	return nil
}

// writeCSV writes comma-separated records with RFC 4180 quoting. Records end
// with the configured line ending; line breaks inside fields are left alone.
func writeCSV(run *core.Run, t *core.Table, opts core.ExportOptions, w *bufio.Writer) error {
	cols := opts.VisibleColumns(t)
	record := make([]string, len(cols))

	if !opts.OmitHeader {
		for i, c := range cols {
			record[i] = t.Columns[c].Label()
		}
		if err := writeCSVRecord(w, record, opts.LineEnding); err != nil {
			return err
		}
	}

	for _, row := range t.Rows {
		for i, c := range cols {
			record[i] = cellText(row, c, opts)
		}
		if err := writeCSVRecord(w, record, opts.LineEnding); err != nil {
			return err
		}
		if err := run.Step(); err != nil {
			return err
		}
	}
	return nil
}

// writeFixed right-pads every header name and value to its column width with
// the filler character. Longer values are truncated.
func writeFixed(run *core.Run, t *core.Table, opts core.ExportOptions, w *bufio.Writer) error {
	cols := opts.VisibleColumns(t)
	widths := ColumnWidths(t, cols, opts)
	var line strings.Builder

	if !opts.OmitHeader {
		line.Reset()
		for i, c := range cols {
			line.WriteString(Pad(t.Columns[c].Label(), widths[i], opts.Filler))
		}
		line.WriteString(opts.LineEnding)
		if _, err := w.WriteString(line.String()); err != nil {
			return err
		}
	}

	for _, row := range t.Rows {
		line.Reset()
		for i, c := range cols {
			line.WriteString(Pad(cellText(row, c, opts), widths[i], opts.Filler))
		}
		line.WriteString(opts.LineEnding)
		if _, err := w.WriteString(line.String()); err != nil {
			return err
		}
		if err := run.Step(); err != nil {
			return err
		}
	}
	return nil
}

// ColumnWidths resolves the fixed width of each output column: the explicit
// override, then the column's MaxLength, then the widest header or value.
func ColumnWidths(t *core.Table, cols []int, opts core.ExportOptions) []int {
	widths := make([]int, len(cols))
	for i, c := range cols {
		if i < len(opts.ColumnWidths) && opts.ColumnWidths[i] > 0 {
			widths[i] = opts.ColumnWidths[i]
			continue
		}
		if ml := t.Columns[c].MaxLength; ml > 0 {
			widths[i] = ml
			continue
		}
		w := 0
		if !opts.OmitHeader {
			w = utf8.RuneCountInString(t.Columns[c].Label())
		}
		for _, row := range t.Rows {
			if n := utf8.RuneCountInString(cellText(row, c, opts)); n > w {
				w = n
			}
		}
		if w == 0 {
			w = 1
		}
		widths[i] = w
	}
	return widths
}

// Pad right-pads s with filler to exactly width runes, truncating if longer.
func Pad(s string, width int, filler rune) string {
	n := utf8.RuneCountInString(s)
	if n == width {
		return s
	}
	if n > width {
		return string([]rune(s)[:width])
	}
	return s + strings.Repeat(string(filler), width-n)
}

func cellText(row core.Row, c int, opts core.ExportOptions) string {
	if c >= len(row) {
		return ""
	}
	return core.FormatValue(row[c], opts.DateLayout)
}
