// Package xls reads legacy (BIFF) spreadsheet workbooks with extrame/xls.
// The legacy format is import-only.
package xls

import (
	"fmt"
	"strings"

	"github.com/extrame/xls"

	"github.com/JonMunkholm/tabx/internal/codec/xlsx"
	"github.com/JonMunkholm/tabx/internal/core"
)

func init() {
	core.RegisterDecoder(core.FormatLegacySpreadsheet, Decoder{})
}

// charset is used for BIFF5 byte strings; BIFF8 text is already UTF-16.
const charset = "utf-8"

// Decoder reads one worksheet of an xls workbook.
type Decoder struct{}

// CountRows returns the row count of the selected sheet. A missing sheet
// counts as one row so that Decode runs and reports it.
func (Decoder) CountRows(src core.Source) (int, error) {
	rows, found, err := readSheet(src)
	if err != nil {
		return 0, err
	}
	if !found {
		return 1, nil
	}
	return len(rows), nil
}

func (Decoder) Decode(run *core.Run, src core.Source, schema *core.Schema) (*core.Table, error) {
	rows, found, err := readSheet(src)
	if err != nil {
		return nil, err
	}
	if !found {
		run.AddError(-1, fmt.Sprintf("sheet not found: %q", src.Options.Sheet))
		return nil, nil
	}
	return xlsx.BuildTable(run, src, xlsx.Sheet{Rows: rows}, schema)
}

// readSheet loads the named sheet (or the first) as text rows. The parser
// panics on some malformed files; that is reported as an open failure.
func readSheet(src core.Source) (rows [][]string, found bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			rows, found, err = nil, false, fmt.Errorf("open workbook: malformed file: %v", r)
		}
	}()

	wb, err := xls.Open(src.Path, charset)
	if err != nil {
		return nil, false, fmt.Errorf("open workbook: %w", err)
	}

	var sheet *xls.WorkSheet
	for i := 0; i < wb.NumSheets(); i++ {
		s := wb.GetSheet(i)
		if s == nil {
			continue
		}
		if src.Options.Sheet == "" || strings.EqualFold(s.Name, src.Options.Sheet) {
			sheet = s
			break
		}
	}
	if sheet == nil {
		return nil, false, nil
	}
	return sheetRows(sheet), true, nil
}

// sheetRows converts a worksheet to text rows. Missing rows become empty
// rows so that row numbers match the sheet; trailing empty rows are dropped.
func sheetRows(sheet *xls.WorkSheet) [][]string {
	rows := make([][]string, 0, int(sheet.MaxRow)+1)
	last := 0
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, 0, row.LastCol())
		for j := 0; j < row.LastCol(); j++ {
			if j < row.FirstCol() {
				cells = append(cells, "")
				continue
			}
			cells = append(cells, row.Col(j))
		}
		rows = append(rows, trimTrailing(cells))
		if len(rows[i]) > 0 {
			last = i + 1
		}
	}
	return rows[:last]
}

func trimTrailing(cells []string) []string {
	n := len(cells)
	for n > 0 && strings.TrimSpace(cells[n-1]) == "" {
		n--
	}
	return cells[:n]
}
