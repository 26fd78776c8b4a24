package xlsx

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/tabx/internal/core"
)

func exportWorkbook(t *testing.T, ds *core.Dataset, opts core.ExportOptions) *excelize.File {
	t.Helper()
	engine := core.NewExportEngine(opts, nil, nil)
	result, err := engine.Export(context.Background(), ds, core.FormatSpreadsheet, "")
	require.NoError(t, err)

	f, err := excelize.OpenReader(result.Stream)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func exportFile(t *testing.T, ds *core.Dataset, opts core.ExportOptions) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.xlsx")
	engine := core.NewExportEngine(opts, nil, nil)
	_, err := engine.Export(context.Background(), ds, core.FormatSpreadsheet, path)
	require.NoError(t, err)
	return path
}

func salesTable() *core.Table {
	table := core.NewTable("Sales",
		core.Column{Name: "Region", Type: core.FieldString, Nullable: true},
		core.Column{Name: "Units", Type: core.FieldInteger, Nullable: true},
		core.Column{Name: "Price", Type: core.FieldFloat, Nullable: true},
		core.Column{Name: "Active", Type: core.FieldBit, Nullable: true},
	)
	_ = table.AddRow("North", int64(10), 2.5, true)
	_ = table.AddRow("South", int64(20), 3.75, false)
	_ = table.AddRow("", nil, nil, nil)
	return table
}

func TestEncode_FormulaCell(t *testing.T) {
	table := core.NewTable("calc",
		core.Column{Name: "Expr", Type: core.FieldString, Nullable: true},
	)
	require.NoError(t, table.AddRow("=1+1"))
	require.NoError(t, table.AddRow("=")) // a lone '=' stays text

	f := exportWorkbook(t, core.NewDataset("d", table), core.DefaultExportOptions())

	formula, err := f.GetCellFormula("Data", "A2")
	require.NoError(t, err)
	assert.Equal(t, "1+1", formula)

	formula, err = f.GetCellFormula("Data", "A3")
	require.NoError(t, err)
	assert.Empty(t, formula)
	value, err := f.GetCellValue("Data", "A3")
	require.NoError(t, err)
	assert.Equal(t, "=", value)
}

func TestEncode_SheetNames(t *testing.T) {
	a := salesTable()
	b := salesTable()
	b.Name = "Returns/2024"

	t.Run("generated", func(t *testing.T) {
		f := exportWorkbook(t, core.NewDataset("d", a, b), core.DefaultExportOptions())
		assert.Equal(t, []string{"Data", "Data 1"}, f.GetSheetList())
	})

	t.Run("table names", func(t *testing.T) {
		opts := core.DefaultExportOptions()
		opts.UseTableNames = true
		f := exportWorkbook(t, core.NewDataset("d", a, b, salesTable()), opts)
		assert.Equal(t, []string{"Sales", "Returns_2024", "Sales 1"}, f.GetSheetList())
	})

	t.Run("empty dataset", func(t *testing.T) {
		f := exportWorkbook(t, core.NewDataset("d"), core.DefaultExportOptions())
		assert.Equal(t, []string{"Data"}, f.GetSheetList())
	})
}

func TestEncode_HeaderValuesAndIgnoredColumns(t *testing.T) {
	opts := core.DefaultExportOptions()
	opts.IgnoredColumns = []string{"units"}

	f := exportWorkbook(t, core.NewDataset("d", salesTable()), opts)
	rows, err := f.GetRows("Data")
	require.NoError(t, err)

	require.Len(t, rows, 3, "the all-empty row has no values")
	assert.Equal(t, []string{"Region", "Price", "Active"}, rows[0])
	assert.Equal(t, []string{"North", "2.5", "TRUE"}, rows[1])
	assert.Equal(t, []string{"South", "3.75", "FALSE"}, rows[2])
}

func TestEncode_TruncatesLongText(t *testing.T) {
	table := core.NewTable("long", core.Column{Name: "Text", Type: core.FieldString, Nullable: true})
	require.NoError(t, table.AddRow(strings.Repeat("x", core.MaxCellText+100)))

	f := exportWorkbook(t, core.NewDataset("d", table), core.DefaultExportOptions())
	value, err := f.GetCellValue("Data", "A2")
	require.NoError(t, err)
	assert.Len(t, value, core.MaxCellText)
}

func TestEncode_Annotations(t *testing.T) {
	opts := core.DefaultExportOptions()
	opts.IgnoredColumns = []string{"Region"}
	opts.Annotations = []core.CellAnnotation{
		core.NewCellAnnotation(2, 1, "units look low"),
		{Table: "Other", Row: 1, Col: 1, Comment: "not for this table", Style: core.StyleGood},
		{Row: 1, Col: 3, Style: core.StyleGood},
	}

	f := exportWorkbook(t, core.NewDataset("d", salesTable()), opts)

	comments, err := f.GetComments("Data")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "A3", comments[0].Cell, "Region is ignored so output column 1 is Units")
	assert.Contains(t, comments[0].Text, "units look low")

	plain, err := f.GetCellStyle("Data", "B3")
	require.NoError(t, err)
	bad, err := f.GetCellStyle("Data", "A3")
	require.NoError(t, err)
	good, err := f.GetCellStyle("Data", "C2")
	require.NoError(t, err)
	assert.NotEqual(t, plain, bad)
	assert.NotEqual(t, bad, good)
}

func TestEncode_AlternateRows(t *testing.T) {
	opts := core.DefaultExportOptions()
	opts.AlternateRows = true

	f := exportWorkbook(t, core.NewDataset("d", salesTable()), opts)

	odd, err := f.GetCellStyle("Data", "A2")
	require.NoError(t, err)
	even, err := f.GetCellStyle("Data", "A3")
	require.NoError(t, err)
	third, err := f.GetCellStyle("Data", "A4")
	require.NoError(t, err)
	header, err := f.GetCellStyle("Data", "A1")
	require.NoError(t, err)

	assert.NotEqual(t, odd, even)
	assert.Equal(t, odd, third)
	assert.NotEqual(t, header, odd)
}

func TestEncode_AutoFit(t *testing.T) {
	table := core.NewTable("w", core.Column{Name: "Id", Nullable: true}, core.Column{Name: "Description", Type: core.FieldString, Nullable: true})
	require.NoError(t, table.AddRow(int64(1), strings.Repeat("a", 40)))

	tests := []struct {
		name    string
		autoFit core.AutoFit
		want    float64
	}{
		{name: "header", autoFit: core.AutoFitHeader, want: 13},
		{name: "sample", autoFit: core.AutoFitSample10, want: 42},
		{name: "all", autoFit: core.AutoFitAll, want: 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := core.DefaultExportOptions()
			opts.AutoFit = tt.autoFit
			f := exportWorkbook(t, core.NewDataset("d", table), opts)

			width, err := f.GetColWidth("Data", "B")
			require.NoError(t, err)
			assert.Equal(t, tt.want, width)

			width, err = f.GetColWidth("Data", "A")
			require.NoError(t, err)
			assert.Equal(t, float64(minColumnWidth), width)
		})
	}
}

func TestDecode_InfersTypes(t *testing.T) {
	path := exportFile(t, core.NewDataset("d", salesTable()), core.DefaultExportOptions())

	engine := core.NewImportEngine(core.DefaultImportOptions(), nil, nil)
	result, err := engine.Import(context.Background(), core.FormatSpreadsheet, path, nil, true)
	require.NoError(t, err)
	require.True(t, result.Clean(), "errors: %v", result.Errors)

	table := result.Table
	require.Len(t, table.Columns, 4)
	assert.Equal(t, core.FieldString, table.Columns[0].Type)
	assert.Equal(t, core.FieldInteger, table.Columns[1].Type)
	assert.Equal(t, core.FieldFloat, table.Columns[2].Type)
	assert.Equal(t, core.FieldBit, table.Columns[3].Type)

	require.Equal(t, 2, table.Len())
	assert.Equal(t, core.Row{"North", int64(10), 2.5, true}, table.Rows[0])
	assert.Equal(t, core.Row{"South", int64(20), 3.75, false}, table.Rows[1])
}

func TestDecode_RoundTripWithSchema(t *testing.T) {
	schema := core.NewSchema("events",
		core.Field{Name: "Name", Type: core.FieldString},
		core.Field{Name: "Count", Type: core.FieldInteger},
		core.Field{Name: "When", Type: core.FieldDate},
		core.Field{Name: "Flag", Type: core.FieldBit},
	)
	table := schema.NewTable()
	when := time.Date(2023, 11, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, table.AddRow("launch", int64(3), when, true))

	path := exportFile(t, core.NewDataset("d", table), core.DefaultExportOptions())

	engine := core.NewImportEngine(core.DefaultImportOptions(), nil, nil)
	result, err := engine.Import(context.Background(), core.FormatSpreadsheet, path, schema, true)
	require.NoError(t, err)
	require.Equal(t, 1, result.Table.Len())

	row := result.Table.Rows[0]
	assert.Equal(t, "launch", row[0])
	assert.Equal(t, int64(3), row[1])
	assert.True(t, when.Equal(row[2].(time.Time)))
	assert.Equal(t, true, row[3])
}

func TestDecode_HeaderOnlySheet(t *testing.T) {
	table := core.NewTable("empty",
		core.Column{Name: "A", Type: core.FieldString, Nullable: true},
		core.Column{Name: "B", Type: core.FieldString, Nullable: true},
	)
	path := exportFile(t, core.NewDataset("d", table), core.DefaultExportOptions())

	engine := core.NewImportEngine(core.DefaultImportOptions(), nil, nil)
	result, err := engine.Import(context.Background(), core.FormatSpreadsheet, path, nil, true)
	require.NoError(t, err)

	require.NotNil(t, result.Table)
	assert.Equal(t, 0, result.Table.Len())
	require.Len(t, result.Table.Columns, 2)
	assert.Equal(t, "B", result.Table.Columns[1].Name)
}

func TestDecode_MissingSheet(t *testing.T) {
	path := exportFile(t, core.NewDataset("d", salesTable()), core.DefaultExportOptions())

	engine := core.NewImportEngine(core.DefaultImportOptions(), nil, nil)
	src := core.Source{Path: path, HasHeader: true, Options: core.ImportOptions{Sheet: "Nope"}}
	result, err := engine.ImportSource(context.Background(), core.FormatSpreadsheet, src, nil)
	require.NoError(t, err)

	assert.Nil(t, result.Table)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, -1, result.Errors[0].Location)
	assert.Equal(t, "IMP002", core.MapError(result.Errors[0]).Code)
}

func TestDecode_UnreadableWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	engine := core.NewImportEngine(core.DefaultImportOptions(), nil, nil)
	_, err := engine.Import(context.Background(), core.FormatSpreadsheet, path, nil, true)

	require.Error(t, err)
	assert.Equal(t, "IMP003", core.MapError(err).Code)
}

func TestSheetNames_LongNames(t *testing.T) {
	long := strings.Repeat("n", 40)
	names := SheetNames([]*core.Table{{Name: long}, {Name: long}}, true)

	assert.Len(t, names[0], maxSheetName)
	assert.Len(t, names[1], maxSheetName)
	assert.True(t, strings.HasSuffix(names[1], " 1"))
}

func TestEncode_TruncatesLongFormula(t *testing.T) {
	table := core.NewTable("long", core.Column{Name: "Expr", Type: core.FieldString, Nullable: true})
	require.NoError(t, table.AddRow("="+strings.Repeat("1+", core.MaxCellText)))

	f := exportWorkbook(t, core.NewDataset("d", table), core.DefaultExportOptions())
	formula, err := f.GetCellFormula("Data", "A2")
	require.NoError(t, err)
	assert.Len(t, formula, core.MaxCellText-1, "the cap includes the leading '='")
}

func TestEncode_DatesAreDateCells(t *testing.T) {
	table := core.NewTable("events",
		core.Column{Name: "Day", Type: core.FieldDate, Nullable: true},
		core.Column{Name: "At", Type: core.FieldDate, Nullable: true},
	)
	require.NoError(t, table.AddRow(
		time.Date(2023, 11, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 11, 5, 14, 30, 0, 0, time.UTC),
	))

	tests := []struct {
		name    string
		layout  string
		wantDay string
		wantAt  string
	}{
		{name: "default layouts", wantDay: "2023-11-05", wantAt: "2023-11-05 14:30:00"},
		{name: "european layout", layout: "02.01.2006", wantDay: "05.11.2023", wantAt: "05.11.2023"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := core.DefaultExportOptions()
			opts.DateLayout = tt.layout
			f := exportWorkbook(t, core.NewDataset("d", table), opts)

			kind, err := f.GetCellType("Data", "A2")
			require.NoError(t, err)
			assert.NotEqual(t, excelize.CellTypeSharedString, kind, "dates must not be stored as text")

			raw, err := f.GetCellValue("Data", "A2", excelize.Options{RawCellValue: true})
			require.NoError(t, err)
			assert.Equal(t, "45235", raw)

			day, err := f.GetCellValue("Data", "A2")
			require.NoError(t, err)
			assert.Equal(t, tt.wantDay, day)
			at, err := f.GetCellValue("Data", "B2")
			require.NoError(t, err)
			assert.Equal(t, tt.wantAt, at)
		})
	}
}

func TestDecode_NativeTypesRoundTrip(t *testing.T) {
	table := core.NewTable("codes",
		core.Column{Name: "Zip", Type: core.FieldString, Nullable: true},
		core.Column{Name: "Opened", Type: core.FieldDate, Nullable: true},
		core.Column{Name: "Amount", Type: core.FieldFloat, Nullable: true},
	)
	opened := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, table.AddRow("00501", opened, float64(12)))
	require.NoError(t, table.AddRow("02134", opened.AddDate(0, 1, 0), 7.25))

	path := exportFile(t, core.NewDataset("d", table), core.DefaultExportOptions())

	engine := core.NewImportEngine(core.DefaultImportOptions(), nil, nil)
	result, err := engine.Import(context.Background(), core.FormatSpreadsheet, path, nil, true)
	require.NoError(t, err)
	require.True(t, result.Clean(), "errors: %v", result.Errors)

	got := result.Table
	assert.Equal(t, core.FieldString, got.Columns[0].Type)
	assert.Equal(t, core.FieldDate, got.Columns[1].Type)
	assert.Equal(t, core.FieldFloat, got.Columns[2].Type, "whole and fractional numbers mix to float")

	require.Equal(t, 2, got.Len())
	assert.Equal(t, "00501", got.Rows[0][0])
	assert.Equal(t, "02134", got.Rows[1][0])
	assert.True(t, opened.Equal(got.Rows[0][1].(time.Time)))
	assert.Equal(t, float64(12), got.Rows[0][2])
	assert.Equal(t, 7.25, got.Rows[1][2])
}

// Workbooks saved by other tools use built-in date formats and plain text
// cells; both keep their native type on import.
func TestDecode_BuiltInDateFormatAndTextDigits(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	require.NoError(t, err)

	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Code", "Due", "Done"}))
	require.NoError(t, f.SetCellStr("Sheet1", "A2", "007"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 45366))
	require.NoError(t, f.SetCellStyle("Sheet1", "B2", "B2", dateStyle))
	require.NoError(t, f.SetCellBool("Sheet1", "C2", true))
	path := filepath.Join(t.TempDir(), "other.xlsx")
	require.NoError(t, f.SaveAs(path))

	engine := core.NewImportEngine(core.DefaultImportOptions(), nil, nil)
	result, err := engine.Import(context.Background(), core.FormatSpreadsheet, path, nil, true)
	require.NoError(t, err)
	require.Equal(t, 1, result.Table.Len())

	cols := result.Table.Columns
	assert.Equal(t, []core.FieldType{core.FieldString, core.FieldDate, core.FieldBit},
		[]core.FieldType{cols[0].Type, cols[1].Type, cols[2].Type})
	row := result.Table.Rows[0]
	assert.Equal(t, "007", row[0])
	assert.True(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC).Equal(row[1].(time.Time)), "due = %v", row[1])
	assert.Equal(t, true, row[2])
}

func TestIsDateFormat(t *testing.T) {
	custom := func(code string) *excelize.Style { return &excelize.Style{CustomNumFmt: &code} }
	tests := []struct {
		name  string
		style *excelize.Style
		want  bool
	}{
		{"general", &excelize.Style{}, false},
		{"built-in short date", &excelize.Style{NumFmt: 14}, true},
		{"built-in date time", &excelize.Style{NumFmt: 22}, true},
		{"built-in thousands", &excelize.Style{NumFmt: 3}, false},
		{"custom iso date", custom("yyyy-mm-dd"), true},
		{"custom currency", custom(`"$"#,##0.00`), false},
		{"quoted literal only", custom(`0 "days"`), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isDateFormat(tt.style))
		})
	}
}

func TestExcelDateFormat(t *testing.T) {
	assert.Equal(t, "yyyy-mm-dd", excelDateFormat("2006-01-02"))
	assert.Equal(t, "dd.mm.yyyy", excelDateFormat("02.01.2006"))
	assert.Equal(t, "yyyy-mm-dd hh:mm:ss", excelDateFormat("2006-01-02 15:04:05"))
	assert.Equal(t, "m/d/yy", excelDateFormat("1/2/06"))
}
