package text

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/tabx/internal/core"
)

func exportString(t *testing.T, ds *core.Dataset, format core.Format, opts core.ExportOptions) string {
	t.Helper()
	engine := core.NewExportEngine(opts, nil, nil)
	result, err := engine.Export(context.Background(), ds, format, "")
	require.NoError(t, err)

	buf := make([]byte, result.Stream.Len())
	_, err = result.Stream.Read(buf)
	require.NoError(t, err)
	return string(buf)
}

func writeTemp(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func importFile(t *testing.T, format core.Format, path string, schema *core.Schema, hasHeader bool, opts core.ImportOptions) *core.ImportResult {
	t.Helper()
	engine := core.NewImportEngine(opts, nil, nil)
	result, err := engine.Import(context.Background(), format, path, schema, hasHeader)
	require.NoError(t, err)
	return result
}

func abcTable() *core.Table {
	table := core.NewTable("letters",
		core.Column{Name: "A", Type: core.FieldString, Nullable: true},
		core.Column{Name: "B", Type: core.FieldString, Nullable: true},
		core.Column{Name: "C", Type: core.FieldString, Nullable: true},
	)
	_ = table.AddRow("a1", "b1", "c1")
	_ = table.AddRow("a2", "b2", "c2")
	return table
}

func TestCSV_IgnoredColumns(t *testing.T) {
	opts := core.DefaultExportOptions()
	opts.IgnoredColumns = []string{"b"}
	opts.LineEnding = "\n"

	out := exportString(t, core.NewDataset("d", abcTable()), core.FormatCSV, opts)

	assert.Equal(t, "A,C\na1,c1\na2,c2\n", out)
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		assert.Len(t, strings.Split(line, ","), 2)
	}
}

func TestCSV_EscapingRoundTrip(t *testing.T) {
	values := []string{
		"plain",
		"has,comma",
		`has "quote"`,
		"has\nnewline",
		`"fully quoted"`,
		`mix, "of" everything` + "\n" + "second line",
		"a\r\nb",
		"a\rb",
	}

	table := core.NewTable("t", core.Column{Name: "Value", Type: core.FieldString, Nullable: true})
	for _, v := range values {
		require.NoError(t, table.AddRow(v))
	}

	out := exportString(t, core.NewDataset("d", table), core.FormatCSV, core.DefaultExportOptions())
	assert.Contains(t, out, `"has,comma"`)
	assert.Contains(t, out, `"has ""quote"""`)
	assert.Contains(t, out, "\"a\r\nb\"\r\n")
	assert.Contains(t, out, "\"a\rb\"\r\n")

	path := writeTemp(t, "values.csv", []byte(out))
	schema := core.NewSchema("t", core.Field{Name: "Value", Type: core.FieldString, Nullable: true})
	result := importFile(t, core.FormatCSV, path, schema, true, core.DefaultImportOptions())

	require.True(t, result.Clean(), "errors: %v", result.Errors)
	require.Equal(t, len(values), result.Table.Len())
	for i, v := range values {
		assert.Equal(t, strings.TrimSpace(v), result.Table.Rows[i][0], "row %d", i+1)
	}
}

func TestDelimited_NoTrailingSeparator(t *testing.T) {
	table := core.NewTable("t",
		core.Column{Name: "X", Nullable: true},
		core.Column{Name: "Y", Nullable: true},
	)
	require.NoError(t, table.AddRow("1", nil))

	opts := core.DefaultExportOptions()
	opts.Separator = ";"
	out := exportString(t, core.NewDataset("d", table), core.FormatDelimited, opts)

	assert.Equal(t, "X;Y\r\n1;\r\n", out)
}

func TestDelimited_RoundTrip(t *testing.T) {
	schema := core.NewSchema("orders",
		core.Field{Name: "Id", Type: core.FieldInteger},
		core.Field{Name: "Customer", Type: core.FieldString, Nullable: true},
		core.Field{Name: "Paid", Type: core.FieldBit},
		core.Field{Name: "Placed", Type: core.FieldDate, Nullable: true},
		core.Field{Name: "Code", Type: core.FieldChar, Nullable: true},
	)
	table := schema.NewTable()
	placed := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	require.NoError(t, table.AddRow(int64(1), "Acme Corp", true, placed, core.Char('A')))
	require.NoError(t, table.AddRow(int64(-20), "Initech", false, nil, nil))

	out := exportString(t, core.NewDataset("d", table), core.FormatDelimited, core.DefaultExportOptions())
	path := writeTemp(t, "orders.txt", []byte(out))

	result := importFile(t, core.FormatDelimited, path, schema, true, core.DefaultImportOptions())
	require.True(t, result.Clean(), "errors: %v", result.Errors)
	require.Equal(t, 2, result.Table.Len())

	got := result.Table.Rows
	assert.Equal(t, int64(1), got[0][0])
	assert.Equal(t, "Acme Corp", got[0][1])
	assert.Equal(t, true, got[0][2])
	assert.True(t, placed.Equal(got[0][3].(time.Time)))
	assert.Equal(t, core.Char('A'), got[0][4])

	assert.Equal(t, int64(-20), got[1][0])
	assert.Equal(t, false, got[1][2])
	assert.Nil(t, got[1][3])
	assert.Nil(t, got[1][4])
}

func TestDelimited_InfersSchemaFromHeader(t *testing.T) {
	path := writeTemp(t, "people.txt", []byte("Name\tAge\nAnn\t30\n\nBob\n"))

	result := importFile(t, core.FormatDelimited, path, nil, true, core.DefaultImportOptions())

	require.NotNil(t, result.Table)
	assert.Equal(t, "people", result.Table.Name)
	require.Len(t, result.Table.Columns, 2)
	assert.Equal(t, "Name", result.Table.Columns[0].Name)
	assert.Equal(t, core.FieldString, result.Table.Columns[1].Type)

	require.Equal(t, 2, result.Table.Len())
	assert.Equal(t, "30", result.Table.Rows[0][1])
	assert.Equal(t, "", result.Table.Rows[1][1], "missing trailing field is padded")
}

func TestDelimited_PositionalSchemaWithoutHeader(t *testing.T) {
	path := writeTemp(t, "raw.txt", []byte("x,y,z\n1,2,3\n"))
	opts := core.DefaultImportOptions()
	opts.Separator = ","

	result := importFile(t, core.FormatDelimited, path, nil, false, opts)

	require.Len(t, result.Table.Columns, 3)
	assert.Equal(t, "Column3", result.Table.Columns[2].Name)
	assert.Equal(t, 2, result.Table.Len())
}

func TestDelimited_RowErrorsContinue(t *testing.T) {
	path := writeTemp(t, "codes.txt", []byte("Code\nABC\nTOOLONG\nXYZ\n"))
	schema := core.NewSchema("codes", core.Field{Name: "Code", Type: core.FieldString, Length: 3})

	result := importFile(t, core.FormatDelimited, path, schema, true, core.DefaultImportOptions())

	assert.Equal(t, 2, result.Table.Len())
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 3, result.Errors[0].Location)
}

func TestDelimited_Windows1252(t *testing.T) {
	path := writeTemp(t, "latin.txt", []byte{'N', 'a', 'm', 'e', '\n', 'C', 'a', 'f', 0xE9, '\n'})
	opts := core.DefaultImportOptions()
	opts.Encoding = "windows-1252"

	result := importFile(t, core.FormatDelimited, path, nil, true, opts)

	require.Equal(t, 1, result.Table.Len())
	assert.Equal(t, "Café", result.Table.Rows[0][0])
}

func TestFixedWidth_ExactWidths(t *testing.T) {
	table := core.NewTable("t",
		core.Column{Name: "Code", Type: core.FieldString, Nullable: true},
		core.Column{Name: "Qty", Type: core.FieldInteger, Nullable: true},
	)
	require.NoError(t, table.AddRow("AB", int64(7)))
	require.NoError(t, table.AddRow("LONGER-THAN-WIDTH", int64(12345)))

	opts := core.DefaultExportOptions()
	opts.ColumnWidths = []int{6, 4}
	opts.Filler = '.'
	opts.LineEnding = "\n"

	out := exportString(t, core.NewDataset("d", table), core.FormatFixedWidth, opts)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")

	require.Len(t, lines, 3)
	assert.Equal(t, "Code..Qty.", lines[0])
	assert.Equal(t, "AB....7...", lines[1])
	assert.Equal(t, "LONGER1234", lines[2])
	for _, line := range lines {
		assert.Len(t, line, 10)
	}
}

func TestFixedWidth_RoundTrip(t *testing.T) {
	schema := core.NewSchema("items",
		core.Field{Name: "Sku", Type: core.FieldString, Length: 8},
		core.Field{Name: "Qty", Type: core.FieldInteger, Length: 5},
		core.Field{Name: "Price", Type: core.FieldFloat, Length: 9},
	)
	table := schema.NewTable()
	require.NoError(t, table.AddRow("A-1", int64(3), 9.99))
	require.NoError(t, table.AddRow("ZZ-99999", int64(12000), 0.5))

	opts := core.DefaultExportOptions()
	opts.OmitHeader = true
	out := exportString(t, core.NewDataset("d", table), core.FormatFixedWidth, opts)
	for _, line := range strings.Split(strings.TrimSuffix(out, "\r\n"), "\r\n") {
		assert.Equal(t, schema.TotalLength(), len(line))
	}

	path := writeTemp(t, "items.dat", []byte(out))
	result := importFile(t, core.FormatFixedWidth, path, schema, false, core.DefaultImportOptions())

	require.True(t, result.Clean(), "errors: %v", result.Errors)
	require.Equal(t, 2, result.Table.Len())
	assert.Equal(t, "ZZ-99999", result.Table.Rows[1][0])
	assert.Equal(t, int64(12000), result.Table.Rows[1][1])
	assert.Equal(t, 9.99, result.Table.Rows[0][2])
}

func TestFixedWidth_ShortLine(t *testing.T) {
	content := strings.Join([]string{
		"AAAA0001",
		"BBBB0002",
		"CC",
		"DDDD0004",
	}, "\n")
	path := writeTemp(t, "short.dat", []byte(content))
	schema := core.NewSchema("s",
		core.Field{Name: "Key", Type: core.FieldString, Nullable: true, Length: 4},
		core.Field{Name: "Num", Type: core.FieldInteger, Nullable: true, Length: 4},
	)

	result := importFile(t, core.FormatFixedWidth, path, schema, false, core.DefaultImportOptions())

	require.Len(t, result.Errors, 2, "one error per unsliceable field")
	for _, e := range result.Errors {
		assert.Equal(t, 3, e.Location)
	}
	require.Equal(t, 4, result.Table.Len(), "other rows are still imported")
	assert.Nil(t, result.Table.Rows[2][0])
	assert.Equal(t, int64(4), result.Table.Rows[3][1])
}

func TestFixedWidth_ShortLineKeepsNonNullableRow(t *testing.T) {
	content := "AAAA0001\nBBBB00\nCCCC0003\n"
	path := writeTemp(t, "short.dat", []byte(content))
	schema := core.NewSchema("s",
		core.Field{Name: "Key", Type: core.FieldString, Length: 4},
		core.Field{Name: "Num", Type: core.FieldInteger, Length: 4},
	)

	result := importFile(t, core.FormatFixedWidth, path, schema, false, core.DefaultImportOptions())

	require.Len(t, result.Errors, 1, "only the slicing error is recorded")
	assert.Equal(t, 2, result.Errors[0].Location)
	assert.Contains(t, result.Errors[0].Description, `field "Num"`)
	require.Equal(t, 3, result.Table.Len())
	assert.Equal(t, "BBBB", result.Table.Rows[1][0])
	assert.Nil(t, result.Table.Rows[1][1])
	assert.Equal(t, int64(3), result.Table.Rows[2][1])
}

func TestFixedWidth_RequiresLengths(t *testing.T) {
	path := writeTemp(t, "x.dat", []byte("abc\n"))
	engine := core.NewImportEngine(core.DefaultImportOptions(), nil, nil)

	_, err := engine.Import(context.Background(), core.FormatFixedWidth, path, nil, false)

	require.ErrorIs(t, err, ErrNoFieldLengths)
	assert.Equal(t, "IMP004", core.MapError(err).Code)
}

func TestDecoder_CountRows(t *testing.T) {
	tests := []struct {
		name    string
		mode    Mode
		content string
		want    int
	}{
		{name: "lines with trailing newline", mode: Delimited, content: "a\nb\nc\n", want: 3},
		{name: "last line without newline", mode: FixedWidth, content: "a\r\nb", want: 2},
		{name: "empty", mode: Delimited, content: "", want: 0},
		{name: "csv multi-line record", mode: CSV, content: "h\n\"x\ny\"\nz\n", want: 3},
		{name: "csv quoted crlf and blank line", mode: CSV, content: "h\r\n\"x\r\ny\"\r\n\r\nz", want: 3},
		{name: "csv unterminated quote", mode: CSV, content: "h\n\"x\ny\n", want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTemp(t, "c.txt", []byte(tt.content))
			n, err := Decoder{Mode: tt.mode}.CountRows(core.Source{Path: path, Options: core.DefaultImportOptions()})
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestImport_ProgressReachesTotal(t *testing.T) {
	var lines []string
	lines = append(lines, "N")
	for i := 0; i < 300; i++ {
		lines = append(lines, "1")
	}
	path := writeTemp(t, "n.txt", []byte(strings.Join(lines, "\n")))

	var progress, completed int
	var lastCurrent, total int
	notifier := core.NotifierFuncs{
		Start:    func(_ time.Time, tot, _ int, _ core.Format) { total = tot },
		Progress: func(_ time.Time, _, cur int, _ core.Format) { progress++; lastCurrent = cur },
		Completed: func(_ time.Time, _ int, _ core.Format, _ []byte, p string) {
			completed++
			assert.Equal(t, path, p)
		},
	}

	engine := core.NewImportEngine(core.DefaultImportOptions(), notifier, nil)
	result, err := engine.Import(context.Background(), core.FormatDelimited, path, nil, true)
	require.NoError(t, err)

	assert.Equal(t, 300, result.Records)
	assert.Equal(t, 301, total)
	assert.Equal(t, 301, lastCurrent)
	assert.LessOrEqual(t, progress, 100)
	assert.Equal(t, 1, completed)
}

func TestPad(t *testing.T) {
	assert.Equal(t, "ab  ", Pad("ab", 4, ' '))
	assert.Equal(t, "abcd", Pad("abcdef", 4, ' '))
	assert.Equal(t, "é**", Pad("é", 3, '*'))
}
