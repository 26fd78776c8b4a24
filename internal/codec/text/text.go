// Package text implements the line-oriented codecs: delimited text, CSV and
// fixed-width text. One encoder and one decoder serve all three, selected by
// a mode.
package text

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/JonMunkholm/tabx/internal/core"
)

func init() {
	core.RegisterEncoder(core.FormatDelimited, Encoder{Mode: Delimited})
	core.RegisterEncoder(core.FormatCSV, Encoder{Mode: CSV})
	core.RegisterEncoder(core.FormatFixedWidth, Encoder{Mode: FixedWidth})

	core.RegisterDecoder(core.FormatDelimited, Decoder{Mode: Delimited})
	core.RegisterDecoder(core.FormatCSV, Decoder{Mode: CSV})
	core.RegisterDecoder(core.FormatFixedWidth, Decoder{Mode: FixedWidth})
}

// Mode selects the framing rules of a text codec.
type Mode int

const (
	Delimited Mode = iota
	CSV
	FixedWidth
)

func (m Mode) String() string {
	switch m {
	case CSV:
		return "csv"
	case FixedWidth:
		return "fixed"
	default:
		return "delimited"
	}
}

// maxLineSize bounds a single line so a file without newlines cannot exhaust memory.
const maxLineSize = 16 << 20

// ErrNoFieldLengths is returned when a fixed-width import has no usable widths.
var ErrNoFieldLengths = errors.New("fixed-width import requires field lengths")

// newLineScanner returns a scanner that yields lines without their terminator.
// A trailing '\r' is removed so CRLF and LF files read the same.
func newLineScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	sc.Split(scanLines)
	return sc
}

func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, bytes.TrimSuffix(data[:i], []byte{'\r'}), nil
	}
	if atEOF {
		return len(data), bytes.TrimSuffix(data, []byte{'\r'}), nil
	}
	return 0, nil, nil
}

// countLines counts the lines of a file. A final line without a terminator
// is counted.
func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	sc := newLineScanner(f)
	n := 0
	for sc.Scan() {
		n++
	}
	return n, sc.Err()
}

// isBlank reports whether a line holds nothing but whitespace and separators.
func isBlank(line, separator string) bool {
	if separator != "" && strings.TrimSpace(separator) != "" {
		line = strings.ReplaceAll(line, separator, "")
	}
	return strings.TrimSpace(line) == ""
}

// tableName picks the name of an imported table: the option, then the
// schema name, then the file name without extension.
func tableName(src core.Source, schema *core.Schema) string {
	if src.Options.TableName != "" {
		return src.Options.TableName
	}
	if schema != nil && schema.Name != "" {
		return schema.Name
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

// buildRow coerces raw field texts to a row. Missing trailing fields are
// coerced from empty text; extra fields are dropped.
func buildRow(fields []string, schema *core.Schema) []core.Value {
	row := make([]core.Value, len(schema.Fields))
	for i, f := range schema.Fields {
		raw := ""
		if i < len(fields) {
			raw = fields[i]
		}
		row[i] = core.Coerce(raw, f)
	}
	return row
}
