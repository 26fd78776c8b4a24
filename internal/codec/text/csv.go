package text

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// errUnterminatedQuote marks a record whose quoted field runs to the end of
// the input.
var errUnterminatedQuote = errors.New(`extraneous or missing " in quoted-field`)

// csvReader splits comma-separated records. Bytes inside quotes are kept
// exactly as written, so a quoted "\r\n" or lone "\r" survives. Outside
// quotes a record ends at "\n" or "\r\n". Quotes are read lazily: a quote
// inside an unquoted field, or one inside a quoted field that is not followed
// by a comma or line end, is literal text. Empty lines are skipped.
type csvReader struct {
	r    *bufio.Reader
	line int
}

func newCSVReader(r io.Reader) *csvReader {
	return &csvReader{r: bufio.NewReader(r), line: 1}
}

// Read returns the next record and the line it starts on, or io.EOF.
func (c *csvReader) Read() ([]string, int, error) {
	for {
		start := c.line
		record, empty, err := c.readRecord()
		if err != nil {
			return nil, start, err
		}
		if !empty {
			return record, start, nil
		}
	}
}

// readRecord reads up to and including the next unquoted line end. empty
// reports a line with no content at all.
func (c *csvReader) readRecord() (record []string, empty bool, err error) {
	var (
		field    strings.Builder
		inQuotes bool
		atStart  = true // next byte starts a field
		wasQuote bool   // current field opened with a quote
		consumed bool
	)
	endField := func() {
		record = append(record, field.String())
		field.Reset()
		atStart, wasQuote = true, false
	}
	endLine := func() ([]string, bool, error) {
		if record == nil && field.Len() == 0 && !wasQuote {
			return nil, true, nil
		}
		endField()
		return record, false, nil
	}

	for {
		b, rerr := c.r.ReadByte()
		if rerr == io.EOF {
			switch {
			case inQuotes:
				return nil, false, errUnterminatedQuote
			case !consumed:
				return nil, false, io.EOF
			}
			endField()
			return record, false, nil
		}
		if rerr != nil {
			return nil, false, rerr
		}
		consumed = true

		if inQuotes {
			switch b {
			case '"':
				if c.closesQuote() {
					inQuotes = false
					continue
				}
				if next, _ := c.r.Peek(1); len(next) == 1 && next[0] == '"' {
					c.r.ReadByte()
				}
				field.WriteByte('"')
			case '\n':
				c.line++
				field.WriteByte(b)
			default:
				field.WriteByte(b)
			}
			continue
		}

		switch b {
		case '"':
			if atStart {
				inQuotes, wasQuote, atStart = true, true, false
				continue
			}
			field.WriteByte(b)
		case ',':
			endField()
		case '\n':
			c.line++
			return endLine()
		case '\r':
			if next, _ := c.r.Peek(1); len(next) == 1 && next[0] == '\n' {
				c.r.ReadByte()
				c.line++
				return endLine()
			}
			field.WriteByte(b)
			atStart = false
		default:
			field.WriteByte(b)
			atStart = false
		}
	}
}

// closesQuote reports whether a quote just read inside a quoted field ends
// it: the next byte is a comma, a line end or the end of input.
func (c *csvReader) closesQuote() bool {
	next, err := c.r.Peek(1)
	if err != nil || len(next) == 0 {
		return true
	}
	switch next[0] {
	case ',', '\n', '\r':
		return true
	}
	return false
}

// csvNeedsQuotes reports whether a field must be quoted to read back intact.
func csvNeedsQuotes(field string) bool {
	return strings.ContainsAny(field, ",\"\r\n")
}

// writeCSVRecord writes one RFC 4180 record. Quoted fields double their
// quotes; everything else, line breaks included, is written as is.
func writeCSVRecord(w *bufio.Writer, record []string, lineEnding string) error {
	for i, field := range record {
		if i > 0 {
			w.WriteByte(',')
		}
		if !csvNeedsQuotes(field) {
			w.WriteString(field)
			continue
		}
		w.WriteByte('"')
		w.WriteString(strings.ReplaceAll(field, `"`, `""`))
		w.WriteByte('"')
	}
	_, err := w.WriteString(lineEnding)
	return err
}
