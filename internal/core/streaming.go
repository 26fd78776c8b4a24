package core

// streaming.go decodes text imports to clean UTF-8 as they are read.
//
// UTF-8 sources have a leading BOM removed and invalid bytes replaced with
// U+FFFD; UTF-16 sources are detected by their BOM (little endian without
// one); single-byte code pages are transcoded. Nothing is buffered beyond the
// transformer's window, so large files stream in constant memory.

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// textEncodings maps accepted encoding names (lower case) to decoders.
var textEncodings = map[string]encoding.Encoding{
	"utf-8":        unicode.UTF8BOM,
	"utf8":         unicode.UTF8BOM,
	"utf-16":       unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
	"utf-16le":     unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
	"utf-16be":     unicode.UTF16(unicode.BigEndian, unicode.UseBOM),
	"windows-1252": charmap.Windows1252,
	"cp1252":       charmap.Windows1252,
	"iso-8859-1":   charmap.ISO8859_1,
	"latin1":       charmap.ISO8859_1,
	"iso-8859-15":  charmap.ISO8859_15,
	"latin9":       charmap.ISO8859_15,
}

// TextEncodings lists the accepted encoding names.
func TextEncodings() []string {
	names := make([]string, 0, len(textEncodings))
	for name := range textEncodings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewTextReader wraps r so that it yields UTF-8 decoded from encoding.
// An empty encoding means UTF-8.
func NewTextReader(r io.Reader, enc string) (io.Reader, error) {
	name := strings.ToLower(strings.TrimSpace(enc))
	if name == "" {
		name = "utf-8"
	}
	e, ok := textEncodings[name]
	if !ok {
		return nil, fmt.Errorf("unsupported encoding %q", enc)
	}
	return transform.NewReader(r, e.NewDecoder()), nil
}

// OpenText opens a file through NewTextReader. The caller must close the
// returned file.
func OpenText(path, enc string) (*os.File, io.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	r, err := NewTextReader(f, enc)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, r, nil
}
