package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tabx/internal/core"
)

// importFlags are shared by convert and inspect.
type importFlags struct {
	from       string
	schemaPath string
	noHeader   bool
	sheet      string
	separator  string
	filler     string
	encoding   string
	table      string
}

func (f *importFlags) register(cmd *cobra.Command, separatorFlag string) {
	fs := cmd.Flags()
	fs.StringVar(&f.from, "from", "", "input format (default: from the input extension)")
	fs.StringVar(&f.schemaPath, "schema", "", "JSON schema file; inferred from the input when empty")
	fs.BoolVar(&f.noHeader, "no-header", false, "the input has no header row")
	fs.StringVar(&f.sheet, "sheet", "", "spreadsheet sheet to read (default: first sheet)")
	fs.StringVar(&f.separator, separatorFlag, "", `input separator ("tab", "space" or literal)`)
	fs.StringVar(&f.filler, "filler", "", "fixed-width input filler character")
	fs.StringVar(&f.encoding, "encoding", "", "input encoding: utf-8, utf-16, windows-1252 or iso-8859-1")
	fs.StringVar(&f.table, "table", "", "name of the imported table (default: file name)")
}

// source resolves the input format and import options for path.
func (f *importFlags) source(path string, base core.ImportOptions) (core.Format, core.Source, *core.Schema, error) {
	format, err := resolveFormat(f.from, path)
	if err != nil {
		return 0, core.Source{}, nil, err
	}

	src := core.Source{Path: path, HasHeader: !f.noHeader, Options: base}
	if f.sheet != "" {
		src.Options.Sheet = f.sheet
	}
	if f.separator != "" {
		src.Options.Separator = separatorValue(f.separator)
	}
	if f.filler != "" {
		c, _ := utf8.DecodeRuneInString(f.filler)
		src.Options.Filler = c
	}
	if f.encoding != "" {
		if _, err := core.NewTextReader(strings.NewReader(""), f.encoding); err != nil {
			return 0, core.Source{}, nil, err
		}
		src.Options.Encoding = f.encoding
	}
	src.Options.TableName = f.table
	if src.Options.TableName == "" {
		src.Options.TableName = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	schema, err := loadSchema(f.schemaPath)
	if err != nil {
		return 0, core.Source{}, nil, err
	}
	return format, src, schema, nil
}

// resolveFormat prefers an explicit format name over the file extension.
func resolveFormat(name, path string) (core.Format, error) {
	if name != "" {
		return core.ParseFormat(name)
	}
	ext := filepath.Ext(path)
	if ext == "" {
		return 0, fmt.Errorf("%w: cannot tell the format of %q; pass --from or --to", core.ErrUnsupportedFormat, path)
	}
	return core.ParseFormat(ext)
}

func loadSchema(path string) (*core.Schema, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	var schema core.Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	return &schema, nil
}

func separatorValue(s string) string {
	switch s {
	case "tab", `\t`:
		return "\t"
	case "space":
		return " "
	}
	return s
}
