// Package xlsx implements the modern spreadsheet codec on top of excelize.
//
// Export writes one worksheet per table with palette-driven header and row
// styles, formulas, annotations and optional column auto-sizing. Import reads
// one worksheet in a single pass and infers column types when no schema is
// given.
package xlsx

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/tabx/internal/core"
)

func init() {
	core.RegisterEncoder(core.FormatSpreadsheet, Encoder{})
	core.RegisterDecoder(core.FormatSpreadsheet, Decoder{})
}

// Sheet names are limited to 31 characters and may not contain these.
const (
	maxSheetName      = 31
	invalidSheetChars = `[]:*?/\`
)

// defaultSheetBase names sheets when table names are not used.
const defaultSheetBase = "Data"

// commentAuthor is recorded on every cell comment.
const commentAuthor = "tabx"

// SheetNames returns the worksheet name of every table: the table names
// (made valid and unique) when useTableNames is set, otherwise Data, Data 1, ...
func SheetNames(tables []*core.Table, useTableNames bool) []string {
	names := make([]string, len(tables))
	used := make(map[string]bool, len(tables))

	for i, t := range tables {
		base := ""
		if useTableNames && t != nil {
			base = sanitizeSheetName(t.Name)
		}
		if base == "" {
			base = defaultSheetBase
		}

		name := base
		for n := 1; used[strings.ToLower(name)]; n++ {
			suffix := fmt.Sprintf(" %d", n)
			trimmed := []rune(base)
			if len(trimmed)+len(suffix) > maxSheetName {
				trimmed = trimmed[:maxSheetName-len(suffix)]
			}
			name = string(trimmed) + suffix
		}
		used[strings.ToLower(name)] = true
		names[i] = name
	}
	return names
}

func sanitizeSheetName(s string) string {
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalidSheetChars, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(s))
	s = strings.Trim(s, "'")
	if r := []rune(s); len(r) > maxSheetName {
		s = string(r[:maxSheetName])
	}
	return s
}
