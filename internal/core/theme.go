package core

import (
	"fmt"
	"sort"
	"strings"
)

// Theme identifies a colour palette used by the spreadsheet and HTML codecs.
type Theme string

const (
	ThemeBlue   Theme = "blue"
	ThemeGreen  Theme = "green"
	ThemeRed    Theme = "red"
	ThemeOrange Theme = "orange"
	ThemePurple Theme = "purple"
	ThemeGray   Theme = "gray"
	ThemeDark   Theme = "dark"
)

// DefaultTheme is used when no theme is configured or the name is unknown.
const DefaultTheme = ThemeBlue

// Palette is a set of hex colours (without '#') applied to header, row and
// alternate-row rendering.
type Palette struct {
	Header     string
	HeaderText string
	Row        string
	AltRow     string
	Text       string
	Border     string
	Accent     string
}

// palettes is the single theme lookup table.
var palettes = map[Theme]Palette{
	ThemeBlue:   {Header: "4F81BD", HeaderText: "FFFFFF", Row: "FFFFFF", AltRow: "DCE6F1", Text: "1F1F1F", Border: "95B3D7", Accent: "366092"},
	ThemeGreen:  {Header: "9BBB59", HeaderText: "FFFFFF", Row: "FFFFFF", AltRow: "EBF1DE", Text: "1F1F1F", Border: "C4D79B", Accent: "76933C"},
	ThemeRed:    {Header: "C0504D", HeaderText: "FFFFFF", Row: "FFFFFF", AltRow: "F2DCDB", Text: "1F1F1F", Border: "DA9694", Accent: "963634"},
	ThemeOrange: {Header: "F79646", HeaderText: "FFFFFF", Row: "FFFFFF", AltRow: "FDE9D9", Text: "1F1F1F", Border: "FABF8F", Accent: "E26B0A"},
	ThemePurple: {Header: "8064A2", HeaderText: "FFFFFF", Row: "FFFFFF", AltRow: "E4DFEC", Text: "1F1F1F", Border: "B1A0C7", Accent: "60497A"},
	ThemeGray:   {Header: "808080", HeaderText: "FFFFFF", Row: "FFFFFF", AltRow: "F2F2F2", Text: "1F1F1F", Border: "BFBFBF", Accent: "595959"},
	ThemeDark:   {Header: "262626", HeaderText: "F2F2F2", Row: "3A3A3A", AltRow: "474747", Text: "F2F2F2", Border: "595959", Accent: "8DB4E2"},
}

// StyleColors is the fill and font colour pair of a semantic cell style.
type StyleColors struct {
	Fill string
	Font string
}

// cellStyles mirrors the built-in spreadsheet cell styles of the same names.
var cellStyles = map[CellStyle]StyleColors{
	StyleGood:        {Fill: "C6EFCE", Font: "006100"},
	StyleBad:         {Fill: "FFC7CE", Font: "9C0006"},
	StyleNeutral:     {Fill: "FFEB9C", Font: "9C5700"},
	StyleCalculation: {Fill: "F2F2F2", Font: "FA7D00"},
	StyleCheck:       {Fill: "A5A5A5", Font: "FFFFFF"},
	StyleAlert:       {Fill: "FFFFFF", Font: "FF0000"},
}

// PaletteFor returns the palette of a theme, falling back to DefaultTheme.
func PaletteFor(t Theme) Palette {
	if p, ok := palettes[Theme(strings.ToLower(string(t)))]; ok {
		return p
	}
	return palettes[DefaultTheme]
}

// ColorsFor returns the colours of a semantic cell style. StyleNone and
// unknown styles report ok=false.
func ColorsFor(s CellStyle) (StyleColors, bool) {
	c, ok := cellStyles[s]
	return c, ok
}

// ParseTheme validates a theme name.
func ParseTheme(s string) (Theme, error) {
	t := Theme(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return DefaultTheme, nil
	}
	if _, ok := palettes[t]; !ok {
		return DefaultTheme, fmt.Errorf("unknown theme %q (available: %s)", s, strings.Join(Themes(), ", "))
	}
	return t, nil
}

// Themes returns all theme names, sorted.
func Themes() []string {
	names := make([]string, 0, len(palettes))
	for t := range palettes {
		names = append(names, string(t))
	}
	sort.Strings(names)
	return names
}
