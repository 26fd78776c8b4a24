package core

// convert.go turns raw cell text into typed values and renders values back
// to text for the export codecs.
//
// Parsing is lenient: numbers may carry currency symbols, grouping commas or
// accounting parentheses, dates may use common US, EU and ISO layouts, and
// booleans accept yes/no and t/f. The Parse* functions report ok=false for
// empty or invalid input; Coerce decides what a field gets instead.

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// numberPattern is the plain decimal or scientific form a cleaned number must have.
var numberPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// numberNoise is stripped from numeric text before parsing.
var numberNoise = strings.NewReplacer("$", "", "€", "", "£", "", ",", "")

// TwoDigitYearPivot is how far into the future a two-digit year may land
// before it is moved back a century.
var TwoDigitYearPivot = 20

// DefaultDate is the fallback for unparsable non-nullable Date fields.
var DefaultDate = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// DefaultChar is the fallback for empty non-nullable Character fields.
const DefaultChar Char = '-'

// DefaultDateLayout renders dates without a time component.
const DefaultDateLayout = "2006-01-02"

const dateTimeLayout = "2006-01-02 15:04:05"

// dateLayouts are tried in order. Layouts with a four-digit year come first
// because they are unambiguous.
var dateLayouts = []struct {
	layout    string
	shortYear bool
}{
	{dateTimeLayout, false},
	{"2006-01-02T15:04:05Z07:00", false},
	{"2006-01-02T15:04:05", false},
	{"1/2/2006 15:04:05", false},
	{"1/2/2006 3:04:05 PM", false},
	{"1/2/2006", false},
	{"01/02/2006", false},
	{"1-2-2006", false},
	{"01-02-2006", false},
	{"1.2.2006", false},
	{"01.02.2006", false},
	{DefaultDateLayout, false},
	{"2006/01/02", false},
	{"2006.01.02", false},
	{"Jan 2, 2006", false},
	{"2 Jan 2006", false},
	{"02-Jan-2006", false},
	{"20060102", false},
	{"1/2/06", true},
	{"01/02/06", true},
	{"1-2-06", true},
	{"1.2.06", true},
	{"01.02.06", true},
}

// ParseDate parses a date in any of the supported layouts.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, d := range dateLayouts {
		t, err := time.Parse(d.layout, s)
		if err != nil {
			continue
		}
		if d.shortYear && t.Year() > time.Now().Year()+TwoDigitYearPivot {
			t = t.AddDate(-100, 0, 0)
		}
		return t, true
	}
	return time.Time{}, false
}

// cleanNumeric normalises numeric text for strconv: "(1,234.50 $)" becomes
// "-1234.50". It returns "" when what is left is not a number.
func cleanNumeric(s string) string {
	s = strings.TrimSpace(s)
	negative := len(s) > 1 && s[0] == '(' && s[len(s)-1] == ')'
	if negative {
		s = s[1 : len(s)-1]
	}
	s = strings.TrimSpace(numberNoise.Replace(s))
	if negative {
		s = "-" + s
	}
	if !numberPattern.MatchString(s) {
		return ""
	}
	return s
}

// ParseFloat parses a decimal number, tolerating currency and grouping.
func ParseFloat(s string) (float64, bool) {
	s = cleanNumeric(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseInteger parses a whole number, tolerating currency and grouping.
// Decimal input with a zero fraction ("12.0") is accepted.
func ParseInteger(s string) (int64, bool) {
	s = cleanNumeric(s)
	if s == "" {
		return 0, false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, false
	}
	return int64(f), true
}

// ParseBool accepts various representations: true/false, yes/no, t/f, y/n, 1/0.
func ParseBool(s string) (bool, bool) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "true", "t", "yes", "y", "1":
		return true, true
	case "false", "f", "no", "n", "0":
		return false, true
	default:
		return false, false
	}
}

// Coerce converts trimmed raw text to a value for the given field.
// A nil result leaves the cell unset. Non-nullable fields fall back to a
// per-type default when the text cannot be parsed.
func Coerce(raw string, f Field) Value {
	s := strings.TrimSpace(raw)

	switch f.Type {
	case FieldInteger:
		if i, ok := ParseInteger(s); ok {
			return i
		}
		if !f.Nullable {
			return int64(0)
		}
	case FieldFloat:
		if v, ok := ParseFloat(s); ok {
			return v
		}
		if !f.Nullable {
			return float64(0)
		}
	case FieldChar:
		if s != "" {
			r, _ := utf8.DecodeRuneInString(s)
			return Char(r)
		}
		if !f.Nullable {
			return DefaultChar
		}
	case FieldDate:
		if t, ok := ParseDate(s); ok {
			return t
		}
		if !f.Nullable {
			return DefaultDate
		}
	case FieldBit:
		if b, ok := ParseBool(s); ok {
			return b
		}
		if !f.Nullable {
			return false
		}
	default:
		return s
	}
	return nil
}

// FormatValue renders a cell value as text. Absent values render as "".
// Dates use layout (DefaultDateLayout if empty) unless they carry a time of day.
func FormatValue(v Value, layout string) string {
	if v == nil {
		return ""
	}

	switch val := v.(type) {
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(val)
	case Char:
		return val.String()
	case time.Time:
		if val.IsZero() {
			return ""
		}
		if layout == "" {
			layout = DefaultDateLayout
			if val.Hour() != 0 || val.Minute() != 0 || val.Second() != 0 {
				layout = dateTimeLayout
			}
		}
		return val.Format(layout)
	case []byte:
		return string(val)
	case interface{ String() string }:
		return val.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// CleanCell strips what spreadsheets leave around header text: whitespace,
// a formula prefix (="Name" or =Name) and surrounding quotes.
func CleanCell(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "=")
	return strings.Trim(s, `"'`)
}

// InferFieldType picks the narrowest type that every non-empty sample fits.
// Integer-like values → Integer, decimal-like → FloatingPoint, boolean
// literals → Bit, dates → Date, everything else → String.
func InferFieldType(samples []string) FieldType {
	isInt, isFloat, isBool, isDate := true, true, true, true
	seen := false

	for _, s := range samples {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		seen = true
		if isInt {
			if _, ok := ParseInteger(s); !ok || strings.ContainsAny(s, ".eE") {
				isInt = false
			}
		}
		if isFloat {
			if _, ok := ParseFloat(s); !ok {
				isFloat = false
			}
		}
		if isBool {
			if !isBoolLiteral(s) {
				isBool = false
			}
		}
		if isDate {
			if _, ok := ParseDate(s); !ok || numberPattern.MatchString(s) {
				isDate = false
			}
		}
		if !isInt && !isFloat && !isBool && !isDate {
			return FieldString
		}
	}

	switch {
	case !seen:
		return FieldString
	case isInt:
		return FieldInteger
	case isFloat:
		return FieldFloat
	case isBool:
		return FieldBit
	case isDate:
		return FieldDate
	default:
		return FieldString
	}
}

// isBoolLiteral accepts only word literals so that 0/1 columns infer as Integer.
func isBoolLiteral(s string) bool {
	switch strings.ToLower(s) {
	case "true", "false", "yes", "no":
		return true
	}
	return false
}
