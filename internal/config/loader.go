package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JonMunkholm/tabx/internal/core"
)

// Load reads configuration from the process environment, applies defaults
// and validates the result.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom reads configuration through lookup instead of the process
// environment. Every malformed variable is reported, not just the first.
func LoadFrom(lookup func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}

	l := &loader{lookup: lookup}
	l.fill(reflect.ValueOf(cfg).Elem())
	if err := errors.Join(l.errs...); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

var (
	durationType = reflect.TypeOf(time.Duration(0))
	timeType     = reflect.TypeOf(time.Time{})
)

// loader walks a config struct and sets fields tagged with env, envAlt,
// default, required and unit.
type loader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (l *loader) fill(v reflect.Value) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if field.Type.Kind() == reflect.Struct && field.Type != timeType {
			l.fill(fv)
			continue
		}

		name := field.Tag.Get("env")
		if name == "" {
			continue
		}
		raw, ok := l.value(name, field.Tag.Get("envAlt"))
		if !ok {
			if field.Tag.Get("required") == "true" {
				l.errs = append(l.errs, fmt.Errorf("required environment variable %s is not set", name))
				continue
			}
			raw = field.Tag.Get("default")
		}
		if raw == "" {
			continue
		}
		if err := setField(fv, raw, field.Tag.Get("unit")); err != nil {
			l.errs = append(l.errs, fmt.Errorf("invalid value for %s=%q: %w", name, raw, err))
		}
	}
}

// value returns the first non-empty variable among name and alt.
func (l *loader) value(name, alt string) (string, bool) {
	for _, n := range []string{name, alt} {
		if n == "" {
			continue
		}
		if v, ok := l.lookup(n); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func setField(field reflect.Value, raw, unit string) error {
	switch {
	case field.Type() == durationType:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		field.SetInt(int64(d))

	case unit == "bytes":
		n, err := parseByteSize(raw)
		if err != nil {
			return err
		}
		field.SetInt(n)

	case field.Kind() == reflect.String:
		field.SetString(raw)

	case field.Kind() == reflect.Int, field.Kind() == reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(n)

	case field.Kind() == reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String:
		var items []string
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				items = append(items, p)
			}
		}
		field.Set(reflect.ValueOf(items))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Type())
	}
	return nil
}

// parseByteSize accepts a plain byte count or a number with a KB, MB or GB
// suffix (powers of 1024; KiB/MiB/GiB are accepted too).
func parseByteSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	mult := int64(1)
	for _, u := range []struct {
		suffix string
		mult   int64
	}{
		{"GIB", 1 << 30}, {"MIB", 1 << 20}, {"KIB", 1 << 10},
		{"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10},
		{"B", 1},
	} {
		if strings.HasSuffix(s, u.suffix) {
			s, mult = strings.TrimSpace(strings.TrimSuffix(s, u.suffix)), u.mult
			break
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return n * mult, nil
}

// problems collects validation failures.
type problems []string

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

func (p *problems) check(ok bool, format string, args ...any) {
	if !ok {
		p.addf(format, args...)
	}
}

// singleChar reports whether s is exactly one character.
func singleChar(s string) bool { return utf8.RuneCountInString(s) == 1 }

// Validate checks the whole configuration and reports every problem at once.
func (c *Config) Validate() error {
	var p problems

	p.check(c.Server.Port > 0 && c.Server.Port <= 65535, "SERVER_PORT (%d) must be 1-65535", c.Server.Port)
	p.check(c.Server.ReadTimeout >= 0, "SERVER_READ_TIMEOUT must be non-negative")
	p.check(c.Server.ShutdownTimeout > 0, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	p.check(c.Server.RequestTimeout > 0, "SERVER_REQUEST_TIMEOUT must be positive")

	p.check(c.Export.Separator != "", "EXPORT_SEPARATOR must not be empty")
	p.check(singleChar(c.Export.Filler), "EXPORT_FILLER (%q) must be a single character", c.Export.Filler)
	switch strings.ToLower(c.Export.LineEnding) {
	case "crlf", "lf":
	default:
		p.addf("EXPORT_LINE_ENDING (%q) must be one of: crlf, lf", c.Export.LineEnding)
	}
	if _, err := core.ParseTheme(c.Export.Theme); err != nil {
		p.addf("EXPORT_THEME: %v", err)
	}
	if _, err := core.ParseAutoFit(c.Export.AutoFit); err != nil {
		p.addf("EXPORT_AUTOFIT: %v", err)
	}

	p.check(c.Import.Separator != "", "IMPORT_SEPARATOR must not be empty")
	p.check(singleChar(c.Import.Filler), "IMPORT_FILLER (%q) must be a single character", c.Import.Filler)
	if _, err := core.NewTextReader(strings.NewReader(""), c.Import.Encoding); err != nil {
		p.addf("IMPORT_ENCODING: %v", err)
	}
	p.check(c.Import.MaxFileSize > 0, "IMPORT_MAX_FILE_SIZE must be positive")

	p.check(c.Jobs.MaxConcurrent > 0, "JOBS_MAX_CONCURRENT must be positive")
	p.check(c.Jobs.MaxWaitTime > 0, "JOBS_MAX_WAIT_TIME must be positive")
	p.check(c.Jobs.ResultTTL > 0, "JOBS_RESULT_TTL must be positive")

	p.check(!c.Security.RequireAPIKey || len(c.Security.APIKeys) > 0,
		"REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		p.addf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		p.addf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format)
	}

	if len(p) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(p, "\n  - "))
	}
	return nil
}

// String summarises the config for logging. API keys are never printed.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Server: {Addr: %q}, Security: {RequireAPIKey: %t, APIKeys: [%d MASKED]}, "+
		"Export: {Theme: %q, AutoFit: %q, LineEnding: %q}, Import: {Encoding: %q, MaxFileSize: %d}, "+
		"Jobs: {MaxConcurrent: %d, MaxWaitTime: %s, ResultTTL: %s}, Logging: {Level: %q, Format: %q}}",
		c.Server.Addr(),
		c.Security.RequireAPIKey, len(c.Security.APIKeys),
		c.Export.Theme, c.Export.AutoFit, c.Export.LineEnding,
		c.Import.Encoding, c.Import.MaxFileSize,
		c.Jobs.MaxConcurrent, c.Jobs.MaxWaitTime, c.Jobs.ResultTTL,
		c.Logging.Level, c.Logging.Format,
	)
}
