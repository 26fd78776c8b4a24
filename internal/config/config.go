// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/tabx/internal/core"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Security SecurityConfig
	Export   ExportConfig
	Import   ImportConfig
	Jobs     JobsConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on; PORT is accepted as a fallback (default: 8080)
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout bounds synchronous import and export requests (default: 5m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"5m"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey enables X-API-Key checks on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`
}

// ExportConfig holds the default export options.
type ExportConfig struct {
	// Separator joins delimited fields; "\t" and "tab" mean tab (default: tab)
	Separator string `env:"EXPORT_SEPARATOR" default:"tab"`

	// Filler pads fixed-width fields (default: space)
	Filler string `env:"EXPORT_FILLER" default:" "`

	// LineEnding is crlf or lf (default: crlf)
	LineEnding string `env:"EXPORT_LINE_ENDING" default:"crlf"`

	// Theme names the spreadsheet and HTML palette (default: blue)
	Theme string `env:"EXPORT_THEME" default:"blue"`

	// AutoFit is none, header, 10, 100 or all (default: 10)
	AutoFit string `env:"EXPORT_AUTOFIT" default:"10"`

	// DateLayout is a Go time layout for dates (default: 2006-01-02)
	DateLayout string `env:"EXPORT_DATE_LAYOUT" default:"2006-01-02"`

	// UseTableNames names sheets after tables (default: false)
	UseTableNames bool `env:"EXPORT_USE_TABLE_NAMES" default:"false"`

	// AlternateRows shades every second row (default: true)
	AlternateRows bool `env:"EXPORT_ALTERNATE_ROWS" default:"true"`

	// IgnoredColumns is a comma-separated list of columns never exported
	IgnoredColumns []string `env:"EXPORT_IGNORED_COLUMNS"`
}

// ImportConfig holds the default import options.
type ImportConfig struct {
	// Separator splits delimited lines; "\t" and "tab" mean tab (default: tab)
	Separator string `env:"IMPORT_SEPARATOR" default:"tab"`

	// Filler is trimmed from fixed-width fields (default: space)
	Filler string `env:"IMPORT_FILLER" default:" "`

	// Encoding is utf-8, utf-16, windows-1252 or iso-8859-1 (default: utf-8)
	Encoding string `env:"IMPORT_ENCODING" default:"utf-8"`

	// Sheet is the spreadsheet sheet to read (default: first sheet)
	Sheet string `env:"IMPORT_SHEET"`

	// MaxFileSize is the maximum upload size; accepts KB, MB and GB suffixes (default: 100MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"100MB" unit:"bytes"`
}

// JobsConfig holds background job settings.
type JobsConfig struct {
	// MaxConcurrent is the number of jobs that may run at once (default: 1)
	MaxConcurrent int `env:"JOBS_MAX_CONCURRENT" default:"1"`

	// MaxWaitTime is how long a job waits for a slot (default: 30s)
	MaxWaitTime time.Duration `env:"JOBS_MAX_WAIT_TIME" default:"30s"`

	// ResultTTL is how long finished jobs and their files are kept (default: 1h)
	ResultTTL time.Duration `env:"JOBS_RESULT_TTL" default:"1h"`

	// Dir holds job output files (default: system temp dir)
	Dir string `env:"JOBS_DIR"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// ExportOptions converts the export section to engine options.
// Call after Validate; unparseable values fall back to defaults.
func (c *ExportConfig) ExportOptions() core.ExportOptions {
	opts := core.DefaultExportOptions()
	opts.Separator = separator(c.Separator)
	if r := []rune(c.Filler); len(r) > 0 {
		opts.Filler = r[0]
	}
	if strings.EqualFold(c.LineEnding, "lf") {
		opts.LineEnding = "\n"
	}
	if theme, err := core.ParseTheme(c.Theme); err == nil {
		opts.Theme = theme
	}
	if fit, err := core.ParseAutoFit(c.AutoFit); err == nil {
		opts.AutoFit = fit
	}
	opts.DateLayout = c.DateLayout
	opts.UseTableNames = c.UseTableNames
	opts.AlternateRows = c.AlternateRows
	opts.IgnoredColumns = c.IgnoredColumns
	return opts
}

// ImportOptions converts the import section to engine options.
func (c *ImportConfig) ImportOptions() core.ImportOptions {
	opts := core.DefaultImportOptions()
	opts.Separator = separator(c.Separator)
	if r := []rune(c.Filler); len(r) > 0 {
		opts.Filler = r[0]
	}
	if c.Encoding != "" {
		opts.Encoding = c.Encoding
	}
	opts.Sheet = c.Sheet
	return opts
}

// separator maps the env-friendly names of whitespace separators.
func separator(s string) string {
	switch s {
	case "", "tab", `\t`:
		return "\t"
	case "space":
		return " "
	}
	return s
}
