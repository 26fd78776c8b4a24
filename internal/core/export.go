package core

// export.go implements the Export Engine.
//
// The engine looks up the encoder for the requested format, wraps the call in
// a Run for progress reporting, and either buffers the output in memory
// (empty destination) or replaces the destination file.

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// ErrUnsupportedFormat is returned when no codec is registered for a format.
// Passing such a format is a programming error; the call stops immediately.
var ErrUnsupportedFormat = errors.New("unsupported format")

// MaxCellText is the longest text a spreadsheet cell accepts; longer values
// are truncated.
const MaxCellText = 32750

// AutoFit selects when spreadsheet column widths are computed.
type AutoFit int

const (
	AutoFitNone AutoFit = iota
	AutoFitHeader
	AutoFitSample10
	AutoFitSample100
	AutoFitAll
)

// SampleRows returns how many data rows feed the width calculation.
// -1 means every row; 0 means header only or no sizing.
func (a AutoFit) SampleRows() int {
	switch a {
	case AutoFitSample10:
		return 10
	case AutoFitSample100:
		return 100
	case AutoFitAll:
		return -1
	default:
		return 0
	}
}

// ParseAutoFit converts a config value (none, header, 10, 100, all).
func ParseAutoFit(s string) (AutoFit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "off":
		return AutoFitNone, nil
	case "header":
		return AutoFitHeader, nil
	case "10":
		return AutoFitSample10, nil
	case "100":
		return AutoFitSample100, nil
	case "all":
		return AutoFitAll, nil
	}
	return AutoFitNone, fmt.Errorf("unknown autofit mode %q", s)
}

// ExportOptions holds presentation and framing parameters for all encoders.
type ExportOptions struct {
	Separator      string           // Delimited separator (default: tab)
	Filler         rune             // Fixed-width padding character (default: space)
	ColumnWidths   []int            // Fixed-width override per output column
	LineEnding     string           // Text line terminator (default: CRLF)
	OmitHeader     bool             // Skip the header row/line
	UseTableNames  bool             // Sheet names from table names instead of Data, Data 1, ...
	AutoFit        AutoFit          // Spreadsheet column sizing
	AlternateRows  bool             // Alternate-row fill in spreadsheet and HTML output
	IgnoredColumns []string         // Column names skipped in every format (case-insensitive)
	Annotations    []CellAnnotation // Spreadsheet cell overrides
	Theme          Theme            // Palette for spreadsheet and HTML output
	DateLayout     string           // Date rendering layout (default: ISO date)
	Title          string           // HTML document title (default: dataset name)
}

// DefaultExportOptions returns options with every default applied.
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		Separator:  "\t",
		Filler:     ' ',
		LineEnding: "\r\n",
		Theme:      DefaultTheme,
	}
}

// withDefaults fills zero-valued framing fields.
func (o ExportOptions) withDefaults() ExportOptions {
	if o.Separator == "" {
		o.Separator = "\t"
	}
	if o.Filler == 0 {
		o.Filler = ' '
	}
	if o.LineEnding == "" {
		o.LineEnding = "\r\n"
	}
	if o.Theme == "" {
		o.Theme = DefaultTheme
	}
	return o
}

// VisibleColumns returns the indices of a table's columns that are not
// ignored, in order. Output column n (1-based) is VisibleColumns()[n-1].
func (o ExportOptions) VisibleColumns(t *Table) []int {
	idx := make([]int, 0, len(t.Columns))
	for i, c := range t.Columns {
		if !o.isIgnored(c.Name) {
			idx = append(idx, i)
		}
	}
	return idx
}

func (o ExportOptions) isIgnored(name string) bool {
	for _, ig := range o.IgnoredColumns {
		if strings.EqualFold(strings.TrimSpace(ig), name) {
			return true
		}
	}
	return false
}

// ExportResult is the outcome of an export call.
type ExportResult struct {
	Format  Format
	Records int
	Path    string        // Set when written to a file
	Stream  *bytes.Reader // Set when no destination was given
	Bytes   int64
}

// ExportEngine serializes datasets. An engine may be shared; each call keeps
// its state in its own Run.
type ExportEngine struct {
	opts     ExportOptions
	notifier Notifier
	limiter  *JobLimiter
	slot     taskSlot
	logger   *slog.Logger
}

// NewExportEngine creates an engine. A nil notifier discards events; a nil
// limiter allows one background run at a time.
func NewExportEngine(opts ExportOptions, notifier Notifier, limiter *JobLimiter) *ExportEngine {
	if limiter == nil {
		limiter = NewJobLimiter(DefaultMaxConcurrentJobs, DefaultMaxWaitTime)
	}
	return &ExportEngine{
		opts:     opts.withDefaults(),
		notifier: notifier,
		limiter:  limiter,
		logger:   slog.Default().With("component", "export"),
	}
}

// Options returns a copy of the engine's options.
func (e *ExportEngine) Options() ExportOptions { return e.opts }

// Limiter returns the engine's job limiter.
func (e *ExportEngine) Limiter() *JobLimiter { return e.limiter }

// Export writes ds in format. With an empty destination the output is returned
// as an in-memory stream; otherwise any existing file at destination is
// deleted and the output is written there.
func (e *ExportEngine) Export(ctx context.Context, ds *Dataset, format Format, destination string) (*ExportResult, error) {
	return e.run(ctx, ds, format, destination, e.opts, nil)
}

// ExportWith is Export with per-call options.
func (e *ExportEngine) ExportWith(ctx context.Context, ds *Dataset, format Format, destination string, opts ExportOptions) (*ExportResult, error) {
	return e.run(ctx, ds, format, destination, opts.withDefaults(), nil)
}

// ExportAsync runs Export on a background goroutine. Starting another
// background export on the same engine cancels this one.
func (e *ExportEngine) ExportAsync(ctx context.Context, ds *Dataset, format Format, destination string) *Task[*ExportResult] {
	return e.ExportAsyncWith(ctx, ds, format, destination, e.opts)
}

// ExportAsyncWith is ExportAsync with per-call options.
func (e *ExportEngine) ExportAsyncWith(ctx context.Context, ds *Dataset, format Format, destination string, opts ExportOptions) *Task[*ExportResult] {
	opts = opts.withDefaults()
	return startTask(ctx, format, &e.slot, e.limiter, func(ctx context.Context, observe func(RunProgress)) (*ExportResult, error) {
		return e.run(ctx, ds, format, destination, opts, observe)
	})
}

func (e *ExportEngine) run(ctx context.Context, ds *Dataset, format Format, destination string, opts ExportOptions, observe func(RunProgress)) (*ExportResult, error) {
	enc, ok := LookupEncoder(format)
	if !ok {
		return nil, fmt.Errorf("export %s: %w", format, ErrUnsupportedFormat)
	}
	if ds == nil {
		ds = &Dataset{}
	}

	start := time.Now()
	run := NewRun(ctx, format, e.notifier)
	if observe != nil {
		run.observe(observe)
	}

	logger := runLogger(ctx, e.logger).With("format", format.String())
	total := ds.RecordCount()
	run.Start(total)

	result := &ExportResult{Format: format, Records: total}

	var err error
	if destination == "" {
		var buf bytes.Buffer
		if err = enc.Encode(run, ds, opts, &buf); err == nil {
			result.Bytes = int64(buf.Len())
			result.Stream = bytes.NewReader(buf.Bytes())
			run.Complete(buf.Bytes(), "")
		}
	} else {
		var n int64
		if n, err = writeFile(destination, func(w io.Writer) error { return enc.Encode(run, ds, opts, w) }); err == nil {
			result.Bytes = n
			result.Path = destination
			run.Complete(nil, destination)
		}
	}

	if err != nil {
		run.Fail(err)
		logger.Error("export failed", "error", err, "records", run.Current())
		return nil, fmt.Errorf("export %s: %w", format, err)
	}

	logger.Info("export completed",
		"records", total,
		"bytes", result.Bytes,
		"path", result.Path,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// writeFile deletes any existing file at path and writes through fn. A failed
// write removes the partial file.
func writeFile(path string, fn func(io.Writer) error) (int64, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove existing file: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}

	cw := &countingWriter{w: f}
	werr := fn(cw)
	cerr := f.Close()
	if werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(path)
		return 0, werr
	}
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
