package core

// import.go implements the Import Engine.
//
// The flow for every format is:
//
//  1. Row-counting pre-pass (missing file or zero rows: nothing to import)
//  2. Schema resolution: a copy of the caller's schema, or inference by the codec
//  3. Row-by-row decoding in source order; bad rows become ImportErrors
//  4. OnCompleted with the source path
//
// Only setup failures (unknown format, unreadable workbook, invalid schema)
// are returned as errors.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// ImportOptions holds framing parameters for all decoders.
type ImportOptions struct {
	Separator string // Delimited separator (default: tab; CSV always uses comma)
	Filler    rune   // Fixed-width padding trimmed from both ends (default: space)
	Encoding  string // Text charset: utf-8, windows-1252, iso-8859-1 (default: utf-8)
	Sheet     string // Spreadsheet sheet name (default: first sheet)
	TableName string // Name of the resulting table (default: schema name or file name)
}

// DefaultImportOptions returns options with every default applied.
func DefaultImportOptions() ImportOptions {
	return ImportOptions{Separator: "\t", Filler: ' ', Encoding: "utf-8"}
}

func (o ImportOptions) withDefaults() ImportOptions {
	if o.Separator == "" {
		o.Separator = "\t"
	}
	if o.Filler == 0 {
		o.Filler = ' '
	}
	if o.Encoding == "" {
		o.Encoding = "utf-8"
	}
	return o
}

// Source identifies the input of one import call.
type Source struct {
	Path      string
	HasHeader bool
	Options   ImportOptions
}

// ImportResult is the outcome of an import call. Table is nil when there was
// nothing to import or the requested sheet could not be read.
type ImportResult struct {
	Format  Format        `json:"format"`
	Table   *Table        `json:"table"`
	Errors  []ImportError `json:"errors"`
	Records int           `json:"records"`
}

// Clean reports whether the run recorded no row errors.
func (r *ImportResult) Clean() bool { return len(r.Errors) == 0 }

// ImportEngine deserializes files into tables.
type ImportEngine struct {
	opts     ImportOptions
	notifier Notifier
	limiter  *JobLimiter
	slot     taskSlot
	logger   *slog.Logger
}

// NewImportEngine creates an engine. A nil notifier discards events; a nil
// limiter allows one background run at a time.
func NewImportEngine(opts ImportOptions, notifier Notifier, limiter *JobLimiter) *ImportEngine {
	if limiter == nil {
		limiter = NewJobLimiter(DefaultMaxConcurrentJobs, DefaultMaxWaitTime)
	}
	return &ImportEngine{
		opts:     opts.withDefaults(),
		notifier: notifier,
		limiter:  limiter,
		logger:   slog.Default().With("component", "import"),
	}
}

// Options returns a copy of the engine's options.
func (e *ImportEngine) Options() ImportOptions { return e.opts }

// Limiter returns the engine's job limiter.
func (e *ImportEngine) Limiter() *JobLimiter { return e.limiter }

// Import reads path in format. A nil schema is inferred from the source.
func (e *ImportEngine) Import(ctx context.Context, format Format, path string, schema *Schema, hasHeader bool) (*ImportResult, error) {
	return e.run(ctx, format, Source{Path: path, HasHeader: hasHeader, Options: e.opts}, schema, nil)
}

// ImportSource is Import with per-call options.
func (e *ImportEngine) ImportSource(ctx context.Context, format Format, src Source, schema *Schema) (*ImportResult, error) {
	src.Options = src.Options.withDefaults()
	return e.run(ctx, format, src, schema, nil)
}

// ImportAsync runs Import on a background goroutine. Starting another
// background import on the same engine cancels this one.
func (e *ImportEngine) ImportAsync(ctx context.Context, format Format, path string, schema *Schema, hasHeader bool) *Task[*ImportResult] {
	return e.ImportSourceAsync(ctx, format, Source{Path: path, HasHeader: hasHeader, Options: e.opts}, schema)
}

// ImportSourceAsync is ImportAsync with per-call options.
func (e *ImportEngine) ImportSourceAsync(ctx context.Context, format Format, src Source, schema *Schema) *Task[*ImportResult] {
	src.Options = src.Options.withDefaults()
	return startTask(ctx, format, &e.slot, e.limiter, func(ctx context.Context, observe func(RunProgress)) (*ImportResult, error) {
		return e.run(ctx, format, src, schema, observe)
	})
}

func (e *ImportEngine) run(ctx context.Context, format Format, src Source, schema *Schema, observe func(RunProgress)) (*ImportResult, error) {
	dec, ok := LookupDecoder(format)
	if !ok {
		return nil, fmt.Errorf("import %s: %w", format, ErrUnsupportedFormat)
	}

	logger := runLogger(ctx, e.logger).With("format", format.String(), "path", src.Path)
	result := &ImportResult{Format: format}

	if _, err := os.Stat(src.Path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debug("source not found, nothing to import")
			return result, nil
		}
		return nil, fmt.Errorf("import %s: %w", format, err)
	}

	if schema != nil {
		if err := schema.Validate(); err != nil {
			return nil, fmt.Errorf("import %s: %w", format, err)
		}
		schema = schema.Clone()
	}

	total, err := dec.CountRows(src)
	if err != nil {
		return nil, fmt.Errorf("import %s: count rows: %w", format, err)
	}
	if total == 0 {
		logger.Debug("source is empty, nothing to import")
		return result, nil
	}

	start := time.Now()
	run := NewRun(ctx, format, e.notifier)
	if observe != nil {
		run.observe(observe)
	}
	run.Start(total)

	table, err := dec.Decode(run, src, schema)
	if err != nil {
		run.Fail(err)
		logger.Error("import failed", "error", err, "records", run.Current())
		return nil, fmt.Errorf("import %s: %w", format, err)
	}

	result.Table = table
	result.Errors = run.Errors()
	result.Records = table.Len()
	run.Complete(nil, src.Path)

	logger.Info("import completed",
		"records", result.Records,
		"errors", len(result.Errors),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}
