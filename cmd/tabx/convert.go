package main

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tabx/internal/config"
	"github.com/JonMunkholm/tabx/internal/core"
	"github.com/JonMunkholm/tabx/internal/logging"
)

type convertFlags struct {
	in importFlags

	to            string
	separator     string
	filler        string
	lineEnding    string
	omitHeader    bool
	widths        []int
	theme         string
	autoFit       string
	ignore        []string
	title         string
	dateLayout    string
	useTableNames bool
	strict        bool
	progress      bool
}

func newConvertCmd(cfg *config.Config) *cobra.Command {
	f := &convertFlags{}
	cmd := &cobra.Command{
		Use:   "convert <input> <output>",
		Short: "Import a file and export it in another format",
		Example: `  tabx convert sales.csv sales.xlsx --theme green --autofit all
  tabx convert legacy.xls legacy.txt --separator ";"
  tabx convert report.dat report.html --schema report.json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, cfg, f, args[0], args[1])
		},
	}

	f.in.register(cmd, "in-separator")
	fs := cmd.Flags()
	fs.StringVar(&f.to, "to", "", "output format (default: from the output extension)")
	fs.StringVar(&f.separator, "separator", "", `output separator ("tab", "space" or literal)`)
	fs.StringVar(&f.filler, "out-filler", "", "fixed-width output filler character")
	fs.StringVar(&f.lineEnding, "line-ending", "", "output line ending: crlf or lf")
	fs.BoolVar(&f.omitHeader, "omit-header", false, "do not write a header row")
	fs.IntSliceVar(&f.widths, "widths", nil, "fixed-width output column widths")
	fs.StringVar(&f.theme, "theme", "", "spreadsheet and HTML theme")
	fs.StringVar(&f.autoFit, "autofit", "", "spreadsheet column fit: none, header, 10, 100 or all")
	fs.StringSliceVar(&f.ignore, "ignore", nil, "columns to leave out of the output")
	fs.StringVar(&f.title, "title", "", "HTML page title")
	fs.StringVar(&f.dateLayout, "date-layout", "", "Go time layout for dates in text output")
	fs.BoolVar(&f.useTableNames, "table-names", false, "name spreadsheet sheets after tables")
	fs.BoolVar(&f.strict, "strict", false, "fail instead of converting when rows have import errors")
	fs.BoolVar(&f.progress, "progress", false, "report progress on stderr")
	return cmd
}

func runConvert(cmd *cobra.Command, cfg *config.Config, f *convertFlags, input, output string) error {
	ctx := cmd.Context()
	logger := logging.WithFields(ctx, "input", input, "output", output)

	from, src, schema, err := f.in.source(input, cfg.Import.ImportOptions())
	if err != nil {
		return err
	}
	to, err := resolveFormat(f.to, output)
	if err != nil {
		return err
	}
	if _, ok := core.LookupEncoder(to); !ok {
		return fmt.Errorf("export %s: %w", to, core.ErrUnsupportedFormat)
	}
	opts, err := f.exportOptions(cfg.Export.ExportOptions())
	if err != nil {
		return err
	}

	var notifier core.Notifier
	if f.progress {
		notifier = progressPrinter(cmd)
	}

	importer := core.NewImportEngine(src.Options, notifier, nil)
	imported, err := importer.ImportSource(ctx, from, src, schema)
	if err != nil {
		return err
	}
	if imported.Table == nil {
		// Nothing was read: a missing or empty input, or a missing sheet.
		if len(imported.Errors) > 0 {
			return fmt.Errorf("import %s: %w", from, imported.Errors[0])
		}
		return fmt.Errorf("import %s: %s is missing or empty", from, input)
	}
	printImportErrors(cmd, imported.Errors)
	if f.strict && !imported.Clean() {
		return fmt.Errorf("%d rows could not be imported", len(imported.Errors))
	}

	start := time.Now()
	exporter := core.NewExportEngine(opts, notifier, importer.Limiter())
	result, err := exporter.Export(ctx, core.NewDataset(src.Options.TableName, imported.Table), to, output)
	if err != nil {
		return err
	}

	logger.Info("converted",
		"from", from.String(),
		"to", to.String(),
		"records", result.Records,
		"row_errors", len(imported.Errors),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d records to %s\n", result.Records, result.Path)
	return nil
}

// exportOptions applies the flags on top of the configured defaults.
func (f *convertFlags) exportOptions(opts core.ExportOptions) (core.ExportOptions, error) {
	if f.separator != "" {
		opts.Separator = separatorValue(f.separator)
	}
	if f.filler != "" {
		c, _ := utf8.DecodeRuneInString(f.filler)
		opts.Filler = c
	}
	switch strings.ToLower(f.lineEnding) {
	case "":
	case "lf":
		opts.LineEnding = "\n"
	case "crlf":
		opts.LineEnding = "\r\n"
	default:
		return opts, fmt.Errorf("line ending must be crlf or lf, got %q", f.lineEnding)
	}
	if f.theme != "" {
		theme, err := core.ParseTheme(f.theme)
		if err != nil {
			return opts, err
		}
		opts.Theme = theme
	}
	if f.autoFit != "" {
		fit, err := core.ParseAutoFit(f.autoFit)
		if err != nil {
			return opts, err
		}
		opts.AutoFit = fit
	}
	if len(f.widths) > 0 {
		opts.ColumnWidths = f.widths
	}
	opts.IgnoredColumns = append(append([]string(nil), opts.IgnoredColumns...), f.ignore...)
	opts.OmitHeader = opts.OmitHeader || f.omitHeader
	opts.UseTableNames = opts.UseTableNames || f.useTableNames
	if f.title != "" {
		opts.Title = f.title
	}
	if f.dateLayout != "" {
		opts.DateLayout = f.dateLayout
	}
	return opts, nil
}

// progressPrinter reports import and export progress on stderr.
func progressPrinter(cmd *cobra.Command) core.Notifier {
	w := cmd.ErrOrStderr()
	return core.NotifierFuncs{
		Start: func(_ time.Time, total, _ int, format core.Format) {
			fmt.Fprintf(w, "%s: %d records\n", format, total)
		},
		Progress: func(_ time.Time, total, current int, format core.Format) {
			fmt.Fprintf(w, "\r%s: %d/%d", format, current, total)
		},
		Completed: func(_ time.Time, total int, format core.Format, _ []byte, _ string) {
			fmt.Fprintf(w, "\r%s: %d/%d done\n", format, total, total)
		},
	}
}

func printImportErrors(cmd *cobra.Command, errs []core.ImportError) {
	w := cmd.ErrOrStderr()
	for _, e := range errs {
		fmt.Fprintln(w, "warning:", e.Error())
	}
}
