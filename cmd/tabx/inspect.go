package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tabx/internal/config"
	"github.com/JonMunkholm/tabx/internal/core"
)

type inspectFlags struct {
	in       importFlags
	rows     int
	asJSON   bool
	typeRows int
}

// inspectReport is the --json output.
type inspectReport struct {
	Format  string             `json:"format"`
	Schema  *core.Schema       `json:"schema"`
	Records int                `json:"records"`
	Errors  []core.ImportError `json:"errors"`
	Preview []core.Row         `json:"preview,omitempty"`
}

func newInspectCmd(cfg *config.Config) *cobra.Command {
	f := &inspectFlags{}
	cmd := &cobra.Command{
		Use:   "inspect <input>",
		Short: "Show the schema and row errors an import would produce",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, cfg, f, args[0])
		},
	}
	f.in.register(cmd, "separator")
	cmd.Flags().IntVar(&f.rows, "rows", 5, "number of rows to preview")
	cmd.Flags().IntVar(&f.typeRows, "infer", 100, "rows sampled to suggest column types; 0 disables")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the report as JSON")
	return cmd
}

func runInspect(cmd *cobra.Command, cfg *config.Config, f *inspectFlags, input string) error {
	format, src, schema, err := f.in.source(input, cfg.Import.ImportOptions())
	if err != nil {
		return err
	}

	result, err := core.NewImportEngine(src.Options, nil, nil).ImportSource(cmd.Context(), format, src, schema)
	if err != nil {
		return err
	}

	table := result.Table
	if table == nil {
		table = core.NewTable(src.Options.TableName)
	}
	report := inspectReport{
		Format:  format.String(),
		Schema:  core.SchemaFromColumns(table.Name, table.Columns),
		Records: result.Records,
		Errors:  result.Errors,
	}
	if report.Errors == nil {
		report.Errors = []core.ImportError{}
	}
	// Text sources infer every column as a string; suggest better types
	// from the values when no schema was given.
	if schema == nil && f.typeRows > 0 {
		suggestTypes(report.Schema, table, f.typeRows)
	}
	if n := min(f.rows, table.Len()); n > 0 {
		report.Preview = table.Rows[:n]
	}

	out := cmd.OutOrStdout()
	if f.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return printReport(out, input, report)
}

// suggestTypes replaces string field types with the type inferred from the
// first n rows.
func suggestTypes(schema *core.Schema, table *core.Table, n int) {
	n = min(n, table.Len())
	for i := range schema.Fields {
		if schema.Fields[i].Type != core.FieldString {
			continue
		}
		samples := make([]string, 0, n)
		for _, row := range table.Rows[:n] {
			if i < len(row) && row[i] != nil {
				samples = append(samples, core.FormatValue(row[i], ""))
			}
		}
		schema.Fields[i].Type = core.InferFieldType(samples)
	}
}

func printReport(out io.Writer, input string, r inspectReport) error {
	fmt.Fprintf(out, "file:    %s\nformat:  %s\ntable:   %s\nrecords: %d\n\n", input, r.Format, r.Schema.Name, r.Records)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tTYPE\tNULLABLE\tLENGTH")
	for _, fld := range r.Schema.Fields {
		length := "-"
		if fld.Length > 0 {
			length = fmt.Sprint(fld.Length)
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", fld.Name, fld.Type, fld.Nullable, length)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(r.Preview) > 0 {
		fmt.Fprintln(out)
		tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		names := make([]string, len(r.Schema.Fields))
		for i, fld := range r.Schema.Fields {
			names[i] = fld.Name
		}
		fmt.Fprintln(tw, strings.Join(names, "\t"))
		for _, row := range r.Preview {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = core.FormatValue(v, "")
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "\nerrors: %d\n", len(r.Errors))
	for _, e := range r.Errors {
		fmt.Fprintln(out, "  "+e.Error())
	}
	return nil
}
