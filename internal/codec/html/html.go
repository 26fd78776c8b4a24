// Package html renders a dataset as one self-contained, filterable HTML
// document. Markup is produced through templ components; styles come from
// the theme palette and the filter script is embedded inline.
package html

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/tabx/internal/core"
)

func init() {
	core.RegisterEncoder(core.FormatHTML, Encoder{})
}

// Encoder writes a dataset as an HTML document.
type Encoder struct{}

func (Encoder) Encode(run *core.Run, ds *core.Dataset, opts core.ExportOptions, w io.Writer) error {
	bw := bufio.NewWriter(w)
	if err := document(run, ds, opts).Render(run.Context(), bw); err != nil {
		return err
	}
	return bw.Flush()
}

func document(run *core.Run, ds *core.Dataset, opts core.ExportOptions) templ.Component {
	title := opts.Title
	if title == "" {
		title = ds.Name
	}
	if title == "" {
		title = "Export"
	}

	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		pw := &printer{w: w}
		pw.print("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
		pw.printf("<title>%s</title>\n", templ.EscapeString(title))
		pw.printf("<style>\n%s</style>\n", stylesheet(core.PaletteFor(opts.Theme)))
		pw.print("</head>\n<body>\n")
		pw.printf("<h1>%s</h1>\n", templ.EscapeString(title))
		if pw.err != nil {
			return pw.err
		}

		n := 0
		for _, t := range ds.Tables {
			if t == nil {
				continue
			}
			n++
			if err := tableSection(run, n, t, opts).Render(ctx, w); err != nil {
				return err
			}
		}

		pw.printf("<script>\n%s</script>\n</body>\n</html>\n", filterScript)
		return pw.err
	})
}

// tableSection renders the filter controls and the table with id suffix n.
func tableSection(run *core.Run, n int, t *core.Table, opts core.ExportOptions) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		pw := &printer{w: w}
		cols := opts.VisibleColumns(t)

		pw.printf("<section class=\"dataset\" data-table=\"%d\">\n", n)
		if t.Name != "" {
			pw.printf("<h2>%s</h2>\n", templ.EscapeString(t.Name))
		}
		pw.print("<div class=\"controls\">\n")
		pw.printf("<input type=\"text\" id=\"filter-%d\" placeholder=\"Filter rows\" oninput=\"applyFilter(%d)\">\n", n, n)
		pw.printf("<button type=\"button\" onclick=\"applyFilter(%d)\">Filter</button>\n", n)
		pw.printf("<button type=\"button\" onclick=\"clearFilter(%d)\">Clear</button>\n", n)
		pw.printf("<span class=\"count\" id=\"count-%d\">%d / %d</span>\n", n, len(t.Rows), len(t.Rows))
		pw.print("</div>\n")

		pw.printf("<table id=\"table-%d\">\n", n)
		if !opts.OmitHeader {
			pw.print("<thead><tr>")
			for _, c := range cols {
				pw.printf("<th>%s</th>", templ.EscapeString(t.Columns[c].Label()))
			}
			pw.print("</tr></thead>\n")
		}
		pw.print("<tbody>\n")
		if pw.err != nil {
			return pw.err
		}

		for i, row := range t.Rows {
			if opts.AlternateRows && (i+1)%2 == 0 {
				pw.print("<tr class=\"alt\">")
			} else {
				pw.print("<tr>")
			}
			for _, c := range cols {
				var v core.Value
				if c < len(row) {
					v = row[c]
				}
				pw.printf("<td>%s</td>", templ.EscapeString(core.FormatValue(v, opts.DateLayout)))
			}
			pw.print("</tr>\n")
			if pw.err != nil {
				return pw.err
			}
			if err := run.Step(); err != nil {
				return err
			}
		}

		pw.print("</tbody>\n</table>\n</section>\n")
		return pw.err
	})
}

// printer writes until the first error and keeps it.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) print(s string) {
	if p.err == nil {
		_, p.err = io.WriteString(p.w, s)
	}
}

func (p *printer) printf(format string, args ...any) {
	if p.err == nil {
		_, p.err = fmt.Fprintf(p.w, format, args...)
	}
}
