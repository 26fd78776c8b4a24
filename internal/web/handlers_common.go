package web

// handlers_common.go holds request parsing shared by the import, export and
// job handlers.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/tabx/internal/core"
)

// errBadRequest marks malformed requests that have no dedicated error code.
var errBadRequest = errors.New("bad request")

// parseFormat reads the {format} URL parameter.
func parseFormat(r *http.Request) (core.Format, error) {
	return core.ParseFormat(chi.URLParam(r, "format"))
}

// withRequestMetadata adds the client details logged by engine runs.
func withRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithIPAddress(ctx, r.RemoteAddr)
	return core.ContextWithUserAgent(ctx, r.UserAgent())
}

// exportOptions applies query parameters on top of the configured defaults:
// theme, autofit, separator, filler, lineEnding, header, tableNames,
// alternate, ignore, dateLayout and title.
func exportOptions(r *http.Request, base core.ExportOptions) (core.ExportOptions, error) {
	q := r.URL.Query()
	opts := base
	opts.IgnoredColumns = append([]string(nil), base.IgnoredColumns...)

	if v := q.Get("theme"); v != "" {
		theme, err := core.ParseTheme(v)
		if err != nil {
			return opts, err
		}
		opts.Theme = theme
	}
	if v := q.Get("autofit"); v != "" {
		fit, err := core.ParseAutoFit(v)
		if err != nil {
			return opts, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		opts.AutoFit = fit
	}
	if v := q.Get("separator"); v != "" {
		opts.Separator = separatorParam(v)
	}
	if v := q.Get("filler"); v != "" {
		c, _ := utf8.DecodeRuneInString(v)
		opts.Filler = c
	}
	switch strings.ToLower(q.Get("lineEnding")) {
	case "lf":
		opts.LineEnding = "\n"
	case "crlf":
		opts.LineEnding = "\r\n"
	}

	var err error
	if opts.OmitHeader, err = negatedBool(q, "header", opts.OmitHeader); err != nil {
		return opts, err
	}
	if opts.UseTableNames, err = boolParam(q, "tableNames", opts.UseTableNames); err != nil {
		return opts, err
	}
	if opts.AlternateRows, err = boolParam(q, "alternate", opts.AlternateRows); err != nil {
		return opts, err
	}
	if v := q.Get("ignore"); v != "" {
		for _, c := range strings.Split(v, ",") {
			if c = strings.TrimSpace(c); c != "" {
				opts.IgnoredColumns = append(opts.IgnoredColumns, c)
			}
		}
	}
	if v := q.Get("dateLayout"); v != "" {
		opts.DateLayout = v
	}
	if v := q.Get("title"); v != "" {
		opts.Title = v
	}
	return opts, nil
}

// importSource builds the import source from multipart form values: header,
// sheet, separator, filler, encoding and table.
func importSource(r *http.Request, path string, base core.ImportOptions) (core.Source, error) {
	src := core.Source{Path: path, HasHeader: true, Options: base}

	if v := r.FormValue("header"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return src, fmt.Errorf("%w: header must be true or false", errBadRequest)
		}
		src.HasHeader = b
	}
	if v := r.FormValue("sheet"); v != "" {
		src.Options.Sheet = v
	}
	if v := r.FormValue("separator"); v != "" {
		src.Options.Separator = separatorParam(v)
	}
	if v := r.FormValue("filler"); v != "" {
		c, _ := utf8.DecodeRuneInString(v)
		src.Options.Filler = c
	}
	if v := r.FormValue("encoding"); v != "" {
		if _, err := core.NewTextReader(strings.NewReader(""), v); err != nil {
			return src, err
		}
		src.Options.Encoding = v
	}
	if v := r.FormValue("table"); v != "" {
		src.Options.TableName = v
	}
	return src, nil
}

// parseSchema decodes the optional schema form value.
func parseSchema(r *http.Request) (*core.Schema, error) {
	v := r.FormValue("schema")
	if v == "" {
		return nil, nil
	}
	var schema core.Schema
	if err := json.Unmarshal([]byte(v), &schema); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return &schema, nil
}

// decodeDataset reads a JSON dataset and converts each cell to its column's
// type: JSON numbers become integers or floats, date strings become dates.
func decodeDataset(body io.Reader) (*core.Dataset, error) {
	var ds core.Dataset
	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(&ds); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return nil, err
		}
		return nil, fmt.Errorf("invalid dataset: %w", err)
	}

	for ti, t := range ds.Tables {
		if t == nil {
			continue
		}
		rows := t.Rows
		t.Rows = make([]core.Row, 0, len(rows))
		for ri, row := range rows {
			values := make([]core.Value, len(row))
			for ci, v := range row {
				if v == nil || ci >= len(t.Columns) {
					continue
				}
				col := t.Columns[ci]
				values[ci] = core.Coerce(core.FormatValue(v, ""), core.Field{Name: col.Name, Type: col.Type, Nullable: true})
			}
			if err := t.AddRow(values...); err != nil {
				return nil, fmt.Errorf("invalid dataset: table %d row %d: %w", ti+1, ri+1, err)
			}
		}
	}
	return &ds, nil
}

func separatorParam(s string) string {
	switch s {
	case "tab", `\t`:
		return "\t"
	case "space":
		return " "
	}
	return s
}

func boolParam(q map[string][]string, name string, def bool) (bool, error) {
	vals := q[name]
	if len(vals) == 0 || vals[0] == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(vals[0])
	if err != nil {
		return def, fmt.Errorf("%w: %s must be true or false", errBadRequest, name)
	}
	return b, nil
}

// negatedBool reads a positive flag (header=false) into a negative option.
func negatedBool(q map[string][]string, name string, def bool) (bool, error) {
	b, err := boolParam(q, name, !def)
	return !b, err
}

// sanitizeFilename keeps a download name to safe characters.
func sanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		case r == ' ':
			return '_'
		}
		return -1
	}, strings.TrimSpace(name))
	name = strings.Trim(name, ".")
	if name == "" {
		return "export"
	}
	return name
}

func contentDisposition(filename string) string {
	return fmt.Sprintf(`attachment; filename="%s"`, filename)
}
