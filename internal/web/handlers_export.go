package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/tabx/internal/core"
	"github.com/JonMunkholm/tabx/internal/logging"
)

// handleExport serializes the JSON dataset in the request body and returns
// the file as a download. Presentation options come from the query string.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, ds, opts, ok := s.parseExport(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(withRequestMetadata(r.Context(), r), s.cfg.Server.RequestTimeout)
	defer cancel()

	engine := core.NewExportEngine(opts, nil, s.jobs.Limiter())
	result, err := engine.Export(ctx, ds, format, "")
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	logging.FromContext(r.Context()).Info("export served",
		"format", format.String(),
		"records", result.Records,
		"bytes", result.Bytes,
	)

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", contentDisposition(exportFilename(ds, format)))
	w.Header().Set("Content-Length", strconv.FormatInt(result.Bytes, 10))
	io.Copy(w, result.Stream)
}

// parseExport reads the format, dataset and options shared by synchronous
// and background exports. It writes the error response itself.
func (s *Server) parseExport(w http.ResponseWriter, r *http.Request) (core.Format, *core.Dataset, core.ExportOptions, bool) {
	format, err := parseFormat(r)
	if err != nil {
		respondError(w, r, err, 0)
		return 0, nil, core.ExportOptions{}, false
	}
	if _, ok := core.LookupEncoder(format); !ok {
		respondError(w, r, fmt.Errorf("export %s: %w", format, core.ErrUnsupportedFormat), 0)
		return 0, nil, core.ExportOptions{}, false
	}

	opts, err := exportOptions(r, s.exportOpts)
	if err != nil {
		respondError(w, r, err, 0)
		return 0, nil, core.ExportOptions{}, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)
	ds, err := decodeDataset(r.Body)
	if err != nil {
		respondError(w, r, err, 0)
		return 0, nil, core.ExportOptions{}, false
	}
	return format, ds, opts, true
}

// handleFormats lists the registered formats and themes.
func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	names := func(formats []core.Format) []string {
		out := make([]string, len(formats))
		for i, f := range formats {
			out[i] = f.String()
		}
		return out
	}
	writeJSON(w, http.StatusOK, map[string][]string{
		"export": names(core.ExportFormats()),
		"import": names(core.ImportFormats()),
		"themes": core.Themes(),
	})
}

// handleHealth reports liveness and the job limiter state.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"jobs":   s.jobs.Limiter().Status(),
	})
}
