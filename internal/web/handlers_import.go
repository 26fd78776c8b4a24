package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/tabx/internal/core"
	"github.com/JonMunkholm/tabx/internal/logging"
)

// importResponse is the JSON body returned by an import.
type importResponse struct {
	Format  string             `json:"format"`
	Table   *core.Table        `json:"table"`
	Errors  []core.ImportError `json:"errors"`
	Records int                `json:"records"`
	Clean   bool               `json:"clean"`
}

// handleImport reads an uploaded file with the {format} codec and returns the
// table and the row errors found.
//
// Form fields: file (required), schema (JSON), header, sheet, separator,
// filler, encoding, table.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	format, err := parseFormat(r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	if _, ok := core.LookupDecoder(format); !ok {
		respondError(w, r, fmt.Errorf("import %s: %w", format, core.ErrUnsupportedFormat), 0)
		return
	}

	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, fmt.Errorf("file too large: %w", err), 0)
		} else {
			respondError(w, r, fmt.Errorf("%w: invalid multipart form: %v", errBadRequest, err), 0)
		}
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, fmt.Errorf("no file provided: %w", err), 0)
		return
	}
	defer file.Close()

	path, err := saveUpload(file, header.Filename, format)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	defer os.Remove(path)

	schema, err := parseSchema(r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	src, err := importSource(r, path, s.importOpts)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	ctx, cancel := context.WithTimeout(withRequestMetadata(r.Context(), r), s.cfg.Server.RequestTimeout)
	defer cancel()

	engine := core.NewImportEngine(s.importOpts, nil, s.jobs.Limiter())
	result, err := engine.ImportSource(ctx, format, src, schema)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	logging.FromContext(r.Context()).Info("import served",
		"format", format.String(),
		"file", header.Filename,
		"records", result.Records,
		"row_errors", len(result.Errors),
	)

	errs := result.Errors
	if errs == nil {
		errs = []core.ImportError{}
	}
	writeJSON(w, http.StatusOK, importResponse{
		Format:  format.String(),
		Table:   result.Table,
		Errors:  errs,
		Records: result.Records,
		Clean:   result.Clean(),
	})
}

// saveUpload copies an uploaded file to a temporary file. The spreadsheet
// readers need a path, and the extension keeps the file recognisable.
func saveUpload(file io.Reader, filename string, format core.Format) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = format.Extension()
	}
	tmp, err := os.CreateTemp("", "tabx-import-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("save upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("save upload: %w", err)
	}
	return tmp.Name(), nil
}
