package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/tabx/internal/core"
)

// handleStartExportJob queues a background export and returns its id.
func (s *Server) handleStartExportJob(w http.ResponseWriter, r *http.Request) {
	format, ds, opts, ok := s.parseExport(w, r)
	if !ok {
		return
	}

	job, err := s.jobs.StartExport(withRequestMetadata(r.Context(), r), ds, format, opts)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	w.Header().Set("Location", "/api/jobs/"+job.ID)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"id":       job.ID,
		"status":   "/api/jobs/" + job.ID,
		"progress": "/api/jobs/" + job.ID + "/progress",
		"result":   "/api/jobs/" + job.ID + "/result",
	})
}

// handleJobStatus returns a job's progress and outcome.
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(chi.URLParam(r, "jobID"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, job.Status())
}

// handleJobProgress streams job progress via Server-Sent Events.
// Supports resumption via lastEventId query parameter for reconnection.
func (s *Server) handleJobProgress(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	// The event ID is the progress percentage, allowing clients to skip
	// already-received events after reconnection
	lastEventIDStr := r.URL.Query().Get("lastEventId")
	if lastEventIDStr == "" {
		lastEventIDStr = r.Header.Get("Last-Event-ID")
	}
	lastEventID := -1
	if lastEventIDStr != "" {
		if n, err := strconv.Atoi(lastEventIDStr); err == nil {
			lastEventID = n
		}
	}

	progressCh, err := s.jobs.Progress(jobID)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, fmt.Errorf("streaming not supported"), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				// Channel closed: the job finished, failed or was cancelled
				job, err := s.jobs.Get(jobID)
				if err != nil {
					fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
				} else {
					data, _ := json.Marshal(job.Status())
					fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
				}
				flusher.Flush()
				return
			}

			// Skip events the client already received, but always pass on
			// a phase change at the same percentage
			percent := progress.Percent()
			if percent <= lastEventID && progress.Phase == core.PhaseRunning {
				continue
			}
			lastEventID = percent

			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", percent, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleCancelJob cancels a running job.
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	if err := s.jobs.Cancel(chi.URLParam(r, "jobID")); err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// handleJobResult downloads the output file of a finished job.
func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	job, res, err := s.jobs.Result(chi.URLParam(r, "jobID"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	f, err := os.Open(res.Path)
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: output expired", ErrJobNotFound), 0)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", job.Format.ContentType())
	w.Header().Set("Content-Disposition", contentDisposition(job.Filename))
	http.ServeContent(w, r, job.Filename, job.Created, f)
}
