// Package api provides HTTP API handlers for the espvision web UI.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/yoriiioff/espvision/internal/jobs"
	"github.com/yoriiioff/espvision/internal/store"
)

// JobHandler handles HTTP requests for job resources.
type JobHandler struct {
	store  *store.Store
	runner *jobs.Runner
}

// NewJobHandler creates a new JobHandler. The store may be nil, in which
// case history endpoints return empty results.
func NewJobHandler(s *store.Store, runner *jobs.Runner) *JobHandler {
	return &JobHandler{store: s, runner: runner}
}

// ServeHTTP implements the http.Handler interface and routes requests to
// appropriate methods.
func (h *JobHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/jobs or /api/jobs/{id}
	path := strings.TrimPrefix(r.URL.Path, "/api/jobs")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ServeOpen handles POST /api/jobs/{id}/open, revealing the output folder
// in the platform file manager.
func (h *JobHandler) ServeOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	id := strings.TrimSuffix(path, "/open")

	job, err := h.lookup(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if job.OutputPath == "" {
		writeError(w, http.StatusConflict, "job has no output yet")
		return
	}

	dir := filepath.Dir(job.OutputPath)
	if err := OpenFolder(dir); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"opened": dir})
}

// Request and response types

type createJobRequest struct {
	InputPath string `json:"input_path"`
}

type jobResponse struct {
	ID              string `json:"id"`
	InputPath       string `json:"input_path"`
	OutputPath      string `json:"output_path"`
	Status          string `json:"status"`
	TotalFrames     int    `json:"total_frames"`
	ProcessedFrames int    `json:"processed_frames"`
	Detections      int    `json:"detections"`
	Error           string `json:"error,omitempty"`
	StartedAt       string `json:"started_at"`
	FinishedAt      string `json:"finished_at,omitempty"`
}

type listJobsResponse struct {
	Jobs []jobResponse `json:"jobs"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// toResponse converts a store.Job to a jobResponse.
func toResponse(j *store.Job) jobResponse {
	resp := jobResponse{
		ID:              j.ID,
		InputPath:       j.InputPath,
		OutputPath:      j.OutputPath,
		Status:          string(j.Status),
		TotalFrames:     j.TotalFrames,
		ProcessedFrames: j.ProcessedFrames,
		Detections:      j.Detections,
		Error:           j.Error,
		StartedAt:       j.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if !j.FinishedAt.IsZero() {
		resp.FinishedAt = j.FinishedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return resp
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// create handles POST /api/jobs and starts processing on the background
// worker.
func (h *JobHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input := strings.TrimSpace(req.InputPath)
	if input == "" {
		writeError(w, http.StatusBadRequest, "input_path is required")
		return
	}

	jobID, err := h.runner.Start(input)
	if err != nil {
		switch {
		case errors.Is(err, jobs.ErrBusy):
			writeError(w, http.StatusConflict, "a job is already running")
		case errors.Is(err, os.ErrNotExist):
			writeError(w, http.StatusBadRequest, "input file not found")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// list handles GET /api/jobs and returns all jobs, most recent first.
func (h *JobHandler) list(w http.ResponseWriter, r *http.Request) {
	resp := listJobsResponse{Jobs: []jobResponse{}}

	if h.store != nil {
		all, err := h.store.Jobs().List()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		for _, j := range all {
			resp.Jobs = append(resp.Jobs, toResponse(j))
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// get handles GET /api/jobs/{id}.
func (h *JobHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	job, err := h.lookup(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toResponse(job))
}

func (h *JobHandler) lookup(id string) (*store.Job, error) {
	if h.store == nil {
		return nil, store.ErrNotFound
	}
	return h.store.Jobs().GetByID(id)
}
