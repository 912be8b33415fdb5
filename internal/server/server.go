// Package server provides the HTTP server backing the espvision web UI.
package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/yoriiioff/espvision/internal/jobs"
	"github.com/yoriiioff/espvision/internal/server/api"
	"github.com/yoriiioff/espvision/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Runner    *jobs.Runner
}

// Server represents the HTTP server for the espvision web UI.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	// Register job API handlers if Runner is configured
	if s.config.Runner != nil {
		jobHandler := api.NewJobHandler(s.config.Store, s.config.Runner)

		jobRouter := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Route the action endpoint: /api/jobs/{id}/open
			if strings.HasSuffix(r.URL.Path, "/open") {
				jobHandler.ServeOpen(w, r)
				return
			}
			jobHandler.ServeHTTP(w, r)
		})

		s.mux.Handle("/api/jobs", jobRouter)
		s.mux.Handle("/api/jobs/", jobRouter)

		eventsHandler := NewEventsHandler(s.config.Runner)
		s.mux.Handle("/api/events", eventsHandler)

		previewHandler := NewPreviewHandler(s.config.Runner)
		s.mux.Handle("/api/preview", previewHandler)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
