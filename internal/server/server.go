// Package server provides the HTTP server for the dryfire shot detector.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/dryfire/internal/server/api"
	"github.com/ayusman/dryfire/internal/store"
)

// Controller is the part of the running pipeline the HTTP API drives.
type Controller interface {
	api.DetectionController
	api.SectorController
	api.StatusSource
	MaskSource
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	// Controller enables the detection, sectors, diagnostics and mask endpoints.
	Controller Controller
	// Preview enables the MJPEG stream.
	Preview PreviewSource
	// Hub serves the live shot feed. New creates one when nil.
	Hub *ShotsHub
}

// Server represents the HTTP server for the dryfire application.
type Server struct {
	config Config
	mux    *http.ServeMux
	hub    *ShotsHub
	start  time.Time
	srv    *http.Server
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	hub := config.Hub
	if hub == nil {
		hub = NewShotsHub()
	}

	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		hub:    hub,
		start:  time.Now(),
	}
	s.srv = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.Handle("/api/shots/ws", s.hub)

	if s.config.Store != nil {
		s.mux.Handle("/api/shots", api.NewShotsHandler(s.config.Store))
	}

	if c := s.config.Controller; c != nil {
		s.mux.Handle("/api/detection", api.NewDetectionHandler(c))
		s.mux.Handle("/api/sectors", api.NewSectorsHandler(c))
		s.mux.Handle("/api/diagnostics", api.NewDiagnosticsHandler(c))
		s.mux.Handle("/api/debug/mask", NewMaskHandler(c))
	}

	if s.config.Preview != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Preview))
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// Hub returns the live shot feed, to be subscribed to the shot gate.
func (s *Server) Hub() *ShotsHub {
	return s.hub
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
		"status":       "ok",
		"uptime":       uptime.String(),
		"feed_clients": s.hub.Clients(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address and blocks
// until Shutdown is called or the listener fails.
func (s *Server) ListenAndServe(addr string) error {
	s.srv.Addr = addr

	log.Info().Str("addr", addr).Msg("HTTP server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
