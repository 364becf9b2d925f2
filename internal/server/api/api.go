// Package api provides HTTP API handlers for the dryfire shot detector.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/dryfire/internal/app"
	"github.com/ayusman/dryfire/internal/shot"
)

// DetectionController toggles shot reporting and the ignored laser color.
type DetectionController interface {
	Detecting() bool
	SetDetecting(detecting bool)
	IgnoreColor() shot.Color
	SetIgnoreColor(c shot.Color)
}

// SectorController reads and replaces the sector mask.
type SectorController interface {
	Sectors() [][]bool
	SetSectors(sectors [][]bool) error
}

// StatusSource reports pipeline diagnostics.
type StatusSource interface {
	Status() app.Status
}

// errorResponse is the JSON body of every error reply.
type errorResponse struct {
	Error string `json:"error"`
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
