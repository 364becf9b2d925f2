package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/dryfire/internal/detector"
	"github.com/ayusman/dryfire/internal/shot"
)

// DetectionHandler serves GET and PUT /api/detection.
type DetectionHandler struct {
	controller DetectionController
}

// NewDetectionHandler creates a new DetectionHandler.
func NewDetectionHandler(c DetectionController) *DetectionHandler {
	return &DetectionHandler{controller: c}
}

type detectionState struct {
	Detecting   bool       `json:"detecting"`
	IgnoreColor shot.Color `json:"ignore_color"`
}

// updateDetectionRequest leaves fields that are absent unchanged.
type updateDetectionRequest struct {
	Detecting   *bool   `json:"detecting"`
	IgnoreColor *string `json:"ignore_color"`
}

func (h *DetectionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.state())
	case http.MethodPut:
		h.update(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *DetectionHandler) state() detectionState {
	return detectionState{
		Detecting:   h.controller.Detecting(),
		IgnoreColor: h.controller.IgnoreColor(),
	}
}

func (h *DetectionHandler) update(w http.ResponseWriter, r *http.Request) {
	var req updateDetectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Validate everything before applying anything.
	var ignore shot.Color
	if req.IgnoreColor != nil {
		c, err := shot.ParseColor(*req.IgnoreColor)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		ignore = c
	}

	if req.Detecting != nil {
		h.controller.SetDetecting(*req.Detecting)
	}
	if req.IgnoreColor != nil {
		h.controller.SetIgnoreColor(ignore)
	}

	writeJSON(w, http.StatusOK, h.state())
}

// SectorsHandler serves GET and PUT /api/sectors.
type SectorsHandler struct {
	controller SectorController
}

// NewSectorsHandler creates a new SectorsHandler.
func NewSectorsHandler(c SectorController) *SectorsHandler {
	return &SectorsHandler{controller: c}
}

type sectorsResponse struct {
	Rows    int      `json:"rows"`
	Cols    int      `json:"cols"`
	Sectors [][]bool `json:"sectors"`
}

type updateSectorsRequest struct {
	Sectors [][]bool `json:"sectors"`
}

func (h *SectorsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.response())
	case http.MethodPut:
		h.update(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SectorsHandler) response() sectorsResponse {
	sectors := h.controller.Sectors()
	resp := sectorsResponse{Rows: len(sectors), Sectors: sectors}
	if len(sectors) > 0 {
		resp.Cols = len(sectors[0])
	}
	return resp
}

func (h *SectorsHandler) update(w http.ResponseWriter, r *http.Request) {
	var req updateSectorsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.controller.SetSectors(req.Sectors); err != nil {
		if errors.Is(err, detector.ErrSectorOutOfRange) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update sectors")
		return
	}

	writeJSON(w, http.StatusOK, h.response())
}

// DiagnosticsHandler serves GET /api/diagnostics.
type DiagnosticsHandler struct {
	source StatusSource
}

// NewDiagnosticsHandler creates a new DiagnosticsHandler.
func NewDiagnosticsHandler(s StatusSource) *DiagnosticsHandler {
	return &DiagnosticsHandler{source: s}
}

func (h *DiagnosticsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.source.Status())
}
