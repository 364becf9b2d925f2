package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/dryfire/internal/shot"
	"github.com/ayusman/dryfire/internal/store"
)

// MaxListLimit caps the limit query parameter of GET /api/shots.
const MaxListLimit = 1000

// ShotsHandler serves the persisted shot log.
type ShotsHandler struct {
	store *store.Store
}

// NewShotsHandler creates a new ShotsHandler with the given store.
func NewShotsHandler(s *store.Store) *ShotsHandler {
	return &ShotsHandler{store: s}
}

type listShotsResponse struct {
	Shots []*shot.Shot `json:"shots"`
	Count int          `json:"count"`
}

type deleteShotsResponse struct {
	Deleted int64 `json:"deleted"`
}

// ServeHTTP implements the http.Handler interface.
//
// GET /api/shots?limit=N returns the newest shots first.
// GET /api/shots?since=RFC3339 returns shots at or after the time, oldest first.
// DELETE /api/shots clears the log.
func (h *ShotsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodDelete:
		h.deleteAll(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ShotsHandler) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var (
		shots []*shot.Shot
		err   error
	)

	if since := query.Get("since"); since != "" {
		t, parseErr := time.Parse(time.RFC3339, since)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
			return
		}
		shots, err = h.store.Shots().Since(t)
	} else {
		limit := 0
		if raw := query.Get("limit"); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil || limit <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			if limit > MaxListLimit {
				limit = MaxListLimit
			}
		}
		shots, err = h.store.Shots().List(limit)
	}

	if err != nil {
		log.Error().Err(err).Msg("Failed to list shots")
		writeError(w, http.StatusInternalServerError, "Failed to list shots")
		return
	}

	if shots == nil {
		shots = []*shot.Shot{}
	}
	writeJSON(w, http.StatusOK, listShotsResponse{Shots: shots, Count: len(shots)})
}

func (h *ShotsHandler) deleteAll(w http.ResponseWriter, _ *http.Request) {
	n, err := h.store.Shots().DeleteAll()
	if err != nil {
		log.Error().Err(err).Msg("Failed to clear shots")
		writeError(w, http.StatusInternalServerError, "Failed to clear shots")
		return
	}

	log.Info().Int64("deleted", n).Msg("Shot log cleared")
	writeJSON(w, http.StatusOK, deleteShotsResponse{Deleted: n})
}
