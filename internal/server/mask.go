package server

import (
	"image"
	"image/color"
	"net/http"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
)

// MaxMaskScale caps the scale query parameter of the mask endpoint.
const MaxMaskScale = 8

// MaskSource supplies the candidate pixels of the latest frame.
type MaskSource interface {
	CandidateMask() (width, height int, points []image.Point)
}

// MaskHandler renders the latest candidate mask as a PNG: candidate pixels
// are white on black.
type MaskHandler struct {
	source MaskSource
}

// NewMaskHandler creates a new MaskHandler.
func NewMaskHandler(source MaskSource) *MaskHandler {
	return &MaskHandler{source: source}
}

func (h *MaskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	scale := 1
	if raw := r.URL.Query().Get("scale"); raw != "" {
		s, err := strconv.Atoi(raw)
		if err != nil || s < 1 || s > MaxMaskScale {
			http.Error(w, "scale must be between 1 and 8", http.StatusBadRequest)
			return
		}
		scale = s
	}

	width, height, points := h.source.CandidateMask()
	if width == 0 || height == 0 {
		http.Error(w, "No frame processed yet", http.StatusNotFound)
		return
	}

	img := RenderMask(width, height, points)
	if scale > 1 {
		img = imaging.Resize(img, width*scale, height*scale, imaging.NearestNeighbor)
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	if err := imaging.Encode(w, img, imaging.PNG); err != nil {
		log.Warn().Err(err).Msg("Failed to encode candidate mask")
	}
}

// RenderMask draws points white on a black width x height image.
func RenderMask(width, height int, points []image.Point) *image.NRGBA {
	img := imaging.New(width, height, color.Black)
	for _, p := range points {
		img.Set(p.X, p.Y, color.White)
	}
	return img
}
