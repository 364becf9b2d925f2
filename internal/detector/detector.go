// Package detector turns HSV video frames into laser shot detections.
package detector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/ayusman/dryfire/internal/frame"
	"github.com/ayusman/dryfire/internal/shot"
)

// Kind selects a Detector implementation.
type Kind string

const (
	// KindPixel is the per-pixel moving-average pipeline.
	KindPixel Kind = "pixel"
	// KindNative is the OpenCV backed detector.
	KindNative Kind = "native"
	// KindMock returns preset results.
	KindMock Kind = "mock"
)

var (
	// ErrUnknownKind is returned for unsupported detector kinds.
	ErrUnknownKind = errors.New("unknown detector kind")
	// ErrEmptyFrame is returned when a frame has no pixels.
	ErrEmptyFrame = errors.New("frame is empty")
)

// ExcessiveBrightnessRatio is the fraction of bright pixels in a frame that
// raises the excessive brightness advisory.
const ExcessiveBrightnessRatio = 0.1

// ParseKind parses a detector kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindPixel, KindNative, KindMock:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Detection is a plausible shot found in a frame, before the shot gate.
type Detection struct {
	X     float64
	Y     float64
	Color shot.Color
	Size  int
}

// Result is the outcome of processing one frame.
type Result struct {
	FrameIndex int64
	Detections []Detection
	// Candidates is the number of candidate pixels in the frame.
	Candidates int
	// CandidatePoints are the candidate pixel coordinates, for diagnostics.
	CandidatePoints []image.Point
	BrightPixels    int
	// ExcessiveMotion is set when the frame had too many candidate pixels to
	// cluster reliably.
	ExcessiveMotion bool
	// ExcessiveBrightness is set when too much of the frame is saturated.
	ExcessiveBrightness bool
}

// Detector defines the interface for shot detection implementations.
type Detector interface {
	// ProcessFrame analyzes one frame. When detecting is false the detector
	// keeps its background state warm but reports no detections.
	ProcessFrame(ctx context.Context, f frame.Frame, detecting bool) (Result, error)

	// SetFPS informs the detector of the capture frame rate.
	SetFPS(fps int)

	// Scanner returns the sector grid used to include or exclude regions.
	Scanner() *Scanner

	// Reset discards all background state.
	Reset()

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for shot detection.
type Config struct {
	// FPS is the capture frame rate; it drives the moving-average period.
	FPS int

	// MovingAveragePeriod overrides the fps-derived period when positive.
	MovingAveragePeriod int

	// MinShotDimension overrides the resolution-derived minimum cluster
	// size when positive.
	MinShotDimension int

	// SectorRows and SectorCols define the sector grid (default 3x3).
	SectorRows int
	SectorCols int

	// Workers bounds concurrent sector scans (default: one per CPU).
	Workers int
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		FPS:        30,
		SectorRows: DefaultSectorRows,
		SectorCols: DefaultSectorCols,
	}
}

// New creates a detector of the given kind.
func New(kind Kind, cfg Config) (Detector, error) {
	switch kind {
	case KindPixel:
		return NewPixelDetector(cfg), nil
	case KindNative:
		return NewNativeDetector(cfg), nil
	case KindMock:
		return NewMockDetector(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// DefaultMinShotDimension scales the minimum cluster size with the frame
// resolution: about 6 pixels at 640x480, never below 3.
func DefaultMinShotDimension(width, height int) int {
	d := int(math.Round(math.Sqrt(float64(width*height)) / 100))
	if d < 3 {
		d = 3
	}
	return d
}

// minShotDimension resolves the configured override against the frame size.
func (c Config) minShotDimension(width, height int) int {
	if c.MinShotDimension > 0 {
		return c.MinShotDimension
	}
	return DefaultMinShotDimension(width, height)
}

// detectClusters clusters candidates and classifies each surviving cluster.
func detectClusters(candidates *PixelSet, f frame.Frame, colorAverages *Grid, minShotDimension int) []Detection {
	var detections []Detection
	for _, c := range BuildClusters(candidates, minShotDimension) {
		color, ok := Classify(c, f, colorAverages)
		if !ok {
			logClusterWithoutColor(c)
			continue
		}
		detections = append(detections, Detection{
			X:     c.CenterX,
			Y:     c.CenterY,
			Color: color,
			Size:  c.Size(),
		})
	}
	return detections
}
