package detector

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/dryfire/internal/frame"
)

// PixelDetector implements Detector with per-pixel moving averages, a
// parallel sector scan, flood-fill clustering and halo color voting.
type PixelDetector struct {
	config     Config
	filter     *PixelFilter
	scanner    *Scanner
	width      int
	height     int
	frameIndex int64

	motion bool
	bright bool
	mu     sync.Mutex
}

// NewPixelDetector creates a PixelDetector. Frame buffers are allocated on
// the first frame.
func NewPixelDetector(config Config) *PixelDetector {
	return &PixelDetector{
		config:  config,
		filter:  NewPixelFilter(0, 0, MovingAveragePeriod(config.FPS, config.MovingAveragePeriod)),
		scanner: NewScanner(config.SectorRows, config.SectorCols, config.Workers),
	}
}

// ProcessFrame runs the full pipeline on f. Frames are processed one at a
// time; a cancelled ctx drops the unfinished sectors of this frame.
func (d *PixelDetector) ProcessFrame(ctx context.Context, f frame.Frame, detecting bool) (Result, error) {
	if f == nil || f.Cols() <= 0 || f.Rows() <= 0 {
		return Result{}, ErrEmptyFrame
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.filter.Resize(f.Cols(), f.Rows()) {
		log.Info().Int("width", f.Cols()).Int("height", f.Rows()).Msg("Frame size changed, moving averages reset")
	}
	d.width, d.height = f.Cols(), f.Rows()
	d.frameIndex++

	scan := d.scanner.Scan(ctx, f, d.filter, detecting)
	// A frame where no sector completed updated no averages.
	if scan.SectorsScanned > 0 {
		d.filter.EndFrame(scan.Candidates.Len() + scan.ThresholdedPixels)
	}

	result := Result{
		FrameIndex:      d.frameIndex,
		Candidates:      scan.Candidates.Len(),
		CandidatePoints: scan.Candidates.Points(),
		BrightPixels:    scan.BrightPixels,
		ExcessiveMotion: scan.Candidates.Len() > ExcessivePixelCutoff,
		ExcessiveBrightness: scan.ScannedPixels > 0 &&
			float64(scan.BrightPixels)/float64(scan.ScannedPixels) > ExcessiveBrightnessRatio,
	}
	d.updateAdvisories(result)

	if scan.SectorsAborted > 0 {
		log.Debug().
			Int64("frame", d.frameIndex).
			Int("aborted", scan.SectorsAborted).
			Int("scanned", scan.SectorsScanned).
			Msg("Sector scan interrupted")
	}

	if !detecting || scan.Candidates.Len() == 0 {
		return result, nil
	}

	minShot := d.config.minShotDimension(f.Cols(), f.Rows())
	result.Detections = detectClusters(scan.Candidates, f, d.filter.ColorAverages(), minShot)

	return result, nil
}

// updateAdvisories logs advisory changes and keeps them for polling.
func (d *PixelDetector) updateAdvisories(r Result) {
	if r.ExcessiveMotion != d.motion {
		if r.ExcessiveMotion {
			log.Warn().Int("candidates", r.Candidates).Msg("Excessive motion, shot detection degraded")
		} else {
			log.Info().Msg("Excessive motion cleared")
		}
	}
	if r.ExcessiveBrightness != d.bright {
		if r.ExcessiveBrightness {
			log.Warn().Int("bright_pixels", r.BrightPixels).Msg("Excessive brightness, shot detection degraded")
		} else {
			log.Info().Msg("Excessive brightness cleared")
		}
	}
	d.motion = r.ExcessiveMotion
	d.bright = r.ExcessiveBrightness
}

// ExcessiveMotion reports the motion advisory of the last frame.
func (d *PixelDetector) ExcessiveMotion() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.motion
}

// ExcessiveBrightness reports the brightness advisory of the last frame.
func (d *PixelDetector) ExcessiveBrightness() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bright
}

// SetFPS recomputes the moving-average period.
func (d *PixelDetector) SetFPS(fps int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.config.FPS = fps
	d.filter.SetPeriod(MovingAveragePeriod(fps, d.config.MovingAveragePeriod))
}

// Filter returns the pixel filter. It must not be used while a frame is
// being processed.
func (d *PixelDetector) Filter() *PixelFilter {
	return d.filter
}

// Scanner returns the sector scanner.
func (d *PixelDetector) Scanner() *Scanner {
	return d.scanner
}

// Reset discards all moving averages.
func (d *PixelDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.filter.Reset()
	d.motion = false
	d.bright = false
}

// Close is a no-op; the detector holds no external resources.
func (d *PixelDetector) Close() error {
	return nil
}

func logClusterWithoutColor(c *Cluster) {
	log.Debug().
		Float64("x", c.CenterX).
		Float64("y", c.CenterY).
		Msg("Cluster rejected: no surrounding pixels to classify color")
}
