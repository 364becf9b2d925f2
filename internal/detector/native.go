package detector

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"github.com/ayusman/dryfire/internal/frame"
)

// NativeThreshold is the 8-bit luminance rise a pixel needs to become a
// candidate in the native detector.
const NativeThreshold = MinimumBrightnessIncrease / frame.MaxValue

// nativeBrightLevel is ExcessiveBrightnessThreshold on the 8-bit background.
const nativeBrightLevel = ExcessiveBrightnessThreshold / frame.MaxValue

// NativeDetector is a Detector built on OpenCV matrix operations. It keeps a
// running-average luminance background, thresholds the brightness increase
// of each frame against it and hands the resulting mask to the same
// clustering and color heuristics as the pixel detector.
//
// It has no dynamic threshold; a noisy scene shows up as ExcessiveMotion.
type NativeDetector struct {
	config     Config
	scanner    *Scanner
	period     int
	background gocv.Mat
	frames     int
	frameIndex int64
	mu         sync.Mutex
}

// NewNativeDetector creates a NativeDetector.
func NewNativeDetector(config Config) *NativeDetector {
	return &NativeDetector{
		config:     config,
		scanner:    NewScanner(config.SectorRows, config.SectorCols, config.Workers),
		period:     MovingAveragePeriod(config.FPS, config.MovingAveragePeriod),
		background: gocv.NewMat(),
	}
}

// ProcessFrame implements Detector.
func (d *NativeDetector) ProcessFrame(ctx context.Context, f frame.Frame, detecting bool) (Result, error) {
	if f == nil || f.Cols() <= 0 || f.Rows() <= 0 {
		return Result{}, ErrEmptyFrame
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	width, height := f.Cols(), f.Rows()
	lum, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8U, luminanceBytes(f))
	if err != nil {
		return Result{}, err
	}
	defer lum.Close()

	d.frameIndex++
	result := Result{FrameIndex: d.frameIndex}

	if d.background.Empty() || d.background.Cols() != width || d.background.Rows() != height {
		lum.CopyTo(&d.background)
		d.frames = 1
		d.countBright(&result, width, height)
		return result, nil
	}

	diff := gocv.NewMat()
	defer diff.Close()
	// Saturating subtraction keeps only brightness increases.
	gocv.Subtract(lum, d.background, &diff)

	alpha := 1 / float64(d.period)
	gocv.AddWeighted(d.background, 1-alpha, lum, alpha, 0, &d.background)
	d.frames++
	d.countBright(&result, width, height)

	if !detecting || d.frames <= d.period {
		return result, nil
	}

	d.maskDisabledSectors(&diff, width, height)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(diff, &mask, NativeThreshold, 255, gocv.ThresholdBinary)

	result.Candidates = gocv.CountNonZero(mask)
	result.ExcessiveMotion = result.Candidates > ExcessivePixelCutoff
	if result.Candidates == 0 {
		return result, nil
	}

	candidates := NewPixelSet(result.Candidates)
	bits := mask.ToBytes()
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if bits[y*width+x] == 0 {
				continue
			}
			hsv := f.HSV(x, y)
			candidates.Add(Pixel{X: x, Y: y, Lum: Luminance(hsv), Color: ColorDistance(hsv)})
		}
	}
	result.CandidatePoints = candidates.Points()

	if result.ExcessiveMotion {
		log.Debug().Int("candidates", result.Candidates).Msg("Native detector: excessive motion")
	}

	minShot := d.config.minShotDimension(width, height)
	result.Detections = detectClusters(candidates, f, nil, minShot)

	return result, nil
}

// countBright fills the brightness advisory from the background model,
// counting only enabled sectors.
func (d *NativeDetector) countBright(r *Result, width, height int) {
	bright := gocv.NewMat()
	defer bright.Close()
	gocv.Threshold(d.background, &bright, nativeBrightLevel, 255, gocv.ThresholdBinary)
	d.maskDisabledSectors(&bright, width, height)

	r.BrightPixels = gocv.CountNonZero(bright)
	if scanned := d.enabledArea(width, height); scanned > 0 {
		r.ExcessiveBrightness = float64(r.BrightPixels)/float64(scanned) > ExcessiveBrightnessRatio
	}
	if r.ExcessiveBrightness {
		log.Debug().Int("bright_pixels", r.BrightPixels).Msg("Native detector: excessive brightness")
	}
}

// enabledArea returns the number of pixels in enabled sectors.
func (d *NativeDetector) enabledArea(width, height int) int {
	rows, cols := d.scanner.Dimensions()
	area := 0
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if d.scanner.SectorEnabled(r, c) {
				b := d.scanner.Bounds(r, c, width, height)
				area += b.Dx() * b.Dy()
			}
		}
	}
	return area
}

// maskDisabledSectors zeroes the regions of disabled sectors.
func (d *NativeDetector) maskDisabledSectors(m *gocv.Mat, width, height int) {
	rows, cols := d.scanner.Dimensions()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if d.scanner.SectorEnabled(r, c) {
				continue
			}
			region := m.Region(d.scanner.Bounds(r, c, width, height))
			region.SetTo(gocv.NewScalar(0, 0, 0, 0))
			region.Close()
		}
	}
}

// luminanceBytes scales the luminance of every pixel down to 8 bits.
func luminanceBytes(f frame.Frame) []byte {
	width, height := f.Cols(), f.Rows()
	out := make([]byte, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			out[y*width+x] = byte(Luminance(f.HSV(x, y)) / frame.MaxValue)
		}
	}
	return out
}

// SetFPS implements Detector.
func (d *NativeDetector) SetFPS(fps int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.config.FPS = fps
	d.period = MovingAveragePeriod(fps, d.config.MovingAveragePeriod)
}

// Scanner implements Detector. Only the enabled grid is used; the native
// detector does not scan sectors concurrently.
func (d *NativeDetector) Scanner() *Scanner {
	return d.scanner
}

// Reset discards the background.
func (d *NativeDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.background.Empty() {
		d.background.Close()
		d.background = gocv.NewMat()
	}
	d.frames = 0
}

// Close releases the OpenCV background matrix.
func (d *NativeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.background.Close()
}
