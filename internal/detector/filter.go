package detector

import (
	"github.com/ayusman/dryfire/internal/frame"
)

// Pixel filter constants.
const (
	// MaxLuminance is the largest luminance value, (255 - 0) * 255.
	MaxLuminance = frame.MaxSaturation * frame.MaxValue
	// ExcessiveBrightnessThreshold marks pixels whose average is already near
	// saturation; they cannot show a laser and are only counted.
	ExcessiveBrightnessThreshold = MaxLuminance * 96 / 100
	// MinimumBrightnessIncrease is the smallest luminance jump that can be a shot.
	MinimumBrightnessIncrease = 10000
	// MaxThresholdPixelsForAverage is the running threshold-pixel count at
	// which the dynamic threshold reaches MaxLuminance.
	MaxThresholdPixelsForAverage = 100
	// MinimumMovingAveragePeriod is the floor for the moving-average period.
	MinimumMovingAveragePeriod = 5
)

// FilterResult classifies a single pixel update.
type FilterResult int

const (
	// FilterNone means nothing notable happened.
	FilterNone FilterResult = iota
	// FilterCandidate means the pixel is a candidate shot pixel.
	FilterCandidate
	// FilterBright means the pixel average is excessively bright.
	FilterBright
	// FilterThresholded means the pixel passed the static threshold but was
	// suppressed by the dynamic one.
	FilterThresholded
)

// Luminance favours bright, desaturated pixels: (255 - s) * v.
func Luminance(p frame.HSV) int32 {
	return int32(frame.MaxSaturation-int32(p.S)) * int32(p.V)
}

// DistanceFromRed is the hue distance from red scaled by saturation and value.
func DistanceFromRed(p frame.HSV) int32 {
	h := int32(p.H)
	d := h
	if alt := 180 - h; alt < d {
		d = alt
	}
	return d * int32(p.S) * int32(p.V)
}

// DistanceFromGreen is the hue distance from green scaled by saturation and value.
func DistanceFromGreen(p frame.HSV) int32 {
	d := 60 - int32(p.H)
	if d < 0 {
		d = -d
	}
	return d * int32(p.S) * int32(p.V)
}

// ColorDistance is negative for red-ish pixels and positive for green-ish ones.
func ColorDistance(p frame.HSV) int32 {
	return DistanceFromRed(p) - DistanceFromGreen(p)
}

// MovingAveragePeriod returns the period used for the per-pixel averages.
// A positive override wins; otherwise the period follows the frame rate.
// The result is never below MinimumMovingAveragePeriod.
func MovingAveragePeriod(fps, override int) int {
	period := override
	if period <= 0 {
		period = fps / 5
	}
	if period < MinimumMovingAveragePeriod {
		period = MinimumMovingAveragePeriod
	}
	return period
}

// PixelFilter keeps per-pixel moving averages of luminance and color distance
// and decides which pixels are candidate shot pixels.
//
// Update may be called concurrently for distinct pixels. EndFrame, Reset,
// Resize and SetPeriod must not overlap with Update calls.
type PixelFilter struct {
	lum    *Grid
	color  *Grid
	period int

	framesSinceReset   int
	avgThresholdPixels float64
}

// NewPixelFilter creates a filter for frames of the given size.
func NewPixelFilter(width, height, period int) *PixelFilter {
	if period < MinimumMovingAveragePeriod {
		period = MinimumMovingAveragePeriod
	}
	return &PixelFilter{
		lum:    NewGrid(width, height),
		color:  NewGrid(width, height),
		period: period,
	}
}

// Resize adapts the filter to new frame dimensions, discarding all averages
// when the dimensions change. It reports whether a reset happened.
func (f *PixelFilter) Resize(width, height int) bool {
	resized := f.lum.Resize(width, height)
	f.color.Resize(width, height)
	if resized {
		f.framesSinceReset = 0
		f.avgThresholdPixels = 0
	}
	return resized
}

// Reset discards all averages.
func (f *PixelFilter) Reset() {
	f.lum.Reset()
	f.color.Reset()
	f.framesSinceReset = 0
	f.avgThresholdPixels = 0
}

// SetPeriod changes the moving-average period.
func (f *PixelFilter) SetPeriod(period int) {
	if period < MinimumMovingAveragePeriod {
		period = MinimumMovingAveragePeriod
	}
	f.period = period
}

// Period returns the moving-average period.
func (f *PixelFilter) Period() int { return f.period }

// WarmedUp reports whether enough frames were seen to trust the averages.
func (f *PixelFilter) WarmedUp() bool {
	return f.framesSinceReset >= f.period
}

// AverageThresholdPixels returns the running average of threshold pixels per frame.
func (f *PixelFilter) AverageThresholdPixels() float64 {
	return f.avgThresholdPixels
}

// LumAverages returns the luminance moving-average grid.
func (f *PixelFilter) LumAverages() *Grid { return f.lum }

// ColorAverages returns the color-distance moving-average grid.
func (f *PixelFilter) ColorAverages() *Grid { return f.color }

// EndFrame folds the number of threshold pixels seen in the frame into the
// running average and advances the warm-up counter.
func (f *PixelFilter) EndFrame(thresholdPixels int) {
	n := float64(f.period)
	f.avgThresholdPixels = (f.avgThresholdPixels*(n-1) + float64(thresholdPixels)) / n
	f.framesSinceReset++
}

// DynamicThreshold returns the static and dynamic luminance thresholds for a
// pixel with the given average.
func (f *PixelFilter) DynamicThreshold(lumAverage int32) (static, dynamic float64) {
	static = float64(MaxLuminance-lumAverage) / 4

	ratio := f.avgThresholdPixels / MaxThresholdPixelsForAverage
	if ratio > 1 {
		ratio = 1
	}
	dynamic = static + (MaxLuminance-static)*ratio
	return static, dynamic
}

// Update feeds one pixel sample into the filter. The returned Pixel is only
// meaningful when the result is FilterCandidate. Out of range coordinates
// are ignored.
func (f *PixelFilter) Update(p frame.HSV, x, y int, detecting bool) (Pixel, FilterResult) {
	if !f.lum.Contains(x, y) {
		return Pixel{}, FilterNone
	}

	idx := f.lum.index(x, y)
	lum := Luminance(p)
	color := ColorDistance(p)

	lumAvg := f.lum.data[idx]
	colorAvg := f.color.data[idx]

	if lumAvg == Uninitialized {
		f.lum.data[idx] = lum
		f.color.data[idx] = color
		return Pixel{}, FilterNone
	}

	result := FilterNone
	var px Pixel

	if lumAvg > ExcessiveBrightnessThreshold {
		result = FilterBright
	} else if detecting && f.WarmedUp() {
		delta := float64(lum - lumAvg)
		static, dynamic := f.DynamicThreshold(lumAvg)

		switch {
		case delta > MinimumBrightnessIncrease && delta > dynamic:
			result = FilterCandidate
			px = Pixel{
				X:            x,
				Y:            y,
				Lum:          lum,
				LumAverage:   lumAvg,
				Color:        color,
				ColorAverage: colorAvg,
			}
		case delta > static:
			result = FilterThresholded
		}
	}

	n := int64(f.period)
	f.lum.data[idx] = int32((int64(lumAvg)*(n-1) + int64(lum)) / n)
	f.color.data[idx] = int32((int64(colorAvg)*(n-1) + int64(color)) / n)

	return px, result
}
