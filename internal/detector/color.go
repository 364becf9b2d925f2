package detector

import (
	"image"

	"github.com/ayusman/dryfire/internal/frame"
	"github.com/ayusman/dryfire/internal/shot"
)

// Classify decides whether a cluster was made by a red or a green laser.
//
// The dot itself is usually blown out towards white/green whatever the laser
// color, so the vote comes from the halo: in-frame pixels adjacent to
// non-interior members that are not members themselves. Only halo pixels
// more saturated than the halo average vote. Each vote is
// DistanceFromRed - DistanceFromGreen minus half the pixel's color-distance
// average. A negative sum is red, anything else green (including zero).
//
// colorAverages may be nil. ok is false when no halo pixel could be sampled.
func Classify(c *Cluster, f frame.Frame, colorAverages *Grid) (color shot.Color, ok bool) {
	visited := make(map[image.Point]struct{})
	var halo []image.Point
	saturationSum := 0

	for _, p := range c.Pixels {
		if p.Connectedness >= MaxConnectedness {
			continue
		}
		for _, off := range neighbours {
			x, y := p.X+off.X, p.Y+off.Y
			if !frame.InBounds(f, x, y) || c.Contains(x, y) {
				continue
			}
			pt := image.Point{X: x, Y: y}
			if _, seen := visited[pt]; seen {
				continue
			}
			visited[pt] = struct{}{}
			halo = append(halo, pt)
			saturationSum += int(f.HSV(x, y).S)
		}
	}

	if len(halo) == 0 {
		return shot.ColorNone, false
	}

	avgSaturation := float64(saturationSum) / float64(len(halo))

	var colorSum int64
	for _, pt := range halo {
		hsv := f.HSV(pt.X, pt.Y)
		if float64(hsv.S) <= avgSaturation {
			continue
		}

		value := int64(DistanceFromRed(hsv)) - int64(DistanceFromGreen(hsv))
		if colorAverages != nil {
			value -= int64(colorAverages.At(pt.X, pt.Y)) / 2
		}
		colorSum += value
	}

	if colorSum < 0 {
		return shot.ColorRed, true
	}
	return shot.ColorGreen, true
}
