// Package testdata builds synthetic HSV frames for detector tests.
package testdata

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/ayusman/dryfire/internal/frame"
)

// Common pixels.
var (
	// Background is a dim, unsaturated wall.
	Background = frame.HSV{H: 0, S: 0, V: 20}
	// Blowout is the white centre of a laser dot.
	Blowout = frame.HSV{H: 0, S: 0, V: 255}
)

// Uniform returns a frame filled with p.
func Uniform(width, height int, p frame.HSV) *frame.Buffer {
	buf, err := frame.NewBuffer(width, height)
	if err != nil {
		panic(err)
	}
	buf.Fill(p)
	return buf
}

// InDisk reports whether (x, y) lies in the disk of radius r around (cx, cy).
func InDisk(x, y, cx, cy, r int) bool {
	dx, dy := x-cx, y-cy
	return dx*dx+dy*dy <= r*r
}

// WithDisk returns a copy of base with a filled disk painted in p.
func WithDisk(base *frame.Buffer, cx, cy, r int, p frame.HSV) *frame.Buffer {
	out := base.Clone()
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			if InDisk(x, y, cx, cy, r) {
				out.Set(x, y, p)
			}
		}
	}
	return out
}

// WithRing paints the pixels outside the disk of radius r but inside radius
// r+width. The callback picks the pixel for each coordinate.
func WithRing(base *frame.Buffer, cx, cy, r, width int, pick func(x, y int) frame.HSV) *frame.Buffer {
	out := base.Clone()
	outer := r + width
	for y := cy - outer; y <= cy+outer; y++ {
		for x := cx - outer; x <= cx+outer; x++ {
			if InDisk(x, y, cx, cy, outer) && !InDisk(x, y, cx, cy, r) {
				out.Set(x, y, pick(x, y))
			}
		}
	}
	return out
}

// WithRect returns a copy of base with the rectangle r painted in p.
func WithRect(base *frame.Buffer, r image.Rectangle, p frame.HSV) *frame.Buffer {
	out := base.Clone()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			out.Set(x, y, p)
		}
	}
	return out
}

// Repeat returns n references to f.
func Repeat(f frame.Frame, n int) []frame.Frame {
	frames := make([]frame.Frame, n)
	for i := range frames {
		frames[i] = f
	}
	return frames
}

// Spot is a laser dot drawn by Scene.
type Spot struct {
	X, Y   int
	Radius int
	// Glow is the color of the halo around the blown out centre.
	Glow color.Color
}

// Scene renders an RGB image of a wall with laser spots and converts it to
// HSV. Each spot is a white core with a two pixel halo; halo pixels
// alternate between the glow color and the glow blended halfway into the
// wall, so their saturation varies like a real bloom.
func Scene(width, height int, wall color.Color, spots ...Spot) *frame.Buffer {
	img := imaging.New(width, height, wall)
	wallColor, _ := colorful.MakeColor(wall)
	for _, s := range spots {
		glow, _ := colorful.MakeColor(s.Glow)
		faded := glow.BlendRgb(wallColor, 0.5)
		outer := s.Radius + 2
		for y := s.Y - outer; y <= s.Y+outer; y++ {
			for x := s.X - outer; x <= s.X+outer; x++ {
				switch {
				case InDisk(x, y, s.X, s.Y, s.Radius):
					img.Set(x, y, color.White)
				case InDisk(x, y, s.X, s.Y, outer) && (x+y)%2 == 0:
					img.Set(x, y, glow)
				case InDisk(x, y, s.X, s.Y, outer):
					img.Set(x, y, faded)
				}
			}
		}
	}

	buf, err := frame.FromImage(img)
	if err != nil {
		panic(err)
	}
	return buf
}
