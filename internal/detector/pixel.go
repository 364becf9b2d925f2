package detector

import "image"

// Pixel is a candidate pixel whose brightness rose above its adaptive
// threshold in the current frame.
type Pixel struct {
	X            int
	Y            int
	Lum          int32
	LumAverage   int32
	Color        int32
	ColorAverage int32
	// Connectedness counts the 8-neighbours that are also candidates. It is
	// filled in by BuildClusters.
	Connectedness int
}

// Point returns the pixel coordinate.
func (p *Pixel) Point() image.Point {
	return image.Point{X: p.X, Y: p.Y}
}

// PixelSet is an insertion-ordered set of candidate pixels keyed by
// coordinate. It is not safe for concurrent mutation.
type PixelSet struct {
	pixels []*Pixel
	index  map[image.Point]*Pixel
}

// NewPixelSet creates an empty set.
func NewPixelSet(capacity int) *PixelSet {
	return &PixelSet{
		pixels: make([]*Pixel, 0, capacity),
		index:  make(map[image.Point]*Pixel, capacity),
	}
}

// Add inserts p unless a pixel already exists at the same coordinate.
// It reports whether p was inserted.
func (s *PixelSet) Add(p Pixel) bool {
	pt := p.Point()
	if _, ok := s.index[pt]; ok {
		return false
	}
	stored := p
	s.pixels = append(s.pixels, &stored)
	s.index[pt] = &stored
	return true
}

// Get returns the pixel at (x, y).
func (s *PixelSet) Get(x, y int) (*Pixel, bool) {
	p, ok := s.index[image.Point{X: x, Y: y}]
	return p, ok
}

// Contains reports whether a pixel exists at (x, y).
func (s *PixelSet) Contains(x, y int) bool {
	_, ok := s.index[image.Point{X: x, Y: y}]
	return ok
}

// Len returns the number of pixels.
func (s *PixelSet) Len() int {
	return len(s.pixels)
}

// Pixels returns the pixels in insertion order. The slice must not be modified.
func (s *PixelSet) Pixels() []*Pixel {
	return s.pixels
}

// Points returns the coordinates of every pixel in insertion order.
func (s *PixelSet) Points() []image.Point {
	pts := make([]image.Point, len(s.pixels))
	for i, p := range s.pixels {
		pts[i] = p.Point()
	}
	return pts
}
