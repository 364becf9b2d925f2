package detector

import (
	"errors"
	"fmt"
)

// Uninitialized marks a grid entry that has not been observed yet.
const Uninitialized = -1

// ErrDimensionMismatch is returned when a grid is accessed with coordinates
// outside its dimensions.
var ErrDimensionMismatch = errors.New("coordinates outside grid dimensions")

// Grid is a per-pixel moving-average store backed by a flat row-major slice.
//
// Concurrent access is safe as long as goroutines touch disjoint cells and no
// goroutine calls Resize or Reset at the same time.
type Grid struct {
	width  int
	height int
	data   []int32
}

// NewGrid creates a grid with every cell Uninitialized.
func NewGrid(width, height int) *Grid {
	g := &Grid{}
	g.Resize(width, height)
	return g
}

// Resize changes the grid dimensions. Cells are reset only when the
// dimensions actually change; it reports whether a reset happened.
func (g *Grid) Resize(width, height int) bool {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	if g.data != nil && width == g.width && height == g.height {
		return false
	}

	g.width = width
	g.height = height
	g.data = make([]int32, width*height)
	g.Reset()
	return true
}

// Reset marks every cell Uninitialized.
func (g *Grid) Reset() {
	for i := range g.data {
		g.data[i] = Uninitialized
	}
}

// Width returns the grid width.
func (g *Grid) Width() int { return g.width }

// Height returns the grid height.
func (g *Grid) Height() int { return g.height }

// Contains reports whether (x, y) is inside the grid.
func (g *Grid) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.width && y < g.height
}

// At returns the value at (x, y), or Uninitialized when out of range.
func (g *Grid) At(x, y int) int32 {
	if !g.Contains(x, y) {
		return Uninitialized
	}
	return g.data[y*g.width+x]
}

// Set stores v at (x, y).
func (g *Grid) Set(x, y int, v int32) error {
	if !g.Contains(x, y) {
		return fmt.Errorf("%w: (%d,%d) in %dx%d", ErrDimensionMismatch, x, y, g.width, g.height)
	}
	g.data[y*g.width+x] = v
	return nil
}

// index returns the flat index for an in-range coordinate.
func (g *Grid) index(x, y int) int {
	return y*g.width + x
}
