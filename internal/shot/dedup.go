package shot

import (
	"math"
	"sync"
	"time"
)

// Default deduplication settings.
const (
	DefaultDedupWindow = 250 * time.Millisecond
	DefaultDedupRadius = 10.0
)

// Deduplicator decides whether a candidate shot repeats one that was already
// accepted. Implementations must be safe for concurrent use.
type Deduplicator interface {
	// IsDuplicate reports whether a shot of color c at (x, y) seen at ts
	// duplicates an accepted shot. When it returns false the implementation
	// records the shot as accepted.
	IsDuplicate(c Color, x, y float64, ts time.Time) bool
	Reset()
}

// WindowDeduplicator rejects shots that land within Radius of the last
// accepted shot of the same color inside Window.
type WindowDeduplicator struct {
	window time.Duration
	radius float64
	last   map[Color]sighting
	mu     sync.Mutex
}

type sighting struct {
	x, y float64
	ts   time.Time
}

// NewWindowDeduplicator creates a WindowDeduplicator. Non-positive arguments
// fall back to the package defaults.
func NewWindowDeduplicator(window time.Duration, radius float64) *WindowDeduplicator {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	if radius <= 0 {
		radius = DefaultDedupRadius
	}
	return &WindowDeduplicator{
		window: window,
		radius: radius,
		last:   make(map[Color]sighting),
	}
}

// IsDuplicate implements Deduplicator.
func (d *WindowDeduplicator) IsDuplicate(c Color, x, y float64, ts time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.last[c]; ok {
		elapsed := ts.Sub(prev.ts)
		if elapsed >= 0 && elapsed < d.window && math.Hypot(x-prev.x, y-prev.y) <= d.radius {
			return true
		}
	}

	d.last[c] = sighting{x: x, y: y, ts: ts}
	return false
}

// Reset forgets all accepted shots.
func (d *WindowDeduplicator) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last = make(map[Color]sighting)
}
