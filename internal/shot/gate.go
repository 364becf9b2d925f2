package shot

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Arena describes where the projected arena sits in camera coordinates and
// how camera pixels map onto display pixels.
type Arena struct {
	X      float64 `yaml:"x" json:"x"`
	Y      float64 `yaml:"y" json:"y"`
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
	// ScaleX and ScaleY are the display/camera resolution ratios. Zero means 1.
	ScaleX float64 `yaml:"scale_x" json:"scale_x"`
	ScaleY float64 `yaml:"scale_y" json:"scale_y"`
	// ProjectorSpace is set when the detector already reports coordinates
	// relative to the projection, so points outside the bounds are rejected.
	ProjectorSpace bool `yaml:"projector_space" json:"projector_space"`
}

// Contains reports whether (x, y) lies inside the arena bounds.
func (a Arena) Contains(x, y float64) bool {
	return x >= a.X && y >= a.Y && x < a.X+a.Width && y < a.Y+a.Height
}

// Translate maps a camera point into arena display coordinates. ok is false
// when the point must be rejected.
func (a Arena) Translate(x, y float64) (tx, ty float64, ok bool) {
	if a.ProjectorSpace && !a.Contains(x, y) {
		return 0, 0, false
	}

	sx, sy := a.ScaleX, a.ScaleY
	if sx == 0 {
		sx = 1
	}
	if sy == 0 {
		sy = 1
	}
	return (x - a.X) * sx, (y - a.Y) * sy, true
}

// GateConfig configures a Gate.
type GateConfig struct {
	// IgnoreColor drops every shot of that color. ColorNone ignores nothing.
	IgnoreColor Color
	// Arena enables coordinate translation for shots submitted with scaling.
	Arena *Arena
	// Dedup is consulted before a shot is accepted. Nil disables deduplication.
	Dedup Deduplicator
	// Now supplies shot timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Gate is the final acceptance step between detection and shot consumers.
type Gate struct {
	ignore    Color
	arena     *Arena
	dedup     Deduplicator
	now       func() time.Time
	consumers []Consumer
	mu        sync.RWMutex
}

// NewGate creates a Gate from cfg.
func NewGate(cfg GateConfig) *Gate {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Gate{
		ignore: cfg.IgnoreColor,
		arena:  cfg.Arena,
		dedup:  cfg.Dedup,
		now:    now,
	}
}

// Subscribe registers a consumer for accepted shots.
func (g *Gate) Subscribe(c Consumer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.consumers = append(g.consumers, c)
}

// SetIgnoreColor changes the ignored laser color.
func (g *Gate) SetIgnoreColor(c Color) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ignore = c
}

// IgnoreColor returns the ignored laser color.
func (g *Gate) IgnoreColor() Color {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.ignore
}

// SetArena replaces the arena mapping. Nil disables translation.
func (g *Gate) SetArena(a *Arena) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.arena = a
}

// Submit runs a detected shot through the gate and publishes it when it is
// accepted. A rejected shot has no side effects.
func (g *Gate) Submit(c Color, x, y float64, frameIndex int64, scaleForProjector bool) bool {
	g.mu.RLock()
	ignore, arena, dedup, now := g.ignore, g.arena, g.dedup, g.now
	consumers := make([]Consumer, len(g.consumers))
	copy(consumers, g.consumers)
	g.mu.RUnlock()

	if ignore != ColorNone && c == ignore {
		log.Debug().Str("color", c.String()).Msg("Shot rejected: ignored color")
		return false
	}

	if scaleForProjector && arena != nil {
		tx, ty, ok := arena.Translate(x, y)
		if !ok {
			log.Debug().Float64("x", x).Float64("y", y).Msg("Shot rejected: outside arena bounds")
			return false
		}
		x, y = tx, ty
	}

	ts := now()
	if dedup != nil && dedup.IsDuplicate(c, x, y, ts) {
		log.Debug().Float64("x", x).Float64("y", y).Msg("Shot rejected: duplicate")
		return false
	}

	s := New(c, x, y, ts, frameIndex)

	log.Info().
		Str("color", c.String()).
		Float64("x", x).
		Float64("y", y).
		Int64("frame", frameIndex).
		Msg("Shot accepted")

	for _, consumer := range consumers {
		consumer.OnShot(s)
	}
	return true
}
