// Package shot defines detected shots and the gate that decides which of them
// are published to consumers.
package shot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Color is the classified laser color of a shot.
type Color int

const (
	// ColorNone means no color; used for "ignore nothing" settings.
	ColorNone Color = iota
	// ColorRed is a red laser.
	ColorRed
	// ColorGreen is a green laser.
	ColorGreen
)

// ErrUnknownColor is returned by ParseColor for unrecognised names.
var ErrUnknownColor = errors.New("unknown laser color")

// String returns the lower case color name.
func (c Color) String() string {
	switch c {
	case ColorRed:
		return "red"
	case ColorGreen:
		return "green"
	default:
		return "none"
	}
}

// ParseColor parses "red", "green", "none" or "" (case insensitive).
func ParseColor(s string) (Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ColorNone, nil
	case "red":
		return ColorRed, nil
	case "green":
		return ColorGreen, nil
	}
	return ColorNone, fmt.Errorf("%w: %q", ErrUnknownColor, s)
}

// MarshalText implements encoding.TextMarshaler.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Color) UnmarshalText(b []byte) error {
	parsed, err := ParseColor(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Shot is an accepted laser hit. Shots are immutable once created.
type Shot struct {
	ID         string    `json:"id"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Color      Color     `json:"color"`
	Timestamp  time.Time `json:"timestamp"`
	FrameIndex int64     `json:"frame_index"`
}

// New creates a shot with a fresh ID.
func New(c Color, x, y float64, ts time.Time, frameIndex int64) Shot {
	return Shot{
		ID:         uuid.NewString(),
		X:          x,
		Y:          y,
		Color:      c,
		Timestamp:  ts,
		FrameIndex: frameIndex,
	}
}

// Consumer receives accepted shots.
type Consumer interface {
	OnShot(s Shot)
}

// ConsumerFunc adapts a function to the Consumer interface.
type ConsumerFunc func(s Shot)

// OnShot calls f(s).
func (f ConsumerFunc) OnShot(s Shot) { f(s) }
