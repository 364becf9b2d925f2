// Package frame provides the HSV frame abstraction consumed by the shot detectors.
package frame

import (
	"errors"
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// Channel limits for 8-bit HSV frames (OpenCV scale).
const (
	MaxHue        = 179
	MaxSaturation = 255
	MaxValue      = 255
	Channels      = 3
)

// ErrInvalidSize is returned when a frame is created with non-positive dimensions.
var ErrInvalidSize = errors.New("frame dimensions must be positive")

// HSV is a single pixel in the HSV color space.
type HSV struct {
	H uint8 // Hue: 0-179
	S uint8 // Saturation: 0-255
	V uint8 // Value: 0-255
}

// Frame is a read-only grid of HSV pixels. Implementations must be safe
// for concurrent reads.
type Frame interface {
	Cols() int
	Rows() int
	Channels() int
	// HSV returns the pixel at column x, row y. Callers must stay in bounds.
	HSV(x, y int) HSV
}

// InBounds reports whether (x, y) is a valid coordinate in f.
func InBounds(f Frame, x, y int) bool {
	return x >= 0 && y >= 0 && x < f.Cols() && y < f.Rows()
}

// Buffer is an in-memory Frame backed by a flat, row-major HSV byte slice.
type Buffer struct {
	cols int
	rows int
	pix  []uint8
}

// NewBuffer creates a zeroed (black) frame of the given size.
func NewBuffer(cols, rows int) (*Buffer, error) {
	if cols <= 0 || rows <= 0 {
		return nil, ErrInvalidSize
	}
	return &Buffer{
		cols: cols,
		rows: rows,
		pix:  make([]uint8, cols*rows*Channels),
	}, nil
}

// NewBufferFromBytes wraps raw HSV bytes (3 channels, row-major). The slice
// is used directly, not copied.
func NewBufferFromBytes(cols, rows int, pix []uint8) (*Buffer, error) {
	if cols <= 0 || rows <= 0 {
		return nil, ErrInvalidSize
	}
	if len(pix) < cols*rows*Channels {
		return nil, errors.New("pixel data shorter than frame size")
	}
	return &Buffer{cols: cols, rows: rows, pix: pix[:cols*rows*Channels]}, nil
}

// Cols returns the frame width.
func (b *Buffer) Cols() int { return b.cols }

// Rows returns the frame height.
func (b *Buffer) Rows() int { return b.rows }

// Channels always returns 3.
func (b *Buffer) Channels() int { return Channels }

// HSV returns the pixel at (x, y).
func (b *Buffer) HSV(x, y int) HSV {
	i := (y*b.cols + x) * Channels
	return HSV{H: b.pix[i], S: b.pix[i+1], V: b.pix[i+2]}
}

// Set writes the pixel at (x, y). Out of range coordinates are ignored.
func (b *Buffer) Set(x, y int, p HSV) {
	if x < 0 || y < 0 || x >= b.cols || y >= b.rows {
		return
	}
	i := (y*b.cols + x) * Channels
	b.pix[i] = p.H
	b.pix[i+1] = p.S
	b.pix[i+2] = p.V
}

// Fill sets every pixel to p.
func (b *Buffer) Fill(p HSV) {
	for i := 0; i < len(b.pix); i += Channels {
		b.pix[i] = p.H
		b.pix[i+1] = p.S
		b.pix[i+2] = p.V
	}
}

// Clone returns a deep copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	pix := make([]uint8, len(b.pix))
	copy(pix, b.pix)
	return &Buffer{cols: b.cols, rows: b.rows, pix: pix}
}

// Bytes exposes the underlying HSV bytes.
func (b *Buffer) Bytes() []uint8 { return b.pix }

// FromColor converts an RGB color to 8-bit HSV using the OpenCV scale
// (hue halved to fit 0-179).
func FromColor(c color.Color) HSV {
	cf, _ := colorful.MakeColor(c)
	h, s, v := cf.Hsv()
	hue := int(h/2 + 0.5)
	if hue > MaxHue {
		hue = 0
	}
	return HSV{
		H: uint8(hue),
		S: uint8(s*MaxSaturation + 0.5),
		V: uint8(v*MaxValue + 0.5),
	}
}

// FromImage converts any image.Image into an HSV Buffer.
func FromImage(img image.Image) (*Buffer, error) {
	bounds := img.Bounds()
	buf, err := NewBuffer(bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, err
	}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			buf.Set(x-bounds.Min.X, y-bounds.Min.Y, FromColor(img.At(x, y)))
		}
	}
	return buf, nil
}
