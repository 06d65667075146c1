// Package pixel defines the 24-bit RGB pixel type and the fixed-length
// pixel buffer owned exclusively by a Site's render thread.
package pixel

import "math"

// Pixel is a 24-bit RGB color, one channel per byte.
type Pixel struct {
	R, G, B uint8
}

// Black is the zero value; named for readability at call sites.
var Black = Pixel{}

func saturatingAdd(a, b uint8) uint8 {
	sum := int(a) + int(b)
	if sum > 255 {
		return 255
	}
	return uint8(sum)
}

// Add returns the saturating, per-channel sum of p and q.
func (p Pixel) Add(q Pixel) Pixel {
	return Pixel{
		R: saturatingAdd(p.R, q.R),
		G: saturatingAdd(p.G, q.G),
		B: saturatingAdd(p.B, q.B),
	}
}

// Faded returns p with every channel multiplied by (1-f), f clamped to [0,1].
func (p Pixel) Faded(f float64) Pixel {
	if f <= 0 {
		return p
	}
	if f >= 1 {
		return Black
	}
	scale := 1 - f
	return Pixel{
		R: uint8(float64(p.R) * scale),
		G: uint8(float64(p.G) * scale),
		B: uint8(float64(p.B) * scale),
	}
}

// FromHSV builds a Pixel from hue in degrees (reduced mod 360 here, the
// single point the system reduces hue), saturation and value in [0,1].
func FromHSV(hueDeg, sat, val float64) Pixel {
	h := math.Mod(hueDeg, 360)
	if h < 0 {
		h += 360
	}
	if sat <= 0 {
		v := uint8(clamp01(val) * 255)
		return Pixel{v, v, v}
	}

	hh := h / 60
	i := int(hh)
	f := hh - float64(i)
	v := clamp01(val)
	p := v * (1 - clamp01(sat))
	q := v * (1 - clamp01(sat)*f)
	t := v * (1 - clamp01(sat)*(1-f))

	var r, g, b float64
	switch i % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}

	return Pixel{
		R: uint8(r * 255),
		G: uint8(g * 255),
		B: uint8(b * 255),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Buffer is a flat, row-major array of Pixels of fixed length, owned
// exclusively by the Site that constructed it. Its length never changes
// after construction; concurrent mutation is never exposed.
type Buffer struct {
	pixels []Pixel
}

// NewBuffer allocates a Buffer of exactly n black pixels.
func NewBuffer(n int) *Buffer {
	if n < 0 {
		n = 0
	}
	return &Buffer{pixels: make([]Pixel, n)}
}

// Len returns the buffer's fixed length.
func (b *Buffer) Len() int { return len(b.pixels) }

// At returns the pixel at i, or Black if i is out of range.
func (b *Buffer) At(i int) Pixel {
	if i < 0 || i >= len(b.pixels) {
		return Black
	}
	return b.pixels[i]
}

// Set overwrites the pixel at i. Out-of-range indices are silently clipped.
func (b *Buffer) Set(i int, p Pixel) {
	if i < 0 || i >= len(b.pixels) {
		return
	}
	b.pixels[i] = p
}

// Slice returns an immutable snapshot of pixels [start, start+length), for
// handing to a strip's codec path. The render thread remains the sole
// writer of the underlying buffer; callers must not mutate the result.
func (b *Buffer) Slice(start, length int) []Pixel {
	if start < 0 {
		start = 0
	}
	end := start + length
	if end > len(b.pixels) {
		end = len(b.pixels)
	}
	if start >= end {
		return nil
	}
	out := make([]Pixel, end-start)
	copy(out, b.pixels[start:end])
	return out
}

// Reverse returns a new slice with pixel order reversed.
func Reverse(pixels []Pixel) []Pixel {
	out := make([]Pixel, len(pixels))
	for i, p := range pixels {
		out[len(pixels)-1-i] = p
	}
	return out
}
