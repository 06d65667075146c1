// Package graphics implements the drawing primitives effects use to paint
// a Site's pixel buffer: solid fills, anti-aliased runs, fades, rainbows
// and a box blur. All operations are synchronous and thread-confined to
// the owning Site's render thread.
package graphics

import (
	"math"

	"github.com/nightdriverserver/nightdriverserver/internal/pixel"
)

// Surface is the drawing API over a Site's pixel buffer.
type Surface struct {
	buf *pixel.Buffer
}

// New wraps buf in a Surface. buf's length is fixed for the Surface's life.
func New(buf *pixel.Buffer) *Surface {
	return &Surface{buf: buf}
}

// Len returns the number of addressable pixels.
func (s *Surface) Len() int { return s.buf.Len() }

// FillSolid sets every pixel to color.
func (s *Surface) FillSolid(color pixel.Pixel) {
	for i := 0; i < s.buf.Len(); i++ {
		s.buf.Set(i, color)
	}
}

// DrawPixel overwrites the pixel at i. Out-of-range i is silently clipped.
func (s *Surface) DrawPixel(i int, color pixel.Pixel) {
	s.buf.Set(i, color)
}

// BlendPixel saturating-adds color into the pixel at i. Out-of-range i is
// silently clipped.
func (s *Surface) BlendPixel(i int, color pixel.Pixel) {
	if i < 0 || i >= s.buf.Len() {
		return
	}
	s.buf.Set(i, s.buf.At(i).Add(color))
}

// FadeToBlackBy multiplies the pixel at i by (1 - clamp(f, 0, 1)).
func (s *Surface) FadeToBlackBy(i int, f float64) {
	if i < 0 || i >= s.buf.Len() {
		return
	}
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	s.buf.Set(i, s.buf.At(i).Faded(f))
}

// DrawPixels draws an anti-aliased run of count pixels, starting at the
// real-valued position start: each integer pixel index receives color
// blended (via BlendPixel) by its coverage fraction of [start, start+count) —
// 1 for a fully covered interior pixel, a fade for a partially covered edge
// pixel. Any index outside [0,N) is clipped; the operation remains valid.
// count<=0 is a no-op.
func (s *Surface) DrawPixels(start, count float64, color pixel.Pixel) {
	if count <= 0 {
		return
	}

	end := start + count
	first := int(math.Floor(start))
	last := int(math.Ceil(end)) - 1

	const epsilon = 1e-9
	for i := first; i <= last; i++ {
		lo := math.Max(float64(i), start)
		hi := math.Min(float64(i+1), end)
		coverage := hi - lo
		if coverage <= epsilon {
			continue
		}
		if coverage >= 1-epsilon {
			s.BlendPixel(i, color)
		} else {
			s.blendFaded(i, color, 1-coverage)
		}
	}
}

// blendFaded saturating-blends color faded by f into pixel i.
func (s *Surface) blendFaded(i int, color pixel.Pixel, f float64) {
	if i < 0 || i >= s.buf.Len() {
		return
	}
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	s.BlendPixel(i, color.Faded(f))
}

// FillRainbow sets pixel i to HSV((startHueDeg + i*deltaHueDeg) mod 360, 1, 1).
func (s *Surface) FillRainbow(startHueDeg, deltaHueDeg float64) {
	for i := 0; i < s.buf.Len(); i++ {
		hue := startHueDeg + float64(i)*deltaHueDeg
		s.buf.Set(i, pixel.FromHSV(hue, 1, 1))
	}
}

// Blur applies a 1-D box blur of the given integer radius in place, with
// clamped edges (out-of-range samples repeat the nearest edge pixel).
func (s *Surface) Blur(radius int) {
	n := s.buf.Len()
	if radius <= 0 || n == 0 {
		return
	}

	src := make([]pixel.Pixel, n)
	for i := 0; i < n; i++ {
		src[i] = s.buf.At(i)
	}

	for i := 0; i < n; i++ {
		var rSum, gSum, bSum, count int
		for k := -radius; k <= radius; k++ {
			j := i + k
			if j < 0 {
				j = 0
			}
			if j >= n {
				j = n - 1
			}
			p := src[j]
			rSum += int(p.R)
			gSum += int(p.G)
			bSum += int(p.B)
			count++
		}
		s.buf.Set(i, pixel.Pixel{
			R: uint8(rSum / count),
			G: uint8(gSum / count),
			B: uint8(bSum / count),
		})
	}
}
