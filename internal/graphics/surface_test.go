package graphics

import (
	"testing"

	"github.com/nightdriverserver/nightdriverserver/internal/pixel"
)

func newTestSurface(n int) (*Surface, *pixel.Buffer) {
	b := pixel.NewBuffer(n)
	return New(b), b
}

func TestFillSolid(t *testing.T) {
	s, b := newTestSurface(5)
	red := pixel.Pixel{R: 255}
	s.FillSolid(red)
	for i := 0; i < b.Len(); i++ {
		if b.At(i) != red {
			t.Fatalf("pixel %d = %+v, want %+v", i, b.At(i), red)
		}
	}
}

func TestDrawPixelClipsOutOfRange(t *testing.T) {
	s, _ := newTestSurface(3)
	s.DrawPixel(-1, pixel.Pixel{R: 1})
	s.DrawPixel(100, pixel.Pixel{R: 1})
	// no panic means success; nothing to assert on in-range state
}

func TestBlendPixelSaturates(t *testing.T) {
	s, b := newTestSurface(1)
	b.Set(0, pixel.Pixel{R: 200})
	s.BlendPixel(0, pixel.Pixel{R: 100})
	if got := b.At(0).R; got != 255 {
		t.Fatalf("BlendPixel saturating add = %d, want 255", got)
	}
}

func TestDrawPixelsAlignedRunIsFullyUnfaded(t *testing.T) {
	s, b := newTestSurface(6)
	s.DrawPixels(2, 3, pixel.Pixel{R: 255})
	for i := 2; i <= 4; i++ {
		if b.At(i).R != 255 {
			t.Fatalf("pixel %d = %d, want fully lit 255", i, b.At(i).R)
		}
	}
	if b.At(1) != pixel.Black || b.At(5) != pixel.Black {
		t.Fatalf("pixels outside the run must be untouched")
	}
}

func TestDrawPixelsNegativeStartHalfOfIndexZero(t *testing.T) {
	s, b := newTestSurface(4)
	s.DrawPixels(-0.5, 1, pixel.Pixel{R: 200})
	// index -1 silently clipped; index 0 gets the fractional remainder only
	if b.At(0).R == 0 || b.At(0).R == 200 {
		t.Fatalf("pixel 0 = %d, want a partial (faded) value", b.At(0).R)
	}
	for i := 1; i < b.Len(); i++ {
		if b.At(i) != pixel.Black {
			t.Fatalf("pixel %d = %+v, want untouched", i, b.At(i))
		}
	}
}

func TestDrawPixelsEndAtBufferEdgeHalfOfLastIndex(t *testing.T) {
	n := 4
	s, b := newTestSurface(n)
	s.DrawPixels(float64(n)-0.5, 1, pixel.Pixel{R: 200})
	if b.At(n-1).R == 0 || b.At(n-1).R == 200 {
		t.Fatalf("pixel %d = %d, want a partial (faded) value", n-1, b.At(n-1).R)
	}
	for i := 0; i < n-1; i++ {
		if b.At(i) != pixel.Black {
			t.Fatalf("pixel %d = %+v, want untouched", i, b.At(i))
		}
	}
}

func TestDrawPixelsZeroCountIsNoop(t *testing.T) {
	s, b := newTestSurface(4)
	s.DrawPixels(1, 0, pixel.Pixel{R: 255})
	for i := 0; i < b.Len(); i++ {
		if b.At(i) != pixel.Black {
			t.Fatalf("count=0 must be a no-op, pixel %d = %+v", i, b.At(i))
		}
	}
}

func TestFadeToBlackByClampsAndScales(t *testing.T) {
	s, b := newTestSurface(1)
	b.Set(0, pixel.Pixel{R: 200})
	s.FadeToBlackBy(0, 2) // clamps to 1
	if b.At(0) != pixel.Black {
		t.Fatalf("FadeToBlackBy(f>1) = %+v, want Black", b.At(0))
	}
}

func TestFillRainbowZeroDeltaIsSolid(t *testing.T) {
	s, b := newTestSurface(8)
	s.FillRainbow(90, 0)
	want := pixel.FromHSV(90, 1, 1)
	for i := 0; i < b.Len(); i++ {
		if b.At(i) != want {
			t.Fatalf("pixel %d = %+v, want solid %+v", i, b.At(i), want)
		}
	}
}

func TestBlurSmoothsAndClampsEdges(t *testing.T) {
	s, b := newTestSurface(5)
	b.Set(2, pixel.Pixel{R: 255})
	s.Blur(1)
	if b.At(2).R == 255 || b.At(2).R == 0 {
		t.Fatalf("center pixel after blur = %d, want smoothed value", b.At(2).R)
	}
	// radius 1 box blur of a single lit pixel at index 2 doesn't reach
	// indices 0 and 4 at all.
	if b.At(0).R != 0 || b.At(4).R != 0 {
		t.Fatalf("edges after blur = %d, %d, want 0 for a distant impulse", b.At(0).R, b.At(4).R)
	}

	// With clamped edges, pixel 0's out-of-range sample repeats index 0,
	// so an impulse at index 0 is counted twice: (255+255+0)/3 = 170.
	e, eb := newTestSurface(5)
	eb.Set(0, pixel.Pixel{R: 255})
	e.Blur(1)
	if got := eb.At(0).R; got != 170 {
		t.Fatalf("edge pixel after blur = %d, want 170 (clamped edge sample)", got)
	}
}
