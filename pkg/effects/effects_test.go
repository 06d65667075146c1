package effects

import (
	"testing"
	"time"

	"github.com/nightdriverserver/nightdriverserver/internal/graphics"
	"github.com/nightdriverserver/nightdriverserver/internal/pixel"
)

func newTestSurface(n int) (*graphics.Surface, *pixel.Buffer) {
	b := pixel.NewBuffer(n)
	return graphics.New(b), b
}

func TestSolidColorFillsEveryPixel(t *testing.T) {
	s, b := newTestSurface(5)
	e := NewSolidColor("red", pixel.Pixel{R: 255})
	e.Render(s, time.Now())
	for i := 0; i < b.Len(); i++ {
		if b.At(i) != (pixel.Pixel{R: 255}) {
			t.Fatalf("pixel %d = %+v, want solid red", i, b.At(i))
		}
	}
	if e.Name() != "red" {
		t.Fatalf("Name() = %q, want %q", e.Name(), "red")
	}
}

func TestRainbowProducesNonUniformHues(t *testing.T) {
	s, b := newTestSurface(12)
	e := NewRainbow("rainbow", 30, 0)
	e.Render(s, time.Unix(0, 0))
	if b.At(0) == b.At(6) {
		t.Fatalf("a 30-degree-per-pixel gradient must differ by pixel 6")
	}
}

func TestPaletteScrollerWrapsAndAdvances(t *testing.T) {
	palette := []pixel.Pixel{{R: 1}, {R: 2}, {R: 3}}
	s, b := newTestSurface(6)
	e := NewPaletteScroller("scroll", palette, 1)

	e.Render(s, time.Unix(0, 0))
	for i := 0; i < b.Len(); i++ {
		if got, want := b.At(i), palette[i%len(palette)]; got != want {
			t.Fatalf("pixel %d at t=0 = %+v, want %+v", i, got, want)
		}
	}

	e.Render(s, time.Unix(1, 0))
	if b.At(0) != palette[1] {
		t.Fatalf("pixel 0 at t=1s = %+v, want palette advanced by one step", b.At(0))
	}
}

func TestPaletteScrollerEmptyPaletteIsNoop(t *testing.T) {
	s, b := newTestSurface(3)
	e := NewPaletteScroller("empty", nil, 1)
	e.Render(s, time.Now())
	for i := 0; i < b.Len(); i++ {
		if b.At(i) != pixel.Black {
			t.Fatalf("empty palette must leave the buffer untouched")
		}
	}
}

func TestCometHeadStaysWithinBufferBounds(t *testing.T) {
	s, _ := newTestSurface(20)
	e := NewComet("comet", pixel.Pixel{R: 255}, 3, 10, 0.1)
	for i := 0; i < 50; i++ {
		e.Render(s, time.Unix(0, 0).Add(time.Duration(i)*100*time.Millisecond))
	}
	// no panic across many ticks of wraparound means the bounds math holds
}

func TestFireworksNeverPanicsAcrossManyTicks(t *testing.T) {
	s, _ := newTestSurface(30)
	e := NewFireworks("fireworks", 0.5, 8, 0.05)
	for i := 0; i < 200; i++ {
		e.Render(s, time.Unix(0, 0).Add(time.Duration(i)*16*time.Millisecond))
	}
}
