package effects

import (
	"time"

	"github.com/nightdriverserver/nightdriverserver/internal/graphics"
	"github.com/nightdriverserver/nightdriverserver/internal/pixel"
)

// PaletteScroller walks a fixed, repeating palette across the buffer,
// advancing PixelsPerSecond palette steps per second of wall-clock time.
type PaletteScroller struct {
	name            string
	Palette         []pixel.Pixel
	PixelsPerSecond float64
}

// NewPaletteScroller builds a PaletteScroller over palette. An empty palette
// makes Render a no-op; a single-color palette degenerates to a SolidColor.
func NewPaletteScroller(name string, palette []pixel.Pixel, pixelsPerSecond float64) *PaletteScroller {
	return &PaletteScroller{name: name, Palette: palette, PixelsPerSecond: pixelsPerSecond}
}

func (p *PaletteScroller) Name() string { return p.name }

func (p *PaletteScroller) Render(surface *graphics.Surface, now time.Time) {
	n := len(p.Palette)
	if n == 0 {
		return
	}

	elapsed := float64(now.UnixMilli()) / 1000
	offset := int(elapsed*p.PixelsPerSecond) % n
	if offset < 0 {
		offset += n
	}

	for i := 0; i < surface.Len(); i++ {
		surface.DrawPixel(i, p.Palette[(i+offset)%n])
	}
}
