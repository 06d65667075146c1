package effects

import (
	"time"

	"github.com/nightdriverserver/nightdriverserver/internal/graphics"
	"github.com/nightdriverserver/nightdriverserver/internal/pixel"
)

// Comet draws a bright head of HeadWidth pixels sweeping the buffer at
// PixelsPerSecond, leaving a fading tail behind it each tick.
type Comet struct {
	name            string
	Color           pixel.Pixel
	HeadWidth       float64
	PixelsPerSecond float64
	FadeAmount      float64
}

// NewComet builds a Comet effect named name.
func NewComet(name string, color pixel.Pixel, headWidth, pixelsPerSecond, fadeAmount float64) *Comet {
	return &Comet{
		name:            name,
		Color:           color,
		HeadWidth:       headWidth,
		PixelsPerSecond: pixelsPerSecond,
		FadeAmount:      fadeAmount,
	}
}

func (c *Comet) Name() string { return c.name }

func (c *Comet) Render(surface *graphics.Surface, now time.Time) {
	n := surface.Len()
	if n == 0 {
		return
	}

	for i := 0; i < n; i++ {
		surface.FadeToBlackBy(i, c.FadeAmount)
	}

	elapsed := float64(now.UnixMilli()) / 1000
	span := float64(n) + c.HeadWidth
	pos := elapsed * c.PixelsPerSecond
	head := mod(pos, span) - c.HeadWidth

	surface.DrawPixels(head, c.HeadWidth, c.Color)
}

func mod(a, b float64) float64 {
	m := a - b*float64(int(a/b))
	if m < 0 {
		m += b
	}
	return m
}
