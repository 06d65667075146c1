// Package effects provides the built-in rendering capabilities a Site's
// schedule selects among. Every type here implements effect.Effect.
package effects

import (
	"time"

	"github.com/nightdriverserver/nightdriverserver/internal/graphics"
	"github.com/nightdriverserver/nightdriverserver/internal/pixel"
)

// SolidColor fills the entire buffer with one fixed color every tick.
type SolidColor struct {
	name  string
	Color pixel.Pixel
}

// NewSolidColor names the effect (for status reporting) and fixes its color.
func NewSolidColor(name string, color pixel.Pixel) *SolidColor {
	return &SolidColor{name: name, Color: color}
}

func (s *SolidColor) Name() string { return s.name }

func (s *SolidColor) Render(surface *graphics.Surface, now time.Time) {
	surface.FillSolid(s.Color)
}
