package effects

import (
	"time"

	"github.com/nightdriverserver/nightdriverserver/internal/graphics"
)

// Rainbow scrolls a full-saturation hue gradient across the buffer,
// advancing the start hue over wall-clock time.
type Rainbow struct {
	name string
	// DegreesPerPixel sets the gradient's tightness.
	DegreesPerPixel float64
	// DegreesPerSecond sets the scroll speed.
	DegreesPerSecond float64
}

// NewRainbow builds a Rainbow effect named name.
func NewRainbow(name string, degreesPerPixel, degreesPerSecond float64) *Rainbow {
	return &Rainbow{name: name, DegreesPerPixel: degreesPerPixel, DegreesPerSecond: degreesPerSecond}
}

func (r *Rainbow) Name() string { return r.name }

func (r *Rainbow) Render(surface *graphics.Surface, now time.Time) {
	elapsed := float64(now.UnixMilli()) / 1000
	startHue := elapsed * r.DegreesPerSecond
	surface.FillRainbow(startHue, r.DegreesPerPixel)
}
