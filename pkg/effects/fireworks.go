package effects

import (
	"math/rand"
	"sync"
	"time"

	"github.com/nightdriverserver/nightdriverserver/internal/graphics"
	"github.com/nightdriverserver/nightdriverserver/internal/pixel"
)

// spark is one particle of an in-flight burst, tracked in float position
// so fractional per-tick motion accumulates correctly between frames.
type spark struct {
	pos   float64
	vel   float64
	color pixel.Pixel
	life  float64 // 1 at birth, fades to 0
}

// Fireworks launches randomized bursts of particles that fly apart and
// fade, rendered with BlendPixel so overlapping sparks add brightness
// instead of overwriting one another.
type Fireworks struct {
	name           string
	LaunchChance   float64 // probability of a new burst on a given tick
	SparksPerBurst int
	Decay          float64 // life lost per tick

	mu     sync.Mutex
	sparks []spark
	rng    *rand.Rand
}

// NewFireworks builds a Fireworks effect named name.
func NewFireworks(name string, launchChance float64, sparksPerBurst int, decay float64) *Fireworks {
	return &Fireworks{
		name:           name,
		LaunchChance:   launchChance,
		SparksPerBurst: sparksPerBurst,
		Decay:          decay,
		rng:            rand.New(rand.NewSource(1)),
	}
}

func (f *Fireworks) Name() string { return f.name }

func (f *Fireworks) Render(surface *graphics.Surface, now time.Time) {
	n := surface.Len()
	if n == 0 {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	surface.FillSolid(pixel.Black)

	if f.rng.Float64() < f.LaunchChance {
		f.launchBurst(n)
	}

	alive := f.sparks[:0]
	for _, s := range f.sparks {
		s.pos += s.vel
		s.life -= f.Decay
		if s.life <= 0 || s.pos < 0 || s.pos >= float64(n) {
			continue
		}
		surface.BlendPixel(int(s.pos), s.color.Faded(1-s.life))
		alive = append(alive, s)
	}
	f.sparks = alive
}

func (f *Fireworks) launchBurst(n int) {
	origin := f.rng.Float64() * float64(n)
	hue := f.rng.Float64() * 360
	color := pixel.FromHSV(hue, 1, 1)
	for i := 0; i < f.SparksPerBurst; i++ {
		vel := (f.rng.Float64() - 0.5) * float64(n) / 20
		f.sparks = append(f.sparks, spark{pos: origin, vel: vel, color: color, life: 1})
	}
}
