// Package site implements the per-location render loop: select an active
// effect, render it onto the owned pixel buffer, then hand a snapshot to
// every strip covering a slice of that buffer.
package site

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/nightdriverserver/nightdriverserver/internal/codec"
	"github.com/nightdriverserver/nightdriverserver/internal/effect"
	"github.com/nightdriverserver/nightdriverserver/internal/graphics"
	"github.com/nightdriverserver/nightdriverserver/internal/pixel"
	"github.com/nightdriverserver/nightdriverserver/internal/strip"
)

// spareWindow is the rolling window over which the minimum per-tick spare
// time is retained for observability.
const spareWindow = 1 * time.Second

// Site owns one pixel buffer, a fixed schedule list, a fixed strip list
// and a dedicated render goroutine. Constructed once at boot; never
// reconfigured.
type Site struct {
	Name       string
	TargetFPS  int
	Location   *time.Location
	StartTime  time.Time

	buf       *pixel.Buffer
	surface   *graphics.Surface
	schedules []effect.ScheduledEffect
	strips    []strip.Strip

	log *zap.SugaredLogger

	currentEffect atomic.Value // string
	spareMs       atomic.Int64
	spareWinStart atomic.Int64 // unix nanos, start of the current spare-ms window
	spareWinMin   atomic.Int64

	fpsActual   atomic.Int64 // milli-fps (fps * 1000), last completed window
	fpsWinStart atomic.Int64 // unix nanos, start of the current fps window
	fpsWinCount atomic.Int64
}

// New constructs a Site with pixelCount pixels, rendering schedules in
// declared order and dispatching to strips, at targetFPS, evaluating
// schedule activation in loc (falls back to UTC if loc is nil).
func New(name string, pixelCount, targetFPS int, loc *time.Location, schedules []effect.ScheduledEffect, strips []strip.Strip, log *zap.SugaredLogger) *Site {
	if loc == nil {
		loc = time.UTC
	}
	buf := pixel.NewBuffer(pixelCount)
	s := &Site{
		Name:      name,
		TargetFPS: targetFPS,
		Location:  loc,
		buf:       buf,
		surface:   graphics.New(buf),
		schedules: schedules,
		strips:    strips,
		log:       log.With("site", name),
	}
	s.currentEffect.Store("")
	return s
}

// PixelCount returns the fixed buffer length.
func (s *Site) PixelCount() int { return s.buf.Len() }

// CurrentEffectName is the type name of the effect rendered on the most
// recent tick, or "" before the first tick or when no schedule is active.
func (s *Site) CurrentEffectName() string {
	return s.currentEffect.Load().(string)
}

// SpareMs is the minimum per-tick slack (target period minus render+dispatch
// time) observed in the last second, in milliseconds. Negative means the
// site is falling behind its target frame rate.
func (s *Site) SpareMs() int64 { return s.spareMs.Load() }

// FPSActual is the measured render-loop rate over the most recently
// completed one-second window, as opposed to TargetFPS which is configured.
func (s *Site) FPSActual() float64 { return float64(s.fpsActual.Load()) / 1000 }

// Strips exposes the strip list for status reporting.
func (s *Site) Strips() []strip.Strip { return s.strips }

// Start spawns the render goroutine and every strip's send worker. Returns
// once all goroutines are launched; they run until ctx is cancelled.
func (s *Site) Start(ctx context.Context) {
	s.StartTime = time.Now()
	s.spareWinStart.Store(time.Now().UnixNano())
	s.fpsWinStart.Store(time.Now().UnixNano())

	var wg sync.WaitGroup
	for _, st := range s.strips {
		st := st
		if netStrip, ok := st.(interface{ Start(context.Context) }); ok {
			wg.Add(1)
			go func() {
				defer wg.Done()
				netStrip.Start(ctx)
			}()
		}
	}

	go s.renderLoop(ctx)
}

func (s *Site) renderLoop(ctx context.Context) {
	period := time.Second / time.Duration(s.TargetFPS)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		t0 := time.Now()
		s.tick()
		elapsed := time.Since(t0)

		s.recordSpare(period - elapsed)
		s.recordTick()
		if elapsed > period {
			s.log.Warnw("render tick overran target period", "elapsed", elapsed, "period", period)
		}

		sleep := period - elapsed
		if sleep < 0 {
			sleep = 0
		}
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return
		}
	}
}

func (s *Site) tick() {
	now := time.Now()
	localNow := now.In(s.Location)

	if sel, ok := effect.Select(s.schedules, localNow, s.StartTime); ok {
		sel.Effect.Render(s.surface, now)
		s.currentEffect.Store(sel.Effect.Name())
	} else {
		// Leave the buffer untouched from the previous frame and still
		// dispatch it (see the render-loop activation contract).
		s.currentEffect.Store("")
	}

	presentAt := codec.PresentTime(now)
	for _, st := range s.strips {
		if !st.ReadyForData() {
			continue
		}
		desc, ok := s.descriptorFor(st)
		if !ok {
			continue
		}
		pixels := desc.Extract(s.buf)
		st.Enqueue(pixels, presentAt)
	}
}

// descriptors maps a Strip back to the Descriptor used to carve its pixel
// slice out of the Site buffer; stripDescribable is implemented by every
// concrete Strip type.
type stripDescribable interface {
	Descriptor() strip.Descriptor
}

func (s *Site) descriptorFor(st strip.Strip) (strip.Descriptor, bool) {
	d, ok := st.(stripDescribable)
	if !ok {
		return strip.Descriptor{}, false
	}
	return d.Descriptor(), true
}

func (s *Site) recordSpare(spare time.Duration) {
	spareMs := spare.Milliseconds()

	now := time.Now().UnixNano()
	winStart := s.spareWinStart.Load()
	if time.Duration(now-winStart) >= spareWindow {
		s.spareWinStart.Store(now)
		s.spareWinMin.Store(spareMs)
		s.spareMs.Store(spareMs)
		return
	}

	for {
		cur := s.spareWinMin.Load()
		if spareMs >= cur {
			break
		}
		if s.spareWinMin.CompareAndSwap(cur, spareMs) {
			break
		}
	}
	s.spareMs.Store(s.spareWinMin.Load())
}

// recordTick counts one completed render tick toward the current
// one-second fps window, publishing the measured rate once the window
// closes.
func (s *Site) recordTick() {
	count := s.fpsWinCount.Add(1)

	now := time.Now().UnixNano()
	winStart := s.fpsWinStart.Load()
	elapsed := time.Duration(now - winStart)
	if elapsed < spareWindow {
		return
	}

	fps := float64(count) / elapsed.Seconds()
	s.fpsActual.Store(int64(fps * 1000))
	s.fpsWinStart.Store(now)
	s.fpsWinCount.Store(0)
}
