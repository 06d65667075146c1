package strip

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"

	"github.com/nightdriverserver/nightdriverserver/internal/pixel"
)

// apa102GlobalBrightness is the 5-bit global brightness field APA102 frames
// carry per LED; full brightness leaves all color scaling to the channel
// bytes themselves.
const apa102GlobalBrightness = 0xFF

// LocalStrip drives an APA102 strip wired directly to the host's SPI bus,
// bypassing the network/codec path entirely: pixels are framed per the
// APA102 protocol and clocked out synchronously from the render thread's
// dispatch call. There is no queue, no backoff and no Connecting state;
// the strip is either open (Connected) or not (Disconnected).
type LocalStrip struct {
	desc Descriptor
	log  *zap.SugaredLogger
	port spi.PortCloser
	conn spi.Conn

	mu    sync.Mutex
	state State

	drops      atomic.Uint64
	framesSent atomic.Uint64
}

// NewLocalStrip opens the named SPI port (e.g. "/dev/spidev0.0", or "" for
// the host's default bus) at maxHz and returns a LocalStrip ready to
// drive desc.Length APA102 pixels.
func NewLocalStrip(desc Descriptor, spiPort string, maxHz physic.Frequency, log *zap.SugaredLogger) (*LocalStrip, error) {
	port, err := spireg.Open(spiPort)
	if err != nil {
		return nil, fmt.Errorf("strip: open spi port %q: %w", spiPort, err)
	}
	conn, err := port.Connect(maxHz, spi.Mode3, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("strip: configure spi connection: %w", err)
	}
	return &LocalStrip{
		desc:  desc,
		log:   log.With("strip", desc.Name, "spi", spiPort),
		port:  port,
		conn:  conn,
		state: Connected,
	}, nil
}

func (l *LocalStrip) Name() string { return l.desc.Name }

// Descriptor returns the immutable configuration this strip was built from.
func (l *LocalStrip) Descriptor() Descriptor { return l.desc }

// ReadyForData is always true once the SPI connection is open; there is no
// queue to back up.
func (l *LocalStrip) ReadyForData() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state == Connected
}

// Enqueue frames pixels per the APA102 protocol and writes them
// synchronously. presentAt is accepted for interface symmetry with
// NetStrip but has no effect: a directly wired strip has no device-side
// buffer to schedule against.
func (l *LocalStrip) Enqueue(pixels []pixel.Pixel, presentAt time.Time) bool {
	if !l.ReadyForData() {
		l.drops.Add(1)
		return false
	}
	frame := encodeAPA102(pixels)
	if err := l.conn.Tx(frame, nil); err != nil {
		l.log.Warnw("local strip spi write failed", "error", err)
		l.mu.Lock()
		l.state = Disconnected
		l.mu.Unlock()
		l.drops.Add(1)
		return false
	}
	l.framesSent.Add(1)
	return true
}

func (l *LocalStrip) Stats() Stats {
	l.mu.Lock()
	st := Stats{Name: l.desc.Name, State: l.state}
	l.mu.Unlock()
	st.DropsTotal = l.drops.Load()
	st.FramesSent = l.framesSent.Load()
	return st
}

// Close releases the underlying SPI port.
func (l *LocalStrip) Close() error {
	return l.port.Close()
}

// encodeAPA102 builds a full APA102 frame: a 32-bit zero start frame, one
// 4-byte LED frame per pixel (header | global brightness, B, G, R), and a
// trailing clock train of at least len(pixels)/2 bits to shift the last
// LED frame fully through the strip.
func encodeAPA102(pixels []pixel.Pixel) []byte {
	start := 4
	ledFrames := 4 * len(pixels)
	endFrames := (len(pixels) + 15) / 16 * 4
	if endFrames < 4 {
		endFrames = 4
	}

	buf := make([]byte, start+ledFrames+endFrames)
	for i, p := range pixels {
		off := start + 4*i
		buf[off] = 0xE0 | (apa102GlobalBrightness >> 3)
		buf[off+1] = p.B
		buf[off+2] = p.G
		buf[off+3] = p.R
	}
	for i := start + ledFrames; i < len(buf); i++ {
		buf[i] = 0xFF
	}
	return buf
}
