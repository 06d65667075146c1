// Package strip implements the per-controller delivery path: a bounded
// outgoing queue, a connection state machine, and a dedicated send worker
// per physical strip. A Site's render thread only ever calls ReadyForData
// and Enqueue; all socket handling happens on the worker goroutine.
package strip

import (
	"time"

	"github.com/nightdriverserver/nightdriverserver/internal/pixel"
)

// QueueCapacity bounds the number of encoded frames held per strip,
// roughly 1 second of headroom at 22 fps.
const QueueCapacity = 21

// ConnectTimeout bounds how long a single dial attempt may take.
const ConnectTimeout = 5 * time.Second

// WriteTimeout bounds a single frame write.
const WriteTimeout = 2 * time.Second

// InitialBackoff and MaxBackoff bound the reconnect backoff, which doubles
// on every failed connect attempt.
const (
	InitialBackoff = 250 * time.Millisecond
	MaxBackoff     = 5 * time.Second
)

// State is the connection lifecycle of a Strip.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Backoff
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Backoff:
		return "backoff"
	default:
		return "unknown"
	}
}

// Descriptor is the immutable configuration of one physical strip.
type Descriptor struct {
	Host         string
	Port         int
	Name         string
	Length       int
	ChannelMask  uint16
	OffsetInSite int
	Reversed     bool
	Compress     bool
}

// Stats is a point-in-time snapshot of a Strip's health, safe to read
// concurrently with the send worker.
type Stats struct {
	Name       string
	State      State
	QueueDepth int
	DropsTotal uint64
	FramesSent uint64
	LastError  string
}

// Strip is the interface the Site render thread drives. Enqueue must never
// block the render thread; implementations drop and count instead.
type Strip interface {
	Name() string
	ReadyForData() bool
	Enqueue(pixels []pixel.Pixel, presentAt time.Time) bool
	Stats() Stats
}

// minDuration returns the smaller of a and b, used to cap a backoff wait.
func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

// Extract returns the sub-slice of a Site's pixel buffer this strip covers,
// reversed if the descriptor requests it. The returned slice is an
// independent copy safe to hand to a worker goroutine.
func (d Descriptor) Extract(sitePixels *pixel.Buffer) []pixel.Pixel {
	slice := sitePixels.Slice(d.OffsetInSite, d.Length)
	if d.Reversed {
		slice = pixel.Reverse(slice)
	}
	return slice
}
