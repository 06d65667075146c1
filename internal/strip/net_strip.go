package strip

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/nightdriverserver/nightdriverserver/internal/codec"
	"github.com/nightdriverserver/nightdriverserver/internal/pixel"
)

// NetStrip delivers frames to a controller over a persistent TCP stream.
// One instance owns one socket, one bounded queue and one send worker
// goroutine; the render thread only calls ReadyForData and Enqueue.
type NetStrip struct {
	desc Descriptor
	log  *zap.SugaredLogger

	queue *frameQueue

	mu      sync.Mutex
	state   State
	conn    net.Conn
	lastErr string

	drops      atomic.Uint64
	framesSent atomic.Uint64
}

// NewNetStrip constructs a NetStrip in the Disconnected state. Call Start
// to spawn its send worker.
func NewNetStrip(desc Descriptor, log *zap.SugaredLogger) *NetStrip {
	return &NetStrip{
		desc:  desc,
		log:   log.With("strip", desc.Name, "host", desc.Host),
		queue: newFrameQueue(QueueCapacity),
		state: Disconnected,
	}
}

func (n *NetStrip) Name() string { return n.desc.Name }

// Descriptor returns the immutable configuration this strip was built
// from, used by the Site to carve its pixel slice from the shared buffer.
func (n *NetStrip) Descriptor() Descriptor { return n.desc }

// ReadyForData reports whether the strip is connected and has queue room.
func (n *NetStrip) ReadyForData() bool {
	n.mu.Lock()
	connected := n.state == Connected
	n.mu.Unlock()
	return connected && n.queue.len() < QueueCapacity
}

// Enqueue encodes pixels and pushes the resulting frame, dropping silently
// (and counting the drop) when the strip isn't ready or the queue is full.
func (n *NetStrip) Enqueue(pixels []pixel.Pixel, presentAt time.Time) bool {
	if !n.ReadyForData() {
		n.drops.Add(1)
		return false
	}
	frame := codec.Encode(pixels, n.desc.ChannelMask, presentAt, n.desc.Compress)
	if !n.queue.tryPush(frame) {
		n.drops.Add(1)
		return false
	}
	return true
}

// Stats returns a snapshot safe to read from any goroutine.
func (n *NetStrip) Stats() Stats {
	n.mu.Lock()
	s := Stats{
		Name:      n.desc.Name,
		State:     n.state,
		LastError: n.lastErr,
	}
	n.mu.Unlock()
	s.QueueDepth = n.queue.len()
	s.DropsTotal = n.drops.Load()
	s.FramesSent = n.framesSent.Load()
	return s
}

func (n *NetStrip) setState(s State) {
	n.mu.Lock()
	n.state = s
	n.mu.Unlock()
}

func (n *NetStrip) setError(err error) {
	n.mu.Lock()
	if err != nil {
		n.lastErr = err.Error()
	}
	n.mu.Unlock()
}

// Start runs the send worker until ctx is cancelled. Intended to be run in
// its own goroutine.
func (n *NetStrip) Start(ctx context.Context) {
	backoff := InitialBackoff

	for {
		if ctx.Err() != nil {
			n.closeConn()
			return
		}

		n.mu.Lock()
		state := n.state
		n.mu.Unlock()

		if state != Connected {
			if state == Backoff {
				select {
				case <-time.After(minDuration(backoff, MaxBackoff)):
				case <-ctx.Done():
					return
				}
			}

			if err := n.connect(ctx); err != nil {
				n.setError(err)
				n.log.Warnw("strip connect failed", "error", err, "backoff", backoff)
				n.setState(Backoff)
				backoff *= 2
				if backoff > MaxBackoff {
					backoff = MaxBackoff
				}
				continue
			}
			backoff = InitialBackoff
			n.setState(Connected)
			continue
		}

		n.serveOne(ctx)
	}
}

func (n *NetStrip) connect(ctx context.Context) error {
	n.setState(Connecting)
	dialer := net.Dialer{Timeout: ConnectTimeout}
	addr := fmt.Sprintf("%s:%d", n.desc.Host, n.desc.Port)
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	n.mu.Lock()
	n.conn = conn
	n.mu.Unlock()
	n.log.Infow("strip connected")
	return nil
}

// serveOne pops and sends a single frame, bounded by a 100ms queue wait.
// On write failure the already-popped frame is discarded ("pop once on
// reconnect"); the connection is closed and the state drops to Backoff.
func (n *NetStrip) serveOne(ctx context.Context) {
	timeout := time.NewTimer(100 * time.Millisecond)
	defer timeout.Stop()

	frame, ok := n.queue.popWait(timeout.C)
	if !ok {
		return
	}

	n.mu.Lock()
	conn := n.conn
	n.mu.Unlock()
	if conn == nil {
		n.setState(Backoff)
		return
	}

	if err := conn.SetWriteDeadline(time.Now().Add(WriteTimeout)); err != nil {
		n.failConn(err)
		return
	}
	if _, err := conn.Write(frame); err != nil {
		n.failConn(err)
		return
	}
	n.framesSent.Add(1)
}

func (n *NetStrip) failConn(err error) {
	n.setError(err)
	n.log.Warnw("strip write failed, reconnecting", "error", err)
	n.closeConn()
	n.setState(Backoff)
}

func (n *NetStrip) closeConn() {
	n.mu.Lock()
	conn := n.conn
	n.conn = nil
	n.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}
