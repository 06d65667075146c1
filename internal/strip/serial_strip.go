package strip

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/nightdriverserver/nightdriverserver/internal/codec"
	"github.com/nightdriverserver/nightdriverserver/internal/pixel"
)

// SerialStrip delivers frames over a directly attached USB-serial
// controller instead of TCP. It shares NetStrip's queue-and-backoff shape
// but reopens a serial port rather than dialing a socket; Host on its
// Descriptor names the device path (e.g. "/dev/ttyUSB0") and Port is
// interpreted as the baud rate.
type SerialStrip struct {
	desc Descriptor
	log  *zap.SugaredLogger

	queue *frameQueue

	mu    sync.Mutex
	state State
	port  serial.Port

	drops      atomic.Uint64
	framesSent atomic.Uint64
	lastErr    string
}

// NewSerialStrip constructs a SerialStrip in the Disconnected state.
func NewSerialStrip(desc Descriptor, log *zap.SugaredLogger) *SerialStrip {
	return &SerialStrip{
		desc:  desc,
		log:   log.With("strip", desc.Name, "device", desc.Host),
		queue: newFrameQueue(QueueCapacity),
		state: Disconnected,
	}
}

func (s *SerialStrip) Name() string { return s.desc.Name }

// Descriptor returns the immutable configuration this strip was built from.
func (s *SerialStrip) Descriptor() Descriptor { return s.desc }

func (s *SerialStrip) ReadyForData() bool {
	s.mu.Lock()
	connected := s.state == Connected
	s.mu.Unlock()
	return connected && s.queue.len() < QueueCapacity
}

func (s *SerialStrip) Enqueue(pixels []pixel.Pixel, presentAt time.Time) bool {
	if !s.ReadyForData() {
		s.drops.Add(1)
		return false
	}
	frame := codec.Encode(pixels, s.desc.ChannelMask, presentAt, s.desc.Compress)
	if !s.queue.tryPush(frame) {
		s.drops.Add(1)
		return false
	}
	return true
}

func (s *SerialStrip) Stats() Stats {
	s.mu.Lock()
	st := Stats{Name: s.desc.Name, State: s.state, LastError: s.lastErr}
	s.mu.Unlock()
	st.QueueDepth = s.queue.len()
	st.DropsTotal = s.drops.Load()
	st.FramesSent = s.framesSent.Load()
	return st
}

func (s *SerialStrip) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *SerialStrip) setError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
}

// Start runs the send worker until ctx is cancelled.
func (s *SerialStrip) Start(ctx context.Context) {
	backoff := InitialBackoff

	for {
		if ctx.Err() != nil {
			s.closePort()
			return
		}

		s.mu.Lock()
		state := s.state
		s.mu.Unlock()

		if state != Connected {
			if state == Backoff {
				select {
				case <-time.After(minDuration(backoff, MaxBackoff)):
				case <-ctx.Done():
					return
				}
			}

			if err := s.open(); err != nil {
				s.setError(err)
				s.log.Warnw("serial strip open failed", "error", err, "backoff", backoff)
				s.setState(Backoff)
				backoff *= 2
				if backoff > MaxBackoff {
					backoff = MaxBackoff
				}
				continue
			}
			backoff = InitialBackoff
			s.setState(Connected)
			continue
		}

		s.serveOne()
	}
}

func (s *SerialStrip) open() error {
	s.setState(Connecting)
	mode := &serial.Mode{BaudRate: s.desc.Port}
	port, err := serial.Open(s.desc.Host, mode)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.port = port
	s.mu.Unlock()
	s.log.Infow("serial strip opened")
	return nil
}

func (s *SerialStrip) serveOne() {
	timeout := time.NewTimer(100 * time.Millisecond)
	defer timeout.Stop()

	frame, ok := s.queue.popWait(timeout.C)
	if !ok {
		return
	}

	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port == nil {
		s.setState(Backoff)
		return
	}

	if _, err := port.Write(frame); err != nil {
		s.setError(err)
		s.log.Warnw("serial strip write failed, reopening", "error", err)
		s.closePort()
		s.setState(Backoff)
		return
	}
	s.framesSent.Add(1)
}

func (s *SerialStrip) closePort() {
	s.mu.Lock()
	port := s.port
	s.port = nil
	s.mu.Unlock()
	if port != nil {
		_ = port.Close()
	}
}
