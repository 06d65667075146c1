package strip

import (
	"testing"

	"github.com/nightdriverserver/nightdriverserver/internal/pixel"
)

func TestEncodeAPA102FrameShape(t *testing.T) {
	pixels := []pixel.Pixel{{R: 1, G: 2, B: 3}, {R: 4, G: 5, B: 6}}
	frame := encodeAPA102(pixels)

	for i := 0; i < 4; i++ {
		if frame[i] != 0 {
			t.Fatalf("start frame byte %d = %#x, want 0", i, frame[i])
		}
	}

	first := frame[4:8]
	if first[0]&0xE0 != 0xE0 {
		t.Fatalf("LED header = %#x, want top 3 bits set", first[0])
	}
	if first[1] != 3 || first[2] != 2 || first[3] != 1 {
		t.Fatalf("LED frame bytes = %v, want BGR order [3 2 1]", first)
	}

	tail := frame[len(frame)-4:]
	for _, b := range tail {
		if b != 0xFF {
			t.Fatalf("end frame byte = %#x, want 0xFF", b)
		}
	}
}

func TestEncodeAPA102EmptyStripStillHasFraming(t *testing.T) {
	frame := encodeAPA102(nil)
	if len(frame) < 8 {
		t.Fatalf("len(frame) = %d, want at least start+end framing", len(frame))
	}
}
