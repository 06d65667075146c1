package codec

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/nightdriverserver/nightdriverserver/internal/pixel"
)

func samplePixels(n int) []pixel.Pixel {
	out := make([]pixel.Pixel, n)
	for i := range out {
		out[i] = pixel.Pixel{R: uint8(i), G: uint8(i * 2), B: uint8(i * 3)}
	}
	return out
}

func TestEncodeInnerHeaderFields(t *testing.T) {
	presentAt := time.Date(2024, 1, 8, 12, 0, 0, 500_000_000, time.UTC)
	data := Encode(samplePixels(10), 0xFFFF, presentAt, false)

	if len(data) != innerHeaderSize+3*10 {
		t.Fatalf("len = %d, want %d", len(data), innerHeaderSize+3*10)
	}
	if got := binary.LittleEndian.Uint16(data[0:2]); got != WifiCommandPixelData64 {
		t.Errorf("command = %d, want %d", got, WifiCommandPixelData64)
	}
	if got := binary.LittleEndian.Uint16(data[2:4]); got != 0xFFFF {
		t.Errorf("channel_mask = %#x, want 0xFFFF", got)
	}
	if got := binary.LittleEndian.Uint32(data[4:8]); got != 10 {
		t.Errorf("length = %d, want 10", got)
	}
	seconds := int64(binary.LittleEndian.Uint64(data[8:16]))
	if seconds != presentAt.Unix() {
		t.Errorf("seconds = %d, want %d", seconds, presentAt.Unix())
	}
	micros := int64(binary.LittleEndian.Uint64(data[16:24]))
	if micros != 500_000 {
		t.Errorf("micros = %d, want 500000", micros)
	}
}

func TestUncompressedRoundTrip(t *testing.T) {
	pixels := samplePixels(144)
	presentAt := time.Date(2024, 6, 1, 3, 4, 5, 123_000, time.UTC)

	data := Encode(pixels, 0x0001, presentAt, false)
	frame, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if frame.Command != WifiCommandPixelData64 {
		t.Errorf("Command = %d", frame.Command)
	}
	if frame.ChannelMask != 0x0001 {
		t.Errorf("ChannelMask = %#x", frame.ChannelMask)
	}
	if !frame.PresentTime.Equal(presentAt) {
		t.Errorf("PresentTime = %v, want %v", frame.PresentTime, presentAt)
	}
	if len(frame.Pixels) != len(pixels) {
		t.Fatalf("decoded %d pixels, want %d", len(frame.Pixels), len(pixels))
	}
	for i := range pixels {
		if frame.Pixels[i] != pixels[i] {
			t.Fatalf("pixel %d = %+v, want %+v", i, frame.Pixels[i], pixels[i])
		}
	}
}

func TestCompressedRoundTrip(t *testing.T) {
	pixels := samplePixels(144)
	presentAt := time.Now().Add(time.Hour).Truncate(time.Microsecond)

	data := Encode(pixels, 0x000F, presentAt, true)

	magic := binary.LittleEndian.Uint32(data[0:4])
	if magic != CompressedMagic {
		t.Fatalf("magic = %#x, want %#x", magic, CompressedMagic)
	}
	compressedSize := binary.LittleEndian.Uint32(data[4:8])
	uncompressedSize := binary.LittleEndian.Uint32(data[8:12])
	reserved := binary.LittleEndian.Uint32(data[12:16])
	if reserved != CompressedReserved {
		t.Fatalf("reserved = %#x, want %#x", reserved, CompressedReserved)
	}
	if int(compressedSize) != len(data)-16 {
		t.Fatalf("compressed_size = %d, want %d", compressedSize, len(data)-16)
	}
	if uncompressedSize != uint32(innerHeaderSize+3*len(pixels)) {
		t.Fatalf("uncompressed_size = %d, want %d", uncompressedSize, innerHeaderSize+3*len(pixels))
	}

	frame, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(frame.Pixels) != len(pixels) {
		t.Fatalf("decoded %d pixels, want %d", len(frame.Pixels), len(pixels))
	}
	for i := range pixels {
		if frame.Pixels[i] != pixels[i] {
			t.Fatalf("pixel %d = %+v, want %+v", i, frame.Pixels[i], pixels[i])
		}
	}
}

func TestDecodeRejectsTruncatedInner(t *testing.T) {
	data := Encode(samplePixels(4), 1, time.Now(), false)
	if _, err := Decode(data[:len(data)-1]); err == nil {
		t.Fatal("Decode of truncated message must fail")
	}
}

func TestDecodeRejectsBadReserved(t *testing.T) {
	data := Encode(samplePixels(4), 1, time.Now(), true)
	binary.LittleEndian.PutUint32(data[12:16], 0)
	if _, err := Decode(data); err == nil {
		t.Fatal("Decode must reject a bad reserved field")
	}
}

func TestPresentTimeAddsBufferLatency(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	got := PresentTime(now)
	if !got.Equal(now.Add(BufferLatency)) {
		t.Fatalf("PresentTime = %v, want %v", got, now.Add(BufferLatency))
	}
}

func TestZeroPixelFrame(t *testing.T) {
	data := Encode(nil, 0, time.Now(), false)
	frame, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(frame.Pixels) != 0 {
		t.Fatalf("Pixels = %v, want empty", frame.Pixels)
	}
}
