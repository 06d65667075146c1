// Package codec implements the binary frame format spoken to controller
// devices: a little-endian pixel message, optionally wrapped in a raw
// DEFLATE envelope. Encode and Decode are pure functions over byte slices;
// neither touches the network.
package codec

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/nightdriverserver/nightdriverserver/internal/pixel"
)

// WifiCommandPixelData64 is the only inner command this codec emits.
const WifiCommandPixelData64 uint16 = 3

// CompressedMagic marks the start of an outer compressed wrapper.
const CompressedMagic uint32 = 0x44415645

// CompressedReserved is an identity constant validated, not interpreted,
// by the consumer.
const CompressedReserved uint32 = 0x12345678

// BufferLatency is added to the enqueue time to produce a frame's
// presentation timestamp, giving the device headroom to smooth jitter.
const BufferLatency = 1 * time.Second

const innerHeaderSize = 2 + 2 + 4 + 8 + 8

// PresentTime returns the presentation timestamp for a frame enqueued now.
func PresentTime(now time.Time) time.Time {
	return now.Add(BufferLatency)
}

// Encode produces the wire bytes for pixels, addressed to channelMask,
// presented at presentTime. When compress is true the inner message is
// wrapped in a raw-DEFLATE envelope; otherwise the inner message is
// returned verbatim.
func Encode(pixels []pixel.Pixel, channelMask uint16, presentTime time.Time, compress bool) []byte {
	inner := encodeInner(pixels, channelMask, presentTime)
	if !compress {
		return inner
	}
	return wrapCompressed(inner)
}

func encodeInner(pixels []pixel.Pixel, channelMask uint16, presentTime time.Time) []byte {
	buf := make([]byte, innerHeaderSize+3*len(pixels))

	binary.LittleEndian.PutUint16(buf[0:2], WifiCommandPixelData64)
	binary.LittleEndian.PutUint16(buf[2:4], channelMask)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(pixels)))

	utc := presentTime.UTC()
	seconds := utc.Unix()
	micros := int64(utc.Nanosecond() / 1000)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(seconds))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(micros))

	for i, p := range pixels {
		off := innerHeaderSize + 3*i
		buf[off] = p.R
		buf[off+1] = p.G
		buf[off+2] = p.B
	}
	return buf
}

func wrapCompressed(inner []byte) []byte {
	var blob bytes.Buffer
	w, err := flate.NewWriter(&blob, flate.BestSpeed)
	if err != nil {
		// flate.NewWriter only fails on an invalid compression level,
		// and BestSpeed is always valid.
		panic(fmt.Sprintf("codec: flate.NewWriter: %v", err))
	}
	if _, err := w.Write(inner); err != nil {
		panic(fmt.Sprintf("codec: flate write: %v", err))
	}
	if err := w.Close(); err != nil {
		panic(fmt.Sprintf("codec: flate close: %v", err))
	}

	out := make([]byte, 16+blob.Len())
	binary.LittleEndian.PutUint32(out[0:4], CompressedMagic)
	binary.LittleEndian.PutUint32(out[4:8], uint32(blob.Len()))
	binary.LittleEndian.PutUint32(out[8:12], uint32(len(inner)))
	binary.LittleEndian.PutUint32(out[12:16], CompressedReserved)
	copy(out[16:], blob.Bytes())
	return out
}

// Frame is a decoded inner pixel message.
type Frame struct {
	Command     uint16
	ChannelMask uint16
	PresentTime time.Time
	Pixels      []pixel.Pixel
}

// Decode parses data as either a compressed wrapper (detected by its
// leading magic) or a bare inner pixel message.
func Decode(data []byte) (Frame, error) {
	if len(data) >= 4 && binary.LittleEndian.Uint32(data[0:4]) == CompressedMagic {
		return decodeCompressed(data)
	}
	return decodeInner(data)
}

func decodeCompressed(data []byte) (Frame, error) {
	if len(data) < 16 {
		return Frame{}, fmt.Errorf("codec: compressed wrapper too short: %d bytes", len(data))
	}
	magic := binary.LittleEndian.Uint32(data[0:4])
	if magic != CompressedMagic {
		return Frame{}, fmt.Errorf("codec: bad compressed magic %#x", magic)
	}
	compressedSize := binary.LittleEndian.Uint32(data[4:8])
	uncompressedSize := binary.LittleEndian.Uint32(data[8:12])
	reserved := binary.LittleEndian.Uint32(data[12:16])
	if reserved != CompressedReserved {
		return Frame{}, fmt.Errorf("codec: bad reserved field %#x", reserved)
	}

	blob := data[16:]
	if uint32(len(blob)) != compressedSize {
		return Frame{}, fmt.Errorf("codec: compressed blob is %d bytes, header says %d", len(blob), compressedSize)
	}

	r := flate.NewReader(bytes.NewReader(blob))
	defer r.Close()
	inner, err := io.ReadAll(r)
	if err != nil {
		return Frame{}, fmt.Errorf("codec: inflate: %w", err)
	}
	if uint32(len(inner)) != uncompressedSize {
		return Frame{}, fmt.Errorf("codec: inflated to %d bytes, header says %d", len(inner), uncompressedSize)
	}
	return decodeInner(inner)
}

func decodeInner(data []byte) (Frame, error) {
	if len(data) < innerHeaderSize {
		return Frame{}, fmt.Errorf("codec: inner message too short: %d bytes", len(data))
	}

	command := binary.LittleEndian.Uint16(data[0:2])
	channelMask := binary.LittleEndian.Uint16(data[2:4])
	length := binary.LittleEndian.Uint32(data[4:8])
	seconds := int64(binary.LittleEndian.Uint64(data[8:16]))
	micros := int64(binary.LittleEndian.Uint64(data[16:24]))

	want := innerHeaderSize + 3*int(length)
	if len(data) != want {
		return Frame{}, fmt.Errorf("codec: length field says %d pixels, payload implies %d bytes, got %d", length, want-innerHeaderSize, len(data)-innerHeaderSize)
	}

	pixels := make([]pixel.Pixel, length)
	for i := range pixels {
		off := innerHeaderSize + 3*i
		pixels[i] = pixel.Pixel{R: data[off], G: data[off+1], B: data[off+2]}
	}

	return Frame{
		Command:     command,
		ChannelMask: channelMask,
		PresentTime: time.Unix(seconds, micros*1000).UTC(),
		Pixels:      pixels,
	}, nil
}
