package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Buffer holds one block of decoded audio. Packed formats use a single plane
// of interleaved samples; planar formats use one plane per channel.
type Buffer struct {
	Format   SampleFormat
	Channels int
	Samples  int // per channel
	Data     [][]byte
}

// NewPackedBuffer wraps interleaved PCM bytes, deriving the sample count.
func NewPackedBuffer(format SampleFormat, channels int, data []byte) (*Buffer, error) {
	size := format.BytesPerSample()
	if size == 0 || format.Planar() {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, format)
	}
	if channels < 1 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}
	frame := size * channels
	return &Buffer{
		Format:   format,
		Channels: channels,
		Samples:  len(data) / frame,
		Data:     [][]byte{data[:len(data)/frame*frame]},
	}, nil
}

// ToU8 extracts channel from buf as unsigned 8-bit samples centred on 128.
// Integer formats keep their most significant byte; float formats map
// [-1, 1] onto [1, 255].
func ToU8(buf *Buffer, channel int) ([]uint8, error) {
	if buf == nil {
		return nil, nil
	}

	size := buf.Format.BytesPerSample()
	if size == 0 {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, buf.Format)
	}
	if channel < 0 || channel >= buf.Channels {
		return nil, fmt.Errorf("channel %d out of range (stream has %d)", channel, buf.Channels)
	}

	var (
		plane  []byte
		offset int
		stride int
	)
	if buf.Format.Planar() {
		if channel >= len(buf.Data) {
			return nil, fmt.Errorf("missing plane for channel %d", channel)
		}
		plane = buf.Data[channel]
		stride = size
	} else {
		if len(buf.Data) == 0 {
			return nil, fmt.Errorf("empty audio buffer")
		}
		plane = buf.Data[0]
		offset = channel * size
		stride = size * buf.Channels
	}

	n := buf.Samples
	if avail := (len(plane) - offset + stride - size) / stride; n > avail {
		n = avail
	}
	if n <= 0 {
		return nil, nil
	}

	out := make([]uint8, n)
	format := buf.Format.Packed()
	for i := 0; i < n; i++ {
		p := plane[offset+i*stride : offset+i*stride+size]
		switch format {
		case FormatU8:
			out[i] = p[0]
		case FormatS16, FormatS24, FormatS32:
			out[i] = p[size-1] ^ 0x80
		case FormatFLT:
			out[i] = floatToU8(float64(math.Float32frombits(binary.LittleEndian.Uint32(p))))
		case FormatDBL:
			out[i] = floatToU8(math.Float64frombits(binary.LittleEndian.Uint64(p)))
		}
	}
	return out, nil
}

func floatToU8(v float64) uint8 {
	if math.IsNaN(v) {
		return 128
	}
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return uint8(math.Round(128 + 127*v))
}
