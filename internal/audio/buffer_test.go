package audio

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func s16le(values ...int16) []byte {
	out := make([]byte, 2*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
	}
	return out
}

func TestToU8Packed(t *testing.T) {
	tests := []struct {
		name     string
		buf      *Buffer
		channel  int
		expected []uint8
	}{
		{
			name:     "u8 passthrough",
			buf:      &Buffer{Format: FormatU8, Channels: 1, Samples: 3, Data: [][]byte{{0, 128, 255}}},
			expected: []uint8{0, 128, 255},
		},
		{
			name:     "s16 mono",
			buf:      &Buffer{Format: FormatS16, Channels: 1, Samples: 3, Data: [][]byte{s16le(-32768, 0, 32767)}},
			expected: []uint8{0, 128, 255},
		},
		{
			name:     "s16 stereo right channel",
			buf:      &Buffer{Format: FormatS16, Channels: 2, Samples: 2, Data: [][]byte{s16le(0, -32768, 0, 32767)}},
			channel:  1,
			expected: []uint8{0, 255},
		},
		{
			name:     "s24 keeps top byte",
			buf:      &Buffer{Format: FormatS24, Channels: 1, Samples: 2, Data: [][]byte{{0x00, 0x00, 0x80, 0xff, 0xff, 0x7f}}},
			expected: []uint8{0, 255},
		},
		{
			name:     "s32",
			buf:      &Buffer{Format: FormatS32, Channels: 1, Samples: 1, Data: [][]byte{{0, 0, 0, 0x40}}},
			expected: []uint8{0xc0},
		},
		{
			name:     "short plane truncates sample count",
			buf:      &Buffer{Format: FormatS16, Channels: 1, Samples: 10, Data: [][]byte{s16le(0, 0)}},
			expected: []uint8{128, 128},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToU8(tt.buf, tt.channel)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestToU8Float(t *testing.T) {
	flt := make([]byte, 12)
	for i, v := range []float32{-1, 0, 2} {
		binary.LittleEndian.PutUint32(flt[4*i:], math.Float32bits(v))
	}
	got, err := ToU8(&Buffer{Format: FormatFLT, Channels: 1, Samples: 3, Data: [][]byte{flt}}, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint8{1, 128, 255}, got)

	left := make([]byte, 16)
	right := make([]byte, 16)
	binary.LittleEndian.PutUint64(left[0:], math.Float64bits(0.5))
	binary.LittleEndian.PutUint64(left[8:], math.Float64bits(-0.5))
	binary.LittleEndian.PutUint64(right[0:], math.Float64bits(1))
	binary.LittleEndian.PutUint64(right[8:], math.Float64bits(math.NaN()))

	buf := &Buffer{Format: FormatDBLP, Channels: 2, Samples: 2, Data: [][]byte{left, right}}
	got, err = ToU8(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint8{192, 65}, got)

	got, err = ToU8(buf, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint8{255, 128}, got)
}

func TestToU8Errors(t *testing.T) {
	_, err := ToU8(&Buffer{Format: FormatUnknown, Channels: 1, Samples: 1, Data: [][]byte{{0}}}, 0)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = ToU8(&Buffer{Format: FormatS16, Channels: 1, Samples: 1, Data: [][]byte{{0, 0}}}, 1)
	assert.Error(t, err)

	out, err := ToU8(nil, 0)
	assert.NoError(t, err)
	assert.Nil(t, out)
}

func TestSampleFormat(t *testing.T) {
	tests := []struct {
		name   string
		format SampleFormat
		size   int
		planar bool
	}{
		{"u8", FormatU8, 1, false},
		{"s16p", FormatS16P, 2, true},
		{"s24", FormatS24, 3, false},
		{"fltp", FormatFLTP, 4, true},
		{"dbl", FormatDBL, 8, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.format.String())
			assert.Equal(t, tt.size, tt.format.BytesPerSample())
			assert.Equal(t, tt.planar, tt.format.Planar())
		})
	}

	assert.Equal(t, "unknown(99)", SampleFormat(99).String())
	assert.Equal(t, 0, FormatUnknown.BytesPerSample())
}

func TestNewPackedBuffer(t *testing.T) {
	buf, err := NewPackedBuffer(FormatS16, 2, make([]byte, 10))
	require.NoError(t, err)
	assert.Equal(t, 2, buf.Samples)
	assert.Len(t, buf.Data[0], 8)

	_, err = NewPackedBuffer(FormatS16P, 2, make([]byte, 8))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = NewPackedBuffer(FormatS16, 0, make([]byte, 8))
	assert.Error(t, err)
}
