package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/ltcsplit/internal/audio"
	apperrors "github.com/zsiec/ltcsplit/internal/errors"
)

func TestPCMDecoder(t *testing.T) {
	tests := []struct {
		name     string
		codec    string
		channels int
		payload  []byte
		channel  int
		expected []uint8
	}{
		{
			name:     "sowt stereo",
			codec:    "sowt",
			channels: 2,
			payload:  EncodeS16([]int16{-32768, 32767, 0, 0}),
			channel:  1,
			expected: []uint8{255, 128},
		},
		{
			name:     "twos big endian",
			codec:    "twos",
			channels: 1,
			payload:  []byte{0x7f, 0x00, 0x80, 0x00},
			expected: []uint8{255, 0},
		},
		{
			name:     "in24 big endian",
			codec:    "in24",
			channels: 1,
			payload:  []byte{0x80, 0x00, 0x00},
			expected: []uint8{0},
		},
		{
			name:     "raw unsigned",
			codec:    "raw ",
			channels: 1,
			payload:  []byte{10, 200},
			expected: []uint8{10, 200},
		},
		{
			name:     "ffmpeg s16le",
			codec:    "pcm_s16le",
			channels: 1,
			payload:  EncodeS16(U8ToS16([]uint8{28, 228}, 1)),
			expected: []uint8{28, 228},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec, err := NewPCMDecoder(tt.codec, tt.channels)
			require.NoError(t, err)

			buf, err := dec.Decode(&Packet{Kind: KindAudio, Payload: tt.payload})
			require.NoError(t, err)

			got, err := audio.ToU8(buf, tt.channel)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestPCMDecoderErrors(t *testing.T) {
	_, err := NewPCMDecoder("aac ", 2)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnsupportedCodec))

	_, err = NewPCMDecoder("sowt", 0)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnsupportedFormat))

	dec, err := NewPCMDecoder("sowt", 2)
	require.NoError(t, err)

	_, err = dec.Decode(&Packet{Kind: KindAudio, Payload: []byte{1, 2, 3}})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeDecode))

	_, err = dec.Decode(&Packet{Kind: KindVideo})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeDecode))
}

func TestU8ToS16(t *testing.T) {
	assert.Equal(t, []int16{-32768, -32768, 0, 0}, U8ToS16([]uint8{0, 128}, 2))
}
