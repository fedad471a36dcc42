package media

import (
	"encoding/binary"
	"fmt"

	"github.com/zsiec/ltcsplit/internal/audio"
	apperrors "github.com/zsiec/ltcsplit/internal/errors"
)

// PCMCodec is an uncompressed audio layout found in containers.
type PCMCodec struct {
	Format    audio.SampleFormat
	BigEndian bool
	Unsigned  bool // 8-bit only
}

// pcmCodecs maps QuickTime sample entry FourCCs and ffmpeg codec names to
// their layouts.
var pcmCodecs = map[string]PCMCodec{
	"sowt":      {Format: audio.FormatS16},
	"twos":      {Format: audio.FormatS16, BigEndian: true},
	"in24":      {Format: audio.FormatS24, BigEndian: true},
	"in32":      {Format: audio.FormatS32, BigEndian: true},
	"fl32":      {Format: audio.FormatFLT, BigEndian: true},
	"fl64":      {Format: audio.FormatDBL, BigEndian: true},
	"raw ":      {Format: audio.FormatU8, Unsigned: true},
	"pcm_u8":    {Format: audio.FormatU8, Unsigned: true},
	"pcm_s16le": {Format: audio.FormatS16},
	"pcm_s16be": {Format: audio.FormatS16, BigEndian: true},
	"pcm_s24le": {Format: audio.FormatS24},
	"pcm_s24be": {Format: audio.FormatS24, BigEndian: true},
	"pcm_s32le": {Format: audio.FormatS32},
	"pcm_s32be": {Format: audio.FormatS32, BigEndian: true},
	"pcm_f32le": {Format: audio.FormatFLT},
	"pcm_f32be": {Format: audio.FormatFLT, BigEndian: true},
	"pcm_f64le": {Format: audio.FormatDBL},
	"pcm_f64be": {Format: audio.FormatDBL, BigEndian: true},
}

// LookupPCMCodec resolves a codec tag or name.
func LookupPCMCodec(name string) (PCMCodec, bool) {
	c, ok := pcmCodecs[name]
	return c, ok
}

// PCMDecoder decodes uncompressed interleaved audio packets.
type PCMDecoder struct {
	codec    PCMCodec
	channels int
}

// NewPCMDecoder creates a decoder for the named codec.
func NewPCMDecoder(codec string, channels int) (*PCMDecoder, error) {
	c, ok := LookupPCMCodec(codec)
	if !ok {
		return nil, apperrors.New(apperrors.ErrorTypeUnsupportedCodec, "Unsupported audio codec %q.", codec)
	}
	if channels < 1 {
		return nil, apperrors.New(apperrors.ErrorTypeUnsupportedFormat, "Invalid channel count %d.", channels)
	}
	return &PCMDecoder{codec: c, channels: channels}, nil
}

// Decode implements AudioDecoder.
func (d *PCMDecoder) Decode(pkt *Packet) (*audio.Buffer, error) {
	if pkt == nil || pkt.Kind != KindAudio {
		return nil, apperrors.New(apperrors.ErrorTypeDecode, "Not an audio packet.")
	}

	size := d.codec.Format.BytesPerSample()
	frame := size * d.channels
	if len(pkt.Payload)%frame != 0 {
		return nil, apperrors.New(apperrors.ErrorTypeDecode,
			"Error decoding audio packet: %d bytes is not a multiple of %d.", len(pkt.Payload), frame)
	}

	data := pkt.Payload
	if d.codec.BigEndian && size > 1 {
		data = swapEndian(data, size)
	}

	buf, err := audio.NewPackedBuffer(d.codec.Format, d.channels, data)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDecode, "Error decoding audio packet")
	}
	return buf, nil
}

func swapEndian(data []byte, size int) []byte {
	out := make([]byte, len(data))
	for i := 0; i+size <= len(data); i += size {
		for j := 0; j < size; j++ {
			out[i+j] = data[i+size-1-j]
		}
	}
	return out
}

// EncodeS16 packs samples as little-endian signed 16-bit PCM.
func EncodeS16(samples []int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

// U8ToS16 widens unsigned 8-bit samples to signed 16-bit, duplicating them
// across channels.
func U8ToS16(samples []uint8, channels int) []int16 {
	out := make([]int16, 0, len(samples)*channels)
	for _, s := range samples {
		v := int16(int(s)-128) << 8
		for c := 0; c < channels; c++ {
			out = append(out, v)
		}
	}
	return out
}

func (c PCMCodec) String() string {
	endian := "le"
	if c.BigEndian {
		endian = "be"
	}
	return fmt.Sprintf("%v%s", c.Format, endian)
}
