// Package audio normalises decoded PCM into the unsigned 8-bit mono stream
// the LTC decoder consumes.
package audio

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat is returned for sample formats the converter does not know.
var ErrUnsupportedFormat = errors.New("unsupported sample format")

// SampleFormat identifies the layout of decoded samples. All multi-byte
// formats are little-endian.
type SampleFormat int

const (
	FormatUnknown SampleFormat = iota
	FormatU8
	FormatS16
	FormatS24
	FormatS32
	FormatFLT
	FormatDBL
	FormatU8P
	FormatS16P
	FormatS24P
	FormatS32P
	FormatFLTP
	FormatDBLP
)

var formatNames = map[SampleFormat]string{
	FormatU8:   "u8",
	FormatS16:  "s16",
	FormatS24:  "s24",
	FormatS32:  "s32",
	FormatFLT:  "flt",
	FormatDBL:  "dbl",
	FormatU8P:  "u8p",
	FormatS16P: "s16p",
	FormatS24P: "s24p",
	FormatS32P: "s32p",
	FormatFLTP: "fltp",
	FormatDBLP: "dblp",
}

func (f SampleFormat) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(f))
}

// Planar reports whether each channel is stored in its own plane.
func (f SampleFormat) Planar() bool {
	switch f {
	case FormatU8P, FormatS16P, FormatS24P, FormatS32P, FormatFLTP, FormatDBLP:
		return true
	}
	return false
}

// Packed returns the interleaved counterpart of a planar format.
func (f SampleFormat) Packed() SampleFormat {
	switch f {
	case FormatU8P:
		return FormatU8
	case FormatS16P:
		return FormatS16
	case FormatS24P:
		return FormatS24
	case FormatS32P:
		return FormatS32
	case FormatFLTP:
		return FormatFLT
	case FormatDBLP:
		return FormatDBL
	}
	return f
}

// BytesPerSample returns the size of one sample of one channel, or 0 for
// unknown formats.
func (f SampleFormat) BytesPerSample() int {
	switch f.Packed() {
	case FormatU8:
		return 1
	case FormatS16:
		return 2
	case FormatS24:
		return 3
	case FormatS32, FormatFLT:
		return 4
	case FormatDBL:
		return 8
	}
	return 0
}
