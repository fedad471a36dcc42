package ltc

import (
	"math"

	"github.com/zsiec/ltcsplit/internal/timebase"
	"github.com/zsiec/ltcsplit/internal/timecode"
)

const amplitude = 100

// Encoder renders timecode as biphase-mark LTC audio, unsigned 8-bit mono.
// It is used to build test signals.
type Encoder struct {
	samplesPerFrame float64
	frameStart      float64
	written         int64
	high            bool
}

// NewEncoder creates an encoder producing samplesPerFrame samples per frame.
func NewEncoder(samplesPerFrame float64) *Encoder {
	if samplesPerFrame <= 0 {
		samplesPerFrame = defaultSamplesPerFrame
	}
	return &Encoder{samplesPerFrame: samplesPerFrame}
}

// EncodeFrame returns the samples for one frame carrying tc.
func (e *Encoder) EncodeFrame(tc timecode.Timecode, userBits uint32) []uint8 {
	bits := pack(tc, userBits)
	end := int64(math.Round(e.frameStart + e.samplesPerFrame))
	out := make([]uint8, 0, end-e.written)

	fill := func(until int64) {
		level := uint8(128 - amplitude)
		if e.high {
			level = 128 + amplitude
		}
		for e.written < until {
			out = append(out, level)
			e.written++
		}
	}

	bitLen := e.samplesPerFrame / BitsPerFrame
	for k, bit := range bits {
		from := int64(math.Round(e.frameStart + float64(k)*bitLen))
		to := int64(math.Round(e.frameStart + float64(k+1)*bitLen))

		e.high = !e.high
		if bit {
			fill(from + (to-from)/2)
			e.high = !e.high
		}
		fill(to)
	}

	e.frameStart += e.samplesPerFrame
	return out
}

// EncodeRun renders count consecutive frames starting at start, counting at
// rate fps.
func (e *Encoder) EncodeRun(start timecode.Timecode, count int, fps timebase.Rational) []uint8 {
	first := start.FrameNumber(fps, timebase.Rational{})
	var out []uint8
	for i := 0; i < count; i++ {
		tc := timecode.FromFrameNumber(first+uint64(i), fps)
		tc.DropFrame = start.DropFrame
		out = append(out, e.EncodeFrame(tc, 0)...)
	}
	return out
}
