package ltc

import (
	"iter"
)

const (
	// defaultSamplesPerFrame is 25 fps at 48kHz.
	defaultSamplesPerFrame = 1920

	// midpoint of unsigned 8-bit audio
	center = 128

	// minHysteresis keeps quantisation noise and silence from toggling the
	// level however quiet the envelope gets.
	minHysteresis = 2
)

// Decoder demodulates biphase-mark LTC from unsigned 8-bit mono samples.
//
// Samples are pushed with Feed and completed frames pulled with Poll. Only
// forward playback is recognised. A Decoder is not safe for concurrent use.
type Decoder struct {
	bitPeriod float64 // adaptive, in samples
	nominal   float64

	// Peak envelope above and below center, decaying over about a frame.
	// The switching threshold is a quarter of it.
	envHigh float64
	envLow  float64
	decay   float64

	started     bool
	high        bool
	lastEdge    int64
	halfPending bool
	halfStart   int64

	bits      [BitsPerFrame]bool
	bitStarts [BitsPerFrame]int64
	nbits     int

	next    int64 // expected position of the next fed sample
	pending []Frame
}

// NewDecoder creates a decoder tuned for samplesPerFrame audio samples per
// LTC frame (sample rate divided by frame rate). Zero selects 1920.
func NewDecoder(samplesPerFrame float64) *Decoder {
	if samplesPerFrame <= 0 {
		samplesPerFrame = defaultSamplesPerFrame
	}
	period := samplesPerFrame / BitsPerFrame
	return &Decoder{
		bitPeriod: period,
		nominal:   period,
		decay:     1 - 1/samplesPerFrame,
	}
}

// Feed pushes samples starting at absolute sample position start.
func (d *Decoder) Feed(samples []uint8, start int64) {
	if gap := start - d.next; d.started && (gap > int64(d.nominal/2) || gap < -int64(d.nominal/2)) {
		// Gap or overlap in the audio stream; drop the partial frame.
		d.resync()
	}

	for i, s := range samples {
		pos := start + int64(i)

		var level bool
		switch v := d.track(s); {
		case v > d.threshold(d.envHigh):
			level = true
		case -v > d.threshold(d.envLow):
			level = false
		default:
			continue
		}

		if !d.started {
			d.started = true
			d.high = level
			d.lastEdge = pos
			continue
		}
		if level == d.high {
			continue
		}
		d.high = level
		d.edge(pos)
	}
	d.next = start + int64(len(samples))
}

// track updates the envelope with s and returns its offset from center.
func (d *Decoder) track(s uint8) float64 {
	v := float64(s) - center
	d.envHigh = max(v, d.envHigh*d.decay)
	d.envLow = max(-v, d.envLow*d.decay)
	return v
}

func (d *Decoder) threshold(env float64) float64 {
	return max(env/4, minHysteresis)
}

func (d *Decoder) edge(pos int64) {
	interval := float64(pos - d.lastEdge)
	prev := d.lastEdge
	d.lastEdge = pos

	switch {
	case interval < 0.75*d.bitPeriod:
		if !d.halfPending {
			d.halfPending = true
			d.halfStart = prev
			return
		}
		d.halfPending = false
		d.adapt(float64(pos - d.halfStart))
		d.push(true, d.halfStart, pos)

	case interval < 1.5*d.bitPeriod:
		if d.halfPending {
			d.resync()
			return
		}
		d.adapt(interval)
		d.push(false, prev, pos)

	default:
		d.resync()
	}
}

// adapt follows slow speed drift but stays within half an octave of nominal.
func (d *Decoder) adapt(measured float64) {
	p := 0.75*d.bitPeriod + 0.25*measured
	if p < 0.7*d.nominal {
		p = 0.7 * d.nominal
	} else if p > 1.4*d.nominal {
		p = 1.4 * d.nominal
	}
	d.bitPeriod = p
}

func (d *Decoder) push(bit bool, start, end int64) {
	copy(d.bits[:], d.bits[1:])
	copy(d.bitStarts[:], d.bitStarts[1:])
	d.bits[BitsPerFrame-1] = bit
	d.bitStarts[BitsPerFrame-1] = start
	if d.nbits < BitsPerFrame {
		d.nbits++
	}

	if d.nbits < BitsPerFrame || !hasSync(&d.bits) {
		return
	}

	tc, user := unpack(&d.bits)
	d.pending = append(d.pending, Frame{
		Timecode: tc,
		UserBits: user,
		Start:    d.bitStarts[0],
		End:      end,
	})
	d.nbits = 0
}

func (d *Decoder) resync() {
	d.halfPending = false
	d.nbits = 0
	d.bitPeriod = d.nominal
}

// Poll yields the frames completed since the last call, in order.
func (d *Decoder) Poll() iter.Seq[Frame] {
	return func(yield func(Frame) bool) {
		for len(d.pending) > 0 {
			f := d.pending[0]
			d.pending = d.pending[1:]
			if !yield(f) {
				return
			}
		}
		d.pending = nil
	}
}
