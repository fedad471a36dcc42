package timebase

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRate is returned when a rate with a zero numerator or a
	// non-positive denominator takes part in a conversion.
	ErrInvalidRate = errors.New("invalid rate")

	// ErrUndeterminedFrameRate is returned when no frame rate could be derived
	// from the stream metadata.
	ErrUndeterminedFrameRate = errors.New("unable to determine frame rate")
)

// Rebase converts value expressed in ticks of from into ticks of to.
//
// The arithmetic is value*from.Num*to.Den/from.Den/to.Num with both
// multiplications performed before either division and integer truncation at
// each division. The order matters for reproducibility and must not change.
func Rebase(value int64, from, to Rational) (int64, error) {
	if !from.Valid() {
		return 0, fmt.Errorf("%w: source %v", ErrInvalidRate, from)
	}
	if !to.Valid() {
		return 0, fmt.Errorf("%w: target %v", ErrInvalidRate, to)
	}
	return rebase(value, from, to), nil
}

func rebase(value int64, from, to Rational) int64 {
	return value * from.Num * to.Den / from.Den / to.Num
}

// FrameDuration returns the length of one video frame in audio ticks,
// computed as frameRate.Den*audioTimeBase.Den/frameRate.Num/audioTimeBase.Num.
// 25/1 fps against a 1/48000 audio time base gives 1920.
func FrameDuration(frameRate, audioTimeBase Rational) (int64, error) {
	if !frameRate.Valid() {
		return 0, fmt.Errorf("%w: frame rate %v", ErrInvalidRate, frameRate)
	}
	if !audioTimeBase.Valid() {
		return 0, fmt.Errorf("%w: audio time base %v", ErrInvalidRate, audioTimeBase)
	}
	return frameRate.Den * audioTimeBase.Den / frameRate.Num / audioTimeBase.Num, nil
}

// Converter rebases timestamps between two time bases validated once up
// front.
type Converter struct {
	from Rational
	to   Rational
}

func NewConverter(from, to Rational) (*Converter, error) {
	if !from.Valid() {
		return nil, fmt.Errorf("%w: source time base %v", ErrInvalidRate, from)
	}
	if !to.Valid() {
		return nil, fmt.Errorf("%w: target time base %v", ErrInvalidRate, to)
	}
	return &Converter{from: from, to: to}, nil
}

// Convert behaves like Rebase.
func (c *Converter) Convert(ts int64) int64 {
	return rebase(ts, c.from, c.to)
}

// Milliseconds converts a source timestamp to milliseconds, for logging.
func (c *Converter) Milliseconds(ts int64) int64 {
	return ts * c.from.Num * 1000 / c.from.Den
}
