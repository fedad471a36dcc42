package timebase

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Rational represents a rational number (numerator/denominator).
// Used both for time bases (seconds per tick) and frame rates (frames per second).
type Rational struct {
	Num int64 // Numerator
	Den int64 // Denominator
}

// NewRational creates a new rational number
func NewRational(num, den int64) Rational {
	if den == 0 {
		den = 1
	}
	return Rational{Num: num, Den: den}
}

// Valid reports whether the rational can take part in rebasing.
// A zero numerator means the value is undetermined.
func (r Rational) Valid() bool {
	return r.Num > 0 && r.Den > 0
}

// Float64 returns the floating point representation
func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Invert returns the inverted rational (den/num)
func (r Rational) Invert() Rational {
	return Rational{Num: r.Den, Den: r.Num}
}

// Ceil returns the smallest integer not less than the rational.
// 30000/1001 yields 30, which is the nominal frame count of a timecode second.
func (r Rational) Ceil() int64 {
	if r.Den <= 0 {
		return 0
	}
	return (r.Num + r.Den - 1) / r.Den
}

// Reduce divides numerator and denominator by their greatest common divisor.
func (r Rational) Reduce() Rational {
	a, b := r.Num, r.Den
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	if a <= 1 {
		return r
	}
	return Rational{Num: r.Num / a, Den: r.Den / a}
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// MarshalText renders the rational as "num/den".
func (r Rational) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText accepts anything ParseRational does.
func (r *Rational) UnmarshalText(text []byte) error {
	parsed, err := ParseRational(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRational parses "25/1", "30000:1001" or a bare integer such as "25".
func ParseRational(s string) (Rational, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Rational{}, errors.New("empty rational")
	}

	sep := strings.IndexAny(s, "/:")
	if sep < 0 {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Rational{}, fmt.Errorf("invalid rational %q: %w", s, err)
		}
		return Rational{Num: n, Den: 1}, nil
	}

	num, err := strconv.ParseInt(s[:sep], 10, 64)
	if err != nil {
		return Rational{}, fmt.Errorf("invalid rational numerator %q: %w", s, err)
	}
	den, err := strconv.ParseInt(s[sep+1:], 10, 64)
	if err != nil {
		return Rational{}, fmt.Errorf("invalid rational denominator %q: %w", s, err)
	}
	return Rational{Num: num, Den: den}, nil
}

// Common time bases
var (
	TimeBase90kHz = Rational{Num: 1, Den: 90000} // MPEG / RTP video
	TimeBase48kHz = Rational{Num: 1, Den: 48000} // 48kHz audio
	TimeBase44kHz = Rational{Num: 1, Den: 44100} // 44.1kHz audio

	FrameRate24 = Rational{Num: 24, Den: 1}
	FrameRate25 = Rational{Num: 25, Den: 1} // PAL
	FrameRate30 = Rational{Num: 30, Den: 1}

	FrameRate23_976 = Rational{Num: 24000, Den: 1001}
	FrameRate29_97  = Rational{Num: 30000, Den: 1001}
)
