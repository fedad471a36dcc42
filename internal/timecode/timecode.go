// Package timecode implements SMPTE 12M timecode values and the arithmetic
// that maps them onto a linear frame count.
package timecode

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zsiec/ltcsplit/internal/timebase"
)

// Timecode is an SMPTE 12M time of day: hours, minutes, seconds, frames.
type Timecode struct {
	Hours     int
	Minutes   int
	Seconds   int
	Frames    int
	DropFrame bool
}

// String formats the timecode as HH:MM:SS:FF, or HH:MM:SS;FF for drop frame.
func (tc Timecode) String() string {
	sep := ':'
	if tc.DropFrame {
		sep = ';'
	}
	return fmt.Sprintf("%02d:%02d:%02d%c%02d", tc.Hours, tc.Minutes, tc.Seconds, sep, tc.Frames)
}

// Parse accepts HH:MM:SS:FF, HH:MM:SS;FF and HH:MM:SS.FF.
func Parse(s string) (Timecode, error) {
	s = strings.TrimSpace(s)
	if len(s) != 11 {
		return Timecode{}, fmt.Errorf("invalid timecode %q", s)
	}

	var tc Timecode
	fields := []*int{&tc.Hours, &tc.Minutes, &tc.Seconds, &tc.Frames}
	for i, dst := range fields {
		part := s[i*3 : i*3+2]
		n, err := strconv.Atoi(part)
		if err != nil {
			return Timecode{}, fmt.Errorf("invalid timecode %q: %w", s, err)
		}
		*dst = n

		if i < 3 {
			sep := s[i*3+2]
			switch {
			case i < 2 && sep != ':':
				return Timecode{}, fmt.Errorf("invalid timecode %q: unexpected separator %q", s, sep)
			case i == 2 && sep == ';':
				tc.DropFrame = true
			case i == 2 && sep != ':' && sep != '.':
				return Timecode{}, fmt.Errorf("invalid timecode %q: unexpected separator %q", s, sep)
			}
		}
	}

	if tc.Minutes > 59 || tc.Seconds > 59 || tc.Hours > 23 {
		return Timecode{}, fmt.Errorf("invalid timecode %q: field out of range", s)
	}
	return tc, nil
}

// FrameNumber maps the timecode onto a linear frame count at fps, counted
// from midnight.
//
// With a zero override the frame field is taken at face value:
//
//	frames + fps.Num*(s + m*60 + h*3600)/fps.Den
//
// With an override (the LTC frame rate when it differs from the video rate)
// the frame field is rescaled first:
//
//	frames*fps.Num*o.Den/(o.Num*fps.Den) + fps.Num*(s + m*60 + h*3600)/fps.Den
//
// Integer truncation applies; drop-frame labels are not compensated.
func (tc Timecode) FrameNumber(fps, override timebase.Rational) uint64 {
	if fps.Den == 0 {
		return 0
	}

	seconds := int64(tc.Seconds) + int64(tc.Minutes)*60 + int64(tc.Hours)*3600
	tod := fps.Num * seconds / fps.Den

	frames := int64(tc.Frames)
	if override.Num != 0 && override.Den != 0 {
		frames = frames * fps.Num * override.Den / (override.Num * fps.Den)
	}
	return uint64(frames + tod)
}

// FromFrameNumber is the inverse of FrameNumber for whole-second rates. The
// nominal frame count per second is the rate rounded up.
func FromFrameNumber(n uint64, fps timebase.Rational) Timecode {
	nominal := uint64(fps.Ceil())
	if nominal == 0 {
		return Timecode{}
	}

	frames := n % nominal
	total := n / nominal
	return Timecode{
		Hours:   int(total / 3600 % 24),
		Minutes: int(total / 60 % 60),
		Seconds: int(total % 60),
		Frames:  int(frames),
	}
}

// FormatOffset renders a signed frame delta as ±HH:MM:SS.FF using the
// nominal frame count per second of fps. Hours are not wrapped.
func FormatOffset(delta int64, fps timebase.Rational) string {
	sign := '+'
	if delta < 0 {
		sign = '-'
		delta = -delta
	}

	nominal := fps.Ceil()
	if nominal <= 0 {
		nominal = 1
	}

	frames := delta % nominal
	secs := delta / nominal
	return fmt.Sprintf("%c%02d:%02d:%02d.%02d", sign, secs/3600, secs/60%60, secs%60, frames)
}
