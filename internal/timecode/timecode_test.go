package timecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/ltcsplit/internal/timebase"
)

func TestTimecodeString(t *testing.T) {
	assert.Equal(t, "01:02:03:04", Timecode{Hours: 1, Minutes: 2, Seconds: 3, Frames: 4}.String())
	assert.Equal(t, "10:00:00;02", Timecode{Hours: 10, Frames: 2, DropFrame: true}.String())
}

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		expected Timecode
		wantErr  bool
	}{
		{input: "01:02:03:04", expected: Timecode{Hours: 1, Minutes: 2, Seconds: 3, Frames: 4}},
		{input: "10:00:00;02", expected: Timecode{Hours: 10, Frames: 2, DropFrame: true}},
		{input: "00:00:10.12", expected: Timecode{Seconds: 10, Frames: 12}},
		{input: "0:00:00:00", wantErr: true},
		{input: "00-00-00-00", wantErr: true},
		{input: "00:61:00:00", wantErr: true},
		{input: "aa:00:00:00", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFrameNumber(t *testing.T) {
	tests := []struct {
		name     string
		tc       Timecode
		fps      timebase.Rational
		override timebase.Rational
		expected uint64
	}{
		{
			name:     "Frames only",
			tc:       Timecode{Frames: 7},
			fps:      timebase.FrameRate25,
			expected: 7,
		},
		{
			name:     "One hour at 25",
			tc:       Timecode{Hours: 1, Minutes: 0, Seconds: 0, Frames: 0},
			fps:      timebase.FrameRate25,
			expected: 90000,
		},
		{
			name:     "Mixed fields at 25",
			tc:       Timecode{Hours: 0, Minutes: 1, Seconds: 2, Frames: 3},
			fps:      timebase.FrameRate25,
			expected: 25*62 + 3,
		},
		{
			name:     "NTSC truncates time of day",
			tc:       Timecode{Seconds: 1},
			fps:      timebase.FrameRate29_97,
			expected: 29,
		},
		{
			name:     "50p video with 25 fps LTC doubles the frame field",
			tc:       Timecode{Seconds: 1, Frames: 12},
			fps:      timebase.Rational{Num: 50, Den: 1},
			override: timebase.FrameRate25,
			expected: 50 + 24,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.tc.FrameNumber(tt.fps, tt.override))
		})
	}
}

func TestFromFrameNumber(t *testing.T) {
	tc := Timecode{Hours: 10, Minutes: 59, Seconds: 59, Frames: 24}
	n := tc.FrameNumber(timebase.FrameRate25, timebase.Rational{})
	assert.Equal(t, tc, FromFrameNumber(n, timebase.FrameRate25))
	assert.Equal(t, Timecode{}, FromFrameNumber(5, timebase.Rational{}))
}

func TestFormatOffset(t *testing.T) {
	tests := []struct {
		delta    int64
		fps      timebase.Rational
		expected string
	}{
		{delta: 0, fps: timebase.FrameRate25, expected: "+00:00:00.00"},
		{delta: 3, fps: timebase.FrameRate25, expected: "+00:00:00.03"},
		{delta: -26, fps: timebase.FrameRate25, expected: "-00:00:01.01"},
		{delta: 90000 + 25*61 + 5, fps: timebase.FrameRate25, expected: "+01:01:01.05"},
		{delta: 31, fps: timebase.FrameRate29_97, expected: "+00:00:01.01"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatOffset(tt.delta, tt.fps))
		})
	}
}
