package timebase

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRational(t *testing.T) {
	assert.Equal(t, Rational{Num: 1, Den: 2}, NewRational(1, 2))
	assert.Equal(t, Rational{Num: 5, Den: 1}, NewRational(5, 0), "zero denominator gets corrected to 1")
}

func TestParseRational(t *testing.T) {
	tests := []struct {
		input    string
		expected Rational
		wantErr  bool
	}{
		{input: "25/1", expected: Rational{Num: 25, Den: 1}},
		{input: "30000/1001", expected: Rational{Num: 30000, Den: 1001}},
		{input: "30000:1001", expected: Rational{Num: 30000, Den: 1001}},
		{input: " 25 ", expected: Rational{Num: 25, Den: 1}},
		{input: "0/0", expected: Rational{Num: 0, Den: 0}},
		{input: "", wantErr: true},
		{input: "abc", wantErr: true},
		{input: "25/x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRational(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestRationalHelpers(t *testing.T) {
	assert.Equal(t, int64(30), FrameRate29_97.Ceil())
	assert.Equal(t, int64(25), FrameRate25.Ceil())
	assert.Equal(t, int64(24), FrameRate23_976.Ceil())
	assert.Equal(t, "25/1", FrameRate25.String())
	assert.InDelta(t, 29.97, FrameRate29_97.Float64(), 0.001)
	assert.Equal(t, Rational{Num: 48000, Den: 1}, TimeBase48kHz.Invert())
	assert.False(t, Rational{Num: 0, Den: 1}.Valid())
	assert.True(t, FrameRate25.Valid())
	assert.Equal(t, Rational{Num: 30000, Den: 1001}, Rational{Num: 3000000, Den: 100100}.Reduce())
	assert.Equal(t, Rational{Num: 0, Den: 1}, Rational{Num: 0, Den: 1}.Reduce())
}

func TestDiscoverFrameRate(t *testing.T) {
	tests := []struct {
		name     string
		rates    StreamRates
		expected Rational
		source   RateSource
		wantErr  bool
	}{
		{
			name:     "Average frame rate wins",
			rates:    StreamRates{AvgFrameRate: FrameRate25, TimeBase: Rational{Num: 1, Den: 600}},
			expected: FrameRate25,
			source:   RateSourceAverage,
		},
		{
			name: "Falls back to coarse stream time base",
			rates: StreamRates{
				AvgFrameRate:  Rational{Num: 0, Den: 0},
				TimeBase:      Rational{Num: 1, Den: 600},
				CodecTimeBase: Rational{Num: 1, Den: 50},
			},
			expected: Rational{Num: 600, Den: 1},
			source:   RateSourceTimeBase,
		},
		{
			name: "Fine stream time base is skipped for codec time base",
			rates: StreamRates{
				TimeBase:      TimeBase90kHz,
				CodecTimeBase: Rational{Num: 1, Den: 50},
				TicksPerFrame: 2,
			},
			expected: Rational{Num: 50, Den: 2},
			source:   RateSourceCodecBase,
		},
		{
			name:    "Nothing usable",
			rates:   StreamRates{TimeBase: TimeBase90kHz, CodecTimeBase: Rational{Num: 1, Den: 90000}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, source, err := DiscoverFrameRate(tt.rates)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUndeterminedFrameRate)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.source, source)
		})
	}
}

func TestRationalJSON(t *testing.T) {
	type wrapper struct {
		Rate Rational `json:"rate"`
	}

	data, err := json.Marshal(wrapper{Rate: FrameRate29_97})
	require.NoError(t, err)
	assert.JSONEq(t, `{"rate":"30000/1001"}`, string(data))

	var back wrapper
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, FrameRate29_97, back.Rate)

	assert.Error(t, json.Unmarshal([]byte(`{"rate":"fast"}`), &back))
}
