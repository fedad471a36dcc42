package timebase

// StreamRates carries the rate-related metadata a demuxer reports for a video
// stream. Any field may be zero when the container does not provide it.
type StreamRates struct {
	AvgFrameRate  Rational
	TimeBase      Rational
	CodecTimeBase Rational
	TicksPerFrame int64
}

// RateSource names the metadata field a frame rate was derived from.
type RateSource string

const (
	RateSourceAverage   RateSource = "avg_frame_rate"
	RateSourceTimeBase  RateSource = "time_base"
	RateSourceCodecBase RateSource = "codec_time_base"
)

// DiscoverFrameRate derives the video frame rate, trying in order the average
// frame rate, the stream time base and finally the codec time base. A time
// base is only trusted when one tick lasts longer than a millisecond
// (Num*1000 > Den); finer bases are container clocks, not frame clocks.
func DiscoverFrameRate(r StreamRates) (Rational, RateSource, error) {
	if r.AvgFrameRate.Num != 0 && r.AvgFrameRate.Den != 0 {
		return r.AvgFrameRate, RateSourceAverage, nil
	}

	if tb := r.TimeBase; tb.Num > 0 && tb.Den > 0 && tb.Num*1000 > tb.Den {
		return Rational{Num: tb.Den, Den: tb.Num}, RateSourceTimeBase, nil
	}

	if tb := r.CodecTimeBase; tb.Num > 0 && tb.Den > 0 && tb.Num*1000 > tb.Den {
		ticks := r.TicksPerFrame
		if ticks < 1 {
			ticks = 1
		}
		return Rational{Num: tb.Den, Den: tb.Num * ticks}, RateSourceCodecBase, nil
	}

	return Rational{}, "", ErrUndeterminedFrameRate
}
