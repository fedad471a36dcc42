package align

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/ltcsplit/internal/tctable"
	"github.com/zsiec/ltcsplit/internal/timebase"
)

const pal48k = 1920

// continuousTable returns events for count LTC frames aligned to the video
// grid, numbered first, first+1, ...
func continuousTable(first uint64, count int) *tctable.Table {
	table := tctable.New()
	for i := 0; i < count; i++ {
		table.Append(tctable.Event{EndSample: int64(i+1) * pal48k, FrameNumber: first + uint64(i)})
	}
	return table
}

func newEngine(t *testing.T, table Lookup) *Engine {
	t.Helper()
	e, err := NewEngine(table, timebase.FrameRate25, pal48k, testLogger())
	require.NoError(t, err)
	return e
}

func observeRun(e *Engine, frames int) []CutDecision {
	var cuts []CutDecision
	for i := 0; i < frames; i++ {
		if cut, ok := e.Observe(Observation{PTS: int64(i) * 3600, Sample: int64(i) * pal48k}); ok {
			cuts = append(cuts, *cut)
		}
	}
	return cuts
}

func TestNewEngineValidation(t *testing.T) {
	_, err := NewEngine(nil, timebase.FrameRate25, pal48k, nil)
	assert.Error(t, err)

	_, err = NewEngine(tctable.New(), timebase.Rational{}, pal48k, nil)
	assert.ErrorIs(t, err, timebase.ErrInvalidRate)

	_, err = NewEngine(tctable.New(), timebase.FrameRate25, 0, nil)
	assert.ErrorIs(t, err, timebase.ErrInvalidRate)

	e, err := NewEngine(tctable.New(), timebase.FrameRate25, pal48k, nil)
	require.NoError(t, err)
	assert.NotNil(t, e)
}

func TestThreeFrameScenario(t *testing.T) {
	table := tctable.New()
	table.Append(tctable.Event{EndSample: 1920, FrameNumber: 1})
	table.Append(tctable.Event{EndSample: 3840, FrameNumber: 2})
	table.Append(tctable.Event{EndSample: 5760, FrameNumber: 2})

	e := newEngine(t, table)

	_, ok := e.Reading(0)
	assert.False(t, ok, "frame 0 has no LTC frame ending inside its window")
	_, cut := e.Observe(Observation{Sample: 0})
	assert.False(t, cut)
	assert.False(t, e.State().Seeded)

	reading, ok := e.Reading(1920)
	require.True(t, ok)
	assert.Equal(t, uint64(1), reading)
	_, cut = e.Observe(Observation{Sample: 1920})
	assert.False(t, cut, "first stable reading only seeds")
	assert.True(t, e.State().Seeded)
	assert.Equal(t, uint64(1), e.State().CurrentObservedFrame)

	_, ok = e.Reading(3840)
	assert.False(t, ok, "repeated frame number fails the bracket")
	_, cut = e.Observe(Observation{Sample: 3840})
	assert.False(t, cut)

	state := e.State()
	assert.Equal(t, uint64(3), state.TotalVideoFramesSeen)
	assert.Equal(t, uint64(1), state.CurrentObservedFrame)
	assert.Equal(t, uint64(3), state.CurrentExpectedFrame)
	assert.Equal(t, uint64(2), e.AmbiguousFrames())
	assert.Empty(t, e.Cuts())
}

func TestContinuousRunHasNoCuts(t *testing.T) {
	e := newEngine(t, continuousTable(90000, 500))
	cuts := observeRun(e, 500)

	assert.Empty(t, cuts)
	state := e.State()
	assert.Equal(t, uint64(500), state.TotalVideoFramesSeen)
	assert.Equal(t, uint64(90000+498), state.CurrentObservedFrame)
	assert.Equal(t, uint64(90000+499), state.CurrentExpectedFrame)
}

// scriptedLookup answers bracket queries from a fixed map, letting a test
// dictate the reading of every video frame directly.
type scriptedLookup map[int64]tctable.Event

func (s scriptedLookup) UpperBound(sample int64) (tctable.Event, bool) {
	ev, ok := s[sample]
	return ev, ok
}

func TestSingleDiscontinuity(t *testing.T) {
	tests := []struct {
		name  string
		jumpM uint64
		at    int
	}{
		{name: "Forward jump", jumpM: 5000, at: 50},
		{name: "Backward jump", jumpM: 200, at: 50},
		{name: "Skip one frame", jumpM: 1051, at: 50},
		{name: "Jump right after seeding", jumpM: 7, at: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Frame j reads 1000+j until tt.at, then M, M+1, ...
			// Samples drift by one per frame so every query is distinct.
			lookup := scriptedLookup{}
			sample := func(j int) int64 { return int64(j)*pal48k + int64(j) }
			for j := 0; j < 100; j++ {
				r := uint64(1000 + j)
				if j >= tt.at {
					r = tt.jumpM + uint64(j-tt.at)
				}
				lookup[sample(j)] = tctable.Event{FrameNumber: r + 1}
				lookup[sample(j)-pal48k] = tctable.Event{FrameNumber: r}
			}
			jumpN := uint64(1000 + tt.at - 1)

			e := newEngine(t, lookup)
			var cuts []CutDecision
			for j := 0; j < 100; j++ {
				if cut, ok := e.Observe(Observation{Sample: sample(j)}); ok {
					cuts = append(cuts, *cut)
				}
			}

			require.Len(t, cuts, 1)
			cut := cuts[0]
			assert.Equal(t, uint64(tt.at), cut.VideoFrameIndex)
			assert.Equal(t, jumpN, cut.FromFrameNumber)
			assert.Equal(t, tt.jumpM, cut.ToFrameNumber)
			assert.Equal(t, jumpN+1, cut.ExpectedFrame)
			assert.Equal(t, int64(tt.jumpM)-int64(jumpN), cut.DeltaFrames)
			assert.Zero(t, e.AmbiguousFrames())
		})
	}
}

func TestTableDiscontinuity(t *testing.T) {
	// LTC runs 1000..1049, then 5000, 5001, ... on the video grid.
	table := tctable.New()
	for i := 0; i < 200; i++ {
		fn := uint64(1000 + i)
		if i >= 50 {
			fn = uint64(5000 + i - 50)
		}
		table.Append(tctable.Event{EndSample: int64(i+1) * pal48k, FrameNumber: fn})
	}

	e := newEngine(t, table)
	cuts := observeRun(e, 200)

	// The window straddling the jump fails the bracket, so the cut lands on
	// the next frame and is measured from the last stable reading.
	require.Len(t, cuts, 1)
	cut := cuts[0]
	assert.Equal(t, uint64(51), cut.VideoFrameIndex)
	assert.Equal(t, uint64(1050), cut.ExpectedFrame)
	assert.Equal(t, uint64(1048), cut.FromFrameNumber)
	assert.Equal(t, uint64(5000), cut.ToFrameNumber)
	assert.Equal(t, int64(5000-1048), cut.DeltaFrames)
	assert.Equal(t, int64(51)*pal48k, cut.Sample)
	assert.Equal(t, int64(51)*3600, cut.PTS)
	assert.Equal(t, uint64(2), e.AmbiguousFrames())
}

func TestAmbiguousFramesDoNotCut(t *testing.T) {
	table := continuousTable(0, 50)
	// Blank out a stretch of LTC: frames 20..24 are missing.
	events := table.Events()
	holed := tctable.New()
	for _, ev := range events {
		if ev.FrameNumber >= 20 && ev.FrameNumber < 25 {
			continue
		}
		holed.Append(ev)
	}

	e := newEngine(t, holed)
	var cuts []CutDecision
	for i := 0; i < 50; i++ {
		before := e.State()
		cut, ok := e.Observe(Observation{Sample: int64(i) * pal48k})
		after := e.State()
		if ok {
			cuts = append(cuts, *cut)
		}

		assert.Equal(t, before.TotalVideoFramesSeen+1, after.TotalVideoFramesSeen)
		if _, stable := e.Reading(int64(i) * pal48k); !stable {
			assert.Equal(t, before.CurrentObservedFrame, after.CurrentObservedFrame)
		}
	}

	assert.Empty(t, cuts, "the timecode resumes where it would have been")
	assert.Greater(t, e.AmbiguousFrames(), uint64(5))
}

func TestResyncAfterCut(t *testing.T) {
	table := tctable.New()
	for i := 0; i < 30; i++ {
		fn := uint64(i)
		if i >= 10 {
			fn = uint64(100 + i)
		}
		if i >= 20 {
			fn = uint64(50 + i)
		}
		table.Append(tctable.Event{EndSample: int64(i+1) * pal48k, FrameNumber: fn})
	}

	e := newEngine(t, table)
	cuts := observeRun(e, 30)

	require.Len(t, cuts, 2)
	assert.Equal(t, uint64(11), cuts[0].VideoFrameIndex)
	assert.Equal(t, int64(102), cuts[0].DeltaFrames)
	assert.Equal(t, "+00:00:04.02", cuts[0].DeltaTime)
	assert.Equal(t, uint64(21), cuts[1].VideoFrameIndex)
	assert.Equal(t, uint64(120), cuts[1].ExpectedFrame)
	assert.Equal(t, int64(-48), cuts[1].DeltaFrames)
	assert.Equal(t, "-00:00:01.23", cuts[1].DeltaTime)

	segments := e.Segments()
	require.Len(t, segments, 3)
	assert.Equal(t, Segment{Index: 0, FirstVideoFrame: 0, LastVideoFrame: 10, StartFrameNumber: 0}, segments[0])
	assert.Equal(t, Segment{Index: 1, FirstVideoFrame: 11, LastVideoFrame: 20, StartFrameNumber: 110}, segments[1])
	assert.Equal(t, Segment{Index: 2, FirstVideoFrame: 21, LastVideoFrame: 29, StartFrameNumber: 70}, segments[2])
}

func TestCutLine(t *testing.T) {
	cut := CutDecision{ExpectedFrame: 1050, ToFrameNumber: 5000, DeltaFrames: 3951, DeltaTime: "+00:02:38.01"}
	assert.Equal(t, "1050 5000 3951", cut.Line(false))
	assert.Equal(t, "1050 -> 5000 (3951 +00:02:38.01)", cut.Line(true))
}
