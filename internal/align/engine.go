// Package align matches video frames against the timecode event table and
// reports where the timecode sequence breaks.
package align

import (
	"fmt"

	"github.com/zsiec/ltcsplit/internal/logger"
	"github.com/zsiec/ltcsplit/internal/tctable"
	"github.com/zsiec/ltcsplit/internal/timebase"
	"github.com/zsiec/ltcsplit/internal/timecode"
)

// Lookup is the read side of the timecode event table.
type Lookup interface {
	UpperBound(sample int64) (tctable.Event, bool)
}

// Observation is one video frame placed on the audio sample timeline.
type Observation struct {
	PTS    int64 // video time base
	Sample int64 // PTS rebased into the audio time base
}

// State is the running continuity state of a pass.
type State struct {
	CurrentExpectedFrame uint64
	CurrentObservedFrame uint64
	TotalVideoFramesSeen uint64
	Seeded               bool
}

// CutDecision marks a video frame at which the timecode did not continue
// from the previous reading.
type CutDecision struct {
	VideoFrameIndex uint64 `json:"video_frame_index"`
	PTS             int64  `json:"pts"`
	Sample          int64  `json:"sample"`
	ExpectedFrame   uint64 `json:"expected_frame"`
	FromFrameNumber uint64 `json:"from_frame_number"`
	ToFrameNumber   uint64 `json:"to_frame_number"`
	DeltaFrames     int64  `json:"delta_frames"`
	DeltaTime       string `json:"delta_time"`
}

// Line renders the cut as a report line.
//
//	list:    <expected> <observed> <delta>
//	verbose: <expected> -> <observed> (<delta> <±HH:MM:SS.FF>)
func (c CutDecision) Line(verbose bool) string {
	if verbose {
		return fmt.Sprintf("%d -> %d (%d %s)", c.ExpectedFrame, c.ToFrameNumber, c.DeltaFrames, c.DeltaTime)
	}
	return fmt.Sprintf("%d %d %d", c.ExpectedFrame, c.ToFrameNumber, c.DeltaFrames)
}

// Engine classifies consecutive video frames as continuous or not.
// It is single-use: one Engine per pass, observations in arrival order.
type Engine struct {
	table         Lookup
	frameRate     timebase.Rational
	frameDuration int64
	logger        logger.Logger

	state     State
	cuts      []CutDecision
	ambiguous uint64

	seedIndex   uint64
	seedReading uint64
}

// NewEngine creates an engine reading from table. frameDuration is the video
// frame length in audio samples and must be positive.
func NewEngine(table Lookup, frameRate timebase.Rational, frameDuration int64, log logger.Logger) (*Engine, error) {
	if table == nil {
		return nil, fmt.Errorf("alignment engine requires a timecode table")
	}
	if !frameRate.Valid() {
		return nil, fmt.Errorf("%w: frame rate %v", timebase.ErrInvalidRate, frameRate)
	}
	if frameDuration <= 0 {
		return nil, fmt.Errorf("%w: frame duration %d", timebase.ErrInvalidRate, frameDuration)
	}
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &Engine{
		table:         table,
		frameRate:     frameRate,
		frameDuration: frameDuration,
		logger:        log.WithField("component", "align"),
	}, nil
}

// Reading returns the frame number of the LTC frame that ended inside
// (sample-frameDuration, sample]. The reading is only trusted when the next
// table entry carries exactly the following frame number; any other bracket
// is treated as ambiguous.
func (e *Engine) Reading(sample int64) (uint64, bool) {
	lb, ok := e.table.UpperBound(sample)
	if !ok {
		return 0, false
	}
	ub, ok := e.table.UpperBound(sample - e.frameDuration)
	if !ok {
		return 0, false
	}
	if lb.FrameNumber != ub.FrameNumber+1 {
		return 0, false
	}
	return ub.FrameNumber, true
}

// Observe processes the next video frame. It returns a decision only when the
// frame breaks the timecode sequence.
func (e *Engine) Observe(obs Observation) (*CutDecision, bool) {
	index := e.state.TotalVideoFramesSeen
	defer func() {
		e.state.CurrentExpectedFrame++
		e.state.TotalVideoFramesSeen++
	}()

	reading, ok := e.Reading(obs.Sample)
	if !ok {
		e.ambiguous++
		return nil, false
	}

	if !e.state.Seeded {
		e.state.Seeded = true
		e.state.CurrentExpectedFrame = reading
		e.state.CurrentObservedFrame = reading
		e.seedIndex = index
		e.seedReading = reading
		e.logger.WithFields(map[string]interface{}{
			"video_frame": index,
			"timecode":    timecode.FromFrameNumber(reading, e.frameRate).String(),
		}).Debug("Timecode locked")
		return nil, false
	}

	var cut *CutDecision
	if reading != e.state.CurrentExpectedFrame {
		delta := int64(reading) - int64(e.state.CurrentObservedFrame)
		cut = &CutDecision{
			VideoFrameIndex: index,
			PTS:             obs.PTS,
			Sample:          obs.Sample,
			ExpectedFrame:   e.state.CurrentExpectedFrame,
			FromFrameNumber: e.state.CurrentObservedFrame,
			ToFrameNumber:   reading,
			DeltaFrames:     delta,
			DeltaTime:       timecode.FormatOffset(delta, e.frameRate),
		}
		e.cuts = append(e.cuts, *cut)
		e.state.CurrentExpectedFrame = reading

		e.logger.WithFields(map[string]interface{}{
			"video_frame": index,
			"expected":    cut.ExpectedFrame,
			"observed":    reading,
			"delta":       delta,
		}).Debug("Timecode discontinuity")
	}
	e.state.CurrentObservedFrame = reading

	return cut, cut != nil
}

// State returns a snapshot of the continuity state.
func (e *Engine) State() State {
	return e.state
}

// Cuts returns the decisions emitted so far, in video frame order.
func (e *Engine) Cuts() []CutDecision {
	out := make([]CutDecision, len(e.cuts))
	copy(out, e.cuts)
	return out
}

// AmbiguousFrames counts frames for which no stable reading was available.
func (e *Engine) AmbiguousFrames() uint64 {
	return e.ambiguous
}

// Segments splits the frames seen so far at every cut.
func (e *Engine) Segments() []Segment {
	var start uint64
	if e.state.Seeded && e.seedReading >= e.seedIndex {
		start = e.seedReading - e.seedIndex
	}
	return BuildSegments(e.cuts, e.state.TotalVideoFramesSeen, start)
}
