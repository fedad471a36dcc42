// Package pipeline runs the two-pass analysis: pass one builds the timecode
// table from the audio track, pass two replays the video frames through the
// alignment engine.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/time/rate"

	"github.com/zsiec/ltcsplit/internal/align"
	"github.com/zsiec/ltcsplit/internal/audio"
	apperrors "github.com/zsiec/ltcsplit/internal/errors"
	"github.com/zsiec/ltcsplit/internal/logger"
	"github.com/zsiec/ltcsplit/internal/ltc"
	"github.com/zsiec/ltcsplit/internal/media"
	"github.com/zsiec/ltcsplit/internal/metrics"
	"github.com/zsiec/ltcsplit/internal/tctable"
	"github.com/zsiec/ltcsplit/internal/timebase"
)

// Phase is the analyzer's position in the run.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseScanning
	PhaseSorting
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseScanning:
		return "scanning"
	case PhaseSorting:
		return "sorting"
	case PhaseDone:
		return "done"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Options tunes one analysis.
type Options struct {
	// AudioChannel selects the channel carrying LTC.
	AudioChannel int
	// LTCRate is the timecode frame rate when it differs from the video
	// rate; zero means the same.
	LTCRate timebase.Rational
	// ProgressInterval throttles progress logging; zero disables it.
	ProgressInterval time.Duration
}

// Result is everything a run produced.
type Result struct {
	RunID           string              `json:"run_id"`
	Input           string              `json:"input"`
	FrameRate       timebase.Rational   `json:"frame_rate"`
	RateSource      timebase.RateSource `json:"rate_source"`
	AudioTimeBase   timebase.Rational   `json:"audio_time_base"`
	FrameDuration   int64               `json:"frame_duration"`
	Table           *tctable.Table      `json:"-"`
	Cuts            []align.CutDecision `json:"cuts"`
	Segments        []align.Segment     `json:"segments"`
	ScannedFrames   uint64              `json:"scanned_frames"`
	VideoFrames     uint64              `json:"video_frames"`
	AmbiguousFrames uint64              `json:"ambiguous_frames"`
	LTCFrames       int                 `json:"ltc_frames"`
	Elapsed         time.Duration       `json:"elapsed_ns"`
}

// Analyzer drives one source through both passes.
type Analyzer struct {
	opts    Options
	logger  logger.Logger
	metrics *metrics.Recorder
	phase   Phase
}

// NewAnalyzer creates an analyzer. rec may be nil.
func NewAnalyzer(opts Options, log logger.Logger, rec *metrics.Recorder) *Analyzer {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &Analyzer{
		opts:    opts,
		logger:  log.WithField("component", "pipeline"),
		metrics: rec,
	}
}

// Phase reports how far the analyzer got.
func (a *Analyzer) Phase() Phase {
	return a.phase
}

// run carries the per-run derived rates.
type run struct {
	result   *Result
	sampleTB timebase.Rational
	videoTS  *timebase.Converter // video ticks to samples
	audioTS  *timebase.Converter // audio ticks to samples
	progress *rate.Sometimes
}

// Run analyzes src. The caller keeps ownership of src.
func (a *Analyzer) Run(ctx context.Context, src media.Source, runID, input string) (*Result, error) {
	started := time.Now()
	log := a.logger.WithFields(map[string]interface{}{"run_id": runID, "input": input})

	r, err := a.prepare(src, runID, input)
	if err != nil {
		return nil, err
	}
	if a.opts.ProgressInterval > 0 {
		r.progress = &rate.Sometimes{Interval: a.opts.ProgressInterval}
	}
	a.metrics.SetRunInfo(runID, input, r.result.FrameRate.String())

	log.WithFields(map[string]interface{}{
		"frame_rate":     r.result.FrameRate.String(),
		"rate_source":    string(r.result.RateSource),
		"audio_tb":       r.sampleTB.String(),
		"frame_duration": r.result.FrameDuration,
		"channel":        a.opts.AudioChannel,
	}).Info("Starting analysis")

	a.phase = PhaseScanning
	passStart := time.Now()
	if err := a.scan(ctx, src, r, log); err != nil {
		return nil, err
	}
	a.metrics.ObservePass(metrics.PassScan, time.Since(passStart))
	a.metrics.SetTableEntries(r.result.Table.Len())
	log.WithFields(map[string]interface{}{
		"video_frames":  r.result.ScannedFrames,
		"ltc_frames":    r.result.LTCFrames,
		"table_entries": r.result.Table.Len(),
	}).Info("Scan complete")

	if err := src.Rewind(ctx, media.ReadVideoOnly); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeIO, "Unable to rewind %q", input)
	}

	a.phase = PhaseSorting
	passStart = time.Now()
	if err := a.sort(ctx, src, r, log); err != nil {
		return nil, err
	}
	a.metrics.ObservePass(metrics.PassSort, time.Since(passStart))

	if r.result.VideoFrames != r.result.ScannedFrames {
		log.WithFields(map[string]interface{}{
			"scanned": r.result.ScannedFrames,
			"sorted":  r.result.VideoFrames,
		}).Warn("Video frame count differs between passes")
	}

	a.phase = PhaseDone
	r.result.Elapsed = time.Since(started)
	log.WithFields(map[string]interface{}{
		"cuts":      len(r.result.Cuts),
		"ambiguous": r.result.AmbiguousFrames,
		"elapsed":   r.result.Elapsed.String(),
	}).Info("Analysis complete")
	return r.result, nil
}

func (a *Analyzer) prepare(src media.Source, runID, input string) (*run, error) {
	video, aud := src.Video(), src.Audio()

	frameRate, rateSource, err := timebase.DiscoverFrameRate(video.Rates())
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInvalidRate, "Unable to determine the frame rate of %q", input)
	}

	sampleTB := aud.TimeBase
	if aud.SampleRate > 0 {
		sampleTB = timebase.Rational{Num: 1, Den: int64(aud.SampleRate)}
	}
	frameDuration, err := timebase.FrameDuration(frameRate, sampleTB)
	if err != nil || frameDuration <= 0 {
		return nil, apperrors.New(apperrors.ErrorTypeInvalidRate,
			"Frame rate %v and audio time base %v give no usable frame duration", frameRate, sampleTB)
	}
	videoTS, err := timebase.NewConverter(video.TimeBase, sampleTB)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInvalidRate, "Invalid video time base in %q", input)
	}
	audioTS, err := timebase.NewConverter(aud.TimeBase, sampleTB)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInvalidRate, "Invalid audio time base in %q", input)
	}

	if a.opts.AudioChannel >= aud.Channels {
		return nil, apperrors.New(apperrors.ErrorTypeConfiguration,
			"Audio channel %d requested but the stream has %d", a.opts.AudioChannel, aud.Channels).
			WithDetails(map[string]interface{}{"stream": aud.Index, "codec": aud.Codec})
	}

	return &run{
		result: &Result{
			RunID:         runID,
			Input:         input,
			FrameRate:     frameRate,
			RateSource:    rateSource,
			AudioTimeBase: sampleTB,
			FrameDuration: frameDuration,
			Table:         tctable.New(),
		},
		sampleTB: sampleTB,
		videoTS:  videoTS,
		audioTS:  audioTS,
	}, nil
}

// samplesPerFrame is the LTC frame length used to seed the decoder.
func (a *Analyzer) samplesPerFrame(r *run) float64 {
	ltcRate := r.result.FrameRate
	if a.opts.LTCRate.Valid() {
		ltcRate = a.opts.LTCRate
	}
	return float64(r.sampleTB.Den) * float64(ltcRate.Den) / (float64(r.sampleTB.Num) * float64(ltcRate.Num))
}

func (a *Analyzer) scan(ctx context.Context, src media.Source, r *run, log logger.Logger) error {
	dec, err := src.AudioDecoder()
	if err != nil {
		return err
	}
	ltcDec := ltc.NewDecoder(a.samplesPerFrame(r))
	var observations []align.Observation

	for {
		pkt, err := src.ReadPacket(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		a.metrics.IncPacket(pkt.Kind.String(), metrics.PassScan)

		switch pkt.Kind {
		case media.KindVideo:
			observations = append(observations, align.Observation{PTS: pkt.PTS, Sample: r.videoTS.Convert(pkt.PTS)})
			a.metrics.IncVideoFrame(metrics.PassScan)

		case media.KindAudio:
			if err := a.feedAudio(dec, ltcDec, pkt, r); err != nil {
				return err
			}
		}

		if r.progress != nil && len(observations) > 0 {
			last := observations[len(observations)-1]
			r.progress.Do(func() {
				log.WithFields(map[string]interface{}{
					"video_frames": len(observations),
					"ltc_frames":   r.result.LTCFrames,
					"position_ms":  r.videoTS.Milliseconds(last.PTS),
				}).Info("Scanning")
			})
		}
	}

	r.result.ScannedFrames = uint64(len(observations))
	return nil
}

func (a *Analyzer) feedAudio(dec media.AudioDecoder, ltcDec *ltc.Decoder, pkt *media.Packet, r *run) error {
	buf, err := dec.Decode(pkt)
	if err != nil {
		a.metrics.IncDecodeError()
		return apperrors.Wrap(err, apperrors.ErrorTypeDecode, "Audio decode failed at timestamp %d", pkt.PTS)
	}

	samples, err := audio.ToU8(buf, a.opts.AudioChannel)
	if err != nil {
		if errors.Is(err, audio.ErrUnsupportedFormat) {
			return apperrors.Wrap(err, apperrors.ErrorTypeUnsupportedFormat, "Unsupported sample format %v", buf.Format)
		}
		return apperrors.Wrap(err, apperrors.ErrorTypeDecode, "Unable to convert audio samples")
	}

	ltcDec.Feed(samples, r.audioTS.Convert(pkt.PTS))
	decoded := 0
	for frame := range ltcDec.Poll() {
		r.result.Table.Append(tctable.Event{
			EndSample:   frame.End,
			FrameNumber: frame.Timecode.FrameNumber(r.result.FrameRate, a.opts.LTCRate),
		})
		decoded++
	}
	r.result.LTCFrames += decoded
	a.metrics.AddLTCFrames(decoded)
	return nil
}

func (a *Analyzer) sort(ctx context.Context, src media.Source, r *run, log logger.Logger) error {
	engine, err := align.NewEngine(r.result.Table, r.result.FrameRate, r.result.FrameDuration, log)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInvalidRate, "Unable to start alignment")
	}

	for {
		pkt, err := src.ReadPacket(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if pkt.Kind != media.KindVideo {
			continue
		}
		a.metrics.IncPacket(pkt.Kind.String(), metrics.PassSort)
		a.metrics.IncVideoFrame(metrics.PassSort)

		obs := align.Observation{PTS: pkt.PTS, Sample: r.videoTS.Convert(pkt.PTS)}
		if _, cut := engine.Observe(obs); cut {
			a.metrics.IncCut()
		}

		if r.progress != nil {
			r.progress.Do(func() {
				state := engine.State()
				log.WithFields(map[string]interface{}{
					"video_frames": state.TotalVideoFramesSeen,
					"cuts":         len(engine.Cuts()),
					"position_ms":  r.videoTS.Milliseconds(pkt.PTS),
				}).Info("Sorting")
			})
		}
	}

	r.result.Cuts = engine.Cuts()
	r.result.Segments = engine.Segments()
	r.result.VideoFrames = engine.State().TotalVideoFramesSeen
	r.result.AmbiguousFrames = engine.AmbiguousFrames()
	a.metrics.SetAmbiguousFrames(r.result.AmbiguousFrames)
	return nil
}
