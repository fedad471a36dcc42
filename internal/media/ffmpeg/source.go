package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"time"

	"github.com/zsiec/ltcsplit/internal/audio"
	apperrors "github.com/zsiec/ltcsplit/internal/errors"
	"github.com/zsiec/ltcsplit/internal/media"
	"github.com/zsiec/ltcsplit/internal/timebase"
)

// pcmCodec is what the audio pipe is asked to produce.
const pcmCodec = "pcm_s16le"

// Options configures the subprocess backend.
type Options struct {
	FFmpegPath   string
	FFprobePath  string
	ProbeTimeout time.Duration
	// AudioStream is the index among the file's audio streams.
	AudioStream int
	// ChunkSamples is the number of sample frames per audio packet.
	ChunkSamples int
}

func (o *Options) setDefaults() {
	if o.FFmpegPath == "" {
		o.FFmpegPath = "ffmpeg"
	}
	if o.FFprobePath == "" {
		o.FFprobePath = "ffprobe"
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = 30 * time.Second
	}
	if o.ChunkSamples <= 0 {
		o.ChunkSamples = 4800
	}
}

// Source merges ffprobe's video packet list with PCM read from an ffmpeg
// pipe.
type Source struct {
	opts Options
	path string

	video media.StreamInfo
	audio media.StreamInfo

	videoPackets []videoPacket
	firstKey     int
	vpos         int
	mode         media.ReadMode

	// audioStart is the first audio sample's position in 1/SampleRate.
	audioStart int64
	openAudio  func(ctx context.Context) (io.ReadCloser, error)
	pipe       io.ReadCloser
	cancel     context.CancelFunc
	pending    *media.Packet
	audioDone  bool
	// audio packets ending at or before this PTS are dropped after a rewind
	skipBefore  int64
	samplesRead int64
}

var _ media.Source = (*Source)(nil)

// Open probes path and lists its video packets.
func Open(ctx context.Context, path string, opts Options) (*Source, error) {
	opts.setDefaults()
	s := &Source{opts: opts, path: path}
	s.openAudio = s.startAudioPipe

	probe, err := s.probeStreams(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeMediaOpen, "Unable to open video file %q", path)
	}
	if err := s.selectStreams(probe); err != nil {
		return nil, err
	}

	packets, err := s.listVideoPackets(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeMediaOpen, "Unable to list video packets of %q", path)
	}
	s.setVideoPackets(packets)
	return s, nil
}

func (s *Source) selectStreams(probe *probeOutput) error {
	v, _ := probe.nth("video", 0)
	if v == nil {
		return apperrors.New(apperrors.ErrorTypeMediaOpen, "No video stream found in %q", s.path)
	}
	a, count := probe.nth("audio", s.opts.AudioStream)
	if a == nil {
		return apperrors.New(apperrors.ErrorTypeMediaOpen, "No audio stream %d found in %q (%d present)",
			s.opts.AudioStream, s.path, count)
	}

	s.video = media.StreamInfo{
		Index:         v.Index,
		Kind:          media.KindVideo,
		Codec:         v.CodecName,
		TimeBase:      rate(v.TimeBase),
		AvgFrameRate:  rate(v.AvgFrameRate),
		CodecTimeBase: rate(v.CodecTimeBase),
		TicksPerFrame: v.TicksPerFrame,
	}
	if s.video.TicksPerFrame == 0 {
		s.video.TicksPerFrame = 1
	}

	sampleRate, err := strconv.Atoi(a.SampleRate)
	if err != nil || sampleRate <= 0 {
		return apperrors.New(apperrors.ErrorTypeUnsupportedFormat, "Invalid sample rate %q in %q", a.SampleRate, s.path)
	}
	if a.Channels < 1 {
		return apperrors.New(apperrors.ErrorTypeUnsupportedFormat, "Invalid channel count %d in %q", a.Channels, s.path)
	}
	s.audio = media.StreamInfo{
		Index:        a.Index,
		Kind:         media.KindAudio,
		Codec:        pcmCodec,
		TimeBase:     timebase.Rational{Num: 1, Den: int64(sampleRate)},
		SampleRate:   sampleRate,
		Channels:     a.Channels,
		SampleFormat: audio.FormatS16,
	}

	if a.StartPTS != nil {
		if start, err := timebase.Rebase(*a.StartPTS, rate(a.TimeBase), s.audio.TimeBase); err == nil {
			s.audioStart = start
		}
	}
	return nil
}

func (s *Source) setVideoPackets(packets []videoPacket) {
	s.videoPackets = packets
	s.firstKey = len(packets)
	for i, p := range packets {
		if p.keyframe {
			s.firstKey = i
			break
		}
	}
}

func (s *Source) startAudioPipe(ctx context.Context) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, s.opts.FFmpegPath,
		"-v", "error",
		"-nostdin",
		"-i", s.path,
		"-map", fmt.Sprintf("0:a:%d", s.opts.AudioStream),
		"-vn",
		"-f", "s16le",
		"-acodec", pcmCodec,
		"-",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &process{cmd: cmd, stdout: stdout, stderr: stderr}, nil
}

// process waits for ffmpeg on Close and reports its failure.
type process struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *bytes.Buffer
}

func (p *process) Read(b []byte) (int, error) { return p.stdout.Read(b) }

func (p *process) Close() error {
	p.stdout.Close()
	if err := p.cmd.Wait(); err != nil {
		if msg := bytes.TrimSpace(p.stderr.Bytes()); len(msg) > 0 {
			return fmt.Errorf("ffmpeg: %w: %s", err, msg)
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}

func (s *Source) Video() media.StreamInfo { return s.video }
func (s *Source) Audio() media.StreamInfo { return s.audio }

// ReadPacket returns whichever of the next video packet and the next audio
// chunk comes first; ties go to video.
func (s *Source) ReadPacket(ctx context.Context) (*media.Packet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.mode == media.ReadVideoOnly {
		if s.vpos < len(s.videoPackets) {
			return s.nextVideo(), nil
		}
		return nil, io.EOF
	}
	if err := s.fillAudio(ctx); err != nil {
		return nil, err
	}

	hasVideo := s.vpos < len(s.videoPackets)
	switch {
	case hasVideo && s.pending != nil:
		v := s.videoPackets[s.vpos]
		vtb, atb := s.video.TimeBase, s.audio.TimeBase
		if v.pts*vtb.Num*atb.Den <= s.pending.PTS*atb.Num*vtb.Den {
			return s.nextVideo(), nil
		}
		return s.takeAudio(), nil
	case hasVideo:
		return s.nextVideo(), nil
	case s.pending != nil:
		return s.takeAudio(), nil
	}
	return nil, io.EOF
}

func (s *Source) nextVideo() *media.Packet {
	v := s.videoPackets[s.vpos]
	s.vpos++
	return &media.Packet{Kind: media.KindVideo, PTS: v.pts, Keyframe: v.keyframe}
}

func (s *Source) takeAudio() *media.Packet {
	p := s.pending
	s.pending = nil
	return p
}

// fillAudio reads ahead one audio chunk if none is pending.
func (s *Source) fillAudio(ctx context.Context) error {
	for s.pending == nil && !s.audioDone {
		if s.pipe == nil {
			pipeCtx, cancel := context.WithCancel(context.Background())
			pipe, err := s.openAudio(pipeCtx)
			if err != nil {
				cancel()
				return apperrors.Wrap(err, apperrors.ErrorTypeDecode, "Unable to start audio decoding of %q", s.path)
			}
			s.pipe, s.cancel = pipe, cancel
		}

		frameBytes := s.audio.Channels * s.audio.SampleFormat.BytesPerSample()
		buf := make([]byte, s.opts.ChunkSamples*frameBytes)
		n, err := io.ReadFull(s.pipe, buf)
		n -= n % frameBytes

		if n > 0 {
			pts := s.audioStart + s.samplesRead
			s.samplesRead += int64(n / frameBytes)
			if pts+int64(n/frameBytes) > s.skipBefore {
				s.pending = &media.Packet{Kind: media.KindAudio, PTS: pts, Keyframe: true, Payload: buf[:n]}
			}
		}

		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			s.audioDone = true
			closeErr := s.closePipe(false)
			if closeErr != nil {
				return apperrors.Wrap(closeErr, apperrors.ErrorTypeDecode, "Audio decoding of %q failed", s.path)
			}
		default:
			s.closePipe(true)
			return apperrors.Wrap(err, apperrors.ErrorTypeIO, "Reading decoded audio of %q", s.path)
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// closePipe stops the audio subprocess. Killing it makes its exit status
// meaningless, so abort discards it.
func (s *Source) closePipe(abort bool) error {
	if s.pipe == nil {
		return nil
	}
	if abort {
		s.cancel()
	}
	err := s.pipe.Close()
	s.cancel()
	s.pipe, s.cancel = nil, nil
	if abort {
		return nil
	}
	return err
}

// Rewind restarts at the first video keyframe. With ReadAll the audio is
// decoded again from the start and chunks that end before that keyframe are
// skipped; with ReadVideoOnly no audio pipe is started.
func (s *Source) Rewind(ctx context.Context, mode media.ReadMode) error {
	s.closePipe(true)
	s.vpos = s.firstKey
	s.mode = mode
	s.pending = nil
	s.audioDone = mode == media.ReadVideoOnly
	s.samplesRead = 0
	s.skipBefore = 0
	if s.firstKey < len(s.videoPackets) {
		at, err := timebase.Rebase(s.videoPackets[s.firstKey].pts, s.video.TimeBase, s.audio.TimeBase)
		if err == nil {
			s.skipBefore = at
		}
	}
	return ctx.Err()
}

func (s *Source) AudioDecoder() (media.AudioDecoder, error) {
	return media.NewPCMDecoder(s.audio.Codec, s.audio.Channels)
}

func (s *Source) Close() error {
	s.closePipe(true)
	return nil
}
