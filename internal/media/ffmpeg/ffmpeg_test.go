package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/ltcsplit/internal/audio"
	apperrors "github.com/zsiec/ltcsplit/internal/errors"
	"github.com/zsiec/ltcsplit/internal/ltc"
	"github.com/zsiec/ltcsplit/internal/media"
	"github.com/zsiec/ltcsplit/internal/media/mp4"
	"github.com/zsiec/ltcsplit/internal/timebase"
	"github.com/zsiec/ltcsplit/internal/timecode"
)

const probeJSON = `{
  "streams": [
    {"index": 0, "codec_name": "prores", "codec_type": "video", "time_base": "1/12800",
     "avg_frame_rate": "25/1", "codec_time_base": "0/1", "start_pts": 0},
    {"index": 1, "codec_name": "aac", "codec_type": "audio", "time_base": "1/48000",
     "sample_rate": "48000", "channels": 2, "sample_fmt": "fltp", "start_pts": 1024},
    {"index": 2, "codec_name": "pcm_s24le", "codec_type": "audio", "time_base": "1/44100",
     "sample_rate": "48000", "channels": 1, "sample_fmt": "s32", "start_pts": 441}
  ]
}`

func TestSelectStreams(t *testing.T) {
	probe, err := parseProbe([]byte(probeJSON))
	require.NoError(t, err)

	t.Run("first audio", func(t *testing.T) {
		s := &Source{path: "take.mxf"}
		require.NoError(t, s.selectStreams(probe))

		assert.Equal(t, timebase.Rational{Num: 1, Den: 12800}, s.video.TimeBase)
		assert.Equal(t, timebase.FrameRate25, s.video.AvgFrameRate)
		assert.Equal(t, int64(1), s.video.TicksPerFrame)
		assert.Equal(t, "prores", s.video.Codec)

		assert.Equal(t, 1, s.audio.Index)
		assert.Equal(t, pcmCodec, s.audio.Codec)
		assert.Equal(t, 2, s.audio.Channels)
		assert.Equal(t, timebase.TimeBase48kHz, s.audio.TimeBase)
		assert.Equal(t, int64(1024), s.audioStart)
	})

	t.Run("second audio rebased start", func(t *testing.T) {
		s := &Source{path: "take.mxf", opts: Options{AudioStream: 1}}
		require.NoError(t, s.selectStreams(probe))
		assert.Equal(t, 2, s.audio.Index)
		assert.Equal(t, int64(480), s.audioStart)
	})

	t.Run("missing audio", func(t *testing.T) {
		s := &Source{path: "take.mxf", opts: Options{AudioStream: 2}}
		err := s.selectStreams(probe)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeMediaOpen))
		assert.Contains(t, err.Error(), "(2 present)")
	})

	t.Run("missing video", func(t *testing.T) {
		s := &Source{path: "take.wav"}
		err := s.selectStreams(&probeOutput{Streams: probe.Streams[1:]})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "No video stream")
	})
}

func TestParsePackets(t *testing.T) {
	csv := strings.Join([]string{
		"0,-2,K__",
		"3,-1,___",
		"1,0,___",
		"",
		"N/A,1,___",
		"N/A,N/A,___",
		"4,2,K_",
	}, "\n")

	packets, err := parsePackets(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, []videoPacket{
		{pts: 0, keyframe: true},
		{pts: 1},
		{pts: 1},
		{pts: 3},
		{pts: 4, keyframe: true},
	}, packets)

	_, err = parsePackets(strings.NewReader("12\n"))
	assert.Error(t, err)
}

type stubPipe struct {
	io.Reader
	closeErr error
	closed   int
}

func (p *stubPipe) Close() error {
	p.closed++
	return p.closeErr
}

func newStubSource(videoPTS []int64, keyEvery int, samples int, closeErr error) (*Source, *[]*stubPipe) {
	s := &Source{
		opts:  Options{ChunkSamples: 960},
		path:  "stub.mov",
		video: media.StreamInfo{Kind: media.KindVideo, TimeBase: timebase.Rational{Num: 1, Den: 25}},
		audio: media.StreamInfo{
			Kind: media.KindAudio, Codec: pcmCodec, TimeBase: timebase.TimeBase48kHz,
			SampleRate: 48000, Channels: 1, SampleFormat: audio.FormatS16,
		},
	}
	var pipes []*stubPipe
	s.openAudio = func(context.Context) (io.ReadCloser, error) {
		p := &stubPipe{Reader: bytes.NewReader(make([]byte, samples*2)), closeErr: closeErr}
		pipes = append(pipes, p)
		return p, nil
	}

	var packets []videoPacket
	for i, pts := range videoPTS {
		packets = append(packets, videoPacket{pts: pts, keyframe: keyEvery > 0 && i%keyEvery == 0})
	}
	s.setVideoPackets(packets)
	return s, &pipes
}

type readResult struct {
	kind media.Kind
	pts  int64
	size int
}

func drain(t *testing.T, s *Source) []readResult {
	t.Helper()
	var out []readResult
	for {
		pkt, err := s.ReadPacket(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, readResult{pkt.Kind, pkt.PTS, len(pkt.Payload)})
	}
}

func TestReadPacketMergesByTime(t *testing.T) {
	// 3 frames at 25fps span 5760 samples; the last audio chunk is short.
	s, pipes := newStubSource([]int64{0, 1, 2}, 2, 5000, nil)

	got := drain(t, s)
	assert.Equal(t, []readResult{
		{media.KindVideo, 0, 0},
		{media.KindAudio, 0, 1920},
		{media.KindAudio, 960, 1920},
		{media.KindVideo, 1, 0},
		{media.KindAudio, 1920, 1920},
		{media.KindAudio, 2880, 1920},
		{media.KindVideo, 2, 0},
		{media.KindAudio, 3840, 1920},
		{media.KindAudio, 4800, 400},
	}, got)
	require.Len(t, *pipes, 1)
	assert.Equal(t, 1, (*pipes)[0].closed)

	t.Run("rewind skips audio before the first keyframe", func(t *testing.T) {
		s, pipes := newStubSource([]int64{0, 1, 2, 3}, 2, 7680, nil)
		s.setVideoPackets([]videoPacket{{pts: 0}, {pts: 1}, {pts: 2, keyframe: true}, {pts: 3}})
		drain(t, s)

		require.NoError(t, s.Rewind(context.Background(), media.ReadAll))
		got := drain(t, s)
		assert.Equal(t, readResult{media.KindVideo, 2, 0}, got[0])
		assert.Equal(t, readResult{media.KindAudio, 3840, 1920}, got[1])
		assert.Len(t, got, 6)
		assert.Len(t, *pipes, 2)
	})

	t.Run("video-only rewind starts no audio pipe", func(t *testing.T) {
		s, pipes := newStubSource([]int64{0, 1, 2, 3}, 2, 7680, nil)
		drain(t, s)
		require.Len(t, *pipes, 1)

		require.NoError(t, s.Rewind(context.Background(), media.ReadVideoOnly))
		got := drain(t, s)
		assert.Equal(t, []readResult{
			{media.KindVideo, 0, 0},
			{media.KindVideo, 1, 0},
			{media.KindVideo, 2, 0},
			{media.KindVideo, 3, 0},
		}, got)
		assert.Len(t, *pipes, 1)
	})
}

func TestAudioPipeFailure(t *testing.T) {
	s, _ := newStubSource([]int64{0, 1}, 1, 100, errors.New("exit status 1: Invalid data found"))

	var err error
	for err == nil {
		_, err = s.ReadPacket(context.Background())
	}
	require.False(t, errors.Is(err, io.EOF))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeDecode))
	assert.Contains(t, err.Error(), "Invalid data found")
}

func TestReadPacketCancelled(t *testing.T) {
	s, _ := newStubSource([]int64{0}, 1, 10, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.ReadPacket(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheckerMissingBinary(t *testing.T) {
	c := NewChecker(Options{FFmpegPath: "/nonexistent/ffmpeg", FFprobePath: "/nonexistent/ffprobe"})
	err := c.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ffprobe binary check failed")
}

func TestOpenWithBinaries(t *testing.T) {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not available")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available")
	}
	require.NoError(t, NewChecker(Options{}).Check(context.Background()))

	enc := ltc.NewEncoder(1920)
	path := filepath.Join(t.TempDir(), "take.mov")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, mp4.WriteMovie(f, mp4.Movie{
		FrameRate:  timebase.FrameRate25,
		Frames:     10,
		SampleRate: 48000,
		Channels:   1,
		Audio:      media.U8ToS16(enc.EncodeRun(timecode.Timecode{Hours: 2}, 10, timebase.FrameRate25), 1),
	}))
	require.NoError(t, f.Close())

	s, err := Open(context.Background(), path, Options{})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, 48000, s.Audio().SampleRate)
	var videoCount, audioSamples int
	for _, r := range drain(t, s) {
		if r.kind == media.KindVideo {
			videoCount++
		} else {
			audioSamples += r.size / 2
		}
	}
	assert.Equal(t, 10, videoCount)
	assert.Equal(t, 10*1920, audioSamples)
}
