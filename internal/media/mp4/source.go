package mp4

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	apperrors "github.com/zsiec/ltcsplit/internal/errors"
	"github.com/zsiec/ltcsplit/internal/media"
)

// Options selects the streams to read.
type Options struct {
	// AudioStream is the index among the file's sound tracks.
	AudioStream int
}

// Source reads timestamps of the first video track and PCM payloads of
// one sound track, in presentation order.
type Source struct {
	f       *os.File
	path    string
	video   media.StreamInfo
	audio   media.StreamInfo
	packets []packetRef
	// index of the first video keyframe in packets
	firstKey int
	pos      int
	mode     media.ReadMode
}

var _ media.Source = (*Source)(nil)

// Open parses the movie header of path and indexes its packets.
func Open(path string, opts Options) (src *Source, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeMediaOpen, "Unable to open video file %q", path)
	}
	defer func() {
		if err != nil {
			f.Close()
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeMediaOpen, "Unable to open video file %q", path)
	}

	atoms, err := probe(f, info.Size())
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeMediaOpen, "Unable to read container of %q", path)
	}

	var moov atom
	found := false
	for _, a := range atoms {
		if a.typ == "moov" {
			moov, found = a, true
			break
		}
	}
	if !found {
		return nil, apperrors.New(apperrors.ErrorTypeMediaOpen, "No movie header in %q", path)
	}

	var video *track
	var sounds []*track
	for i, trak := range moov.childrenOf("trak") {
		t, err := parseTrack(f, trak, i)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrorTypeMediaOpen, "Unable to read track of %q", path)
		}
		switch t.handler {
		case "vide":
			if video == nil {
				video = t
			}
		case "soun":
			sounds = append(sounds, t)
		}
	}

	if video == nil {
		return nil, apperrors.New(apperrors.ErrorTypeMediaOpen, "No video stream found in %q", path)
	}
	if opts.AudioStream < 0 || opts.AudioStream >= len(sounds) {
		return nil, apperrors.New(apperrors.ErrorTypeMediaOpen, "No audio stream %d found in %q (%d present)",
			opts.AudioStream, path, len(sounds))
	}
	sound := sounds[opts.AudioStream]

	codec, ok := sound.tables.sampleDesc.pcmCodec()
	if !ok {
		return nil, apperrors.New(apperrors.ErrorTypeUnsupportedCodec, "Unsupported audio codec %q (%d bits) in %q",
			sound.tables.sampleDesc.format, sound.tables.sampleDesc.bitsPerSample, path)
	}

	src = &Source{
		f:     f,
		path:  path,
		video: video.videoInfo(),
		audio: sound.audioInfo(codec),
	}
	if src.audio.Channels < 1 {
		return nil, apperrors.New(apperrors.ErrorTypeUnsupportedFormat, "Invalid channel count %d in %q",
			src.audio.Channels, path)
	}

	bytesPerFrame := int64(src.audio.Channels * src.audio.SampleFormat.BytesPerSample())
	src.packets = append(video.videoPackets(), sound.audioPackets(bytesPerFrame)...)

	// Presentation order across both tracks; ties keep video first.
	vtb, atb := src.video.TimeBase, src.audio.TimeBase
	sort.SliceStable(src.packets, func(i, j int) bool {
		a, b := src.packets[i], src.packets[j]
		ta, tb := vtb, vtb
		if a.kind == media.KindAudio {
			ta = atb
		}
		if b.kind == media.KindAudio {
			tb = atb
		}
		return a.pts*ta.Num*tb.Den < b.pts*tb.Num*ta.Den
	})

	src.firstKey = len(src.packets)
	for i, p := range src.packets {
		if p.kind == media.KindVideo && p.keyframe {
			src.firstKey = i
			break
		}
	}
	return src, nil
}

// probe checks the first atom looks like a movie file and walks the tree.
func probe(r io.ReaderAt, size int64) ([]atom, error) {
	hdr := make([]byte, 8)
	if _, err := r.ReadAt(hdr, 0); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotMP4, err)
	}
	if !topLevel[string(hdr[4:8])] {
		return nil, ErrNotMP4
	}
	atoms, err := parseAtoms(r, 0, size, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotMP4, err)
	}
	return atoms, nil
}

func (s *Source) Video() media.StreamInfo { return s.video }
func (s *Source) Audio() media.StreamInfo { return s.audio }

func (s *Source) ReadPacket(ctx context.Context) (*media.Packet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for s.mode == media.ReadVideoOnly && s.pos < len(s.packets) && s.packets[s.pos].kind != media.KindVideo {
		s.pos++
	}
	if s.pos >= len(s.packets) {
		return nil, io.EOF
	}
	ref := s.packets[s.pos]
	s.pos++

	pkt := &media.Packet{Kind: ref.kind, PTS: ref.pts, Keyframe: ref.keyframe}
	if ref.kind == media.KindAudio && ref.size > 0 {
		pkt.Payload = make([]byte, ref.size)
		if _, err := s.f.ReadAt(pkt.Payload, ref.offset); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrorTypeIO, "Unable to read audio chunk at %d", ref.offset)
		}
	}
	return pkt, nil
}

// Rewind seeks back to the first video keyframe. In video-only mode audio
// chunks are not read from disk.
func (s *Source) Rewind(ctx context.Context, mode media.ReadMode) error {
	s.pos = s.firstKey
	s.mode = mode
	return ctx.Err()
}

func (s *Source) AudioDecoder() (media.AudioDecoder, error) {
	return media.NewPCMDecoder(s.audio.Codec, s.audio.Channels)
}

func (s *Source) Close() error {
	return s.f.Close()
}
