package media

import (
	"context"
	"io"
	"sort"

	"github.com/zsiec/ltcsplit/internal/audio"
	"github.com/zsiec/ltcsplit/internal/timebase"
)

// MemorySource is a Source over packets held in memory, merged by
// presentation time. It backs tests and generated fixtures.
type MemorySource struct {
	video   StreamInfo
	audio   StreamInfo
	packets []*Packet
	pos     int
	mode    ReadMode
	closed  bool

	// AudioReads counts audio packets returned by ReadPacket.
	AudioReads int

	// DecodeErr, when set, is returned by the audio decoder.
	DecodeErr error
}

// NewMemorySource merges video and audio packets into presentation order.
func NewMemorySource(video, audioInfo StreamInfo, videoPackets, audioPackets []*Packet) *MemorySource {
	type keyed struct {
		pkt *Packet
		tb  timebase.Rational
	}

	all := make([]keyed, 0, len(videoPackets)+len(audioPackets))
	for _, p := range videoPackets {
		all = append(all, keyed{p, video.TimeBase})
	}
	for _, p := range audioPackets {
		all = append(all, keyed{p, audioInfo.TimeBase})
	}
	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		return a.pkt.PTS*a.tb.Num*b.tb.Den < b.pkt.PTS*b.tb.Num*a.tb.Den
	})

	packets := make([]*Packet, len(all))
	for i, k := range all {
		packets[i] = k.pkt
	}
	return &MemorySource{video: video, audio: audioInfo, packets: packets}
}

func (m *MemorySource) Video() StreamInfo { return m.video }
func (m *MemorySource) Audio() StreamInfo { return m.audio }

func (m *MemorySource) ReadPacket(ctx context.Context) (*Packet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for m.pos < len(m.packets) {
		p := m.packets[m.pos]
		m.pos++
		if p.Kind == KindAudio {
			if m.mode == ReadVideoOnly {
				continue
			}
			m.AudioReads++
		}
		return p, nil
	}
	return nil, io.EOF
}

func (m *MemorySource) Rewind(ctx context.Context, mode ReadMode) error {
	m.mode = mode
	m.pos = 0
	for i, p := range m.packets {
		if p.Kind == KindVideo && p.Keyframe {
			m.pos = i
			break
		}
	}
	return nil
}

func (m *MemorySource) AudioDecoder() (AudioDecoder, error) {
	if m.DecodeErr != nil {
		return failingDecoder{err: m.DecodeErr}, nil
	}
	return NewPCMDecoder(m.audio.Codec, m.audio.Channels)
}

func (m *MemorySource) Close() error {
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MemorySource) Closed() bool {
	return m.closed
}

type failingDecoder struct {
	err error
}

func (f failingDecoder) Decode(*Packet) (*audio.Buffer, error) {
	return nil, f.err
}
