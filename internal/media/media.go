// Package media defines the demultiplexer and decoder collaborators the
// analysis pipeline reads from.
package media

import (
	"context"
	"fmt"

	"github.com/zsiec/ltcsplit/internal/audio"
	"github.com/zsiec/ltcsplit/internal/timebase"
)

// Kind distinguishes the stream a packet belongs to.
type Kind int

const (
	KindVideo Kind = iota
	KindAudio
)

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Packet is one demultiplexed unit. PTS is expressed in the owning stream's
// time base. Audio packets carry their encoded payload; video payloads are
// optional since only timestamps are consumed.
type Packet struct {
	Kind     Kind
	PTS      int64
	Keyframe bool
	Payload  []byte
}

// StreamInfo describes one elementary stream.
type StreamInfo struct {
	Index int
	Kind  Kind
	Codec string

	TimeBase timebase.Rational

	// Video
	AvgFrameRate  timebase.Rational
	CodecTimeBase timebase.Rational
	TicksPerFrame int64

	// Audio
	SampleRate   int
	Channels     int
	SampleFormat audio.SampleFormat
}

// Rates returns the metadata used for frame rate discovery.
func (s StreamInfo) Rates() timebase.StreamRates {
	return timebase.StreamRates{
		AvgFrameRate:  s.AvgFrameRate,
		TimeBase:      s.TimeBase,
		CodecTimeBase: s.CodecTimeBase,
		TicksPerFrame: s.TicksPerFrame,
	}
}

// ReadMode selects the streams ReadPacket returns after a rewind.
type ReadMode int

const (
	// ReadAll returns both selected streams.
	ReadAll ReadMode = iota
	// ReadVideoOnly skips the audio stream without reading or decoding it.
	ReadVideoOnly
)

// Source is an opened media file with one selected video and one selected
// audio stream.
type Source interface {
	Video() StreamInfo
	Audio() StreamInfo

	// ReadPacket returns the next packet of either selected stream in
	// presentation order, or io.EOF at end of stream.
	ReadPacket(ctx context.Context) (*Packet, error)

	// Rewind repositions reading at the first video keyframe. mode applies
	// until the next Rewind.
	Rewind(ctx context.Context, mode ReadMode) error

	// AudioDecoder returns a decoder for the selected audio stream.
	AudioDecoder() (AudioDecoder, error)

	Close() error
}

// AudioDecoder turns audio packets into PCM. Any error is fatal for the run.
type AudioDecoder interface {
	Decode(pkt *Packet) (*audio.Buffer, error)
}
