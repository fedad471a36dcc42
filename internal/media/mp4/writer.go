package mp4

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/zsiec/ltcsplit/internal/timebase"
)

// Movie describes a QuickTime file with one video track of placeholder
// samples and one 16-bit little-endian PCM track. It is used to generate
// timecoded test material.
type Movie struct {
	FrameRate  timebase.Rational
	Frames     int
	SampleRate int
	Channels   int
	// Audio is interleaved and spread over the frames; the last chunk
	// takes whatever remains.
	Audio []int16
	// GOP is the keyframe interval. Zero marks every frame as a keyframe.
	GOP int
}

const movieTimescale = 1000

var identityMatrix = []uint32{0x10000, 0, 0, 0, 0x10000, 0, 0, 0, 0x40000000}

// WriteMovie writes m as a self-contained .mov with the movie header after
// the media data.
func WriteMovie(w io.Writer, m Movie) error {
	if !m.FrameRate.Valid() || m.Frames < 1 || m.SampleRate < 1 || m.Channels < 1 {
		return fmt.Errorf("invalid movie description")
	}

	var out bytes.Buffer
	out.Write(box("ftyp", []byte("qt  "), be32(0x200), []byte("qt  ")))

	var mdat bytes.Buffer
	payloadStart := int64(out.Len()) + 8
	videoOffsets := make([]uint32, m.Frames)
	audioOffsets := make([]uint32, m.Frames)
	audioCounts := make([]uint32, m.Frames)

	totalAudio := len(m.Audio) / m.Channels
	placeholder := []byte{0, 0, 0, 0}
	for i := 0; i < m.Frames; i++ {
		videoOffsets[i] = uint32(payloadStart + int64(mdat.Len()))
		mdat.Write(placeholder)

		first := int(int64(i) * int64(m.SampleRate) * m.FrameRate.Den / m.FrameRate.Num)
		last := int(int64(i+1) * int64(m.SampleRate) * m.FrameRate.Den / m.FrameRate.Num)
		if i == m.Frames-1 || last > totalAudio {
			last = totalAudio
		}
		if first > last {
			first = last
		}

		audioOffsets[i] = uint32(payloadStart + int64(mdat.Len()))
		audioCounts[i] = uint32(last - first)
		for _, s := range m.Audio[first*m.Channels : last*m.Channels] {
			mdat.Write(le16(uint16(s)))
		}
	}
	out.Write(box("mdat", mdat.Bytes()))

	videoScale := uint32(m.FrameRate.Num)
	videoDelta := uint32(m.FrameRate.Den)
	movieDuration := uint32(int64(m.Frames) * movieTimescale * m.FrameRate.Den / m.FrameRate.Num)

	videoStbl := box("stbl",
		fullBox("stsd", 0, 0, be32(1), visualEntry()),
		fullBox("stts", 0, 0, be32(1), be32(uint32(m.Frames)), be32(videoDelta)),
		videoSync(m),
		fullBox("stsz", 0, 0, be32(uint32(len(placeholder))), be32(uint32(m.Frames))),
		fullBox("stsc", 0, 0, be32(1), be32(1), be32(1), be32(1)),
		fullBox("stco", 0, 0, be32(uint32(m.Frames)), be32s(videoOffsets)),
	)

	soundEntry := box("sowt",
		make([]byte, 6), be16(1),  // reserved, data reference index
		be16(0), be16(0), be32(0), // version, revision, vendor
		be16(uint16(m.Channels)), be16(16),
		be16(0), be16(0), // compression id, packet size
		be32(uint32(m.SampleRate)<<16),
	)
	audioStbl := box("stbl",
		fullBox("stsd", 0, 0, be32(1), soundEntry),
		fullBox("stts", 0, 0, be32(1), be32(uint32(totalAudio)), be32(1)),
		fullBox("stsz", 0, 0, be32(1), be32(uint32(totalAudio))),
		chunkMap(audioCounts),
		fullBox("stco", 0, 0, be32(uint32(m.Frames)), be32s(audioOffsets)),
	)

	moov := box("moov",
		fullBox("mvhd", 0, 0,
			be32(0), be32(0), be32(movieTimescale), be32(movieDuration),
			be32(0x10000), be16(0x100), make([]byte, 10),
			be32s(identityMatrix), make([]byte, 24), be32(3)),
		trak(1, "vide", videoScale, uint32(m.Frames)*videoDelta, movieDuration, videoStbl,
			fullBox("vmhd", 0, 1, make([]byte, 8))),
		trak(2, "soun", uint32(m.SampleRate), uint32(totalAudio), movieDuration, audioStbl,
			fullBox("smhd", 0, 0, make([]byte, 4))),
	)
	out.Write(moov)

	_, err := w.Write(out.Bytes())
	return err
}

func trak(id uint32, handler string, timescale, duration, movieDuration uint32, stbl, header []byte) []byte {
	var width, height uint32
	if handler == "vide" {
		width, height = 1920<<16, 1080<<16
	}
	return box("trak",
		fullBox("tkhd", 0, 7,
			be32(0), be32(0), be32(id), be32(0), be32(movieDuration),
			make([]byte, 8), be16(0), be16(0), be16(0), be16(0),
			be32s(identityMatrix), be32(width), be32(height)),
		box("mdia",
			fullBox("mdhd", 0, 0, be32(0), be32(0), be32(timescale), be32(duration), be16(0x7fff), be16(0)),
			fullBox("hdlr", 0, 0, []byte("mhlr"), []byte(handler), make([]byte, 12), []byte{0}),
			box("minf",
				header,
				box("dinf", fullBox("dref", 0, 0, be32(1), fullBox("url ", 0, 1))),
				stbl,
			),
		),
	)
}

// visualEntry is a Photo-JPEG sample description sized so other readers
// accept it; the samples themselves are placeholders.
func visualEntry() []byte {
	return box("jpeg",
		make([]byte, 6), be16(1),         // reserved, data reference index
		be16(0), be16(0), []byte("ltcs"), // version, revision, vendor
		be32(0), be32(512),               // temporal, spatial quality
		be16(1920), be16(1080),
		be32(72<<16), be32(72<<16), be32(0), be16(1),
		make([]byte, 32), // compressor name
		be16(24), be16(0xffff),
	)
}

func videoSync(m Movie) []byte {
	if m.GOP <= 0 {
		return nil
	}
	var keys []uint32
	for i := 0; i < m.Frames; i += m.GOP {
		keys = append(keys, uint32(i+1))
	}
	return fullBox("stss", 0, 0, be32(uint32(len(keys))), be32s(keys))
}

// chunkMap run-length encodes per-chunk sample counts into an stsc atom.
func chunkMap(counts []uint32) []byte {
	var entries [][]byte
	for i, c := range counts {
		if i > 0 && counts[i-1] == c {
			continue
		}
		entries = append(entries, be32(uint32(i+1)), be32(c), be32(1))
	}
	parts := append([][]byte{be32(uint32(len(entries) / 3))}, entries...)
	return fullBox("stsc", 0, 0, parts...)
}

func box(typ string, parts ...[]byte) []byte {
	size := 8
	for _, p := range parts {
		size += len(p)
	}
	out := make([]byte, 0, size)
	out = append(out, be32(uint32(size))...)
	out = append(out, typ...)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func fullBox(typ string, version uint8, flags uint32, parts ...[]byte) []byte {
	return box(typ, append([][]byte{be32(uint32(version)<<24 | flags)}, parts...)...)
}

func be16(v uint16) []byte { return binary.BigEndian.AppendUint16(nil, v) }
func be32(v uint32) []byte { return binary.BigEndian.AppendUint32(nil, v) }
func le16(v uint16) []byte { return binary.LittleEndian.AppendUint16(nil, v) }

func be32s(vs []uint32) []byte {
	out := make([]byte, 0, 4*len(vs))
	for _, v := range vs {
		out = binary.BigEndian.AppendUint32(out, v)
	}
	return out
}
