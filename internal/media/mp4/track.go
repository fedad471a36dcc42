package mp4

import (
	"fmt"
	"io"

	"github.com/zsiec/ltcsplit/internal/media"
	"github.com/zsiec/ltcsplit/internal/timebase"
)

// LPCM format flags from the version 2 sound description.
const (
	lpcmFlagFloat     = 1 << 0
	lpcmFlagBigEndian = 1 << 1
	lpcmFlagSigned    = 1 << 2
)

type track struct {
	index      int
	handler    string
	header     mediaHeader
	editOffset int64
	tables     *sampleTables
}

// packetRef locates one packet in the file without holding its payload.
type packetRef struct {
	kind     media.Kind
	pts      int64
	keyframe bool
	offset   int64
	size     int64
}

func parseTrack(r io.ReaderAt, trak atom, index int) (*track, error) {
	t := &track{index: index}

	mdia, ok := trak.child("mdia")
	if !ok {
		return nil, fmt.Errorf("track %d: missing mdia", index)
	}

	for _, step := range []struct {
		typ   string
		parse func(c *cursor)
	}{
		{"mdhd", func(c *cursor) { t.header = parseMdhd(c) }},
		{"hdlr", func(c *cursor) { t.handler = parseHdlr(c) }},
	} {
		a, ok := mdia.child(step.typ)
		if !ok {
			return nil, fmt.Errorf("track %d: missing %s", index, step.typ)
		}
		payload, err := readPayload(r, a)
		if err != nil {
			return nil, fmt.Errorf("track %d: %w", index, err)
		}
		c := &cursor{b: payload}
		step.parse(c)
		if c.err != nil {
			return nil, fmt.Errorf("track %d: parsing %s: %w", index, step.typ, c.err)
		}
	}
	if t.header.timescale == 0 {
		return nil, fmt.Errorf("track %d: zero timescale", index)
	}

	if elst, ok := trak.path("edts", "elst"); ok {
		payload, err := readPayload(r, elst)
		if err != nil {
			return nil, fmt.Errorf("track %d: %w", index, err)
		}
		t.editOffset = parseElst(&cursor{b: payload})
	}

	// Only tracks we may select need their sample tables.
	if t.handler != "vide" && t.handler != "soun" {
		return t, nil
	}

	stbl, ok := mdia.path("minf", "stbl")
	if !ok {
		return nil, fmt.Errorf("track %d: missing stbl", index)
	}
	tables, err := parseSampleTables(r, stbl)
	if err != nil {
		return nil, fmt.Errorf("track %d: %w", index, err)
	}
	t.tables = tables
	return t, nil
}

// forEachChunk calls fn with each chunk's file offset, the index of its
// first sample and its sample count.
func (t *sampleTables) forEachChunk(fn func(offset int64, first, count int)) {
	if len(t.stsc) == 0 {
		return
	}
	sample, entry := 0, 0
	for i, offset := range t.chunks {
		for entry+1 < len(t.stsc) && int(t.stsc[entry+1].firstChunk) <= i+1 {
			entry++
		}
		n := int(t.stsc[entry].samplesPerChunk)
		fn(offset, sample, n)
		sample += n
	}
}

// timeWalker expands stts (or ctts) run-length entries for monotonically
// increasing sample indices without materializing a per-sample table.
type timeWalker struct {
	counts []uint32
	values []int64
	entry  int
	used   uint32
	sample int
	sum    int64 // running sum for stts
}

func newDTSWalker(entries []sttsEntry) *timeWalker {
	w := &timeWalker{}
	for _, e := range entries {
		w.counts = append(w.counts, e.count)
		w.values = append(w.values, int64(e.delta))
	}
	return w
}

func newCTSWalker(entries []cttsEntry) *timeWalker {
	w := &timeWalker{}
	for _, e := range entries {
		w.counts = append(w.counts, e.count)
		w.values = append(w.values, int64(e.offset))
	}
	return w
}

// dtsAt returns the decode timestamp of sample n.
func (w *timeWalker) dtsAt(n int) int64 {
	for w.sample < n && w.entry < len(w.counts) {
		remaining := int(w.counts[w.entry] - w.used)
		step := n - w.sample
		delta := w.values[w.entry]
		if step >= remaining {
			step = remaining
			w.entry++
			w.used = 0
		} else {
			w.used += uint32(step)
		}
		w.sum += int64(step) * delta
		w.sample += step
	}
	return w.sum
}

// offsetAt returns the composition offset of sample n.
func (w *timeWalker) offsetAt(n int) int64 {
	for w.entry < len(w.counts) && n >= w.sample+int(w.counts[w.entry]) {
		w.sample += int(w.counts[w.entry])
		w.entry++
	}
	if w.entry < len(w.counts) {
		return w.values[w.entry]
	}
	return 0
}

func (t *track) totalDuration() int64 {
	var d int64
	for _, e := range t.tables.stts {
		d += int64(e.count) * int64(e.delta)
	}
	return d
}

func (t *track) videoPackets() []packetRef {
	tables := t.tables
	total := tables.sampleCount()
	refs := make([]packetRef, 0, total)

	var sync map[int]bool
	if tables.stss != nil {
		sync = make(map[int]bool, len(tables.stss))
		for _, n := range tables.stss {
			sync[int(n)-1] = true
		}
	}

	dts := newDTSWalker(tables.stts)
	cts := newCTSWalker(tables.ctts)

	tables.forEachChunk(func(offset int64, first, count int) {
		for i := first; i < first+count && i < total; i++ {
			size := tables.sampleSize(i)
			refs = append(refs, packetRef{
				kind:     media.KindVideo,
				pts:      dts.dtsAt(i) + cts.offsetAt(i) - t.editOffset,
				keyframe: sync == nil || sync[i],
				offset:   offset,
				size:     size,
			})
			offset += size
		}
	})
	return refs
}

// audioPackets returns one packet per chunk. Uncompressed audio stores
// one PCM frame per sample, and QuickTime writers often record a sample
// size of 1 for that.
func (t *track) audioPackets(bytesPerFrame int64) []packetRef {
	tables := t.tables
	refs := make([]packetRef, 0, len(tables.chunks))
	dts := newDTSWalker(tables.stts)

	tables.forEachChunk(func(offset int64, first, count int) {
		var size int64
		switch fixed := int64(tables.fixedSize); {
		case fixed == 1 || fixed == bytesPerFrame:
			size = int64(count) * bytesPerFrame
		case fixed != 0:
			size = int64(count) * fixed
		default:
			for i := first; i < first+count; i++ {
				size += tables.sampleSize(i)
			}
		}
		refs = append(refs, packetRef{
			kind:     media.KindAudio,
			pts:      dts.dtsAt(first) - t.editOffset,
			keyframe: true,
			offset:   offset,
			size:     size,
		})
	})
	return refs
}

func (t *track) videoInfo() media.StreamInfo {
	info := media.StreamInfo{
		Index:    t.index,
		Kind:     media.KindVideo,
		Codec:    t.tables.sampleDesc.format,
		TimeBase: timebase.Rational{Num: 1, Den: int64(t.header.timescale)},
	}
	if d := t.totalDuration(); d > 0 {
		count := int64(t.tables.sampleCount())
		info.AvgFrameRate = timebase.Rational{Num: count * int64(t.header.timescale), Den: d}.Reduce()
	}
	return info
}

// pcmCodec resolves the sample description to a codec known to
// media.NewPCMDecoder.
func (d sampleDescription) pcmCodec() (string, bool) {
	switch d.format {
	case "lpcm":
		endian := "le"
		if d.lpcmFlags&lpcmFlagBigEndian != 0 {
			endian = "be"
		}
		switch {
		case d.lpcmFlags&lpcmFlagFloat != 0 && (d.bitsPerSample == 32 || d.bitsPerSample == 64):
			return fmt.Sprintf("pcm_f%d%s", d.bitsPerSample, endian), true
		case d.lpcmFlags&lpcmFlagSigned != 0 && (d.bitsPerSample == 16 || d.bitsPerSample == 24 || d.bitsPerSample == 32):
			return fmt.Sprintf("pcm_s%d%s", d.bitsPerSample, endian), true
		case d.lpcmFlags&(lpcmFlagFloat|lpcmFlagSigned) == 0 && d.bitsPerSample == 8:
			return "pcm_u8", true
		}
		return "", false
	case "sowt", "twos":
		// 8-bit twos/sowt is signed, which the decoder does not take
		return d.format, d.bitsPerSample == 16
	}
	_, ok := media.LookupPCMCodec(d.format)
	return d.format, ok
}

func (t *track) audioInfo(codec string) media.StreamInfo {
	d := t.tables.sampleDesc
	c, _ := media.LookupPCMCodec(codec)

	rate := int(d.sampleRate)
	if rate <= 0 {
		rate = int(t.header.timescale)
	}
	return media.StreamInfo{
		Index:        t.index,
		Kind:         media.KindAudio,
		Codec:        codec,
		TimeBase:     timebase.Rational{Num: 1, Den: int64(t.header.timescale)},
		SampleRate:   rate,
		Channels:     d.channels,
		SampleFormat: c.Format,
	}
}
