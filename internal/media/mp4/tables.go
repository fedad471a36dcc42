package mp4

import (
	"fmt"
	"io"
	"math"
)

type sttsEntry struct {
	count uint32
	delta uint32
}

type cttsEntry struct {
	count  uint32
	offset int32
}

type stscEntry struct {
	firstChunk      uint32
	samplesPerChunk uint32
}

// sampleTables is the decoded content of one stbl atom.
type sampleTables struct {
	stts       []sttsEntry
	ctts       []cttsEntry
	stss       []uint32 // 1-based sample numbers; nil means every sample is a sync sample
	fixedSize  uint32
	sizes      []uint32
	stsc       []stscEntry
	chunks     []int64
	sampleDesc sampleDescription
}

func (t *sampleTables) sampleCount() int {
	if t.fixedSize == 0 {
		return len(t.sizes)
	}
	n := 0
	for _, e := range t.stts {
		n += int(e.count)
	}
	return n
}

func (t *sampleTables) sampleSize(i int) int64 {
	if t.fixedSize != 0 {
		return int64(t.fixedSize)
	}
	if i < len(t.sizes) {
		return int64(t.sizes[i])
	}
	return 0
}

// sampleDescription holds the fields of the first stsd entry that matter here.
type sampleDescription struct {
	format        string
	channels      int
	bitsPerSample int
	sampleRate    float64
	lpcmFlags     uint32
	bytesPerFrame int
}

func parseSampleTables(r io.ReaderAt, stbl atom) (*sampleTables, error) {
	t := &sampleTables{}

	read := func(typ string, required bool, parse func(c *cursor)) error {
		a, ok := stbl.child(typ)
		if !ok {
			if required {
				return fmt.Errorf("missing %s", typ)
			}
			return nil
		}
		payload, err := readPayload(r, a)
		if err != nil {
			return err
		}
		c := &cursor{b: payload}
		parse(c)
		if c.err != nil {
			return fmt.Errorf("parsing %s: %w", typ, c.err)
		}
		return nil
	}

	steps := []struct {
		typ      string
		required bool
		parse    func(c *cursor)
	}{
		{"stsd", true, t.parseStsd},
		{"stts", true, t.parseStts},
		{"ctts", false, t.parseCtts},
		{"stss", false, t.parseStss},
		{"stsz", true, t.parseStsz},
		{"stsc", true, t.parseStsc},
	}
	for _, s := range steps {
		if err := read(s.typ, s.required, s.parse); err != nil {
			return nil, err
		}
	}

	if _, ok := stbl.child("co64"); ok {
		if err := read("co64", true, t.parseCo64); err != nil {
			return nil, err
		}
	} else if err := read("stco", true, t.parseStco); err != nil {
		return nil, err
	}

	return t, nil
}

func (t *sampleTables) parseStts(c *cursor) {
	c.fullBox()
	n := c.count(8)
	t.stts = make([]sttsEntry, n)
	for i := range t.stts {
		t.stts[i] = sttsEntry{count: c.u32(), delta: c.u32()}
	}
}

func (t *sampleTables) parseCtts(c *cursor) {
	c.fullBox()
	n := c.count(8)
	t.ctts = make([]cttsEntry, n)
	for i := range t.ctts {
		// version 0 is nominally unsigned; writers put negative values there too
		t.ctts[i] = cttsEntry{count: c.u32(), offset: int32(c.u32())}
	}
}

func (t *sampleTables) parseStss(c *cursor) {
	c.fullBox()
	n := c.count(4)
	t.stss = make([]uint32, n)
	for i := range t.stss {
		t.stss[i] = c.u32()
	}
}

func (t *sampleTables) parseStsz(c *cursor) {
	c.fullBox()
	t.fixedSize = c.u32()
	if t.fixedSize != 0 {
		c.u32()
		return
	}
	n := c.count(4)
	t.sizes = make([]uint32, n)
	for i := range t.sizes {
		t.sizes[i] = c.u32()
	}
}

func (t *sampleTables) parseStsc(c *cursor) {
	c.fullBox()
	n := c.count(12)
	t.stsc = make([]stscEntry, n)
	for i := range t.stsc {
		t.stsc[i] = stscEntry{firstChunk: c.u32(), samplesPerChunk: c.u32()}
		c.u32() // sample description index
	}
}

func (t *sampleTables) parseStco(c *cursor) {
	c.fullBox()
	n := c.count(4)
	t.chunks = make([]int64, n)
	for i := range t.chunks {
		t.chunks[i] = int64(c.u32())
	}
}

func (t *sampleTables) parseCo64(c *cursor) {
	c.fullBox()
	n := c.count(8)
	t.chunks = make([]int64, n)
	for i := range t.chunks {
		t.chunks[i] = int64(c.u64())
	}
}

// parseStsd reads the first sample entry. Sound entries follow the
// QuickTime layout, versions 0, 1 and 2.
func (t *sampleTables) parseStsd(c *cursor) {
	c.fullBox()
	if c.count(8) == 0 {
		c.err = fmt.Errorf("no sample entries")
		return
	}

	c.u32() // entry size
	d := &t.sampleDesc
	d.format = c.fourcc()
	c.skip(6) // reserved
	c.u16()   // data reference index

	if c.pos+20 > len(c.b) {
		// not a sound entry, or a truncated one; the format is all we need
		return
	}

	version := c.u16()
	c.u16()   // revision
	c.skip(4) // vendor

	switch version {
	case 0, 1:
		d.channels = int(c.u16())
		d.bitsPerSample = int(c.u16())
		c.u16() // compression id
		c.u16() // packet size
		d.sampleRate = float64(c.u32()) / 65536
		if version == 1 {
			c.u32() // samples per packet
			c.u32() // bytes per packet
			d.bytesPerFrame = int(c.u32())
			c.u32() // bytes per sample
		}
	case 2:
		c.skip(16) // always 3, 16, -2, 0, 65536
		c.u32()    // size of struct only
		d.sampleRate = math.Float64frombits(c.u64())
		d.channels = int(c.u32())
		c.u32() // always 0x7F000000
		d.bitsPerSample = int(c.u32())
		d.lpcmFlags = c.u32()
		d.bytesPerFrame = int(c.u32())
		c.u32() // frames per packet
	}
}

// mediaHeader holds the mdhd fields.
type mediaHeader struct {
	timescale uint32
	duration  uint64
}

func parseMdhd(c *cursor) mediaHeader {
	version, _ := c.fullBox()
	var h mediaHeader
	if version == 1 {
		c.skip(16)
		h.timescale = c.u32()
		h.duration = c.u64()
	} else {
		c.skip(8)
		h.timescale = c.u32()
		h.duration = uint64(c.u32())
	}
	return h
}

func parseHdlr(c *cursor) string {
	c.fullBox()
	c.u32() // pre-defined / component type
	return c.fourcc()
}

// parseElst returns the media time of the first non-empty edit, or 0.
func parseElst(c *cursor) int64 {
	version, _ := c.fullBox()
	n := c.count(12)
	for i := 0; i < n && c.err == nil; i++ {
		var mediaTime int64
		if version == 1 {
			c.u64()
			mediaTime = int64(c.u64())
		} else {
			c.u32()
			mediaTime = int64(int32(c.u32()))
		}
		c.u32() // rate
		if mediaTime >= 0 {
			return mediaTime
		}
	}
	return 0
}
