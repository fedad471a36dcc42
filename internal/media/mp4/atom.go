// Package mp4 is a minimal ISO-BMFF / QuickTime demuxer: enough of the
// sample tables to recover video timestamps and uncompressed audio.
package mp4

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrNotMP4 is returned when the input does not start like an ISO-BMFF or
// QuickTime file.
var ErrNotMP4 = errors.New("not an MP4/QuickTime file")

// maxTablePayload bounds the size of a single table atom read into memory.
const maxTablePayload = 256 << 20

// containers lists the atoms whose payload is itself a list of atoms.
var containers = map[string]bool{
	"moov": true,
	"trak": true,
	"mdia": true,
	"minf": true,
	"dinf": true,
	"stbl": true,
	"edts": true,
}

// topLevel lists atom types accepted as the first atom of a file.
var topLevel = map[string]bool{
	"ftyp": true,
	"moov": true,
	"mdat": true,
	"free": true,
	"skip": true,
	"wide": true,
	"pnot": true,
	"uuid": true,
}

type atom struct {
	typ      string
	offset   int64
	size     int64
	header   int64
	children []atom
}

func (a atom) String() string {
	return fmt.Sprintf("[%s] @ %d (Size: %d)", a.typ, a.offset, a.size)
}

func (a atom) child(typ string) (atom, bool) {
	for _, c := range a.children {
		if c.typ == typ {
			return c, true
		}
	}
	return atom{}, false
}

// path walks nested children, e.g. path("mdia", "minf", "stbl").
func (a atom) path(types ...string) (atom, bool) {
	cur := a
	for _, typ := range types {
		next, ok := cur.child(typ)
		if !ok {
			return atom{}, false
		}
		cur = next
	}
	return cur, true
}

func (a atom) childrenOf(typ string) []atom {
	var out []atom
	for _, c := range a.children {
		if c.typ == typ {
			out = append(out, c)
		}
	}
	return out
}

// parseAtoms walks the atom tree between start and end.
func parseAtoms(r io.ReaderAt, start, end int64, depth int) ([]atom, error) {
	var atoms []atom
	hdr := make([]byte, 16)

	for offset := start; offset+8 <= end; {
		if _, err := r.ReadAt(hdr[:8], offset); err != nil {
			return nil, fmt.Errorf("reading atom header at %d: %w", offset, err)
		}

		size := int64(binary.BigEndian.Uint32(hdr[0:4]))
		typ := string(hdr[4:8])
		header := int64(8)

		switch size {
		case 1:
			// 64-bit extended size follows the type
			if _, err := r.ReadAt(hdr[8:16], offset+8); err != nil {
				return nil, fmt.Errorf("reading extended size of %q at %d: %w", typ, offset, err)
			}
			size = int64(binary.BigEndian.Uint64(hdr[8:16]))
			header = 16
		case 0:
			// extends to the end of the enclosing atom
			size = end - offset
		}

		if size < header || offset+size > end {
			return nil, fmt.Errorf("invalid size %d for atom %q at %d", size, typ, offset)
		}

		a := atom{typ: typ, offset: offset, size: size, header: header}
		if containers[typ] && depth < 8 {
			children, err := parseAtoms(r, offset+header, offset+size, depth+1)
			if err != nil {
				return nil, err
			}
			a.children = children
		}

		atoms = append(atoms, a)
		offset += size
	}

	return atoms, nil
}

func readPayload(r io.ReaderAt, a atom) ([]byte, error) {
	n := a.size - a.header
	if n > maxTablePayload {
		return nil, fmt.Errorf("atom %q too large (%d bytes)", a.typ, n)
	}
	buf := make([]byte, n)
	if _, err := r.ReadAt(buf, a.offset+a.header); err != nil {
		return nil, fmt.Errorf("reading %q payload: %w", a.typ, err)
	}
	return buf, nil
}

// cursor reads big-endian fields from an atom payload. The first short read
// is remembered in err and every later read returns zero.
type cursor struct {
	b   []byte
	pos int
	err error
}

func (c *cursor) take(n int) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || c.pos+n > len(c.b) {
		c.err = io.ErrUnexpectedEOF
		return nil
	}
	out := c.b[c.pos : c.pos+n]
	c.pos += n
	return out
}

func (c *cursor) skip(n int) { c.take(n) }

func (c *cursor) u16() uint16 {
	if b := c.take(2); b != nil {
		return binary.BigEndian.Uint16(b)
	}
	return 0
}

func (c *cursor) u32() uint32 {
	if b := c.take(4); b != nil {
		return binary.BigEndian.Uint32(b)
	}
	return 0
}

func (c *cursor) u64() uint64 {
	if b := c.take(8); b != nil {
		return binary.BigEndian.Uint64(b)
	}
	return 0
}

func (c *cursor) fourcc() string {
	if b := c.take(4); b != nil {
		return string(b)
	}
	return ""
}

// fullBox reads the version and flags of a full box header.
func (c *cursor) fullBox() (version uint8, flags uint32) {
	v := c.u32()
	return uint8(v >> 24), v & 0x00ffffff
}

// count reads an entry count and checks the payload can hold it.
func (c *cursor) count(entrySize int) int {
	n := int(c.u32())
	if c.err == nil && (n < 0 || n > (len(c.b)-c.pos)/entrySize) {
		c.err = fmt.Errorf("entry count %d exceeds payload", n)
		return 0
	}
	return n
}
