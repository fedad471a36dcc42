// Package ltc reads and writes SMPTE/EBU linear timecode carried as a
// biphase-mark signal in audio.
package ltc

import (
	"github.com/zsiec/ltcsplit/internal/timecode"
)

// BitsPerFrame is the length of one LTC frame.
const BitsPerFrame = 80

// syncWord occupies bits 64..79 when read in forward direction,
// transmitted bit 64 first.
var syncWord = [16]bool{
	false, false, true, true, true, true, true, true,
	true, true, true, true, true, true, false, true,
}

// Frame is one decoded LTC frame. Start is the sample at which bit 0 began;
// End is exclusive: the first sample after bit 79.
type Frame struct {
	Timecode timecode.Timecode
	UserBits uint32
	Start    int64
	End      int64
}

type bcdField struct {
	offset int
	width  int
}

var (
	fieldFrameUnits  = bcdField{0, 4}
	fieldFrameTens   = bcdField{8, 2}
	fieldSecondUnits = bcdField{16, 4}
	fieldSecondTens  = bcdField{24, 3}
	fieldMinuteUnits = bcdField{32, 4}
	fieldMinuteTens  = bcdField{40, 3}
	fieldHourUnits   = bcdField{48, 4}
	fieldHourTens    = bcdField{56, 2}

	dropFrameBit = 10
	userBitGroup = [8]int{4, 12, 20, 28, 36, 44, 52, 60}
)

func readField(bits *[BitsPerFrame]bool, f bcdField) int {
	v := 0
	for i := 0; i < f.width; i++ {
		if bits[f.offset+i] {
			v |= 1 << i
		}
	}
	return v
}

func writeField(bits *[BitsPerFrame]bool, f bcdField, v int) {
	for i := 0; i < f.width; i++ {
		bits[f.offset+i] = v&(1<<i) != 0
	}
}

func hasSync(bits *[BitsPerFrame]bool) bool {
	for i, b := range syncWord {
		if bits[64+i] != b {
			return false
		}
	}
	return true
}

// unpack decodes the time and user bit fields of a frame.
func unpack(bits *[BitsPerFrame]bool) (timecode.Timecode, uint32) {
	tc := timecode.Timecode{
		Frames:    readField(bits, fieldFrameUnits) + 10*readField(bits, fieldFrameTens),
		Seconds:   readField(bits, fieldSecondUnits) + 10*readField(bits, fieldSecondTens),
		Minutes:   readField(bits, fieldMinuteUnits) + 10*readField(bits, fieldMinuteTens),
		Hours:     readField(bits, fieldHourUnits) + 10*readField(bits, fieldHourTens),
		DropFrame: bits[dropFrameBit],
	}

	var user uint32
	for i, offset := range userBitGroup {
		user |= uint32(readField(bits, bcdField{offset, 4})) << (4 * i)
	}
	return tc, user
}

// pack is the inverse of unpack, including the sync word.
func pack(tc timecode.Timecode, user uint32) [BitsPerFrame]bool {
	var bits [BitsPerFrame]bool
	writeField(&bits, fieldFrameUnits, tc.Frames%10)
	writeField(&bits, fieldFrameTens, tc.Frames/10)
	writeField(&bits, fieldSecondUnits, tc.Seconds%10)
	writeField(&bits, fieldSecondTens, tc.Seconds/10)
	writeField(&bits, fieldMinuteUnits, tc.Minutes%10)
	writeField(&bits, fieldMinuteTens, tc.Minutes/10)
	writeField(&bits, fieldHourUnits, tc.Hours%10)
	writeField(&bits, fieldHourTens, tc.Hours/10)
	bits[dropFrameBit] = tc.DropFrame

	for i, offset := range userBitGroup {
		writeField(&bits, bcdField{offset, 4}, int(user>>(4*i))&0xf)
	}
	copy(bits[64:], syncWord[:])
	return bits
}
