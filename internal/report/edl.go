package report

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/zsiec/ltcsplit/internal/pipeline"
	"github.com/zsiec/ltcsplit/internal/timecode"
)

// WriteEDL writes a CMX3600 edit decision list with one event per
// continuous segment. Source timecodes come from the LTC; the record side
// lays the segments end to end from zero.
func WriteEDL(w io.Writer, res *pipeline.Result, title string) error {
	fps := res.FrameRate
	reel := reelName(res.Input)

	// Frame numbers count nominal frames, so timecodes are always non-drop.
	lines := []string{fmt.Sprintf("TITLE: %s", title), "FCM: NON-DROP FRAME", ""}

	jumps := make(map[uint64]int, len(res.Cuts))
	for i, cut := range res.Cuts {
		jumps[cut.VideoFrameIndex] = i
	}

	var record uint64
	for i, seg := range res.Segments {
		frames := seg.Frames()
		srcIn := timecode.FromFrameNumber(seg.StartFrameNumber, fps)
		srcOut := timecode.FromFrameNumber(seg.StartFrameNumber+frames, fps)
		recIn := timecode.FromFrameNumber(record, fps)
		recOut := timecode.FromFrameNumber(record+frames, fps)

		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, reel, "V", srcIn, srcOut, recIn, recOut),
			fmt.Sprintf("* FROM CLIP NAME:  %s", filepath.Base(res.Input)),
			fmt.Sprintf("* VIDEO FRAMES:  %d-%d", seg.FirstVideoFrame, seg.LastVideoFrame),
		)
		if j, ok := jumps[seg.FirstVideoFrame]; ok {
			cut := res.Cuts[j]
			lines = append(lines, fmt.Sprintf("* LTC JUMP:  %d -> %d (%s)", cut.ExpectedFrame, cut.ToFrameNumber, cut.DeltaTime))
		}

		record += frames
	}

	lines = append(lines, "")
	_, err := io.WriteString(w, strings.Join(lines, "\n"))
	return err
}

// reelName derives an 8-character reel from the input file name.
func reelName(input string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	var b strings.Builder
	for _, r := range strings.ToUpper(base) {
		if b.Len() == 8 {
			break
		}
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "AX"
	}
	return b.String()
}
