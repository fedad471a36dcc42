// Package report renders analysis results: cut lines, a summary, JSON, an
// edit decision list, and the persistent sinks.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/zsiec/ltcsplit/internal/align"
	"github.com/zsiec/ltcsplit/internal/pipeline"
	"github.com/zsiec/ltcsplit/internal/timecode"
)

// WriteCuts writes one line per cut, in list or verbose form.
func WriteCuts(w io.Writer, cuts []align.CutDecision, verbose bool) error {
	for _, cut := range cuts {
		if _, err := fmt.Fprintln(w, cut.Line(verbose)); err != nil {
			return err
		}
	}
	return nil
}

var (
	accent = lipgloss.Color("#FF6B35")
	muted  = lipgloss.Color("#90A4AE")
	alert  = lipgloss.Color("#F44336")
	good   = lipgloss.Color("#4CAF50")
)

type styles struct {
	title lipgloss.Style
	label lipgloss.Style
	value lipgloss.Style
	warn  lipgloss.Style
	ok    lipgloss.Style
	box   lipgloss.Style
}

func newStyles(color bool) styles {
	s := styles{
		title: lipgloss.NewStyle().Bold(color),
		label: lipgloss.NewStyle().Width(18),
		value: lipgloss.NewStyle(),
		warn:  lipgloss.NewStyle(),
		ok:    lipgloss.NewStyle(),
		box:   lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1),
	}
	if color {
		s.title = s.title.Foreground(accent)
		s.label = s.label.Foreground(muted)
		s.warn = s.warn.Foreground(alert).Bold(true)
		s.ok = s.ok.Foreground(good)
		s.box = s.box.BorderForeground(accent)
	}
	return s
}

// Summary renders a boxed overview of res and its segments.
func Summary(res *pipeline.Result, color bool) string {
	s := newStyles(color)

	row := func(label string, value string) string {
		return s.label.Render(label) + s.value.Render(value)
	}

	cuts := s.ok.Render("0")
	if n := len(res.Cuts); n > 0 {
		cuts = s.warn.Render(fmt.Sprint(n))
	}

	lines := []string{
		s.title.Render("LTC continuity report"),
		"",
		row("Input", res.Input),
		row("Run", res.RunID),
		row("Frame rate", fmt.Sprintf("%s (%s)", res.FrameRate, res.RateSource)),
		row("Audio time base", res.AudioTimeBase.String()),
		row("Frame duration", fmt.Sprintf("%d samples", res.FrameDuration)),
		row("Video frames", fmt.Sprint(res.VideoFrames)),
		row("LTC frames", fmt.Sprint(res.LTCFrames)),
		row("Ambiguous frames", fmt.Sprint(res.AmbiguousFrames)),
		row("Cuts", cuts),
		row("Elapsed", res.Elapsed.Round(time.Millisecond).String()),
	}

	if len(res.Segments) > 0 {
		lines = append(lines, "", s.title.Render("Segments"))
		for _, seg := range res.Segments {
			start := timecode.FromFrameNumber(seg.StartFrameNumber, res.FrameRate)
			lines = append(lines, fmt.Sprintf("%3d  frames %6d-%-6d  %s  (%d frames)",
				seg.Index+1, seg.FirstVideoFrame, seg.LastVideoFrame, start, seg.Frames()))
		}
	}

	return s.box.Render(strings.Join(lines, "\n"))
}
