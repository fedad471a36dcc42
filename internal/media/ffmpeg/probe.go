// Package ffmpeg reads media through the ffprobe and ffmpeg binaries, for
// containers and codecs the native demuxer does not handle.
package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/zsiec/ltcsplit/internal/timebase"
)

type probeOutput struct {
	Streams []probeStream `json:"streams"`
}

type probeStream struct {
	Index         int    `json:"index"`
	CodecName     string `json:"codec_name"`
	CodecType     string `json:"codec_type"`
	TimeBase      string `json:"time_base"`
	AvgFrameRate  string `json:"avg_frame_rate"`
	CodecTimeBase string `json:"codec_time_base"`
	TicksPerFrame int64  `json:"ticks_per_frame"`
	SampleRate    string `json:"sample_rate"`
	Channels      int    `json:"channels"`
	SampleFmt     string `json:"sample_fmt"`
	StartPTS      *int64 `json:"start_pts"`
}

// rate parses an ffprobe rational, treating anything unparsable as unknown.
func rate(s string) timebase.Rational {
	r, err := timebase.ParseRational(s)
	if err != nil {
		return timebase.Rational{}
	}
	return r
}

func (p *probeOutput) nth(codecType string, n int) (*probeStream, int) {
	count := 0
	for i := range p.Streams {
		if p.Streams[i].CodecType != codecType {
			continue
		}
		if count == n {
			return &p.Streams[i], count + 1
		}
		count++
	}
	return nil, count
}

func parseProbe(data []byte) (*probeOutput, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding ffprobe output: %w", err)
	}
	return &out, nil
}

func (s *Source) probeStreams(ctx context.Context) (*probeOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.opts.FFprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		s.path,
	)
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ffprobe timed out after %v", s.opts.ProbeTimeout)
		}
		return nil, fmt.Errorf("ffprobe: %w%s", err, stderrOf(err))
	}
	return parseProbe(out)
}

type videoPacket struct {
	pts      int64
	keyframe bool
}

// parsePackets reads "pts,dts,flags" CSV rows. A missing pts falls back to
// dts; rows with neither are dropped. The result is in presentation order.
func parsePackets(r io.Reader) ([]videoPacket, error) {
	var packets []videoPacket
	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		fields := strings.Split(text, ",")
		if len(fields) < 3 {
			return nil, fmt.Errorf("packet line %d: expected pts,dts,flags, got %q", line, text)
		}

		ts, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			if ts, err = strconv.ParseInt(fields[1], 10, 64); err != nil {
				continue
			}
		}
		packets = append(packets, videoPacket{
			pts:      ts,
			keyframe: strings.HasPrefix(fields[2], "K"),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading packet list: %w", err)
	}

	sort.SliceStable(packets, func(i, j int) bool { return packets[i].pts < packets[j].pts })
	return packets, nil
}

func (s *Source) listVideoPackets(ctx context.Context) ([]videoPacket, error) {
	cmd := exec.CommandContext(ctx, s.opts.FFprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "packet=pts,dts,flags",
		"-of", "csv=p=0",
		s.path,
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe packets: %w%s", err, stderrOf(err))
	}
	return parsePackets(bytes.NewReader(out))
}

func stderrOf(err error) string {
	if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
		return ": " + strings.TrimSpace(string(exitErr.Stderr))
	}
	return ""
}
