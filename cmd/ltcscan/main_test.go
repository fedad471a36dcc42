package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/ltcsplit/internal/media/mp4"
	"github.com/zsiec/ltcsplit/internal/timebase"
)

func TestGenerateThenScan(t *testing.T) {
	dir := t.TempDir()
	wav := filepath.Join(dir, "ltc.wav")
	mov := filepath.Join(dir, "ltc.mov")

	var stdout, stderr bytes.Buffer
	code := run([]string{
		"-generate", wav, "-mov", mov,
		"-start", "01:00:00:20", "-frames", "12",
		"-jump-at", "8", "-jump-to", "02:00:00:00",
	}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	stdout.Reset()
	code = run([]string{wav}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	// The last frame has no closing transition.
	require.Len(t, lines, 11)
	assert.True(t, strings.HasSuffix(lines[0], " 01:00:00:20"), lines[0])
	assert.True(t, strings.HasSuffix(lines[5], " 01:00:01:00"), lines[5])
	assert.True(t, strings.HasSuffix(lines[8], " 02:00:00:00"), lines[8])

	fields := strings.Fields(lines[1])
	require.Len(t, fields, 3)

	src, err := mp4.Open(mov, mp4.Options{})
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, timebase.FrameRate25, src.Video().AvgFrameRate)
}

func TestScanErrors(t *testing.T) {
	notWAV := filepath.Join(t.TempDir(), "x.wav")
	require.NoError(t, os.WriteFile(notWAV, []byte("nope"), 0o644))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "no input", args: nil, want: "exactly one input file is required"},
		{name: "bad rate", args: []string{"-fps", "0", notWAV}, want: "Invalid frame rate"},
		{name: "not a wav", args: []string{notWAV}, want: "Unable to open"},
		{name: "bad start", args: []string{"-generate", filepath.Join(t.TempDir(), "o.wav"), "-start", "1:2"}, want: "Invalid start timecode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, 1, run(tt.args, &stdout, &stderr))
			assert.Contains(t, stderr.String(), tt.want)
		})
	}
}
