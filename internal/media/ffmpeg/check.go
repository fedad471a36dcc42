package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Checker verifies the ffmpeg and ffprobe binaries before the backend is
// used.
type Checker struct {
	ffmpegPath  string
	ffprobePath string
	timeout     time.Duration
}

// NewChecker creates a checker for the binaries named in opts.
func NewChecker(opts Options) *Checker {
	opts.setDefaults()
	return &Checker{
		ffmpegPath:  opts.FFmpegPath,
		ffprobePath: opts.FFprobePath,
		timeout:     5 * time.Second,
	}
}

// Check runs both binaries and confirms the PCM encoder the audio pipe
// needs is built in.
func (c *Checker) Check(ctx context.Context) error {
	if _, err := c.run(ctx, c.ffprobePath, "ffprobe version", "-version"); err != nil {
		return fmt.Errorf("ffprobe binary check failed: %w", err)
	}

	if _, err := c.run(ctx, c.ffmpegPath, "ffmpeg version", "-version"); err != nil {
		return fmt.Errorf("ffmpeg binary check failed: %w", err)
	}

	encoders, err := c.run(ctx, c.ffmpegPath, "", "-hide_banner", "-encoders")
	if err != nil {
		return fmt.Errorf("failed to get encoder list: %w", err)
	}
	if !strings.Contains(encoders, pcmCodec) {
		return fmt.Errorf("ffmpeg lacks the %s encoder", pcmCodec)
	}

	return nil
}

// Version returns the first line of `ffmpeg -version`.
func (c *Checker) Version(ctx context.Context) (string, error) {
	out, err := c.run(ctx, c.ffmpegPath, "", "-version")
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(out, "\n")
	return strings.TrimSpace(line), nil
}

func (c *Checker) run(ctx context.Context, binary, expect string, args ...string) (string, error) {
	if !filepath.IsAbs(binary) {
		path, err := exec.LookPath(binary)
		if err != nil {
			return "", fmt.Errorf("%s not found in PATH: %w", binary, err)
		}
		binary = path
	}

	cmdCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	output, err := exec.CommandContext(cmdCtx, binary, args...).Output()
	if err != nil {
		return "", fmt.Errorf("%s %s failed: %w", filepath.Base(binary), strings.Join(args, " "), err)
	}

	out := string(output)
	if expect != "" && !strings.Contains(out, expect) {
		return "", fmt.Errorf("unexpected %s output", filepath.Base(binary))
	}
	return out, nil
}
