// Command ltcscan prints the LTC frames found in a WAV file, or generates
// LTC test material.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/zsiec/ltcsplit/internal/audio"
	apperrors "github.com/zsiec/ltcsplit/internal/errors"
	"github.com/zsiec/ltcsplit/internal/ltc"
	"github.com/zsiec/ltcsplit/internal/media"
	"github.com/zsiec/ltcsplit/internal/media/mp4"
	"github.com/zsiec/ltcsplit/internal/timebase"
	"github.com/zsiec/ltcsplit/internal/timecode"
	"github.com/zsiec/ltcsplit/pkg/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	fps        string
	channel    int
	generate   string
	movie      string
	start      string
	frames     int
	jumpAt     int
	jumpTo     string
	sampleRate int
	input      string
}

func run(args []string, stdout, stderr io.Writer) int {
	handler := apperrors.NewHandler(nil, stderr)

	var opts options
	fs := flag.NewFlagSet("ltcscan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: ltcscan [flags] <input.wav>")
		fmt.Fprintln(stderr, "       ltcscan -generate <out.wav> [-mov <out.mov>] [flags]")
		fs.PrintDefaults()
	}
	showVersion := fs.Bool("version", false, "Show version information")
	fs.StringVar(&opts.fps, "fps", "25", "LTC frame rate")
	fs.IntVar(&opts.channel, "channel", 0, "Channel to decode")
	fs.StringVar(&opts.generate, "generate", "", "Write an LTC WAV file instead of decoding")
	fs.StringVar(&opts.movie, "mov", "", "With -generate, also write a QuickTime movie carrying the LTC")
	fs.StringVar(&opts.start, "start", "10:00:00:00", "First generated timecode")
	fs.IntVar(&opts.frames, "frames", 250, "Number of generated frames")
	fs.IntVar(&opts.jumpAt, "jump-at", 0, "Frame index at which the generated timecode jumps (0: never)")
	fs.StringVar(&opts.jumpTo, "jump-to", "", "Timecode continued from at -jump-at")
	fs.IntVar(&opts.sampleRate, "rate", 48000, "Generated sample rate")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return handler.Handle(err)
	}
	if *showVersion {
		fmt.Fprintln(stdout, version.GetInfo().String())
		return 0
	}

	fps, err := timebase.ParseRational(opts.fps)
	if err != nil || !fps.Valid() {
		return handler.Handle(apperrors.New(apperrors.ErrorTypeInvalidRate, "Invalid frame rate %q", opts.fps))
	}

	if opts.generate != "" {
		return handler.Handle(generate(opts, fps))
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return handler.Handle(apperrors.New(apperrors.ErrorTypeConfiguration, "exactly one input file is required"))
	}
	opts.input = fs.Arg(0)
	return handler.Handle(scan(opts, fps, stdout))
}

// scan prints "<start> <end> <timecode>" for every decoded frame.
func scan(opts options, fps timebase.Rational, w io.Writer) error {
	buf, rate, err := audio.ReadWAV(opts.input)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeMediaOpen, "Unable to open %q", opts.input)
	}
	if opts.channel >= buf.Channels {
		return apperrors.New(apperrors.ErrorTypeConfiguration,
			"Channel %d out of range, %q has %d", opts.channel, opts.input, buf.Channels)
	}
	samples, err := audio.ToU8(buf, opts.channel)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeUnsupportedFormat, "Unable to convert audio")
	}

	dec := ltc.NewDecoder(float64(rate) / fps.Float64())
	dec.Feed(samples, 0)
	for frame := range dec.Poll() {
		if _, err := fmt.Fprintf(w, "%d %d %s\n", frame.Start, frame.End, frame.Timecode); err != nil {
			return apperrors.Wrap(err, apperrors.ErrorTypeIO, "Unable to write output")
		}
	}
	return nil
}

func generate(opts options, fps timebase.Rational) error {
	start, err := timecode.Parse(opts.start)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeConfiguration, "Invalid start timecode")
	}
	if opts.frames <= 0 {
		return apperrors.New(apperrors.ErrorTypeConfiguration, "frames must be positive")
	}

	enc := ltc.NewEncoder(float64(opts.sampleRate) / fps.Float64())
	var samples []uint8
	if opts.jumpAt > 0 && opts.jumpAt < opts.frames {
		to, err := timecode.Parse(opts.jumpTo)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrorTypeConfiguration, "Invalid jump timecode")
		}
		samples = enc.EncodeRun(start, opts.jumpAt, fps)
		samples = append(samples, enc.EncodeRun(to, opts.frames-opts.jumpAt, fps)...)
	} else {
		samples = enc.EncodeRun(start, opts.frames, fps)
	}

	if err := audio.WriteWAV(opts.generate, samples, opts.sampleRate); err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeIO, "Unable to write %q", opts.generate)
	}

	if opts.movie == "" {
		return nil
	}
	f, err := os.Create(opts.movie)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeIO, "Unable to create %q", opts.movie)
	}
	err = mp4.WriteMovie(f, mp4.Movie{
		FrameRate:  fps,
		Frames:     opts.frames,
		SampleRate: opts.sampleRate,
		Channels:   1,
		Audio:      media.U8ToS16(samples, 1),
		GOP:        int(fps.Ceil()),
	})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeIO, "Unable to write %q", opts.movie)
	}
	return nil
}
