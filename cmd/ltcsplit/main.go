package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/zsiec/ltcsplit/internal/config"
	apperrors "github.com/zsiec/ltcsplit/internal/errors"
	"github.com/zsiec/ltcsplit/internal/logger"
	"github.com/zsiec/ltcsplit/internal/metrics"
	"github.com/zsiec/ltcsplit/internal/pipeline"
	"github.com/zsiec/ltcsplit/internal/report"
	"github.com/zsiec/ltcsplit/pkg/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// options holds the command line. Flags left unset keep the file and
// environment values.
type options struct {
	configPath  string
	showVersion bool
	history     bool
	list        bool
	channel     int
	ltcFPS      string
	backend     string
	format      string
	output      string
	edl         string
	sqlite      string
	redisAddr   string
	metricsFile string
	input       string
}

func parseFlags(args []string, stderr io.Writer) (*options, map[string]bool, error) {
	var opts options
	fs := flag.NewFlagSet(version.Name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s [flags] <input>\n", version.Name)
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	fs.BoolVar(&opts.showVersion, "version", false, "Show version information")
	fs.BoolVar(&opts.history, "history", false, "List the runs stored in the -sqlite database and exit")
	fs.BoolVar(&opts.list, "l", false, "List mode: print only <expected> <observed> <delta> per cut")
	fs.IntVar(&opts.channel, "channel", 0, "Audio channel carrying LTC")
	fs.StringVar(&opts.ltcFPS, "ltc-fps", "", "LTC frame rate when it differs from the video, e.g. 25 or 30000/1001")
	fs.StringVar(&opts.backend, "backend", "", "Media backend: auto, native or ffmpeg")
	fs.StringVar(&opts.format, "format", "", "Report format: text or json")
	fs.StringVar(&opts.output, "o", "", "Report output file (default stdout)")
	fs.StringVar(&opts.edl, "edl", "", "Write a CMX3600 EDL of the continuous segments")
	fs.StringVar(&opts.sqlite, "sqlite", "", "Store the result in this SQLite database")
	fs.StringVar(&opts.redisAddr, "redis", "", "Publish the result to the Redis server at this address")
	fs.StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if !opts.showVersion && !opts.history {
		if fs.NArg() != 1 {
			fs.Usage()
			return nil, nil, apperrors.New(apperrors.ErrorTypeConfiguration, "exactly one input file is required")
		}
		opts.input = fs.Arg(0)
	}
	return &opts, set, nil
}

// applyFlags overrides cfg with the flags that were given.
func applyFlags(cfg *config.Config, opts *options, set map[string]bool) error {
	if opts.list {
		cfg.Report.Mode = "list"
	}
	if set["channel"] {
		cfg.Analysis.AudioChannel = opts.channel
	}
	if set["ltc-fps"] {
		cfg.Analysis.LTCFrameRate = opts.ltcFPS
	}
	if set["backend"] {
		cfg.Media.Backend = opts.backend
	}
	if set["format"] {
		cfg.Report.Format = opts.format
	}
	if set["o"] {
		cfg.Report.Output = opts.output
	}
	if set["edl"] {
		cfg.Report.EDL.Path = opts.edl
	}
	if set["sqlite"] {
		cfg.Report.SQLite.Path = opts.sqlite
	}
	if set["redis"] {
		cfg.Report.Redis.Enabled = true
		cfg.Report.Redis.Addr = opts.redisAddr
	}
	if set["metrics-file"] {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Textfile = opts.metricsFile
	}
	return cfg.Validate()
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, set, err := parseFlags(args, stderr)
	if err == flag.ErrHelp {
		return 0
	}
	if err != nil {
		return apperrors.NewHandler(nil, stderr).Handle(err)
	}

	if opts.showVersion {
		fmt.Fprintln(stdout, version.GetInfo().String())
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return apperrors.NewHandler(nil, stderr).Handle(
			apperrors.Wrap(err, apperrors.ErrorTypeConfiguration, "Failed to load config"))
	}
	if err := applyFlags(cfg, opts, set); err != nil {
		return apperrors.NewHandler(nil, stderr).Handle(
			apperrors.Wrap(err, apperrors.ErrorTypeConfiguration, "Invalid flags"))
	}

	if opts.history {
		return apperrors.NewHandler(nil, stderr).Handle(writeHistory(cfg.Report.SQLite.Path, stdout))
	}

	base, err := logger.New(&cfg.Logging)
	if err != nil {
		return apperrors.NewHandler(nil, stderr).Handle(
			apperrors.Wrap(err, apperrors.ErrorTypeConfiguration, "Failed to initialize logger"))
	}
	handler := apperrors.NewHandler(base, stderr)

	runID := logger.NewRunID()
	ctx = logger.WithRunID(ctx, runID)
	log := logger.NewLogrusAdapter(logger.WithRun(base, runID, opts.input))
	log.WithField("version", version.GetInfo().Short()).Debug("Starting analysis")

	var rec *metrics.Recorder
	if cfg.Metrics.Enabled {
		rec = metrics.NewRecorder()
	}

	res, err := pipeline.Analyze(ctx, opts.input, cfg, log, rec)
	if rec != nil && cfg.Metrics.Textfile != "" {
		if werr := rec.WriteTextfile(cfg.Metrics.Textfile); werr != nil {
			log.WithError(werr).Warn("Failed to write metrics textfile")
		}
	}
	if err != nil {
		return handler.Handle(err)
	}

	if err := writeReport(cfg, res, stdout, stderr); err != nil {
		return handler.Handle(err)
	}
	if err := writeSinks(ctx, cfg, res, base); err != nil {
		return handler.Handle(err)
	}
	return 0
}

func writeReport(cfg *config.Config, res *pipeline.Result, stdout, stderr io.Writer) error {
	verbose := cfg.Report.Mode == "verbose"

	out := stdout
	if cfg.Report.Output != "stdout" {
		f, err := os.Create(cfg.Report.Output)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrorTypeIO, "Unable to create report %q", cfg.Report.Output)
		}
		defer f.Close()
		out = f
	}

	var err error
	switch cfg.Report.Format {
	case "json":
		err = report.WriteJSON(out, res, verbose)
	default:
		err = report.WriteCuts(out, res.Cuts, verbose)
		if err == nil && verbose {
			_, err = fmt.Fprintln(stderr, report.Summary(res, cfg.Report.Color))
		}
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeIO, "Unable to write report")
	}
	return nil
}

func writeSinks(ctx context.Context, cfg *config.Config, res *pipeline.Result, log *logrus.Logger) error {
	if path := cfg.Report.EDL.Path; path != "" {
		f, err := os.Create(path)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrorTypeIO, "Unable to create EDL %q", path)
		}
		err = report.WriteEDL(f, res, cfg.Report.EDL.Title)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrorTypeIO, "Unable to write EDL %q", path)
		}
		log.WithField("path", path).Debug("EDL written")
	}

	if path := cfg.Report.SQLite.Path; path != "" {
		store, err := report.OpenStore(path)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrorTypeIO, "Unable to open database %q", path)
		}
		defer store.Close()
		if err := store.SaveResult(res); err != nil {
			return apperrors.Wrap(err, apperrors.ErrorTypeIO, "Unable to store result in %q", path)
		}
		log.WithField("path", path).Debug("Result stored")
	}

	if cfg.Report.Redis.Enabled {
		pub := report.NewPublisher(cfg.Report.Redis)
		defer pub.Close()
		if err := pub.Check(ctx); err != nil {
			return apperrors.Wrap(err, apperrors.ErrorTypeIO, "Redis at %s unavailable", cfg.Report.Redis.Addr)
		}
		if err := pub.Publish(ctx, res); err != nil {
			return apperrors.Wrap(err, apperrors.ErrorTypeIO, "Unable to publish result")
		}
		log.WithField("addr", cfg.Report.Redis.Addr).Debug("Result published")
	}
	return nil
}

// writeHistory prints one line per stored run followed by its cuts.
func writeHistory(path string, w io.Writer) error {
	if path == "" {
		return apperrors.New(apperrors.ErrorTypeConfiguration, "-history needs a -sqlite database")
	}
	store, err := report.OpenStore(path)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeIO, "Unable to open database %q", path)
	}
	defer store.Close()

	runs, err := store.Runs()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeIO, "Unable to list runs")
	}
	for _, run := range runs {
		entries, err := store.TableEntries(run.ID)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrorTypeIO, "Unable to read run %s", run.ID)
		}
		fmt.Fprintf(w, "%s  %s  %s  %s fps  %d frames  %d timecode events  %d cuts\n",
			run.CreatedAt.Format("2006-01-02 15:04:05"), run.ID, run.Input, run.FrameRate,
			run.VideoFrames, entries, run.CutCount)

		cuts, err := store.CutsFor(run.ID)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrorTypeIO, "Unable to read cuts of run %s", run.ID)
		}
		for _, c := range cuts {
			fmt.Fprintf(w, "    frame %d: %d -> %d (%d %s)\n",
				c.VideoFrameIndex, c.ExpectedFrame, c.ToFrameNumber, c.DeltaFrames, c.DeltaTime)
		}
	}
	return nil
}
