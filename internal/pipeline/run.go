package pipeline

import (
	"context"

	"github.com/zsiec/ltcsplit/internal/config"
	"github.com/zsiec/ltcsplit/internal/logger"
	"github.com/zsiec/ltcsplit/internal/metrics"
)

// Analyze opens path, runs both passes and closes the source on every path.
func Analyze(ctx context.Context, path string, cfg *config.Config, log logger.Logger, rec *metrics.Recorder) (*Result, error) {
	if log == nil {
		log = logger.NewNullLogger()
	}
	runID := logger.GetRunID(ctx)
	if runID == "" {
		runID = logger.NewRunID()
	}

	src, backend, err := OpenSource(ctx, path, &cfg.Media, log)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			log.WithError(cerr).Warn("Failed to close source")
		}
	}()

	log.WithFields(map[string]interface{}{
		"run_id":  runID,
		"input":   path,
		"backend": backend,
	}).Debug("Source opened")

	analyzer := NewAnalyzer(Options{
		AudioChannel:     cfg.Analysis.AudioChannel,
		LTCRate:          cfg.Analysis.LTCRate(),
		ProgressInterval: cfg.Analysis.ProgressInterval,
	}, log, rec)
	return analyzer.Run(ctx, src, runID, path)
}
