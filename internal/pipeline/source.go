package pipeline

import (
	"context"
	"errors"

	"github.com/zsiec/ltcsplit/internal/config"
	apperrors "github.com/zsiec/ltcsplit/internal/errors"
	"github.com/zsiec/ltcsplit/internal/logger"
	"github.com/zsiec/ltcsplit/internal/media"
	"github.com/zsiec/ltcsplit/internal/media/ffmpeg"
	"github.com/zsiec/ltcsplit/internal/media/mp4"
)

// Backend names.
const (
	BackendAuto   = "auto"
	BackendNative = "native"
	BackendFFmpeg = "ffmpeg"
)

// OpenSource opens path with the configured backend and reports which one
// served it. The auto backend tries the native demuxer first and falls back
// to ffmpeg for other containers or compressed audio.
func OpenSource(ctx context.Context, path string, cfg *config.MediaConfig, log logger.Logger) (media.Source, string, error) {
	if log == nil {
		log = logger.NewNullLogger()
	}

	switch cfg.Backend {
	case BackendNative:
		src, err := mp4.Open(path, mp4.Options{AudioStream: cfg.AudioStream})
		if err != nil {
			return nil, "", err
		}
		return src, BackendNative, nil

	case BackendFFmpeg:
		src, err := openFFmpeg(ctx, path, cfg)
		if err != nil {
			return nil, "", err
		}
		return src, BackendFFmpeg, nil
	}

	src, err := mp4.Open(path, mp4.Options{AudioStream: cfg.AudioStream})
	if err == nil {
		return src, BackendNative, nil
	}
	if !errors.Is(err, mp4.ErrNotMP4) && !apperrors.IsType(err, apperrors.ErrorTypeUnsupportedCodec) {
		return nil, "", err
	}

	log.WithError(err).WithField("input", path).Debug("Native demuxer declined, using ffmpeg")
	ff, ffErr := openFFmpeg(ctx, path, cfg)
	if ffErr != nil {
		return nil, "", ffErr
	}
	return ff, BackendFFmpeg, nil
}

func openFFmpeg(ctx context.Context, path string, cfg *config.MediaConfig) (media.Source, error) {
	opts := ffmpeg.Options{
		FFmpegPath:   cfg.FFmpegPath,
		FFprobePath:  cfg.FFprobePath,
		ProbeTimeout: cfg.ProbeTimeout,
		AudioStream:  cfg.AudioStream,
		ChunkSamples: cfg.ChunkSamples,
	}
	if err := ffmpeg.NewChecker(opts).Check(ctx); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeMediaOpen, "Unable to open %q: ffmpeg backend unavailable", path)
	}
	return ffmpeg.Open(ctx, path, opts)
}
