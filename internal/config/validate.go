package config

import (
	"fmt"

	"github.com/zsiec/ltcsplit/internal/timebase"
)

func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Media.Validate(); err != nil {
		return fmt.Errorf("media config: %w", err)
	}

	if err := c.Analysis.Validate(); err != nil {
		return fmt.Errorf("analysis config: %w", err)
	}

	if err := c.Report.Validate(); err != nil {
		return fmt.Errorf("report config: %w", err)
	}

	return nil
}

func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"panic": true,
		"fatal": true,
		"error": true,
		"warn":  true,
		"info":  true,
		"debug": true,
		"trace": true,
	}

	if !validLevels[l.Level] {
		return fmt.Errorf("invalid log level: %s", l.Level)
	}

	if l.Format != "json" && l.Format != "text" {
		return fmt.Errorf("log format must be 'json' or 'text'")
	}

	if l.Output != "stdout" && l.Output != "stderr" {
		if l.MaxSize <= 0 {
			return fmt.Errorf("max_size must be positive for file output")
		}
		if l.MaxBackups < 0 {
			return fmt.Errorf("max_backups cannot be negative")
		}
		if l.MaxAge < 0 {
			return fmt.Errorf("max_age cannot be negative")
		}
	}

	return nil
}

func (m *MediaConfig) Validate() error {
	switch m.Backend {
	case "auto", "native", "ffmpeg":
	default:
		return fmt.Errorf("backend must be 'auto', 'native' or 'ffmpeg', got %q", m.Backend)
	}

	if m.Backend != "native" {
		if m.FFmpegPath == "" || m.FFprobePath == "" {
			return fmt.Errorf("ffmpeg_path and ffprobe_path are required for the %s backend", m.Backend)
		}
		if m.ProbeTimeout <= 0 {
			return fmt.Errorf("probe_timeout must be positive")
		}
	}

	if m.AudioStream < 0 {
		return fmt.Errorf("audio_stream cannot be negative")
	}

	if m.ChunkSamples <= 0 {
		return fmt.Errorf("chunk_samples must be positive")
	}

	return nil
}

func (a *AnalysisConfig) Validate() error {
	if a.AudioChannel < 0 {
		return fmt.Errorf("audio_channel cannot be negative")
	}

	if a.LTCFrameRate != "" {
		r, err := timebase.ParseRational(a.LTCFrameRate)
		if err != nil {
			return fmt.Errorf("ltc_fps: %w", err)
		}
		if !r.Valid() {
			return fmt.Errorf("ltc_fps must be positive, got %s", a.LTCFrameRate)
		}
	}

	if a.ProgressInterval < 0 {
		return fmt.Errorf("progress_interval cannot be negative")
	}

	return nil
}

// LTCRate returns the configured LTC frame rate, or the zero rational when the
// LTC runs at the video rate.
func (a *AnalysisConfig) LTCRate() timebase.Rational {
	if a.LTCFrameRate == "" {
		return timebase.Rational{}
	}
	r, err := timebase.ParseRational(a.LTCFrameRate)
	if err != nil {
		return timebase.Rational{}
	}
	return r
}

func (r *ReportConfig) Validate() error {
	if r.Mode != "list" && r.Mode != "verbose" {
		return fmt.Errorf("report mode must be 'list' or 'verbose'")
	}

	if r.Format != "text" && r.Format != "json" {
		return fmt.Errorf("report format must be 'text' or 'json'")
	}

	if r.Output == "" {
		return fmt.Errorf("report output cannot be empty")
	}

	if err := r.Redis.Validate(); err != nil {
		return fmt.Errorf("redis config: %w", err)
	}

	return nil
}

func (r *RedisConfig) Validate() error {
	if !r.Enabled {
		return nil
	}

	if r.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	if r.DB < 0 {
		return fmt.Errorf("invalid redis DB: %d", r.DB)
	}

	if r.TTL < 0 {
		return fmt.Errorf("ttl cannot be negative")
	}

	return nil
}
