package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Media    MediaConfig    `mapstructure:"media"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Report   ReportConfig   `mapstructure:"report"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`   // json or text
	Output     string `mapstructure:"output"`   // stdout, stderr, or file path
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Textfile string `mapstructure:"textfile"` // node_exporter textfile collector path
}

type MediaConfig struct {
	Backend      string        `mapstructure:"backend"` // auto, native or ffmpeg
	FFmpegPath   string        `mapstructure:"ffmpeg_path"`
	FFprobePath  string        `mapstructure:"ffprobe_path"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	AudioStream  int           `mapstructure:"audio_stream"`  // index among audio streams
	ChunkSamples int           `mapstructure:"chunk_samples"` // per audio packet, ffmpeg backend
}

type AnalysisConfig struct {
	AudioChannel     int           `mapstructure:"audio_channel"`
	LTCFrameRate     string        `mapstructure:"ltc_fps"` // empty: same as video
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
}

type ReportConfig struct {
	Mode   string       `mapstructure:"mode"`   // list or verbose
	Format string       `mapstructure:"format"` // text or json
	Output string       `mapstructure:"output"` // stdout or file path
	Color  bool         `mapstructure:"color"`
	EDL    EDLConfig    `mapstructure:"edl"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
	Redis  RedisConfig  `mapstructure:"redis"`
}

type EDLConfig struct {
	Path  string `mapstructure:"path"`
	Title string `mapstructure:"title"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// Load reads configuration from configPath (optional), LTCSPLIT_* environment
// variables and built-in defaults, in increasing order of precedence for the
// first two.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// Environment variable override
	v.SetEnvPrefix("LTCSPLIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Logging defaults
	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 30)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.textfile", "")

	// Media defaults
	v.SetDefault("media.backend", "auto")
	v.SetDefault("media.ffmpeg_path", "ffmpeg")
	v.SetDefault("media.ffprobe_path", "ffprobe")
	v.SetDefault("media.probe_timeout", "30s")
	v.SetDefault("media.audio_stream", 0)
	v.SetDefault("media.chunk_samples", 4800)

	// Analysis defaults
	v.SetDefault("analysis.audio_channel", 0)
	v.SetDefault("analysis.ltc_fps", "")
	v.SetDefault("analysis.progress_interval", "5s")

	// Report defaults
	v.SetDefault("report.mode", "verbose")
	v.SetDefault("report.format", "text")
	v.SetDefault("report.output", "stdout")
	v.SetDefault("report.color", false)
	v.SetDefault("report.edl.path", "")
	v.SetDefault("report.edl.title", "LTCSPLIT")
	v.SetDefault("report.sqlite.path", "")
	v.SetDefault("report.redis.enabled", false)
	v.SetDefault("report.redis.addr", "localhost:6379")
	v.SetDefault("report.redis.db", 0)
	v.SetDefault("report.redis.key_prefix", "ltcsplit:")
	v.SetDefault("report.redis.ttl", "168h")
}
