// Package metrics records per-run analysis counters on a private registry
// that can be written out for node_exporter's textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ltcsplit"

// Pass labels.
const (
	PassScan = "scan"
	PassSort = "sort"
)

// Recorder holds the metrics of one run. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	packetsTotal     *prometheus.CounterVec
	ltcFramesTotal   prometheus.Counter
	tableEntries     prometheus.Gauge
	videoFramesTotal *prometheus.CounterVec
	ambiguousFrames  prometheus.Gauge
	cutsTotal        prometheus.Counter
	decodeErrors     prometheus.Counter
	passDuration     *prometheus.HistogramVec
	runInfo          *prometheus.GaugeVec
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,

		packetsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_total",
			Help:      "Packets read from the source",
		}, []string{"kind", "pass"}),

		ltcFramesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ltc_frames_decoded_total",
			Help:      "LTC frames decoded from the audio track",
		}),

		tableEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "timecode_table_entries",
			Help:      "Distinct entries in the timecode table",
		}),

		videoFramesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "video_frames_total",
			Help:      "Video frames seen per pass",
		}, []string{"pass"}),

		ambiguousFrames: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ambiguous_frames",
			Help:      "Video frames without a stable timecode reading",
		}),

		cutsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cuts_total",
			Help:      "Timecode discontinuities detected",
		}),

		decodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Audio decode failures",
		}),

		passDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Wall time of each analysis pass",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10), // 10ms to ~43m
		}, []string{"pass"}),

		runInfo: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_info",
			Help:      "Constant 1, labelled with the run being analysed",
		}, []string{"run_id", "input", "frame_rate"}),
	}
}

// Registry exposes the registry, e.g. for tests or an HTTP handler.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// IncPacket counts one packet of kind ("video" or "audio") read in pass.
func (r *Recorder) IncPacket(kind, pass string) {
	if r == nil {
		return
	}
	r.packetsTotal.WithLabelValues(kind, pass).Inc()
}

func (r *Recorder) AddLTCFrames(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.ltcFramesTotal.Add(float64(n))
}

func (r *Recorder) SetTableEntries(n int) {
	if r == nil {
		return
	}
	r.tableEntries.Set(float64(n))
}

func (r *Recorder) IncVideoFrame(pass string) {
	if r == nil {
		return
	}
	r.videoFramesTotal.WithLabelValues(pass).Inc()
}

func (r *Recorder) SetAmbiguousFrames(n uint64) {
	if r == nil {
		return
	}
	r.ambiguousFrames.Set(float64(n))
}

func (r *Recorder) IncCut() {
	if r == nil {
		return
	}
	r.cutsTotal.Inc()
}

func (r *Recorder) IncDecodeError() {
	if r == nil {
		return
	}
	r.decodeErrors.Inc()
}

// ObservePass records how long pass took.
func (r *Recorder) ObservePass(pass string, d time.Duration) {
	if r == nil {
		return
	}
	r.passDuration.WithLabelValues(pass).Observe(d.Seconds())
}

func (r *Recorder) SetRunInfo(runID, input, frameRate string) {
	if r == nil {
		return
	}
	r.runInfo.WithLabelValues(runID, input, frameRate).Set(1)
}

// WriteTextfile writes every metric of the run to path in the text
// exposition format. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
