package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounters(t *testing.T) {
	r := NewRecorder()

	r.IncPacket("video", PassScan)
	r.IncPacket("video", PassScan)
	r.IncPacket("audio", PassScan)
	r.IncPacket("video", PassSort)
	r.AddLTCFrames(10)
	r.AddLTCFrames(-1)
	r.SetTableEntries(9)
	r.IncVideoFrame(PassScan)
	r.IncVideoFrame(PassSort)
	r.IncVideoFrame(PassSort)
	r.SetAmbiguousFrames(2)
	r.IncCut()
	r.IncDecodeError()

	assert.Equal(t, float64(2), testutil.ToFloat64(r.packetsTotal.WithLabelValues("video", PassScan)))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.packetsTotal.WithLabelValues("audio", PassScan)))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.packetsTotal.WithLabelValues("video", PassSort)))
	assert.Equal(t, float64(10), testutil.ToFloat64(r.ltcFramesTotal))
	assert.Equal(t, float64(9), testutil.ToFloat64(r.tableEntries))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.videoFramesTotal.WithLabelValues(PassSort)))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.ambiguousFrames))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.cutsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.decodeErrors))
}

func TestPassDurationHistogram(t *testing.T) {
	r := NewRecorder()
	r.ObservePass(PassScan, 1500*time.Millisecond)
	r.ObservePass(PassScan, 500*time.Millisecond)

	families, err := r.Registry().Gather()
	require.NoError(t, err)

	var hist *dto.Histogram
	for _, mf := range families {
		if mf.GetName() == "ltcsplit_pass_duration_seconds" {
			require.Len(t, mf.GetMetric(), 1)
			hist = mf.GetMetric()[0].GetHistogram()
		}
	}
	require.NotNil(t, hist)
	assert.Equal(t, uint64(2), hist.GetSampleCount())
	assert.InDelta(t, 2.0, hist.GetSampleSum(), 1e-9)
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.SetRunInfo("run-1", "take.mov", "25/1")
	r.IncCut()

	path := filepath.Join(t.TempDir(), "ltcsplit.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "ltcsplit_cuts_total 1")
	assert.True(t, strings.Contains(text, `ltcsplit_run_info{frame_rate="25/1",input="take.mov",run_id="run-1"} 1`))
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.IncPacket("video", PassScan)
		r.AddLTCFrames(1)
		r.SetTableEntries(1)
		r.IncVideoFrame(PassSort)
		r.SetAmbiguousFrames(1)
		r.IncCut()
		r.IncDecodeError()
		r.ObservePass(PassSort, time.Second)
		r.SetRunInfo("a", "b", "c")
	})
	assert.Nil(t, r.Registry())
	assert.NoError(t, r.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}
