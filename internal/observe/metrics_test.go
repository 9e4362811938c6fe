package observe

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/echoform/internal/stats"
	"github.com/MrWong99/echoform/pkg/audio"
)

// newTestProvider returns a meter provider backed by a ManualReader for
// programmatic metric inspection.
func newTestProvider(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return mp, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	mp, _ := newTestProvider(t)
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestRecognitionDurationHistogram(t *testing.T) {
	mp, reader := newTestProvider(t)
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	m.RecognitionDuration.Record(context.Background(), 0.123)
	m.RecognitionDuration.Record(context.Background(), 0.456)

	rm := collect(t, reader)
	metric := findMetric(rm, "echoform.recognition.duration")
	if metric == nil {
		t.Fatal("echoform.recognition.duration not found")
	}
	hist, ok := metric.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("data type = %T, want Histogram[float64]", metric.Data)
	}
	if got := hist.DataPoints[0].Count; got != 2 {
		t.Errorf("histogram count = %d, want 2", got)
	}
}

func TestRecordTurn(t *testing.T) {
	mp, reader := newTestProvider(t)
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	m.RecordTurn(context.Background(), "started")
	m.RecordTurn(context.Background(), "ended")

	rm := collect(t, reader)
	metric := findMetric(rm, "echoform.turns")
	if metric == nil {
		t.Fatal("echoform.turns not found")
	}
	sum, ok := metric.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("data type = %T, want Sum[int64]", metric.Data)
	}
	if len(sum.DataPoints) != 2 {
		t.Errorf("data points = %d, want 2 (one per event attribute)", len(sum.DataPoints))
	}
}

func TestRegisterQueueMetrics_ObservesCounters(t *testing.T) {
	mp, reader := newTestProvider(t)

	q := audio.NewFrameQueue(2)
	reg, err := RegisterQueueMetrics(mp, q)
	if err != nil {
		t.Fatalf("RegisterQueueMetrics: %v", err)
	}
	t.Cleanup(func() { _ = reg.Unregister() })

	for i := 0; i < 5; i++ {
		q.Push(audio.Frame{Samples: []float32{0}, SampleRate: 16000, Channels: 1})
	}

	rm := collect(t, reader)

	captured := findMetric(rm, "echoform.frames.captured")
	if captured == nil {
		t.Fatal("echoform.frames.captured not found")
	}
	if got := captured.Data.(metricdata.Sum[int64]).DataPoints[0].Value; got != 5 {
		t.Errorf("frames captured = %d, want 5", got)
	}

	dropped := findMetric(rm, "echoform.frames.dropped")
	if dropped == nil {
		t.Fatal("echoform.frames.dropped not found")
	}
	if got := dropped.Data.(metricdata.Sum[int64]).DataPoints[0].Value; got != 3 {
		t.Errorf("frames dropped = %d, want 3", got)
	}

	depth := findMetric(rm, "echoform.queue.depth")
	if depth == nil {
		t.Fatal("echoform.queue.depth not found")
	}
	if got := depth.Data.(metricdata.Gauge[int64]).DataPoints[0].Value; got != 2 {
		t.Errorf("queue depth = %d, want 2", got)
	}
}

func TestRegisterPipelineMetrics_ObservesStats(t *testing.T) {
	mp, reader := newTestProvider(t)

	ps := stats.New(10)
	ps.IncrRenderErrors()
	ps.ObserveVolume(0.8)
	ps.RecordTick(time.Millisecond)

	reg, err := RegisterPipelineMetrics(mp, ps)
	if err != nil {
		t.Fatalf("RegisterPipelineMetrics: %v", err)
	}
	t.Cleanup(func() { _ = reg.Unregister() })

	rm := collect(t, reader)

	renderErrors := findMetric(rm, "echoform.render.errors")
	if renderErrors == nil {
		t.Fatal("echoform.render.errors not found")
	}
	if got := renderErrors.Data.(metricdata.Sum[int64]).DataPoints[0].Value; got != 1 {
		t.Errorf("render errors = %d, want 1", got)
	}

	peak := findMetric(rm, "echoform.volume.peak")
	if peak == nil {
		t.Fatal("echoform.volume.peak not found")
	}
	if got := peak.Data.(metricdata.Gauge[float64]).DataPoints[0].Value; got != 0.8 {
		t.Errorf("peak volume = %v, want 0.8", got)
	}
}
