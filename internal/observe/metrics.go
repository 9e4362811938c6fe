// Package observe provides observability primitives for Echoform:
// OpenTelemetry metrics with a Prometheus exporter bridge so everything is
// scrapeable via the standard /metrics endpoint.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/echoform/internal/stats"
	"github.com/MrWong99/echoform/pkg/audio"
)

// meterName is the instrumentation scope name used for all Echoform metrics.
const meterName = "github.com/MrWong99/echoform"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// RecognitionDuration tracks speech-to-text inference latency.
	RecognitionDuration metric.Float64Histogram

	// Transcripts counts final transcripts produced by the recognizer.
	Transcripts metric.Int64Counter

	// Turns counts conversation turns. Use with attribute:
	//   attribute.String("event", "started"|"ended")
	Turns metric.Int64Counter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for local speech-inference latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.RecognitionDuration, err = m.Float64Histogram("echoform.recognition.duration",
		metric.WithDescription("Latency of speech-to-text inference."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Transcripts, err = m.Int64Counter("echoform.transcripts",
		metric.WithDescription("Total final transcripts produced."),
	); err != nil {
		return nil, err
	}
	if met.Turns, err = m.Int64Counter("echoform.turns",
		metric.WithDescription("Total conversation turn events by event kind."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RegisterPipelineMetrics registers observable instruments that read the
// pipeline stats on every scrape: contained render errors and the
// peak-volume high-water mark. The returned registration should be
// unregistered at shutdown.
func RegisterPipelineMetrics(mp metric.MeterProvider, ps *stats.PipelineStats) (metric.Registration, error) {
	m := mp.Meter(meterName)

	renderErrors, err := m.Int64ObservableCounter("echoform.render.errors",
		metric.WithDescription("Total contained renderer failures."),
	)
	if err != nil {
		return nil, err
	}
	peakVolume, err := m.Float64ObservableGauge("echoform.volume.peak",
		metric.WithDescription("Highest scaled volume observed since start."),
	)
	if err != nil {
		return nil, err
	}

	return m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := ps.Snapshot()
		o.ObserveInt64(renderErrors, s.RenderErrors)
		o.ObserveFloat64(peakVolume, s.PeakVolume)
		return nil
	}, renderErrors, peakVolume)
}

// RegisterQueueMetrics registers observable instruments that read the frame
// queue's counters on every scrape: frames pushed, frames dropped, and the
// current queue depth. The returned registration should be unregistered at
// shutdown.
func RegisterQueueMetrics(mp metric.MeterProvider, q *audio.FrameQueue) (metric.Registration, error) {
	m := mp.Meter(meterName)

	pushed, err := m.Int64ObservableCounter("echoform.frames.captured",
		metric.WithDescription("Total frames pushed by the capture callback."),
	)
	if err != nil {
		return nil, err
	}
	dropped, err := m.Int64ObservableCounter("echoform.frames.dropped",
		metric.WithDescription("Total frames discarded by drop-oldest overflow."),
	)
	if err != nil {
		return nil, err
	}
	depth, err := m.Int64ObservableGauge("echoform.queue.depth",
		metric.WithDescription("Frames currently buffered in the capture queue."),
	)
	if err != nil {
		return nil, err
	}

	return m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		p, d := q.Stats()
		o.ObserveInt64(pushed, int64(p))
		o.ObserveInt64(dropped, int64(d))
		o.ObserveInt64(depth, int64(q.Len()))
		return nil
	}, pushed, dropped, depth)
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordTurn records a turn lifecycle event.
func (m *Metrics) RecordTurn(ctx context.Context, event string) {
	m.Turns.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}
