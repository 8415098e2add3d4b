// Package metrics exposes Prometheus instrumentation for the fuzzer.
//
// A Metrics value satisfies the observer interfaces of the delivery and
// firehose packages, so wiring is a matter of passing it in.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "apfuzz"

// Tick outcomes recorded on FirehoseTicks.
const (
	TickOK     = "ok"
	TickFailed = "failed"
)

// Metrics holds every collector.
type Metrics struct {
	// FirehoseTicks counts ticks by outcome. Labels: status (ok, failed).
	FirehoseTicks *prometheus.CounterVec

	// FirehoseRunning is 1 while a firehose is active.
	FirehoseRunning prometheus.Gauge

	// DeliveryRequests counts POSTs by status_class (2xx, 4xx, error...).
	DeliveryRequests *prometheus.CounterVec

	// DeliveryDuration measures POST round trips.
	DeliveryDuration prometheus.Histogram

	// Synthesized counts synthesized messages by activity_type.
	Synthesized *prometheus.CounterVec

	// MintedObjects counts stored sub-objects.
	MintedObjects prometheus.Counter
}

// New registers the collectors with reg. Pass prometheus.NewRegistry() in
// tests to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FirehoseTicks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "firehose",
			Name:      "ticks_total",
			Help:      "Firehose ticks by outcome.",
		}, []string{"status"}),
		FirehoseRunning: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "firehose",
			Name:      "running",
			Help:      "1 while the firehose is running.",
		}),
		DeliveryRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "requests_total",
			Help:      "Signed POSTs by response status class.",
		}, []string{"status_class"}),
		DeliveryDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "duration_seconds",
			Help:      "Round trip time of signed POSTs.",
			Buckets:   prometheus.DefBuckets,
		}),
		Synthesized: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synth_total",
			Help:      "Synthesized messages by activity type.",
		}, []string{"activity_type"}),
		MintedObjects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "minted_objects_total",
			Help:      "Dereferenceable sub-objects stored.",
		}),
	}
}

// ObserveDelivery records one completed POST.
func (m *Metrics) ObserveDelivery(statusClass string, elapsed time.Duration) {
	m.DeliveryRequests.WithLabelValues(statusClass).Inc()
	m.DeliveryDuration.Observe(elapsed.Seconds())
}

// ObserveTick records one firehose tick.
func (m *Metrics) ObserveTick(ok bool) {
	status := TickOK
	if !ok {
		status = TickFailed
	}
	m.FirehoseTicks.WithLabelValues(status).Inc()
}

// SetRunning flips the running gauge.
func (m *Metrics) SetRunning(running bool) {
	if running {
		m.FirehoseRunning.Set(1)
		return
	}
	m.FirehoseRunning.Set(0)
}

// ObserveSynth records one synthesized message.
func (m *Metrics) ObserveSynth(activityType string) {
	if activityType == "" {
		activityType = "unknown"
	}
	m.Synthesized.WithLabelValues(activityType).Inc()
}

// Minter matches the minting seam of the synthesizer.
type Minter interface {
	Mint(ctx context.Context, object map[string]any, accountURL string) (string, error)
}

type countingMinter struct {
	next    Minter
	counter prometheus.Counter
}

func (c countingMinter) Mint(ctx context.Context, object map[string]any, accountURL string) (string, error) {
	id, err := c.next.Mint(ctx, object, accountURL)
	if err == nil {
		c.counter.Inc()
	}
	return id, err
}

// InstrumentMinter counts successful mints made through next.
func (m *Metrics) InstrumentMinter(next Minter) Minter {
	return countingMinter{next: next, counter: m.MintedObjects}
}
