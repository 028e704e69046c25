// Package metrics exposes Prometheus collectors for the upload pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a private registry. A nil *Recorder records nothing.
type Recorder struct {
	registry       *prometheus.Registry
	events         *prometheus.CounterVec
	uploads        *prometheus.CounterVec
	uploadDuration prometheus.Histogram
	uploadBytes    prometheus.Counter
}

// NewRecorder registers the bridge collectors plus Go and process collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "immich_bridge_events_total",
				Help: "Inbound Telegram events by kind",
			},
			[]string{"kind"},
		),
		uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "immich_bridge_uploads_total",
				Help: "Finished upload attempts by outcome",
			},
			[]string{"outcome"},
		),
		uploadDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "immich_bridge_upload_duration_seconds",
				Help:    "Duration of the POST /assets call",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
		),
		uploadBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "immich_bridge_upload_bytes_total",
				Help: "Bytes sent to Immich",
			},
		),
	}
	r.registry.MustRegister(
		r.events,
		r.uploads,
		r.uploadDuration,
		r.uploadBytes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Event counts one inbound event.
func (r *Recorder) Event(kind string) {
	if r == nil {
		return
	}
	r.events.WithLabelValues(kind).Inc()
}

// Outcome counts one finished pipeline run.
func (r *Recorder) Outcome(outcome string) {
	if r == nil {
		return
	}
	r.uploads.WithLabelValues(outcome).Inc()
}

// Upload records a completed POST /assets call.
func (r *Recorder) Upload(d time.Duration, bytes int64) {
	if r == nil {
		return
	}
	r.uploadDuration.Observe(d.Seconds())
	r.uploadBytes.Add(float64(bytes))
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
