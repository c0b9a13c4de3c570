// Package metrics exposes Prometheus counters and histograms for a single
// pipeline run, following the counter/histogram naming cartographus uses in
// its own internal/metrics package.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// RecordsRead counts raw XML records yielded by EventSource, by source kind.
	RecordsRead = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adgraph",
		Subsystem: "eventsource",
		Name:      "records_read_total",
		Help:      "Records yielded by the event source, by input kind.",
	}, []string{"kind"})

	// RecordsSkipped counts records the Extractor skips because their XML or
	// SystemTime could not be parsed, by reason.
	RecordsSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adgraph",
		Subsystem: "eventsource",
		Name:      "records_skipped_total",
		Help:      "Malformed records skipped during iteration.",
	}, []string{"reason"})

	// EventsExtracted counts watched records inside the time window that the
	// extractor dispatches, by event id, before any field validation; it is
	// not a count of emitted AuthEvents.
	EventsExtracted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adgraph",
		Subsystem: "extractor",
		Name:      "events_extracted_total",
		Help:      "Watched records dispatched by the extractor, by EventID.",
	}, []string{"event_id"})

	// ValidationFailures is registered for field validation rejections, by
	// field; no extractor code path increments it, so it stays at zero
	// during a pipeline run.
	ValidationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adgraph",
		Subsystem: "extractor",
		Name:      "validation_failures_total",
		Help:      "Fields replaced with the sentinel after failing validation.",
	}, []string{"field"})

	// PipelineDuration tracks wall time of each pipeline stage.
	PipelineDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "adgraph",
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Duration of each pipeline stage.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stage"})

	// GraphWrites counts nodes/edges written by GraphWriter, by label.
	GraphWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adgraph",
		Subsystem: "graphsink",
		Name:      "writes_total",
		Help:      "Nodes and edges written to the sink, by label.",
	}, []string{"label"})
)

// Registry is a dedicated registry so a caller embedding this pipeline in a
// larger service (e.g. the out-of-scope web façade) can mount it without
// clobbering the default global registry.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(RecordsRead, RecordsSkipped, EventsExtracted, ValidationFailures, PipelineDuration, GraphWrites)
}
