// Package metrics counts payment protocol events and observes per-call
// latency, labeled by chain. NewPrometheusRecorder is the production
// backend; NoopRecorder is the default when the embedding app registers
// nothing.
package metrics

import "time"

// Recorder receives protocol event counters and operation latencies.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
