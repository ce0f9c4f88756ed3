// Package metrics exposes prometheus metrics for avwrap pipelines.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zsiec/avwrap/pkg/engine"
	"github.com/zsiec/avwrap/pkg/media"
)

// Pipeline stages used as the "stage" label.
const (
	StageRead   = "read"
	StageDecode = "decode"
	StageEncode = "encode"
	StageWrite  = "write"
)

var (
	packetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "avwrap_packets_total",
		Help: "Packets or frames handled per pipeline stage",
	}, []string{"stage", "type"})

	bytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "avwrap_bytes_total",
		Help: "Payload bytes handled per pipeline stage",
	}, []string{"stage", "type"})

	resultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "avwrap_engine_results_total",
		Help: "Engine call outcomes per stage and status",
	}, []string{"stage", "status"})

	rescalesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "avwrap_rescales_total",
		Help: "Buffers rescaled between timebases",
	})

	droppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "avwrap_dropped_packets_total",
		Help: "Packets skipped by the pipeline",
	}, []string{"reason"})

	jobsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "avwrap_jobs_active",
		Help: "Jobs currently running",
	})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "avwrap_job_duration_seconds",
		Help:    "Job wall clock duration",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10), // 10ms to ~43min
	}, []string{"mode", "outcome"})
)

var (
	livePayloads = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "avwrap_payloads_live",
		Help: "Payload buffers currently referenced",
	}, func() float64 { return float64(media.LivePayloads()) })

	allocatedPayloads = prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "avwrap_payloads_allocated_total",
		Help: "Payload buffers allocated since start",
	}, func() float64 { return float64(media.TotalPayloads()) })
)

func init() {
	registerOrExisting(prometheus.DefaultRegisterer, livePayloads)
	registerOrExisting(prometheus.DefaultRegisterer, allocatedPayloads)
}

// registerOrExisting registers c, returning the collector already
// registered under the same descriptor instead of failing.
func registerOrExisting(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
	}
	return c
}

// RegisterPayloadCollectors adds the payload collectors to reg, for servers
// that expose a private registry.
func RegisterPayloadCollectors(reg prometheus.Registerer) {
	registerOrExisting(reg, livePayloads)
	registerOrExisting(reg, allocatedPayloads)
}

// RecordPacket counts one buffer of n bytes at stage.
func RecordPacket(stage string, t media.ContentType, n int) {
	packetsTotal.WithLabelValues(stage, t.String()).Inc()
	bytesTotal.WithLabelValues(stage, t.String()).Add(float64(n))
}

// RecordResult counts an engine outcome at stage.
func RecordResult(stage string, res engine.Result) {
	resultsTotal.WithLabelValues(stage, res.Status.String()).Inc()
}

// RecordRescale counts one timebase conversion.
func RecordRescale() {
	rescalesTotal.Inc()
}

// RecordDrop counts a skipped packet.
func RecordDrop(reason string) {
	droppedTotal.WithLabelValues(reason).Inc()
}

// JobStarted marks a job as running and returns the function that records
// its end.
func JobStarted(mode string) func(outcome string) {
	start := time.Now()
	jobsActive.Inc()
	return func(outcome string) {
		jobsActive.Dec()
		jobDuration.WithLabelValues(mode, outcome).Observe(time.Since(start).Seconds())
	}
}
