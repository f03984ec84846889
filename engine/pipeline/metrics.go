package pipeline

import "github.com/oceanline/broker/pkg/metrics"

// Metric names follow the teacher's cmd/ingest/main.go convention: one
// Prometheus-style base name per concern, with a "stage" or "queue" label
// baked in via metrics.WithLabels so each stage/queue gets its own series
// without a distinct registry entry per call site.
const (
	metricQueueDepth     = "broker_queue_depth"
	metricQueueCapacity  = "broker_queue_capacity"
	metricStageProcessed = "broker_stage_processed_total"
	metricStageFailed    = "broker_stage_failed_total"
	metricStageDurationS = "broker_stage_duration_seconds"
)

func queueDepthGauge(reg *metrics.Registry, queue string) *metrics.Gauge {
	return reg.Gauge(metrics.WithLabels(metricQueueDepth, "queue", queue), "Current depth of a pipeline queue")
}

func queueCapGauge(reg *metrics.Registry, queue string) *metrics.Gauge {
	return reg.Gauge(metrics.WithLabels(metricQueueCapacity, "queue", queue), "Configured capacity of a pipeline queue")
}

func stageProcessedCounter(reg *metrics.Registry, stage string) *metrics.Counter {
	return reg.Counter(metrics.WithLabels(metricStageProcessed, "stage", stage), "Units successfully processed by a pipeline stage")
}

func stageFailedCounter(reg *metrics.Registry, stage string) *metrics.Counter {
	return reg.Counter(metrics.WithLabels(metricStageFailed, "stage", stage), "Units that failed processing in a pipeline stage")
}

func stageDurationHistogram(reg *metrics.Registry, stage string) *metrics.Histogram {
	return reg.Histogram(metrics.WithLabels(metricStageDurationS, "stage", stage), "Per-stage processing duration", nil)
}
