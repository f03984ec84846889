package pipeline

import (
	"context"
	"time"

	"github.com/oceanline/broker/engine/supervisor"
	"github.com/oceanline/broker/pkg/metrics"
)

// Task names, registered once at startup (spec.md §4.1: "keep it as one
// table, do not spread registration across call sites").
const (
	TaskIngest         = "ingest_producer"
	TaskDedupPersist   = "dedup_persist_consumer"
	TaskExtraction     = "extraction_consumer"
	TaskMatchProducer  = "match_producer"
	TaskMatchConsumer  = "match_consumer"
	TaskOutbound       = "outbound_producer"
	TaskCapacityReport = "capacity_reporter"
)

// capacityReportInterval is how often the capacity reporter logs queue
// depths to the console's "capacities" channel.
const capacityReportInterval = 10 * time.Second

// RegisterAll registers every pipeline task with sup, following the
// supervisor's static-table convention. Callers start/stop tasks by name
// through the supervisor afterward (optionally via the "<N>_<base>"
// worker-count shortcut, e.g. "4_extraction_consumer").
func RegisterAll(sup *supervisor.Supervisor, deps *Deps) {
	deps.applyDefaults()
	if deps.Queues == nil {
		deps.Queues = NewQueues()
	}

	sup.Register(supervisor.Task{Name: TaskIngest, Kind: supervisor.Producer, Fn: NewIngestProducer(deps)})
	sup.Register(supervisor.Task{Name: TaskDedupPersist, Kind: supervisor.Consumer, Fn: NewDedupConsumer(deps)})
	sup.Register(supervisor.Task{Name: TaskExtraction, Kind: supervisor.Consumer, Fn: NewExtractionConsumer(deps)})
	sup.Register(supervisor.Task{Name: TaskMatchProducer, Kind: supervisor.Producer, Fn: NewMatchProducer(deps)})
	sup.Register(supervisor.Task{Name: TaskMatchConsumer, Kind: supervisor.Consumer, Fn: NewMatchConsumer(deps)})
	sup.Register(supervisor.Task{Name: TaskOutbound, Kind: supervisor.Consumer, Fn: NewOutboundProducer(deps)})
	sup.Register(supervisor.Task{Name: TaskCapacityReport, Kind: supervisor.Producer, Fn: newCapacityReporter(deps)})
}

// newCapacityReporter periodically logs every queue's depth to the
// "capacities" operator channel (spec.md §6 channel list).
func newCapacityReporter(deps *Deps) supervisor.TaskFunc {
	return func(ctx context.Context, stop <-chan struct{}, nTasks int) {
		for {
			if stopped(stop, ctx) {
				return
			}
			q := deps.Queues
			deps.Console.Capacities("queue depths",
				"mailbox", q.Mailbox.Len(), "mailbox_cap", q.Mailbox.Cap(),
				"extraction", q.Extraction.Len(), "extraction_cap", q.Extraction.Cap(),
				"matching", q.Matching.Len(), "matching_cap", q.Matching.Cap(),
				"outbound", q.Outbound.Len(), "outbound_cap", q.Outbound.Cap(),
			)
			reportQueueMetrics(deps.Metrics, "mailbox", q.Mailbox.Len(), q.Mailbox.Cap())
			reportQueueMetrics(deps.Metrics, "extraction", q.Extraction.Len(), q.Extraction.Cap())
			reportQueueMetrics(deps.Metrics, "matching", q.Matching.Len(), q.Matching.Cap())
			reportQueueMetrics(deps.Metrics, "outbound", q.Outbound.Len(), q.Outbound.Cap())
			if !sleepOrStop(ctx, stop, capacityReportInterval) {
				return
			}
		}
	}
}

// reportQueueMetrics sets a queue's depth and capacity gauges (SPEC_FULL
// §2: "queue depth gauges").
func reportQueueMetrics(reg *metrics.Registry, queue string, depth, capacity int) {
	queueDepthGauge(reg, queue).Set(int64(depth))
	queueCapGauge(reg, queue).Set(int64(capacity))
}
