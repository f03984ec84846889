package pipeline

import (
	"context"
	"time"

	"github.com/oceanline/broker/engine/supervisor"
)

// NewMatchProducer implements the Match Producer (spec.md §4.6, component
// E): it periodically scans the store for vessels with no pair list set and
// enqueues each onto Q3. It never self-stops on an empty scan — an empty
// result just means wait for the next interval and try again, matching
// spec.md §9's resolution that the producer only exits on an explicit stop
// or context cancellation.
func NewMatchProducer(deps *Deps) supervisor.TaskFunc {
	return func(ctx context.Context, stop <-chan struct{}, nTasks int) {
		for {
			if stopped(stop, ctx) {
				return
			}

			ships, err := deps.Store.ScanUnmatchedShips(ctx, deps.ScanBatchSize)
			if err != nil {
				deps.Console.Error("match producer: scan failed", "error", err)
			} else {
				for _, s := range ships {
					if !deps.Queues.Matching.PushWithBackpressure(ctx, stop, deps.Log, deps.AttemptInterval, s) {
						return
					}
				}
			}

			if !sleepOrStop(ctx, stop, deps.ScanInterval) {
				return
			}
		}
	}
}

// NewMatchConsumer implements the Match Consumer (spec.md §4.6, component
// F): for each vessel on Q3, it runs the matching engine against the
// candidate cargoes, writes the pair set back to the store, and forwards
// the vessel onto Q4 for notification.
func NewMatchConsumer(deps *Deps) supervisor.TaskFunc {
	return func(ctx context.Context, stop <-chan struct{}, nTasks int) {
		for {
			ship, ok := deps.Queues.Matching.Pop(ctx, stop)
			if !ok {
				return
			}

			started := time.Now()
			cargoes, err := deps.Matcher.Match(ctx, ship)
			stageDurationHistogram(deps.Metrics, "match").Since(started)
			if err != nil {
				deps.Console.Error("match consumer: matching failed", "ship_id", ship.ID, "error", err)
				stageFailedCounter(deps.Metrics, "match").Inc()
				continue
			}

			ids := make([]string, len(cargoes))
			for i, c := range cargoes {
				ids[i] = c.ID
			}
			if err := deps.Store.UpdateShipPairs(ctx, ship.ID, ids); err != nil {
				deps.Console.Error("match consumer: persist pairs failed", "ship_id", ship.ID, "error", err)
				stageFailedCounter(deps.Metrics, "match").Inc()
				continue
			}
			ship.PairsWith = ids

			if !deps.Queues.Outbound.PushWithBackpressure(ctx, stop, deps.Log, deps.AttemptInterval, ship) {
				return
			}
			stageProcessedCounter(deps.Metrics, "match").Inc()
		}
	}
}
