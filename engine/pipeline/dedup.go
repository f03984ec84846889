package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/oceanline/broker/engine/domain"
	"github.com/oceanline/broker/engine/supervisor"
)

// NewDedupConsumer implements the Dedup & Persist Consumer (spec.md §4.3,
// component C). It drains Q1, drops anything matching an existing email by
// provider_message_id or body (I1), persists the rest, and republishes
// them onto Q2 with the same backpressure discipline.
func NewDedupConsumer(deps *Deps) supervisor.TaskFunc {
	return func(ctx context.Context, stop <-chan struct{}, nTasks int) {
		for {
			msg, ok := deps.Queues.Mailbox.Pop(ctx, stop)
			if !ok {
				return
			}

			dup, err := deps.Store.FindDuplicateEmail(ctx, msg.ID, msg.Body)
			if err != nil {
				deps.Console.Error("dedup: lookup failed", "provider_message_id", msg.ID, "error", err)
				stageFailedCounter(deps.Metrics, "dedup").Inc()
				continue
			}
			if dup != nil {
				// Expected and silent per spec.md §4.3/§7 "Duplicate email at ingest".
				continue
			}

			email := domain.Email{
				ID:                 uuid.NewString(),
				ProviderMessageID:  msg.ID,
				Subject:            msg.Subject,
				Sender:             msg.Sender,
				Recipients:         msg.Recipients,
				DateReceived:       msg.DateReceived.Format(time.RFC3339),
				Body:               msg.Body,
				TimestampAddedToDB: time.Now(),
				ExtractedShipIDs:   []string{},
				ExtractedCargoIDs:  []string{},
			}
			created, err := deps.Store.Emails.Create(ctx, email)
			if err != nil {
				deps.Console.Error("dedup: persist email failed", "provider_message_id", msg.ID, "error", err)
				stageFailedCounter(deps.Metrics, "dedup").Inc()
				continue
			}

			if !deps.Queues.Extraction.PushWithBackpressure(ctx, stop, deps.Log, deps.AttemptInterval, created) {
				return
			}
			stageProcessedCounter(deps.Metrics, "dedup").Inc()
		}
	}
}
