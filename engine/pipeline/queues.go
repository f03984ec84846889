// Package pipeline wires the stage graph from spec.md §2/§5: four bounded
// queues and the five families of producer/consumer tasks connecting the
// mail adapter, the document store, the extraction oracle, the geocoder,
// and the matching engine.
package pipeline

import (
	"github.com/oceanline/broker/engine/domain"
	"github.com/oceanline/broker/engine/mail"
	"github.com/oceanline/broker/engine/queue"
)

// Queue capacities (spec.md §5): Q1 Mailbox 2,000; Q2 Extraction 500;
// Q3 Matching 1,500; Q4 Outbound 20.
const (
	Q1Capacity = 2000
	Q2Capacity = 500
	Q3Capacity = 1500
	Q4Capacity = 20
)

// Queues holds the four stage queues connecting the pipeline's producer and
// consumer tasks.
type Queues struct {
	Mailbox    *queue.Queue[mail.Message]  // Q1: raw messages awaiting dedup/persist
	Extraction *queue.Queue[domain.Email]  // Q2: persisted emails awaiting extraction
	Matching   *queue.Queue[domain.Ship]   // Q3: ships awaiting the matching engine
	Outbound   *queue.Queue[domain.Ship]   // Q4: matched ships awaiting notification
}

// NewQueues builds the four stage queues at their spec-default capacities.
func NewQueues() *Queues {
	return &Queues{
		Mailbox:    queue.New[mail.Message]("mailbox", Q1Capacity),
		Extraction: queue.New[domain.Email]("extraction", Q2Capacity),
		Matching:   queue.New[domain.Ship]("matching", Q3Capacity),
		Outbound:   queue.New[domain.Ship]("outbound", Q4Capacity),
	}
}
