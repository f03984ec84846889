package pipeline

import (
	"context"
	"time"

	"github.com/oceanline/broker/engine/mail"
	"github.com/oceanline/broker/engine/supervisor"
)

// NewIngestProducer drives the Mail Source Adapter (spec.md §4.2) and
// enqueues each normalized message onto Q1 with backpressure (component B).
// One mailbox read runs to exhaustion (the reader's nextLink cursor runs
// dry), then the producer sleeps MailPollInterval before starting a fresh
// read, so newly-arrived mail is eventually picked up without a durable
// subscription to the provider.
func NewIngestProducer(deps *Deps) supervisor.TaskFunc {
	return func(ctx context.Context, stop <-chan struct{}, nTasks int) {
		for {
			if stopped(stop, ctx) {
				return
			}
			if !ingestOnePass(ctx, stop, deps) {
				return
			}
			if !sleepOrStop(ctx, stop, deps.MailPollInterval) {
				return
			}
		}
	}
}

// ingestOnePass drains the mailbox reader to exhaustion, returning false
// only if the caller should stop entirely (stop/ctx fired mid-push).
func ingestOnePass(ctx context.Context, stop <-chan struct{}, deps *Deps) bool {
	reader := deps.Mail.NewReader(mail.DefaultReadOpts())
	for {
		if stopped(stop, ctx) {
			return false
		}
		batch, ok, err := reader.Next(ctx)
		if err != nil {
			deps.Console.Error("mail: read batch failed", "error", err)
			stageFailedCounter(deps.Metrics, "ingest").Inc()
			return true
		}
		for _, msg := range batch {
			if mail.IsBounce(msg.Subject) {
				deps.Console.TrashEmails("mail: bounce excluded from intake", "subject", msg.Subject)
				continue
			}
			if !deps.Queues.Mailbox.PushWithBackpressure(ctx, stop, deps.Log, deps.AttemptInterval, msg) {
				return false
			}
			stageProcessedCounter(deps.Metrics, "ingest").Inc()
		}
		if !ok {
			return true
		}
	}
}

func stopped(stop <-chan struct{}, ctx context.Context) bool {
	select {
	case <-stop:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func sleepOrStop(ctx context.Context, stop <-chan struct{}, d time.Duration) bool {
	select {
	case <-stop:
		return false
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
