package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oceanline/broker/engine/domain"
	"github.com/oceanline/broker/engine/supervisor"
	"github.com/oceanline/broker/pkg/fn"
	"github.com/oceanline/broker/pkg/resilience"
)

// extractionPace is the minimum gap between units a single worker processes
// (spec.md §4.4 step 6: "sleep ≥1 s between units to rate-pace the oracle").
const extractionPace = time.Second

// NewExtractionConsumer implements the Extraction Consumer Pool (spec.md
// §4.4, component D): nTasks workers, each pulling one email at a time off
// Q2, calling the oracle, normalizing/geocoding/validating entries, and
// persisting the result. The shared semaphore of width N from spec.md §4.1
// is realized directly as nTasks goroutines each independently draining Q2.
func NewExtractionConsumer(deps *Deps) supervisor.TaskFunc {
	stage := newExtractionStage(deps)
	return func(ctx context.Context, stop <-chan struct{}, nTasks int) {
		if nTasks <= 0 {
			nTasks = 1
		}
		var wg sync.WaitGroup
		for i := 0; i < nTasks; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				extractionWorker(ctx, stop, deps, stage)
			}()
		}
		wg.Wait()
	}
}

func extractionWorker(ctx context.Context, stop <-chan struct{}, deps *Deps, stage fn.Stage[domain.Email, domain.ExtractionBundle]) {
	for {
		email, ok := deps.Queues.Extraction.Pop(ctx, stop)
		if !ok {
			return
		}
		processEmail(ctx, deps, email, stage)
		if !sleepOrStop(ctx, stop, extractionPace) {
			return
		}
	}
}

// extractionUnit threads the parent email alongside the oracle's entries and
// raw response through the two fn.Stage steps below, since fn.Then only
// carries a single value between stages.
type extractionUnit struct {
	Email   domain.Email
	Entries []domain.ExtractionEntry
	Raw     string
}

// newOracleStage wraps the rate-limited oracle call as an fn.Stage (spec.md
// §4.4 steps 1-2), guarded by a circuit breaker so a sustained oracle
// outage fails fast instead of queuing every worker up behind the
// provider's timeout.
func newOracleStage(deps *Deps) fn.Stage[domain.Email, extractionUnit] {
	call := func(ctx context.Context, email domain.Email) fn.Result[extractionUnit] {
		if deps.OracleLimiter != nil {
			if err := deps.OracleLimiter.Wait(ctx); err != nil {
				return fn.Err[extractionUnit](err)
			}
		}
		entries, raw, err := deps.Oracle.ExtractWithRaw(ctx, email.Body)
		if err != nil {
			return fn.Err[extractionUnit](fmt.Errorf("oracle: extraction call failed: %w", err))
		}
		return fn.Ok(extractionUnit{Email: email, Entries: entries, Raw: raw})
	}
	breaker := resilience.NewBreaker(resilience.DefaultBreakerOpts)
	return resilience.BreakerStage(breaker, call)
}

// newPersistStage wraps per-entry normalize/geocode/validate/persist (spec.md
// §4.4 steps 3-5) and the bundle write as a single fn.Stage.
func newPersistStage(deps *Deps) fn.Stage[extractionUnit, domain.ExtractionBundle] {
	return func(ctx context.Context, unit extractionUnit) fn.Result[domain.ExtractionBundle] {
		email := unit.Email
		var shipIDs, cargoIDs, failedIDs []string
		for _, entry := range unit.Entries {
			if err := domain.ValidateEntryType(entry); err != nil {
				if id := persistFailedEntry(ctx, deps, entry.Type, entry, err.Error(), email); id != "" {
					failedIDs = append(failedIDs, id)
				}
				continue
			}

			switch entry.Type {
			case domain.EntryShip:
				id, ok := processShipEntry(ctx, deps, entry, email)
				if ok {
					shipIDs = append(shipIDs, id)
				} else if id != "" {
					failedIDs = append(failedIDs, id)
				}
			case domain.EntryCargo:
				id, ok := processCargoEntry(ctx, deps, entry, email)
				if ok {
					cargoIDs = append(cargoIDs, id)
				} else if id != "" {
					failedIDs = append(failedIDs, id)
				}
			}
		}

		bundle := domain.ExtractionBundle{
			ID:               uuid.NewString(),
			EmailID:          email.ID,
			ShipIDs:          shipIDs,
			CargoIDs:         cargoIDs,
			FailedEntryIDs:   failedIDs,
			RawOracleReponse: unit.Raw,
			TimestampCreated: time.Now(),
		}
		if _, err := deps.Store.ExtractionBundles.Create(ctx, bundle); err != nil {
			deps.Console.Error("extraction: persist bundle failed", "email_id", email.ID, "error", err)
		}
		if err := deps.Store.AppendExtractedIDs(ctx, email.ID, shipIDs, cargoIDs); err != nil {
			deps.Console.Error("extraction: append extracted ids failed", "email_id", email.ID, "error", err)
		}
		return fn.Ok(bundle)
	}
}

// newExtractionStage composes the oracle and persist stages, each wrapped in
// an OTel span (spec.md §6 tracing), via the same Then/TracedStage
// composition pkg/fn uses throughout this module.
func newExtractionStage(deps *Deps) fn.Stage[domain.Email, domain.ExtractionBundle] {
	return fn.Then(
		fn.TracedStage("extraction.oracle", newOracleStage(deps)),
		fn.TracedStage("extraction.persist", newPersistStage(deps)),
	)
}

// processEmail runs one email through the extraction stage. Every error is
// confined to this single email.
func processEmail(ctx context.Context, deps *Deps, email domain.Email, stage fn.Stage[domain.Email, domain.ExtractionBundle]) {
	started := time.Now()
	result := stage(ctx, email)
	stageDurationHistogram(deps.Metrics, "extraction").Since(started)
	if result.IsErr() {
		_, err := result.Unwrap()
		deps.Console.GPT("extraction: pipeline failed", "email_id", email.ID, "error", err)
		stageFailedCounter(deps.Metrics, "extraction").Inc()
		return
	}
	stageProcessedCounter(deps.Metrics, "extraction").Inc()
}

// processShipEntry normalizes, geocodes, validates, and persists a ship
// entry. ok is false if the entry ended up as a FailedEntry instead; id is
// either the new ship's id (ok=true) or the failed entry's id (ok=false).
func processShipEntry(ctx context.Context, deps *Deps, entry domain.ExtractionEntry, email domain.Email) (id string, ok bool) {
	ship := domain.ShipFromEntry(entry, email)
	domain.NormalizeShip(&ship)

	geocoded, err := deps.Geocoder.Resolve(ctx, ship.Location)
	if err != nil {
		deps.Console.Error("geocoder: resolve ship location failed", "email_id", email.ID, "error", err)
		return "", false
	}
	ship.LocationGeocoded = geocoded

	if err := domain.ValidateShip(ship); err != nil {
		return persistFailedEntry(ctx, deps, domain.EntryShip, entry, err.Error(), email), false
	}

	ship.ID = uuid.NewString()
	created, err := deps.Store.Ships.Create(ctx, ship)
	if err != nil {
		deps.Console.Error("extraction: persist ship failed", "email_id", email.ID, "error", err)
		return "", false
	}
	return created.ID, true
}

// processCargoEntry is processShipEntry's cargo counterpart: a resolve error
// on either location_from or location_to drops the entry, while a location
// that resolves to nothing is stored with a nil geocode.
func processCargoEntry(ctx context.Context, deps *Deps, entry domain.ExtractionEntry, email domain.Email) (id string, ok bool) {
	cargo := domain.CargoFromEntry(entry, email)
	domain.NormalizeCargo(&cargo)

	fromGeo, err := deps.Geocoder.Resolve(ctx, cargo.LocationFrom)
	if err != nil {
		deps.Console.Error("geocoder: resolve cargo origin failed", "email_id", email.ID, "error", err)
		return "", false
	}
	toGeo, err := deps.Geocoder.Resolve(ctx, cargo.LocationTo)
	if err != nil {
		deps.Console.Error("geocoder: resolve cargo destination failed", "email_id", email.ID, "error", err)
		return "", false
	}
	cargo.LocationFromGeocoded = fromGeo
	cargo.LocationToGeocoded = toGeo

	if err := domain.ValidateCargo(cargo); err != nil {
		return persistFailedEntry(ctx, deps, domain.EntryCargo, entry, err.Error(), email), false
	}

	cargo.ID = uuid.NewString()
	created, err := deps.Store.Cargos.Create(ctx, cargo)
	if err != nil {
		deps.Console.Error("extraction: persist cargo failed", "email_id", email.ID, "error", err)
		return "", false
	}
	return created.ID, true
}

// persistFailedEntry records a validation failure as a FailedEntry row
// (spec.md §7 "Validation" / §4.4 step 4) and logs it to the extra channel.
// Returns the new row's id, or "" if even that write failed.
func persistFailedEntry(ctx context.Context, deps *Deps, entryType domain.EntryType, entry domain.ExtractionEntry, reason string, email domain.Email) string {
	deps.Console.Extra("extraction: entry failed validation", "email_id", email.ID, "type", entryType, "reason", reason)

	raw, err := entryToMap(entry)
	if err != nil {
		deps.Console.Error("extraction: encode failed entry failed", "email_id", email.ID, "error", err)
		return ""
	}

	failed := domain.FailedEntryFromRaw(entryType, raw, reason, email)
	failed.ID = uuid.NewString()
	created, err := deps.Store.FailedEntries.Create(ctx, failed)
	if err != nil {
		deps.Console.Error("extraction: persist failed entry failed", "email_id", email.ID, "error", err)
		return ""
	}
	return created.ID
}

// entryToMap round-trips an ExtractionEntry through JSON to get the
// map[string]any shape FailedEntry.Raw expects, since a rejected entry may
// not cleanly fit the typed shape it was decoded into.
func entryToMap(entry domain.ExtractionEntry) (map[string]any, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
