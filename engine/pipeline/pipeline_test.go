package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/oceanline/broker/engine/domain"
)

func TestEntryToMapRoundTrips(t *testing.T) {
	entry := domain.ExtractionEntry{
		Type:        domain.EntryShip,
		Name:        "MV Example",
		Capacity:    "30000",
		Location:    &domain.Location{Port: "Rotterdam"},
		KeywordData: "grain",
	}
	out, err := entryToMap(entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["name"] != "MV Example" {
		t.Fatalf("expected name to round-trip, got %+v", out)
	}
	loc, ok := out["location"].(map[string]any)
	if !ok || loc["port"] != "Rotterdam" {
		t.Fatalf("expected nested location to round-trip, got %+v", out["location"])
	}
}

func TestStoppedReportsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan struct{})

	if stopped(stop, ctx) {
		t.Fatal("expected not stopped initially")
	}
	cancel()
	if !stopped(stop, ctx) {
		t.Fatal("expected stopped after context cancellation")
	}
}

func TestStoppedReportsStopSignal(t *testing.T) {
	stop := make(chan struct{})
	close(stop)
	if !stopped(stop, context.Background()) {
		t.Fatal("expected stopped after stop channel closed")
	}
}

func TestSleepOrStopReturnsFalseOnStop(t *testing.T) {
	stop := make(chan struct{})
	close(stop)
	if sleepOrStop(context.Background(), stop, time.Minute) {
		t.Fatal("expected sleepOrStop to return false when stop already fired")
	}
}

func TestSleepOrStopReturnsTrueAfterDuration(t *testing.T) {
	stop := make(chan struct{})
	if !sleepOrStop(context.Background(), stop, time.Millisecond) {
		t.Fatal("expected sleepOrStop to return true after the duration elapses")
	}
}
