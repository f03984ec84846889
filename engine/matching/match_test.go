package matching

import (
	"context"
	"testing"
	"time"

	"github.com/oceanline/broker/engine/domain"
	"github.com/oceanline/broker/engine/store"
)

type fakeStore struct {
	cargoes []domain.Cargo
	lastF   store.CandidateFilter
}

func (f *fakeStore) FindCandidateCargoes(ctx context.Context, filt store.CandidateFilter, limit int) ([]domain.Cargo, error) {
	f.lastF = filt
	return f.cargoes, nil
}

func intp(v int) *int { return &v }

func TestMatchGeocodedPreservesNearOrder(t *testing.T) {
	now := time.Now()
	cargoes := []domain.Cargo{
		{ID: "c1", Name: "wheat", QuantityMinInt: intp(9000), QuantityMaxInt: intp(11000), MonthInt: intp(6), CommissionFloat: 2.5, TimestampCreated: now},
		{ID: "c2", Name: "corn", QuantityMinInt: intp(9000), QuantityMaxInt: intp(11000), MonthInt: intp(6), CommissionFloat: 2.5, TimestampCreated: now},
	}
	fs := &fakeStore{cargoes: cargoes}
	ship := domain.Ship{
		ID:               "s1",
		CapacityInt:      intp(10000),
		MonthInt:         intp(6),
		TimestampCreated: now,
		LocationGeocoded: &domain.GeocodedLocation{
			Location: domain.GeoPoint{Type: "Point", Coordinates: []float64{10, 20}},
		},
	}

	eng := New(fs, nil)
	out, err := eng.Match(context.Background(), ship)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 || out[0].ID != "c1" || out[1].ID != "c2" {
		t.Fatalf("expected $near order preserved, got %+v", out)
	}
	if !fs.lastF.HasGeocode {
		t.Fatalf("expected geocode filter to be used")
	}
}

func TestMatchDedupesFixtures(t *testing.T) {
	now := time.Now()
	cargoes := []domain.Cargo{
		{ID: "c1", Name: "wheat", QuantityMinInt: intp(9000), QuantityMaxInt: intp(11000), MonthInt: intp(6), CommissionFloat: 2.5, TimestampCreated: now},
		{ID: "c2", Name: "wheat", QuantityMinInt: intp(9000), QuantityMaxInt: intp(11000), MonthInt: intp(6), CommissionFloat: 2.5, TimestampCreated: now},
	}
	fs := &fakeStore{cargoes: cargoes}
	ship := domain.Ship{ID: "s1", CapacityInt: intp(10000), MonthInt: intp(6), TimestampCreated: now}

	eng := New(fs, nil)
	out, err := eng.Match(context.Background(), ship)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].ID != "c1" {
		t.Fatalf("expected dedup to keep only first occurrence, got %+v", out)
	}
}

func TestMatchNoGeocodeRanksByScore(t *testing.T) {
	now := time.Now()
	cargoes := []domain.Cargo{
		{ID: "far", Name: "a", QuantityMinInt: intp(5000), QuantityMaxInt: intp(6000), MonthInt: intp(1), CommissionFloat: 4.5, TimestampCreated: now.AddDate(0, 0, -40)},
		{ID: "near", Name: "b", QuantityMinInt: intp(9500), QuantityMaxInt: intp(10000), MonthInt: intp(6), CommissionFloat: 1.0, TimestampCreated: now},
	}
	fs := &fakeStore{cargoes: cargoes}
	ship := domain.Ship{ID: "s1", CapacityInt: intp(10000), MonthInt: intp(6), TimestampCreated: now}

	eng := New(fs, nil)
	out, err := eng.Match(context.Background(), ship)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 || out[0].ID != "near" {
		t.Fatalf("expected best-scoring cargo first, got %+v", out)
	}
}

func TestMatchRespectsTopK(t *testing.T) {
	now := time.Now()
	var cargoes []domain.Cargo
	for i := 0; i < 10; i++ {
		cargoes = append(cargoes, domain.Cargo{
			ID: string(rune('a' + i)), Name: string(rune('a' + i)),
			QuantityMinInt: intp(9000), QuantityMaxInt: intp(11000), MonthInt: intp(6),
			CommissionFloat: 2.5, TimestampCreated: now,
		})
	}
	fs := &fakeStore{cargoes: cargoes}
	ship := domain.Ship{
		ID: "s1", CapacityInt: intp(10000), MonthInt: intp(6), TimestampCreated: now,
		LocationGeocoded: &domain.GeocodedLocation{Location: domain.GeoPoint{Type: "Point", Coordinates: []float64{1, 1}}},
	}

	eng := New(fs, nil).WithTopK(3)
	out, err := eng.Match(context.Background(), ship)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected top-3 short list, got %d", len(out))
	}
}
