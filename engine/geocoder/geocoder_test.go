package geocoder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/oceanline/broker/engine/domain"
)

type fakeCache struct {
	byName map[string]domain.KnownLocation
	puts   []domain.KnownLocation
}

func newFakeCache() *fakeCache {
	return &fakeCache{byName: make(map[string]domain.KnownLocation)}
}

func (f *fakeCache) GetKnownLocation(_ context.Context, name string) (*domain.KnownLocation, error) {
	if loc, ok := f.byName[name]; ok {
		return &loc, nil
	}
	return nil, nil
}

func (f *fakeCache) PutKnownLocation(_ context.Context, loc domain.KnownLocation) error {
	f.byName[loc.Name] = loc
	f.puts = append(f.puts, loc)
	return nil
}

func TestResolveCacheHitOnPort(t *testing.T) {
	cache := newFakeCache()
	cache.byName["Rotterdam"] = domain.KnownLocation{
		Name:     "Rotterdam",
		Geocoded: domain.GeocodedLocation{Name: "Rotterdam", Location: domain.GeoPoint{Type: "Point", Coordinates: []float64{4.47, 51.92}}},
	}

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	g := New(srv.Client(), "test-key", cache).WithAPIURL(srv.URL)
	result, err := g.Resolve(context.Background(), domain.Location{Port: "Rotterdam"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || result.Name != "Rotterdam" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if calls != 0 {
		t.Fatal("expected cache hit to skip the remote API")
	}
}

func TestResolveFallsBackFromPortToSeaAndCachesAlias(t *testing.T) {
	cache := newFakeCache()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("address")
		if q == "Jebel Ali" {
			w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
			return
		}
		w.Write([]byte(`{"status":"OK","results":[{"formatted_address":"Persian Gulf","geometry":{"location":{"lat":26.5,"lng":53.5}}}]}`))
	}))
	defer srv.Close()

	g := New(srv.Client(), "test-key", cache).WithAPIURL(srv.URL)
	result, err := g.Resolve(context.Background(), domain.Location{Port: "Jebel Ali", Sea: "Persian Gulf"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || result.Address != "Persian Gulf" {
		t.Fatalf("unexpected result: %+v", result)
	}

	portAlias, ok := cache.byName["Jebel Ali"]
	if !ok {
		t.Fatal("expected sea-level result cached under the port name")
	}
	if portAlias.Geocoded.Address != "Persian Gulf" {
		t.Fatalf("unexpected alias: %+v", portAlias)
	}
}

func TestResolveAllMissesReturnsNil(t *testing.T) {
	cache := newFakeCache()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	}))
	defer srv.Close()

	g := New(srv.Client(), "test-key", cache).WithAPIURL(srv.URL)
	result, err := g.Resolve(context.Background(), domain.Location{Port: "Nowhere", Sea: "Nowhere Sea", Ocean: "Nowhere Ocean"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Fatalf("expected nil result, got %+v", result)
	}
}

func TestResolveEmptyLocationReturnsNil(t *testing.T) {
	cache := newFakeCache()
	g := New(nil, "test-key", cache)
	result, err := g.Resolve(context.Background(), domain.Location{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Fatalf("expected nil result, got %+v", result)
	}
}
