// Package geocoder resolves a {port, sea, ocean} location triple to
// coordinates, trying progressively broader names and caching hits in the
// known-location store.
//
// No geocoding client exists anywhere in the example pack, so this talks
// to the Google Geocoding HTTP API directly over net/http — the one
// deliberate standard-library exception in this module, documented in
// DESIGN.md.
package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/oceanline/broker/engine/domain"
	"github.com/oceanline/broker/engine/geograph"
	"github.com/google/uuid"
)

const geocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// Cache is the subset of engine/store.Store the geocoder needs, kept as an
// interface so tests can substitute an in-memory double.
type Cache interface {
	GetKnownLocation(ctx context.Context, name string) (*domain.KnownLocation, error)
	PutKnownLocation(ctx context.Context, loc domain.KnownLocation) error
}

// Geocoder resolves location triples via a try-with-fallback port → sea →
// ocean algorithm, backed by Cache and the Google Geocoding API.
type Geocoder struct {
	http      *http.Client
	apiKey    string
	cache     Cache
	apiURL    string
	hierarchy *geograph.GraphStore // optional; nil disables containment recording
	log       *slog.Logger
}

// New builds a Geocoder. httpClient may be nil to use a sensible default.
func New(httpClient *http.Client, apiKey string, cache Cache) *Geocoder {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Geocoder{http: httpClient, apiKey: apiKey, cache: cache, apiURL: geocodeURL, log: slog.Default()}
}

// WithHierarchy attaches a port/sea/ocean containment graph store. When
// set, every fully-qualified {port, sea, ocean} resolve records the
// containment edges so an operator can browse siblings of an unresolved
// location by hand (engine/geograph). Best-effort: a graph write failure
// never fails the resolve itself.
func (g *Geocoder) WithHierarchy(store *geograph.GraphStore) *Geocoder {
	g.hierarchy = store
	return g
}

// WithAPIURL overrides the Google Geocoding endpoint, for tests that
// substitute an httptest server.
func (g *Geocoder) WithAPIURL(u string) *Geocoder {
	g.apiURL = u
	return g
}

// Resolve runs the try-with-fallback algorithm over loc: port first, then
// sea, then ocean, returning the first successful geocode. It returns nil,
// nil when every non-empty field fails to resolve.
func (g *Geocoder) Resolve(ctx context.Context, loc domain.Location) (*domain.GeocodedLocation, error) {
	if loc.Port != "" {
		result, err := g.lookup(ctx, loc.Port)
		if err != nil {
			return nil, err
		}
		if result != nil {
			g.recordHierarchy(ctx, loc)
			return result, nil
		}
	}

	if loc.Sea != "" {
		result, err := g.lookup(ctx, loc.Sea)
		if err != nil {
			return nil, err
		}
		if result != nil {
			// The port failed to resolve on its own, but the sea did: cache
			// a copy of the sea-level result under the port name so a
			// future request for that exact port short-circuits here.
			if loc.Port != "" {
				alias := *result
				alias.Name = loc.Port
				if err := g.cache.PutKnownLocation(ctx, domain.KnownLocation{
					Name:             alias.Name,
					Geocoded:         alias,
					TimestampCreated: time.Now().UTC(),
				}); err != nil {
					return nil, fmt.Errorf("geocoder: cache port alias for sea match: %w", err)
				}
			}
			g.recordHierarchy(ctx, loc)
			return result, nil
		}
	}

	if loc.Ocean != "" {
		result, err := g.lookup(ctx, loc.Ocean)
		if err != nil {
			return nil, err
		}
		if result != nil {
			g.recordHierarchy(ctx, loc)
			return result, nil
		}
	}

	return nil, nil
}

// recordHierarchy persists the port→sea and sea→ocean containment edges
// implied by a resolved triple, when a hierarchy store is attached and at
// least two of the three levels are known. Failures are logged, not
// propagated: the graph is a diagnostic side-store, never load-bearing for
// a resolve.
func (g *Geocoder) recordHierarchy(ctx context.Context, loc domain.Location) {
	if g.hierarchy == nil {
		return
	}
	if loc.Port != "" && loc.Sea != "" {
		port := geograph.LocationNode{ID: nodeID(string(geograph.KindPort), loc.Port), Name: loc.Port, Kind: geograph.KindPort}
		sea := geograph.LocationNode{ID: nodeID(string(geograph.KindSea), loc.Sea), Name: loc.Sea, Kind: geograph.KindSea}
		edge := geograph.ContainsEdge{ID: nodeID("edge", port.ID+">"+sea.ID), From: port.ID, To: sea.ID}
		if err := g.hierarchy.SaveContainment(ctx, port, sea, edge); err != nil {
			g.log.Warn("geocoder: record port-sea containment failed", "port", loc.Port, "sea", loc.Sea, "error", err)
		}
	}
	if loc.Sea != "" && loc.Ocean != "" {
		sea := geograph.LocationNode{ID: nodeID(string(geograph.KindSea), loc.Sea), Name: loc.Sea, Kind: geograph.KindSea}
		ocean := geograph.LocationNode{ID: nodeID(string(geograph.KindOcean), loc.Ocean), Name: loc.Ocean, Kind: geograph.KindOcean}
		edge := geograph.ContainsEdge{ID: nodeID("edge", sea.ID+">"+ocean.ID), From: sea.ID, To: ocean.ID}
		if err := g.hierarchy.SaveContainment(ctx, sea, ocean, edge); err != nil {
			g.log.Warn("geocoder: record sea-ocean containment failed", "sea", loc.Sea, "ocean", loc.Ocean, "error", err)
		}
	}
}

// nodeID derives a stable id for a hierarchy node or edge so repeated
// resolves of the same name MERGE onto one graph node instead of creating
// a duplicate every call.
func nodeID(kind, name string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(kind+":"+name)).String()
}

// lookup checks the cache by exact name, falling back to the remote API on
// a miss and caching any remote hit.
func (g *Geocoder) lookup(ctx context.Context, name string) (*domain.GeocodedLocation, error) {
	known, err := g.cache.GetKnownLocation(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("geocoder: cache lookup %q: %w", name, err)
	}
	if known != nil {
		return &known.Geocoded, nil
	}

	result, err := g.geocodeRemote(ctx, name)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	if err := g.cache.PutKnownLocation(ctx, domain.KnownLocation{
		Name:             name,
		Geocoded:         *result,
		TimestampCreated: time.Now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("geocoder: cache remote hit %q: %w", name, err)
	}
	return result, nil
}

type geocodeAPIResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// geocodeRemote calls the Google Geocoding API for name. A "ZERO_RESULTS"
// status is a normal miss, not an error.
func (g *Geocoder) geocodeRemote(ctx context.Context, name string) (*domain.GeocodedLocation, error) {
	q := url.Values{}
	q.Set("address", name)
	q.Set("key", g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoder: request %q: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoder: unexpected status %d for %q", resp.StatusCode, name)
	}

	var parsed geocodeAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("geocoder: decode response for %q: %w", name, err)
	}
	if parsed.Status == "ZERO_RESULTS" || len(parsed.Results) == 0 {
		return nil, nil
	}
	if parsed.Status != "OK" {
		return nil, fmt.Errorf("geocoder: status %q for %q", parsed.Status, name)
	}

	top := parsed.Results[0]
	return &domain.GeocodedLocation{
		Name:    name,
		Address: top.FormattedAddress,
		Location: domain.GeoPoint{
			Type:        "Point",
			Coordinates: []float64{top.Geometry.Location.Lng, top.Geometry.Location.Lat},
		},
	}, nil
}
