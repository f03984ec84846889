package matching

import (
	"context"
	"sort"

	"github.com/oceanline/broker/engine/domain"
	"github.com/oceanline/broker/engine/embedindex"
	"github.com/oceanline/broker/engine/store"
)

// DefaultTopK is the default short-list size (spec.md §4.6).
const DefaultTopK = 5

// maxDistanceMeters is the $near geospatial radius (spec.md §4.6: 1,500 km).
const maxDistanceMeters = 1_500_000

// DefaultCandidateLimit bounds how many candidates the hard filter pulls
// before de-duplication and scoring run in-process.
const DefaultCandidateLimit = 200

// CandidateStore is the store surface the matching engine needs: the
// hard-filter query from spec.md §4.6.
type CandidateStore interface {
	FindCandidateCargoes(ctx context.Context, f store.CandidateFilter, limit int) ([]domain.Cargo, error)
}

// Engine runs the two-stage matching algorithm from spec.md §4.6: a
// store-side hard filter followed by in-process de-duplication and scoring.
type Engine struct {
	store CandidateStore
	index *embedindex.CargoIndex // optional cosine-similarity tiebreak; nil disables it
	topK  int
}

// New builds an Engine. index may be nil to disable the embedding tiebreak.
func New(store CandidateStore, index *embedindex.CargoIndex) *Engine {
	return &Engine{store: store, index: index, topK: DefaultTopK}
}

// WithTopK overrides the short-list size (default DefaultTopK).
func (e *Engine) WithTopK(k int) *Engine {
	if k > 0 {
		e.topK = k
	}
	return e
}

// candidateFilter builds the store.CandidateFilter from a ship's derived
// fields, enabling the $near clause only when the ship geocoded.
func candidateFilter(ship domain.Ship) store.CandidateFilter {
	f := store.CandidateFilter{
		CapacityInt: ship.CapacityInt,
		MonthInt:    ship.MonthInt,
		MaxAgeDays:  31,
	}
	if ship.LocationGeocoded != nil && len(ship.LocationGeocoded.Location.Coordinates) == 2 {
		f.HasGeocode = true
		f.NearLon = ship.LocationGeocoded.Location.Coordinates[0]
		f.NearLat = ship.LocationGeocoded.Location.Coordinates[1]
		f.MaxDistanceM = maxDistanceMeters
	}
	return f
}

// Match returns the top-K cargo short-list for ship (spec.md §4.6).
//
// When the ship geocoded, the store's $near clause already orders candidates
// by ascending distance, so de-duplication's first-seen rule keeps the
// nearest of each distinct fixture and the result is returned in that
// geographic order, per spec.md's "base ordering is geographic proximity".
// When the ship has no geocode to filter on, there is no geo ordering to
// preserve, so the reference scoring table (§4.6 "Scoring") ranks the
// deduplicated candidates instead — the "used when no geo filter is
// viable" case from spec.md §4.6.
func (e *Engine) Match(ctx context.Context, ship domain.Ship) ([]domain.Cargo, error) {
	topK := e.topK
	if topK <= 0 {
		topK = DefaultTopK
	}

	filter := candidateFilter(ship)
	candidates, err := e.store.FindCandidateCargoes(ctx, filter, DefaultCandidateLimit)
	if err != nil {
		return nil, err
	}

	deduped := dedupCargoes(candidates)

	if !filter.HasGeocode {
		deduped = e.rankByScore(ctx, ship, deduped)
	}

	if len(deduped) > topK {
		deduped = deduped[:topK]
	}
	return deduped, nil
}

// scoredCargo pairs a cargo with its combined reference-score + cosine
// tiebreak, for the no-geocode fallback ranking.
type scoredCargo struct {
	cargo domain.Cargo
	score float64
}

// rankByScore orders cargoes by the reference scoring table (spec.md §4.6),
// adding a cosine-similarity term over the keyword/port/sea embeddings when
// both sides have one (the "optionally combined with cosine similarity"
// signal, SPEC_FULL §3). The tiebreak prefers the Qdrant-backed CargoIndex
// when one is configured, falling back to the local hashed-embedding
// comparison otherwise.
func (e *Engine) rankByScore(ctx context.Context, ship domain.Ship, cargoes []domain.Cargo) []domain.Cargo {
	cosine := e.cosineLookup(ctx, ship, cargoes)

	raw := make([]float64, len(cargoes))
	for i, c := range cargoes {
		raw[i] = score(ship, c)
	}
	// The reference table's raw totals span a much wider range than the
	// cosine term, so a single outlier fixture would otherwise dominate
	// every tiebreak; rescale them onto [-0.1, 1.0] with median/IQR
	// clipping first.
	normalized := minMaxScaleRobust(raw, -0.1, 1.0)

	scored := make([]scoredCargo, len(cargoes))
	for i, c := range cargoes {
		scored[i] = scoredCargo{cargo: c, score: normalized[i] + cosine(c)}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	out := make([]domain.Cargo, len(scored))
	for i, s := range scored {
		out[i] = s.cargo
	}
	return out
}

// cosineLookup returns a per-cargo similarity function. When the engine has
// a CargoIndex configured and the ship has a keyword embedding, it queries
// Qdrant once for the whole candidate set; a query failure falls back to
// the local hashed-embedding comparison rather than failing the match.
func (e *Engine) cosineLookup(ctx context.Context, ship domain.Ship, cargoes []domain.Cargo) func(domain.Cargo) float64 {
	localCosine := func(c domain.Cargo) float64 {
		var s float64
		if len(ship.GeneralEmbedding) > 0 && len(c.GeneralEmbedding) > 0 {
			s += domain.CosineSimilarity(ship.GeneralEmbedding, c.GeneralEmbedding)
		}
		if len(ship.PortEmbedding) > 0 && len(c.PortEmbedding) > 0 {
			s += 0.5 * domain.CosineSimilarity(ship.PortEmbedding, c.PortEmbedding)
		}
		return s
	}

	if e.index == nil || len(ship.GeneralEmbedding) == 0 || len(cargoes) == 0 {
		return localCosine
	}

	ids := make([]string, len(cargoes))
	for i, c := range cargoes {
		ids[i] = c.ID
	}
	hits, err := e.index.SearchNearest(ctx, ship.GeneralEmbedding, ids, len(ids))
	if err != nil || len(hits) == 0 {
		return localCosine
	}
	byID := make(map[string]float64, len(hits))
	for _, h := range hits {
		byID[h.CargoID] = float64(h.Score)
	}
	return func(c domain.Cargo) float64 {
		if v, ok := byID[c.ID]; ok {
			return v
		}
		return localCosine(c)
	}
}
