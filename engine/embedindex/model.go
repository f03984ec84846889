// Package embedindex stores cargo keyword/port/sea embeddings in Qdrant and
// serves nearest-neighbor queries for the matching engine's cosine-
// similarity tiebreak.
package embedindex

// SearchResult represents a single vector search hit.
type SearchResult struct {
	CargoID string  `json:"cargo_id"`
	Score   float32 `json:"score"`
}

// Record represents one cargo's embedding to store in Qdrant.
type Record struct {
	CargoID   string
	Embedding []float32
}
