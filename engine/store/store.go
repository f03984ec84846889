// Package store implements the document store (spec.md §3/§6): six
// MongoDB collections, their startup indexes, and the query surface the
// pipeline stages need beyond plain CRUD (dedup lookups, the matching
// engine's geospatial hard filter, the unmatched-vessel scan).
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/oceanline/broker/engine/domain"
	"github.com/oceanline/broker/pkg/repo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collEmails            = "emails"
	collShips             = "ships"
	collCargos            = "cargos"
	collFailedEntries     = "failed_entries"
	collExtractionBundles = "extraction_bundles"
	collKnownLocations    = "known_locations"
)

// Store wraps a MongoDB database with the six logical collections the
// pipeline reads and writes (spec.md §6 "Document store").
type Store struct {
	db *mongo.Database

	Emails            *repo.MongoRepo[domain.Email, string]
	Ships             *repo.MongoRepo[domain.Ship, string]
	Cargos            *repo.MongoRepo[domain.Cargo, string]
	FailedEntries     *repo.MongoRepo[domain.FailedEntry, string]
	ExtractionBundles *repo.MongoRepo[domain.ExtractionBundle, string]
}

// New wires a Store over an already-connected *mongo.Database.
func New(db *mongo.Database) *Store {
	return &Store{
		db:                db,
		Emails:            repo.NewMongoRepo[domain.Email, string](db.Collection(collEmails), "_id"),
		Ships:             repo.NewMongoRepo[domain.Ship, string](db.Collection(collShips), "_id"),
		Cargos:            repo.NewMongoRepo[domain.Cargo, string](db.Collection(collCargos), "_id"),
		FailedEntries:     repo.NewMongoRepo[domain.FailedEntry, string](db.Collection(collFailedEntries), "_id"),
		ExtractionBundles: repo.NewMongoRepo[domain.ExtractionBundle, string](db.Collection(collExtractionBundles), "_id"),
	}
}

func (s *Store) knownLocations() *mongo.Collection { return s.db.Collection(collKnownLocations) }

// EnsureIndexes creates every index required at startup (spec.md §6). A
// failure here is fatal — the process cannot boot without them (spec.md §7).
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.knownLocations().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("store: known_locations.name unique index: %w", err)
	}

	geoIndexes := []struct {
		coll string
		key  string
	}{
		{collShips, "location_geocoded.location"},
		{collCargos, "location_from_geocoded.location"},
		{collCargos, "location_to_geocoded.location"},
	}
	for _, gi := range geoIndexes {
		if _, err := s.db.Collection(gi.coll).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: gi.key, Value: "2dsphere"}},
		}); err != nil {
			return fmt.Errorf("store: %s.%s 2dsphere index: %w", gi.coll, gi.key, err)
		}
	}
	return nil
}

// FindDuplicateEmail implements the dedup check from spec.md §4.3: an
// existing email with the same provider_message_id (when non-empty) or the
// same body is a duplicate.
func (s *Store) FindDuplicateEmail(ctx context.Context, providerMessageID, body string) (*domain.Email, error) {
	filter := bson.M{"body": body}
	if providerMessageID != "" {
		filter = bson.M{"$or": []bson.M{
			{"provider_message_id": providerMessageID},
			{"body": body},
		}}
	}
	var out domain.Email
	err := s.db.Collection(collEmails).FindOne(ctx, filter).Decode(&out)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: find duplicate email: %w", err)
	}
	return &out, nil
}

// AppendExtractedIDs appends newly-created ship/cargo ids onto the parent
// email's cross-ref lists and stamps timestamp_entities_extracted
// (spec.md I2, §4.4 step 5).
func (s *Store) AppendExtractedIDs(ctx context.Context, emailID string, shipIDs, cargoIDs []string) error {
	now := time.Now()
	_, err := s.db.Collection(collEmails).UpdateOne(ctx,
		bson.M{"_id": emailID},
		bson.M{
			"$push": bson.M{
				"extracted_ship_ids":  bson.M{"$each": shipIDs},
				"extracted_cargo_ids": bson.M{"$each": cargoIDs},
			},
			"$set": bson.M{"timestamp_entities_extracted": now},
		},
	)
	if err != nil {
		return fmt.Errorf("store: append extracted ids: %w", err)
	}
	return nil
}

// GetKnownLocation looks up a cached geocode result by exact name (I6).
func (s *Store) GetKnownLocation(ctx context.Context, name string) (*domain.KnownLocation, error) {
	var out domain.KnownLocation
	err := s.knownLocations().FindOne(ctx, bson.M{"name": name}).Decode(&out)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get known location: %w", err)
	}
	return &out, nil
}

// PutKnownLocation inserts a cache entry. A duplicate-key error (another
// writer won the race on the same name) is treated as success since the
// invariant is "inserted at most once per name", not "inserted by us".
func (s *Store) PutKnownLocation(ctx context.Context, loc domain.KnownLocation) error {
	loc.TimestampCreated = time.Now()
	_, err := s.knownLocations().InsertOne(ctx, loc)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("store: put known location: %w", err)
	}
	return nil
}

// ScanUnmatchedShips returns ships that have no timestamp_pairs_updated
// yet, i.e. that have not been through matching — distinguished from
// "matched with zero" via I5 (pairs_with == [] alone does not mean
// processed; a set timestamp_pairs_updated does).
func (s *Store) ScanUnmatchedShips(ctx context.Context, limit int) ([]domain.Ship, error) {
	if limit <= 0 {
		limit = 100
	}
	filter := bson.M{"timestamp_pairs_updated": bson.M{"$exists": false}}
	cur, err := s.db.Collection(collShips).Find(ctx, filter,
		options.Find().SetLimit(int64(limit)).SetSort(bson.D{{Key: "timestamp_created", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("store: scan unmatched ships: %w", err)
	}
	defer cur.Close(ctx)

	var out []domain.Ship
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("store: scan unmatched ships decode: %w", err)
	}
	return out, nil
}

// UpdateShipPairs writes S.pairs_with and stamps timestamp_pairs_updated
// (spec.md §4.6 "Persistence after matching").
func (s *Store) UpdateShipPairs(ctx context.Context, shipID string, cargoIDs []string) error {
	now := time.Now()
	_, err := s.db.Collection(collShips).UpdateOne(ctx,
		bson.M{"_id": shipID},
		bson.M{"$set": bson.M{"pairs_with": cargoIDs, "timestamp_pairs_updated": now}},
	)
	if err != nil {
		return fmt.Errorf("store: update ship pairs: %w", err)
	}
	return nil
}

// CandidateFilter is the hard-filter predicate set for the matching engine
// (spec.md §4.6), built from a ship's derived fields.
type CandidateFilter struct {
	CapacityInt  *int
	MonthInt     *int
	NearLon      float64
	NearLat      float64
	HasGeocode   bool
	MaxDistanceM float64
	MaxAgeDays   int
}

// FindCandidateCargoes runs the hard-filter Mongo query from spec.md §4.6:
// recency window, capacity compatibility (±20%), laycan month proximity
// (±1), commission cap (≤5.00%), both geocodes present, and $near geospatial
// ordering (which both filters by radius and sorts by ascending distance).
func (s *Store) FindCandidateCargoes(ctx context.Context, f CandidateFilter, limit int) ([]domain.Cargo, error) {
	if limit <= 0 {
		limit = 200
	}
	maxAge := f.MaxAgeDays
	if maxAge <= 0 {
		maxAge = 31
	}
	cutoff := time.Now().AddDate(0, 0, -maxAge)
	filter := candidateQueryFilter(f, cutoff)

	cur, err := s.db.Collection(collCargos).Find(ctx, filter, options.Find().SetLimit(int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("store: find candidate cargoes: %w", err)
	}
	defer cur.Close(ctx)

	var out []domain.Cargo
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("store: find candidate cargoes decode: %w", err)
	}
	return out, nil
}

// candidateQueryFilter builds the hard-filter Mongo query document for f.
// The month predicate is a plain non-wrapping ±1 range (spec.md §4.6:
// "|cargo.month_int − S.month_int| ≤ 1"), matching the scorer's own
// non-wrapping abs-diff in engine/matching/score.go's monthModifier — a
// December vessel (month_int=12) does not match a January cargo.
func candidateQueryFilter(f CandidateFilter, cutoff time.Time) bson.M {
	filter := bson.M{
		"timestamp_created":      bson.M{"$gte": cutoff},
		"commission_float":       bson.M{"$lte": 5.00},
		"location_from_geocoded": bson.M{"$ne": nil},
		"location_to_geocoded":   bson.M{"$ne": nil},
	}

	if f.CapacityInt != nil {
		lo := int(float64(*f.CapacityInt) * 0.80)
		hi := int(float64(*f.CapacityInt) * 1.20)
		filter["quantity_max_int"] = bson.M{"$gte": lo}
		filter["quantity_min_int"] = bson.M{"$lte": hi}
	}
	if f.MonthInt != nil {
		filter["month_int"] = bson.M{"$gte": *f.MonthInt - 1, "$lte": *f.MonthInt + 1}
	}

	if f.HasGeocode {
		maxDist := f.MaxDistanceM
		if maxDist <= 0 {
			maxDist = 1_500_000 // 1,500 km, spec.md §4.6
		}
		filter["location_from_geocoded.location"] = bson.M{
			"$near": bson.M{
				"$geometry":    bson.M{"type": "Point", "coordinates": []float64{f.NearLon, f.NearLat}},
				"$maxDistance": maxDist,
			},
		}
	}

	return filter
}
