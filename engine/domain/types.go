// Package domain defines the core shipping-broker entities, derived-field
// normalization, and validation gate used at every pipeline stage boundary.
package domain

import "time"

// Email is immutable after insert except for its two bookkeeping timestamps.
type Email struct {
	ID                string     `bson:"_id,omitempty" json:"id,omitempty"`
	ProviderMessageID string     `bson:"provider_message_id" json:"provider_message_id"`
	Subject           string     `bson:"subject" json:"subject"`
	Sender            string     `bson:"sender" json:"sender"`
	Recipients        string     `bson:"recipients" json:"recipients"`
	DateReceived      string     `bson:"date_received" json:"date_received"`
	Body              string     `bson:"body" json:"body"`

	TimestampAddedToDB        time.Time  `bson:"timestamp_added_to_db" json:"timestamp_added_to_db"`
	TimestampEntitiesExtracted *time.Time `bson:"timestamp_entities_extracted,omitempty" json:"timestamp_entities_extracted,omitempty"`

	ExtractedShipIDs  []string `bson:"extracted_ship_ids" json:"extracted_ship_ids"`
	ExtractedCargoIDs []string `bson:"extracted_cargo_ids" json:"extracted_cargo_ids"`
}

// GeoPoint is a GeoJSON Point: coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
}

// GeocodedLocation is the result of a successful (or cached) geocode call.
type GeocodedLocation struct {
	Name     string   `bson:"name" json:"name"`
	Address  string   `bson:"address" json:"address"`
	Location GeoPoint `bson:"location" json:"location"`
	Raw      string   `bson:"raw,omitempty" json:"raw,omitempty"`
}

// Location is the raw, free-text location triple an extraction entry carries.
type Location struct {
	Port  string `bson:"port" json:"port"`
	Sea   string `bson:"sea" json:"sea"`
	Ocean string `bson:"ocean" json:"ocean"`
}

// Ship is a vessel with open tonnage, as extracted from a broker email.
type Ship struct {
	ID string `bson:"_id,omitempty" json:"id,omitempty"`

	Name        string   `bson:"name" json:"name"`
	Status      string   `bson:"status" json:"status"`
	Location    Location `bson:"location" json:"location"`
	Month       string   `bson:"month" json:"month"`
	Capacity    string   `bson:"capacity" json:"capacity"`
	KeywordData string   `bson:"keyword_data" json:"keyword_data"`

	Email            Email     `bson:"email" json:"email"`
	TimestampCreated time.Time `bson:"timestamp_created" json:"timestamp_created"`

	CapacityInt *int `bson:"capacity_int" json:"capacity_int"`
	MonthInt    *int `bson:"month_int" json:"month_int"`

	LocationGeocoded *GeocodedLocation `bson:"location_geocoded" json:"location_geocoded"`

	SeaEmbedding     []float32 `bson:"sea_embedding,omitempty" json:"-"`
	PortEmbedding    []float32 `bson:"port_embedding,omitempty" json:"-"`
	GeneralEmbedding []float32 `bson:"general_embedding,omitempty" json:"-"`

	PairsWith              []string   `bson:"pairs_with" json:"pairs_with"`
	TimestampPairsUpdated  *time.Time `bson:"timestamp_pairs_updated,omitempty" json:"timestamp_pairs_updated,omitempty"`
}

// Cargo is a cargo order, as extracted from a broker email.
type Cargo struct {
	ID string `bson:"_id,omitempty" json:"id,omitempty"`

	Name         string   `bson:"name" json:"name"`
	Quantity     string   `bson:"quantity" json:"quantity"`
	LocationFrom Location `bson:"location_from" json:"location_from"`
	LocationTo   Location `bson:"location_to" json:"location_to"`
	Month        string   `bson:"month" json:"month"`
	Commission   string   `bson:"commission" json:"commission"`
	KeywordData  string   `bson:"keyword_data" json:"keyword_data"`

	Email            Email     `bson:"email" json:"email"`
	TimestampCreated time.Time `bson:"timestamp_created" json:"timestamp_created"`

	QuantityMinInt *int     `bson:"quantity_min_int" json:"quantity_min_int"`
	QuantityMaxInt *int     `bson:"quantity_max_int" json:"quantity_max_int"`
	MonthInt       *int     `bson:"month_int" json:"month_int"`
	CommissionFloat float64 `bson:"commission_float" json:"commission_float"`

	LocationFromGeocoded *GeocodedLocation `bson:"location_from_geocoded" json:"location_from_geocoded"`
	LocationToGeocoded   *GeocodedLocation `bson:"location_to_geocoded" json:"location_to_geocoded"`

	SeaEmbedding     []float32 `bson:"sea_embedding,omitempty" json:"-"`
	PortEmbedding    []float32 `bson:"port_embedding,omitempty" json:"-"`
	GeneralEmbedding []float32 `bson:"general_embedding,omitempty" json:"-"`

	PairsWith []CargoShipPair `bson:"pairs_with" json:"pairs_with"`
}

// CargoShipPair records one scored match between a cargo and a ship.
type CargoShipPair struct {
	CargoID         string    `bson:"cargo_id" json:"cargo_id"`
	ShipID          string    `bson:"ship_id" json:"ship_id"`
	DatetimeCreated time.Time `bson:"datetime_created" json:"datetime_created"`
	Score           float64   `bson:"score" json:"score"`
}

// EntryType distinguishes the two extraction entry shapes the oracle emits.
type EntryType string

const (
	EntryShip  EntryType = "ship"
	EntryCargo EntryType = "cargo"
)

// FailedEntry records an extraction entry that failed validation or geocoding.
type FailedEntry struct {
	ID   string    `bson:"_id,omitempty" json:"id,omitempty"`
	Type EntryType `bson:"type" json:"type"`

	Raw    map[string]any `bson:"raw" json:"raw"`
	Reason string         `bson:"reason" json:"reason"`

	Email            Email     `bson:"email" json:"email"`
	TimestampCreated time.Time `bson:"timestamp_created" json:"timestamp_created"`
}

// ExtractionBundle is an audit record bundling one email with every entity
// and failed entry it produced, for replay and debugging.
type ExtractionBundle struct {
	ID string `bson:"_id,omitempty" json:"id,omitempty"`

	EmailID          string   `bson:"email_id" json:"email_id"`
	ShipIDs          []string `bson:"ship_ids" json:"ship_ids"`
	CargoIDs         []string `bson:"cargo_ids" json:"cargo_ids"`
	FailedEntryIDs   []string `bson:"failed_entry_ids" json:"failed_entry_ids"`
	RawOracleReponse string   `bson:"raw_oracle_response" json:"raw_oracle_response"`

	TimestampCreated time.Time `bson:"timestamp_created" json:"timestamp_created"`
}

// KnownLocation is the geocoder's persistent name→coordinate cache entry.
type KnownLocation struct {
	Name             string    `bson:"name" json:"name"`
	Geocoded         GeocodedLocation `bson:"geocoded" json:"geocoded"`
	TimestampCreated time.Time `bson:"timestamp_created" json:"timestamp_created"`
}

// ExtractionEntry is the raw per-entry shape the oracle returns inside
// `{"entries": [...]}`, before normalization splits it into Ship or Cargo.
type ExtractionEntry struct {
	Type EntryType `json:"type"`

	Name        string `json:"name"`
	Status      string `json:"status"`
	Month       string `json:"month"`
	Capacity    string `json:"capacity"`
	KeywordData string `json:"keyword_data"`

	Location     *Location `json:"location"`
	LocationFrom *Location `json:"location_from"`
	LocationTo   *Location `json:"location_to"`

	Quantity   string `json:"quantity"`
	Commission string `json:"commission"`
}
