package domain

import "time"

// NormalizeShip fills in the derived fields (capacity_int, month_int,
// embeddings) on a freshly extracted Ship. Call before ValidateShip.
func NormalizeShip(s *Ship) {
	s.CapacityInt = NormalizeShipCapacity(s.Capacity)
	s.MonthInt = ExtractMonth(s.Month)
	s.SeaEmbedding = HashEmbedding(s.Location.Sea)
	s.PortEmbedding = HashEmbedding(s.Location.Port)
	s.GeneralEmbedding = HashEmbedding(s.KeywordData)
	if s.PairsWith == nil {
		s.PairsWith = []string{}
	}
}

// NormalizeCargo fills in the derived fields on a freshly extracted Cargo.
// Call before ValidateCargo. Sea/port embeddings weight the "from" side
// 0.67/0.33 against the "to" side, matching the original's preference for
// the cargo's current location over its destination.
func NormalizeCargo(c *Cargo) {
	c.QuantityMinInt, c.QuantityMaxInt = NormalizeCargoQuantity(c.Quantity)
	c.MonthInt = ExtractMonth(c.Month)
	c.CommissionFloat = NormalizeCommission(c.Commission)
	c.SeaEmbedding = weightedEmbedding(c.LocationFrom.Sea, c.LocationTo.Sea)
	c.PortEmbedding = weightedEmbedding(c.LocationFrom.Port, c.LocationTo.Port)
	c.GeneralEmbedding = HashEmbedding(c.KeywordData)
	if c.PairsWith == nil {
		c.PairsWith = []CargoShipPair{}
	}
}

func weightedEmbedding(from, to string) []float32 {
	fromVec := HashEmbedding(from)
	toVec := HashEmbedding(to)
	out := make([]float32, len(fromVec))
	for i := range out {
		out[i] = fromVec[i]*0.67 + toVec[i]*0.33
	}
	normalizeL2(out)
	return out
}

// ShipFromEntry builds a Ship from an oracle extraction entry and its parent
// email. Derived fields and embeddings are not yet computed — call
// NormalizeShip next.
func ShipFromEntry(e ExtractionEntry, parent Email) Ship {
	loc := Location{}
	if e.Location != nil {
		loc = *e.Location
	}
	return Ship{
		Name:             e.Name,
		Status:           e.Status,
		Location:         loc,
		Month:            e.Month,
		Capacity:         e.Capacity,
		KeywordData:      e.KeywordData,
		Email:            parent,
		TimestampCreated: time.Now(),
		PairsWith:        []string{},
	}
}

// CargoFromEntry builds a Cargo from an oracle extraction entry and its
// parent email. Derived fields and embeddings are not yet computed — call
// NormalizeCargo next.
func CargoFromEntry(e ExtractionEntry, parent Email) Cargo {
	from, to := Location{}, Location{}
	if e.LocationFrom != nil {
		from = *e.LocationFrom
	}
	if e.LocationTo != nil {
		to = *e.LocationTo
	}
	return Cargo{
		Name:             e.Name,
		Quantity:         e.Quantity,
		LocationFrom:     from,
		LocationTo:       to,
		Month:            e.Month,
		Commission:       e.Commission,
		KeywordData:      e.KeywordData,
		Email:            parent,
		TimestampCreated: time.Now(),
		PairsWith:        []CargoShipPair{},
	}
}

// FailedEntryFromRaw builds a FailedEntry from a raw oracle entry map (kept
// as map[string]any since a failed entry may not even parse into
// ExtractionEntry's typed shape) and the validation/geocoding reason.
func FailedEntryFromRaw(entryType EntryType, raw map[string]any, reason string, parent Email) FailedEntry {
	return FailedEntry{
		Type:             entryType,
		Raw:              raw,
		Reason:           reason,
		Email:            parent,
		TimestampCreated: time.Now(),
	}
}
