package store

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

func TestCandidateQueryFilterMonthRangeDoesNotWrap(t *testing.T) {
	cases := []struct {
		month   int
		lo, hi  int
	}{
		{6, 5, 7},
		{1, 0, 2},
		{12, 11, 13},
	}
	for _, c := range cases {
		month := c.month
		filter := candidateQueryFilter(CandidateFilter{MonthInt: &month}, time.Now())
		got, ok := filter["month_int"].(bson.M)
		if !ok {
			t.Fatalf("month_int filter missing or wrong type for month=%d: %v", c.month, filter["month_int"])
		}
		if got["$gte"] != c.lo || got["$lte"] != c.hi {
			t.Errorf("candidateQueryFilter(month=%d) = {$gte:%v, $lte:%v}, want {$gte:%d, $lte:%d}",
				c.month, got["$gte"], got["$lte"], c.lo, c.hi)
		}
	}

	// A December vessel (12) must not match a January cargo (1): the range
	// is a plain ±1 window, never a wrap-around.
	december := 12
	filter := candidateQueryFilter(CandidateFilter{MonthInt: &december}, time.Now())
	rng := filter["month_int"].(bson.M)
	if rng["$lte"].(int) >= 1 && rng["$gte"].(int) <= 1 {
		t.Errorf("expected December's range to exclude January, got %v", rng)
	}
}

func TestCandidateQueryFilterCapacityBand(t *testing.T) {
	capacity := 10000
	filter := candidateQueryFilter(CandidateFilter{CapacityInt: &capacity}, time.Now())
	if got := filter["quantity_max_int"].(bson.M)["$gte"]; got != 8000 {
		t.Errorf("quantity_max_int $gte = %v, want 8000", got)
	}
	if got := filter["quantity_min_int"].(bson.M)["$lte"]; got != 12000 {
		t.Errorf("quantity_min_int $lte = %v, want 12000", got)
	}
}
