package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func day(d int) time.Time {
	return time.Date(2025, time.January, d, 0, 0, 0, 0, time.UTC)
}

func offer(t OfferType, status OfferStatus, start, end time.Time) Offer {
	return Offer{
		ID:            uuid.New(),
		CustomerID:    uuid.New(),
		CampaignID:    "CAMP-1",
		OfferType:     t,
		ValidityStart: start,
		ValidityEnd:   end,
		Status:        status,
	}
}

func TestTopUpComparesOnlyAgainstTopUp(t *testing.T) {
	// O1: TOP_UP Jan 1-31 PENDING. O2: TOP_UP Jan 15-Feb 15 -> duplicate.
	// O3: LOYALTY over O1's window -> evaluated independently, no overlap
	// with any loyalty offer, so not a duplicate.
	o1 := offer(OfferTypeTopUp, StatusPending, day(1), day(31))
	o2 := offer(OfferTypeTopUp, StatusPending, day(15), time.Date(2025, time.February, 15, 0, 0, 0, 0, time.UTC))
	o3 := offer(OfferTypeLoyalty, StatusPending, day(1), day(31))

	v := EvaluateDuplicate(o2, []Offer{o1})
	if v.Outcome != DedupReject {
		t.Errorf("overlapping top-up: outcome = %q, want REJECT", v.Outcome)
	}
	if v.DuplicateOf != o1.ID {
		t.Errorf("DuplicateOf = %s, want O1", v.DuplicateOf)
	}

	v = EvaluateDuplicate(o3, []Offer{o1, o2})
	if v.Outcome != DedupNotDuplicate {
		t.Errorf("loyalty offer compared against top-up offers: %q", v.Outcome)
	}
}

func TestNonTopUpNeverMatchesTopUp(t *testing.T) {
	topUp := offer(OfferTypeTopUp, StatusActive, day(1), day(31))
	loyalty := offer(OfferTypeLoyalty, StatusPending, day(1), day(31))

	if InScope(loyalty, topUp) {
		t.Errorf("top-up offer must be out of scope for a loyalty offer")
	}
	if InScope(topUp, loyalty) {
		t.Errorf("loyalty offer must be out of scope for a top-up offer")
	}
}

func TestCrossProductScopeRequiresSameTypeForDuplicate(t *testing.T) {
	// Loyalty and preapproved share a comparison scope, but a duplicate
	// still requires the same offer type.
	preapproved := offer(OfferTypePreapproved, StatusActive, day(1), day(31))
	loyalty := offer(OfferTypeLoyalty, StatusPending, day(10), day(20))

	if !InScope(loyalty, preapproved) {
		t.Errorf("preapproved should be in the loyalty comparison scope")
	}
	v := EvaluateDuplicate(loyalty, []Offer{preapproved})
	if v.Outcome != DedupNotDuplicate {
		t.Errorf("different types must not be duplicates: %q", v.Outcome)
	}
}

func TestTerminalStatusesAreOutOfScope(t *testing.T) {
	rejected := offer(OfferTypeTopUp, StatusRejectedDuplicate, day(1), day(31))
	incoming := offer(OfferTypeTopUp, StatusPending, day(5), day(15))

	v := EvaluateDuplicate(incoming, []Offer{rejected})
	if v.Outcome != DedupNotDuplicate {
		t.Errorf("rejected offers must not participate in comparison: %q", v.Outcome)
	}
}

func TestWindowOverlapBoundaries(t *testing.T) {
	base := offer(OfferTypeTopUp, StatusPending, day(1), day(10))

	cases := []struct {
		name  string
		start time.Time
		end   time.Time
		want  bool
	}{
		{"fully inside", day(3), day(7), true},
		{"touching end day", day(10), day(20), true},
		{"touching start day", time.Date(2024, time.December, 20, 0, 0, 0, 0, time.UTC), day(1), true},
		{"disjoint after", day(11), day(20), false},
		{"disjoint before", time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			other := offer(OfferTypeTopUp, StatusPending, tc.start, tc.end)
			if got := WindowsOverlap(base, other); got != tc.want {
				t.Errorf("WindowsOverlap = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestExactReDeliveryIsMergeNotReject(t *testing.T) {
	existing := offer(OfferTypeLoyalty, StatusPending, day(1), day(31))
	incoming := existing
	incoming.ID = uuid.New()

	v := EvaluateDuplicate(incoming, []Offer{existing})
	if v.Outcome != DedupMerge {
		t.Errorf("identical offer should merge, got %q", v.Outcome)
	}
	if v.DuplicateOf != existing.ID {
		t.Errorf("DuplicateOf = %s, want existing offer", v.DuplicateOf)
	}
}

func TestEvaluateDuplicateSkipsSelf(t *testing.T) {
	o := offer(OfferTypeTopUp, StatusPending, day(1), day(31))
	if v := EvaluateDuplicate(o, []Offer{o}); v.Outcome != DedupNotDuplicate {
		t.Errorf("an offer must not be a duplicate of itself: %q", v.Outcome)
	}
}
