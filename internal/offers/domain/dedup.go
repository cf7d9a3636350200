package domain

import "github.com/google/uuid"

// isComparable reports the statuses an existing offer must be in to take
// part in duplicate comparison.
func isComparable(s OfferStatus) bool {
	return s == StatusPending || s == StatusActive
}

// InScope reports whether an existing offer belongs to the incoming offer's
// duplicate-comparison set. Top-up offers compare only against other top-up
// offers; every other type compares against all non-top-up consumer-loan
// offers. Only PENDING and ACTIVE existing offers are comparable.
func InScope(incoming, existing Offer) bool {
	if !isComparable(existing.Status) {
		return false
	}
	if incoming.OfferType == OfferTypeTopUp {
		return existing.OfferType == OfferTypeTopUp
	}
	return existing.OfferType != OfferTypeTopUp
}

// WindowsOverlap reports whether two inclusive validity windows intersect.
func WindowsOverlap(a, b Offer) bool {
	return !a.ValidityStart.After(b.ValidityEnd) && !b.ValidityStart.After(a.ValidityEnd)
}

// DedupOutcome is the verdict of the duplicate rules for an incoming offer.
type DedupOutcome string

const (
	// DedupNotDuplicate lets the offer continue to the live-book check.
	DedupNotDuplicate DedupOutcome = "NOT_DUPLICATE"
	// DedupMerge collapses an identical re-delivery of an existing offer
	// (same type, same campaign, same window) into the existing one.
	DedupMerge DedupOutcome = "MERGE"
	// DedupReject marks an overlapping same-type offer as a duplicate.
	DedupReject DedupOutcome = "REJECT"
)

// DedupVerdict carries the outcome and, for duplicates, the existing offer
// the incoming one collided with. The existing offer is always left
// untouched.
type DedupVerdict struct {
	Outcome     DedupOutcome
	DuplicateOf uuid.UUID
}

// EvaluateDuplicate applies the duplicate rules for an incoming offer
// against its comparison set. A duplicate is a comparison-set member with
// the same offer type and an overlapping validity window; an exact match on
// campaign and window is a merge rather than a rejection. Offers outside
// the incoming offer's scope are ignored entirely.
func EvaluateDuplicate(incoming Offer, existing []Offer) DedupVerdict {
	for _, e := range existing {
		if e.ID == incoming.ID {
			continue
		}
		if !InScope(incoming, e) {
			continue
		}
		if e.OfferType != incoming.OfferType {
			continue
		}
		if !WindowsOverlap(incoming, e) {
			continue
		}
		if e.CampaignID == incoming.CampaignID &&
			e.ValidityStart.Equal(incoming.ValidityStart) &&
			e.ValidityEnd.Equal(incoming.ValidityEnd) {
			return DedupVerdict{Outcome: DedupMerge, DuplicateOf: e.ID}
		}
		return DedupVerdict{Outcome: DedupReject, DuplicateOf: e.ID}
	}
	return DedupVerdict{Outcome: DedupNotDuplicate}
}
