// Package domain holds the offer model, the status state machine, and the
// product-scoped duplicate rules. Nothing in this package touches storage.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// OfferType is the consumer-loan product family of an offer.
// TopUp is distinguished: top-up offers are deduplicated only against other
// top-up offers, every other type shares one cross-product scope.
type OfferType string

const (
	OfferTypeTopUp        OfferType = "TOP_UP"
	OfferTypeLoyalty      OfferType = "LOYALTY"
	OfferTypePreapproved  OfferType = "PREAPPROVED"
	OfferTypeEAggregator  OfferType = "E_AGGREGATOR"
	OfferTypePersonalLoan OfferType = "PERSONAL_LOAN"
)

// ValidOfferType reports whether t is a known product type.
func ValidOfferType(t OfferType) bool {
	switch t {
	case OfferTypeTopUp, OfferTypeLoyalty, OfferTypePreapproved,
		OfferTypeEAggregator, OfferTypePersonalLoan:
		return true
	}
	return false
}

// OfferStatus is the processing state of an offer.
type OfferStatus string

const (
	StatusPending              OfferStatus = "PENDING"
	StatusDedupedMerged        OfferStatus = "DEDUPED_MERGED"
	StatusRejectedDuplicate    OfferStatus = "REJECTED_DUPLICATE"
	StatusLiveBookConflict     OfferStatus = "LIVE_BOOK_CONFLICT"
	StatusPendingLiveBookRetry OfferStatus = "PENDING_LIVE_BOOK_RETRY"
	StatusActive               OfferStatus = "ACTIVE"
)

// transitions is the offer state machine. Everything except the retry loop
// is terminal for this engine.
var transitions = map[OfferStatus][]OfferStatus{
	StatusPending: {
		StatusDedupedMerged,
		StatusRejectedDuplicate,
		StatusLiveBookConflict,
		StatusPendingLiveBookRetry,
		StatusActive,
	},
	StatusPendingLiveBookRetry: {StatusPending},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to OfferStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the engine will never touch the offer again.
func IsTerminal(s OfferStatus) bool {
	switch s {
	case StatusDedupedMerged, StatusRejectedDuplicate, StatusLiveBookConflict, StatusActive:
		return true
	}
	return false
}

// Offer is a campaign offer for a resolved customer. Validity dates are
// inclusive on both ends. AmountPaise keeps money integral.
type Offer struct {
	ID            uuid.UUID
	CustomerID    uuid.UUID
	CampaignID    string
	OfferType     OfferType
	AmountPaise   int64
	ValidityStart time.Time
	ValidityEnd   time.Time
	Status        OfferStatus
	RetryCount    int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
