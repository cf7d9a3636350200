// Package livebook talks to the live loan book, the downstream system of
// record for disbursed loans. An offer may only activate when the book
// confirms the customer has no conflicting live loan.
package livebook

import (
	"context"

	"github.com/google/uuid"
)

// CheckRequest identifies the customer and product to verify against the
// live book.
type CheckRequest struct {
	CustomerID uuid.UUID
	PAN        string
	Aadhaar    string
	Mobile     string
	OfferType  string
}

// Verdict is the live book's answer for one check.
type Verdict struct {
	// Conflict is true when the customer already holds a live loan that
	// blocks this offer.
	Conflict bool
	// LiveBookID is the book's identifier for the customer, when known.
	LiveBookID *string
	// Reason is the book's explanation for a conflict, if it gave one.
	Reason string
}

// Checker answers live-book consistency checks. Implementations must return
// an error rather than a guess when the book cannot be reached.
type Checker interface {
	Check(ctx context.Context, req CheckRequest) (Verdict, error)
}
