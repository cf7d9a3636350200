package domain

import (
	"time"

	"github.com/google/uuid"
)

// Transition rule identifiers recorded in the audit log. Each status change
// names the rule that triggered it so the log alone explains the outcome.
const (
	RuleDuplicateWindowOverlap = "duplicate_window_overlap"
	RuleExactOfferMerge        = "exact_offer_merge"
	RuleLiveBookConflict       = "live_book_conflict"
	RuleLiveBookUnreachable    = "live_book_unreachable"
	RuleRetryReattempt         = "retry_reattempt"
	RuleCleared                = "cleared_for_activation"
	RuleManualReview           = "manual_review_required"
	RuleExternalStatusUpdate   = "external_status_update"
)

// AuditEntry is an immutable record of one offer status transition.
type AuditEntry struct {
	ID        int64
	OfferID   uuid.UUID
	OldStatus OfferStatus
	NewStatus OfferStatus
	Rule      string
	Reason    string
	MatchedOn string
	CreatedAt time.Time
}
