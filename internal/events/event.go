// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"scv_dedup_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Ingestion Events
// =============================================================================

// CustomerDataIngested is emitted by the upstream ingestion/validation
// collaborator once a record has passed field-syntax cleansing. It triggers
// one processing attempt of the referenced offer.
type CustomerDataIngested struct {
	BaseEvent
	EventID      uuid.UUID `json:"eventId"`
	OfferID      uuid.UUID `json:"offerId"`
	SourceSystem string    `json:"sourceSystem"`
}

func (e CustomerDataIngested) EventName() string { return "ingest.customer_data.ingested" }

// =============================================================================
// Customer Events
// =============================================================================

// CustomerProfileUpdated is published after any profile creation or merge,
// for downstream profile/offer/reporting consumers.
type CustomerProfileUpdated struct {
	BaseEvent
	CustomerID   uuid.UUID `json:"customerId"`
	SourceSystem string    `json:"sourceSystem"`
	Created      bool      `json:"created"`
}

func (e CustomerProfileUpdated) EventName() string { return "customers.profile.updated" }

// =============================================================================
// Offer Events
// =============================================================================

// OfferStatusChanged is published whenever the engine commits an offer
// status transition.
type OfferStatusChanged struct {
	BaseEvent
	OfferID   uuid.UUID `json:"offerId"`
	OldStatus string    `json:"oldStatus"`
	NewStatus string    `json:"newStatus"`
	Reason    string    `json:"reason"`
}

func (e OfferStatusChanged) EventName() string { return "offers.status.changed" }

// RecordParkedForReview is published when a record hits a data consistency
// violation the engine refuses to auto-resolve. The audit log carries the
// full context; this event exists so an operator-facing collaborator can
// surface the case.
type RecordParkedForReview struct {
	BaseEvent
	OfferID uuid.UUID `json:"offerId"`
	Reason  string    `json:"reason"`
}

func (e RecordParkedForReview) EventName() string { return "offers.record.parked" }
