// Package transport defines the wire DTOs for the offers module.
package transport

import (
	"time"

	"github.com/google/uuid"

	custdomain "scv_dedup_backend/internal/customers/domain"
	"scv_dedup_backend/internal/offers/domain"
	"scv_dedup_backend/internal/offers/service"
)

// CustomerPayload is the customer half of an ingested record. At least one
// identity key must be present.
type CustomerPayload struct {
	PAN         string `json:"pan"`
	Aadhaar     string `json:"aadhaar"`
	Mobile      string `json:"mobile"`
	Email       string `json:"email" validate:"omitempty,email"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	AddressLine string `json:"addressLine"`
	City        string `json:"city"`
	Pincode     string `json:"pincode"`
}

// ToRecord converts the payload into a domain record.
func (p CustomerPayload) ToRecord() custdomain.IncomingRecord {
	return custdomain.IncomingRecord{
		PAN:         p.PAN,
		Aadhaar:     p.Aadhaar,
		Mobile:      p.Mobile,
		Email:       p.Email,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		AddressLine: p.AddressLine,
		City:        p.City,
		Pincode:     p.Pincode,
	}
}

// IngestOfferRequest is one cleansed record-plus-offer from an upstream
// campaign system.
type IngestOfferRequest struct {
	OfferID       string          `json:"offerId" validate:"omitempty,uuid"`
	CampaignID    string          `json:"campaignId" validate:"required"`
	OfferType     string          `json:"offerType" validate:"required"`
	AmountPaise   int64           `json:"amountPaise" validate:"required,gt=0"`
	ValidityStart time.Time       `json:"validityStart" validate:"required"`
	ValidityEnd   time.Time       `json:"validityEnd" validate:"required"`
	SourceSystem  string          `json:"sourceSystem" validate:"required"`
	Customer      CustomerPayload `json:"customer" validate:"required"`
}

// ToInput converts the request into the controller's offer input.
func (r IngestOfferRequest) ToInput() service.OfferInput {
	in := service.OfferInput{
		CampaignID:    r.CampaignID,
		OfferType:     domain.OfferType(r.OfferType),
		AmountPaise:   r.AmountPaise,
		ValidityStart: r.ValidityStart,
		ValidityEnd:   r.ValidityEnd,
	}
	if id, err := uuid.Parse(r.OfferID); err == nil {
		in.OfferID = id
	}
	return in
}

// UpdateStatusRequest asks for an externally driven status transition.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason" validate:"required"`
}

// DedupBatchRequest names the offers to process in one batch run.
type DedupBatchRequest struct {
	OfferIDs []string `json:"offerIds" validate:"required,min=1,dive,uuid"`
}

// OfferResponse is the wire representation of an offer.
type OfferResponse struct {
	ID            string    `json:"id"`
	CustomerID    string    `json:"customerId"`
	CampaignID    string    `json:"campaignId"`
	OfferType     string    `json:"offerType"`
	AmountPaise   int64     `json:"amountPaise"`
	ValidityStart time.Time `json:"validityStart"`
	ValidityEnd   time.Time `json:"validityEnd"`
	Status        string    `json:"status"`
	RetryCount    int       `json:"retryCount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// FromOffer maps a domain offer to its response shape.
func FromOffer(o domain.Offer) OfferResponse {
	return OfferResponse{
		ID:            o.ID.String(),
		CustomerID:    o.CustomerID.String(),
		CampaignID:    o.CampaignID,
		OfferType:     string(o.OfferType),
		AmountPaise:   o.AmountPaise,
		ValidityStart: o.ValidityStart,
		ValidityEnd:   o.ValidityEnd,
		Status:        string(o.Status),
		RetryCount:    o.RetryCount,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

// ProcessResultResponse reports what one processing attempt decided.
type ProcessResultResponse struct {
	OfferID    string `json:"offerId"`
	CustomerID string `json:"customerId,omitempty"`
	Status     string `json:"status"`
	Rule       string `json:"rule,omitempty"`
	Parked     bool   `json:"parked"`
}

// FromResult maps a controller result to its response shape.
func FromResult(r service.ProcessResult) ProcessResultResponse {
	resp := ProcessResultResponse{
		OfferID: r.OfferID.String(),
		Status:  string(r.Status),
		Rule:    r.Rule,
		Parked:  r.Parked,
	}
	if r.CustomerID != uuid.Nil {
		resp.CustomerID = r.CustomerID.String()
	}
	return resp
}

// BatchItemResponse is one offer's outcome in a batch run.
type BatchItemResponse struct {
	OfferID string `json:"offerId"`
	Status  string `json:"status,omitempty"`
	Rule    string `json:"rule,omitempty"`
	Error   string `json:"error,omitempty"`
}

// FromBatch maps batch items to their response shape.
func FromBatch(items []service.BatchItem) []BatchItemResponse {
	out := make([]BatchItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, BatchItemResponse{
			OfferID: it.OfferID.String(),
			Status:  string(it.Status),
			Rule:    it.Rule,
			Error:   it.Err,
		})
	}
	return out
}

// AuditEntryResponse is one row of an offer's transition history.
type AuditEntryResponse struct {
	OldStatus string    `json:"oldStatus"`
	NewStatus string    `json:"newStatus"`
	Rule      string    `json:"rule"`
	Reason    string    `json:"reason,omitempty"`
	MatchedOn string    `json:"matchedOn,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// FromAudit maps audit entries to their response shape.
func FromAudit(entries []domain.AuditEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntryResponse{
			OldStatus: string(e.OldStatus),
			NewStatus: string(e.NewStatus),
			Rule:      e.Rule,
			Reason:    e.Reason,
			MatchedOn: e.MatchedOn,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}
