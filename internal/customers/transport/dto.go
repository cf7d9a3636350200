// Package transport defines the wire DTOs for the customers module.
package transport

import (
	"time"

	"scv_dedup_backend/internal/customers/domain"
)

// IngestCustomerRequest is a cleansed candidate record from the ingestion
// collaborator. At least one identity key must be present; field-syntax
// validation (formats, checksums) happened upstream.
type IngestCustomerRequest struct {
	PAN          string `json:"pan"`
	Aadhaar      string `json:"aadhaar"`
	Mobile       string `json:"mobile"`
	Email        string `json:"email" validate:"omitempty,email"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	AddressLine  string `json:"addressLine"`
	City         string `json:"city"`
	Pincode      string `json:"pincode"`
	SourceSystem string `json:"sourceSystem" validate:"required"`
}

// ToRecord converts the request into a domain record.
func (r IngestCustomerRequest) ToRecord() domain.IncomingRecord {
	return domain.IncomingRecord{
		PAN:         r.PAN,
		Aadhaar:     r.Aadhaar,
		Mobile:      r.Mobile,
		Email:       r.Email,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		AddressLine: r.AddressLine,
		City:        r.City,
		Pincode:     r.Pincode,
	}
}

// CustomerResponse is the single-customer-view representation.
type CustomerResponse struct {
	ID           string    `json:"id"`
	PAN          *string   `json:"pan,omitempty"`
	Aadhaar      *string   `json:"aadhaar,omitempty"`
	Mobile       *string   `json:"mobile,omitempty"`
	Email        *string   `json:"email,omitempty"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	AddressLine  string    `json:"addressLine"`
	City         string    `json:"city"`
	Pincode      string    `json:"pincode"`
	Version      int64     `json:"version"`
	LiveBookID   *string   `json:"liveBookId,omitempty"`
	LiveBookFlag bool      `json:"liveBookFlag"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ConsolidationResponse reports how an ingested record was consolidated.
type ConsolidationResponse struct {
	Customer       CustomerResponse `json:"customer"`
	Classification string           `json:"classification"`
	MatchedOn      string           `json:"matchedOn,omitempty"`
	Created        bool             `json:"created"`
}

// FromProfile maps a domain profile to its response shape.
func FromProfile(p domain.CustomerProfile) CustomerResponse {
	return CustomerResponse{
		ID:           p.ID.String(),
		PAN:          p.PAN,
		Aadhaar:      p.Aadhaar,
		Mobile:       p.Mobile,
		Email:        p.Email,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		AddressLine:  p.AddressLine,
		City:         p.City,
		Pincode:      p.Pincode,
		Version:      p.Version,
		LiveBookID:   p.LiveBookID,
		LiveBookFlag: p.LiveBookFlag,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}
