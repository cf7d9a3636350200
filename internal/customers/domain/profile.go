// Package domain holds the customer profile model and the pure match
// classification rules. Nothing in this package touches storage.
package domain

import (
	"time"

	"github.com/google/uuid"

	"scv_dedup_backend/platform/identity"
)

// CustomerProfile is the consolidated single-customer-view record.
// PAN and Aadhaar are immutable once set; mobile and email follow
// last-write-wins. Version is the optimistic concurrency counter.
type CustomerProfile struct {
	ID           uuid.UUID
	PAN          *string
	Aadhaar      *string
	Mobile       *string
	Email        *string
	FirstName    string
	LastName     string
	AddressLine  string
	City         string
	Pincode      string
	Version      int64
	LiveBookID   *string
	LiveBookFlag bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IdentityKeys carries the normalized identity keys of an incoming record.
// At least one key must be present for resolution to be possible.
type IdentityKeys struct {
	PAN     string
	Aadhaar string
	Mobile  string
	Email   string
}

// NormalizeKeys builds IdentityKeys from raw input, applying the canonical
// normalization for each key.
func NormalizeKeys(pan, aadhaar, mobile, email string) IdentityKeys {
	return IdentityKeys{
		PAN:     identity.NormalizePAN(pan),
		Aadhaar: identity.NormalizeAadhaar(aadhaar),
		Mobile:  identity.NormalizeMobile(mobile),
		Email:   identity.NormalizeEmail(email),
	}
}

// HasAny reports whether at least one identity key is present.
func (k IdentityKeys) HasAny() bool {
	return k.PAN != "" || k.Aadhaar != "" || k.Mobile != "" || k.Email != ""
}

// Fingerprint returns the stable partition hash for these keys.
func (k IdentityKeys) Fingerprint() uint32 {
	return identity.Fingerprint(k.PAN, k.Aadhaar, k.Mobile, k.Email)
}

// IncomingRecord is a cleansed candidate record from the ingestion
// collaborator. Field-syntax validation happened upstream; this engine only
// normalizes and matches.
type IncomingRecord struct {
	PAN         string
	Aadhaar     string
	Mobile      string
	Email       string
	FirstName   string
	LastName    string
	AddressLine string
	City        string
	Pincode     string
}

// Keys returns the normalized identity keys of the record.
func (r IncomingRecord) Keys() IdentityKeys {
	return NormalizeKeys(r.PAN, r.Aadhaar, r.Mobile, r.Email)
}
