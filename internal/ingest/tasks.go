// Package ingest moves cleansed record-plus-offer events from upstream
// campaign systems onto the processing queue and drains them with a worker
// pool. Records for the same customer identity land on the same partition
// queue, which serializes their processing.
package ingest

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskCustomerDataIngested = "ingest.customer_data"

type CustomerRecordPayload struct {
	PAN         string `json:"pan"`
	Aadhaar     string `json:"aadhaar"`
	Mobile      string `json:"mobile"`
	Email       string `json:"email"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	AddressLine string `json:"addressLine"`
	City        string `json:"city"`
	Pincode     string `json:"pincode"`
}

type OfferPayload struct {
	OfferID       string    `json:"offerId"`
	CampaignID    string    `json:"campaignId"`
	OfferType     string    `json:"offerType"`
	AmountPaise   int64     `json:"amountPaise"`
	ValidityStart time.Time `json:"validityStart"`
	ValidityEnd   time.Time `json:"validityEnd"`
}

type CustomerDataIngestedPayload struct {
	EventID      string                `json:"eventId"`
	SourceSystem string                `json:"sourceSystem"`
	Customer     CustomerRecordPayload `json:"customer"`
	Offer        OfferPayload          `json:"offer"`
}

func NewCustomerDataIngestedTask(payload CustomerDataIngestedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCustomerDataIngested, data), nil
}

func ParseCustomerDataIngestedPayload(task *asynq.Task) (CustomerDataIngestedPayload, error) {
	var payload CustomerDataIngestedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return CustomerDataIngestedPayload{}, err
	}
	return payload, nil
}
