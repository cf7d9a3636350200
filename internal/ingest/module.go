package ingest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"scv_dedup_backend/internal/events"
	apphttp "scv_dedup_backend/internal/http"
	"scv_dedup_backend/platform/httpkit"
	"scv_dedup_backend/platform/logger"
	"scv_dedup_backend/platform/validator"
)

// IngestEventRequest is the asynchronous intake shape: the upstream system
// hands over a cleansed record-plus-offer and gets a 202 back; processing
// happens on the partition queues.
type IngestEventRequest struct {
	EventID      string                `json:"eventId" validate:"required,uuid"`
	SourceSystem string                `json:"sourceSystem" validate:"required"`
	Customer     CustomerRecordPayload `json:"customer"`
	Offer        OfferPayload          `json:"offer" validate:"required"`
}

// Module exposes the asynchronous intake endpoint.
type Module struct {
	client *Client
	bus    events.Bus
	val    *validator.Validator
	log    *logger.Logger
}

// NewModule creates the ingest module around the enqueue client.
func NewModule(client *Client, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	return &Module{client: client, bus: bus, val: val, log: log}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "ingest"
}

// RegisterRoutes mounts the intake route on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.POST("/ingest/events", m.Enqueue)
}

// Enqueue accepts one ingestion event and puts it on its partition queue.
// POST /api/v1/ingest/events
func (m *Module) Enqueue(c *gin.Context) {
	var req IngestEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := m.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	payload := CustomerDataIngestedPayload{
		EventID:      req.EventID,
		SourceSystem: req.SourceSystem,
		Customer:     req.Customer,
		Offer:        req.Offer,
	}
	if err := m.client.EnqueueCustomerData(c.Request.Context(), payload); err != nil {
		m.log.Error("failed to enqueue ingestion event", "eventId", req.EventID, "error", err)
		httpkit.Error(c, http.StatusServiceUnavailable, "failed to enqueue event", nil)
		return
	}

	ingested := events.CustomerDataIngested{
		BaseEvent:    events.NewBaseEvent(),
		SourceSystem: req.SourceSystem,
	}
	if id, err := uuid.Parse(req.EventID); err == nil {
		ingested.EventID = id
	}
	if id, err := uuid.Parse(req.Offer.OfferID); err == nil {
		ingested.OfferID = id
	}
	m.bus.Publish(c.Request.Context(), ingested)

	c.JSON(http.StatusAccepted, gin.H{"eventId": req.EventID})
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
