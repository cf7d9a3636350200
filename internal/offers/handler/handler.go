// Package handler exposes the offers module over HTTP.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"scv_dedup_backend/internal/offers/domain"
	"scv_dedup_backend/internal/offers/service"
	"scv_dedup_backend/internal/offers/transport"
	"scv_dedup_backend/platform/apperr"
	"scv_dedup_backend/platform/httpkit"
	"scv_dedup_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid offer ID"
)

// Handler handles HTTP requests for offers.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new offers handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes mounts the offers routes.
func (h *Handler) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("", h.Ingest)
	group.POST("/dedup-batch", h.DedupBatch)
	group.GET("/:id", h.GetByID)
	group.GET("/:id/audit", h.GetAudit)
	group.PATCH("/:id/status", h.UpdateStatus)
}

// Ingest processes one record-plus-offer through consolidation,
// deduplication and the live-book check, synchronously.
// POST /api/v1/offers
func (h *Handler) Ingest(c *gin.Context) {
	var req transport.IngestOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	res, err := h.svc.ProcessIncoming(c.Request.Context(), req.Customer.ToRecord(), req.ToInput(), req.SourceSystem)
	if apperr.Is(err, apperr.KindDataConsistency) {
		httpkit.Error(c, http.StatusUnprocessableEntity, "record parked for manual review", transport.FromResult(res))
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, transport.FromResult(res))
}

// DedupBatch runs one processing attempt for each named offer.
// POST /api/v1/offers/dedup-batch
func (h *Handler) DedupBatch(c *gin.Context) {
	var req transport.DedupBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	ids := make([]uuid.UUID, 0, len(req.OfferIDs))
	for _, raw := range req.OfferIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidID, raw)
			return
		}
		ids = append(ids, id)
	}

	items, err := h.svc.ProcessBatch(c.Request.Context(), ids)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": transport.FromBatch(items)})
}

// GetByID retrieves a single offer.
// GET /api/v1/offers/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	offer, err := h.svc.GetOffer(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromOffer(offer))
}

// GetAudit retrieves the transition history of an offer.
// GET /api/v1/offers/:id/audit
func (h *Handler) GetAudit(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	entries, err := h.svc.GetAudit(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": transport.FromAudit(entries)})
}

// UpdateStatus applies an externally requested status transition.
// PATCH /api/v1/offers/:id/status
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	offer, err := h.svc.UpdateStatus(c.Request.Context(), id, domain.OfferStatus(req.Status), req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromOffer(offer))
}
