// Package handler exposes the customers module over HTTP.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"scv_dedup_backend/internal/customers/service"
	"scv_dedup_backend/internal/customers/transport"
	"scv_dedup_backend/platform/httpkit"
	"scv_dedup_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid customer ID"
)

// Handler handles HTTP requests for customers.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new customers handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes mounts the customers routes.
func (h *Handler) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("", h.CreateOrMerge)
	group.GET("/:id", h.GetByID)
}

// CreateOrMerge consolidates a cleansed record into the single customer view.
// POST /api/v1/customers
func (h *Handler) CreateOrMerge(c *gin.Context) {
	var req transport.IngestCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	outcome, err := h.svc.CreateOrMerge(c.Request.Context(), req.ToRecord(), req.SourceSystem)
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.ConsolidationResponse{
		Customer:       transport.FromProfile(outcome.Profile),
		Classification: string(outcome.Classification),
		MatchedOn:      outcome.MatchedOn,
		Created:        outcome.Created,
	}
	if outcome.Created {
		httpkit.Created(c, resp)
		return
	}
	httpkit.OK(c, resp)
}

// GetByID retrieves a consolidated customer profile.
// GET /api/v1/customers/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	profile, err := h.svc.GetProfile(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromProfile(profile))
}
