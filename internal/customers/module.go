// Package customers provides the customer consolidation bounded context.
package customers

import (
	"scv_dedup_backend/internal/customers/handler"
	"scv_dedup_backend/internal/customers/repository"
	"scv_dedup_backend/internal/customers/service"
	"scv_dedup_backend/internal/events"
	apphttp "scv_dedup_backend/internal/http"
	"scv_dedup_backend/platform/config"
	"scv_dedup_backend/platform/logger"
	"scv_dedup_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the customers bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the customers module with all its dependencies.
func NewModule(
	pool *pgxpool.Pool,
	eventBus events.Bus,
	cfg config.ConsolidatorConfig,
	log *logger.Logger,
	val *validator.Validator,
) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, eventBus, log, cfg.GetMaxVersionRetries())
	h := handler.New(svc, val)

	return &Module{handler: h, service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "customers"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts customer routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/customers")
	m.handler.RegisterRoutes(group)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
