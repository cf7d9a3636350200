// Package offers provides the offer deduplication bounded context.
package offers

import (
	custrepo "scv_dedup_backend/internal/customers/repository"
	"scv_dedup_backend/internal/events"
	apphttp "scv_dedup_backend/internal/http"
	"scv_dedup_backend/internal/livebook"
	"scv_dedup_backend/internal/offers/handler"
	"scv_dedup_backend/internal/offers/repository"
	"scv_dedup_backend/internal/offers/service"
	"scv_dedup_backend/platform/config"
	"scv_dedup_backend/platform/logger"
	"scv_dedup_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the offers bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the offers module with all its
// dependencies. The consolidator is the customers service; the checker is
// the (cached) live-book client.
func NewModule(
	pool *pgxpool.Pool,
	eventBus events.Bus,
	cfg config.DedupConfig,
	log *logger.Logger,
	val *validator.Validator,
	consolidator service.Consolidator,
	checker livebook.Checker,
) *Module {
	offersRepo := repository.New(pool)
	profilesRepo := custrepo.New(pool)
	runner := service.NewPgxRunner(pool, offersRepo, profilesRepo)
	svc := service.New(offersRepo, runner, consolidator, checker, eventBus, log, cfg.GetBatchConcurrency(), cfg.GetLiveBookMaxRetries())
	h := handler.New(svc, val)

	return &Module{handler: h, service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "offers"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts offer routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/offers")
	m.handler.RegisterRoutes(group)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
