package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	custdomain "scv_dedup_backend/internal/customers/domain"
	"scv_dedup_backend/internal/offers/domain"
	"scv_dedup_backend/internal/offers/service"
	"scv_dedup_backend/platform/apperr"
	"scv_dedup_backend/platform/config"
	"scv_dedup_backend/platform/logger"
)

// Processor runs one ingested record through the offer controller.
// Satisfied by the offers service.
type Processor interface {
	ProcessIncoming(ctx context.Context, rec custdomain.IncomingRecord, in service.OfferInput, sourceSystem string) (service.ProcessResult, error)
}

// Worker drains the partition queues.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor Processor
	log       *logger.Logger
}

// NewWorker builds the ingestion worker over all partition queues. Each
// queue gets equal weight; partitioning exists for ordering, not priority.
func NewWorker(cfg config.QueueConfig, processor Processor, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL)
	if err != nil {
		return nil, err
	}

	partitions := cfg.GetQueuePartitions()
	if partitions < 1 {
		partitions = 1
	}
	concurrency := cfg.GetQueueConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	queues := make(map[string]int, partitions)
	for i := 0; i < partitions; i++ {
		queues[fmt.Sprintf("ingest:%d", i)] = 1
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      queues,
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		mux:       mux,
		processor: processor,
		log:       log,
	}

	mux.HandleFunc(TaskCustomerDataIngested, w.handleCustomerDataIngested)

	return w, nil
}

// handleCustomerDataIngested processes one event. Malformed and parked
// records are acknowledged after logging so they do not loop through the
// queue; a deferred offer returns an error so the queue re-delivers the
// event after backoff.
func (w *Worker) handleCustomerDataIngested(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseCustomerDataIngestedPayload(task)
	if err != nil {
		w.log.Error("unreadable ingestion payload", "error", err)
		return nil
	}

	log := w.log.WithEventID(payload.EventID)
	ctx = context.WithValue(ctx, logger.EventIDKey, payload.EventID)

	rec := custdomain.IncomingRecord{
		PAN:         payload.Customer.PAN,
		Aadhaar:     payload.Customer.Aadhaar,
		Mobile:      payload.Customer.Mobile,
		Email:       payload.Customer.Email,
		FirstName:   payload.Customer.FirstName,
		LastName:    payload.Customer.LastName,
		AddressLine: payload.Customer.AddressLine,
		City:        payload.Customer.City,
		Pincode:     payload.Customer.Pincode,
	}

	in := service.OfferInput{
		CampaignID:    payload.Offer.CampaignID,
		OfferType:     domain.OfferType(payload.Offer.OfferType),
		AmountPaise:   payload.Offer.AmountPaise,
		ValidityStart: payload.Offer.ValidityStart,
		ValidityEnd:   payload.Offer.ValidityEnd,
	}
	if id, err := uuid.Parse(payload.Offer.OfferID); err == nil {
		in.OfferID = id
	}

	res, err := w.processor.ProcessIncoming(ctx, rec, in, payload.SourceSystem)
	switch {
	case apperr.Is(err, apperr.KindValidation):
		log.Error("rejected malformed record", "error", err)
		return nil
	case apperr.Is(err, apperr.KindDataConsistency):
		// Parked for manual review; re-delivery would park it again.
		return nil
	case err != nil:
		return err
	}

	if res.Status == domain.StatusPendingLiveBookRetry {
		return fmt.Errorf("offer %s deferred pending live book retry", res.OfferID)
	}

	log.Info("ingestion event processed",
		"offerId", res.OfferID, "customerId", res.CustomerID, "status", res.Status, "rule", res.Rule)
	return nil
}

// Run serves tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("ingestion worker stopped", "error", err)
	}
}
