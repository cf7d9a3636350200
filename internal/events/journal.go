package events

import (
	"context"

	"scv_dedup_backend/platform/logger"
)

// Journal is the engine's own consumer of its domain events: it writes an
// operator-readable line for every published event, complementing the
// per-offer audit log.
type Journal struct {
	log *logger.Logger
}

func NewJournal(log *logger.Logger) *Journal {
	return &Journal{log: log}
}

func (j *Journal) Handle(ctx context.Context, e Event) error {
	switch ev := e.(type) {
	case CustomerDataIngested:
		j.log.Info("customer data accepted", "eventId", ev.EventID, "offerId", ev.OfferID, "source", ev.SourceSystem)
	case CustomerProfileUpdated:
		j.log.Info("customer profile updated", "customerId", ev.CustomerID, "created", ev.Created, "source", ev.SourceSystem)
	case OfferStatusChanged:
		j.log.Info("offer status changed", "offerId", ev.OfferID, "from", ev.OldStatus, "to", ev.NewStatus, "reason", ev.Reason)
	case RecordParkedForReview:
		j.log.Warn("record parked for review", "offerId", ev.OfferID, "reason", ev.Reason)
	default:
		j.log.Info("event published", "event", e.EventName())
	}
	return nil
}

// ProducedEventNames lists every event type the engine publishes.
func ProducedEventNames() []string {
	return []string{
		CustomerDataIngested{}.EventName(),
		CustomerProfileUpdated{}.EventName(),
		OfferStatusChanged{}.EventName(),
		RecordParkedForReview{}.EventName(),
	}
}

// SubscribeJournal attaches a journal to every produced event type.
func SubscribeJournal(bus Bus, log *logger.Logger) {
	j := NewJournal(log)
	for _, name := range ProducedEventNames() {
		bus.Subscribe(name, j)
	}
}
