// Package service implements the offer status controller: the single
// decision point that moves an offer through deduplication, the live-book
// consistency check, and its final status.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	custdomain "scv_dedup_backend/internal/customers/domain"
	custservice "scv_dedup_backend/internal/customers/service"
	"scv_dedup_backend/internal/events"
	"scv_dedup_backend/internal/livebook"
	"scv_dedup_backend/internal/offers/domain"
	"scv_dedup_backend/platform/apperr"
	"scv_dedup_backend/platform/logger"
)

// OfferStore is the transaction-bound storage surface the controller uses
// while deciding one offer.
type OfferStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Offer, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (domain.Offer, error)
	CreatePending(ctx context.Context, o *domain.Offer) error
	ListComparisonSet(ctx context.Context, customerID uuid.UUID, incomingType domain.OfferType) ([]domain.Offer, error)
	Transition(ctx context.Context, entry domain.AuditEntry, retryDelta int) error
	InsertAudit(ctx context.Context, entry domain.AuditEntry) error
}

// Stores bundles the transaction-bound repositories for one unit of work.
// Profiles carries the full consolidation surface so profile creation and
// merge commit or roll back together with the offer decision.
type Stores struct {
	Offers   OfferStore
	Profiles custservice.ProfileRepository
}

// TxRunner runs fn inside a single database transaction and commits only
// when fn returns nil.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}

// OfferRepository is the pool-bound storage surface for work done outside
// the per-offer transaction.
type OfferRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Offer, error)
	Transition(ctx context.Context, entry domain.AuditEntry, retryDelta int) error
	InsertAudit(ctx context.Context, entry domain.AuditEntry) error
	ListAudit(ctx context.Context, offerID uuid.UUID) ([]domain.AuditEntry, error)
}

// Consolidator resolves an incoming record into a canonical customer
// profile against the repository it is given, so the controller can run
// consolidation on its transaction-bound profile store. Satisfied by the
// customers service.
type Consolidator interface {
	ConsolidateWith(ctx context.Context, profiles custservice.ProfileRepository, rec custdomain.IncomingRecord) (custservice.Outcome, error)
}

// OfferInput is the offer half of an ingested record.
type OfferInput struct {
	OfferID       uuid.UUID
	CampaignID    string
	OfferType     domain.OfferType
	AmountPaise   int64
	ValidityStart time.Time
	ValidityEnd   time.Time
}

// ProcessResult reports what one processing attempt decided.
type ProcessResult struct {
	OfferID    uuid.UUID
	CustomerID uuid.UUID
	Status     domain.OfferStatus
	Rule       string
	Parked     bool
}

// Service is the offer status controller.
type Service struct {
	repo         OfferRepository
	runner       TxRunner
	consolidator Consolidator
	checker      livebook.Checker
	bus          events.Bus
	log          *logger.Logger
	batchLimit   int
	checkRetries int
}

// New creates the controller. batchLimit bounds concurrent offers in a
// batch run; checkRetries is the live-book retry bound, recorded on the
// retry counter each time an outage defers an offer.
func New(repo OfferRepository, runner TxRunner, consolidator Consolidator, checker livebook.Checker, bus events.Bus, log *logger.Logger, batchLimit, checkRetries int) *Service {
	if batchLimit < 1 {
		batchLimit = 4
	}
	if checkRetries < 1 {
		checkRetries = 1
	}
	return &Service{
		repo:         repo,
		runner:       runner,
		consolidator: consolidator,
		checker:      checker,
		bus:          bus,
		log:          log,
		batchLimit:   batchLimit,
		checkRetries: checkRetries,
	}
}

// GetOffer fetches a single offer.
func (s *Service) GetOffer(ctx context.Context, id uuid.UUID) (domain.Offer, error) {
	return s.repo.GetByID(ctx, id)
}

// GetAudit returns the transition history of an offer.
func (s *Service) GetAudit(ctx context.Context, offerID uuid.UUID) ([]domain.AuditEntry, error) {
	if _, err := s.repo.GetByID(ctx, offerID); err != nil {
		return nil, err
	}
	return s.repo.ListAudit(ctx, offerID)
}

// ProcessIncoming handles one ingested record as a single transaction:
// consolidate the customer, create the offer row if it does not exist yet,
// then run the deduplication and live-book pipeline. Everything commits
// together or rolls back together; events publish only after the commit.
// Re-delivery of the same record is a no-op once the offer reached a
// terminal status. A data consistency violation rolls the unit back and
// parks the record.
func (s *Service) ProcessIncoming(ctx context.Context, rec custdomain.IncomingRecord, in OfferInput, sourceSystem string) (ProcessResult, error) {
	if err := validateInput(in); err != nil {
		return ProcessResult{}, err
	}

	var (
		result  ProcessResult
		pending []events.Event
	)

	err := s.runner.InTx(ctx, func(ctx context.Context, st Stores) error {
		outcome, err := s.consolidator.ConsolidateWith(ctx, st.Profiles, rec)
		if err != nil {
			return err
		}
		pending = append(pending, events.CustomerProfileUpdated{
			BaseEvent:    events.NewBaseEvent(),
			CustomerID:   outcome.Profile.ID,
			SourceSystem: sourceSystem,
			Created:      outcome.Created,
		})

		offer, err := s.ensureOffer(ctx, st.Offers, outcome.Profile.ID, in)
		if err != nil {
			return err
		}
		result = ProcessResult{OfferID: offer.ID, CustomerID: offer.CustomerID, Status: offer.Status}
		if domain.IsTerminal(offer.Status) {
			return nil
		}
		return s.decide(ctx, st, offer, &result, &pending)
	})
	if apperr.Is(err, apperr.KindDataConsistency) {
		return s.park(ctx, in.OfferID, err)
	}
	if err != nil {
		return ProcessResult{}, err
	}

	for _, e := range pending {
		s.bus.Publish(ctx, e)
	}
	return result, nil
}

// ensureOffer creates the PENDING offer row, tolerating and locking a row
// already created by an earlier delivery of the same event.
func (s *Service) ensureOffer(ctx context.Context, store OfferStore, customerID uuid.UUID, in OfferInput) (domain.Offer, error) {
	if in.OfferID != uuid.Nil {
		existing, err := store.GetByIDForUpdate(ctx, in.OfferID)
		if err == nil {
			return existing, nil
		}
		if !apperr.Is(err, apperr.KindNotFound) {
			return domain.Offer{}, err
		}
	}

	o := domain.Offer{
		ID:            in.OfferID,
		CustomerID:    customerID,
		CampaignID:    in.CampaignID,
		OfferType:     in.OfferType,
		AmountPaise:   in.AmountPaise,
		ValidityStart: in.ValidityStart,
		ValidityEnd:   in.ValidityEnd,
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if err := store.CreatePending(ctx, &o); err != nil {
		return domain.Offer{}, err
	}
	return o, nil
}

// ProcessOffer runs one decision attempt for an existing offer inside a
// single transaction: lock the row, re-arm a retry-state offer, evaluate
// the duplicate rules, check the live book, and commit the resulting
// transition together with its audit row. Events publish only after the
// commit.
func (s *Service) ProcessOffer(ctx context.Context, offerID uuid.UUID) (ProcessResult, error) {
	var (
		result  ProcessResult
		pending []events.Event
	)

	err := s.runner.InTx(ctx, func(ctx context.Context, st Stores) error {
		offer, err := st.Offers.GetByIDForUpdate(ctx, offerID)
		if err != nil {
			return err
		}
		result = ProcessResult{OfferID: offer.ID, CustomerID: offer.CustomerID, Status: offer.Status}
		if domain.IsTerminal(offer.Status) {
			return nil
		}
		return s.decide(ctx, st, offer, &result, &pending)
	})
	if err != nil {
		return ProcessResult{}, err
	}

	for _, e := range pending {
		s.bus.Publish(ctx, e)
	}
	return result, nil
}

// decide runs the dedup and live-book stages for a locked, non-terminal
// offer. A live book outage does not fail the transaction: the deferral to
// PENDING_LIVE_BOOK_RETRY commits as the attempt's final transition, with
// the original record untouched.
func (s *Service) decide(ctx context.Context, st Stores, offer domain.Offer, result *ProcessResult, pending *[]events.Event) error {
	if offer.Status == domain.StatusPendingLiveBookRetry {
		entry := domain.AuditEntry{
			OfferID:   offer.ID,
			OldStatus: offer.Status,
			NewStatus: domain.StatusPending,
			Rule:      domain.RuleRetryReattempt,
			Reason:    fmt.Sprintf("reattempt %d after live book outage", offer.RetryCount),
		}
		if err := st.Offers.Transition(ctx, entry, 0); err != nil {
			return err
		}
		offer.Status = domain.StatusPending
	}
	if offer.Status != domain.StatusPending {
		return nil
	}

	profile, err := st.Profiles.GetByID(ctx, offer.CustomerID)
	if err != nil {
		return err
	}

	existing, err := st.Offers.ListComparisonSet(ctx, offer.CustomerID, offer.OfferType)
	if err != nil {
		return err
	}

	verdict := domain.EvaluateDuplicate(offer, existing)
	switch verdict.Outcome {
	case domain.DedupMerge:
		return s.finish(ctx, st, result, pending, offer, domain.AuditEntry{
			OfferID:   offer.ID,
			OldStatus: domain.StatusPending,
			NewStatus: domain.StatusDedupedMerged,
			Rule:      domain.RuleExactOfferMerge,
			Reason:    fmt.Sprintf("identical to offer %s", verdict.DuplicateOf),
		})
	case domain.DedupReject:
		return s.finish(ctx, st, result, pending, offer, domain.AuditEntry{
			OfferID:   offer.ID,
			OldStatus: domain.StatusPending,
			NewStatus: domain.StatusRejectedDuplicate,
			Rule:      domain.RuleDuplicateWindowOverlap,
			Reason:    fmt.Sprintf("validity window overlaps offer %s", verdict.DuplicateOf),
		})
	}

	lbVerdict, err := s.checker.Check(ctx, checkRequest(profile, offer))
	if apperr.Is(err, apperr.KindExternalService) {
		return s.deferForRetry(ctx, st, result, pending, offer, err)
	}
	if err != nil {
		return err
	}

	if lbVerdict.Conflict {
		if lbVerdict.LiveBookID != nil {
			if err := st.Profiles.SetLiveBook(ctx, profile.ID, lbVerdict.LiveBookID, true); err != nil {
				return err
			}
		}
		reason := lbVerdict.Reason
		if reason == "" {
			reason = "customer holds a conflicting live loan"
		}
		return s.finish(ctx, st, result, pending, offer, domain.AuditEntry{
			OfferID:   offer.ID,
			OldStatus: domain.StatusPending,
			NewStatus: domain.StatusLiveBookConflict,
			Rule:      domain.RuleLiveBookConflict,
			Reason:    reason,
		})
	}

	if lbVerdict.LiveBookID != nil {
		if err := st.Profiles.SetLiveBook(ctx, profile.ID, lbVerdict.LiveBookID, false); err != nil {
			return err
		}
	}
	return s.finish(ctx, st, result, pending, offer, domain.AuditEntry{
		OfferID:   offer.ID,
		OldStatus: domain.StatusPending,
		NewStatus: domain.StatusActive,
		Rule:      domain.RuleCleared,
		Reason:    "no duplicate and no live book conflict",
	})
}

// finish applies the decided transition inside the transaction and stages
// the status event for publication after commit.
func (s *Service) finish(ctx context.Context, st Stores, result *ProcessResult, pending *[]events.Event, offer domain.Offer, entry domain.AuditEntry) error {
	if !domain.CanTransition(entry.OldStatus, entry.NewStatus) {
		return apperr.Internal(fmt.Sprintf("illegal transition %s -> %s", entry.OldStatus, entry.NewStatus)).
			WithOp("offers.ProcessOffer")
	}
	if err := st.Offers.Transition(ctx, entry, 0); err != nil {
		return err
	}

	result.Status = entry.NewStatus
	result.Rule = entry.Rule
	*pending = append(*pending, events.OfferStatusChanged{
		BaseEvent: events.NewBaseEvent(),
		OfferID:   offer.ID,
		OldStatus: string(entry.OldStatus),
		NewStatus: string(entry.NewStatus),
		Reason:    entry.Reason,
	})
	s.log.StatusTransition(offer.ID.String(), string(entry.OldStatus), string(entry.NewStatus), entry.Rule)
	return nil
}

// deferForRetry moves the offer to the retry state inside the running
// transaction after the live book retry bound is spent. The attempt still
// commits, so a freshly consolidated profile is kept; the offer record
// itself is untouched and the retry counter grows by one per failed call
// attempt.
func (s *Service) deferForRetry(ctx context.Context, st Stores, result *ProcessResult, pending *[]events.Event, offer domain.Offer, cause error) error {
	entry := domain.AuditEntry{
		OfferID:   offer.ID,
		OldStatus: domain.StatusPending,
		NewStatus: domain.StatusPendingLiveBookRetry,
		Rule:      domain.RuleLiveBookUnreachable,
		Reason:    cause.Error(),
	}
	if err := st.Offers.Transition(ctx, entry, s.checkRetries); err != nil {
		return err
	}

	result.Status = domain.StatusPendingLiveBookRetry
	result.Rule = entry.Rule
	*pending = append(*pending, events.OfferStatusChanged{
		BaseEvent: events.NewBaseEvent(),
		OfferID:   offer.ID,
		OldStatus: string(entry.OldStatus),
		NewStatus: string(entry.NewStatus),
		Reason:    entry.Reason,
	})
	s.log.StatusTransition(offer.ID.String(), string(entry.OldStatus), string(entry.NewStatus), entry.Rule)
	return nil
}

// park records a data consistency violation for manual review. The audit
// row is written unconditionally so a parked record always leaves a durable
// trace, whether or not its offer row exists yet.
func (s *Service) park(ctx context.Context, offerID uuid.UUID, cause error) (ProcessResult, error) {
	result := ProcessResult{OfferID: offerID, Parked: true}
	entry := domain.AuditEntry{
		OfferID: offerID,
		Rule:    domain.RuleManualReview,
		Reason:  cause.Error(),
	}

	if offerID != uuid.Nil {
		offer, err := s.repo.GetByID(ctx, offerID)
		if err == nil {
			entry.OldStatus = offer.Status
			entry.NewStatus = offer.Status
			result.CustomerID = offer.CustomerID
			result.Status = offer.Status
		} else if !apperr.Is(err, apperr.KindNotFound) {
			return ProcessResult{}, err
		}
	}
	if err := s.repo.InsertAudit(ctx, entry); err != nil {
		return ProcessResult{}, err
	}

	s.log.RecordParked(offerID.String(), cause.Error())
	s.bus.Publish(ctx, events.RecordParkedForReview{
		BaseEvent: events.NewBaseEvent(),
		OfferID:   offerID,
		Reason:    cause.Error(),
	})
	return result, cause
}

// BatchItem reports the outcome of one offer in a batch run.
type BatchItem struct {
	OfferID uuid.UUID
	Status  domain.OfferStatus
	Rule    string
	Err     string
}

// ProcessBatch processes a set of offers with bounded concurrency. Every
// offer gets an attempt; individual failures are reported per item instead
// of aborting the batch.
func (s *Service) ProcessBatch(ctx context.Context, offerIDs []uuid.UUID) ([]BatchItem, error) {
	items := make([]BatchItem, len(offerIDs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchLimit)
	for i, id := range offerIDs {
		g.Go(func() error {
			res, err := s.ProcessOffer(ctx, id)
			items[i] = BatchItem{OfferID: id, Status: res.Status, Rule: res.Rule}
			if err != nil {
				items[i].Err = err.Error()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateStatus applies an externally requested transition, for example an
// operator resolving a parked case. The state machine still applies.
func (s *Service) UpdateStatus(ctx context.Context, offerID uuid.UUID, newStatus domain.OfferStatus, reason string) (domain.Offer, error) {
	offer, err := s.repo.GetByID(ctx, offerID)
	if err != nil {
		return domain.Offer{}, err
	}
	if !domain.CanTransition(offer.Status, newStatus) {
		return domain.Offer{}, apperr.Conflict(
			fmt.Sprintf("cannot move offer from %s to %s", offer.Status, newStatus)).
			WithOp("offers.UpdateStatus")
	}

	entry := domain.AuditEntry{
		OfferID:   offer.ID,
		OldStatus: offer.Status,
		NewStatus: newStatus,
		Rule:      domain.RuleExternalStatusUpdate,
		Reason:    reason,
	}
	if err := s.repo.Transition(ctx, entry, 0); err != nil {
		return domain.Offer{}, err
	}

	s.log.StatusTransition(offer.ID.String(), string(entry.OldStatus), string(entry.NewStatus), entry.Rule)
	s.bus.Publish(ctx, events.OfferStatusChanged{
		BaseEvent: events.NewBaseEvent(),
		OfferID:   offer.ID,
		OldStatus: string(entry.OldStatus),
		NewStatus: string(entry.NewStatus),
		Reason:    reason,
	})

	offer.Status = newStatus
	return offer, nil
}

func validateInput(in OfferInput) error {
	if !domain.ValidOfferType(in.OfferType) {
		return apperr.Validation(fmt.Sprintf("unknown offer type %q", in.OfferType))
	}
	if in.AmountPaise <= 0 {
		return apperr.Validation("offer amount must be positive")
	}
	if in.ValidityEnd.Before(in.ValidityStart) {
		return apperr.Validation("offer validity window ends before it starts")
	}
	return nil
}

func checkRequest(p custdomain.CustomerProfile, o domain.Offer) livebook.CheckRequest {
	req := livebook.CheckRequest{
		CustomerID: p.ID,
		OfferType:  string(o.OfferType),
	}
	if p.PAN != nil {
		req.PAN = *p.PAN
	}
	if p.Aadhaar != nil {
		req.Aadhaar = *p.Aadhaar
	}
	if p.Mobile != nil {
		req.Mobile = *p.Mobile
	}
	return req
}
