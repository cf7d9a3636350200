// Package service implements identity resolution and profile consolidation.
package service

import (
	"context"

	"github.com/google/uuid"

	"scv_dedup_backend/internal/customers/domain"
	"scv_dedup_backend/internal/events"
	"scv_dedup_backend/platform/apperr"
	"scv_dedup_backend/platform/logger"
)

// ProfileRepository is the storage surface the consolidator needs. Both the
// pool-bound repository and a transaction-bound one satisfy it, so the offer
// controller can run consolidation inside its per-offer transaction.
type ProfileRepository interface {
	FindByIdentityKeys(ctx context.Context, keys domain.IdentityKeys) ([]domain.Candidate, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.CustomerProfile, error)
	Create(ctx context.Context, p *domain.CustomerProfile) error
	UpdateCAS(ctx context.Context, p *domain.CustomerProfile) error
	SetLiveBook(ctx context.Context, id uuid.UUID, liveBookID *string, flag bool) error
}

// Outcome is the result of one consolidation: the canonical profile the
// record now belongs to, and how it got there.
type Outcome struct {
	Profile        domain.CustomerProfile
	Classification domain.Classification
	MatchedOn      string
	Created        bool
	Changed        bool
}

// Service provides identity resolution and profile consolidation.
type Service struct {
	repo       ProfileRepository
	bus        events.Bus
	log        *logger.Logger
	maxRetries int
}

// New creates a consolidation service. maxRetries bounds both the optimistic
// version retry loop and the create-conflict fallback loop.
func New(repo ProfileRepository, bus events.Bus, log *logger.Logger, maxRetries int) *Service {
	if maxRetries < 1 {
		maxRetries = 3
	}
	return &Service{repo: repo, bus: bus, log: log, maxRetries: maxRetries}
}

// GetProfile fetches a profile by ID.
func (s *Service) GetProfile(ctx context.Context, id uuid.UUID) (domain.CustomerProfile, error) {
	return s.repo.GetByID(ctx, id)
}

// ResolveCandidates looks up all profiles matching the record's identity
// keys. Read-only; no side effects.
func (s *Service) ResolveCandidates(ctx context.Context, rec domain.IncomingRecord) (domain.MatchResult, error) {
	keys := rec.Keys()
	if !keys.HasAny() {
		return domain.MatchResult{}, apperr.Validation("record carries no identity key").
			WithOp("customers.ResolveCandidates")
	}

	candidates, err := s.repo.FindByIdentityKeys(ctx, keys)
	if err != nil {
		return domain.MatchResult{}, err
	}
	return domain.MatchResult{Candidates: candidates}, nil
}

// CreateOrMerge consolidates an incoming record and publishes
// CustomerProfileUpdated. This is the collaborator-facing entry point; the
// offer controller uses ConsolidateWith instead and publishes after its
// transaction commits.
func (s *Service) CreateOrMerge(ctx context.Context, rec domain.IncomingRecord, sourceSystem string) (Outcome, error) {
	outcome, err := s.ConsolidateWith(ctx, s.repo, rec)
	if err != nil {
		return Outcome{}, err
	}

	s.bus.Publish(ctx, events.CustomerProfileUpdated{
		BaseEvent:    events.NewBaseEvent(),
		CustomerID:   outcome.Profile.ID,
		SourceSystem: sourceSystem,
		Created:      outcome.Created,
	})
	return outcome, nil
}

// ConsolidateWith resolves, classifies and applies the record against the
// given repository. NEW creates a profile; a unique violation during
// creation falls back to re-resolving against the now-visible row and
// merging. Confirmed and tie-broken ambiguous matches merge under bounded
// optimistic version retries. An unresolvable tie surfaces as a data
// consistency error for the caller to park.
func (s *Service) ConsolidateWith(ctx context.Context, repo ProfileRepository, rec domain.IncomingRecord) (Outcome, error) {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		result, err := s.resolveWith(ctx, repo, rec)
		if err != nil {
			return Outcome{}, err
		}

		match, err := domain.Classify(result)
		if err != nil {
			return Outcome{}, err
		}

		if match.Classification == domain.ClassificationNew {
			p := domain.NewProfileFromRecord(rec)
			p.ID = uuid.New()
			err := repo.Create(ctx, &p)
			if apperr.Is(err, apperr.KindConflict) {
				// Another writer created the profile between resolution and
				// insert. Re-resolve against the now-visible row and merge.
				continue
			}
			if err != nil {
				return Outcome{}, err
			}
			s.log.ProfileConsolidated(p.ID.String(), "created", "")
			return Outcome{
				Profile:        p,
				Classification: match.Classification,
				Created:        true,
				Changed:        true,
			}, nil
		}

		outcome, err := s.mergeWith(ctx, repo, *match.Candidate, rec)
		if err != nil {
			return Outcome{}, err
		}
		outcome.Classification = match.Classification
		outcome.MatchedOn = match.MatchedOnString()
		s.log.ProfileConsolidated(outcome.Profile.ID.String(), "merged", outcome.MatchedOn)
		return outcome, nil
	}

	return Outcome{}, apperr.PersistenceConflict("consolidation retries exhausted").
		WithOp("customers.ConsolidateWith")
}

func (s *Service) resolveWith(ctx context.Context, repo ProfileRepository, rec domain.IncomingRecord) (domain.MatchResult, error) {
	keys := rec.Keys()
	if !keys.HasAny() {
		return domain.MatchResult{}, apperr.Validation("record carries no identity key").
			WithOp("customers.ConsolidateWith")
	}
	candidates, err := repo.FindByIdentityKeys(ctx, keys)
	if err != nil {
		return domain.MatchResult{}, err
	}
	return domain.MatchResult{Candidates: candidates}, nil
}

// mergeWith applies the record to the matched profile under the optimistic
// version counter, re-reading fresh state on each conflict. A merge that
// changes nothing skips the write entirely, which is what makes event
// re-delivery idempotent.
func (s *Service) mergeWith(ctx context.Context, repo ProfileRepository, cand domain.Candidate, rec domain.IncomingRecord) (Outcome, error) {
	profile := cand.Profile

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		changed := domain.Merge(&profile, rec)
		if !changed {
			return Outcome{Profile: profile}, nil
		}

		err := repo.UpdateCAS(ctx, &profile)
		if err == nil {
			return Outcome{Profile: profile, Changed: true}, nil
		}
		if !apperr.Is(err, apperr.KindPersistenceConflict) {
			return Outcome{}, err
		}

		fresh, err := repo.GetByID(ctx, profile.ID)
		if err != nil {
			return Outcome{}, err
		}
		profile = fresh
	}

	return Outcome{}, apperr.PersistenceConflict("merge retries exhausted").
		WithOp("customers.mergeWith")
}
