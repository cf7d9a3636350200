package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	custdomain "scv_dedup_backend/internal/customers/domain"
	custservice "scv_dedup_backend/internal/customers/service"
	"scv_dedup_backend/internal/events"
	"scv_dedup_backend/internal/livebook"
	"scv_dedup_backend/internal/offers/domain"
	"scv_dedup_backend/platform/apperr"
	"scv_dedup_backend/platform/logger"
)

// ---------------------------------------------------------------------------
// fakes

type fakeOfferStore struct {
	mu     sync.Mutex
	offers map[uuid.UUID]domain.Offer
	audits []domain.AuditEntry
}

func newFakeOfferStore() *fakeOfferStore {
	return &fakeOfferStore{offers: make(map[uuid.UUID]domain.Offer)}
}

func (f *fakeOfferStore) GetByID(ctx context.Context, id uuid.UUID) (domain.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.offers[id]
	if !ok {
		return domain.Offer{}, apperr.NotFound("offer not found")
	}
	return o, nil
}

func (f *fakeOfferStore) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (domain.Offer, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeOfferStore) CreatePending(ctx context.Context, o *domain.Offer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o.Status = domain.StatusPending
	f.offers[o.ID] = *o
	return nil
}

func (f *fakeOfferStore) ListComparisonSet(ctx context.Context, customerID uuid.UUID, incomingType domain.OfferType) ([]domain.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	probe := domain.Offer{OfferType: incomingType}
	var out []domain.Offer
	for _, o := range f.offers {
		if o.CustomerID == customerID && domain.InScope(probe, o) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOfferStore) Transition(ctx context.Context, entry domain.AuditEntry, retryDelta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.offers[entry.OfferID]
	if !ok {
		return apperr.NotFound("offer not found")
	}
	if o.Status != entry.OldStatus {
		return apperr.Conflict("offer status changed concurrently")
	}
	o.Status = entry.NewStatus
	o.RetryCount += retryDelta
	f.offers[entry.OfferID] = o
	f.audits = append(f.audits, entry)
	return nil
}

func (f *fakeOfferStore) InsertAudit(ctx context.Context, entry domain.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audits = append(f.audits, entry)
	return nil
}

func (f *fakeOfferStore) ListAudit(ctx context.Context, offerID uuid.UUID) ([]domain.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.AuditEntry
	for _, e := range f.audits {
		if e.OfferID == offerID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeOfferStore) snapshot() (map[uuid.UUID]domain.Offer, []domain.AuditEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	offers := make(map[uuid.UUID]domain.Offer, len(f.offers))
	for k, v := range f.offers {
		offers[k] = v
	}
	return offers, append([]domain.AuditEntry(nil), f.audits...)
}

func (f *fakeOfferStore) restore(offers map[uuid.UUID]domain.Offer, audits []domain.AuditEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offers = offers
	f.audits = audits
}

type liveBookCall struct {
	liveBookID *string
	flag       bool
}

type fakeProfileStore struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]custdomain.CustomerProfile
	setCalls []liveBookCall
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{profiles: make(map[uuid.UUID]custdomain.CustomerProfile)}
}

func (f *fakeProfileStore) GetByID(ctx context.Context, id uuid.UUID) (custdomain.CustomerProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return custdomain.CustomerProfile{}, apperr.NotFound("customer not found")
	}
	return p, nil
}

func (f *fakeProfileStore) SetLiveBook(ctx context.Context, id uuid.UUID, liveBookID *string, flag bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.profiles[id]
	p.LiveBookID = liveBookID
	p.LiveBookFlag = flag
	f.profiles[id] = p
	f.setCalls = append(f.setCalls, liveBookCall{liveBookID: liveBookID, flag: flag})
	return nil
}

func (f *fakeProfileStore) FindByIdentityKeys(ctx context.Context, keys custdomain.IdentityKeys) ([]custdomain.Candidate, error) {
	return nil, nil
}

func (f *fakeProfileStore) Create(ctx context.Context, p *custdomain.CustomerProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[p.ID] = *p
	return nil
}

func (f *fakeProfileStore) UpdateCAS(ctx context.Context, p *custdomain.CustomerProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[p.ID] = *p
	return nil
}

func (f *fakeProfileStore) snapshot() map[uuid.UUID]custdomain.CustomerProfile {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uuid.UUID]custdomain.CustomerProfile, len(f.profiles))
	for k, v := range f.profiles {
		out[k] = v
	}
	return out
}

func (f *fakeProfileStore) restore(profiles map[uuid.UUID]custdomain.CustomerProfile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles = profiles
}

// fakeRunner hands the callback the shared fakes and rolls offer and
// profile state back when the callback fails, mirroring transaction
// semantics.
type fakeRunner struct {
	offers   *fakeOfferStore
	profiles *fakeProfileStore
}

func (r *fakeRunner) InTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
	offers, audits := r.offers.snapshot()
	profiles := r.profiles.snapshot()
	err := fn(ctx, Stores{Offers: r.offers, Profiles: r.profiles})
	if err != nil {
		r.offers.restore(offers, audits)
		r.profiles.restore(profiles)
		return err
	}
	return nil
}

type fakeConsolidator struct {
	outcome custservice.Outcome
	err     error
}

func (f *fakeConsolidator) ConsolidateWith(ctx context.Context, profiles custservice.ProfileRepository, rec custdomain.IncomingRecord) (custservice.Outcome, error) {
	if f.err != nil {
		return custservice.Outcome{}, f.err
	}
	if f.outcome.Created {
		p := f.outcome.Profile
		if err := profiles.Create(ctx, &p); err != nil {
			return custservice.Outcome{}, err
		}
	}
	return f.outcome, nil
}

type stubChecker struct {
	verdict livebook.Verdict
	err     error
	calls   int
}

func (s *stubChecker) Check(ctx context.Context, req livebook.CheckRequest) (livebook.Verdict, error) {
	s.calls++
	if s.err != nil {
		return livebook.Verdict{}, s.err
	}
	return s.verdict, nil
}

type recordingBus struct {
	mu        sync.Mutex
	published []events.Event
}

func (b *recordingBus) Publish(ctx context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, e)
}

func (b *recordingBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}

func (b *recordingBus) Subscribe(eventName string, h events.Handler) {}

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, e := range b.published {
		out = append(out, e.EventName())
	}
	return out
}

// ---------------------------------------------------------------------------
// fixture

type fixture struct {
	svc          *Service
	offers       *fakeOfferStore
	profiles     *fakeProfileStore
	checker      *stubChecker
	consolidator *fakeConsolidator
	bus          *recordingBus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		offers:       newFakeOfferStore(),
		profiles:     newFakeProfileStore(),
		checker:      &stubChecker{},
		consolidator: &fakeConsolidator{},
		bus:          &recordingBus{},
	}
	runner := &fakeRunner{offers: f.offers, profiles: f.profiles}
	f.svc = New(f.offers, runner, f.consolidator, f.checker, f.bus, logger.New("development"), 2, 3)
	return f
}

func (f *fixture) addProfile() custdomain.CustomerProfile {
	pan := "ABCDE1234F"
	p := custdomain.CustomerProfile{ID: uuid.New(), PAN: &pan, Version: 1}
	f.profiles.profiles[p.ID] = p
	return p
}

func (f *fixture) addOffer(customerID uuid.UUID, typ domain.OfferType, campaign string, status domain.OfferStatus, start, end time.Time) domain.Offer {
	o := domain.Offer{
		ID:            uuid.New(),
		CustomerID:    customerID,
		CampaignID:    campaign,
		OfferType:     typ,
		AmountPaise:   50_000_00,
		ValidityStart: start,
		ValidityEnd:   end,
		Status:        status,
	}
	f.offers.offers[o.ID] = o
	return o
}

func day(d int) time.Time {
	return time.Date(2026, time.March, d, 0, 0, 0, 0, time.UTC)
}

// ---------------------------------------------------------------------------
// ProcessOffer

func TestProcessOffer_ClearPathActivates(t *testing.T) {
	f := newFixture(t)
	p := f.addProfile()
	o := f.addOffer(p.ID, domain.OfferTypeLoyalty, "C1", domain.StatusPending, day(1), day(30))

	lbID := "LB-9"
	f.checker.verdict = livebook.Verdict{Conflict: false, LiveBookID: &lbID}

	res, err := f.svc.ProcessOffer(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != domain.StatusActive {
		t.Fatalf("expected ACTIVE, got %s", res.Status)
	}
	if res.Rule != domain.RuleCleared {
		t.Errorf("expected rule %s, got %s", domain.RuleCleared, res.Rule)
	}

	stored := f.offers.offers[o.ID]
	if stored.Status != domain.StatusActive {
		t.Errorf("stored status = %s", stored.Status)
	}
	if len(f.profiles.setCalls) != 1 || f.profiles.setCalls[0].flag {
		t.Errorf("expected one live book registration without conflict flag, got %+v", f.profiles.setCalls)
	}
	if got := f.bus.names(); len(got) != 1 || got[0] != "offers.status.changed" {
		t.Errorf("expected one status event, got %v", got)
	}
}

func TestProcessOffer_OverlappingDuplicateRejects(t *testing.T) {
	f := newFixture(t)
	p := f.addProfile()
	f.addOffer(p.ID, domain.OfferTypeLoyalty, "C1", domain.StatusActive, day(1), day(15))
	incoming := f.addOffer(p.ID, domain.OfferTypeLoyalty, "C2", domain.StatusPending, day(10), day(25))

	res, err := f.svc.ProcessOffer(context.Background(), incoming.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != domain.StatusRejectedDuplicate {
		t.Fatalf("expected REJECTED_DUPLICATE, got %s", res.Status)
	}
	if f.checker.calls != 0 {
		t.Error("live book must not be consulted for a duplicate")
	}

	audits, _ := f.offers.ListAudit(context.Background(), incoming.ID)
	if len(audits) != 1 || audits[0].Rule != domain.RuleDuplicateWindowOverlap {
		t.Errorf("unexpected audit trail: %+v", audits)
	}
}

func TestProcessOffer_ExactRedeliveryMerges(t *testing.T) {
	f := newFixture(t)
	p := f.addProfile()
	f.addOffer(p.ID, domain.OfferTypePreapproved, "C1", domain.StatusActive, day(1), day(30))
	incoming := f.addOffer(p.ID, domain.OfferTypePreapproved, "C1", domain.StatusPending, day(1), day(30))

	res, err := f.svc.ProcessOffer(context.Background(), incoming.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != domain.StatusDedupedMerged {
		t.Fatalf("expected DEDUPED_MERGED, got %s", res.Status)
	}
	if res.Rule != domain.RuleExactOfferMerge {
		t.Errorf("expected rule %s, got %s", domain.RuleExactOfferMerge, res.Rule)
	}
}

func TestProcessOffer_LiveBookConflict(t *testing.T) {
	f := newFixture(t)
	p := f.addProfile()
	o := f.addOffer(p.ID, domain.OfferTypePersonalLoan, "C1", domain.StatusPending, day(1), day(30))

	lbID := "LB-3"
	f.checker.verdict = livebook.Verdict{Conflict: true, LiveBookID: &lbID, Reason: "running personal loan"}

	res, err := f.svc.ProcessOffer(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != domain.StatusLiveBookConflict {
		t.Fatalf("expected LIVE_BOOK_CONFLICT, got %s", res.Status)
	}
	if len(f.profiles.setCalls) != 1 || !f.profiles.setCalls[0].flag {
		t.Errorf("expected live book conflict flag on profile, got %+v", f.profiles.setCalls)
	}
	audits, _ := f.offers.ListAudit(context.Background(), o.ID)
	if len(audits) != 1 || audits[0].Reason != "running personal loan" {
		t.Errorf("unexpected audit trail: %+v", audits)
	}
}

func TestProcessOffer_LiveBookOutageDefersOffer(t *testing.T) {
	f := newFixture(t)
	p := f.addProfile()
	o := f.addOffer(p.ID, domain.OfferTypeLoyalty, "C1", domain.StatusPending, day(1), day(30))

	f.checker.err = apperr.ExternalService("live book unreachable")

	res, err := f.svc.ProcessOffer(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("deferral must not surface an error, got %v", err)
	}
	if res.Status != domain.StatusPendingLiveBookRetry {
		t.Fatalf("expected PENDING_LIVE_BOOK_RETRY, got %s", res.Status)
	}

	stored := f.offers.offers[o.ID]
	if stored.Status != domain.StatusPendingLiveBookRetry {
		t.Errorf("stored status = %s", stored.Status)
	}
	if stored.RetryCount != 3 {
		t.Errorf("expected one increment per failed call attempt, got %d", stored.RetryCount)
	}

	audits, _ := f.offers.ListAudit(context.Background(), o.ID)
	if len(audits) != 1 || audits[0].Rule != domain.RuleLiveBookUnreachable {
		t.Errorf("unexpected audit trail: %+v", audits)
	}
}

func TestProcessOffer_RetryStateRearmsAndActivates(t *testing.T) {
	f := newFixture(t)
	p := f.addProfile()
	o := f.addOffer(p.ID, domain.OfferTypeLoyalty, "C1", domain.StatusPendingLiveBookRetry, day(1), day(30))

	res, err := f.svc.ProcessOffer(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != domain.StatusActive {
		t.Fatalf("expected ACTIVE after reattempt, got %s", res.Status)
	}

	audits, _ := f.offers.ListAudit(context.Background(), o.ID)
	if len(audits) != 2 {
		t.Fatalf("expected reattempt and activation audit rows, got %+v", audits)
	}
	if audits[0].Rule != domain.RuleRetryReattempt || audits[1].Rule != domain.RuleCleared {
		t.Errorf("unexpected rules: %s, %s", audits[0].Rule, audits[1].Rule)
	}
}

func TestProcessOffer_RepeatedOutageDefersAgain(t *testing.T) {
	f := newFixture(t)
	p := f.addProfile()
	o := f.addOffer(p.ID, domain.OfferTypeLoyalty, "C1", domain.StatusPendingLiveBookRetry, day(1), day(30))
	stored := f.offers.offers[o.ID]
	stored.RetryCount = 3
	f.offers.offers[o.ID] = stored

	f.checker.err = apperr.ExternalService("live book unreachable")

	res, err := f.svc.ProcessOffer(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != domain.StatusPendingLiveBookRetry {
		t.Fatalf("expected offer to stay deferred, got %s", res.Status)
	}

	stored = f.offers.offers[o.ID]
	if stored.RetryCount != 6 {
		t.Errorf("expected retry count 6 after a second exhausted attempt, got %d", stored.RetryCount)
	}
	// The reattempt and the renewed deferral commit in the same transaction.
	audits, _ := f.offers.ListAudit(context.Background(), o.ID)
	if len(audits) != 2 || audits[0].Rule != domain.RuleRetryReattempt || audits[1].Rule != domain.RuleLiveBookUnreachable {
		t.Errorf("unexpected audit trail: %+v", audits)
	}
}

func TestProcessOffer_TerminalOfferIsNoOp(t *testing.T) {
	f := newFixture(t)
	p := f.addProfile()
	o := f.addOffer(p.ID, domain.OfferTypeLoyalty, "C1", domain.StatusRejectedDuplicate, day(1), day(30))

	res, err := f.svc.ProcessOffer(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != domain.StatusRejectedDuplicate {
		t.Fatalf("terminal offer must not move, got %s", res.Status)
	}
	if len(f.bus.names()) != 0 {
		t.Errorf("no events expected, got %v", f.bus.names())
	}
}

// ---------------------------------------------------------------------------
// ProcessIncoming

func TestProcessIncoming_CreatesOfferAndActivates(t *testing.T) {
	f := newFixture(t)
	p := f.addProfile()
	f.consolidator.outcome = custservice.Outcome{Profile: p, Created: true}

	res, err := f.svc.ProcessIncoming(context.Background(),
		custdomain.IncomingRecord{PAN: "ABCDE1234F"},
		OfferInput{
			OfferID:       uuid.New(),
			CampaignID:    "C1",
			OfferType:     domain.OfferTypeLoyalty,
			AmountPaise:   100_000_00,
			ValidityStart: day(1),
			ValidityEnd:   day(30),
		},
		"crm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != domain.StatusActive {
		t.Fatalf("expected ACTIVE, got %s", res.Status)
	}
	if res.CustomerID != p.ID {
		t.Errorf("expected offer bound to profile %s, got %s", p.ID, res.CustomerID)
	}
}

func TestProcessIncoming_TerminalRedeliveryIsNoOp(t *testing.T) {
	f := newFixture(t)
	p := f.addProfile()
	f.consolidator.outcome = custservice.Outcome{Profile: p}
	o := f.addOffer(p.ID, domain.OfferTypeLoyalty, "C1", domain.StatusActive, day(1), day(30))

	res, err := f.svc.ProcessIncoming(context.Background(),
		custdomain.IncomingRecord{PAN: "ABCDE1234F"},
		OfferInput{
			OfferID:       o.ID,
			CampaignID:    "C1",
			OfferType:     domain.OfferTypeLoyalty,
			AmountPaise:   100_000_00,
			ValidityStart: day(1),
			ValidityEnd:   day(30),
		},
		"crm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != domain.StatusActive {
		t.Fatalf("expected existing status back, got %s", res.Status)
	}
	if f.checker.calls != 0 {
		t.Error("pipeline must not rerun for a terminal offer")
	}
}

func TestProcessIncoming_AmbiguousMatchParksRecord(t *testing.T) {
	f := newFixture(t)
	p := f.addProfile()
	f.consolidator.err = apperr.DataConsistency("ambiguous match: two profiles share the key")
	o := f.addOffer(p.ID, domain.OfferTypeLoyalty, "C1", domain.StatusPending, day(1), day(30))

	res, err := f.svc.ProcessIncoming(context.Background(),
		custdomain.IncomingRecord{Mobile: "9199999999"},
		OfferInput{
			OfferID:       o.ID,
			CampaignID:    "C1",
			OfferType:     domain.OfferTypeLoyalty,
			AmountPaise:   100_000_00,
			ValidityStart: day(1),
			ValidityEnd:   day(30),
		},
		"crm")
	if !apperr.Is(err, apperr.KindDataConsistency) {
		t.Fatalf("expected data consistency error, got %v", err)
	}
	if !res.Parked {
		t.Error("expected a parked result")
	}
	if got := f.offers.offers[o.ID].Status; got != domain.StatusPending {
		t.Errorf("parked offer must stay PENDING, got %s", got)
	}

	audits, _ := f.offers.ListAudit(context.Background(), o.ID)
	if len(audits) != 1 || audits[0].Rule != domain.RuleManualReview {
		t.Errorf("unexpected audit trail: %+v", audits)
	}
	names := f.bus.names()
	if len(names) != 1 || names[0] != "offers.record.parked" {
		t.Errorf("expected parked event, got %v", names)
	}
}

func TestProcessIncoming_ParkWithoutOfferStillAudited(t *testing.T) {
	f := newFixture(t)
	f.consolidator.err = apperr.DataConsistency("ambiguous match: two profiles share the key")
	offerID := uuid.New()

	res, err := f.svc.ProcessIncoming(context.Background(),
		custdomain.IncomingRecord{Mobile: "9199999999"},
		OfferInput{
			OfferID:       offerID,
			CampaignID:    "C1",
			OfferType:     domain.OfferTypeLoyalty,
			AmountPaise:   100_000_00,
			ValidityStart: day(1),
			ValidityEnd:   day(30),
		},
		"crm")
	if !apperr.Is(err, apperr.KindDataConsistency) {
		t.Fatalf("expected data consistency error, got %v", err)
	}
	if !res.Parked {
		t.Error("expected a parked result")
	}

	// The offer row never existed; the park must still leave a durable trace.
	audits, _ := f.offers.ListAudit(context.Background(), offerID)
	if len(audits) != 1 || audits[0].Rule != domain.RuleManualReview {
		t.Fatalf("expected a manual review audit row, got %+v", audits)
	}
	if !strings.Contains(audits[0].Reason, "ambiguous match") {
		t.Errorf("audit row must carry the cause, got %q", audits[0].Reason)
	}
}

func TestProcessIncoming_FailureRollsBackConsolidation(t *testing.T) {
	f := newFixture(t)
	pan := "ABCDE1234F"
	p := custdomain.CustomerProfile{ID: uuid.New(), PAN: &pan, Version: 1}
	f.consolidator.outcome = custservice.Outcome{Profile: p, Created: true, Changed: true}
	f.checker.err = apperr.Internal("live book response unparseable")
	offerID := uuid.New()

	_, err := f.svc.ProcessIncoming(context.Background(),
		custdomain.IncomingRecord{PAN: pan},
		OfferInput{
			OfferID:       offerID,
			CampaignID:    "C1",
			OfferType:     domain.OfferTypeLoyalty,
			AmountPaise:   100_000_00,
			ValidityStart: day(1),
			ValidityEnd:   day(30),
		},
		"crm")
	if err == nil {
		t.Fatal("expected the failed attempt to surface an error")
	}

	if _, ok := f.profiles.profiles[p.ID]; ok {
		t.Error("profile created mid-attempt must roll back with the unit")
	}
	if _, ok := f.offers.offers[offerID]; ok {
		t.Error("offer row must roll back with the unit")
	}
	if len(f.bus.names()) != 0 {
		t.Errorf("no events may publish for a rolled back unit, got %v", f.bus.names())
	}
}

func TestProcessIncoming_OutageCommitsProfileAndDefers(t *testing.T) {
	f := newFixture(t)
	pan := "ABCDE1234F"
	p := custdomain.CustomerProfile{ID: uuid.New(), PAN: &pan, Version: 1}
	f.consolidator.outcome = custservice.Outcome{Profile: p, Created: true, Changed: true}
	f.checker.err = apperr.ExternalService("live book unreachable")
	offerID := uuid.New()

	res, err := f.svc.ProcessIncoming(context.Background(),
		custdomain.IncomingRecord{PAN: pan},
		OfferInput{
			OfferID:       offerID,
			CampaignID:    "C1",
			OfferType:     domain.OfferTypeLoyalty,
			AmountPaise:   100_000_00,
			ValidityStart: day(1),
			ValidityEnd:   day(30),
		},
		"crm")
	if err != nil {
		t.Fatalf("deferral must not surface an error, got %v", err)
	}
	if res.Status != domain.StatusPendingLiveBookRetry {
		t.Fatalf("expected PENDING_LIVE_BOOK_RETRY, got %s", res.Status)
	}

	if _, ok := f.profiles.profiles[p.ID]; !ok {
		t.Error("consolidated profile must commit with the deferral")
	}
	if got := f.offers.offers[offerID].Status; got != domain.StatusPendingLiveBookRetry {
		t.Errorf("stored status = %s", got)
	}
}

func TestProcessIncoming_RejectsInvalidInput(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name string
		in   OfferInput
	}{
		{"unknown type", OfferInput{OfferType: "CREDIT_CARD", AmountPaise: 1, ValidityStart: day(1), ValidityEnd: day(2)}},
		{"non-positive amount", OfferInput{OfferType: domain.OfferTypeLoyalty, AmountPaise: 0, ValidityStart: day(1), ValidityEnd: day(2)}},
		{"inverted window", OfferInput{OfferType: domain.OfferTypeLoyalty, AmountPaise: 1, ValidityStart: day(2), ValidityEnd: day(1)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.ProcessIncoming(context.Background(), custdomain.IncomingRecord{PAN: "ABCDE1234F"}, tc.in, "crm")
			if !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// UpdateStatus and ProcessBatch

func TestUpdateStatus_EnforcesStateMachine(t *testing.T) {
	f := newFixture(t)
	p := f.addProfile()
	o := f.addOffer(p.ID, domain.OfferTypeLoyalty, "C1", domain.StatusActive, day(1), day(30))

	_, err := f.svc.UpdateStatus(context.Background(), o.ID, domain.StatusPending, "undo")
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict for illegal transition, got %v", err)
	}
}

func TestUpdateStatus_AppliesAllowedTransition(t *testing.T) {
	f := newFixture(t)
	p := f.addProfile()
	o := f.addOffer(p.ID, domain.OfferTypeLoyalty, "C1", domain.StatusPending, day(1), day(30))

	updated, err := f.svc.UpdateStatus(context.Background(), o.ID, domain.StatusRejectedDuplicate, "manual review outcome")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != domain.StatusRejectedDuplicate {
		t.Fatalf("expected REJECTED_DUPLICATE, got %s", updated.Status)
	}

	audits, _ := f.offers.ListAudit(context.Background(), o.ID)
	if len(audits) != 1 || audits[0].Rule != domain.RuleExternalStatusUpdate {
		t.Errorf("unexpected audit trail: %+v", audits)
	}
}

func TestProcessBatch_ReportsPerOfferOutcomes(t *testing.T) {
	f := newFixture(t)
	p := f.addProfile()
	first := f.addOffer(p.ID, domain.OfferTypeLoyalty, "C1", domain.StatusPending, day(1), day(10))
	dup := f.addOffer(p.ID, domain.OfferTypePreapproved, "C2", domain.StatusPending, day(5), day(20))
	missing := uuid.New()

	// The second offer overlaps an ACTIVE one in the cross-product scope.
	f.addOffer(p.ID, domain.OfferTypePreapproved, "C3", domain.StatusActive, day(15), day(40))

	items, err := f.svc.ProcessBatch(context.Background(), []uuid.UUID{first.ID, dup.ID, missing})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}

	byID := make(map[uuid.UUID]BatchItem, len(items))
	for _, it := range items {
		byID[it.OfferID] = it
	}
	if byID[dup.ID].Status != domain.StatusRejectedDuplicate {
		t.Errorf("expected rejection for %s, got %s", dup.ID, byID[dup.ID].Status)
	}
	if byID[missing].Err == "" || !strings.Contains(byID[missing].Err, "not found") {
		t.Errorf("expected not-found error for unknown offer, got %q", byID[missing].Err)
	}
}
