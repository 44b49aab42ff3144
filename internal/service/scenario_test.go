package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/guardian/internal/assessment"
	"github.com/saturnino-fabrica-de-software/guardian/internal/channel"
	"github.com/saturnino-fabrica-de-software/guardian/internal/channel/simulated"
	"github.com/saturnino-fabrica-de-software/guardian/internal/decision"
	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
	"github.com/saturnino-fabrica-de-software/guardian/internal/notification"
	"github.com/saturnino-fabrica-de-software/guardian/internal/policy"
	oraclemock "github.com/saturnino-fabrica-de-software/guardian/internal/provider/mock"
	"github.com/saturnino-fabrica-de-software/guardian/internal/repository"
	"github.com/saturnino-fabrica-de-software/guardian/internal/tracking"
)

// memoryStore backs every repository interface the pipeline uses.
type memoryStore struct {
	mu          sync.Mutex
	assessments map[uuid.UUID]domain.Assessment
	events      map[uuid.UUID]domain.EmergencyEvent
	transitions map[uuid.UUID][]domain.EventTransition
	incidents   map[string]domain.Incident
	samples     map[string][]domain.LocationSample
	records     []domain.DeliveryRecord
	contacts    []domain.Contact

	// widens the read-then-create window in concurrency tests
	incidentCreateDelay time.Duration
}

func newMemoryStore(contacts []domain.Contact) *memoryStore {
	return &memoryStore{
		assessments: make(map[uuid.UUID]domain.Assessment),
		events:      make(map[uuid.UUID]domain.EmergencyEvent),
		transitions: make(map[uuid.UUID][]domain.EventTransition),
		incidents:   make(map[string]domain.Incident),
		samples:     make(map[string][]domain.LocationSample),
		contacts:    contacts,
	}
}

type assessmentStore struct{ *memoryStore }

func (s assessmentStore) Create(_ context.Context, a *domain.Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assessments[a.ID] = *a
	return nil
}

func (s assessmentStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Assessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assessments[id]
	if !ok {
		return nil, domain.ErrAssessmentNotFound
	}
	return &a, nil
}

func (s assessmentStore) SaveResult(_ context.Context, a *domain.Assessment, expected domain.AssessmentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.assessments[a.ID].Status != expected {
		return domain.ErrAssessmentFinalized
	}
	s.assessments[a.ID] = *a
	return nil
}

func (s assessmentStore) UpdateStatus(_ context.Context, id uuid.UUID, from, to domain.AssessmentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.assessments[id]
	if a.Status != from || !from.CanTransition(to) {
		return domain.ErrInvalidTransition
	}
	a.Status = to
	s.assessments[id] = a
	return nil
}

func (s assessmentStore) FalsePositiveRate(context.Context, string, time.Time) (float64, int, error) {
	return 0, 0, nil
}

type eventStore struct{ *memoryStore }

func (s eventStore) CreateIfAbsent(_ context.Context, e *domain.EmergencyEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.events {
		if existing.AssessmentID == e.AssessmentID {
			*e = existing
			return false, nil
		}
	}
	e.Status = domain.EventInProgress
	e.CreatedAt = fixedNow
	s.events[e.ID] = *e
	s.transitions[e.ID] = []domain.EventTransition{
		{EventID: e.ID, To: domain.EventInitiated},
		{EventID: e.ID, From: domain.EventInitiated, To: domain.EventInProgress},
	}
	return true, nil
}

func (s eventStore) GetByID(_ context.Context, id uuid.UUID) (*domain.EmergencyEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	return &e, nil
}

func (s eventStore) GetByAssessmentID(_ context.Context, assessmentID uuid.UUID) (*domain.EmergencyEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e.AssessmentID == assessmentID {
			return &e, nil
		}
	}
	return nil, domain.ErrEventNotFound
}

func (s eventStore) Transition(_ context.Context, id uuid.UUID, from, to domain.EventStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.events[id]
	if e.Status != from {
		return domain.ErrInvalidTransition
	}
	e.Status = to
	s.events[id] = e
	s.transitions[id] = append(s.transitions[id], domain.EventTransition{EventID: id, From: from, To: to, Reason: reason})
	return nil
}

func (s eventStore) MarkFalseAlarm(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.events[id]
	e.FalseAlarm = true
	s.events[id] = e
	return nil
}

func (s eventStore) SetContactsNotified(_ context.Context, id uuid.UUID, contacts []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.events[id]
	e.ContactsNotified = contacts
	s.events[id] = e
	return nil
}

func (s eventStore) ListTransitions(_ context.Context, id uuid.UUID) ([]domain.EventTransition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.EventTransition(nil), s.transitions[id]...), nil
}

type incidentStore struct{ *memoryStore }

func (s incidentStore) Create(_ context.Context, i *domain.Incident) error {
	time.Sleep(s.incidentCreateDelay)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.incidents {
		if existing.EmergencyEventID == i.EmergencyEventID {
			return domain.ErrIncidentExists
		}
	}
	if _, ok := s.incidents[i.IncidentID]; ok {
		return domain.ErrIncidentIDTaken
	}
	s.incidents[i.IncidentID] = *i
	return nil
}

func (s incidentStore) GetByID(_ context.Context, id string) (*domain.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.incidents[id]
	if !ok {
		return nil, domain.ErrIncidentNotFound
	}
	return &i, nil
}

func (s incidentStore) GetByEventID(_ context.Context, eventID uuid.UUID) (*domain.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, i := range s.incidents {
		if i.EmergencyEventID == eventID {
			return &i, nil
		}
	}
	return nil, domain.ErrIncidentNotFound
}

func (s incidentStore) Close(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.incidents[id]
	if !ok {
		return domain.ErrIncidentNotFound
	}
	i.Status = domain.IncidentClosed
	i.ClosedAt = &at
	s.incidents[id] = i
	return nil
}

type sampleStore struct{ *memoryStore }

func (s sampleStore) Insert(_ context.Context, sample *domain.LocationSample, _ time.Time) (repository.InsertOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trail := s.samples[sample.IncidentID]
	if n := len(trail); n > 0 {
		last := trail[n-1]
		if sample.Timestamp.Equal(last.Timestamp) {
			return repository.SampleDuplicate, nil
		}
		if sample.Timestamp.Before(last.Timestamp) {
			return repository.SampleStale, nil
		}
	}
	s.samples[sample.IncidentID] = append(trail, *sample)
	return repository.SampleInserted, nil
}

func (s sampleStore) live(incidentID string, now time.Time) []domain.LocationSample {
	var out []domain.LocationSample
	for _, smp := range s.samples[incidentID] {
		if smp.TTLAt.After(now) {
			out = append(out, smp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func (s sampleStore) Latest(_ context.Context, incidentID string, now time.Time) (*domain.LocationSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := s.live(incidentID, now)
	if len(live) == 0 {
		return nil, domain.ErrNotFound
	}
	return &live[len(live)-1], nil
}

func (s sampleStore) Trail(_ context.Context, incidentID string, now time.Time, limit int) ([]domain.LocationSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := s.live(incidentID, now)
	if len(live) > limit {
		live = live[len(live)-limit:]
	}
	return live, nil
}

type ledgerStore struct{ *memoryStore }

func (s ledgerStore) Append(_ context.Context, r *domain.DeliveryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *r)
	return nil
}

func (s ledgerStore) ListByEvent(_ context.Context, eventID uuid.UUID) ([]domain.DeliveryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.DeliveryRecord
	for _, r := range s.records {
		if r.EmergencyEventID == eventID {
			out = append(out, r)
		}
	}
	return out, nil
}

type contactStore struct{ *memoryStore }

func (s contactStore) ListBySubject(_ context.Context, subjectID string) ([]domain.Contact, error) {
	var out []domain.Contact
	for _, c := range s.contacts {
		if c.SubjectID == subjectID {
			out = append(out, c)
		}
	}
	return out, nil
}

type pipeline struct {
	svc         *EmergencyService
	store       *memoryStore
	coordinator *tracking.Coordinator
	sms         *simulated.Adapter
}

const scenarioTrackingBase = "https://track.example.com/live"

func newPipeline(t *testing.T, oracle *oraclemock.Oracle, contacts []domain.Contact) *pipeline {
	t.Helper()

	store := newMemoryStore(contacts)
	p := policy.Default()
	logger := testLogger()

	sms := simulated.New(domain.ChannelSMS)
	registry := channel.NewRegistry(0)
	registry.Register(sms)

	renderer, err := notification.NewRenderer("Guardian")
	require.NoError(t, err)

	evaluator := assessment.NewEngine(assessmentStore{store}, oracle, p.Assessment, logger)
	decider := decision.NewEngine(eventStore{store}, assessmentStore{store}, p, true, logger)
	orchestrator := notification.NewOrchestrator(registry, ledgerStore{store}, renderer, p.Notification, scenarioTrackingBase, logger).
		WithSleeper(func(context.Context, time.Duration) error { return nil })
	coordinator := tracking.NewCoordinator(incidentStore{store}, sampleStore{store},
		tracking.Config{TrackingBaseURL: scenarioTrackingBase}, logger).
		WithClock(func() time.Time { return fixedNow })

	svc := NewEmergencyService(Deps{
		Evaluator:   evaluator,
		Decider:     decider,
		Notifier:    orchestrator,
		Tracker:     coordinator,
		Assessments: assessmentStore{store},
		Events:      eventStore{store},
		Incidents:   incidentStore{store},
		Contacts:    contactStore{store},
		Deliveries:  ledgerStore{store},
	}, logger).WithClock(func() time.Time { return fixedNow })

	return &pipeline{svc: svc, store: store, coordinator: coordinator, sms: sms}
}

func consentingContact(name, phone string) domain.Contact {
	granted := fixedNow.Add(-24 * time.Hour)
	return domain.Contact{
		ID:               uuid.New(),
		SubjectID:        "subject-1",
		Name:             name,
		Phone:            phone,
		PreferredChannel: domain.ChannelSMS,
		ConsentGrantedAt: &granted,
	}
}

func highThreatSnapshot() domain.SensorSnapshot {
	return domain.SensorSnapshot{
		Audio:       &domain.AudioFeatures{LevelDB: 72, PeakDB: 80, Transcript: "stop get away from me"},
		Motion:      &domain.MotionFeatures{AccelerationG: 1.1},
		Environment: &domain.EnvironmentFeatures{AmbientNoiseDB: 45},
		Biometrics:  &domain.Biometrics{HeartRate: 110},
		Location:    domain.Location{Latitude: 40.7812, Longitude: -73.9665, PlaceName: "Central Park"},
	}
}

func TestScenario_HighThreatContactsServices(t *testing.T) {
	oracle := oraclemock.New(oraclemock.WithResult(domain.ThreatHigh, 0.85, "caller shouted stop"))
	p := newPipeline(t, oracle, []domain.Contact{
		consentingContact("Alice", "+15550000001"),
		consentingContact("Bob", "+15550000002"),
	})

	out, err := p.svc.Trigger(context.Background(), TriggerRequest{
		SubjectID:   "subject-1",
		SubjectName: "Maria",
		Snapshot:    highThreatSnapshot(),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.AssessmentConfirmed, out.Assessment.Status)
	require.NotNil(t, out.Event)
	require.NotNil(t, out.Incident)
	assert.True(t, out.Created)
	assert.Equal(t, domain.EventServicesContacted, out.Event.Status)
	assert.Equal(t, 2, out.Notifications.SuccessfulNotifications)
	assert.True(t, strings.HasPrefix(out.TrackingURL, scenarioTrackingBase))

	stored, err := eventStore{p.store}.GetByID(context.Background(), out.Event.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EventServicesContacted, stored.Status)
	assert.ElementsMatch(t, []string{"Alice", "Bob"}, stored.ContactsNotified)

	transitions, err := eventStore{p.store}.ListTransitions(context.Background(), out.Event.ID)
	require.NoError(t, err)
	var path []domain.EventStatus
	for _, tr := range transitions {
		path = append(path, tr.To)
	}
	assert.Equal(t, []domain.EventStatus{domain.EventInitiated, domain.EventInProgress, domain.EventServicesContacted}, path)

	sent := p.sms.Sent()
	require.Len(t, sent, 2)
	for _, s := range sent {
		assert.Contains(t, s.Message.Body, out.Incident.IncidentID)
		assert.Contains(t, s.Message.Body, scenarioTrackingBase+"?incident="+out.Incident.IncidentID)
		assert.Contains(t, s.Message.Body, "Maria")
	}

	view, err := p.coordinator.Latest(context.Background(), out.Incident.IncidentID)
	require.NoError(t, err)
	assert.False(t, view.Available)
	assert.Equal(t, 40.7812, view.InitialLocation.Latitude)
}

func TestScenario_FirstDeviceFixBeforeIncidentCreation(t *testing.T) {
	oracle := oraclemock.New(oraclemock.WithResult(domain.ThreatHigh, 0.85, "caller shouted stop"))
	p := newPipeline(t, oracle, []domain.Contact{consentingContact("Alice", "+15550000001")})
	ctx := context.Background()

	out, err := p.svc.Trigger(ctx, TriggerRequest{SubjectID: "subject-1", Snapshot: highThreatSnapshot()})
	require.NoError(t, err)
	require.NotNil(t, out.Incident)

	incidentID := out.Incident.IncidentID
	res, err := p.coordinator.RecordSample(ctx, incidentID, domain.LocationSample{
		Timestamp: fixedNow.Add(-3 * time.Second),
		Latitude:  40.7813,
		Longitude: -73.9664,
	})
	require.NoError(t, err)
	assert.Equal(t, "recorded", res.Status)

	view, err := p.coordinator.Latest(ctx, incidentID)
	require.NoError(t, err)
	assert.True(t, view.Available)
	assert.Equal(t, 40.7813, view.Sample.Latitude)
}

func TestScenario_ConcurrentOpenIncidentKeepsOnePerEvent(t *testing.T) {
	oracle := oraclemock.New(oraclemock.WithResult(domain.ThreatHigh, 0.85, "caller shouted stop"))
	p := newPipeline(t, oracle, []domain.Contact{consentingContact("Alice", "+15550000001")})
	ctx := context.Background()

	out, err := p.svc.Trigger(ctx, TriggerRequest{SubjectID: "subject-1", Snapshot: highThreatSnapshot()})
	require.NoError(t, err)
	require.NotNil(t, out.Event)

	// start from an event without tracking, then race the openers
	p.store.mu.Lock()
	p.store.incidents = make(map[string]domain.Incident)
	p.store.incidentCreateDelay = 20 * time.Millisecond
	p.store.mu.Unlock()

	const callers = 4
	ids := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			incident, _, err := p.svc.OpenIncident(ctx, out.Assessment.ID, "Maria", domain.Location{})
			errs[i] = err
			if incident != nil {
				ids[i] = incident.IncidentID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	p.store.mu.Lock()
	count := 0
	for _, incident := range p.store.incidents {
		if incident.EmergencyEventID == out.Event.ID {
			count++
		}
	}
	p.store.mu.Unlock()
	assert.Equal(t, 1, count)

	// resolving closes the only incident
	_, err = p.svc.Resolve(ctx, out.Event.ID, "subject is safe")
	require.NoError(t, err)
	_, err = p.coordinator.RecordSample(ctx, ids[0], domain.LocationSample{
		Timestamp: fixedNow.Add(time.Minute),
		Latitude:  40.79,
		Longitude: -73.96,
	})
	assert.ErrorIs(t, err, domain.ErrTrackingClosed)
}

func TestScenario_DuplicateDecisionCreatesOneEvent(t *testing.T) {
	oracle := oraclemock.New(oraclemock.WithResult(domain.ThreatCritical, 0.95, "explicit call for help"))
	p := newPipeline(t, oracle, []domain.Contact{consentingContact("Alice", "+15550000001")})

	out, err := p.svc.Trigger(context.Background(), TriggerRequest{SubjectID: "subject-1", Snapshot: highThreatSnapshot()})
	require.NoError(t, err)
	require.NotNil(t, out.Event)

	again, err := p.svc.Decide(context.Background(), out.Assessment.ID, DecideRequest{})
	require.NoError(t, err)

	assert.False(t, again.Created)
	assert.Equal(t, out.Event.ID, again.Event.ID)
	assert.Equal(t, out.Incident.IncidentID, again.Incident.IncidentID)
	assert.Len(t, p.store.events, 1)
	assert.Len(t, p.sms.Sent(), 1)
}

func TestScenario_ResolveClosesTracking(t *testing.T) {
	oracle := oraclemock.New(oraclemock.WithResult(domain.ThreatCritical, 0.95, "explicit call for help"))
	p := newPipeline(t, oracle, []domain.Contact{consentingContact("Alice", "+15550000001")})
	ctx := context.Background()

	out, err := p.svc.Trigger(ctx, TriggerRequest{SubjectID: "subject-1", Snapshot: highThreatSnapshot()})
	require.NoError(t, err)

	incidentID := out.Incident.IncidentID
	for i := 1; i <= 3; i++ {
		_, err := p.coordinator.RecordSample(ctx, incidentID, domain.LocationSample{
			Timestamp: fixedNow.Add(time.Duration(i*10) * time.Second),
			Latitude:  40.78 + float64(i)/1000,
			Longitude: -73.96,
		})
		require.NoError(t, err, fmt.Sprintf("sample %d", i))
	}

	trail, err := p.coordinator.Trail(ctx, incidentID, 2)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.True(t, trail[0].Timestamp.Before(trail[1].Timestamp))
	assert.True(t, trail[1].Timestamp.Equal(fixedNow.Add(30*time.Second)))

	resolved, err := p.svc.Resolve(ctx, out.Event.ID, "subject is safe")
	require.NoError(t, err)
	assert.Equal(t, domain.EventResolved, resolved.Status)

	_, err = p.coordinator.RecordSample(ctx, incidentID, domain.LocationSample{
		Timestamp: fixedNow.Add(time.Minute),
		Latitude:  40.79,
		Longitude: -73.96,
	})
	assert.ErrorIs(t, err, domain.ErrTrackingClosed)

	// notifications already sent stay in the ledger
	records, err := p.svc.Deliveries(ctx, out.Event.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, records)
}

func TestScenario_FalseAlarmFlagsAssessment(t *testing.T) {
	oracle := oraclemock.New(oraclemock.WithResult(domain.ThreatCritical, 0.95, "explicit call for help"))
	p := newPipeline(t, oracle, []domain.Contact{consentingContact("Alice", "+15550000001")})
	ctx := context.Background()

	out, err := p.svc.Trigger(ctx, TriggerRequest{SubjectID: "subject-1", Snapshot: highThreatSnapshot()})
	require.NoError(t, err)

	event, err := p.svc.MarkFalseAlarm(ctx, out.Event.ID, "pocket dial")
	require.NoError(t, err)

	assert.True(t, event.FalseAlarm)
	assert.Equal(t, domain.EventCancelled, event.Status)

	a, err := assessmentStore{p.store}.GetByID(ctx, out.Assessment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AssessmentFalsePositive, a.Status)
}
