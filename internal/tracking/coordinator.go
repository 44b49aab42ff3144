// Package tracking runs the live location session for an emergency. The
// reporting device writes samples, the responder's viewer reads them, and
// nothing is shared between the two besides the rows themselves.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
	"github.com/saturnino-fabrica-de-software/guardian/internal/metrics"
	"github.com/saturnino-fabrica-de-software/guardian/internal/repository"
)

const (
	DefaultTrailLimit = 100
	MaxTrailLimit     = 500

	incidentIDAttempts = 3
)

// View reasons
const (
	ReasonNoLocation = "no_location_yet"
	ReasonExpired    = "expired"
)

type IncidentStore interface {
	Create(ctx context.Context, incident *domain.Incident) error
	GetByID(ctx context.Context, incidentID string) (*domain.Incident, error)
	GetByEventID(ctx context.Context, eventID uuid.UUID) (*domain.Incident, error)
	Close(ctx context.Context, incidentID string, at time.Time) error
}

type SampleStore interface {
	Insert(ctx context.Context, sample *domain.LocationSample, now time.Time) (repository.InsertOutcome, error)
	Latest(ctx context.Context, incidentID string, now time.Time) (*domain.LocationSample, error)
	Trail(ctx context.Context, incidentID string, now time.Time, limit int) ([]domain.LocationSample, error)
}

type Config struct {
	TrackingBaseURL string
	StaticMapURL    string
}

type CreateIncidentRequest struct {
	EmergencyEventID uuid.UUID
	SubjectName      string
	InitialLocation  domain.Location
	DetectionType    string
}

// RecordResult reports what happened to a sample
type RecordResult struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// View is what the responder's viewer shows. Available is false until the
// first live sample arrives and again once samples expire.
type View struct {
	IncidentID      string                 `json:"incident_id"`
	Status          domain.IncidentStatus  `json:"status"`
	Available       bool                   `json:"available"`
	Sample          *domain.LocationSample `json:"sample,omitempty"`
	StaleSeconds    int64                  `json:"stale_seconds"`
	Reason          string                 `json:"reason,omitempty"`
	SubjectName     string                 `json:"subject_name"`
	DetectionType   string                 `json:"detection_type"`
	InitialLocation domain.Location        `json:"initial_location"`
	StaticMapURL    string                 `json:"static_map_url,omitempty"`
}

// Publisher pushes trail changes to live viewers
type Publisher interface {
	LocationUpdated(incidentID string, sample domain.LocationSample)
	TrackingClosed(incidentID string)
}

type noopPublisher struct{}

func (noopPublisher) LocationUpdated(string, domain.LocationSample) {}
func (noopPublisher) TrackingClosed(string)                         {}

type Coordinator struct {
	incidents IncidentStore
	samples   SampleStore
	cfg       Config
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
	newID     func() (string, error)
}

func NewCoordinator(incidents IncidentStore, samples SampleStore, cfg Config, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		incidents: incidents,
		samples:   samples,
		cfg:       cfg,
		publisher: noopPublisher{},
		logger:    logger,
		now:       time.Now,
		newID:     domain.NewIncidentID,
	}
}

// WithClock replaces the clock used for TTL checks.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

// WithPublisher streams recorded samples and closures to p.
func (c *Coordinator) WithPublisher(p Publisher) *Coordinator {
	if p != nil {
		c.publisher = p
	}
	return c
}

// TrackingURL is the viewer link for an incident.
func (c *Coordinator) TrackingURL(incidentID string) string {
	return domain.TrackingURL(c.cfg.TrackingBaseURL, incidentID)
}

// CreateIncident opens the tracking session for an event, or returns the one
// it already has. The initial location stays on the incident and is not a
// trail sample: the trail only orders device timestamps.
func (c *Coordinator) CreateIncident(ctx context.Context, req CreateIncidentRequest) (*domain.Incident, string, error) {
	if req.EmergencyEventID == uuid.Nil {
		return nil, "", domain.ErrValidationFailed.WithError(errors.New("emergency_event_id is required"))
	}
	if err := req.InitialLocation.Validate(); err != nil {
		return nil, "", err
	}

	now := c.now()
	incident := &domain.Incident{
		EmergencyEventID: req.EmergencyEventID,
		SubjectName:      strings.TrimSpace(req.SubjectName),
		DetectionType:    req.DetectionType,
		InitialLocation:  req.InitialLocation,
		Status:           domain.IncidentActive,
		CreatedAt:        now,
		ExpiresAt:        now.Add(domain.IncidentRetention),
	}

	var err error
	for attempt := 0; attempt < incidentIDAttempts; attempt++ {
		incident.IncidentID, err = c.newID()
		if err != nil {
			return nil, "", err
		}

		err = c.incidents.Create(ctx, incident)
		if !errors.Is(err, domain.ErrIncidentIDTaken) {
			break
		}
		c.logger.Warn("incident id collision, retrying", slog.String("incident_id", incident.IncidentID))
	}
	if errors.Is(err, domain.ErrIncidentExists) {
		existing, getErr := c.incidents.GetByEventID(ctx, req.EmergencyEventID)
		if getErr != nil {
			return nil, "", fmt.Errorf("load incident for event %s: %w", req.EmergencyEventID, getErr)
		}
		return existing, c.TrackingURL(existing.IncidentID), nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("create incident: %w", err)
	}

	c.logger.Info("incident created",
		slog.String("incident_id", incident.IncidentID),
		slog.String("event_id", req.EmergencyEventID.String()),
	)

	return incident, c.TrackingURL(incident.IncidentID), nil
}

// RecordSample stores a device fix. Retransmitting the latest fix is
// accepted as a duplicate; anything older than it is rejected as stale.
func (c *Coordinator) RecordSample(ctx context.Context, incidentID string, sample domain.LocationSample) (*RecordResult, error) {
	if !domain.ValidIncidentID(incidentID) {
		return nil, domain.ErrIncidentNotFound
	}

	sample.IncidentID = incidentID
	if err := sample.Validate(); err != nil {
		return nil, err
	}

	now := c.now()
	incident, err := c.incidents.GetByID(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if !incident.AcceptsSamples(now) {
		metrics.LocationSamplesTotal.WithLabelValues("rejected_closed").Inc()
		return nil, domain.ErrTrackingClosed
	}

	sample.TTLAt = now.Add(domain.SampleRetention)

	outcome, err := c.samples.Insert(ctx, &sample, now)
	if err != nil {
		return nil, fmt.Errorf("incident %s: %w", incidentID, err)
	}

	switch outcome {
	case repository.SampleInserted:
		metrics.LocationSamplesTotal.WithLabelValues("inserted").Inc()
		c.publisher.LocationUpdated(incidentID, sample)
		return &RecordResult{Status: "recorded", Timestamp: sample.Timestamp}, nil
	case repository.SampleDuplicate:
		metrics.LocationSamplesTotal.WithLabelValues("duplicate").Inc()
		return &RecordResult{Status: "duplicate", Timestamp: sample.Timestamp}, nil
	default:
		metrics.LocationSamplesTotal.WithLabelValues("stale").Inc()
		return nil, domain.ErrStaleSample
	}
}

// Latest returns the newest live sample. Missing or expired data is not an
// error; the view falls back to the incident's initial location.
func (c *Coordinator) Latest(ctx context.Context, incidentID string) (*View, error) {
	if !domain.ValidIncidentID(incidentID) {
		return nil, domain.ErrIncidentNotFound
	}

	now := c.now()
	incident, err := c.incidents.GetByID(ctx, incidentID)
	if err != nil {
		return nil, err
	}

	view := &View{
		IncidentID:      incident.IncidentID,
		Status:          incident.Status,
		SubjectName:     incident.SubjectName,
		DetectionType:   incident.DetectionType,
		InitialLocation: incident.InitialLocation,
		StaticMapURL:    c.staticMap(incident.InitialLocation),
	}

	if incident.IsExpired(now) {
		view.Reason = ReasonExpired
		return view, nil
	}

	sample, err := c.samples.Latest(ctx, incidentID, now)
	if errors.Is(err, domain.ErrNotFound) {
		view.Reason = ReasonNoLocation
		return view, nil
	}
	if err != nil {
		return nil, fmt.Errorf("incident %s: %w", incidentID, err)
	}

	view.Available = true
	view.Sample = sample
	view.StaleSeconds = int64(now.Sub(sample.Timestamp) / time.Second)
	if view.StaleSeconds < 0 {
		view.StaleSeconds = 0
	}
	view.StaticMapURL = c.staticMap(domain.Location{Latitude: sample.Latitude, Longitude: sample.Longitude})

	return view, nil
}

// Trail returns up to limit live samples, oldest first. limit is clamped to
// [1, MaxTrailLimit]; zero means DefaultTrailLimit.
func (c *Coordinator) Trail(ctx context.Context, incidentID string, limit int) ([]domain.LocationSample, error) {
	if !domain.ValidIncidentID(incidentID) {
		return nil, domain.ErrIncidentNotFound
	}

	now := c.now()
	incident, err := c.incidents.GetByID(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if incident.IsExpired(now) {
		return []domain.LocationSample{}, nil
	}

	samples, err := c.samples.Trail(ctx, incidentID, now, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("incident %s: %w", incidentID, err)
	}
	return samples, nil
}

// Watchable reports whether a live viewer may follow the incident: it must
// exist and still accept samples.
func (c *Coordinator) Watchable(ctx context.Context, incidentID string) error {
	if !domain.ValidIncidentID(incidentID) {
		return domain.ErrIncidentNotFound
	}

	incident, err := c.incidents.GetByID(ctx, incidentID)
	if err != nil {
		return err
	}
	if !incident.AcceptsSamples(c.now()) {
		return domain.ErrTrackingClosed
	}
	return nil
}

// Close stops the session; the device's next write gets ErrTrackingClosed.
func (c *Coordinator) Close(ctx context.Context, incidentID string) error {
	if err := c.incidents.Close(ctx, incidentID, c.now()); err != nil {
		return err
	}
	c.logger.Info("incident closed", slog.String("incident_id", incidentID))
	c.publisher.TrackingClosed(incidentID)
	return nil
}

func ClampLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultTrailLimit
	case limit < 1:
		return 1
	case limit > MaxTrailLimit:
		return MaxTrailLimit
	default:
		return limit
	}
}

func (c *Coordinator) staticMap(l domain.Location) string {
	if c.cfg.StaticMapURL == "" || l.IsZero() {
		return ""
	}
	center := fmt.Sprintf("%.6f,%.6f", l.Latitude, l.Longitude)
	q := url.Values{}
	q.Set("center", center)
	q.Set("zoom", "15")
	q.Set("size", "600x400")
	q.Set("markers", center)
	return c.cfg.StaticMapURL + "?" + q.Encode()
}
