//go:build integration

package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/saturnino-fabrica-de-software/guardian/internal/database"
	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
)

func setupIntegrationTest(t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "guardian_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connStr := fmt.Sprintf("postgres://test:test@%s:%s/guardian_test?sslmode=disable", host, port.Port())

	sqlDB, err := database.NewPool(database.DefaultPoolConfig(connStr))
	require.NoError(t, err)
	migrator, err := database.NewMigrator(sqlDB, "guardian_test")
	require.NoError(t, err)
	require.NoError(t, migrator.Up())
	_ = migrator.Close()
	_ = sqlDB.Close()

	db, err := database.NewPgxPool(ctx, database.DefaultPoolConfig(connStr))
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return db, cleanup
}

func confirmedAssessment(t *testing.T, ctx context.Context, repo *AssessmentRepository) *domain.Assessment {
	t.Helper()

	a := &domain.Assessment{SubjectID: "subject-1", Status: domain.AssessmentPending}
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.UpdateStatus(ctx, a.ID, domain.AssessmentPending, domain.AssessmentProcessing))

	a.ThreatLevel = domain.ThreatHigh
	a.Confidence = 0.85
	a.OriginalConfidence = 0.8
	a.Status = domain.AssessmentConfirmed
	a.Source = domain.SourceOracle
	require.NoError(t, repo.SaveResult(ctx, a, domain.AssessmentProcessing))
	return a
}

func TestEventRepository_CreateIfAbsent_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupIntegrationTest(t)
	defer cleanup()

	ctx := context.Background()
	assessments := NewAssessmentRepository(db)
	events := NewEventRepository(db)
	a := confirmedAssessment(t, ctx, assessments)

	const writers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		ids     = map[uuid.UUID]bool{}
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			event := &domain.EmergencyEvent{
				AssessmentID: a.ID,
				SubjectID:    a.SubjectID,
				Priority:     domain.PriorityHigh,
				ThreatLevel:  domain.ThreatHigh,
			}
			ok, err := events.CreateIfAbsent(ctx, event)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if ok {
				created++
			}
			ids[event.ID] = true
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created, "exactly one writer creates the event")
	assert.Len(t, ids, 1, "every writer sees the same event")

	var eventID uuid.UUID
	for id := range ids {
		eventID = id
	}

	transitions, err := events.ListTransitions(ctx, eventID)
	require.NoError(t, err)
	require.Len(t, transitions, 2)
	assert.Equal(t, domain.EventInitiated, transitions[0].To)
	assert.Equal(t, domain.EventInProgress, transitions[1].To)

	require.NoError(t, events.Transition(ctx, eventID, domain.EventInProgress, domain.EventServicesContacted, "delivered"))
	assert.ErrorIs(t, events.Transition(ctx, eventID, domain.EventInProgress, domain.EventResolved, "stale"), domain.ErrInvalidTransition)

	require.NoError(t, events.MarkFalseAlarm(ctx, eventID))
	require.NoError(t, assessments.UpdateStatus(ctx, a.ID, domain.AssessmentConfirmed, domain.AssessmentFalsePositive))

	rate, samples, err := assessments.FalsePositiveRate(ctx, "subject-1", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, samples)
	assert.InDelta(t, 1.0, rate, 1e-9)
}

func TestLocationRepository_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupIntegrationTest(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewLocationRepository(db)
	now := time.Now().UTC().Truncate(time.Millisecond)
	t0 := now.Add(-time.Minute)

	write := func(offset time.Duration) InsertOutcome {
		out, err := repo.Insert(ctx, &domain.LocationSample{
			IncidentID: "EMG-1A2B3C4D",
			Timestamp:  t0.Add(offset),
			Latitude:   1,
			Longitude:  2,
			TTLAt:      now.Add(domain.SampleRetention),
		}, now)
		require.NoError(t, err)
		return out
	}

	assert.Equal(t, SampleInserted, write(0))
	assert.Equal(t, SampleInserted, write(10*time.Second))
	assert.Equal(t, SampleInserted, write(20*time.Second))
	assert.Equal(t, SampleDuplicate, write(20*time.Second))
	assert.Equal(t, SampleStale, write(5*time.Second))

	trail, err := repo.Trail(ctx, "EMG-1A2B3C4D", now, 2)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.True(t, trail[0].Timestamp.Equal(t0.Add(10*time.Second)))
	assert.True(t, trail[1].Timestamp.Equal(t0.Add(20*time.Second)))

	later := now.Add(domain.SampleRetention + time.Second)
	_, err = repo.Latest(ctx, "EMG-1A2B3C4D", later)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	deleted, err := repo.DeleteExpired(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
}

func TestIncidentRepository_OnePerEvent_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupIntegrationTest(t)
	defer cleanup()

	ctx := context.Background()
	assessments := NewAssessmentRepository(db)
	events := NewEventRepository(db)
	incidents := NewIncidentRepository(db)
	a := confirmedAssessment(t, ctx, assessments)

	event := &domain.EmergencyEvent{
		AssessmentID: a.ID,
		SubjectID:    a.SubjectID,
		Priority:     domain.PriorityHigh,
		ThreatLevel:  domain.ThreatHigh,
	}
	_, err := events.CreateIfAbsent(ctx, event)
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Millisecond)
	const writers = 6
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		exists  int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := incidents.Create(ctx, &domain.Incident{
				IncidentID:       fmt.Sprintf("EMG-0000000%d", i),
				EmergencyEventID: event.ID,
				Status:           domain.IncidentActive,
				CreatedAt:        now,
				ExpiresAt:        now.Add(domain.SampleRetention),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case assert.ErrorIs(t, err, domain.ErrIncidentExists):
				exists++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, writers-1, exists)

	stored, err := incidents.GetByEventID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, event.ID, stored.EmergencyEventID)

	other := &domain.EmergencyEvent{
		AssessmentID: confirmedAssessment(t, ctx, assessments).ID,
		SubjectID:    a.SubjectID,
		Priority:     domain.PriorityHigh,
		ThreatLevel:  domain.ThreatHigh,
	}
	_, err = events.CreateIfAbsent(ctx, other)
	require.NoError(t, err)

	err = incidents.Create(ctx, &domain.Incident{
		IncidentID:       stored.IncidentID,
		EmergencyEventID: other.ID,
		Status:           domain.IncidentActive,
		CreatedAt:        now,
		ExpiresAt:        now.Add(domain.SampleRetention),
	})
	assert.ErrorIs(t, err, domain.ErrIncidentIDTaken)
}
