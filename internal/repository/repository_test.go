package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

// AssessmentRepository Tests

func TestAssessmentRepository_Create(t *testing.T) {
	mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO assessments`).
		WithArgs(pgxmock.AnyArg(), "subject-1", "snap-1", "emergency_words", domain.AssessmentPending,
			-23.5, -46.6, 10.0, "Paulista Ave").
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	a := &domain.Assessment{
		SubjectID:         "subject-1",
		SensorSnapshotRef: "snap-1",
		DetectionType:     "emergency_words",
		Status:            domain.AssessmentPending,
		Location:          domain.Location{Latitude: -23.5, Longitude: -46.6, AccuracyMeters: 10, PlaceName: "Paulista Ave"},
	}

	err := NewAssessmentRepository(mock).Create(context.Background(), a)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.Equal(t, now, a.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssessmentRepository_GetByID(t *testing.T) {
	id := uuid.New()
	now := time.Now()

	columns := []string{
		"id", "subject_id", "sensor_snapshot_ref", "detection_type", "threat_level", "confidence",
		"original_confidence", "confidence_adjustment", "rationale", "keywords", "status", "source",
		"oracle_error", "latitude", "longitude", "accuracy_meters", "place_name", "created_at", "updated_at",
	}

	tests := []struct {
		name      string
		mockSetup func(mock pgxmock.PgxPoolIface)
		wantErr   error
	}{
		{
			name: "successful retrieval",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(columns).AddRow(
					id, "subject-1", "snap-1", "emergency_words", domain.ThreatHigh, 0.85,
					0.8, 0.05, "screaming for help", []string{"HELP"}, domain.AssessmentConfirmed, domain.SourceOracle,
					"", 1.0, 2.0, 5.0, "", now, now,
				)
				mock.ExpectQuery(`SELECT (.+) FROM assessments WHERE id = \$1`).
					WithArgs(id).
					WillReturnRows(rows)
			},
		},
		{
			name: "assessment not found",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT (.+) FROM assessments WHERE id = \$1`).
					WithArgs(id).
					WillReturnError(pgx.ErrNoRows)
			},
			wantErr: domain.ErrAssessmentNotFound,
		},
		{
			name: "database error",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT (.+) FROM assessments WHERE id = \$1`).
					WithArgs(id).
					WillReturnError(errors.New("connection lost"))
			},
			wantErr: errors.New("get assessment: connection lost"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			tt.mockSetup(mock)

			got, err := NewAssessmentRepository(mock).GetByID(context.Background(), id)

			if tt.wantErr != nil {
				require.Error(t, err)
				if errors.Is(tt.wantErr, domain.ErrAssessmentNotFound) {
					assert.ErrorIs(t, err, domain.ErrAssessmentNotFound)
				} else {
					assert.Contains(t, err.Error(), "get assessment")
				}
			} else {
				require.NoError(t, err)
				assert.Equal(t, id, got.ID)
				assert.Equal(t, domain.ThreatHigh, got.ThreatLevel)
				assert.Equal(t, 0.85, got.Confidence)
				assert.Equal(t, 0.8, got.OriginalConfidence)
				assert.Equal(t, []string{"HELP"}, got.Keywords)
				assert.Equal(t, domain.AssessmentConfirmed, got.Status)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAssessmentRepository_SaveResult_LostRace(t *testing.T) {
	mock := newMock(t)
	a := &domain.Assessment{ID: uuid.New(), Status: domain.AssessmentConfirmed}

	mock.ExpectQuery(`UPDATE assessments SET threat_level`).
		WithArgs(a.ID, domain.AssessmentProcessing, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	err := NewAssessmentRepository(mock).SaveResult(context.Background(), a, domain.AssessmentProcessing)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssessmentRepository_UpdateStatus(t *testing.T) {
	id := uuid.New()

	t.Run("applies allowed transition", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`UPDATE assessments SET status = \$3`).
			WithArgs(id, domain.AssessmentConfirmed, domain.AssessmentFalsePositive).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := NewAssessmentRepository(mock).UpdateStatus(context.Background(), id, domain.AssessmentConfirmed, domain.AssessmentFalsePositive)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects transition outside the table without touching the database", func(t *testing.T) {
		mock := newMock(t)

		err := NewAssessmentRepository(mock).UpdateStatus(context.Background(), id, domain.AssessmentFailed, domain.AssessmentConfirmed)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("status changed concurrently", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`UPDATE assessments SET status = \$3`).
			WithArgs(id, domain.AssessmentCompleted, domain.AssessmentFalsePositive).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := NewAssessmentRepository(mock).UpdateStatus(context.Background(), id, domain.AssessmentCompleted, domain.AssessmentFalsePositive)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})
}

func TestAssessmentRepository_FalsePositiveRate(t *testing.T) {
	since := time.Now().Add(-720 * time.Hour)

	tests := []struct {
		name        string
		fp, total   int
		wantRate    float64
		wantSamples int
	}{
		{"no history", 0, 0, 0, 0},
		{"one in four", 1, 4, 0.25, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			mock.ExpectQuery(`SELECT COUNT\(\*\) FILTER`).
				WithArgs("subject-1", since).
				WillReturnRows(pgxmock.NewRows([]string{"fp", "total"}).AddRow(tt.fp, tt.total))

			rate, samples, err := NewAssessmentRepository(mock).FalsePositiveRate(context.Background(), "subject-1", since)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantRate, rate, 1e-9)
			assert.Equal(t, tt.wantSamples, samples)
		})
	}
}

// EventRepository Tests

var eventColumnNames = []string{
	"id", "assessment_id", "subject_id", "status", "priority", "threat_level", "detection_type",
	"latitude", "longitude", "accuracy_meters", "place_name", "contacts_notified", "decision_rationale",
	"response_plan", "false_alarm", "created_at", "updated_at", "resolved_at",
}

func eventRow(id, assessmentID uuid.UUID, status domain.EventStatus, now time.Time) *pgxmock.Rows {
	plan, _ := json.Marshal(domain.ResponsePlan{Channels: []domain.Channel{domain.ChannelSMS}})
	return pgxmock.NewRows(eventColumnNames).AddRow(
		id, assessmentID, "subject-1", status, domain.PriorityHigh, domain.ThreatHigh, "emergency_words",
		1.0, 2.0, 5.0, "", []string{"Mom"}, "confirmed HIGH", plan, false, now, now, nil,
	)
}

func TestEventRepository_CreateIfAbsent_Created(t *testing.T) {
	mock := newMock(t)
	now := time.Now()

	event := &domain.EmergencyEvent{
		AssessmentID:      uuid.New(),
		SubjectID:         "subject-1",
		Priority:          domain.PriorityHigh,
		ThreatLevel:       domain.ThreatHigh,
		DecisionRationale: "confirmed HIGH",
		Plan:              domain.ResponsePlan{Channels: []domain.Channel{domain.ChannelSMS}},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO emergency_events (.+) ON CONFLICT \(assessment_id\) DO NOTHING`).
		WithArgs(pgxmock.AnyArg(), event.AssessmentID, "subject-1", domain.EventInProgress, domain.PriorityHigh,
			domain.ThreatHigh, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec(`INSERT INTO emergency_event_transitions`).
		WithArgs(pgxmock.AnyArg(), domain.EventInitiated, "confirmed HIGH", domain.EventInProgress, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	created, err := NewEventRepository(mock).CreateIfAbsent(context.Background(), event)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.EventInProgress, event.Status)
	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepository_CreateIfAbsent_Duplicate(t *testing.T) {
	mock := newMock(t)
	now := time.Now()
	existingID := uuid.New()
	assessmentID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO emergency_events`).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()
	mock.ExpectQuery(`SELECT (.+) FROM emergency_events WHERE assessment_id = \$1`).
		WithArgs(assessmentID).
		WillReturnRows(eventRow(existingID, assessmentID, domain.EventServicesContacted, now))

	event := &domain.EmergencyEvent{AssessmentID: assessmentID, SubjectID: "subject-1"}
	created, err := NewEventRepository(mock).CreateIfAbsent(context.Background(), event)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existingID, event.ID)
	assert.Equal(t, domain.EventServicesContacted, event.Status)
	assert.Equal(t, []domain.Channel{domain.ChannelSMS}, event.Plan.Channels)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepository_Transition(t *testing.T) {
	id := uuid.New()

	t.Run("compare and set succeeds", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE emergency_events SET status = \$3`).
			WithArgs(id, domain.EventInProgress, domain.EventResolved, true).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(`INSERT INTO emergency_event_transitions`).
			WithArgs(id, domain.EventInProgress, domain.EventResolved, "operator").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		err := NewEventRepository(mock).Transition(context.Background(), id, domain.EventInProgress, domain.EventResolved, "operator")
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lost race", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE emergency_events SET status = \$3`).
			WithArgs(id, domain.EventInProgress, domain.EventServicesContacted, false).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectRollback()

		err := NewEventRepository(mock).Transition(context.Background(), id, domain.EventInProgress, domain.EventServicesContacted, "delivered")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("terminal status cannot move", func(t *testing.T) {
		mock := newMock(t)

		err := NewEventRepository(mock).Transition(context.Background(), id, domain.EventResolved, domain.EventInProgress, "reopen")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestEventRepository_MarkFalseAlarm(t *testing.T) {
	id := uuid.New()
	mock := newMock(t)

	mock.ExpectExec(`UPDATE emergency_events SET false_alarm = true`).
		WithArgs(id, domain.EventInProgress, domain.EventServicesContacted).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := NewEventRepository(mock).MarkFalseAlarm(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepository_ListOpenBefore(t *testing.T) {
	mock := newMock(t)
	now := time.Now()
	cutoff := now.Add(-24 * time.Hour)
	id := uuid.New()

	mock.ExpectQuery(`SELECT (.+) FROM emergency_events WHERE status IN`).
		WithArgs(cutoff, 50).
		WillReturnRows(eventRow(id, uuid.New(), domain.EventInProgress, now))

	events, err := NewEventRepository(mock).ListOpenBefore(context.Background(), cutoff, 50)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].ID)
	assert.Nil(t, events[0].ResolvedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// DeliveryRepository Tests

func TestDeliveryRepository_Append(t *testing.T) {
	mock := newMock(t)
	now := time.Now()

	rec := &domain.DeliveryRecord{
		EmergencyEventID: uuid.New(),
		ContactID:        uuid.New(),
		Channel:          domain.ChannelSMS,
		Status:           domain.DeliveryFailed,
		Attempt:          2,
		ErrorReason:      "throttled",
	}

	mock.ExpectQuery(`INSERT INTO delivery_records`).
		WithArgs(pgxmock.AnyArg(), rec.EmergencyEventID, rec.ContactID, domain.ChannelSMS, domain.DeliveryFailed, "", 2, "throttled").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))

	require.NoError(t, NewDeliveryRepository(mock).Append(context.Background(), rec))
	assert.Equal(t, now, rec.Timestamp)
	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliveryRepository_GetByProviderMessageID_NotFound(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`SELECT (.+) FROM delivery_records WHERE provider_message_id = \$1`).
		WithArgs("msg-404").
		WillReturnError(pgx.ErrNoRows)

	_, err := NewDeliveryRepository(mock).GetByProviderMessageID(context.Background(), "msg-404")
	assert.ErrorIs(t, err, domain.ErrDeliveryNotFound)
}

func TestDeliveryRepository_ListByEvent(t *testing.T) {
	mock := newMock(t)
	now := time.Now()
	eventID := uuid.New()
	contactID := uuid.New()

	rows := pgxmock.NewRows([]string{
		"id", "emergency_event_id", "contact_id", "channel", "status", "provider_message_id", "attempt", "error_reason", "created_at",
	}).
		AddRow(uuid.New(), eventID, contactID, domain.ChannelSMS, domain.DeliveryFailed, "", 1, "throttled", now).
		AddRow(uuid.New(), eventID, contactID, domain.ChannelSMS, domain.DeliverySent, "msg-1", 2, "", now)

	mock.ExpectQuery(`SELECT (.+) FROM delivery_records WHERE emergency_event_id = \$1`).
		WithArgs(eventID).
		WillReturnRows(rows)

	records, err := NewDeliveryRepository(mock).ListByEvent(context.Background(), eventID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, domain.DeliverySent, records[1].Status)
	assert.Equal(t, "msg-1", records[1].ProviderMessageID)
}

// ContactRepository Tests

func TestContactRepository_ListBySubject(t *testing.T) {
	mock := newMock(t)
	now := time.Now()
	granted := now.Add(-time.Hour)

	rows := pgxmock.NewRows([]string{
		"id", "subject_id", "name", "relationship", "phone", "email", "preferred_channel", "fallback_channel",
		"priority", "is_services", "consent_granted_at", "consent_expires_at", "created_at",
	}).AddRow(
		uuid.New(), "subject-1", "Mom", "mother", "+5511999990000", "mom@example.com", domain.ChannelSMS, domain.ChannelEmail,
		1, false, &granted, nil, now,
	)

	mock.ExpectQuery(`SELECT (.+) FROM contacts WHERE subject_id = \$1`).
		WithArgs("subject-1").
		WillReturnRows(rows)

	contacts, err := NewContactRepository(mock).ListBySubject(context.Background(), "subject-1")
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "Mom", contacts[0].Name)
	assert.True(t, contacts[0].HasConsent(now))
	assert.Nil(t, contacts[0].ConsentExpiresAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// IncidentRepository Tests

func TestIncidentRepository_Create(t *testing.T) {
	now := time.Now()
	incident := &domain.Incident{
		IncidentID:       "EMG-1A2B3C4D",
		EmergencyEventID: uuid.New(),
		SubjectName:      "Ana",
		Status:           domain.IncidentActive,
		CreatedAt:        now,
		ExpiresAt:        now.Add(domain.IncidentRetention),
	}

	t.Run("created", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`INSERT INTO incidents`).
			WithArgs("EMG-1A2B3C4D", incident.EmergencyEventID, "Ana", "", 0.0, 0.0, 0.0, "",
				domain.IncidentActive, now, incident.ExpiresAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, NewIncidentRepository(mock).Create(context.Background(), incident))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("id collision", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`INSERT INTO incidents`).
			WillReturnError(errors.New("ERROR: duplicate key value violates unique constraint \"incidents_pkey\" (SQLSTATE 23505)"))

		err := NewIncidentRepository(mock).Create(context.Background(), incident)
		assert.ErrorIs(t, err, domain.ErrIncidentIDTaken)
	})

	t.Run("event already has an incident", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`INSERT INTO incidents .* ON CONFLICT \(emergency_event_id\) DO NOTHING`).
			WillReturnResult(pgxmock.NewResult("INSERT", 0))

		err := NewIncidentRepository(mock).Create(context.Background(), incident)
		assert.ErrorIs(t, err, domain.ErrIncidentExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestIncidentRepository_Close(t *testing.T) {
	now := time.Now()

	t.Run("closes", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`UPDATE incidents SET status = \$2`).
			WithArgs("EMG-1A2B3C4D", domain.IncidentClosed, now).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, NewIncidentRepository(mock).Close(context.Background(), "EMG-1A2B3C4D", now))
	})

	t.Run("unknown incident", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`UPDATE incidents SET status = \$2`).
			WithArgs("EMG-00000000", domain.IncidentClosed, now).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := NewIncidentRepository(mock).Close(context.Background(), "EMG-00000000", now)
		assert.ErrorIs(t, err, domain.ErrIncidentNotFound)
	})
}

// LocationRepository Tests

func TestLocationRepository_Insert(t *testing.T) {
	now := time.Now()
	sample := &domain.LocationSample{
		IncidentID: "EMG-1A2B3C4D",
		Timestamp:  now,
		Latitude:   -23.5,
		Longitude:  -46.6,
		TTLAt:      now.Add(domain.SampleRetention),
	}

	tests := []struct {
		name      string
		mockSetup func(mock pgxmock.PgxPoolIface)
		want      InsertOutcome
	}{
		{
			name: "inserted",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO location_samples`).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
			want: SampleInserted,
		},
		{
			name: "retransmission",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO location_samples`).
					WillReturnResult(pgxmock.NewResult("INSERT", 0))
				mock.ExpectQuery(`SELECT EXISTS`).
					WithArgs("EMG-1A2B3C4D", now).
					WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
			},
			want: SampleDuplicate,
		},
		{
			name: "older than latest",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO location_samples`).
					WillReturnResult(pgxmock.NewResult("INSERT", 0))
				mock.ExpectQuery(`SELECT EXISTS`).
					WithArgs("EMG-1A2B3C4D", now).
					WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
			},
			want: SampleStale,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			tt.mockSetup(mock)

			got, err := NewLocationRepository(mock).Insert(context.Background(), sample, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestLocationRepository_Latest_NoLiveSample(t *testing.T) {
	mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM location_samples WHERE incident_id = \$1 AND ttl_at > \$2`).
		WithArgs("EMG-1A2B3C4D", now).
		WillReturnError(pgx.ErrNoRows)

	_, err := NewLocationRepository(mock).Latest(context.Background(), "EMG-1A2B3C4D", now)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLocationRepository_Trail(t *testing.T) {
	mock := newMock(t)
	now := time.Now()
	t0 := now.Add(-20 * time.Second)
	ttl := now.Add(time.Hour)
	battery := 80

	rows := pgxmock.NewRows([]string{
		"incident_id", "ts", "latitude", "longitude", "accuracy_meters", "speed", "heading", "battery_percent", "ttl_at",
	}).
		AddRow("EMG-1A2B3C4D", t0.Add(10*time.Second), 1.0, 1.0, 5.0, nil, nil, &battery, ttl).
		AddRow("EMG-1A2B3C4D", t0.Add(20*time.Second), 2.0, 2.0, 5.0, nil, nil, nil, ttl)

	mock.ExpectQuery(`SELECT (.+) FROM \( SELECT (.+) ORDER BY ts DESC LIMIT \$3 \) recent ORDER BY ts ASC`).
		WithArgs("EMG-1A2B3C4D", now, 2).
		WillReturnRows(rows)

	samples, err := NewLocationRepository(mock).Trail(context.Background(), "EMG-1A2B3C4D", now, 2)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.True(t, samples[0].Timestamp.Before(samples[1].Timestamp))
	require.NotNil(t, samples[0].BatteryPercent)
	assert.Equal(t, 80, *samples[0].BatteryPercent)
	assert.Nil(t, samples[1].BatteryPercent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocationRepository_DeleteExpired(t *testing.T) {
	mock := newMock(t)
	now := time.Now()

	mock.ExpectExec(`DELETE FROM location_samples WHERE ttl_at <= \$1`).
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := NewLocationRepository(mock).DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, isUniqueViolation(nil))
	assert.True(t, isUniqueViolation(errors.New("SQLSTATE 23505")))
	assert.False(t, isUniqueViolation(errors.New("connection refused")))
}
