package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIncidentID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := NewIncidentID()
		require.NoError(t, err)
		assert.True(t, ValidIncidentID(id), "unexpected format %q", id)
		assert.Len(t, id, 12)
		seen[id] = true
	}
	assert.Greater(t, len(seen), 95)
}

func TestValidIncidentID(t *testing.T) {
	assert.True(t, ValidIncidentID("EMG-0A1B2C3D"))
	assert.False(t, ValidIncidentID("EMG-0a1b2c3d"))
	assert.False(t, ValidIncidentID("EMG-123"))
	assert.False(t, ValidIncidentID("user-42"))
}

func TestIncident_AcceptsSamples(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	inc := Incident{Status: IncidentActive, CreatedAt: created, ExpiresAt: created.Add(IncidentRetention)}

	assert.True(t, inc.AcceptsSamples(created.Add(time.Hour)))
	assert.False(t, inc.AcceptsSamples(created.Add(IncidentRetention)))

	inc.Status = IncidentClosed
	assert.False(t, inc.AcceptsSamples(created.Add(time.Hour)))
}

func TestLocationSample_Validate(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	battery := 55
	badBattery := 140
	heading := 400.0
	nan := math.NaN()

	tests := []struct {
		name    string
		sample  LocationSample
		wantErr *AppError
	}{
		{"valid", LocationSample{Timestamp: ts, Latitude: 10, Longitude: 20, AccuracyMeters: 5, BatteryPercent: &battery}, nil},
		{"missing timestamp", LocationSample{Latitude: 10, Longitude: 20}, ErrValidationFailed},
		{"latitude out of range", LocationSample{Timestamp: ts, Latitude: -95, Longitude: 20}, ErrInvalidCoordinates},
		{"longitude out of range", LocationSample{Timestamp: ts, Latitude: 10, Longitude: 181}, ErrInvalidCoordinates},
		{"battery out of range", LocationSample{Timestamp: ts, Latitude: 10, Longitude: 20, BatteryPercent: &badBattery}, ErrValidationFailed},
		{"heading out of range", LocationSample{Timestamp: ts, Latitude: 10, Longitude: 20, Heading: &heading}, ErrValidationFailed},
		{"latitude not a number", LocationSample{Timestamp: ts, Latitude: math.NaN(), Longitude: 20}, ErrInvalidCoordinates},
		{"longitude infinite", LocationSample{Timestamp: ts, Latitude: 10, Longitude: math.Inf(-1)}, ErrInvalidCoordinates},
		{"speed not a number", LocationSample{Timestamp: ts, Latitude: 10, Longitude: 20, Speed: &nan}, ErrValidationFailed},
		{"heading not a number", LocationSample{Timestamp: ts, Latitude: 10, Longitude: 20, Heading: &nan}, ErrValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sample.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestTrackingURL(t *testing.T) {
	assert.Equal(t, "https://track.example.com?incident=EMG-0A1B2C3D", TrackingURL("https://track.example.com", "EMG-0A1B2C3D"))
	assert.Equal(t, "https://track.example.com/view?lang=en&incident=EMG-0A1B2C3D", TrackingURL("https://track.example.com/view?lang=en", "EMG-0A1B2C3D"))
}

func TestTrackingQuery(t *testing.T) {
	assert.Equal(t, "?incident=EMG-0A1B2C3D", TrackingQuery("https://track.example.com", "EMG-0A1B2C3D"))
	assert.Equal(t, "&incident=EMG-0A1B2C3D", TrackingQuery("https://track.example.com/view?lang=en", "EMG-0A1B2C3D"))
}
