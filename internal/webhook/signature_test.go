package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
)

func TestSign(t *testing.T) {
	signature := Sign("my-secret-key", []byte(`{"provider_message_id":"m-1","status":"DELIVERED"}`))

	assert.Contains(t, signature, "sha256=")
	assert.Len(t, signature, len("sha256=")+64)
	assert.True(t, Verify("my-secret-key", []byte(`{"provider_message_id":"m-1","status":"DELIVERED"}`), signature))
}

func TestVerify(t *testing.T) {
	secret := "test-secret"
	payload := []byte(`{"test":"data"}`)
	validSignature := Sign(secret, payload)

	tests := []struct {
		name      string
		secret    string
		payload   []byte
		signature string
		expected  bool
	}{
		{
			name:      "valid signature",
			secret:    secret,
			payload:   payload,
			signature: validSignature,
			expected:  true,
		},
		{
			name:      "invalid signature",
			secret:    secret,
			payload:   payload,
			signature: "sha256=invalid",
			expected:  false,
		},
		{
			name:      "wrong secret",
			secret:    "wrong-secret",
			payload:   payload,
			signature: validSignature,
			expected:  false,
		},
		{
			name:      "modified payload",
			secret:    secret,
			payload:   []byte(`{"test":"modified"}`),
			signature: validSignature,
			expected:  false,
		},
		{
			name:      "empty secret",
			secret:    "",
			payload:   payload,
			signature: Sign("", payload),
			expected:  false,
		},
		{
			name:      "missing signature",
			secret:    secret,
			payload:   payload,
			signature: "",
			expected:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Verify(tt.secret, tt.payload, tt.signature)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseReceipt(t *testing.T) {
	secret := "receipt-secret"

	tests := []struct {
		name       string
		body       string
		signature  string
		wantErr    error
		wantStatus domain.DeliveryStatus
	}{
		{
			name:       "delivered",
			body:       `{"provider_message_id":"m-1","status":"delivered","timestamp":"2026-01-02T03:04:05Z"}`,
			wantStatus: domain.DeliveryDelivered,
		},
		{
			name:       "carrier failure",
			body:       `{"provider_message_id":"m-1","status":"UNDELIVERABLE","reason":"handset off"}`,
			wantStatus: domain.DeliveryFailed,
		},
		{
			name:      "bad signature",
			body:      `{"provider_message_id":"m-1","status":"DELIVERED"}`,
			signature: "sha256=deadbeef",
			wantErr:   domain.ErrInvalidSignature,
		},
		{
			name:    "malformed json",
			body:    `{"provider_message_id":`,
			wantErr: domain.ErrBadRequest,
		},
		{
			name:    "missing message id",
			body:    `{"status":"DELIVERED"}`,
			wantErr: domain.ErrValidationFailed,
		},
		{
			name:    "unknown status",
			body:    `{"provider_message_id":"m-1","status":"QUEUED"}`,
			wantErr: domain.ErrValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := tt.signature
			if sig == "" {
				sig = Sign(secret, []byte(tt.body))
			}

			r, err := ParseReceipt(secret, []byte(tt.body), sig)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			status, err := r.DeliveryStatus()
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, "m-1", r.ProviderMessageID)
		})
	}
}
