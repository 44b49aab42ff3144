package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus é o estado de uma tentativa de entrega
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "PENDING"
	DeliverySent      DeliveryStatus = "SENT"
	DeliveryDelivered DeliveryStatus = "DELIVERED"
	DeliveryFailed    DeliveryStatus = "FAILED"
)

// IsSuccess reports whether the record counts as a successful notification.
func (s DeliveryStatus) IsSuccess() bool {
	return s == DeliverySent || s == DeliveryDelivered
}

// Delivery failure reasons recorded on the ledger.
const (
	ReasonNotEligible      = "NOT_ELIGIBLE"
	ReasonInvalidDest      = "INVALID_DESTINATION"
	ReasonRetriesExhausted = "RETRIES_EXHAUSTED"
	ReasonChannelMissing   = "CHANNEL_UNAVAILABLE"
)

// DeliveryRecord é uma entrada imutável do ledger de notificações
type DeliveryRecord struct {
	ID                uuid.UUID      `json:"id"`
	EmergencyEventID  uuid.UUID      `json:"emergency_event_id"`
	ContactID         uuid.UUID      `json:"contact_id"`
	Channel           Channel        `json:"channel"`
	Status            DeliveryStatus `json:"status"`
	ProviderMessageID string         `json:"provider_message_id,omitempty"`
	Attempt           int            `json:"attempt"`
	ErrorReason       string         `json:"error_reason,omitempty"`
	Timestamp         time.Time      `json:"timestamp"`
}

// Contact é um contato de emergência do sujeito
type Contact struct {
	ID               uuid.UUID  `json:"id"`
	SubjectID        string     `json:"subject_id"`
	Name             string     `json:"name"`
	Relationship     string     `json:"relationship,omitempty"`
	Phone            string     `json:"phone,omitempty"`
	Email            string     `json:"email,omitempty"`
	PreferredChannel Channel    `json:"preferred_channel"`
	FallbackChannel  Channel    `json:"fallback_channel,omitempty"`
	Priority         int        `json:"priority"`
	IsServices       bool       `json:"is_services"`
	ConsentGrantedAt *time.Time `json:"consent_granted_at,omitempty"`
	ConsentExpiresAt *time.Time `json:"consent_expires_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// HasConsent reports whether consent was granted and is still valid at now.
func (c *Contact) HasConsent(now time.Time) bool {
	if c.ConsentGrantedAt == nil || c.ConsentGrantedAt.After(now) {
		return false
	}
	if c.ConsentExpiresAt != nil && !c.ConsentExpiresAt.After(now) {
		return false
	}
	return true
}

// Destination returns the address used for the channel, empty when missing.
func (c *Contact) Destination(ch Channel) string {
	switch ch {
	case ChannelSMS, ChannelVoice:
		return c.Phone
	case ChannelEmail:
		return c.Email
	default:
		return ""
	}
}

// Channels returns the preferred channel followed by a distinct fallback.
func (c *Contact) Channels() []Channel {
	channels := []Channel{c.PreferredChannel}
	if c.FallbackChannel != "" && c.FallbackChannel != c.PreferredChannel {
		channels = append(channels, c.FallbackChannel)
	}
	return channels
}
