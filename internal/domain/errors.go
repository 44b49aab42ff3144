package domain

import (
	"fmt"
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches by code so errors created with WithError still match their sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Err:        err,
	}
}

// Pre-defined errors
var (
	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		StatusCode: 500,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: 400,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: 404,
	}

	ErrRateLimitExceeded = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Rate limit exceeded, please try again later",
		StatusCode: 429,
	}

	ErrValidationFailed = &AppError{
		Code:       "VALIDATION_FAILED",
		Message:    "Request validation failed",
		StatusCode: 422,
	}

	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Invalid or missing API key",
		StatusCode: 401,
	}

	ErrInvalidSignature = &AppError{
		Code:       "INVALID_SIGNATURE",
		Message:    "Invalid or missing request signature",
		StatusCode: 401,
	}

	// Assessment errors
	ErrAssessmentNotFound = &AppError{
		Code:       "ASSESSMENT_NOT_FOUND",
		Message:    "Assessment not found",
		StatusCode: 404,
	}

	ErrAssessmentNotConfirmed = &AppError{
		Code:       "ASSESSMENT_NOT_CONFIRMED",
		Message:    "Assessment is not confirmed, no emergency can be created from it",
		StatusCode: 409,
	}

	ErrAssessmentFinalized = &AppError{
		Code:       "ASSESSMENT_FINALIZED",
		Message:    "Assessment already reached a terminal status",
		StatusCode: 409,
	}

	// Emergency errors
	ErrEventNotFound = &AppError{
		Code:       "EVENT_NOT_FOUND",
		Message:    "Emergency event not found",
		StatusCode: 404,
	}

	ErrInvalidTransition = &AppError{
		Code:       "INVALID_TRANSITION",
		Message:    "Emergency event cannot move to the requested status",
		StatusCode: 409,
	}

	ErrNoSuccessfulDelivery = &AppError{
		Code:       "NO_SUCCESSFUL_DELIVERY",
		Message:    "No notification was delivered for this emergency",
		StatusCode: 409,
	}

	// Tracking errors
	ErrIncidentNotFound = &AppError{
		Code:       "INCIDENT_NOT_FOUND",
		Message:    "Incident not found",
		StatusCode: 404,
	}

	ErrIncidentExists = &AppError{
		Code:       "INCIDENT_ALREADY_EXISTS",
		Message:    "An incident already exists for this emergency",
		StatusCode: 409,
	}

	// ErrIncidentIDTaken means the generated public id collided; callers retry with a new one
	ErrIncidentIDTaken = &AppError{
		Code:       "INCIDENT_ID_TAKEN",
		Message:    "Incident identifier already in use",
		StatusCode: 409,
	}

	ErrTrackingClosed = &AppError{
		Code:       "TRACKING_CLOSED",
		Message:    "Tracking for this incident is closed",
		StatusCode: 410,
	}

	ErrInvalidCoordinates = &AppError{
		Code:       "INVALID_COORDINATES",
		Message:    "Latitude must be between -90 and 90 and longitude between -180 and 180",
		StatusCode: 422,
	}

	ErrStaleSample = &AppError{
		Code:       "STALE_SAMPLE",
		Message:    "Sample timestamp is older than the latest recorded sample",
		StatusCode: 409,
	}

	// Notification errors
	ErrContactNotFound = &AppError{
		Code:       "CONTACT_NOT_FOUND",
		Message:    "Contact not found",
		StatusCode: 404,
	}

	ErrDeliveryNotFound = &AppError{
		Code:       "DELIVERY_NOT_FOUND",
		Message:    "No delivery matches the provider message id",
		StatusCode: 404,
	}
)
