package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
	"github.com/go-swagno/swagno/components/parameter"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code    string `json:"code" example:"VALIDATION_FAILED"`
	Message string `json:"message" example:"Request validation failed"`
}

// LocationData is a point with optional accuracy
type LocationData struct {
	Latitude       float64 `json:"latitude" example:"40.7812"`
	Longitude      float64 `json:"longitude" example:"-73.9665"`
	AccuracyMeters float64 `json:"accuracy_meters,omitempty" example:"12"`
	PlaceName      string  `json:"place_name,omitempty" example:"Central Park"`
}

// AudioData holds on-device audio features
type AudioData struct {
	LevelDB    float64  `json:"level_db" example:"92"`
	PeakDB     float64  `json:"peak_db" example:"110"`
	Transcript string   `json:"transcript,omitempty" example:"help me please"`
	Keywords   []string `json:"keywords,omitempty"`
}

// MotionData holds accelerometer features
type MotionData struct {
	AccelerationG  float64 `json:"acceleration_g" example:"3.2"`
	SuddenMovement bool    `json:"sudden_movement" example:"true"`
	FallDetected   bool    `json:"fall_detected" example:"false"`
}

// EnvironmentData holds ambient features
type EnvironmentData struct {
	AmbientNoiseDB float64 `json:"ambient_noise_db" example:"35"`
	Lighting       string  `json:"lighting,omitempty" example:"dark"`
	Isolated       bool    `json:"isolated" example:"true"`
}

// BiometricsData holds wearable readings
type BiometricsData struct {
	HeartRate int `json:"heart_rate" example:"142"`
}

// SnapshotData is a sensor snapshot
type SnapshotData struct {
	Audio         AudioData       `json:"audio"`
	Motion        MotionData      `json:"motion"`
	Environment   EnvironmentData `json:"environment"`
	Biometrics    BiometricsData  `json:"biometrics"`
	Location      LocationData    `json:"location"`
	DetectionType string          `json:"detection_type,omitempty" example:"emergency_words"`
	CapturedAt    string          `json:"captured_at" example:"2026-04-01T22:15:00Z"`
}

// AssessRequest is the body of an assessment or trigger call
type AssessRequest struct {
	SubjectID   string       `json:"subject_id" example:"subject-42"`
	SubjectName string       `json:"subject_name,omitempty" example:"Ana Souza"`
	SnapshotRef string       `json:"snapshot_ref,omitempty" example:"snap-2026-04-01-2215"`
	Snapshot    SnapshotData `json:"snapshot"`
}

// AssessmentData is a stored assessment
type AssessmentData struct {
	ID                   string       `json:"id" example:"7b3f8a9e-0c1d-4e2f-9a8b-1c2d3e4f5a6b"`
	SubjectID            string       `json:"subject_id" example:"subject-42"`
	DetectionType        string       `json:"detection_type" example:"emergency_words"`
	ThreatLevel          string       `json:"threat_level" example:"HIGH"`
	Confidence           float64      `json:"confidence" example:"0.85"`
	OriginalConfidence   float64      `json:"original_confidence" example:"0.8"`
	ConfidenceAdjustment float64      `json:"confidence_adjustment" example:"0.05"`
	Rationale            string       `json:"rationale" example:"Distress keywords with elevated heart rate"`
	Status               string       `json:"status" example:"CONFIRMED"`
	Source               string       `json:"source" example:"oracle"`
	Location             LocationData `json:"location"`
	CreatedAt            string       `json:"created_at" example:"2026-04-01T22:15:01Z"`
}

// EventData is an emergency event
type EventData struct {
	ID                string       `json:"id" example:"0f1e2d3c-4b5a-4978-8695-a4b3c2d1e0f9"`
	AssessmentID      string       `json:"assessment_id" example:"7b3f8a9e-0c1d-4e2f-9a8b-1c2d3e4f5a6b"`
	SubjectID         string       `json:"subject_id" example:"subject-42"`
	Status            string       `json:"status" example:"SERVICES_CONTACTED"`
	Priority          string       `json:"priority" example:"HIGH"`
	ThreatLevel       string       `json:"threat_level" example:"HIGH"`
	Location          LocationData `json:"location"`
	ContactsNotified  []string     `json:"contacts_notified"`
	DecisionRationale string       `json:"decision_rationale" example:"HIGH threat at 0.85 confidence, priority HIGH"`
	FalseAlarm        bool         `json:"false_alarm" example:"false"`
	CreatedAt         string       `json:"created_at" example:"2026-04-01T22:15:02Z"`
}

// TransitionData is one step of the event audit trail
type TransitionData struct {
	From      string `json:"from,omitempty" example:"INITIATED"`
	To        string `json:"to" example:"IN_PROGRESS"`
	Reason    string `json:"reason" example:"response started"`
	CreatedAt string `json:"created_at" example:"2026-04-01T22:15:02Z"`
}

// IncidentData is a tracking incident
type IncidentData struct {
	IncidentID      string       `json:"incident_id" example:"EMG-1A2B3C4D"`
	SubjectName     string       `json:"subject_name" example:"Ana Souza"`
	DetectionType   string       `json:"detection_type" example:"emergency_words"`
	InitialLocation LocationData `json:"initial_location"`
	Status          string       `json:"status" example:"ACTIVE"`
	ExpiresAt       string       `json:"expires_at" example:"2026-04-08T22:15:02Z"`
}

// DeliveryData is one ledger entry
type DeliveryData struct {
	ID                string `json:"id" example:"3c2b1a09-8f7e-4d6c-b5a4-938271605f4e"`
	ContactID         string `json:"contact_id" example:"9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d"`
	Channel           string `json:"channel" example:"SMS"`
	Status            string `json:"status" example:"SENT"`
	ProviderMessageID string `json:"provider_message_id,omitempty" example:"sns-msg-1"`
	Attempt           int    `json:"attempt" example:"1"`
	ErrorReason       string `json:"error_reason,omitempty"`
	Timestamp         string `json:"timestamp" example:"2026-04-01T22:15:03Z"`
}

// NotificationSummary is the fan-out result
type NotificationSummary struct {
	Successes  int            `json:"successes" example:"2"`
	Failures   int            `json:"failures" example:"0"`
	Deliveries []DeliveryData `json:"deliveries"`
}

// OutcomeResponse is the result of trigger and decide
type OutcomeResponse struct {
	Assessment    AssessmentData      `json:"assessment"`
	Event         EventData           `json:"event"`
	Created       bool                `json:"created" example:"true"`
	Incident      IncidentData        `json:"incident"`
	TrackingURL   string              `json:"tracking_url" example:"https://track.allsensesai.com?incident=EMG-1A2B3C4D"`
	Notifications NotificationSummary `json:"notifications"`
}

// DecideRequest is the body of a decide call
type DecideRequest struct {
	SubjectName string          `json:"subject_name,omitempty" example:"Ana Souza"`
	LocalTime   string          `json:"local_time,omitempty" example:"2026-04-01T23:30:00-03:00"`
	Environment EnvironmentData `json:"environment"`
	Motion      MotionData      `json:"motion"`
	Biometrics  BiometricsData  `json:"biometrics"`
}

// CloseRequest carries an operator reason
type CloseRequest struct {
	Reason string `json:"reason" example:"subject confirmed safe"`
}

// EventDetailsResponse is an event with its transitions
type EventDetailsResponse struct {
	Event       EventData        `json:"event"`
	Transitions []TransitionData `json:"transitions"`
	Incident    IncidentData     `json:"incident"`
}

// DeliveriesResponse lists the ledger of one event
type DeliveriesResponse struct {
	EventID    string         `json:"event_id" example:"0f1e2d3c-4b5a-4978-8695-a4b3c2d1e0f9"`
	Deliveries []DeliveryData `json:"deliveries"`
}

// IncidentRequest opens tracking for a confirmed emergency
type IncidentRequest struct {
	AssessmentID    string       `json:"assessment_id" example:"7b3f8a9e-0c1d-4e2f-9a8b-1c2d3e4f5a6b"`
	SubjectName     string       `json:"subject_name" example:"Ana Souza"`
	InitialLocation LocationData `json:"initial_location"`
}

// IncidentResponse carries the public viewer link
type IncidentResponse struct {
	IncidentID        string       `json:"incident_id" example:"EMG-1A2B3C4D"`
	TrackingURL       string       `json:"tracking_url" example:"https://track.allsensesai.com?incident=EMG-1A2B3C4D"`
	TrackingURLSuffix string       `json:"tracking_url_suffix" example:"?incident=EMG-1A2B3C4D"`
	Incident          IncidentData `json:"incident"`
}

// LiveEvent is one frame on the live stream
type LiveEvent struct {
	IncidentID string `json:"incident_id" example:"EMG-1A2B3C4D"`
	Type       string `json:"type" example:"location.updated"`
	Data       string `json:"data,omitempty" example:"{latitude, longitude, timestamp}"`
	Timestamp  string `json:"timestamp" example:"2026-04-01T22:16:01Z"`
}

// LocationUpdateRequest is a single device fix
type LocationUpdateRequest struct {
	Timestamp      string  `json:"timestamp" example:"2026-04-01T22:16:00Z"`
	Latitude       float64 `json:"latitude" example:"40.7813"`
	Longitude      float64 `json:"longitude" example:"-73.9664"`
	AccuracyMeters float64 `json:"accuracy_meters" example:"8"`
	Speed          float64 `json:"speed,omitempty" example:"1.2"`
	Heading        float64 `json:"heading,omitempty" example:"270"`
	BatteryPercent int     `json:"battery_percent,omitempty" example:"64"`
}

// RecordResponse reports what happened to a fix
type RecordResponse struct {
	Status    string `json:"status" example:"recorded"`
	Timestamp string `json:"timestamp" example:"2026-04-01T22:16:00Z"`
}

// SampleData is a stored fix
type SampleData struct {
	IncidentID     string  `json:"incident_id" example:"EMG-1A2B3C4D"`
	Timestamp      string  `json:"timestamp" example:"2026-04-01T22:16:00Z"`
	Latitude       float64 `json:"latitude" example:"40.7813"`
	Longitude      float64 `json:"longitude" example:"-73.9664"`
	AccuracyMeters float64 `json:"accuracy_meters" example:"8"`
	BatteryPercent int     `json:"battery_percent,omitempty" example:"64"`
}

// LocationViewResponse is what the responder viewer shows
type LocationViewResponse struct {
	IncidentID      string       `json:"incident_id" example:"EMG-1A2B3C4D"`
	Status          string       `json:"status" example:"ACTIVE"`
	Available       bool         `json:"available" example:"true"`
	Sample          SampleData   `json:"sample"`
	StaleSeconds    int64        `json:"stale_seconds" example:"42"`
	Reason          string       `json:"reason,omitempty" example:"no_location_yet"`
	SubjectName     string       `json:"subject_name" example:"Ana Souza"`
	DetectionType   string       `json:"detection_type" example:"emergency_words"`
	InitialLocation LocationData `json:"initial_location"`
	StaticMapURL    string       `json:"static_map_url,omitempty"`
}

// HistoryResponse is the trail in ascending time order
type HistoryResponse struct {
	IncidentID string       `json:"incident_id" example:"EMG-1A2B3C4D"`
	Samples    []SampleData `json:"samples"`
}

// ReceiptRequest is a provider delivery confirmation
type ReceiptRequest struct {
	ProviderMessageID string `json:"provider_message_id" example:"sns-msg-1"`
	Status            string `json:"status" example:"DELIVERED"`
	Reason            string `json:"reason,omitempty"`
	Timestamp         string `json:"timestamp" example:"2026-04-01T22:15:09Z"`
}

var (
	errValidation   = response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "Request validation failed"}, "422", "Unprocessable Entity")
	errBadRequest   = response.New(ErrorResponse{Code: "BAD_REQUEST", Message: "Invalid request"}, "400", "Bad Request")
	errUnauthorized = response.New(ErrorResponse{Code: "UNAUTHORIZED", Message: "Invalid or missing API key"}, "401", "Unauthorized")
	errRateLimited  = response.New(ErrorResponse{Code: "RATE_LIMIT_EXCEEDED", Message: "Rate limit exceeded, please try again later"}, "429", "Too Many Requests")
	errInternal     = response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error")
	apiKeyAuth      = []map[string][]string{{"ApiKeyAuth": {}}}
)

func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "Guardian Emergency Response API",
		Version:     "v1.0.0",
		Description: "Threat assessment, emergency decisions, contact notification and live location tracking",
		Host:        "localhost:3000",
		Path:        "/v1",
	})

	eventID := parameter.StrParam("id", parameter.Path, parameter.WithDescription("Emergency event UUID"))
	incidentID := parameter.StrParam("incident_id", parameter.Path, parameter.WithDescription("Public incident id, EMG- followed by 8 hex digits"))

	endpoints := []*endpoint.EndPoint{
		// POST /v1/assessments - Evaluate a snapshot
		endpoint.New(
			endpoint.POST,
			"/assessments",
			endpoint.WithTags("Assessments"),
			endpoint.WithSummary("Assess a sensor snapshot"),
			endpoint.WithDescription("Runs the inference oracle with keyword fallback, applies the rule adjustment and classifies the result. Does not create an emergency."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(AssessmentData{}, "201", "Assessment stored"),
			}),
			endpoint.WithErrors([]response.Response{errBadRequest, errUnauthorized, errValidation, errRateLimited, errInternal}),
			endpoint.WithSecurity(apiKeyAuth),
		),

		// POST /v1/emergencies/trigger - Full pipeline
		endpoint.New(
			endpoint.POST,
			"/emergencies/trigger",
			endpoint.WithTags("Emergencies"),
			endpoint.WithSummary("Assess and respond"),
			endpoint.WithDescription("Assesses the snapshot and, when confirmed, creates the emergency event, opens live tracking and notifies the subject's contacts. Notification failures never fail this call."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(OutcomeResponse{}, "201", "Emergency created"),
				response.New(OutcomeResponse{}, "200", "No emergency, or the existing one"),
			}),
			endpoint.WithErrors([]response.Response{errBadRequest, errUnauthorized, errValidation, errRateLimited, errInternal}),
			endpoint.WithSecurity(apiKeyAuth),
		),

		// POST /v1/emergencies/{assessment_id}/decide - Idempotent decision
		endpoint.New(
			endpoint.POST,
			"/emergencies/{assessment_id}/decide",
			endpoint.WithTags("Emergencies"),
			endpoint.WithSummary("Decide on an assessment"),
			endpoint.WithDescription("Creates at most one emergency event per assessment. Repeating the call returns the existing event without notifying again."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("assessment_id", parameter.Path, parameter.WithDescription("Assessment UUID")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(OutcomeResponse{}, "201", "Emergency created"),
				response.New(OutcomeResponse{}, "200", "Existing emergency"),
			}),
			endpoint.WithErrors([]response.Response{
				errUnauthorized,
				response.New(ErrorResponse{Code: "ASSESSMENT_NOT_FOUND", Message: "Assessment not found"}, "404", "Not Found"),
				response.New(ErrorResponse{Code: "ASSESSMENT_NOT_CONFIRMED", Message: "Assessment is not confirmed, no emergency can be created from it"}, "409", "Conflict"),
				errValidation,
				errInternal,
			}),
			endpoint.WithSecurity(apiKeyAuth),
		),

		// GET /v1/emergencies/{id} - Event with transitions
		endpoint.New(
			endpoint.GET,
			"/emergencies/{id}",
			endpoint.WithTags("Emergencies"),
			endpoint.WithSummary("Get an emergency event"),
			endpoint.WithDescription("Returns the event, its status transitions and the tracking incident, if any"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(eventID),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(EventDetailsResponse{}, "200", "Event found"),
			}),
			endpoint.WithErrors([]response.Response{
				errUnauthorized,
				response.New(ErrorResponse{Code: "EVENT_NOT_FOUND", Message: "Emergency event not found"}, "404", "Not Found"),
				errInternal,
			}),
			endpoint.WithSecurity(apiKeyAuth),
		),

		closeEndpoint("resolve", "Resolve an emergency", "Moves the event to RESOLVED and closes live tracking"),
		closeEndpoint("cancel", "Cancel an emergency", "Moves the event to CANCELLED and closes live tracking"),
		closeEndpoint("false-alarm", "Report a false alarm", "Flags the event, marks the assessment as a false positive and cancels the event"),

		// GET /v1/emergencies/{id}/deliveries - Delivery ledger
		endpoint.New(
			endpoint.GET,
			"/emergencies/{id}/deliveries",
			endpoint.WithTags("Emergencies"),
			endpoint.WithSummary("List notification deliveries"),
			endpoint.WithDescription("Returns every send attempt and provider receipt for the event, oldest first"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(eventID),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(DeliveriesResponse{}, "200", "Ledger returned"),
			}),
			endpoint.WithErrors([]response.Response{
				errUnauthorized,
				response.New(ErrorResponse{Code: "EVENT_NOT_FOUND", Message: "Emergency event not found"}, "404", "Not Found"),
				errInternal,
			}),
			endpoint.WithSecurity(apiKeyAuth),
		),

		// POST /v1/incidents - Open live tracking
		endpoint.New(
			endpoint.POST,
			"/incidents",
			endpoint.WithTags("Tracking"),
			endpoint.WithSummary("Open a tracking incident"),
			endpoint.WithDescription("Opens live tracking for the emergency created from the assessment. Returns the existing incident when one is already open."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(IncidentResponse{}, "201", "Incident open"),
			}),
			endpoint.WithErrors([]response.Response{
				errUnauthorized,
				response.New(ErrorResponse{Code: "EVENT_NOT_FOUND", Message: "Emergency event not found"}, "404", "Not Found"),
				response.New(ErrorResponse{Code: "INVALID_COORDINATES", Message: "Latitude must be between -90 and 90 and longitude between -180 and 180"}, "422", "Unprocessable Entity"),
				errInternal,
			}),
			endpoint.WithSecurity(apiKeyAuth),
		),

		// POST /v1/tracking/{incident_id}/location - Device uplink
		endpoint.New(
			endpoint.POST,
			"/tracking/{incident_id}/location",
			endpoint.WithTags("Tracking"),
			endpoint.WithSummary("Record a location fix"),
			endpoint.WithDescription("Stores a fix for 24 hours. Resending the latest fix is a duplicate; an older fix is rejected."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(incidentID),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(RecordResponse{}, "201", "Fix recorded"),
				response.New(RecordResponse{Status: "duplicate"}, "200", "Fix already recorded"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "INCIDENT_NOT_FOUND", Message: "Incident not found"}, "404", "Not Found"),
				response.New(ErrorResponse{Code: "STALE_SAMPLE", Message: "Sample timestamp is older than the latest recorded sample"}, "409", "Conflict"),
				response.New(ErrorResponse{Code: "TRACKING_CLOSED", Message: "Tracking for this incident is closed"}, "410", "Gone"),
				errValidation,
				errRateLimited,
				errInternal,
			}),
		),

		// GET /v1/tracking/{incident_id}/location - Responder viewer
		endpoint.New(
			endpoint.GET,
			"/tracking/{incident_id}/location",
			endpoint.WithTags("Tracking"),
			endpoint.WithSummary("Get the latest location"),
			endpoint.WithDescription("Returns the newest live fix. When none is available the view carries the initial location and a reason."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(incidentID),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(LocationViewResponse{}, "200", "Viewer data"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "INCIDENT_NOT_FOUND", Message: "Incident not found"}, "404", "Not Found"),
				errRateLimited,
				errInternal,
			}),
		),

		// GET /v1/tracking/{incident_id}/history - Trail
		endpoint.New(
			endpoint.GET,
			"/tracking/{incident_id}/history",
			endpoint.WithTags("Tracking"),
			endpoint.WithSummary("Get the location trail"),
			endpoint.WithDescription("Returns the most recent live fixes in ascending time order"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				incidentID,
				parameter.IntParam("limit", parameter.Query, parameter.WithDescription("Number of fixes (1-500, default 100)")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(HistoryResponse{}, "200", "Trail returned"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "INCIDENT_NOT_FOUND", Message: "Incident not found"}, "404", "Not Found"),
				errRateLimited,
				errInternal,
			}),
		),

		// GET /v1/tracking/{incident_id}/live - WebSocket stream
		endpoint.New(
			endpoint.GET,
			"/tracking/{incident_id}/live",
			endpoint.WithTags("Tracking"),
			endpoint.WithSummary("Stream live location updates"),
			endpoint.WithDescription("WebSocket upgrade. Pushes location.updated for every new fix and tracking.closed when the incident ends"),
			endpoint.WithParams(incidentID),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(LiveEvent{}, "101", "Switching Protocols"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "INCIDENT_NOT_FOUND", Message: "Incident not found"}, "404", "Not Found"),
				response.New(ErrorResponse{Code: "TRACKING_CLOSED", Message: "Tracking for this incident is closed"}, "410", "Gone"),
				response.New(ErrorResponse{Message: "Upgrade Required"}, "426", "Upgrade Required"),
			}),
		),

		// POST /v1/notifications/receipts - Provider callbacks
		endpoint.New(
			endpoint.POST,
			"/notifications/receipts",
			endpoint.WithTags("Notifications"),
			endpoint.WithSummary("Receive a delivery receipt"),
			endpoint.WithDescription("Provider callback signed with HMAC-SHA256 over the raw body in the X-Guardian-Signature header"),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(DeliveryData{Status: "DELIVERED"}, "200", "Receipt recorded"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "INVALID_SIGNATURE", Message: "Invalid or missing request signature"}, "401", "Unauthorized"),
				response.New(ErrorResponse{Code: "DELIVERY_NOT_FOUND", Message: "No delivery matches the provider message id"}, "404", "Not Found"),
				errValidation,
				errInternal,
			}),
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}

func closeEndpoint(action, summary, description string) *endpoint.EndPoint {
	return endpoint.New(
		endpoint.POST,
		"/emergencies/{id}/"+action,
		endpoint.WithTags("Emergencies"),
		endpoint.WithSummary(summary),
		endpoint.WithDescription(description),
		endpoint.WithConsume([]mime.MIME{mime.JSON}),
		endpoint.WithProduce([]mime.MIME{mime.JSON}),
		endpoint.WithParams(
			parameter.StrParam("id", parameter.Path, parameter.WithDescription("Emergency event UUID")),
		),
		endpoint.WithSuccessfulReturns([]response.Response{
			response.New(EventData{}, "200", "Event closed"),
		}),
		endpoint.WithErrors([]response.Response{
			errUnauthorized,
			response.New(ErrorResponse{Code: "EVENT_NOT_FOUND", Message: "Emergency event not found"}, "404", "Not Found"),
			response.New(ErrorResponse{Code: "INVALID_TRANSITION", Message: "Emergency event cannot move to the requested status"}, "409", "Conflict"),
			errInternal,
		}),
		endpoint.WithSecurity(apiKeyAuth),
	)
}
