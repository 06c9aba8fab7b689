// Package audit records an append-only trail of lifecycle actions keyed by
// identity token, so an application's history can be reconstructed later.
package audit

import "time"

// Action names a recorded lifecycle step.
type Action string

const (
	ActionApplicationRegistered Action = "application_registered"
	ActionSlotsReserved         Action = "slots_reserved"
	ActionReservationReleased   Action = "reservation_released"
	ActionPaymentCompleted      Action = "payment_completed"
	ActionAssessmentScored      Action = "assessment_scored"
	ActionCredentialIssued      Action = "credential_issued"
	ActionRoadTestScheduled     Action = "road_test_scheduled"
	ActionOTPGenerated          Action = "otp_generated"
	ActionOTPVerified           Action = "otp_verified"
	ActionRoadTestEvaluated     Action = "road_test_evaluated"
	ActionHolidayMarked         Action = "holiday_marked"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp     time.Time `json:"timestamp"`
	IdentityToken string    `json:"identity_token,omitempty"`
	AppNumber     string    `json:"application_id,omitempty"`
	Action        Action    `json:"action"`
	Stage         string    `json:"stage,omitempty"`
	Detail        string    `json:"detail,omitempty"`
	Actor         string    `json:"actor,omitempty"`
}
