package models

import (
	"time"

	"github.com/google/uuid"

	"sarathi/pkg/domerrors"
)

// Stage is the lifecycle position of an application. Transitions only move
// along the directed graph in the transitions table; the sole backward edge
// is the failed road-test outcome, which returns the applicant to the
// issued-credential stage so a new practical test can be scheduled.
type Stage string

const (
	StageDraft             Stage = "draft"
	StageRegistered        Stage = "registered"
	StageSlotsBooked       Stage = "slotsBooked"
	StagePaymentCompleted  Stage = "paymentCompleted"
	StageColorVisionPassed Stage = "colorVisionPassed"
	StageLearnerIssued     Stage = "learnerLicenseIssued"
	StageRoadTestScheduled Stage = "roadTestScheduled"
	StageRoadTestVerified  Stage = "roadTestVerified"
	StageRoadTestPassed    Stage = "roadTestPassed"
)

var transitions = map[Stage][]Stage{
	StageDraft:             {StageRegistered},
	StageRegistered:        {StageSlotsBooked},
	StageSlotsBooked:       {StagePaymentCompleted},
	StagePaymentCompleted:  {StageColorVisionPassed},
	StageColorVisionPassed: {StageLearnerIssued},
	StageLearnerIssued:     {StageRoadTestScheduled},
	StageRoadTestScheduled: {StageRoadTestVerified},
	StageRoadTestVerified:  {StageRoadTestPassed, StageLearnerIssued},
}

// CanTransitionTo reports whether the stage graph has an edge from s to next.
func (s Stage) CanTransitionTo(next Stage) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the stage has no outgoing edges.
func (s Stage) Terminal() bool {
	return len(transitions[s]) == 0
}

// VehicleCategory tags the licence class an applicant is applying for.
type VehicleCategory string

const (
	CategoryTwoWheeler        VehicleCategory = "Two Wheeler"
	CategoryFourWheeler       VehicleCategory = "Four Wheeler"
	CategoryTwoCumFourWheeler VehicleCategory = "Two Cum Four Wheeler"
	CategoryLightMotorVehicle VehicleCategory = "Light Motor Vehicle"
	CategoryHeavyVehicle      VehicleCategory = "Heavy Vehicle"
)

// ParseVehicleCategory validates a category tag.
func ParseVehicleCategory(s string) (VehicleCategory, error) {
	switch VehicleCategory(s) {
	case CategoryTwoWheeler, CategoryFourWheeler, CategoryTwoCumFourWheeler,
		CategoryLightMotorVehicle, CategoryHeavyVehicle:
		return VehicleCategory(s), nil
	}
	return "", domerrors.Newf(domerrors.CodeValidation, "unknown vehicle category %q", s)
}

// defaultFee applies to categories without a dedicated entry.
const defaultFee = 500

var fees = map[VehicleCategory]int{
	CategoryTwoWheeler:   500,
	CategoryFourWheeler:  1000,
	CategoryHeavyVehicle: 1500,
}

// Fee returns the application fee for the category in rupees.
func (c VehicleCategory) Fee() int {
	if fee, ok := fees[c]; ok {
		return fee
	}
	return defaultFee
}

// RoadTestResult records the practical evaluation outcome on the aggregate.
type RoadTestResult string

const (
	RoadTestPending RoadTestResult = ""
	RoadTestPassed  RoadTestResult = "passed"
	RoadTestFailed  RoadTestResult = "failed"
)

// Application is the aggregate root a client can read in full. Slot counters,
// attempt records, credential sequences, and verification sessions are owned
// by their components and only reflected here.
type Application struct {
	ID            uuid.UUID       `json:"id"`
	IdentityToken string          `json:"identity_token"`
	FullName      string          `json:"full_name"`
	DateOfBirth   time.Time       `json:"date_of_birth"`
	Gender        string          `json:"gender,omitempty"`
	Phone         string          `json:"phone"`
	Email         string          `json:"email"`
	Address       string          `json:"address"`
	PINCode       string          `json:"pin_code"`
	Category      VehicleCategory `json:"vehicle_category"`
	Stage         Stage           `json:"stage"`

	ColorVisionDate *time.Time `json:"color_vision_date,omitempty"`
	LearnerTestDate *time.Time `json:"learner_test_date,omitempty"`

	PaymentCompleted bool `json:"payment_completed"`
	PaymentAmount    int  `json:"payment_amount,omitempty"`

	ColorVisionScore    int  `json:"color_vision_score,omitempty"`
	ColorVisionPassed   bool `json:"color_vision_passed"`
	ColorVisionAttempts int  `json:"color_vision_attempts"`

	LearnerTestScore    int        `json:"learner_test_score,omitempty"`
	LearnerTestPassed   bool       `json:"learner_test_passed"`
	LearnerTestAttempts int        `json:"learner_test_attempts"`
	LearnerPassDate     *time.Time `json:"learner_pass_date,omitempty"`

	CredentialNumber     string     `json:"credential_number,omitempty"`
	CredentialIssueDate  *time.Time `json:"credential_issue_date,omitempty"`
	CredentialExpiryDate *time.Time `json:"credential_expiry_date,omitempty"`

	RoadTestDate      *time.Time     `json:"road_test_date,omitempty"`
	RoadTestSlot      string         `json:"road_test_slot,omitempty"`
	RoadTestVerified  bool           `json:"road_test_verified"`
	RoadTestAggregate int            `json:"road_test_aggregate,omitempty"`
	RoadTestPercent   float64        `json:"road_test_percent,omitempty"`
	RoadTestResult    RoadTestResult `json:"road_test_result,omitempty"`
	RoadTestAttempts  int            `json:"road_test_attempts"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewApplication constructs a registered application.
func NewApplication(identityToken string, now time.Time) *Application {
	return &Application{
		ID:            uuid.New(),
		IdentityToken: identityToken,
		Stage:         StageRegistered,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// CanAdvance checks the stage graph for the requested transition.
func (a *Application) CanAdvance(next Stage) error {
	if !a.Stage.CanTransitionTo(next) {
		return domerrors.Newf(domerrors.CodePrecondition,
			"cannot move from %s to %s", a.Stage, next)
	}
	return nil
}

// ApplyAdvance moves the application to the next stage. Call CanAdvance first.
func (a *Application) ApplyAdvance(next Stage, now time.Time) {
	a.Stage = next
	a.UpdatedAt = now
}

// Advance validates and applies a stage transition in one call.
func (a *Application) Advance(next Stage, now time.Time) error {
	if err := a.CanAdvance(next); err != nil {
		return err
	}
	a.ApplyAdvance(next, now)
	return nil
}

// CredentialExpired reports whether the learner credential has lapsed.
func (a *Application) CredentialExpired(now time.Time) bool {
	return a.CredentialExpiryDate != nil && now.After(*a.CredentialExpiryDate)
}
