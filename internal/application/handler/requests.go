package handler

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"sarathi/internal/assessment"
	"sarathi/pkg/domerrors"
)

var (
	phonePattern = regexp.MustCompile(`^\d{10}$`)
	pinPattern   = regexp.MustCompile(`^\d{6}$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// dateLayout is the wire format for slot and test dates.
const dateLayout = "2006-01-02"

// RegisterRequest is the body for POST /applications.
type RegisterRequest struct {
	IdentityToken   string `json:"identity_token"`
	Phone           string `json:"phone"`
	Email           string `json:"email"`
	PINCode         string `json:"pin_code"`
	VehicleCategory string `json:"vehicle_category"`
}

func (r *RegisterRequest) Validate() error {
	r.IdentityToken = strings.TrimSpace(r.IdentityToken)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Email = strings.TrimSpace(r.Email)
	r.PINCode = strings.TrimSpace(r.PINCode)
	r.VehicleCategory = strings.TrimSpace(r.VehicleCategory)

	if r.IdentityToken == "" {
		return domerrors.New(domerrors.CodeValidation, "identity_token is required")
	}
	if !phonePattern.MatchString(r.Phone) {
		return domerrors.New(domerrors.CodeValidation, "phone must be 10 digits")
	}
	if !emailPattern.MatchString(r.Email) {
		return domerrors.New(domerrors.CodeValidation, "email is not valid")
	}
	if !pinPattern.MatchString(r.PINCode) {
		return domerrors.New(domerrors.CodeValidation, "pin_code must be 6 digits")
	}
	if r.VehicleCategory == "" {
		return domerrors.New(domerrors.CodeValidation, "vehicle_category is required")
	}
	return nil
}

// ReserveSlotsRequest is the body for POST /applications/{token}/slots.
type ReserveSlotsRequest struct {
	ColorVisionDate string `json:"color_vision_date"`
	LearnerTestDate string `json:"learner_test_date"`

	colorDate   time.Time
	learnerDate time.Time
}

func (r *ReserveSlotsRequest) Validate() error {
	var err error
	r.colorDate, err = time.Parse(dateLayout, r.ColorVisionDate)
	if err != nil {
		return domerrors.New(domerrors.CodeValidation, "color_vision_date must be YYYY-MM-DD")
	}
	r.learnerDate, err = time.Parse(dateLayout, r.LearnerTestDate)
	if err != nil {
		return domerrors.New(domerrors.CodeValidation, "learner_test_date must be YYYY-MM-DD")
	}
	return nil
}

func (r *ReserveSlotsRequest) ColorDate() time.Time   { return r.colorDate }
func (r *ReserveSlotsRequest) LearnerDate() time.Time { return r.learnerDate }

// PaymentRequest is the body for POST /applications/{token}/payment.
type PaymentRequest struct {
	Amount int `json:"amount"`
}

func (r *PaymentRequest) Validate() error {
	if r.Amount <= 0 {
		return domerrors.New(domerrors.CodeValidation, "amount must be positive")
	}
	return nil
}

// SubmitAssessmentRequest is the body for assessment submissions.
type SubmitAssessmentRequest struct {
	PaperID       string              `json:"paper_id"`
	Answers       []assessment.Answer `json:"answers"`
	TimeTakenSecs int                 `json:"time_taken_seconds"`
	Violations    int                 `json:"violations"`

	paperID uuid.UUID
}

func (r *SubmitAssessmentRequest) Validate() error {
	var err error
	r.paperID, err = uuid.Parse(strings.TrimSpace(r.PaperID))
	if err != nil {
		return domerrors.New(domerrors.CodeValidation, "paper_id must be a UUID")
	}
	if r.TimeTakenSecs < 0 {
		return domerrors.New(domerrors.CodeValidation, "time_taken_seconds cannot be negative")
	}
	if r.Violations < 0 {
		return domerrors.New(domerrors.CodeValidation, "violations cannot be negative")
	}
	return nil
}

func (r *SubmitAssessmentRequest) ParsedPaperID() uuid.UUID { return r.paperID }
func (r *SubmitAssessmentRequest) TimeTaken() time.Duration {
	return time.Duration(r.TimeTakenSecs) * time.Second
}

// ScheduleRoadTestRequest is the body for POST /applications/{token}/road-test.
type ScheduleRoadTestRequest struct {
	Date     string `json:"date"`
	TimeSlot string `json:"time_slot"`

	date time.Time
}

func (r *ScheduleRoadTestRequest) Validate() error {
	var err error
	r.date, err = time.Parse(dateLayout, r.Date)
	if err != nil {
		return domerrors.New(domerrors.CodeValidation, "date must be YYYY-MM-DD")
	}
	r.TimeSlot = strings.TrimSpace(r.TimeSlot)
	if r.TimeSlot == "" {
		return domerrors.New(domerrors.CodeValidation, "time_slot is required")
	}
	return nil
}

func (r *ScheduleRoadTestRequest) ParsedDate() time.Time { return r.date }
