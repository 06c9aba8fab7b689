// Package service implements the lifecycle gate: the applicant-facing state
// machine that orders registration, booking, payment, assessments, and the
// practical test. Every stage change funnels through the transition table on
// the aggregate; precondition failures happen before any mutation so the
// record and the ledgers never disagree.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"sarathi/internal/application/models"
	"sarathi/internal/assessment"
	"sarathi/internal/audit"
	capmodels "sarathi/internal/capacity/models"
	"sarathi/internal/identity"
	"sarathi/internal/platform/metrics"
	"sarathi/pkg/domerrors"
	"sarathi/pkg/platform/sentinel"
)

// ApplicationStore persists the aggregate.
type ApplicationStore interface {
	Create(ctx context.Context, app *models.Application) error
	Get(ctx context.Context, identityToken string) (*models.Application, error)
	ListByStage(ctx context.Context, stage models.Stage) ([]*models.Application, error)
	Update(ctx context.Context, app *models.Application) error
}

// CapacityLedger is the slot reservation port.
type CapacityLedger interface {
	Reserve(ctx context.Context, date time.Time, category capmodels.TestCategory, identityToken string) error
	Release(ctx context.Context, date time.Time, category capmodels.TestCategory, identityToken string) error
}

// AssessmentEngine samples papers, scores submissions, and allocates
// credential numbers.
type AssessmentEngine interface {
	IssuePaper(ctx context.Context, identityToken string, typ assessment.Type) (*assessment.Paper, error)
	Score(ctx context.Context, identityToken string, typ assessment.Type, paperID uuid.UUID, answers []assessment.Answer, timeTaken time.Duration, violations int) (*assessment.Result, error)
	IssueCredential(ctx context.Context) (*assessment.Credential, error)
	LatestAttempt(ctx context.Context, identityToken string, typ assessment.Type) (*assessment.Attempt, error)
}

// AuditPublisher records lifecycle actions and serves them back as an
// application's history.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
	History(ctx context.Context, identityToken string) ([]audit.Event, error)
}

// Service is the lifecycle gate.
type Service struct {
	store     ApplicationStore
	ledger    CapacityLedger
	engine    AssessmentEngine
	directory identity.Directory
	auditor   AuditPublisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the service clock, for window and expiry tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store ApplicationStore, ledger CapacityLedger, engine AssessmentEngine, directory identity.Directory, auditor AuditPublisher, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		ledger:    ledger,
		engine:    engine,
		directory: directory,
		auditor:   auditor,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterInput carries the applicant-supplied registration fields. Name,
// date of birth, gender, and address come from the identity directory, not
// the applicant.
type RegisterInput struct {
	IdentityToken   string
	Phone           string
	Email           string
	PINCode         string
	VehicleCategory string
}

// Register verifies the identity token against the directory, gates on the
// minimum age, and creates the application at the registered stage.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.Application, error) {
	category, err := models.ParseVehicleCategory(in.VehicleCategory)
	if err != nil {
		return nil, err
	}

	person, err := s.directory.Lookup(ctx, in.IdentityToken)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := identity.CheckEligibility(person, now); err != nil {
		return nil, err
	}

	app := models.NewApplication(person.IdentityToken, now)
	app.FullName = person.FullName
	app.DateOfBirth = person.DateOfBirth
	app.Gender = person.Gender
	app.Address = person.Address
	app.Phone = in.Phone
	app.Email = in.Email
	app.PINCode = in.PINCode
	app.Category = category

	if err := s.store.Create(ctx, app); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, domerrors.New(domerrors.CodeConflict, "an application already exists for this identity token")
		}
		return nil, domerrors.Wrap(err, domerrors.CodeInternal, "failed to create application")
	}

	if s.metrics != nil {
		s.metrics.ApplicationsRegistered.Inc()
	}
	s.emit(ctx, app, audit.ActionApplicationRegistered, "")
	s.logger.Info("application registered", "identity_token", app.IdentityToken, "category", category)
	return app, nil
}

// Get returns the full aggregate for the dashboard view.
func (s *Service) Get(ctx context.Context, identityToken string) (*models.Application, error) {
	return s.load(ctx, identityToken)
}

// ListByStage returns applications currently held at a stage, for the
// supervisor work queue.
func (s *Service) ListByStage(ctx context.Context, stage models.Stage) ([]*models.Application, error) {
	apps, err := s.store.ListByStage(ctx, stage)
	if err != nil {
		return nil, domerrors.Wrap(err, domerrors.CodeInternal, "failed to list applications")
	}
	return apps, nil
}

// History returns the recorded action trail for an application.
func (s *Service) History(ctx context.Context, identityToken string) ([]audit.Event, error) {
	if _, err := s.load(ctx, identityToken); err != nil {
		return nil, err
	}
	if s.auditor == nil {
		return []audit.Event{}, nil
	}
	events, err := s.auditor.History(ctx, identityToken)
	if err != nil {
		return nil, domerrors.Wrap(err, domerrors.CodeInternal, "failed to load history")
	}
	return events, nil
}

// ReserveSlots books the colour-vision and learner-test dates as one
// all-or-nothing operation. The colour-vision date must come strictly before
// the learner-test date. If the second reservation fails the first is
// released before the error returns.
func (s *Service) ReserveSlots(ctx context.Context, identityToken string, colorDate, learnerDate time.Time) (*models.Application, error) {
	app, err := s.load(ctx, identityToken)
	if err != nil {
		return nil, err
	}
	if err := app.CanAdvance(models.StageSlotsBooked); err != nil {
		return nil, err
	}
	if !colorDate.Before(learnerDate) {
		return nil, domerrors.New(domerrors.CodeValidation,
			"colour vision date must be strictly before the learner test date")
	}

	if err := s.ledger.Reserve(ctx, colorDate, capmodels.CategoryColorVision, identityToken); err != nil {
		return nil, err
	}
	if err := s.ledger.Reserve(ctx, learnerDate, capmodels.CategoryLearnerTest, identityToken); err != nil {
		if relErr := s.ledger.Release(ctx, colorDate, capmodels.CategoryColorVision, identityToken); relErr != nil {
			s.logger.Error("failed to release colour vision slot after companion failure",
				"identity_token", identityToken, "err", relErr)
		} else {
			s.emit(ctx, app, audit.ActionReservationReleased,
				fmt.Sprintf("colour vision %s released after learner reservation failed", capmodels.DayKey(colorDate)))
		}
		return nil, err
	}

	now := s.now()
	app.ColorVisionDate = &colorDate
	app.LearnerTestDate = &learnerDate
	app.ApplyAdvance(models.StageSlotsBooked, now)
	if err := s.store.Update(ctx, app); err != nil {
		return nil, domerrors.Wrap(err, domerrors.CodeInternal, "failed to save booked slots")
	}

	s.emit(ctx, app, audit.ActionSlotsReserved,
		fmt.Sprintf("colour vision %s, learner test %s", capmodels.DayKey(colorDate), capmodels.DayKey(learnerDate)))
	return app, nil
}

// CompletePayment records the external payment-completed signal. The amount
// must match the fee derived from the vehicle category.
func (s *Service) CompletePayment(ctx context.Context, identityToken string, amount int) (*models.Application, error) {
	app, err := s.load(ctx, identityToken)
	if err != nil {
		return nil, err
	}
	if err := app.CanAdvance(models.StagePaymentCompleted); err != nil {
		return nil, err
	}
	if fee := app.Category.Fee(); amount != fee {
		return nil, domerrors.Newf(domerrors.CodeValidation,
			"payment amount %d does not match the %s fee of %d", amount, app.Category, fee)
	}

	app.PaymentCompleted = true
	app.PaymentAmount = amount
	app.ApplyAdvance(models.StagePaymentCompleted, s.now())
	if err := s.store.Update(ctx, app); err != nil {
		return nil, domerrors.Wrap(err, domerrors.CodeInternal, "failed to save payment")
	}

	s.emit(ctx, app, audit.ActionPaymentCompleted, fmt.Sprintf("amount %d", amount))
	return app, nil
}

// StartAssessment issues a fresh paper once the prerequisite stage is
// reached. A passed assessment cannot be started again.
func (s *Service) StartAssessment(ctx context.Context, identityToken string, typ assessment.Type) (*assessment.Paper, error) {
	app, err := s.load(ctx, identityToken)
	if err != nil {
		return nil, err
	}
	if err := s.gateAssessment(app, typ); err != nil {
		return nil, err
	}
	return s.engine.IssuePaper(ctx, identityToken, typ)
}

// SubmissionOutcome is the result of an accepted assessment submission plus
// the credential, when the submission issued one.
type SubmissionOutcome struct {
	Result     *assessment.Result     `json:"result"`
	Credential *assessment.Credential `json:"credential,omitempty"`
	Stage      models.Stage           `json:"stage"`
}

// SubmitAssessment scores a submission and advances the stage on a pass. The
// stage gate runs before scoring, so an out-of-order submission never touches
// the attempt counter. A learner-test pass issues the credential.
func (s *Service) SubmitAssessment(ctx context.Context, identityToken string, typ assessment.Type, paperID uuid.UUID, answers []assessment.Answer, timeTaken time.Duration, violations int) (*SubmissionOutcome, error) {
	app, err := s.load(ctx, identityToken)
	if err != nil {
		return nil, err
	}
	if err := s.gateAssessment(app, typ); err != nil {
		return nil, err
	}

	result, err := s.engine.Score(ctx, identityToken, typ, paperID, answers, timeTaken, violations)
	if err != nil {
		return nil, err
	}

	now := s.now()
	outcome := &SubmissionOutcome{Result: result}
	switch typ {
	case assessment.TypeColorVision:
		app.ColorVisionScore = result.Score
		app.ColorVisionAttempts = result.AttemptNumber
		if result.Passed {
			app.ColorVisionPassed = true
			app.ApplyAdvance(models.StageColorVisionPassed, now)
		}
	case assessment.TypeLearnerTest:
		app.LearnerTestScore = result.Score
		app.LearnerTestAttempts = result.AttemptNumber
		if result.Passed {
			credential, err := s.engine.IssueCredential(ctx)
			if err != nil {
				return nil, err
			}
			app.LearnerTestPassed = true
			app.LearnerPassDate = &now
			app.CredentialNumber = credential.Number
			app.CredentialIssueDate = &credential.IssueDate
			app.CredentialExpiryDate = &credential.ExpiryDate
			app.ApplyAdvance(models.StageLearnerIssued, now)
			outcome.Credential = credential
			if s.metrics != nil {
				s.metrics.CredentialsIssued.Inc()
			}
			s.emit(ctx, app, audit.ActionCredentialIssued, credential.Number)
		}
	}

	if err := s.store.Update(ctx, app); err != nil {
		return nil, domerrors.Wrap(err, domerrors.CodeInternal, "failed to save assessment outcome")
	}

	if s.metrics != nil {
		s.metrics.AssessmentsScored.WithLabelValues(string(typ), outcomeLabel(result.Passed)).Inc()
	}
	s.emit(ctx, app, audit.ActionAssessmentScored,
		fmt.Sprintf("%s attempt %d scored %d/%d", typ, result.AttemptNumber, result.Score, result.Total))

	outcome.Stage = app.Stage
	return outcome, nil
}

// LatestAttempt returns the most recent recorded attempt of one assessment
// type for an application.
func (s *Service) LatestAttempt(ctx context.Context, identityToken string, typ assessment.Type) (*assessment.Attempt, error) {
	if _, err := s.load(ctx, identityToken); err != nil {
		return nil, err
	}
	return s.engine.LatestAttempt(ctx, identityToken, typ)
}

// ScheduleRoadTest books the practical test. The learner credential must be
// unexpired, the date must fall strictly after the learner pass date and
// within six months of issuance, and the applicant can hold at most one
// active schedule; the stage gate enforces the last rule.
func (s *Service) ScheduleRoadTest(ctx context.Context, identityToken string, date time.Time, timeSlot string) (*models.Application, error) {
	app, err := s.load(ctx, identityToken)
	if err != nil {
		return nil, err
	}
	if err := app.CanAdvance(models.StageRoadTestScheduled); err != nil {
		return nil, err
	}
	now := s.now()
	if app.CredentialExpired(now) {
		return nil, domerrors.New(domerrors.CodePrecondition, "learner credential has expired")
	}
	if app.LearnerPassDate == nil || !date.After(*app.LearnerPassDate) {
		return nil, domerrors.New(domerrors.CodePrecondition,
			"road test date must be after the learner test pass date")
	}
	if app.CredentialIssueDate == nil || date.After(app.CredentialIssueDate.AddDate(0, assessment.CredentialValidity, 0)) {
		return nil, domerrors.New(domerrors.CodePrecondition,
			"road test date is outside the credential validity window")
	}
	if timeSlot == "" {
		return nil, domerrors.New(domerrors.CodeValidation, "time slot is required")
	}

	if err := s.ledger.Reserve(ctx, date, capmodels.CategoryRoadTest, identityToken); err != nil {
		return nil, err
	}

	app.RoadTestDate = &date
	app.RoadTestSlot = timeSlot
	app.RoadTestVerified = false
	app.RoadTestResult = models.RoadTestPending
	app.ApplyAdvance(models.StageRoadTestScheduled, now)
	if err := s.store.Update(ctx, app); err != nil {
		return nil, domerrors.Wrap(err, domerrors.CodeInternal, "failed to save road test schedule")
	}

	s.emit(ctx, app, audit.ActionRoadTestScheduled,
		fmt.Sprintf("%s %s", capmodels.DayKey(date), timeSlot))
	return app, nil
}

// MarkRoadTestVerified advances the gate after a consumed one-time code.
func (s *Service) MarkRoadTestVerified(ctx context.Context, identityToken string) (*models.Application, error) {
	app, err := s.load(ctx, identityToken)
	if err != nil {
		return nil, err
	}
	if err := app.CanAdvance(models.StageRoadTestVerified); err != nil {
		return nil, err
	}

	app.RoadTestVerified = true
	app.ApplyAdvance(models.StageRoadTestVerified, s.now())
	if err := s.store.Update(ctx, app); err != nil {
		return nil, domerrors.Wrap(err, domerrors.CodeInternal, "failed to save verification")
	}
	return app, nil
}

// CompleteRoadTest records the evaluation outcome. A pass is terminal; a
// fail clears the schedule and returns the applicant to the issued-credential
// stage so a new test can be booked.
func (s *Service) CompleteRoadTest(ctx context.Context, identityToken string, aggregate int, percent float64, passed bool) (*models.Application, error) {
	app, err := s.load(ctx, identityToken)
	if err != nil {
		return nil, err
	}
	if app.Stage != models.StageRoadTestVerified {
		return nil, domerrors.Newf(domerrors.CodePrecondition,
			"evaluation requires a verified road test, application is at %s", app.Stage)
	}

	now := s.now()
	app.RoadTestAggregate = aggregate
	app.RoadTestPercent = percent
	app.RoadTestAttempts++
	if passed {
		app.RoadTestResult = models.RoadTestPassed
		app.ApplyAdvance(models.StageRoadTestPassed, now)
	} else {
		app.RoadTestResult = models.RoadTestFailed
		app.RoadTestDate = nil
		app.RoadTestSlot = ""
		app.RoadTestVerified = false
		app.ApplyAdvance(models.StageLearnerIssued, now)
	}

	if err := s.store.Update(ctx, app); err != nil {
		return nil, domerrors.Wrap(err, domerrors.CodeInternal, "failed to save evaluation outcome")
	}
	return app, nil
}

// gateAssessment maps an assessment type to the stage that must currently be
// held, and rejects re-submission of a passed assessment.
func (s *Service) gateAssessment(app *models.Application, typ assessment.Type) error {
	switch typ {
	case assessment.TypeColorVision:
		if app.ColorVisionPassed {
			return domerrors.New(domerrors.CodePrecondition, "colour vision assessment already passed")
		}
		if app.Stage != models.StagePaymentCompleted {
			return domerrors.Newf(domerrors.CodePrecondition,
				"colour vision assessment requires completed payment, application is at %s", app.Stage)
		}
	case assessment.TypeLearnerTest:
		if app.LearnerTestPassed {
			return domerrors.New(domerrors.CodePrecondition, "learner assessment already passed")
		}
		if app.Stage != models.StageColorVisionPassed {
			return domerrors.Newf(domerrors.CodePrecondition,
				"learner assessment requires a passed colour vision test, application is at %s", app.Stage)
		}
	default:
		return domerrors.Newf(domerrors.CodeValidation, "unknown assessment type %q", typ)
	}
	return nil
}

func (s *Service) load(ctx context.Context, identityToken string) (*models.Application, error) {
	app, err := s.store.Get(ctx, identityToken)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domerrors.New(domerrors.CodeNotFound, "no application for this identity token")
		}
		return nil, domerrors.Wrap(err, domerrors.CodeInternal, "failed to load application")
	}
	return app, nil
}

func (s *Service) emit(ctx context.Context, app *models.Application, action audit.Action, detail string) {
	if s.auditor == nil {
		return
	}
	err := s.auditor.Emit(ctx, audit.Event{
		Timestamp:     s.now(),
		IdentityToken: app.IdentityToken,
		AppNumber:     app.ID.String(),
		Action:        action,
		Stage:         string(app.Stage),
		Detail:        detail,
	})
	if err != nil {
		s.logger.Warn("audit emit failed", "action", action, "err", err)
	}
}

func outcomeLabel(passed bool) string {
	if passed {
		return "pass"
	}
	return "fail"
}
