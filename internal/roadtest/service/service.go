// Package service runs the verification and evaluation subflow: a one-time
// code re-checks the applicant's identity at the test centre, then a
// supervisor rates the drive across the fixed criteria sheet. Stage ordering
// stays with the lifecycle gate; this service owns the session and the sheet.
package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	appmodels "sarathi/internal/application/models"
	"sarathi/internal/audit"
	"sarathi/internal/platform/metrics"
	"sarathi/internal/roadtest"
	"sarathi/pkg/domerrors"
	"sarathi/pkg/platform/sentinel"
)

// SessionStore keeps one-time code sessions keyed by identity token. Expiry
// is checked here at read time; the store only needs retention.
type SessionStore interface {
	Put(ctx context.Context, identityToken string, session roadtest.Session) error
	Get(ctx context.Context, identityToken string) (*roadtest.Session, error)
	Delete(ctx context.Context, identityToken string) error
}

// Gate is the lifecycle surface the subflow drives.
type Gate interface {
	Get(ctx context.Context, identityToken string) (*appmodels.Application, error)
	ListByStage(ctx context.Context, stage appmodels.Stage) ([]*appmodels.Application, error)
	MarkRoadTestVerified(ctx context.Context, identityToken string) (*appmodels.Application, error)
	CompleteRoadTest(ctx context.Context, identityToken string, aggregate int, percent float64, passed bool) (*appmodels.Application, error)
}

// AuditPublisher records subflow actions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// SupervisorCredentials holds the configured supervisor login.
type SupervisorCredentials struct {
	ID           string
	PasswordHash []byte
}

// Service owns verification sessions and evaluations.
type Service struct {
	sessions   SessionStore
	gate       Gate
	auditor    AuditPublisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
	codeTTL    time.Duration
	signingKey []byte
	tokenTTL   time.Duration
	supervisor SupervisorCredentials
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the service clock, for expiry tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTokenTTL overrides the supervisor session lifetime.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) { s.tokenTTL = ttl }
}

func New(sessions SessionStore, gate Gate, auditor AuditPublisher, logger *slog.Logger, codeTTL time.Duration, signingKey string, supervisor SupervisorCredentials, opts ...Option) *Service {
	s := &Service{
		sessions:   sessions,
		gate:       gate,
		auditor:    auditor,
		logger:     logger,
		now:        time.Now,
		codeTTL:    codeTTL,
		signingKey: []byte(signingKey),
		tokenTTL:   12 * time.Hour,
		supervisor: supervisor,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateCode issues a fresh 6-digit one-time code for a scheduled road
// test. A new code replaces any outstanding one. The code is returned for
// display at the test centre; delivery to the applicant's phone is an
// external concern.
func (s *Service) GenerateCode(ctx context.Context, identityToken string) (*roadtest.Session, error) {
	app, err := s.gate.Get(ctx, identityToken)
	if err != nil {
		return nil, err
	}
	if app.Stage != appmodels.StageRoadTestScheduled {
		return nil, domerrors.Newf(domerrors.CodePrecondition,
			"verification requires a scheduled road test, application is at %s", app.Stage)
	}

	code, err := sixDigitCode()
	if err != nil {
		return nil, domerrors.Wrap(err, domerrors.CodeInternal, "failed to generate code")
	}
	session := roadtest.Session{Code: code, ExpiresAt: s.now().Add(s.codeTTL)}
	if err := s.sessions.Put(ctx, identityToken, session); err != nil {
		return nil, domerrors.Wrap(err, domerrors.CodeInternal, "failed to store code")
	}

	s.emit(ctx, app, audit.ActionOTPGenerated, "", "")
	s.logger.Info("one-time code generated", "identity_token", identityToken, "expires_at", session.ExpiresAt)
	return &session, nil
}

// VerifyCode consumes the outstanding code and advances the gate. A session
// is consumed exactly once: a matching code deletes it before the gate moves,
// an expired one is discarded, and a mismatch leaves it in place.
func (s *Service) VerifyCode(ctx context.Context, identityToken, code string) (*appmodels.Application, error) {
	session, err := s.sessions.Get(ctx, identityToken)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.countVerification("no_session")
			return nil, domerrors.New(domerrors.CodeInvalidCode, "no active code for this application")
		}
		return nil, domerrors.Wrap(err, domerrors.CodeInternal, "failed to load code session")
	}

	if session.Expired(s.now()) {
		if err := s.sessions.Delete(ctx, identityToken); err != nil {
			s.logger.Error("failed to discard expired session", "identity_token", identityToken, "err", err)
		}
		s.countVerification("expired")
		return nil, domerrors.New(domerrors.CodeExpiredToken, "one-time code has expired")
	}

	if subtle.ConstantTimeCompare([]byte(session.Code), []byte(code)) != 1 {
		s.countVerification("mismatch")
		return nil, domerrors.New(domerrors.CodeInvalidCode, "one-time code does not match")
	}

	if err := s.sessions.Delete(ctx, identityToken); err != nil {
		return nil, domerrors.Wrap(err, domerrors.CodeInternal, "failed to consume code session")
	}

	app, err := s.gate.MarkRoadTestVerified(ctx, identityToken)
	if err != nil {
		return nil, err
	}

	s.countVerification("success")
	s.emit(ctx, app, audit.ActionOTPVerified, "", "")
	return app, nil
}

// SubmitEvaluation scores a complete rating sheet and feeds the outcome back
// into the gate. The gate rejects a second submission because the stage has
// already moved past verified.
func (s *Service) SubmitEvaluation(ctx context.Context, identityToken string, ratings []roadtest.Rating, supervisorID string) (*roadtest.EvaluationResult, error) {
	result, err := roadtest.ScoreEvaluation(ratings)
	if err != nil {
		return nil, err
	}

	app, err := s.gate.CompleteRoadTest(ctx, identityToken, result.Aggregate, result.Percent, result.Passed)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		outcome := "fail"
		if result.Passed {
			outcome = "pass"
		}
		s.metrics.RoadTestsEvaluated.WithLabelValues(outcome).Inc()
	}
	s.emit(ctx, app, audit.ActionRoadTestEvaluated,
		fmt.Sprintf("aggregate %d/%d", result.Aggregate, result.MaxScore), supervisorID)
	s.logger.Info("road test evaluated",
		"identity_token", identityToken, "supervisor", supervisorID,
		"aggregate", result.Aggregate, "passed", result.Passed)
	return result, nil
}

// Login checks the supervisor credentials and signs a bearer token carrying
// the supervisor id as subject.
func (s *Service) Login(ctx context.Context, supervisorID, password string) (string, error) {
	idMatch := subtle.ConstantTimeCompare([]byte(supervisorID), []byte(s.supervisor.ID)) == 1
	pwErr := bcrypt.CompareHashAndPassword(s.supervisor.PasswordHash, []byte(password))
	if !idMatch || pwErr != nil {
		s.logger.Warn("supervisor login rejected", "supervisor", supervisorID)
		return "", domerrors.New(domerrors.CodeUnauthorized, "invalid supervisor credentials")
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   s.supervisor.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", domerrors.Wrap(err, domerrors.CodeInternal, "failed to sign supervisor token")
	}
	return token, nil
}

// Candidate is one row of the supervisor's work queue.
type Candidate struct {
	IdentityToken string     `json:"identity_token"`
	FullName      string     `json:"full_name"`
	Stage         string     `json:"stage"`
	RoadTestDate  *time.Time `json:"road_test_date,omitempty"`
	RoadTestSlot  string     `json:"road_test_slot,omitempty"`
}

// Candidates lists applicants awaiting verification and those verified and
// awaiting evaluation.
func (s *Service) Candidates(ctx context.Context) ([]Candidate, error) {
	var out []Candidate
	for _, stage := range []appmodels.Stage{appmodels.StageRoadTestScheduled, appmodels.StageRoadTestVerified} {
		apps, err := s.gate.ListByStage(ctx, stage)
		if err != nil {
			return nil, err
		}
		for _, app := range apps {
			out = append(out, Candidate{
				IdentityToken: app.IdentityToken,
				FullName:      app.FullName,
				Stage:         string(app.Stage),
				RoadTestDate:  app.RoadTestDate,
				RoadTestSlot:  app.RoadTestSlot,
			})
		}
	}
	return out, nil
}

func sixDigitCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func (s *Service) countVerification(outcome string) {
	if s.metrics != nil {
		s.metrics.OTPVerifications.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) emit(ctx context.Context, app *appmodels.Application, action audit.Action, detail, actor string) {
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
		Actor:         actor,
	})
	if err != nil {
		s.logger.Warn("audit emit failed", "action", action, "err", err)
	}
}
