package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sarathi/internal/application/models"
	"sarathi/internal/application/service"
	"sarathi/internal/assessment"
	"sarathi/internal/audit"
	"sarathi/pkg/domerrors"
)

type stubService struct {
	registered   *service.RegisterInput
	app          *models.Application
	err          error
	scheduleDate time.Time
}

func (s *stubService) Register(_ context.Context, in service.RegisterInput) (*models.Application, error) {
	s.registered = &in
	return s.app, s.err
}

func (s *stubService) Get(context.Context, string) (*models.Application, error) {
	return s.app, s.err
}

func (s *stubService) ReserveSlots(_ context.Context, _ string, _, _ time.Time) (*models.Application, error) {
	return s.app, s.err
}

func (s *stubService) CompletePayment(context.Context, string, int) (*models.Application, error) {
	return s.app, s.err
}

func (s *stubService) StartAssessment(context.Context, string, assessment.Type) (*assessment.Paper, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &assessment.Paper{ID: uuid.New(), Type: assessment.TypeLearnerTest}, nil
}

func (s *stubService) SubmitAssessment(context.Context, string, assessment.Type, uuid.UUID, []assessment.Answer, time.Duration, int) (*service.SubmissionOutcome, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &service.SubmissionOutcome{Result: &assessment.Result{Score: 21, Total: 30, Passed: true}}, nil
}

func (s *stubService) ScheduleRoadTest(_ context.Context, _ string, date time.Time, _ string) (*models.Application, error) {
	s.scheduleDate = date
	return s.app, s.err
}

func (s *stubService) LatestAttempt(_ context.Context, _ string, typ assessment.Type) (*assessment.Attempt, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &assessment.Attempt{IdentityToken: "DL-1001", Type: typ, Number: 1, Score: 21, Total: 30, Passed: true}, nil
}

func (s *stubService) History(context.Context, string) ([]audit.Event, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []audit.Event{{IdentityToken: "DL-1001", Action: audit.ActionApplicationRegistered}}, nil
}

func newTestRouter(stub *stubService) chi.Router {
	r := chi.NewRouter()
	h := New(stub, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.Register(r)
	return r
}

func doJSON(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleRegister(t *testing.T) {
	stub := &stubService{app: &models.Application{IdentityToken: "DL-1001", Stage: models.StageRegistered}}
	router := newTestRouter(stub)

	rec := doJSON(t, router, http.MethodPost, "/applications", map[string]string{
		"identity_token":   "DL-1001",
		"phone":            "9876543210",
		"email":            "a@example.com",
		"pin_code":         "560001",
		"vehicle_category": "Two Wheeler",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, stub.registered)
	assert.Equal(t, "DL-1001", stub.registered.IdentityToken)
}

func TestHandleRegisterValidation(t *testing.T) {
	router := newTestRouter(&stubService{})

	cases := map[string]map[string]string{
		"short phone": {
			"identity_token": "DL-1001", "phone": "12345",
			"email": "a@example.com", "pin_code": "560001", "vehicle_category": "Two Wheeler",
		},
		"bad email": {
			"identity_token": "DL-1001", "phone": "9876543210",
			"email": "not-an-email", "pin_code": "560001", "vehicle_category": "Two Wheeler",
		},
		"bad pin": {
			"identity_token": "DL-1001", "phone": "9876543210",
			"email": "a@example.com", "pin_code": "12", "vehicle_category": "Two Wheeler",
		},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/applications", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleReserveSlotsBadDate(t *testing.T) {
	router := newTestRouter(&stubService{})

	rec := doJSON(t, router, http.MethodPost, "/applications/DL-1001/slots", map[string]string{
		"color_vision_date": "next tuesday",
		"learner_test_date": "2026-03-12",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetNotFound(t *testing.T) {
	stub := &stubService{err: domerrors.New(domerrors.CodeNotFound, "no application for this identity token")}
	router := newTestRouter(stub)

	rec := doJSON(t, router, http.MethodGet, "/applications/DL-9999/", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(domerrors.CodeNotFound), body["error"])
}

func TestHandleHistory(t *testing.T) {
	stub := &stubService{}
	router := newTestRouter(stub)

	rec := doJSON(t, router, http.MethodGet, "/applications/DL-1001/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var events []audit.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionApplicationRegistered, events[0].Action)
}

func TestHandleSubmitAssessment(t *testing.T) {
	stub := &stubService{}
	router := newTestRouter(stub)

	rec := doJSON(t, router, http.MethodPost, "/applications/DL-1001/assessments/learnerTest/submission", map[string]any{
		"paper_id":           uuid.New().String(),
		"answers":            []map[string]int{{"question_id": 1, "selected": 2}},
		"time_taken_seconds": 600,
		"violations":         0,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var outcome service.SubmissionOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	require.NotNil(t, outcome.Result)
	assert.True(t, outcome.Result.Passed)
}

func TestHandleLatestAttempt(t *testing.T) {
	stub := &stubService{}
	router := newTestRouter(stub)

	rec := doJSON(t, router, http.MethodGet, "/applications/DL-1001/assessments/learnerTest/latest", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var attempt assessment.Attempt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &attempt))
	assert.Equal(t, 1, attempt.Number)
	assert.True(t, attempt.Passed)
}

func TestHandleSubmitAssessmentUnknownType(t *testing.T) {
	router := newTestRouter(&stubService{})

	rec := doJSON(t, router, http.MethodPost, "/applications/DL-1001/assessments/juggling/submission", map[string]any{
		"paper_id": uuid.New().String(),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleScheduleRoadTestConflict(t *testing.T) {
	stub := &stubService{err: domerrors.New(domerrors.CodePrecondition, "cannot move from roadTestScheduled to roadTestScheduled")}
	router := newTestRouter(stub)

	rec := doJSON(t, router, http.MethodPost, "/applications/DL-1001/road-test", map[string]string{
		"date":      "2026-03-20",
		"time_slot": "10:00-11:00",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}
