package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"sarathi/internal/application/models"
	"sarathi/internal/application/service"
	"sarathi/internal/assessment"
	"sarathi/internal/audit"
	"sarathi/pkg/platform/httputil"
)

// Service is the lifecycle gate surface the handler consumes.
type Service interface {
	Register(ctx context.Context, in service.RegisterInput) (*models.Application, error)
	Get(ctx context.Context, identityToken string) (*models.Application, error)
	ReserveSlots(ctx context.Context, identityToken string, colorDate, learnerDate time.Time) (*models.Application, error)
	CompletePayment(ctx context.Context, identityToken string, amount int) (*models.Application, error)
	StartAssessment(ctx context.Context, identityToken string, typ assessment.Type) (*assessment.Paper, error)
	SubmitAssessment(ctx context.Context, identityToken string, typ assessment.Type, paperID uuid.UUID, answers []assessment.Answer, timeTaken time.Duration, violations int) (*service.SubmissionOutcome, error)
	ScheduleRoadTest(ctx context.Context, identityToken string, date time.Time, timeSlot string) (*models.Application, error)
	LatestAttempt(ctx context.Context, identityToken string, typ assessment.Type) (*assessment.Attempt, error)
	History(ctx context.Context, identityToken string) ([]audit.Event, error)
}

// Handler wires lifecycle endpoints to the gate service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts application endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/applications", h.HandleRegister)
	r.Route("/applications/{identityToken}", func(r chi.Router) {
		r.Get("/", h.HandleGet)
		r.Get("/history", h.HandleHistory)
		r.Post("/slots", h.HandleReserveSlots)
		r.Post("/payment", h.HandlePayment)
		r.Post("/assessments/{type}", h.HandleStartAssessment)
		r.Post("/assessments/{type}/submission", h.HandleSubmitAssessment)
		r.Get("/assessments/{type}/latest", h.HandleLatestAttempt)
		r.Post("/road-test", h.HandleScheduleRoadTest)
	})
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r)
	if !ok {
		return
	}

	app, err := h.service.Register(r.Context(), service.RegisterInput{
		IdentityToken:   req.IdentityToken,
		Phone:           req.Phone,
		Email:           req.Email,
		PINCode:         req.PINCode,
		VehicleCategory: req.VehicleCategory,
	})
	if err != nil {
		h.logger.Warn("registration rejected", "identity_token", req.IdentityToken, "err", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, app)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	app, err := h.service.Get(r.Context(), chi.URLParam(r, "identityToken"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, app)
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.History(r.Context(), chi.URLParam(r, "identityToken"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, events)
}

func (h *Handler) HandleReserveSlots(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[ReserveSlotsRequest](w, r)
	if !ok {
		return
	}
	identityToken := chi.URLParam(r, "identityToken")

	app, err := h.service.ReserveSlots(r.Context(), identityToken, req.ColorDate(), req.LearnerDate())
	if err != nil {
		h.logger.Warn("slot booking rejected", "identity_token", identityToken, "err", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, app)
}

func (h *Handler) HandlePayment(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[PaymentRequest](w, r)
	if !ok {
		return
	}

	app, err := h.service.CompletePayment(r.Context(), chi.URLParam(r, "identityToken"), req.Amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, app)
}

func (h *Handler) HandleStartAssessment(w http.ResponseWriter, r *http.Request) {
	typ, err := assessment.ParseType(chi.URLParam(r, "type"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	paper, err := h.service.StartAssessment(r.Context(), chi.URLParam(r, "identityToken"), typ)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, paper)
}

func (h *Handler) HandleSubmitAssessment(w http.ResponseWriter, r *http.Request) {
	typ, err := assessment.ParseType(chi.URLParam(r, "type"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[SubmitAssessmentRequest](w, r)
	if !ok {
		return
	}
	identityToken := chi.URLParam(r, "identityToken")

	outcome, err := h.service.SubmitAssessment(r.Context(), identityToken, typ,
		req.ParsedPaperID(), req.Answers, req.TimeTaken(), req.Violations)
	if err != nil {
		h.logger.Warn("assessment submission rejected",
			"identity_token", identityToken, "type", typ, "err", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, outcome)
}

func (h *Handler) HandleLatestAttempt(w http.ResponseWriter, r *http.Request) {
	typ, err := assessment.ParseType(chi.URLParam(r, "type"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	attempt, err := h.service.LatestAttempt(r.Context(), chi.URLParam(r, "identityToken"), typ)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, attempt)
}

func (h *Handler) HandleScheduleRoadTest(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[ScheduleRoadTestRequest](w, r)
	if !ok {
		return
	}
	identityToken := chi.URLParam(r, "identityToken")

	app, err := h.service.ScheduleRoadTest(r.Context(), identityToken, req.ParsedDate(), req.TimeSlot)
	if err != nil {
		h.logger.Warn("road test scheduling rejected", "identity_token", identityToken, "err", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, app)
}
