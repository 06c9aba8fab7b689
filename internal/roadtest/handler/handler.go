package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	appmodels "sarathi/internal/application/models"
	"sarathi/internal/platform/middleware"
	"sarathi/internal/roadtest"
	"sarathi/internal/roadtest/service"
	"sarathi/pkg/domerrors"
	"sarathi/pkg/platform/httputil"
)

// Service is the verification and evaluation surface the handler consumes.
type Service interface {
	Login(ctx context.Context, supervisorID, password string) (string, error)
	Candidates(ctx context.Context) ([]service.Candidate, error)
	GenerateCode(ctx context.Context, identityToken string) (*roadtest.Session, error)
	VerifyCode(ctx context.Context, identityToken, code string) (*appmodels.Application, error)
	SubmitEvaluation(ctx context.Context, identityToken string, ratings []roadtest.Rating, supervisorID string) (*roadtest.EvaluationResult, error)
}

// Handler wires the supervisor endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the login route and the token-protected supervisor routes.
func (h *Handler) Register(r chi.Router, requireSupervisor func(http.Handler) http.Handler) {
	r.Post("/supervisor/login", h.HandleLogin)
	r.Group(func(r chi.Router) {
		r.Use(requireSupervisor)
		r.Get("/supervisor/criteria", h.HandleCriteria)
		r.Get("/supervisor/candidates", h.HandleCandidates)
		r.Route("/supervisor/candidates/{identityToken}", func(r chi.Router) {
			r.Post("/otp", h.HandleGenerateCode)
			r.Post("/otp/verification", h.HandleVerifyCode)
			r.Post("/evaluation", h.HandleSubmitEvaluation)
		})
	})
}

// LoginRequest is the body for POST /supervisor/login.
type LoginRequest struct {
	SupervisorID string `json:"supervisor_id"`
	Password     string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	r.SupervisorID = strings.TrimSpace(r.SupervisorID)
	if r.SupervisorID == "" || r.Password == "" {
		return domerrors.New(domerrors.CodeValidation, "supervisor_id and password are required")
	}
	return nil
}

// VerifyCodeRequest is the body for the verification call.
type VerifyCodeRequest struct {
	Code string `json:"code"`
}

func (r *VerifyCodeRequest) Validate() error {
	r.Code = strings.TrimSpace(r.Code)
	if len(r.Code) != 6 {
		return domerrors.New(domerrors.CodeValidation, "code must be 6 digits")
	}
	return nil
}

// EvaluationRequest is the body for the evaluation submission.
type EvaluationRequest struct {
	Ratings []roadtest.Rating `json:"ratings"`
}

func (r *EvaluationRequest) Validate() error {
	if len(r.Ratings) == 0 {
		return domerrors.New(domerrors.CodeValidation, "ratings are required")
	}
	return nil
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[LoginRequest](w, r)
	if !ok {
		return
	}

	token, err := h.service.Login(r.Context(), req.SupervisorID, req.Password)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) HandleCriteria(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"criteria": roadtest.Criteria})
}

func (h *Handler) HandleCandidates(w http.ResponseWriter, r *http.Request) {
	candidates, err := h.service.Candidates(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"candidates": candidates})
}

func (h *Handler) HandleGenerateCode(w http.ResponseWriter, r *http.Request) {
	identityToken := chi.URLParam(r, "identityToken")

	session, err := h.service.GenerateCode(r.Context(), identityToken)
	if err != nil {
		h.logger.Warn("code generation rejected", "identity_token", identityToken, "err", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"code":       session.Code,
		"expires_at": session.ExpiresAt,
	})
}

func (h *Handler) HandleVerifyCode(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[VerifyCodeRequest](w, r)
	if !ok {
		return
	}
	identityToken := chi.URLParam(r, "identityToken")

	app, err := h.service.VerifyCode(r.Context(), identityToken, req.Code)
	if err != nil {
		h.logger.Warn("code verification rejected", "identity_token", identityToken, "err", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"verified": true,
		"stage":    app.Stage,
	})
}

func (h *Handler) HandleSubmitEvaluation(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[EvaluationRequest](w, r)
	if !ok {
		return
	}
	identityToken := chi.URLParam(r, "identityToken")
	supervisorID, _ := middleware.SupervisorFrom(r.Context())

	result, err := h.service.SubmitEvaluation(r.Context(), identityToken, req.Ratings, supervisorID)
	if err != nil {
		h.logger.Warn("evaluation rejected",
			"identity_token", identityToken, "supervisor", supervisorID, "err", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
