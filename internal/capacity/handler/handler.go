package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"sarathi/internal/capacity/models"
	"sarathi/internal/platform/middleware"
	"sarathi/pkg/domerrors"
	"sarathi/pkg/platform/httputil"
)

const dateLayout = "2006-01-02"

// Service is the ledger surface the handler consumes.
type Service interface {
	CheckAvailability(ctx context.Context, date time.Time, category models.TestCategory) (*models.Availability, error)
	Calendar(ctx context.Context, from, to time.Time) ([]models.DayStatus, error)
	MarkHoliday(ctx context.Context, date time.Time, reason, actor string) error
}

// Handler wires the availability and holiday endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the public availability routes and the supervisor-protected
// holiday route.
func (h *Handler) Register(r chi.Router, requireSupervisor func(http.Handler) http.Handler) {
	r.Get("/slots/availability", h.HandleAvailability)
	r.Get("/slots/calendar", h.HandleCalendar)
	r.Group(func(r chi.Router) {
		r.Use(requireSupervisor)
		r.Post("/slots/holiday", h.HandleMarkHoliday)
	})
}

func (h *Handler) HandleAvailability(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r.URL.Query().Get("date"), "date")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	category, err := models.ParseTestCategory(r.URL.Query().Get("category"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	availability, err := h.service.CheckAvailability(r.Context(), date, category)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, availability)
}

func (h *Handler) HandleCalendar(w http.ResponseWriter, r *http.Request) {
	from, err := parseDate(r.URL.Query().Get("from"), "from")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	to, err := parseDate(r.URL.Query().Get("to"), "to")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	days, err := h.service.Calendar(r.Context(), from, to)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, days)
}

// MarkHolidayRequest is the body for POST /slots/holiday.
type MarkHolidayRequest struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

func (r *MarkHolidayRequest) Validate() error {
	r.Reason = strings.TrimSpace(r.Reason)
	if _, err := time.Parse(dateLayout, r.Date); err != nil {
		return domerrors.New(domerrors.CodeValidation, "date must be YYYY-MM-DD")
	}
	if r.Reason == "" {
		return domerrors.New(domerrors.CodeValidation, "reason is required")
	}
	return nil
}

func (r *MarkHolidayRequest) ParsedDate() time.Time {
	d, _ := time.Parse(dateLayout, r.Date)
	return d
}

func (h *Handler) HandleMarkHoliday(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[MarkHolidayRequest](w, r)
	if !ok {
		return
	}
	actor, _ := middleware.SupervisorFrom(r.Context())

	if err := h.service.MarkHoliday(r.Context(), req.ParsedDate(), req.Reason, actor); err != nil {
		h.logger.Warn("holiday rejected", "date", req.Date, "err", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"date": req.Date, "reason": req.Reason})
}

func parseDate(raw, field string) (time.Time, error) {
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, domerrors.Newf(domerrors.CodeValidation, "%s must be YYYY-MM-DD", field)
	}
	return d, nil
}
