package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/carezw/appointment-bot/internal/appointments"
	"github.com/carezw/appointment-bot/internal/whatsapp"
	"github.com/carezw/appointment-bot/pkg/logging"
)

// notifier is the outbound surface for approval notifications.
type notifier interface {
	SendText(ctx context.Context, to, body string) (*whatsapp.SendResult, error)
}

// AppointmentsHandler serves the staff report endpoints and the
// approval/update workflow.
type AppointmentsHandler struct {
	repo      *appointments.Repository
	reports   *appointments.Reports
	messenger notifier
	logger    *logging.Logger
	loc       *time.Location
}

func NewAppointmentsHandler(repo *appointments.Repository, reports *appointments.Reports,
	messenger notifier, loc *time.Location, logger *logging.Logger) *AppointmentsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &AppointmentsHandler{
		repo:      repo,
		reports:   reports,
		messenger: messenger,
		logger:    logger,
		loc:       loc,
	}
}

func (h *AppointmentsHandler) today() time.Time {
	now := time.Now().In(h.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.loc)
}

// ListAll returns every appointment with its reschedule, newest first.
func (h *AppointmentsHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	rows, err := h.reports.ListAll(r.Context())
	if err != nil {
		h.logger.Error("appointments list failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"appointments": rows})
}

func (h *AppointmentsHandler) CountAll(w http.ResponseWriter, r *http.Request) {
	h.writeCount(w, r, func(ctx context.Context) (int, error) {
		return h.reports.CountAll(ctx)
	})
}

func (h *AppointmentsHandler) CountPending(w http.ResponseWriter, r *http.Request) {
	h.writeCount(w, r, func(ctx context.Context) (int, error) {
		return h.reports.CountPending(ctx)
	})
}

func (h *AppointmentsHandler) CountToday(w http.ResponseWriter, r *http.Request) {
	h.writeCount(w, r, func(ctx context.Context) (int, error) {
		return h.reports.CountToday(ctx, h.today())
	})
}

func (h *AppointmentsHandler) writeCount(w http.ResponseWriter, r *http.Request, count func(context.Context) (int, error)) {
	n, err := count(r.Context())
	if err != nil {
		h.logger.Error("appointments count failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]int{"count": n})
}

// BookedSlots returns the taken times for ?date=YYYY-MM-DD.
func (h *AppointmentsHandler) BookedSlots(w http.ResponseWriter, r *http.Request) {
	date, err := time.ParseInLocation("2006-01-02", r.URL.Query().Get("date"), h.loc)
	if err != nil {
		http.Error(w, "date query parameter must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	slots, err := h.reports.BookedSlots(r.Context(), date)
	if err != nil {
		h.logger.Error("booked slots failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"date": date.Format("2006-01-02"), "slots": slots})
}

// WeekCalendar returns per-day counts for the week starting Monday of
// the current week, or of ?start=YYYY-MM-DD.
func (h *AppointmentsHandler) WeekCalendar(w http.ResponseWriter, r *http.Request) {
	start := h.today()
	if raw := r.URL.Query().Get("start"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, h.loc)
		if err != nil {
			http.Error(w, "start query parameter must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		start = parsed
	}
	// Snap to Monday.
	for start.Weekday() != time.Monday {
		start = start.AddDate(0, 0, -1)
	}
	days, err := h.reports.WeekCalendar(r.Context(), start, start.AddDate(0, 0, 7))
	if err != nil {
		h.logger.Error("week calendar failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"weekStart": start.Format("2006-01-02"), "days": days})
}

func (h *AppointmentsHandler) WeeklyCounts(w http.ResponseWriter, r *http.Request) {
	weeks, err := h.reports.WeeklyCounts(r.Context())
	if err != nil {
		h.logger.Error("weekly counts failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"weeks": weeks})
}

func (h *AppointmentsHandler) CountsByService(w http.ResponseWriter, r *http.Request) {
	services, err := h.reports.CountsByService(r.Context())
	if err != nil {
		h.logger.Error("service counts failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"services": services})
}

type appointmentUpdateRequest struct {
	FullName    *string `json:"fullName"`
	Gender      *string `json:"gender"`
	Service     *string `json:"service"`
	Phone       *string `json:"phone"`
	BookingDate *string `json:"bookingDate"`
	BookingTime *string `json:"bookingTime"`
	Status      *string `json:"status"`
}

// Update applies a partial staff update to an appointment. When the
// resulting status is approved, cancelled or rescheduled, exactly one
// notification goes out to the appointment's phone.
func (h *AppointmentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid appointment id", http.StatusBadRequest)
		return
	}
	var req appointmentUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	update := appointments.StaffUpdate{
		FullName:    req.FullName,
		Gender:      req.Gender,
		Phone:       req.Phone,
		BookingTime: req.BookingTime,
	}
	if req.Service != nil {
		service := appointments.Service(*req.Service)
		update.Service = &service
	}
	if req.BookingDate != nil {
		parsed, err := time.ParseInLocation("2006-01-02", *req.BookingDate, h.loc)
		if err != nil {
			http.Error(w, "bookingDate must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		update.BookingDate = &parsed
	}
	if req.Status != nil {
		status := appointments.Status(*req.Status)
		switch status {
		case appointments.StatusPending, appointments.StatusApproved,
			appointments.StatusCancelled, appointments.StatusRescheduled:
		default:
			http.Error(w, "invalid status", http.StatusBadRequest)
			return
		}
		update.Status = &status
	}

	appt, err := h.repo.ApplyStaffUpdate(r.Context(), id, update)
	if err != nil {
		if errors.Is(err, appointments.ErrNotFound) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		h.logger.Error("appointment update failed", "appointment_id", id.String(), "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	if req.Status != nil {
		h.notifyStatus(r.Context(), appt)
	}
	writeJSON(w, appt)
}

// notifyStatus sends the status-specific message. Send failures are
// logged only; the update already committed.
func (h *AppointmentsHandler) notifyStatus(ctx context.Context, appt *appointments.Appointment) {
	if h.messenger == nil {
		return
	}
	var body string
	switch appt.Status {
	case appointments.StatusApproved:
		body = fmt.Sprintf("Good news %s! Your %s appointment on %s at %s has been approved. See you then.",
			appt.FullName, appt.Service, appt.EffectiveDate().Format("2006-01-02"), appt.EffectiveTime())
	case appointments.StatusCancelled:
		body = fmt.Sprintf("Hello %s, your %s appointment on %s has been cancelled. Please contact us to rebook.",
			appt.FullName, appt.Service, appt.EffectiveDate().Format("2006-01-02"))
	case appointments.StatusRescheduled:
		body = fmt.Sprintf("Hello %s, your %s appointment has been moved to %s at %s.",
			appt.FullName, appt.Service, appt.EffectiveDate().Format("2006-01-02"), appt.EffectiveTime())
	default:
		return
	}
	if _, err := h.messenger.SendText(ctx, appt.Phone, body); err != nil {
		h.logger.Error("status notification failed",
			"appointment_id", appt.ID.String(), "status", string(appt.Status), "error", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
