// Package handlers exposes the appointment notification endpoints. Each
// handler performs one appointment read, renders localized mail, dispatches
// zero to two emails, and answers JSON. Handlers are stateless and never
// mutate the store; status transitions happen upstream before notification
// is requested.
//
// A missing mail credential downgrades sends to a logged warning while the
// response still reports success; an error from the mail API itself fails
// the whole request with a 500. Flagged for product sign-off in DESIGN.md.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/glowplan/notification-service/internal/email"
	"github.com/glowplan/notification-service/internal/model"
	"github.com/glowplan/notification-service/internal/render"
	"github.com/glowplan/notification-service/internal/storage"
	"github.com/glowplan/notification-service/libs/httpx"
)

// AppointmentStore is the read-only view of the booking data this service
// needs. *storage.AppointmentsRepository satisfies it; tests inject fakes.
type AppointmentStore interface {
	GetAppointment(ctx context.Context, id string) (*model.Appointment, error)
	GetEstablishment(ctx context.Context, id string) (*model.Establishment, error)
}

type Config struct {
	// FromAddress is the fixed branded sender identity,
	// e.g. "GlowPlan <notifications@glowplan.fr>".
	FromAddress string
}

type NotificationHandler struct {
	store  AppointmentStore
	sender email.Sender // nil when no mail credential is configured
	logger *slog.Logger
	cfg    Config
}

func NewNotificationHandler(store AppointmentStore, sender email.Sender, logger *slog.Logger, cfg Config) *NotificationHandler {
	return &NotificationHandler{
		store:  store,
		sender: sender,
		logger: logger,
		cfg:    cfg,
	}
}

func (h *NotificationHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/notifications/new-booking", h.NewBooking)
	mux.HandleFunc("/notifications/confirm", h.Confirm)
	mux.HandleFunc("/notifications/cancel", h.Cancel)
	mux.HandleFunc("/notifications/cancel-by-pro", h.CancelByPro)
	mux.HandleFunc("/notifications/update", h.Update)
}

type newBookingRequest struct {
	AppointmentID   string `json:"appointmentId"`
	EstablishmentID string `json:"establishmentId"`
	AutoConfirm     bool   `json:"autoConfirm"`
}

type appointmentRequest struct {
	AppointmentID string `json:"appointmentId"`
}

type cancelByProRequest struct {
	AppointmentID string `json:"appointmentId"`
	Reason        string `json:"reason"`
}

type dateChange struct {
	OldDate string `json:"oldDate"`
	NewDate string `json:"newDate"`
}

type timeChange struct {
	OldTime string `json:"oldTime"`
	NewTime string `json:"newTime"`
}

type serviceChange struct {
	OldService string `json:"oldService"`
	NewService string `json:"newService"`
}

type updateChanges struct {
	Date    *dateChange    `json:"date"`
	Time    *timeChange    `json:"time"`
	Service *serviceChange `json:"service"`
}

type updateRequest struct {
	AppointmentID string        `json:"appointmentId"`
	Changes       updateChanges `json:"changes"`
}

type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type confirmResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	EmailSent bool   `json:"emailSent"`
}

type newBookingResponse struct {
	Success               bool   `json:"success"`
	Message               string `json:"message"`
	EstablishmentNotified bool   `json:"establishmentNotified"`
	ClientNotified        bool   `json:"clientNotified"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NewBooking notifies the establishment of a fresh booking and, when the
// booking was auto-confirmed, also mails the client their confirmation.
// This is the one fan-out point in the pipeline.
func (h *NotificationHandler) NewBooking(w http.ResponseWriter, r *http.Request) {
	var req newBookingRequest
	if !h.decode(w, r, &req) {
		return
	}
	appt, ok := h.loadAppointment(w, r, req.AppointmentID)
	if !ok {
		return
	}

	establishmentID := strings.TrimSpace(req.EstablishmentID)
	if establishmentID == "" {
		h.writeError(w, http.StatusBadRequest, "establishmentId is required")
		return
	}
	est, err := h.store.GetEstablishment(r.Context(), establishmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			h.writeError(w, http.StatusNotFound, "establishment not found")
			return
		}
		h.internalError(w, r, "load establishment", err)
		return
	}

	d := render.DetailsFor(appt)
	d.Establishment = est.Name

	establishmentNotified := false
	if strings.TrimSpace(est.Email) == "" {
		h.logger.Warn("establishment has no email; skipping booking notice", "establishment_id", est.ID)
	} else {
		notice := render.EstablishmentNewBooking(d, render.ClientContact{
			Email:     appt.ClientEmail,
			Phone:     appt.ClientPhone,
			Instagram: appt.ClientInstagram,
		}, appt.Notes, req.AutoConfirm)
		establishmentNotified, err = h.dispatch(r.Context(), est.Email, notice)
		if err != nil {
			h.internalError(w, r, "send booking notice", err)
			return
		}
	}

	clientNotified := false
	if req.AutoConfirm && strings.TrimSpace(appt.ClientEmail) != "" {
		confirmation := render.ClientConfirmation(d)
		clientNotified, err = h.dispatch(r.Context(), appt.ClientEmail, confirmation)
		if err != nil {
			// No partial-success signaling: the booking notice above may
			// already have gone out, but the call still fails as a whole.
			h.internalError(w, r, "send booking confirmation", err)
			return
		}
	}

	h.writeJSON(w, http.StatusOK, newBookingResponse{
		Success:               true,
		Message:               "notifications de réservation traitées",
		EstablishmentNotified: establishmentNotified,
		ClientNotified:        clientNotified,
	})
}

// Confirm mails the client that their appointment is confirmed.
func (h *NotificationHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req appointmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	appt, ok := h.loadAppointment(w, r, req.AppointmentID)
	if !ok {
		return
	}
	if !h.requireClientEmail(w, appt) {
		return
	}

	msg := render.ClientConfirmation(render.DetailsFor(appt))
	sent, err := h.dispatch(r.Context(), appt.ClientEmail, msg)
	if err != nil {
		h.internalError(w, r, "send confirmation email", err)
		return
	}
	h.writeJSON(w, http.StatusOK, confirmResponse{
		Success:   true,
		Message:   "notification de confirmation traitée",
		EmailSent: sent,
	})
}

// Cancel notifies the establishment that the client cancelled.
func (h *NotificationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req appointmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	appt, ok := h.loadAppointment(w, r, req.AppointmentID)
	if !ok {
		return
	}

	est := appt.Establishment
	if est == nil || strings.TrimSpace(est.Email) == "" {
		h.logger.Warn("establishment has no email; skipping cancellation notice", "appointment_id", appt.ID)
	} else {
		msg := render.EstablishmentCancellation(render.DetailsFor(appt))
		if _, err := h.dispatch(r.Context(), est.Email, msg); err != nil {
			h.internalError(w, r, "send cancellation notice", err)
			return
		}
	}

	h.writeJSON(w, http.StatusOK, statusResponse{
		Success: true,
		Message: "annulation notifiée à l'établissement",
	})
}

// CancelByPro mails the client that the establishment cancelled, with an
// optional free-text reason.
func (h *NotificationHandler) CancelByPro(w http.ResponseWriter, r *http.Request) {
	var req cancelByProRequest
	if !h.decode(w, r, &req) {
		return
	}
	appt, ok := h.loadAppointment(w, r, req.AppointmentID)
	if !ok {
		return
	}
	if !h.requireClientEmail(w, appt) {
		return
	}

	msg := render.ClientCancellation(render.DetailsFor(appt), strings.TrimSpace(req.Reason), establishmentContact(appt))
	if _, err := h.dispatch(r.Context(), appt.ClientEmail, msg); err != nil {
		h.internalError(w, r, "send cancellation email", err)
		return
	}
	h.writeJSON(w, http.StatusOK, statusResponse{
		Success: true,
		Message: "annulation notifiée au client",
	})
}

// Update mails the client the list of changed appointment fields.
func (h *NotificationHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !h.decode(w, r, &req) {
		return
	}
	appt, ok := h.loadAppointment(w, r, req.AppointmentID)
	if !ok {
		return
	}
	if !h.requireClientEmail(w, appt) {
		return
	}

	changes := render.Changes{}
	if c := req.Changes.Date; c != nil {
		changes.Date = &render.FieldChange{Old: c.OldDate, New: c.NewDate}
	}
	if c := req.Changes.Time; c != nil {
		changes.Time = &render.FieldChange{Old: c.OldTime, New: c.NewTime}
	}
	if c := req.Changes.Service; c != nil {
		changes.Service = &render.FieldChange{Old: c.OldService, New: c.NewService}
	}

	msg := render.ClientModification(render.DetailsFor(appt), changes, establishmentContact(appt))
	if _, err := h.dispatch(r.Context(), appt.ClientEmail, msg); err != nil {
		h.internalError(w, r, "send modification email", err)
		return
	}
	h.writeJSON(w, http.StatusOK, statusResponse{
		Success: true,
		Message: "modification notifiée au client",
	})
}

func (h *NotificationHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.internalError(w, r, "decode request body", err)
		return false
	}
	return true
}

func (h *NotificationHandler) loadAppointment(w http.ResponseWriter, r *http.Request, id string) (*model.Appointment, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "appointmentId is required")
		return nil, false
	}
	appt, err := h.store.GetAppointment(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			h.writeError(w, http.StatusNotFound, "appointment not found")
			return nil, false
		}
		h.internalError(w, r, "load appointment", err)
		return nil, false
	}
	return appt, true
}

func (h *NotificationHandler) requireClientEmail(w http.ResponseWriter, appt *model.Appointment) bool {
	if strings.TrimSpace(appt.ClientEmail) == "" {
		h.writeError(w, http.StatusBadRequest, "no client email on appointment")
		return false
	}
	return true
}

// dispatch sends one email, or skips the send with a warning when no mail
// credential is configured. The bool reports whether mail actually left.
func (h *NotificationHandler) dispatch(ctx context.Context, to string, msg render.Email) (bool, error) {
	if h.sender == nil {
		h.logger.Warn("mail credential not configured; skipping send", "to", to, "subject", msg.Subject)
		return false, nil
	}
	err := h.sender.Send(ctx, email.Message{
		From:    h.cfg.FromAddress,
		To:      to,
		Subject: msg.Subject,
		HTML:    msg.HTML,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func establishmentContact(appt *model.Appointment) render.EstablishmentContact {
	if appt.Establishment == nil {
		return render.EstablishmentContact{}
	}
	return render.EstablishmentContact{
		Phone: appt.Establishment.Phone,
		Email: appt.Establishment.Email,
	}
}

func (h *NotificationHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (h *NotificationHandler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Success: false, Error: msg})
}

// internalError logs the cause server-side and answers a generic 500; the
// detail never reaches the client.
func (h *NotificationHandler) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error(op+" failed",
		"err", err,
		"request_id", httpx.RequestIDFromContext(r.Context()),
		"path", r.URL.Path,
	)
	h.writeError(w, http.StatusInternalServerError, "internal error")
}
