package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glowplan/notification-service/internal/email"
	"github.com/glowplan/notification-service/internal/model"
	"github.com/jackc/pgx/v5"
)

type fakeStore struct {
	appointments   map[string]*model.Appointment
	establishments map[string]*model.Establishment
}

func (s *fakeStore) GetAppointment(_ context.Context, id string) (*model.Appointment, error) {
	appt, ok := s.appointments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return appt, nil
}

func (s *fakeStore) GetEstablishment(_ context.Context, id string) (*model.Establishment, error) {
	est, ok := s.establishments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return est, nil
}

type fakeSender struct {
	sent []email.Message
	err  error
}

func (s *fakeSender) Send(_ context.Context, msg email.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeSender) ProviderID() string { return "fake" }

func fixtureEstablishment() *model.Establishment {
	return &model.Establishment{
		ID:    "E1",
		Name:  "Salon Belle Époque",
		Email: "contact@belle-epoque.fr",
		Phone: "01 23 45 67 89",
	}
}

func fixtureAppointment() *model.Appointment {
	price := 45.0
	return &model.Appointment{
		ID:              "A1",
		StartTime:       time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC),
		EndTime:         time.Date(2025, 3, 10, 15, 15, 0, 0, time.UTC),
		ClientFirstName: "Marie",
		ClientLastName:  "Dupont",
		ClientEmail:     "marie@example.com",
		ClientPhone:     "06 12 34 56 78",
		Service:         &model.Service{Name: "Coupe", Price: &price},
		Establishment:   fixtureEstablishment(),
	}
}

func newTestHandler(sender email.Sender) (*NotificationHandler, *fakeStore, *bytes.Buffer) {
	store := &fakeStore{
		appointments:   map[string]*model.Appointment{"A1": fixtureAppointment()},
		establishments: map[string]*model.Establishment{"E1": fixtureEstablishment()},
	}
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))
	h := NewNotificationHandler(store, sender, logger, Config{
		FromAddress: "GlowPlan <notifications@glowplan.fr>",
	})
	return h, store, &logBuf
}

func post(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/notifications/test", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, rec.Body.String())
	}
	return out
}

func TestConfirm_UnknownAppointment(t *testing.T) {
	sender := &fakeSender{}
	h, _, _ := newTestHandler(sender)

	rec := post(t, h.Confirm, `{"appointmentId":"nope"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("expected no mail, got %d", len(sender.sent))
	}
}

func TestConfirm_MissingClientEmail(t *testing.T) {
	sender := &fakeSender{}
	h, store, _ := newTestHandler(sender)
	store.appointments["A1"].ClientEmail = ""

	rec := post(t, h.Confirm, `{"appointmentId":"A1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("expected no mail, got %d", len(sender.sent))
	}
	body := decodeBody(t, rec)
	if !strings.Contains(body["error"].(string), "client email") {
		t.Fatalf("unexpected error message %v", body["error"])
	}
}

func TestConfirm_NoCredentialReportsSuccess(t *testing.T) {
	h, _, logBuf := newTestHandler(nil)

	rec := post(t, h.Confirm, `{"appointmentId":"A1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Fatal("expected success")
	}
	if body["emailSent"] != false {
		t.Fatal("expected emailSent=false")
	}
	if !strings.Contains(logBuf.String(), "mail credential not configured") {
		t.Fatal("expected a warning about the missing credential")
	}
}

func TestConfirm_SendsToClient(t *testing.T) {
	sender := &fakeSender{}
	h, _, _ := newTestHandler(sender)

	rec := post(t, h.Confirm, `{"appointmentId":"A1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["emailSent"] != true {
		t.Fatal("expected emailSent=true")
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.To != "marie@example.com" {
		t.Fatalf("unexpected recipient %q", msg.To)
	}
	if msg.From != "GlowPlan <notifications@glowplan.fr>" {
		t.Fatalf("unexpected sender %q", msg.From)
	}
	if !strings.Contains(msg.Subject, "Salon Belle Époque") {
		t.Fatalf("subject missing establishment name: %q", msg.Subject)
	}
	if !strings.Contains(msg.HTML, "14:30 - 15:15") || !strings.Contains(msg.HTML, "45€") {
		t.Fatal("body missing time range or price")
	}
}

func TestConfirm_SendFailureIsInternal(t *testing.T) {
	sender := &fakeSender{err: errors.New("mail api down")}
	h, _, _ := newTestHandler(sender)

	rec := post(t, h.Confirm, `{"appointmentId":"A1"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "internal error" {
		t.Fatalf("cause must not leak to the client, got %v", body["error"])
	}
}

func TestConfirm_RejectsGet(t *testing.T) {
	h, _, _ := newTestHandler(&fakeSender{})
	req := httptest.NewRequest(http.MethodGet, "/notifications/confirm", nil)
	rec := httptest.NewRecorder()
	h.Confirm(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestNewBooking_EstablishmentOnly(t *testing.T) {
	sender := &fakeSender{}
	h, _, _ := newTestHandler(sender)

	rec := post(t, h.NewBooking, `{"appointmentId":"A1","establishmentId":"E1","autoConfirm":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["establishmentNotified"] != true || body["clientNotified"] != false {
		t.Fatalf("unexpected flags: %v", body)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(sender.sent))
	}
	if sender.sent[0].To != "contact@belle-epoque.fr" {
		t.Fatalf("unexpected recipient %q", sender.sent[0].To)
	}
	if !strings.Contains(sender.sent[0].Subject, "Nouvelle demande de réservation") {
		t.Fatalf("unexpected subject %q", sender.sent[0].Subject)
	}
}

func TestNewBooking_AutoConfirmFanOut(t *testing.T) {
	sender := &fakeSender{}
	h, _, _ := newTestHandler(sender)

	rec := post(t, h.NewBooking, `{"appointmentId":"A1","establishmentId":"E1","autoConfirm":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["establishmentNotified"] != true || body["clientNotified"] != true {
		t.Fatalf("unexpected flags: %v", body)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("expected 2 mails, got %d", len(sender.sent))
	}
	if sender.sent[0].To != "contact@belle-epoque.fr" || sender.sent[1].To != "marie@example.com" {
		t.Fatalf("unexpected recipients %q, %q", sender.sent[0].To, sender.sent[1].To)
	}
}

func TestNewBooking_UnknownEstablishment(t *testing.T) {
	sender := &fakeSender{}
	h, _, _ := newTestHandler(sender)

	rec := post(t, h.NewBooking, `{"appointmentId":"A1","establishmentId":"nope"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("expected no mail, got %d", len(sender.sent))
	}
}

func TestNewBooking_MissingClientEmailStillNotifiesEstablishment(t *testing.T) {
	sender := &fakeSender{}
	h, store, _ := newTestHandler(sender)
	store.appointments["A1"].ClientEmail = ""

	rec := post(t, h.NewBooking, `{"appointmentId":"A1","establishmentId":"E1","autoConfirm":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["establishmentNotified"] != true || body["clientNotified"] != false {
		t.Fatalf("unexpected flags: %v", body)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(sender.sent))
	}
}

func TestCancel_NotifiesEstablishment(t *testing.T) {
	sender := &fakeSender{}
	h, _, _ := newTestHandler(sender)

	rec := post(t, h.Cancel, `{"appointmentId":"A1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.To != "contact@belle-epoque.fr" {
		t.Fatalf("unexpected recipient %q", msg.To)
	}
	if !strings.Contains(msg.Subject, "Annulation") {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
}

func TestCancel_NoEstablishmentEmailSkipsSend(t *testing.T) {
	sender := &fakeSender{}
	h, store, logBuf := newTestHandler(sender)
	store.appointments["A1"].Establishment.Email = ""

	rec := post(t, h.Cancel, `{"appointmentId":"A1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("expected no mail, got %d", len(sender.sent))
	}
	if !strings.Contains(logBuf.String(), "skipping cancellation notice") {
		t.Fatal("expected a warning about the missing establishment email")
	}
}

func TestCancelByPro_IncludesReason(t *testing.T) {
	sender := &fakeSender{}
	h, _, _ := newTestHandler(sender)

	rec := post(t, h.CancelByPro, `{"appointmentId":"A1","reason":"Congés exceptionnels"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.To != "marie@example.com" {
		t.Fatalf("unexpected recipient %q", msg.To)
	}
	if !strings.Contains(msg.HTML, "Congés exceptionnels") {
		t.Fatal("body missing cancellation reason")
	}
}

func TestCancelByPro_MissingClientEmail(t *testing.T) {
	sender := &fakeSender{}
	h, store, _ := newTestHandler(sender)
	store.appointments["A1"].ClientEmail = ""

	rec := post(t, h.CancelByPro, `{"appointmentId":"A1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("expected no mail, got %d", len(sender.sent))
	}
}

func TestUpdate_DateChangeOnly(t *testing.T) {
	sender := &fakeSender{}
	h, _, _ := newTestHandler(sender)

	rec := post(t, h.Update, `{"appointmentId":"A1","changes":{"date":{"oldDate":"10 mars","newDate":"12 mars"}}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(sender.sent))
	}
	html := sender.sent[0].HTML
	if got := strings.Count(html, "<li>"); got != 1 {
		t.Fatalf("expected exactly 1 change entry, got %d", got)
	}
	if !strings.Contains(html, "<li>Date : 10 mars → 12 mars</li>") {
		t.Fatal("body missing the date change entry")
	}
}

func TestUpdate_MissingClientEmail(t *testing.T) {
	sender := &fakeSender{}
	h, store, _ := newTestHandler(sender)
	store.appointments["A1"].ClientEmail = ""

	rec := post(t, h.Update, `{"appointmentId":"A1","changes":{}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("expected no mail, got %d", len(sender.sent))
	}
}
