package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPSender sends email via unauthenticated SMTP (Mailpit-compatible).
// Used for local development instead of the hosted mail API.
type SMTPSender struct {
	addr string
}

func NewSMTPSender(host string, port string) *SMTPSender {
	host = strings.TrimSpace(host)
	port = strings.TrimSpace(port)
	return &SMTPSender{
		addr: fmt.Sprintf("%s:%s", host, port),
	}
}

func (s *SMTPSender) ProviderID() string {
	return "smtp"
}

func (s *SMTPSender) Send(_ context.Context, msg Message) error {
	raw := buildMessage(msg)
	return smtp.SendMail(s.addr, nil, envelopeAddress(msg.From), []string{msg.To}, []byte(raw))
}

func buildMessage(msg Message) string {
	// Minimal RFC 5322 message; enough for Mailpit and most SMTP relays.
	return fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=utf-8\r\n\r\n%s\r\n",
		msg.From,
		msg.To,
		msg.Subject,
		msg.HTML,
	)
}

// envelopeAddress strips an optional display name from a From header value,
// e.g. "GlowPlan <notifications@glowplan.fr>" -> "notifications@glowplan.fr".
func envelopeAddress(from string) string {
	open := strings.LastIndex(from, "<")
	end := strings.LastIndex(from, ">")
	if open >= 0 && end > open {
		return from[open+1 : end]
	}
	return strings.TrimSpace(from)
}
