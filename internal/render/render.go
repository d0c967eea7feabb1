// Package render produces the localized subject lines and self-contained
// HTML bodies for outbound appointment notifications. Every function is
// pure: the same inputs always produce byte-identical output.
package render

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/glowplan/notification-service/internal/model"
)

type Email struct {
	Subject string
	HTML    string
}

// Details is the structured recap block shared by every intent.
type Details struct {
	ClientName    string
	Establishment string
	Service       string
	Date          string
	TimeRange     string
	Price         string
}

// DetailsFor derives the display strings for one appointment snapshot.
func DetailsFor(appt *model.Appointment) Details {
	establishment := ""
	if appt.Establishment != nil {
		establishment = appt.Establishment.Name
	}
	return Details{
		ClientName:    appt.ClientDisplayName(),
		Establishment: establishment,
		Service:       appt.ServiceName(),
		Date:          FormatDateFull(appt.StartTime),
		TimeRange:     FormatTime(appt.StartTime) + " - " + FormatTime(appt.EndTime),
		Price:         FormatPrice(appt.ServicePrice()),
	}
}

type FieldChange struct {
	Old string
	New string
}

// Changes carries the before/after pairs announced in a modification mail.
// Nil fields are omitted from the rendered list.
type Changes struct {
	Date    *FieldChange
	Time    *FieldChange
	Service *FieldChange
}

func (c Changes) Items() []string {
	var items []string
	if c.Date != nil {
		items = append(items, fmt.Sprintf("Date : %s → %s", c.Date.Old, c.Date.New))
	}
	if c.Time != nil {
		items = append(items, fmt.Sprintf("Heure : %s → %s", c.Time.Old, c.Time.New))
	}
	if c.Service != nil {
		items = append(items, fmt.Sprintf("Prestation : %s → %s", c.Service.Old, c.Service.New))
	}
	return items
}

type EstablishmentContact struct {
	Phone string
	Email string
}

type ClientContact struct {
	Email     string
	Phone     string
	Instagram string
}

const (
	accentConfirm = "#16a34a"
	accentCancel  = "#dc2626"
	accentModify  = "#d97706"
	accentNeutral = "#4b5563"
)

type emailView struct {
	Title        string
	Accent       string
	Heading      string
	Greeting     string
	Intro        string
	Reason       string
	Changes      []string
	Details      Details
	ShowClient   bool
	Notes        string
	ContactLines []string
}

var emailTmpl = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html lang="fr">
<head>
<meta charset="UTF-8">
<title>{{.Title}}</title>
</head>
<body style="margin:0;padding:0;font-family:Arial,Helvetica,sans-serif;background-color:#f6f4f1;">
<table role="presentation" width="100%" cellpadding="0" cellspacing="0">
<tr><td align="center" style="padding:32px 16px;">
<table role="presentation" width="600" cellpadding="0" cellspacing="0" style="max-width:600px;background-color:#ffffff;border-radius:12px;overflow:hidden;">
<tr><td style="background-color:#231c2b;padding:24px 32px;text-align:center;">
<span style="color:#ffffff;font-size:24px;font-weight:bold;letter-spacing:2px;">GlowPlan</span>
</td></tr>
<tr><td style="padding:32px;">
<h1 style="margin:0 0 16px;font-size:20px;color:{{.Accent}};">{{.Heading}}</h1>
<p style="margin:0 0 8px;color:#374151;font-size:15px;line-height:1.6;">Bonjour {{.Greeting}},</p>
<p style="margin:0 0 24px;color:#374151;font-size:15px;line-height:1.6;">{{.Intro}}</p>
{{if .Reason}}<p style="margin:0 0 24px;color:#374151;font-size:15px;line-height:1.6;"><strong>Motif :</strong> {{.Reason}}</p>
{{end}}{{if .Changes}}<ul style="margin:0 0 24px;padding-left:20px;color:#374151;font-size:15px;line-height:1.8;">
{{range .Changes}}<li>{{.}}</li>
{{end}}</ul>
{{end}}<table role="presentation" width="100%" cellpadding="0" cellspacing="0" style="background-color:#faf8f5;border-left:4px solid {{.Accent}};margin:0 0 24px;">
<tr><td style="padding:16px 20px;color:#374151;font-size:14px;line-height:1.9;">
{{if .Details.Establishment}}<strong>Établissement :</strong> {{.Details.Establishment}}<br>
{{end}}{{if .ShowClient}}<strong>Client :</strong> {{.Details.ClientName}}<br>
{{end}}<strong>Prestation :</strong> {{.Details.Service}}<br>
<strong>Date :</strong> {{.Details.Date}}<br>
<strong>Heure :</strong> {{.Details.TimeRange}}<br>
<strong>Prix :</strong> {{.Details.Price}}
</td></tr>
</table>
{{if .Notes}}<p style="margin:0 0 16px;color:#374151;font-size:14px;line-height:1.6;"><strong>Notes :</strong> {{.Notes}}</p>
{{end}}{{range .ContactLines}}<p style="margin:0 0 4px;color:#6b7280;font-size:13px;line-height:1.6;">{{.}}</p>
{{end}}</td></tr>
<tr><td style="background-color:#faf8f5;padding:16px 32px;text-align:center;color:#9ca3af;font-size:12px;">
GlowPlan — La beauté sur rendez-vous
</td></tr>
</table>
</td></tr>
</table>
</body>
</html>
`))

func renderEmail(subject string, v emailView) Email {
	v.Title = subject
	var buf bytes.Buffer
	if err := emailTmpl.Execute(&buf, v); err != nil {
		// Static template over a plain struct; failing here is a programming error.
		panic(err)
	}
	return Email{Subject: subject, HTML: buf.String()}
}

// ClientConfirmation is the mail sent to the client when their appointment
// is confirmed (explicitly or automatically at booking time).
func ClientConfirmation(d Details) Email {
	subject := fmt.Sprintf("Votre rendez-vous chez %s est confirmé", d.Establishment)
	return renderEmail(subject, emailView{
		Accent:   accentConfirm,
		Heading:  "Rendez-vous confirmé",
		Greeting: d.ClientName,
		Intro:    fmt.Sprintf("Votre réservation chez %s est confirmée. Voici le récapitulatif :", d.Establishment),
		Details:  d,
	})
}

// ClientCancellation is the mail sent to the client when the establishment
// cancels. Reason is free text and may be empty.
func ClientCancellation(d Details, reason string, contact EstablishmentContact) Email {
	subject := fmt.Sprintf("Votre rendez-vous chez %s a été annulé", d.Establishment)
	return renderEmail(subject, emailView{
		Accent:       accentCancel,
		Heading:      "Rendez-vous annulé",
		Greeting:     d.ClientName,
		Intro:        fmt.Sprintf("%s a dû annuler votre rendez-vous. Toutes nos excuses pour la gêne occasionnée.", d.Establishment),
		Reason:       reason,
		Details:      d,
		ContactLines: establishmentContactLines(contact),
	})
}

// ClientModification announces changed appointment fields to the client.
func ClientModification(d Details, changes Changes, contact EstablishmentContact) Email {
	subject := fmt.Sprintf("Votre rendez-vous chez %s a été modifié", d.Establishment)
	return renderEmail(subject, emailView{
		Accent:       accentModify,
		Heading:      "Rendez-vous modifié",
		Greeting:     d.ClientName,
		Intro:        fmt.Sprintf("%s a modifié votre rendez-vous. Voici les changements :", d.Establishment),
		Changes:      changes.Items(),
		Details:      d,
		ContactLines: establishmentContactLines(contact),
	})
}

// EstablishmentNewBooking notifies the establishment of a fresh booking.
func EstablishmentNewBooking(d Details, c ClientContact, notes string, autoConfirmed bool) Email {
	subject := fmt.Sprintf("Nouvelle demande de réservation - %s", d.ClientName)
	intro := "Vous avez reçu une nouvelle demande de réservation. Pensez à la confirmer depuis votre tableau de bord."
	if autoConfirmed {
		subject = fmt.Sprintf("Nouvelle réservation confirmée - %s", d.ClientName)
		intro = "Une nouvelle réservation a été confirmée automatiquement."
	}
	return renderEmail(subject, emailView{
		Accent:       accentNeutral,
		Heading:      "Nouvelle réservation",
		Greeting:     d.Establishment,
		Intro:        intro,
		Details:      d,
		ShowClient:   true,
		Notes:        notes,
		ContactLines: clientContactLines(c),
	})
}

// EstablishmentCancellation notifies the establishment that the client
// cancelled their appointment.
func EstablishmentCancellation(d Details) Email {
	subject := fmt.Sprintf("Annulation de rendez-vous - %s", d.ClientName)
	return renderEmail(subject, emailView{
		Accent:     accentCancel,
		Heading:    "Rendez-vous annulé par le client",
		Greeting:   d.Establishment,
		Intro:      fmt.Sprintf("%s a annulé son rendez-vous. Le créneau est de nouveau disponible.", d.ClientName),
		Details:    d,
		ShowClient: true,
	})
}

func establishmentContactLines(c EstablishmentContact) []string {
	var lines []string
	if c.Phone != "" {
		lines = append(lines, "Téléphone : "+c.Phone)
	}
	if c.Email != "" {
		lines = append(lines, "Email : "+c.Email)
	}
	if len(lines) > 0 {
		lines = append([]string{"Pour toute question, contactez directement l'établissement :"}, lines...)
	}
	return lines
}

func clientContactLines(c ClientContact) []string {
	var lines []string
	if c.Email != "" {
		lines = append(lines, "Email du client : "+c.Email)
	}
	if c.Phone != "" {
		lines = append(lines, "Téléphone du client : "+c.Phone)
	}
	if c.Instagram != "" {
		lines = append(lines, "Instagram : "+c.Instagram)
	}
	return lines
}
