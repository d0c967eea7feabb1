package model

import (
	"strings"
	"time"
)

// Service is the prestation booked for an appointment. Price is in euros
// with no currency attached; nil means the price was never recorded.
type Service struct {
	Name            string
	Price           *float64
	DurationMinutes int
}

type Establishment struct {
	ID      string
	Name    string
	Email   string
	Phone   string
	Address string
	City    string
}

// Appointment is a read-only snapshot of a booking with its relations
// joined. Start and end times are stored as local wall-clock values and are
// never converted between timezones.
type Appointment struct {
	ID              string
	StartTime       time.Time
	EndTime         time.Time
	ClientFirstName string
	ClientLastName  string
	ClientName      string
	ClientEmail     string
	ClientPhone     string
	ClientInstagram string
	Notes           string

	// ProfileName comes from the linked client profile, when one exists.
	ProfileName string

	// Joined relations; nil when the join produced no row.
	Service       *Service
	Establishment *Establishment
}

// ClientDisplayName resolves the name shown in outbound mail.
// Order: explicit first+last name, then the linked profile name,
// then the raw stored name, then "Client".
func (a *Appointment) ClientDisplayName() string {
	first := strings.TrimSpace(a.ClientFirstName)
	last := strings.TrimSpace(a.ClientLastName)
	if first != "" || last != "" {
		return strings.TrimSpace(first + " " + last)
	}
	if name := strings.TrimSpace(a.ProfileName); name != "" {
		return name
	}
	if name := strings.TrimSpace(a.ClientName); name != "" {
		return name
	}
	return "Client"
}

// ServiceName returns the booked service name, or the display fallback when
// the service join is absent.
func (a *Appointment) ServiceName() string {
	if a.Service == nil || strings.TrimSpace(a.Service.Name) == "" {
		return "non précisée"
	}
	return a.Service.Name
}

// ServicePrice returns the price of the booked service, nil when unknown.
func (a *Appointment) ServicePrice() *float64 {
	if a.Service == nil {
		return nil
	}
	return a.Service.Price
}
