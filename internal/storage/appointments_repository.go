package storage

import (
	"context"
	"errors"

	"github.com/glowplan/notification-service/internal/model"
	"github.com/glowplan/notification-service/libs/db"
	"github.com/jackc/pgx/v5"
)

// AppointmentsRepository reads appointment snapshots for notification
// rendering. It never writes; status transitions happen upstream.
type AppointmentsRepository struct {
	pool *db.Pool
}

func NewAppointmentsRepository(pool *db.Pool) *AppointmentsRepository {
	return &AppointmentsRepository{pool: pool}
}

// GetAppointment fetches one appointment by id with its service,
// establishment, and client profile joined. Absent joins leave the
// corresponding snapshot fields nil.
func (r *AppointmentsRepository) GetAppointment(ctx context.Context, id string) (*model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT a.id::text, a.start_time, a.end_time,
		       COALESCE(a.client_first_name, ''),
		       COALESCE(a.client_last_name, ''),
		       COALESCE(a.client_name, ''),
		       COALESCE(a.client_email, ''),
		       COALESCE(a.client_phone, ''),
		       COALESCE(a.client_instagram, ''),
		       COALESCE(a.notes, ''),
		       COALESCE(p.full_name, ''),
		       s.name, s.price, s.duration_minutes,
		       e.id::text, e.name,
		       COALESCE(e.email, ''), COALESCE(e.phone, ''),
		       COALESCE(e.address, ''), COALESCE(e.city, '')
		FROM appointments a
		LEFT JOIN services s ON s.id = a.service_id
		LEFT JOIN establishments e ON e.id = a.establishment_id
		LEFT JOIN client_profiles p ON p.id = a.client_profile_id
		WHERE a.id = $1
	`, id)

	var (
		appt            model.Appointment
		serviceName     *string
		servicePrice    *float64
		serviceDuration *int
		estID           *string
		estName         *string
		estEmail        string
		estPhone        string
		estAddress      string
		estCity         string
	)
	err := row.Scan(
		&appt.ID, &appt.StartTime, &appt.EndTime,
		&appt.ClientFirstName, &appt.ClientLastName,
		&appt.ClientName, &appt.ClientEmail, &appt.ClientPhone,
		&appt.ClientInstagram, &appt.Notes,
		&appt.ProfileName,
		&serviceName, &servicePrice, &serviceDuration,
		&estID, &estName,
		&estEmail, &estPhone, &estAddress, &estCity,
	)
	if err != nil {
		return nil, err
	}

	if serviceName != nil {
		svc := &model.Service{Name: *serviceName, Price: servicePrice}
		if serviceDuration != nil {
			svc.DurationMinutes = *serviceDuration
		}
		appt.Service = svc
	}
	if estID != nil {
		est := &model.Establishment{
			ID:      *estID,
			Email:   estEmail,
			Phone:   estPhone,
			Address: estAddress,
			City:    estCity,
		}
		if estName != nil {
			est.Name = *estName
		}
		appt.Establishment = est
	}
	return &appt, nil
}

// GetEstablishment resolves one establishment by id.
func (r *AppointmentsRepository) GetEstablishment(ctx context.Context, id string) (*model.Establishment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id::text, name,
		       COALESCE(email, ''), COALESCE(phone, ''),
		       COALESCE(address, ''), COALESCE(city, '')
		FROM establishments
		WHERE id = $1
	`, id)

	var est model.Establishment
	err := row.Scan(&est.ID, &est.Name, &est.Email, &est.Phone, &est.Address, &est.City)
	if err != nil {
		return nil, err
	}
	return &est, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
