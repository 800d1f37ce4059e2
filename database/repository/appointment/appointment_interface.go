package appointmentRepo

import (
	"context"
	"errors"
	"time"

	"bookline/models"
)

// ErrSlotConflict is returned when an insert would overlap an occupying
// appointment for the same (tenant, resource).
var ErrSlotConflict = errors.New("appointment slot conflict")

// AppointmentRepository defines appointment persistence with conflict
// detection.
type AppointmentRepository interface {
	// InsertIfFree atomically verifies that no occupying appointment for the
	// same (tenant, resource) overlaps [start-buffer, end+buffer) and inserts
	// the appointment. Overlap loses with ErrSlotConflict. The check and the
	// insert commit in one transaction; concurrent attempts for the same
	// interval yield exactly one success.
	InsertIfFree(ctx context.Context, appt *models.Appointment, buffer time.Duration) error
	// ListOccupying returns occupying appointments for the resource whose
	// intervals intersect [from, to).
	ListOccupying(ctx context.Context, tenantID, resourceID string, from, to time.Time) ([]models.Appointment, error)
	// ListUpcomingByCustomer returns the customer's occupying appointments
	// starting at or after now, soonest first.
	ListUpcomingByCustomer(ctx context.Context, tenantID, phone string, now time.Time) ([]models.Appointment, error)
	// GetByID retrieves an appointment.
	GetByID(ctx context.Context, tenantID, apptID string) (*models.Appointment, error)
	// UpdateStatus transitions the appointment status.
	UpdateStatus(ctx context.Context, tenantID, apptID, status string) error
	// SetPaymentLink records the checkout link on the appointment.
	SetPaymentLink(ctx context.Context, tenantID, apptID, link string) error
}
