package booking

import (
	"fmt"

	appointmentRepo "bookline/database/repository/appointment"
)

// ErrSlotConflict signals a concurrent double-booking: the slot was taken
// between presentation and confirmation. Distinct from payment failures.
var ErrSlotConflict = appointmentRepo.ErrSlotConflict

// PaymentLinkError reports a checkout-link creation failure. The booking
// itself is already committed when this is raised.
type PaymentLinkError struct {
	AppointmentID string
	Err           error
}

func (e *PaymentLinkError) Error() string {
	return fmt.Sprintf("payment link for appointment %s: %v", e.AppointmentID, e.Err)
}

func (e *PaymentLinkError) Unwrap() error {
	return e.Err
}
