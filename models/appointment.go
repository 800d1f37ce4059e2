package models

import "time"

// Appointment statuses.
const (
	StatusScheduled      = "scheduled"
	StatusPendingDeposit = "pending_deposit"
	StatusDepositPaid    = "deposit_paid"
	StatusConfirmed      = "confirmed"
	StatusCompleted      = "completed"
	StatusCancelled      = "cancelled"
	StatusNoShow         = "no_show"
)

// OccupyingStatuses are the statuses that consume a resource's calendar.
var OccupyingStatuses = []string{
	StatusScheduled,
	StatusPendingDeposit,
	StatusDepositPaid,
	StatusConfirmed,
}

// Appointment is a reserved slot on a resource's calendar.
type Appointment struct {
	ID            string    `bson:"id" json:"id"`
	TenantID      string    `bson:"tenantId" json:"tenantId"`
	BranchID      string    `bson:"branchId,omitempty" json:"branchId,omitempty"`
	ResourceID    string    `bson:"resourceId" json:"resourceId"`
	ServiceID     string    `bson:"serviceId" json:"serviceId"`
	CustomerPhone string    `bson:"customerPhone" json:"customerPhone"`
	Start         time.Time `bson:"start" json:"start"`
	End           time.Time `bson:"end" json:"end"`
	Status        string    `bson:"status" json:"status"`
	Deposit       float64   `bson:"deposit" json:"deposit"`
	HoldUntil     time.Time `bson:"holdUntil,omitempty" json:"holdUntil,omitempty"`
	PaymentLink   string    `bson:"paymentLink,omitempty" json:"paymentLink,omitempty"`
	CreatedAt     time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Occupying reports whether the appointment consumes calendar space.
func (a *Appointment) Occupying() bool {
	for _, s := range OccupyingStatuses {
		if a.Status == s {
			return true
		}
	}
	return false
}
