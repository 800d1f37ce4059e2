package booking

import (
	"context"
	"fmt"
	"time"

	appointmentRepo "bookline/database/repository/appointment"
	"bookline/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Transactor reserves a slot under a deposit hold and requests a checkout
// link for the deposit.
type Transactor interface {
	Book(ctx context.Context, req BookRequest) (*BookResult, error)
}

// BookRequest carries everything needed to commit one booking.
type BookRequest struct {
	Tenant      *models.TenantContext
	Customer    *models.Customer
	Resource    *models.Resource
	Service     *models.Service
	BranchID    string
	Start       time.Time
	HoldMinutes int
}

// BookResult is the committed outcome. PaymentLinkErr is set when the booking
// succeeded but the checkout link could not be created; the two outcomes are
// independent.
type BookResult struct {
	Appointment    *models.Appointment
	PaymentLink    string
	PaymentLinkErr error
}

// DefaultTransactor implements Transactor against the appointment repository
// and a payment collaborator.
type DefaultTransactor struct {
	Repo           appointmentRepo.AppointmentRepository
	Payments       PaymentLinker
	Logger         *zap.Logger
	DepositFixed   float64 // takes precedence over DepositPercent when > 0
	DepositPercent float64
	GranularityMin int // fallback duration for services without one
	BufferMin      int
}

func (t *DefaultTransactor) Book(ctx context.Context, req BookRequest) (*BookResult, error) {
	deposit := t.computeDeposit(req.Customer, req.Service)

	duration := req.Service.DurationMin
	if duration <= 0 {
		duration = t.GranularityMin
	}

	hold := clampHoldMinutes(req.HoldMinutes)
	now := time.Now()

	appt := &models.Appointment{
		ID:            uuid.New().String(),
		TenantID:      req.Tenant.ID,
		BranchID:      req.BranchID,
		ResourceID:    req.Resource.ID,
		ServiceID:     req.Service.ID,
		CustomerPhone: req.Customer.Phone,
		Start:         req.Start,
		End:           req.Start.Add(time.Duration(duration) * time.Minute),
		Status:        models.StatusScheduled,
		Deposit:       deposit,
		HoldUntil:     now.Add(time.Duration(hold) * time.Minute),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if deposit > 0 {
		appt.Status = models.StatusPendingDeposit
	}

	buffer := time.Duration(t.BufferMin) * time.Minute
	if err := t.Repo.InsertIfFree(ctx, appt, buffer); err != nil {
		if err == appointmentRepo.ErrSlotConflict {
			return nil, ErrSlotConflict
		}
		return nil, fmt.Errorf("booking failed: %w", err)
	}

	result := &BookResult{Appointment: appt}
	if deposit <= 0 {
		return result, nil
	}

	title := fmt.Sprintf("Deposit: %s on %s", req.Service.Name, req.Start.Format("Jan 2 15:04"))
	link, err := t.Payments.CreateCheckoutLink(ctx, req.Tenant.ID, appt.ID, deposit, title, appt.HoldUntil)
	if err != nil {
		// The slot stays reserved; the caller offers an alternative payment path.
		t.Logger.Warn("booking committed but payment link failed",
			zap.String("appointmentId", appt.ID), zap.Error(err))
		result.PaymentLinkErr = &PaymentLinkError{AppointmentID: appt.ID, Err: err}
		return result, nil
	}

	result.PaymentLink = link
	appt.PaymentLink = link
	if err := t.Repo.SetPaymentLink(ctx, req.Tenant.ID, appt.ID, link); err != nil {
		t.Logger.Warn("failed to persist payment link", zap.String("appointmentId", appt.ID), zap.Error(err))
	}
	return result, nil
}

func (t *DefaultTransactor) computeDeposit(customer *models.Customer, svc *models.Service) float64 {
	if customer.DepositExempt {
		return 0
	}
	if t.DepositFixed > 0 {
		return t.DepositFixed
	}
	if t.DepositPercent > 0 {
		return svc.Price * t.DepositPercent / 100
	}
	return 0
}

func clampHoldMinutes(m int) int {
	if m < 1 {
		return 1
	}
	if m > 30 {
		return 30
	}
	return m
}
