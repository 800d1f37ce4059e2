package conversation

import (
	"context"
	"fmt"
	"strings"

	"bookline/models"

	"go.uber.org/zap"
)

// showAppointments lists the customer's upcoming appointments for viewing or
// cancellation.
func (e *Engine) showAppointments(ctx context.Context, tenant *models.TenantContext, cust *models.Customer, sess models.Session) (models.Session, []Effect) {
	appts, err := e.Appointments.ListUpcomingByCustomer(ctx, tenant.ID, sess.Phone, e.now())
	if err != nil {
		e.Logger.Error("upcoming appointments lookup failed", zap.String("phone", sess.Phone), zap.Error(err))
		return sess, []Effect{sendText("We couldn't load your appointments right now. Please try again in a moment.")}
	}
	if len(appts) == 0 {
		sess.Step = models.StepHomeMenu
		sess.Data = nil
		return sess, []Effect{
			sendText("You have no upcoming appointments."),
			send(e.homeMenuPayload(cust)),
		}
	}

	ids := make([]string, 0, len(appts))
	rows := make([]models.Row, 0, len(appts))
	for _, a := range appts {
		ids = append(ids, a.ID)
		rows = append(rows, models.Row{
			ID:          PrefixAppt + a.ID,
			Title:       a.Start.Format("Mon 2 Jan 15:04"),
			Description: e.apptSummary(ctx, tenant.ID, &a),
		})
	}

	sess.Step = models.StepViewingAppts
	sess.Data = models.ViewData{AppointmentIDs: ids}
	return sess, []Effect{send(models.ListPayload("Your appointments",
		"Pick one to see details or cancel it.",
		paginate(rows, 0, e.pageSize())))}
}

func (e *Engine) stepViewingAppts(ctx context.Context, tenant *models.TenantContext, cust *models.Customer, sess models.Session, ev Event) (models.Session, []Effect) {
	data, _ := sess.Data.(models.ViewData)

	if ev.Kind == EventCommand {
		switch {
		case strings.HasPrefix(ev.Command, PrefixAppt):
			return e.showAppointmentDetail(ctx, tenant, sess, data, strings.TrimPrefix(ev.Command, PrefixAppt))
		case ev.Command == CmdMore:
			data.Offset = nextOffset(data.Offset, e.pageSize(), len(data.AppointmentIDs))
			sess.Data = data
			return e.repageAppointments(ctx, tenant, sess, data)
		case ev.Command == CmdBack:
			sess.Step = models.StepHomeMenu
			sess.Data = nil
			return sess, []Effect{send(e.homeMenuPayload(cust))}
		}
	}
	return sess, []Effect{sendText("Please pick an appointment from the list.")}
}

func (e *Engine) repageAppointments(ctx context.Context, tenant *models.TenantContext, sess models.Session, data models.ViewData) (models.Session, []Effect) {
	appts, err := e.Appointments.ListUpcomingByCustomer(ctx, tenant.ID, sess.Phone, e.now())
	if err != nil {
		return sess, []Effect{sendText("We couldn't load your appointments right now. Please try again in a moment.")}
	}
	rows := make([]models.Row, 0, len(appts))
	for _, a := range appts {
		rows = append(rows, models.Row{
			ID:          PrefixAppt + a.ID,
			Title:       a.Start.Format("Mon 2 Jan 15:04"),
			Description: e.apptSummary(ctx, tenant.ID, &a),
		})
	}
	return sess, []Effect{send(models.ListPayload("Your appointments",
		"Pick one to see details or cancel it.",
		paginate(rows, data.Offset, e.pageSize())))}
}

func (e *Engine) showAppointmentDetail(ctx context.Context, tenant *models.TenantContext, sess models.Session, data models.ViewData, apptID string) (models.Session, []Effect) {
	appt, err := e.Appointments.GetByID(ctx, tenant.ID, apptID)
	if err != nil {
		e.Logger.Warn("appointment lookup failed", zap.String("appointmentId", apptID), zap.Error(err))
		return sess, []Effect{sendText("We couldn't find that appointment. Pick one from the list.")}
	}

	detail := fmt.Sprintf("%s\n%s\nStatus: %s", appt.Start.Format("Monday 2 January, 15:04"),
		e.apptSummary(ctx, tenant.ID, appt), appt.Status)
	if appt.Status == models.StatusPendingDeposit && appt.PaymentLink != "" {
		detail += "\nDeposit pending: " + appt.PaymentLink
	}

	data.Selected = apptID
	sess.Step = models.StepCancelingAppt
	sess.Data = data
	return sess, []Effect{send(models.ButtonsPayload(detail, []models.Row{
		{ID: CmdConfirm, Title: "Cancel appointment"},
		{ID: CmdBack, Title: "Back"},
	}))}
}

func (e *Engine) stepCancelingAppt(ctx context.Context, tenant *models.TenantContext, cust *models.Customer, sess models.Session, ev Event) (models.Session, []Effect) {
	data, _ := sess.Data.(models.ViewData)

	if ev.Kind == EventCommand {
		switch ev.Command {
		case CmdConfirm:
			id := data.Selected
			sess.Step = models.StepHomeMenu
			sess.Data = nil
			return sess, []Effect{
				cancelApptEffect{AppointmentID: id},
				send(e.homeMenuPayload(cust)),
			}
		case CmdBack, CmdAbort:
			return e.showAppointments(ctx, tenant, cust, sess)
		}
	}
	return sess, []Effect{send(models.ButtonsPayload("Cancel this appointment?", []models.Row{
		{ID: CmdConfirm, Title: "Yes, cancel it"},
		{ID: CmdBack, Title: "Back"},
	}))}
}

// performCancel releases the slot. Cancelled appointments stop occupying the
// calendar, so the time becomes bookable again immediately.
func (e *Engine) performCancel(ctx context.Context, tenant *models.TenantContext, phone, apptID string) {
	if err := e.Appointments.UpdateStatus(ctx, tenant.ID, apptID, models.StatusCancelled); err != nil {
		e.Logger.Error("appointment cancellation failed",
			zap.String("appointmentId", apptID), zap.Error(err))
		e.deliver(ctx, tenant, phone, models.TextPayload("We couldn't cancel that appointment. Please try again."))
		return
	}
	e.deliver(ctx, tenant, phone, models.TextPayload("Your appointment has been cancelled."))
}

// apptSummary renders "Service with Resource" with best-effort catalog
// lookups; a bare id never reaches the customer.
func (e *Engine) apptSummary(ctx context.Context, tenantID string, appt *models.Appointment) string {
	svcName, resName := "appointment", ""
	if svc, err := e.Catalog.GetService(ctx, tenantID, appt.ServiceID); err == nil {
		svcName = svc.Name
	}
	if res, err := e.Catalog.GetResource(ctx, tenantID, appt.ResourceID); err == nil {
		resName = res.Name
	}
	if resName == "" {
		return svcName
	}
	return svcName + " with " + resName
}
