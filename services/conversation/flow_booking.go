package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bookline/models"
	"bookline/services/booking"

	"go.uber.org/zap"
)

const dayFormat = "2006-01-02"

// stepHomeMenu dispatches the top-level menu selections. Unrecognized input
// re-presents the menu.
func (e *Engine) stepHomeMenu(ctx context.Context, tenant *models.TenantContext, cust *models.Customer, sess models.Session, ev Event) (models.Session, []Effect) {
	if ev.Kind == EventCommand {
		switch ev.Command {
		case CmdBook:
			return e.startBooking(ctx, tenant, cust, sess)
		case CmdViewAppts:
			return e.showAppointments(ctx, tenant, cust, sess)
		case CmdPlans:
			return e.showPlans(ctx, tenant, cust, sess)
		case CmdTalkToAgent:
			return sess, []Effect{startHandoffEffect{}}
		}
	}
	sess.Step = models.StepHomeMenu
	sess.Data = nil
	return sess, []Effect{send(e.homeMenuPayload(cust))}
}

// startBooking opens the booking sub-flow. A single-branch tenant skips the
// branch picker.
func (e *Engine) startBooking(ctx context.Context, tenant *models.TenantContext, cust *models.Customer, sess models.Session) (models.Session, []Effect) {
	branches, err := e.Catalog.ListBranches(ctx, tenant.ID)
	if err != nil {
		e.Logger.Error("branch listing failed", zap.String("tenantId", tenant.ID), zap.Error(err))
		return sess, []Effect{sendText("We couldn't load our locations right now. Please try again in a moment.")}
	}

	switch len(branches) {
	case 0:
		sess.Step = models.StepHomeMenu
		sess.Data = nil
		return sess, []Effect{sendText("There is nothing bookable yet. Please check back later.")}
	case 1:
		return e.showServices(ctx, tenant, sess, models.BrowseData{BranchID: branches[0].ID})
	}

	rows := make([]models.Row, 0, len(branches))
	for _, b := range branches {
		rows = append(rows, models.Row{ID: PrefixBranch + b.ID, Title: b.Name, Description: b.Address})
	}
	sess.Step = models.StepPickingBranch
	sess.Data = models.BrowseData{}
	return sess, []Effect{send(models.ListPayload("Locations", "Which location works for you?",
		paginate(rows, 0, e.pageSize())))}
}

func (e *Engine) stepPickingBranch(ctx context.Context, tenant *models.TenantContext, cust *models.Customer, sess models.Session, ev Event) (models.Session, []Effect) {
	data, _ := sess.Data.(models.BrowseData)

	if ev.Kind == EventCommand {
		switch {
		case strings.HasPrefix(ev.Command, PrefixBranch):
			data.BranchID = strings.TrimPrefix(ev.Command, PrefixBranch)
			return e.showServices(ctx, tenant, sess, data)
		case ev.Command == CmdMore:
			return e.repageBranches(ctx, tenant, sess, data)
		case ev.Command == CmdBack:
			sess.Step = models.StepHomeMenu
			sess.Data = nil
			return sess, []Effect{send(e.homeMenuPayload(cust))}
		}
	}
	return sess, []Effect{sendText("Please pick a location from the list.")}
}

func (e *Engine) repageBranches(ctx context.Context, tenant *models.TenantContext, sess models.Session, data models.BrowseData) (models.Session, []Effect) {
	branches, err := e.Catalog.ListBranches(ctx, tenant.ID)
	if err != nil {
		return sess, []Effect{sendText("We couldn't load our locations right now. Please try again in a moment.")}
	}
	rows := make([]models.Row, 0, len(branches))
	for _, b := range branches {
		rows = append(rows, models.Row{ID: PrefixBranch + b.ID, Title: b.Name, Description: b.Address})
	}
	data.Offset = nextOffset(data.Offset, e.pageSize(), len(rows))
	sess.Data = data
	return sess, []Effect{send(models.ListPayload("Locations", "Which location works for you?",
		paginate(rows, data.Offset, e.pageSize())))}
}

func (e *Engine) showServices(ctx context.Context, tenant *models.TenantContext, sess models.Session, data models.BrowseData) (models.Session, []Effect) {
	services, err := e.Catalog.ListServices(ctx, tenant.ID, data.BranchID)
	if err != nil {
		e.Logger.Error("service listing failed", zap.String("tenantId", tenant.ID), zap.Error(err))
		return sess, []Effect{sendText("We couldn't load the services right now. Please try again in a moment.")}
	}
	if len(services) == 0 {
		sess.Step = models.StepHomeMenu
		sess.Data = nil
		return sess, []Effect{sendText("That location has no bookable services right now.")}
	}

	data.ServiceID, data.ResourceID, data.Date, data.Slot, data.Offset = "", "", "", "", 0
	sess.Step = models.StepPickingService
	sess.Data = data
	return sess, []Effect{send(models.ListPayload("Services", "What would you like to book?",
		paginate(serviceRows(services), data.Offset, e.pageSize())))}
}

func serviceRows(services []models.Service) []models.Row {
	rows := make([]models.Row, 0, len(services))
	for _, s := range services {
		desc := fmt.Sprintf("$%.0f", s.Price)
		if s.DurationMin > 0 {
			desc = fmt.Sprintf("$%.0f · %d min", s.Price, s.DurationMin)
		}
		rows = append(rows, models.Row{ID: PrefixService + s.ID, Title: s.Name, Description: desc})
	}
	return rows
}

func (e *Engine) stepPickingService(ctx context.Context, tenant *models.TenantContext, cust *models.Customer, sess models.Session, ev Event) (models.Session, []Effect) {
	data, _ := sess.Data.(models.BrowseData)

	if ev.Kind == EventCommand {
		switch {
		case strings.HasPrefix(ev.Command, PrefixService):
			data.ServiceID = strings.TrimPrefix(ev.Command, PrefixService)
			return e.showResources(ctx, tenant, sess, data)
		case ev.Command == CmdMore:
			services, err := e.Catalog.ListServices(ctx, tenant.ID, data.BranchID)
			if err != nil {
				return sess, []Effect{sendText("We couldn't load the services right now. Please try again in a moment.")}
			}
			rows := serviceRows(services)
			data.Offset = nextOffset(data.Offset, e.pageSize(), len(rows))
			sess.Data = data
			return sess, []Effect{send(models.ListPayload("Services", "What would you like to book?",
				paginate(rows, data.Offset, e.pageSize())))}
		case ev.Command == CmdBack:
			return e.startBooking(ctx, tenant, cust, sess)
		}
	}
	return sess, []Effect{sendText("Please pick a service from the list.")}
}

func (e *Engine) showResources(ctx context.Context, tenant *models.TenantContext, sess models.Session, data models.BrowseData) (models.Session, []Effect) {
	resources, err := e.Catalog.ListResources(ctx, tenant.ID, data.BranchID)
	if err != nil {
		e.Logger.Error("resource listing failed", zap.String("tenantId", tenant.ID), zap.Error(err))
		return sess, []Effect{sendText("We couldn't load availability right now. Please try again in a moment.")}
	}
	if len(resources) == 0 {
		sess.Step = models.StepHomeMenu
		sess.Data = nil
		return sess, []Effect{sendText("Nobody is available for that service right now.")}
	}
	if len(resources) == 1 {
		data.ResourceID = resources[0].ID
		return e.showDates(sess, data)
	}

	rows := make([]models.Row, 0, len(resources))
	for _, r := range resources {
		rows = append(rows, models.Row{ID: PrefixResource + r.ID, Title: r.Name})
	}
	data.Offset = 0
	sess.Step = models.StepPickingResource
	sess.Data = data
	return sess, []Effect{send(models.ListPayload("Who with?", "Pick who you'd like the appointment with.",
		paginate(rows, data.Offset, e.pageSize())))}
}

func (e *Engine) stepPickingResource(ctx context.Context, tenant *models.TenantContext, cust *models.Customer, sess models.Session, ev Event) (models.Session, []Effect) {
	data, _ := sess.Data.(models.BrowseData)

	if ev.Kind == EventCommand {
		switch {
		case strings.HasPrefix(ev.Command, PrefixResource):
			data.ResourceID = strings.TrimPrefix(ev.Command, PrefixResource)
			return e.showDates(sess, data)
		case ev.Command == CmdMore:
			resources, err := e.Catalog.ListResources(ctx, tenant.ID, data.BranchID)
			if err != nil {
				return sess, []Effect{sendText("We couldn't load availability right now. Please try again in a moment.")}
			}
			rows := make([]models.Row, 0, len(resources))
			for _, r := range resources {
				rows = append(rows, models.Row{ID: PrefixResource + r.ID, Title: r.Name})
			}
			data.Offset = nextOffset(data.Offset, e.pageSize(), len(rows))
			sess.Data = data
			return sess, []Effect{send(models.ListPayload("Who with?", "Pick who you'd like the appointment with.",
				paginate(rows, data.Offset, e.pageSize())))}
		case ev.Command == CmdBack:
			return e.showServices(ctx, tenant, sess, data)
		}
	}
	return sess, []Effect{sendText("Please pick someone from the list.")}
}

// showDates offers the next days as list rows; further-out dates arrive as
// free text.
func (e *Engine) showDates(sess models.Session, data models.BrowseData) (models.Session, []Effect) {
	now := e.now()
	rows := make([]models.Row, 0, e.pageSize())
	for i := 0; i < e.pageSize(); i++ {
		day := now.AddDate(0, 0, i)
		title := day.Format("Mon 2 Jan")
		if i == 0 {
			title = "Today"
		}
		rows = append(rows, models.Row{ID: PrefixDate + day.Format(dayFormat), Title: title})
	}
	data.Date, data.Slot, data.Offset = "", "", 0
	sess.Step = models.StepPickingDate
	sess.Data = data
	return sess, []Effect{send(models.ListPayload("When?",
		fmt.Sprintf("Pick a day, or send a date like %s.", now.AddDate(0, 0, 14).Format(dayFormat)), rows))}
}

func (e *Engine) stepPickingDate(ctx context.Context, tenant *models.TenantContext, cust *models.Customer, sess models.Session, ev Event) (models.Session, []Effect) {
	data, _ := sess.Data.(models.BrowseData)

	var raw string
	if ev.Kind == EventCommand {
		switch {
		case strings.HasPrefix(ev.Command, PrefixDate):
			raw = strings.TrimPrefix(ev.Command, PrefixDate)
		case ev.Command == CmdBack:
			return e.showServices(ctx, tenant, sess, data)
		default:
			raw = ev.Text
		}
	} else {
		raw = strings.TrimSpace(ev.Text)
	}

	day, err := parseDay(raw, e.now())
	if err != nil {
		return sess, []Effect{sendText("I couldn't read that date. Send it like 2026-09-15, or pick a day from the list.")}
	}

	today := dateOnly(e.now())
	horizon := e.horizonDays()
	switch {
	case day.Before(today):
		return sess, []Effect{sendText("That date is in the past. Pick another day.")}
	case day.After(today.AddDate(0, 0, horizon)):
		return sess, []Effect{sendText(fmt.Sprintf("We take bookings up to %d days ahead. Pick a closer date.", horizon))}
	}

	data.Date = day.Format(dayFormat)
	data.Offset = 0
	return e.showSlots(ctx, tenant, sess, data)
}

func (e *Engine) showSlots(ctx context.Context, tenant *models.TenantContext, sess models.Session, data models.BrowseData) (models.Session, []Effect) {
	day, err := time.ParseInLocation(dayFormat, data.Date, time.Local)
	if err != nil {
		return sess, []Effect{sendText("I couldn't read that date. Send it like 2026-09-15.")}
	}

	all, busy, err := e.Slots.SlotsFor(ctx, tenant.ID, data.ResourceID, data.ServiceID, day, 0)
	if err != nil {
		e.Logger.Error("slot computation failed",
			zap.String("resourceId", data.ResourceID), zap.String("date", data.Date), zap.Error(err))
		return sess, []Effect{sendText("We couldn't load availability right now. Please try again in a moment.")}
	}

	free := freeSlotRows(all, busy)
	if len(free) == 0 {
		sess.Step = models.StepPickingDate
		sess.Data = data
		return sess, []Effect{sendText(fmt.Sprintf("No availability on %s. Pick another day.", data.Date))}
	}

	if data.Offset >= len(free) {
		data.Offset = 0
	}
	data.Slot = ""
	sess.Step = models.StepPickingSlot
	sess.Data = data
	return sess, []Effect{send(models.ListPayload("Available times",
		fmt.Sprintf("Times for %s:", day.Format("Mon 2 Jan")),
		paginate(free, data.Offset, e.pageSize())))}
}

func freeSlotRows(all, busy []string) []models.Row {
	taken := make(map[string]bool, len(busy))
	for _, s := range busy {
		taken[s] = true
	}
	rows := make([]models.Row, 0, len(all))
	for _, s := range all {
		if !taken[s] {
			rows = append(rows, models.Row{ID: PrefixSlot + s, Title: s})
		}
	}
	return rows
}

func (e *Engine) stepPickingSlot(ctx context.Context, tenant *models.TenantContext, cust *models.Customer, sess models.Session, ev Event) (models.Session, []Effect) {
	data, _ := sess.Data.(models.BrowseData)

	if ev.Kind == EventCommand {
		switch {
		case strings.HasPrefix(ev.Command, PrefixSlot):
			data.Slot = strings.TrimPrefix(ev.Command, PrefixSlot)
			sess.Data = data
			return sess, []Effect{bookEffect{Date: data.Date, Slot: data.Slot}}
		case ev.Command == CmdMore:
			data.Offset += e.pageSize() - 1
			return e.showSlots(ctx, tenant, sess, data)
		case ev.Command == CmdBack:
			return e.showDates(sess, data)
		}
	}
	return sess, []Effect{sendText("Please pick a time from the list.")}
}

// performBooking executes the book effect: resolves the catalog records,
// commits through the transactor and reports the outcome. Runs inside the
// session lock via apply.
func (e *Engine) performBooking(ctx context.Context, tenant *models.TenantContext, cust *models.Customer, sess models.Session, eff bookEffect) models.Session {
	data, _ := sess.Data.(models.BrowseData)

	svc, err := e.Catalog.GetService(ctx, tenant.ID, data.ServiceID)
	if err != nil {
		e.Logger.Error("service lookup failed", zap.String("serviceId", data.ServiceID), zap.Error(err))
		e.deliver(ctx, tenant, sess.Phone, models.TextPayload("Something went wrong. Please try booking again."))
		return sess
	}
	res, err := e.Catalog.GetResource(ctx, tenant.ID, data.ResourceID)
	if err != nil {
		e.Logger.Error("resource lookup failed", zap.String("resourceId", data.ResourceID), zap.Error(err))
		e.deliver(ctx, tenant, sess.Phone, models.TextPayload("Something went wrong. Please try booking again."))
		return sess
	}

	start, err := time.ParseInLocation(dayFormat+" 15:04", eff.Date+" "+eff.Slot, time.Local)
	if err != nil {
		e.deliver(ctx, tenant, sess.Phone, models.TextPayload("I couldn't read that time. Pick one from the list."))
		return sess
	}

	result, err := e.Booking.Book(ctx, booking.BookRequest{
		Tenant:      tenant,
		Customer:    cust,
		Resource:    res,
		Service:     svc,
		BranchID:    data.BranchID,
		Start:       start,
		HoldMinutes: e.HoldMinutes,
	})
	if err != nil {
		if errors.Is(err, booking.ErrSlotConflict) {
			e.deliver(ctx, tenant, sess.Phone,
				models.TextPayload(fmt.Sprintf("Sorry, %s was just taken. Here are the updated times.", eff.Slot)))
			sess, effects := e.showSlots(ctx, tenant, sess, data)
			for _, extra := range effects {
				if s, ok := extra.(sendEffect); ok {
					e.deliver(ctx, tenant, sess.Phone, s.Payload)
				}
			}
			return sess
		}
		e.Logger.Error("booking failed", zap.String("phone", sess.Phone), zap.Error(err))
		e.deliver(ctx, tenant, sess.Phone, models.TextPayload("We couldn't complete the booking. Please try again."))
		return sess
	}

	appt := result.Appointment
	confirmation := fmt.Sprintf("Booked! %s with %s on %s at %s.",
		svc.Name, res.Name, start.Format("Mon 2 Jan"), eff.Slot)
	switch {
	case result.PaymentLink != "":
		hold := int(appt.HoldUntil.Sub(e.now()).Minutes())
		confirmation += fmt.Sprintf(
			"\nTo confirm it, pay the $%.0f deposit within %d minutes:\n%s",
			appt.Deposit, hold, result.PaymentLink)
	case result.PaymentLinkErr != nil:
		confirmation += "\nYour spot is reserved. We'll send the deposit payment details shortly."
	}
	e.deliver(ctx, tenant, sess.Phone, models.TextPayload(confirmation))

	if sess.HandoffOpen {
		e.Router.NotifyBookingConcluded(ctx, tenant, sess.Phone, cust.Name)
		sess.HandoffOpen = false
	}

	sess.Step = models.StepHomeMenu
	sess.Data = nil
	return sess
}

func (e *Engine) horizonDays() int {
	if e.HorizonDays > 0 {
		return e.HorizonDays
	}
	return 90
}

func parseDay(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if d, err := time.ParseInLocation(dayFormat, raw, time.Local); err == nil {
		return d, nil
	}
	if d, err := time.ParseInLocation("02/01/2006", raw, time.Local); err == nil {
		return d, nil
	}
	// Day and month without a year resolve to the next occurrence.
	if d, err := time.ParseInLocation("02/01", raw, time.Local); err == nil {
		d = time.Date(now.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.Local)
		if d.Before(dateOnly(now)) {
			d = d.AddDate(1, 0, 0)
		}
		return d, nil
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", raw)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
