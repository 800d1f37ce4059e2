package conversation

import (
	"context"
	"time"

	appointmentRepo "bookline/database/repository/appointment"
	catalogRepo "bookline/database/repository/catalog"
	customerRepo "bookline/database/repository/customer"
	"bookline/models"
	"bookline/services/availability"
	"bookline/services/booking"
	"bookline/services/correlation"
	"bookline/services/handoff"
	"bookline/services/session"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const defaultPageSize = 9

// Engine drives the per-customer conversation state machine. Every inbound
// customer message enters through Handle; agent-channel traffic is diverted
// to the handoff router before any session work happens.
type Engine struct {
	Sessions     session.Store
	Correlations *correlation.Store
	Customers    customerRepo.CustomerRepository
	Catalog      catalogRepo.CatalogRepository
	Appointments appointmentRepo.AppointmentRepository
	Slots        *availability.Engine
	Booking      booking.Transactor
	Payments     booking.PaymentLinker
	Router       *handoff.Router
	Sender       handoff.OutboundSender
	Logger       *zap.Logger

	AgentChannelID string
	HorizonDays    int
	HoldMinutes    int
	PageSize       int

	// Now is swappable for tests; zero value means time.Now.
	Now func() time.Time
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) pageSize() int {
	if e.PageSize > 0 {
		return e.PageSize
	}
	return defaultPageSize
}

// Handle processes one inbound message end to end: session lookup, global
// keywords, identification gate, step dispatch and effect execution. Work for
// one (tenant, phone) is serialized by the session store's per-key lock.
func (e *Engine) Handle(ctx context.Context, tenant *models.TenantContext, msg models.InboundMessage) {
	if msg.From == e.AgentChannelID {
		e.Router.HandleAgentReply(ctx, tenant, msg)
		return
	}
	e.Sessions.WithLock(tenant.ID, msg.From, func() {
		e.handleLocked(ctx, tenant, msg)
	})
}

func (e *Engine) handleLocked(ctx context.Context, tenant *models.TenantContext, msg models.InboundMessage) {
	sess, ok := e.Sessions.Get(tenant.ID, msg.From)
	if !ok {
		sess = models.Session{TenantID: tenant.ID, Phone: msg.From, Step: models.StepIdle}
	}
	sess.LastInbound = e.now()

	cust := e.loadCustomer(ctx, tenant.ID, msg.From)

	// A live handoff swallows everything except the customer's own exit
	// keywords: messages are relayed verbatim to the agent channel.
	if sess.Step == models.StepWaitingForAgent {
		switch {
		case msg.OptionID != "":
			// Tapping a menu control steps out of the handoff into
			// self-service; the agent hears back if a booking concludes.
			sess.HandoffOpen = true
			sess.Step = models.StepHomeMenu
			sess.Data = nil
		case IsReset(msg.Text) || IsGreeting(msg.Text):
			e.endHandoffLocked(ctx, tenant, cust, sess)
			return
		default:
			sess = e.Router.Forward(ctx, tenant, sess, msg.Text)
			e.Sessions.Put(sess)
			return
		}
	}

	// A reply to a proactive notification pulls an idle customer back into
	// the menu instead of leaving them stranded in no state.
	if msg.ReplyToID != "" && sess.Step == models.StepIdle {
		if _, found := e.Correlations.Lookup(msg.ReplyToID); found {
			sess.Step = models.StepHomeMenu
		}
	}

	if msg.OptionID == "" {
		if IsReset(msg.Text) {
			e.Sessions.Delete(tenant.ID, msg.From)
			e.deliver(ctx, tenant, msg.From,
				models.TextPayload("Alright, I've cancelled that. Write us whenever you need something."))
			return
		}
		if IsGreeting(msg.Text) {
			if !cust.FullyIdentified() {
				e.Sessions.Put(e.startIdentification(ctx, tenant, sess, models.StepHomeMenu))
				return
			}
			sess.Step = models.StepHomeMenu
			sess.Data = nil
			e.deliver(ctx, tenant, msg.From, e.homeMenuPayload(cust))
			e.Sessions.Put(sess)
			return
		}
	}

	ev := normalizeEvent(msg, sess.Step)

	// Identification gate: booking, viewing and plan flows require a fully
	// identified customer. The original intent is stashed and resumed once
	// identification completes.
	if !cust.FullyIdentified() && !isIdentifyStep(sess.Step) {
		e.Sessions.Put(e.startIdentification(ctx, tenant, sess, resumeFor(sess.Step, ev)))
		return
	}

	sess, effects := e.dispatch(ctx, tenant, cust, sess, ev)
	sess, cleared := e.apply(ctx, tenant, cust, sess, effects)
	if cleared {
		e.Sessions.Delete(tenant.ID, msg.From)
		return
	}
	e.Sessions.Put(sess)
}

// dispatch routes the event to the handler for the session's current step.
// The step set is closed; every member is listed here.
func (e *Engine) dispatch(ctx context.Context, tenant *models.TenantContext, cust *models.Customer, sess models.Session, ev Event) (models.Session, []Effect) {
	switch sess.Step {
	case models.StepIdle, models.StepHomeMenu:
		return e.stepHomeMenu(ctx, tenant, cust, sess, ev)
	case models.StepIdentifyChoice:
		return e.stepIdentifyChoice(ctx, tenant, cust, sess, ev)
	case models.StepIdentifyByPhone:
		return e.stepIdentifyByPhone(ctx, tenant, cust, sess, ev)
	case models.StepIdentifyByID:
		return e.stepIdentifyByID(ctx, tenant, cust, sess, ev)
	case models.StepCollectName:
		return e.stepCollectName(ctx, tenant, cust, sess, ev)
	case models.StepCollectID:
		return e.stepCollectID(ctx, tenant, cust, sess, ev)
	case models.StepPickingBranch:
		return e.stepPickingBranch(ctx, tenant, cust, sess, ev)
	case models.StepPickingService:
		return e.stepPickingService(ctx, tenant, cust, sess, ev)
	case models.StepPickingResource:
		return e.stepPickingResource(ctx, tenant, cust, sess, ev)
	case models.StepPickingDate:
		return e.stepPickingDate(ctx, tenant, cust, sess, ev)
	case models.StepPickingSlot:
		return e.stepPickingSlot(ctx, tenant, cust, sess, ev)
	case models.StepViewingAppts:
		return e.stepViewingAppts(ctx, tenant, cust, sess, ev)
	case models.StepCancelingAppt:
		return e.stepCancelingAppt(ctx, tenant, cust, sess, ev)
	case models.StepPlanBrowse:
		return e.stepPlanBrowse(ctx, tenant, cust, sess, ev)
	case models.StepPlanConfirm:
		return e.stepPlanConfirm(ctx, tenant, cust, sess, ev)
	case models.StepWaitingForAgent:
		// Reached only through a race with the agent ending the handoff.
		return e.stepHomeMenu(ctx, tenant, cust, sess, ev)
	default:
		e.Logger.Error("unknown conversation step", zap.String("step", string(sess.Step)))
		sess.Step = models.StepHomeMenu
		sess.Data = nil
		return sess, []Effect{send(e.homeMenuPayload(cust))}
	}
}

// apply executes the effects a handler requested, in order. Booking and
// handoff effects rewrite the session; the returned session is the one the
// caller persists (unless cleared).
func (e *Engine) apply(ctx context.Context, tenant *models.TenantContext, cust *models.Customer, sess models.Session, effects []Effect) (models.Session, bool) {
	cleared := false
	for _, eff := range effects {
		switch v := eff.(type) {
		case sendEffect:
			e.deliver(ctx, tenant, sess.Phone, v.Payload)
		case bookEffect:
			sess = e.performBooking(ctx, tenant, cust, sess, v)
		case cancelApptEffect:
			e.performCancel(ctx, tenant, sess.Phone, v.AppointmentID)
		case startHandoffEffect:
			sess = e.Router.Start(ctx, tenant, sess, cust.Name)
			if v.FirstMessage != "" {
				sess = e.Router.Forward(ctx, tenant, sess, v.FirstMessage)
			}
		case planCheckoutEffect:
			e.performPlanCheckout(ctx, tenant, sess.Phone, v.PlanID)
		case clearSessionEffect:
			cleared = true
		}
	}
	return sess, cleared
}

// normalizeEvent maps the raw inbound message onto the command/free-text
// event union. Data-collection steps consume raw text even when the matcher
// would have recognized a phrase in it.
func normalizeEvent(msg models.InboundMessage, step models.Step) Event {
	if msg.OptionID != "" {
		return Event{Kind: EventCommand, Command: msg.OptionID, Text: msg.Text}
	}
	if !consumesFreeText(step) {
		if cmd, ok := MatchCommand(msg.Text); ok {
			return Event{Kind: EventCommand, Command: cmd, Text: msg.Text}
		}
	}
	return Event{Kind: EventFreeText, Text: msg.Text}
}

// consumesFreeText lists the steps whose handler reads the message body as
// data (a name, an id number, a date) rather than as intent.
func consumesFreeText(step models.Step) bool {
	switch step {
	case models.StepCollectName, models.StepCollectID,
		models.StepIdentifyByPhone, models.StepIdentifyByID,
		models.StepPickingDate:
		return true
	}
	return false
}

func isIdentifyStep(step models.Step) bool {
	switch step {
	case models.StepIdentifyChoice, models.StepIdentifyByPhone,
		models.StepIdentifyByID, models.StepCollectName, models.StepCollectID:
		return true
	}
	return false
}

// resumeFor picks the step to return to after identification. A command
// names the intent directly; otherwise an in-flight flow step is kept.
func resumeFor(step models.Step, ev Event) models.Step {
	if ev.Kind == EventCommand {
		switch ev.Command {
		case CmdBook:
			return models.StepPickingBranch
		case CmdViewAppts:
			return models.StepViewingAppts
		case CmdPlans:
			return models.StepPlanBrowse
		case CmdTalkToAgent:
			return models.StepWaitingForAgent
		}
	}
	switch step {
	case models.StepIdle, models.StepHomeMenu:
		return models.StepHomeMenu
	}
	return step
}

func (e *Engine) loadCustomer(ctx context.Context, tenantID, phone string) *models.Customer {
	cust, err := e.Customers.GetByPhone(ctx, tenantID, phone)
	if err != nil {
		if err != mongo.ErrNoDocuments {
			e.Logger.Warn("customer lookup failed", zap.String("phone", phone), zap.Error(err))
		}
		return nil
	}
	return cust
}

func (e *Engine) deliver(ctx context.Context, tenant *models.TenantContext, to string, payload models.OutboundPayload) {
	if _, err := e.Sender.Send(ctx, tenant, to, payload); err != nil {
		e.Logger.Warn("outbound delivery failed", zap.String("to", to), zap.Error(err))
	}
}

// endHandoffLocked lets the customer leave a handoff themselves. The agent
// is told, the session returns to the menu. Runs under the session lock, so
// it must not call Router.End (which takes the same lock).
func (e *Engine) endHandoffLocked(ctx context.Context, tenant *models.TenantContext, cust *models.Customer, sess models.Session) {
	name := sess.Phone
	if data, ok := sess.Data.(models.HandoffData); ok && data.CustomerName != "" {
		name = data.CustomerName
	}
	e.Router.NotifyHandoffLeft(ctx, tenant, sess.Phone, name)

	sess.Step = models.StepHomeMenu
	sess.Data = nil
	sess.HandoffOpen = false
	e.Sessions.Put(sess)
	e.Correlations.DropCustomer(tenant.ID, sess.Phone)
	e.deliver(ctx, tenant, sess.Phone, e.homeMenuPayload(cust))
}

// SendHomeMenu delivers the main menu to a customer outside of normal
// dispatch. The handoff router calls it after an agent ends a conversation.
func (e *Engine) SendHomeMenu(ctx context.Context, tenant *models.TenantContext, phone string) {
	cust := e.loadCustomer(ctx, tenant.ID, phone)
	e.deliver(ctx, tenant, phone, e.homeMenuPayload(cust))
}

func (e *Engine) homeMenuPayload(cust *models.Customer) models.OutboundPayload {
	greeting := "What would you like to do?"
	if cust != nil && cust.Name != "" {
		greeting = "Hi " + cust.Name + "! What would you like to do?"
	}
	return models.ListPayload("Main menu", greeting, []models.Row{
		{ID: CmdBook, Title: "Book an appointment"},
		{ID: CmdViewAppts, Title: "My appointments"},
		{ID: CmdTalkToAgent, Title: "Talk to a person"},
		{ID: CmdPlans, Title: "Plans & pricing"},
	})
}
