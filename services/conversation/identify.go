package conversation

import (
	"context"
	"strings"

	"bookline/models"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// startIdentification opens the identification sub-flow, remembering the
// step to resume once the customer is known. Delivers the opening prompt
// itself since it is called from the gate, outside normal dispatch.
func (e *Engine) startIdentification(ctx context.Context, tenant *models.TenantContext, sess models.Session, resume models.Step) models.Session {
	sess.Step = models.StepCollectName
	sess.Data = models.IdentifyData{Resume: resume}
	e.deliver(ctx, tenant, sess.Phone, collectNamePrompt())
	return sess
}

func collectNamePrompt() models.OutboundPayload {
	return models.ButtonsPayload(
		"Welcome! Before we continue, what's your full name?",
		[]models.Row{{ID: CmdRegistered, Title: "I'm already registered"}},
	)
}

func (e *Engine) stepCollectName(ctx context.Context, tenant *models.TenantContext, cust *models.Customer, sess models.Session, ev Event) (models.Session, []Effect) {
	data, _ := sess.Data.(models.IdentifyData)

	if ev.Kind == EventCommand && ev.Command == CmdRegistered {
		sess.Step = models.StepIdentifyChoice
		sess.Data = data
		return sess, []Effect{send(models.ButtonsPayload(
			"How should we find your account?",
			[]models.Row{
				{ID: CmdIDByPhone, Title: "By phone number"},
				{ID: CmdIDByNatID, Title: "By ID number"},
			},
		))}
	}

	name := strings.TrimSpace(ev.Text)
	if len(name) < 2 {
		return sess, []Effect{sendText("That doesn't look like a name. What's your full name?")}
	}

	data.Name = name
	sess.Data = data
	sess.Step = models.StepCollectID
	return sess, []Effect{send(models.ButtonsPayload(
		"Thanks, "+name+"! If you want, share your national ID number to speed up check-in, or skip it.",
		[]models.Row{{ID: CmdSkip, Title: "Skip"}},
	))}
}

func (e *Engine) stepCollectID(ctx context.Context, tenant *models.TenantContext, cust *models.Customer, sess models.Session, ev Event) (models.Session, []Effect) {
	data, _ := sess.Data.(models.IdentifyData)

	if ev.Kind != EventCommand || ev.Command != CmdSkip {
		id := digits(ev.Text)
		if len(id) < 6 || len(id) > 12 {
			return sess, []Effect{send(models.ButtonsPayload(
				"That ID number doesn't look right. Send just the digits, or skip it.",
				[]models.Row{{ID: CmdSkip, Title: "Skip"}},
			))}
		}
		data.NationalID = id
	}

	return e.finishIdentification(ctx, tenant, sess, data)
}

func (e *Engine) stepIdentifyChoice(ctx context.Context, tenant *models.TenantContext, cust *models.Customer, sess models.Session, ev Event) (models.Session, []Effect) {
	if ev.Kind == EventCommand {
		switch ev.Command {
		case CmdIDByPhone:
			sess.Step = models.StepIdentifyByPhone
			return sess, []Effect{sendText("What phone number is your account registered under?")}
		case CmdIDByNatID:
			sess.Step = models.StepIdentifyByID
			return sess, []Effect{sendText("What's your national ID number?")}
		}
	}
	return sess, []Effect{send(models.ButtonsPayload(
		"Please pick one of the options.",
		[]models.Row{
			{ID: CmdIDByPhone, Title: "By phone number"},
			{ID: CmdIDByNatID, Title: "By ID number"},
		},
	))}
}

// stepIdentifyByPhone looks up an existing account by another phone number
// and rebinds it to the current channel.
func (e *Engine) stepIdentifyByPhone(ctx context.Context, tenant *models.TenantContext, cust *models.Customer, sess models.Session, ev Event) (models.Session, []Effect) {
	data, _ := sess.Data.(models.IdentifyData)

	phone := digits(ev.Text)
	if len(phone) < 6 {
		return sess, []Effect{sendText("That doesn't look like a phone number. Try again with just the digits.")}
	}

	existing, err := e.Customers.GetByPhone(ctx, tenant.ID, "+"+phone)
	if err == mongo.ErrNoDocuments {
		existing, err = e.Customers.GetByPhone(ctx, tenant.ID, phone)
	}
	if err != nil {
		if err != mongo.ErrNoDocuments {
			e.Logger.Warn("identify by phone lookup failed", zap.Error(err))
		}
		sess.Step = models.StepCollectName
		sess.Data = data
		return sess, []Effect{sendText("We couldn't find an account under that number. Let's register you instead. What's your full name?")}
	}

	data.Name = existing.Name
	data.NationalID = existing.NationalID
	return e.finishIdentification(ctx, tenant, sess, data)
}

// stepIdentifyByID looks up an existing account by national id and links it
// to the current channel.
func (e *Engine) stepIdentifyByID(ctx context.Context, tenant *models.TenantContext, cust *models.Customer, sess models.Session, ev Event) (models.Session, []Effect) {
	data, _ := sess.Data.(models.IdentifyData)

	id := digits(ev.Text)
	if len(id) < 6 {
		return sess, []Effect{sendText("That doesn't look like an ID number. Try again with just the digits.")}
	}

	existing, err := e.Customers.GetByNationalID(ctx, tenant.ID, id)
	if err != nil {
		if err != mongo.ErrNoDocuments {
			e.Logger.Warn("identify by national id lookup failed", zap.Error(err))
		}
		data.NationalID = id
		sess.Step = models.StepCollectName
		sess.Data = data
		return sess, []Effect{sendText("We couldn't find an account under that ID. Let's register you instead. What's your full name?")}
	}

	data.Name = existing.Name
	data.NationalID = existing.NationalID
	return e.finishIdentification(ctx, tenant, sess, data)
}

// finishIdentification persists the customer record keyed by the current
// channel phone and resumes the originally requested step.
func (e *Engine) finishIdentification(ctx context.Context, tenant *models.TenantContext, sess models.Session, data models.IdentifyData) (models.Session, []Effect) {
	cust := &models.Customer{
		TenantID:   tenant.ID,
		Phone:      sess.Phone,
		Name:       data.Name,
		NationalID: data.NationalID,
	}
	if err := e.Customers.Upsert(ctx, cust); err != nil {
		e.Logger.Error("customer upsert failed", zap.String("phone", sess.Phone), zap.Error(err))
		return sess, []Effect{sendText("Something went wrong saving your details. Please try again.")}
	}

	return e.resume(ctx, tenant, cust, sess, data.Resume)
}

// resume routes the session to the step the customer originally asked for
// before the identification detour.
func (e *Engine) resume(ctx context.Context, tenant *models.TenantContext, cust *models.Customer, sess models.Session, target models.Step) (models.Session, []Effect) {
	switch target {
	case models.StepPickingBranch, models.StepPickingService,
		models.StepPickingResource, models.StepPickingDate, models.StepPickingSlot:
		return e.startBooking(ctx, tenant, cust, sess)
	case models.StepViewingAppts, models.StepCancelingAppt:
		return e.showAppointments(ctx, tenant, cust, sess)
	case models.StepPlanBrowse, models.StepPlanConfirm:
		return e.showPlans(ctx, tenant, cust, sess)
	case models.StepWaitingForAgent:
		return sess, []Effect{startHandoffEffect{}}
	default:
		sess.Step = models.StepHomeMenu
		sess.Data = nil
		return sess, []Effect{send(e.homeMenuPayload(cust))}
	}
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
