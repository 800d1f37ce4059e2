package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bookline/models"
	"bookline/services/booking"

	"go.uber.org/zap"
)

const planLinkExpiry = 30 * time.Minute

// showPlans opens the platform plan browser.
func (e *Engine) showPlans(ctx context.Context, tenant *models.TenantContext, cust *models.Customer, sess models.Session) (models.Session, []Effect) {
	plans, err := e.Catalog.ListPlans(ctx)
	if err != nil {
		e.Logger.Error("plan listing failed", zap.Error(err))
		return sess, []Effect{sendText("We couldn't load the plans right now. Please try again in a moment.")}
	}
	if len(plans) == 0 {
		sess.Step = models.StepHomeMenu
		sess.Data = nil
		return sess, []Effect{sendText("No plans are available right now.")}
	}

	sess.Step = models.StepPlanBrowse
	sess.Data = models.PlanData{}
	return sess, []Effect{send(models.ListPayload("Plans & pricing",
		"Pick a plan to see the details.",
		paginate(planRows(plans), 0, e.pageSize())))}
}

func planRows(plans []models.PlatformPlan) []models.Row {
	rows := make([]models.Row, 0, len(plans))
	for _, p := range plans {
		rows = append(rows, models.Row{
			ID:          PrefixPlan + p.ID,
			Title:       p.Name,
			Description: fmt.Sprintf("$%.0f / %s", p.Price, p.Period),
		})
	}
	return rows
}

func (e *Engine) stepPlanBrowse(ctx context.Context, tenant *models.TenantContext, cust *models.Customer, sess models.Session, ev Event) (models.Session, []Effect) {
	data, _ := sess.Data.(models.PlanData)

	if ev.Kind == EventCommand {
		switch {
		case strings.HasPrefix(ev.Command, PrefixPlan):
			return e.showPlanDetail(ctx, tenant, sess, data, strings.TrimPrefix(ev.Command, PrefixPlan))
		case ev.Command == CmdMore:
			plans, err := e.Catalog.ListPlans(ctx)
			if err != nil {
				return sess, []Effect{sendText("We couldn't load the plans right now. Please try again in a moment.")}
			}
			rows := planRows(plans)
			data.Offset = nextOffset(data.Offset, e.pageSize(), len(rows))
			sess.Data = data
			return sess, []Effect{send(models.ListPayload("Plans & pricing",
				"Pick a plan to see the details.",
				paginate(rows, data.Offset, e.pageSize())))}
		case ev.Command == CmdBack:
			sess.Step = models.StepHomeMenu
			sess.Data = nil
			return sess, []Effect{send(e.homeMenuPayload(cust))}
		}
	}
	return sess, []Effect{sendText("Please pick a plan from the list.")}
}

func (e *Engine) showPlanDetail(ctx context.Context, tenant *models.TenantContext, sess models.Session, data models.PlanData, planID string) (models.Session, []Effect) {
	plan, err := e.Catalog.GetPlan(ctx, planID)
	if err != nil {
		e.Logger.Warn("plan lookup failed", zap.String("planId", planID), zap.Error(err))
		return sess, []Effect{sendText("We couldn't find that plan. Pick one from the list.")}
	}

	detail := fmt.Sprintf("%s\n$%.0f / %s", plan.Name, plan.Price, plan.Period)
	if plan.Description != "" {
		detail = plan.Description + "\n" + detail
	}

	data.PlanID = planID
	sess.Step = models.StepPlanConfirm
	sess.Data = data
	return sess, []Effect{send(models.ButtonsPayload(detail, []models.Row{
		{ID: CmdConfirm, Title: "Get payment link"},
		{ID: CmdBack, Title: "Back"},
	}))}
}

func (e *Engine) stepPlanConfirm(ctx context.Context, tenant *models.TenantContext, cust *models.Customer, sess models.Session, ev Event) (models.Session, []Effect) {
	data, _ := sess.Data.(models.PlanData)

	if ev.Kind == EventCommand {
		switch ev.Command {
		case CmdConfirm:
			id := data.PlanID
			sess.Step = models.StepHomeMenu
			sess.Data = nil
			return sess, []Effect{planCheckoutEffect{PlanID: id}}
		case CmdBack, CmdAbort:
			return e.showPlans(ctx, tenant, cust, sess)
		}
	}
	return sess, []Effect{send(models.ButtonsPayload("Ready to subscribe?", []models.Row{
		{ID: CmdConfirm, Title: "Get payment link"},
		{ID: CmdBack, Title: "Back"},
	}))}
}

// performPlanCheckout creates the checkout link for a plan purchase and
// sends it to the customer.
func (e *Engine) performPlanCheckout(ctx context.Context, tenant *models.TenantContext, phone, planID string) {
	plan, err := e.Catalog.GetPlan(ctx, planID)
	if err != nil {
		e.Logger.Warn("plan lookup failed", zap.String("planId", planID), zap.Error(err))
		e.deliver(ctx, tenant, phone, models.TextPayload("We couldn't find that plan anymore. Please pick another."))
		return
	}

	link, err := e.Payments.CreateCheckoutLink(ctx, tenant.ID, "plan:"+plan.ID,
		plan.Price, booking.PlanCheckoutTitle(plan), e.now().Add(planLinkExpiry))
	if err != nil {
		e.Logger.Error("plan checkout link failed", zap.String("planId", planID), zap.Error(err))
		e.deliver(ctx, tenant, phone, models.TextPayload("We couldn't create the payment link. Please try again in a few minutes."))
		return
	}

	e.deliver(ctx, tenant, phone, models.TextPayload(
		fmt.Sprintf("Here's your payment link for %s (valid %d minutes):\n%s",
			plan.Name, int(planLinkExpiry.Minutes()), link)))
}
