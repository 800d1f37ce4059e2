package handoff

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"bookline/models"
	"bookline/services/correlation"
	"bookline/services/session"

	"go.uber.org/zap"
)

// OutboundSender delivers payloads through the reliability layer.
type OutboundSender interface {
	Send(ctx context.Context, tenant *models.TenantContext, to string, payload models.OutboundPayload) (string, error)
}

// EndCommand terminates a handoff. The agent may append a phone number when
// several customers are waiting; the customer just sends the word.
const EndCommand = "#end"

var phoneToken = regexp.MustCompile(`\+?\d[\d\s().-]{5,18}\d`)

// Router multiplexes every waiting customer conversation onto one agent
// channel and demultiplexes the agent's replies back to the right customer.
type Router struct {
	Sessions       session.Store
	Correlations   *correlation.Store
	Sender         OutboundSender
	Logger         *zap.Logger
	AgentChannelID string
	// HomeMenu restores a customer's menu after their handoff ends. Wired by
	// the conversation engine.
	HomeMenu func(ctx context.Context, tenant *models.TenantContext, phone string)
}

// Start moves the session into waiting_for_agent, announces the customer on
// the agent channel and acknowledges the customer. The returned session
// carries the threading state; the caller persists it.
func (r *Router) Start(ctx context.Context, tenant *models.TenantContext, sess models.Session, customerName string) models.Session {
	notice := fmt.Sprintf("New handoff: %s (%s). Reply here to talk to them. Send %s %s when done.",
		customerName, sess.Phone, EndCommand, sess.Phone)
	msgID, err := r.Sender.Send(ctx, tenant, r.AgentChannelID, models.TextPayload(notice))
	if err != nil {
		r.Logger.Warn("failed to announce handoff to agent",
			zap.String("phone", sess.Phone), zap.Error(err))
	}

	sess.Step = models.StepWaitingForAgent
	sess.Data = models.HandoffData{
		AgentID:        r.AgentChannelID,
		CustomerName:   customerName,
		LastMsgToAgent: msgID,
	}
	r.Correlations.DropCustomer(tenant.ID, sess.Phone)

	if _, err := r.Sender.Send(ctx, tenant, sess.Phone,
		models.TextPayload("You are now connected with one of our team. Send \"menu\" anytime to return to self-service.")); err != nil {
		r.Logger.Warn("failed to ack handoff to customer", zap.String("phone", sess.Phone), zap.Error(err))
	}
	return sess
}

// Forward relays a customer message verbatim to the agent channel, threaded
// onto the last message sent to the agent for this customer.
func (r *Router) Forward(ctx context.Context, tenant *models.TenantContext, sess models.Session, text string) models.Session {
	data, ok := sess.Data.(models.HandoffData)
	if !ok {
		r.Logger.Warn("forward without handoff data", zap.String("phone", sess.Phone))
		return sess
	}

	payload := models.OutboundPayload{
		Kind:      models.PayloadText,
		Text:      fmt.Sprintf("%s (%s): %s", data.CustomerName, sess.Phone, text),
		ReplyToID: data.LastMsgToAgent,
	}
	msgID, err := r.Sender.Send(ctx, tenant, r.AgentChannelID, payload)
	if err != nil {
		r.Logger.Warn("failed to forward customer message to agent",
			zap.String("phone", sess.Phone), zap.Error(err))
		return sess
	}
	data.LastMsgToAgent = msgID
	sess.Data = data
	return sess
}

// HandleAgentReply demultiplexes a message from the agent channel back to a
// waiting customer, or executes an agent command.
func (r *Router) HandleAgentReply(ctx context.Context, tenant *models.TenantContext, msg models.InboundMessage) {
	text := strings.TrimSpace(msg.Text)

	if strings.HasPrefix(strings.ToLower(text), EndCommand) {
		r.endByAgent(ctx, tenant, strings.TrimSpace(text[len(EndCommand):]))
		return
	}

	waiting := r.waitingSessions(tenant.ID)
	if len(waiting) == 0 {
		r.tellAgent(ctx, tenant, "No customer is waiting for you right now.")
		return
	}

	target, ambiguous := r.route(msg, waiting)
	if target == nil {
		r.tellAgent(ctx, tenant, "Could not match that reply to a waiting customer. Reply directly to one of their messages, or include their phone number.")
		return
	}
	if ambiguous {
		r.tellAgent(ctx, tenant, fmt.Sprintf(
			"%d customers are waiting; routed to %s by most recent activity. Reply to a specific message to be precise.",
			len(waiting), target.Phone))
	}

	if _, err := r.Sender.Send(ctx, tenant, target.Phone, models.TextPayload(text)); err != nil {
		r.Logger.Warn("failed to deliver agent reply",
			zap.String("phone", target.Phone), zap.Error(err))
	}
}

// route applies the three-tier demux: reply-thread id, phone token in the
// text, then most recent inbound activity (flagged ambiguous when more than
// one candidate exists).
func (r *Router) route(msg models.InboundMessage, waiting []models.Session) (*models.Session, bool) {
	if msg.ReplyToID != "" {
		for i := range waiting {
			data, ok := waiting[i].Data.(models.HandoffData)
			if ok && data.LastMsgToAgent == msg.ReplyToID {
				return &waiting[i], false
			}
		}
	}

	if token := phoneToken.FindString(msg.Text); token != "" {
		digits := digitsOnly(token)
		for i := range waiting {
			if strings.HasSuffix(digitsOnly(waiting[i].Phone), digits) ||
				strings.HasSuffix(digits, digitsOnly(waiting[i].Phone)) {
				return &waiting[i], false
			}
		}
	}

	var latest *models.Session
	for i := range waiting {
		if latest == nil || waiting[i].LastInbound.After(latest.LastInbound) {
			latest = &waiting[i]
		}
	}
	return latest, len(waiting) > 1
}

// endByAgent terminates a handoff on the agent's command. With several
// customers waiting the agent must name a phone number.
func (r *Router) endByAgent(ctx context.Context, tenant *models.TenantContext, phoneArg string) {
	waiting := r.waitingSessions(tenant.ID)
	if len(waiting) == 0 {
		r.tellAgent(ctx, tenant, "No customer is waiting for you right now.")
		return
	}

	var target *models.Session
	if phoneArg != "" {
		digits := digitsOnly(phoneArg)
		for i := range waiting {
			if strings.HasSuffix(digitsOnly(waiting[i].Phone), digits) {
				target = &waiting[i]
				break
			}
		}
		if target == nil {
			r.tellAgent(ctx, tenant, fmt.Sprintf("No waiting customer matches %s.", phoneArg))
			return
		}
	} else if len(waiting) == 1 {
		target = &waiting[0]
	} else {
		r.tellAgent(ctx, tenant, fmt.Sprintf("%d customers are waiting. Use %s <phone> to pick one.", len(waiting), EndCommand))
		return
	}

	r.End(ctx, tenant, target.Phone)
	r.tellAgent(ctx, tenant, fmt.Sprintf("Handoff with %s ended.", target.Phone))
}

// End clears the handoff state for (tenant, phone), notifies the customer
// and restores their home menu.
func (r *Router) End(ctx context.Context, tenant *models.TenantContext, phone string) {
	r.Sessions.WithLock(tenant.ID, phone, func() {
		sess, ok := r.Sessions.Get(tenant.ID, phone)
		if !ok || sess.Step != models.StepWaitingForAgent {
			return
		}
		sess.Step = models.StepHomeMenu
		sess.Data = nil
		r.Sessions.Put(sess)
	})
	r.Correlations.DropCustomer(tenant.ID, phone)

	if _, err := r.Sender.Send(ctx, tenant, phone,
		models.TextPayload("The conversation with our team has ended. Back to the main menu:")); err != nil {
		r.Logger.Warn("failed to notify customer of handoff end", zap.String("phone", phone), zap.Error(err))
	}
	if r.HomeMenu != nil {
		r.HomeMenu(ctx, tenant, phone)
	}
}

// NotifyBookingConcluded tells the agent that a customer they were handling
// completed a booking, which ends the handoff.
func (r *Router) NotifyBookingConcluded(ctx context.Context, tenant *models.TenantContext, phone, customerName string) {
	r.tellAgent(ctx, tenant, fmt.Sprintf("%s (%s) completed a booking; their handoff is closed.", customerName, phone))
}

// NotifyHandoffLeft tells the agent the customer returned to self-service on
// their own.
func (r *Router) NotifyHandoffLeft(ctx context.Context, tenant *models.TenantContext, phone, customerName string) {
	r.tellAgent(ctx, tenant, fmt.Sprintf("%s (%s) left the conversation and went back to the menu.", customerName, phone))
}

func (r *Router) waitingSessions(tenantID string) []models.Session {
	var waiting []models.Session
	for _, s := range r.Sessions.All() {
		if s.TenantID == tenantID && s.Step == models.StepWaitingForAgent {
			waiting = append(waiting, s)
		}
	}
	return waiting
}

func (r *Router) tellAgent(ctx context.Context, tenant *models.TenantContext, text string) {
	if _, err := r.Sender.Send(ctx, tenant, r.AgentChannelID, models.TextPayload(text)); err != nil {
		r.Logger.Warn("failed to message agent channel", zap.Error(err))
	}
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
