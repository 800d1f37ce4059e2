package handoff

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"bookline/models"
	"bookline/services/correlation"
	"bookline/services/session"

	"go.uber.org/zap"
)

type sentMessage struct {
	to      string
	payload models.OutboundPayload
}

type captureSender struct {
	sent   []sentMessage
	nextID int
}

func (c *captureSender) Send(ctx context.Context, tenant *models.TenantContext, to string, payload models.OutboundPayload) (string, error) {
	c.sent = append(c.sent, sentMessage{to: to, payload: payload})
	c.nextID++
	return fmt.Sprintf("msg-%d", c.nextID), nil
}

func (c *captureSender) sentTo(to string) []sentMessage {
	var out []sentMessage
	for _, m := range c.sent {
		if m.to == to {
			out = append(out, m)
		}
	}
	return out
}

const agentChannel = "+5491170000000"

var testTenant = &models.TenantContext{ID: "t1", ChannelID: "123"}

func newRouter(sender *captureSender) (*Router, session.Store) {
	store := session.NewMemoryStore()
	return &Router{
		Sessions:       store,
		Correlations:   correlation.NewStore(0),
		Sender:         sender,
		Logger:         zap.NewNop(),
		AgentChannelID: agentChannel,
	}, store
}

func waitingSession(store session.Store, phone, name, lastMsg string, lastInbound time.Time) {
	store.Put(models.Session{
		TenantID:    "t1",
		Phone:       phone,
		Step:        models.StepWaitingForAgent,
		LastInbound: lastInbound,
		Data: models.HandoffData{
			AgentID:        agentChannel,
			CustomerName:   name,
			LastMsgToAgent: lastMsg,
		},
	})
}

func TestHandleAgentReply_ThreadIDRoutesToExactCustomer(t *testing.T) {
	sender := &captureSender{}
	router, store := newRouter(sender)
	now := time.Now()
	waitingSession(store, "+111", "Ana", "fwd-ana", now)
	waitingSession(store, "+222", "Bruno", "fwd-bruno", now.Add(time.Minute))

	router.HandleAgentReply(context.Background(), testTenant, models.InboundMessage{
		From: agentChannel, Type: models.MessageTypeText,
		Text: "be there in 10", ReplyToID: "fwd-ana",
	})

	if got := sender.sentTo("+111"); len(got) != 1 || got[0].payload.Text != "be there in 10" {
		t.Fatalf("messages to Ana = %v", got)
	}
	if got := sender.sentTo("+222"); len(got) != 0 {
		t.Fatalf("Bruno received %v, want nothing", got)
	}
	if got := sender.sentTo(agentChannel); len(got) != 0 {
		t.Fatalf("agent warned on exact thread match: %v", got)
	}
}

func TestHandleAgentReply_PhoneTokenRoutes(t *testing.T) {
	sender := &captureSender{}
	router, store := newRouter(sender)
	now := time.Now()
	waitingSession(store, "+5491140001111", "Ana", "fwd-ana", now)
	waitingSession(store, "+5491140002222", "Bruno", "fwd-bruno", now.Add(time.Minute))

	router.HandleAgentReply(context.Background(), testTenant, models.InboundMessage{
		From: agentChannel, Type: models.MessageTypeText,
		Text: "for +54 9 11 4000-1111: confirmed for tomorrow",
	})

	if got := sender.sentTo("+5491140001111"); len(got) != 1 {
		t.Fatalf("messages to Ana = %v", got)
	}
	if got := sender.sentTo("+5491140002222"); len(got) != 0 {
		t.Fatalf("Bruno received %v, want nothing", got)
	}
}

func TestHandleAgentReply_RecencyFallbackWarnsOnAmbiguity(t *testing.T) {
	sender := &captureSender{}
	router, store := newRouter(sender)
	now := time.Now()
	waitingSession(store, "+111", "Ana", "fwd-ana", now)
	waitingSession(store, "+222", "Bruno", "fwd-bruno", now.Add(time.Minute))

	router.HandleAgentReply(context.Background(), testTenant, models.InboundMessage{
		From: agentChannel, Type: models.MessageTypeText, Text: "sure thing",
	})

	// Routed to Bruno (most recent inbound) and the agent warned about the
	// ambiguity.
	if got := sender.sentTo("+222"); len(got) != 1 {
		t.Fatalf("messages to Bruno = %v", got)
	}
	agentMsgs := sender.sentTo(agentChannel)
	if len(agentMsgs) != 1 || !strings.Contains(agentMsgs[0].payload.Text, "2 customers") {
		t.Fatalf("agent warning = %v", agentMsgs)
	}
}

func TestHandleAgentReply_NothingWaiting(t *testing.T) {
	sender := &captureSender{}
	router, _ := newRouter(sender)

	router.HandleAgentReply(context.Background(), testTenant, models.InboundMessage{
		From: agentChannel, Type: models.MessageTypeText, Text: "hello?",
	})

	agentMsgs := sender.sentTo(agentChannel)
	if len(agentMsgs) != 1 || !strings.Contains(agentMsgs[0].payload.Text, "No customer is waiting") {
		t.Fatalf("agent notice = %v", agentMsgs)
	}
}

func TestEndCommand_WithPhoneEndsNamedHandoff(t *testing.T) {
	sender := &captureSender{}
	router, store := newRouter(sender)
	now := time.Now()
	waitingSession(store, "+111", "Ana", "fwd-ana", now)
	waitingSession(store, "+222", "Bruno", "fwd-bruno", now)

	menuCalls := 0
	router.HomeMenu = func(ctx context.Context, tenant *models.TenantContext, phone string) {
		menuCalls++
		if phone != "+111" {
			t.Errorf("home menu for %s, want +111", phone)
		}
	}

	router.HandleAgentReply(context.Background(), testTenant, models.InboundMessage{
		From: agentChannel, Type: models.MessageTypeText, Text: "#end +111",
	})

	sess, ok := store.Get("t1", "+111")
	if !ok || sess.Step != models.StepHomeMenu {
		t.Fatalf("Ana's session = (%+v, %v), want home_menu", sess, ok)
	}
	if other, _ := store.Get("t1", "+222"); other.Step != models.StepWaitingForAgent {
		t.Fatal("Bruno's handoff ended too")
	}
	if menuCalls != 1 {
		t.Fatalf("home menu calls = %d, want 1", menuCalls)
	}
	if got := sender.sentTo("+111"); len(got) != 1 || !strings.Contains(got[0].payload.Text, "ended") {
		t.Fatalf("customer notice = %v", got)
	}
}

func TestEndCommand_AmbiguousWithoutPhone(t *testing.T) {
	sender := &captureSender{}
	router, store := newRouter(sender)
	now := time.Now()
	waitingSession(store, "+111", "Ana", "fwd-ana", now)
	waitingSession(store, "+222", "Bruno", "fwd-bruno", now)

	router.HandleAgentReply(context.Background(), testTenant, models.InboundMessage{
		From: agentChannel, Type: models.MessageTypeText, Text: "#end",
	})

	if sess, _ := store.Get("t1", "+111"); sess.Step != models.StepWaitingForAgent {
		t.Fatal("handoff ended despite ambiguity")
	}
	agentMsgs := sender.sentTo(agentChannel)
	if len(agentMsgs) != 1 || !strings.Contains(agentMsgs[0].payload.Text, "#end <phone>") {
		t.Fatalf("agent notice = %v", agentMsgs)
	}
}

func TestForward_ThreadsOnLastMessageAndAdvancesIt(t *testing.T) {
	sender := &captureSender{}
	router, store := newRouter(sender)
	waitingSession(store, "+111", "Ana", "fwd-ana", time.Now())

	sess, _ := store.Get("t1", "+111")
	updated := router.Forward(context.Background(), testTenant, sess, "is my slot still held?")

	agentMsgs := sender.sentTo(agentChannel)
	if len(agentMsgs) != 1 {
		t.Fatalf("agent messages = %v", agentMsgs)
	}
	if agentMsgs[0].payload.ReplyToID != "fwd-ana" {
		t.Fatalf("forward threaded on %q, want fwd-ana", agentMsgs[0].payload.ReplyToID)
	}
	if !strings.Contains(agentMsgs[0].payload.Text, "is my slot still held?") {
		t.Fatalf("forward text = %q", agentMsgs[0].payload.Text)
	}
	data := updated.Data.(models.HandoffData)
	if data.LastMsgToAgent == "fwd-ana" || data.LastMsgToAgent == "" {
		t.Fatalf("LastMsgToAgent not advanced: %q", data.LastMsgToAgent)
	}
}

func TestStart_SetsStateAndDropsCorrelations(t *testing.T) {
	sender := &captureSender{}
	router, _ := newRouter(sender)
	router.Correlations.Record("wamid.9", "t1", "+111")

	sess := models.Session{TenantID: "t1", Phone: "+111", Step: models.StepHomeMenu}
	updated := router.Start(context.Background(), testTenant, sess, "Ana")

	if updated.Step != models.StepWaitingForAgent {
		t.Fatalf("step = %s", updated.Step)
	}
	data, ok := updated.Data.(models.HandoffData)
	if !ok || data.CustomerName != "Ana" || data.LastMsgToAgent == "" {
		t.Fatalf("handoff data = %+v", updated.Data)
	}
	if _, found := router.Correlations.Lookup("wamid.9"); found {
		t.Fatal("correlation entry survived handoff start")
	}
	if len(sender.sentTo(agentChannel)) != 1 || len(sender.sentTo("+111")) != 1 {
		t.Fatalf("sends = %v", sender.sent)
	}
}
