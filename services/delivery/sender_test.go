package delivery

import (
	"context"
	"testing"

	"bookline/models"
	"bookline/services/correlation"
	"bookline/services/ops"

	"go.uber.org/zap"
)

type templateCall struct {
	template string
	locale   string
}

type fakeClient struct {
	sendErrs      []error // consumed per Send call; nil entry = success
	sends         int
	templateCalls []templateCall
	templateErrs  map[templateCall]error // missing entry = success
	lastTenant    *models.TenantContext
}

func (f *fakeClient) Send(ctx context.Context, tenant *models.TenantContext, to string, payload models.OutboundPayload) (string, error) {
	f.lastTenant = tenant
	var err error
	if f.sends < len(f.sendErrs) {
		err = f.sendErrs[f.sends]
	}
	f.sends++
	if err != nil {
		return "", err
	}
	return "msg-direct", nil
}

func (f *fakeClient) SendTemplate(ctx context.Context, tenant *models.TenantContext, to, template, locale string, params []string) (string, error) {
	call := templateCall{template: template, locale: locale}
	f.templateCalls = append(f.templateCalls, call)
	if err, ok := f.templateErrs[call]; ok && err != nil {
		return "", err
	}
	return "msg-template-" + locale, nil
}

type fakeRefresher struct {
	fresh *models.TenantContext
	err   error
	calls int
}

func (f *fakeRefresher) Refresh(ctx context.Context, tenantID string) (*models.TenantContext, error) {
	f.calls++
	return f.fresh, f.err
}

type recordingEscalator struct {
	incidents []ops.Incident
}

func (r *recordingEscalator) Escalate(ctx context.Context, inc ops.Incident) {
	r.incidents = append(r.incidents, inc)
}

func derr(class models.DeliveryErrorClass) *models.DeliveryError {
	return &models.DeliveryError{Class: class, Detail: "simulated"}
}

func newSender(client *fakeClient, esc ops.Escalator, refresher TenantRefresher) *Sender {
	return &Sender{
		Client:           client,
		Tenants:          refresher,
		Escalator:        esc,
		Logger:           zap.NewNop(),
		ReengageTemplate: "booking_followup",
		FallbackTemplate: "generic_notice",
		Locales:          []string{"es", "es_AR", "en"},
	}
}

var tenant = &models.TenantContext{ID: "t1", ChannelID: "123"}

func TestSend_DirectSuccess(t *testing.T) {
	client := &fakeClient{}
	id, err := newSender(client, nil, nil).Send(context.Background(), tenant, "+1", models.TextPayload("hi"))
	if err != nil || id != "msg-direct" {
		t.Fatalf("Send = (%q, %v)", id, err)
	}
	if len(client.templateCalls) != 0 {
		t.Fatal("templates tried on direct success")
	}
}

func TestSend_WindowClosedStopsAtFirstTemplateSuccess(t *testing.T) {
	client := &fakeClient{
		sendErrs: []error{derr(models.ErrClassWindowClosed)},
		templateErrs: map[templateCall]error{
			{template: "booking_followup", locale: "es"}: derr(models.ErrClassUnknown),
		},
	}
	esc := &recordingEscalator{}
	id, err := newSender(client, esc, nil).Send(context.Background(), tenant, "+1", models.TextPayload("hi"))
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if id != "msg-template-es_AR" {
		t.Fatalf("id = %q, want the es_AR template message", id)
	}
	want := []templateCall{
		{template: "booking_followup", locale: "es"},
		{template: "booking_followup", locale: "es_AR"},
	}
	if len(client.templateCalls) != len(want) {
		t.Fatalf("template calls = %v, want %v", client.templateCalls, want)
	}
	for i, c := range want {
		if client.templateCalls[i] != c {
			t.Fatalf("template call %d = %v, want %v", i, client.templateCalls[i], c)
		}
	}
	if len(esc.incidents) != 0 {
		t.Fatal("escalated despite successful remediation")
	}
}

func TestSend_AllTemplatesFailReportsExactlyOnce(t *testing.T) {
	failAll := map[templateCall]error{
		{template: "booking_followup", locale: "es"}:    derr(models.ErrClassUnknown),
		{template: "booking_followup", locale: "es_AR"}: derr(models.ErrClassUnknown),
		{template: "booking_followup", locale: "en"}:    derr(models.ErrClassUnknown),
		{template: "generic_notice", locale: "es"}:      derr(models.ErrClassUnknown),
	}
	client := &fakeClient{
		sendErrs:     []error{derr(models.ErrClassWindowClosed)},
		templateErrs: failAll,
	}
	esc := &recordingEscalator{}
	_, err := newSender(client, esc, nil).Send(context.Background(), tenant, "+1", models.TextPayload("hi"))
	if err == nil {
		t.Fatal("expected terminal failure")
	}
	if len(esc.incidents) != 1 {
		t.Fatalf("escalations = %d, want exactly 1", len(esc.incidents))
	}
	if esc.incidents[0].Class != string(models.ErrClassWindowClosed) {
		t.Fatalf("incident class = %s", esc.incidents[0].Class)
	}
	// Generic fallback tried once, after the full locale chain.
	last := client.templateCalls[len(client.templateCalls)-1]
	if last.template != "generic_notice" {
		t.Fatalf("last template = %v, want generic_notice", last)
	}
}

func TestSend_NotAllowlistedDoesNotEscalateToTemplates(t *testing.T) {
	for _, class := range []models.DeliveryErrorClass{models.ErrClassNotAllowlisted, models.ErrClassRateLimited} {
		client := &fakeClient{sendErrs: []error{derr(class)}}
		esc := &recordingEscalator{}
		_, err := newSender(client, esc, nil).Send(context.Background(), tenant, "+1", models.TextPayload("hi"))
		if err == nil {
			t.Fatalf("%s: expected error", class)
		}
		if len(client.templateCalls) != 0 {
			t.Fatalf("%s: template fallback attempted", class)
		}
		if len(esc.incidents) != 1 {
			t.Fatalf("%s: escalations = %d, want 1", class, len(esc.incidents))
		}
	}
}

func TestSend_InvalidRoutingIDRepairsAndRetriesOnce(t *testing.T) {
	fresh := &models.TenantContext{ID: "t1", ChannelID: "456"}
	client := &fakeClient{sendErrs: []error{derr(models.ErrClassInvalidRoutingID), nil}}
	refresher := &fakeRefresher{fresh: fresh}
	id, err := newSender(client, &recordingEscalator{}, refresher).Send(context.Background(), tenant, "+1", models.TextPayload("hi"))
	if err != nil || id != "msg-direct" {
		t.Fatalf("Send = (%q, %v)", id, err)
	}
	if refresher.calls != 1 {
		t.Fatalf("refresh calls = %d, want 1", refresher.calls)
	}
	if client.lastTenant.ChannelID != "456" {
		t.Fatalf("retry used stale routing id %s", client.lastTenant.ChannelID)
	}
	if client.sends != 2 {
		t.Fatalf("sends = %d, want 2 (original + one retry)", client.sends)
	}
}

func TestSend_InvalidRoutingIDRetryFailureIsTerminal(t *testing.T) {
	client := &fakeClient{sendErrs: []error{
		derr(models.ErrClassInvalidRoutingID),
		derr(models.ErrClassInvalidRoutingID),
	}}
	esc := &recordingEscalator{}
	refresher := &fakeRefresher{fresh: tenant}
	_, err := newSender(client, esc, refresher).Send(context.Background(), tenant, "+1", models.TextPayload("hi"))
	if err == nil {
		t.Fatal("expected terminal failure")
	}
	if client.sends != 2 {
		t.Fatalf("sends = %d, want 2 (no second retry)", client.sends)
	}
	if len(esc.incidents) != 1 {
		t.Fatalf("escalations = %d, want 1", len(esc.incidents))
	}
}

func TestReengage_StatusUpdatePathUsesSameChain(t *testing.T) {
	client := &fakeClient{}
	id, err := newSender(client, nil, nil).Reengage(context.Background(), tenant, "+1")
	if err != nil || id != "msg-template-es" {
		t.Fatalf("Reengage = (%q, %v)", id, err)
	}
}

func TestReengage_RecordsMessageForReplyCorrelation(t *testing.T) {
	client := &fakeClient{}
	store := correlation.NewStore(0)
	s := newSender(client, nil, nil)
	s.Correlations = store

	id, err := s.Reengage(context.Background(), tenant, "+54911")
	if err != nil {
		t.Fatalf("Reengage error: %v", err)
	}
	entry, ok := store.Lookup(id)
	if !ok {
		t.Fatalf("message %s not recorded for correlation", id)
	}
	if entry.TenantID != "t1" || entry.Phone != "+54911" {
		t.Fatalf("entry = %+v, want tenant t1 phone +54911", entry)
	}
}

func TestSend_WindowClosedRemediationRecordsTemplateID(t *testing.T) {
	client := &fakeClient{sendErrs: []error{derr(models.ErrClassWindowClosed)}}
	store := correlation.NewStore(0)
	s := newSender(client, nil, nil)
	s.Correlations = store

	id, err := s.Send(context.Background(), tenant, "+54911", models.TextPayload("hi"))
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if _, ok := store.Lookup(id); !ok {
		t.Fatalf("remediation message %s not recorded for correlation", id)
	}
	// A direct success is an in-session reply and is not recorded.
	if id2, _ := s.Send(context.Background(), tenant, "+54911", models.TextPayload("hi")); id2 != "" {
		if _, ok := store.Lookup(id2); ok {
			t.Fatalf("direct send %s recorded, only proactive messages should be", id2)
		}
	}
}
