package delivery

import (
	"context"
	"errors"
	"fmt"

	"bookline/models"
	"bookline/services/ops"

	"go.uber.org/zap"
)

// ChannelClient is the message-send primitive. Transport mechanics (signing,
// envelope construction) live behind this interface; failures come back as
// *models.DeliveryError so the reliability layer can triage them.
type ChannelClient interface {
	Send(ctx context.Context, tenant *models.TenantContext, to string, payload models.OutboundPayload) (string, error)
	SendTemplate(ctx context.Context, tenant *models.TenantContext, to, template, locale string, params []string) (string, error)
}

// TenantRefresher re-derives a tenant context from stored credentials after
// purging any cached copy. Used to repair stale channel-routing identifiers.
type TenantRefresher interface {
	Refresh(ctx context.Context, tenantID string) (*models.TenantContext, error)
}

// Correlator remembers the ids of proactively sent messages so a later
// inbound reply can be matched back to the customer it went to.
type Correlator interface {
	Record(messageID, tenantID, phone string)
}

// Sender is the outbound-delivery reliability layer. It attempts direct
// delivery, remediates window-closed failures through approved templates,
// repairs stale routing identifiers, and reports terminal failures exactly
// once.
type Sender struct {
	Client           ChannelClient
	Tenants          TenantRefresher
	Escalator        ops.Escalator
	Correlations     Correlator // optional; records re-engagement message ids
	Logger           *zap.Logger
	ReengageTemplate string
	FallbackTemplate string
	Locales          []string // priority order for template variants
}

// Send attempts delivery of payload and runs the remediation ladder on
// failure. The returned message id is the id of whatever actually went out
// (the original payload or a re-engagement template).
func (s *Sender) Send(ctx context.Context, tenant *models.TenantContext, to string, payload models.OutboundPayload) (string, error) {
	id, err := s.Client.Send(ctx, tenant, to, payload)
	if err == nil {
		return id, nil
	}

	var derr *models.DeliveryError
	if !errors.As(err, &derr) {
		derr = &models.DeliveryError{Class: models.ErrClassUnknown, Detail: err.Error()}
	}

	switch derr.Class {
	case models.ErrClassWindowClosed:
		return s.reengage(ctx, tenant, to, derr)

	case models.ErrClassInvalidRoutingID:
		return s.repairAndRetry(ctx, tenant, to, payload, derr)

	case models.ErrClassNotAllowlisted, models.ErrClassRateLimited:
		// Not window-closed errors: template fallback would be wrong. Report
		// and stop.
		s.report(ctx, tenant, to, derr)
		return "", derr

	default:
		s.report(ctx, tenant, to, derr)
		return "", derr
	}
}

// Reengage runs the template fallback chain directly. Also invoked for
// window-closed failures observed out-of-band in status updates.
func (s *Sender) Reengage(ctx context.Context, tenant *models.TenantContext, to string) (string, error) {
	return s.reengage(ctx, tenant, to, &models.DeliveryError{
		Class:  models.ErrClassWindowClosed,
		Detail: "window closed reported via status update",
	})
}

// reengage tries the approved template in each locale in priority order,
// then the generic fallback template. A template that goes out arrives
// outside any live exchange, so its id is recorded for reply correlation.
// No success means a terminal report; an automatic retry loop here would
// dress a policy violation up as a transient error.
func (s *Sender) reengage(ctx context.Context, tenant *models.TenantContext, to string, cause *models.DeliveryError) (string, error) {
	for _, locale := range s.Locales {
		id, err := s.Client.SendTemplate(ctx, tenant, to, s.ReengageTemplate, locale, nil)
		if err == nil {
			s.correlate(id, tenant.ID, to)
			return id, nil
		}
		s.Logger.Debug("re-engagement template failed",
			zap.String("template", s.ReengageTemplate), zap.String("locale", locale), zap.Error(err))
	}

	if s.FallbackTemplate != "" {
		locale := "en"
		if len(s.Locales) > 0 {
			locale = s.Locales[0]
		}
		id, err := s.Client.SendTemplate(ctx, tenant, to, s.FallbackTemplate, locale, nil)
		if err == nil {
			s.correlate(id, tenant.ID, to)
			return id, nil
		}
		s.Logger.Debug("generic fallback template failed",
			zap.String("template", s.FallbackTemplate), zap.Error(err))
	}

	terminal := &models.DeliveryError{
		Class:  models.ErrClassWindowClosed,
		Detail: fmt.Sprintf("all re-engagement templates exhausted: %s", cause.Detail),
	}
	s.report(ctx, tenant, to, terminal)
	return "", terminal
}

// repairAndRetry purges the cached routing identifier, re-derives the tenant
// context from stored credentials, and retries the original send exactly
// once.
func (s *Sender) repairAndRetry(ctx context.Context, tenant *models.TenantContext, to string, payload models.OutboundPayload, cause *models.DeliveryError) (string, error) {
	fresh, err := s.Tenants.Refresh(ctx, tenant.ID)
	if err != nil {
		s.report(ctx, tenant, to, &models.DeliveryError{
			Class:  models.ErrClassInvalidRoutingID,
			Detail: fmt.Sprintf("routing id refresh failed: %v (after %s)", err, cause.Detail),
		})
		return "", cause
	}

	id, err := s.Client.Send(ctx, fresh, to, payload)
	if err == nil {
		return id, nil
	}
	terminal := &models.DeliveryError{
		Class:  models.ErrClassInvalidRoutingID,
		Detail: fmt.Sprintf("retry with refreshed routing id failed: %v", err),
	}
	s.report(ctx, tenant, to, terminal)
	return "", terminal
}

func (s *Sender) correlate(messageID, tenantID, phone string) {
	if s.Correlations == nil {
		return
	}
	s.Correlations.Record(messageID, tenantID, phone)
}

func (s *Sender) report(ctx context.Context, tenant *models.TenantContext, to string, derr *models.DeliveryError) {
	if s.Escalator == nil {
		return
	}
	s.Escalator.Escalate(ctx, ops.Incident{
		Class:     string(derr.Class),
		TenantID:  tenant.ID,
		Recipient: to,
		Detail:    derr.Detail,
	})
}
