package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bookline/config"
	"bookline/models"
	"bookline/services/conversation"
	"bookline/services/delivery"
	tenantService "bookline/services/tenant"
	"bookline/utils"
)

// Wired by main before the router starts.
var (
	Tenants tenantService.Registry
	Engine  *conversation.Engine
	Sender  *delivery.Sender
)

// webhookEnvelope is the channel platform's webhook shape. Only the fields
// the engine consumes are mapped.
type webhookEnvelope struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Metadata struct {
					PhoneNumberID string `json:"phone_number_id"`
				} `json:"metadata"`
				Messages []inboundPayload `json:"messages"`
				Statuses []statusPayload  `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type inboundPayload struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Context *struct {
		ID string `json:"id"`
	} `json:"context,omitempty"`
	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply,omitempty"`
		ListReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"list_reply,omitempty"`
	} `json:"interactive,omitempty"`
}

type statusPayload struct {
	ID          string `json:"id"`
	RecipientID string `json:"recipient_id"`
	Status      string `json:"status"`
	Errors      []struct {
		Code  int    `json:"code"`
		Title string `json:"title"`
	} `json:"errors,omitempty"`
}

// VerifyWebhook answers the platform's subscription handshake. The shared
// deployment token is accepted, as is a verify token registered by a
// manually provisioned tenant bringing its own app.
func VerifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token != "" {
		if token == config.AppConfig.WebhookVerifyToken || Tenants.VerifyTokenKnown(c.Request.Context(), token) {
			c.String(http.StatusOK, challenge)
			return
		}
	}
	utils.JSONError(c, http.StatusForbidden, "webhook verification failed", "")
}

// ReceiveWebhook validates the payload signature, acknowledges immediately
// and processes the events off the request goroutine. The platform retries
// on non-2xx, so anything past signature validation must not fail the
// request.
func ReceiveWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "unreadable body", err.Error())
		return
	}
	if !validSignature(body, c.GetHeader("X-Hub-Signature-256")) {
		utils.JSONError(c, http.StatusForbidden, "invalid signature", "")
		return
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "malformed payload", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
	go processEnvelope(context.Background(), envelope)
}

// validSignature checks the sha256 HMAC over the raw body. An empty
// configured secret disables the check (local development).
func validSignature(body []byte, header string) bool {
	secret := config.AppConfig.ChannelAppSecret
	if secret == "" {
		return true
	}
	sig := strings.TrimPrefix(header, "sha256=")
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(sig), []byte(expected))
}

func processEnvelope(ctx context.Context, envelope webhookEnvelope) {
	logger := utils.GetLogger()

	for _, entry := range envelope.Entry {
		for _, change := range entry.Changes {
			channelID := change.Value.Metadata.PhoneNumberID
			tenant, err := Tenants.Resolve(ctx, channelID)
			if err != nil {
				if errors.Is(err, tenantService.ErrUnresolvable) {
					logger.Warn("webhook for unresolvable channel", zap.String("channelId", channelID))
				} else {
					logger.Error("tenant resolution failed", zap.String("channelId", channelID), zap.Error(err))
				}
				continue
			}

			for _, raw := range change.Value.Messages {
				Engine.Handle(ctx, tenant, toInbound(tenant.ID, raw))
			}
			for _, status := range change.Value.Statuses {
				handleStatus(ctx, tenant, status, logger)
			}
		}
	}
}

func toInbound(tenantID string, raw inboundPayload) models.InboundMessage {
	msg := models.InboundMessage{
		TenantID:  tenantID,
		From:      raw.From,
		Type:      raw.Type,
		Timestamp: time.Now(),
	}
	if secs, err := strconv.ParseInt(raw.Timestamp, 10, 64); err == nil {
		msg.Timestamp = time.Unix(secs, 0)
	}
	if raw.Text != nil {
		msg.Text = raw.Text.Body
	}
	if raw.Context != nil {
		msg.ReplyToID = raw.Context.ID
	}
	if raw.Interactive != nil {
		msg.Type = models.MessageTypeInteractive
		switch {
		case raw.Interactive.ListReply != nil:
			msg.OptionID = raw.Interactive.ListReply.ID
			msg.Text = raw.Interactive.ListReply.Title
		case raw.Interactive.ButtonReply != nil:
			msg.OptionID = raw.Interactive.ButtonReply.ID
			msg.Text = raw.Interactive.ButtonReply.Title
		}
	}
	return msg
}

// handleStatus reacts to delivery failures reported asynchronously. A closed
// customer-service window triggers the template re-engagement path; other
// classes were already escalated on the send side.
func handleStatus(ctx context.Context, tenant *models.TenantContext, status statusPayload, logger *zap.Logger) {
	if status.Status != "failed" || len(status.Errors) == 0 {
		return
	}
	for _, apiErr := range status.Errors {
		derr := delivery.ClassifyCode(apiErr.Code, apiErr.Title)
		logger.Warn("delivery failure reported via status update",
			zap.String("recipient", status.RecipientID),
			zap.String("class", string(derr.Class)),
			zap.String("messageId", status.ID))
		if derr.Class == models.ErrClassWindowClosed {
			if _, err := Sender.Reengage(ctx, tenant, status.RecipientID); err != nil {
				logger.Warn("re-engagement failed", zap.String("recipient", status.RecipientID), zap.Error(err))
			}
		}
	}
}
