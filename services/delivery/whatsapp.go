package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"bookline/models"

	"go.uber.org/zap"
)

// WhatsAppClient implements ChannelClient against the Cloud API. Only the
// envelope shapes and error-code mapping live here; everything above it goes
// through the reliability layer.
type WhatsAppClient struct {
	HTTP    *http.Client
	BaseURL string
	Logger  *zap.Logger
}

// NewWhatsAppClient builds the Cloud API client.
func NewWhatsAppClient(logger *zap.Logger) *WhatsAppClient {
	return &WhatsAppClient{
		HTTP:    &http.Client{Timeout: 15 * time.Second},
		BaseURL: "https://graph.facebook.com/v19.0",
		Logger:  logger,
	}
}

// Platform error codes, per the Cloud API error reference.
const (
	codeWindowClosed   = 131047
	codeNotAllowlisted = 131030
	codeRateLimited    = 130429
	codeBadRoutingID   = 33
)

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

func (c *WhatsAppClient) Send(ctx context.Context, tenant *models.TenantContext, to string, payload models.OutboundPayload) (string, error) {
	body := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                to,
	}
	if payload.ReplyToID != "" {
		body["context"] = map[string]string{"message_id": payload.ReplyToID}
	}
	switch payload.Kind {
	case models.PayloadText:
		body["type"] = "text"
		body["text"] = map[string]string{"body": payload.Text}
	case models.PayloadList:
		body["type"] = "interactive"
		body["interactive"] = listEnvelope(payload)
	case models.PayloadButtons:
		body["type"] = "interactive"
		body["interactive"] = buttonsEnvelope(payload)
	default:
		return "", fmt.Errorf("unsupported payload kind %q", payload.Kind)
	}
	return c.post(ctx, tenant, body)
}

func (c *WhatsAppClient) SendTemplate(ctx context.Context, tenant *models.TenantContext, to, template, locale string, params []string) (string, error) {
	components := []map[string]interface{}{}
	if len(params) > 0 {
		vars := make([]map[string]string, len(params))
		for i, p := range params {
			vars[i] = map[string]string{"type": "text", "text": p}
		}
		components = append(components, map[string]interface{}{"type": "body", "parameters": vars})
	}
	body := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "template",
		"template": map[string]interface{}{
			"name":       template,
			"language":   map[string]string{"code": locale},
			"components": components,
		},
	}
	return c.post(ctx, tenant, body)
}

func (c *WhatsAppClient) post(ctx context.Context, tenant *models.TenantContext, body map[string]interface{}) (string, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal send body: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.BaseURL, tenant.ChannelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("failed to build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tenant.AccessToken)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", &models.DeliveryError{Class: models.ErrClassUnknown, Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
			return "", &models.DeliveryError{
				Class:  models.ErrClassUnknown,
				Detail: fmt.Sprintf("send failed with status %d", resp.StatusCode),
			}
		}
		return "", classify(apiErr)
	}

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || len(out.Messages) == 0 {
		return "", &models.DeliveryError{Class: models.ErrClassUnknown, Detail: "send response missing message id"}
	}
	return out.Messages[0].ID, nil
}

func classify(apiErr apiError) *models.DeliveryError {
	return ClassifyCode(apiErr.Error.Code, apiErr.Error.Message)
}

// ClassifyCode maps a platform error code onto the delivery error taxonomy.
// Also used by the webhook layer for error codes arriving in status updates.
func ClassifyCode(code int, detail string) *models.DeliveryError {
	class := models.ErrClassUnknown
	switch code {
	case codeWindowClosed:
		class = models.ErrClassWindowClosed
	case codeNotAllowlisted:
		class = models.ErrClassNotAllowlisted
	case codeRateLimited:
		class = models.ErrClassRateLimited
	case codeBadRoutingID:
		class = models.ErrClassInvalidRoutingID
	}
	return &models.DeliveryError{Class: class, Detail: detail}
}

func listEnvelope(p models.OutboundPayload) map[string]interface{} {
	rows := make([]map[string]string, len(p.Rows))
	for i, r := range p.Rows {
		rows[i] = map[string]string{"id": r.ID, "title": r.Title, "description": r.Description}
	}
	return map[string]interface{}{
		"type":   "list",
		"header": map[string]string{"type": "text", "text": p.Header},
		"body":   map[string]string{"text": p.Text},
		"action": map[string]interface{}{
			"button":   "Choose",
			"sections": []map[string]interface{}{{"rows": rows}},
		},
	}
}

func buttonsEnvelope(p models.OutboundPayload) map[string]interface{} {
	buttons := make([]map[string]interface{}, len(p.Rows))
	for i, r := range p.Rows {
		buttons[i] = map[string]interface{}{
			"type":  "reply",
			"reply": map[string]string{"id": r.ID, "title": r.Title},
		}
	}
	return map[string]interface{}{
		"type":   "button",
		"body":   map[string]string{"text": p.Text},
		"action": map[string]interface{}{"buttons": buttons},
	}
}
