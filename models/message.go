package models

import "time"

// Inbound message types as delivered by the channel webhook.
const (
	MessageTypeText        = "text"
	MessageTypeInteractive = "interactive"
	MessageTypeStatus      = "status"
)

// InboundMessage is the normalized inbound envelope handed to the engine.
type InboundMessage struct {
	TenantID  string    `json:"tenantId"`
	From      string    `json:"from"` // sender phone
	Type      string    `json:"type"`
	Text      string    `json:"text,omitempty"`
	OptionID  string    `json:"optionId,omitempty"` // selected list/button command id
	ReplyToID string    `json:"replyToId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Outbound payload kinds.
const (
	PayloadText    = "text"
	PayloadList    = "list"
	PayloadButtons = "buttons"
)

// Row is one selectable item in a list or button payload. ID is the stable
// command identifier echoed back on selection.
type Row struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// OutboundPayload is a channel-agnostic outbound message. ReplyToID, when
// set, threads the message as a reply to a previously sent message.
type OutboundPayload struct {
	Kind      string `json:"kind"`
	Text      string `json:"text,omitempty"`
	Header    string `json:"header,omitempty"`
	Rows      []Row  `json:"rows,omitempty"`
	ReplyToID string `json:"replyToId,omitempty"`
}

// TextPayload builds a plain text payload.
func TextPayload(text string) OutboundPayload {
	return OutboundPayload{Kind: PayloadText, Text: text}
}

// ListPayload builds an interactive list payload.
func ListPayload(header, text string, rows []Row) OutboundPayload {
	return OutboundPayload{Kind: PayloadList, Header: header, Text: text, Rows: rows}
}

// ButtonsPayload builds an interactive button payload (max 3 rows on most
// channels; callers chunk accordingly).
func ButtonsPayload(text string, rows []Row) OutboundPayload {
	return OutboundPayload{Kind: PayloadButtons, Text: text, Rows: rows}
}

// Delivery error classes, mirroring the channel platform's failure taxonomy.
type DeliveryErrorClass string

const (
	ErrClassWindowClosed     DeliveryErrorClass = "window_closed"
	ErrClassNotAllowlisted   DeliveryErrorClass = "not_allowlisted"
	ErrClassRateLimited      DeliveryErrorClass = "rate_limited"
	ErrClassInvalidRoutingID DeliveryErrorClass = "invalid_routing_id"
	ErrClassUnknown          DeliveryErrorClass = "unknown"
)

// DeliveryError is a classified send failure from the channel transport.
type DeliveryError struct {
	Class  DeliveryErrorClass
	Detail string
}

func (e *DeliveryError) Error() string {
	return string(e.Class) + ": " + e.Detail
}
