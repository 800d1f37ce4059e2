package models

import "time"

// Provisioning modes for a tenant's channel credentials.
const (
	ProvisioningAuto   = "auto"   // credentials issued during embedded signup
	ProvisioningManual = "manual" // credentials pasted in by an operator
)

// PlaceholderChannelID marks a tenant provisioned before its real
// channel-routing identifier is known. It is rebound on first inbound traffic.
const PlaceholderChannelID = "pending"

// TenantContext is the resolved per-tenant channel configuration attached to
// every inbound event.
type TenantContext struct {
	ID           string    `bson:"id" json:"id"`
	Name         string    `bson:"name" json:"name"`
	ChannelID    string    `bson:"channelId" json:"channelId"` // messaging-account (phone number) id
	AccessToken  string    `bson:"accessToken" json:"-"`
	VerifyToken  string    `bson:"verifyToken" json:"-"`
	Provisioning string    `bson:"provisioning" json:"provisioning"`
	Active       bool      `bson:"active" json:"active"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// HasPlaceholderChannel reports whether the tenant still carries a
// provisional channel-routing identifier.
func (t *TenantContext) HasPlaceholderChannel() bool {
	return t.ChannelID == "" || t.ChannelID == PlaceholderChannelID
}
