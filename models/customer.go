package models

import "time"

// Customer is identified per tenant by phone number.
type Customer struct {
	TenantID      string    `bson:"tenantId" json:"tenantId"`
	Phone         string    `bson:"phone" json:"phone"`
	Name          string    `bson:"name" json:"name"`
	NationalID    string    `bson:"nationalId" json:"nationalId"`
	Email         string    `bson:"email,omitempty" json:"email,omitempty"`
	DepositExempt bool      `bson:"depositExempt" json:"depositExempt"`
	CreatedAt     time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time `bson:"updatedAt" json:"updatedAt"`
}

// FullyIdentified reports whether the customer can enter booking flows:
// a name plus either a national id or a registered phone.
func (c *Customer) FullyIdentified() bool {
	if c == nil || c.Name == "" {
		return false
	}
	return c.NationalID != "" || c.Phone != ""
}
