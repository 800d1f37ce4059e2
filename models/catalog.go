package models

import "time"

// Branch is a physical location of a tenant.
type Branch struct {
	ID       string `bson:"id" json:"id"`
	TenantID string `bson:"tenantId" json:"tenantId"`
	Name     string `bson:"name" json:"name"`
	Address  string `bson:"address,omitempty" json:"address,omitempty"`
	Active   bool   `bson:"active" json:"active"`
}

// Service is a bookable offering (haircut, lesson, consultation...).
type Service struct {
	ID          string  `bson:"id" json:"id"`
	TenantID    string  `bson:"tenantId" json:"tenantId"`
	BranchID    string  `bson:"branchId,omitempty" json:"branchId,omitempty"`
	Name        string  `bson:"name" json:"name"`
	DurationMin int     `bson:"durationMin" json:"durationMin"` // 0 means "use slot granularity"
	Price       float64 `bson:"price" json:"price"`
	Active      bool    `bson:"active" json:"active"`
}

// Resource is whoever or whatever delivers a service: an instructor, a
// stylist, a room.
type Resource struct {
	ID       string `bson:"id" json:"id"`
	TenantID string `bson:"tenantId" json:"tenantId"`
	BranchID string `bson:"branchId,omitempty" json:"branchId,omitempty"`
	Name     string `bson:"name" json:"name"`
	Active   bool   `bson:"active" json:"active"`
}

// WorkingHours maps a resource and weekday to an open/close interval.
// Weekday accepts both numbering conventions: 0=Sunday..6=Saturday or
// 1=Monday..7=Sunday.
type WorkingHours struct {
	ResourceID string `bson:"resourceId" json:"resourceId"`
	TenantID   string `bson:"tenantId" json:"tenantId"`
	Weekday    int    `bson:"weekday" json:"weekday"`
	Open       string `bson:"open" json:"open"`   // "HH:MM"
	Close      string `bson:"close" json:"close"` // "HH:MM"
}

// TimeOff blocks a resource's calendar for an interval.
type TimeOff struct {
	ID         string    `bson:"id" json:"id"`
	TenantID   string    `bson:"tenantId" json:"tenantId"`
	ResourceID string    `bson:"resourceId" json:"resourceId"`
	Start      time.Time `bson:"start" json:"start"`
	End        time.Time `bson:"end" json:"end"`
	Reason     string    `bson:"reason,omitempty" json:"reason,omitempty"`
}

// PlatformPlan is a subscription tier a tenant can purchase through the chat
// channel's plan browser.
type PlatformPlan struct {
	ID          string  `bson:"id" json:"id"`
	Name        string  `bson:"name" json:"name"`
	Price       float64 `bson:"price" json:"price"`
	Period      string  `bson:"period" json:"period"` // "monthly" / "yearly"
	Description string  `bson:"description,omitempty" json:"description,omitempty"`
	Active      bool    `bson:"active" json:"active"`
}
