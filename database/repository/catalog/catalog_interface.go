package catalogRepo

import (
	"context"
	"time"

	"bookline/models"
)

// CatalogRepository exposes the read-only reference data the conversation
// and slot engines consume: branches, services, resources, working hours,
// time off and platform plans. Administration of these records lives in a
// separate surface.
type CatalogRepository interface {
	ListBranches(ctx context.Context, tenantID string) ([]models.Branch, error)
	ListServices(ctx context.Context, tenantID, branchID string) ([]models.Service, error)
	GetService(ctx context.Context, tenantID, serviceID string) (*models.Service, error)
	ListResources(ctx context.Context, tenantID, branchID string) ([]models.Resource, error)
	GetResource(ctx context.Context, tenantID, resourceID string) (*models.Resource, error)
	// WorkingHoursFor returns all working-hour rows for the resource; the slot
	// engine filters by weekday so both numbering conventions are honored.
	WorkingHoursFor(ctx context.Context, tenantID, resourceID string) ([]models.WorkingHours, error)
	// TimeOffOverlapping returns blackout intervals intersecting [from, to).
	TimeOffOverlapping(ctx context.Context, tenantID, resourceID string, from, to time.Time) ([]models.TimeOff, error)
	ListPlans(ctx context.Context) ([]models.PlatformPlan, error)
	GetPlan(ctx context.Context, planID string) (*models.PlatformPlan, error)
}
