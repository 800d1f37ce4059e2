package tenantRepo

import (
	"context"

	"bookline/models"
)

// TenantRepository defines channel-routing data access for tenant resolution.
type TenantRepository interface {
	// GetByID retrieves a tenant context by its unique ID.
	GetByID(ctx context.Context, id string) (*models.TenantContext, error)
	// GetByChannelID retrieves the tenant bound to a channel-routing identifier.
	GetByChannelID(ctx context.Context, channelID string) (*models.TenantContext, error)
	// GetByVerifyToken retrieves an active tenant that registered the given
	// webhook verify token (manual provisioning brings its own app).
	GetByVerifyToken(ctx context.Context, token string) (*models.TenantContext, error)
	// LatestPlaceholder retrieves the most recently updated active tenant whose
	// channel identifier is still a placeholder or missing.
	LatestPlaceholder(ctx context.Context) (*models.TenantContext, error)
	// RebindChannelID persists a new channel identifier for the tenant
	// (self-healing onboarding).
	RebindChannelID(ctx context.Context, tenantID, channelID string) error
}
