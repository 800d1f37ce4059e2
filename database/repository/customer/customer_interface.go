package customerRepo

import (
	"context"

	"bookline/models"
)

// CustomerRepository defines customer identity data access. Identity key is
// (tenant, phone).
type CustomerRepository interface {
	// GetByPhone retrieves a customer by tenant and phone. Returns
	// mongo.ErrNoDocuments when the customer is unknown.
	GetByPhone(ctx context.Context, tenantID, phone string) (*models.Customer, error)
	// GetByNationalID retrieves a customer by tenant and national id.
	GetByNationalID(ctx context.Context, tenantID, nationalID string) (*models.Customer, error)
	// Upsert inserts or updates the customer record keyed by (tenant, phone).
	Upsert(ctx context.Context, customer *models.Customer) error
}
