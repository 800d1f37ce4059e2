package customerRepo

import (
	"context"
	"fmt"
	"time"

	"bookline/database"
	"bookline/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCustomerRepo implements CustomerRepository using MongoDB.
type MongoCustomerRepo struct {
	coll *mongo.Collection
}

// NewMongoCustomerRepo creates a new CustomerRepository backed by MongoDB.
func NewMongoCustomerRepo() CustomerRepository {
	repo := &MongoCustomerRepo{coll: database.Collection("customers")}
	if err := repo.ensureIndexes(); err != nil {
		fmt.Printf("failed to create customer indexes: %v\n", err)
	}
	return repo
}

func (r *MongoCustomerRepo) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "phone", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "nationalId", Value: 1}}},
	}
	_, err := r.coll.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (r *MongoCustomerRepo) GetByPhone(ctx context.Context, tenantID, phone string) (*models.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var customer models.Customer
	err := r.coll.FindOne(ctx, bson.M{"tenantId": tenantID, "phone": phone}).Decode(&customer)
	if err == mongo.ErrNoDocuments {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch customer %s/%s: %w", tenantID, phone, err)
	}
	return &customer, nil
}

func (r *MongoCustomerRepo) GetByNationalID(ctx context.Context, tenantID, nationalID string) (*models.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var customer models.Customer
	err := r.coll.FindOne(ctx, bson.M{"tenantId": tenantID, "nationalId": nationalID}).Decode(&customer)
	if err == mongo.ErrNoDocuments {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch customer %s by national id: %w", tenantID, err)
	}
	return &customer, nil
}

func (r *MongoCustomerRepo) Upsert(ctx context.Context, customer *models.Customer) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	customer.UpdatedAt = time.Now()
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = customer.UpdatedAt
	}
	filter := bson.M{"tenantId": customer.TenantID, "phone": customer.Phone}
	update := bson.M{"$set": customer}
	opts := options.Update().SetUpsert(true)
	if _, err := r.coll.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to upsert customer %s/%s: %w", customer.TenantID, customer.Phone, err)
	}
	return nil
}
