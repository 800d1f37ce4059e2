package tenantRepo

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

// MongoTenantRepo implements TenantRepository using MongoDB.
type MongoTenantRepo struct {
	coll *mongo.Collection
}

// NewMongoTenantRepo creates a new TenantRepository backed by MongoDB.
func NewMongoTenantRepo() TenantRepository {
	repo := &MongoTenantRepo{coll: database.Collection("tenants")}
	if err := repo.ensureIndexes(); err != nil {
		fmt.Printf("failed to create tenant indexes: %v\n", err)
	}
	return repo
}

func (r *MongoTenantRepo) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "channelId", Value: 1}}},
	}
	_, err := r.coll.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (r *MongoTenantRepo) GetByID(ctx context.Context, id string) (*models.TenantContext, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var tenant models.TenantContext
	if err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&tenant); err != nil {
		return nil, fmt.Errorf("failed to fetch tenant %s: %w", id, err)
	}
	return &tenant, nil
}

func (r *MongoTenantRepo) GetByChannelID(ctx context.Context, channelID string) (*models.TenantContext, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var tenant models.TenantContext
	err := r.coll.FindOne(ctx, bson.M{"channelId": channelID, "active": true}).Decode(&tenant)
	if err == mongo.ErrNoDocuments {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tenant by channel id %s: %w", channelID, err)
	}
	return &tenant, nil
}

func (r *MongoTenantRepo) GetByVerifyToken(ctx context.Context, token string) (*models.TenantContext, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var tenant models.TenantContext
	err := r.coll.FindOne(ctx, bson.M{"verifyToken": token, "active": true}).Decode(&tenant)
	if err == mongo.ErrNoDocuments {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tenant by verify token: %w", err)
	}
	return &tenant, nil
}

func (r *MongoTenantRepo) LatestPlaceholder(ctx context.Context) (*models.TenantContext, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"active": true,
		"$or": []bson.M{
			{"channelId": models.PlaceholderChannelID},
			{"channelId": ""},
			{"channelId": bson.M{"$exists": false}},
		},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "updatedAt", Value: -1}})

	var tenant models.TenantContext
	err := r.coll.FindOne(ctx, filter, opts).Decode(&tenant)
	if err == mongo.ErrNoDocuments {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch placeholder tenant: %w", err)
	}
	return &tenant, nil
}

func (r *MongoTenantRepo) RebindChannelID(ctx context.Context, tenantID, channelID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{"$set": bson.M{"channelId": channelID, "updatedAt": time.Now()}}
	res, err := r.coll.UpdateOne(ctx, bson.M{"id": tenantID}, update)
	if err != nil {
		return fmt.Errorf("failed to rebind channel id for tenant %s: %w", tenantID, err)
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
